package api

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/yakoovad/council-tenders/internal/auth"
	"github.com/yakoovad/council-tenders/internal/service"
	"github.com/yakoovad/council-tenders/pkg/logger"
	"go.uber.org/zap"
)

const bearerPrefix = "Bearer "

func ZapLoggerMiddleware(l *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			req := c.Request()
			res := c.Response()

			reqLogger := l.With(
				zap.String("request_id", res.Header().Get(echo.HeaderXRequestID)),
			)

			c.Set("logger", reqLogger)

			ctx := logger.WithLogger(req.Context(), reqLogger)
			c.SetRequest(req.WithContext(ctx))

			err := next(c)

			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("uri", req.RequestURI),
				zap.String("remote_ip", c.RealIP()),
				zap.Int("status", res.Status),
				zap.Duration("latency", time.Since(start)),
				zap.Int64("bytes_in", req.ContentLength),
				zap.Int64("bytes_out", res.Size),
			}
			// The auth middleware replaces the request, so read the actor from the current one.
			if a, ok := auth.ActorFromContext(c.Request().Context()); ok {
				fields = append(fields, zap.String("actor_id", a.ID))
			}

			if err != nil {
				fields = append(fields, zap.Error(err))
				reqLogger.Error("request failed", fields...)
			} else {
				reqLogger.Info("request completed", fields...)
			}

			return err
		}
	}
}

func GetLoggerFromContext(c echo.Context) *zap.Logger {
	if l, ok := c.Get("logger").(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

// AuthMiddleware resolves the bearer token into an actor and admits only the given roles.
func AuthMiddleware(issuer *auth.Issuer, roles ...auth.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			l := GetLoggerFromContext(c)

			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(header, bearerPrefix) {
				return c.JSON(http.StatusUnauthorized, errorResponse{
					Error: service.NewError(service.ErrorCodeUnauthorized, "missing bearer token"),
				})
			}

			actor, err := issuer.Actor(strings.TrimPrefix(header, bearerPrefix))
			if err != nil {
				l.Debug("rejected token", zap.Error(err))
				return c.JSON(http.StatusUnauthorized, errorResponse{
					Error: service.NewError(service.ErrorCodeUnauthorized, "invalid token"),
				})
			}

			if !slices.Contains(roles, actor.Role) {
				return c.JSON(http.StatusForbidden, errorResponse{
					Error: service.NewError(service.ErrorCodeForbidden, "role not permitted"),
				})
			}

			reqLogger := l.With(zap.String("actor_id", actor.ID), zap.String("role", string(actor.Role)))
			c.Set("logger", reqLogger)

			ctx := logger.WithLogger(c.Request().Context(), reqLogger)
			ctx = auth.WithActor(ctx, actor)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}
