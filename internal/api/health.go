package api

import (
	"context"
	"time"

	"github.com/hellofresh/health-go/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const healthCheckTimeout = 2 * time.Second

type HealthChecker interface {
	HealthCheck() echo.HandlerFunc
}

type healthChecker struct {
	health *health.Health
}

func MustNewHealthChecker(l *zap.Logger, checks ...health.Config) HealthChecker {
	h, err := health.New(health.WithComponent(health.Component{Name: "council-tenders", Version: "v0.1.0"}))
	if err != nil {
		l.Fatal("failed to create health checker", zap.Error(err))
	}

	for _, check := range checks {
		if err := h.Register(check); err != nil {
			l.Fatal("failed to register health check", zap.String("check", check.Name), zap.Error(err))
		}
	}

	return &healthChecker{
		health: h,
	}
}

// PostgresCheck pings the pool backing the repositories.
func PostgresCheck(pool *pgxpool.Pool) health.Config {
	return health.Config{
		Name:    "postgres",
		Timeout: healthCheckTimeout,
		Check: func(ctx context.Context) error {
			return pool.Ping(ctx)
		},
	}
}

func (h *healthChecker) HealthCheck() echo.HandlerFunc {
	return echo.WrapHandler(h.health.Handler())
}
