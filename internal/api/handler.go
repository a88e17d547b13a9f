package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/yakoovad/council-tenders/internal/auth"
	"github.com/yakoovad/council-tenders/internal/model"
	"github.com/yakoovad/council-tenders/internal/service"
	"go.uber.org/zap"
)

type Handler struct {
	bids          *service.BidService
	awards        *service.AwardService
	projects      *service.ProjectService
	teams         *service.TeamService
	notifications *service.NotificationService
	reports       *service.ReportService
	activity      *service.ActivityService

	issuer        *auth.Issuer
	healthChecker HealthChecker

	logger *zap.Logger
}

func NewHandler(logger *zap.Logger, issuer *auth.Issuer) *Handler {
	return &Handler{
		logger: logger,
		issuer: issuer,
	}
}

func (h *Handler) WithHealthChecker(c HealthChecker) *Handler {
	h.healthChecker = c
	return h
}

func (h *Handler) WithBidService(bids *service.BidService) *Handler {
	h.bids = bids
	return h
}

func (h *Handler) WithAwardService(awards *service.AwardService) *Handler {
	h.awards = awards
	return h
}

func (h *Handler) WithProjectService(projects *service.ProjectService) *Handler {
	h.projects = projects
	return h
}

func (h *Handler) WithTeamService(teams *service.TeamService) *Handler {
	h.teams = teams
	return h
}

func (h *Handler) WithNotificationService(notifications *service.NotificationService) *Handler {
	h.notifications = notifications
	return h
}

func (h *Handler) WithReportService(reports *service.ReportService) *Handler {
	h.reports = reports
	return h
}

func (h *Handler) WithActivityService(activity *service.ActivityService) *Handler {
	h.activity = activity
	return h
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.Validator = NewValidator()
	e.Use(middleware.RequestID())
	e.Use(ZapLoggerMiddleware(h.logger))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	if h.healthChecker != nil {
		e.GET("/health", h.healthChecker.HealthCheck())
	}

	// Auth is attached per route. An echo group with middleware claims every
	// unmatched path under its prefix, which would turn 404s into 401s.
	anyone := AuthMiddleware(h.issuer, auth.RoleCouncil, auth.RoleContractor)
	council := AuthMiddleware(h.issuer, auth.RoleCouncil)
	contractor := AuthMiddleware(h.issuer, auth.RoleContractor)

	e.GET("/projects", h.ListPublicProjects, anyone)
	e.GET("/projects/:id", h.GetProject, anyone)
	e.GET("/projects/:id/packages", h.ListPackages, anyone)
	e.GET("/packages/:id", h.GetPackage, anyone)
	e.GET("/bids/:id", h.GetBid, anyone)
	e.GET("/teams/:id", h.GetTeam, anyone)
	e.GET("/notifications", h.ListNotifications, anyone)
	e.GET("/activity", h.ListActivity, anyone)
	e.GET("/dashboard", h.Dashboard, anyone)

	e.POST("/projects", h.CreateProject, council)
	e.GET("/projects/mine", h.ListMyProjects, council)
	e.PATCH("/projects/:id", h.UpdateProject, council)
	e.POST("/projects/:id/packages", h.CreatePackage, council)
	e.GET("/packages/:id/bids", h.ListPackageBids, council)
	e.POST("/packages/:id/award", h.AwardPackage, council)
	e.POST("/packages/:id/close", h.ClosePackage, council)
	e.POST("/bids/:id/review", h.ReviewBid, council)
	e.POST("/teams", h.CreateTeam, council)
	e.POST("/teams/:id/members", h.AddTeamMember, council)
	e.DELETE("/teams/:id/members/:contractorId", h.RemoveTeamMember, council)
	e.PATCH("/teams/:id/status", h.SetTeamStatus, council)
	e.GET("/analytics/bids", h.BidAnalytics, council)
	e.GET("/export/bids.csv", h.ExportBids, council)
	e.GET("/export/projects.csv", h.ExportProjects, council)
	e.GET("/reports", h.ListReports, council)
	e.POST("/reports", h.CreateReport, council)
	e.POST("/reports/generate", h.GenerateReport, council)
	e.GET("/reports/:id", h.GetReport, council)
	e.PATCH("/reports/:id", h.UpdateReport, council)
	e.DELETE("/reports/:id", h.DeleteReport, council)

	e.POST("/packages/:id/bids", h.SubmitBid, contractor)
	e.GET("/bids/mine", h.ListMyBids, contractor)
	e.PATCH("/bids/:id", h.UpdateBid, contractor)
	e.POST("/bids/:id/withdraw", h.WithdrawBid, contractor)
	e.GET("/teams/mine", h.ListMyTeams, contractor)
}

// actor returns the caller resolved by AuthMiddleware.
func actor(e echo.Context) auth.Actor {
	a, _ := auth.ActorFromContext(e.Request().Context())
	return a
}

// pathID reads a uuid path parameter.
func pathID(e echo.Context, name string) (string, *service.Error) {
	id := e.Param(name)
	if err := uuid.Validate(id); err != nil {
		return "", service.NewError(service.ErrorCodeInvalidBody, "invalid "+name)
	}
	return id, nil
}

type page struct {
	Limit  int
	Offset int
}

func parsePage(e echo.Context) (page, *service.Error) {
	var p page
	err := echo.QueryParamsBinder(e).
		Int("limit", &p.Limit).
		Int("offset", &p.Offset).
		BindError()
	if err != nil {
		return p, service.NewError(service.ErrorCodeValidation, "invalid paging parameters")
	}
	return p, nil
}

// parseBidFilter reads limit, offset and repeated status query parameters.
func parseBidFilter(e echo.Context) (model.BidFilter, *service.Error) {
	var (
		f        model.BidFilter
		statuses []string
	)
	err := echo.QueryParamsBinder(e).
		Int("limit", &f.Limit).
		Int("offset", &f.Offset).
		Strings("status", &statuses).
		BindError()
	if err != nil {
		return f, service.NewError(service.ErrorCodeValidation, "invalid query parameters")
	}
	for _, s := range statuses {
		f.Statuses = append(f.Statuses, model.BidStatus(s))
	}
	return f, nil
}

type errorResponse struct {
	Error *service.Error `json:"error"`
}

func (h *Handler) transportError(e echo.Context, err *service.Error) error {
	response := errorResponse{Error: err}

	switch err.Code {
	case service.ErrorCodeValidation, service.ErrorCodeInvalidBody:
		return e.JSON(http.StatusBadRequest, response)
	case service.ErrorCodeState, service.ErrorCodeConflict:
		return e.JSON(http.StatusConflict, response)
	case service.ErrorCodeNotFound:
		return e.JSON(http.StatusNotFound, response)
	case service.ErrorCodeForbidden:
		return e.JSON(http.StatusForbidden, response)
	case service.ErrorCodeUnauthorized:
		return e.JSON(http.StatusUnauthorized, response)
	default:
		return e.JSON(http.StatusInternalServerError, response)
	}
}
