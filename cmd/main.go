package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/yakoovad/council-tenders/internal/api"
	"github.com/yakoovad/council-tenders/internal/auth"
	"github.com/yakoovad/council-tenders/internal/config"
	"github.com/yakoovad/council-tenders/internal/db"
	"github.com/yakoovad/council-tenders/internal/repository"
	"github.com/yakoovad/council-tenders/internal/service"
	"github.com/yakoovad/council-tenders/pkg/logger"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		panic(err)
	}

	logger, err := logger.NewLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("starting application")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.PostgresConn, cfg.DBConnectTimeout, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	logger.Info("database connection established")

	changed, err := db.Migrate(cfg.MigrationURL, cfg.PostgresConn)
	if err != nil {
		logger.Fatal("failed to apply migrations", zap.Error(err))
	}
	logger.Info("migrations applied", zap.Bool("changed", changed))

	transactor := db.NewPgxTransactor(pool)

	bidRepo := repository.NewPgxBidRepository(pool)
	packageRepo := repository.NewPgxPackageRepository(pool)
	projectRepo := repository.NewPgxProjectRepository(pool)
	teamRepo := repository.NewPgxTeamRepository(pool)
	notificationRepo := repository.NewPgxNotificationRepository(pool)
	analyticsRepo := repository.NewPgxAnalyticsRepository(pool)
	reportRepo := repository.NewPgxReportRepository(pool)
	activityRepo := repository.NewPgxActivityRepository(pool)

	notifications := service.NewNotificationService(notificationRepo)
	activity := service.NewActivityService(activityRepo)
	bids := service.NewBidService(transactor).WithBidRepo(bidRepo).WithPackageRepo(packageRepo).
		WithActivityRepo(activityRepo).WithNotifier(notifications)
	awards := service.NewAwardService(transactor).WithBidRepo(bidRepo).WithPackageRepo(packageRepo).
		WithProjectRepo(projectRepo).WithTeamRepo(teamRepo).WithActivityRepo(activityRepo).WithNotifier(notifications)
	projects := service.NewProjectService(transactor).WithProjectRepo(projectRepo).WithPackageRepo(packageRepo).
		WithActivityRepo(activityRepo)
	teams := service.NewTeamService(transactor).WithTeamRepo(teamRepo).WithProjectRepo(projectRepo)
	reports := service.NewReportService(transactor).WithAnalyticsRepo(analyticsRepo).WithReportRepo(reportRepo).
		WithProjectRepo(projectRepo).WithActivityRepo(activityRepo)

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = cfg.RequestTimeout
	e.Server.WriteTimeout = cfg.RequestTimeout

	handler := api.NewHandler(logger, auth.NewIssuer(cfg.TokenSecret)).
		WithHealthChecker(api.MustNewHealthChecker(logger, api.PostgresCheck(pool))).
		WithBidService(bids).
		WithAwardService(awards).
		WithProjectService(projects).
		WithTeamService(teams).
		WithNotificationService(notifications).
		WithReportService(reports).
		WithActivityService(activity)

	handler.RegisterRoutes(e)

	go func() {
		logger.Info("server starting", zap.String("address", cfg.ServerAddress))
		if err := e.Start(cfg.ServerAddress); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shut down server", zap.Error(err))
	}
}
