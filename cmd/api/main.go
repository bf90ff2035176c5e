package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/civicdesk/grievance-service/internal/api/http"
	"github.com/civicdesk/grievance-service/internal/api/http/handlers"
	"github.com/civicdesk/grievance-service/internal/auth"
	"github.com/civicdesk/grievance-service/internal/config"
	"github.com/civicdesk/grievance-service/internal/events"
	"github.com/civicdesk/grievance-service/internal/observability"
	"github.com/civicdesk/grievance-service/internal/persistence"
	"github.com/civicdesk/grievance-service/internal/repository"
	"github.com/civicdesk/grievance-service/internal/service"
	"github.com/civicdesk/grievance-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	complaintRepo := repository.NewComplaintRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	resetRepo := repository.NewPasswordResetRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)

	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:          userRepo,
		PasswordResetRepo: resetRepo,
	})
	userService := service.NewUserService(*cfg, userRepo)
	notificationService := service.NewNotificationService(notificationRepo, userRepo, logger)
	auditService := service.NewAuditService(auditRepo, logger)
	lifecycleService := service.NewLifecycleService(service.LifecycleDependencies{
		ComplaintRepo: complaintRepo,
		Users:         userRepo,
		Notifications: notificationService,
		Audits:        auditService,
		Dispatcher:    dispatcher,
		Metrics:       metrics,
		Logger:        logger,
	})
	statsService := service.NewStatsService(complaintRepo, redis.Handle(), logger)
	integrationsService := service.NewIntegrationsService(dispatcher, logger, cfg.Notification)
	worker.StartIntegrationsWorker(integrationsService)

	slaMonitor := service.NewSLAMonitor(service.SLAMonitorDependencies{
		Complaints: complaintRepo,
		Notifier:   notificationService,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	monitorWorker := worker.NewSLAMonitorWorker(slaMonitor, cfg.SLA, logger)
	if err := monitorWorker.Start(); err != nil {
		logger.Fatal("failed to start sla monitor", zap.Error(err))
	}
	defer monitorWorker.Stop()

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(authService),
		Complaints:     handlers.NewComplaintsHandler(lifecycleService),
		Officer:        handlers.NewOfficerHandler(lifecycleService),
		Admin:          handlers.NewAdminHandler(lifecycleService, userService, auditService, statsService),
		Notifications:  handlers.NewNotificationsHandler(notificationService),
		AuthMiddleware: authMiddleware,
		RateLimiter:    httptransport.ComplaintRateLimiter(redis.Handle(), cfg.RateLimit, logger),
		Metrics:        httptransport.MetricsHandler(metrics),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
