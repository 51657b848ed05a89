package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/dept-service/internal/api/http"
	"github.com/spec-kit/dept-service/internal/api/http/handlers"
	"github.com/spec-kit/dept-service/internal/auth"
	"github.com/spec-kit/dept-service/internal/config"
	"github.com/spec-kit/dept-service/internal/events"
	"github.com/spec-kit/dept-service/internal/observability"
	"github.com/spec-kit/dept-service/internal/persistence"
	"github.com/spec-kit/dept-service/internal/repository"
	"github.com/spec-kit/dept-service/internal/repository/memrepo"
	"github.com/spec-kit/dept-service/internal/service"
	"github.com/spec-kit/dept-service/internal/worker"
)

type repositories struct {
	departments   repository.DepartmentRepository
	operators     repository.OperatorRepository
	operationLogs repository.OperationLogRepository
}

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

	snapshotCache := repository.NewRedisSnapshotCache(redis.Client, cfg.Cache.SnapshotTTL())
	if err := redis.Ping(ctx); err != nil {
		snapshotCache = repository.NoopSnapshotCache{}
	}

	repos := newRepositories(pg)
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		OperatorRepo: repos.operators,
		Logger:       logger,
	})
	if _, err := authService.EnsureBootstrapOperator(ctx); err != nil {
		logger.Fatal("failed to bootstrap operator", zap.Error(err))
	}

	deptService := service.NewDepartmentService(service.DepartmentDependencies{
		DepartmentRepo: repos.departments,
		OperatorRepo:   repos.operators,
		Cache:          snapshotCache,
		Dispatcher:     dispatcher,
		Metrics:        metrics,
		Logger:         logger,
	})
	auditService := service.NewAuditService(dispatcher, repos.operationLogs, logger)
	worker.StartAuditWorker(auditService)

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), repos.operators)

	app := fiber.New(fiber.Config{
		AppName:     cfg.App.Name,
		JSONEncoder: sonic.Marshal,
		JSONDecoder: sonic.Unmarshal,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Metrics:        handlers.NewMetricsHandler(metrics),
		Auth:           handlers.NewAuthHandler(authService),
		Departments:    handlers.NewDepartmentHandler(deptService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

// newRepositories picks postgres-backed repositories, or in-memory ones when no DSN is set.
func newRepositories(pg *persistence.Postgres) repositories {
	if !pg.Enabled() {
		return repositories{
			departments:   memrepo.NewDepartments(),
			operators:     memrepo.NewOperators(),
			operationLogs: memrepo.NewOperationLogs(),
		}
	}
	pool := pg.PoolHandle()
	return repositories{
		departments:   repository.NewDepartmentRepository(pool),
		operators:     repository.NewOperatorRepository(pool),
		operationLogs: repository.NewOperationLogRepository(pool),
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
