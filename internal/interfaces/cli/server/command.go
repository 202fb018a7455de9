package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	appcomm "github.com/alissayuxuan/OMNI-SYS/internal/application/comm"
	"github.com/alissayuxuan/OMNI-SYS/internal/domain/comm"
	"github.com/alissayuxuan/OMNI-SYS/internal/infrastructure/auth"
	"github.com/alissayuxuan/OMNI-SYS/internal/infrastructure/broker"
	"github.com/alissayuxuan/OMNI-SYS/internal/infrastructure/cache"
	"github.com/alissayuxuan/OMNI-SYS/internal/infrastructure/config"
	"github.com/alissayuxuan/OMNI-SYS/internal/infrastructure/database"
	"github.com/alissayuxuan/OMNI-SYS/internal/infrastructure/metrics"
	"github.com/alissayuxuan/OMNI-SYS/internal/infrastructure/migration"
	"github.com/alissayuxuan/OMNI-SYS/internal/infrastructure/pubsub"
	"github.com/alissayuxuan/OMNI-SYS/internal/infrastructure/repository"
	"github.com/alissayuxuan/OMNI-SYS/internal/infrastructure/scheduler"
	"github.com/alissayuxuan/OMNI-SYS/internal/infrastructure/services"
	httpRouter "github.com/alissayuxuan/OMNI-SYS/internal/interfaces/http"
	"github.com/alissayuxuan/OMNI-SYS/internal/interfaces/http/handlers"
	sharedConfig "github.com/alissayuxuan/OMNI-SYS/internal/shared/config"
	"github.com/alissayuxuan/OMNI-SYS/internal/shared/constants"
	"github.com/alissayuxuan/OMNI-SYS/internal/shared/goroutine"
	"github.com/alissayuxuan/OMNI-SYS/internal/shared/logger"
)

var (
	env                string
	autoMigrate        bool
	skipMigrationCheck bool
	skipRebuild        bool
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the messaging server",
		Long: `Start the messaging server: one communication node per active agent,
the HTTP bridge, and the periodic node reconcile job.`,
		RunE: run,
	}

	cmd.Flags().StringVarP(&env, "env", "e", constants.EnvDevelopment, "Environment (development, test, production)")
	cmd.Flags().BoolVar(&autoMigrate, "auto-migrate", false, "Automatically run database migrations on startup (not recommended for production)")
	cmd.Flags().BoolVar(&skipMigrationCheck, "skip-migration-check", false, "Skip migration status check on startup")
	cmd.Flags().BoolVar(&skipRebuild, "skip-rebuild", false, "Do not start nodes for existing agents on startup")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	if envVar := os.Getenv("ENV"); envVar != "" {
		env = envVar
	}

	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Server.Mode = mapEnvToGinMode(env)

	if err := logger.Init(&cfg.Logger, cfg.Server.Mode); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	log := logger.NewLogger()
	log.Infow("starting server",
		"environment", env,
		"broker", cfg.Broker.Kind,
		"auto_migrate", autoMigrate)

	gin.SetMode(cfg.Server.Mode)
	httpRouter.SilenceGinOutput()

	if err := database.Init(&cfg.Database); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	if err := handleMigrations(env, cfg.Database.Driver, log); err != nil {
		return fmt.Errorf("migration handling failed: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient, err := cache.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	log.Infow("redis connection established", "addr", cfg.Redis.GetAddr())

	transports, err := broker.NewTransportFactory(cfg.Broker, logger.WithComponent("broker"))
	if err != nil {
		return err
	}

	agents := repository.NewAgentRepository(database.Get(), logger.WithComponent("repository.agent"))
	directory := repository.NewAgentDirectory(agents)
	jwtService := auth.NewJWTService(cfg.Auth.JWT.Secret, cfg.Auth.JWT.AccessExpMinutes, cfg.Auth.JWT.RefreshExpDays)
	hasher := auth.NewBcryptPasswordHasher(cfg.Auth.Password.BcryptCost)
	issuer := auth.NewLocalIssuer(agents, hasher, jwtService, logger.WithComponent("auth.issuer"))

	buffer := cache.NewRedisOutboundBuffer(redisClient, logger.WithComponent("comm.buffer"))
	inbox := cache.NewRedisInboxStore(redisClient, cfg.Comm.InboxLimit, cfg.Comm.InboxRetention, logger.WithComponent("comm.inbox"))
	hub := services.NewDeliveryHub(logger.WithComponent("comm.stream"), nil)
	defer hub.Shutdown()
	relay := pubsub.NewRedisDeliveryRelay(redisClient, logger.WithComponent("comm.relay"))
	commMetrics := metrics.NewCommMetrics()

	builder := &appcomm.Builder{
		Config: appcomm.NodeConfig{
			RetryInterval:  cfg.Comm.RetryInterval,
			ConnectTimeout: cfg.Broker.ConnectTimeout,
			InboundQueue:   cfg.Comm.InboundQueue,
		},
		Transports: transports,
		Buffer:     buffer,
		Codecs:     comm.DefaultCodecRegistry(),
		Observer: appcomm.Observers{
			appcomm.NewLogObserver(logger.WithComponent("comm.delivery")),
			inbox,
			hub,
			relay,
		},
		Metrics: commMetrics,
		Logger:  logger.WithComponent("comm.node"),
	}
	if strings.EqualFold(cfg.Broker.AuthMode, sharedConfig.BrokerAuthToken) {
		builder.Issuer = issuer
		builder.DefaultCredentials = &appcomm.Credentials{
			Username: cfg.Broker.ServiceUsername,
			Password: cfg.Broker.ServicePassword,
		}
	}

	manager := appcomm.NewManager(
		appcomm.ManagerConfig{RebuildConcurrency: cfg.Comm.RebuildConcurrency},
		builder, directory, commMetrics, logger.WithComponent("comm.manager"),
	)
	defer manager.ShutdownAll()

	goroutine.SafeGo(log, "delivery-relay", func() {
		if err := relay.Subscribe(ctx, hub); err != nil && !errors.Is(err, context.Canceled) {
			log.Errorw("delivery relay stopped", "error", err)
		}
	})

	if !skipRebuild {
		identities, err := directory.ListActive(ctx)
		if err != nil {
			return fmt.Errorf("failed to list active agents: %w", err)
		}
		live := manager.RebuildAll(ctx, identities)
		log.Infow("nodes rebuilt", "count", live, "agents", len(identities))
	}

	schedulerManager, err := scheduler.NewSchedulerManager(logger.WithComponent("scheduler"))
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	if err := schedulerManager.RegisterReconcileJob(cfg.Comm.ReconcileInterval, manager); err != nil {
		return fmt.Errorf("failed to register reconcile job: %w", err)
	}
	schedulerManager.Start()
	defer func() {
		if err := schedulerManager.Stop(); err != nil {
			log.Errorw("failed to stop scheduler", "error", err)
		}
	}()

	router := httpRouter.NewRouter(httpRouter.RouterDeps{
		Manager: manager,
		Agents:  agents,
		Issuer:  issuer,
		JWT:     jwtService,
		Inbox:   inbox,
		Buffer:  buffer,
		Hub:     hub,
		Redis:   redisClient,
		Metrics: commMetrics.Handler(),
		HealthChecks: map[string]handlers.HealthCheck{
			"database": pingDatabase,
			"redis": func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		},
		RequireAuth:   cfg.Server.RequireAuth,
		AuthRateLimit: cfg.Server.AuthRateLimit,
		Logger:        logger.WithComponent("http"),
	})
	router.SetupRoutes()

	// No WriteTimeout: delivery streams stay open.
	srv := &http.Server{
		Addr:              cfg.Server.GetAddr(),
		Handler:           router.GetEngine(),
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("server starting",
			"address", cfg.Server.GetAddr(),
			"mode", cfg.Server.Mode)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		log.Errorw("failed to start server", "error", err)
		return err
	}

	log.Infow("shutting down server...")
	hub.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
		return err
	}

	log.Infow("server exited gracefully")
	return nil
}

func pingDatabase(ctx context.Context) error {
	sqlDB, err := database.Get().DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func handleMigrations(environment, driver string, log logger.Interface) error {
	if skipMigrationCheck {
		log.Infow("skipping migration check")
		return nil
	}

	if autoMigrate {
		if environment == constants.EnvProduction {
			log.Warnw("auto-migration is enabled in production environment - this is not recommended!")
		}

		migrationManager, err := migration.NewManager(environment, driver)
		if err != nil {
			return err
		}
		if err := migrationManager.Migrate(database.Get()); err != nil {
			return fmt.Errorf("auto-migration failed: %w", err)
		}
		return nil
	}

	strategy, err := migration.NewGooseStrategy(driver)
	if err != nil {
		log.Warnw("failed to check migration status", "error", err)
		return nil
	}
	version, err := strategy.GetVersion(database.Get())
	if err != nil {
		log.Warnw("failed to check migration status", "error", err)
		return nil
	}
	log.Infow("current migration version", "version", version)
	return nil
}

func mapEnvToGinMode(environment string) string {
	switch environment {
	case constants.EnvProduction, "prod", "release":
		return gin.ReleaseMode
	case constants.EnvTest, "testing":
		return gin.TestMode
	default:
		return gin.DebugMode
	}
}
