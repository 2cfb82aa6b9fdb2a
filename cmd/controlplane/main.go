package main

// @title           Service Fleet Control - Control Plane API
// @version         1.0
// @description     Control plane for monitored agent fleets. Manages tenants, projects, agents, credentials, sessions and task dispatch.
// @termsOfService  http://swagger.io/terms/
// @contact.name   API Support
// @contact.url    http://www.example.com/support
// @contact.email  support@example.com
// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html
// @host      localhost:8080
// @BasePath  /
// @securityDefinitions.basic  BasicAuth

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	_ "github.com/Alwanly/service-fleet-control/docs"
	"github.com/Alwanly/service-fleet-control/internal/config"
	"github.com/Alwanly/service-fleet-control/internal/platform"
	"github.com/Alwanly/service-fleet-control/internal/server/controlplane/handler"
	authentication "github.com/Alwanly/service-fleet-control/pkg/auth"
	"github.com/Alwanly/service-fleet-control/pkg/database"
	"github.com/Alwanly/service-fleet-control/pkg/deps"
	"github.com/Alwanly/service-fleet-control/pkg/logger"
	"github.com/Alwanly/service-fleet-control/pkg/middleware"
	"github.com/Alwanly/service-fleet-control/pkg/poll"
	"github.com/Alwanly/service-fleet-control/pkg/pubsub"
	swagger "github.com/gofiber/swagger"
)

func main() {
	log, err := logger.NewLoggerFromEnv("controlplane")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	log.Info("starting control plane service")

	cfg, err := config.LoadServerConfig()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	log.Info("configuration loaded",
		logger.String("server_addr", cfg.ServerAddr),
		logger.String("database_path", cfg.DatabasePath),
		logger.Duration("sweep_interval", cfg.SweepInterval),
	)

	auth := middleware.SetBasicAuth(&authentication.BasicAuthTConfig{
		Username:      cfg.AdminUsername,
		Password:      cfg.AdminPassword,
		AdminUsername: cfg.AdminUsername,
		AdminPassword: cfg.AdminPassword,
	})
	mid := middleware.NewAuthMiddleware(auth)
	log.Info("authentication initialized")

	db, err := database.NewSQLiteDB(cfg.DatabasePath)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	log.Info("database initialized", logger.String("path", cfg.DatabasePath))

	if err := database.RunMigrations(db); err != nil {
		log.WithError(err).Fatal("failed to migrate database")
	}
	log.Info("database migrations applied successfully")

	var bus pubsub.PubSub
	if cfg.Redis != nil {
		redisCfg := pubsub.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}
		redisBus, err := pubsub.NewRedisPubSub(redisCfg, log)
		if err != nil {
			log.WithError(err).Error("failed to initialize Redis pub/sub, falling back to in-process bus",
				logger.String("impact", "dispatch_and_telemetry_stay_local"))
		} else {
			bus = redisBus
			log.Info("Redis pub/sub initialized successfully",
				logger.String("host", cfg.Redis.Host),
				logger.Int("port", cfg.Redis.Port))
			defer redisBus.Close()
		}
	} else {
		log.Info("no Redis configuration provided; using in-process bus")
	}

	p := platform.New(cfg, db, bus, log)

	app := fiber.New(fiber.Config{
		AppName:               "Control Plane Service",
		DisableStartupMessage: true,
		ErrorHandler:          middleware.ErrorHandler(log),
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.CanonicalLoggerMiddleware(log))

	sweepSeconds := int(cfg.SweepInterval.Seconds())
	if sweepSeconds < 1 {
		sweepSeconds = 1
	}
	poller := poll.NewPoller(log)
	poller.RegisterSweepFunc("pending_tasks", func(ctx context.Context) error {
		_, err := p.Scheduler.SweepPending(ctx)
		return err
	}, poll.PollerConfig{PollIntervalSeconds: sweepSeconds})
	poller.RegisterSweepFunc("inactive_agents", func(ctx context.Context) error {
		_, err := p.Registry.SweepInactiveAgents(ctx)
		return err
	}, poll.PollerConfig{PollIntervalSeconds: sweepSeconds})

	d := deps.App{
		Fiber:      app,
		Database:   db,
		Logger:     log,
		Middleware: mid,
		Poller:     poller,
		Pub:        p.Bus,
	}

	handler.NewHandler(d, p, cfg)

	app.Get("/swagger/*", swagger.HandlerDefault)

	ctx, cancel := context.WithCancel(context.Background())
	gErr, gCtx := errgroup.WithContext(ctx)

	if err := poller.Start(ctx); err != nil {
		log.WithError(err).Fatal("failed to start sweeps")
	}

	gErr.Go(func() error {
		log.Info("control plane service is running", logger.String("address", cfg.ServerAddr))
		if err := app.Listen(cfg.ServerAddr); err != nil {
			cancel()
			return err
		}
		return nil
	})

	gErr.Go(func() error {
		<-gCtx.Done()

		if err := poller.Stop(); err != nil {
			log.WithError(err).Error("failed to stop poller")
		}

		if err := app.Shutdown(); err != nil {
			log.WithError(err).Error("failed to shutdown fiber app")
			return err
		}

		conn, err := db.DB()
		if err != nil {
			log.WithError(err).Error("failed to get database connection")
			return err
		}
		if err := conn.Close(); err != nil {
			log.WithError(err).Error("failed to close database")
			return err
		}

		return nil
	})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
		log.Info("listening for shutdown signals")
		<-sigChan
		log.Info("shutdown signal received")
		cancel()
	}()

	if err := gErr.Wait(); err != nil {
		log.WithError(err).Fatal("control plane service encountered an error")
	}

	log.Info("control plane service stopped gracefully")
}
