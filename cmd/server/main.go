package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Oniqq60/task_system_control/internal/auth"
	"github.com/Oniqq60/task_system_control/internal/cfg"
	"github.com/Oniqq60/task_system_control/internal/database"
	"github.com/Oniqq60/task_system_control/internal/document"
	"github.com/Oniqq60/task_system_control/internal/mailer"
	"github.com/Oniqq60/task_system_control/internal/middleware"
	"github.com/Oniqq60/task_system_control/internal/notification"
	"github.com/Oniqq60/task_system_control/internal/routers"
	"github.com/Oniqq60/task_system_control/internal/scheduler"
	"github.com/Oniqq60/task_system_control/internal/task"
	"github.com/Oniqq60/task_system_control/internal/user"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}

func run() error {
	conf, err := cfg.Load()
	if err != nil {
		return err
	}
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(conf)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("access sql DB: %w", err)
	}
	defer sqlDB.Close()
	if err := database.Migrate(db); err != nil {
		return err
	}

	checks := map[string]routers.HealthCheck{"database": sqlDB.PingContext}

	var rdb *redis.Client
	if conf.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     conf.RedisAddr,
			Password: conf.RedisPassword,
			DB:       0,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rdb.Close()
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	} else {
		logger.Println("REDIS_ADDR not set: logout blacklist and login throttling disabled")
	}

	sender := mailer.NewSender(mailer.SMTPConfig{
		Host:     conf.SMTPHost,
		Port:     conf.SMTPPort,
		Username: conf.SMTPUsername,
		Password: conf.SMTPPassword,
		From:     conf.MailFrom,
	}, logger)
	userRepo := user.NewRepository(db)

	// без Kafka события обрабатываются в процессе
	var publisher notification.Publisher
	if len(conf.KafkaBrokers) > 0 {
		publisher = notification.NewKafkaPublisher(conf.KafkaBrokers, conf.KafkaTopic)
		logger.Printf("publishing task events to kafka topic %s", conf.KafkaTopic)
	} else {
		handler := notification.NewEventHandler(notification.NewMailNotifier(sender), userRepo, logger)
		publisher = notification.NewDirectPublisher(handler)
	}
	defer publisher.Close()

	storage, err := newStorage(ctx, conf)
	if err != nil {
		return err
	}

	var docRepo document.Repository
	if conf.MongoURI != "" {
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(conf.MongoURI))
		if err != nil {
			return fmt.Errorf("connect mongo: %w", err)
		}
		defer func() {
			if err := client.Disconnect(context.Background()); err != nil {
				logger.Printf("mongo disconnect error: %v", err)
			}
		}()
		coll := client.Database(conf.MongoDatabase).Collection(conf.MongoCollection)
		if err := document.EnsureIndexes(ctx, coll); err != nil {
			return fmt.Errorf("mongo indexes: %w", err)
		}
		docRepo = document.NewMongoRepository(coll)
		checks["mongo"] = func(ctx context.Context) error { return client.Ping(ctx, nil) }
	} else {
		docRepo = document.NewRepository(db)
	}

	userSvc := user.NewService(userRepo, sender, conf.BaseURL+"/auth/login", logger)
	authSvc := auth.NewService(userRepo, auth.NewTokenRepository(db), sender, auth.Options{
		JWTSecret:     []byte(conf.JWTSecret),
		JWTTTL:        conf.JWTTTL,
		ResetTokenTTL: conf.ResetTokenTTL,
		BaseURL:       conf.BaseURL,
	}, logger)
	authn := auth.NewAuthenticator([]byte(conf.JWTSecret), rdb, userRepo)

	taskSvc := task.NewService(task.NewRepository(db), userRepo, publisher, document.NewCleaner(docRepo, storage, logger), logger)
	defer taskSvc.Wait()
	docSvc := document.NewService(docRepo, storage, taskSvc, document.Options{
		MaxFileSize: conf.MaxFileSize,
		BaseURL:     conf.BaseURL,
	}, logger)

	clientIPs, err := middleware.NewClientIPResolver(conf.TrustedProxies)
	if err != nil {
		return err
	}
	rateLimiter := middleware.NewRateLimiter(conf.RateLimitRequests, conf.RateLimitWindow, clientIPs)
	cors := middleware.NewCORS(middleware.CORSOptions{
		AllowedOrigins:   conf.AllowedOrigins,
		AllowCredentials: true,
	})
	router, err := routers.New(routers.Dependencies{
		Auth:      auth.NewHandler(authSvc, authn, rdb, clientIPs, conf.HTTPSEnabled, logger),
		Users:     user.NewHandler(userSvc),
		Tasks:     task.NewHandler(taskSvc),
		Documents: document.NewHandler(docSvc, conf.MaxFileSize, logger),
		Authn:     authn.Middleware,
		Health:    checks,
		Middleware: []func(http.Handler) http.Handler{
			middleware.Recover(logger),
			middleware.RequestLogger(logger),
			middleware.SecurityHeaders,
			cors,
			rateLimiter.Middleware,
			middleware.MaxBody(conf.MaxFileSize + 1<<20),
		},
	})
	if err != nil {
		return err
	}

	sched := scheduler.New(logger, time.Minute)
	if err := sched.AddJob(conf.ResetSweepSpec, "expire-reset-tokens", func(ctx context.Context) error {
		n, err := authSvc.ExpireStale(ctx)
		if err == nil && n > 0 {
			logger.Printf("expired %d reset tokens", n)
		}
		return err
	}); err != nil {
		return err
	}
	sched.Start()

	httpServer := &http.Server{
		Addr:         ":" + conf.HTTPPort,
		Handler:      router.Handler(),
		ReadTimeout:  conf.ReadTimeout,
		WriteTimeout: conf.WriteTimeout,
		IdleTimeout:  conf.IdleTimeout,
	}

	grpcListener, err := net.Listen("tcp", ":"+conf.GRPCPort)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	errCh := make(chan error, 2)

	go func() {
		logger.Printf("HTTP server listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	go func() {
		logger.Printf("gRPC health server listening on %s", grpcListener.Addr().String())
		if err := grpcServer.Serve(grpcListener); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Println("shutdown signal received")
	case runErr = <-errCh:
		logger.Printf("server error: %v", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), conf.ShutdownGracePeriod)
	defer cancel()

	healthServer.Shutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("http shutdown error: %v", err)
	}
	grpcServer.GracefulStop()
	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Printf("scheduler stop error: %v", err)
	}
	logger.Println("server stopped")
	return runErr
}

func newStorage(ctx context.Context, conf cfg.Config) (document.ObjectStorage, error) {
	switch conf.StorageBackend {
	case "minio":
		storage, err := document.NewMinioStorage(ctx, conf.MinioEndpoint, conf.MinioAccessKey, conf.MinioSecretKey, conf.MinioUseSSL, conf.MinioBucket)
		if err != nil {
			return nil, fmt.Errorf("init minio: %w", err)
		}
		return storage, nil
	default:
		return document.NewLocalStorage(conf.UploadDir)
	}
}
