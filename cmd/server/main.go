package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/PaulBabatuyi/files-manager/internal/config"
	"github.com/PaulBabatuyi/files-manager/internal/database"
	"github.com/PaulBabatuyi/files-manager/internal/kv"
	"github.com/PaulBabatuyi/files-manager/internal/middleware"
	"github.com/PaulBabatuyi/files-manager/internal/observability"
	"github.com/PaulBabatuyi/files-manager/internal/queue"
	"github.com/PaulBabatuyi/files-manager/internal/server"
	"github.com/PaulBabatuyi/files-manager/internal/service"
	"github.com/PaulBabatuyi/files-manager/internal/session"
	"github.com/PaulBabatuyi/files-manager/internal/storage"
	"github.com/PaulBabatuyi/files-manager/internal/worker"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	logger, err := observability.InitLogger(cfg.Dev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	traceOut := io.Discard
	if cfg.Dev {
		traceOut = os.Stdout
	}
	tp, err := observability.InitTracerProvider(ctx, traceOut, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		observability.ShutdownTracerProvider(shutdownCtx, tp, logger)
	}()

	metrics, err := observability.InitMetrics()
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	metrics.StartMetricsServer(ctx, cfg.MetricsPort, logger)

	store, err := openKV(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	fs, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}

	q := queue.New(queue.Options{
		MaxAttempts: cfg.QueueMaxAttempts,
		BackoffBase: cfg.QueueBackoffBase,
		Observer:    metrics,
		Logger:      logger.Named("queue"),
	})
	defer q.Close()

	if err := worker.Register(q,
		worker.Config{
			ThumbnailConcurrency: cfg.ThumbnailConcurrency,
			WelcomeConcurrency:   cfg.WelcomeConcurrency,
		},
		worker.NewThumbnailWorker(db, fs, metrics, logger),
		worker.NewWelcomeWorker(db, logger),
	); err != nil {
		return err
	}

	sessions := session.NewStore(store, cfg.SessionTTL)
	api := server.New(server.Options{
		Files:   service.NewFileService(db, fs, q, logger),
		Users:   service.NewUserService(db, sessions, q, logger),
		App:     service.NewAppService(store, db),
		Logger:  logger,
		Metrics: metrics,
	})

	if !cfg.Dev {
		gin.SetMode(gin.ReleaseMode)
	}
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvMetrics := metrics.GetServerMetrics()
	health := server.NewHealthServer(logger, cfg.HealthInterval,
		map[string]service.Pinger{"kv": store, "db": db},
		grpc.ChainUnaryInterceptor(
			srvMetrics.UnaryServerInterceptor(),
			middleware.UnaryLoggingInterceptor(logger),
		),
		grpc.ChainStreamInterceptor(
			srvMetrics.StreamServerInterceptor(),
			middleware.StreamLoggingInterceptor(logger),
		),
		observability.GRPCStatsHandler(tp),
	)
	srvMetrics.InitializeMetrics(health.GRPCServer())

	healthLis, err := net.Listen("tcp", cfg.HealthAddr)
	if err != nil {
		return fmt.Errorf("listen health: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return q.Run(gctx)
	})

	g.Go(func() error {
		return health.Serve(gctx, healthLis)
	})

	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func openKV(cfg *config.Config) (kv.Store, error) {
	if cfg.KVBackend == "sqlite" {
		s, err := kv.NewSQLiteStore(cfg.SQLitePath, nil)
		if err != nil {
			return nil, fmt.Errorf("open sqlite kv: %w", err)
		}
		return s, nil
	}
	return kv.NewMemoryStore(nil), nil
}

func openDatabase(ctx context.Context, cfg *config.Config) (database.Store, error) {
	if cfg.DatabaseDriver == "memory" {
		return database.NewMemoryDB(), nil
	}
	db, err := database.NewPostgresDB(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func openStorage(ctx context.Context, cfg *config.Config) (storage.Filesystem, error) {
	if cfg.StorageBackend == "s3" {
		s, err := storage.NewS3Storage(ctx, storage.S3Config{
			AccessKey:    cfg.S3.AccessKey,
			SecretKey:    cfg.S3.SecretKey,
			Bucket:       cfg.S3.Bucket,
			Region:       cfg.S3.Region,
			BaseEndpoint: cfg.S3.BaseEndpoint,
			Prefix:       cfg.S3.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("open s3 storage: %w", err)
		}
		return s, nil
	}
	fs, err := storage.NewFilesystemStorage(cfg.FolderPath)
	if err != nil {
		return nil, fmt.Errorf("open local storage: %w", err)
	}
	return fs, nil
}
