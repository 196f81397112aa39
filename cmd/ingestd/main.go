package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/doc-ingest/internal/app"
	"github.com/joseph-ayodele/doc-ingest/internal/common"
	"github.com/joseph-ayodele/doc-ingest/internal/core/async"
	"github.com/joseph-ayodele/doc-ingest/internal/export"
	"github.com/joseph-ayodele/doc-ingest/internal/ingest"
	repo "github.com/joseph-ayodele/doc-ingest/internal/repository"
	svc "github.com/joseph-ayodele/doc-ingest/internal/server"
)

func main() {
	cfg := common.LoadConfig()
	logger := common.NewLogger(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repo.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err, "driver", cfg.Database.Driver)
		os.Exit(1)
	}
	defer db.Close(logger)
	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}
	records := repo.NewRecordRepository(db, logger)

	coord, err := app.NewCoordinator(cfg, logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	queue := async.New(coord, logger,
		async.WithWorkers(cfg.Queue.Workers),
		async.WithQueueSize(cfg.Queue.Size),
		async.WithProcessTimeout(cfg.Queue.RunTimeout),
		async.WithSink(records),
	)
	go logCompletions(queue, logger)

	source := ingest.NewFSSource(logger)
	if cfg.Server.InboxDir != "" {
		if err := watchInbox(ctx, cfg.Server, source, queue, logger); err != nil {
			logger.Error("failed to start inbox watcher", "dir", cfg.Server.InboxDir, "error", err)
			os.Exit(1)
		}
	}

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(svc.LoggingInterceptor(logger)))

	ingestionService := svc.NewIngestionService(coord, logger,
		svc.WithStore(records),
		svc.WithExporter(export.NewService(records, logger)),
		svc.WithSource(source),
	)
	svc.Register(grpcServer, ingestionService)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(svc.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	logger.Info("ingestd listening", "addr", cfg.Server.GRPCAddr)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	healthServer.Shutdown()
	grpcServer.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	queue.Shutdown(shutdownCtx)
}

// watchInbox enqueues every supported file that shows up under the inbox.
func watchInbox(ctx context.Context, cfg common.ServerConfig, source *ingest.FSSource, queue *async.Queue, logger *slog.Logger) error {
	paths, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       []string{cfg.InboxDir},
		InitialScan: true,
		Debounce:    cfg.InboxDebounce,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	go func() {
		for err := range errs {
			logger.Warn("inbox.watch_error", "error", err)
		}
	}()
	go func() {
		for p := range paths {
			doc, err := source.Fetch(ctx, p)
			if err != nil {
				logger.Warn("inbox.fetch_failed", "path", p, "error", err)
				continue
			}
			if err := queue.Enqueue(ctx, doc); err != nil {
				logger.Warn("inbox.enqueue_failed", "path", p, "error", err)
			}
		}
	}()
	return nil
}

func logCompletions(queue *async.Queue, logger *slog.Logger) {
	for c := range queue.Completions() {
		if c.Err != nil {
			logger.Warn("ingestd.document.failed",
				"reference_id", c.ReferenceID,
				"code", common.CodeOf(c.Err),
				"retryable", common.IsTransient(c.Err),
			)
			continue
		}
		logger.Info("ingestd.document.done", "reference_id", c.ReferenceID, "source", c.Record.Source, "tags", c.Record.Tags)
	}
}
