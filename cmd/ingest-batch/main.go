package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joseph-ayodele/doc-ingest/internal/app"
	"github.com/joseph-ayodele/doc-ingest/internal/common"
	"github.com/joseph-ayodele/doc-ingest/internal/core/async"
	"github.com/joseph-ayodele/doc-ingest/internal/entity"
	"github.com/joseph-ayodele/doc-ingest/internal/export"
	"github.com/joseph-ayodele/doc-ingest/internal/ingest"
	repo "github.com/joseph-ayodele/doc-ingest/internal/repository"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func parseDate(flagName, s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		printError("Error: invalid --%s date format, use YYYY-MM-DD: %v\n", flagName, err)
		os.Exit(1)
	}
	return &t
}

func main() {
	var (
		inmem      = flag.Bool("inmem", false, "use in-memory SQLite database")
		dir        = flag.String("dir", "", "directory to process documents from (required)")
		out        = flag.String("out", "", "output XLSX file path (optional, defaults to parent directory)")
		fromStr    = flag.String("from", "", "from date YYYY-MM-DD")
		toStr      = flag.String("to", "", "to date YYYY-MM-DD")
		skipHidden = flag.Bool("skip-hidden", true, "skip hidden files and folders")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(*dir), "records.xlsx")
	}
	from, to := parseDate("from", *fromStr), parseDate("to", *toStr)

	cfg := common.LoadConfig()
	if *inmem {
		cfg.Database.Driver = repo.DriverSQLite
		cfg.Database.DSN = ":memory:"
	}
	logger := common.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repo.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
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

	// collect completions while the walk keeps enqueuing
	type tally struct{ succeeded, failed, transient int }
	done := make(chan tally, 1)
	go func() {
		var t tally
		for c := range queue.Completions() {
			switch {
			case c.Err == nil:
				t.succeeded++
			case common.IsTransient(c.Err):
				t.transient++
				t.failed++
			default:
				t.failed++
			}
		}
		done <- t
	}()

	logger.Info("starting ingestion", "dir", *dir)
	source := ingest.NewFSSource(logger)
	_, stats, err := source.Walk(ctx, *dir, *skipHidden, func(ctx context.Context, doc entity.RawDocument) error {
		return queue.Enqueue(ctx, doc)
	})
	if err != nil {
		logger.Error("failed to walk directory", "error", err)
	}
	queue.Shutdown(context.Background())
	result := <-done

	logger.Info("exporting to XLSX", "output", *out)
	xlsxBytes, err := export.NewService(records, logger).ExportRecordsXLSX(ctx, from, to)
	if err != nil {
		logger.Error("failed to export records", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, xlsxBytes, 0o644); err != nil {
		logger.Error("failed to write output file", "error", err)
		os.Exit(1)
	}

	logger.Info("batch processing complete",
		"matched", stats.Matched,
		"enqueued", stats.Succeeded,
		"succeeded", result.succeeded,
		"failed", result.failed,
		"retryable", result.transient,
		"output_file", *out)

	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Documents found: %d\n", stats.Matched)
	fmt.Printf("- Succeeded: %d\n", result.succeeded)
	fmt.Printf("- Failed: %d (%d retryable)\n", result.failed, result.transient)
	fmt.Printf("- Output: %s\n", *out)
}
