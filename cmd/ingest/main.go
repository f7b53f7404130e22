// Command ingest processes one short-form video end-to-end: it downloads the
// source, extracts one representative frame per scene, and commits the frames
// plus an ordered manifest to object storage under a fresh project ID.
//
// Usage:
//
//	ingest [-mode thorough|adaptive] [-dry-run] <url>
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shotlist/shotlist-ingest/internal/assembler"
	"github.com/shotlist/shotlist-ingest/internal/config"
	"github.com/shotlist/shotlist-ingest/internal/ledger"
	"github.com/shotlist/shotlist-ingest/internal/logging"
	"github.com/shotlist/shotlist-ingest/internal/retriever"
	"github.com/shotlist/shotlist-ingest/internal/segmenter"
	"github.com/shotlist/shotlist-ingest/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ingest: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	modeFlag := flag.String("mode", string(segmenter.ModeThorough), "scene detection mode: thorough or adaptive")
	dryRun := flag.Bool("dry-run", false, "keep results in memory instead of uploading")
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return fmt.Errorf("expected exactly one source URL, got %d arguments", flag.NArg())
	}
	sourceURL := flag.Arg(0)

	mode, err := segmenter.ParseMode(*modeFlag)
	if err != nil {
		return err
	}

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel(), cfg.LogFormat())
	logger.Info("starting shotlist ingest", "version", config.Version, "mode", string(mode))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ret, err := retriever.New(retriever.Config{
		BinaryPath: cfg.YtdlpPath(),
		Timeout:    cfg.RetrieveTimeout(),
		MaxRetries: 3,
		Logger:     logging.WithComponent(logger, "retriever"),
	})
	if err != nil {
		return err
	}

	seg, err := segmenter.New(segmenter.Config{
		BinaryPath: cfg.ScenedetectPath(),
		Timeout:    cfg.SegmentTimeout(),
		Logger:     logging.WithComponent(logger, "segmenter"),
	})
	if err != nil {
		return err
	}

	var blobs store.BlobStore
	if *dryRun {
		logger.Info("dry run: uploads go to an in-memory store")
		blobs = store.NewMem()
	} else {
		gcs, err := store.NewGCS(ctx, store.GCSConfig{
			BucketName: cfg.Bucket(),
			Logger:     logging.WithComponent(logger, "store"),
		})
		if err != nil {
			return err
		}
		blobs = gcs
	}

	runs, err := ledger.Open(cfg.DBPath(), logging.WithComponent(logger, "ledger"))
	if err != nil {
		return fmt.Errorf("failed to open run ledger: %w", err)
	}
	defer runs.Close()

	asm := assembler.New(ret, seg, blobs, assembler.Config{
		RunTimeout:        cfg.RunTimeout(),
		UploadConcurrency: cfg.UploadConcurrency(),
		Observer:          &ledgerObserver{runs: runs},
		Logger:            logging.WithComponent(logger, "assembler"),
	})

	projectID, err := asm.Process(ctx, sourceURL, mode)
	if err != nil {
		return err
	}

	fmt.Println(projectID)
	return nil
}

// ledgerObserver records run outcomes in the local ledger. Ledger failures
// are never fatal to the run, and writes use a fresh context so a timed-out
// run still gets its failure recorded.
type ledgerObserver struct {
	runs *ledger.Ledger
}

func (o *ledgerObserver) RunStarted(_ context.Context, projectID, sourceURL, mode string) {
	_ = o.runs.Begin(context.Background(), projectID, sourceURL, mode)
}

func (o *ledgerObserver) RunCompleted(_ context.Context, projectID string, frameCount int) {
	_ = o.runs.Complete(context.Background(), projectID, frameCount)
}

func (o *ledgerObserver) RunFailed(_ context.Context, projectID string, err error) {
	_ = o.runs.Fail(context.Background(), projectID, err.Error())
}
