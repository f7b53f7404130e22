// Package assembler orchestrates one end-to-end ingest run: retrieve the
// source video, segment it into scene frames, and commit the frames plus an
// ordered manifest to the blob store under a fresh project ID.
package assembler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/shotlist/shotlist-ingest/internal/retriever"
	"github.com/shotlist/shotlist-ingest/internal/segmenter"
	"github.com/shotlist/shotlist-ingest/internal/store"
)

const (
	videoFilename = "video.mp4"
	framesSubdir  = "scene_images"

	// Store layout. Readers treat the manifest's presence as the sole
	// completeness marker for a project.
	frameKeyPrefix   = "reference_scene_images"
	manifestFilename = "file_list.txt"
)

// WorkspaceError means the run's temporary workspace could not be created.
// It surfaces before any network activity.
type WorkspaceError struct {
	Err error
}

func (e *WorkspaceError) Error() string {
	return fmt.Sprintf("cannot acquire workspace: %v", e.Err)
}

func (e *WorkspaceError) Unwrap() error { return e.Err }

// TimeoutError means the run exceeded its overall wall-clock budget.
type TimeoutError struct {
	Stage string
	Limit time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("run exceeded %s during %s", e.Limit, e.Stage)
}

// Observer receives run lifecycle notifications, keyed by project ID. The
// run ledger hangs off this; observer failures never affect the run itself.
type Observer interface {
	RunStarted(ctx context.Context, projectID, sourceURL, mode string)
	RunCompleted(ctx context.Context, projectID string, frameCount int)
	RunFailed(ctx context.Context, projectID string, err error)
}

type noopObserver struct{}

func (noopObserver) RunStarted(context.Context, string, string, string) {}
func (noopObserver) RunCompleted(context.Context, string, int)          {}
func (noopObserver) RunFailed(context.Context, string, error)           {}

// Config holds the assembler's configuration.
type Config struct {
	RunTimeout        time.Duration // overall wall-clock limit per run; 0 = unlimited
	UploadConcurrency int           // parallel frame uploads; <=1 = sequential
	Observer          Observer      // optional run lifecycle hook
	Logger            *slog.Logger
}

// Assembler runs the retrieve -> segment -> upload pipeline. Collaborators
// are injected so the core sequencing is testable without the real tools or
// store.
type Assembler struct {
	ret    retriever.Retriever
	seg    segmenter.Segmenter
	blobs  store.BlobStore
	cfg    Config
	logger *slog.Logger
}

// New creates an Assembler.
func New(ret retriever.Retriever, seg segmenter.Segmenter, blobs store.BlobStore, cfg Config) *Assembler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.UploadConcurrency <= 0 {
		cfg.UploadConcurrency = 1
	}
	if cfg.Observer == nil {
		cfg.Observer = noopObserver{}
	}
	return &Assembler{ret: ret, seg: seg, blobs: blobs, cfg: cfg, logger: logger}
}

// Process ingests one video end-to-end and returns the minted project ID.
// On failure the error identifies the failing stage; frames already uploaded
// are left in place but the manifest is withheld, so readers never see the
// project as complete.
func (a *Assembler) Process(ctx context.Context, sourceURL string, mode segmenter.Mode) (string, error) {
	if a.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.RunTimeout)
		defer cancel()
	}

	projectID := uuid.NewString()
	logger := a.logger.With("project_id", projectID)

	workspace, err := os.MkdirTemp("", "shotlist-*")
	if err != nil {
		return "", &WorkspaceError{Err: err}
	}
	defer func() {
		if err := os.RemoveAll(workspace); err != nil {
			logger.Warn("workspace cleanup failed", "path", workspace, "error", err)
		}
	}()

	logger.Info("ingest run started", "mode", string(mode))
	a.cfg.Observer.RunStarted(ctx, projectID, sourceURL, string(mode))

	videoPath := filepath.Join(workspace, videoFilename)
	if _, err := a.ret.Fetch(ctx, sourceURL, videoPath); err != nil {
		return "", a.stageErr(ctx, projectID, "retrieve", err)
	}

	framesDir := filepath.Join(workspace, framesSubdir)
	frames, err := a.seg.Segment(ctx, videoPath, framesDir, mode)
	if err != nil {
		return "", a.stageErr(ctx, projectID, "segment", err)
	}
	if len(frames) == 0 {
		err := &segmenter.Error{
			Reason: segmenter.ReasonNonzeroExit,
			Detail: "segmentation produced no frames",
		}
		return "", a.stageErr(ctx, projectID, "segment", err)
	}

	keys, err := a.uploadFrames(ctx, projectID, frames)
	if err != nil {
		return "", a.stageErr(ctx, projectID, "upload", err)
	}

	if err := a.uploadManifest(ctx, workspace, projectID, keys); err != nil {
		return "", a.stageErr(ctx, projectID, "manifest", err)
	}

	logger.Info("ingest run complete", "scene_count", len(keys))
	a.cfg.Observer.RunCompleted(ctx, projectID, len(keys))
	return projectID, nil
}

// uploadFrames commits each frame under {projectID}/reference_scene_images/
// and returns the keys in scene order. Uploads run in a bounded pool; the
// first failure cancels the rest.
func (a *Assembler) uploadFrames(ctx context.Context, projectID string, frames []string) ([]string, error) {
	keys := make([]string, len(frames))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.UploadConcurrency)

	for i, framePath := range frames {
		key := fmt.Sprintf("%s/%s/%s", projectID, frameKeyPrefix, filepath.Base(framePath))
		keys[i] = key

		g.Go(func() error {
			return a.blobs.Put(gctx, key, framePath)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return keys, nil
}

// uploadManifest writes the ordered key list to the workspace and commits it
// at {projectID}/file_list.txt. It must only run after every frame upload
// has been confirmed.
func (a *Assembler) uploadManifest(ctx context.Context, workspace, projectID string, keys []string) error {
	manifestPath := filepath.Join(workspace, manifestFilename)
	content := strings.Join(keys, "\n") + "\n"

	if err := os.WriteFile(manifestPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("cannot write manifest: %w", err)
	}

	key := fmt.Sprintf("%s/%s", projectID, manifestFilename)
	return a.blobs.Put(ctx, key, manifestPath)
}

// stageErr maps a context deadline hit into a TimeoutError; other errors
// propagate unchanged so callers can distinguish the failing stage by type.
func (a *Assembler) stageErr(ctx context.Context, projectID, stage string, err error) error {
	if a.cfg.RunTimeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		a.logger.Warn("run timed out", "stage", stage)
		err = &TimeoutError{Stage: stage, Limit: a.cfg.RunTimeout}
	} else {
		a.logger.Error("ingest stage failed", "stage", stage, "error", err)
	}
	a.cfg.Observer.RunFailed(ctx, projectID, err)
	return err
}
