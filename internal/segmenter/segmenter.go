// Package segmenter partitions a local video into scenes and saves one
// representative frame per scene, delegating detection to the external
// scenedetect CLI.
package segmenter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shotlist/shotlist-ingest/internal/toolrun"
)

// Mode selects the scene-boundary detection algorithm.
type Mode string

const (
	// ModeThorough uses content-based detection: higher recall, slower.
	ModeThorough Mode = "thorough"
	// ModeAdaptive uses motion-adaptive detection: faster, coarser.
	ModeAdaptive Mode = "adaptive"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeThorough, ModeAdaptive:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown segmentation mode %q (want thorough or adaptive)", s)
}

// Reason classifies why segmentation failed.
type Reason string

const (
	ReasonToolUnavailable Reason = "tool_unavailable"
	ReasonNonzeroExit     Reason = "nonzero_exit"
	ReasonUnreadableInput Reason = "unreadable_input"
)

// Error is a typed segmentation failure.
type Error struct {
	Reason Reason
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("segmentation failed (%s): %s", e.Reason, e.Detail)
}

// Segmenter materialises one representative frame per detected scene.
type Segmenter interface {
	// Segment writes one jpg per scene into outDir and returns the image
	// paths ordered by scene occurrence in the source video.
	Segment(ctx context.Context, videoPath, outDir string, mode Mode) ([]string, error)
}

// Config holds the subprocess segmenter's configuration.
type Config struct {
	BinaryPath string        // path to scenedetect; empty = auto-detect on PATH
	Timeout    time.Duration // wall-clock limit for one segmentation
	Logger     *slog.Logger
}

// DefaultConfig returns production-ready defaults.
func DefaultConfig(logger *slog.Logger) Config {
	return Config{
		BinaryPath: "",
		Timeout:    5 * time.Minute,
		Logger:     logger,
	}
}

// SubprocessSegmenter is the production implementation of Segmenter.
type SubprocessSegmenter struct {
	cfg Config
	bin string // resolved scenedetect path
}

// New creates a SubprocessSegmenter, resolving the scenedetect binary path.
func New(cfg Config) (*SubprocessSegmenter, error) {
	bin, err := toolrun.Resolve(cfg.BinaryPath, "scenedetect")
	if err != nil {
		return nil, &Error{Reason: ReasonToolUnavailable, Detail: err.Error()}
	}
	return &SubprocessSegmenter{cfg: cfg, bin: bin}, nil
}

func (s *SubprocessSegmenter) Segment(ctx context.Context, videoPath, outDir string, mode Mode) ([]string, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return nil, &Error{Reason: ReasonUnreadableInput, Detail: err.Error()}
	}

	if err := PrepareOutputDir(outDir); err != nil {
		return nil, &Error{Reason: ReasonUnreadableInput, Detail: err.Error()}
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	detector := "detect-content"
	if mode == ModeAdaptive {
		detector = "detect-adaptive"
	}

	result := toolrun.Run(ctx, s.cfg.Logger, s.bin,
		"-i", videoPath,
		detector,
		"save-images",
		"-o", outDir,
	)
	if !result.IsSuccess() {
		return nil, &Error{
			Reason: ReasonNonzeroExit,
			Detail: fmt.Sprintf("scenedetect exited %d: %s",
				result.ExitCode, toolrun.Truncate(result.StderrTail, 512)),
		}
	}

	frames, err := ListFrames(outDir)
	if err != nil {
		return nil, &Error{Reason: ReasonNonzeroExit, Detail: err.Error()}
	}

	if s.cfg.Logger != nil {
		s.cfg.Logger.Info("segmentation complete",
			"mode", string(mode),
			"scene_count", len(frames),
		)
	}

	return frames, nil
}

// PrepareOutputDir creates outDir if absent and purges any jpg files left
// over from a prior run, so the directory reflects only the current run.
func PrepareOutputDir(outDir string) error {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("cannot create output dir: %w", err)
	}

	stale, err := filepath.Glob(filepath.Join(outDir, "*.jpg"))
	if err != nil {
		return err
	}
	for _, path := range stale {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("cannot purge stale frame %s: %w", filepath.Base(path), err)
		}
	}
	return nil
}

// ListFrames returns the jpg files in dir sorted by filename. scenedetect
// numbers saved images by scene, so lexicographic filename order is
// temporal scene order.
func ListFrames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot list frames: %w", err)
	}

	var frames []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".jpg") {
			continue
		}
		frames = append(frames, filepath.Join(dir, e.Name()))
	}
	sort.Strings(frames)
	return frames, nil
}
