// Package retriever resolves a platform video URL to a single playable
// local file by driving the external yt-dlp tool as a subprocess.
package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/shotlist/shotlist-ingest/internal/toolrun"
)

// Reason classifies why a retrieval failed.
type Reason string

const (
	ReasonUnresolvableURL Reason = "unresolvable_url"
	ReasonBlocked         Reason = "blocked"
	ReasonNoStream        Reason = "no_stream"
	ReasonMergeFailed     Reason = "merge_failed"
)

// Error is a typed retrieval failure.
type Error struct {
	Reason Reason
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("retrieval failed (%s): %s", e.Reason, e.Detail)
}

// Retriever resolves a source URL to a local playable video file.
type Retriever interface {
	// Fetch downloads and merges the best video+audio streams for sourceURL
	// into a single mp4 at destPath and returns destPath.
	Fetch(ctx context.Context, sourceURL, destPath string) (string, error)
}

// Chrome desktop identity; the source platform blocks obvious non-browser clients.
const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.0.0 Safari/537.36"

// formatPolicy selects the best mp4 video plus m4a audio, falling back to
// the best single mp4 stream.
const formatPolicy = "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]"

// Config holds the subprocess retriever's configuration.
type Config struct {
	BinaryPath string        // path to yt-dlp; empty = auto-detect on PATH
	Timeout    time.Duration // wall-clock limit for one fetch including retries
	MaxRetries int           // internal yt-dlp retry count for transient network errors
	Logger     *slog.Logger
}

// DefaultConfig returns production-ready defaults.
func DefaultConfig(logger *slog.Logger) Config {
	return Config{
		BinaryPath: "",
		Timeout:    10 * time.Minute,
		MaxRetries: 3,
		Logger:     logger,
	}
}

// SubprocessRetriever is the production implementation of Retriever.
type SubprocessRetriever struct {
	cfg Config
	bin string // resolved yt-dlp path
}

// New creates a SubprocessRetriever, resolving the yt-dlp binary path.
func New(cfg Config) (*SubprocessRetriever, error) {
	bin, err := toolrun.Resolve(cfg.BinaryPath, "yt-dlp")
	if err != nil {
		return nil, fmt.Errorf("cannot locate yt-dlp: %w", err)
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &SubprocessRetriever{cfg: cfg, bin: bin}, nil
}

func (r *SubprocessRetriever) Fetch(ctx context.Context, sourceURL, destPath string) (string, error) {
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	args := []string{
		"--format", formatPolicy,
		"--merge-output-format", "mp4",
		"--output", destPath,
		"--no-playlist",
		"--no-warnings",
		"--retries", fmt.Sprintf("%d", r.cfg.MaxRetries),
		"--user-agent", browserUserAgent,
		sourceURL,
	}

	result := toolrun.Run(ctx, r.cfg.Logger, r.bin, args...)
	if !result.IsSuccess() {
		// yt-dlp leaves partial .part files and sometimes the merge target
		// behind on failure; the contract is no file at destPath.
		os.Remove(destPath)
		os.Remove(destPath + ".part")
		return "", &Error{
			Reason: classify(result.StderrTail),
			Detail: toolrun.Truncate(result.StderrTail, 512),
		}
	}

	if _, err := os.Stat(destPath); err != nil {
		return "", &Error{
			Reason: ReasonMergeFailed,
			Detail: fmt.Sprintf("tool exited 0 but no output at destination: %v", err),
		}
	}

	return destPath, nil
}

// classify maps yt-dlp stderr to a failure reason. The tool does not expose
// machine-readable error codes, so this keys off its stable message prefixes.
func classify(stderr string) Reason {
	s := strings.ToLower(stderr)

	switch {
	case strings.Contains(s, "unsupported url"),
		strings.Contains(s, "is not a valid url"),
		strings.Contains(s, "unable to download webpage"),
		strings.Contains(s, "video unavailable"):
		return ReasonUnresolvableURL
	case strings.Contains(s, "http error 403"),
		strings.Contains(s, "access denied"),
		strings.Contains(s, "blocked"):
		return ReasonBlocked
	case strings.Contains(s, "merging"),
		strings.Contains(s, "ffmpeg"):
		return ReasonMergeFailed
	default:
		return ReasonNoStream
	}
}
