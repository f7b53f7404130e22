// Package toolrun executes external media tools as subprocesses with
// bounded stderr capture and structured results.
package toolrun

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"time"
)

const maxStderrBytes = 8 * 1024 // 8 KB tail of stderr kept for diagnostics

// Result is the structured outcome of executing a tool subprocess.
type Result struct {
	ExitCode   int
	StderrTail string
	Duration   time.Duration
}

// IsSuccess returns true when the subprocess exited cleanly.
func (r Result) IsSuccess() bool { return r.ExitCode == 0 }

// Resolve finds a usable tool binary. When preferred is set it must exist;
// otherwise the candidate names are tried on PATH in order.
func Resolve(preferred string, candidates ...string) (string, error) {
	if preferred != "" {
		if p, err := exec.LookPath(preferred); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("configured binary %q not found", preferred)
	}
	for _, name := range candidates {
		if p, err := exec.LookPath(name); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no binary found on PATH (tried %v)", candidates)
}

// Run executes bin with args, discarding stdout and keeping a bounded tail
// of stderr. A non-zero exit code is reported in the Result, not as an error.
func Run(ctx context.Context, logger *slog.Logger, bin string, args ...string) Result {
	start := time.Now()

	cmd := exec.CommandContext(ctx, bin, args...)

	var stderrBuf bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: maxStderrBytes}
	cmd.Stdout = io.Discard

	if logger != nil {
		logger.Debug("executing tool", "bin", bin, "args", args)
	}

	err := cmd.Run()
	elapsed := time.Since(start)

	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
			if stderrBuf.Len() == 0 {
				stderrBuf.WriteString(err.Error())
			}
		}
	}

	stderrTail := stderrBuf.String()

	if logger != nil {
		if exitCode != 0 {
			logger.Warn("tool exited non-zero",
				"bin", bin,
				"exit_code", exitCode,
				"duration_ms", elapsed.Milliseconds(),
				"stderr_tail", Truncate(stderrTail, 512),
			)
		} else {
			logger.Info("tool succeeded",
				"bin", bin,
				"duration_ms", elapsed.Milliseconds(),
			)
		}
	}

	return Result{ExitCode: exitCode, StderrTail: stderrTail, Duration: elapsed}
}

// Truncate keeps the last maxLen bytes of s, prefixing "..." when cut.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		// Keep only the tail
		b := lw.w.Bytes()
		lw.w.Reset()
		lw.w.Write(b[len(b)-lw.limit:])
	}
	return n, nil
}
