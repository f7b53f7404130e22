package retriever

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		stderr string
		want   Reason
	}{
		{"unsupported url", "ERROR: Unsupported URL: https://example.com/page", ReasonUnresolvableURL},
		{"invalid url", "ERROR: 'not a url' is not a valid URL.", ReasonUnresolvableURL},
		{"deleted video", "ERROR: Video unavailable", ReasonUnresolvableURL},
		{"webpage fetch failed", "ERROR: Unable to download webpage: HTTP Error 404", ReasonUnresolvableURL},
		{"forbidden", "ERROR: unable to download video data: HTTP Error 403: Forbidden", ReasonBlocked},
		{"merge failure", "ERROR: ffmpeg exited with code 1 while merging formats", ReasonMergeFailed},
		{"unknown", "ERROR: something else entirely", ReasonNoStream},
		{"empty", "", ReasonNoStream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.stderr); got != tt.want {
				t.Errorf("classify(%q) = %s, want %s", tt.stderr, got, tt.want)
			}
		})
	}
}

func TestNew_MissingBinary(t *testing.T) {
	_, err := New(Config{BinaryPath: "/nonexistent/yt-dlp-999"})
	if err == nil {
		t.Fatal("expected error for nonexistent binary")
	}
}

func TestError_Message(t *testing.T) {
	e := &Error{Reason: ReasonNoStream, Detail: "no extractable stream"}
	want := "retrieval failed (no_stream): no extractable stream"
	if e.Error() != want {
		t.Errorf("Error() = %q, want %q", e.Error(), want)
	}
}

func TestFetch_FailureLeavesNoPartialFile(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skipf("no sh on PATH: %v", err)
	}

	dest := filepath.Join(t.TempDir(), "video.mp4")

	// Simulate a retrieval tool that writes a partial file and then fails.
	if err := os.WriteFile(dest+".part", []byte("partial"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dest, []byte("partial"), 0644); err != nil {
		t.Fatal(err)
	}

	// sh rejects yt-dlp's flags and exits non-zero without touching dest.
	r := &SubprocessRetriever{cfg: Config{MaxRetries: 1}, bin: sh}

	_, err = r.Fetch(context.Background(), "https://example.com/v/1", dest)

	var retErr *Error
	if !errors.As(err, &retErr) {
		t.Fatalf("error type = %T, want *Error", err)
	}

	for _, path := range []string{dest, dest + ".part"} {
		if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
			t.Errorf("partial file %s left behind after failed fetch", path)
		}
	}
}

func TestFetch_NoOutputIsMergeFailure(t *testing.T) {
	truePath, err := exec.LookPath("true")
	if err != nil {
		t.Skipf("no true on PATH: %v", err)
	}

	// The tool exits 0 but never writes the destination file.
	r := &SubprocessRetriever{cfg: Config{MaxRetries: 1}, bin: truePath}

	_, err = r.Fetch(context.Background(), "https://example.com/v/2", filepath.Join(t.TempDir(), "video.mp4"))

	var retErr *Error
	if !errors.As(err, &retErr) {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if retErr.Reason != ReasonMergeFailed {
		t.Errorf("reason = %s, want %s", retErr.Reason, ReasonMergeFailed)
	}
}
