package segmenter

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		input   string
		want    Mode
		wantErr bool
	}{
		{"thorough", ModeThorough, false},
		{"adaptive", ModeAdaptive, false},
		{"", "", true},
		{"fast", "", true},
		{"Thorough", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestPrepareOutputDir_CreatesMissing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "frames", "nested")

	if err := PrepareOutputDir(dir); err != nil {
		t.Fatalf("PrepareOutputDir() error = %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("output dir not created: %v", err)
	}
}

func TestPrepareOutputDir_PurgesStaleFrames(t *testing.T) {
	dir := t.TempDir()

	stale := []string{"old-Scene-001-01.jpg", "old-Scene-002-01.jpg"}
	for _, name := range stale {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("stale"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	// Non-jpg files must survive the purge.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := PrepareOutputDir(dir); err != nil {
		t.Fatalf("PrepareOutputDir() error = %v", err)
	}

	for _, name := range stale {
		if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
			t.Errorf("stale frame %s survived purge", name)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "notes.txt")); err != nil {
		t.Errorf("non-jpg file removed by purge: %v", err)
	}
}

func TestPrepareOutputDir_NoAccumulationAcrossRuns(t *testing.T) {
	dir := t.TempDir()

	writeRun := func(names ...string) {
		if err := PrepareOutputDir(dir); err != nil {
			t.Fatalf("PrepareOutputDir() error = %v", err)
		}
		for _, name := range names {
			if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0644); err != nil {
				t.Fatal(err)
			}
		}
	}

	writeRun("a-Scene-001-01.jpg", "a-Scene-002-01.jpg", "a-Scene-003-01.jpg")
	writeRun("b-Scene-001-01.jpg", "b-Scene-002-01.jpg")

	frames, err := ListFrames(dir)
	if err != nil {
		t.Fatalf("ListFrames() error = %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("got %d frames after second run, want 2: %v", len(frames), frames)
	}
	for _, f := range frames {
		if filepath.Base(f)[0] != 'b' {
			t.Errorf("frame from first run leaked into second: %s", f)
		}
	}
}

func TestListFrames_SortedByFilename(t *testing.T) {
	dir := t.TempDir()

	// Written out of order on purpose.
	names := []string{
		"video-Scene-010-01.jpg",
		"video-Scene-001-01.jpg",
		"video-Scene-002-01.jpg",
	}
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0644); err != nil {
			t.Fatal(err)
		}
	}

	frames, err := ListFrames(dir)
	if err != nil {
		t.Fatalf("ListFrames() error = %v", err)
	}

	want := []string{
		"video-Scene-001-01.jpg",
		"video-Scene-002-01.jpg",
		"video-Scene-010-01.jpg",
	}
	if len(frames) != len(want) {
		t.Fatalf("got %d frames, want %d", len(frames), len(want))
	}
	for i, f := range frames {
		if filepath.Base(f) != want[i] {
			t.Errorf("frames[%d] = %s, want %s", i, filepath.Base(f), want[i])
		}
	}
}

func TestListFrames_IgnoresNonJpg(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"scene.jpg", "scene.png", "stats.csv"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.jpg"), 0755); err != nil {
		t.Fatal(err)
	}

	frames, err := ListFrames(dir)
	if err != nil {
		t.Fatalf("ListFrames() error = %v", err)
	}
	if len(frames) != 1 || filepath.Base(frames[0]) != "scene.jpg" {
		t.Errorf("ListFrames() = %v, want only scene.jpg", frames)
	}
}

func TestNew_MissingBinary(t *testing.T) {
	_, err := New(Config{BinaryPath: "/nonexistent/scenedetect999"})
	if err == nil {
		t.Fatal("expected error for nonexistent binary")
	}

	var segErr *Error
	if !errors.As(err, &segErr) {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if segErr.Reason != ReasonToolUnavailable {
		t.Errorf("reason = %s, want %s", segErr.Reason, ReasonToolUnavailable)
	}
}

func TestSegment_UnreadableInput(t *testing.T) {
	// The input check runs before the tool, so the binary is never invoked.
	s := &SubprocessSegmenter{cfg: Config{}, bin: "scenedetect"}

	_, err := s.Segment(t.Context(), filepath.Join(t.TempDir(), "missing.mp4"), t.TempDir(), ModeThorough)

	var segErr *Error
	if !errors.As(err, &segErr) {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if segErr.Reason != ReasonUnreadableInput {
		t.Errorf("reason = %s, want %s", segErr.Reason, ReasonUnreadableInput)
	}
}
