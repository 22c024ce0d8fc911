package taskloop

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRenderSnapshotFullFits(t *testing.T) {
	snap := &mockSnapshotter{full: "<button>Buy</button>", reduced: "button Buy"}
	got := renderSnapshot(context.Background(), snap, 1000)
	if got != "<button>Buy</button>" {
		t.Errorf("got %q", got)
	}
}

func TestRenderSnapshotDegradesToReduced(t *testing.T) {
	snap := &mockSnapshotter{
		full:    strings.Repeat("verbose markup ", 500),
		reduced: "compact view",
	}
	got := renderSnapshot(context.Background(), snap, 50)
	if got != "compact view" {
		t.Errorf("got %q", got)
	}
}

func TestRenderSnapshotHardTruncates(t *testing.T) {
	snap := &mockSnapshotter{
		full:    strings.Repeat("verbose markup ", 500),
		reduced: strings.Repeat("still too big ", 500),
	}
	got := renderSnapshot(context.Background(), snap, 50)
	if !strings.Contains(got, "truncated") {
		t.Errorf("truncation notice missing: %q", got[:80])
	}
	if len(got) >= len(snap.reduced) {
		t.Error("not actually truncated")
	}
}

func TestRenderSnapshotError(t *testing.T) {
	snap := &mockSnapshotter{err: errors.New("browser gone")}
	got := renderSnapshot(context.Background(), snap, 100)
	if !strings.Contains(got, "unavailable") || !strings.Contains(got, "browser gone") {
		t.Errorf("got %q", got)
	}
}

func TestRenderSnapshotNilOrZeroBudget(t *testing.T) {
	if got := renderSnapshot(context.Background(), nil, 100); got != "" {
		t.Errorf("nil snapshotter: %q", got)
	}
	snap := &mockSnapshotter{full: "x"}
	if got := renderSnapshot(context.Background(), snap, 0); got != "" {
		t.Errorf("zero budget: %q", got)
	}
}

func TestFileSnapshotter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.txt")
	content := "<h1>Title</h1>\n\n\n<p>Body</p>\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewFileSnapshotter(path)
	full, err := s.Snapshot(context.Background(), 100, false)
	if err != nil {
		t.Fatal(err)
	}
	if full != content {
		t.Errorf("full = %q", full)
	}

	reduced, err := s.Snapshot(context.Background(), 100, true)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(reduced, "\n\n") {
		t.Errorf("reduced should drop blank lines: %q", reduced)
	}

	if _, err := NewFileSnapshotter(filepath.Join(t.TempDir(), "missing")).Snapshot(context.Background(), 100, false); err == nil {
		t.Error("missing file should error")
	}
}
