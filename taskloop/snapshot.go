package taskloop

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Snapshotter produces a textual snapshot of the environment the tools
// act on. sizeHint is a token budget the snapshot should aim for; reduced
// requests a degraded snapshot with non-essential detail dropped.
type Snapshotter interface {
	Snapshot(ctx context.Context, sizeHint int, reduced bool) (string, error)
}

const snapshotTruncationNotice = "\n[browser state truncated to fit the context budget]"

// renderSnapshot obtains a snapshot sized to budgetTokens, applying
// two-stage degradation: drop detail first, then hard-truncate with an
// explicit notice.
func renderSnapshot(ctx context.Context, snap Snapshotter, budgetTokens int) string {
	if snap == nil || budgetTokens <= 0 {
		return ""
	}

	full, err := snap.Snapshot(ctx, budgetTokens, false)
	if err != nil {
		return fmt.Sprintf("[browser state unavailable: %v]", err)
	}
	if CountTokens(full) <= budgetTokens {
		return full
	}

	reduced, err := snap.Snapshot(ctx, budgetTokens, true)
	if err != nil {
		reduced = full
	}
	if CountTokens(reduced) <= budgetTokens {
		return reduced
	}

	return TruncateOutput(reduced, budgetTokens*4, TruncateTail) + snapshotTruncationNotice
}

// FileSnapshotter reads the snapshot from a file on every call. It backs
// the CLI harness and tests; production hosts implement Snapshotter over
// a live browser.
type FileSnapshotter struct {
	Path string
}

// NewFileSnapshotter creates a FileSnapshotter for path.
func NewFileSnapshotter(path string) *FileSnapshotter {
	return &FileSnapshotter{Path: path}
}

// Snapshot reads the file. The reduced form keeps only non-blank lines,
// capped to a line count derived from the size hint.
func (s *FileSnapshotter) Snapshot(_ context.Context, sizeHint int, reduced bool) (string, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return "", fmt.Errorf("read snapshot file: %w", err)
	}
	content := string(data)
	if !reduced {
		return content, nil
	}

	var kept []string
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) != "" {
			kept = append(kept, line)
		}
	}
	maxLines := sizeHint / 8
	if maxLines < 10 {
		maxLines = 10
	}
	return TruncateLines(strings.Join(kept, "\n"), maxLines), nil
}
