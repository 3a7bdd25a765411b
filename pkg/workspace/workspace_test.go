package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestAcquireCreatesAndCleansUpDirectory(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()

	ws, cleanup, err := Acquire(ctx, "feature-x", WithBaseDir(base))
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	if _, err := os.Stat(ws.Path); err != nil {
		t.Fatalf("expected workspace directory to exist: %v", err)
	}

	wantPrefix := filepath.Join(base, "feature-x", "rebase-")
	if len(ws.Path) <= len(wantPrefix) || ws.Path[:len(wantPrefix)] != wantPrefix {
		t.Errorf("workspace path %q does not have prefix %q", ws.Path, wantPrefix)
	}

	cleanup()

	if _, err := os.Stat(ws.Path); !os.IsNotExist(err) {
		t.Errorf("expected workspace directory to be removed after cleanup, stat err = %v", err)
	}
}

func TestAcquireRejectsEmptyBranch(t *testing.T) {
	if _, cleanup, err := Acquire(context.Background(), ""); err == nil {
		cleanup()
		t.Fatal("expected error for empty source branch")
	}
}
