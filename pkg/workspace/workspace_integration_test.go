package workspace

import (
	"context"
	"testing"

	"github.com/archmagece/gitforge/internal/testutil"
)

func TestCloneAndStatusAgainstRealRepo(t *testing.T) {
	source := testutil.TempGitRepoWithCommit(t)

	ctx := context.Background()
	ws, cleanup, err := Acquire(ctx, "main", WithBaseDir(t.TempDir()))
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer cleanup()

	if err := ws.Clone(ctx, CloneOptions{URL: source}); err != nil {
		t.Fatalf("Clone() error = %v", err)
	}

	status, err := ws.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if !status.IsClean {
		t.Errorf("expected a freshly cloned repo to be clean, got %+v", status)
	}
}

func TestRebaseIdempotentWhenSourceContainsTarget(t *testing.T) {
	source := testutil.TempGitRepoWithBranch(t, "feature")

	ctx := context.Background()
	ws, cleanup, err := Acquire(ctx, "feature", WithBaseDir(t.TempDir()))
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer cleanup()

	if err := ws.Clone(ctx, CloneOptions{URL: source}); err != nil {
		t.Fatalf("Clone() error = %v", err)
	}

	if err := ws.Rebase(ctx, "origin/master"); err != nil {
		t.Fatalf("Rebase() error = %v", err)
	}

	status, err := ws.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if len(status.ConflictFiles) != 0 {
		t.Fatalf("expected no conflicts rebasing a branch already containing its target, got %v", status.ConflictFiles)
	}
}
