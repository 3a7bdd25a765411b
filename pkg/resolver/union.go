// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package resolver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/archmagece/gitforge/pkg/workspace"
)

// Union resolves each conflicted file by recovering the common ancestor
// (index stage 1), ours (stage 2), and theirs (stage 3) blobs, then
// running "git merge-file --union -p ours common theirs" and writing the
// combined result back into the working tree. It favors keeping both
// sides' lines over picking a winner, so it is only appropriate for
// files where duplicate lines are harmless (e.g. appended list entries).
func Union(ctx context.Context, ws *workspace.Workspace, conflicted []string) (Resolution, error) {
	res := Resolution{}

	tmpDir, err := os.MkdirTemp("", "gitforge-union-*")
	if err != nil {
		return res, fmt.Errorf("resolver: failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	for _, file := range conflicted {
		if err := resolveUnionFile(ctx, ws, tmpDir, file); err != nil {
			res.ConflictErrors = append(res.ConflictErrors, fmt.Errorf("%s: %w", file, err))
			continue
		}
		res.ResolvedConflicts = append(res.ResolvedConflicts, file)
	}

	return res, nil
}

func resolveUnionFile(ctx context.Context, ws *workspace.Workspace, tmpDir, file string) error {
	common, err := ws.ShowStaged(ctx, 1, file)
	if err != nil {
		return fmt.Errorf("recovering common ancestor: %w", err)
	}
	ours, err := ws.ShowStaged(ctx, 2, file)
	if err != nil {
		return fmt.Errorf("recovering our side: %w", err)
	}
	theirs, err := ws.ShowStaged(ctx, 3, file)
	if err != nil {
		return fmt.Errorf("recovering their side: %w", err)
	}

	base := filepath.Base(file)
	commonPath := filepath.Join(tmpDir, base+".common")
	oursPath := filepath.Join(tmpDir, base+".ours")
	theirsPath := filepath.Join(tmpDir, base+".theirs")

	if err := os.WriteFile(commonPath, []byte(common), 0o644); err != nil {
		return fmt.Errorf("writing common blob: %w", err)
	}
	if err := os.WriteFile(oursPath, []byte(ours), 0o644); err != nil {
		return fmt.Errorf("writing ours blob: %w", err)
	}
	if err := os.WriteFile(theirsPath, []byte(theirs), 0o644); err != nil {
		return fmt.Errorf("writing theirs blob: %w", err)
	}

	result, err := ws.Exec(ctx, "merge-file", "--union", "-p", oursPath, commonPath, theirsPath)
	if err != nil {
		return fmt.Errorf("merge-file: %w", err)
	}
	// merge-file exits non-zero when it still left conflict markers;
	// --union never leaves markers, so any non-zero exit here is a
	// real failure (e.g. binary content).
	if result.ExitCode != 0 {
		return fmt.Errorf("merge-file exited %d: %s", result.ExitCode, result.Stderr)
	}

	if err := os.WriteFile(filepath.Join(ws.Path, file), []byte(result.Stdout), 0o644); err != nil {
		return fmt.Errorf("writing resolved file: %w", err)
	}

	return nil
}
