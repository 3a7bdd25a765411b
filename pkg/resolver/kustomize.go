// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package resolver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"sigs.k8s.io/kustomize/kyaml/yaml"

	"github.com/archmagece/gitforge/pkg/workspace"
)

// KustomizeResource names the resource entry this resolver ensures is
// present in every conflicted kustomization.yaml's resources: list.
type KustomizeResource string

// Kustomize returns a Resolver that only handles files named
// "kustomization.yaml", in any directory. For each one, it keeps our
// side of the conflict (checkout --ours) and then appends resource to
// the resources: sequence, sorted and deduplicated. Any other
// conflicted file is left unresolved, so pair this with another
// resolver (or accept the resulting UnresolvedConflicts) when a PR also
// touches non-kustomization files.
func Kustomize(resource KustomizeResource) Resolver {
	return func(ctx context.Context, ws *workspace.Workspace, conflicted []string) (Resolution, error) {
		res := Resolution{}

		for _, file := range conflicted {
			if !isKustomizationFile(file) {
				continue
			}

			if err := resolveKustomizationFile(ctx, ws, file, string(resource)); err != nil {
				res.ConflictErrors = append(res.ConflictErrors, fmt.Errorf("%s: %w", file, err))
				continue
			}
			res.ResolvedConflicts = append(res.ResolvedConflicts, file)
		}

		return res, nil
	}
}

func isKustomizationFile(path string) bool {
	return filepath.Base(path) == "kustomization.yaml"
}

// mergeResourceNames returns existing plus resource, sorted and
// deduplicated, skipping blank entries.
func mergeResourceNames(existing []string, resource string) []string {
	seen := make(map[string]bool, len(existing)+1)
	names := make([]string, 0, len(existing)+1)

	add := func(v string) {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			return
		}
		seen[v] = true
		names = append(names, v)
	}

	for _, v := range existing {
		add(v)
	}
	add(resource)

	sort.Strings(names)
	return names
}

func resolveKustomizationFile(ctx context.Context, ws *workspace.Workspace, file, resource string) error {
	if err := ws.CheckoutOurs(ctx, file); err != nil {
		return fmt.Errorf("checkout --ours: %w", err)
	}

	fullPath := filepath.Join(ws.Path, file)
	content, err := os.ReadFile(fullPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", file, err)
	}

	node, err := yaml.Parse(string(content))
	if err != nil {
		return fmt.Errorf("parsing yaml: %w", err)
	}

	resourcesNode, err := node.Pipe(yaml.Lookup("resources"))
	if err != nil {
		return fmt.Errorf("looking up resources: %w", err)
	}
	if resourcesNode == nil {
		resourcesNode, err = node.Pipe(yaml.LookupCreate(yaml.SequenceNode, "resources"))
		if err != nil {
			return fmt.Errorf("creating resources sequence: %w", err)
		}
	}

	entries, err := resourcesNode.Elements()
	if err != nil {
		return fmt.Errorf("reading resources elements: %w", err)
	}

	existing := make([]string, 0, len(entries))
	for _, e := range entries {
		existing = append(existing, e.YNode().Value)
	}
	names := mergeResourceNames(existing, resource)

	newSeq := yaml.NewRNode(&yaml.Node{Kind: yaml.SequenceNode})
	for _, n := range names {
		if err := newSeq.PipeE(yaml.Append(yaml.NewScalarRNode(n).YNode())); err != nil {
			return fmt.Errorf("appending resource %s: %w", n, err)
		}
	}

	if err := node.PipeE(yaml.SetField("resources", newSeq)); err != nil {
		return fmt.Errorf("setting resources field: %w", err)
	}

	rendered, err := node.String()
	if err != nil {
		return fmt.Errorf("rendering yaml: %w", err)
	}

	if err := os.WriteFile(fullPath, []byte(rendered), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", file, err)
	}

	return nil
}
