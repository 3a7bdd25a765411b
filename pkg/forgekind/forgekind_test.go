// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package forgekind

import (
	"context"
	"testing"

	"github.com/archmagece/gitforge/pkg/gitforge"
)

func TestIdentifyWellKnownHosts(t *testing.T) {
	tests := []struct {
		host string
		want gitforge.ForgeKind
	}{
		{"github.com", gitforge.KindGitHub},
		{"bitbucket.org", gitforge.KindBitbucket},
		{"dev.azure.com", gitforge.KindAzure},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			got, err := identify(context.Background(), gitforge.RepoCoordinate{Host: tt.host})
			if err != nil {
				t.Fatalf("identify() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("identify(%q) = %q, want %q", tt.host, got, tt.want)
			}
		})
	}
}

func TestBuildDispatchesEveryKind(t *testing.T) {
	tests := []struct {
		kind  gitforge.ForgeKind
		coord gitforge.RepoCoordinate
	}{
		{gitforge.KindGitHub, gitforge.RepoCoordinate{Host: "github.com", Owner: "o", Repo: "r"}},
		{gitforge.KindGHE, gitforge.RepoCoordinate{Host: "ghe.example.com", Owner: "o", Repo: "r"}},
		{gitforge.KindGitLab, gitforge.RepoCoordinate{Host: "gitlab.com", Owner: "o", Repo: "r"}},
		{gitforge.KindGitea, gitforge.RepoCoordinate{Host: "gitea.example.com", Owner: "o", Repo: "r"}},
		{gitforge.KindGogs, gitforge.RepoCoordinate{Host: "gogs.example.com", Owner: "o", Repo: "r"}},
		{gitforge.KindBitbucket, gitforge.RepoCoordinate{Host: "bitbucket.org", Owner: "o", Repo: "r"}},
		{gitforge.KindAzure, gitforge.RepoCoordinate{Host: "dev.azure.com", Owner: "o", Project: "p", Repo: "r"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			adapter, err := build(context.Background(), tt.kind, tt.coord)
			if err != nil {
				t.Fatalf("build(%q) error = %v", tt.kind, err)
			}
			if adapter == nil {
				t.Fatalf("build(%q) returned nil adapter", tt.kind)
			}
		})
	}
}

func TestBuildUnsupportedKind(t *testing.T) {
	if _, err := build(context.Background(), gitforge.ForgeKind("nonsense"), gitforge.RepoCoordinate{}); err == nil {
		t.Error("build() with unsupported kind should return an error")
	}
}
