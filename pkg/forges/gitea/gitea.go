// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package gitea implements gitforge.Adapter for Gitea by delegating to
// pkg/forges/giteacompat, which the Gitea and Gogs v1 APIs share.
package gitea

import (
	"fmt"

	"github.com/archmagece/gitforge/pkg/forges/giteacompat"
	"github.com/archmagece/gitforge/pkg/gitforge"
)

// New builds a gitforge.Adapter bound to coord against a Gitea instance.
func New(coord gitforge.RepoCoordinate) (gitforge.Adapter, error) {
	baseURL := fmt.Sprintf("%s://%s", protocolOrDefault(coord.Protocol), coord.Host)
	return giteacompat.New(gitforge.KindGitea, coord, baseURL)
}

func protocolOrDefault(p string) string {
	if p == "" {
		return "https"
	}
	return p
}
