// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package gogs implements gitforge.Adapter for Gogs by delegating to
// pkg/forges/giteacompat: Gogs exposes the same v1 API shape as Gitea,
// per spec's forge-detection note ("Gogs: per Gitea semantics").
package gogs

import (
	"fmt"

	"github.com/archmagece/gitforge/pkg/forges/giteacompat"
	"github.com/archmagece/gitforge/pkg/gitforge"
)

// New builds a gitforge.Adapter bound to coord against a Gogs instance.
func New(coord gitforge.RepoCoordinate) (gitforge.Adapter, error) {
	protocol := coord.Protocol
	if protocol == "" {
		protocol = "https"
	}
	baseURL := fmt.Sprintf("%s://%s", protocol, coord.Host)
	return giteacompat.New(gitforge.KindGogs, coord, baseURL)
}
