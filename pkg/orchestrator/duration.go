// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package orchestrator

import (
	"regexp"
	"strconv"
	"time"
)

// durationComponent matches one "{digits}{unit}" run, where unit is one
// of h/m/s. Components may be separated by whitespace ("1h 30m") or run
// together ("1h30m15s"); unrecognized text yields zero components.
var durationComponent = regexp.MustCompile(`(\d+)\s*([hms])`)

// ParseDuration parses a time-text budget like "1h30m15s", "90m",
// "45s", or "1h 30m" into a time.Duration. Unrecognized or empty input
// resolves to 0, matching the orchestrator's waitForBlocked contract.
func ParseDuration(text string) time.Duration {
	matches := durationComponent.FindAllStringSubmatch(text, -1)
	if matches == nil {
		return 0
	}

	var total time.Duration
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		switch m[2] {
		case "h":
			total += time.Duration(n) * time.Hour
		case "m":
			total += time.Duration(n) * time.Minute
		case "s":
			total += time.Duration(n) * time.Second
		}
	}
	return total
}
