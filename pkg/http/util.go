package http

import (
	"time"

	"FxPulse/pkg/util"
)

// Query-param helpers for handlers that read loosely-typed values outside
// the bound request structs.

// ParseIntDefault parses an int query value, falling back when empty or
// invalid.
func ParseIntDefault(s string, def int) int { return util.ParseIntDefault(s, def) }

// ParseTimeDefault parses a time bound from RFC3339 or unix seconds,
// falling back when empty or invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	return util.ParseTimeDefault(s, def)
}
