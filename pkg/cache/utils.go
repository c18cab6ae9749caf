package cache

import "strings"

// Key joins parts into a namespaced cache key, e.g.
// Key("chart", "EURUSD", "1m") -> "chart:EURUSD:1m".
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}
