package domain

import "strings"

// DefaultNoiseMarkers are the column-name fragments treated as noise when no
// markers are configured. Inventory and availability fluctuate between any
// two feed pulls, and _fdx columns are injected bookkeeping fields; changes
// confined to such columns are tallied separately from meaningful updates.
func DefaultNoiseMarkers() []string {
	return []string{"inventory", "availability", "_fdx"}
}

// NoiseMatcher decides whether a column is a noise column via
// case-insensitive substring matching against a marker list.
// The zero value matches nothing.
type NoiseMatcher struct {
	markers []string
}

// NewNoiseMatcher builds a matcher from marker fragments.
// Markers are lowercased once here rather than per lookup.
func NewNoiseMatcher(markers []string) NoiseMatcher {
	lowered := make([]string, 0, len(markers))
	for _, m := range markers {
		if m = strings.TrimSpace(m); m != "" {
			lowered = append(lowered, strings.ToLower(m))
		}
	}
	return NoiseMatcher{markers: lowered}
}

// Match reports whether the column name contains any noise marker.
func (n NoiseMatcher) Match(column string) bool {
	lower := strings.ToLower(column)
	for _, m := range n.markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// Markers returns the configured marker fragments (lowercased).
func (n NoiseMatcher) Markers() []string {
	return n.markers
}
