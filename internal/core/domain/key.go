package domain

import "strings"

const (
	// CompositeKeySeparator joins key column values into the composite key.
	// Chosen to be unlikely inside real feed data.
	CompositeKeySeparator = "||"

	// DisplayKeySeparator joins key column values for human-readable output.
	DisplayKeySeparator = "_"

	// MissingValue is the sentinel substituted for an absent key value.
	MissingValue = "<missing>"
)

// KeyColumns is the ordered list of primary key columns used to identify a
// logical row across both sides of a comparison. The same ordering and join
// logic must be applied to both tables.
type KeyColumns []string

// ParseKeyColumns splits a comma-separated primary key spec such as
// "sku,locale" into trimmed column names, dropping empty entries.
func ParseKeyColumns(spec string) KeyColumns {
	parts := strings.Split(spec, ",")
	keys := make(KeyColumns, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			keys = append(keys, p)
		}
	}
	return keys
}

// CompositeKey builds the canonical identity string for a row.
// Absent columns contribute an empty segment, never an error: identity
// stability matters more than completeness here.
func (k KeyColumns) CompositeKey(values map[string]string) string {
	if len(k) == 1 {
		return values[k[0]]
	}
	parts := make([]string, len(k))
	for i, col := range k {
		parts[i] = values[col]
	}
	return strings.Join(parts, CompositeKeySeparator)
}

// DisplayKey builds the human-readable key used in example sets.
// A single key column renders as its bare value; composite keys join with
// underscores. Absent values render as the <missing> sentinel.
func (k KeyColumns) DisplayKey(values map[string]string) string {
	if len(k) == 1 {
		v, ok := values[k[0]]
		if !ok {
			return MissingValue
		}
		return v
	}
	parts := make([]string, len(k))
	for i, col := range k {
		v, ok := values[col]
		if !ok {
			parts[i] = MissingValue
			continue
		}
		parts[i] = v
	}
	return strings.Join(parts, DisplayKeySeparator)
}

// SuspiciousDisplayKey reports whether a display key looks degenerate:
// empty, the missing sentinel, or a null-like literal. Such keys indicate
// the source data's primary key itself is broken; they are logged but
// never fatal.
func SuspiciousDisplayKey(key string) bool {
	switch key {
	case "", MissingValue, "None", "null", "NULL":
		return true
	}
	return false
}
