package domain

// DefaultMaxExamples caps the example sets in a DiffResult when no explicit
// cap is configured.
const DefaultMaxExamples = 10

// LineRef locates an example row in its source file(s).
// Only the side(s) where the row exists carry a line number.
type LineRef struct {
	ProdLine int `json:"prod_line_num,omitempty"`
	DevLine  int `json:"dev_line_num,omitempty"`
}

// DiffResult is the raw output of the three-pass diff engine for one
// prod/dev table pair. It is immutable once returned.
//
// RowsUpdated counts rows with at least one non-noise column change.
// RowsUpdatedNoiseOnly counts rows whose changes were confined to noise
// columns; the JSON name keeps the original report vocabulary
// ("excluded" columns) for downstream consumers.
type DiffResult struct {
	RowsAdded            int `json:"rows_added"`
	RowsRemoved          int `json:"rows_removed"`
	RowsUpdated          int `json:"rows_updated"`
	RowsUpdatedNoiseOnly int `json:"rows_updated_excluded_only"`

	// DetailedKeyUpdateCounts tallies, per non-noise column, how many
	// changed rows differ in that column.
	DetailedKeyUpdateCounts map[string]int `json:"detailed_key_update_counts"`

	// Example sets, each capped at the configured maximum. Counts above
	// keep accumulating past the cap; only example collection stops.
	ExampleIDs        map[string]LineRef `json:"example_ids"`
	ExampleIDsAdded   map[string]LineRef `json:"example_ids_added,omitempty"`
	ExampleIDsRemoved map[string]LineRef `json:"example_ids_removed,omitempty"`

	// Duplicate key observations per side. Non-fatal: last occurrence wins
	// for both classification and detail, so line numbers in examples
	// reference the final occurrence of a duplicated key.
	DuplicateProdKeys int `json:"duplicate_prod_keys,omitempty"`
	DuplicateDevKeys  int `json:"duplicate_dev_keys,omitempty"`
}

// HasChanges reports whether the diff found any row-level difference.
func (d *DiffResult) HasChanges() bool {
	return d.RowsAdded > 0 || d.RowsRemoved > 0 || d.RowsUpdated > 0 || d.RowsUpdatedNoiseOnly > 0
}
