package domain

// Row is one logical data row from a delimited table.
// Values are keyed by normalized column name (trimmed, quote-stripped).
// Rows are ephemeral: the diff engine never retains them beyond the
// streaming pass that produced them, except for changed keys in the
// detail pass.
type Row struct {
	// Line is the 1-indexed line on which this row starts in the source
	// file. Multi-line quoted fields make a row span several physical
	// lines; Line always refers to the first. The header occupies line 1.
	Line int

	// Values maps normalized column name to the raw string value.
	Values map[string]string
}

// Get returns the value for a column, or "" if the column is absent.
func (r Row) Get(column string) string {
	return r.Values[column]
}

// TableOptions configures how a table file is opened.
type TableOptions struct {
	// Delimiter forces the field delimiter for both header and data lines.
	// Zero means auto-detect (comma vs tab, sampled per line role).
	Delimiter rune

	// MaxRows caps the number of data rows read per streaming pass.
	// Zero means no cap.
	MaxRows int
}
