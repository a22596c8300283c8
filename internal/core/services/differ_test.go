package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/feeddiff-cli/internal/core/domain"
	"github.com/custodia-labs/feeddiff-cli/internal/core/ports/driven"
)

// fakeTable is an in-memory driven.Table for service tests.
type fakeTable struct {
	path    string
	headers []string
	rows    []domain.Row
}

func (f *fakeTable) Path() string               { return f.path }
func (f *fakeTable) Headers() ([]string, error) { return f.headers, nil }
func (f *fakeTable) Warnings() []string         { return nil }

func (f *fakeTable) Rows() (driven.RowIterator, error) {
	return &fakeIter{rows: f.rows}, nil
}

func (f *fakeTable) CountRows() (int, error) { return len(f.rows), nil }

type fakeIter struct {
	rows []domain.Row
	pos  int
}

func (it *fakeIter) Next() bool {
	if it.pos >= len(it.rows) {
		return false
	}
	it.pos++
	return true
}

func (it *fakeIter) Row() domain.Row { return it.rows[it.pos-1] }
func (it *fakeIter) Err() error      { return nil }
func (it *fakeIter) Close() error    { return nil }

// fakeOpener serves fakeTables by path.
type fakeOpener struct {
	tables map[string]*fakeTable
}

func (o *fakeOpener) Open(path string, _ domain.TableOptions) (driven.Table, error) {
	t, ok := o.tables[path]
	if !ok {
		return nil, errors.New("no such table: " + path)
	}
	return t, nil
}

// row builds a test row; line numbers only matter where a test asserts them.
func row(line int, kv ...string) domain.Row {
	values := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		values[kv[i]] = kv[i+1]
	}
	return domain.Row{Line: line, Values: values}
}

func newTestDiffer(prod, dev *fakeTable, cfg DiffConfig) *DiffService {
	prod.path = "prod.csv"
	dev.path = "dev.csv"
	opener := &fakeOpener{tables: map[string]*fakeTable{
		"prod.csv": prod,
		"dev.csv":  dev,
	}}
	if cfg.KeyColumns == nil {
		cfg.KeyColumns = domain.KeyColumns{"sku"}
	}
	return NewDiffService(opener, cfg)
}

func compute(t *testing.T, d *DiffService) *domain.Report {
	t.Helper()
	report, err := d.Compute(context.Background(), "prod.csv", "dev.csv")
	require.NoError(t, err)
	return report
}

func TestComputeAddRemoveUpdate(t *testing.T) {
	headers := []string{"sku", "title", "price", "inventory"}
	prod := &fakeTable{headers: headers, rows: []domain.Row{
		row(2, "sku", "1", "title", "Widget", "price", "9.99", "inventory", "5"),
		row(3, "sku", "2", "title", "Gadget", "price", "19.99", "inventory", "3"),
		row(4, "sku", "3", "title", "Gizmo", "price", "4.99", "inventory", "7"),
	}}
	dev := &fakeTable{headers: headers, rows: []domain.Row{
		row(2, "sku", "2", "title", "Gadget Pro", "price", "21.99", "inventory", "3"),
		row(3, "sku", "3", "title", "Gizmo", "price", "4.99", "inventory", "7"),
		row(4, "sku", "4", "title", "Doohickey", "price", "1.99", "inventory", "1"),
	}}

	d := newTestDiffer(prod, dev, DiffConfig{
		Noise: domain.NewNoiseMatcher(domain.DefaultNoiseMarkers()),
	})
	report := compute(t, d)

	assert.Equal(t, 1, report.RowsAdded)
	assert.Equal(t, 1, report.RowsRemoved)
	assert.Equal(t, 1, report.RowsUpdated)
	assert.Zero(t, report.RowsUpdatedNoiseOnly)

	assert.Equal(t, map[string]int{"title": 1, "price": 1}, report.DetailedKeyUpdateCounts)

	assert.Equal(t, map[string]domain.LineRef{"2": {ProdLine: 3, DevLine: 2}}, report.ExampleIDs)
	assert.Equal(t, map[string]domain.LineRef{"4": {DevLine: 4}}, report.ExampleIDsAdded)
	assert.Equal(t, map[string]domain.LineRef{"1": {ProdLine: 2}}, report.ExampleIDsRemoved)

	assert.Equal(t, 3, report.ProdRowCount)
	assert.Equal(t, 3, report.DevRowCount)
	assert.True(t, report.HasChanges())
}

func TestNoiseOnlyChange(t *testing.T) {
	headers := []string{"sku", "title", "inventory"}
	prod := &fakeTable{headers: headers, rows: []domain.Row{
		row(2, "sku", "1", "title", "Widget", "inventory", "5"),
	}}
	dev := &fakeTable{headers: headers, rows: []domain.Row{
		row(2, "sku", "1", "title", "Widget", "inventory", "99"),
	}}

	d := newTestDiffer(prod, dev, DiffConfig{
		Noise: domain.NewNoiseMatcher(domain.DefaultNoiseMarkers()),
	})
	report := compute(t, d)

	assert.Zero(t, report.RowsUpdated)
	assert.Equal(t, 1, report.RowsUpdatedNoiseOnly)
	assert.Empty(t, report.ExampleIDs)
	assert.Empty(t, report.DetailedKeyUpdateCounts)
	assert.True(t, report.HasChanges())
}

func TestIdenticalTables(t *testing.T) {
	headers := []string{"sku", "title"}
	rows := []domain.Row{
		row(2, "sku", "1", "title", "Widget"),
		row(3, "sku", "2", "title", "Gadget"),
	}
	prod := &fakeTable{headers: headers, rows: rows}
	dev := &fakeTable{headers: headers, rows: rows}

	report := compute(t, newTestDiffer(prod, dev, DiffConfig{}))

	assert.False(t, report.HasChanges())
	assert.Empty(t, report.ExampleIDs)
	assert.Empty(t, report.ExampleIDsAdded)
	assert.Empty(t, report.ExampleIDsRemoved)
}

func TestMissingKeyColumnFailsFast(t *testing.T) {
	prod := &fakeTable{headers: []string{"sku", "title"}}
	dev := &fakeTable{headers: []string{"id", "title"}}

	d := newTestDiffer(prod, dev, DiffConfig{})
	_, err := d.Compute(context.Background(), "prod.csv", "dev.csv")

	var missing *domain.MissingKeyError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "dev", missing.Side)
	assert.Equal(t, []string{"sku"}, missing.Missing)
	assert.Equal(t, []string{"id", "title"}, missing.Available)
}

func TestNoKeyColumns(t *testing.T) {
	prod := &fakeTable{headers: []string{"sku"}}
	dev := &fakeTable{headers: []string{"sku"}}

	d := newTestDiffer(prod, dev, DiffConfig{KeyColumns: domain.KeyColumns{}})
	_, err := d.Compute(context.Background(), "prod.csv", "dev.csv")
	assert.ErrorIs(t, err, domain.ErrNoKeyColumns)
}

func TestDuplicateKeysLastOccurrenceWins(t *testing.T) {
	headers := []string{"sku", "title"}
	prod := &fakeTable{headers: headers, rows: []domain.Row{
		row(2, "sku", "1", "title", "Old"),
		row(3, "sku", "1", "title", "Final"),
	}}
	dev := &fakeTable{headers: headers, rows: []domain.Row{
		row(2, "sku", "1", "title", "Final"),
	}}

	report := compute(t, newTestDiffer(prod, dev, DiffConfig{}))

	// The final prod occurrence matches dev, so nothing changed.
	assert.False(t, report.HasChanges())
	assert.Equal(t, 1, report.DuplicateProdKeys)
	assert.Zero(t, report.DuplicateDevKeys)
}

func TestDuplicateKeyUpdateUsesLastOccurrence(t *testing.T) {
	headers := []string{"sku", "title"}
	prod := &fakeTable{headers: headers, rows: []domain.Row{
		row(2, "sku", "1", "title", "A"),
	}}
	dev := &fakeTable{headers: headers, rows: []domain.Row{
		row(2, "sku", "1", "title", "A"),
		row(3, "sku", "1", "title", "B"),
	}}

	report := compute(t, newTestDiffer(prod, dev, DiffConfig{}))

	// Classification and detail both see dev's last occurrence.
	assert.Equal(t, 1, report.RowsUpdated)
	assert.Equal(t, map[string]int{"title": 1}, report.DetailedKeyUpdateCounts)
	assert.Equal(t, map[string]domain.LineRef{"1": {ProdLine: 2, DevLine: 3}}, report.ExampleIDs)
}

func TestAddedCountedOncePerDistinctKey(t *testing.T) {
	headers := []string{"sku", "title"}
	prod := &fakeTable{headers: headers}
	dev := &fakeTable{headers: headers, rows: []domain.Row{
		row(2, "sku", "9", "title", "New"),
		row(3, "sku", "9", "title", "New again"),
	}}

	report := compute(t, newTestDiffer(prod, dev, DiffConfig{}))

	assert.Equal(t, 1, report.RowsAdded)
	assert.Equal(t, 1, report.DuplicateDevKeys)
	assert.Equal(t, map[string]domain.LineRef{"9": {DevLine: 3}}, report.ExampleIDsAdded)
}

func TestExampleCapDoesNotStopCounting(t *testing.T) {
	headers := []string{"sku"}
	prod := &fakeTable{headers: headers}
	dev := &fakeTable{headers: headers, rows: []domain.Row{
		row(2, "sku", "a"),
		row(3, "sku", "b"),
		row(4, "sku", "c"),
	}}

	d := newTestDiffer(prod, dev, DiffConfig{MaxExamples: 2})
	report := compute(t, d)

	assert.Equal(t, 3, report.RowsAdded)
	assert.Len(t, report.ExampleIDsAdded, 2)
}

func TestCompositeKeyColumns(t *testing.T) {
	headers := []string{"sku", "locale", "title"}
	prod := &fakeTable{headers: headers, rows: []domain.Row{
		row(2, "sku", "1", "locale", "en", "title", "Widget"),
		row(3, "sku", "1", "locale", "de", "title", "Widget DE"),
	}}
	dev := &fakeTable{headers: headers, rows: []domain.Row{
		row(2, "sku", "1", "locale", "en", "title", "Widget"),
		row(3, "sku", "1", "locale", "de", "title", "Widget DE v2"),
	}}

	d := newTestDiffer(prod, dev, DiffConfig{
		KeyColumns: domain.ParseKeyColumns("sku,locale"),
	})
	report := compute(t, d)

	assert.Equal(t, 1, report.RowsUpdated)
	assert.Equal(t, map[string]domain.LineRef{"1_de": {ProdLine: 3, DevLine: 3}}, report.ExampleIDs)
}

func TestSchemaColumnSets(t *testing.T) {
	prod := &fakeTable{headers: []string{"sku", "title", "legacy_flag"}, rows: []domain.Row{
		row(2, "sku", "1", "title", "Widget", "legacy_flag", "y"),
	}}
	dev := &fakeTable{headers: []string{"sku", "title", "new_field"}, rows: []domain.Row{
		row(2, "sku", "1", "title", "Widget", "new_field", "x"),
	}}

	report := compute(t, newTestDiffer(prod, dev, DiffConfig{}))

	assert.Equal(t, []string{"sku", "title"}, report.CommonKeys)
	assert.Equal(t, []string{"legacy_flag"}, report.ProdOnlyKeys)
	assert.Equal(t, []string{"new_field"}, report.DevOnlyKeys)

	// Side-only columns never participate in digests, so the rows match.
	assert.False(t, report.HasChanges())
}

func TestAllCommonColumnsNoiseFallsBackToFullDigest(t *testing.T) {
	// Every common column matches a noise marker: the significant digest
	// falls back to the full digest, so any change counts as meaningful
	// and the detail pass tallies the noise columns themselves.
	headers := []string{"sku", "inventory"}
	prod := &fakeTable{headers: headers, rows: []domain.Row{
		row(2, "sku", "1", "inventory", "5"),
	}}
	dev := &fakeTable{headers: headers, rows: []domain.Row{
		row(2, "sku", "1", "inventory", "6"),
	}}

	d := newTestDiffer(prod, dev, DiffConfig{
		Noise: domain.NewNoiseMatcher([]string{"sku", "inventory"}),
	})
	report := compute(t, d)

	assert.Equal(t, 1, report.RowsUpdated)
	assert.Zero(t, report.RowsUpdatedNoiseOnly)
	assert.Equal(t, map[string]int{"inventory": 1}, report.DetailedKeyUpdateCounts)
}

func TestComputeHonorsContextCancellation(t *testing.T) {
	headers := []string{"sku"}
	prod := &fakeTable{headers: headers, rows: []domain.Row{row(2, "sku", "1")}}
	dev := &fakeTable{headers: headers, rows: []domain.Row{row(2, "sku", "1")}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := newTestDiffer(prod, dev, DiffConfig{})
	_, err := d.Compute(ctx, "prod.csv", "dev.csv")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRowDigestsOrderIndependent(t *testing.T) {
	common := []string{"a", "b"}
	noise := []bool{false, true}

	full1, sig1 := rowDigests(map[string]string{"a": "1", "b": "2"}, common, noise, true)
	full2, sig2 := rowDigests(map[string]string{"b": "2", "a": "1"}, common, noise, true)
	assert.Equal(t, full1, full2)
	assert.Equal(t, sig1, sig2)

	// Changing a noise column moves the full digest only.
	full3, sig3 := rowDigests(map[string]string{"a": "1", "b": "3"}, common, noise, true)
	assert.NotEqual(t, full1, full3)
	assert.Equal(t, sig1, sig3)

	// Values must not bleed across field boundaries.
	fullA, _ := rowDigests(map[string]string{"a": "12", "b": ""}, common, noise, true)
	fullB, _ := rowDigests(map[string]string{"a": "1", "b": "2"}, common, noise, true)
	assert.NotEqual(t, fullA, fullB)
}
