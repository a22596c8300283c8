package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/feeddiff-cli/internal/core/domain"
)

func TestInStockPercentage(t *testing.T) {
	table := &fakeTable{
		headers: []string{"sku", "availability"},
		rows: []domain.Row{
			row(2, "sku", "1", "availability", "in stock"),
			row(3, "sku", "2", "availability", " In Stock "),
			row(4, "sku", "3", "availability", "out of stock"),
		},
	}

	pct, err := inStockPercentage(table)
	require.NoError(t, err)
	assert.InDelta(t, 66.67, pct, 0.001)
}

func TestInStockPercentageEmptyTable(t *testing.T) {
	table := &fakeTable{headers: []string{"sku", "availability"}}

	pct, err := inStockPercentage(table)
	require.NoError(t, err)
	assert.Zero(t, pct)
}

func TestAttachInStockOnlyWhenColumnPresent(t *testing.T) {
	prod := &fakeTable{
		headers: []string{"sku", "availability"},
		rows: []domain.Row{
			row(2, "sku", "1", "availability", "in stock"),
			row(3, "sku", "2", "availability", "out of stock"),
		},
	}
	dev := &fakeTable{headers: []string{"sku", "title"}}

	report := &domain.Report{}
	require.NoError(t, attachInStock(report, prod, dev, prod.headers, dev.headers))

	require.NotNil(t, report.ProdInStockPct)
	assert.InDelta(t, 50.0, *report.ProdInStockPct, 0.001)
	assert.Nil(t, report.DevInStockPct)
	assert.Nil(t, report.InStockPctDiff)
}

func TestAttachInStockDifference(t *testing.T) {
	prod := &fakeTable{
		headers: []string{"sku", "availability"},
		rows: []domain.Row{
			row(2, "sku", "1", "availability", "in stock"),
			row(3, "sku", "2", "availability", "out of stock"),
		},
	}
	dev := &fakeTable{
		headers: []string{"sku", "availability"},
		rows: []domain.Row{
			row(2, "sku", "1", "availability", "in stock"),
			row(3, "sku", "2", "availability", "in stock"),
		},
	}

	report := &domain.Report{}
	require.NoError(t, attachInStock(report, prod, dev, prod.headers, dev.headers))

	require.NotNil(t, report.InStockPctDiff)
	assert.InDelta(t, 50.0, *report.InStockPctDiff, 0.001)
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 33.33, round2(100.0/3.0))
	assert.Equal(t, 66.67, round2(200.0/3.0))
	assert.Equal(t, 0.0, round2(0))
}
