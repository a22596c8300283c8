package services

import (
	"math"
	"strings"

	"github.com/custodia-labs/feeddiff-cli/internal/core/domain"
	"github.com/custodia-labs/feeddiff-cli/internal/core/ports/driven"
)

// availabilityColumn is the feed column the in-stock aggregate reads.
const availabilityColumn = "availability"

// inStockValue is the availability value that counts as in stock.
// Comparison ignores case and surrounding whitespace.
const inStockValue = "in stock"

// attachInStock computes the in-stock percentage for each side that carries
// an availability column and, when both do, their difference. Sides without
// the column leave their fields nil so the report omits them.
func attachInStock(report *domain.Report, prod, dev driven.Table, prodHeaders, devHeaders []string) error {
	if hasColumn(prodHeaders, availabilityColumn) {
		pct, err := inStockPercentage(prod)
		if err != nil {
			return err
		}
		report.ProdInStockPct = &pct
	}
	if hasColumn(devHeaders, availabilityColumn) {
		pct, err := inStockPercentage(dev)
		if err != nil {
			return err
		}
		report.DevInStockPct = &pct
	}
	if report.ProdInStockPct != nil && report.DevInStockPct != nil {
		diff := round2(math.Abs(*report.ProdInStockPct - *report.DevInStockPct))
		report.InStockPctDiff = &diff
	}
	return nil
}

// inStockPercentage streams one table and returns the share of rows whose
// availability value is "in stock", as a percentage rounded to two decimals.
// An empty table yields zero.
func inStockPercentage(table driven.Table) (float64, error) {
	it, err := table.Rows()
	if err != nil {
		return 0, err
	}
	defer it.Close()

	total := 0
	inStock := 0
	for it.Next() {
		total++
		v := strings.ToLower(strings.TrimSpace(it.Row().Get(availabilityColumn)))
		if v == inStockValue {
			inStock++
		}
	}
	if err := it.Err(); err != nil {
		return 0, err
	}

	if total == 0 {
		return 0, nil
	}
	return round2(float64(inStock) / float64(total) * 100), nil
}

func hasColumn(headers []string, name string) bool {
	for _, h := range headers {
		if h == name {
			return true
		}
	}
	return false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
