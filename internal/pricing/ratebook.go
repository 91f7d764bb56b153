// internal/pricing/ratebook.go
package pricing

import (
	"github.com/mahabubulhasibshawon/parcel-express/internal/domain"
	"github.com/mahabubulhasibshawon/parcel-express/internal/region"
)

// RateBook resolves a rate table for an origin. Region detection goes through the same ordered
// region.Table used for order IDs, so the specificity rule lives in one place.
type RateBook struct {
	regions  *region.Table
	tables   map[string]domain.RateTable
	fallback domain.RateTable
}

func NewRateBook(regions *region.Table, fallback domain.RateTable, tables ...domain.RateTable) *RateBook {
	if regions == nil {
		regions = region.DefaultTable()
	}
	fallback.Region = ""
	rb := &RateBook{regions: regions, tables: make(map[string]domain.RateTable, len(tables)), fallback: fallback}
	for _, t := range tables {
		if t.Region == "" {
			continue
		}
		rb.tables[t.Region] = t
	}
	return rb
}

// DefaultRateBook has no regional overrides; every origin gets the global table.
func DefaultRateBook() *RateBook {
	return NewRateBook(region.DefaultTable(), domain.DefaultRateTable())
}

func (rb *RateBook) ForRegion(code string) domain.RateTable {
	if t, ok := rb.tables[code]; ok && code != "" {
		return t
	}
	return rb.fallback
}

func (rb *RateBook) ForAddress(origin string) domain.RateTable {
	code, matched := rb.regions.Detect(origin)
	if !matched {
		return rb.fallback
	}
	return rb.ForRegion(code)
}

func (rb *RateBook) Regions() *region.Table {
	return rb.regions
}
