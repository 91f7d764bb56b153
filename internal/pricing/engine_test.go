// internal/pricing/engine_test.go
package pricing

import (
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mahabubulhasibshawon/parcel-express/internal/domain"
	"github.com/mahabubulhasibshawon/parcel-express/internal/region"
)

func ptr(f float64) *float64 { return &f }

func TestBillingKm(t *testing.T) {
	tests := map[float64]int64{0: 1, 0.2: 1, 1: 1, 1.01: 2, 6.1: 7, 7: 7}
	for in, want := range tests {
		if got := BillingKm(in); got != want {
			t.Errorf("BillingKm(%v) = %d, want %d", in, got, want)
		}
	}
}

func TestCalculate(t *testing.T) {
	rates := domain.DefaultRateTable()

	tests := []struct {
		name     string
		distance float64
		pkg      domain.PackageAttributes
		speed    domain.DeliverySpeed
		want     int64
		check    func(t *testing.T, p domain.Price)
	}{
		{
			name:     "standard 6.1km bills 7km",
			distance: 6.1,
			pkg:      domain.PackageAttributes{Category: domain.CategoryStandard},
			speed:    domain.SpeedStandard,
			// 1000 + (7-3)*500
			want: 3000,
			check: func(t *testing.T, p domain.Price) {
				if p.BillingKm != 7 {
					t.Errorf("BillingKm = %d, want 7", p.BillingKm)
				}
			},
		},
		{
			name:     "short hop within free km",
			distance: 0.3,
			pkg:      domain.PackageAttributes{Category: domain.CategoryDocument},
			speed:    domain.SpeedStandard,
			want:     1000,
		},
		{
			name:     "overweight above allowance",
			distance: 2,
			pkg:      domain.PackageAttributes{Category: domain.CategoryOverweight, Weight: ptr(8.5)},
			speed:    domain.SpeedStandard,
			// 1000 + 3.5*150 = 525
			want: 1525,
		},
		{
			name:     "weight ignored for standard category",
			distance: 2,
			pkg:      domain.PackageAttributes{Category: domain.CategoryStandard, Weight: ptr(20)},
			speed:    domain.SpeedStandard,
			want:     1000,
		},
		{
			name:     "oversized is per billing km",
			distance: 4.2,
			pkg:      domain.PackageAttributes{Category: domain.CategoryOversized},
			speed:    domain.SpeedExpress,
			// 1000 + 2*500 + 5*300 + 1500
			want: 5000,
		},
		{
			name:     "fragile scheduled",
			distance: 1,
			pkg:      domain.PackageAttributes{Category: domain.CategoryFragile},
			speed:    domain.SpeedScheduled,
			// 1000 + 1*400 + 500
			want: 1900,
		},
		{
			name:     "food and beverage",
			distance: 3.5,
			pkg:      domain.PackageAttributes{Category: domain.CategoryFoodBeverage},
			speed:    domain.SpeedStandard,
			// 1000 + 1*500 + 4*300
			want: 2700,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Calculate(tt.distance, tt.pkg, tt.speed, rates)
			if err != nil {
				t.Fatalf("Calculate() unexpected error: %v", err)
			}
			if !p.Total.Equal(decimal.NewFromInt(tt.want)) {
				t.Errorf("Calculate() total = %s, want %d (%+v)", p.Total, tt.want, p.Breakdown)
			}
			if tt.check != nil {
				tt.check(t, p)
			}
		})
	}
}

func TestCalculate_RoundsEachComponent(t *testing.T) {
	rates := domain.RateTable{
		BaseFee:         decimal.RequireFromString("100.5"),
		UrgentSurcharge: decimal.RequireFromString("100.5"),
	}
	p, err := Calculate(1, domain.PackageAttributes{Category: domain.CategoryStandard}, domain.SpeedExpress, rates)
	if err != nil {
		t.Fatal(err)
	}
	// 101 + 101; rounding only the sum would give 201.
	if !p.Total.Equal(decimal.NewFromInt(202)) {
		t.Errorf("total = %s, want 202", p.Total)
	}
	if !p.Breakdown.BaseFee.Equal(decimal.NewFromInt(101)) || !p.Breakdown.SpeedSurcharge.Equal(decimal.NewFromInt(101)) {
		t.Errorf("breakdown = %+v", p.Breakdown)
	}
}

func TestCalculate_Deterministic(t *testing.T) {
	rates := domain.DefaultRateTable()
	pkg := domain.PackageAttributes{Category: domain.CategoryStandard}
	first, err := Calculate(6.1, pkg, domain.SpeedStandard, rates)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		again, _ := Calculate(6.1, pkg, domain.SpeedStandard, rates)
		if !SamePrice(first, again) {
			t.Fatalf("run %d differs: %+v vs %+v", i, first, again)
		}
	}
}

func TestCalculate_RejectsBadInput(t *testing.T) {
	rates := domain.DefaultRateTable()
	pkg := domain.PackageAttributes{Category: domain.CategoryStandard}
	for _, d := range []float64{-1, math.NaN(), math.Inf(1)} {
		if _, err := Calculate(d, pkg, domain.SpeedStandard, rates); !errors.Is(err, ErrInvalidDistance) {
			t.Errorf("Calculate(%v) error = %v", d, err)
		}
	}
	if _, err := Calculate(1, domain.PackageAttributes{Category: "crate"}, domain.SpeedStandard, rates); err == nil {
		t.Errorf("unknown category should fail")
	}
	if _, err := Calculate(1, pkg, "teleport", rates); err == nil {
		t.Errorf("unknown speed should fail")
	}
}

func TestRateBook(t *testing.T) {
	ygn := domain.DefaultRateTable()
	ygn.Region = "YGN"
	ygn.BaseFee = decimal.NewFromInt(1200)
	pol := domain.DefaultRateTable()
	pol.Region = "POL"
	pol.BaseFee = decimal.NewFromInt(800)

	rb := NewRateBook(region.DefaultTable(), domain.DefaultRateTable(), ygn, pol)

	if got := rb.ForAddress("Bahan, Yangon"); !got.BaseFee.Equal(decimal.NewFromInt(1200)) {
		t.Errorf("yangon base = %s", got.BaseFee)
	}
	if got := rb.ForAddress("Pyin Oo Lwin, Mandalay"); got.Region != "POL" {
		t.Errorf("pyin oo lwin region = %q", got.Region)
	}
	if got := rb.ForAddress("Mandalay"); got.Region != "" {
		t.Errorf("mandalay has no override, got %q", got.Region)
	}
	if got := rb.ForAddress("Atlantis"); got.Region != "" || !got.BaseFee.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("unknown origin should use fallback, got %+v", got)
	}
	if got := rb.ForRegion(""); got.Region != "" {
		t.Errorf("empty region should use fallback")
	}
}
