// internal/pricing/engine.go
package pricing

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/mahabubulhasibshawon/parcel-express/internal/domain"
)

// weightAllowance is the free weight, in kilograms, included with an overweight parcel.
var weightAllowance = decimal.NewFromInt(5)

var ErrInvalidDistance = errors.New("distance must be a finite, non-negative number of kilometres")

// BillingKm rounds a raw distance up to whole kilometres, never below 1.
func BillingKm(distanceKm float64) int64 {
	km := int64(math.Ceil(distanceKm))
	if km < 1 {
		return 1
	}
	return km
}

// Calculate prices a parcel. It is pure: the same inputs always give the same Price.
// Each component is rounded to a whole currency unit before it is added to the total.
func Calculate(distanceKm float64, pkg domain.PackageAttributes, speed domain.DeliverySpeed, rates domain.RateTable) (domain.Price, error) {
	if math.IsNaN(distanceKm) || math.IsInf(distanceKm, 0) || distanceKm < 0 {
		return domain.Price{}, ErrInvalidDistance
	}
	if !pkg.Category.Valid() {
		return domain.Price{}, fmt.Errorf("unknown package category %q", pkg.Category)
	}
	if !speed.Valid() {
		return domain.Price{}, fmt.Errorf("unknown delivery speed %q", speed)
	}

	billing := BillingKm(distanceKm)
	billingDec := decimal.NewFromInt(billing)

	b := domain.PriceBreakdown{
		BaseFee:           round(rates.BaseFee),
		DistanceFee:       round(distanceFee(billing, rates)),
		WeightSurcharge:   round(weightSurcharge(pkg, rates)),
		CategorySurcharge: round(categorySurcharge(billingDec, pkg.Category, rates)),
		SpeedSurcharge:    round(speedSurcharge(speed, rates)),
	}
	total := b.BaseFee.Add(b.DistanceFee).Add(b.WeightSurcharge).Add(b.CategorySurcharge).Add(b.SpeedSurcharge)

	return domain.Price{
		Total:      total,
		DistanceKm: distanceKm,
		BillingKm:  billing,
		RateRegion: rates.Region,
		Breakdown:  b,
	}, nil
}

func distanceFee(billing int64, rates domain.RateTable) decimal.Decimal {
	chargeable := billing - rates.FreeKmThreshold
	if chargeable <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(chargeable).Mul(rates.PerKmFee)
}

func weightSurcharge(pkg domain.PackageAttributes, rates domain.RateTable) decimal.Decimal {
	if pkg.Category != domain.CategoryOverweight || pkg.Weight == nil {
		return decimal.Zero
	}
	excess := decimal.NewFromFloat(*pkg.Weight).Sub(weightAllowance)
	if !excess.IsPositive() {
		return decimal.Zero
	}
	return excess.Mul(rates.WeightSurcharge)
}

func categorySurcharge(billing decimal.Decimal, category domain.PackageCategory, rates domain.RateTable) decimal.Decimal {
	switch category {
	case domain.CategoryOversized:
		return billing.Mul(rates.OversizeSurcharge)
	case domain.CategoryFragile:
		return billing.Mul(rates.FragileSurcharge)
	case domain.CategoryFoodBeverage:
		return billing.Mul(rates.FoodBeverageSurcharge)
	}
	return decimal.Zero
}

func speedSurcharge(speed domain.DeliverySpeed, rates domain.RateTable) decimal.Decimal {
	switch speed {
	case domain.SpeedExpress:
		return rates.UrgentSurcharge
	case domain.SpeedScheduled:
		return rates.ScheduledSurcharge
	}
	return decimal.Zero
}

func round(d decimal.Decimal) decimal.Decimal {
	return d.Round(0)
}

// SamePrice reports whether two quotes agree on every billed component.
func SamePrice(a, b domain.Price) bool {
	return a.Total.Equal(b.Total) &&
		a.BillingKm == b.BillingKm &&
		a.Breakdown.BaseFee.Equal(b.Breakdown.BaseFee) &&
		a.Breakdown.DistanceFee.Equal(b.Breakdown.DistanceFee) &&
		a.Breakdown.WeightSurcharge.Equal(b.Breakdown.WeightSurcharge) &&
		a.Breakdown.CategorySurcharge.Equal(b.Breakdown.CategorySurcharge) &&
		a.Breakdown.SpeedSurcharge.Equal(b.Breakdown.SpeedSurcharge)
}
