// internal/adapters/grpc/convert.go
package grpc

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	pb "github.com/mahabubulhasibshawon/parcel-express/internal/adapters/grpc/proto"
	"github.com/mahabubulhasibshawon/parcel-express/internal/domain"
)

func toPBParty(p domain.Party) *pb.Party {
	return &pb.Party{Name: p.Name, Phone: p.Phone, Address: p.Address, Lat: p.Lat, Lng: p.Lng}
}

func fromPBParty(p *pb.Party) domain.Party {
	if p == nil {
		return domain.Party{}
	}
	return domain.Party{Name: p.Name, Phone: p.Phone, Address: p.Address, Lat: p.Lat, Lng: p.Lng}
}

func toPBOrder(o *domain.Order) *pb.Order {
	out := &pb.Order{
		Id:            o.ID,
		Status:        string(o.Status),
		Sender:        toPBParty(o.Sender),
		Receiver:      toPBParty(o.Receiver),
		Category:      string(o.Package.Category),
		Weight:        o.Package.Weight,
		Description:   o.Package.Description,
		DeliverySpeed: string(o.Speed),
		ScheduledAt:   o.ScheduledAt,
		TotalFee:      o.Price.Total.String(),
		DistanceKm:    o.Price.DistanceKm,
		BillingKm:     o.Price.BillingKm,
		RateRegion:    o.Price.RateRegion,
		Breakdown: &pb.PriceBreakdown{
			BaseFee:           o.Price.Breakdown.BaseFee.String(),
			DistanceFee:       o.Price.Breakdown.DistanceFee.String(),
			WeightSurcharge:   o.Price.Breakdown.WeightSurcharge.String(),
			CategorySurcharge: o.Price.Breakdown.CategorySurcharge.String(),
			SpeedSurcharge:    o.Price.Breakdown.SpeedSurcharge.String(),
		},
		PaymentMethod: string(o.PaymentMethod),
		Region:        o.Region,
		CustomerId:    o.CustomerID,
		MerchantId:    o.MerchantID,
		CourierId:     o.CourierID,
		CreatedAt:     formatTime(o.CreatedAt),
		UpdatedAt:     formatTime(o.UpdatedAt),
	}
	if o.Package.CODAmount != nil {
		out.CodAmount = o.Package.CODAmount.String()
	}
	return out
}

func fromPBOrder(p *pb.Order) (*domain.Order, error) {
	if p == nil {
		return nil, fmt.Errorf("order is required: %w", domain.ErrValidation)
	}
	var err error
	o := &domain.Order{
		ID:     p.Id,
		Status: domain.Status(p.Status),
		Sender: fromPBParty(p.Sender),
		Package: domain.PackageAttributes{
			Category:    domain.PackageCategory(p.Category),
			Weight:      p.Weight,
			Description: p.Description,
		},
		Receiver:      fromPBParty(p.Receiver),
		Speed:         domain.DeliverySpeed(p.DeliverySpeed),
		ScheduledAt:   p.ScheduledAt,
		PaymentMethod: domain.PaymentMethod(p.PaymentMethod),
		Region:        p.Region,
		CustomerID:    p.CustomerId,
		MerchantID:    p.MerchantId,
		CourierID:     p.CourierId,
		Price: domain.Price{
			DistanceKm: p.DistanceKm,
			BillingKm:  p.BillingKm,
			RateRegion: p.RateRegion,
		},
	}
	if p.CodAmount != "" {
		cod, err := decimal.NewFromString(p.CodAmount)
		if err != nil {
			return nil, fmt.Errorf("cod_amount: %w", domain.ErrValidation)
		}
		o.Package.CODAmount = &cod
	}
	d := decimalParser{}
	o.Price.Total = d.parse("total_fee", p.TotalFee)
	if b := p.Breakdown; b != nil {
		o.Price.Breakdown = domain.PriceBreakdown{
			BaseFee:           d.parse("base_fee", b.BaseFee),
			DistanceFee:       d.parse("distance_fee", b.DistanceFee),
			WeightSurcharge:   d.parse("weight_surcharge", b.WeightSurcharge),
			CategorySurcharge: d.parse("category_surcharge", b.CategorySurcharge),
			SpeedSurcharge:    d.parse("speed_surcharge", b.SpeedSurcharge),
		}
	}
	if d.err != nil {
		return nil, d.err
	}
	if o.CreatedAt, err = parseTime(p.CreatedAt); err != nil {
		return nil, fmt.Errorf("created_at: %w", domain.ErrValidation)
	}
	if o.UpdatedAt, err = parseTime(p.UpdatedAt); err != nil {
		return nil, fmt.Errorf("updated_at: %w", domain.ErrValidation)
	}
	return o, nil
}

func toPBEvent(e domain.StatusEvent) *pb.StatusEvent {
	return &pb.StatusEvent{
		Id:         e.ID,
		FromStatus: string(e.From),
		ToStatus:   string(e.To),
		ActorId:    e.ActorID,
		ActorRole:  string(e.ActorRole),
		CreatedAt:  formatTime(e.CreatedAt),
	}
}

func fromPBEvent(orderID string, e *pb.StatusEvent) domain.StatusEvent {
	at, _ := parseTime(e.CreatedAt)
	return domain.StatusEvent{
		ID:        e.Id,
		OrderID:   orderID,
		From:      domain.Status(e.FromStatus),
		To:        domain.Status(e.ToStatus),
		ActorID:   e.ActorId,
		ActorRole: domain.ActorRole(e.ActorRole),
		CreatedAt: at,
	}
}

func toPBRateTable(t domain.RateTable) *pb.RateTable {
	return &pb.RateTable{
		Region:                t.Region,
		BaseFee:               t.BaseFee.String(),
		PerKmFee:              t.PerKmFee.String(),
		FreeKmThreshold:       t.FreeKmThreshold,
		WeightSurcharge:       t.WeightSurcharge.String(),
		OversizeSurcharge:     t.OversizeSurcharge.String(),
		FragileSurcharge:      t.FragileSurcharge.String(),
		FoodBeverageSurcharge: t.FoodBeverageSurcharge.String(),
		UrgentSurcharge:       t.UrgentSurcharge.String(),
		ScheduledSurcharge:    t.ScheduledSurcharge.String(),
	}
}

func fromPBRateTable(p *pb.RateTable) (domain.RateTable, error) {
	if p == nil {
		return domain.RateTable{}, fmt.Errorf("empty rate table: %w", domain.ErrRemoteUnavailable)
	}
	d := decimalParser{}
	t := domain.RateTable{
		Region:                p.Region,
		BaseFee:               d.parse("base_fee", p.BaseFee),
		PerKmFee:              d.parse("per_km_fee", p.PerKmFee),
		FreeKmThreshold:       p.FreeKmThreshold,
		WeightSurcharge:       d.parse("weight_surcharge", p.WeightSurcharge),
		OversizeSurcharge:     d.parse("oversize_surcharge", p.OversizeSurcharge),
		FragileSurcharge:      d.parse("fragile_surcharge", p.FragileSurcharge),
		FoodBeverageSurcharge: d.parse("food_beverage_surcharge", p.FoodBeverageSurcharge),
		UrgentSurcharge:       d.parse("urgent_surcharge", p.UrgentSurcharge),
		ScheduledSurcharge:    d.parse("scheduled_surcharge", p.ScheduledSurcharge),
	}
	return t, d.err
}

// decimalParser keeps the first parse failure so a message can be decoded field by field.
type decimalParser struct {
	err error
}

func (d *decimalParser) parse(field, s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	v, err := decimal.NewFromString(s)
	if err != nil && d.err == nil {
		d.err = fmt.Errorf("%s %q: %w", field, s, domain.ErrValidation)
	}
	return v
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
