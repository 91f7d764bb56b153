// internal/domain/models.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PackageCategory string

const (
	CategoryDocument     PackageCategory = "document"
	CategoryStandard     PackageCategory = "standard"
	CategoryOverweight   PackageCategory = "overweight"
	CategoryOversized    PackageCategory = "oversized"
	CategoryFragile      PackageCategory = "fragile"
	CategoryFoodBeverage PackageCategory = "food_beverage"
)

func (c PackageCategory) Valid() bool {
	switch c {
	case CategoryDocument, CategoryStandard, CategoryOverweight, CategoryOversized, CategoryFragile, CategoryFoodBeverage:
		return true
	}
	return false
}

type DeliverySpeed string

const (
	SpeedStandard  DeliverySpeed = "standard"
	SpeedExpress   DeliverySpeed = "express"
	SpeedScheduled DeliverySpeed = "scheduled"
)

func (s DeliverySpeed) Valid() bool {
	return s == SpeedStandard || s == SpeedExpress || s == SpeedScheduled
}

type PaymentMethod string

const (
	PaymentBalance  PaymentMethod = "balance"
	PaymentCash     PaymentMethod = "cash"
	PaymentTransfer PaymentMethod = "transfer"
)

func (p PaymentMethod) Valid() bool {
	return p == PaymentBalance || p == PaymentCash || p == PaymentTransfer
}

// Prepaid reports whether the order is settled before the courier arrives.
func (p PaymentMethod) Prepaid() bool {
	return p == PaymentBalance || p == PaymentTransfer
}

type Party struct {
	Name    string   `json:"name"`
	Phone   string   `json:"phone"`
	Address string   `json:"address"`
	Lat     *float64 `json:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty"`
}

type PackageAttributes struct {
	Category    PackageCategory  `json:"category"`
	Weight      *float64         `json:"weight,omitempty"`
	CODAmount   *decimal.Decimal `json:"cod_amount,omitempty"`
	Description string           `json:"description,omitempty"`
}

type PriceBreakdown struct {
	BaseFee           decimal.Decimal `json:"base_fee"`
	DistanceFee       decimal.Decimal `json:"distance_fee"`
	WeightSurcharge   decimal.Decimal `json:"weight_surcharge"`
	CategorySurcharge decimal.Decimal `json:"category_surcharge"`
	SpeedSurcharge    decimal.Decimal `json:"speed_surcharge"`
}

type Price struct {
	Total      decimal.Decimal `json:"total"`
	DistanceKm float64         `json:"distance_km"`
	BillingKm  int64           `json:"billing_km"`
	RateRegion string          `json:"rate_region,omitempty"`
	Breakdown  PriceBreakdown  `json:"breakdown"`
}

type Order struct {
	ID            string            `json:"id"`
	Status        Status            `json:"status"`
	Sender        Party             `json:"sender"`
	Receiver      Party             `json:"receiver"`
	Package       PackageAttributes `json:"package"`
	Speed         DeliverySpeed     `json:"delivery_speed"`
	ScheduledAt   string            `json:"scheduled_at,omitempty"`
	Price         Price             `json:"price"`
	PaymentMethod PaymentMethod     `json:"payment_method"`
	Region        string            `json:"region"`
	CustomerID    string            `json:"customer_id"`
	MerchantID    string            `json:"merchant_id,omitempty"`
	CourierID     string            `json:"courier_id,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// MerchantFulfilled reports whether the order goes through a merchant accept/pack step.
func (o *Order) MerchantFulfilled() bool {
	return o.MerchantID != ""
}

type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSynced  SyncStatus = "synced"
)

type LocalQueueEntry struct {
	ID            string
	Payload       []byte
	SyncStatus    SyncStatus
	ErrorMessage  string
	Attempts      int
	CreatedAt     time.Time
	SyncedAt      *time.Time
	LastAttemptAt *time.Time
}

type QueueStats struct {
	Pending int64
	Synced  int64
}

type ActorRole string

const (
	RoleCustomer ActorRole = "customer"
	RoleMerchant ActorRole = "merchant"
	RoleCourier  ActorRole = "courier"
)

type Actor struct {
	ID   string
	Role ActorRole
}

type StatusEvent struct {
	ID        string
	OrderID   string
	From      Status
	To        Status
	ActorID   string
	ActorRole ActorRole
	CreatedAt time.Time
}

// StatusUpdate is a compare-and-set request: apply To only while the order is still at Expected.
type StatusUpdate struct {
	OrderID   string
	Expected  Status
	To        Status
	Actor     Actor
	CourierID string
	At        time.Time
}

type ListFilter struct {
	CustomerID   string
	MerchantID   string
	CreatedSince time.Time
	Limit        int64
	Page         int64
}

type RateTable struct {
	Region                string          `json:"region"`
	BaseFee               decimal.Decimal `json:"base_fee"`
	PerKmFee              decimal.Decimal `json:"per_km_fee"`
	FreeKmThreshold       int64           `json:"free_km_threshold"`
	WeightSurcharge       decimal.Decimal `json:"weight_surcharge"`
	OversizeSurcharge     decimal.Decimal `json:"oversize_surcharge"`
	FragileSurcharge      decimal.Decimal `json:"fragile_surcharge"`
	FoodBeverageSurcharge decimal.Decimal `json:"food_beverage_surcharge"`
	UrgentSurcharge       decimal.Decimal `json:"urgent_surcharge"`
	ScheduledSurcharge    decimal.Decimal `json:"scheduled_surcharge"`
}

// DefaultRateTable is the global fallback used when no region matches.
func DefaultRateTable() RateTable {
	return RateTable{
		BaseFee:               decimal.NewFromInt(1000),
		PerKmFee:              decimal.NewFromInt(500),
		FreeKmThreshold:       3,
		WeightSurcharge:       decimal.NewFromInt(150),
		OversizeSurcharge:     decimal.NewFromInt(300),
		FragileSurcharge:      decimal.NewFromInt(400),
		FoodBeverageSurcharge: decimal.NewFromInt(300),
		UrgentSurcharge:       decimal.NewFromInt(1500),
		ScheduledSurcharge:    decimal.NewFromInt(500),
	}
}
