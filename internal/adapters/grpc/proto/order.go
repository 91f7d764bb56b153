// internal/adapters/grpc/proto/order.go
package proto

// Money travels as decimal strings; timestamps as RFC 3339. order.proto is the contract these types mirror.

type Party struct {
	Name    string   `json:"name"`
	Phone   string   `json:"phone"`
	Address string   `json:"address"`
	Lat     *float64 `json:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty"`
}

type PriceBreakdown struct {
	BaseFee           string `json:"base_fee"`
	DistanceFee       string `json:"distance_fee"`
	WeightSurcharge   string `json:"weight_surcharge"`
	CategorySurcharge string `json:"category_surcharge"`
	SpeedSurcharge    string `json:"speed_surcharge"`
}

type Order struct {
	Id            string          `json:"id"`
	Status        string          `json:"status"`
	Sender        *Party          `json:"sender"`
	Receiver      *Party          `json:"receiver"`
	Category      string          `json:"category"`
	Weight        *float64        `json:"weight,omitempty"`
	CodAmount     string          `json:"cod_amount,omitempty"`
	Description   string          `json:"description,omitempty"`
	DeliverySpeed string          `json:"delivery_speed"`
	ScheduledAt   string          `json:"scheduled_at,omitempty"`
	TotalFee      string          `json:"total_fee"`
	DistanceKm    float64         `json:"distance_km"`
	BillingKm     int64           `json:"billing_km"`
	RateRegion    string          `json:"rate_region,omitempty"`
	Breakdown     *PriceBreakdown `json:"breakdown"`
	PaymentMethod string          `json:"payment_method"`
	Region        string          `json:"region"`
	CustomerId    string          `json:"customer_id"`
	MerchantId    string          `json:"merchant_id,omitempty"`
	CourierId     string          `json:"courier_id,omitempty"`
	CreatedAt     string          `json:"created_at"`
	UpdatedAt     string          `json:"updated_at"`
}

type StatusEvent struct {
	Id         string `json:"id"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
	ActorId    string `json:"actor_id"`
	ActorRole  string `json:"actor_role"`
	CreatedAt  string `json:"created_at"`
}

type RateTable struct {
	Region                string `json:"region"`
	BaseFee               string `json:"base_fee"`
	PerKmFee              string `json:"per_km_fee"`
	FreeKmThreshold       int64  `json:"free_km_threshold"`
	WeightSurcharge       string `json:"weight_surcharge"`
	OversizeSurcharge     string `json:"oversize_surcharge"`
	FragileSurcharge      string `json:"fragile_surcharge"`
	FoodBeverageSurcharge string `json:"food_beverage_surcharge"`
	UrgentSurcharge       string `json:"urgent_surcharge"`
	ScheduledSurcharge    string `json:"scheduled_surcharge"`
}

type CreateOrderRequest struct {
	Order *Order `json:"order"`
}

type OrderData struct {
	OrderId     string `json:"order_id"`
	OrderStatus string `json:"order_status"`
	TotalFee    string `json:"total_fee"`
}

type CreateOrderResponse struct {
	Message string     `json:"message"`
	Type    string     `json:"type"`
	Code    int32      `json:"code"`
	Data    *OrderData `json:"data,omitempty"`
}

type UpdateOrderStatusRequest struct {
	OrderId        string `json:"order_id"`
	ExpectedStatus string `json:"expected_status"`
	NextStatus     string `json:"next_status"`
	CourierId      string `json:"courier_id,omitempty"`
}

type UpdateOrderStatusResponse struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int32  `json:"code"`
	Data    *Order `json:"data,omitempty"`
}

type GetOrderRequest struct {
	OrderId string `json:"order_id"`
}

type GetOrderResponse struct {
	Message string         `json:"message"`
	Type    string         `json:"type"`
	Code    int32          `json:"code"`
	Data    *Order         `json:"data,omitempty"`
	Events  []*StatusEvent `json:"events,omitempty"`
}

type ListOrdersRequest struct {
	CreatedSince string `json:"created_since,omitempty"`
	Limit        int64  `json:"limit"`
	Page         int64  `json:"page"`
}

type OrdersData struct {
	Orders      []*Order `json:"orders"`
	Total       int64    `json:"total"`
	CurrentPage int64    `json:"current_page"`
	PerPage     int64    `json:"per_page"`
	TotalInPage int64    `json:"total_in_page"`
	LastPage    int64    `json:"last_page"`
}

type ListOrdersResponse struct {
	Message string      `json:"message"`
	Type    string      `json:"type"`
	Code    int32       `json:"code"`
	Data    *OrdersData `json:"data,omitempty"`
}

type GetRateTableRequest struct {
	Region string `json:"region,omitempty"`
}

type GetRateTableResponse struct {
	Message string     `json:"message"`
	Type    string     `json:"type"`
	Code    int32      `json:"code"`
	Data    *RateTable `json:"data,omitempty"`
}
