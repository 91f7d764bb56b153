// internal/application/order_service.go
package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mahabubulhasibshawon/parcel-express/internal/domain"
	"github.com/mahabubulhasibshawon/parcel-express/internal/logger"
	"github.com/mahabubulhasibshawon/parcel-express/internal/ports"
	"github.com/mahabubulhasibshawon/parcel-express/internal/pricing"
)

// OrderService is the authoritative side of the order pipeline: it owns creation, status
// compare-and-set and the listing/rate reads devices make.
type OrderService struct {
	repo  ports.OrderRepositoryPort
	cache ports.CachePort
	rates *pricing.RateBook
	log   *zap.Logger
	now   func() time.Time
}

func NewOrderService(repo ports.OrderRepositoryPort, cache ports.CachePort, rates *pricing.RateBook, log *zap.Logger) *OrderService {
	if rates == nil {
		rates = pricing.DefaultRateBook()
	}
	return &OrderService{
		repo:  repo,
		cache: cache,
		rates: rates,
		log:   logger.OrNop(log),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// OrderPage is one page of a listing, as cached.
type OrderPage struct {
	Orders []*domain.Order `json:"orders"`
	Total  int64           `json:"total"`
}

// CreateOrder stores an order submitted by a customer device. The ID is chosen by the device,
// so a repeated push of the same order surfaces as domain.ErrDuplicateOrder.
func (s *OrderService) CreateOrder(ctx context.Context, order *domain.Order, actor domain.Actor) error {
	if err := s.checkNewOrder(order, actor); err != nil {
		return err
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = s.now()
	}
	order.UpdatedAt = order.CreatedAt

	s.verifyPrice(ctx, order)

	if err := s.repo.CreateOrder(ctx, order); err != nil {
		return err
	}
	s.invalidate(ctx, order)
	return nil
}

func (s *OrderService) checkNewOrder(order *domain.Order, actor domain.Actor) error {
	if actor.Role != domain.RoleCustomer || actor.ID == "" {
		return fmt.Errorf("only customers create orders: %w", domain.ErrForbidden)
	}
	if order.CustomerID != actor.ID {
		return fmt.Errorf("order belongs to %q, not %q: %w", order.CustomerID, actor.ID, domain.ErrForbidden)
	}
	verr := domain.NewValidationError()
	if order.ID == "" {
		verr.Add("id", "required")
	}
	if order.Sender.Address == "" {
		verr.Add("sender.address", "required")
	}
	if order.Receiver.Address == "" {
		verr.Add("receiver.address", "required")
	}
	if !order.Package.Category.Valid() {
		verr.Add("package.category", "unknown category")
	}
	if !order.Speed.Valid() {
		verr.Add("delivery_speed", "unknown speed")
	}
	if !order.PaymentMethod.Valid() {
		verr.Add("payment_method", "unknown payment method")
	}
	if want := domain.InitialStatus(order.MerchantFulfilled(), order.PaymentMethod); order.Status != want {
		verr.Add("status", fmt.Sprintf("new orders start at %s", want))
	}
	if order.CourierID != "" {
		verr.Add("courier_id", "assigned at pickup")
	}
	if !verr.Empty() {
		return verr
	}
	return nil
}

// verifyPrice re-runs the engine against the server's rate book. A device that priced offline
// against its built-in tables may legitimately differ, so a mismatch is logged, not rejected.
func (s *OrderService) verifyPrice(ctx context.Context, order *domain.Order) {
	rates := s.rates.ForRegion(order.Price.RateRegion)
	price, err := pricing.Calculate(order.Price.DistanceKm, order.Package, order.Speed, rates)
	if err != nil || !price.Total.Equal(order.Price.Total) {
		logger.FromContext(ctx).Warn("submitted price differs from server rates",
			zap.String("order_id", order.ID),
			zap.String("submitted", order.Price.Total.String()),
			zap.String("server", price.Total.String()),
			zap.Error(err))
	}
}

func (s *OrderService) GetOrder(ctx context.Context, id string, actor domain.Actor) (*domain.Order, []domain.StatusEvent, error) {
	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !canView(order, actor) {
		return nil, nil, fmt.Errorf("%s may not view %s: %w", actor.ID, id, domain.ErrForbidden)
	}
	events, err := s.repo.ListStatusEvents(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return order, events, nil
}

func canView(o *domain.Order, actor domain.Actor) bool {
	switch actor.Role {
	case domain.RoleCustomer:
		return o.CustomerID == actor.ID
	case domain.RoleMerchant:
		return o.MerchantID == actor.ID
	case domain.RoleCourier:
		return o.CourierID == "" || o.CourierID == actor.ID
	}
	return false
}

// UpdateStatus performs a compare-and-set transition on behalf of upd.Actor.
func (s *OrderService) UpdateStatus(ctx context.Context, upd domain.StatusUpdate) (*domain.Order, error) {
	if !upd.Expected.Valid() || !upd.To.Valid() {
		return nil, fmt.Errorf("%q -> %q: %w", upd.Expected, upd.To, domain.ErrIllegalTransition)
	}
	order, err := s.repo.GetOrder(ctx, upd.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status != upd.Expected {
		return nil, fmt.Errorf("order %s is %s, expected %s: %w", order.ID, order.Status, upd.Expected, domain.ErrStaleStatus)
	}
	if err := domain.ActorMayUpdate(order, upd); err != nil {
		return nil, err
	}
	if upd.To == domain.StatusPickedUp {
		upd.CourierID = upd.Actor.ID
	} else {
		upd.CourierID = ""
	}
	upd.At = s.now()

	updated, err := s.repo.UpdateStatus(ctx, upd)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("order status changed",
		zap.String("order_id", upd.OrderID),
		zap.String("from", string(upd.Expected)),
		zap.String("to", string(upd.To)),
		zap.String("actor_id", upd.Actor.ID))
	s.invalidate(ctx, updated)
	return updated, nil
}

// ListOrders lists the actor's own orders: customers see what they sent, merchants what they fulfil.
func (s *OrderService) ListOrders(ctx context.Context, filter domain.ListFilter, actor domain.Actor) (*OrderPage, error) {
	switch actor.Role {
	case domain.RoleCustomer:
		filter.CustomerID, filter.MerchantID = actor.ID, ""
	case domain.RoleMerchant:
		filter.CustomerID, filter.MerchantID = "", actor.ID
	default:
		return nil, fmt.Errorf("%s may not list orders: %w", actor.Role, domain.ErrForbidden)
	}
	if filter.Limit < 1 {
		filter.Limit = 10
	}
	if filter.Page < 1 {
		filter.Page = 1
	}

	key := orderListKey(actor, filter)
	if data, err := s.cache.Get(ctx, key); err == nil {
		var page OrderPage
		if err := json.Unmarshal(data, &page); err == nil {
			return &page, nil
		}
	} else if !errors.Is(err, ports.ErrCacheMiss) {
		s.log.Warn("order list cache read failed", zap.String("key", key), zap.Error(err))
	}

	orders, total, err := s.repo.ListOrders(ctx, filter)
	if err != nil {
		return nil, err
	}
	page := &OrderPage{Orders: orders, Total: total}
	if err := s.cache.Set(ctx, key, page); err != nil {
		s.log.Warn("order list cache write failed", zap.String("key", key), zap.Error(err))
	}
	return page, nil
}

// RateTable serves the region/rate configuration. An empty or unknown region gets the global default.
func (s *OrderService) RateTable(ctx context.Context, region string) (domain.RateTable, error) {
	key := rateTableKey(region)
	if data, err := s.cache.Get(ctx, key); err == nil {
		var table domain.RateTable
		if err := json.Unmarshal(data, &table); err == nil {
			return table, nil
		}
	}
	table := s.rates.ForRegion(region)
	if err := s.cache.Set(ctx, key, table); err != nil {
		s.log.Warn("rate cache write failed", zap.String("key", key), zap.Error(err))
	}
	return table, nil
}

func (s *OrderService) invalidate(ctx context.Context, o *domain.Order) {
	prefixes := []string{orderListPrefix(domain.RoleCustomer, o.CustomerID)}
	if o.MerchantID != "" {
		prefixes = append(prefixes, orderListPrefix(domain.RoleMerchant, o.MerchantID))
	}
	for _, p := range prefixes {
		if err := s.cache.DeleteByPrefix(ctx, p); err != nil {
			s.log.Warn("cache invalidation failed", zap.String("prefix", p), zap.Error(err))
		}
	}
}

func orderListPrefix(role domain.ActorRole, id string) string {
	return fmt.Sprintf("orders:%s:%s:", role, id)
}

func orderListKey(actor domain.Actor, f domain.ListFilter) string {
	var since int64
	if !f.CreatedSince.IsZero() {
		since = f.CreatedSince.Unix()
	}
	return fmt.Sprintf("%s%d:%d:%d", orderListPrefix(actor.Role, actor.ID), since, f.Limit, f.Page)
}

func rateTableKey(region string) string {
	if region == "" {
		return "rates:default"
	}
	return "rates:" + region
}
