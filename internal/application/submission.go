// internal/application/submission.go
package application

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mahabubulhasibshawon/parcel-express/internal/domain"
	"github.com/mahabubulhasibshawon/parcel-express/internal/logger"
	"github.com/mahabubulhasibshawon/parcel-express/internal/orderid"
	"github.com/mahabubulhasibshawon/parcel-express/internal/ports"
	"github.com/mahabubulhasibshawon/parcel-express/internal/pricing"
)

var phonePattern = regexp.MustCompile(`^0?9\d{7,9}$`)

const OfflineNotice = "No connection to the order service. Your order is saved on this device and will sync automatically."

type PartyForm struct {
	Name    string   `json:"name" validate:"notblank"`
	Phone   string   `json:"phone" validate:"notblank,phone"`
	Address string   `json:"address" validate:"notblank"`
	Lat     *float64 `json:"lat,omitempty" validate:"omitempty,latitude"`
	Lng     *float64 `json:"lng,omitempty" validate:"omitempty,longitude"`
}

type PackageForm struct {
	Category    domain.PackageCategory `json:"category" validate:"required,oneof=document standard overweight oversized fragile food_beverage"`
	Weight      *float64               `json:"weight,omitempty" validate:"omitempty,gt=0"`
	CODAmount   *float64               `json:"cod_amount,omitempty" validate:"omitempty,gte=0"`
	Description string                 `json:"description,omitempty" validate:"max=500"`
}

// OrderForm is what the customer fills in. Quote must hold the price returned by Quote.
type OrderForm struct {
	Sender        PartyForm            `json:"sender"`
	Receiver      PartyForm            `json:"receiver"`
	Package       PackageForm          `json:"package"`
	Speed         domain.DeliverySpeed `json:"delivery_speed" validate:"required,oneof=standard express scheduled"`
	ScheduledAt   string               `json:"scheduled_at,omitempty" validate:"required_if=Speed scheduled"`
	PaymentMethod domain.PaymentMethod `json:"payment_method" validate:"required,oneof=balance cash transfer"`
	DistanceKm    float64              `json:"distance_km" validate:"gte=0"`
	CustomerID    string               `json:"customer_id" validate:"notblank"`
	MerchantID    string               `json:"merchant_id,omitempty"`
	Quote         *domain.Price        `json:"quote,omitempty"`
}

type Outcome string

const (
	OutcomeSynced       Outcome = "synced"
	OutcomeSavedOffline Outcome = "saved_offline"
)

type SubmitResult struct {
	OrderID string
	Outcome Outcome
	Notice  string
	Order   *domain.Order
}

// SubmissionService turns a confirmed form into a durable order: it is written to the local
// queue before any network call and pushed to the order service when reachable.
type SubmissionService struct {
	queue    ports.LocalQueuePort
	remote   ports.RemoteOrderPort
	rates    ports.RateProviderPort
	book     *pricing.RateBook
	ids      *orderid.Generator
	sync     *SyncCoordinator
	validate *validator.Validate
	log      *zap.Logger
	tracer   trace.Tracer
	timeout  time.Duration
	now      func() time.Time

	// quoted holds the rate table behind the latest quote per rate region, so a confirmed
	// quote is re-checked without going back to the network.
	quotedMu sync.Mutex
	quoted   map[string]domain.RateTable
}

type SubmissionDeps struct {
	Queue  ports.LocalQueuePort
	Remote ports.RemoteOrderPort
	// Rates is optional; without it (or when it fails) Quote uses the local Book.
	Rates          ports.RateProviderPort
	Book           *pricing.RateBook
	IDs            *orderid.Generator
	Sync           *SyncCoordinator
	Log            *zap.Logger
	AttemptTimeout time.Duration
	Now            func() time.Time
}

func NewSubmissionService(d SubmissionDeps) *SubmissionService {
	if d.Book == nil {
		d.Book = pricing.DefaultRateBook()
	}
	if d.IDs == nil {
		d.IDs = orderid.New(d.Book.Regions(), nil, nil)
	}
	if d.AttemptTimeout <= 0 {
		d.AttemptTimeout = DefaultAttemptTimeout
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &SubmissionService{
		queue:    d.Queue,
		remote:   d.Remote,
		rates:    d.Rates,
		book:     d.Book,
		ids:      d.IDs,
		sync:     d.Sync,
		validate: newFormValidator(),
		log:      logger.OrNop(d.Log),
		tracer:   otel.GetTracerProvider().Tracer(instrumentationName),
		timeout:  d.AttemptTimeout,
		now:      d.Now,
		quoted:   make(map[string]domain.RateTable),
	}
}

func newFormValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	return v
}

// Quote is the explicit pricing step a form must go through before it can be submitted.
func (s *SubmissionService) Quote(ctx context.Context, form OrderForm) (domain.Price, error) {
	form = normalize(form)
	verr := domain.NewValidationError()
	if strings.TrimSpace(form.Sender.Address) == "" {
		verr.Add("sender.address", "required")
	}
	if !form.Package.Category.Valid() {
		verr.Add("package.category", "unknown category")
	}
	if !form.Speed.Valid() {
		verr.Add("delivery_speed", "unknown speed")
	}
	if form.DistanceKm < 0 {
		verr.Add("distance_km", "must not be negative")
	}
	if !verr.Empty() {
		return domain.Price{}, verr
	}
	rates := s.rateTable(ctx, form.Sender.Address)
	price, err := priceWith(form, rates)
	if err != nil {
		return domain.Price{}, err
	}
	s.quotedMu.Lock()
	s.quoted[rates.Region] = rates
	s.quotedMu.Unlock()
	return price, nil
}

func priceWith(form OrderForm, rates domain.RateTable) (domain.Price, error) {
	price, err := pricing.Calculate(form.DistanceKm, packageAttributes(form.Package), form.Speed, rates)
	if err != nil {
		return domain.Price{}, fmt.Errorf("%v: %w", err, domain.ErrValidation)
	}
	return price, nil
}

// confirmQuote checks the confirmed quote against the form without any network call. When this
// service produced the quote, the form is re-priced with the same rate table; otherwise the quote
// must at least describe this form's distance and add up. The order service re-verifies on create.
func (s *SubmissionService) confirmQuote(form OrderForm) (domain.Price, error) {
	quote := *form.Quote
	s.quotedMu.Lock()
	rates, ok := s.quoted[quote.RateRegion]
	s.quotedMu.Unlock()

	if ok {
		price, err := priceWith(form, rates)
		if err != nil {
			return domain.Price{}, err
		}
		if !pricing.SamePrice(price, quote) {
			return domain.Price{}, fmt.Errorf("quoted %s, current %s: %w", quote.Total, price.Total, domain.ErrPriceNotConfirmed)
		}
		return price, nil
	}

	b := quote.Breakdown
	sum := b.BaseFee.Add(b.DistanceFee).Add(b.WeightSurcharge).Add(b.CategorySurcharge).Add(b.SpeedSurcharge)
	if quote.DistanceKm != form.DistanceKm || quote.BillingKm != pricing.BillingKm(form.DistanceKm) || !sum.Equal(quote.Total) {
		return domain.Price{}, fmt.Errorf("quote for %.2f km does not match the form: %w", quote.DistanceKm, domain.ErrPriceNotConfirmed)
	}
	return quote, nil
}

// rateTable asks the rate service for the origin's region and falls back to the local book.
func (s *SubmissionService) rateTable(ctx context.Context, origin string) domain.RateTable {
	if s.rates == nil {
		return s.book.ForAddress(origin)
	}
	region, matched := s.book.Regions().Detect(origin)
	if !matched {
		region = ""
	}
	rctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	table, err := s.rates.RateTable(rctx, region)
	if err != nil {
		s.log.Debug("rate service unavailable, using local rates", zap.String("region", region), zap.Error(err))
		return s.book.ForAddress(origin)
	}
	return table
}

// SubmitOrder validates form, persists the order locally and then tries to deliver it.
// Failing to reach the order service is not an error: the result says the order was saved offline.
func (s *SubmissionService) SubmitOrder(ctx context.Context, form OrderForm) (*SubmitResult, error) {
	ctx, span := s.tracer.Start(ctx, "submission.submit_order")
	defer span.End()

	form = normalize(form)
	if err := s.check(form); err != nil {
		return nil, err
	}
	if form.Quote == nil {
		return nil, domain.ErrPriceNotConfirmed
	}
	price, err := s.confirmQuote(form)
	if err != nil {
		return nil, err
	}

	now := s.now()
	order := s.buildOrder(form, price, now)
	span.SetAttributes(attribute.String("order.id", order.ID))
	log := s.log.With(zap.String("order_id", order.ID))

	if err := s.queue.Save(ctx, order, domain.SyncPending); err != nil {
		log.Error("could not persist order locally", zap.Error(err))
		return nil, fmt.Errorf("persist order %s: %w", order.ID, err)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, s.timeout)
	err = s.remote.CreateOrder(attemptCtx, order)
	cancel()
	if err != nil {
		log.Info("order saved offline", zap.Error(err))
		if rerr := s.queue.RecordFailure(ctx, order.ID, err.Error()); rerr != nil {
			log.Warn("failed to record push failure", zap.Error(rerr))
		}
		return &SubmitResult{OrderID: order.ID, Outcome: OutcomeSavedOffline, Notice: OfflineNotice, Order: order}, nil
	}

	if err := s.queue.Save(ctx, order, domain.SyncSynced); err != nil {
		// The next sync pass resolves this through the duplicate answer.
		log.Warn("order delivered but local entry not updated", zap.Error(err))
	}
	if s.sync != nil {
		s.sync.SyncPendingOrders(ctx)
	}
	log.Info("order submitted")
	return &SubmitResult{OrderID: order.ID, Outcome: OutcomeSynced, Order: order}, nil
}

func (s *SubmissionService) check(form OrderForm) error {
	err := s.validate.Struct(form)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%v: %w", err, domain.ErrValidation)
	}
	verr := domain.NewValidationError()
	for _, fe := range fieldErrs {
		verr.Add(fieldPath(fe.Namespace()), fieldMessage(fe))
	}
	return verr
}

// fieldPath drops the root struct name: "OrderForm.sender.phone" -> "sender.phone".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "notblank", "required", "required_if":
		return "required"
	case "phone":
		return "must look like 09xxxxxxxx"
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return fmt.Sprintf("failed %s %s", fe.Tag(), fe.Param())
	}
}

func (s *SubmissionService) buildOrder(form OrderForm, price domain.Price, now time.Time) *domain.Order {
	order := &domain.Order{
		ID:            s.ids.Generate(form.Sender.Address, now),
		Sender:        partyFromForm(form.Sender),
		Receiver:      partyFromForm(form.Receiver),
		Package:       packageAttributes(form.Package),
		Speed:         form.Speed,
		ScheduledAt:   form.ScheduledAt,
		Price:         price,
		PaymentMethod: form.PaymentMethod,
		Region:        s.ids.Region(form.Sender.Address),
		CustomerID:    form.CustomerID,
		MerchantID:    form.MerchantID,
		CreatedAt:     now.UTC(),
		UpdatedAt:     now.UTC(),
	}
	order.Status = domain.InitialStatus(order.MerchantFulfilled(), order.PaymentMethod)
	return order
}

func partyFromForm(p PartyForm) domain.Party {
	return domain.Party{Name: p.Name, Phone: p.Phone, Address: p.Address, Lat: p.Lat, Lng: p.Lng}
}

func packageAttributes(p PackageForm) domain.PackageAttributes {
	attrs := domain.PackageAttributes{Category: p.Category, Weight: p.Weight, Description: p.Description}
	if p.CODAmount != nil {
		cod := decimal.NewFromFloat(*p.CODAmount)
		attrs.CODAmount = &cod
	}
	return attrs
}

var phoneSeparators = strings.NewReplacer(" ", "", "-", "")

func normalize(f OrderForm) OrderForm {
	for _, p := range []*PartyForm{&f.Sender, &f.Receiver} {
		p.Name = strings.TrimSpace(p.Name)
		p.Address = strings.TrimSpace(p.Address)
		p.Phone = phoneSeparators.Replace(strings.TrimSpace(p.Phone))
	}
	f.CustomerID = strings.TrimSpace(f.CustomerID)
	f.MerchantID = strings.TrimSpace(f.MerchantID)
	f.ScheduledAt = strings.TrimSpace(f.ScheduledAt)
	return f
}
