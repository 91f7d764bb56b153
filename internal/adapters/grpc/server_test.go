// internal/adapters/grpc/server_test.go
package grpc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	pb "github.com/mahabubulhasibshawon/parcel-express/internal/adapters/grpc/proto"
	"github.com/mahabubulhasibshawon/parcel-express/internal/application"
	"github.com/mahabubulhasibshawon/parcel-express/internal/domain"
	"github.com/mahabubulhasibshawon/parcel-express/internal/ports"
	"github.com/mahabubulhasibshawon/parcel-express/pkg/auth"
)

const bufSize = 1024 * 1024

var testSecret = []byte("test-secret")

type testEnv struct {
	repo  *ports.MockOrderRepositoryPort
	cache *ports.MockCachePort
	lis   *bufconn.Listener
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	ctrl := gomock.NewController(t)
	env := &testEnv{
		repo:  ports.NewMockOrderRepositoryPort(ctrl),
		cache: ports.NewMockCachePort(ctrl),
		lis:   bufconn.Listen(bufSize),
	}
	svc := application.NewOrderService(env.repo, env.cache, nil, nil)

	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(RequestLogger(nil), AuthInterceptor(testSecret)))
	pb.RegisterOrderServiceServer(grpcServer, NewServer(svc))
	go func() { _ = grpcServer.Serve(env.lis) }()
	t.Cleanup(grpcServer.Stop)
	return env
}

// client dials the in-memory server as actor; an empty actor ID sends no token.
func (e *testEnv) client(t *testing.T, actor domain.Actor) *RemoteClient {
	t.Helper()
	token := ""
	if actor.ID != "" {
		var err error
		token, err = auth.GenerateToken(testSecret, actor.ID, string(actor.Role), time.Hour)
		require.NoError(t, err)
	}
	conn, err := Dial("passthrough:///bufnet", token, grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return e.lis.DialContext(ctx)
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewRemoteClient(conn)
}

var (
	customer = domain.Actor{ID: "cust-1", Role: domain.RoleCustomer}
	merchant = domain.Actor{ID: "merch-1", Role: domain.RoleMerchant}
	courier  = domain.Actor{ID: "courier-1", Role: domain.RoleCourier}
)

func testOrder(status domain.Status) *domain.Order {
	cod := decimal.NewFromInt(25000)
	return &domain.Order{
		ID:       "MDY20250101093042",
		Status:   status,
		Sender:   domain.Party{Name: "Aye Aye", Phone: "0912345678", Address: "35th St, Mandalay"},
		Receiver: domain.Party{Name: "Ko Ko", Phone: "0998765432", Address: "78th St, Mandalay"},
		Package:  domain.PackageAttributes{Category: domain.CategoryFragile, CODAmount: &cod},
		Speed:    domain.SpeedExpress,
		Price: domain.Price{
			Total: decimal.NewFromInt(5500), DistanceKm: 4.2, BillingKm: 5,
			Breakdown: domain.PriceBreakdown{
				BaseFee:           decimal.NewFromInt(1000),
				DistanceFee:       decimal.NewFromInt(1000),
				CategorySurcharge: decimal.NewFromInt(2000),
				SpeedSurcharge:    decimal.NewFromInt(1500),
			},
		},
		PaymentMethod: domain.PaymentTransfer,
		Region:        "MDY",
		CustomerID:    customer.ID,
		MerchantID:    merchant.ID,
		CreatedAt:     time.Date(2025, 1, 1, 3, 0, 0, 0, time.UTC),
		UpdatedAt:     time.Date(2025, 1, 1, 3, 0, 0, 0, time.UTC),
	}
}

func TestGRPCServer_CreateOrder(t *testing.T) {
	env := setupTestServer(t)
	client := env.client(t, customer)
	ctx := context.Background()

	tests := []struct {
		name      string
		mockSetup func()
		wantErr   error
	}{
		{
			name: "CreateOrder_Success",
			mockSetup: func() {
				env.repo.EXPECT().CreateOrder(gomock.Any(), gomock.Any()).DoAndReturn(
					func(_ context.Context, o *domain.Order) error {
						assert.Equal(t, "MDY20250101093042", o.ID)
						assert.Equal(t, "78th St, Mandalay", o.Receiver.Address)
						assert.True(t, o.Price.Total.Equal(decimal.NewFromInt(5500)))
						assert.True(t, o.Package.CODAmount.Equal(decimal.NewFromInt(25000)))
						return nil
					})
				env.cache.EXPECT().DeleteByPrefix(gomock.Any(), gomock.Any()).Return(nil).Times(2)
			},
		},
		{
			name: "CreateOrder_Duplicate",
			mockSetup: func() {
				env.repo.EXPECT().CreateOrder(gomock.Any(), gomock.Any()).Return(domain.ErrDuplicateOrder)
			},
			wantErr: domain.ErrDuplicateOrder,
		},
		{
			name: "CreateOrder_StoreDown",
			mockSetup: func() {
				env.repo.EXPECT().CreateOrder(gomock.Any(), gomock.Any()).Return(errors.New("connection reset"))
			},
			wantErr: domain.ErrRemoteUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockSetup()
			err := client.CreateOrder(ctx, testOrder(domain.StatusPendingConfirmation))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestGRPCServer_CreateOrder_Validation(t *testing.T) {
	env := setupTestServer(t)
	client := env.client(t, customer)

	o := testOrder(domain.StatusInTransit)
	err := client.CreateOrder(context.Background(), o)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestGRPCServer_RequiresToken(t *testing.T) {
	env := setupTestServer(t)
	anonymous := env.client(t, domain.Actor{})

	err := anonymous.CreateOrder(context.Background(), testOrder(domain.StatusPendingConfirmation))
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = anonymous.GetOrder(context.Background(), "MDY20250101093042")
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestGRPCServer_RejectsForeignToken(t *testing.T) {
	env := setupTestServer(t)
	token, err := auth.GenerateToken([]byte("other-secret"), customer.ID, string(customer.Role), time.Hour)
	require.NoError(t, err)
	conn, err := Dial("passthrough:///bufnet", token, grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return env.lis.DialContext(ctx)
	}))
	require.NoError(t, err)
	defer conn.Close()

	_, _, err = NewRemoteClient(conn).ListOrders(context.Background(), domain.ListFilter{})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestGRPCServer_GetOrder(t *testing.T) {
	env := setupTestServer(t)
	client := env.client(t, merchant)
	ctx := context.Background()

	t.Run("GetOrder_WithHistory", func(t *testing.T) {
		at := time.Date(2025, 1, 1, 4, 0, 0, 0, time.UTC)
		env.repo.EXPECT().GetOrder(gomock.Any(), "MDY20250101093042").Return(testOrder(domain.StatusPacking), nil)
		env.repo.EXPECT().ListStatusEvents(gomock.Any(), "MDY20250101093042").Return([]domain.StatusEvent{{
			ID: "01JGQ6Z1", OrderID: "MDY20250101093042",
			From: domain.StatusPendingConfirmation, To: domain.StatusPacking,
			ActorID: merchant.ID, ActorRole: domain.RoleMerchant, CreatedAt: at,
		}}, nil)

		order, events, err := client.OrderHistory(ctx, "MDY20250101093042")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPacking, order.Status)
		assert.Equal(t, domain.PaymentTransfer, order.PaymentMethod)
		require.Len(t, events, 1)
		assert.Equal(t, domain.StatusPacking, events[0].To)
		assert.True(t, at.Equal(events[0].CreatedAt))
	})

	t.Run("GetOrder_NotFound", func(t *testing.T) {
		env.repo.EXPECT().GetOrder(gomock.Any(), "MDY20250101093099").Return(nil, domain.ErrOrderNotFound)

		_, err := client.GetOrder(ctx, "MDY20250101093099")
		assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	})
}

func TestGRPCServer_Lifecycle(t *testing.T) {
	env := setupTestServer(t)
	lc := application.NewLifecycle(env.client(t, merchant), nil)
	ctx := context.Background()
	env.cache.EXPECT().DeleteByPrefix(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	env.repo.EXPECT().ListStatusEvents(gomock.Any(), gomock.Any()).Return(nil, nil).AnyTimes()

	t.Run("Accept_Success", func(t *testing.T) {
		env.repo.EXPECT().GetOrder(gomock.Any(), "MDY20250101093042").Return(testOrder(domain.StatusPendingConfirmation), nil).Times(2)
		env.repo.EXPECT().UpdateStatus(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, upd domain.StatusUpdate) (*domain.Order, error) {
				assert.Equal(t, merchant, upd.Actor)
				return testOrder(upd.To), nil
			})

		updated, err := lc.Transition(ctx, "MDY20250101093042", domain.ActionAccept, merchant)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPacking, updated.Status)
	})

	t.Run("Accept_Stale", func(t *testing.T) {
		// The device read pending_confirmation; by the time it writes, another device has accepted.
		gomock.InOrder(
			env.repo.EXPECT().GetOrder(gomock.Any(), "MDY20250101093042").Return(testOrder(domain.StatusPendingConfirmation), nil),
			env.repo.EXPECT().GetOrder(gomock.Any(), "MDY20250101093042").Return(testOrder(domain.StatusPacking), nil),
		)

		_, err := lc.Transition(ctx, "MDY20250101093042", domain.ActionAccept, merchant)
		assert.ErrorIs(t, err, domain.ErrStaleStatus)
	})

	t.Run("Decline_Cancelled", func(t *testing.T) {
		env.repo.EXPECT().GetOrder(gomock.Any(), "MDY20250101093042").Return(testOrder(domain.StatusCancelled), nil)

		_, err := lc.Transition(ctx, "MDY20250101093042", domain.ActionDecline, merchant)
		assert.ErrorIs(t, err, domain.ErrStaleStatus)
	})
}

func TestGRPCServer_UpdateStatus_CourierMayNotAccept(t *testing.T) {
	env := setupTestServer(t)
	client := env.client(t, courier)

	env.repo.EXPECT().GetOrder(gomock.Any(), "MDY20250101093042").Return(testOrder(domain.StatusPendingConfirmation), nil)

	_, err := client.UpdateStatus(context.Background(), domain.StatusUpdate{
		OrderID:  "MDY20250101093042",
		Expected: domain.StatusPendingConfirmation,
		To:       domain.StatusPacking,
	})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestGRPCServer_ListOrders(t *testing.T) {
	env := setupTestServer(t)
	client := env.client(t, customer)

	since := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	env.cache.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, ports.ErrCacheMiss)
	env.repo.EXPECT().ListOrders(gomock.Any(), domain.ListFilter{CustomerID: customer.ID, CreatedSince: since, Limit: 2, Page: 1}).
		Return([]*domain.Order{testOrder(domain.StatusPacking), testOrder(domain.StatusCancelled)}, int64(3), nil)
	env.cache.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	orders, total, err := client.ListOrders(context.Background(), domain.ListFilter{CreatedSince: since, Limit: 2, Page: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, orders, 2)
	assert.Equal(t, domain.StatusCancelled, orders[1].Status)
}

func TestGRPCServer_GetRateTable_Public(t *testing.T) {
	env := setupTestServer(t)
	anonymous := env.client(t, domain.Actor{})

	env.cache.EXPECT().Get(gomock.Any(), "rates:default").Return(nil, ports.ErrCacheMiss)
	env.cache.EXPECT().Set(gomock.Any(), "rates:default", gomock.Any()).Return(nil)

	table, err := anonymous.RateTable(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, table.PerKmFee.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, int64(3), table.FreeKmThreshold)
}

func TestEnvelopeCodes(t *testing.T) {
	tests := []struct {
		err  error
		code int32
		kind error
	}{
		{domain.NewValidationError(), CodeValidation, domain.ErrValidation},
		{domain.ErrPriceNotConfirmed, CodeValidation, domain.ErrValidation},
		{domain.ErrForbidden, CodeForbidden, domain.ErrForbidden},
		{domain.ErrOrderNotFound, CodeNotFound, domain.ErrOrderNotFound},
		{domain.ErrDuplicateOrder, CodeDuplicate, domain.ErrDuplicateOrder},
		{domain.ErrStaleStatus, CodeStale, domain.ErrStaleStatus},
		{domain.ErrIllegalTransition, CodeIllegal, domain.ErrIllegalTransition},
		{errors.New("boom"), CodeInternal, domain.ErrRemoteUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			code := envelopeCode(context.Background(), tt.err)
			assert.Equal(t, tt.code, code)
			assert.ErrorIs(t, envelopeError(code, "x"), tt.kind)
		})
	}
	assert.NoError(t, envelopeError(CodeOK, ""))
}
