// internal/ports/ports.go
package ports

//go:generate mockgen -source=ports.go -destination=mock_ports.go -package=ports

import (
	"context"
	"errors"

	"github.com/mahabubulhasibshawon/parcel-express/internal/domain"
)

// OrderRepositoryPort is the authoritative order store behind the order service.
type OrderRepositoryPort interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	UpdateStatus(ctx context.Context, upd domain.StatusUpdate) (*domain.Order, error)
	ListOrders(ctx context.Context, filter domain.ListFilter) ([]*domain.Order, int64, error)
	ListStatusEvents(ctx context.Context, orderID string) ([]domain.StatusEvent, error)
}

type CachePort interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value interface{}) error
	DeleteByPrefix(ctx context.Context, prefix string) error
	Ping(ctx context.Context) error
}

// LocalQueuePort is the on-device durable store of submitted orders.
type LocalQueuePort interface {
	Save(ctx context.Context, order *domain.Order, status domain.SyncStatus) error
	ListPending(ctx context.Context) ([]domain.LocalQueueEntry, error)
	MarkSynced(ctx context.Context, id string) error
	RecordFailure(ctx context.Context, id string, message string) error
	Get(ctx context.Context, id string) (*domain.LocalQueueEntry, error)
	Stats(ctx context.Context) (domain.QueueStats, error)
}

// RemoteOrderPort is the device's view of the order service.
type RemoteOrderPort interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	UpdateStatus(ctx context.Context, upd domain.StatusUpdate) (*domain.Order, error)
	ListOrders(ctx context.Context, filter domain.ListFilter) ([]*domain.Order, int64, error)
}

// RateProviderPort is the region/rate configuration service. An empty region asks for the global default.
type RateProviderPort interface {
	RateTable(ctx context.Context, region string) (domain.RateTable, error)
}

// ErrCacheMiss is returned by CachePort.Get for an absent key.
var ErrCacheMiss = errors.New("cache miss")
