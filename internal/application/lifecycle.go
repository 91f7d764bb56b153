// internal/application/lifecycle.go
package application

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mahabubulhasibshawon/parcel-express/internal/domain"
	"github.com/mahabubulhasibshawon/parcel-express/internal/logger"
	"github.com/mahabubulhasibshawon/parcel-express/internal/ports"
)

// Lifecycle drives status transitions from a merchant or courier device.
type Lifecycle struct {
	remote ports.RemoteOrderPort
	log    *zap.Logger
	now    func() time.Time
}

func NewLifecycle(remote ports.RemoteOrderPort, log *zap.Logger) *Lifecycle {
	return &Lifecycle{remote: remote, log: logger.OrNop(log), now: time.Now}
}

// Transition reads the order's current remote status, checks that actor may perform action from
// there, and asks the service to compare-and-set. A domain.ErrStaleStatus means the order is no
// longer where the action starts, either at read time or at write time; it is never retried.
func (l *Lifecycle) Transition(ctx context.Context, orderID string, action domain.Action, actor domain.Actor) (*domain.Order, error) {
	current, err := l.remote.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	upd, err := domain.PlanTransition(current, action, actor)
	if err != nil {
		if errors.Is(err, domain.ErrStaleStatus) {
			l.log.Info("transition rejected, order already moved on",
				zap.String("order_id", orderID), zap.String("action", string(action)),
				zap.String("status", string(current.Status)))
		}
		return nil, err
	}
	upd.At = l.now()

	updated, err := l.remote.UpdateStatus(ctx, upd)
	if err != nil {
		if errors.Is(err, domain.ErrStaleStatus) {
			l.log.Info("transition rejected, order changed since read",
				zap.String("order_id", orderID), zap.String("action", string(action)))
		}
		return nil, err
	}
	l.log.Info("order transitioned",
		zap.String("order_id", orderID),
		zap.String("action", string(action)),
		zap.String("status", string(updated.Status)))
	return updated, nil
}
