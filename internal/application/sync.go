// internal/application/sync.go
package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mahabubulhasibshawon/parcel-express/internal/domain"
	"github.com/mahabubulhasibshawon/parcel-express/internal/logger"
	"github.com/mahabubulhasibshawon/parcel-express/internal/ports"
)

const instrumentationName = "github.com/mahabubulhasibshawon/parcel-express/internal/application"

const DefaultAttemptTimeout = 10 * time.Second

// SyncReport summarises one pass over the local queue.
type SyncReport struct {
	RunID      string
	Attempted  int
	Synced     int
	Duplicates int
	Failed     int
	// ListErr is set when the queue itself could not be read; nothing was attempted.
	ListErr error
}

// SyncCoordinator pushes locally queued orders to the order service. Passes may overlap: the
// service's unique order ID decides, and a duplicate answer counts as delivered.
type SyncCoordinator struct {
	queue          ports.LocalQueuePort
	remote         ports.RemoteOrderPort
	log            *zap.Logger
	attemptTimeout time.Duration
	tracer         trace.Tracer
	outcomes       metric.Int64Counter
}

func NewSyncCoordinator(queue ports.LocalQueuePort, remote ports.RemoteOrderPort, log *zap.Logger, attemptTimeout time.Duration) *SyncCoordinator {
	if attemptTimeout <= 0 {
		attemptTimeout = DefaultAttemptTimeout
	}
	meter := otel.GetMeterProvider().Meter(instrumentationName)
	outcomes, err := meter.Int64Counter("parcel.sync.orders",
		metric.WithDescription("Queued orders processed by sync passes, by outcome"))
	if err != nil {
		outcomes = nil
	}
	return &SyncCoordinator{
		queue:          queue,
		remote:         remote,
		log:            logger.OrNop(log),
		attemptTimeout: attemptTimeout,
		tracer:         otel.GetTracerProvider().Tracer(instrumentationName),
		outcomes:       outcomes,
	}
}

// SyncPendingOrders makes one best-effort pass over every pending entry, oldest first.
// Remote failures leave the entry pending and are recorded on it; they are never returned.
func (c *SyncCoordinator) SyncPendingOrders(ctx context.Context) SyncReport {
	report := SyncReport{RunID: ulid.Make().String()}
	log := c.log.With(zap.String("sync_run", report.RunID))

	ctx, span := c.tracer.Start(ctx, "sync.pending_orders", trace.WithAttributes(attribute.String("sync.run_id", report.RunID)))
	defer span.End()

	entries, err := c.queue.ListPending(ctx)
	if err != nil {
		log.Error("failed to read local queue", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		report.ListErr = err
		return report
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		report.Attempted++
		switch outcome := c.push(ctx, log, entry); outcome {
		case outcomeSynced:
			report.Synced++
		case outcomeDuplicate:
			report.Duplicates++
		default:
			report.Failed++
		}
	}

	span.SetAttributes(
		attribute.Int("sync.attempted", report.Attempted),
		attribute.Int("sync.synced", report.Synced),
		attribute.Int("sync.duplicates", report.Duplicates),
		attribute.Int("sync.failed", report.Failed),
	)
	if report.Attempted > 0 {
		log.Info("sync pass finished",
			zap.Int("attempted", report.Attempted),
			zap.Int("synced", report.Synced),
			zap.Int("duplicates", report.Duplicates),
			zap.Int("failed", report.Failed))
	}
	return report
}

type syncOutcome string

const (
	outcomeSynced    syncOutcome = "synced"
	outcomeDuplicate syncOutcome = "duplicate"
	outcomeFailed    syncOutcome = "failed"
)

func (c *SyncCoordinator) push(ctx context.Context, log *zap.Logger, entry domain.LocalQueueEntry) syncOutcome {
	log = log.With(zap.String("order_id", entry.ID))

	var order domain.Order
	if err := json.Unmarshal(entry.Payload, &order); err != nil {
		c.fail(ctx, log, entry.ID, fmt.Errorf("decode payload: %w", err))
		return c.count(ctx, outcomeFailed)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	err := c.remote.CreateOrder(attemptCtx, &order)
	cancel()

	outcome := outcomeSynced
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrDuplicateOrder):
		// Already on the server: a lost acknowledgement or a concurrent pass got there first.
		outcome = outcomeDuplicate
	default:
		c.fail(ctx, log, entry.ID, err)
		return c.count(ctx, outcomeFailed)
	}

	if err := c.queue.MarkSynced(ctx, entry.ID); err != nil {
		log.Error("order delivered but could not be marked synced", zap.Error(err))
		return c.count(ctx, outcomeFailed)
	}
	log.Debug("order synced", zap.String("outcome", string(outcome)))
	return c.count(ctx, outcome)
}

func (c *SyncCoordinator) fail(ctx context.Context, log *zap.Logger, id string, cause error) {
	log.Warn("sync attempt failed, order stays queued", zap.Error(cause))
	if err := c.queue.RecordFailure(ctx, id, cause.Error()); err != nil {
		log.Error("failed to record sync failure", zap.Error(err))
	}
}

func (c *SyncCoordinator) count(ctx context.Context, o syncOutcome) syncOutcome {
	if c.outcomes != nil {
		c.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(o))))
	}
	return o
}

// Run syncs once immediately, then every interval until ctx is done.
func (c *SyncCoordinator) Run(ctx context.Context, interval time.Duration) {
	c.SyncPendingOrders(ctx)
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.SyncPendingOrders(ctx)
		}
	}
}
