// internal/adapters/localqueue/sqlite.go
package localqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/clause"

	"github.com/mahabubulhasibshawon/parcel-express/internal/domain"
	"github.com/mahabubulhasibshawon/parcel-express/internal/logger"
)

type queuedOrder struct {
	ID            string            `gorm:"primaryKey;size:32"`
	Payload       []byte            `gorm:"not null"`
	SyncStatus    domain.SyncStatus `gorm:"size:16;not null;index:idx_local_orders_pending,priority:1"`
	ErrorMessage  string
	Attempts      int       `gorm:"not null;default:0"`
	CreatedAt     time.Time `gorm:"not null;index:idx_local_orders_pending,priority:2"`
	SyncedAt      *time.Time
	LastAttemptAt *time.Time
}

func (queuedOrder) TableName() string {
	return "local_orders"
}

func (q queuedOrder) entry() domain.LocalQueueEntry {
	return domain.LocalQueueEntry{
		ID:            q.ID,
		Payload:       q.Payload,
		SyncStatus:    q.SyncStatus,
		ErrorMessage:  q.ErrorMessage,
		Attempts:      q.Attempts,
		CreatedAt:     q.CreatedAt,
		SyncedAt:      q.SyncedAt,
		LastAttemptAt: q.LastAttemptAt,
	}
}

// SQLiteQueue keeps submitted orders on the device until the order service acknowledges them.
type SQLiteQueue struct {
	db  *gorm.DB
	log *zap.Logger
	now func() time.Time
}

// Open opens (creating if needed) the queue file at path and migrates its schema.
func Open(path string, log *zap.Logger) (*SQLiteQueue, error) {
	dsn := fmt.Sprintf("%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open local queue %s: %w", path, err)
	}
	q := NewSQLiteQueue(db, log)
	if err := q.Migrate(); err != nil {
		return nil, err
	}
	return q, nil
}

func NewSQLiteQueue(db *gorm.DB, log *zap.Logger) *SQLiteQueue {
	return &SQLiteQueue{db: db, log: logger.OrNop(log), now: func() time.Time { return time.Now().UTC() }}
}

func (q *SQLiteQueue) Migrate() error {
	if err := q.db.AutoMigrate(&queuedOrder{}); err != nil {
		return fmt.Errorf("migrate local queue: %w", err)
	}
	return nil
}

func (q *SQLiteQueue) Close() error {
	sqlDB, err := q.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Save upserts the order by ID. The payload is always replaced; a synced entry stays synced.
func (q *SQLiteQueue) Save(ctx context.Context, order *domain.Order, status domain.SyncStatus) error {
	if order == nil || order.ID == "" {
		return errors.New("local queue: order id is required")
	}
	payload, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("encode order %s: %w", order.ID, err)
	}

	now := q.now()
	row := queuedOrder{
		ID:         order.ID,
		Payload:    payload,
		SyncStatus: status,
		CreatedAt:  now,
	}
	if status == domain.SyncSynced {
		row.SyncedAt = &now
	}

	err = q.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.Set{
				{Column: clause.Column{Name: "payload"}, Value: gorm.Expr("excluded.payload")},
				{Column: clause.Column{Name: "sync_status"}, Value: gorm.Expr(
					"CASE WHEN local_orders.sync_status = ? THEN local_orders.sync_status ELSE excluded.sync_status END",
					domain.SyncSynced)},
				{Column: clause.Column{Name: "synced_at"}, Value: gorm.Expr("COALESCE(local_orders.synced_at, excluded.synced_at)")},
				{Column: clause.Column{Name: "error_message"}, Value: gorm.Expr(
					"CASE WHEN excluded.sync_status = ? THEN '' ELSE local_orders.error_message END",
					domain.SyncSynced)},
			},
		}).
		Create(&row).Error
	if err != nil {
		q.log.Error("local queue save failed", zap.String("order_id", order.ID), zap.Error(err))
		return fmt.Errorf("save order %s: %w", order.ID, err)
	}
	return nil
}

// ListPending returns every entry not yet synced, oldest first.
func (q *SQLiteQueue) ListPending(ctx context.Context) ([]domain.LocalQueueEntry, error) {
	var rows []queuedOrder
	err := q.db.WithContext(ctx).
		Where("sync_status <> ?", domain.SyncSynced).
		Order("created_at ASC").Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list pending orders: %w", err)
	}
	entries := make([]domain.LocalQueueEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, r.entry())
	}
	return entries, nil
}

// MarkSynced flips a pending entry to synced. Marking an already synced entry is a no-op.
func (q *SQLiteQueue) MarkSynced(ctx context.Context, id string) error {
	now := q.now()
	res := q.db.WithContext(ctx).Model(&queuedOrder{}).
		Where("id = ? AND sync_status <> ?", id, domain.SyncSynced).
		Updates(map[string]interface{}{
			"sync_status":   domain.SyncSynced,
			"synced_at":     now,
			"error_message": "",
		})
	if res.Error != nil {
		return fmt.Errorf("mark %s synced: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return q.mustExist(ctx, id)
	}
	return nil
}

// RecordFailure notes a failed push attempt on a pending entry.
func (q *SQLiteQueue) RecordFailure(ctx context.Context, id string, message string) error {
	res := q.db.WithContext(ctx).Model(&queuedOrder{}).
		Where("id = ? AND sync_status <> ?", id, domain.SyncSynced).
		Updates(map[string]interface{}{
			"error_message":   message,
			"attempts":        gorm.Expr("attempts + 1"),
			"last_attempt_at": q.now(),
		})
	if res.Error != nil {
		return fmt.Errorf("record failure for %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return q.mustExist(ctx, id)
	}
	return nil
}

func (q *SQLiteQueue) Get(ctx context.Context, id string) (*domain.LocalQueueEntry, error) {
	var row queuedOrder
	err := q.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%s: %w", id, domain.ErrQueueEntryNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	e := row.entry()
	return &e, nil
}

func (q *SQLiteQueue) Stats(ctx context.Context) (domain.QueueStats, error) {
	var counts []struct {
		SyncStatus domain.SyncStatus
		N          int64
	}
	err := q.db.WithContext(ctx).Model(&queuedOrder{}).
		Select("sync_status, COUNT(*) AS n").
		Group("sync_status").
		Scan(&counts).Error
	if err != nil {
		return domain.QueueStats{}, fmt.Errorf("queue stats: %w", err)
	}
	var stats domain.QueueStats
	for _, c := range counts {
		if c.SyncStatus == domain.SyncSynced {
			stats.Synced += c.N
		} else {
			stats.Pending += c.N
		}
	}
	return stats, nil
}

func (q *SQLiteQueue) mustExist(ctx context.Context, id string) error {
	var n int64
	if err := q.db.WithContext(ctx).Model(&queuedOrder{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return fmt.Errorf("lookup %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", id, domain.ErrQueueEntryNotFound)
	}
	return nil
}
