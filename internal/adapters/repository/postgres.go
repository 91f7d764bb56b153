// internal/adapters/repository/postgres.go
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/oklog/ulid/v2"

	"github.com/mahabubulhasibshawon/parcel-express/internal/domain"
	"github.com/mahabubulhasibshawon/parcel-express/internal/ports"
)

const uniqueViolation = "23505"

// Schema is applied at server start; every statement is idempotent.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS orders (
		id VARCHAR(32) PRIMARY KEY,
		status VARCHAR(32) NOT NULL,
		region VARCHAR(8) NOT NULL,
		customer_id VARCHAR(64) NOT NULL,
		merchant_id VARCHAR(64) NOT NULL DEFAULT '',
		courier_id VARCHAR(64) NOT NULL DEFAULT '',
		payment_method VARCHAR(16) NOT NULL,
		delivery_speed VARCHAR(16) NOT NULL,
		total_fee NUMERIC(14,0) NOT NULL,
		payload JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_customer_created ON orders (customer_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_merchant_created ON orders (merchant_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS order_status_events (
		id VARCHAR(26) PRIMARY KEY,
		order_id VARCHAR(32) NOT NULL REFERENCES orders(id),
		from_status VARCHAR(32) NOT NULL,
		to_status VARCHAR(32) NOT NULL,
		actor_id VARCHAR(64) NOT NULL,
		actor_role VARCHAR(16) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_order_status_events_order ON order_status_events (order_id, created_at)`,
}

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) ports.OrderRepositoryPort {
	return &PostgresRepository{db: db}
}

func Migrate(ctx context.Context, db *sql.DB) error {
	for _, q := range Schema {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// CreateOrder inserts the order. A primary key clash is reported as domain.ErrDuplicateOrder.
func (r *PostgresRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	payload, err := json.Marshal(order)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO orders (
			id, status, region, customer_id, merchant_id, courier_id, payment_method, delivery_speed,
			total_fee, payload, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = r.db.ExecContext(ctx, query,
		order.ID, order.Status, order.Region, order.CustomerID, order.MerchantID, order.CourierID,
		order.PaymentMethod, order.Speed, order.Price.Total.String(), payload, order.CreatedAt, order.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("order %s: %w", order.ID, domain.ErrDuplicateOrder)
	}
	return err
}

func (r *PostgresRepository) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT payload, status, courier_id, updated_at FROM orders WHERE id = $1", id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", id, domain.ErrOrderNotFound)
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

// UpdateStatus applies upd only if the stored status still equals upd.Expected, and records the
// change in order_status_events within the same transaction.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, upd domain.StatusUpdate) (*domain.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $1, courier_id = CASE WHEN $2 = '' THEN courier_id ELSE $2 END, updated_at = $3
		WHERE id = $4 AND status = $5`,
		upd.To, upd.CourierID, upd.At, upd.OrderID, upd.Expected,
	)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		var current domain.Status
		err := tx.QueryRowContext(ctx, "SELECT status FROM orders WHERE id = $1", upd.OrderID).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("order %s: %w", upd.OrderID, domain.ErrOrderNotFound)
		}
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("order %s is %s, expected %s: %w", upd.OrderID, current, upd.Expected, domain.ErrStaleStatus)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO order_status_events (id, order_id, from_status, to_status, actor_id, actor_role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ulid.Make().String(), upd.OrderID, upd.Expected, upd.To, upd.Actor.ID, upd.Actor.Role, upd.At,
	)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRowContext(ctx,
		"SELECT payload, status, courier_id, updated_at FROM orders WHERE id = $1", upd.OrderID)
	o, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *PostgresRepository) ListOrders(ctx context.Context, filter domain.ListFilter) ([]*domain.Order, int64, error) {
	limit, page := filter.Limit, filter.Page
	if limit < 1 {
		limit = 10
	}
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit

	var conds []string
	var args []interface{}
	if filter.CustomerID != "" {
		args = append(args, filter.CustomerID)
		conds = append(conds, fmt.Sprintf("customer_id = $%d", len(args)))
	}
	if filter.MerchantID != "" {
		args = append(args, filter.MerchantID)
		conds = append(conds, fmt.Sprintf("merchant_id = $%d", len(args)))
	}
	if !filter.CreatedSince.IsZero() {
		args = append(args, filter.CreatedSince)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if len(conds) == 0 {
		return nil, 0, errors.New("list orders: a customer or merchant filter is required")
	}
	where := " WHERE " + strings.Join(conds, " AND ")

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM orders"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(
		"SELECT payload, status, courier_id, updated_at FROM orders%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d",
		where, len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, o)
	}
	return orders, total, rows.Err()
}

func (r *PostgresRepository) ListStatusEvents(ctx context.Context, orderID string) ([]domain.StatusEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, from_status, to_status, actor_id, actor_role, created_at
		FROM order_status_events WHERE order_id = $1 ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.StatusEvent
	for rows.Next() {
		var e domain.StatusEvent
		if err := rows.Scan(&e.ID, &e.OrderID, &e.From, &e.To, &e.ActorID, &e.ActorRole, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanOrder decodes the stored document and overlays the columns that change after creation.
func scanOrder(s scanner) (*domain.Order, error) {
	var (
		payload   []byte
		status    domain.Status
		courierID string
		updatedAt time.Time
	)
	if err := s.Scan(&payload, &status, &courierID, &updatedAt); err != nil {
		return nil, err
	}
	var o domain.Order
	if err := json.Unmarshal(payload, &o); err != nil {
		return nil, fmt.Errorf("decode order payload: %w", err)
	}
	o.Status = status
	o.CourierID = courierID
	o.UpdatedAt = updatedAt
	return &o, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
