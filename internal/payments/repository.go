package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coursehub/checkout/internal/models"
	"github.com/coursehub/checkout/pkg/database"
)

const paymentColumns = `id, order_id, remote_id, status, amount, currency, payment_method, description,
	confirmation_url, metadata, paid_at, cancelled_at, refunded_at, created_at, updated_at`

// Repository handles payments persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a payments repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a payment. A second payment for the same order yields ErrPaymentExists.
func (r *Repository) Create(ctx context.Context, p *models.Payment) error {
	meta, err := json.Marshal(p.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if p.Metadata == nil {
		meta = []byte("{}")
	}
	const q = `INSERT INTO payments (order_id, remote_id, status, amount, currency, payment_method, description,
			confirmation_url, metadata, paid_at, cancelled_at, refunded_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''), $9::jsonb, $10, $11, $12)
		RETURNING id, created_at, updated_at`
	err = database.Conn(ctx, r.pool).QueryRow(ctx, q, p.OrderID, p.RemoteID, p.Status, p.Amount, p.Currency,
		p.PaymentMethod, p.Description, p.ConfirmationURL, string(meta), p.PaidAt, p.CancelledAt, p.RefundedAt).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if database.IsUniqueViolation(err) {
		return models.ErrPaymentExists
	}
	return err
}

// GetByID returns a payment by local id.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return r.get(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
}

// GetByOrderID returns the payment attached to an order.
func (r *Repository) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	return r.get(ctx, `SELECT `+paymentColumns+` FROM payments WHERE order_id = $1`, orderID)
}

// GetByIDForUpdate locks the payment row until the surrounding transaction ends.
func (r *Repository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return r.get(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`, id)
}

// GetByRemoteIDForUpdate locks the payment with the given gateway id. Concurrent
// deliveries for the same remote payment queue up here.
func (r *Repository) GetByRemoteIDForUpdate(ctx context.Context, remoteID string) (*models.Payment, error) {
	return r.get(ctx, `SELECT `+paymentColumns+` FROM payments WHERE remote_id = $1 FOR UPDATE`, remoteID)
}

// Update writes the mutable payment fields. Lifecycle timestamps never move once set.
func (r *Repository) Update(ctx context.Context, p *models.Payment) error {
	const q = `UPDATE payments SET
			status = $2,
			payment_method = NULLIF($3, ''),
			confirmation_url = NULLIF($4, ''),
			paid_at = COALESCE(paid_at, $5),
			cancelled_at = COALESCE(cancelled_at, $6),
			refunded_at = COALESCE(refunded_at, $7),
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	err := database.Conn(ctx, r.pool).QueryRow(ctx, q, p.ID, p.Status, p.PaymentMethod, p.ConfirmationURL,
		p.PaidAt, p.CancelledAt, p.RefundedAt).Scan(&p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrPaymentNotFound
	}
	return err
}

// Touch bumps updated_at without changing anything else.
func (r *Repository) Touch(ctx context.Context, id uuid.UUID) error {
	tag, err := database.Conn(ctx, r.pool).Exec(ctx, `UPDATE payments SET updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrPaymentNotFound
	}
	return nil
}

// ListStale returns payments in one of statuses that have a remote id and were last
// touched before updatedBefore, oldest first.
func (r *Repository) ListStale(ctx context.Context, statuses []models.PaymentStatus, updatedBefore time.Time, limit int) ([]*models.Payment, error) {
	ss := make([]string, len(statuses))
	for i, s := range statuses {
		ss[i] = string(s)
	}
	const q = `SELECT ` + paymentColumns + `
		FROM payments
		WHERE status = ANY($1::text[]) AND remote_id IS NOT NULL AND updated_at < $2
		ORDER BY updated_at
		LIMIT $3`
	rows, err := database.Conn(ctx, r.pool).Query(ctx, q, ss, updatedBefore, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

func (r *Repository) get(ctx context.Context, q string, args ...any) (*models.Payment, error) {
	p, err := scanPayment(database.Conn(ctx, r.pool).QueryRow(ctx, q, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrPaymentNotFound
	}
	return p, err
}

func scanPayment(row pgx.Row) (*models.Payment, error) {
	var p models.Payment
	var method, desc, confURL *string
	var meta []byte
	err := row.Scan(&p.ID, &p.OrderID, &p.RemoteID, &p.Status, &p.Amount, &p.Currency, &method, &desc,
		&confURL, &meta, &p.PaidAt, &p.CancelledAt, &p.RefundedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if method != nil {
		p.PaymentMethod = *method
	}
	if desc != nil {
		p.Description = *desc
	}
	if confURL != nil {
		p.ConfirmationURL = *confURL
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &p.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return &p, nil
}
