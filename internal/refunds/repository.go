package refunds

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/coursehub/checkout/internal/models"
	"github.com/coursehub/checkout/pkg/database"
)

const refundColumns = `id, payment_id, remote_id, amount, currency, status, reason, description, processed_at, created_at, updated_at`

// Repository handles refunds persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a refunds repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a refund.
func (r *Repository) Create(ctx context.Context, rf *models.Refund) error {
	const q = `INSERT INTO refunds (payment_id, remote_id, amount, currency, status, reason, description, processed_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8)
		RETURNING id, created_at, updated_at`
	return database.Conn(ctx, r.pool).QueryRow(ctx, q, rf.PaymentID, rf.RemoteID, rf.Amount, rf.Currency, rf.Status,
		rf.Reason, rf.Description, rf.ProcessedAt).Scan(&rf.ID, &rf.CreatedAt, &rf.UpdatedAt)
}

// GetByID returns a refund by local id.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Refund, error) {
	return r.get(ctx, `SELECT `+refundColumns+` FROM refunds WHERE id = $1`, id)
}

// GetByRemoteIDForUpdate locks the refund with the given gateway id.
func (r *Repository) GetByRemoteIDForUpdate(ctx context.Context, remoteID string) (*models.Refund, error) {
	return r.get(ctx, `SELECT `+refundColumns+` FROM refunds WHERE remote_id = $1 FOR UPDATE`, remoteID)
}

// Update writes status and processed_at. processed_at is set once.
func (r *Repository) Update(ctx context.Context, rf *models.Refund) error {
	const q = `UPDATE refunds SET status = $2, processed_at = COALESCE(processed_at, $3), updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	err := database.Conn(ctx, r.pool).QueryRow(ctx, q, rf.ID, rf.Status, rf.ProcessedAt).Scan(&rf.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrRefundNotFound
	}
	return err
}

// SumSucceeded returns the total of succeeded refunds for a payment.
func (r *Repository) SumSucceeded(ctx context.Context, paymentID uuid.UUID) (decimal.Decimal, error) {
	const q = `SELECT COALESCE(SUM(amount), 0) FROM refunds WHERE payment_id = $1 AND status = 'SUCCEEDED'`
	var sum decimal.Decimal
	err := database.Conn(ctx, r.pool).QueryRow(ctx, q, paymentID).Scan(&sum)
	return sum, err
}

// List returns a filtered page of refunds, newest first, and the total count.
func (r *Repository) List(ctx context.Context, f models.RefundFilter, limit, offset int) ([]*models.Refund, int, error) {
	var where []string
	var args []any
	if f.PaymentID != nil {
		args = append(args, *f.PaymentID)
		where = append(where, fmt.Sprintf("payment_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	conn := database.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM refunds`+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	q := fmt.Sprintf(`SELECT %s FROM refunds%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		refundColumns, cond, len(args)+1, len(args)+2)
	rows, err := conn.Query(ctx, q, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var list []*models.Refund
	for rows.Next() {
		rf, err := scanRefund(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, rf)
	}
	return list, total, rows.Err()
}

func (r *Repository) get(ctx context.Context, q string, args ...any) (*models.Refund, error) {
	rf, err := scanRefund(database.Conn(ctx, r.pool).QueryRow(ctx, q, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrRefundNotFound
	}
	return rf, err
}

func scanRefund(row pgx.Row) (*models.Refund, error) {
	var rf models.Refund
	var reason, desc *string
	err := row.Scan(&rf.ID, &rf.PaymentID, &rf.RemoteID, &rf.Amount, &rf.Currency, &rf.Status, &reason, &desc,
		&rf.ProcessedAt, &rf.CreatedAt, &rf.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if reason != nil {
		rf.Reason = *reason
	}
	if desc != nil {
		rf.Description = *desc
	}
	return &rf, nil
}
