package webhooks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coursehub/checkout/internal/models"
	"github.com/coursehub/checkout/pkg/database"
)

const eventColumns = `id, event_type, object_id, payload, processed, processing_error, processed_at, created_at`

// Repository is the append-only webhook_events ledger. Rows are never deleted.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a webhook ledger repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record appends a delivery to the ledger.
func (r *Repository) Record(ctx context.Context, ev *models.WebhookEvent) error {
	const q = `INSERT INTO webhook_events (event_type, object_id, payload)
		VALUES ($1, NULLIF($2, ''), $3::jsonb)
		RETURNING id, processed, created_at`
	return database.Conn(ctx, r.pool).QueryRow(ctx, q, ev.EventType, ev.ObjectID, string(ev.Payload)).
		Scan(&ev.ID, &ev.Processed, &ev.CreatedAt)
}

// MarkProcessed flags the delivery as handled and clears any earlier error.
func (r *Repository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE webhook_events SET processed = TRUE, processing_error = NULL, processed_at = NOW() WHERE id = $1`
	return r.exec(ctx, q, id)
}

// MarkFailed stores the processing error of the latest attempt.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, msg string) error {
	const q = `UPDATE webhook_events SET processed = FALSE, processing_error = $2 WHERE id = $1`
	return r.exec(ctx, q, id, msg)
}

// GetByID returns one ledger row.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.WebhookEvent, error) {
	const q = `SELECT ` + eventColumns + ` FROM webhook_events WHERE id = $1`
	ev, err := scanEvent(database.Conn(ctx, r.pool).QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrWebhookEventNotFound
	}
	return ev, err
}

// List returns a filtered page of the ledger, newest first, and the total count.
func (r *Repository) List(ctx context.Context, f models.WebhookEventFilter, limit, offset int) ([]*models.WebhookEvent, int, error) {
	var where []string
	var args []any
	if f.Processed != nil {
		args = append(args, *f.Processed)
		where = append(where, fmt.Sprintf("processed = $%d", len(args)))
	}
	if f.EventType != "" {
		args = append(args, f.EventType)
		where = append(where, fmt.Sprintf("event_type = $%d", len(args)))
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	conn := database.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM webhook_events`+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	q := fmt.Sprintf(`SELECT %s FROM webhook_events%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		eventColumns, cond, len(args)+1, len(args)+2)
	rows, err := conn.Query(ctx, q, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var list []*models.WebhookEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, ev)
	}
	return list, total, rows.Err()
}

func (r *Repository) exec(ctx context.Context, q string, args ...any) error {
	tag, err := database.Conn(ctx, r.pool).Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrWebhookEventNotFound
	}
	return nil
}

func scanEvent(row pgx.Row) (*models.WebhookEvent, error) {
	var ev models.WebhookEvent
	var objectID, procErr *string
	var payload []byte
	err := row.Scan(&ev.ID, &ev.EventType, &objectID, &payload, &ev.Processed, &procErr, &ev.ProcessedAt, &ev.CreatedAt)
	if err != nil {
		return nil, err
	}
	ev.Payload = payload
	if objectID != nil {
		ev.ObjectID = *objectID
	}
	if procErr != nil {
		ev.ProcessingError = *procErr
	}
	return &ev, nil
}
