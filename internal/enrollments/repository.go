package enrollments

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coursehub/checkout/internal/models"
	"github.com/coursehub/checkout/pkg/database"
)

const enrollmentColumns = `id, user_id, course_id, status, progress, completed_at, created_at, updated_at`

// Repository handles enrollments persistence. Calls join the transaction in ctx, if any.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an enrollments repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateIfAbsent inserts an ACTIVE enrollment for every course the user is not yet
// enrolled in and returns only the rows it created. Existing rows are left untouched.
func (r *Repository) CreateIfAbsent(ctx context.Context, userID uuid.UUID, courseIDs []uuid.UUID) ([]*models.Enrollment, error) {
	ids := make([]string, len(courseIDs))
	for i, id := range courseIDs {
		ids[i] = id.String()
	}
	const q = `INSERT INTO enrollments (user_id, course_id, status, progress)
		SELECT $1, c, 'ACTIVE', 0 FROM unnest($2::text[]::uuid[]) AS c
		ON CONFLICT (user_id, course_id) DO NOTHING
		RETURNING ` + enrollmentColumns
	rows, err := database.Conn(ctx, r.pool).Query(ctx, q, userID, ids)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// ListByUser returns a page of the user's enrollments, newest first, and the total count.
// An empty status matches all statuses.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, status models.EnrollmentStatus, limit, offset int) ([]*models.Enrollment, int, error) {
	conn := database.Conn(ctx, r.pool)
	var total int
	const countQ = `SELECT COUNT(*) FROM enrollments WHERE user_id = $1 AND ($2 = '' OR status = $2)`
	if err := conn.QueryRow(ctx, countQ, userID, string(status)).Scan(&total); err != nil {
		return nil, 0, err
	}
	const q = `SELECT ` + enrollmentColumns + `
		FROM enrollments
		WHERE user_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`
	rows, err := conn.Query(ctx, q, userID, string(status), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	list, err := collect(rows)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// UpdateProgress sets progress on the user's enrollment. Reaching 100 completes it;
// anything lower puts it back to ACTIVE.
func (r *Repository) UpdateProgress(ctx context.Context, id, userID uuid.UUID, progress int) (*models.Enrollment, error) {
	const q = `UPDATE enrollments SET
			progress = $3::int,
			status = CASE WHEN $3::int >= 100 THEN 'COMPLETED' ELSE 'ACTIVE' END,
			completed_at = CASE WHEN $3::int >= 100 THEN COALESCE(completed_at, NOW()) ELSE NULL END,
			updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING ` + enrollmentColumns
	e, err := scan(database.Conn(ctx, r.pool).QueryRow(ctx, q, id, userID, progress))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrEnrollmentNotFound
	}
	return e, err
}

func scan(row pgx.Row) (*models.Enrollment, error) {
	var e models.Enrollment
	if err := row.Scan(&e.ID, &e.UserID, &e.CourseID, &e.Status, &e.Progress, &e.CompletedAt, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

func collect(rows pgx.Rows) ([]*models.Enrollment, error) {
	defer rows.Close()
	var list []*models.Enrollment
	for rows.Next() {
		e, err := scan(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}
