package courses

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coursehub/checkout/internal/models"
	"github.com/coursehub/checkout/pkg/database"
)

// Repository is a read-only view of the storefront catalog.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a courses repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetActiveByIDs returns the active courses among ids. Missing or inactive ids are
// simply absent from the result.
func (r *Repository) GetActiveByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Course, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	const q = `SELECT id, title, price, is_active
		FROM courses
		WHERE id = ANY($1::text[]::uuid[]) AND is_active = TRUE`
	rows, err := database.Conn(ctx, r.pool).Query(ctx, q, uuidStrings(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Course
	for rows.Next() {
		var c models.Course
		if err := rows.Scan(&c.ID, &c.Title, &c.Price, &c.IsActive); err != nil {
			return nil, err
		}
		list = append(list, &c)
	}
	return list, rows.Err()
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
