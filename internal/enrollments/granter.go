package enrollments

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/coursehub/checkout/internal/models"
)

// Inserter is the write side the granter needs.
type Inserter interface {
	CreateIfAbsent(ctx context.Context, userID uuid.UUID, courseIDs []uuid.UUID) ([]*models.Enrollment, error)
}

// Granter gives a user access to purchased courses. It is only called from payment
// reconciliation, inside its transaction.
type Granter struct {
	store  Inserter
	logger *zap.Logger
}

// NewGranter creates a granter.
func NewGranter(store Inserter, logger *zap.Logger) *Granter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Granter{store: store, logger: logger}
}

// Grant creates missing enrollments and returns the new ones. Courses the user is
// already enrolled in are skipped, so calling it again is a no-op.
func (g *Granter) Grant(ctx context.Context, userID uuid.UUID, courseIDs []uuid.UUID) ([]*models.Enrollment, error) {
	ids := dedupe(courseIDs)
	if len(ids) == 0 {
		return nil, nil
	}
	created, err := g.store.CreateIfAbsent(ctx, userID, ids)
	if err != nil {
		return nil, fmt.Errorf("create enrollments: %w", err)
	}
	g.logger.Info("enrollments granted",
		zap.String("user_id", userID.String()),
		zap.Int("requested", len(ids)),
		zap.Int("created", len(created)))
	return created, nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
