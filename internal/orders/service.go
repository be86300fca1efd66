package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/coursehub/checkout/internal/models"
)

// DefaultCurrency is used when the service is built without one.
const DefaultCurrency = "RUB"

// Store is the persistence the order service needs.
type Store interface {
	Create(ctx context.Context, o *models.Order) error
	GetByIDForUser(ctx context.Context, id, userID uuid.UUID) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Order, int, error)
}

// Catalog resolves purchasable courses.
type Catalog interface {
	GetActiveByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Course, error)
}

// Transactor runs fn in one database transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// CreateInput is what a customer submits at checkout.
type CreateInput struct {
	CourseIDs      []uuid.UUID
	CustomerName   string
	CustomerEmail  string
	CustomerPhone  string
	BillingAddress string
	BillingCity    string
	BillingZip     string
}

// Service creates and reads orders.
type Service struct {
	store    Store
	catalog  Catalog
	tx       Transactor
	currency string
	logger   *zap.Logger
}

// NewService creates an order service. An empty currency means DefaultCurrency.
func NewService(store Store, catalog Catalog, tx Transactor, currency string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if currency == "" {
		currency = DefaultCurrency
	}
	return &Service{store: store, catalog: catalog, tx: tx, currency: currency, logger: logger}
}

// Create validates the cart against the catalog and stores a PENDING order with one
// item per course at its current price.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, in CreateInput) (*models.Order, error) {
	ids := uniqueIDs(in.CourseIDs)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: at least one course is required", models.ErrValidation)
	}
	name := strings.TrimSpace(in.CustomerName)
	email := strings.TrimSpace(in.CustomerEmail)
	if name == "" || email == "" {
		return nil, fmt.Errorf("%w: customer name and email are required", models.ErrValidation)
	}

	courses, err := s.catalog.GetActiveByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load courses: %w", err)
	}
	if len(courses) != len(ids) {
		return nil, models.ErrCoursesUnavailable
	}
	byID := make(map[uuid.UUID]*models.Course, len(courses))
	for _, c := range courses {
		byID[c.ID] = c
	}

	o := &models.Order{
		UserID:         userID,
		Status:         models.OrderStatusPending,
		Currency:       s.currency,
		CustomerName:   name,
		CustomerEmail:  email,
		CustomerPhone:  strings.TrimSpace(in.CustomerPhone),
		BillingAddress: strings.TrimSpace(in.BillingAddress),
		BillingCity:    strings.TrimSpace(in.BillingCity),
		BillingZip:     strings.TrimSpace(in.BillingZip),
	}
	for _, id := range ids {
		c, ok := byID[id]
		if !ok {
			return nil, models.ErrCoursesUnavailable
		}
		o.Items = append(o.Items, models.OrderItem{CourseID: c.ID, Title: c.Title, Quantity: 1, Price: c.Price})
	}
	o.TotalAmount = o.ItemsTotal()
	if !o.TotalAmount.GreaterThan(decimal.Zero) {
		return nil, models.ErrInvalidTotal
	}

	if err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.store.Create(ctx, o)
	}); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	s.logger.Info("order created",
		zap.String("order_id", o.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("total", o.TotalAmount.StringFixed(2)))
	return o, nil
}

// Get returns the user's own order.
func (s *Service) Get(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	return s.store.GetByIDForUser(ctx, orderID, userID)
}

// List returns a page of the user's orders.
func (s *Service) List(ctx context.Context, userID uuid.UUID, page, limit int) ([]*models.Order, models.Pagination, error) {
	p := models.NewPagination(page, limit, 0)
	list, total, err := s.store.ListByUser(ctx, userID, limit, p.Offset())
	if err != nil {
		return nil, p, err
	}
	return list, models.NewPagination(page, limit, total), nil
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
