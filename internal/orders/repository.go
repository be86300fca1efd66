package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coursehub/checkout/internal/models"
	"github.com/coursehub/checkout/pkg/database"
)

const orderColumns = `id, user_id, status, total_amount, currency, customer_name, customer_email,
	customer_phone, billing_address, billing_city, billing_zip, created_at, updated_at`

// Repository handles orders and order_items persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an orders repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts the order and its items. Run it inside a transaction so both land together.
func (r *Repository) Create(ctx context.Context, o *models.Order) error {
	conn := database.Conn(ctx, r.pool)
	const q = `INSERT INTO orders (user_id, status, total_amount, currency, customer_name, customer_email,
			customer_phone, billing_address, billing_city, billing_zip)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''))
		RETURNING id, created_at, updated_at`
	err := conn.QueryRow(ctx, q, o.UserID, o.Status, o.TotalAmount, o.Currency, o.CustomerName, o.CustomerEmail,
		o.CustomerPhone, o.BillingAddress, o.BillingCity, o.BillingZip).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return err
	}
	const itemQ = `INSERT INTO order_items (order_id, course_id, title, quantity, price)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`
	for i := range o.Items {
		it := &o.Items[i]
		it.OrderID = o.ID
		if err := conn.QueryRow(ctx, itemQ, it.OrderID, it.CourseID, it.Title, it.Quantity, it.Price).Scan(&it.ID, &it.CreatedAt); err != nil {
			return err
		}
	}
	return nil
}

// GetByID returns the order with its items.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.get(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

// GetByIDForUser returns the order only if it belongs to userID.
func (r *Repository) GetByIDForUser(ctx context.Context, id, userID uuid.UUID) (*models.Order, error) {
	return r.get(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 AND user_id = $2`, id, userID)
}

func (r *Repository) get(ctx context.Context, q string, args ...any) (*models.Order, error) {
	conn := database.Conn(ctx, r.pool)
	o, err := scanOrder(conn.QueryRow(ctx, q, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	items, err := r.itemsFor(ctx, conn, []string{o.ID.String()})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	return o, nil
}

// ListByUser returns a page of the user's orders with items, newest first, and the total count.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Order, int, error) {
	conn := database.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	const q = `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := conn.Query(ctx, q, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	var list []*models.Order
	var ids []string
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, 0, err
		}
		list = append(list, o)
		ids = append(ids, o.ID.String())
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if len(ids) == 0 {
		return list, total, nil
	}
	items, err := r.itemsFor(ctx, conn, ids)
	if err != nil {
		return nil, 0, err
	}
	for _, o := range list {
		o.Items = items[o.ID]
	}
	return list, total, nil
}

// UpdateStatus sets the order status.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus) error {
	const q = `UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`
	tag, err := database.Conn(ctx, r.pool).Exec(ctx, q, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrOrderNotFound
	}
	return nil
}

func (r *Repository) itemsFor(ctx context.Context, conn database.DBTX, orderIDs []string) (map[uuid.UUID][]models.OrderItem, error) {
	const q = `SELECT id, order_id, course_id, title, quantity, price, created_at
		FROM order_items
		WHERE order_id = ANY($1::text[]::uuid[])
		ORDER BY created_at, id`
	rows, err := conn.Query(ctx, q, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uuid.UUID][]models.OrderItem)
	for rows.Next() {
		var it models.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.CourseID, &it.Title, &it.Quantity, &it.Price, &it.CreatedAt); err != nil {
			return nil, err
		}
		out[it.OrderID] = append(out[it.OrderID], it)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	var o models.Order
	var phone, addr, city, zip *string
	err := row.Scan(&o.ID, &o.UserID, &o.Status, &o.TotalAmount, &o.Currency, &o.CustomerName, &o.CustomerEmail,
		&phone, &addr, &city, &zip, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.CustomerPhone = deref(phone)
	o.BillingAddress = deref(addr)
	o.BillingCity = deref(city)
	o.BillingZip = deref(zip)
	return &o, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
