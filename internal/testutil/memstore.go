// Package testutil provides an in-memory stand-in for the PostgreSQL repositories.
package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coursehub/checkout/internal/models"
)

// ErrUniqueViolation mirrors a unique constraint failure on tables without a domain sentinel.
var ErrUniqueViolation = errors.New("unique violation")

type txKey struct{}

// Store keeps every table in memory. Transactions are serialized, which stands in
// for the row locks the SQL repositories take, and roll back to a snapshot on error.
// All getters return copies.
type Store struct {
	txMu sync.Mutex

	mu          sync.Mutex
	last        time.Time
	courses     map[uuid.UUID]*models.Course
	orders      map[uuid.UUID]*models.Order
	payments    map[uuid.UUID]*models.Payment
	refunds     map[uuid.UUID]*models.Refund
	enrollments map[uuid.UUID]*models.Enrollment
	events      map[uuid.UUID]*models.WebhookEvent
	emails      []*models.EmailLog

	// Fault injection. Set before use.
	CreateEnrollmentsErr error
	UpdateOrderErr       error
	RecordEventErr       error
	ListStaleErr         error
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		courses:     make(map[uuid.UUID]*models.Course),
		orders:      make(map[uuid.UUID]*models.Order),
		payments:    make(map[uuid.UUID]*models.Payment),
		refunds:     make(map[uuid.UUID]*models.Refund),
		enrollments: make(map[uuid.UUID]*models.Enrollment),
		events:      make(map[uuid.UUID]*models.WebhookEvent),
	}
}

// WithinTx runs fn serialized against other transactions. A nested call joins the outer one.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snap := s.snapshot()
	s.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.restore(snap)
		s.mu.Unlock()
		return err
	}
	return nil
}

// clock returns a strictly increasing timestamp. Callers hold mu.
func (s *Store) clock() time.Time {
	now := time.Now().UTC()
	if !now.After(s.last) {
		now = s.last.Add(time.Microsecond)
	}
	s.last = now
	return now
}

// ---- seeding and inspection ----

// AddCourse seeds an active course.
func (s *Store) AddCourse(title, price string) *models.Course {
	return s.addCourse(title, price, true)
}

// AddInactiveCourse seeds a course that cannot be bought.
func (s *Store) AddInactiveCourse(title, price string) *models.Course {
	return s.addCourse(title, price, false)
}

func (s *Store) addCourse(title, price string, active bool) *models.Course {
	c := &models.Course{ID: uuid.New(), Title: title, Price: decimal.RequireFromString(price), IsActive: active}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.courses[c.ID] = c
	cp := *c
	return &cp
}

// Order returns a copy of the order or nil.
func (s *Store) Order(id uuid.UUID) *models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.orders[id]; ok {
		return cloneOrder(o)
	}
	return nil
}

// Payment returns a copy of the payment or nil.
func (s *Store) Payment(id uuid.UUID) *models.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.payments[id]; ok {
		return clonePayment(p)
	}
	return nil
}

// PaymentCount returns how many payments exist.
func (s *Store) PaymentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payments)
}

// SetPaymentUpdatedAt backdates a payment for sweep tests.
func (s *Store) SetPaymentUpdatedAt(id uuid.UUID, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.payments[id]; ok {
		p.UpdatedAt = t
	}
}

// EnrollmentsFor returns the user's enrollments ordered by creation.
func (s *Store) EnrollmentsFor(userID uuid.UUID) []*models.Enrollment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []*models.Enrollment
	for _, e := range s.enrollments {
		if e.UserID == userID {
			cp := *e
			list = append(list, &cp)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	return list
}

// RefundCount returns how many refunds exist.
func (s *Store) RefundCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.refunds)
}

// Events returns all ledger rows ordered by creation.
func (s *Store) Events() []*models.WebhookEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]*models.WebhookEvent, 0, len(s.events))
	for _, ev := range s.events {
		list = append(list, cloneEvent(ev))
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	return list
}

// EmailLogs returns every recorded delivery attempt.
func (s *Store) EmailLogs() []*models.EmailLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]*models.EmailLog, 0, len(s.emails))
	for _, el := range s.emails {
		cp := *el
		list = append(list, &cp)
	}
	return list
}

// ---- courses ----

// GetActiveByIDs returns the active courses among ids.
func (s *Store) GetActiveByIDs(_ context.Context, ids []uuid.UUID) ([]*models.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []*models.Course
	for _, id := range ids {
		if c, ok := s.courses[id]; ok && c.IsActive {
			cp := *c
			list = append(list, &cp)
		}
	}
	return list, nil
}

// ---- orders ----

// Orders returns the order repository view.
func (s *Store) Orders() *Orders { return &Orders{s} }

// Orders is the order repository view of a Store.
type Orders struct{ s *Store }

// Create inserts an order with its items.
func (r *Orders) Create(_ context.Context, o *models.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.clock()
	o.ID = uuid.New()
	o.CreatedAt, o.UpdatedAt = now, now
	for i := range o.Items {
		o.Items[i].ID = uuid.New()
		o.Items[i].OrderID = o.ID
		o.Items[i].CreatedAt = now
	}
	r.s.orders[o.ID] = cloneOrder(o)
	return nil
}

// GetByID returns an order.
func (r *Orders) GetByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, models.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

// GetByIDForUser returns the order only when userID owns it.
func (r *Orders) GetByIDForUser(ctx context.Context, id, userID uuid.UUID) (*models.Order, error) {
	o, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, models.ErrOrderNotFound
	}
	return o, nil
}

// ListByUser pages the user's orders newest first.
func (r *Orders) ListByUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]*models.Order, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []*models.Order
	for _, o := range r.s.orders {
		if o.UserID == userID {
			all = append(all, cloneOrder(o))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return page(all, limit, offset), len(all), nil
}

// UpdateStatus sets the order status.
func (r *Orders) UpdateStatus(_ context.Context, id uuid.UUID, status models.OrderStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.UpdateOrderErr != nil {
		return r.s.UpdateOrderErr
	}
	o, ok := r.s.orders[id]
	if !ok {
		return models.ErrOrderNotFound
	}
	o.Status = status
	o.UpdatedAt = r.s.clock()
	return nil
}

// ---- payments ----

// Payments returns the payment repository view.
func (s *Store) Payments() *Payments { return &Payments{s} }

// Payments is the payment repository view of a Store.
type Payments struct{ s *Store }

// Create inserts a payment. One payment per order, one per remote id.
func (r *Payments) Create(_ context.Context, p *models.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.payments {
		if existing.OrderID == p.OrderID {
			return models.ErrPaymentExists
		}
		if p.RemoteID != nil && existing.RemoteID != nil && *existing.RemoteID == *p.RemoteID {
			return ErrUniqueViolation
		}
	}
	now := r.s.clock()
	p.ID = uuid.New()
	p.CreatedAt, p.UpdatedAt = now, now
	r.s.payments[p.ID] = clonePayment(p)
	return nil
}

// GetByID returns a payment.
func (r *Payments) GetByID(_ context.Context, id uuid.UUID) (*models.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p, ok := r.s.payments[id]; ok {
		return clonePayment(p), nil
	}
	return nil, models.ErrPaymentNotFound
}

// GetByIDForUpdate returns a payment. Locking is the transaction's job here.
func (r *Payments) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return r.GetByID(ctx, id)
}

// GetByOrderID returns the payment of an order.
func (r *Payments) GetByOrderID(_ context.Context, orderID uuid.UUID) (*models.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.payments {
		if p.OrderID == orderID {
			return clonePayment(p), nil
		}
	}
	return nil, models.ErrPaymentNotFound
}

// GetByRemoteIDForUpdate returns the payment with the gateway id.
func (r *Payments) GetByRemoteIDForUpdate(_ context.Context, remoteID string) (*models.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.payments {
		if p.RemoteID != nil && *p.RemoteID == remoteID {
			return clonePayment(p), nil
		}
	}
	return nil, models.ErrPaymentNotFound
}

// Update writes mutable fields. Lifecycle timestamps are set once.
func (r *Payments) Update(_ context.Context, p *models.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.payments[p.ID]
	if !ok {
		return models.ErrPaymentNotFound
	}
	cur.Status = p.Status
	cur.PaymentMethod = p.PaymentMethod
	cur.ConfirmationURL = p.ConfirmationURL
	cur.PaidAt = coalesce(cur.PaidAt, p.PaidAt)
	cur.CancelledAt = coalesce(cur.CancelledAt, p.CancelledAt)
	cur.RefundedAt = coalesce(cur.RefundedAt, p.RefundedAt)
	cur.UpdatedAt = r.s.clock()
	p.UpdatedAt = cur.UpdatedAt
	return nil
}

// Touch bumps updated_at.
func (r *Payments) Touch(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok {
		return models.ErrPaymentNotFound
	}
	p.UpdatedAt = r.s.clock()
	return nil
}

// ListStale returns payments in statuses with a remote id updated before the cutoff, oldest first.
func (r *Payments) ListStale(_ context.Context, statuses []models.PaymentStatus, updatedBefore time.Time, limit int) ([]*models.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.ListStaleErr != nil {
		return nil, r.s.ListStaleErr
	}
	want := make(map[models.PaymentStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	var list []*models.Payment
	for _, p := range r.s.payments {
		if want[p.Status] && p.RemoteID != nil && p.UpdatedAt.Before(updatedBefore) {
			list = append(list, clonePayment(p))
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].UpdatedAt.Before(list[j].UpdatedAt) })
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

// ---- enrollments ----

// Enrollments returns the enrollment repository view.
func (s *Store) Enrollments() *Enrollments { return &Enrollments{s} }

// Enrollments is the enrollment repository view of a Store.
type Enrollments struct{ s *Store }

// CreateIfAbsent inserts missing (user, course) enrollments and returns the new rows.
func (r *Enrollments) CreateIfAbsent(_ context.Context, userID uuid.UUID, courseIDs []uuid.UUID) ([]*models.Enrollment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.CreateEnrollmentsErr != nil {
		return nil, r.s.CreateEnrollmentsErr
	}
	var created []*models.Enrollment
	for _, cid := range courseIDs {
		exists := false
		for _, e := range r.s.enrollments {
			if e.UserID == userID && e.CourseID == cid {
				exists = true
				break
			}
		}
		if exists {
			continue
		}
		now := r.s.clock()
		e := &models.Enrollment{
			ID:        uuid.New(),
			UserID:    userID,
			CourseID:  cid,
			Status:    models.EnrollmentStatusActive,
			CreatedAt: now,
			UpdatedAt: now,
		}
		r.s.enrollments[e.ID] = e
		cp := *e
		created = append(created, &cp)
	}
	return created, nil
}

// ListByUser pages the user's enrollments newest first. Empty status matches all.
func (r *Enrollments) ListByUser(_ context.Context, userID uuid.UUID, status models.EnrollmentStatus, limit, offset int) ([]*models.Enrollment, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []*models.Enrollment
	for _, e := range r.s.enrollments {
		if e.UserID == userID && (status == "" || e.Status == status) {
			cp := *e
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return page(all, limit, offset), len(all), nil
}

// UpdateProgress sets progress; 100 completes the enrollment.
func (r *Enrollments) UpdateProgress(_ context.Context, id, userID uuid.UUID, progress int) (*models.Enrollment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.enrollments[id]
	if !ok || e.UserID != userID {
		return nil, models.ErrEnrollmentNotFound
	}
	now := r.s.clock()
	e.Progress = progress
	if progress >= 100 {
		e.Status = models.EnrollmentStatusCompleted
		if e.CompletedAt == nil {
			e.CompletedAt = &now
		}
	} else {
		e.Status = models.EnrollmentStatusActive
		e.CompletedAt = nil
	}
	e.UpdatedAt = now
	cp := *e
	return &cp, nil
}

// ---- refunds ----

// Refunds returns the refund repository view.
func (s *Store) Refunds() *Refunds { return &Refunds{s} }

// Refunds is the refund repository view of a Store.
type Refunds struct{ s *Store }

// Create inserts a refund. Remote ids are unique.
func (r *Refunds) Create(_ context.Context, rf *models.Refund) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.refunds {
		if existing.RemoteID == rf.RemoteID {
			return ErrUniqueViolation
		}
	}
	now := r.s.clock()
	rf.ID = uuid.New()
	rf.CreatedAt, rf.UpdatedAt = now, now
	cp := *rf
	r.s.refunds[rf.ID] = &cp
	return nil
}

// GetByID returns a refund.
func (r *Refunds) GetByID(_ context.Context, id uuid.UUID) (*models.Refund, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if rf, ok := r.s.refunds[id]; ok {
		cp := *rf
		return &cp, nil
	}
	return nil, models.ErrRefundNotFound
}

// GetByRemoteIDForUpdate returns the refund with the gateway id.
func (r *Refunds) GetByRemoteIDForUpdate(_ context.Context, remoteID string) (*models.Refund, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, rf := range r.s.refunds {
		if rf.RemoteID == remoteID {
			cp := *rf
			return &cp, nil
		}
	}
	return nil, models.ErrRefundNotFound
}

// Update writes status; processed_at is set once.
func (r *Refunds) Update(_ context.Context, rf *models.Refund) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.refunds[rf.ID]
	if !ok {
		return models.ErrRefundNotFound
	}
	cur.Status = rf.Status
	cur.ProcessedAt = coalesce(cur.ProcessedAt, rf.ProcessedAt)
	cur.UpdatedAt = r.s.clock()
	rf.UpdatedAt = cur.UpdatedAt
	return nil
}

// SumSucceeded totals succeeded refunds of a payment.
func (r *Refunds) SumSucceeded(_ context.Context, paymentID uuid.UUID) (decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sum := decimal.Zero
	for _, rf := range r.s.refunds {
		if rf.PaymentID == paymentID && rf.Status == models.RefundStatusSucceeded {
			sum = sum.Add(rf.Amount)
		}
	}
	return sum, nil
}

// List pages refunds newest first.
func (r *Refunds) List(_ context.Context, f models.RefundFilter, limit, offset int) ([]*models.Refund, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []*models.Refund
	for _, rf := range r.s.refunds {
		if f.PaymentID != nil && rf.PaymentID != *f.PaymentID {
			continue
		}
		if f.Status != "" && rf.Status != f.Status {
			continue
		}
		cp := *rf
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return page(all, limit, offset), len(all), nil
}

// ---- webhook ledger ----

// Ledger returns the webhook_events repository view.
func (s *Store) Ledger() *Ledger { return &Ledger{s} }

// Ledger is the webhook_events repository view of a Store.
type Ledger struct{ s *Store }

// Record appends a delivery.
func (r *Ledger) Record(_ context.Context, ev *models.WebhookEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.RecordEventErr != nil {
		return r.s.RecordEventErr
	}
	ev.ID = uuid.New()
	ev.Processed = false
	ev.CreatedAt = r.s.clock()
	r.s.events[ev.ID] = cloneEvent(ev)
	return nil
}

// MarkProcessed flags a delivery as handled.
func (r *Ledger) MarkProcessed(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ev, ok := r.s.events[id]
	if !ok {
		return models.ErrWebhookEventNotFound
	}
	now := r.s.clock()
	ev.Processed = true
	ev.ProcessingError = ""
	ev.ProcessedAt = &now
	return nil
}

// MarkFailed stores the latest processing error.
func (r *Ledger) MarkFailed(_ context.Context, id uuid.UUID, msg string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ev, ok := r.s.events[id]
	if !ok {
		return models.ErrWebhookEventNotFound
	}
	ev.Processed = false
	ev.ProcessingError = msg
	return nil
}

// GetByID returns one ledger row.
func (r *Ledger) GetByID(_ context.Context, id uuid.UUID) (*models.WebhookEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if ev, ok := r.s.events[id]; ok {
		return cloneEvent(ev), nil
	}
	return nil, models.ErrWebhookEventNotFound
}

// List pages the ledger newest first.
func (r *Ledger) List(_ context.Context, f models.WebhookEventFilter, limit, offset int) ([]*models.WebhookEvent, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []*models.WebhookEvent
	for _, ev := range r.s.events {
		if f.Processed != nil && ev.Processed != *f.Processed {
			continue
		}
		if f.EventType != "" && ev.EventType != f.EventType {
			continue
		}
		all = append(all, cloneEvent(ev))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return page(all, limit, offset), len(all), nil
}

// ---- email logs ----

// EmailLogStore returns the email_logs repository view.
func (s *Store) EmailLogStore() *EmailLogs { return &EmailLogs{s} }

// EmailLogs is the email_logs repository view of a Store.
type EmailLogs struct{ s *Store }

// Create records a delivery attempt.
func (r *EmailLogs) Create(_ context.Context, el *models.EmailLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	el.ID = uuid.New()
	el.CreatedAt = r.s.clock()
	cp := *el
	r.s.emails = append(r.s.emails, &cp)
	return nil
}

// ListByOrder returns attempts for one order, newest first.
func (r *EmailLogs) ListByOrder(_ context.Context, orderID uuid.UUID) ([]*models.EmailLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var list []*models.EmailLog
	for i := len(r.s.emails) - 1; i >= 0; i-- {
		el := r.s.emails[i]
		if el.OrderID != nil && *el.OrderID == orderID {
			cp := *el
			list = append(list, &cp)
		}
	}
	return list, nil
}

// ---- helpers ----

type snapshot struct {
	orders      map[uuid.UUID]*models.Order
	payments    map[uuid.UUID]*models.Payment
	refunds     map[uuid.UUID]*models.Refund
	enrollments map[uuid.UUID]*models.Enrollment
	events      map[uuid.UUID]*models.WebhookEvent
	emails      []*models.EmailLog
}

func (s *Store) snapshot() snapshot {
	snap := snapshot{
		orders:      make(map[uuid.UUID]*models.Order, len(s.orders)),
		payments:    make(map[uuid.UUID]*models.Payment, len(s.payments)),
		refunds:     make(map[uuid.UUID]*models.Refund, len(s.refunds)),
		enrollments: make(map[uuid.UUID]*models.Enrollment, len(s.enrollments)),
		events:      make(map[uuid.UUID]*models.WebhookEvent, len(s.events)),
		emails:      append([]*models.EmailLog(nil), s.emails...),
	}
	for k, v := range s.orders {
		snap.orders[k] = cloneOrder(v)
	}
	for k, v := range s.payments {
		snap.payments[k] = clonePayment(v)
	}
	for k, v := range s.refunds {
		cp := *v
		snap.refunds[k] = &cp
	}
	for k, v := range s.enrollments {
		cp := *v
		snap.enrollments[k] = &cp
	}
	for k, v := range s.events {
		snap.events[k] = cloneEvent(v)
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.orders = snap.orders
	s.payments = snap.payments
	s.refunds = snap.refunds
	s.enrollments = snap.enrollments
	s.events = snap.events
	s.emails = snap.emails
}

func cloneOrder(o *models.Order) *models.Order {
	cp := *o
	cp.Items = append([]models.OrderItem(nil), o.Items...)
	return &cp
}

func clonePayment(p *models.Payment) *models.Payment {
	cp := *p
	if p.RemoteID != nil {
		id := *p.RemoteID
		cp.RemoteID = &id
	}
	if p.Metadata != nil {
		cp.Metadata = make(map[string]string, len(p.Metadata))
		for k, v := range p.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

func cloneEvent(ev *models.WebhookEvent) *models.WebhookEvent {
	cp := *ev
	cp.Payload = append(json.RawMessage(nil), ev.Payload...)
	return &cp
}

func coalesce(cur, next *time.Time) *time.Time {
	if cur != nil {
		return cur
	}
	return next
}

func page[T any](all []T, limit, offset int) []T {
	if offset >= len(all) {
		return nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all
}

// SeedCheckout creates an order in PROCESSING for the courses and its PENDING
// payment bound to remoteID, as Initiate leaves them.
func (s *Store) SeedCheckout(userID uuid.UUID, remoteID string, courses ...*models.Course) (*models.Order, *models.Payment) {
	ctx := context.Background()
	o := &models.Order{
		UserID:        userID,
		Status:        models.OrderStatusProcessing,
		Currency:      "RUB",
		CustomerName:  "Test Buyer",
		CustomerEmail: "buyer@example.com",
	}
	for _, c := range courses {
		o.Items = append(o.Items, models.OrderItem{CourseID: c.ID, Title: c.Title, Quantity: 1, Price: c.Price})
	}
	o.TotalAmount = o.ItemsTotal()
	if err := s.Orders().Create(ctx, o); err != nil {
		panic(err)
	}
	rid := remoteID
	p := &models.Payment{
		OrderID:  o.ID,
		RemoteID: &rid,
		Status:   models.PaymentStatusPending,
		Amount:   o.TotalAmount,
		Currency: o.Currency,
	}
	if err := s.Payments().Create(ctx, p); err != nil {
		panic(err)
	}
	return s.Order(o.ID), s.Payment(p.ID)
}
