package worker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/checkout/internal/models"
	"github.com/coursehub/checkout/internal/testutil"
	"github.com/coursehub/checkout/pkg/queue"
)

type sentMail struct{ to, subject, body string }

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to, subject, body})
	return nil
}

func orderJob(t *testing.T, orderID uuid.UUID) *queue.Job {
	t.Helper()
	job, err := queue.NewJob(queue.JobTypeOrderEmail, queue.OrderEmailPayload{
		OrderID:        orderID,
		PaymentID:      uuid.New(),
		UserID:         uuid.New(),
		RecipientEmail: "anna@example.com",
		CustomerName:   "Anna",
		Amount:         "4500.00",
		Currency:       "RUB",
		CourseTitles:   []string{"Go Basics"},
	})
	require.NoError(t, err)
	return job
}

func TestProcess_Sent(t *testing.T) {
	store := testutil.NewStore()
	m := &fakeMailer{}
	p := NewNotificationProcessor(nil, m, store.EmailLogStore(), nil)
	orderID := uuid.New()

	require.NoError(t, p.Process(context.Background(), orderJob(t, orderID)))

	require.Len(t, m.sent, 1)
	assert.Equal(t, "anna@example.com", m.sent[0].to)
	assert.Equal(t, "Order #"+orderID.String()+" confirmed", m.sent[0].subject)
	assert.Contains(t, m.sent[0].body, "Go Basics")

	logs := store.EmailLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, models.EmailLogStatusSent, logs[0].Status)
	assert.Equal(t, models.EmailTypeOrderConfirmation, logs[0].EmailType)
	require.NotNil(t, logs[0].OrderID)
	assert.Equal(t, orderID, *logs[0].OrderID)
	assert.NotNil(t, logs[0].SentAt)
}

func TestProcess_SendFailureIsLogged(t *testing.T) {
	store := testutil.NewStore()
	p := NewNotificationProcessor(nil, &fakeMailer{err: errors.New("relay refused")}, store.EmailLogStore(), nil)

	err := p.Process(context.Background(), orderJob(t, uuid.New()))
	require.Error(t, err)

	logs := store.EmailLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, models.EmailLogStatusFailed, logs[0].Status)
	assert.Equal(t, "relay refused", logs[0].ErrorMessage)
	assert.Nil(t, logs[0].SentAt)
}

func TestProcess_BadJobs(t *testing.T) {
	store := testutil.NewStore()
	m := &fakeMailer{}
	p := NewNotificationProcessor(nil, m, store.EmailLogStore(), nil)

	assert.Error(t, p.Process(context.Background(), &queue.Job{Type: "lecture_reminder", Payload: []byte(`{}`)}))
	assert.Error(t, p.Process(context.Background(), &queue.Job{Type: queue.JobTypeOrderEmail, Payload: []byte(`nope`)}))
	assert.Empty(t, m.sent)
	assert.Empty(t, store.EmailLogs())
}

type scriptedSource struct {
	mu      sync.Mutex
	jobs    []*queue.Job
	retried []*queue.Job
	cancel  context.CancelFunc
}

func (s *scriptedSource) Dequeue(ctx context.Context) (*queue.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.jobs) == 0 {
		s.cancel()
		return nil, ctx.Err()
	}
	job := s.jobs[0]
	s.jobs = s.jobs[1:]
	return job, nil
}

func (s *scriptedSource) Retry(_ context.Context, job *queue.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retried = append(s.retried, job)
	return nil
}

func TestRun_RetriesFailedJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	good := orderJob(t, uuid.New())
	bad := &queue.Job{ID: "bad", Type: "unknown"}
	src := &scriptedSource{jobs: []*queue.Job{good, bad}, cancel: cancel}
	m := &fakeMailer{}
	p := NewNotificationProcessor(src, m, testutil.NewStore().EmailLogStore(), nil)
	p.backoff = 0

	p.Run(ctx)

	assert.Len(t, m.sent, 1)
	require.Len(t, src.retried, 1)
	assert.Equal(t, "bad", src.retried[0].ID)
}
