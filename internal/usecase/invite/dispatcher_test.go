package invite

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meetpoll-team/meetpoll/internal/domain/entities"
	usecaseErrors "github.com/meetpoll-team/meetpoll/internal/usecase/errors"
)

type recordingAttendeeRepo struct {
	mu     sync.Mutex
	sent   []uuid.UUID
	failed map[uuid.UUID]string
}

func newRecordingAttendeeRepo() *recordingAttendeeRepo {
	return &recordingAttendeeRepo{failed: make(map[uuid.UUID]string)}
}

func (r *recordingAttendeeRepo) FindByEvent(context.Context, uuid.UUID) ([]entities.EventAttendee, error) {
	return nil, nil
}

func (r *recordingAttendeeRepo) FindByEventAndStatus(context.Context, uuid.UUID, entities.AttendeeStatus) ([]entities.EventAttendee, error) {
	return nil, nil
}

func (r *recordingAttendeeRepo) MarkSent(_ context.Context, _, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, userID)
	return nil
}

func (r *recordingAttendeeRepo) MarkFailed(_ context.Context, _, userID uuid.UUID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed[userID] = reason
	return nil
}

func (r *recordingAttendeeRepo) UpdateRSVP(context.Context, uuid.UUID, uuid.UUID, entities.AttendeeStatus) error {
	return usecaseErrors.ErrAttendeeNotFound
}

// scriptedMail fails or blocks per recipient address
type scriptedMail struct {
	mu       sync.Mutex
	attempts map[string]int
	fail     map[string]error // always fail with this error
	failOnce map[string]error // fail only the first attempt
	inflight chan struct{}    // when set, signals each attempt start
	block    bool
}

func newScriptedMail() *scriptedMail {
	return &scriptedMail{
		attempts: make(map[string]int),
		fail:     make(map[string]error),
		failOnce: make(map[string]error),
	}
}

func (m *scriptedMail) Send(ctx context.Context, to, _, _ string, _ *Attachment) error {
	m.mu.Lock()
	m.attempts[to]++
	n := m.attempts[to]
	err, always := m.fail[to]
	onceErr, once := m.failOnce[to]
	block := m.block
	m.mu.Unlock()

	if m.inflight != nil {
		m.inflight <- struct{}{}
	}
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	if always {
		return err
	}
	if once && n == 1 {
		return onceErr
	}
	return nil
}

func (m *scriptedMail) attemptCount(to string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts[to]
}

func makeRows(eventID uuid.UUID, emails ...string) []entities.EventAttendee {
	rows := make([]entities.EventAttendee, len(emails))
	for i, email := range emails {
		userID := uuid.New()
		rows[i] = entities.EventAttendee{
			EventID: eventID,
			UserID:  userID,
			User:    &entities.User{ID: userID, Email: email, Name: email},
			Status:  entities.AttendeeStatusPending,
		}
	}
	return rows
}

func testConfig() Config {
	return Config{
		Workers:        4,
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		AttemptTimeout: time.Second,
	}
}

func testEvent() *entities.CalendarEvent {
	return &entities.CalendarEvent{
		ID:        uuid.New(),
		Title:     "Design review",
		StartTime: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}
}

func TestDispatch_PartialFailure(t *testing.T) {
	repo := newRecordingAttendeeRepo()
	mail := newScriptedMail()
	mail.fail["bad@example.com"] = errors.New("smtp timeout")

	event := testEvent()
	rows := makeRows(event.ID, "a@example.com", "bad@example.com", "c@example.com")

	d := NewDispatcher(repo, mail, zap.NewNop(), testConfig())
	ledger := d.Dispatch(context.Background(), event, rows, "body", nil)

	if len(ledger) != 3 {
		t.Fatalf("every attendee needs a ledger entry, got %d", len(ledger))
	}
	if ledger[rows[0].UserID].Outcome != OutcomeSent || ledger[rows[2].UserID].Outcome != OutcomeSent {
		t.Fatal("healthy recipients must be delivered despite the failing one")
	}
	failed := ledger[rows[1].UserID]
	if failed.Outcome != OutcomeFailed {
		t.Fatalf("expected failure outcome, got %s", failed.Outcome)
	}
	if failed.Attempts != 3 { // initial try + 2 retries
		t.Fatalf("expected 3 attempts, got %d", failed.Attempts)
	}
	if len(repo.sent) != 2 {
		t.Fatalf("expected 2 rows marked sent, got %d", len(repo.sent))
	}
	if _, ok := repo.failed[rows[1].UserID]; !ok {
		t.Fatal("failing row must be marked failed in the store")
	}
}

func TestDispatch_TransientErrorRecovers(t *testing.T) {
	repo := newRecordingAttendeeRepo()
	mail := newScriptedMail()
	mail.failOnce["flaky@example.com"] = errors.New("421 try again later")

	event := testEvent()
	rows := makeRows(event.ID, "flaky@example.com")

	d := NewDispatcher(repo, mail, zap.NewNop(), testConfig())
	ledger := d.Dispatch(context.Background(), event, rows, "body", nil)

	delivery := ledger[rows[0].UserID]
	if delivery.Outcome != OutcomeSent {
		t.Fatalf("expected recovery on retry, got %s (%s)", delivery.Outcome, delivery.Error)
	}
	if delivery.Attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", delivery.Attempts)
	}
}

func TestDispatch_PermanentErrorSkipsRetries(t *testing.T) {
	repo := newRecordingAttendeeRepo()
	mail := newScriptedMail()
	mail.fail["gone@example.com"] = &PermanentError{Err: errors.New("550 user unknown")}

	event := testEvent()
	rows := makeRows(event.ID, "gone@example.com")

	d := NewDispatcher(repo, mail, zap.NewNop(), testConfig())
	ledger := d.Dispatch(context.Background(), event, rows, "body", nil)

	delivery := ledger[rows[0].UserID]
	if delivery.Outcome != OutcomeFailed {
		t.Fatalf("expected failure, got %s", delivery.Outcome)
	}
	if mail.attemptCount("gone@example.com") != 1 {
		t.Fatalf("permanent errors must not be retried, got %d attempts", mail.attemptCount("gone@example.com"))
	}
}

func TestDispatch_SkipsAlreadyDeliveredRows(t *testing.T) {
	repo := newRecordingAttendeeRepo()
	mail := newScriptedMail()

	event := testEvent()
	rows := makeRows(event.ID, "done@example.com", "fresh@example.com")
	rows[0].Status = entities.AttendeeStatusSent

	d := NewDispatcher(repo, mail, zap.NewNop(), testConfig())
	ledger := d.Dispatch(context.Background(), event, rows, "body", nil)

	if mail.attemptCount("done@example.com") != 0 {
		t.Fatal("already-sent rows must not be re-delivered")
	}
	already := ledger[rows[0].UserID]
	if already.Outcome != OutcomeSent || already.Attempts != 0 {
		t.Fatalf("already-sent row must report sent with zero attempts, got %+v", already)
	}
	if mail.attemptCount("fresh@example.com") != 1 {
		t.Fatal("pending rows must still be delivered")
	}
}

func TestDispatch_MissingEmailFailsWithoutSend(t *testing.T) {
	repo := newRecordingAttendeeRepo()
	mail := newScriptedMail()

	event := testEvent()
	rows := makeRows(event.ID, "ok@example.com")
	userID := uuid.New()
	rows = append(rows, entities.EventAttendee{
		EventID: event.ID,
		UserID:  userID,
		Status:  entities.AttendeeStatusPending,
	})

	d := NewDispatcher(repo, mail, zap.NewNop(), testConfig())
	ledger := d.Dispatch(context.Background(), event, rows, "body", nil)

	if ledger[userID].Outcome != OutcomeFailed {
		t.Fatalf("expected failure for the addressless attendee, got %s", ledger[userID].Outcome)
	}
	if _, ok := repo.failed[userID]; !ok {
		t.Fatal("addressless attendee must be marked failed")
	}
}

func TestDispatch_CancellationLeavesRowsPending(t *testing.T) {
	repo := newRecordingAttendeeRepo()
	mail := newScriptedMail()
	mail.block = true
	mail.inflight = make(chan struct{}, 8)

	event := testEvent()
	rows := makeRows(event.ID, "slow@example.com")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Ledger, 1)

	d := NewDispatcher(repo, mail, zap.NewNop(), testConfig())
	go func() {
		done <- d.Dispatch(ctx, event, rows, "body", nil)
	}()

	<-mail.inflight // the attempt is underway
	cancel()
	ledger := <-done

	delivery := ledger[rows[0].UserID]
	if delivery.Outcome != OutcomePending {
		t.Fatalf("cancelled delivery must stay pending, got %s", delivery.Outcome)
	}
	if len(repo.sent) != 0 || len(repo.failed) != 0 {
		t.Fatal("cancellation must not write a terminal state")
	}
}

func TestDispatch_BoundedConcurrency(t *testing.T) {
	repo := newRecordingAttendeeRepo()

	var mu sync.Mutex
	current, peak := 0, 0
	gate := &gatedMail{enter: func() {
		mu.Lock()
		current++
		if current > peak {
			peak = current
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		current--
		mu.Unlock()
	}}

	event := testEvent()
	emails := make([]string, 10)
	for i := range emails {
		emails[i] = uuid.NewString() + "@example.com"
	}
	rows := makeRows(event.ID, emails...)

	cfg := testConfig()
	cfg.Workers = 2
	d := NewDispatcher(repo, gate, zap.NewNop(), cfg)
	d.Dispatch(context.Background(), event, rows, "body", nil)

	if peak > 2 {
		t.Fatalf("worker pool exceeded its bound: peak %d", peak)
	}
	if len(repo.sent) != 10 {
		t.Fatalf("expected all deliveries to finish, got %d", len(repo.sent))
	}
}

type gatedMail struct {
	enter func()
}

func (m *gatedMail) Send(context.Context, string, string, string, *Attachment) error {
	m.enter()
	return nil
}
