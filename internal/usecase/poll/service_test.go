package poll

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/meetpoll-team/meetpoll/internal/domain/entities"
	usecaseErrors "github.com/meetpoll-team/meetpoll/internal/usecase/errors"
	"github.com/meetpoll-team/meetpoll/internal/usecase/invite"
	"github.com/meetpoll-team/meetpoll/pkg/ics"
)

// In-memory fakes. They mirror the conditional-update semantics of the
// real gorm repositories so the service's race handling is exercised.

type fakePollRepo struct {
	mu    sync.Mutex
	polls map[uuid.UUID]*entities.MeetingPoll
}

func newFakePollRepo() *fakePollRepo {
	return &fakePollRepo{polls: make(map[uuid.UUID]*entities.MeetingPoll)}
}

func (r *fakePollRepo) CreateWithChildren(_ context.Context, poll *entities.MeetingPoll) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if poll.ID == uuid.Nil {
		poll.ID = uuid.New()
	}
	for i := range poll.Options {
		if poll.Options[i].ID == uuid.Nil {
			poll.Options[i].ID = uuid.New()
		}
		poll.Options[i].PollID = poll.ID
	}
	for i := range poll.Attendees {
		poll.Attendees[i].PollID = poll.ID
	}
	r.polls[poll.ID] = poll
	return nil
}

func (r *fakePollRepo) FindByID(_ context.Context, id uuid.UUID) (*entities.MeetingPoll, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	poll, ok := r.polls[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return poll, nil
}

func (r *fakePollRepo) FindByOrganizer(_ context.Context, organizerID uuid.UUID, limit, offset int) ([]*entities.MeetingPoll, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.MeetingPoll
	for _, p := range r.polls {
		if p.OrganizerID == organizerID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakePollRepo) UpdateStatusIf(_ context.Context, pollID uuid.UUID, from, to entities.PollStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	poll, ok := r.polls[pollID]
	if !ok || poll.Status != from {
		return false, nil
	}
	poll.Status = to
	return true, nil
}

func (r *fakePollRepo) ReopenWithOptions(_ context.Context, pollID uuid.UUID, options []entities.PollOption) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	poll, ok := r.polls[pollID]
	if !ok || poll.Status != entities.PollStatusClosed {
		return false, nil
	}
	for i := range options {
		if options[i].ID == uuid.Nil {
			options[i].ID = uuid.New()
		}
	}
	poll.Status = entities.PollStatusOpen
	poll.Options = append(poll.Options, options...)
	return true, nil
}

func (r *fakePollRepo) FindOpenPastDeadline(_ context.Context, now time.Time) ([]*entities.MeetingPoll, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.MeetingPoll
	for _, p := range r.polls {
		if p.IsOpen() && p.DeadlineElapsed(now) {
			out = append(out, p)
		}
	}
	return out, nil
}

type responseKey struct {
	poll, option, user uuid.UUID
}

type fakeResponseRepo struct {
	mu        sync.Mutex
	pollRepo  *fakePollRepo
	responses map[responseKey]entities.PollResponse
}

func newFakeResponseRepo(pollRepo *fakePollRepo) *fakeResponseRepo {
	return &fakeResponseRepo{
		pollRepo:  pollRepo,
		responses: make(map[responseKey]entities.PollResponse),
	}
}

func (r *fakeResponseRepo) Upsert(ctx context.Context, response *entities.PollResponse) error {
	poll, err := r.pollRepo.FindByID(ctx, response.PollID)
	if err != nil {
		return usecaseErrors.ErrPollNotFound
	}
	if !poll.IsOpen() {
		return usecaseErrors.ErrPollClosed
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	key := responseKey{response.PollID, response.OptionID, response.UserID}
	if existing, ok := r.responses[key]; ok && existing.RespondedAt.After(response.RespondedAt) {
		return nil
	}
	r.responses[key] = *response
	return nil
}

func (r *fakeResponseRepo) FindByPoll(_ context.Context, pollID uuid.UUID) ([]entities.PollResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entities.PollResponse
	for key, resp := range r.responses {
		if key.poll == pollID {
			out = append(out, resp)
		}
	}
	return out, nil
}

type fakeEventRepo struct {
	mu       sync.Mutex
	pollRepo *fakePollRepo
	events   map[uuid.UUID]*entities.CalendarEvent
	failNext error
}

func newFakeEventRepo(pollRepo *fakePollRepo) *fakeEventRepo {
	return &fakeEventRepo{
		pollRepo: pollRepo,
		events:   make(map[uuid.UUID]*entities.CalendarEvent),
	}
}

func (r *fakeEventRepo) CreateFinalized(ctx context.Context, event *entities.CalendarEvent, attendees []entities.EventAttendee) (bool, error) {
	if r.failNext != nil {
		err := r.failNext
		r.failNext = nil
		return false, err
	}

	ok, err := r.pollRepo.UpdateStatusIf(ctx, event.PollID, entities.PollStatusClosed, entities.PollStatusFinalized)
	if err != nil || !ok {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *event
	stored.Attendees = attendees
	r.events[event.ID] = &stored
	return true, nil
}

func (r *fakeEventRepo) FindByID(_ context.Context, id uuid.UUID) (*entities.CalendarEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return event, nil
}

func (r *fakeEventRepo) FindByPollID(_ context.Context, pollID uuid.UUID) (*entities.CalendarEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, event := range r.events {
		if event.PollID == pollID {
			return event, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

type fakeAttendeeRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID][]entities.EventAttendee // keyed by event ID
}

func newFakeAttendeeRepo() *fakeAttendeeRepo {
	return &fakeAttendeeRepo{rows: make(map[uuid.UUID][]entities.EventAttendee)}
}

func (r *fakeAttendeeRepo) FindByEvent(_ context.Context, eventID uuid.UUID) ([]entities.EventAttendee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entities.EventAttendee(nil), r.rows[eventID]...), nil
}

func (r *fakeAttendeeRepo) FindByEventAndStatus(_ context.Context, eventID uuid.UUID, status entities.AttendeeStatus) ([]entities.EventAttendee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entities.EventAttendee
	for _, row := range r.rows[eventID] {
		if row.Status == status {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *fakeAttendeeRepo) setStatus(eventID, userID uuid.UUID, status entities.AttendeeStatus, reason *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows := r.rows[eventID]
	for i := range rows {
		if rows[i].UserID == userID {
			rows[i].Status = status
			rows[i].LastError = reason
			return nil
		}
	}
	return usecaseErrors.ErrAttendeeNotFound
}

func (r *fakeAttendeeRepo) MarkSent(_ context.Context, eventID, userID uuid.UUID) error {
	return r.setStatus(eventID, userID, entities.AttendeeStatusSent, nil)
}

func (r *fakeAttendeeRepo) MarkFailed(_ context.Context, eventID, userID uuid.UUID, reason string) error {
	return r.setStatus(eventID, userID, entities.AttendeeStatusFailed, &reason)
}

func (r *fakeAttendeeRepo) UpdateRSVP(_ context.Context, eventID, userID uuid.UUID, status entities.AttendeeStatus) error {
	return r.setStatus(eventID, userID, status, nil)
}

type fakeUserRepo struct {
	users map[uuid.UUID]*entities.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]*entities.User)}
}

func (r *fakeUserRepo) add(name string) *entities.User {
	u := &entities.User{ID: uuid.New(), Email: name + "@example.com", Name: name}
	r.users[u.ID] = u
	return u
}

func (r *fakeUserRepo) Create(_ context.Context, user *entities.User) error {
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) FindByID(_ context.Context, id uuid.UUID) (*entities.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (*entities.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) FindByIDs(_ context.Context, ids []uuid.UUID) ([]*entities.User, error) {
	var out []*entities.User
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

type fakeDispatcher struct {
	mu         sync.Mutex
	calls      int
	lastRows   []entities.EventAttendee
	attachment *invite.Attachment
}

func (d *fakeDispatcher) Dispatch(_ context.Context, _ *entities.CalendarEvent, attendees []entities.EventAttendee, _ string, attachment *invite.Attachment) invite.Ledger {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	d.lastRows = attendees
	d.attachment = attachment
	ledger := make(invite.Ledger, len(attendees))
	for _, a := range attendees {
		ledger[a.UserID] = invite.Delivery{UserID: a.UserID, Outcome: invite.OutcomeSent, Attempts: 1}
	}
	return ledger
}

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]bool)}
}

func (l *fakeLocker) Acquire(_ context.Context, key string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return false, nil
	}
	l.held[key] = true
	return true, nil
}

func (l *fakeLocker) Release(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}

type testEnv struct {
	svc          Service
	pollRepo     *fakePollRepo
	responseRepo *fakeResponseRepo
	eventRepo    *fakeEventRepo
	attendeeRepo *fakeAttendeeRepo
	userRepo     *fakeUserRepo
	dispatcher   *fakeDispatcher
	locker       *fakeLocker

	organizer *entities.User
	required  *entities.User
	optional  *entities.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		pollRepo:     newFakePollRepo(),
		attendeeRepo: newFakeAttendeeRepo(),
		userRepo:     newFakeUserRepo(),
		dispatcher:   &fakeDispatcher{},
		locker:       newFakeLocker(),
	}
	env.responseRepo = newFakeResponseRepo(env.pollRepo)
	env.eventRepo = newFakeEventRepo(env.pollRepo)

	env.organizer = env.userRepo.add("organizer")
	env.required = env.userRepo.add("required")
	env.optional = env.userRepo.add("optional")

	env.svc = NewService(
		env.pollRepo,
		env.responseRepo,
		env.eventRepo,
		env.attendeeRepo,
		env.userRepo,
		env.dispatcher,
		ics.NewEncoder(""),
		nil,
		env.locker,
		zap.NewNop(),
	)
	return env
}

func (env *testEnv) createPoll(t *testing.T, optionCount int) *entities.MeetingPoll {
	t.Helper()
	options := make([]OptionInput, optionCount)
	for i := range options {
		start := tallyBase.Add(time.Duration(i) * 24 * time.Hour)
		options[i] = OptionInput{StartTime: start, EndTime: start.Add(time.Hour)}
	}
	poll, err := env.svc.CreatePoll(context.Background(), CreatePollInput{
		Title:       "Sprint planning",
		OrganizerID: env.organizer.ID,
		Options:     options,
		Attendees: []AttendeeInput{
			{UserID: env.required.ID, IsRequired: true},
			{UserID: env.optional.ID},
		},
	})
	if err != nil {
		t.Fatalf("CreatePoll failed: %v", err)
	}
	return poll
}

func (env *testEnv) vote(t *testing.T, poll *entities.MeetingPoll, optionIdx int, user *entities.User, value entities.VoteValue) {
	t.Helper()
	err := env.svc.SubmitResponse(context.Background(), SubmitResponseInput{
		PollID:   poll.ID,
		OptionID: poll.Options[optionIdx].ID,
		UserID:   user.ID,
		Value:    value,
	})
	if err != nil {
		t.Fatalf("SubmitResponse failed: %v", err)
	}
}

func TestCreatePoll_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	base := CreatePollInput{
		Title:       "Kickoff",
		OrganizerID: env.organizer.ID,
		Options:     []OptionInput{{StartTime: tallyBase, EndTime: tallyBase.Add(time.Hour)}},
		Attendees:   []AttendeeInput{{UserID: env.required.ID, IsRequired: true}},
	}

	noOptions := base
	noOptions.Options = nil
	if _, err := env.svc.CreatePoll(ctx, noOptions); !errors.Is(err, usecaseErrors.ErrNoOptions) {
		t.Fatalf("expected ErrNoOptions, got %v", err)
	}

	badRange := base
	badRange.Options = []OptionInput{{StartTime: tallyBase.Add(time.Hour), EndTime: tallyBase}}
	if _, err := env.svc.CreatePoll(ctx, badRange); !errors.Is(err, usecaseErrors.ErrInvalidTimeRange) {
		t.Fatalf("expected ErrInvalidTimeRange, got %v", err)
	}

	noRequired := base
	noRequired.Attendees = []AttendeeInput{{UserID: env.optional.ID}}
	if _, err := env.svc.CreatePoll(ctx, noRequired); !errors.Is(err, usecaseErrors.ErrNoRequiredAttendees) {
		t.Fatalf("expected ErrNoRequiredAttendees, got %v", err)
	}

	duplicate := base
	duplicate.Attendees = []AttendeeInput{
		{UserID: env.required.ID, IsRequired: true},
		{UserID: env.required.ID},
	}
	if _, err := env.svc.CreatePoll(ctx, duplicate); !errors.Is(err, usecaseErrors.ErrDuplicateAttendee) {
		t.Fatalf("expected ErrDuplicateAttendee, got %v", err)
	}

	unknown := base
	unknown.Attendees = []AttendeeInput{{UserID: uuid.New(), IsRequired: true}}
	if _, err := env.svc.CreatePoll(ctx, unknown); !errors.Is(err, usecaseErrors.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestCreatePoll_AssignsPositions(t *testing.T) {
	env := newTestEnv(t)
	poll := env.createPoll(t, 3)
	for i, opt := range poll.Options {
		if opt.Position != i {
			t.Fatalf("option %d has position %d", i, opt.Position)
		}
	}
	if !poll.IsOpen() {
		t.Fatalf("new poll must be open, got %s", poll.Status)
	}
}

func TestSubmitResponse_RejectedAfterClose(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	poll := env.createPoll(t, 1)

	env.vote(t, poll, 0, env.required, entities.VoteYes)

	if err := env.svc.ClosePoll(ctx, poll.ID, env.organizer.ID); err != nil {
		t.Fatalf("ClosePoll failed: %v", err)
	}

	err := env.svc.SubmitResponse(ctx, SubmitResponseInput{
		PollID:   poll.ID,
		OptionID: poll.Options[0].ID,
		UserID:   env.optional.ID,
		Value:    entities.VoteYes,
	})
	if !errors.Is(err, usecaseErrors.ErrPollClosed) {
		t.Fatalf("expected ErrPollClosed, got %v", err)
	}
}

func TestSubmitResponse_MembershipChecks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	poll := env.createPoll(t, 1)

	err := env.svc.SubmitResponse(ctx, SubmitResponseInput{
		PollID:   poll.ID,
		OptionID: uuid.New(),
		UserID:   env.required.ID,
		Value:    entities.VoteYes,
	})
	if !errors.Is(err, usecaseErrors.ErrOptionNotInPoll) {
		t.Fatalf("expected ErrOptionNotInPoll, got %v", err)
	}

	err = env.svc.SubmitResponse(ctx, SubmitResponseInput{
		PollID:   poll.ID,
		OptionID: poll.Options[0].ID,
		UserID:   env.organizer.ID, // organizer is not an attendee here
		Value:    entities.VoteYes,
	})
	if !errors.Is(err, usecaseErrors.ErrNotAttendee) {
		t.Fatalf("expected ErrNotAttendee, got %v", err)
	}
}

func TestClosePoll_OrganizerOnlyAndIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	poll := env.createPoll(t, 1)

	if err := env.svc.ClosePoll(ctx, poll.ID, env.required.ID); !errors.Is(err, usecaseErrors.ErrNotOrganizer) {
		t.Fatalf("expected ErrNotOrganizer, got %v", err)
	}

	if err := env.svc.ClosePoll(ctx, poll.ID, env.organizer.ID); err != nil {
		t.Fatalf("first close failed: %v", err)
	}
	if err := env.svc.ClosePoll(ctx, poll.ID, env.organizer.ID); err != nil {
		t.Fatalf("second close must be a no-op, got %v", err)
	}
}

func TestCancelPoll_Rules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	poll := env.createPoll(t, 1)

	if err := env.svc.CancelPoll(ctx, poll.ID, env.organizer.ID); err != nil {
		t.Fatalf("cancel open poll failed: %v", err)
	}
	if err := env.svc.CancelPoll(ctx, poll.ID, env.organizer.ID); err != nil {
		t.Fatalf("second cancel must be a no-op, got %v", err)
	}

	// Finalized polls are immutable.
	second := env.createPoll(t, 1)
	env.vote(t, second, 0, env.required, entities.VoteYes)
	if err := env.svc.ClosePoll(ctx, second.ID, env.organizer.ID); err != nil {
		t.Fatalf("ClosePoll failed: %v", err)
	}
	if _, err := env.svc.Finalize(ctx, second.ID, env.organizer.ID); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if err := env.svc.CancelPoll(ctx, second.ID, env.organizer.ID); !errors.Is(err, usecaseErrors.ErrAlreadyFinalized) {
		t.Fatalf("expected ErrAlreadyFinalized, got %v", err)
	}
}

func TestFinalize_Success(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	poll := env.createPoll(t, 2)

	env.vote(t, poll, 0, env.required, entities.VoteYes)
	env.vote(t, poll, 1, env.required, entities.VoteMaybe)
	env.vote(t, poll, 1, env.optional, entities.VoteYes)

	if err := env.svc.ClosePoll(ctx, poll.ID, env.organizer.ID); err != nil {
		t.Fatalf("ClosePoll failed: %v", err)
	}

	output, err := env.svc.Finalize(ctx, poll.ID, env.organizer.ID)
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	if output.Event.StartTime != poll.Options[0].StartTime {
		t.Fatal("event must use the winning option's slot")
	}
	if len(output.Event.TallyBreakdown) == 0 {
		t.Fatal("event must carry the tally snapshot")
	}
	if len(output.Ledger) != 2 {
		t.Fatalf("expected ledger entries for both attendees, got %d", len(output.Ledger))
	}

	updated, err := env.svc.GetPoll(ctx, poll.ID)
	if err != nil {
		t.Fatalf("GetPoll failed: %v", err)
	}
	if !updated.IsFinalized() {
		t.Fatalf("poll must be finalized, got %s", updated.Status)
	}

	if env.dispatcher.calls != 1 {
		t.Fatalf("dispatcher must run exactly once, ran %d times", env.dispatcher.calls)
	}
	if env.dispatcher.attachment == nil || len(env.dispatcher.attachment.Content) == 0 {
		t.Fatal("invites must carry the calendar attachment")
	}
	if env.dispatcher.attachment.MimeType != "text/calendar" {
		t.Fatalf("unexpected attachment mime type %s", env.dispatcher.attachment.MimeType)
	}
}

func TestFinalize_RequiresClosedPoll(t *testing.T) {
	env := newTestEnv(t)
	poll := env.createPoll(t, 1)

	if _, err := env.svc.Finalize(context.Background(), poll.ID, env.organizer.ID); !errors.Is(err, usecaseErrors.ErrPollNotClosed) {
		t.Fatalf("expected ErrPollNotClosed, got %v", err)
	}
}

func TestFinalize_NoConsensusKeepsPollClosed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	poll := env.createPoll(t, 1)

	env.vote(t, poll, 0, env.required, entities.VoteNo)

	if err := env.svc.ClosePoll(ctx, poll.ID, env.organizer.ID); err != nil {
		t.Fatalf("ClosePoll failed: %v", err)
	}

	if _, err := env.svc.Finalize(ctx, poll.ID, env.organizer.ID); !errors.Is(err, usecaseErrors.ErrNoConsensus) {
		t.Fatalf("expected ErrNoConsensus, got %v", err)
	}

	updated, _ := env.svc.GetPoll(ctx, poll.ID)
	if !updated.IsClosed() {
		t.Fatalf("poll must stay closed after a no-consensus attempt, got %s", updated.Status)
	}
	if env.dispatcher.calls != 0 {
		t.Fatal("no invites may go out without an event")
	}
}

func TestFinalize_TransactionFailureKeepsPollClosed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	poll := env.createPoll(t, 1)

	env.vote(t, poll, 0, env.required, entities.VoteYes)
	if err := env.svc.ClosePoll(ctx, poll.ID, env.organizer.ID); err != nil {
		t.Fatalf("ClosePoll failed: %v", err)
	}

	env.eventRepo.failNext = errors.New("connection reset")
	if _, err := env.svc.Finalize(ctx, poll.ID, env.organizer.ID); err == nil {
		t.Fatal("expected finalize to surface the storage error")
	}

	updated, _ := env.svc.GetPoll(ctx, poll.ID)
	if !updated.IsClosed() {
		t.Fatalf("failed finalize must leave the poll closed, got %s", updated.Status)
	}
	if env.dispatcher.calls != 0 {
		t.Fatal("no invites may go out when the transaction failed")
	}
}

func TestFinalize_SecondAttemptRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	poll := env.createPoll(t, 1)

	env.vote(t, poll, 0, env.required, entities.VoteYes)
	if err := env.svc.ClosePoll(ctx, poll.ID, env.organizer.ID); err != nil {
		t.Fatalf("ClosePoll failed: %v", err)
	}
	if _, err := env.svc.Finalize(ctx, poll.ID, env.organizer.ID); err != nil {
		t.Fatalf("first Finalize failed: %v", err)
	}
	if _, err := env.svc.Finalize(ctx, poll.ID, env.organizer.ID); !errors.Is(err, usecaseErrors.ErrAlreadyFinalized) {
		t.Fatalf("expected ErrAlreadyFinalized, got %v", err)
	}
	if env.dispatcher.calls != 1 {
		t.Fatalf("dispatcher must not run again, ran %d times", env.dispatcher.calls)
	}
}

func TestFinalize_LockHeld(t *testing.T) {
	env := newTestEnv(t)
	poll := env.createPoll(t, 1)

	env.locker.held["finalize:"+poll.ID.String()] = true
	if _, err := env.svc.Finalize(context.Background(), poll.ID, env.organizer.ID); !errors.Is(err, usecaseErrors.ErrFinalizeInProgress) {
		t.Fatalf("expected ErrFinalizeInProgress, got %v", err)
	}
}

func TestReopen_AppendsOptions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	poll := env.createPoll(t, 2)

	if _, err := env.svc.Reopen(ctx, ReopenInput{PollID: poll.ID, ActorID: env.organizer.ID}); !errors.Is(err, usecaseErrors.ErrPollNotClosed) {
		t.Fatalf("reopening an open poll must fail, got %v", err)
	}

	if err := env.svc.ClosePoll(ctx, poll.ID, env.organizer.ID); err != nil {
		t.Fatalf("ClosePoll failed: %v", err)
	}

	start := tallyBase.Add(7 * 24 * time.Hour)
	reopened, err := env.svc.Reopen(ctx, ReopenInput{
		PollID:  poll.ID,
		ActorID: env.organizer.ID,
		Options: []OptionInput{{StartTime: start, EndTime: start.Add(time.Hour)}},
	})
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	if !reopened.IsOpen() {
		t.Fatalf("reopened poll must be open, got %s", reopened.Status)
	}
	if len(reopened.Options) != 3 {
		t.Fatalf("expected 3 options after reopen, got %d", len(reopened.Options))
	}
	if reopened.Options[2].Position != 2 {
		t.Fatalf("appended option must continue the position sequence, got %d", reopened.Options[2].Position)
	}
}

func TestResults_OrganizerOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	poll := env.createPoll(t, 1)
	env.vote(t, poll, 0, env.required, entities.VoteYes)

	if _, err := env.svc.Results(ctx, poll.ID, env.required.ID); !errors.Is(err, usecaseErrors.ErrNotOrganizer) {
		t.Fatalf("expected ErrNotOrganizer, got %v", err)
	}

	result, err := env.svc.Results(ctx, poll.ID, env.organizer.ID)
	if err != nil {
		t.Fatalf("Results failed: %v", err)
	}
	if !result.HasConsensus() || result.Scores[0].Score != 2 {
		t.Fatalf("unexpected tally: %+v", result.Scores)
	}
}

func TestRSVP(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	poll := env.createPoll(t, 1)

	env.vote(t, poll, 0, env.required, entities.VoteYes)
	if err := env.svc.ClosePoll(ctx, poll.ID, env.organizer.ID); err != nil {
		t.Fatalf("ClosePoll failed: %v", err)
	}
	output, err := env.svc.Finalize(ctx, poll.ID, env.organizer.ID)
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	env.attendeeRepo.rows[output.Event.ID] = output.Event.Attendees

	if err := env.svc.RSVP(ctx, output.Event.ID, env.required.ID, true); err != nil {
		t.Fatalf("RSVP failed: %v", err)
	}
	rows, _ := env.attendeeRepo.FindByEvent(ctx, output.Event.ID)
	found := false
	for _, row := range rows {
		if row.UserID == env.required.ID {
			found = true
			if row.Status != entities.AttendeeStatusAccepted {
				t.Fatalf("expected accepted, got %s", row.Status)
			}
		}
	}
	if !found {
		t.Fatal("attendee row missing")
	}

	if err := env.svc.RSVP(ctx, output.Event.ID, uuid.New(), false); !errors.Is(err, usecaseErrors.ErrAttendeeNotFound) {
		t.Fatalf("expected ErrAttendeeNotFound, got %v", err)
	}
}

func TestResendFailed_OnlyTouchesUnsentRows(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	poll := env.createPoll(t, 1)

	env.vote(t, poll, 0, env.required, entities.VoteYes)
	if err := env.svc.ClosePoll(ctx, poll.ID, env.organizer.ID); err != nil {
		t.Fatalf("ClosePoll failed: %v", err)
	}
	output, err := env.svc.Finalize(ctx, poll.ID, env.organizer.ID)
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	// One attendee delivered, one failed.
	rows := output.Event.Attendees
	rows[0].Status = entities.AttendeeStatusSent
	rows[1].Status = entities.AttendeeStatusFailed
	env.attendeeRepo.rows[output.Event.ID] = rows

	ledger, err := env.svc.ResendFailed(ctx, output.Event.ID, env.organizer.ID)
	if err != nil {
		t.Fatalf("ResendFailed failed: %v", err)
	}
	if len(ledger) != 1 {
		t.Fatalf("expected exactly the failed row to be redispatched, got %d", len(ledger))
	}
	if len(env.dispatcher.lastRows) != 1 || env.dispatcher.lastRows[0].UserID != rows[1].UserID {
		t.Fatal("dispatcher received the wrong rows")
	}

	if _, err := env.svc.ResendFailed(ctx, output.Event.ID, env.required.ID); !errors.Is(err, usecaseErrors.ErrNotOrganizer) {
		t.Fatalf("expected ErrNotOrganizer, got %v", err)
	}
}

func TestSubmitResponse_LatestVoteWins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	poll := env.createPoll(t, 1)

	env.vote(t, poll, 0, env.required, entities.VoteYes)
	env.vote(t, poll, 0, env.required, entities.VoteNo) // change of mind

	responses, _ := env.responseRepo.FindByPoll(ctx, poll.ID)
	if len(responses) != 1 {
		t.Fatalf("resubmitting must leave exactly one row, got %d", len(responses))
	}
	if responses[0].Value != entities.VoteNo {
		t.Fatalf("latest vote must win, got %s", responses[0].Value)
	}

	result, err := env.svc.Results(ctx, poll.ID, env.organizer.ID)
	if err != nil {
		t.Fatalf("Results failed: %v", err)
	}
	if !result.Scores[0].Vetoed {
		t.Fatal("tally must reflect the replaced vote")
	}
}

func TestEndToEnd_VetoedOptionLosesToLowerScore(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	monday := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	tuesday := time.Date(2026, 3, 3, 14, 0, 0, 0, time.UTC)
	u1 := env.required
	u2 := env.userRepo.add("second-required")

	poll, err := env.svc.CreatePoll(ctx, CreatePollInput{
		Title:       "Architecture sync",
		OrganizerID: env.organizer.ID,
		Options: []OptionInput{
			{StartTime: monday, EndTime: monday.Add(time.Hour)},
			{StartTime: tuesday, EndTime: tuesday.Add(time.Hour)},
		},
		Attendees: []AttendeeInput{
			{UserID: u1.ID, IsRequired: true},
			{UserID: u2.ID, IsRequired: true},
		},
	})
	if err != nil {
		t.Fatalf("CreatePoll failed: %v", err)
	}

	env.vote(t, poll, 0, u1, entities.VoteYes)
	env.vote(t, poll, 1, u1, entities.VoteNo)
	env.vote(t, poll, 0, u2, entities.VoteYes)
	env.vote(t, poll, 1, u2, entities.VoteMaybe)

	if err := env.svc.ClosePoll(ctx, poll.ID, env.organizer.ID); err != nil {
		t.Fatalf("ClosePoll failed: %v", err)
	}

	output, err := env.svc.Finalize(ctx, poll.ID, env.organizer.ID)
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	// Monday scores 4 (two required yes); Tuesday is vetoed by u1.
	if !output.Event.StartTime.Equal(monday) {
		t.Fatalf("expected the Monday slot, got %v", output.Event.StartTime)
	}
	if len(output.Event.Attendees) != 2 {
		t.Fatalf("expected 2 attendee rows, got %d", len(output.Event.Attendees))
	}
	for _, userID := range []uuid.UUID{u1.ID, u2.ID} {
		if output.Ledger[userID].Outcome != invite.OutcomeSent {
			t.Fatalf("expected sent outcome for %s, got %s", userID, output.Ledger[userID].Outcome)
		}
	}
}

func TestDeadlineWorker_ClosesExpiredPolls(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	deadline := time.Now().Add(-time.Minute)
	expired, err := env.svc.CreatePoll(ctx, CreatePollInput{
		Title:          "Retro",
		OrganizerID:    env.organizer.ID,
		VotingDeadline: &deadline,
		Options:        []OptionInput{{StartTime: tallyBase, EndTime: tallyBase.Add(time.Hour)}},
		Attendees:      []AttendeeInput{{UserID: env.required.ID, IsRequired: true}},
	})
	if err != nil {
		t.Fatalf("CreatePoll failed: %v", err)
	}
	fresh := env.createPoll(t, 1) // no deadline

	worker := NewDeadlineWorker(env.pollRepo, zap.NewNop(), time.Minute)
	worker.Sweep(ctx)

	p1, _ := env.svc.GetPoll(ctx, expired.ID)
	if !p1.IsClosed() {
		t.Fatalf("expired poll must be closed, got %s", p1.Status)
	}
	p2, _ := env.svc.GetPoll(ctx, fresh.ID)
	if !p2.IsOpen() {
		t.Fatalf("poll without deadline must stay open, got %s", p2.Status)
	}
}
