package poll

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/meetpoll-team/meetpoll/internal/domain/entities"
	"github.com/meetpoll-team/meetpoll/internal/domain/repositories"
	usecaseErrors "github.com/meetpoll-team/meetpoll/internal/usecase/errors"
	"github.com/meetpoll-team/meetpoll/internal/usecase/invite"
	"github.com/meetpoll-team/meetpoll/pkg/ics"
)

// finalizeLockTTL bounds how long a crashed finalize can hold the lock
const finalizeLockTTL = 30 * time.Second

// Locker serializes finalize attempts per poll across instances
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Archiver stores a copy of every generated calendar file
type Archiver interface {
	StoreICS(ctx context.Context, eventID uuid.UUID, body []byte) error
}

// Dispatcher delivers invites and reports per-attendee outcomes
type Dispatcher interface {
	Dispatch(ctx context.Context, event *entities.CalendarEvent, attendees []entities.EventAttendee, body string, attachment *invite.Attachment) invite.Ledger
}

// OptionInput is one candidate slot in a create or reopen request
type OptionInput struct {
	StartTime time.Time
	EndTime   time.Time
}

// AttendeeInput is one invitee in a create request
type AttendeeInput struct {
	UserID     uuid.UUID
	IsRequired bool
}

// CreatePollInput carries everything needed to open a poll
type CreatePollInput struct {
	Title          string
	Description    *string
	Location       string
	Category       string
	OrganizerID    uuid.UUID
	VotingDeadline *time.Time
	Options        []OptionInput
	Attendees      []AttendeeInput
}

// SubmitResponseInput is one vote on one option
type SubmitResponseInput struct {
	PollID   uuid.UUID
	OptionID uuid.UUID
	UserID   uuid.UUID
	Value    entities.VoteValue
}

// ReopenInput moves a closed poll back to voting with extra options
type ReopenInput struct {
	PollID  uuid.UUID
	ActorID uuid.UUID
	Options []OptionInput
}

// FinalizeOutput is the result of a successful finalization
type FinalizeOutput struct {
	Event  *entities.CalendarEvent
	Ledger invite.Ledger
}

// Service drives the poll lifecycle: open → closed → finalized, with
// cancel and reopen branches. All transitions go through the repositories'
// conditional updates, so concurrent actors lose cleanly instead of
// corrupting state.
type Service interface {
	CreatePoll(ctx context.Context, input CreatePollInput) (*entities.MeetingPoll, error)
	GetPoll(ctx context.Context, id uuid.UUID) (*entities.MeetingPoll, error)
	ListPolls(ctx context.Context, organizerID uuid.UUID, limit, offset int) ([]*entities.MeetingPoll, error)
	SubmitResponse(ctx context.Context, input SubmitResponseInput) error
	ClosePoll(ctx context.Context, pollID, actorID uuid.UUID) error
	CancelPoll(ctx context.Context, pollID, actorID uuid.UUID) error
	Finalize(ctx context.Context, pollID, actorID uuid.UUID) (*FinalizeOutput, error)
	Reopen(ctx context.Context, input ReopenInput) (*entities.MeetingPoll, error)
	Results(ctx context.Context, pollID, actorID uuid.UUID) (*TallyResult, error)
	GetEvent(ctx context.Context, eventID uuid.UUID) (*entities.CalendarEvent, error)
	ResendFailed(ctx context.Context, eventID, actorID uuid.UUID) (invite.Ledger, error)
	RSVP(ctx context.Context, eventID, userID uuid.UUID, accept bool) error
}

type service struct {
	pollRepo     repositories.PollRepository
	responseRepo repositories.ResponseRepository
	eventRepo    repositories.EventRepository
	attendeeRepo repositories.EventAttendeeRepository
	userRepo     repositories.UserRepository
	dispatcher   Dispatcher
	encoder      *ics.Encoder
	archive      Archiver // optional
	locker       Locker
	logger       *zap.Logger
}

// NewService creates the poll service. archive may be nil; archiving is
// best-effort and never blocks finalization.
func NewService(
	pollRepo repositories.PollRepository,
	responseRepo repositories.ResponseRepository,
	eventRepo repositories.EventRepository,
	attendeeRepo repositories.EventAttendeeRepository,
	userRepo repositories.UserRepository,
	dispatcher Dispatcher,
	encoder *ics.Encoder,
	archive Archiver,
	locker Locker,
	logger *zap.Logger,
) Service {
	return &service{
		pollRepo:     pollRepo,
		responseRepo: responseRepo,
		eventRepo:    eventRepo,
		attendeeRepo: attendeeRepo,
		userRepo:     userRepo,
		dispatcher:   dispatcher,
		encoder:      encoder,
		archive:      archive,
		locker:       locker,
		logger:       logger,
	}
}

// CreatePoll validates and persists a new poll in the open state
func (s *service) CreatePoll(ctx context.Context, input CreatePollInput) (*entities.MeetingPoll, error) {
	if input.Title == "" || input.OrganizerID == uuid.Nil {
		return nil, usecaseErrors.ErrInvalidInput
	}
	if len(input.Options) == 0 {
		return nil, usecaseErrors.ErrNoOptions
	}

	options := make([]entities.PollOption, len(input.Options))
	for i, opt := range input.Options {
		options[i] = entities.PollOption{
			StartTime: opt.StartTime,
			EndTime:   opt.EndTime,
			Position:  i,
		}
		if !options[i].HasValidRange() {
			return nil, usecaseErrors.ErrInvalidTimeRange
		}
	}

	seen := make(map[uuid.UUID]bool, len(input.Attendees))
	hasRequired := false
	attendees := make([]entities.PollAttendee, 0, len(input.Attendees))
	userIDs := make([]uuid.UUID, 0, len(input.Attendees))
	for _, a := range input.Attendees {
		if seen[a.UserID] {
			return nil, usecaseErrors.ErrDuplicateAttendee
		}
		seen[a.UserID] = true
		if a.IsRequired {
			hasRequired = true
		}
		attendees = append(attendees, entities.PollAttendee{
			UserID:     a.UserID,
			IsRequired: a.IsRequired,
		})
		userIDs = append(userIDs, a.UserID)
	}
	if !hasRequired {
		return nil, usecaseErrors.ErrNoRequiredAttendees
	}

	users, err := s.userRepo.FindByIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	if len(users) != len(userIDs) {
		return nil, usecaseErrors.ErrUserNotFound
	}

	category := input.Category
	if category == "" {
		category = "meeting"
	}

	poll := &entities.MeetingPoll{
		Title:          input.Title,
		Description:    input.Description,
		Location:       input.Location,
		Category:       category,
		OrganizerID:    input.OrganizerID,
		Status:         entities.PollStatusOpen,
		VotingDeadline: input.VotingDeadline,
		Options:        options,
		Attendees:      attendees,
	}

	if err := s.pollRepo.CreateWithChildren(ctx, poll); err != nil {
		s.logger.Error("❌ Failed to create poll", zap.Error(err))
		return nil, err
	}

	s.logger.Info("✅ Poll created",
		zap.String("poll_id", poll.ID.String()),
		zap.Int("options", len(poll.Options)),
		zap.Int("attendees", len(poll.Attendees)))
	return s.GetPoll(ctx, poll.ID)
}

// GetPoll retrieves a poll with options and attendees
func (s *service) GetPoll(ctx context.Context, id uuid.UUID) (*entities.MeetingPoll, error) {
	poll, err := s.pollRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, usecaseErrors.ErrPollNotFound
		}
		return nil, err
	}
	return poll, nil
}

// ListPolls lists polls created by an organizer
func (s *service) ListPolls(ctx context.Context, organizerID uuid.UUID, limit, offset int) ([]*entities.MeetingPoll, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.pollRepo.FindByOrganizer(ctx, organizerID, limit, offset)
}

// SubmitResponse records one attendee's vote on one option. The membership
// checks here are advisory; the close boundary itself is enforced inside
// the repository's transaction.
func (s *service) SubmitResponse(ctx context.Context, input SubmitResponseInput) error {
	poll, err := s.GetPoll(ctx, input.PollID)
	if err != nil {
		return err
	}

	switch {
	case poll.IsCancelled():
		return usecaseErrors.ErrPollCancelled
	case !poll.IsOpen():
		return usecaseErrors.ErrPollClosed
	}

	optionOK := false
	for _, opt := range poll.Options {
		if opt.ID == input.OptionID {
			optionOK = true
			break
		}
	}
	if !optionOK {
		return usecaseErrors.ErrOptionNotInPoll
	}

	attendeeOK := false
	for _, a := range poll.Attendees {
		if a.UserID == input.UserID {
			attendeeOK = true
			break
		}
	}
	if !attendeeOK {
		return usecaseErrors.ErrNotAttendee
	}

	response := &entities.PollResponse{
		PollID:      input.PollID,
		OptionID:    input.OptionID,
		UserID:      input.UserID,
		Value:       input.Value,
		RespondedAt: time.Now().UTC(),
	}
	return s.responseRepo.Upsert(ctx, response)
}

// ClosePoll moves an open poll to closed. Closing an already-closed poll
// is a no-op, so the deadline worker and the organizer can race safely.
func (s *service) ClosePoll(ctx context.Context, pollID, actorID uuid.UUID) error {
	poll, err := s.GetPoll(ctx, pollID)
	if err != nil {
		return err
	}
	if poll.OrganizerID != actorID {
		return usecaseErrors.ErrNotOrganizer
	}

	switch poll.Status {
	case entities.PollStatusClosed:
		return nil
	case entities.PollStatusCancelled:
		return usecaseErrors.ErrPollCancelled
	case entities.PollStatusFinalized:
		return usecaseErrors.ErrAlreadyFinalized
	}

	ok, err := s.pollRepo.UpdateStatusIf(ctx, pollID, entities.PollStatusOpen, entities.PollStatusClosed)
	if err != nil {
		return err
	}
	if !ok {
		// Lost the race; a concurrent close is fine, anything else is not.
		current, err := s.GetPoll(ctx, pollID)
		if err != nil {
			return err
		}
		if current.IsClosed() {
			return nil
		}
		return s.statusError(current)
	}

	s.logger.Info("✅ Poll closed", zap.String("poll_id", pollID.String()))
	return nil
}

// CancelPoll abandons a poll before it produced an event. Cancelling twice
// is a no-op; cancelling a finalized poll is rejected.
func (s *service) CancelPoll(ctx context.Context, pollID, actorID uuid.UUID) error {
	poll, err := s.GetPoll(ctx, pollID)
	if err != nil {
		return err
	}
	if poll.OrganizerID != actorID {
		return usecaseErrors.ErrNotOrganizer
	}

	if poll.IsCancelled() {
		return nil
	}
	if !poll.CanCancel() {
		return usecaseErrors.ErrAlreadyFinalized
	}

	ok, err := s.pollRepo.UpdateStatusIf(ctx, pollID, poll.Status, entities.PollStatusCancelled)
	if err != nil {
		return err
	}
	if !ok {
		current, err := s.GetPoll(ctx, pollID)
		if err != nil {
			return err
		}
		if current.IsCancelled() {
			return nil
		}
		if current.CanCancel() {
			ok, err = s.pollRepo.UpdateStatusIf(ctx, pollID, current.Status, entities.PollStatusCancelled)
			if err != nil {
				return err
			}
			if ok {
				s.logger.Info("✅ Poll cancelled", zap.String("poll_id", pollID.String()))
				return nil
			}
		}
		return usecaseErrors.ErrAlreadyFinalized
	}

	s.logger.Info("✅ Poll cancelled", zap.String("poll_id", pollID.String()))
	return nil
}

// Finalize tallies a closed poll, creates the calendar event and dispatches
// invites. The event write, attendee rows and the closed → finalized flip
// commit as one transaction; invite delivery happens after the commit and
// its failures never unwind the event.
func (s *service) Finalize(ctx context.Context, pollID, actorID uuid.UUID) (*FinalizeOutput, error) {
	lockKey := "finalize:" + pollID.String()
	acquired, err := s.locker.Acquire(ctx, lockKey, finalizeLockTTL)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, usecaseErrors.ErrFinalizeInProgress
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), lockKey); err != nil {
			s.logger.Warn("Failed to release finalize lock", zap.String("key", lockKey), zap.Error(err))
		}
	}()

	poll, err := s.GetPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if poll.OrganizerID != actorID {
		return nil, usecaseErrors.ErrNotOrganizer
	}
	if !poll.IsClosed() {
		return nil, s.statusError(poll)
	}

	responses, err := s.responseRepo.FindByPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}

	result := Tally(poll.Options, poll.Attendees, responses)
	if !result.HasConsensus() {
		s.logger.Info("🔄 Finalize found no consensus",
			zap.String("poll_id", pollID.String()),
			zap.Int("responses", len(responses)))
		return nil, usecaseErrors.ErrNoConsensus
	}

	breakdown, err := json.Marshal(result.Scores)
	if err != nil {
		return nil, err
	}

	description := ""
	if poll.Description != nil {
		description = *poll.Description
	}

	// The event ID and creation time are fixed before the insert so the
	// calendar file's UID and DTSTAMP are reproducible.
	now := time.Now().UTC()
	event := &entities.CalendarEvent{
		ID:             uuid.New(),
		PollID:         poll.ID,
		Title:          poll.Title,
		Description:    description,
		Location:       poll.Location,
		Category:       poll.Category,
		StartTime:      result.Winner.StartTime,
		EndTime:        result.Winner.EndTime,
		OrganizerID:    poll.OrganizerID,
		Organizer:      poll.Organizer,
		Status:         entities.EventStatusConfirmed,
		TallyBreakdown: breakdown,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	attendeeRows := make([]entities.EventAttendee, len(poll.Attendees))
	for i, a := range poll.Attendees {
		attendeeRows[i] = entities.EventAttendee{
			EventID: event.ID,
			UserID:  a.UserID,
			User:    a.User,
			Status:  entities.AttendeeStatusPending,
		}
	}

	ok, err := s.eventRepo.CreateFinalized(ctx, event, attendeeRows)
	if err != nil {
		s.logger.Error("❌ Finalize transaction failed",
			zap.String("poll_id", pollID.String()),
			zap.Error(err))
		return nil, err
	}
	if !ok {
		return nil, usecaseErrors.ErrAlreadyFinalized
	}
	event.Attendees = attendeeRows

	s.logger.Info("✅ Poll finalized",
		zap.String("poll_id", pollID.String()),
		zap.String("event_id", event.ID.String()),
		zap.String("winning_option", result.Winner.ID.String()))

	icsBody := s.encoder.Encode(s.calendarPayload(event))

	if s.archive != nil {
		if err := s.archive.StoreICS(ctx, event.ID, icsBody); err != nil {
			s.logger.Warn("Failed to archive calendar file",
				zap.String("event_id", event.ID.String()),
				zap.Error(err))
		}
	}

	ledger := s.dispatcher.Dispatch(ctx, event, attendeeRows, invite.BuildBody(event), &invite.Attachment{
		Filename: "invite.ics",
		Content:  icsBody,
		MimeType: "text/calendar",
	})

	return &FinalizeOutput{Event: event, Ledger: ledger}, nil
}

// Reopen moves a closed poll back to open, appending new candidate slots.
// The organizer's escape hatch after a no-consensus finalize attempt.
func (s *service) Reopen(ctx context.Context, input ReopenInput) (*entities.MeetingPoll, error) {
	poll, err := s.GetPoll(ctx, input.PollID)
	if err != nil {
		return nil, err
	}
	if poll.OrganizerID != input.ActorID {
		return nil, usecaseErrors.ErrNotOrganizer
	}
	if !poll.IsClosed() {
		return nil, s.statusError(poll)
	}

	options := make([]entities.PollOption, len(input.Options))
	for i, opt := range input.Options {
		options[i] = entities.PollOption{
			PollID:    poll.ID,
			StartTime: opt.StartTime,
			EndTime:   opt.EndTime,
			Position:  len(poll.Options) + i,
		}
		if !options[i].HasValidRange() {
			return nil, usecaseErrors.ErrInvalidTimeRange
		}
	}

	ok, err := s.pollRepo.ReopenWithOptions(ctx, poll.ID, options)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, usecaseErrors.ErrPollNotClosed
	}

	s.logger.Info("✅ Poll reopened",
		zap.String("poll_id", poll.ID.String()),
		zap.Int("new_options", len(options)))
	return s.GetPoll(ctx, poll.ID)
}

// Results tallies the current responses for the organizer without changing
// any state.
func (s *service) Results(ctx context.Context, pollID, actorID uuid.UUID) (*TallyResult, error) {
	poll, err := s.GetPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if poll.OrganizerID != actorID {
		return nil, usecaseErrors.ErrNotOrganizer
	}

	responses, err := s.responseRepo.FindByPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}

	result := Tally(poll.Options, poll.Attendees, responses)
	return &result, nil
}

// GetEvent retrieves a finalized event with its delivery ledger
func (s *service) GetEvent(ctx context.Context, eventID uuid.UUID) (*entities.CalendarEvent, error) {
	event, err := s.eventRepo.FindByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, usecaseErrors.ErrEventNotFound
		}
		return nil, err
	}
	return event, nil
}

// ResendFailed re-dispatches invites for attendee rows still marked failed
// or pending. Rows already sent are untouched.
func (s *service) ResendFailed(ctx context.Context, eventID, actorID uuid.UUID) (invite.Ledger, error) {
	event, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.OrganizerID != actorID {
		return nil, usecaseErrors.ErrNotOrganizer
	}

	failed, err := s.attendeeRepo.FindByEventAndStatus(ctx, eventID, entities.AttendeeStatusFailed)
	if err != nil {
		return nil, err
	}
	pending, err := s.attendeeRepo.FindByEventAndStatus(ctx, eventID, entities.AttendeeStatusPending)
	if err != nil {
		return nil, err
	}
	rows := append(failed, pending...)
	if len(rows) == 0 {
		return invite.Ledger{}, nil
	}

	icsBody := s.encoder.Encode(s.calendarPayload(event))
	ledger := s.dispatcher.Dispatch(ctx, event, rows, invite.BuildBody(event), &invite.Attachment{
		Filename: "invite.ics",
		Content:  icsBody,
		MimeType: "text/calendar",
	})
	return ledger, nil
}

// RSVP records an attendee's accept or decline on a finalized event
func (s *service) RSVP(ctx context.Context, eventID, userID uuid.UUID, accept bool) error {
	if _, err := s.GetEvent(ctx, eventID); err != nil {
		return err
	}
	status := entities.AttendeeStatusDeclined
	if accept {
		status = entities.AttendeeStatusAccepted
	}
	return s.attendeeRepo.UpdateRSVP(ctx, eventID, userID, status)
}

// calendarPayload maps a stored event to the calendar encoder's input
func (s *service) calendarPayload(event *entities.CalendarEvent) ics.Event {
	payload := ics.Event{
		ID:          event.ID,
		Title:       event.Title,
		Description: event.Description,
		Location:    event.Location,
		StartsAt:    event.StartTime,
		EndsAt:      event.EndTime,
		CreatedAt:   event.CreatedAt,
		Cancelled:   !event.IsConfirmed(),
	}
	if event.Organizer != nil {
		payload.Organizer = event.Organizer.Email
		payload.OrganizerCN = event.Organizer.Name
	}
	return payload
}

// statusError maps a poll's current status to the transition error the
// caller should see.
func (s *service) statusError(poll *entities.MeetingPoll) error {
	switch poll.Status {
	case entities.PollStatusOpen:
		return usecaseErrors.ErrPollNotClosed
	case entities.PollStatusCancelled:
		return usecaseErrors.ErrPollCancelled
	case entities.PollStatusFinalized:
		return usecaseErrors.ErrAlreadyFinalized
	default:
		return usecaseErrors.ErrInvalidInput
	}
}
