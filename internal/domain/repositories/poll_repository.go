package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/meetpoll-team/meetpoll/internal/domain/entities"
)

// PollRepository defines the interface for poll data access
type PollRepository interface {
	// CreateWithChildren persists a poll together with its options and
	// attendees as a single unit
	CreateWithChildren(ctx context.Context, poll *entities.MeetingPoll) error

	// FindByID retrieves a poll with its options and attendees preloaded
	FindByID(ctx context.Context, id uuid.UUID) (*entities.MeetingPoll, error)

	// FindByOrganizer retrieves polls created by a user
	FindByOrganizer(ctx context.Context, organizerID uuid.UUID, limit, offset int) ([]*entities.MeetingPoll, error)

	// UpdateStatusIf atomically moves a poll from one status to another.
	// Returns false when the poll was not in the expected status, so the
	// caller can distinguish a lost race from success.
	UpdateStatusIf(ctx context.Context, pollID uuid.UUID, from, to entities.PollStatus) (bool, error)

	// ReopenWithOptions moves a closed poll back to open and appends the
	// given options in one transaction. Used for organizer re-opening
	// after a no-consensus finalize attempt. Returns false when the poll
	// was not closed.
	ReopenWithOptions(ctx context.Context, pollID uuid.UUID, options []entities.PollOption) (bool, error)

	// FindOpenPastDeadline lists open polls whose voting deadline elapsed
	FindOpenPastDeadline(ctx context.Context, now time.Time) ([]*entities.MeetingPoll, error)
}

// ResponseRepository owns the live vote rows. The upsert is keyed by
// (poll_id, option_id, user_id) with last-write-wins by RespondedAt, and is
// rejected once the poll has left the open state — the close boundary is
// enforced inside the same transaction, not by caller discipline.
type ResponseRepository interface {
	// Upsert records or replaces a response. Returns the poll-closed
	// condition when the poll is no longer open.
	Upsert(ctx context.Context, response *entities.PollResponse) error

	// FindByPoll lists all live responses for a poll
	FindByPoll(ctx context.Context, pollID uuid.UUID) ([]entities.PollResponse, error)
}
