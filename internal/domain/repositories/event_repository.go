package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/meetpoll-team/meetpoll/internal/domain/entities"
)

// EventRepository defines the interface for calendar event data access.
// Finalize is the only multi-row write: the event, its attendee rows and
// the poll status flip commit as one transaction or not at all.
type EventRepository interface {
	// CreateFinalized writes the event, its attendee rows (pending) and
	// moves the originating poll from closed to finalized, atomically.
	// Returns false without side effects when the poll was not closed.
	CreateFinalized(ctx context.Context, event *entities.CalendarEvent, attendees []entities.EventAttendee) (bool, error)

	// FindByID retrieves an event with organizer and attendees preloaded
	FindByID(ctx context.Context, id uuid.UUID) (*entities.CalendarEvent, error)

	// FindByPollID retrieves the event created from a poll
	FindByPollID(ctx context.Context, pollID uuid.UUID) (*entities.CalendarEvent, error)
}

// EventAttendeeRepository owns the per-attendee delivery ledger rows.
// Each dispatch worker updates only its own (event_id, user_id) row.
type EventAttendeeRepository interface {
	// FindByEvent lists attendee rows for an event, users preloaded
	FindByEvent(ctx context.Context, eventID uuid.UUID) ([]entities.EventAttendee, error)

	// FindByEventAndStatus lists attendee rows in a given delivery state
	FindByEventAndStatus(ctx context.Context, eventID uuid.UUID, status entities.AttendeeStatus) ([]entities.EventAttendee, error)

	// MarkSent records a successful delivery for one attendee row
	MarkSent(ctx context.Context, eventID, userID uuid.UUID) error

	// MarkFailed records a terminal delivery failure for one attendee row
	MarkFailed(ctx context.Context, eventID, userID uuid.UUID, reason string) error

	// UpdateRSVP records the attendee's own accept/decline answer
	UpdateRSVP(ctx context.Context, eventID, userID uuid.UUID, status entities.AttendeeStatus) error
}
