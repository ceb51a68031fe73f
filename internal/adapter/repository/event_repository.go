package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/meetpoll-team/meetpoll/internal/domain/entities"
	"github.com/meetpoll-team/meetpoll/internal/domain/repositories"
)

// errFinalizeLost aborts the finalize transaction when the poll was not in
// the closed state; translated to (false, nil) for the caller.
var errFinalizeLost = errors.New("finalize transition lost")

// eventRepository implements the EventRepository interface
type eventRepository struct {
	db *gorm.DB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *gorm.DB) repositories.EventRepository {
	return &eventRepository{db: db}
}

// CreateFinalized commits the finalize write-set as one unit: the poll's
// closed → finalized flip, the calendar event, and one pending attendee
// row per poll attendee. If any write fails, everything rolls back and the
// poll stays closed.
func (r *eventRepository) CreateFinalized(ctx context.Context, event *entities.CalendarEvent, attendees []entities.EventAttendee) (bool, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&entities.MeetingPoll{}).
			Where("id = ? AND status = ?", event.PollID, entities.PollStatusClosed).
			Updates(map[string]interface{}{
				"status":     entities.PollStatusFinalized,
				"updated_at": gorm.Expr("NOW()"),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errFinalizeLost
		}

		if err := tx.Omit("Organizer", "Attendees").Create(event).Error; err != nil {
			return err
		}

		for i := range attendees {
			attendees[i].EventID = event.ID
		}
		return tx.Omit("User").Create(&attendees).Error
	})

	if errors.Is(err, errFinalizeLost) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// FindByID retrieves an event with organizer and attendees preloaded
func (r *eventRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.CalendarEvent, error) {
	var event entities.CalendarEvent
	err := r.db.WithContext(ctx).
		Preload("Organizer").
		Preload("Attendees.User").
		Where("id = ?", id).
		First(&event).Error

	if err != nil {
		return nil, err
	}
	return &event, nil
}

// FindByPollID retrieves the event created from a poll
func (r *eventRepository) FindByPollID(ctx context.Context, pollID uuid.UUID) (*entities.CalendarEvent, error) {
	var event entities.CalendarEvent
	err := r.db.WithContext(ctx).
		Preload("Organizer").
		Preload("Attendees.User").
		Where("poll_id = ?", pollID).
		First(&event).Error

	if err != nil {
		return nil, err
	}
	return &event, nil
}
