package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/meetpoll-team/meetpoll/internal/domain/entities"
	"github.com/meetpoll-team/meetpoll/internal/domain/repositories"
	usecaseErrors "github.com/meetpoll-team/meetpoll/internal/usecase/errors"
)

// eventAttendeeRepository implements the EventAttendeeRepository interface
type eventAttendeeRepository struct {
	db *gorm.DB
}

// NewEventAttendeeRepository creates a new event attendee repository
func NewEventAttendeeRepository(db *gorm.DB) repositories.EventAttendeeRepository {
	return &eventAttendeeRepository{db: db}
}

// FindByEvent lists attendee rows for an event
func (r *eventAttendeeRepository) FindByEvent(ctx context.Context, eventID uuid.UUID) ([]entities.EventAttendee, error) {
	var attendees []entities.EventAttendee
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("event_id = ?", eventID).
		Order("created_at ASC").
		Find(&attendees).Error
	return attendees, err
}

// FindByEventAndStatus lists attendee rows in a given delivery state
func (r *eventAttendeeRepository) FindByEventAndStatus(ctx context.Context, eventID uuid.UUID, status entities.AttendeeStatus) ([]entities.EventAttendee, error) {
	var attendees []entities.EventAttendee
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("event_id = ? AND status = ?", eventID, status).
		Order("created_at ASC").
		Find(&attendees).Error
	return attendees, err
}

// MarkSent records a successful delivery for one attendee row
func (r *eventAttendeeRepository) MarkSent(ctx context.Context, eventID, userID uuid.UUID) error {
	return r.update(ctx, eventID, userID, map[string]interface{}{
		"status":     entities.AttendeeStatusSent,
		"sent_at":    gorm.Expr("NOW()"),
		"last_error": nil,
		"updated_at": gorm.Expr("NOW()"),
	})
}

// MarkFailed records a terminal delivery failure for one attendee row
func (r *eventAttendeeRepository) MarkFailed(ctx context.Context, eventID, userID uuid.UUID, reason string) error {
	return r.update(ctx, eventID, userID, map[string]interface{}{
		"status":     entities.AttendeeStatusFailed,
		"last_error": reason,
		"updated_at": gorm.Expr("NOW()"),
	})
}

// UpdateRSVP records the attendee's own accept/decline answer
func (r *eventAttendeeRepository) UpdateRSVP(ctx context.Context, eventID, userID uuid.UUID, status entities.AttendeeStatus) error {
	return r.update(ctx, eventID, userID, map[string]interface{}{
		"status":     status,
		"updated_at": gorm.Expr("NOW()"),
	})
}

func (r *eventAttendeeRepository) update(ctx context.Context, eventID, userID uuid.UUID, values map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&entities.EventAttendee{}).
		Where("event_id = ? AND user_id = ?", eventID, userID).
		Updates(values)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return usecaseErrors.ErrAttendeeNotFound
	}
	return nil
}
