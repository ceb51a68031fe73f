package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/meetpoll-team/meetpoll/internal/domain/entities"
	"github.com/meetpoll-team/meetpoll/internal/domain/repositories"
)

// pollRepository implements the PollRepository interface
type pollRepository struct {
	db *gorm.DB
}

// NewPollRepository creates a new poll repository
func NewPollRepository(db *gorm.DB) repositories.PollRepository {
	return &pollRepository{db: db}
}

// CreateWithChildren creates the poll, its options and its attendees in a
// single transaction
func (r *pollRepository) CreateWithChildren(ctx context.Context, poll *entities.MeetingPoll) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(poll).Error
	})
}

// FindByID retrieves a poll with options and attendees preloaded
func (r *pollRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.MeetingPoll, error) {
	var poll entities.MeetingPoll
	err := r.db.WithContext(ctx).
		Preload("Organizer").
		Preload("Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Attendees.User").
		Where("id = ?", id).
		First(&poll).Error

	if err != nil {
		return nil, err
	}
	return &poll, nil
}

// FindByOrganizer retrieves polls created by a user
func (r *pollRepository) FindByOrganizer(ctx context.Context, organizerID uuid.UUID, limit, offset int) ([]*entities.MeetingPoll, error) {
	var polls []*entities.MeetingPoll
	query := r.db.WithContext(ctx).
		Where("organizer_id = ?", organizerID).
		Order("created_at DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Find(&polls).Error
	return polls, err
}

// UpdateStatusIf atomically moves a poll between statuses. The WHERE on
// the current status makes the transition a compare-and-swap: the caller
// learns from the row count whether it won the race.
func (r *pollRepository) UpdateStatusIf(ctx context.Context, pollID uuid.UUID, from, to entities.PollStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&entities.MeetingPoll{}).
		Where("id = ? AND status = ?", pollID, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": gorm.Expr("NOW()"),
		})

	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ReopenWithOptions flips a closed poll back to open and appends the given
// options in the same transaction
func (r *pollRepository) ReopenWithOptions(ctx context.Context, pollID uuid.UUID, options []entities.PollOption) (bool, error) {
	reopened := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&entities.MeetingPoll{}).
			Where("id = ? AND status = ?", pollID, entities.PollStatusClosed).
			Updates(map[string]interface{}{
				"status":     entities.PollStatusOpen,
				"updated_at": gorm.Expr("NOW()"),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		reopened = true

		if len(options) == 0 {
			return nil
		}
		for i := range options {
			options[i].PollID = pollID
		}
		return tx.Create(&options).Error
	})
	return reopened, err
}

// FindOpenPastDeadline lists open polls whose voting deadline elapsed
func (r *pollRepository) FindOpenPastDeadline(ctx context.Context, now time.Time) ([]*entities.MeetingPoll, error) {
	var polls []*entities.MeetingPoll
	err := r.db.WithContext(ctx).
		Where("status = ? AND voting_deadline IS NOT NULL AND voting_deadline < ?", entities.PollStatusOpen, now).
		Find(&polls).Error
	return polls, err
}
