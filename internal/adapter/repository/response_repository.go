package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/meetpoll-team/meetpoll/internal/domain/entities"
	"github.com/meetpoll-team/meetpoll/internal/domain/repositories"
	usecaseErrors "github.com/meetpoll-team/meetpoll/internal/usecase/errors"
)

// responseRepository implements the ResponseRepository interface
type responseRepository struct {
	db *gorm.DB
}

// NewResponseRepository creates a new response repository
func NewResponseRepository(db *gorm.DB) repositories.ResponseRepository {
	return &responseRepository{db: db}
}

// Upsert records or replaces a vote keyed by (poll_id, option_id, user_id).
// The poll row is locked FOR SHARE while the write commits, so a concurrent
// close either happens before us (we see closed and reject) or waits for
// us; no response can slip in after the close boundary is observed.
// Conflicting submissions resolve last-write-wins by responded_at, not by
// arrival order.
func (r *responseRepository) Upsert(ctx context.Context, response *entities.PollResponse) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var poll entities.MeetingPoll
		err := tx.Clauses(clause.Locking{Strength: "SHARE"}).
			Select("id", "status").
			Where("id = ?", response.PollID).
			First(&poll).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return usecaseErrors.ErrPollNotFound
			}
			return err
		}
		if !poll.IsOpen() {
			return usecaseErrors.ErrPollClosed
		}

		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "poll_id"},
				{Name: "option_id"},
				{Name: "user_id"},
			},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"value":        response.Value,
				"responded_at": response.RespondedAt,
			}),
			Where: clause.Where{
				Exprs: []clause.Expression{
					gorm.Expr("poll_responses.responded_at <= excluded.responded_at"),
				},
			},
		}).Create(response).Error
	})
}

// FindByPoll lists all live responses for a poll
func (r *responseRepository) FindByPoll(ctx context.Context, pollID uuid.UUID) ([]entities.PollResponse, error) {
	var responses []entities.PollResponse
	err := r.db.WithContext(ctx).
		Where("poll_id = ?", pollID).
		Find(&responses).Error
	return responses, err
}
