package entities

import (
	"time"

	"github.com/google/uuid"
)

// PollOption is one candidate time slot within a poll. Immutable once
// created; Position records creation order for deterministic tie-breaking.
type PollOption struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	PollID    uuid.UUID `gorm:"type:uuid;not null;index" json:"poll_id"`
	StartTime time.Time `gorm:"not null" json:"start_time"`
	EndTime   time.Time `gorm:"not null" json:"end_time"`
	Position  int       `gorm:"not null;default:0" json:"position"`
	CreatedAt time.Time `gorm:"default:now()" json:"created_at"`
}

// TableName specifies the table name for PollOption
func (PollOption) TableName() string {
	return "poll_options"
}

// HasValidRange checks that the slot ends strictly after it starts
func (o *PollOption) HasValidRange() bool {
	return o.EndTime.After(o.StartTime)
}

// Duration returns the length of the proposed slot
func (o *PollOption) Duration() time.Duration {
	return o.EndTime.Sub(o.StartTime)
}
