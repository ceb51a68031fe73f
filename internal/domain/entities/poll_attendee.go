package entities

import (
	"time"

	"github.com/google/uuid"
)

// PollAttendee links a user to a poll. Required attendees' votes carry
// double weight and veto power in tallying; optional attendees' votes are
// advisory. Rows are created once at poll creation and never mutated.
type PollAttendee struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	PollID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_poll_attendee" json:"poll_id"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_poll_attendee" json:"user_id"`
	User       *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	IsRequired bool      `gorm:"not null;default:false" json:"is_required"`
	CreatedAt  time.Time `gorm:"default:now()" json:"created_at"`
}

// TableName specifies the table name for PollAttendee
func (PollAttendee) TableName() string {
	return "poll_attendees"
}
