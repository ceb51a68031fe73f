package entities

import (
	"time"

	"github.com/google/uuid"
)

// PollStatus represents the lifecycle state of a meeting poll
type PollStatus string

const (
	PollStatusOpen      PollStatus = "open"
	PollStatusClosed    PollStatus = "closed"
	PollStatusFinalized PollStatus = "finalized"
	PollStatusCancelled PollStatus = "cancelled"
)

// MeetingPoll is a proposal for a meeting with multiple candidate time
// slots. Only the engine mutates its status; options and attendees are
// fixed for the duration of an open phase.
type MeetingPoll struct {
	ID             uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Title          string         `gorm:"type:varchar(255);not null" json:"title"`
	Description    *string        `gorm:"type:text" json:"description,omitempty"`
	Location       string         `gorm:"type:varchar(255)" json:"location"`
	Category       string         `gorm:"type:varchar(100);default:'meeting'" json:"category"`
	OrganizerID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"organizer_id"`
	Organizer      *User          `gorm:"foreignKey:OrganizerID" json:"organizer,omitempty"`
	Status         PollStatus     `gorm:"type:varchar(20);not null;default:'open';index" json:"status"`
	VotingDeadline *time.Time     `gorm:"index" json:"voting_deadline,omitempty"`
	Options        []PollOption   `gorm:"foreignKey:PollID" json:"options,omitempty"`
	Attendees      []PollAttendee `gorm:"foreignKey:PollID" json:"attendees,omitempty"`
	CreatedAt      time.Time      `gorm:"default:now()" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for MeetingPoll
func (MeetingPoll) TableName() string {
	return "meeting_polls"
}

// IsOpen checks if the poll still accepts responses
func (p *MeetingPoll) IsOpen() bool {
	return p.Status == PollStatusOpen
}

// IsClosed checks if the poll is closed but not yet finalized
func (p *MeetingPoll) IsClosed() bool {
	return p.Status == PollStatusClosed
}

// IsFinalized checks if the poll has produced a calendar event
func (p *MeetingPoll) IsFinalized() bool {
	return p.Status == PollStatusFinalized
}

// IsCancelled checks if the poll was cancelled
func (p *MeetingPoll) IsCancelled() bool {
	return p.Status == PollStatusCancelled
}

// CanCancel reports whether the poll may still be cancelled.
// Finalized polls are immutable.
func (p *MeetingPoll) CanCancel() bool {
	return p.Status == PollStatusOpen || p.Status == PollStatusClosed
}

// DeadlineElapsed reports whether the voting deadline has passed at the
// given instant. Polls without a deadline never expire on their own.
func (p *MeetingPoll) DeadlineElapsed(now time.Time) bool {
	return p.VotingDeadline != nil && now.After(*p.VotingDeadline)
}

// RequiredAttendees returns the attendees whose votes carry veto power
func (p *MeetingPoll) RequiredAttendees() []PollAttendee {
	required := make([]PollAttendee, 0, len(p.Attendees))
	for _, a := range p.Attendees {
		if a.IsRequired {
			required = append(required, a)
		}
	}
	return required
}
