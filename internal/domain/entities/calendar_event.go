package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// EventStatus represents the state of a finalized calendar event
type EventStatus string

const (
	EventStatusConfirmed EventStatus = "confirmed"
	EventStatusCancelled EventStatus = "cancelled"
)

// CalendarEvent is the real meeting produced by finalizing a poll. It is
// created exactly once, from the winning option, and exists if and only if
// its originating poll is finalized. TallyBreakdown keeps a snapshot of the
// per-option scores for the organizer's records.
type CalendarEvent struct {
	ID             uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	PollID         uuid.UUID      `gorm:"type:uuid;unique;not null" json:"poll_id"`
	Title          string         `gorm:"type:varchar(255);not null" json:"title"`
	Description    string         `gorm:"type:text" json:"description"`
	Location       string         `gorm:"type:varchar(255)" json:"location"`
	Category       string         `gorm:"type:varchar(100);default:'meeting'" json:"category"`
	StartTime      time.Time      `gorm:"not null" json:"start_time"`
	EndTime        time.Time      `gorm:"not null" json:"end_time"`
	OrganizerID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"organizer_id"`
	Organizer      *User          `gorm:"foreignKey:OrganizerID" json:"organizer,omitempty"`
	Status         EventStatus    `gorm:"type:varchar(20);not null;default:'confirmed'" json:"status"`
	TallyBreakdown datatypes.JSON `gorm:"type:jsonb;default:'[]'" json:"tally_breakdown,omitempty"`
	Attendees      []EventAttendee `gorm:"foreignKey:EventID" json:"attendees,omitempty"`
	CreatedAt      time.Time      `gorm:"default:now()" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for CalendarEvent
func (CalendarEvent) TableName() string {
	return "calendar_events"
}

// IsConfirmed checks if the event still stands
func (e *CalendarEvent) IsConfirmed() bool {
	return e.Status == EventStatusConfirmed
}

// Cancel marks the event as cancelled
func (e *CalendarEvent) Cancel() {
	e.Status = EventStatusCancelled
}
