package entities

import (
	"time"

	"github.com/google/uuid"
)

// AttendeeStatus tracks invite delivery and the attendee's RSVP.
// pending/sent/failed are written only by the dispatcher; accepted/declined
// only by the attendee's own RSVP.
type AttendeeStatus string

const (
	AttendeeStatusPending  AttendeeStatus = "pending"
	AttendeeStatusSent     AttendeeStatus = "sent"
	AttendeeStatusFailed   AttendeeStatus = "failed"
	AttendeeStatusAccepted AttendeeStatus = "accepted"
	AttendeeStatusDeclined AttendeeStatus = "declined"
)

// EventAttendee is one invitee row per (event, attendee). Each dispatch
// worker owns exactly one row keyed by user id.
type EventAttendee struct {
	ID        uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	EventID   uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_event_attendee" json:"event_id"`
	UserID    uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_event_attendee" json:"user_id"`
	User      *User          `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Status    AttendeeStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	SentAt    *time.Time     `json:"sent_at,omitempty"`
	LastError *string        `gorm:"type:text" json:"last_error,omitempty"`
	CreatedAt time.Time      `gorm:"default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for EventAttendee
func (EventAttendee) TableName() string {
	return "event_attendees"
}

// IsPending checks if the invite has not been attempted yet
func (a *EventAttendee) IsPending() bool {
	return a.Status == AttendeeStatusPending
}

// IsSent checks if the invite was already delivered
func (a *EventAttendee) IsSent() bool {
	return a.Status == AttendeeStatusSent
}

// MarkSent records a successful delivery
func (a *EventAttendee) MarkSent() {
	now := time.Now()
	a.Status = AttendeeStatusSent
	a.SentAt = &now
	a.LastError = nil
}

// MarkFailed records a terminal delivery failure
func (a *EventAttendee) MarkFailed(reason string) {
	a.Status = AttendeeStatusFailed
	a.LastError = &reason
}
