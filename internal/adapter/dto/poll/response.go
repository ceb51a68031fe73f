package poll

import (
	"time"
)

// UserResponse is the public shape of a user
type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// OptionResponse is the public shape of a poll option
type OptionResponse struct {
	ID        string    `json:"id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Position  int       `json:"position"`
}

// AttendeeResponse is the public shape of a poll attendee
type AttendeeResponse struct {
	UserID     string        `json:"user_id"`
	IsRequired bool          `json:"is_required"`
	User       *UserResponse `json:"user,omitempty"`
}

// PollResponse is the public shape of a poll
type PollResponse struct {
	ID             string             `json:"id"`
	Title          string             `json:"title"`
	Description    *string            `json:"description,omitempty"`
	Location       string             `json:"location,omitempty"`
	Category       string             `json:"category"`
	OrganizerID    string             `json:"organizer_id"`
	Organizer      *UserResponse      `json:"organizer,omitempty"`
	Status         string             `json:"status"`
	VotingDeadline *time.Time         `json:"voting_deadline,omitempty"`
	Options        []OptionResponse   `json:"options"`
	Attendees      []AttendeeResponse `json:"attendees"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// PollListResponse is a page of polls
type PollListResponse struct {
	Polls  []*PollResponse `json:"polls"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// OptionScoreResponse is the tally breakdown for one option
type OptionScoreResponse struct {
	OptionID   string `json:"option_id"`
	Score      int    `json:"score"`
	MaybeVotes int    `json:"maybe_votes"`
	Vetoed     bool   `json:"vetoed"`
	Responses  int    `json:"responses"`
}

// ResultsResponse is the organizer's live tally view
type ResultsResponse struct {
	HasConsensus    bool                  `json:"has_consensus"`
	WinningOptionID *string               `json:"winning_option_id,omitempty"`
	Scores          []OptionScoreResponse `json:"scores"`
}

// EventAttendeeResponse is one invitee row on a finalized event
type EventAttendeeResponse struct {
	UserID    string        `json:"user_id"`
	Status    string        `json:"status"`
	SentAt    *time.Time    `json:"sent_at,omitempty"`
	LastError *string       `json:"last_error,omitempty"`
	User      *UserResponse `json:"user,omitempty"`
}

// EventResponse is the public shape of a calendar event
type EventResponse struct {
	ID          string                  `json:"id"`
	PollID      string                  `json:"poll_id"`
	Title       string                  `json:"title"`
	Description string                  `json:"description,omitempty"`
	Location    string                  `json:"location,omitempty"`
	Category    string                  `json:"category"`
	StartTime   time.Time               `json:"start_time"`
	EndTime     time.Time               `json:"end_time"`
	OrganizerID string                  `json:"organizer_id"`
	Organizer   *UserResponse           `json:"organizer,omitempty"`
	Status      string                  `json:"status"`
	Attendees   []EventAttendeeResponse `json:"attendees"`
	CreatedAt   time.Time               `json:"created_at"`
}

// DeliveryResponse is one attendee's entry in a dispatch ledger
type DeliveryResponse struct {
	UserID   string `json:"user_id"`
	Outcome  string `json:"outcome"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error,omitempty"`
}

// FinalizeResponse is the result of finalizing a poll
type FinalizeResponse struct {
	Event  *EventResponse     `json:"event"`
	Ledger []DeliveryResponse `json:"ledger"`
}
