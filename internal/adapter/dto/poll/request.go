package poll

import (
	"time"
)

// OptionRequest is one candidate time slot
type OptionRequest struct {
	StartTime time.Time `json:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" validate:"required"`
}

// AttendeeRequest is one invitee
type AttendeeRequest struct {
	UserID     string `json:"user_id" validate:"required,uuid"`
	IsRequired bool   `json:"is_required"`
}

// CreatePollRequest represents the request to create a poll
type CreatePollRequest struct {
	Title          string            `json:"title" validate:"required,min=1,max=255"`
	Description    *string           `json:"description,omitempty"`
	Location       string            `json:"location,omitempty" validate:"omitempty,max=255"`
	Category       string            `json:"category,omitempty" validate:"omitempty,max=100"`
	VotingDeadline *time.Time        `json:"voting_deadline,omitempty"`
	Options        []OptionRequest   `json:"options" validate:"required,min=1,dive"`
	Attendees      []AttendeeRequest `json:"attendees" validate:"required,min=1,dive"`
}

// SubmitResponseRequest represents one vote on one option
type SubmitResponseRequest struct {
	OptionID string `json:"option_id" validate:"required,uuid"`
	Value    string `json:"value" validate:"required,oneof=yes no maybe"`
}

// ReopenPollRequest represents the request to reopen a closed poll
type ReopenPollRequest struct {
	Options []OptionRequest `json:"options,omitempty" validate:"omitempty,dive"`
}

// RSVPRequest represents an attendee's answer on a finalized event
type RSVPRequest struct {
	Response string `json:"response" validate:"required,oneof=accept decline"`
}

// ListPollsRequest represents query parameters for listing polls
type ListPollsRequest struct {
	Limit  int `query:"limit" validate:"omitempty,min=1,max=100"`
	Offset int `query:"offset" validate:"omitempty,min=0"`
}
