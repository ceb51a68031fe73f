package entities

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// VoteValue represents a single vote on a poll option
type VoteValue string

const (
	VoteYes   VoteValue = "yes"
	VoteNo    VoteValue = "no"
	VoteMaybe VoteValue = "maybe"
)

// ParseVoteValue converts raw input into a VoteValue, rejecting anything
// outside the closed set.
func ParseVoteValue(s string) (VoteValue, error) {
	switch VoteValue(s) {
	case VoteYes, VoteNo, VoteMaybe:
		return VoteValue(s), nil
	default:
		return "", fmt.Errorf("invalid vote value %q", s)
	}
}

// PollResponse is one attendee's live vote on one option. The composite
// primary key (poll_id, option_id, user_id) makes the at-most-one-response
// invariant a property of the schema; a later response for the same key
// replaces the earlier one.
type PollResponse struct {
	PollID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"poll_id"`
	OptionID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"option_id"`
	UserID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	Value       VoteValue `gorm:"type:varchar(10);not null" json:"value"`
	RespondedAt time.Time `gorm:"not null" json:"responded_at"`
}

// TableName specifies the table name for PollResponse
func (PollResponse) TableName() string {
	return "poll_responses"
}
