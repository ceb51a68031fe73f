package errors

import "errors"

// Validation errors: rejected synchronously, never partially applied
var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrInvalidTimeRange     = errors.New("option end time must be after start time")
	ErrNoOptions            = errors.New("poll needs at least one option")
	ErrNoRequiredAttendees  = errors.New("poll needs at least one required attendee")
	ErrOptionNotInPoll      = errors.New("option does not belong to this poll")
	ErrNotAttendee          = errors.New("user is not an attendee of this poll")
	ErrDuplicateAttendee    = errors.New("attendee listed more than once")
)

// State errors. ErrNoConsensus is the one retryable condition: the
// organizer may add options and try again. The rest are terminal for the
// attempted transition.
var (
	ErrPollNotFound       = errors.New("poll not found")
	ErrPollClosed         = errors.New("poll is closed to responses")
	ErrPollNotClosed      = errors.New("poll must be closed before finalizing")
	ErrPollCancelled      = errors.New("poll has been cancelled")
	ErrAlreadyFinalized   = errors.New("poll already finalized")
	ErrNoConsensus        = errors.New("no consensus: every option was vetoed or received no responses")
	ErrNotOrganizer       = errors.New("user is not the poll organizer")
	ErrFinalizeInProgress = errors.New("finalization already in progress")
)

// Event errors
var (
	ErrEventNotFound    = errors.New("event not found")
	ErrAttendeeNotFound = errors.New("event attendee not found")
)

// User errors
var (
	ErrUserNotFound = errors.New("user not found")
)
