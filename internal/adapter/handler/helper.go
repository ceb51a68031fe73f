package handler

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	usecaseErrors "github.com/meetpoll-team/meetpoll/internal/usecase/errors"
)

// errorCode pairs an HTTP status with a stable machine-readable code
type errorCode struct {
	status int
	code   string
}

var errorCodes = map[error]errorCode{
	usecaseErrors.ErrInvalidInput:        {http.StatusBadRequest, "invalid_request"},
	usecaseErrors.ErrInvalidTimeRange:    {http.StatusBadRequest, "invalid_time_range"},
	usecaseErrors.ErrNoOptions:           {http.StatusBadRequest, "no_options"},
	usecaseErrors.ErrNoRequiredAttendees: {http.StatusBadRequest, "no_required_attendees"},
	usecaseErrors.ErrDuplicateAttendee:   {http.StatusBadRequest, "duplicate_attendee"},
	usecaseErrors.ErrOptionNotInPoll:     {http.StatusBadRequest, "option_not_in_poll"},

	usecaseErrors.ErrNotAttendee:  {http.StatusForbidden, "not_an_attendee"},
	usecaseErrors.ErrNotOrganizer: {http.StatusForbidden, "not_the_organizer"},

	usecaseErrors.ErrPollNotFound:     {http.StatusNotFound, "poll_not_found"},
	usecaseErrors.ErrEventNotFound:    {http.StatusNotFound, "event_not_found"},
	usecaseErrors.ErrAttendeeNotFound: {http.StatusNotFound, "attendee_not_found"},
	usecaseErrors.ErrUserNotFound:     {http.StatusNotFound, "user_not_found"},

	usecaseErrors.ErrPollClosed:         {http.StatusConflict, "poll_closed"},
	usecaseErrors.ErrPollNotClosed:      {http.StatusConflict, "poll_not_closed"},
	usecaseErrors.ErrPollCancelled:      {http.StatusConflict, "poll_cancelled"},
	usecaseErrors.ErrAlreadyFinalized:   {http.StatusConflict, "already_finalized"},
	usecaseErrors.ErrFinalizeInProgress: {http.StatusConflict, "finalize_in_progress"},

	usecaseErrors.ErrNoConsensus: {http.StatusUnprocessableEntity, "no_consensus"},
}

// respondError maps a usecase error onto its HTTP shape. Unknown errors
// become an opaque 500.
func respondError(c echo.Context, err error) error {
	for sentinel, ec := range errorCodes {
		if errors.Is(err, sentinel) {
			return c.JSON(ec.status, map[string]interface{}{
				"error":   ec.code,
				"message": sentinel.Error(),
			})
		}
	}
	return c.JSON(http.StatusInternalServerError, map[string]interface{}{
		"error":   "internal_error",
		"message": "something went wrong",
	})
}

// currentUserID reads the caller's identity set by the identity middleware
func currentUserID(c echo.Context) (uuid.UUID, bool) {
	userID, ok := c.Get("user_id").(uuid.UUID)
	return userID, ok
}

// pathUUID parses a UUID path parameter
func pathUUID(c echo.Context, name string) (uuid.UUID, error) {
	return uuid.Parse(c.Param(name))
}
