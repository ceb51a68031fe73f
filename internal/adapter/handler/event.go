package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/meetpoll-team/meetpoll/internal/adapter/dto/poll"
	"github.com/meetpoll-team/meetpoll/internal/adapter/presenter"
	pollUsecase "github.com/meetpoll-team/meetpoll/internal/usecase/poll"
)

// Event handles calendar-event HTTP requests
type Event struct {
	pollService pollUsecase.Service
}

// NewEventHandler creates a new event handler
func NewEventHandler(pollService pollUsecase.Service) *Event {
	return &Event{
		pollService: pollService,
	}
}

// GetEvent handles GET /events/:id
// @Summary      Get event details
// @Description  Gets a finalized event with its delivery ledger
// @Tags         Events
// @Produce      json
// @Param        id   path      string  true  "Event ID (UUID)"
// @Success      200  {object}  poll.EventResponse  "Event details"
// @Failure      400  {object}  map[string]interface{}  "Invalid event ID"
// @Failure      404  {object}  map[string]interface{}  "Event not found"
// @Router       /events/{id} [get]
func (h *Event) GetEvent(c echo.Context) error {
	eventID, err := pathUUID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":   "invalid_event_id",
			"message": "event ID must be a valid UUID",
		})
	}

	event, err := h.pollService.GetEvent(c.Request().Context(), eventID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, presenter.ToEventResponse(event))
}

// ResendFailed handles POST /events/:id/resend
// @Summary      Resend failed invites
// @Description  Re-dispatches invites for attendees whose delivery failed or never ran
// @Tags         Events
// @Produce      json
// @Param        id   path      string  true  "Event ID (UUID)"
// @Success      200  {object}  map[string]interface{}  "Delivery ledger for this resend"
// @Failure      403  {object}  map[string]interface{}  "Caller is not the organizer"
// @Failure      404  {object}  map[string]interface{}  "Event not found"
// @Router       /events/{id}/resend [post]
func (h *Event) ResendFailed(c echo.Context) error {
	eventID, err := pathUUID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":   "invalid_event_id",
			"message": "event ID must be a valid UUID",
		})
	}

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]interface{}{
			"error":   "unauthorized",
			"message": "user not authenticated",
		})
	}

	ledger, err := h.pollService.ResendFailed(c.Request().Context(), eventID, userID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"ledger": presenter.ToLedgerResponse(ledger),
	})
}

// RSVP handles POST /events/:id/rsvp
// @Summary      Answer an invitation
// @Description  Records the caller's accept or decline on a finalized event
// @Tags         Events
// @Accept       json
// @Produce      json
// @Param        id       path      string            true  "Event ID (UUID)"
// @Param        request  body      poll.RSVPRequest  true  "RSVP answer"
// @Success      204      "Answer recorded"
// @Failure      404      {object}  map[string]interface{}  "Event or attendee not found"
// @Router       /events/{id}/rsvp [post]
func (h *Event) RSVP(c echo.Context) error {
	eventID, err := pathUUID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":   "invalid_event_id",
			"message": "event ID must be a valid UUID",
		})
	}

	var req poll.RSVPRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":   "invalid_request",
			"message": err.Error(),
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":   "validation_failed",
			"message": err.Error(),
		})
	}

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]interface{}{
			"error":   "unauthorized",
			"message": "user not authenticated",
		})
	}

	accept := req.Response == "accept"
	if err := h.pollService.RSVP(c.Request().Context(), eventID, userID, accept); err != nil {
		return respondError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}
