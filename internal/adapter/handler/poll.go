package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/meetpoll-team/meetpoll/internal/adapter/dto/poll"
	"github.com/meetpoll-team/meetpoll/internal/adapter/presenter"
	"github.com/meetpoll-team/meetpoll/internal/domain/entities"
	pollUsecase "github.com/meetpoll-team/meetpoll/internal/usecase/poll"
)

// Poll handles poll-related HTTP requests
type Poll struct {
	pollService pollUsecase.Service
}

// NewPollHandler creates a new poll handler
func NewPollHandler(pollService pollUsecase.Service) *Poll {
	return &Poll{
		pollService: pollService,
	}
}

// CreatePoll handles POST /polls
// @Summary      Create a meeting poll
// @Description  Opens a new poll with candidate time slots and attendees
// @Tags         Polls
// @Accept       json
// @Produce      json
// @Param        X-User-ID  header    string                  true  "Acting user ID (UUID)"
// @Param        request    body      poll.CreatePollRequest  true  "Poll creation request"
// @Success      201        {object}  poll.PollResponse       "Poll created successfully"
// @Failure      400        {object}  map[string]interface{}  "Invalid request or validation failed"
// @Failure      401        {object}  map[string]interface{}  "User not authenticated"
// @Router       /polls [post]
func (h *Poll) CreatePoll(c echo.Context) error {
	var req poll.CreatePollRequest
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

	options := make([]pollUsecase.OptionInput, len(req.Options))
	for i, opt := range req.Options {
		options[i] = pollUsecase.OptionInput{
			StartTime: opt.StartTime,
			EndTime:   opt.EndTime,
		}
	}

	attendees := make([]pollUsecase.AttendeeInput, len(req.Attendees))
	for i, a := range req.Attendees {
		attendeeID, err := uuid.Parse(a.UserID)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]interface{}{
				"error":   "invalid_attendee_id",
				"message": "attendee user_id must be a valid UUID",
			})
		}
		attendees[i] = pollUsecase.AttendeeInput{
			UserID:     attendeeID,
			IsRequired: a.IsRequired,
		}
	}

	input := pollUsecase.CreatePollInput{
		Title:          req.Title,
		Description:    req.Description,
		Location:       req.Location,
		Category:       req.Category,
		OrganizerID:    userID,
		VotingDeadline: req.VotingDeadline,
		Options:        options,
		Attendees:      attendees,
	}

	created, err := h.pollService.CreatePoll(c.Request().Context(), input)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusCreated, presenter.ToPollResponse(created))
}

// GetPoll handles GET /polls/:id
// @Summary      Get poll details
// @Description  Gets a poll with its options and attendees
// @Tags         Polls
// @Produce      json
// @Param        id   path      string  true  "Poll ID (UUID)"
// @Success      200  {object}  poll.PollResponse  "Poll details"
// @Failure      400  {object}  map[string]interface{}  "Invalid poll ID"
// @Failure      404  {object}  map[string]interface{}  "Poll not found"
// @Router       /polls/{id} [get]
func (h *Poll) GetPoll(c echo.Context) error {
	pollID, err := pathUUID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":   "invalid_poll_id",
			"message": "poll ID must be a valid UUID",
		})
	}

	p, err := h.pollService.GetPoll(c.Request().Context(), pollID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, presenter.ToPollResponse(p))
}

// ListPolls handles GET /polls
// @Summary      List polls
// @Description  Lists polls organized by the acting user
// @Tags         Polls
// @Produce      json
// @Param        limit   query     int  false  "Page size (default: 20)"
// @Param        offset  query     int  false  "Page offset (default: 0)"
// @Success      200     {object}  poll.PollListResponse  "Page of polls"
// @Router       /polls [get]
func (h *Poll) ListPolls(c echo.Context) error {
	var req poll.ListPollsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":   "invalid_request",
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

	if req.Limit <= 0 {
		req.Limit = 20
	}

	polls, err := h.pollService.ListPolls(c.Request().Context(), userID, req.Limit, req.Offset)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, presenter.ToPollListResponse(polls, req.Limit, req.Offset))
}

// SubmitResponse handles POST /polls/:id/responses
// @Summary      Vote on a poll option
// @Description  Records or replaces the caller's vote on one option
// @Tags         Polls
// @Accept       json
// @Produce      json
// @Param        id       path      string                       true  "Poll ID (UUID)"
// @Param        request  body      poll.SubmitResponseRequest   true  "Vote"
// @Success      204      "Vote recorded"
// @Failure      400      {object}  map[string]interface{}  "Invalid request"
// @Failure      403      {object}  map[string]interface{}  "Caller is not an attendee"
// @Failure      409      {object}  map[string]interface{}  "Poll no longer accepts responses"
// @Router       /polls/{id}/responses [post]
func (h *Poll) SubmitResponse(c echo.Context) error {
	pollID, err := pathUUID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":   "invalid_poll_id",
			"message": "poll ID must be a valid UUID",
		})
	}

	var req poll.SubmitResponseRequest
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

	optionID, err := uuid.Parse(req.OptionID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":   "invalid_option_id",
			"message": "option_id must be a valid UUID",
		})
	}

	value, err := entities.ParseVoteValue(req.Value)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":   "invalid_vote_value",
			"message": err.Error(),
		})
	}

	input := pollUsecase.SubmitResponseInput{
		PollID:   pollID,
		OptionID: optionID,
		UserID:   userID,
		Value:    value,
	}
	if err := h.pollService.SubmitResponse(c.Request().Context(), input); err != nil {
		return respondError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

// ClosePoll handles POST /polls/:id/close
// @Summary      Close a poll
// @Description  Stops the poll from accepting further responses
// @Tags         Polls
// @Produce      json
// @Param        id  path  string  true  "Poll ID (UUID)"
// @Success      204  "Poll closed"
// @Failure      403  {object}  map[string]interface{}  "Caller is not the organizer"
// @Failure      409  {object}  map[string]interface{}  "Poll cannot be closed"
// @Router       /polls/{id}/close [post]
func (h *Poll) ClosePoll(c echo.Context) error {
	return h.transition(c, h.pollService.ClosePoll)
}

// CancelPoll handles POST /polls/:id/cancel
// @Summary      Cancel a poll
// @Description  Abandons an open or closed poll
// @Tags         Polls
// @Produce      json
// @Param        id  path  string  true  "Poll ID (UUID)"
// @Success      204  "Poll cancelled"
// @Failure      403  {object}  map[string]interface{}  "Caller is not the organizer"
// @Failure      409  {object}  map[string]interface{}  "Poll already finalized"
// @Router       /polls/{id}/cancel [post]
func (h *Poll) CancelPoll(c echo.Context) error {
	return h.transition(c, h.pollService.CancelPoll)
}

// Finalize handles POST /polls/:id/finalize
// @Summary      Finalize a closed poll
// @Description  Tallies responses, creates the calendar event and dispatches invites
// @Tags         Polls
// @Produce      json
// @Param        id  path  string  true  "Poll ID (UUID)"
// @Success      200  {object}  poll.FinalizeResponse  "Event and delivery ledger"
// @Failure      403  {object}  map[string]interface{}  "Caller is not the organizer"
// @Failure      409  {object}  map[string]interface{}  "Poll not in a finalizable state"
// @Failure      422  {object}  map[string]interface{}  "No consensus among responses"
// @Router       /polls/{id}/finalize [post]
func (h *Poll) Finalize(c echo.Context) error {
	pollID, err := pathUUID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":   "invalid_poll_id",
			"message": "poll ID must be a valid UUID",
		})
	}

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]interface{}{
			"error":   "unauthorized",
			"message": "user not authenticated",
		})
	}

	output, err := h.pollService.Finalize(c.Request().Context(), pollID, userID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, &poll.FinalizeResponse{
		Event:  presenter.ToEventResponse(output.Event),
		Ledger: presenter.ToLedgerResponse(output.Ledger),
	})
}

// Reopen handles POST /polls/:id/reopen
// @Summary      Reopen a closed poll
// @Description  Moves a closed poll back to voting, optionally appending new slots
// @Tags         Polls
// @Accept       json
// @Produce      json
// @Param        id       path      string                  true   "Poll ID (UUID)"
// @Param        request  body      poll.ReopenPollRequest  false  "New candidate slots"
// @Success      200      {object}  poll.PollResponse       "Reopened poll"
// @Failure      403      {object}  map[string]interface{}  "Caller is not the organizer"
// @Failure      409      {object}  map[string]interface{}  "Poll is not closed"
// @Router       /polls/{id}/reopen [post]
func (h *Poll) Reopen(c echo.Context) error {
	pollID, err := pathUUID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":   "invalid_poll_id",
			"message": "poll ID must be a valid UUID",
		})
	}

	var req poll.ReopenPollRequest
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

	options := make([]pollUsecase.OptionInput, len(req.Options))
	for i, opt := range req.Options {
		options[i] = pollUsecase.OptionInput{
			StartTime: opt.StartTime,
			EndTime:   opt.EndTime,
		}
	}

	reopened, err := h.pollService.Reopen(c.Request().Context(), pollUsecase.ReopenInput{
		PollID:  pollID,
		ActorID: userID,
		Options: options,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, presenter.ToPollResponse(reopened))
}

// Results handles GET /polls/:id/results
// @Summary      View the live tally
// @Description  Shows the organizer the current scores without changing state
// @Tags         Polls
// @Produce      json
// @Param        id  path  string  true  "Poll ID (UUID)"
// @Success      200  {object}  poll.ResultsResponse  "Current tally"
// @Failure      403  {object}  map[string]interface{}  "Caller is not the organizer"
// @Failure      404  {object}  map[string]interface{}  "Poll not found"
// @Router       /polls/{id}/results [get]
func (h *Poll) Results(c echo.Context) error {
	pollID, err := pathUUID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":   "invalid_poll_id",
			"message": "poll ID must be a valid UUID",
		})
	}

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]interface{}{
			"error":   "unauthorized",
			"message": "user not authenticated",
		})
	}

	result, err := h.pollService.Results(c.Request().Context(), pollID, userID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, presenter.ToResultsResponse(result))
}

// transition factors the shared shape of close and cancel
func (h *Poll) transition(c echo.Context, op func(ctx context.Context, pollID, actorID uuid.UUID) error) error {
	pollID, err := pathUUID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":   "invalid_poll_id",
			"message": "poll ID must be a valid UUID",
		})
	}

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]interface{}{
			"error":   "unauthorized",
			"message": "user not authenticated",
		})
	}

	if err := op(c.Request().Context(), pollID, userID); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
