package presenter

import (
	"github.com/meetpoll-team/meetpoll/internal/adapter/dto/poll"
	"github.com/meetpoll-team/meetpoll/internal/domain/entities"
	"github.com/meetpoll-team/meetpoll/internal/usecase/invite"
)

// ToEventResponse converts a CalendarEvent entity to EventResponse DTO
func ToEventResponse(e *entities.CalendarEvent) *poll.EventResponse {
	if e == nil {
		return nil
	}

	attendees := make([]poll.EventAttendeeResponse, len(e.Attendees))
	for i, a := range e.Attendees {
		attendees[i] = poll.EventAttendeeResponse{
			UserID:    a.UserID.String(),
			Status:    string(a.Status),
			SentAt:    a.SentAt,
			LastError: a.LastError,
			User:      ToUserResponse(a.User),
		}
	}

	return &poll.EventResponse{
		ID:          e.ID.String(),
		PollID:      e.PollID.String(),
		Title:       e.Title,
		Description: e.Description,
		Location:    e.Location,
		Category:    e.Category,
		StartTime:   e.StartTime,
		EndTime:     e.EndTime,
		OrganizerID: e.OrganizerID.String(),
		Organizer:   ToUserResponse(e.Organizer),
		Status:      string(e.Status),
		Attendees:   attendees,
		CreatedAt:   e.CreatedAt,
	}
}

// ToLedgerResponse converts a dispatch ledger to its DTO form
func ToLedgerResponse(ledger invite.Ledger) []poll.DeliveryResponse {
	deliveries := make([]poll.DeliveryResponse, 0, len(ledger))
	for _, d := range ledger {
		deliveries = append(deliveries, poll.DeliveryResponse{
			UserID:   d.UserID.String(),
			Outcome:  string(d.Outcome),
			Attempts: d.Attempts,
			Error:    d.Error,
		})
	}
	return deliveries
}
