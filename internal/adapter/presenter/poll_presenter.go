package presenter

import (
	"github.com/meetpoll-team/meetpoll/internal/adapter/dto/poll"
	"github.com/meetpoll-team/meetpoll/internal/domain/entities"
	pollUsecase "github.com/meetpoll-team/meetpoll/internal/usecase/poll"
)

// ToUserResponse converts a User entity to UserResponse DTO
func ToUserResponse(u *entities.User) *poll.UserResponse {
	if u == nil {
		return nil
	}
	return &poll.UserResponse{
		ID:    u.ID.String(),
		Email: u.Email,
		Name:  u.Name,
	}
}

// ToPollResponse converts a MeetingPoll entity to PollResponse DTO
func ToPollResponse(p *entities.MeetingPoll) *poll.PollResponse {
	if p == nil {
		return nil
	}

	options := make([]poll.OptionResponse, len(p.Options))
	for i, opt := range p.Options {
		options[i] = poll.OptionResponse{
			ID:        opt.ID.String(),
			StartTime: opt.StartTime,
			EndTime:   opt.EndTime,
			Position:  opt.Position,
		}
	}

	attendees := make([]poll.AttendeeResponse, len(p.Attendees))
	for i, a := range p.Attendees {
		attendees[i] = poll.AttendeeResponse{
			UserID:     a.UserID.String(),
			IsRequired: a.IsRequired,
			User:       ToUserResponse(a.User),
		}
	}

	return &poll.PollResponse{
		ID:             p.ID.String(),
		Title:          p.Title,
		Description:    p.Description,
		Location:       p.Location,
		Category:       p.Category,
		OrganizerID:    p.OrganizerID.String(),
		Organizer:      ToUserResponse(p.Organizer),
		Status:         string(p.Status),
		VotingDeadline: p.VotingDeadline,
		Options:        options,
		Attendees:      attendees,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

// ToPollListResponse converts a page of polls to PollListResponse
func ToPollListResponse(polls []*entities.MeetingPoll, limit, offset int) *poll.PollListResponse {
	responses := make([]*poll.PollResponse, len(polls))
	for i, p := range polls {
		responses[i] = ToPollResponse(p)
	}
	return &poll.PollListResponse{
		Polls:  responses,
		Limit:  limit,
		Offset: offset,
	}
}

// ToResultsResponse converts a tally result to ResultsResponse DTO
func ToResultsResponse(result *pollUsecase.TallyResult) *poll.ResultsResponse {
	if result == nil {
		return nil
	}

	scores := make([]poll.OptionScoreResponse, len(result.Scores))
	for i, s := range result.Scores {
		scores[i] = poll.OptionScoreResponse{
			OptionID:   s.OptionID.String(),
			Score:      s.Score,
			MaybeVotes: s.MaybeVotes,
			Vetoed:     s.Vetoed,
			Responses:  s.Responses,
		}
	}

	response := &poll.ResultsResponse{
		HasConsensus: result.HasConsensus(),
		Scores:       scores,
	}
	if result.Winner != nil {
		id := result.Winner.ID.String()
		response.WinningOptionID = &id
	}
	return response
}
