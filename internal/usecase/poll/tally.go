package poll

import (
	"github.com/google/uuid"

	"github.com/meetpoll-team/meetpoll/internal/domain/entities"
)

// Vote weights. A required yes counts double; maybes and optional yeses
// count once. A required no vetoes the option outright.
const (
	requiredYesWeight   = 2
	requiredMaybeWeight = 1
	optionalYesWeight   = 1
)

// OptionScore is the tally breakdown for one option. Serialized into the
// calendar event's tally snapshot at finalization.
type OptionScore struct {
	OptionID   uuid.UUID `json:"option_id"`
	Score      int       `json:"score"`
	MaybeVotes int       `json:"maybe_votes"`
	Vetoed     bool      `json:"vetoed"`
	Responses  int       `json:"responses"`
}

// TallyResult holds the winning option, if any, and the per-option
// breakdown in option order.
type TallyResult struct {
	Winner *entities.PollOption
	Scores []OptionScore
}

// HasConsensus reports whether the tally produced a winner
func (r TallyResult) HasConsensus() bool {
	return r.Winner != nil
}

// Tally computes the winning option for a poll from its option set,
// attendee set and response set. Pure and deterministic: no side effects,
// identical input yields an identical result, safe to re-run.
//
// score = 2 * required-yes + required-maybe + optional-yes. Any required
// no disqualifies the option. Ties break on earliest start time, then
// fewest total maybe votes, then lowest option position. No winner exists
// when every option is vetoed or no option received any response.
func Tally(options []entities.PollOption, attendees []entities.PollAttendee, responses []entities.PollResponse) TallyResult {
	required := make(map[uuid.UUID]bool, len(attendees))
	member := make(map[uuid.UUID]bool, len(attendees))
	for _, a := range attendees {
		member[a.UserID] = true
		required[a.UserID] = a.IsRequired
	}

	scores := make([]OptionScore, len(options))
	index := make(map[uuid.UUID]int, len(options))
	for i, opt := range options {
		scores[i] = OptionScore{OptionID: opt.ID}
		index[opt.ID] = i
	}

	anyResponse := false
	for _, resp := range responses {
		i, ok := index[resp.OptionID]
		if !ok || !member[resp.UserID] {
			continue
		}
		anyResponse = true
		s := &scores[i]
		s.Responses++

		switch resp.Value {
		case entities.VoteYes:
			if required[resp.UserID] {
				s.Score += requiredYesWeight
			} else {
				s.Score += optionalYesWeight
			}
		case entities.VoteMaybe:
			s.MaybeVotes++
			if required[resp.UserID] {
				s.Score += requiredMaybeWeight
			}
		case entities.VoteNo:
			if required[resp.UserID] {
				s.Vetoed = true
			}
		}
	}

	if !anyResponse {
		return TallyResult{Scores: scores}
	}

	best := -1
	for i := range options {
		if scores[i].Vetoed {
			continue
		}
		if best < 0 || beats(&options[i], &scores[i], &options[best], &scores[best]) {
			best = i
		}
	}
	if best < 0 {
		return TallyResult{Scores: scores}
	}

	winner := options[best]
	return TallyResult{Winner: &winner, Scores: scores}
}

// beats reports whether candidate a outranks current best b: higher score,
// then earlier start, then fewer maybes, then lower position.
func beats(a *entities.PollOption, sa *OptionScore, b *entities.PollOption, sb *OptionScore) bool {
	if sa.Score != sb.Score {
		return sa.Score > sb.Score
	}
	if !a.StartTime.Equal(b.StartTime) {
		return a.StartTime.Before(b.StartTime)
	}
	if sa.MaybeVotes != sb.MaybeVotes {
		return sa.MaybeVotes < sb.MaybeVotes
	}
	return a.Position < b.Position
}
