// Package reduce is the event reducer pipeline: one pure total function per
// inbound event kind, each taking the current mirror and a payload to the
// next mirror. Reducers never fail; anything they cannot apply leaves the
// mirror unchanged.
package reduce

import (
	"time"

	"github.com/topluluk-game/sync-client/internal/protocol"
	"github.com/topluluk-game/sync-client/internal/state"
)

// Apply routes one inbound event to its reducer. It returns the next mirror
// and whether anything changed; an unchanged mirror means the event was a
// duplicate, stale, or referenced an unknown entity and was absorbed.
//
// now is the local receive time used to anchor duration-bearing events as
// absolute deadlines; passing it in keeps every reducer pure.
func Apply(s state.Session, ev protocol.Event, now time.Time) (state.Session, bool) {
	switch e := ev.(type) {
	case protocol.FullSnapshot:
		return applySnapshot(s, e)
	case protocol.RosterDelta:
		return applyRoster(s, e)
	case protocol.ReadyDelta:
		return applyReady(s, e)
	case protocol.CountdownStarted:
		return applyCountdownStarted(s, e, now)
	case protocol.CountdownUpdated:
		return applyCountdownUpdated(s, e, now)
	case protocol.CountdownCancelled:
		return applyCountdownCancelled(s)
	case protocol.RoundStarted:
		return applyRoundStarted(s, e, now)
	case protocol.DiscussionStarted:
		return applyTimedPhase(s, state.PhaseDiscussion, e.DurationSec, now)
	case protocol.VotingStarted:
		return applyTimedPhase(s, state.PhaseVoting, e.DurationSec, now)
	case protocol.ProposalCreated:
		return applyProposal(s, e)
	case protocol.VoteUpdated:
		return applyVote(s, e)
	case protocol.RoundResolved:
		return applyResolved(s, e)
	case protocol.SessionEnded:
		return applyEnded(s, e)
	case protocol.ChatPosted:
		return applyChat(s, e)
	case protocol.PhaseChanged:
		return applyPhase(s, e)
	case protocol.ServerError:
		return applyError(s, e)
	default:
		// Unknown kinds are ignored for forward compatibility.
		return s, false
	}
}

// Replay folds a recorded event log over an empty mirror; used for
// deterministic replay in tests and diagnostics.
func Replay(sessionID string, events []protocol.Event, now time.Time) state.Session {
	s := state.NewSession(sessionID)
	for _, ev := range events {
		s, _ = Apply(s, ev, now)
	}
	return s
}

// A full snapshot always wins: it bypasses the phase graph and replaces the
// mirror wholesale, including over any partial patch that preceded it.
func applySnapshot(s state.Session, e protocol.FullSnapshot) (state.Session, bool) {
	next := e.Session.Clone()
	if next.ID == "" {
		next.ID = s.ID
	}
	return next, true
}

func applyRoster(s state.Session, e protocol.RosterDelta) (state.Session, bool) {
	if e.Player.ID == "" {
		return s, false
	}
	if cur, ok := s.Players[e.Player.ID]; ok && cur == e.Player {
		return s, false
	}
	next := s.Clone()
	next.Players[e.Player.ID] = e.Player
	return next, true
}

func applyReady(s state.Session, e protocol.ReadyDelta) (state.Session, bool) {
	p, ok := s.Players[e.PlayerID]
	if !ok || p.Ready == e.Ready {
		return s, false
	}
	next := s.Clone()
	p.Ready = e.Ready
	next.Players[e.PlayerID] = p
	return next, true
}

func applyCountdownStarted(s state.Session, e protocol.CountdownStarted, now time.Time) (state.Session, bool) {
	if s.Phase == state.PhaseCountdown {
		// Duplicate delivery: the existing deadline stands.
		return s, false
	}
	if !s.Phase.CanAdvanceTo(state.PhaseCountdown) {
		return s, false
	}
	next := s.Clone()
	next.Phase = state.PhaseCountdown
	next.Deadline = deadline(now, e.DurationSec)
	return next, true
}

// countdown-updated adjusts the running deadline in place; it carries no
// phase transition.
func applyCountdownUpdated(s state.Session, e protocol.CountdownUpdated, now time.Time) (state.Session, bool) {
	if s.Phase != state.PhaseCountdown {
		return s, false
	}
	d := deadline(now, e.DurationSec)
	if s.Deadline.Equal(d) {
		return s, false
	}
	next := s.Clone()
	next.Deadline = d
	return next, true
}

// The authoritative cancellation is what actually reverts the phase; the
// local cancel intent was advisory only.
func applyCountdownCancelled(s state.Session) (state.Session, bool) {
	if s.Phase != state.PhaseCountdown {
		return s, false
	}
	next := s.Clone()
	next.Phase = state.PhaseReady
	next.Deadline = time.Time{}
	return next, true
}

func applyRoundStarted(s state.Session, e protocol.RoundStarted, now time.Time) (state.Session, bool) {
	if s.Phase == state.PhaseEventOpened && s.Round == e.Round {
		// Duplicate delivery of the same round: content and countdown stand.
		return s, false
	}
	if !s.Phase.CanAdvanceTo(state.PhaseEventOpened) {
		return s, false
	}
	next := s.Clone()
	next.Phase = state.PhaseEventOpened
	next.Round = e.Round
	ev := e.Event
	ev.Options = append([]state.Option(nil), e.Event.Options...)
	next.Event = &ev
	next.Proposals = map[string]state.Proposal{}
	next.SelectedOptionID = ""
	next.Deadline = deadline(now, e.DurationSec)
	return next, true
}

func applyTimedPhase(s state.Session, phase state.Phase, durationSec int, now time.Time) (state.Session, bool) {
	if s.Phase == phase {
		return s, false
	}
	if !s.Phase.CanAdvanceTo(phase) {
		return s, false
	}
	next := s.Clone()
	next.Phase = phase
	next.Deadline = deadline(now, durationSec)
	return next, true
}

func applyProposal(s state.Session, e protocol.ProposalCreated) (state.Session, bool) {
	if e.Proposal.ID == "" {
		return s, false
	}
	pr := e.Proposal
	if pr.Votes == nil {
		pr.Votes = map[string]state.VoteChoice{}
	}
	if cur, ok := s.Proposals[pr.ID]; ok && proposalsEqual(cur, pr) {
		return s, false
	}
	next := s.Clone()
	next.Proposals[pr.ID] = pr
	return next, true
}

func applyVote(s state.Session, e protocol.VoteUpdated) (state.Session, bool) {
	pr, ok := s.Proposals[e.ProposalID]
	if !ok || !state.ValidChoice(e.Choice) {
		// Unknown proposal or garbage choice: absorbed, never escalated.
		return s, false
	}
	if cur, voted := pr.Votes[e.VoterID]; voted && cur == e.Choice {
		return s, false
	}
	next := s.Clone()
	next.Proposals[e.ProposalID].Votes[e.VoterID] = e.Choice
	return next, true
}

func applyResolved(s state.Session, e protocol.RoundResolved) (state.Session, bool) {
	if s.Phase == state.PhaseRoundEnd {
		return s, false
	}
	if !s.Phase.CanAdvanceTo(state.PhaseRoundEnd) {
		return s, false
	}
	next := s.Clone()
	next.Phase = state.PhaseRoundEnd
	next.Resources = e.Resources
	next.Deadline = time.Time{}
	return next, true
}

// session-ended is authoritative and terminal-bound; it is accepted from any
// non-terminal phase rather than gated on the round loop.
func applyEnded(s state.Session, e protocol.SessionEnded) (state.Session, bool) {
	if s.Phase.Terminal() || (s.Phase == state.PhaseResult && s.Result != nil && *s.Result == e.Result) {
		return s, false
	}
	next := s.Clone()
	next.Phase = state.PhaseResult
	res := e.Result
	next.Result = &res
	next.Deadline = time.Time{}
	return next, true
}

func applyChat(s state.Session, e protocol.ChatPosted) (state.Session, bool) {
	if e.Message.ID != "" {
		for _, m := range s.Chat {
			if m.ID == e.Message.ID {
				return s, false
			}
		}
	}
	next := s.Clone()
	next.Chat = append(next.Chat, e.Message)
	if n := len(next.Chat); n > state.ChatCapacity {
		next.Chat = next.Chat[n-state.ChatCapacity:]
	}
	return next, true
}

func applyPhase(s state.Session, e protocol.PhaseChanged) (state.Session, bool) {
	if s.Phase == e.Phase {
		return s, false
	}
	if !s.Phase.CanAdvanceTo(e.Phase) {
		return s, false
	}
	next := s.Clone()
	next.Phase = e.Phase
	if e.Phase.Terminal() {
		next.Deadline = time.Time{}
	}
	return next, true
}

func applyError(s state.Session, e protocol.ServerError) (state.Session, bool) {
	if s.LastError == e.Message {
		return s, false
	}
	next := s.Clone()
	next.LastError = e.Message
	return next, true
}

func deadline(now time.Time, durationSec int) time.Time {
	if durationSec <= 0 {
		return time.Time{}
	}
	return now.Add(time.Duration(durationSec) * time.Second)
}

func proposalsEqual(a, b state.Proposal) bool {
	if a.ID != b.ID || a.AuthorID != b.AuthorID || a.AuthorName != b.AuthorName ||
		a.OptionID != b.OptionID || a.Rationale != b.Rationale || len(a.Votes) != len(b.Votes) {
		return false
	}
	for voter, choice := range a.Votes {
		if b.Votes[voter] != choice {
			return false
		}
	}
	return true
}
