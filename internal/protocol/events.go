package protocol

import (
	"encoding/json"
	"errors"

	"github.com/topluluk-game/sync-client/internal/state"
)

var ErrUnknownKind = errors.New("unknown event kind")
var ErrBadPayload = errors.New("malformed event payload")
var ErrBadPhase = errors.New("unrecognized phase name")

// Event is the closed set of inbound session events. Decoding normalizes
// both wire vocabularies into these tags; reducers switch over them
// exhaustively.
type Event interface{ isEvent() }

// FullSnapshot replaces the entire mirror. It is the resync mechanism and
// wins over any partial local patch.
type FullSnapshot struct {
	Session state.Session
}

// RosterDelta upserts one player by id. Leaves arrive as the same player
// row with Connected=false; the entry is never removed.
type RosterDelta struct {
	Player state.Player
}

// ReadyDelta toggles one player's ready flag.
type ReadyDelta struct {
	PlayerID string
	Ready    bool
}

type CountdownStarted struct {
	DurationSec int
}

type CountdownUpdated struct {
	DurationSec int
}

type CountdownCancelled struct{}

// RoundStarted opens a new round: it carries the scripted event and the
// discussion-entry countdown in one message.
type RoundStarted struct {
	Round       int
	Event       state.ScriptedEvent
	DurationSec int
}

type DiscussionStarted struct {
	DurationSec int
}

type ProposalCreated struct {
	Proposal state.Proposal
}

type VotingStarted struct {
	DurationSec int
}

type VoteUpdated struct {
	ProposalID string
	VoterID    string
	Choice     state.VoteChoice
}

// RoundResolved carries the authoritative post-round resource vector. The
// client never recomputes it.
type RoundResolved struct {
	Resources state.Resources
}

type SessionEnded struct {
	Result state.Result
}

type ChatPosted struct {
	Message state.ChatMessage
}

// PhaseChanged carries a bare phase transition (READY, BOT_FILL, ABANDONED
// and the like) that has no richer dedicated event.
type PhaseChanged struct {
	Phase state.Phase
}

// ServerError is a server-emitted protocol error, surfaced verbatim. The
// session stays joined.
type ServerError struct {
	Message string
}

func (FullSnapshot) isEvent()       {}
func (RosterDelta) isEvent()        {}
func (ReadyDelta) isEvent()         {}
func (CountdownStarted) isEvent()   {}
func (CountdownUpdated) isEvent()   {}
func (CountdownCancelled) isEvent() {}
func (RoundStarted) isEvent()       {}
func (DiscussionStarted) isEvent()  {}
func (ProposalCreated) isEvent()    {}
func (VotingStarted) isEvent()      {}
func (VoteUpdated) isEvent()        {}
func (RoundResolved) isEvent()      {}
func (SessionEnded) isEvent()       {}
func (ChatPosted) isEvent()         {}
func (PhaseChanged) isEvent()       {}
func (ServerError) isEvent()        {}

// Canonical inbound event kinds. The Turkish names are the historical wire
// vocabulary and are still emitted by older servers.
const (
	KindSnapshot           = "session-snapshot"
	KindSnapshotLegacy     = "topluluk-durumu"
	KindRoster             = "roster-delta"
	KindReady              = "ready-delta"
	KindCountdownStarted   = "countdown-started"
	KindCountdownUpdated   = "countdown-updated"
	KindCountdownCancelled = "countdown-cancelled"
	KindRoundStarted       = "round-started"
	KindDiscussionStarted  = "discussion-started"
	KindProposalCreated    = "proposal-created"
	KindProposalLegacy     = "yeni-oneri"
	KindVotingStarted      = "voting-started"
	KindVoteUpdated        = "vote-updated"
	KindRoundResolved      = "round-resolved"
	KindSessionEnded       = "session-ended"
	KindChatMessage        = "chat-message"
	KindPhase              = "phase-changed"
	KindError              = "error"
)

// Envelope is the outer frame of every inbound message.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type snapshotPayload struct {
	Session state.Session `json:"session"`
}

type rosterPayload struct {
	Player state.Player `json:"player"`
}

type readyPayload struct {
	PlayerID string `json:"playerId"`
	Ready    bool   `json:"ready"`
}

type durationPayload struct {
	DurationSec int `json:"durationSec"`
}

type roundStartedPayload struct {
	Round       int                 `json:"round"`
	Event       state.ScriptedEvent `json:"scriptedEvent"`
	DurationSec int                 `json:"durationSec"`
}

type proposalPayload struct {
	Proposal state.Proposal `json:"proposal"`
}

type votePayload struct {
	ProposalID string           `json:"proposalId"`
	VoterID    string           `json:"voterId"`
	Choice     state.VoteChoice `json:"choice"`
}

type resolvedPayload struct {
	Resources state.Resources `json:"resourceVector"`
}

type endedPayload struct {
	Result state.Result `json:"result"`
}

type chatPayload struct {
	Message state.ChatMessage `json:"message"`
}

type phasePayload struct {
	Phase string `json:"phase"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// DecodeEvent parses one inbound frame into its typed event, normalizing
// legacy kind and phase names at this boundary. Unknown kinds return
// ErrUnknownKind so callers can skip them without failing the stream.
func DecodeEvent(data []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, ErrBadPayload
	}
	return DecodeEnvelope(env)
}

// DecodeEnvelope decodes an already-parsed envelope.
func DecodeEnvelope(env Envelope) (Event, error) {
	switch env.Type {
	case KindSnapshot, KindSnapshotLegacy:
		var p snapshotPayload
		if err := unmarshal(env.Payload, &p); err != nil {
			return nil, err
		}
		normalizeSnapshot(&p.Session)
		return FullSnapshot{Session: p.Session}, nil

	case KindRoster:
		var p rosterPayload
		if err := unmarshal(env.Payload, &p); err != nil {
			return nil, err
		}
		return RosterDelta{Player: p.Player}, nil

	case KindReady:
		var p readyPayload
		if err := unmarshal(env.Payload, &p); err != nil {
			return nil, err
		}
		return ReadyDelta{PlayerID: p.PlayerID, Ready: p.Ready}, nil

	case KindCountdownStarted:
		var p durationPayload
		if err := unmarshal(env.Payload, &p); err != nil {
			return nil, err
		}
		return CountdownStarted{DurationSec: p.DurationSec}, nil

	case KindCountdownUpdated:
		var p durationPayload
		if err := unmarshal(env.Payload, &p); err != nil {
			return nil, err
		}
		return CountdownUpdated{DurationSec: p.DurationSec}, nil

	case KindCountdownCancelled:
		return CountdownCancelled{}, nil

	case KindRoundStarted:
		var p roundStartedPayload
		if err := unmarshal(env.Payload, &p); err != nil {
			return nil, err
		}
		return RoundStarted{Round: p.Round, Event: p.Event, DurationSec: p.DurationSec}, nil

	case KindDiscussionStarted:
		var p durationPayload
		if err := unmarshal(env.Payload, &p); err != nil {
			return nil, err
		}
		return DiscussionStarted{DurationSec: p.DurationSec}, nil

	case KindProposalCreated, KindProposalLegacy:
		var p proposalPayload
		if err := unmarshal(env.Payload, &p); err != nil {
			return nil, err
		}
		if p.Proposal.Votes == nil {
			p.Proposal.Votes = map[string]state.VoteChoice{}
		}
		return ProposalCreated{Proposal: p.Proposal}, nil

	case KindVotingStarted:
		var p durationPayload
		if err := unmarshal(env.Payload, &p); err != nil {
			return nil, err
		}
		return VotingStarted{DurationSec: p.DurationSec}, nil

	case KindVoteUpdated:
		var p votePayload
		if err := unmarshal(env.Payload, &p); err != nil {
			return nil, err
		}
		return VoteUpdated{ProposalID: p.ProposalID, VoterID: p.VoterID, Choice: p.Choice}, nil

	case KindRoundResolved:
		var p resolvedPayload
		if err := unmarshal(env.Payload, &p); err != nil {
			return nil, err
		}
		return RoundResolved{Resources: p.Resources}, nil

	case KindSessionEnded:
		var p endedPayload
		if err := unmarshal(env.Payload, &p); err != nil {
			return nil, err
		}
		return SessionEnded{Result: p.Result}, nil

	case KindChatMessage:
		var p chatPayload
		if err := unmarshal(env.Payload, &p); err != nil {
			return nil, err
		}
		return ChatPosted{Message: p.Message}, nil

	case KindPhase:
		var p phasePayload
		if err := unmarshal(env.Payload, &p); err != nil {
			return nil, err
		}
		phase, ok := state.ParsePhase(p.Phase)
		if !ok {
			return nil, ErrBadPhase
		}
		return PhaseChanged{Phase: phase}, nil

	case KindError:
		var p errorPayload
		if err := unmarshal(env.Payload, &p); err != nil {
			return nil, err
		}
		return ServerError{Message: p.Message}, nil

	default:
		return nil, ErrUnknownKind
	}
}

func unmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return ErrBadPayload
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return ErrBadPayload
	}
	return nil
}

// normalizeSnapshot repairs nil containers and legacy phase names on a
// freshly decoded snapshot so reducers never see them.
func normalizeSnapshot(s *state.Session) {
	if p, ok := state.ParsePhase(string(s.Phase)); ok {
		s.Phase = p
	}
	if s.Players == nil {
		s.Players = map[string]state.Player{}
	}
	if s.Proposals == nil {
		s.Proposals = map[string]state.Proposal{}
	}
	for id, pr := range s.Proposals {
		if pr.Votes == nil {
			pr.Votes = map[string]state.VoteChoice{}
			s.Proposals[id] = pr
		}
	}
	if s.Chat == nil {
		s.Chat = []state.ChatMessage{}
	}
}
