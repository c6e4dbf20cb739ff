package protocol

import (
	"encoding/json"

	"github.com/topluluk-game/sync-client/internal/state"
)

// Outbound command types (client -> session channel). All commands are
// fire-and-forget; resulting state changes come back as inbound events.
const (
	CmdJoinSession     = "join-session"
	CmdReadyToggle     = "ready-toggle"
	CmdStartCountdown  = "start-countdown"
	CmdCancelCountdown = "cancel-countdown"
	CmdFillWithBots    = "fill-with-bots"
	CmdSubmitProposal  = "submit-proposal"
	CmdCastVote        = "cast-vote"
	CmdSendChat        = "send-chat"
)

// Command is one outbound frame. Only the fields relevant to the type are
// populated.
type Command struct {
	Type       string           `json:"type"`
	SessionID  string           `json:"sessionId,omitempty"`
	OptionID   string           `json:"optionId,omitempty"`
	Rationale  string           `json:"rationale,omitempty"`
	ProposalID string           `json:"proposalId,omitempty"`
	Choice     state.VoteChoice `json:"choice,omitempty"`
	Text       string           `json:"text,omitempty"`
}

// EncodeCommand serializes a command for the wire.
func EncodeCommand(cmd Command) ([]byte, error) {
	return json.Marshal(cmd)
}

// DecodeCommand parses an outbound frame; used by the loopback server.
func DecodeCommand(data []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return Command{}, ErrBadPayload
	}
	if cmd.Type == "" {
		return Command{}, ErrBadPayload
	}
	return cmd, nil
}

// EncodeEvent frames a typed event for the wire; used by the loopback
// server and by tests that feed recorded logs.
func EncodeEvent(ev Event) ([]byte, error) {
	env, err := EncodeEnvelope(ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// EncodeEnvelope maps a typed event back to its canonical wire envelope.
func EncodeEnvelope(ev Event) (Envelope, error) {
	var (
		kind    string
		payload any
	)
	switch e := ev.(type) {
	case FullSnapshot:
		kind, payload = KindSnapshot, snapshotPayload{Session: e.Session}
	case RosterDelta:
		kind, payload = KindRoster, rosterPayload{Player: e.Player}
	case ReadyDelta:
		kind, payload = KindReady, readyPayload{PlayerID: e.PlayerID, Ready: e.Ready}
	case CountdownStarted:
		kind, payload = KindCountdownStarted, durationPayload{DurationSec: e.DurationSec}
	case CountdownUpdated:
		kind, payload = KindCountdownUpdated, durationPayload{DurationSec: e.DurationSec}
	case CountdownCancelled:
		kind = KindCountdownCancelled
	case RoundStarted:
		kind, payload = KindRoundStarted, roundStartedPayload{Round: e.Round, Event: e.Event, DurationSec: e.DurationSec}
	case DiscussionStarted:
		kind, payload = KindDiscussionStarted, durationPayload{DurationSec: e.DurationSec}
	case ProposalCreated:
		kind, payload = KindProposalCreated, proposalPayload{Proposal: e.Proposal}
	case VotingStarted:
		kind, payload = KindVotingStarted, durationPayload{DurationSec: e.DurationSec}
	case VoteUpdated:
		kind, payload = KindVoteUpdated, votePayload{ProposalID: e.ProposalID, VoterID: e.VoterID, Choice: e.Choice}
	case RoundResolved:
		kind, payload = KindRoundResolved, resolvedPayload{Resources: e.Resources}
	case SessionEnded:
		kind, payload = KindSessionEnded, endedPayload{Result: e.Result}
	case ChatPosted:
		kind, payload = KindChatMessage, chatPayload{Message: e.Message}
	case PhaseChanged:
		kind, payload = KindPhase, phasePayload{Phase: string(e.Phase)}
	case ServerError:
		kind, payload = KindError, errorPayload{Message: e.Message}
	default:
		return Envelope{}, ErrUnknownKind
	}

	env := Envelope{Type: kind}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, err
		}
		env.Payload = raw
	}
	return env, nil
}
