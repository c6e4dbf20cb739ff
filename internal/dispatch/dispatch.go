// Package dispatch turns local player intents into outbound commands. Every
// intent is validated against the current mirror before it is allowed near
// the wire; rejected intents never leave the client.
package dispatch

import (
	"errors"
	"strings"

	"github.com/topluluk-game/sync-client/internal/protocol"
	"github.com/topluluk-game/sync-client/internal/state"
)

var ErrNotConnected = errors.New("local player is not connected")
var ErrWrongPhase = errors.New("intent not allowed in current phase")
var ErrUnknownProposal = errors.New("unknown proposal")
var ErrUnknownOption = errors.New("option not on the active event")
var ErrInvalidChoice = errors.New("invalid vote choice")
var ErrEmptyChat = errors.New("empty chat message")
var ErrSessionOver = errors.New("session has ended")

// Intent is the closed set of local player intents.
type Intent interface{ isIntent() }

type ReadyToggle struct{}

type StartCountdown struct{}

type CancelCountdown struct{}

type FillWithBots struct{}

type SubmitProposal struct {
	OptionID  string
	Rationale string
}

type CastVote struct {
	ProposalID string
	Choice     state.VoteChoice
}

type SendChat struct {
	Text string
}

func (ReadyToggle) isIntent()     {}
func (StartCountdown) isIntent()  {}
func (CancelCountdown) isIntent() {}
func (FillWithBots) isIntent()    {}
func (SubmitProposal) isIntent()  {}
func (CastVote) isIntent()        {}
func (SendChat) isIntent()        {}

// Validate checks an intent against the mirror. selfID is the local
// player's identity as established at join.
func Validate(s state.Session, selfID string, in Intent) error {
	if s.Phase.Terminal() {
		return ErrSessionOver
	}

	switch it := in.(type) {
	case ReadyToggle:
		if s.Phase != state.PhaseWaiting && s.Phase != state.PhaseReady {
			return ErrWrongPhase
		}
		return nil

	case StartCountdown:
		if s.Phase != state.PhaseReady {
			return ErrWrongPhase
		}
		return nil

	case CancelCountdown:
		if s.Phase != state.PhaseCountdown {
			return ErrWrongPhase
		}
		return nil

	case FillWithBots:
		switch s.Phase {
		case state.PhaseWaiting, state.PhaseReady, state.PhaseCountdown:
			return nil
		}
		return ErrWrongPhase

	case SubmitProposal:
		if s.Phase != state.PhaseDiscussion {
			return ErrWrongPhase
		}
		if it.OptionID == "" || !s.OptionOnEvent(it.OptionID) {
			return ErrUnknownOption
		}
		return nil

	case CastVote:
		if p, ok := s.Players[selfID]; !ok || !p.Connected {
			return ErrNotConnected
		}
		if s.Phase != state.PhaseVoting {
			return ErrWrongPhase
		}
		if _, ok := s.Proposal(it.ProposalID); !ok {
			return ErrUnknownProposal
		}
		if !state.ValidChoice(it.Choice) {
			return ErrInvalidChoice
		}
		return nil

	case SendChat:
		if strings.TrimSpace(it.Text) == "" {
			return ErrEmptyChat
		}
		return nil

	default:
		return errors.New("unsupported intent")
	}
}

// Command serializes a validated intent into its outbound command.
func Command(in Intent) protocol.Command {
	switch it := in.(type) {
	case ReadyToggle:
		return protocol.Command{Type: protocol.CmdReadyToggle}
	case StartCountdown:
		return protocol.Command{Type: protocol.CmdStartCountdown}
	case CancelCountdown:
		return protocol.Command{Type: protocol.CmdCancelCountdown}
	case FillWithBots:
		return protocol.Command{Type: protocol.CmdFillWithBots}
	case SubmitProposal:
		return protocol.Command{Type: protocol.CmdSubmitProposal, OptionID: it.OptionID, Rationale: it.Rationale}
	case CastVote:
		return protocol.Command{Type: protocol.CmdCastVote, ProposalID: it.ProposalID, Choice: it.Choice}
	case SendChat:
		return protocol.Command{Type: protocol.CmdSendChat, Text: strings.TrimSpace(it.Text)}
	default:
		return protocol.Command{}
	}
}
