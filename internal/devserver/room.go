// Package devserver is a loopback authoritative peer: a scripted session
// server the client binary and integration tests run against. It speaks the
// same wire contract as production but resolves rounds with a deliberately
// simple rule set.
package devserver

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/topluluk-game/sync-client/internal/protocol"
	"github.com/topluluk-game/sync-client/internal/state"
)

const (
	roomCapacity  = 4
	countdownSec  = 5
	eventOpenSec  = 3
	discussionSec = 20
	votingSec     = 15
)

type Msg interface{ isRoomMsg() }

// Join registers a player connection. The current snapshot is delivered to
// its outbox immediately; everyone else gets a roster delta.
type Join struct {
	PlayerID string
	Name     string
	Outbox   chan []byte
}

// Leave marks the player disconnected. Roster entries are never removed, so
// a rejoin reuses the same identity.
type Leave struct{ PlayerID string }

// FromClient carries one decoded command from a connection.
type FromClient struct {
	PlayerID string
	Cmd      protocol.Command
}

// FillBots is the HTTP path of fill-with-bots; the realtime command funnels
// into the same message so both converge on identical roster deltas.
type FillBots struct{}

type GetView struct {
	Reply chan state.Session
}

type Shutdown struct{}

type timerFired struct{ gen int }

func (Join) isRoomMsg()       {}
func (Leave) isRoomMsg()      {}
func (FromClient) isRoomMsg() {}
func (FillBots) isRoomMsg()   {}
func (GetView) isRoomMsg()    {}
func (Shutdown) isRoomMsg()   {}
func (timerFired) isRoomMsg() {}

type Room struct {
	inbox   chan Msg
	state   state.Session
	script  []state.ScriptedEvent
	clients map[string]chan []byte
	log     *zap.SugaredLogger

	timer    *time.Timer
	timerGen int

	ctx    context.Context
	cancel context.CancelFunc
}

func NewRoom(parent context.Context, id, name, joinCode string, log *zap.SugaredLogger) *Room {
	ctx, cancel := context.WithCancel(parent)

	s := state.NewSession(id)
	s.Name = name
	s.JoinCode = joinCode
	s.TotalRounds = len(Script)
	s.Resources = state.Resources{Treasury: 50, Welfare: 50, Stability: 50, Infrastructure: 50}

	r := &Room{
		inbox:   make(chan Msg, 64),
		state:   s,
		script:  Script,
		clients: make(map[string]chan []byte),
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
	}

	go r.loop()
	return r
}

func (r *Room) Inbox() chan<- Msg { return r.inbox }

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				r.handleJoin(msg)
			case Leave:
				r.handleLeave(msg.PlayerID)
			case FromClient:
				r.handleCommand(msg.PlayerID, msg.Cmd)
			case FillBots:
				r.fillBots()
			case timerFired:
				if msg.gen == r.timerGen {
					r.advancePhase()
				}
			case GetView:
				msg.Reply <- r.state.Clone()
			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Room) handleJoin(msg Join) {
	p, known := r.state.Players[msg.PlayerID]
	if !known {
		role := state.RoleMember
		if len(r.state.Players) == 0 {
			role = state.RoleFounder
		}
		p = state.Player{ID: msg.PlayerID, Name: msg.Name, Role: role}
	}
	p.Connected = true
	r.state.Players[msg.PlayerID] = p
	r.clients[msg.PlayerID] = msg.Outbox

	if frame, err := protocol.EncodeEvent(protocol.FullSnapshot{Session: r.state.Clone()}); err == nil {
		msg.Outbox <- frame
	}
	r.broadcast(protocol.RosterDelta{Player: p})
}

func (r *Room) handleLeave(playerID string) {
	delete(r.clients, playerID)
	p, ok := r.state.Players[playerID]
	if !ok {
		return
	}
	p.Connected = false
	r.state.Players[playerID] = p
	r.broadcast(protocol.RosterDelta{Player: p})
}

func (r *Room) handleCommand(playerID string, cmd protocol.Command) {
	switch cmd.Type {
	case protocol.CmdJoinSession:
		// Membership was already established by the Join message; the
		// re-sent intent after a reconnect warrants a fresh snapshot.
		if out, ok := r.clients[playerID]; ok {
			if frame, err := protocol.EncodeEvent(protocol.FullSnapshot{Session: r.state.Clone()}); err == nil {
				out <- frame
			}
		}

	case protocol.CmdReadyToggle:
		p, ok := r.state.Players[playerID]
		if !ok {
			return
		}
		p.Ready = !p.Ready
		r.state.Players[playerID] = p
		r.broadcast(protocol.ReadyDelta{PlayerID: playerID, Ready: p.Ready})
		r.maybeReady()

	case protocol.CmdStartCountdown:
		if r.state.Phase != state.PhaseReady {
			r.sendError(playerID, "countdown can only start when everyone is ready")
			return
		}
		r.state.Phase = state.PhaseCountdown
		r.broadcast(protocol.CountdownStarted{DurationSec: countdownSec})
		r.arm(countdownSec)

	case protocol.CmdCancelCountdown:
		if r.state.Phase != state.PhaseCountdown {
			return
		}
		r.disarm()
		r.state.Phase = state.PhaseReady
		r.broadcast(protocol.CountdownCancelled{})

	case protocol.CmdFillWithBots:
		r.fillBots()

	case protocol.CmdSubmitProposal:
		r.submitProposal(playerID, cmd)

	case protocol.CmdCastVote:
		r.castVote(playerID, cmd)

	case protocol.CmdSendChat:
		if cmd.Text == "" {
			return
		}
		m := state.ChatMessage{
			ID:         uuid.NewString(),
			AuthorID:   playerID,
			AuthorName: r.state.Players[playerID].Name,
			Text:       cmd.Text,
			SentAt:     time.Now().UTC(),
		}
		r.state.Chat = append(r.state.Chat, m)
		if n := len(r.state.Chat); n > state.ChatCapacity {
			r.state.Chat = r.state.Chat[n-state.ChatCapacity:]
		}
		r.broadcast(protocol.ChatPosted{Message: m})

	default:
		r.sendError(playerID, "unsupported command: "+cmd.Type)
	}
}

func (r *Room) maybeReady() {
	if r.state.Phase != state.PhaseWaiting {
		return
	}
	if len(r.state.Players) == 0 {
		return
	}
	for _, p := range r.state.Players {
		if p.Connected && !p.Ready {
			return
		}
	}
	r.state.Phase = state.PhaseReady
	r.broadcast(protocol.PhaseChanged{Phase: state.PhaseReady})
}

func (r *Room) fillBots() {
	added := false
	for i := 1; len(r.state.Players) < roomCapacity; i++ {
		id := uuid.NewString()
		p := state.Player{ID: id, Name: botName(i), Role: state.RoleMember, Ready: true, Connected: true}
		r.state.Players[id] = p
		r.broadcast(protocol.RosterDelta{Player: p})
		added = true
	}
	if added {
		r.maybeReady()
	}
}

func (r *Room) submitProposal(playerID string, cmd protocol.Command) {
	if r.state.Phase != state.PhaseDiscussion {
		r.sendError(playerID, "proposals are only open during discussion")
		return
	}
	if r.state.Event == nil || !r.state.OptionOnEvent(cmd.OptionID) {
		r.sendError(playerID, "unknown option")
		return
	}
	pr := state.Proposal{
		ID:         uuid.NewString(),
		AuthorID:   playerID,
		AuthorName: r.state.Players[playerID].Name,
		OptionID:   cmd.OptionID,
		Rationale:  cmd.Rationale,
		Votes:      map[string]state.VoteChoice{},
	}
	r.state.Proposals[pr.ID] = pr
	r.broadcast(protocol.ProposalCreated{Proposal: pr})
}

func (r *Room) castVote(playerID string, cmd protocol.Command) {
	if r.state.Phase != state.PhaseVoting {
		r.sendError(playerID, "voting is not open")
		return
	}
	pr, ok := r.state.Proposals[cmd.ProposalID]
	if !ok {
		r.sendError(playerID, "unknown proposal")
		return
	}
	if !state.ValidChoice(cmd.Choice) {
		r.sendError(playerID, "invalid choice")
		return
	}
	pr.Votes[playerID] = cmd.Choice
	r.broadcast(protocol.VoteUpdated{ProposalID: pr.ID, VoterID: playerID, Choice: cmd.Choice})
}

// advancePhase is the scripted turn engine: each timer expiry moves the
// session one step along countdown -> round -> discussion -> voting ->
// resolution, looping rounds until the script runs out.
func (r *Room) advancePhase() {
	switch r.state.Phase {
	case state.PhaseCountdown:
		r.startRound(1)

	case state.PhaseEventOpened:
		r.state.Phase = state.PhaseDiscussion
		r.broadcast(protocol.DiscussionStarted{DurationSec: discussionSec})
		r.arm(discussionSec)

	case state.PhaseDiscussion:
		r.state.Phase = state.PhaseVoting
		r.broadcast(protocol.VotingStarted{DurationSec: votingSec})
		r.arm(votingSec)

	case state.PhaseVoting:
		r.resolveRound()

	case state.PhaseRoundEnd:
		if r.state.Round < r.state.TotalRounds {
			r.startRound(r.state.Round + 1)
			return
		}
		r.endSession()
	}
}

func (r *Room) startRound(round int) {
	ev := r.script[round-1]
	r.state.Phase = state.PhaseEventOpened
	r.state.Round = round
	r.state.Event = &ev
	r.state.Proposals = map[string]state.Proposal{}
	r.broadcast(protocol.RoundStarted{Round: round, Event: ev, DurationSec: eventOpenSec})
	r.arm(eventOpenSec)
}

// resolveRound tallies affirmations, applies the winning option's effect
// preview to the resources, and closes the round. Production uses a richer
// rule set; for a loopback peer most-affirmed is enough.
func (r *Room) resolveRound() {
	var winner *state.Proposal
	best := -1
	for id := range r.state.Proposals {
		pr := r.state.Proposals[id]
		affirms := 0
		for _, c := range pr.Votes {
			if c == state.VoteAffirm {
				affirms++
			}
		}
		if affirms > best {
			best = affirms
			winner = &pr
		}
	}

	if winner != nil && r.state.Event != nil {
		for _, o := range r.state.Event.Options {
			if o.ID == winner.OptionID {
				r.state.Resources = addResources(r.state.Resources, o.Effects)
				break
			}
		}
	}

	r.state.Phase = state.PhaseRoundEnd
	r.broadcast(protocol.RoundResolved{Resources: r.state.Resources})
	r.arm(2)
}

func (r *Room) endSession() {
	r.disarm()
	r.state.Phase = state.PhaseResult
	result := state.Result{Outcome: outcomeFor(r.state.Resources), Summary: "the community made it through", Final: r.state.Resources}
	r.state.Result = &result
	r.broadcast(protocol.SessionEnded{Result: result})
}

func (r *Room) arm(sec int) {
	r.disarm()
	r.timerGen++
	gen := r.timerGen
	r.timer = time.AfterFunc(time.Duration(sec)*time.Second, func() {
		select {
		case r.inbox <- timerFired{gen: gen}:
		case <-r.ctx.Done():
		}
	})
}

func (r *Room) disarm() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.timerGen++
}

func (r *Room) broadcast(ev protocol.Event) {
	frame, err := protocol.EncodeEvent(ev)
	if err != nil {
		r.log.Warnw("encode failed", "err", err)
		return
	}
	for id, ch := range r.clients {
		select {
		case ch <- frame:
		default:
			// Client is slow/full - drop them.
			close(ch)
			delete(r.clients, id)
		}
	}
}

func (r *Room) sendError(playerID, msg string) {
	out, ok := r.clients[playerID]
	if !ok {
		return
	}
	frame, err := protocol.EncodeEvent(protocol.ServerError{Message: msg})
	if err != nil {
		return
	}
	select {
	case out <- frame:
	default:
	}
}

func (r *Room) shutdown() {
	r.disarm()
	for id, ch := range r.clients {
		close(ch)
		delete(r.clients, id)
	}
	r.cancel()
}

func addResources(a, b state.Resources) state.Resources {
	return state.Resources{
		Treasury:       clampGauge(a.Treasury + b.Treasury),
		Welfare:        clampGauge(a.Welfare + b.Welfare),
		Stability:      clampGauge(a.Stability + b.Stability),
		Infrastructure: clampGauge(a.Infrastructure + b.Infrastructure),
	}
}

func clampGauge(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func outcomeFor(res state.Resources) string {
	if res.Welfare >= 50 && res.Stability >= 50 {
		return "flourishing"
	}
	if res.Treasury == 0 || res.Stability == 0 {
		return "collapsed"
	}
	return "surviving"
}

func botName(i int) string {
	names := []string{"aras-bot", "deniz-bot", "kaya-bot", "ege-bot", "toprak-bot"}
	return names[(i-1)%len(names)]
}
