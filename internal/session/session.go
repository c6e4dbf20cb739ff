// Package session hosts the session context: a single goroutine that owns
// the authoritative state mirror. Inbound events, local intents, and
// subscriptions all arrive on one inbox, so the mirror has exactly one
// writer and every snapshot handed out is complete.
package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/topluluk-game/sync-client/internal/dispatch"
	"github.com/topluluk-game/sync-client/internal/protocol"
	"github.com/topluluk-game/sync-client/internal/reduce"
	"github.com/topluluk-game/sync-client/internal/state"
)

// DefaultTick is how often the countdown view is refreshed. The deadline
// itself is fixed; only the derived remaining time moves between ticks.
const DefaultTick = 250 * time.Millisecond

const sendTimeout = 3 * time.Second

type Msg interface{ isSessionMsg() }

// Inbound carries one decoded server event into the reducer pipeline.
type Inbound struct {
	Event protocol.Event
}

// Intent carries a local player intent. If Err is non-nil it receives the
// validation outcome; the command itself stays fire-and-forget.
type Intent struct {
	Intent dispatch.Intent
	Err    chan error
}

// Subscribe registers a snapshot outbox. The current snapshot is delivered
// immediately on registration.
type Subscribe struct {
	ID     string
	Outbox chan Snapshot
}

type Unsubscribe struct{ ID string }

// Select records the locally chosen option for the active scripted event.
// It is the one client-local mirror field; it still funnels through the
// actor so the mirror keeps a single writer.
type Select struct{ OptionID string }

// GetView reflects internal state without data races; test-only.
type GetView struct {
	Reply chan View
}

type Shutdown struct{}

func (Inbound) isSessionMsg()     {}
func (Select) isSessionMsg()      {}
func (Intent) isSessionMsg()      {}
func (Subscribe) isSessionMsg()   {}
func (Unsubscribe) isSessionMsg() {}
func (GetView) isSessionMsg()     {}
func (Shutdown) isSessionMsg()    {}

// Snapshot is one immutable view of the mirror plus the derived countdown.
type Snapshot struct {
	Version   int
	State     state.Session
	Remaining time.Duration
}

type View struct {
	Version        int
	NumSubscribers int
	State          state.Session
}

// Sender is the outbound half of the channel; the transport implements it.
type Sender interface {
	Send(ctx context.Context, cmd protocol.Command) error
}

type Option func(*Session)

// WithClock injects the time source; tests pin it.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithTick overrides the countdown refresh interval.
func WithTick(d time.Duration) Option {
	return func(s *Session) { s.tick = d }
}

type Session struct {
	inbox   chan Msg
	state   state.Session
	version int
	selfID  string
	subs    map[string]chan Snapshot
	sender  Sender
	now     func() time.Time
	tick    time.Duration
	log     *zap.SugaredLogger
	ctx     context.Context
	cancel  context.CancelFunc
}

// New starts the session context for one joined session. It is destroyed on
// leave or disconnect; nothing survives teardown.
func New(parent context.Context, sessionID, selfID string, sender Sender, log *zap.SugaredLogger, opts ...Option) *Session {
	ctx, cancel := context.WithCancel(parent)

	s := &Session{
		inbox:  make(chan Msg, 64),
		state:  state.NewSession(sessionID),
		selfID: selfID,
		subs:   make(map[string]chan Snapshot),
		sender: sender,
		now:    time.Now,
		tick:   DefaultTick,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.loop()
	return s
}

// Inbox exposes the actor mailbox to the transport feed and to tests.
func (s *Session) Inbox() chan<- Msg { return s.inbox }

func (s *Session) loop() {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case <-ticker.C:
			// Drift-free countdown: recompute from the fixed deadline.
			if !s.state.Deadline.IsZero() {
				s.broadcast()
			}

		case m := <-s.inbox:
			switch msg := m.(type) {
			case Inbound:
				next, changed := reduce.Apply(s.state, msg.Event, s.now())
				if !changed {
					s.log.Debugw("event absorbed", "event", eventName(msg.Event), "phase", s.state.Phase)
					break
				}
				s.state = next
				s.version++
				s.broadcast()

			case Intent:
				err := dispatch.Validate(s.state, s.selfID, msg.Intent)
				if err == nil {
					err = s.send(dispatch.Command(msg.Intent))
				} else {
					s.log.Infow("intent rejected", "reason", err, "phase", s.state.Phase)
				}
				if msg.Err != nil {
					msg.Err <- err
				}

			case Select:
				if msg.OptionID != s.state.SelectedOptionID && s.state.OptionOnEvent(msg.OptionID) {
					s.state = s.state.Clone()
					s.state.SelectedOptionID = msg.OptionID
					s.version++
					s.broadcast()
				}

			case Subscribe:
				s.subs[msg.ID] = msg.Outbox
				msg.Outbox <- s.snapshot()

			case Unsubscribe:
				delete(s.subs, msg.ID)

			case GetView:
				msg.Reply <- View{
					Version:        s.version,
					NumSubscribers: len(s.subs),
					State:          s.state.Clone(),
				}

			case Shutdown:
				s.shutdown()
				return
			}
		}
	}
}

func (s *Session) send(cmd protocol.Command) error {
	ctx, cancel := context.WithTimeout(s.ctx, sendTimeout)
	defer cancel()
	if err := s.sender.Send(ctx, cmd); err != nil {
		s.log.Warnw("command send failed", "command", cmd.Type, "err", err)
		return err
	}
	return nil
}

func (s *Session) snapshot() Snapshot {
	return Snapshot{
		Version:   s.version,
		State:     s.state.Clone(),
		Remaining: s.state.Remaining(s.now()),
	}
}

func (s *Session) broadcast() {
	snap := s.snapshot()
	for id, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			// Subscriber is slow/full - drop them.
			close(ch)
			delete(s.subs, id)
		}
	}
}

func (s *Session) shutdown() {
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.cancel()
}

func eventName(ev protocol.Event) string {
	env, err := protocol.EncodeEnvelope(ev)
	if err != nil {
		return "unknown"
	}
	return env.Type
}
