package state

import "time"

// ChatCapacity bounds the chat log; the oldest messages are evicted first.
const ChatCapacity = 100

type Role string

const (
	RoleFounder Role = "founder"
	RoleMember  Role = "member"
)

// Player is one roster entry. Players are never removed on disconnect, only
// marked disconnected, so a rejoin reuses the same identity.
type Player struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Role      Role   `json:"role"`
	Ready     bool   `json:"ready"`
	Connected bool   `json:"connected"`
}

// Resources is the shared resource vector. The client treats it as an opaque
// replaceable snapshot and never computes deltas itself.
type Resources struct {
	Treasury       int `json:"treasury"`
	Welfare        int `json:"welfare"`
	Stability      int `json:"stability"`
	Infrastructure int `json:"infrastructure"`
}

// Option is one selectable response on a scripted event. Effects is a
// preview supplied by the server; the authoritative outcome still arrives
// via round resolution.
type Option struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Effects     Resources `json:"effects"`
}

// ScriptedEvent is the situation presented for one round.
type ScriptedEvent struct {
	ID          string   `json:"id"`
	Category    string   `json:"category"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Options     []Option `json:"options"`
}

type VoteChoice string

const (
	VoteAffirm  VoteChoice = "affirm"
	VoteReject  VoteChoice = "reject"
	VoteAbstain VoteChoice = "abstain"
)

// ValidChoice reports whether c is one of the three allowed vote choices.
func ValidChoice(c VoteChoice) bool {
	return c == VoteAffirm || c == VoteReject || c == VoteAbstain
}

// Proposal is a player-authored response referencing one option of the
// active scripted event. Votes is keyed by voter id; a later vote from the
// same voter replaces the earlier one.
type Proposal struct {
	ID         string                `json:"id"`
	AuthorID   string                `json:"authorId"`
	AuthorName string                `json:"authorName"`
	OptionID   string                `json:"optionId"`
	Rationale  string                `json:"rationale"`
	Votes      map[string]VoteChoice `json:"votes"`
}

type ChatMessage struct {
	ID         string    `json:"id"`
	AuthorID   string    `json:"authorId"`
	AuthorName string    `json:"authorName"`
	Text       string    `json:"text"`
	SentAt     time.Time `json:"sentAt"`
}

// Result is the terminal outcome declared by the server when a session ends.
type Result struct {
	Outcome string    `json:"outcome"`
	Summary string    `json:"summary"`
	Final   Resources `json:"final"`
}

// Session is the authoritative state mirror: the single source of truth for
// the local view. It is mutated only by the reducer pipeline; everything
// else reads value snapshots.
type Session struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	JoinCode string `json:"joinCode"`

	Phase       Phase `json:"phase"`
	Round       int   `json:"round"`
	TotalRounds int   `json:"totalRounds"`

	Resources Resources           `json:"resources"`
	Players   map[string]Player   `json:"players"`
	Event     *ScriptedEvent      `json:"event,omitempty"`
	Proposals map[string]Proposal `json:"proposals"`
	Chat      []ChatMessage       `json:"chat"`

	// Deadline is the countdown anchor: an absolute server-issued deadline,
	// zero when no countdown is running.
	Deadline time.Time `json:"deadline"`

	Result *Result `json:"result,omitempty"`

	// SelectedOptionID is the locally chosen but not yet submitted option.
	// It is the only client-local field; round start resets it.
	SelectedOptionID string `json:"selectedOptionId,omitempty"`

	// LastError holds the most recent server-emitted protocol error,
	// surfaced verbatim. The session remains joined.
	LastError string `json:"lastError,omitempty"`
}

// NewSession returns the empty mirror created on connect, before the first
// snapshot arrives.
func NewSession(id string) Session {
	return Session{
		ID:        id,
		Phase:     PhaseWaiting,
		Players:   map[string]Player{},
		Proposals: map[string]Proposal{},
		Chat:      []ChatMessage{},
	}
}

// Clone returns a deep copy. Reducers clone before mutating so every
// snapshot handed to subscribers is immutable.
func (s Session) Clone() Session {
	next := s
	next.Players = make(map[string]Player, len(s.Players))
	for id, p := range s.Players {
		next.Players[id] = p
	}
	next.Proposals = make(map[string]Proposal, len(s.Proposals))
	for id, pr := range s.Proposals {
		cp := pr
		cp.Votes = make(map[string]VoteChoice, len(pr.Votes))
		for voter, choice := range pr.Votes {
			cp.Votes[voter] = choice
		}
		next.Proposals[id] = cp
	}
	next.Chat = make([]ChatMessage, len(s.Chat))
	copy(next.Chat, s.Chat)
	if s.Event != nil {
		ev := *s.Event
		ev.Options = make([]Option, len(s.Event.Options))
		copy(ev.Options, s.Event.Options)
		next.Event = &ev
	}
	if s.Result != nil {
		res := *s.Result
		next.Result = &res
	}
	return next
}

// Remaining derives the visible countdown from the deadline anchor. It is
// recomputed on every tick so redelivered phase-entry events with an
// unchanged deadline cannot reset it, and it clamps at zero.
func (s Session) Remaining(now time.Time) time.Duration {
	if s.Deadline.IsZero() {
		return 0
	}
	if d := s.Deadline.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Proposal returns the proposal with the given id, if known.
func (s Session) Proposal(id string) (Proposal, bool) {
	pr, ok := s.Proposals[id]
	return pr, ok
}

// OptionOnEvent reports whether the active scripted event carries the
// given option id.
func (s Session) OptionOnEvent(optionID string) bool {
	if s.Event == nil {
		return false
	}
	for _, o := range s.Event.Options {
		if o.ID == optionID {
			return true
		}
	}
	return false
}
