package state

// Phase is the current stage of the session lifecycle. Exactly one phase is
// active at a time; transitions arrive as events, never as local decisions.
type Phase string

const (
	PhaseWaiting     Phase = "WAITING"
	PhaseReady       Phase = "READY"
	PhaseCountdown   Phase = "COUNTDOWN"
	PhaseBotFill     Phase = "BOT_FILL"
	PhaseRoundStart  Phase = "ROUND_START"
	PhaseEventOpened Phase = "EVENT_OPENED"
	PhaseDiscussion  Phase = "DISCUSSION"
	PhaseVoting      Phase = "VOTING"
	PhaseResolving   Phase = "RESOLVING"
	PhaseRoundEnd    Phase = "ROUND_END"
	PhaseResult      Phase = "RESULT"
	PhaseCompleted   Phase = "COMPLETED"
	PhaseAbandoned   Phase = "ABANDONED"
)

func (p Phase) String() string { return string(p) }

// Terminal reports whether no further phase can follow p.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseAbandoned
}

// successors declares the legal forward edges of the phase graph. The
// in-round chain loops via ROUND_END back to the next round; a round start
// may arrive as either ROUND_START or directly as EVENT_OPENED because the
// server opens the scripted event in the same message.
var successors = map[Phase][]Phase{
	PhaseWaiting:     {PhaseReady},
	PhaseReady:       {PhaseCountdown, PhaseWaiting},
	PhaseCountdown:   {PhaseBotFill, PhaseRoundStart, PhaseEventOpened, PhaseReady},
	PhaseBotFill:     {PhaseRoundStart, PhaseEventOpened},
	PhaseRoundStart:  {PhaseEventOpened},
	PhaseEventOpened: {PhaseDiscussion},
	PhaseDiscussion:  {PhaseVoting},
	PhaseVoting:      {PhaseResolving, PhaseRoundEnd},
	PhaseResolving:   {PhaseRoundEnd},
	PhaseRoundEnd:    {PhaseRoundStart, PhaseEventOpened, PhaseResult},
	PhaseResult:      {PhaseCompleted},
}

// CanAdvanceTo reports whether next is a legal successor of p. ABANDONED is
// reachable from every non-terminal phase. A phase is never its own
// successor; duplicate delivery is handled as a no-op by the caller.
func (p Phase) CanAdvanceTo(next Phase) bool {
	if next == PhaseAbandoned {
		return !p.Terminal()
	}
	for _, s := range successors[p] {
		if s == next {
			return true
		}
	}
	return false
}

// phaseAliases maps both naming generations of the wire vocabulary onto the
// canonical phases. The Turkish names are the historical ones; both are
// accepted forever as a backward-compatibility seam.
var phaseAliases = map[string]Phase{
	"WAITING":      PhaseWaiting,
	"READY":        PhaseReady,
	"COUNTDOWN":    PhaseCountdown,
	"BOT_FILL":     PhaseBotFill,
	"ROUND_START":  PhaseRoundStart,
	"TUR_BASI":     PhaseRoundStart,
	"EVENT_OPENED": PhaseEventOpened,
	"OLAY_ACILISI": PhaseEventOpened,
	"DISCUSSION":   PhaseDiscussion,
	"TARTISMA":     PhaseDiscussion,
	"VOTING":       PhaseVoting,
	"OYLAMA":       PhaseVoting,
	"RESOLVING":    PhaseResolving,
	"ROUND_END":    PhaseRoundEnd,
	"TUR_SONU":     PhaseRoundEnd,
	"RESULT":       PhaseResult,
	"COMPLETED":    PhaseCompleted,
	"ABANDONED":    PhaseAbandoned,
}

// ParsePhase normalizes a wire phase name, legacy or modern, to its
// canonical value.
func ParsePhase(name string) (Phase, bool) {
	p, ok := phaseAliases[name]
	return p, ok
}
