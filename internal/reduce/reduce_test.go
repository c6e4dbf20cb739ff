package reduce

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/topluluk-game/sync-client/internal/protocol"
	"github.com/topluluk-game/sync-client/internal/state"
)

var t0 = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func scriptedEvent() state.ScriptedEvent {
	return state.ScriptedEvent{
		ID:    "evt-1",
		Title: "Drought",
		Options: []state.Option{
			{ID: "opt-a", Title: "Ration water"},
			{ID: "opt-b", Title: "Dig wells"},
		},
	}
}

// inDiscussion builds a mirror mid-round with one open proposal.
func inDiscussion(t *testing.T) state.Session {
	t.Helper()
	s := state.NewSession("sess-1")
	s.Phase = state.PhaseDiscussion
	ev := scriptedEvent()
	s.Event = &ev
	s.Players["p1"] = state.Player{ID: "p1", Name: "aslı", Role: state.RoleFounder, Connected: true}
	s.Proposals["pr1"] = state.Proposal{
		ID: "pr1", AuthorID: "p1", OptionID: "opt-a",
		Votes: map[string]state.VoteChoice{},
	}
	return s
}

func TestEveryReducerIsIdempotent(t *testing.T) {
	voting := inDiscussion(t)
	voting.Phase = state.PhaseVoting

	countdownBase := state.NewSession("sess-1")
	countdownBase.Phase = state.PhaseReady

	cases := []struct {
		name string
		base state.Session
		ev   protocol.Event
	}{
		{"roster delta", state.NewSession("sess-1"),
			protocol.RosterDelta{Player: state.Player{ID: "p9", Name: "kerem", Role: state.RoleMember, Connected: true}}},
		{"ready delta", inDiscussion(t),
			protocol.ReadyDelta{PlayerID: "p1", Ready: true}},
		{"countdown started", countdownBase,
			protocol.CountdownStarted{DurationSec: 10}},
		{"round started", func() state.Session {
			s := state.NewSession("sess-1")
			s.Phase = state.PhaseCountdown
			return s
		}(),
			protocol.RoundStarted{Round: 1, Event: scriptedEvent(), DurationSec: 60}},
		{"discussion started", func() state.Session {
			s := inDiscussion(t)
			s.Phase = state.PhaseEventOpened
			return s
		}(),
			protocol.DiscussionStarted{DurationSec: 45}},
		{"proposal created", inDiscussion(t),
			protocol.ProposalCreated{Proposal: state.Proposal{ID: "pr2", AuthorID: "p1", OptionID: "opt-b"}}},
		{"voting started", inDiscussion(t),
			protocol.VotingStarted{DurationSec: 30}},
		{"vote updated", voting,
			protocol.VoteUpdated{ProposalID: "pr1", VoterID: "p1", Choice: state.VoteAffirm}},
		{"round resolved", voting,
			protocol.RoundResolved{Resources: state.Resources{Treasury: 40, Welfare: 55, Stability: 60, Infrastructure: 45}}},
		{"session ended", inDiscussion(t),
			protocol.SessionEnded{Result: state.Result{Outcome: "flourishing"}}},
		{"chat message", state.NewSession("sess-1"),
			protocol.ChatPosted{Message: state.ChatMessage{ID: "m1", AuthorID: "p1", Text: "merhaba"}}},
		{"phase changed", state.NewSession("sess-1"),
			protocol.PhaseChanged{Phase: state.PhaseReady}},
		{"server error", state.NewSession("sess-1"),
			protocol.ServerError{Message: "slow down"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			once, changed := Apply(tc.base, tc.ev, t0)
			require.True(t, changed, "first application should change the mirror")

			twice, changedAgain := Apply(once, tc.ev, t0.Add(2*time.Second))
			require.False(t, changedAgain, "second application should be a no-op")
			require.Equal(t, once, twice)
		})
	}
}

func TestSnapshotSupremacy(t *testing.T) {
	s := state.NewSession("sess-1")

	// Partial patches first, in a jumbled order.
	s, _ = Apply(s, protocol.RosterDelta{Player: state.Player{ID: "p1", Name: "aslı", Connected: true}}, t0)
	s, _ = Apply(s, protocol.ChatPosted{Message: state.ChatMessage{ID: "m1", Text: "hi"}}, t0)
	s, _ = Apply(s, protocol.PhaseChanged{Phase: state.PhaseReady}, t0)

	snap := state.NewSession("sess-1")
	snap.Phase = state.PhaseResolving
	snap.Round = 3
	snap.TotalRounds = 5
	snap.Resources = state.Resources{Treasury: 12, Welfare: 80, Stability: 44, Infrastructure: 61}
	snap.Players["p2"] = state.Player{ID: "p2", Name: "deniz", Role: state.RoleMember, Connected: true}

	got, changed := Apply(s, protocol.FullSnapshot{Session: snap}, t0)
	require.True(t, changed)
	require.Equal(t, snap, got, "mirror must equal the snapshot content regardless of prior patches")

	// Applying the same snapshot again converges on the same mirror.
	again, _ := Apply(got, protocol.FullSnapshot{Session: snap}, t0.Add(time.Second))
	require.Equal(t, got, again)
}

func TestSnapshotBypassesPhaseGraph(t *testing.T) {
	// Connection dropped mid-VOTING; on reconnect the server's snapshot says
	// RESOLVING. The mirror jumps there without the intermediate transition.
	s := inDiscussion(t)
	s.Phase = state.PhaseVoting

	snap := s.Clone()
	snap.Phase = state.PhaseResolving

	got, changed := Apply(s, protocol.FullSnapshot{Session: snap}, t0)
	require.True(t, changed)
	require.Equal(t, state.PhaseResolving, got.Phase)
}

func TestPhaseMonotonicity(t *testing.T) {
	s := state.NewSession("sess-1")
	events := []protocol.Event{
		protocol.PhaseChanged{Phase: state.PhaseReady},
		protocol.CountdownStarted{DurationSec: 5},
		protocol.RoundStarted{Round: 1, Event: scriptedEvent(), DurationSec: 10},
		protocol.DiscussionStarted{DurationSec: 30},
		// Stale redelivery from before the round: must not rewind.
		protocol.CountdownStarted{DurationSec: 5},
		protocol.PhaseChanged{Phase: state.PhaseReady},
		protocol.VotingStarted{DurationSec: 20},
	}

	rank := map[state.Phase]int{
		state.PhaseWaiting: 0, state.PhaseReady: 1, state.PhaseCountdown: 2,
		state.PhaseEventOpened: 3, state.PhaseDiscussion: 4, state.PhaseVoting: 5,
	}

	prev := rank[s.Phase]
	for _, ev := range events {
		s, _ = Apply(s, ev, t0)
		cur := rank[s.Phase]
		require.GreaterOrEqual(t, cur, prev, "phase rewound on %T", ev)
		prev = cur
	}
	require.Equal(t, state.PhaseVoting, s.Phase)
}

func TestStalePhaseEventIsDropped(t *testing.T) {
	s := inDiscussion(t)
	s.Phase = state.PhaseVoting

	got, changed := Apply(s, protocol.DiscussionStarted{DurationSec: 30}, t0)
	require.False(t, changed)
	require.Equal(t, s, got)
}

func TestVoteUniquenessLastWriteWins(t *testing.T) {
	s := inDiscussion(t)
	s.Phase = state.PhaseVoting

	s, changed := Apply(s, protocol.VoteUpdated{ProposalID: "pr1", VoterID: "p1", Choice: state.VoteAffirm}, t0)
	require.True(t, changed)
	s, changed = Apply(s, protocol.VoteUpdated{ProposalID: "pr1", VoterID: "p1", Choice: state.VoteReject}, t0)
	require.True(t, changed)

	pr := s.Proposals["pr1"]
	require.Len(t, pr.Votes, 1, "one voter must hold exactly one vote")
	require.Equal(t, state.VoteReject, pr.Votes["p1"])
}

func TestVoteOnUnknownProposalIsAbsorbed(t *testing.T) {
	s := inDiscussion(t)
	s.Phase = state.PhaseVoting

	got, changed := Apply(s, protocol.VoteUpdated{ProposalID: "nope", VoterID: "p1", Choice: state.VoteAffirm}, t0)
	require.False(t, changed)
	require.Equal(t, s, got)
}

func TestDuplicateRoundStartedKeepsCountdown(t *testing.T) {
	s := state.NewSession("sess-1")
	s.Phase = state.PhaseCountdown

	started := protocol.RoundStarted{Round: 1, Event: scriptedEvent(), DurationSec: 60}
	s, changed := Apply(s, started, t0)
	require.True(t, changed)
	wantDeadline := t0.Add(60 * time.Second)
	require.Equal(t, wantDeadline, s.Deadline)

	// Duplicate arrives 2 seconds later: round, event and deadline stand.
	got, changed := Apply(s, started, t0.Add(2*time.Second))
	require.False(t, changed)
	require.Equal(t, 1, got.Round)
	require.Equal(t, "evt-1", got.Event.ID)
	require.Equal(t, wantDeadline, got.Deadline, "countdown must not reset on duplicate delivery")
}

func TestRoundStartClearsRoundScopedState(t *testing.T) {
	s := inDiscussion(t)
	s.Phase = state.PhaseRoundEnd
	s.Round = 1
	s.SelectedOptionID = "opt-a"

	next := state.ScriptedEvent{ID: "evt-2", Title: "Market", Options: []state.Option{{ID: "opt-c"}}}
	s, changed := Apply(s, protocol.RoundStarted{Round: 2, Event: next, DurationSec: 30}, t0)
	require.True(t, changed)

	require.Equal(t, 2, s.Round)
	require.Equal(t, "evt-2", s.Event.ID)
	require.Empty(t, s.Proposals, "proposals are round-scoped")
	require.Empty(t, s.SelectedOptionID, "unsubmitted local selection resets at round start")
	require.Equal(t, t0.Add(30*time.Second), s.Deadline)
}

func TestRoundResolvedReplacesResources(t *testing.T) {
	s := inDiscussion(t)
	s.Phase = state.PhaseVoting
	s.Resources = state.Resources{Treasury: 50, Welfare: 50, Stability: 50, Infrastructure: 50}

	want := state.Resources{Treasury: 35, Welfare: 60, Stability: 45, Infrastructure: 55}
	s, changed := Apply(s, protocol.RoundResolved{Resources: want}, t0)
	require.True(t, changed)
	require.Equal(t, want, s.Resources, "the vector is replaced, never recomputed locally")
	require.Equal(t, state.PhaseRoundEnd, s.Phase)
	require.True(t, s.Deadline.IsZero())
}

func TestSessionEndedFromAnyNonTerminalPhase(t *testing.T) {
	for _, phase := range []state.Phase{state.PhaseWaiting, state.PhaseDiscussion, state.PhaseVoting} {
		s := inDiscussion(t)
		s.Phase = phase

		s, changed := Apply(s, protocol.SessionEnded{Result: state.Result{Outcome: "collapsed"}}, t0)
		require.True(t, changed, "from %s", phase)
		require.Equal(t, state.PhaseResult, s.Phase)
		require.Equal(t, "collapsed", s.Result.Outcome)
	}
}

func TestChatLogIsBounded(t *testing.T) {
	s := state.NewSession("sess-1")

	total := state.ChatCapacity + 25
	for i := 0; i < total; i++ {
		msg := state.ChatMessage{ID: fmt.Sprintf("m%d", i), Text: fmt.Sprintf("msg %d", i)}
		s, _ = Apply(s, protocol.ChatPosted{Message: msg}, t0)
	}

	require.Len(t, s.Chat, state.ChatCapacity)
	require.Equal(t, fmt.Sprintf("m%d", total-state.ChatCapacity), s.Chat[0].ID, "oldest surviving message")
	require.Equal(t, fmt.Sprintf("m%d", total-1), s.Chat[len(s.Chat)-1].ID, "newest message last")
}

func TestCountdownUpdatedReanchorsDeadline(t *testing.T) {
	s := state.NewSession("sess-1")
	s.Phase = state.PhaseReady
	s, _ = Apply(s, protocol.CountdownStarted{DurationSec: 10}, t0)

	now := t0.Add(time.Second)
	s, changed := Apply(s, protocol.CountdownUpdated{DurationSec: 7}, now)
	require.True(t, changed)
	require.Equal(t, state.PhaseCountdown, s.Phase, "adjustment carries no phase transition")
	require.Equal(t, now.Add(7*time.Second), s.Deadline)

	// Immediate redelivery resolves to the same deadline and is absorbed.
	got, changed := Apply(s, protocol.CountdownUpdated{DurationSec: 7}, now)
	require.False(t, changed)
	require.Equal(t, s, got)

	// Outside COUNTDOWN the adjustment is stale.
	stale := inDiscussion(t)
	got, changed = Apply(stale, protocol.CountdownUpdated{DurationSec: 7}, now)
	require.False(t, changed)
	require.Equal(t, stale, got)
}

func TestCountdownCancelledRevertsPhase(t *testing.T) {
	s := state.NewSession("sess-1")
	s.Phase = state.PhaseReady
	s, _ = Apply(s, protocol.CountdownStarted{DurationSec: 10}, t0)
	require.Equal(t, state.PhaseCountdown, s.Phase)

	s, changed := Apply(s, protocol.CountdownCancelled{}, t0.Add(3*time.Second))
	require.True(t, changed)
	require.Equal(t, state.PhaseReady, s.Phase)
	require.True(t, s.Deadline.IsZero())

	// Cancellation outside countdown is stale and absorbed.
	_, changed = Apply(s, protocol.CountdownCancelled{}, t0.Add(4*time.Second))
	require.False(t, changed)
}

func TestRosterDeltaMarksDisconnectedInsteadOfRemoving(t *testing.T) {
	s := state.NewSession("sess-1")
	p := state.Player{ID: "p1", Name: "aslı", Role: state.RoleMember, Connected: true}
	s, _ = Apply(s, protocol.RosterDelta{Player: p}, t0)

	p.Connected = false
	s, changed := Apply(s, protocol.RosterDelta{Player: p}, t0)
	require.True(t, changed)
	require.Len(t, s.Players, 1, "disconnect keeps the roster entry")
	require.False(t, s.Players["p1"].Connected)
}

func TestReadyDeltaUnknownPlayerAbsorbed(t *testing.T) {
	s := state.NewSession("sess-1")
	got, changed := Apply(s, protocol.ReadyDelta{PlayerID: "ghost", Ready: true}, t0)
	require.False(t, changed)
	require.Equal(t, s, got)
}

func TestReplayIsDeterministic(t *testing.T) {
	log := []protocol.Event{
		protocol.RosterDelta{Player: state.Player{ID: "p1", Name: "aslı", Role: state.RoleFounder, Connected: true}},
		protocol.ReadyDelta{PlayerID: "p1", Ready: true},
		protocol.PhaseChanged{Phase: state.PhaseReady},
		protocol.CountdownStarted{DurationSec: 5},
		protocol.RoundStarted{Round: 1, Event: scriptedEvent(), DurationSec: 10},
		protocol.DiscussionStarted{DurationSec: 30},
		protocol.ProposalCreated{Proposal: state.Proposal{ID: "pr1", AuthorID: "p1", OptionID: "opt-a"}},
		protocol.VotingStarted{DurationSec: 20},
		protocol.VoteUpdated{ProposalID: "pr1", VoterID: "p1", Choice: state.VoteAffirm},
	}

	a := Replay("sess-1", log, t0)
	b := Replay("sess-1", log, t0)
	require.Equal(t, a, b)
	require.Equal(t, state.PhaseVoting, a.Phase)
	require.Equal(t, state.VoteAffirm, a.Proposals["pr1"].Votes["p1"])
}

func TestReducerDoesNotAliasInputState(t *testing.T) {
	s := inDiscussion(t)
	next, changed := Apply(s, protocol.VoteUpdated{ProposalID: "pr1", VoterID: "p1", Choice: state.VoteAbstain}, t0)
	_ = changed

	// Mutating the result must not leak back into the input mirror.
	next.Proposals["pr1"].Votes["p1"] = state.VoteReject
	require.Empty(t, s.Proposals["pr1"].Votes, "input mirror must stay untouched")
}
