package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRemainingIsMonotonicAndClampsAtZero(t *testing.T) {
	t0 := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	s := NewSession("sess-1")
	s.Deadline = t0.Add(10 * time.Second)

	prev := s.Remaining(t0)
	require.Equal(t, 10*time.Second, prev)

	for tick := time.Second; tick <= 15*time.Second; tick += time.Second {
		cur := s.Remaining(t0.Add(tick))
		require.LessOrEqual(t, cur, prev, "remaining must never increase for a fixed deadline")
		require.GreaterOrEqual(t, cur, time.Duration(0), "remaining must never go negative")
		prev = cur
	}
	require.Equal(t, time.Duration(0), s.Remaining(t0.Add(15*time.Second)))
}

func TestRemainingWithoutDeadline(t *testing.T) {
	s := NewSession("sess-1")
	require.Equal(t, time.Duration(0), s.Remaining(time.Now()))
}

func TestCloneIsDeep(t *testing.T) {
	s := NewSession("sess-1")
	s.Players["p1"] = Player{ID: "p1", Name: "aslı"}
	s.Proposals["pr1"] = Proposal{ID: "pr1", Votes: map[string]VoteChoice{"p1": VoteAffirm}}
	s.Chat = append(s.Chat, ChatMessage{ID: "m1"})
	ev := ScriptedEvent{ID: "evt-1", Options: []Option{{ID: "opt-a"}}}
	s.Event = &ev

	c := s.Clone()
	c.Players["p2"] = Player{ID: "p2"}
	c.Proposals["pr1"].Votes["p1"] = VoteReject
	c.Chat[0].Text = "edited"
	c.Event.Options[0].ID = "opt-z"

	require.Len(t, s.Players, 1)
	require.Equal(t, VoteAffirm, s.Proposals["pr1"].Votes["p1"])
	require.Empty(t, s.Chat[0].Text)
	require.Equal(t, "opt-a", s.Event.Options[0].ID)
}

func TestOptionOnEvent(t *testing.T) {
	s := NewSession("sess-1")
	require.False(t, s.OptionOnEvent("opt-a"), "no active event")

	s.Event = &ScriptedEvent{ID: "evt-1", Options: []Option{{ID: "opt-a"}}}
	require.True(t, s.OptionOnEvent("opt-a"))
	require.False(t, s.OptionOnEvent("opt-b"))
}
