package state

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPhaseTransitions(t *testing.T) {
	cases := []struct {
		name string
		from Phase
		to   Phase
		want bool
	}{
		{"waiting to ready", PhaseWaiting, PhaseReady, true},
		{"ready to countdown", PhaseReady, PhaseCountdown, true},
		{"countdown cancel back to ready", PhaseCountdown, PhaseReady, true},
		{"countdown to bot fill", PhaseCountdown, PhaseBotFill, true},
		{"countdown straight to event opened", PhaseCountdown, PhaseEventOpened, true},
		{"discussion to voting", PhaseDiscussion, PhaseVoting, true},
		{"voting may skip resolving", PhaseVoting, PhaseRoundEnd, true},
		{"round end loops to next round", PhaseRoundEnd, PhaseEventOpened, true},
		{"round end to result", PhaseRoundEnd, PhaseResult, true},
		{"result to completed", PhaseResult, PhaseCompleted, true},
		{"no rewind voting to discussion", PhaseVoting, PhaseDiscussion, false},
		{"no skip waiting to voting", PhaseWaiting, PhaseVoting, false},
		{"abandoned from mid game", PhaseDiscussion, PhaseAbandoned, true},
		{"abandoned not from completed", PhaseCompleted, PhaseAbandoned, false},
		{"nothing after abandoned", PhaseAbandoned, PhaseWaiting, false},
		{"phase is not its own successor", PhaseVoting, PhaseVoting, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.from.CanAdvanceTo(tc.to))
		})
	}
}

func TestParsePhaseAcceptsBothVocabularies(t *testing.T) {
	cases := []struct {
		wire string
		want Phase
	}{
		{"TUR_BASI", PhaseRoundStart},
		{"ROUND_START", PhaseRoundStart},
		{"OLAY_ACILISI", PhaseEventOpened},
		{"EVENT_OPENED", PhaseEventOpened},
		{"TARTISMA", PhaseDiscussion},
		{"DISCUSSION", PhaseDiscussion},
		{"OYLAMA", PhaseVoting},
		{"VOTING", PhaseVoting},
		{"TUR_SONU", PhaseRoundEnd},
		{"ROUND_END", PhaseRoundEnd},
		{"WAITING", PhaseWaiting},
	}

	for _, tc := range cases {
		got, ok := ParsePhase(tc.wire)
		require.True(t, ok, tc.wire)
		require.Equal(t, tc.want, got)
	}

	_, ok := ParsePhase("LIMBO")
	require.False(t, ok)
}

func TestTerminalPhases(t *testing.T) {
	require.True(t, PhaseCompleted.Terminal())
	require.True(t, PhaseAbandoned.Terminal())
	require.False(t, PhaseResult.Terminal())
	require.False(t, PhaseWaiting.Terminal())
}
