package threshold

import (
	"testing"

	"github.com/regimeflow/regimeflow/internal/regime"
	"github.com/stretchr/testify/require"
)

func TestUpdateStaysNeutralUntilWindowFull(t *testing.T) {
	tr := New(Config{Window: 3, BullReturn: 0.05, BearReturn: -0.05, CrisisReturn: -0.15})
	tr.Update(100, 1)
	tr.Update(101, 2)
	require.Equal(t, regime.Neutral, tr.CurrentState().Regime)
}

func TestUpdateClassifiesBullAndFiresTransition(t *testing.T) {
	tr := New(Config{Window: 2, BullReturn: 0.05, BearReturn: -0.05, CrisisReturn: -0.15})
	var transitions []regime.Transition
	tr.OnTransition(func(tn regime.Transition) { transitions = append(transitions, tn) })

	tr.Update(100, 1)
	tr.Update(110, 2) // return = 0.10 >= 0.05 => Bull

	require.Equal(t, regime.Bull, tr.CurrentState().Regime)
	require.Len(t, transitions, 1)
	require.Equal(t, regime.Neutral, transitions[0].From.Regime)
	require.Equal(t, regime.Bull, transitions[0].To.Regime)
}

func TestUpdateClassifiesCrisisBeforeBear(t *testing.T) {
	tr := New(Config{Window: 2, BullReturn: 0.05, BearReturn: -0.05, CrisisReturn: -0.15})
	tr.Update(100, 1)
	tr.Update(80, 2) // return = -0.20 <= -0.15 => Crisis, not Bear
	require.Equal(t, regime.Crisis, tr.CurrentState().Regime)
}

func TestUpdateNoTransitionWhenRegimeUnchanged(t *testing.T) {
	tr := New(Config{Window: 2, BullReturn: 0.05, BearReturn: -0.05, CrisisReturn: -0.15})
	var count int
	tr.OnTransition(func(regime.Transition) { count++ })

	tr.Update(100, 1)
	tr.Update(110, 2) // Bull
	tr.Update(121, 3) // still Bull (window slides to [110,121], ret ~0.1)
	require.Equal(t, 1, count)
}
