package live

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/regimeflow/regimeflow/internal/clock"
)

func TestAlertRingReturnsInOrderUnderCapacity(t *testing.T) {
	r := NewAlertRing()
	r.Push(AlertHeartbeatStall, "stall-1", 1)
	r.Push(AlertMQDisconnect, "disconnect-1", 2)

	recent := r.Recent()
	require.Len(t, recent, 2)
	require.Equal(t, "stall-1", recent[0].Message)
	require.Equal(t, "disconnect-1", recent[1].Message)
}

func TestAlertRingEvictsOldestPastCapacity(t *testing.T) {
	r := NewAlertRing()
	for i := 0; i < alertRingSize+10; i++ {
		r.Push(AlertOrderError, fmt.Sprintf("alert-%d", i), clock.Timestamp(i))
	}

	recent := r.Recent()
	require.Len(t, recent, alertRingSize)
	require.Equal(t, "alert-10", recent[0].Message, "oldest 10 entries should have been evicted")
	require.Equal(t, fmt.Sprintf("alert-%d", alertRingSize+9), recent[len(recent)-1].Message)
}

func TestAlertKindString(t *testing.T) {
	require.Equal(t, "daily_loss_breach", AlertDailyLossBreach.String())
	require.Equal(t, "unknown", AlertKind(999).String())
}
