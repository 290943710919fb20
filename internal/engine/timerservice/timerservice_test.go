package timerservice

import (
	"testing"

	"github.com/regimeflow/regimeflow/internal/events"
	"github.com/stretchr/testify/require"
)

func TestScheduleFiresAtIntervalsAndRearms(t *testing.T) {
	s := New()
	s.Schedule("heartbeat", 100, 0)

	q := events.NewQueue()
	s.DuePush(250, q)

	var fired []int64
	for {
		e, ok := q.Pop()
		if !ok {
			break
		}
		fired = append(fired, int64(e.Timestamp))
		require.Equal(t, "heartbeat", e.Market.TimerID)
	}
	require.Equal(t, []int64{100, 200}, fired)
}

func TestCancelStopsFutureFires(t *testing.T) {
	s := New()
	s.Schedule("x", 10, 0)
	s.Cancel("x")

	q := events.NewQueue()
	s.DuePush(1000, q)
	require.True(t, q.Empty())
}

func TestScheduleIgnoresNonPositiveInterval(t *testing.T) {
	s := New()
	s.Schedule("bad", 0, 0)
	q := events.NewQueue()
	s.DuePush(1000000, q)
	require.True(t, q.Empty())
}
