package live

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRateLimiterPerSecondWindow(t *testing.T) {
	r := NewRateLimiter(2, 0)
	base := time.Unix(1000, 0)

	require.True(t, r.Allow(base))
	require.True(t, r.Allow(base.Add(10*time.Millisecond)))
	require.False(t, r.Allow(base.Add(20*time.Millisecond)), "third order inside the same second must be rejected")

	require.True(t, r.Allow(base.Add(1100*time.Millisecond)), "window has slid past the first two submissions")
}

func TestRateLimiterPerMinuteWindow(t *testing.T) {
	r := NewRateLimiter(0, 1)
	base := time.Unix(2000, 0)

	require.True(t, r.Allow(base))
	require.False(t, r.Allow(base.Add(time.Second)))
	require.True(t, r.Allow(base.Add(61*time.Second)))
}

func TestRateLimiterBothWindowsMustPass(t *testing.T) {
	r := NewRateLimiter(1, 5)
	base := time.Unix(3000, 0)

	require.True(t, r.Allow(base))
	require.False(t, r.Allow(base.Add(100*time.Millisecond)), "per-second cap of 1 rejects a second call in the same second")
}

func TestRateLimiterDisabledWindowAlwaysAllows(t *testing.T) {
	r := NewRateLimiter(0, 0)
	base := time.Unix(4000, 0)
	for i := 0; i < 1000; i++ {
		require.True(t, r.Allow(base))
	}
}
