package live

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReconnectorSucceedsOnFirstAttempt(t *testing.T) {
	var notifications []ReconnectNotification
	r := NewReconnector(ReconnectConfig{Initial: time.Millisecond, Max: 10 * time.Millisecond}, func(n ReconnectNotification) {
		notifications = append(notifications, n)
	})

	err := r.Run(context.Background(), func(ctx context.Context) error { return nil })
	require.NoError(t, err)
	require.Equal(t, []ReconnectNotification{{Attempt: 1, BackoffMs: 0, Connected: true}}, notifications)
}

func TestReconnectorBackoffDoublesAndCaps(t *testing.T) {
	// Mirrors §9 scenario S6: reconnect_initial=1ms, reconnect_max=2ms, two
	// failures then a success yields backoff_ms 1, 2 (capped), 0.
	var notifications []ReconnectNotification
	r := NewReconnector(ReconnectConfig{Initial: time.Millisecond, Max: 2 * time.Millisecond}, func(n ReconnectNotification) {
		notifications = append(notifications, n)
	})

	attempt := 0
	err := r.Run(context.Background(), func(ctx context.Context) error {
		attempt++
		if attempt < 3 {
			return errors.New("connect failed")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []ReconnectNotification{
		{Attempt: 1, BackoffMs: 1, Connected: false},
		{Attempt: 2, BackoffMs: 2, Connected: false},
		{Attempt: 3, BackoffMs: 0, Connected: true},
	}, notifications)
}

func TestReconnectorRespectsMaxAttempts(t *testing.T) {
	r := NewReconnector(ReconnectConfig{Initial: time.Millisecond, Max: time.Millisecond, MaxAttempts: 2}, nil)

	wantErr := errors.New("still down")
	err := r.Run(context.Background(), func(ctx context.Context) error { return wantErr })
	require.ErrorIs(t, err, wantErr)
}

func TestReconnectorStopsOnContextCancellation(t *testing.T) {
	r := NewReconnector(ReconnectConfig{Initial: time.Second, Max: time.Second}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Run(ctx, func(ctx context.Context) error { return errors.New("down") })
	require.ErrorIs(t, err, context.Canceled)
}
