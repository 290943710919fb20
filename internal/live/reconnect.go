package live

import (
	"context"
	"time"
)

// ReconnectConfig bounds a Reconnector's exponential backoff, mirroring
// config.ReconnectConfig (§6).
type ReconnectConfig struct {
	Enabled     bool
	Initial     time.Duration
	Max         time.Duration
	MaxAttempts int // 0 = unlimited
}

// ReconnectNotification is emitted once per connect attempt, the
// successful one included, matching §9 S6's three notifications for two failures
// followed by a success: attempts 1 and 2 carry the doubling (then
// capped) backoff that was about to be waited out before the next retry;
// the final notification carries Connected=true and BackoffMs=0.
type ReconnectNotification struct {
	Attempt   int
	BackoffMs int64
	Connected bool
}

// Reconnector drives connectFn with exponential backoff between
// cfg.Initial and cfg.Max, doubling after every failed attempt, grounded
// on 0xtitan6-polymarket-mm's WSFeed.Run backoff loop (1s doubling to a
// 30s cap) generalized to configurable bounds. It stops retrying once
// connectFn succeeds, ctx is cancelled, or MaxAttempts is exhausted.
type Reconnector struct {
	cfg    ReconnectConfig
	notify func(ReconnectNotification)
}

// NewReconnector returns a Reconnector that calls notify after every
// attempt (notify may be nil).
func NewReconnector(cfg ReconnectConfig, notify func(ReconnectNotification)) *Reconnector {
	if notify == nil {
		notify = func(ReconnectNotification) {}
	}
	return &Reconnector{cfg: cfg, notify: notify}
}

// Run calls connectFn, retrying with doubling backoff on error until it
// succeeds, ctx is done, or MaxAttempts is reached (in which case the last
// error is returned). A successful call emits one final notification with
// Connected=true, BackoffMs=0.
func (r *Reconnector) Run(ctx context.Context, connectFn func(context.Context) error) error {
	backoff := r.cfg.Initial
	if backoff <= 0 {
		backoff = time.Millisecond
	}

	var lastErr error
	for attempt := 1; r.cfg.MaxAttempts == 0 || attempt <= r.cfg.MaxAttempts; attempt++ {
		err := connectFn(ctx)
		if err == nil {
			r.notify(ReconnectNotification{Attempt: attempt, BackoffMs: 0, Connected: true})
			return nil
		}
		lastErr = err

		r.notify(ReconnectNotification{Attempt: attempt, BackoffMs: backoff.Milliseconds(), Connected: false})

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if r.cfg.Max > 0 && backoff > r.cfg.Max {
			backoff = r.cfg.Max
		}
	}
	return lastErr
}
