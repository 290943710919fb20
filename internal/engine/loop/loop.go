// Package loop implements the backtest event loop of §4.4: pop, dispatch,
// pre/post hook, repeat, with run/run_until/step/stop entry points and a
// cooperative stop flag checked once per iteration.
package loop

import (
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/regimeflow/regimeflow/internal/clock"
	"github.com/regimeflow/regimeflow/internal/engine/dispatcher"
	"github.com/regimeflow/regimeflow/internal/events"
)

// ObserverHook is an untyped callback run before/after every dispatch,
// regardless of its own return value — distinct from plugins/hooks'
// typed, Cancel-capable hook manager, which handler bodies invoke
// themselves on specific data-level events.
type ObserverHook func(events.Event)

// ProgressFunc is invoked after every processed event with the running
// count, for UI/logging progress reporting.
type ProgressFunc func(processed uint64, e events.Event)

// Loop drains a Queue through a Dispatcher, single-threaded, honoring a
// cooperative stop flag checked at the top of each iteration.
type Loop struct {
	queue      *events.Queue
	dispatcher *dispatcher.Dispatcher
	log        zerolog.Logger

	preHooks  []ObserverHook
	postHooks []ObserverHook
	progress  ProgressFunc

	running     atomic.Bool
	currentTime clock.Timestamp
	processed   uint64
}

// New returns a Loop over queue, routing to d.
func New(queue *events.Queue, d *dispatcher.Dispatcher, log zerolog.Logger) *Loop {
	return &Loop{queue: queue, dispatcher: d, log: log}
}

// OnPreHook / OnPostHook register untyped observer callbacks run
// immediately before / after dispatch, in registration order.
func (l *Loop) OnPreHook(fn ObserverHook)  { l.preHooks = append(l.preHooks, fn) }
func (l *Loop) OnPostHook(fn ObserverHook) { l.postHooks = append(l.postHooks, fn) }

// OnProgress registers a progress callback invoked after each event.
func (l *Loop) OnProgress(fn ProgressFunc) { l.progress = fn }

// CurrentTime returns the timestamp of the most recently dispatched event.
func (l *Loop) CurrentTime() clock.Timestamp { return l.currentTime }

// Processed returns the count of events dispatched so far.
func (l *Loop) Processed() uint64 { return l.processed }

// Run pops and dispatches events until the queue is empty or Stop is
// called.
func (l *Loop) Run() {
	l.running.Store(true)
	for l.running.Load() {
		if !l.Step() {
			return
		}
	}
}

// RunUntil processes events while the next queued timestamp is <= t,
// stopping (without consuming) once the queue is empty or the next event's
// timestamp exceeds t.
func (l *Loop) RunUntil(t clock.Timestamp) {
	l.running.Store(true)
	for l.running.Load() {
		e, ok := l.queue.Peek()
		if !ok || e.Timestamp > t {
			return
		}
		if !l.Step() {
			return
		}
	}
}

// Step processes a single event, returning false if the queue was empty.
func (l *Loop) Step() bool {
	e, ok := l.queue.Pop()
	if !ok {
		return false
	}
	l.currentTime = e.Timestamp

	for _, h := range l.preHooks {
		h(e)
	}

	if err := l.dispatcher.Dispatch(e); err != nil {
		l.log.Error().Err(err).Uint8("type", uint8(e.Type)).Msg("event dispatch failed")
	}

	for _, h := range l.postHooks {
		h(e)
	}

	l.processed++
	if l.progress != nil {
		l.progress(l.processed, e)
	}
	return true
}

// Stop clears the running flag; Run/RunUntil exit at their next iteration
// boundary. No event is interrupted mid-dispatch.
func (l *Loop) Stop() { l.running.Store(false) }
