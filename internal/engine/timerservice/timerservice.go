// Package timerservice implements the strategy context's schedule_timer /
// cancel_timer facility: named, periodic Timer events pushed back onto the
// event queue from inside the event loop.
package timerservice

import (
	"sync"

	"github.com/regimeflow/regimeflow/internal/clock"
	"github.com/regimeflow/regimeflow/internal/events"
)

type timer struct {
	id       string
	interval clock.Duration
	next     clock.Timestamp
}

// Service tracks scheduled timers and re-arms them as their Timer events
// are observed passing through the loop.
type Service struct {
	mu     sync.Mutex
	timers map[string]*timer
}

// New returns an empty Service.
func New() *Service {
	return &Service{timers: make(map[string]*timer)}
}

// Schedule registers a periodic timer id firing every interval, starting
// at now+interval.
func (s *Service) Schedule(id string, interval clock.Duration, now clock.Timestamp) {
	if interval <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timers[id] = &timer{id: id, interval: interval, next: now.Add(interval)}
}

// Cancel removes a previously scheduled timer. No-op if unknown.
func (s *Service) Cancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.timers, id)
}

// DuePush enqueues a Timer event for every timer whose next fire time is
// <= now, and re-arms each one. The backtest engine calls it at the start of
// every market event its market handler processes.
func (s *Service) DuePush(now clock.Timestamp, q *events.Queue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.timers {
		for t.next <= now {
			ev := events.NewMarketEvent(t.next, 0, events.MarketTimer)
			ev.Market.TimerID = t.id
			q.Push(ev)
			t.next = t.next.Add(t.interval)
		}
	}
}
