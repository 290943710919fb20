package live

import (
	"sync"

	"github.com/regimeflow/regimeflow/internal/common/mpsc"
)

// busItem carries one published message tagged with its topic, so a
// single dispatcher goroutine can fan out to all subscribers without a
// per-topic queue.
type busItem struct {
	topic Topic
	msg   any
}

// Topic identifies one of the broker callback channels named in §2's live
// data flow: market updates, execution reports, position updates, account
// updates, and system/control messages.
type Topic int

const (
	TopicMarketData Topic = iota
	TopicExecution
	TopicPosition
	TopicAccount
	TopicSystem
)

// Subscriber receives every message published on a Topic it subscribed to.
type Subscriber func(any)

// EventBus fans broker-adapter callbacks out to subscribers on its own
// internal dispatcher goroutine (§5: "the event bus owns an internal
// dispatcher thread that fans out subscribed callbacks"), decoupling the
// broker's own callback goroutine from however long a subscriber takes to
// process a message. Publish is safe from any number of goroutines
// (backed by the mpsc queue); subscriber registration is mutex-guarded.
type EventBus struct {
	queue *mpsc.Queue[busItem]
	wake  chan struct{}

	mu   sync.RWMutex
	subs map[Topic][]Subscriber

	stop chan struct{}
	done chan struct{}
}

// NewEventBus returns an EventBus whose dispatcher goroutine is not yet
// running; call Start to launch it.
func NewEventBus() *EventBus {
	return &EventBus{
		queue: mpsc.New[busItem](),
		wake:  make(chan struct{}, 1),
		subs:  make(map[Topic][]Subscriber),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Subscribe registers fn for topic. Safe to call before or after Start.
func (b *EventBus) Subscribe(topic Topic, fn Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[topic] = append(b.subs[topic], fn)
}

// Publish enqueues msg for topic, waking the dispatcher goroutine.
// Non-blocking: callable from the broker's own read goroutine(s).
func (b *EventBus) Publish(topic Topic, msg any) {
	b.queue.Push(busItem{topic: topic, msg: msg})
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// Start launches the dispatcher goroutine, which drains the queue and
// invokes every subscriber for each message's topic, blocking on wake
// (rather than busy-polling) between batches.
func (b *EventBus) Start() {
	go b.dispatchLoop()
}

// Stop halts the dispatcher goroutine and waits for it to exit.
func (b *EventBus) Stop() {
	close(b.stop)
	<-b.done
}

func (b *EventBus) dispatchLoop() {
	defer close(b.done)
	for {
		for {
			item, ok := b.queue.Pop()
			if !ok {
				break
			}
			b.dispatch(item)
		}
		select {
		case <-b.stop:
			// Drain whatever arrived between the last Pop and Stop.
			for {
				item, ok := b.queue.Pop()
				if !ok {
					return
				}
				b.dispatch(item)
			}
		case <-b.wake:
		}
	}
}

func (b *EventBus) dispatch(item busItem) {
	b.mu.RLock()
	subs := b.subs[item.topic]
	cbs := make([]Subscriber, len(subs))
	copy(cbs, subs)
	b.mu.RUnlock()
	for _, fn := range cbs {
		fn(item.msg)
	}
}
