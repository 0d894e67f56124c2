// Package broadcast implements the live broadcaster (spec.md §4.7, C7):
// fan-out of freshly ingested records to live subscribers, each filtered by
// its own predicate, with bounded per-sink buffering, backpressure
// handling, and a periodic stats heartbeat.
package broadcast

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/sastik/logserver/internal/logging"
	"github.com/sastik/logserver/internal/record"
)

// DefaultBufferSize is the per-subscriber outbound buffer depth (spec.md §4.7).
const DefaultBufferSize = 256

// HeartbeatInterval is how often a stats_update message is pushed to every
// subscriber (spec.md §4.7).
const HeartbeatInterval = 2 * time.Second

// MessageType discriminates the payload carried by a Message.
type MessageType string

const (
	MessageRecord MessageType = "record"
	MessageStats  MessageType = "stats_update"
	MessagePong   MessageType = "pong"
)

// Stats is the rolling counter snapshot sent in stats_update messages.
type Stats struct {
	TotalLogs   int64   `json:"total_logs"`
	SuccessLogs int64   `json:"success_logs"`
	ErrorLogs   int64   `json:"error_logs"`
	SuccessRate float64 `json:"success_rate"`
}

// Message is one unit of delivery to a subscriber's Sink.
type Message struct {
	Type   MessageType    `json:"type"`
	Record *record.Record `json:"record,omitempty"`
	Stats  *Stats         `json:"stats,omitempty"`
}

// Sink delivers one Message to a subscriber's transport (a websocket
// connection, in the HTTP surface's wiring). It must return promptly —
// delivery is serialized per subscriber, so a slow Sink backs up only its
// own buffer, per spec.md §4.7.
type Sink func(Message) error

type subscription struct {
	id     string
	sink   Sink
	buf    chan Message
	done   chan struct{}
	closed atomic.Bool

	mtx    sync.RWMutex
	filter record.Filter
}

// Broadcaster fans out records to subscribers matching their filter.
type Broadcaster struct {
	log *logging.Logger

	mtx  sync.RWMutex
	subs map[string]*subscription

	totalLogs   atomic.Int64
	successLogs atomic.Int64
	errorLogs   atomic.Int64
}

func New(log *logging.Logger) *Broadcaster {
	if log == nil {
		log = logging.NewDiscard()
	}
	return &Broadcaster{log: log, subs: make(map[string]*subscription)}
}

// Subscribe registers sink with the given initial filter and starts its
// dedicated dispatcher goroutine, returning the new subscription id.
func (b *Broadcaster) Subscribe(sink Sink, filter record.Filter) string {
	id := newID()
	sub := &subscription{
		id:     id,
		sink:   sink,
		filter: filter,
		buf:    make(chan Message, DefaultBufferSize),
		done:   make(chan struct{}),
	}

	b.mtx.Lock()
	b.subs[id] = sub
	b.mtx.Unlock()

	go b.dispatch(sub)
	return id
}

// Unsubscribe removes a subscription and stops its dispatcher.
func (b *Broadcaster) Unsubscribe(id string) {
	b.mtx.Lock()
	sub, ok := b.subs[id]
	delete(b.subs, id)
	b.mtx.Unlock()
	if ok {
		b.stop(sub)
	}
}

// SetFilter replaces a live subscription's predicate (the `subscribe`
// control message per spec.md §4.7's wire protocol).
func (b *Broadcaster) SetFilter(id string, filter record.Filter) {
	b.mtx.RLock()
	sub, ok := b.subs[id]
	b.mtx.RUnlock()
	if !ok {
		return
	}
	sub.mtx.Lock()
	sub.filter = filter
	sub.mtx.Unlock()
}

// ClearFilter resets a subscription to match everything (the `unsubscribe`
// control message, which clears the predicate without ending the
// subscription itself — distinct from Unsubscribe).
func (b *Broadcaster) ClearFilter(id string) {
	b.SetFilter(id, record.Filter{})
}

// Publish evaluates every live subscription's predicate against rec and
// enqueues it on each match, updating the rolling counters used by the
// stats heartbeat.
func (b *Broadcaster) Publish(rec record.Record) {
	b.totalLogs.Add(1)
	if rec.HasError == record.HasErrorTrue {
		b.errorLogs.Add(1)
	} else {
		b.successLogs.Add(1)
	}

	b.mtx.RLock()
	subs := make([]*subscription, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mtx.RUnlock()

	msg := Message{Type: MessageRecord, Record: &rec}
	for _, sub := range subs {
		sub.mtx.RLock()
		match := sub.filter.Matches(rec)
		sub.mtx.RUnlock()
		if match {
			b.enqueue(sub, msg)
		}
	}
}

// enqueue delivers msg to sub's buffer, dropping the oldest queued message
// and incrementing SubscriberLagged if the buffer is full (spec.md §4.7).
func (b *Broadcaster) enqueue(sub *subscription, msg Message) {
	select {
	case sub.buf <- msg:
	default:
		select {
		case <-sub.buf:
			SubscriberLagged.Inc()
		default:
		}
		select {
		case sub.buf <- msg:
		default:
		}
	}
}

// dispatch serializes delivery to one subscriber's sink, removing the
// subscription after two consecutive delivery failures.
func (b *Broadcaster) dispatch(sub *subscription) {
	failures := 0
	for {
		select {
		case <-sub.done:
			return
		case msg := <-sub.buf:
			if err := sub.sink(msg); err != nil {
				failures++
				b.log.Warn("subscriber delivery failed", logging.KV("subscription", sub.id), logging.KVErr(err))
				if failures >= 2 {
					SubscriberDead.Inc()
					b.Unsubscribe(sub.id)
					return
				}
				continue
			}
			failures = 0
		}
	}
}

func (b *Broadcaster) stop(sub *subscription) {
	if sub.closed.CompareAndSwap(false, true) {
		close(sub.done)
	}
}

// RequestStats delivers an immediate stats_update to one subscriber (the
// `request_stats` control message, spec.md §4.7).
func (b *Broadcaster) RequestStats(id string) {
	b.mtx.RLock()
	sub, ok := b.subs[id]
	b.mtx.RUnlock()
	if !ok {
		return
	}
	b.enqueue(sub, Message{Type: MessageStats, Stats: b.snapshot()})
}

// Run pushes a stats_update heartbeat to every subscriber every
// HeartbeatInterval, until the stop channel is closed.
func (b *Broadcaster) Run(stop <-chan struct{}) {
	tck := time.NewTicker(HeartbeatInterval)
	defer tck.Stop()
	for {
		select {
		case <-stop:
			return
		case <-tck.C:
			stats := b.snapshot()
			b.mtx.RLock()
			subs := make([]*subscription, 0, len(b.subs))
			for _, s := range b.subs {
				subs = append(subs, s)
			}
			b.mtx.RUnlock()
			for _, sub := range subs {
				b.enqueue(sub, Message{Type: MessageStats, Stats: stats})
			}
		}
	}
}

func (b *Broadcaster) snapshot() *Stats {
	total := b.totalLogs.Load()
	success := b.successLogs.Load()
	errs := b.errorLogs.Load()
	var rate float64
	if total > 0 {
		rate = float64(success) / float64(total) * 100
	}
	return &Stats{TotalLogs: total, SuccessLogs: success, ErrorLogs: errs, SuccessRate: rate}
}

// SubscriberCount reports the number of currently live subscriptions.
func (b *Broadcaster) SubscriberCount() int {
	b.mtx.RLock()
	defer b.mtx.RUnlock()
	return len(b.subs)
}

func newID() string {
	return uuid.NewString()
}
