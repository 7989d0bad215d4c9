package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pitabwire/frame/queue"
	"github.com/rs/xid"
)

// Publisher emits dialogue events to the frame queue and to in-process
// subscribers such as the admin event stream. Without a queue manager only
// local subscribers receive events.
type Publisher struct {
	queueMgr queue.Manager
	source   string
	queueRef string

	mu   sync.RWMutex
	subs map[string]*subscription
}

type subscription struct {
	ch       chan Envelope
	prefixes []string
}

// wants reports whether et matches one of the subscription prefixes. No
// prefixes match everything.
func (s *subscription) wants(et EventType) bool {
	if len(s.prefixes) == 0 {
		return true
	}
	for _, p := range s.prefixes {
		if strings.HasPrefix(string(et), p) {
			return true
		}
	}
	return false
}

// NewPublisher creates a publisher tagging events with source.
func NewPublisher(queueMgr queue.Manager, source string, queueRef string) *Publisher {
	return &Publisher{
		queueMgr: queueMgr,
		source:   source,
		queueRef: queueRef,
		subs:     make(map[string]*subscription),
	}
}

// Emit wraps data in an envelope, hands it to matching local subscribers
// without blocking, then publishes it to the queue.
func (p *Publisher) Emit(ctx context.Context, eventType EventType, sessionID string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	env := Envelope{
		ID:        xid.New().String(),
		Type:      eventType,
		Source:    p.source,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
		Data:      raw,
	}

	p.mu.RLock()
	for id, sub := range p.subs {
		if !sub.wants(eventType) {
			continue
		}
		select {
		case sub.ch <- env:
		default:
			slog.WarnContext(ctx, "event dropped, subscriber is slow",
				slog.String("subscriber", id), slog.String("event_type", string(eventType)))
		}
	}
	p.mu.RUnlock()

	if p.queueMgr == nil {
		return nil
	}
	return p.queueMgr.Publish(ctx, p.queueRef, env)
}

// Subscribe registers a local subscriber receiving events whose type starts
// with one of prefixes ("session.", "hook.error"); none means all events.
// Unsubscribe with the same id releases it.
func (p *Publisher) Subscribe(id string, bufSize int, prefixes ...string) <-chan Envelope {
	if bufSize <= 0 {
		bufSize = 64
	}
	sub := &subscription{ch: make(chan Envelope, bufSize), prefixes: prefixes}
	p.mu.Lock()
	if old, ok := p.subs[id]; ok {
		close(old.ch)
	}
	p.subs[id] = sub
	p.mu.Unlock()
	return sub.ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (p *Publisher) Unsubscribe(id string) {
	p.mu.Lock()
	if sub, ok := p.subs[id]; ok {
		close(sub.ch)
		delete(p.subs, id)
	}
	p.mu.Unlock()
}

// Subscribers returns the number of local subscribers.
func (p *Publisher) Subscribers() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subs)
}
