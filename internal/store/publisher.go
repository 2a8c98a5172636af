package store

import (
	"sync"

	"procwatch/internal/domain"

	"github.com/google/uuid"
)

type Listener func(domain.Snapshot)

type subscription struct {
	id uint64
	fn Listener
}

// Publisher owns the store for one session and fans every accepted sample
// out to its subscribers.
//
// Apply and Reset are serialised; listeners run synchronously on the calling
// goroutine in subscription order and must not call Apply or Reset.
type Publisher struct {
	opts Options

	applyMu sync.Mutex

	mu        sync.RWMutex
	snapshot  domain.Snapshot
	listeners []subscription
	nextID    uint64
	closed    bool
}

func NewPublisher(opts Options) *Publisher {
	return &Publisher{
		opts:     opts,
		snapshot: newSession(),
	}
}

func newSession() domain.Snapshot {
	return domain.Snapshot{
		SessionID: uuid.NewString(),
		Store:     domain.NewStore(),
	}
}

func (p *Publisher) Snapshot() domain.Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshot
}

// Subscribe registers fn for future snapshots. The returned function removes
// it and may be called any number of times.
func (p *Publisher) Subscribe(fn Listener) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return func() {}
	}

	p.nextID++
	id := p.nextID
	p.listeners = append(p.listeners, subscription{id: id, fn: fn})

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()

		for i, sub := range p.listeners {
			if sub.id == id {
				p.listeners = append(p.listeners[:i:i], p.listeners[i+1:]...)
				return
			}
		}
	}
}

// Apply reduces ev into the current store. The second result is false when
// the sample was dropped by policy or the publisher is closed; no listener
// runs in that case.
func (p *Publisher) Apply(ev domain.DecodedSample) (domain.Snapshot, bool) {
	p.applyMu.Lock()
	defer p.applyMu.Unlock()

	p.mu.Lock()
	if p.closed {
		snap := p.snapshot
		p.mu.Unlock()
		return snap, false
	}

	current := p.snapshot
	next := Reduce(current.Store, ev, p.opts)
	if next == current.Store {
		p.mu.Unlock()
		return current, false
	}

	p.snapshot = domain.Snapshot{
		SessionID: current.SessionID,
		Version:   current.Version + 1,
		Store:     next,
		Changed:   &domain.ChannelRef{PID: ev.PID, Channel: ev.Channel},
	}
	snap, listeners := p.snapshot, p.listeners
	p.mu.Unlock()

	notify(listeners, snap)
	return snap, true
}

// Reset starts a new session with an empty store.
func (p *Publisher) Reset() domain.Snapshot {
	p.applyMu.Lock()
	defer p.applyMu.Unlock()

	p.mu.Lock()
	if p.closed {
		snap := p.snapshot
		p.mu.Unlock()
		return snap
	}

	p.snapshot = newSession()
	snap, listeners := p.snapshot, p.listeners
	p.mu.Unlock()

	notify(listeners, snap)
	return snap
}

// Close ends the session. Listeners are released and later Apply calls are
// ignored; the last snapshot stays readable.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	p.listeners = nil
}

func notify(listeners []subscription, snap domain.Snapshot) {
	for _, sub := range listeners {
		sub.fn(snap)
	}
}
