// Package stream owns the upstream push connection: it dials, reads frames,
// feeds them to the store in arrival order and reconnects after a fixed delay
// whenever the connection drops.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"procwatch/internal/domain"
	"procwatch/internal/logger"
)

const inboundBuffer = 256

// DefaultReconnectDelay is the pause between a dropped connection and the next dial.
const DefaultReconnectDelay = 5 * time.Second

var ErrAlreadyRunning = errors.New("stream: manager already running")

type FrameDecoder interface {
	Decode(raw []byte) (domain.DecodedSample, error)
}

type Sink interface {
	Apply(ev domain.DecodedSample) (domain.Snapshot, bool)
}

// StateListener observes every connection state transition.
type StateListener func(from, to domain.ConnectionState)

type Options struct {
	URL            string
	ReconnectDelay time.Duration
	Decoder        FrameDecoder
	// Sink receives decoded samples. Frames are decoded and discarded when nil.
	Sink     Sink
	Recorder Recorder
}

type watcher struct {
	id uint64
	fn StateListener
}

type Manager struct {
	url     string
	delay   time.Duration
	dialer  Dialer
	decoder FrameDecoder
	sink    Sink
	rec     Recorder
	log     logger.Logger

	mu       sync.Mutex
	state    domain.ConnectionState
	conn     Conn
	running  bool
	watchers []watcher
	nextID   uint64
}

type inbound struct {
	data []byte
	err  error
}

func NewManager(dialer Dialer, opts Options, log logger.Logger) *Manager {
	delay := opts.ReconnectDelay
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}

	rec := opts.Recorder
	if rec == nil {
		rec = nopRecorder{}
	}

	return &Manager{
		url:     opts.URL,
		delay:   delay,
		dialer:  dialer,
		decoder: opts.Decoder,
		sink:    opts.Sink,
		rec:     rec,
		log:     log,
		state:   domain.Disconnected,
	}
}

func (m *Manager) State() domain.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Watch registers fn for state transitions and returns an idempotent
// function that removes it.
func (m *Manager) Watch(fn StateListener) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := m.nextID
	m.watchers = append(m.watchers, watcher{id: id, fn: fn})

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		for i, w := range m.watchers {
			if w.id == id {
				m.watchers = append(m.watchers[:i:i], m.watchers[i+1:]...)
				return
			}
		}
	}
}

// Run keeps the connection alive until ctx is cancelled. It only returns
// ctx's error or ErrAlreadyRunning; transport failures are retried forever.
func (m *Manager) Run(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	m.running = true
	m.mu.Unlock()

	defer func() {
		m.setState(domain.Disconnected)
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
	}()

	attempt := 0
	for {
		attempt++
		err := m.session(ctx, attempt)
		if ctx.Err() != nil {
			m.log.Info("stream: shutting down")
			return ctx.Err()
		}

		m.setState(domain.Disconnected)
		m.log.Warn("stream: connection lost", "error", err, "retry_in", m.delay)

		m.setState(domain.Reconnecting)
		m.rec.ReconnectScheduled()

		timer := time.NewTimer(m.delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			m.log.Info("stream: shutting down")
			return ctx.Err()
		}
	}
}

func (m *Manager) session(ctx context.Context, attempt int) error {
	m.setState(domain.Connecting)
	m.log.Info("stream: connecting", "url", m.url, "attempt", attempt)

	conn, err := m.dialer.Dial(ctx, m.url)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrTransport, err)
	}

	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()
	m.setState(domain.Connected)
	m.log.Info("stream: connected", "url", m.url)

	sessionCtx, cancel := context.WithCancel(ctx)
	frames := make(chan inbound, inboundBuffer)

	defer func() {
		cancel()
		m.mu.Lock()
		m.conn = nil
		m.mu.Unlock()
		conn.Close()
	}()

	go readLoop(sessionCtx, conn, frames)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case in := <-frames:
			if in.err != nil {
				return fmt.Errorf("%w: %w", domain.ErrTransport, in.err)
			}
			m.handleFrame(in.data)

		case <-ticker.C:
			if err := conn.Ping(); err != nil {
				return fmt.Errorf("%w: ping: %w", domain.ErrTransport, err)
			}
		}
	}
}

// readLoop forwards frames, then the terminal read error, through one queue
// so the session sees them in wire order.
func readLoop(ctx context.Context, conn Conn, out chan<- inbound) {
	for {
		data, err := conn.ReadMessage()

		select {
		case out <- inbound{data: data, err: err}:
		case <-ctx.Done():
			return
		}

		if err != nil {
			return
		}
	}
}

func (m *Manager) handleFrame(data []byte) {
	m.rec.FrameReceived()

	if m.decoder == nil {
		return
	}

	ev, err := m.decoder.Decode(data)
	if err != nil {
		reason := DropInvalidPayload
		if errors.Is(err, domain.ErrMalformedFrame) {
			reason = DropMalformedFrame
		}
		m.rec.FrameDropped(reason)
		m.log.Warn("stream: dropping frame", "reason", reason, "error", err)
		return
	}

	if m.sink == nil {
		return
	}

	if _, ok := m.sink.Apply(ev); !ok {
		m.rec.FrameDropped(DropPolicy)
		m.log.Debug("stream: sample not applied", "pid", ev.PID, "channel", ev.Channel)
		return
	}

	m.rec.SampleApplied()
}

// Send writes cmd to the upstream. It fails with domain.ErrNotConnected,
// without touching the transport, unless the manager is connected.
func (m *Manager) Send(cmd domain.Command) error {
	m.mu.Lock()
	state, conn := m.state, m.conn
	m.mu.Unlock()

	if state != domain.Connected || conn == nil {
		return domain.ErrNotConnected
	}

	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encode command: %w", err)
	}

	if err := conn.WriteMessage(payload); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrTransport, err)
	}

	m.log.Debug("stream: command sent", "pid", cmd.PID, "metric_type", cmd.Channel.WireName())
	return nil
}

func (m *Manager) setState(next domain.ConnectionState) {
	m.mu.Lock()
	prev := m.state
	if prev == next {
		m.mu.Unlock()
		return
	}
	m.state = next
	watchers := m.watchers
	m.mu.Unlock()

	m.rec.StateChanged(next)
	m.log.Debug("stream: state changed", "from", prev, "to", next)

	for _, w := range watchers {
		w.fn(prev, next)
	}
}
