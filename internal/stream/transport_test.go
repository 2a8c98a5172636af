package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"procwatch/internal/decoder"
	"procwatch/internal/domain"
	"procwatch/internal/logger"
	"procwatch/internal/store"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// upstream mimics the anomaly server: it pushes nested frames and reports
// every command it receives.
type upstream struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader
	frames   []string
	commands chan []byte
	conns    chan *websocket.Conn
}

func newUpstream(t *testing.T, frames ...string) *upstream {
	t.Helper()

	u := &upstream{
		frames:   frames,
		commands: make(chan []byte, 16),
		conns:    make(chan *websocket.Conn, 4),
	}
	u.srv = httptest.NewServer(http.HandlerFunc(u.serve))
	t.Cleanup(u.srv.Close)
	return u
}

func (u *upstream) url() string {
	return "ws" + strings.TrimPrefix(u.srv.URL, "http")
}

func (u *upstream) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := u.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	u.conns <- conn

	for _, f := range u.frames {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
			return
		}
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		u.commands <- msg
	}
}

func TestWebsocketDialerEndToEnd(t *testing.T) {
	up := newUpstream(t,
		`{"timestamp":"2025-03-01T10:00:00.000001","raw_data":{"pid":840,"metric_type":"CPU","value":14500},"prediction":{"pid":840,"type":"CPU","result":-1,"status":"Anomaly"}}`,
		`{"pid":840,"metric_type":"MEMORY","value":630000,"prediction":1}`,
	)

	pub := store.NewPublisher(store.Options{})
	mgr := NewManager(NewWebsocketDialer(nil), Options{
		URL:            up.url(),
		ReconnectDelay: 20 * time.Millisecond,
		Decoder:        decoder.New(),
		Sink:           pub,
	}, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mgr.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.Eventually(t, func() bool { return pub.Snapshot().Version == 2 }, waitFor, tick)

	snap := pub.Snapshot()
	cpu, ok := snap.Store.Channel("840", domain.ChannelCPU)
	require.True(t, ok)
	assert.Equal(t, domain.StatusAnomaly, cpu.Status)
	mem, ok := snap.Store.Channel("840", domain.ChannelMemory)
	require.True(t, ok)
	assert.Equal(t, 630000.0, mem.LatestValue)

	value := 15000.0
	require.NoError(t, mgr.Send(domain.NewTestCommand("840", domain.ChannelCPU, &value)))

	select {
	case raw := <-up.commands:
		var got map[string]any
		require.NoError(t, json.Unmarshal(raw, &got))
		assert.Equal(t, 840.0, got["pid"])
		assert.Equal(t, "CPU", got["metric_type"])
		assert.Equal(t, 15000.0, got["value"])
	case <-time.After(waitFor):
		t.Fatal("upstream did not receive the command")
	}
}

func TestWebsocketDialerReconnectsAfterServerDrop(t *testing.T) {
	up := newUpstream(t)

	mgr := NewManager(NewWebsocketDialer(nil), Options{
		URL:            up.url(),
		ReconnectDelay: 20 * time.Millisecond,
		Decoder:        decoder.New(),
	}, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mgr.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	first := <-up.conns
	require.Eventually(t, func() bool { return mgr.State() == domain.Connected }, waitFor, tick)

	first.Close()

	select {
	case <-up.conns:
	case <-time.After(waitFor):
		t.Fatal("manager did not reconnect")
	}
	require.Eventually(t, func() bool { return mgr.State() == domain.Connected }, waitFor, tick)
}

func TestWebsocketDialerRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewWebsocketDialer(nil).Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
