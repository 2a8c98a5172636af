package store

import (
	"testing"

	"procwatch/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisherStartsEmptySession(t *testing.T) {
	p := NewPublisher(Options{})

	snap := p.Snapshot()
	assert.NotEmpty(t, snap.SessionID)
	assert.Zero(t, snap.Version)
	require.NotNil(t, snap.Store)
	assert.Empty(t, snap.Store.ByPid)
	assert.Nil(t, snap.Changed)
}

func TestPublisherApplyNotifiesInOrder(t *testing.T) {
	p := NewPublisher(Options{})

	var calls []string
	p.Subscribe(func(domain.Snapshot) { calls = append(calls, "first") })
	p.Subscribe(func(domain.Snapshot) { calls = append(calls, "second") })

	snap, ok := p.Apply(sample("840", domain.ChannelCPU, 1, domain.StatusNormal, 0))
	require.True(t, ok)

	assert.Equal(t, []string{"first", "second"}, calls)
	assert.Equal(t, uint64(1), snap.Version)
	require.NotNil(t, snap.Changed)
	assert.Equal(t, domain.ChannelRef{PID: "840", Channel: domain.ChannelCPU}, *snap.Changed)
	assert.Equal(t, snap, p.Snapshot())
}

func TestPublisherSnapshotsAreDistinct(t *testing.T) {
	p := NewPublisher(Options{})

	var seen []*domain.Store
	p.Subscribe(func(s domain.Snapshot) { seen = append(seen, s.Store) })

	p.Apply(sample("1", domain.ChannelCPU, 1, domain.StatusNormal, 0))
	p.Apply(sample("1", domain.ChannelCPU, 2, domain.StatusNormal, 1))

	require.Len(t, seen, 2)
	assert.NotSame(t, seen[0], seen[1])

	first, _ := seen[0].Channel("1", domain.ChannelCPU)
	assert.Len(t, first.Values, 1)
}

func TestPublisherUnsubscribeIsIdempotent(t *testing.T) {
	p := NewPublisher(Options{})

	var a, b int
	unsubA := p.Subscribe(func(domain.Snapshot) { a++ })
	p.Subscribe(func(domain.Snapshot) { b++ })

	p.Apply(sample("1", domain.ChannelCPU, 1, domain.StatusNormal, 0))
	unsubA()
	unsubA()
	p.Apply(sample("1", domain.ChannelCPU, 2, domain.StatusNormal, 1))

	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)
}

func TestPublisherUnsubscribeDuringNotification(t *testing.T) {
	p := NewPublisher(Options{})

	var unsub func()
	var calls, later int
	unsub = p.Subscribe(func(domain.Snapshot) {
		calls++
		unsub()
	})
	p.Subscribe(func(domain.Snapshot) { later++ })

	p.Apply(sample("1", domain.ChannelCPU, 1, domain.StatusNormal, 0))
	p.Apply(sample("1", domain.ChannelCPU, 2, domain.StatusNormal, 1))

	assert.Equal(t, 1, calls)
	assert.Equal(t, 2, later)
}

func TestPublisherDroppedSampleDoesNotNotify(t *testing.T) {
	p := NewPublisher(Options{UnknownChannels: DropUnknown})

	var calls int
	p.Subscribe(func(domain.Snapshot) { calls++ })

	before := p.Snapshot()
	snap, ok := p.Apply(sample("1", "gpu", 1, domain.StatusNormal, 0))

	assert.False(t, ok)
	assert.Zero(t, calls)
	assert.Same(t, before.Store, snap.Store)
}

func TestPublisherReset(t *testing.T) {
	p := NewPublisher(Options{})
	p.Apply(sample("1", domain.ChannelCPU, 1, domain.StatusNormal, 0))
	oldSession := p.Snapshot().SessionID

	var got domain.Snapshot
	p.Subscribe(func(s domain.Snapshot) { got = s })

	snap := p.Reset()

	assert.NotEqual(t, oldSession, snap.SessionID)
	assert.Empty(t, snap.Store.ByPid)
	assert.Nil(t, snap.Changed)
	assert.Equal(t, snap, got)
}

func TestPublisherClose(t *testing.T) {
	p := NewPublisher(Options{})
	p.Apply(sample("1", domain.ChannelCPU, 1, domain.StatusNormal, 0))

	var calls int
	unsub := p.Subscribe(func(domain.Snapshot) { calls++ })

	p.Close()
	_, ok := p.Apply(sample("1", domain.ChannelCPU, 2, domain.StatusNormal, 1))
	p.Reset()
	unsub()

	assert.False(t, ok)
	assert.Zero(t, calls)

	state, _ := p.Snapshot().Store.Channel("1", domain.ChannelCPU)
	assert.Equal(t, 1.0, state.LatestValue)

	assert.NotPanics(t, func() { p.Subscribe(func(domain.Snapshot) {})() })
}
