// Package subscribers turns store and connection changes into hub events.
package subscribers

import (
	"procwatch/internal/domain"
	"procwatch/internal/store"
	"procwatch/internal/stream"
)

type Broadcaster interface {
	Broadcast(ev *domain.WsServerEvent)
}

type SnapshotFeed interface {
	Subscribe(fn store.Listener) func()
}

type StateFeed interface {
	Watch(fn stream.StateListener) func()
}

// Register wires hub to both feeds and returns a function detaching it.
func Register(snapshots SnapshotFeed, states StateFeed, hub Broadcaster) func() {
	channelUpdated := NewChannelUpdated(hub)
	connectionChanged := NewConnectionChanged(hub)

	unsubscribe := snapshots.Subscribe(channelUpdated.Handle)
	unwatch := states.Watch(connectionChanged.Handle)

	return func() {
		unsubscribe()
		unwatch()
	}
}
