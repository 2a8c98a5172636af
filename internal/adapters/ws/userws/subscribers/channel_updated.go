package subscribers

import "procwatch/internal/domain"

type ChannelUpdated struct {
	hub Broadcaster
}

func NewChannelUpdated(hub Broadcaster) *ChannelUpdated {
	return &ChannelUpdated{hub: hub}
}

// Handle publishes the changed channel to its process subscribers. A snapshot
// without a change marks a new session and goes to every client.
func (s *ChannelUpdated) Handle(snap domain.Snapshot) {
	if snap.Changed == nil {
		s.hub.Broadcast(&domain.WsServerEvent{
			Event:   domain.WsEventSessionReset,
			Payload: domain.SessionResetPayload{SessionID: snap.SessionID},
		})
		return
	}

	ref := *snap.Changed
	state, ok := snap.Store.Channel(ref.PID, ref.Channel)
	if !ok {
		return
	}

	s.hub.Broadcast(&domain.WsServerEvent{
		Channel: domain.GetProcessChannel(ref.PID),
		Event:   domain.WsEventChannelUpdated,
		Payload: domain.ChannelUpdatedPayload{
			SessionID: snap.SessionID,
			Version:   snap.Version,
			PID:       ref.PID,
			Channel:   ref.Channel,
			State:     state,
		},
	})
}
