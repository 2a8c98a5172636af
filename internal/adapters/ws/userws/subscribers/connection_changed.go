package subscribers

import "procwatch/internal/domain"

type ConnectionChanged struct {
	hub Broadcaster
}

func NewConnectionChanged(hub Broadcaster) *ConnectionChanged {
	return &ConnectionChanged{hub: hub}
}

func (s *ConnectionChanged) Handle(_, to domain.ConnectionState) {
	s.hub.Broadcast(&domain.WsServerEvent{
		Channel: domain.WsChannelConnectionStatus,
		Event:   domain.WsEventConnectionChanged,
		Payload: domain.ConnectionChangedPayload{State: to},
	})
}
