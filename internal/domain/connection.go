package domain

import "fmt"

type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	Reconnecting
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

func (s ConnectionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ConnectionStates lists every state, in declaration order.
func ConnectionStates() []ConnectionState {
	return []ConnectionState{Disconnected, Connecting, Connected, Reconnecting}
}

func (s *ConnectionState) UnmarshalText(text []byte) error {
	for _, candidate := range ConnectionStates() {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown connection state %q", text)
}
