package domain

import "context"

// View is the read model served to dashboards.
type View struct {
	SessionID       string                       `json:"session_id"`
	Version         uint64                       `json:"version"`
	ConnectionState ConnectionState              `json:"connection_state"`
	ByPid           map[ProcessID]ProcessMetrics `json:"by_pid"`
}

type MetricsService interface {
	View() View
	Process(pid ProcessID) (ProcessMetrics, error)
	Channel(pid ProcessID, ch ChannelKind) (ChannelState, error)
	SendTestCommand(ctx context.Context, req CommandRequest) (Command, error)
	Reset()
}
