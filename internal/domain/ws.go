package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strings"
)

const (
	WsChannelConnectionStatus = "connection_status"
	ProcessChannelPrefix      = "process:"
)

const (
	WsEventChannelUpdated    = "channel_updated"
	WsEventConnectionChanged = "connection_changed"
	WsEventSessionReset      = "session_reset"
	WsEventCommandAccepted   = "command_accepted"
	WsEventCommandRejected   = "command_rejected"
)

const (
	WsSubscribe   = "subscribe"
	WsUnsubscribe = "unsubscribe"
	WsCommand     = "command"
)

type WsClientMessage struct {
	Type    string          `json:"type"`
	Channel string          `json:"channel,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type WsServerEvent struct {
	Channel string `json:"channel,omitempty"`
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

type ChannelUpdatedPayload struct {
	SessionID string       `json:"session_id"`
	Version   uint64       `json:"version"`
	PID       ProcessID    `json:"pid"`
	Channel   ChannelKind  `json:"channel"`
	State     ChannelState `json:"state"`
}

type ConnectionChangedPayload struct {
	State ConnectionState `json:"state"`
}

type SessionResetPayload struct {
	SessionID string `json:"session_id"`
}

type CommandRequest struct {
	PID        PIDParam `json:"pid"`
	MetricType string   `json:"metric_type" validate:"required,notblank,max=32"`
	Value      *float64 `json:"value"`
}

type CommandResultPayload struct {
	PID        ProcessID `json:"pid"`
	MetricType string    `json:"metric_type"`
	Value      *float64  `json:"value,omitempty"`
	Error      string    `json:"error,omitempty"`
}

func GetProcessChannel(pid ProcessID) string {
	return ProcessChannelPrefix + pid.String()
}

// PIDParam accepts a pid given either as a JSON string or an integral number.
type PIDParam string

func (p *PIDParam) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = PIDParam(strings.TrimSpace(s))
		return nil
	}

	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.New("pid must be a string or an integer")
	}
	if n != math.Trunc(n) {
		return errors.New("pid must be an integer")
	}

	*p = PIDParam(ProcessIDFromInt(int64(n)))
	return nil
}
