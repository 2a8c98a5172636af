package stream

import "procwatch/internal/domain"

// Reasons passed to Recorder.FrameDropped.
const (
	DropMalformedFrame = "malformed_frame"
	DropInvalidPayload = "invalid_payload"
	DropPolicy         = "policy"
)

type Recorder interface {
	FrameReceived()
	FrameDropped(reason string)
	SampleApplied()
	StateChanged(state domain.ConnectionState)
	ReconnectScheduled()
}

type nopRecorder struct{}

func (nopRecorder) FrameReceived()                      {}
func (nopRecorder) FrameDropped(string)                 {}
func (nopRecorder) SampleApplied()                      {}
func (nopRecorder) StateChanged(domain.ConnectionState) {}
func (nopRecorder) ReconnectScheduled()                 {}
