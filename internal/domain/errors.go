package domain

import "errors"

var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrInvalidPayload = errors.New("invalid payload")
	ErrTransport      = errors.New("transport error")
	ErrNotConnected   = errors.New("not connected")
)

var (
	ErrProcessNotFound = errors.New("process not found")
	ErrChannelNotFound = errors.New("channel not found")
)
