// Package domain
package domain

import (
	"strconv"
	"strings"
	"time"
)

// MaxHistory is the number of samples retained per process channel.
const MaxHistory = 50

type ProcessID string

// ProcessIDFromInt formats a numeric pid the same way the decoder does.
func ProcessIDFromInt(pid int64) ProcessID {
	return ProcessID(strconv.FormatInt(pid, 10))
}

func (p ProcessID) String() string {
	return string(p)
}

// Int reports the numeric form of p when it has one.
func (p ProcessID) Int() (int64, bool) {
	n, err := strconv.ParseInt(string(p), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

type ChannelKind string

const (
	ChannelCPU     ChannelKind = "cpu"
	ChannelMemory  ChannelKind = "memory"
	ChannelDisk    ChannelKind = "disk"
	ChannelNetwork ChannelKind = "network"
)

var knownChannels = map[ChannelKind]bool{
	ChannelCPU:     true,
	ChannelMemory:  true,
	ChannelDisk:    true,
	ChannelNetwork: true,
}

// NormalizeChannel returns the canonical lowercase key for a metric type.
func NormalizeChannel(raw string) ChannelKind {
	return ChannelKind(strings.ToLower(strings.TrimSpace(raw)))
}

func (c ChannelKind) Known() bool {
	return knownChannels[c]
}

// WireName is the upper-case metric_type used on the upstream wire.
func (c ChannelKind) WireName() string {
	return strings.ToUpper(string(c))
}

type Status string

const (
	StatusNormal  Status = "Normal"
	StatusAnomaly Status = "Anomaly"
)

type Sample struct {
	Value     float64   `json:"value"`
	SubType   string    `json:"sub_type,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Status    Status    `json:"status"`
}

// DecodedSample is one accepted inbound observation, addressed to a process channel.
type DecodedSample struct {
	PID     ProcessID   `json:"pid"`
	Channel ChannelKind `json:"channel"`
	Sample
}

type ChannelState struct {
	Values      []Sample `json:"values"`
	Status      Status   `json:"status"`
	LatestValue float64  `json:"latest_value"`
}

type ProcessMetrics map[ChannelKind]ChannelState

// Store is never mutated once published; reducers return a new value.
type Store struct {
	ByPid map[ProcessID]ProcessMetrics `json:"by_pid"`
}

func NewStore() *Store {
	return &Store{ByPid: make(map[ProcessID]ProcessMetrics)}
}

// Channel looks up a single channel state.
func (s *Store) Channel(pid ProcessID, ch ChannelKind) (ChannelState, bool) {
	if s == nil {
		return ChannelState{}, false
	}

	proc, ok := s.ByPid[pid]
	if !ok {
		return ChannelState{}, false
	}

	state, ok := proc[ch]
	return state, ok
}

type ChannelRef struct {
	PID     ProcessID   `json:"pid"`
	Channel ChannelKind `json:"channel"`
}

type Snapshot struct {
	SessionID string      `json:"session_id"`
	Version   uint64      `json:"version"`
	Store     *Store      `json:"store"`
	Changed   *ChannelRef `json:"changed,omitempty"`
}
