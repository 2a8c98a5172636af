package domain

import (
	"encoding/json"
	"math/rand/v2"
)

// Command is an outbound request asking the upstream to emit a sample.
type Command struct {
	PID     ProcessID
	Channel ChannelKind
	Value   *float64
	SubType string
}

type testValueRange struct {
	base, spread int
}

var testValueRanges = map[ChannelKind]testValueRange{
	ChannelCPU:    {base: 14000, spread: 2000},
	ChannelMemory: {base: 630000, spread: 10000},
	ChannelDisk:   {base: 23000, spread: 1000},
}

// DefaultTestValue picks a plausible value for a test sample on ch.
// Channels without a known range get 0.
func DefaultTestValue(ch ChannelKind) float64 {
	r, ok := testValueRanges[ch]
	if !ok {
		return 0
	}
	return float64(r.base + rand.IntN(r.spread))
}

func NewTestCommand(pid ProcessID, ch ChannelKind, value *float64) Command {
	if value == nil {
		v := DefaultTestValue(ch)
		value = &v
	}

	return Command{
		PID:     pid,
		Channel: ch,
		Value:   value,
	}
}

func (c Command) MarshalJSON() ([]byte, error) {
	var pid any = string(c.PID)
	if n, ok := c.PID.Int(); ok {
		pid = n
	}

	return json.Marshal(struct {
		PID        any      `json:"pid"`
		MetricType string   `json:"metric_type"`
		Value      *float64 `json:"value,omitempty"`
		SubType    string   `json:"sub_type,omitempty"`
	}{
		PID:        pid,
		MetricType: c.Channel.WireName(),
		Value:      c.Value,
		SubType:    c.SubType,
	})
}
