// Package store holds the aggregated per-process metric state.
package store

import (
	"slices"

	"procwatch/internal/domain"
)

type UnknownChannelPolicy int

const (
	// CreateUnknown keeps unrecognised channel kinds under their own key.
	CreateUnknown UnknownChannelPolicy = iota
	// DropUnknown discards samples for unrecognised channel kinds.
	DropUnknown
)

type Options struct {
	UnknownChannels UnknownChannelPolicy
}

// Reduce folds one sample into s and returns the resulting store.
//
// s is never modified. The touched process and channel are copied; everything
// else is shared with s. When the sample is dropped by policy, s itself is
// returned so callers can detect the no-op by pointer comparison.
func Reduce(s *domain.Store, ev domain.DecodedSample, opts Options) *domain.Store {
	if s == nil {
		s = domain.NewStore()
	}

	if !ev.Channel.Known() && opts.UnknownChannels == DropUnknown {
		return s
	}

	next := &domain.Store{ByPid: make(map[domain.ProcessID]domain.ProcessMetrics, len(s.ByPid)+1)}
	for pid, proc := range s.ByPid {
		next.ByPid[pid] = proc
	}

	prev := s.ByPid[ev.PID]
	proc := make(domain.ProcessMetrics, len(prev)+1)
	for ch, state := range prev {
		proc[ch] = state
	}

	proc[ev.Channel] = appendSample(prev[ev.Channel], ev.Sample)
	next.ByPid[ev.PID] = proc

	return next
}

func appendSample(state domain.ChannelState, sample domain.Sample) domain.ChannelState {
	values := state.Values
	if len(values) >= domain.MaxHistory {
		values = values[len(values)-domain.MaxHistory+1:]
	}

	// Clip so the append always allocates and never writes into a slice
	// still referenced by an older store.
	values = append(slices.Clip(values), sample)

	return domain.ChannelState{
		Values:      values,
		Status:      sample.Status,
		LatestValue: sample.Value,
	}
}
