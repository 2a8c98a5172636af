// Package probe reads per-process resource usage and turns it into samples
// for the upstream detector.
package probe

import (
	"context"
	"errors"
	"fmt"
	"math"

	"procwatch/internal/domain"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/process"
)

var ErrNoMetrics = errors.New("probe: no metric could be read")

// Handle is the subset of *process.Process the sampler reads.
type Handle interface {
	TimesWithContext(ctx context.Context) (*cpu.TimesStat, error)
	MemoryInfoWithContext(ctx context.Context) (*process.MemoryInfoStat, error)
	IOCountersWithContext(ctx context.Context) (*process.IOCountersStat, error)
	ConnectionsWithContext(ctx context.Context) ([]net.ConnectionStat, error)
}

type OpenFunc func(ctx context.Context, pid int32) (Handle, error)

func openProcess(ctx context.Context, pid int32) (Handle, error) {
	return process.NewProcessWithContext(ctx, pid)
}

type Sampler struct {
	open OpenFunc
}

func NewSampler() *Sampler {
	return &Sampler{open: openProcess}
}

func NewSamplerWithOpener(open OpenFunc) *Sampler {
	return &Sampler{open: open}
}

// Sample reads pid once. CPU times become three cpu samples (user, system,
// total) in whole milliseconds; memory is RSS bytes, disk is read plus
// written bytes, network is the open connection count. A metric that cannot
// be read is skipped.
func (s *Sampler) Sample(ctx context.Context, pid domain.ProcessID) ([]domain.Command, error) {
	n, ok := pid.Int()
	if !ok || n <= 0 || n > math.MaxInt32 {
		return nil, fmt.Errorf("probe: pid %q is not a process id", pid)
	}

	h, err := s.open(ctx, int32(n))
	if err != nil {
		return nil, fmt.Errorf("probe: open %s: %w", pid, err)
	}

	var (
		out  []domain.Command
		errs []error
	)

	emit := func(ch domain.ChannelKind, sub string, v float64) {
		out = append(out, domain.Command{PID: pid, Channel: ch, Value: &v, SubType: sub})
	}

	if t, err := h.TimesWithContext(ctx); err != nil {
		errs = append(errs, fmt.Errorf("cpu: %w", err))
	} else {
		user, system := millis(t.User), millis(t.System)
		emit(domain.ChannelCPU, "user", user)
		emit(domain.ChannelCPU, "system", system)
		emit(domain.ChannelCPU, "total", user+system)
	}

	if m, err := h.MemoryInfoWithContext(ctx); err != nil {
		errs = append(errs, fmt.Errorf("memory: %w", err))
	} else {
		emit(domain.ChannelMemory, "", float64(m.RSS))
	}

	if io, err := h.IOCountersWithContext(ctx); err != nil {
		errs = append(errs, fmt.Errorf("disk: %w", err))
	} else {
		emit(domain.ChannelDisk, "", float64(io.ReadBytes+io.WriteBytes))
	}

	if conns, err := h.ConnectionsWithContext(ctx); err != nil {
		errs = append(errs, fmt.Errorf("network: %w", err))
	} else {
		emit(domain.ChannelNetwork, "", float64(len(conns)))
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w for %s: %w", ErrNoMetrics, pid, errors.Join(errs...))
	}

	return out, nil
}

func millis(seconds float64) float64 {
	return math.Round(seconds * 1000)
}
