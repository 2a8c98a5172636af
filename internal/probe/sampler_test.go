package probe

import (
	"context"
	"errors"
	"os"
	"testing"

	"procwatch/internal/domain"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandle struct {
	times    *cpu.TimesStat
	mem      *process.MemoryInfoStat
	io       *process.IOCountersStat
	conns    []net.ConnectionStat
	timesErr error
	memErr   error
	ioErr    error
	connsErr error
}

func (f *fakeHandle) TimesWithContext(context.Context) (*cpu.TimesStat, error) {
	return f.times, f.timesErr
}

func (f *fakeHandle) MemoryInfoWithContext(context.Context) (*process.MemoryInfoStat, error) {
	return f.mem, f.memErr
}

func (f *fakeHandle) IOCountersWithContext(context.Context) (*process.IOCountersStat, error) {
	return f.io, f.ioErr
}

func (f *fakeHandle) ConnectionsWithContext(context.Context) ([]net.ConnectionStat, error) {
	return f.conns, f.connsErr
}

func opener(h Handle, err error) (OpenFunc, *int32) {
	var opened int32
	return func(_ context.Context, pid int32) (Handle, error) {
		opened = pid
		return h, err
	}, &opened
}

type frame struct {
	channel domain.ChannelKind
	sub     string
	value   float64
}

func frames(cmds []domain.Command) []frame {
	out := make([]frame, 0, len(cmds))
	for _, c := range cmds {
		out = append(out, frame{channel: c.Channel, sub: c.SubType, value: *c.Value})
	}
	return out
}

func TestSamplerShapesFrames(t *testing.T) {
	h := &fakeHandle{
		times: &cpu.TimesStat{User: 1.2344, System: 0.5},
		mem:   &process.MemoryInfoStat{RSS: 4096},
		io:    &process.IOCountersStat{ReadBytes: 100, WriteBytes: 50},
		conns: make([]net.ConnectionStat, 3),
	}
	open, opened := opener(h, nil)

	cmds, err := NewSamplerWithOpener(open).Sample(context.Background(), "840")
	require.NoError(t, err)
	assert.Equal(t, int32(840), *opened)

	assert.Equal(t, []frame{
		{domain.ChannelCPU, "user", 1234},
		{domain.ChannelCPU, "system", 500},
		{domain.ChannelCPU, "total", 1734},
		{domain.ChannelMemory, "", 4096},
		{domain.ChannelDisk, "", 150},
		{domain.ChannelNetwork, "", 3},
	}, frames(cmds))

	for _, c := range cmds {
		assert.Equal(t, domain.ProcessID("840"), c.PID)
	}
}

func TestSamplerSkipsUnreadableMetrics(t *testing.T) {
	denied := errors.New("permission denied")
	h := &fakeHandle{
		timesErr: denied,
		mem:      &process.MemoryInfoStat{RSS: 1},
		ioErr:    denied,
		connsErr: denied,
	}
	open, _ := opener(h, nil)

	cmds, err := NewSamplerWithOpener(open).Sample(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, []frame{{domain.ChannelMemory, "", 1}}, frames(cmds))
}

func TestSamplerErrors(t *testing.T) {
	denied := errors.New("permission denied")

	t.Run("nothing readable", func(t *testing.T) {
		h := &fakeHandle{timesErr: denied, memErr: denied, ioErr: denied, connsErr: denied}
		open, _ := opener(h, nil)

		_, err := NewSamplerWithOpener(open).Sample(context.Background(), "1")
		assert.ErrorIs(t, err, ErrNoMetrics)
		assert.ErrorIs(t, err, denied)
	})

	t.Run("process gone", func(t *testing.T) {
		open, _ := opener(nil, process.ErrorProcessNotRunning)

		_, err := NewSamplerWithOpener(open).Sample(context.Background(), "1")
		assert.ErrorIs(t, err, process.ErrorProcessNotRunning)
	})

	for _, pid := range []domain.ProcessID{"worker", "0", "-5", "99999999999"} {
		t.Run("bad pid "+pid.String(), func(t *testing.T) {
			open, opened := opener(&fakeHandle{}, nil)

			_, err := NewSamplerWithOpener(open).Sample(context.Background(), pid)
			assert.Error(t, err)
			assert.Zero(t, *opened)
		})
	}
}

func TestSamplerReadsOwnProcess(t *testing.T) {
	pid := domain.ProcessIDFromInt(int64(os.Getpid()))

	cmds, err := NewSampler().Sample(context.Background(), pid)
	require.NoError(t, err)

	var sawMemory bool
	for _, c := range cmds {
		if c.Channel == domain.ChannelMemory {
			sawMemory = true
			assert.Greater(t, *c.Value, 0.0)
		}
	}
	assert.True(t, sawMemory)
}
