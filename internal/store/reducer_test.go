package store

import (
	"testing"
	"time"

	"procwatch/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func sample(pid string, ch domain.ChannelKind, value float64, status domain.Status, i int) domain.DecodedSample {
	return domain.DecodedSample{
		PID:     domain.ProcessID(pid),
		Channel: ch,
		Sample: domain.Sample{
			Value:     value,
			Timestamp: t0.Add(time.Duration(i) * time.Second),
			Status:    status,
		},
	}
}

func TestReduceHistoryBound(t *testing.T) {
	tests := []struct {
		name string
		n    int
	}{
		{"single", 1},
		{"below bound", 49},
		{"at bound", 50},
		{"one over", 51},
		{"sixty", 60},
		{"many", 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s *domain.Store
			for i := 1; i <= tt.n; i++ {
				s = Reduce(s, sample("840", domain.ChannelCPU, float64(i), domain.StatusNormal, i), Options{})
			}

			state, ok := s.Channel("840", domain.ChannelCPU)
			require.True(t, ok)

			want := min(tt.n, domain.MaxHistory)
			require.Len(t, state.Values, want)

			first := tt.n - want + 1
			for i, v := range state.Values {
				assert.Equal(t, float64(first+i), v.Value)
			}
			assert.Equal(t, float64(tt.n), state.LatestValue)
		})
	}
}

func TestReduceSixtySamplesDropsFirstTen(t *testing.T) {
	var s *domain.Store
	for i := 1; i <= 60; i++ {
		s = Reduce(s, sample("840", domain.ChannelDisk, float64(i), domain.StatusNormal, i), Options{})
	}

	state, _ := s.Channel("840", domain.ChannelDisk)
	require.Len(t, state.Values, 50)
	assert.Equal(t, 11.0, state.Values[0].Value)
	for _, v := range state.Values {
		assert.NotEqual(t, 1.0, v.Value)
	}
}

func TestReduceLatestWins(t *testing.T) {
	var s *domain.Store
	statuses := []domain.Status{domain.StatusNormal, domain.StatusAnomaly, domain.StatusNormal}
	for i, st := range statuses {
		s = Reduce(s, sample("1", domain.ChannelMemory, float64(i), st, i), Options{})
	}

	state, _ := s.Channel("1", domain.ChannelMemory)
	assert.Equal(t, domain.StatusNormal, state.Status)
	assert.Equal(t, domain.StatusAnomaly, state.Values[1].Status)
}

func TestReduceAnomalyThenNormalScenario(t *testing.T) {
	var s *domain.Store
	s = Reduce(s, sample("840", domain.ChannelCPU, 14500, domain.StatusAnomaly, 0), Options{})
	s = Reduce(s, sample("840", domain.ChannelCPU, 14600, domain.StatusNormal, 1), Options{})

	state, ok := s.Channel("840", domain.ChannelCPU)
	require.True(t, ok)
	require.Len(t, state.Values, 2)
	assert.Equal(t, 14500.0, state.Values[0].Value)
	assert.Equal(t, domain.StatusAnomaly, state.Values[0].Status)
	assert.Equal(t, 14600.0, state.Values[1].Value)
	assert.Equal(t, domain.StatusNormal, state.Values[1].Status)
	assert.Equal(t, domain.StatusNormal, state.Status)
	assert.Equal(t, 14600.0, state.LatestValue)
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	var s *domain.Store
	for i := 1; i <= domain.MaxHistory; i++ {
		s = Reduce(s, sample("840", domain.ChannelCPU, float64(i), domain.StatusNormal, i), Options{})
	}
	s = Reduce(s, sample("841", domain.ChannelNetwork, 5, domain.StatusNormal, 0), Options{})

	before, _ := s.Channel("840", domain.ChannelCPU)
	beforeValues := append([]domain.Sample(nil), before.Values...)

	next := Reduce(s, sample("840", domain.ChannelCPU, 999, domain.StatusAnomaly, 99), Options{})

	assert.NotSame(t, s, next)
	after, _ := s.Channel("840", domain.ChannelCPU)
	assert.Equal(t, beforeValues, after.Values)
	assert.Equal(t, domain.StatusNormal, after.Status)
	assert.Equal(t, float64(domain.MaxHistory), after.LatestValue)

	// untouched processes are carried over
	other, ok := next.Channel("841", domain.ChannelNetwork)
	require.True(t, ok)
	assert.Equal(t, 5.0, other.LatestValue)
}

func TestReduceSiblingBranchesStayIndependent(t *testing.T) {
	base := Reduce(nil, sample("1", domain.ChannelCPU, 1, domain.StatusNormal, 0), Options{})

	a := Reduce(base, sample("1", domain.ChannelCPU, 2, domain.StatusNormal, 1), Options{})
	b := Reduce(base, sample("1", domain.ChannelCPU, 3, domain.StatusAnomaly, 1), Options{})

	sa, _ := a.Channel("1", domain.ChannelCPU)
	sb, _ := b.Channel("1", domain.ChannelCPU)
	assert.Equal(t, 2.0, sa.Values[1].Value)
	assert.Equal(t, 3.0, sb.Values[1].Value)
}

func TestReduceLazyCreation(t *testing.T) {
	s := Reduce(nil, sample("9", domain.ChannelDisk, 1, domain.StatusNormal, 0), Options{})

	require.Contains(t, s.ByPid, domain.ProcessID("9"))
	assert.Len(t, s.ByPid["9"], 1)
	_, ok := s.Channel("9", domain.ChannelCPU)
	assert.False(t, ok)
}

func TestReduceUnknownChannelPolicy(t *testing.T) {
	gpu := sample("1", domain.ChannelKind("gpu"), 42, domain.StatusNormal, 0)

	t.Run("create", func(t *testing.T) {
		s := Reduce(domain.NewStore(), gpu, Options{UnknownChannels: CreateUnknown})
		state, ok := s.Channel("1", "gpu")
		require.True(t, ok)
		assert.Equal(t, 42.0, state.LatestValue)
	})

	t.Run("drop", func(t *testing.T) {
		in := domain.NewStore()
		out := Reduce(in, gpu, Options{UnknownChannels: DropUnknown})
		assert.Same(t, in, out)
		assert.Empty(t, out.ByPid)
	})

	t.Run("drop keeps known channels", func(t *testing.T) {
		out := Reduce(nil, sample("1", domain.ChannelCPU, 1, domain.StatusNormal, 0), Options{UnknownChannels: DropUnknown})
		_, ok := out.Channel("1", domain.ChannelCPU)
		assert.True(t, ok)
	})
}
