// Package telemetry exposes the stream's health as Prometheus metrics.
package telemetry

import (
	"procwatch/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
)

type PromRecorder struct {
	framesReceived  prometheus.Counter
	framesDropped   *prometheus.CounterVec
	samplesApplied  prometheus.Counter
	reconnects      prometheus.Counter
	connectionState *prometheus.GaugeVec
	processes       prometheus.Gauge
	channels        prometheus.Gauge
}

func NewPromRecorder(reg prometheus.Registerer) *PromRecorder {
	r := &PromRecorder{
		framesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "procwatch_frames_received_total",
			Help: "Frames read from the upstream connection.",
		}),
		framesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "procwatch_frames_dropped_total",
			Help: "Frames that did not change the store, by reason.",
		}, []string{"reason"}),
		samplesApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "procwatch_samples_applied_total",
			Help: "Samples folded into the store.",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "procwatch_reconnects_scheduled_total",
			Help: "Reconnect attempts scheduled after a dropped or failed connection.",
		}),
		connectionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "procwatch_connection_state",
			Help: "1 for the current upstream connection state, 0 otherwise.",
		}, []string{"state"}),
		processes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "procwatch_tracked_processes",
			Help: "Processes present in the current snapshot.",
		}),
		channels: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "procwatch_tracked_channels",
			Help: "Process channels present in the current snapshot.",
		}),
	}

	reg.MustRegister(
		r.framesReceived,
		r.framesDropped,
		r.samplesApplied,
		r.reconnects,
		r.connectionState,
		r.processes,
		r.channels,
	)

	r.StateChanged(domain.Disconnected)
	return r
}

func (r *PromRecorder) FrameReceived() {
	r.framesReceived.Inc()
}

func (r *PromRecorder) FrameDropped(reason string) {
	r.framesDropped.WithLabelValues(reason).Inc()
}

func (r *PromRecorder) SampleApplied() {
	r.samplesApplied.Inc()
}

func (r *PromRecorder) ReconnectScheduled() {
	r.reconnects.Inc()
}

func (r *PromRecorder) StateChanged(state domain.ConnectionState) {
	for _, s := range domain.ConnectionStates() {
		v := 0.0
		if s == state {
			v = 1
		}
		r.connectionState.WithLabelValues(s.String()).Set(v)
	}
}

// ObserveSnapshot is a store listener keeping the size gauges current.
func (r *PromRecorder) ObserveSnapshot(snap domain.Snapshot) {
	if snap.Store == nil {
		r.processes.Set(0)
		r.channels.Set(0)
		return
	}

	channels := 0
	for _, proc := range snap.Store.ByPid {
		channels += len(proc)
	}

	r.processes.Set(float64(len(snap.Store.ByPid)))
	r.channels.Set(float64(channels))
}
