package probe

import (
	"context"
	"errors"
	"time"

	"procwatch/internal/domain"
	"procwatch/internal/logger"
)

type Sender interface {
	Send(cmd domain.Command) error
}

type Source interface {
	Sample(ctx context.Context, pid domain.ProcessID) ([]domain.Command, error)
}

// Agent samples a fixed set of processes on every tick and forwards the
// results upstream.
type Agent struct {
	source   Source
	sender   Sender
	pids     []domain.ProcessID
	interval time.Duration
	log      logger.Logger
}

func NewAgent(source Source, sender Sender, pids []domain.ProcessID, interval time.Duration, log logger.Logger) *Agent {
	if interval <= 0 {
		interval = time.Second
	}

	return &Agent{
		source:   source,
		sender:   sender,
		pids:     pids,
		interval: interval,
		log:      log,
	}
}

func (a *Agent) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.log.Info("probe: agent started", "pids", len(a.pids), "interval", a.interval)

	for {
		select {
		case <-ctx.Done():
			a.log.Info("probe: agent stopped")
			return ctx.Err()
		case <-ticker.C:
			a.Tick(ctx)
		}
	}
}

// Tick samples every process once. Samples taken while the upstream is not
// connected are dropped.
func (a *Agent) Tick(ctx context.Context) {
	for _, pid := range a.pids {
		cmds, err := a.source.Sample(ctx, pid)
		if err != nil {
			a.log.Warn("probe: sample failed", "pid", pid, "error", err)
			continue
		}

		for _, cmd := range cmds {
			if err := a.sender.Send(cmd); err != nil {
				if errors.Is(err, domain.ErrNotConnected) {
					a.log.Debug("probe: upstream not connected, dropping samples", "pid", pid)
					return
				}
				a.log.Warn("probe: send failed", "pid", pid, "metric_type", cmd.Channel.WireName(), "error", err)
			}
		}
	}
}
