// Package metrics
package metrics

import (
	"context"
	"errors"
	"fmt"

	"procwatch/internal/config"
	"procwatch/internal/domain"
	"procwatch/internal/logger"
)

type SnapshotSource interface {
	Snapshot() domain.Snapshot
	Reset() domain.Snapshot
}

type CommandSender interface {
	State() domain.ConnectionState
	Send(cmd domain.Command) error
}

type Service struct {
	store  SnapshotSource
	sender CommandSender
	log    logger.Logger

	defaultPID domain.ProcessID
}

func NewService(cfg *config.Config, store SnapshotSource, sender CommandSender, log logger.Logger) domain.MetricsService {
	return &Service{
		store:  store,
		sender: sender,
		log:    log,

		defaultPID: domain.ProcessID(cfg.DefaultPID),
	}
}

func (s *Service) View() domain.View {
	snap := s.store.Snapshot()

	byPid := map[domain.ProcessID]domain.ProcessMetrics{}
	if snap.Store != nil {
		byPid = snap.Store.ByPid
	}

	return domain.View{
		SessionID:       snap.SessionID,
		Version:         snap.Version,
		ConnectionState: s.sender.State(),
		ByPid:           byPid,
	}
}

func (s *Service) Process(pid domain.ProcessID) (domain.ProcessMetrics, error) {
	snap := s.store.Snapshot()
	if snap.Store == nil {
		return nil, domain.ErrProcessNotFound
	}

	proc, ok := snap.Store.ByPid[pid]
	if !ok {
		return nil, domain.ErrProcessNotFound
	}

	return proc, nil
}

func (s *Service) Channel(pid domain.ProcessID, ch domain.ChannelKind) (domain.ChannelState, error) {
	proc, err := s.Process(pid)
	if err != nil {
		return domain.ChannelState{}, err
	}

	state, ok := proc[domain.NormalizeChannel(string(ch))]
	if !ok {
		return domain.ChannelState{}, domain.ErrChannelNotFound
	}

	return state, nil
}

// SendTestCommand asks the upstream to emit one sample. A missing pid falls
// back to the configured default and a missing value to a random one for the
// channel.
func (s *Service) SendTestCommand(ctx context.Context, req domain.CommandRequest) (domain.Command, error) {
	if err := ctx.Err(); err != nil {
		return domain.Command{}, err
	}

	ch := domain.NormalizeChannel(req.MetricType)
	if ch == "" {
		return domain.Command{}, fmt.Errorf("%w: metric_type is empty", domain.ErrInvalidPayload)
	}

	pid := domain.ProcessID(req.PID)
	if pid == "" {
		pid = s.defaultPID
	}

	cmd := domain.NewTestCommand(pid, ch, req.Value)
	if err := s.sender.Send(cmd); err != nil {
		if !errors.Is(err, domain.ErrNotConnected) {
			s.log.Error("metrics: failed to send test command", "pid", pid, "metric_type", ch.WireName(), "error", err)
		}
		return cmd, err
	}

	s.log.Info("metrics: test command sent", "pid", pid, "metric_type", ch.WireName())
	return cmd, nil
}

// Reset discards every retained sample and starts a new session.
func (s *Service) Reset() {
	snap := s.store.Reset()
	s.log.Info("metrics: session reset", "session_id", snap.SessionID)
}
