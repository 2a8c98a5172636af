package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"procwatch/internal/config"
	"procwatch/internal/decoder"
	"procwatch/internal/domain"
	"procwatch/internal/logger"
	"procwatch/internal/probe"
	"procwatch/internal/stream"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg)

	pids := make([]domain.ProcessID, 0, len(cfg.ProbePIDs))
	for _, raw := range cfg.ProbePIDs {
		pid := domain.ProcessID(raw)
		if _, ok := pid.Int(); !ok {
			log.Error("procwatch-agent: invalid pid in PROBE_PIDS", "pid", raw)
			os.Exit(1)
		}
		pids = append(pids, pid)
	}

	if len(pids) == 0 {
		log.Error("procwatch-agent: PROBE_PIDS is empty")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("procwatch-agent: starting", "upstream", cfg.StreamURL, "pids", cfg.ProbePIDs)

	// No sink: frames the upstream pushes back are decoded and discarded.
	manager := stream.NewManager(stream.NewWebsocketDialer(nil), stream.Options{
		URL:            cfg.StreamURL,
		ReconnectDelay: cfg.ReconnectDelay,
		Decoder:        decoder.New(),
	}, log)

	agent := probe.NewAgent(probe.NewSampler(), manager, pids, cfg.ProbeInterval, log)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return manager.Run(gCtx)
	})

	g.Go(func() error {
		return agent.Run(gCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("procwatch-agent: stopped with error", "error", err)
	}

	log.Info("procwatch-agent: stopped")
}
