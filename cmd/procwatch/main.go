package main

import (
	"context"
	"errors"
	netHttp "net/http"
	"os/signal"
	"syscall"
	"time"

	"procwatch/internal/adapters/http"
	"procwatch/internal/adapters/http/request"
	"procwatch/internal/adapters/http/response"
	"procwatch/internal/adapters/http/validator"
	"procwatch/internal/adapters/ws/userws"
	"procwatch/internal/adapters/ws/userws/subscribers"
	"procwatch/internal/application/metrics"
	"procwatch/internal/config"
	"procwatch/internal/decoder"
	"procwatch/internal/logger"
	"procwatch/internal/store"
	"procwatch/internal/stream"
	"procwatch/internal/telemetry"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	log := logger.New(cfg)

	log.Info("procwatch: starting", "upstream", cfg.StreamURL, "address", cfg.Address)

	// Prometheus
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := telemetry.NewPromRecorder(reg)

	// Store
	policy := store.CreateUnknown
	if cfg.UnknownChannels == config.UnknownChannelsDrop {
		policy = store.DropUnknown
	}
	publisher := store.NewPublisher(store.Options{UnknownChannels: policy})
	defer publisher.Close()
	publisher.Subscribe(recorder.ObserveSnapshot)

	// Upstream
	manager := stream.NewManager(stream.NewWebsocketDialer(nil), stream.Options{
		URL:            cfg.StreamURL,
		ReconnectDelay: cfg.ReconnectDelay,
		Decoder:        decoder.New(),
		Sink:           publisher,
		Recorder:       recorder,
	}, log)

	// Services
	metricsService := metrics.NewService(cfg, publisher, manager, log)
	val := validator.NewValidator()

	// WebSocket
	wsUserHub := userws.NewHub(ctx, metricsService, val, log)
	wsUserHandler := userws.NewHandler(wsUserHub, log, cfg.AllowedOrigins)
	detach := subscribers.Register(publisher, manager, wsUserHub)
	defer detach()

	// HTTP
	metricsHandler := http.NewMetricsHandler(metricsService, response.NewJSONWriter(log), request.NewJSONDecoder(), val)
	router := http.NewRouter(cfg, &http.RouterDeps{
		WsUser:     wsUserHandler,
		Metrics:    metricsHandler,
		Prometheus: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		Log:        log,
	})
	srv := http.NewServer(router, cfg.Address)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return manager.Run(gCtx)
	})

	g.Go(func() error {
		wsUserHub.Run()
		return nil
	})

	g.Go(func() error {
		log.Info("http: starting server", "address", cfg.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, netHttp.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		wsUserHub.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("http: server shutdown error", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("procwatch: stopped with error", "error", err)
	}

	log.Info("procwatch: stopped")
}
