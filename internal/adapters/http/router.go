// Package http
package http

import (
	"net/http"

	"procwatch/internal/adapters/http/middleware"
	"procwatch/internal/adapters/ws/userws"
	"procwatch/internal/config"
	"procwatch/internal/logger"
)

type RouterDeps struct {
	WsUser *userws.Handler

	Metrics    *MetricsHandler
	Prometheus http.Handler

	Log logger.Logger
}

func NewRouter(cfg *config.Config, deps *RouterDeps) http.Handler {
	mux := http.NewServeMux()

	globalMw := middleware.New()
	globalMw.Use(middleware.Recover(deps.Log))
	globalMw.Use(middleware.CORS(cfg))

	apiStack := middleware.New()
	apiStack.Use(middleware.RequestLog(deps.Log))

	// HEALTH
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// WEBSOCKET
	if deps.WsUser != nil {
		mux.HandleFunc("GET /ws", deps.WsUser.Serve)
	}

	// PROMETHEUS
	if deps.Prometheus != nil {
		mux.Handle("GET /metrics", deps.Prometheus)
	}

	// SNAPSHOT
	mux.Handle("GET /api/snapshot", apiStack.ThenFunc(deps.Metrics.Snapshot))
	mux.Handle("GET /api/processes/{pid}", apiStack.ThenFunc(deps.Metrics.Process))
	mux.Handle("GET /api/processes/{pid}/channels/{channel}", apiStack.ThenFunc(deps.Metrics.Channel))

	// COMMANDS
	mux.Handle("POST /api/commands", apiStack.ThenFunc(deps.Metrics.Command))
	mux.Handle("POST /api/session/reset", apiStack.ThenFunc(deps.Metrics.Reset))

	return globalMw.Apply(mux)
}
