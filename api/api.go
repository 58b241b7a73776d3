// Package api exposes a read-only status endpoint for a running chwatch
// process. There is deliberately no control surface — targets are fixed at
// startup and stopping monitoring means stopping the process.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/chwatch/poll"
)

// StatsSource supplies per-target poller counters.
type StatsSource interface {
	Stats() []poll.Stats
}

// New builds the status router.
//
//	GET /healthz — liveness probe
//	GET /status  — JSON array of per-target poller stats
func New(src StatsSource, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(src.Stats()); err != nil {
			logger.Warn("api: encode status failed", "error", err)
		}
	})

	return r
}
