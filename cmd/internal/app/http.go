package app

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler is the ops surface: liveness, readiness and metrics.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		degraded, cause := a.Degraded()
		if !degraded {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			err := a.store.Ping(ctx)
			cancel()
			if err != nil {
				degraded, cause = true, err
			}
		}

		if degraded {
			a.log.Info("readyz.store.degraded", "backend", a.backend, "err", cause)
			if a.cfg.ReadinessRequireDurable {
				http.Error(w, "store degraded", http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready (memory only)\n"))
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	mux.Handle("GET /metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry}))

	return WithSecurityHeaders(WithRequestLogging(mux, a.log))
}
