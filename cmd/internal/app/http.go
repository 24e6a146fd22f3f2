package app

import (
	"log/slog"
	"net/http"

	"authjwt/cmd/internal/auth/api"
	"authjwt/cmd/internal/auth/session"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type routerDeps struct {
	log      *slog.Logger
	cfg      Config
	store    userStore
	registry *prometheus.Registry
	metrics  *httpMetrics
	authn    *session.Authenticator
	auth     *api.Handler
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(WithRequestLogging(d.log, d.metrics))
	r.Use(middleware.Recoverer)
	r.Use(WithSecurityHeaders)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if d.cfg.ReadinessRequireDB && !d.store.persistent() {
			http.Error(w, "db not configured", http.StatusServiceUnavailable)
			return
		}
		if err := d.store.Ready(r.Context()); err != nil {
			d.log.Info("readyz.db.not_ready", "store", d.store.kind, "err", err)
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	if d.cfg.MetricsEnabled && d.registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(d.authn.Middleware)
		d.auth.Register(r)
	})

	return r
}
