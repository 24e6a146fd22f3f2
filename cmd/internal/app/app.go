// Package app wires the auth server runtime: config, logging, storage, and HTTP routes.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"authjwt/cmd/internal/auth/api"
	"authjwt/cmd/internal/auth/session"
	"authjwt/cmd/security/password"
)

// App is the auth server runtime: it owns the user store and HTTP wiring.
type App struct {
	cfg Config
	log Logger

	store   userStore
	handler http.Handler
}

// New constructs a fully wired App from config and the process environment.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	pwCfg, err := password.FromEnv()
	if err != nil {
		return nil, err
	}
	apiCfg := api.LoadConfigFromEnv()

	tokens, err := session.NewJWTManager(sessCfg)
	if err != nil {
		return nil, err
	}
	sessions := session.NewService(tokens, session.NewTransport(sessCfg))

	hasher, err := password.NewHasher(pwCfg)
	if err != nil {
		return nil, err
	}

	registry, err := newRegistry()
	if err != nil {
		return nil, err
	}
	httpMetrics, err := newHTTPMetrics(registry)
	if err != nil {
		return nil, err
	}
	authMetrics, err := session.NewMetrics(registry)
	if err != nil {
		return nil, err
	}

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	authHandler, err := api.NewHandler(log, apiCfg, st.users, hasher, sessions)
	if err != nil {
		st.release()
		return nil, err
	}

	authn, err := session.NewAuthenticator(log, sessions, st.users,
		session.WithMetrics(authMetrics),
		session.WithErrorHandler(authHandler.RenderError),
		session.WithRefreshWithoutAccess(sessCfg.RefreshWithoutAccess),
	)
	if err != nil {
		st.release()
		return nil, err
	}

	h := newRouter(routerDeps{
		log:      log,
		cfg:      cfg,
		store:    st,
		registry: registry,
		metrics:  httpMetrics,
		authn:    authn,
		auth:     authHandler,
	})

	return &App{cfg: cfg, log: log, store: st, handler: h}, nil
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Close releases the user store. Run calls it after shutdown.
func (a *App) Close() { a.store.release() }

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "store", a.store.kind, "metrics", a.cfg.MetricsEnabled)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		a.Close()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), nonZeroDuration(a.cfg.ShutdownTimeout, 10*time.Second))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		a.Close()
		return err
	}

	a.Close()

	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
