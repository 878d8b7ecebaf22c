// Package app wires the livedeck server runtime: config, logging, HTTP routes,
// the realtime gateway and the background sweeps.
package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"livedeck/cmd/internal/abuse"
	"livedeck/cmd/internal/control"
	"livedeck/cmd/internal/httpapi"
	"livedeck/cmd/internal/join"
	"livedeck/cmd/internal/metrics"
	"livedeck/cmd/internal/participant"
	"livedeck/cmd/internal/presentation"
	"livedeck/cmd/internal/realtime"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is a small app-level lifecycle abstraction.
// It exists to allow DB-backed resources to be closed gracefully.
type Store interface {
	Close(ctx context.Context) error
}

// nopStore is used for in-memory store mode.
type nopStore struct{}

func (nopStore) Close(_ context.Context) error { return nil }

type dbStore struct {
	pool *pgxpool.Pool
}

func (s dbStore) Close(_ context.Context) error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// repository is the presentation store as the app uses it: read/write for the
// coordinators plus inserts for the demo seed.
type repository interface {
	presentation.Repository
	seedStore
}

// App is the livedeck server runtime.
type App struct {
	cfg Config
	log Logger

	store Store

	dbPool    *pgxpool.Pool
	dbEnabled bool

	metrics *metrics.Metrics
	ws      *realtime.WSGateway
	api     *httpapi.Handler
	sweeper *Sweeper
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}
	ctx := context.Background()

	st, dbPool, repo, err := newStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	dbEnabled := dbPool != nil

	verifier, err := newVerifier(cfg)
	if err != nil {
		_ = st.Close(ctx)
		return nil, err
	}

	m := metrics.New()
	registry := participant.NewRegistry()
	m.RegisterGaugeFunc("participants_active", "Participant sessions currently registered.", func() float64 {
		return float64(registry.Total())
	})

	guard := abuse.NewGuard(abuse.Config{
		Window:              cfg.AbuseWindow,
		MaxAttempts:         cfg.AbuseMaxAttempts,
		SuspiciousThreshold: cfg.AbuseSuspiciousThreshold,
	})

	hub := realtime.NewHub(log, registry, realtime.WithHubMetrics(m))

	controls, err := control.New(log, repo, hub, control.WithMetrics(m))
	if err != nil {
		_ = st.Close(ctx)
		return nil, err
	}

	joins, err := join.New(log, repo, registry, guard,
		join.WithCodeTTL(cfg.AccessCodeTTL),
		join.WithNotifier(controls),
		join.WithMetrics(m),
	)
	if err != nil {
		_ = st.Close(ctx)
		return nil, err
	}

	gwOpts := []realtime.GatewayOption{
		realtime.WithGatewayConfig(realtime.GatewayConfig{
			DevInsecure:       cfg.WSDevInsecure,
			OriginRequired:    cfg.WSOriginRequired,
			AllowedOrigins:    cfg.WSAllowedOrigins,
			WriteTimeout:      cfg.WSWriteTimeout,
			ReadIdleTimeout:   cfg.WSReadIdleTimeout,
			SendQueueSize:     cfg.WSSendQueue,
			HeartbeatInterval: cfg.WSHeartbeatInterval,
			HeartbeatTimeout:  cfg.WSHeartbeatTimeout,
			RateEvents:        cfg.WSRateEvents,
			RateWindow:        cfg.WSRateWindow,
			TrustProxy:        cfg.TrustProxy,
		}),
		realtime.WithGatewayMetrics(m),
	}
	var apiOpts []httpapi.HandlerOption
	// Only attach a non-nil verifier; a typed nil would look configured.
	if verifier != nil {
		gwOpts = append(gwOpts, realtime.WithVerifier(verifier))
		apiOpts = append(apiOpts, httpapi.WithPresenterAuth(verifier, controls))
	}

	ws, err := realtime.NewWSGateway(log, hub, joins, controls, gwOpts...)
	if err != nil {
		_ = st.Close(ctx)
		return nil, err
	}

	api, err := httpapi.NewHandler(log, joins, httpapi.Config{
		MaxBodyBytes: 4 << 10,
		TrustProxy:   cfg.TrustProxy,
		RateLimit:    cfg.HTTPRateLimit,
		RateWindow:   cfg.HTTPRateWindow,
	}, apiOpts...)
	if err != nil {
		_ = st.Close(ctx)
		return nil, err
	}

	if cfg.DevSeed {
		seed, err := seedDemo(ctx, repo, cfg, verifier, time.Now().UTC())
		if err != nil {
			_ = st.Close(ctx)
			return nil, err
		}
		log.Info("seed.demo",
			"presentation_id", seed.PresentationID,
			"presenter_id", seed.PresenterID,
			"access_code", seed.AccessCode.Display(),
			"presenter_token", seed.Token,
		)
	}

	return &App{
		cfg:       cfg,
		log:       log,
		store:     st,
		dbPool:    dbPool,
		dbEnabled: dbEnabled,
		metrics:   m,
		ws:        ws,
		api:       api,
		sweeper:   NewSweeper(log, joins, hub, guard, cfg.ParticipantIdleTimeout, cfg.ParticipantCleanupInterval),
	}, nil
}

// Handler returns the full HTTP handler chain.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.ws, a.api, a.metrics)

	var h http.Handler = mux
	h = WithCORS(h, a.cfg, a.log)
	h = WithSecurityHeaders(h)
	return WithRequestLogging(h, a.log)
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	base := runtimeBaseURL(a.cfg.HTTPAddr)
	a.log.Info("server.start",
		"addr", a.cfg.HTTPAddr,
		"db_enabled", a.dbEnabled,
		"http_url", base,
		"ws_url", wsBaseURL(base)+"/ws",
	)

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go a.sweeper.Run(sweepCtx)

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
		return err
	}

	stopSweep()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	// Close store resources (pool etc).
	if err := a.store.Close(shutdownCtx); err != nil {
		a.log.Error("store.close.fail", "err", err)
	}

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

// runtimeBaseURL turns a listen address into a URL a local client can dial.
// Wildcard binds map to loopback.
func runtimeBaseURL(addr string) string {
	host, port, err := net.SplitHostPort(strings.TrimSpace(addr))
	if err != nil {
		return "http://" + strings.TrimSpace(addr)
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// wsBaseURL maps http(s) to ws(s). Scheme-less input is treated as plain http.
func wsBaseURL(base string) string {
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return "ws://" + strings.TrimPrefix(base, "//")
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String()
}

// newStore decides between Postgres-backed persistence and the in-memory dev store.
func newStore(ctx context.Context, cfg Config, log Logger) (Store, *pgxpool.Pool, repository, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")
		return nopStore{}, nil, presentation.NewMemoryStore(presentation.WithMemoryCodeTTL(cfg.AccessCodeTTL)), nil
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	log.Info("db.enabled.postgres_store", "schema", cfg.DBSchema)

	// app owns the pool lifecycle; the store only borrows it.
	repo, err := newPostgresRepository(ctx, pool, cfg, log)
	if err != nil {
		pool.Close()
		return nil, nil, nil, err
	}

	return dbStore{pool: pool}, pool, repo, nil
}
