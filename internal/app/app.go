// Package app assembles the voxtask server: task store, providers,
// dispatcher, session channel, and the HTTP surface that ties them together.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/voxtask/voxtask/internal/channel"
	"github.com/voxtask/voxtask/internal/config"
	"github.com/voxtask/voxtask/internal/dispatch"
	"github.com/voxtask/voxtask/internal/health"
	"github.com/voxtask/voxtask/internal/nlu"
	"github.com/voxtask/voxtask/internal/observe"
	"github.com/voxtask/voxtask/internal/session"
	"github.com/voxtask/voxtask/internal/taskstore"
	"github.com/voxtask/voxtask/internal/taskstore/postgres"
	"github.com/voxtask/voxtask/pkg/provider/llm/anyllm"
	"github.com/voxtask/voxtask/pkg/provider/stt"
	"github.com/voxtask/voxtask/pkg/provider/stt/whisperapi"
)

// shutdownGrace is how long in-flight HTTP requests get to finish once the
// server starts shutting down.
const shutdownGrace = 10 * time.Second

// App is the assembled server, ready to Run.
type App struct {
	cfg      *config.Config
	handler  http.Handler
	contexts *session.Store
	pg       *postgres.Store
}

// New builds the full application from cfg. It connects to PostgreSQL when a
// DSN is configured and falls back to the in-memory store otherwise, so the
// server is usable without any infrastructure.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	metrics := observe.DefaultMetrics()

	var store taskstore.Store
	var pg *postgres.Store
	if cfg.Store.PostgresDSN != "" {
		var err error
		pg, err = postgres.NewStore(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("app: connect task store: %w", err)
		}
		store = pg
		slog.Info("app: using postgres task store")
	} else {
		store = taskstore.NewMemoryStore()
		slog.Warn("app: no postgres DSN configured, using in-memory task store")
	}

	sttProvider, err := buildSTT(cfg.Providers.STT)
	if err != nil {
		return nil, err
	}
	fallback, err := buildFallback(cfg.Providers.LLM)
	if err != nil {
		return nil, err
	}

	contexts := session.NewStore(cfg.Session.InactivityWindow.Std(), cfg.Session.MaxTurns)
	hub := channel.NewHub()

	dispatcher := dispatch.New(dispatch.Config{
		Store:            store,
		Contexts:         contexts,
		Fallback:         fallback,
		Titles:           nlu.NewTitleMatcher(),
		Metrics:          metrics,
		Notifier:         hub,
		ExecuteThreshold: cfg.Dispatch.ExecuteThreshold,
		ClarifyThreshold: cfg.Dispatch.ClarifyThreshold,
		ActionTimeout:    cfg.Dispatch.ActionTimeout.Std(),
	})

	ws := channel.NewServer(channel.ServerConfig{
		Dispatcher:     dispatcher,
		STT:            sttProvider,
		Hub:            hub,
		Tokens:         cfg.Auth.Tokens,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxAudioBytes:  cfg.Dispatch.MaxAudioBytes,
		Metrics:        metrics,
	})

	var checkers []health.Checker
	if pg != nil {
		checkers = append(checkers, health.Database(pg.Ping))
	}

	return &App{
		cfg:      cfg,
		handler:  buildRouter(cfg, metrics, ws, health.New(checkers...)),
		contexts: contexts,
		pg:       pg,
	}, nil
}

// Run serves until ctx is cancelled, then shuts down gracefully. Always call
// Run exactly once; it owns the store connection's lifecycle.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("app: listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		a.contexts.Run(gctx, a.cfg.Session.SweepInterval.Std())
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	err := g.Wait()
	if a.pg != nil {
		a.pg.Close()
	}
	return err
}

// buildSTT constructs the configured speech-to-text provider, or nil when
// none is configured.
func buildSTT(entry config.ProviderEntry) (stt.Provider, error) {
	if entry.Name == "" {
		return nil, nil
	}
	switch entry.Name {
	case "whisper-api":
		var opts []whisperapi.Option
		if entry.BaseURL != "" {
			opts = append(opts, whisperapi.WithBaseURL(entry.BaseURL))
		}
		p, err := whisperapi.New(entry.APIKey, entry.Model, opts...)
		if err != nil {
			return nil, fmt.Errorf("app: build stt provider: %w", err)
		}
		return p, nil
	}
	return nil, fmt.Errorf("app: unsupported stt provider %q", entry.Name)
}

// buildFallback constructs the LLM classification fallback, or nil when no
// LLM is configured.
func buildFallback(entry config.ProviderEntry) (*nlu.LLMFallback, error) {
	if entry.Name == "" {
		return nil, nil
	}
	var opts []anyllmlib.Option
	if entry.APIKey != "" {
		opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
	}
	if entry.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
	}
	p, err := anyllm.New(entry.Name, entry.Model, opts...)
	if err != nil {
		return nil, fmt.Errorf("app: build llm provider: %w", err)
	}
	return nlu.NewLLMFallback(p), nil
}

// buildRouter lays out the HTTP surface:
//
//	/healthz, /readyz   probes
//	/metrics            Prometheus scrape endpoint
//	/api/commands       the voice command catalog
//	/ws                 the voice session channel
func buildRouter(cfg *config.Config, metrics *observe.Metrics, ws *channel.Server, probes *health.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(requestMetrics(metrics))

	r.Get("/healthz", probes.Healthz)
	r.Get("/readyz", probes.Readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/api/commands", handleCommands)
	r.Handle("/ws", ws)

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})
	return c.Handler(r)
}

// handleCommands serves the command catalog for client-side discovery.
func handleCommands(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	body := struct {
		Commands []dispatch.CommandDoc `json:"commands"`
	}{Commands: dispatch.Catalog()}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		http.Error(w, "encoding failed", http.StatusInternalServerError)
	}
}

// requestMetrics records HTTP request latency per method and route pattern.
func requestMetrics(m *observe.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)

			pattern := chi.RouteContext(r.Context()).RoutePattern()
			if pattern == "" {
				pattern = "unmatched"
			}
			m.HTTPRequestDuration.Record(r.Context(), time.Since(start).Seconds(),
				metric.WithAttributes(
					attribute.String("method", r.Method),
					attribute.String("path", pattern),
				),
			)
		})
	}
}
