package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Scan360AI/rnd-credit-manager/internal/cache"
	"github.com/Scan360AI/rnd-credit-manager/internal/config"
	"github.com/Scan360AI/rnd-credit-manager/internal/costs"
	"github.com/Scan360AI/rnd-credit-manager/internal/credit"
	"github.com/Scan360AI/rnd-credit-manager/internal/engine"
	"github.com/Scan360AI/rnd-credit-manager/internal/extraction"
	"github.com/Scan360AI/rnd-credit-manager/internal/handlers"
	"github.com/Scan360AI/rnd-credit-manager/internal/jobs"
	"github.com/Scan360AI/rnd-credit-manager/internal/ratelimit"
	"github.com/Scan360AI/rnd-credit-manager/internal/realtime"
	"github.com/Scan360AI/rnd-credit-manager/internal/services"
	"github.com/Scan360AI/rnd-credit-manager/tenant"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// App wires the workspaces, the extraction client and the background jobs behind
// one http.Handler.
type App struct {
	mux      *http.ServeMux
	handler  http.Handler
	registry *engine.Registry
	hub      *realtime.Hub
	cache    *cache.Cache
	cron     *cron.Cron
}

// NewApp creates a new application with all routes configured.
func NewApp(ctx context.Context, cfg *config.Config, conn *gorm.DB, table *credit.Table) (*App, error) {
	repo := services.NewRepository(conn)

	rc, err := cache.Connect(ctx, cache.Options{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		TTL:      cfg.Redis.TTL,
	})
	if err != nil {
		// reports are still computed, just not cached
		slog.Warn("app:redis-unavailable", slog.String("err", err.Error()))
		rc = nil
	}

	hub := realtime.NewHub()
	rates := costs.SectorRates(cfg.Rates.Sector, cfg.Rates.CostRates())
	registry := engine.NewRegistry(repo,
		engine.WithPersister(repo),
		engine.WithRates(rates),
		engine.WithCreditTable(table),
		engine.WithObserver(hub.Notify),
	)

	limiter := ratelimit.New(cfg.AI.Limits(), ratelimit.SystemClock)
	ai := handlers.AI{Limiter: limiter, Model: cfg.AI.Model}
	if cfg.AI.Enabled && cfg.AI.APIKey != "" {
		gemini := extraction.NewGeminiClient(cfg.AI.APIKey, cfg.AI.Model, cfg.AI.Endpoint, limiter)
		ai.Extractor, ai.Analyzer, ai.Model = gemini, gemini, gemini.Model
	}

	c := cron.New()
	if err := jobs.Start(c, limiter); err != nil {
		return nil, err
	}

	h := handlers.New(registry, services.NewReportService(rc),
		handlers.WithAI(ai),
		handlers.WithRates(rates),
		handlers.WithPing(func(ctx context.Context) error {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}),
	)

	app := &App{
		mux:      http.NewServeMux(),
		registry: registry,
		hub:      hub,
		cache:    rc,
		cron:     c,
	}
	h.Register(app.mux)
	app.mux.Handle("GET /ws", hub)
	app.handler = tenant.Middleware(cfg.App.DefaultTenant)(app.mux)

	app.warm(ctx, repo)
	return app, nil
}

// warm loads the stored tenants so the first request does not pay for it.
func (a *App) warm(ctx context.Context, repo *services.Repository) {
	tenants, err := repo.Tenants(ctx)
	if err != nil {
		slog.Warn("app:warm", slog.String("err", err.Error()))
		return
	}
	for _, t := range tenants {
		if _, err := a.registry.Get(ctx, t); err != nil {
			slog.Warn("app:warm-tenant", slog.String("tenant", t), slog.String("err", err.Error()))
		}
	}
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

func (a *App) Close() {
	<-a.cron.Stop().Done()
	_ = a.hub.Close()
	_ = a.cache.Close()
}
