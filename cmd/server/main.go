package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Scan360AI/rnd-credit-manager/internal/config"
	"github.com/Scan360AI/rnd-credit-manager/internal/credit"
	"github.com/Scan360AI/rnd-credit-manager/internal/db"
	"github.com/joho/godotenv"
)

var (
	migrateOnlyFlag = flag.Bool("migrate-only", false, "Run DB migrations and exit")
	seedOnlyFlag    = flag.Bool("seed-only", false, "Run DB seed and exit")
)

func setupLogger(dev bool) {
	var h slog.Handler
	if dev {
		h = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	} else {
		h = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	slog.SetDefault(slog.New(h))
}

func fatal(msg string, err error) {
	slog.Error(msg, slog.String("err", err.Error()))
	os.Exit(1)
}

func main() {
	flag.Parse()

	// Load environment variables from .env file
	_ = godotenv.Load()

	cfg := config.Load()
	setupLogger(cfg.App.Dev)
	table := credit.NewTable()

	if *migrateOnlyFlag || *seedOnlyFlag {
		conn, dsn, err := db.Connect(cfg.Database)
		if err != nil {
			fatal("db:connect", err)
		}
		if *migrateOnlyFlag {
			if err := db.Migrate(conn, cfg.Database, cfg.App, dsn); err != nil {
				fatal("db:migrate", err)
			}
			slog.Info("db:migrate-done")
		}
		if *seedOnlyFlag {
			if err := db.Seed(conn, table); err != nil {
				fatal("db:seed", err)
			}
			slog.Info("db:seed-done")
		}
		return
	}

	conn, err := db.ConnectAndMigrate(cfg.Database, cfg.App, table)
	if err != nil {
		fatal("db:connect", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := NewApp(ctx, cfg, conn, table)
	if err != nil {
		fatal("app:init", err)
	}
	defer app.Close()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      withLogging(app),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		slog.Info("server:start", slog.String("port", cfg.Server.Port), slog.Bool("dev", cfg.App.Dev),
			slog.Bool("ai", cfg.AI.Enabled), slog.Bool("cache", cfg.Redis.Addr != ""))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("server:listen", err)
		}
	}()

	<-ctx.Done()
	slog.Info("server:shutdown-signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server:shutdown", slog.String("err", err.Error()))
	}
	slog.Info("server:stopped")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack is required by the websocket upgrade on /ws.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// withLogging adds request logging middleware.
func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Info("http:request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("duration", time.Since(start)))
	})
}
