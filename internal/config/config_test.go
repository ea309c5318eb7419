package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	cfg := Load()
	if cfg.Server.Port != "8080" {
		t.Errorf("got port %q want 8080", cfg.Server.Port)
	}
	if cfg.Database.Driver != "postgres" || cfg.Database.IsSQLite() {
		t.Errorf("got driver %q", cfg.Database.Driver)
	}
	if cfg.AI.Enabled {
		t.Errorf("AI enabled without key")
	}
	if cfg.AI.MinInterval != 4500*time.Millisecond || cfg.AI.PerMinute != 15 || cfg.AI.PerDay != 1500 {
		t.Errorf("got limits %+v", cfg.AI)
	}
	if m := cfg.Rates.CostRates().Multiplier(); m < 1.43 || m > 1.44 {
		t.Errorf("got multiplier %v", m)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("MIGRATIONS", "yes")
	t.Setenv("GEMINI_API_KEY", "k")
	t.Setenv("AI_MIN_INTERVAL", "2000")
	t.Setenv("AI_PER_DAY", "10")
	t.Setenv("RATE_INAIL", "0.04")
	t.Setenv("REPORT_CACHE_TTL", "1m")
	cfg := Load()
	if cfg.Server.Port != "9090" || !cfg.Database.IsSQLite() || !cfg.App.Migrations {
		t.Errorf("got %+v", cfg)
	}
	if !cfg.AI.Enabled || cfg.AI.MinInterval != 2*time.Second || cfg.AI.Limits().PerDay != 10 {
		t.Errorf("got AI %+v", cfg.AI)
	}
	if cfg.Rates.INAIL != 0.04 || cfg.Redis.TTL != time.Minute {
		t.Errorf("got rates %+v ttl %v", cfg.Rates, cfg.Redis.TTL)
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "h", Port: 5432, User: "u", Password: "p", DBName: "db", SSLMode: "disable"}
	if got, want := d.DSN(), "host=h port=5432 user=u password=p dbname=db sslmode=disable"; got != want {
		t.Errorf("got %q want %q", got, want)
	}
	if got, want := d.URL(), "postgres://u:p@h:5432/db?sslmode=disable"; got != want {
		t.Errorf("got %q want %q", got, want)
	}
	d.RawDSN = "postgres://x"
	if d.DSN() != "postgres://x" {
		t.Errorf("raw DSN ignored")
	}
}
