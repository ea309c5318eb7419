// Package db opens the database, applies the schema and seeds reference rows.
package db

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"time"

	"github.com/Scan360AI/rnd-credit-manager/internal/config"
	"github.com/Scan360AI/rnd-credit-manager/internal/credit"
	"github.com/Scan360AI/rnd-credit-manager/internal/models"
	migrate "github.com/golang-migrate/migrate/v4"
	// The following blank imports register the postgres driver and file source for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var log = slog.Default().With(slog.String("layer", "db"))

// Tables that must exist once the schema is applied.
var requiredTables = []string{"employees", "monthly_costs", "projects", "invoices", "allocations", "project_types"}

// Models lists every persisted model in dependency order.
func Models() []any {
	return []any{
		&models.ProjectType{},
		&models.Employee{},
		&models.MonthlyCost{},
		&models.Project{},
		&models.Invoice{},
		&models.Allocation{},
	}
}

// Connect opens the configured database, retrying while it starts, and returns the
// connection with the DSN it used.
func Connect(dbCfg config.DatabaseConfig) (*gorm.DB, string, error) {
	dialector, dsn, err := open(dbCfg)
	if err != nil {
		return nil, "", err
	}
	logLevel := logger.Silent
	if os.Getenv("DB_DEBUG") == "1" {
		logLevel = logger.Info
	}
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logLevel)}

	var db *gorm.DB
	for i := 0; i < 10; i++ {
		db, err = gorm.Open(dialector, cfg)
		if err == nil {
			break
		}
		log.Warn("connect:retry", slog.Int("attempt", i+1), slog.String("err", err.Error()))
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to connect database after retries: %w", err)
	}
	if pingErr := db.Exec("SELECT 1").Error; pingErr != nil {
		return nil, "", fmt.Errorf("db ping failed: %w", pingErr)
	}
	log.Info("connect:ok", slog.String("driver", dbCfg.Driver), slog.String("dsn", MaskDSN(dsn)))
	return db, dsn, nil
}

// ConnectAndMigrate connects, applies the schema and seeds when enabled.
// SQL migrations run only for postgres with MIGRATIONS enabled; every other case
// uses AutoMigrate.
func ConnectAndMigrate(dbCfg config.DatabaseConfig, app config.AppConfig, table *credit.Table) (*gorm.DB, error) {
	db, dsn, err := Connect(dbCfg)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db, dbCfg, app, dsn); err != nil {
		return nil, err
	}
	if app.Seed {
		if err := Seed(db, table); err != nil {
			return nil, fmt.Errorf("seed: %w", err)
		}
	}
	return db, nil
}

func open(cfg config.DatabaseConfig) (gorm.Dialector, string, error) {
	if cfg.IsSQLite() {
		path := cfg.SQLitePath
		if path == "" {
			return nil, "", errors.New("SQLITE_PATH is empty")
		}
		return sqlite.Open(path), path, nil
	}
	dsn := NormalizeDSN(cfg.DSN())
	if dsn == "" {
		return nil, "", errors.New("database DSN is empty, check the environment")
	}
	return postgres.Open(dsn), dsn, nil
}

// Migrate applies the schema and checks that the core tables exist.
func Migrate(db *gorm.DB, dbCfg config.DatabaseConfig, app config.AppConfig, dsn string) error {
	if app.Migrations && !dbCfg.IsSQLite() {
		if err := runSQLMigrations(ToURLDSN(dsn)); err != nil {
			return fmt.Errorf("sql migrations failed: %w", err)
		}
	} else {
		for _, m := range Models() {
			if err := db.AutoMigrate(m); err != nil {
				return fmt.Errorf("automigrate %T: %w", m, err)
			}
		}
	}
	for _, table := range requiredTables {
		if !db.Migrator().HasTable(table) {
			return errors.New("missing table after migration: " + table)
		}
	}
	return nil
}

// Seed inserts the built-in project types that are not stored yet, then loads the
// stored rows into table so operator edits override the defaults.
func Seed(db *gorm.DB, table *credit.Table) error {
	if table == nil {
		return nil
	}
	for _, pt := range table.Rows() {
		var existing models.ProjectType
		err := db.Where("code = ?", pt.Code).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			row := pt
			if err := db.Create(&row).Error; err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}
	}
	var rows []models.ProjectType
	if err := db.Find(&rows).Error; err != nil {
		return err
	}
	table.Override(rows)
	return nil
}

// runSQLMigrations executes migrations in ./migrations using golang-migrate file source.
func runSQLMigrations(dsn string) error {
	m, err := migrate.New("file://migrations", dsn)
	if err != nil {
		return err
	}
	defer m.Close()
	if err = m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

var passwordKV = regexp.MustCompile(`(password=)('(?:\\.|[^'])*'|\S+)`)
var passwordURL = regexp.MustCompile(`(://[^:/@]+:)([^@]+)(@)`)

// MaskDSN hides the password of a key=value or URL DSN.
func MaskDSN(dsn string) string {
	masked := passwordKV.ReplaceAllString(dsn, `${1}***`)
	return passwordURL.ReplaceAllString(masked, `${1}***${3}`)
}
