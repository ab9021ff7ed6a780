package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Connect opens a GORM pool against Postgres and pings it before returning.
func Connect(ctx context.Context, databaseURL string, maxConns int32) (*gorm.DB, error) {
	slog.Default().InfoContext(ctx, "postgres connect started",
		"module", "postgres",
		"layer", "adapter",
		"operation", "connect",
		"outcome", "start",
	)
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		PrepareStmt:    true,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("gorm sql db: %w", err)
	}
	if maxConns > 0 {
		sqlDB.SetMaxOpenConns(int(maxConns))
		sqlDB.SetMaxIdleConns(int(maxConns) / 2)
	}
	sqlDB.SetConnMaxIdleTime(15 * time.Minute)
	sqlDB.SetConnMaxLifetime(time.Hour)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	slog.Default().InfoContext(ctx, "postgres connect completed",
		"module", "postgres",
		"layer", "adapter",
		"operation", "connect",
		"outcome", "success",
		"max_open_conns", sqlDB.Stats().MaxOpenConnections,
	)
	return db, nil
}

const migrationsTable = "experiment_earnings_schema_migrations"

// RunMigrations applies the embedded SQL files in lexical order and records
// each one, so a restart only runs files it has not seen. Every file is still
// written to be re-runnable.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	logger := slog.Default().With(
		"module", "postgres",
		"layer", "adapter",
		"operation", "run_migrations",
	)
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("gorm sql db: %w", err)
	}
	conn := db.WithContext(ctx)
	if err := conn.Exec(`CREATE TABLE IF NOT EXISTS ` + migrationsTable + ` (
	name TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`).Error; err != nil {
		return fmt.Errorf("create migrations ledger: %w", err)
	}
	var applied []string
	if err := conn.Table(migrationsTable).Pluck("name", &applied).Error; err != nil {
		return fmt.Errorf("read migrations ledger: %w", err)
	}
	done := make(map[string]struct{}, len(applied))
	for _, name := range applied {
		done[name] = struct{}{}
	}

	ran := 0
	for _, name := range names {
		if _, ok := done[name]; ok {
			continue
		}
		raw, readErr := migrationFS.ReadFile("migrations/" + name)
		if readErr != nil {
			return fmt.Errorf("read migration %s: %w", name, readErr)
		}
		started := time.Now()
		execErr := applyMigration(ctx, sqlDB, name, string(raw))
		if execErr != nil {
			logger.ErrorContext(ctx, "migration failed", "outcome", "failure", "migration", name, "error", execErr)
			return fmt.Errorf("exec migration %s: %w", name, execErr)
		}
		ran++
		logger.InfoContext(ctx, "migration applied",
			"outcome", "success",
			"migration", name,
			"duration_ms", time.Since(started).Milliseconds(),
		)
	}
	logger.InfoContext(ctx, "migrations up to date",
		"outcome", "success",
		"applied", ran,
		"total", len(names),
	)
	return nil
}

// applyMigration goes through database/sql directly: a file holds several
// statements, which the prepared statement cache cannot take.
func applyMigration(ctx context.Context, sqlDB *sql.DB, name, body string) error {
	tx, err := sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, body); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO `+migrationsTable+` (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
