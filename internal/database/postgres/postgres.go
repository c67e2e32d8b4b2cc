package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tariff-service/internal/config"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

//go:embed schema.sql
var schemaSQL string

// ConnectAndCreateDB opens the pool, verifies connectivity and creates the
// tables if they do not exist yet.
func ConnectAndCreateDB(ctx context.Context, cfg config.PostgresConfig) (*sqlx.DB, error) {
	slog.Info("Connecting to PostgreSQL",
		"host", cfg.Host,
		"port", cfg.Port,
		"user", cfg.Username,
		"dbname", cfg.DBname,
		"dsn_override", cfg.DSN != "")

	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to target database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxPoolSize)
	db.SetMaxIdleConns(cfg.MaxPoolSize)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping target database: %w", err)
	}

	if err := executeSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// ConnectWithRetry blocks until the database answers or the attempts run out.
func ConnectWithRetry(ctx context.Context, cfg config.PostgresConfig) (*sqlx.DB, error) {
	attempts := cfg.ConnectRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		db, err := ConnectAndCreateDB(ctx, cfg)
		if err == nil {
			if attempt > 1 {
				slog.Info("database retry connection successfully", "attempt", attempt)
			}
			return db, nil
		}
		lastErr = err

		if attempt == attempts {
			break
		}
		slog.Warn("failed to connect database, retrying",
			"attempt", attempt,
			"max_attempts", attempts,
			"next_retry_in", cfg.RetryWait,
			"error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(cfg.RetryWait):
		}
	}
	return nil, fmt.Errorf("database unreachable after %d attempts: %w", attempts, lastErr)
}

// executeSchema runs every statement of the embedded schema. Statements are
// idempotent (IF NOT EXISTS), so this runs on every start.
func executeSchema(ctx context.Context, db *sqlx.DB) error {
	successCount := 0
	for _, statement := range splitStatements(schemaSQL) {
		if _, err := db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("failed to execute schema statement %q: %w", statement[:min(60, len(statement))], err)
		}
		successCount++
	}

	slog.Info("Schema execution completed", "statements", successCount)
	return nil
}

func splitStatements(schema string) []string {
	var statements []string
	for _, raw := range strings.Split(schema, ";") {
		var lines []string
		for _, line := range strings.Split(raw, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "--") {
				continue
			}
			lines = append(lines, line)
		}
		statement := strings.TrimSpace(strings.Join(lines, "\n"))
		if statement != "" {
			statements = append(statements, statement)
		}
	}
	return statements
}
