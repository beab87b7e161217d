// Package store: PostgreSQL-backed configuration store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	_ "embed"

	"github.com/karuna-es/karunabot/internal/models"
	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists the configuration document in PostgreSQL, for
// deployments where DATABASE_URL points at a managed database.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store with the given DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "dsn_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open PostgreSQL connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("PostgreSQL ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run PostgreSQL migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("PostgreSQL store ready")

	return &PostgresStore{db: db}, nil
}

// LoadConfig reads the configuration document. Returns (nil, nil) when the
// document is absent or malformed.
func (s *PostgresStore) LoadConfig() (*models.BotConfig, error) {
	var document string
	err := s.db.QueryRow(`SELECT document FROM bot_config WHERE id = 1`).Scan(&document)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore LoadConfig: no document stored yet")
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore LoadConfig query failed", "error", err)
		return nil, fmt.Errorf("failed to load config document: %w", err)
	}

	var cfg models.BotConfig
	if err := json.Unmarshal([]byte(document), &cfg); err != nil {
		slog.Warn("PostgresStore LoadConfig: malformed document, falling back to defaults", "error", err)
		return nil, nil
	}
	slog.Debug("PostgresStore LoadConfig succeeded", "active_flow", cfg.ActiveFlowID, "custom_flows", len(cfg.CustomFlows))
	return &cfg, nil
}

// SaveConfig replaces the configuration document in a single upsert.
func (s *PostgresStore) SaveConfig(cfg *models.BotConfig) error {
	document, err := json.Marshal(cfg)
	if err != nil {
		slog.Error("PostgresStore SaveConfig marshal failed", "error", err)
		return fmt.Errorf("failed to marshal config document: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO bot_config (id, document, updated_at) VALUES (1, $1, now())
		ON CONFLICT (id) DO UPDATE SET document = EXCLUDED.document, updated_at = now()`,
		string(document))
	if err != nil {
		slog.Error("PostgresStore SaveConfig failed", "error", err)
		return fmt.Errorf("failed to save config document: %w", err)
	}
	slog.Debug("PostgresStore SaveConfig succeeded", "active_flow", cfg.ActiveFlowID)
	return nil
}

// Close closes the PostgreSQL connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing PostgreSQL connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close PostgreSQL connection", "error", err)
	}
	return err
}
