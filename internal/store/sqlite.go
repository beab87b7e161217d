// Package store: SQLite-backed configuration store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/karuna-es/karunabot/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists the configuration document in a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN (a file path).
// The containing directory is created if it does not exist.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "dsn_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(cfg.DSN)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run SQLite migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite store ready", "path", cfg.DSN)

	return &SQLiteStore{db: db}, nil
}

// LoadConfig reads the configuration document. Returns (nil, nil) when the
// document is absent; a malformed document is treated the same way so a
// corrupt file never takes the process down.
func (s *SQLiteStore) LoadConfig() (*models.BotConfig, error) {
	var document string
	err := s.db.QueryRow(`SELECT document FROM bot_config WHERE id = 1`).Scan(&document)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore LoadConfig: no document stored yet")
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore LoadConfig query failed", "error", err)
		return nil, fmt.Errorf("failed to load config document: %w", err)
	}

	var cfg models.BotConfig
	if err := json.Unmarshal([]byte(document), &cfg); err != nil {
		slog.Warn("SQLiteStore LoadConfig: malformed document, falling back to defaults", "error", err)
		return nil, nil
	}
	slog.Debug("SQLiteStore LoadConfig succeeded", "active_flow", cfg.ActiveFlowID, "custom_flows", len(cfg.CustomFlows))
	return &cfg, nil
}

// SaveConfig replaces the configuration document in a single upsert.
func (s *SQLiteStore) SaveConfig(cfg *models.BotConfig) error {
	document, err := json.Marshal(cfg)
	if err != nil {
		slog.Error("SQLiteStore SaveConfig marshal failed", "error", err)
		return fmt.Errorf("failed to marshal config document: %w", err)
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO bot_config (id, document, updated_at) VALUES (1, ?, ?)`,
		string(document), time.Now().Unix())
	if err != nil {
		slog.Error("SQLiteStore SaveConfig failed", "error", err)
		return fmt.Errorf("failed to save config document: %w", err)
	}
	slog.Debug("SQLiteStore SaveConfig succeeded", "active_flow", cfg.ActiveFlowID)
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
