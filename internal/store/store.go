// Package store provides storage backends for the KarunaBot configuration
// document.
//
// The bot configuration (blacklist, active flow, custom flows) is persisted
// as a single document; each save replaces the whole document so readers
// never observe a partially applied mutation. Backends: in-memory, SQLite,
// and PostgreSQL.
package store

import (
	"strings"
	"sync"

	"github.com/karuna-es/karunabot/internal/models"
)

// Store persists the bot configuration document.
//
// LoadConfig returns (nil, nil) when no document has been saved yet; callers
// seed defaults in that case. SaveConfig replaces the stored document in a
// single write.
type Store interface {
	LoadConfig() (*models.BotConfig, error)
	SaveConfig(cfg *models.BotConfig) error
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType determines whether a DSN refers to PostgreSQL or SQLite.
// PostgreSQL DSNs use URL or key=value forms; anything else is treated as a
// SQLite file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// InMemoryStore keeps the configuration document in memory. Used in tests
// and when no DSN is configured.
type InMemoryStore struct {
	mu  sync.Mutex
	cfg *models.BotConfig
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// LoadConfig returns a copy of the stored document, or (nil, nil) if none.
func (s *InMemoryStore) LoadConfig() (*models.BotConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg == nil {
		return nil, nil
	}
	cp := CloneConfig(s.cfg)
	return cp, nil
}

// SaveConfig replaces the stored document.
func (s *InMemoryStore) SaveConfig(cfg *models.BotConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = CloneConfig(cfg)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }

// CloneConfig deep-copies a config document so callers never alias the
// stored state. Shared by store backends and the flow layer.
func CloneConfig(cfg *models.BotConfig) *models.BotConfig {
	if cfg == nil {
		return nil
	}
	cp := &models.BotConfig{
		ActiveFlowID: cfg.ActiveFlowID,
		SystemPrompt: cfg.SystemPrompt,
	}
	cp.Blacklist = append([]string(nil), cfg.Blacklist...)
	cp.CustomFlowOrder = append([]string(nil), cfg.CustomFlowOrder...)
	if cfg.CustomFlows != nil {
		cp.CustomFlows = make(map[string]models.Flow, len(cfg.CustomFlows))
		for id, flow := range cfg.CustomFlows {
			if flow.MenuConfig != nil {
				menu := *flow.MenuConfig
				menu.Options = append([]models.MenuOption(nil), flow.MenuConfig.Options...)
				flow.MenuConfig = &menu
			}
			cp.CustomFlows[id] = flow
		}
	}
	return cp
}
