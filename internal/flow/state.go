package flow

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/karuna-es/karunabot/internal/models"
	"github.com/karuna-es/karunabot/internal/store"
)

// configState owns the persisted configuration document. All mutations are
// load-mutate-save under one mutex, so concurrent writers serialize and the
// cached document always matches durable storage after a successful write.
type configState struct {
	st  store.Store
	mu  sync.Mutex
	cfg *models.BotConfig
}

// newConfigState loads the persisted document, seeding defaults when it is
// absent or malformed. A storage failure on initial load degrades to
// in-memory defaults rather than failing startup.
func newConfigState(st store.Store) *configState {
	cfg, err := st.LoadConfig()
	if err != nil {
		slog.Warn("configState: initial load failed, using in-memory defaults", "error", err)
		cfg = nil
	}
	if cfg == nil {
		cfg = defaultConfig()
		if err := st.SaveConfig(cfg); err != nil {
			slog.Warn("configState: could not persist seeded defaults", "error", err)
		} else {
			slog.Info("configState: seeded default configuration document")
		}
	}
	normalizeConfig(cfg)
	return &configState{st: st, cfg: cfg}
}

// normalizeConfig repairs structural gaps in a loaded document so the rest
// of the package can assume non-nil maps and a valid active flow.
func normalizeConfig(cfg *models.BotConfig) {
	if cfg.CustomFlows == nil {
		cfg.CustomFlows = map[string]models.Flow{}
	}
	if cfg.Blacklist == nil {
		cfg.Blacklist = []string{}
	}
	// Rebuild the order list from the flow table: drop stale ids, append
	// flows the list does not mention.
	seen := make(map[string]bool, len(cfg.CustomFlowOrder))
	order := make([]string, 0, len(cfg.CustomFlows))
	for _, id := range cfg.CustomFlowOrder {
		if _, ok := cfg.CustomFlows[id]; ok && !seen[id] {
			order = append(order, id)
			seen[id] = true
		}
	}
	for id := range cfg.CustomFlows {
		if !seen[id] {
			order = append(order, id)
		}
	}
	cfg.CustomFlowOrder = order

	if _, ok := builtinFlow(cfg.ActiveFlowID); !ok {
		if _, ok := cfg.CustomFlows[cfg.ActiveFlowID]; !ok {
			slog.Warn("configState: active flow missing, reverting to default", "active_flow", cfg.ActiveFlowID, "default", DefaultFlowID)
			def, _ := builtinFlow(DefaultFlowID)
			cfg.ActiveFlowID = DefaultFlowID
			cfg.SystemPrompt = def.SystemPrompt
		}
	}
}

// snapshot returns a deep copy of the current document.
func (s *configState) snapshot() *models.BotConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return store.CloneConfig(s.cfg)
}

// mutate applies fn to a copy of the document and persists it. The cached
// document is replaced only after a successful save, so a failed write
// leaves memory consistent with durable storage. An error from fn aborts
// without persisting.
func (s *configState) mutate(fn func(cfg *models.BotConfig) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := store.CloneConfig(s.cfg)
	if err := fn(next); err != nil {
		return err
	}
	if err := s.st.SaveConfig(next); err != nil {
		slog.Error("configState: persist failed, keeping previous document", "error", err)
		return fmt.Errorf("failed to persist configuration: %w", err)
	}
	s.cfg = next
	return nil
}
