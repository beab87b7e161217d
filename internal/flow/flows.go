package flow

import (
	"log/slog"
	"time"

	"github.com/karuna-es/karunabot/internal/models"
	"github.com/karuna-es/karunabot/internal/store"
)

// FlowStore manages flow definitions and the active flow selection on top of
// the persisted configuration document. Builtin flows are immutable and
// seeded at startup; custom flows are created, updated, and deleted through
// this store. All mutations serialize through the shared document owner.
type FlowStore struct {
	state *configState
}

// BlacklistStore manages the persisted set of silently dropped senders. It
// shares the document owner with FlowStore so concurrent flow and blacklist
// mutations never produce lost updates on the shared document.
type BlacklistStore struct {
	state *configState
}

// NewStores initializes the shared configuration document from st and
// returns the flow and blacklist stores backed by it.
func NewStores(st store.Store) (*FlowStore, *BlacklistStore) {
	state := newConfigState(st)
	return &FlowStore{state: state}, &BlacklistStore{state: state}
}

// ActiveFlow returns the currently active flow. It never fails: an
// unresolvable active id falls back to the default builtin flow.
func (fs *FlowStore) ActiveFlow() models.Flow {
	cfg := fs.state.snapshot()
	if f, ok := builtinFlow(cfg.ActiveFlowID); ok {
		return f
	}
	if f, ok := cfg.CustomFlows[cfg.ActiveFlowID]; ok {
		return f
	}
	slog.Warn("FlowStore.ActiveFlow: active flow unresolvable, using default", "active_flow", cfg.ActiveFlowID)
	def, _ := builtinFlow(DefaultFlowID)
	return def
}

// ActivePrompt returns the system prompt of the active flow. The prompt is
// derived from the flow table; the document's cached prompt is only a
// fallback when the active id resolves to no flow at all.
func (fs *FlowStore) ActivePrompt() string {
	cfg := fs.state.snapshot()
	if prompt, ok := flowPrompt(cfg, cfg.ActiveFlowID); ok {
		return prompt
	}
	slog.Warn("FlowStore.ActivePrompt: active flow unresolvable, using cached prompt", "active_flow", cfg.ActiveFlowID)
	return cfg.SystemPrompt
}

// ActiveFlowID returns the id of the active flow.
func (fs *FlowStore) ActiveFlowID() string {
	return fs.state.snapshot().ActiveFlowID
}

// ListFlows returns all flows: builtins first, then custom flows in
// insertion order.
func (fs *FlowStore) ListFlows() []models.Flow {
	cfg := fs.state.snapshot()
	flows := make([]models.Flow, 0, len(builtinFlows)+len(cfg.CustomFlows))
	flows = append(flows, builtinFlows...)
	for _, id := range cfg.CustomFlowOrder {
		if f, ok := cfg.CustomFlows[id]; ok {
			flows = append(flows, f)
		}
	}
	return flows
}

// GetFlow returns the flow with the given id.
func (fs *FlowStore) GetFlow(id string) (models.Flow, error) {
	if f, ok := builtinFlow(id); ok {
		return f, nil
	}
	cfg := fs.state.snapshot()
	if f, ok := cfg.CustomFlows[id]; ok {
		return f, nil
	}
	return models.Flow{}, models.ErrFlowNotFound
}

// SetActiveFlow activates the flow with the given id. The active id and the
// cached system prompt change in one persisted write so the two can never
// diverge.
func (fs *FlowStore) SetActiveFlow(id string) error {
	err := fs.state.mutate(func(cfg *models.BotConfig) error {
		prompt, ok := flowPrompt(cfg, id)
		if !ok {
			return models.ErrFlowNotFound
		}
		cfg.ActiveFlowID = id
		cfg.SystemPrompt = prompt
		return nil
	})
	if err != nil {
		slog.Warn("FlowStore.SetActiveFlow failed", "error", err, "flow_id", id)
		return err
	}
	slog.Info("FlowStore.SetActiveFlow: flow activated", "flow_id", id)
	return nil
}

// SetSystemPrompt updates the system prompt of the active flow. The active
// flow must be custom: builtin prompts are immutable.
func (fs *FlowStore) SetSystemPrompt(prompt string) error {
	err := fs.state.mutate(func(cfg *models.BotConfig) error {
		if _, ok := builtinFlow(cfg.ActiveFlowID); ok {
			return models.ErrBuiltinFlow
		}
		f, ok := cfg.CustomFlows[cfg.ActiveFlowID]
		if !ok {
			return models.ErrFlowNotFound
		}
		f.SystemPrompt = prompt
		f.UpdatedAt = time.Now()
		cfg.CustomFlows[cfg.ActiveFlowID] = f
		cfg.SystemPrompt = prompt
		return nil
	})
	if err != nil {
		slog.Warn("FlowStore.SetSystemPrompt failed", "error", err)
		return err
	}
	slog.Info("FlowStore.SetSystemPrompt: active prompt updated", "length", len(prompt))
	return nil
}

// CreateCustomFlow adds a new custom flow. The id must match the allowed
// pattern and may not collide with any builtin or existing custom flow.
func (fs *FlowStore) CreateCustomFlow(def models.Flow) error {
	if err := models.ValidateFlowID(def.ID); err != nil {
		return err
	}
	if _, ok := builtinFlow(def.ID); ok {
		return models.ErrFlowExists
	}
	err := fs.state.mutate(func(cfg *models.BotConfig) error {
		if _, ok := cfg.CustomFlows[def.ID]; ok {
			return models.ErrFlowExists
		}
		def.IsBuiltin = false
		if def.FlowType == "" {
			def.FlowType = models.FlowTypeIntelligent
		}
		now := time.Now()
		def.CreatedAt = now
		def.UpdatedAt = now
		cfg.CustomFlows[def.ID] = def
		cfg.CustomFlowOrder = append(cfg.CustomFlowOrder, def.ID)
		return nil
	})
	if err != nil {
		slog.Warn("FlowStore.CreateCustomFlow failed", "error", err, "flow_id", def.ID)
		return err
	}
	slog.Info("FlowStore.CreateCustomFlow: flow created", "flow_id", def.ID)
	return nil
}

// FlowUpdate describes a field-wise partial update: only non-nil fields
// change.
type FlowUpdate struct {
	Name         *string
	Description  *string
	SystemPrompt *string
	FlowType     *models.FlowType
	MenuConfig   *models.MenuConfig
}

// UpdateCustomFlow applies a partial update to a custom flow. When the
// updated flow is active and its prompt changed, the cached prompt is
// refreshed in the same persisted write.
func (fs *FlowStore) UpdateCustomFlow(id string, update FlowUpdate) error {
	if _, ok := builtinFlow(id); ok {
		return models.ErrBuiltinFlow
	}
	err := fs.state.mutate(func(cfg *models.BotConfig) error {
		f, ok := cfg.CustomFlows[id]
		if !ok {
			return models.ErrFlowNotFound
		}
		if update.Name != nil {
			f.Name = *update.Name
		}
		if update.Description != nil {
			f.Description = *update.Description
		}
		if update.SystemPrompt != nil {
			f.SystemPrompt = *update.SystemPrompt
		}
		if update.FlowType != nil {
			f.FlowType = *update.FlowType
		}
		if update.MenuConfig != nil {
			f.MenuConfig = update.MenuConfig
		}
		f.UpdatedAt = time.Now()
		cfg.CustomFlows[id] = f

		if cfg.ActiveFlowID == id && update.SystemPrompt != nil {
			cfg.SystemPrompt = *update.SystemPrompt
		}
		return nil
	})
	if err != nil {
		slog.Warn("FlowStore.UpdateCustomFlow failed", "error", err, "flow_id", id)
		return err
	}
	slog.Info("FlowStore.UpdateCustomFlow: flow updated", "flow_id", id)
	return nil
}

// DeleteCustomFlow removes a custom flow. Deleting the active flow
// reassigns the active flow to the default builtin and refreshes the cached
// prompt in the same persisted write.
func (fs *FlowStore) DeleteCustomFlow(id string) error {
	if _, ok := builtinFlow(id); ok {
		return models.ErrBuiltinFlow
	}
	err := fs.state.mutate(func(cfg *models.BotConfig) error {
		if _, ok := cfg.CustomFlows[id]; !ok {
			return models.ErrFlowNotFound
		}
		if cfg.ActiveFlowID == id {
			def, _ := builtinFlow(DefaultFlowID)
			cfg.ActiveFlowID = DefaultFlowID
			cfg.SystemPrompt = def.SystemPrompt
		}
		delete(cfg.CustomFlows, id)
		for i, orderedID := range cfg.CustomFlowOrder {
			if orderedID == id {
				cfg.CustomFlowOrder = append(cfg.CustomFlowOrder[:i], cfg.CustomFlowOrder[i+1:]...)
				break
			}
		}
		return nil
	})
	if err != nil {
		slog.Warn("FlowStore.DeleteCustomFlow failed", "error", err, "flow_id", id)
		return err
	}
	slog.Info("FlowStore.DeleteCustomFlow: flow deleted", "flow_id", id)
	return nil
}

// flowPrompt resolves the system prompt of a flow id within a document.
func flowPrompt(cfg *models.BotConfig, id string) (string, bool) {
	if f, ok := builtinFlow(id); ok {
		return f.SystemPrompt, true
	}
	if f, ok := cfg.CustomFlows[id]; ok {
		return f.SystemPrompt, true
	}
	return "", false
}
