package flow

import (
	"errors"
	"sync"
	"testing"

	"github.com/karuna-es/karunabot/internal/models"
	"github.com/karuna-es/karunabot/internal/store"
)

func newTestStores(t *testing.T) (*FlowStore, *BlacklistStore, *store.InMemoryStore) {
	t.Helper()
	st := store.NewInMemoryStore()
	flows, blacklist := NewStores(st)
	return flows, blacklist, st
}

func TestDefaultActiveFlow(t *testing.T) {
	flows, _, _ := newTestStores(t)

	active := flows.ActiveFlow()
	if active.ID != DefaultFlowID {
		t.Errorf("expected default active flow %q, got %q", DefaultFlowID, active.ID)
	}
	if !active.IsBuiltin {
		t.Error("expected default flow to be builtin")
	}
	if flows.ActivePrompt() == "" {
		t.Error("expected non-empty default prompt")
	}
}

func TestListFlowsBuiltinsFirst(t *testing.T) {
	flows, _, _ := newTestStores(t)

	if err := flows.CreateCustomFlow(models.Flow{ID: "soporte", Name: "Soporte", SystemPrompt: "Eres soporte."}); err != nil {
		t.Fatalf("CreateCustomFlow failed: %v", err)
	}
	if err := flows.CreateCustomFlow(models.Flow{ID: "ventas_b2b", Name: "Ventas B2B", SystemPrompt: "Eres ventas."}); err != nil {
		t.Fatalf("CreateCustomFlow failed: %v", err)
	}

	list := flows.ListFlows()
	if len(list) != 5 {
		t.Fatalf("expected 5 flows, got %d", len(list))
	}
	for i := 0; i < 3; i++ {
		if !list[i].IsBuiltin {
			t.Errorf("expected flow %d to be builtin, got %q", i, list[i].ID)
		}
	}
	if list[3].ID != "soporte" || list[4].ID != "ventas_b2b" {
		t.Errorf("expected custom flows in creation order, got %q, %q", list[3].ID, list[4].ID)
	}
}

func TestCreateCustomFlowInvalidID(t *testing.T) {
	flows, _, _ := newTestStores(t)

	for _, id := range []string{"", "Mayus", "con espacio", "tilde-no", "emoji!"} {
		err := flows.CreateCustomFlow(models.Flow{ID: id, Name: "x", SystemPrompt: "x"})
		if !errors.Is(err, models.ErrInvalidFlowID) {
			t.Errorf("id %q: expected ErrInvalidFlowID, got %v", id, err)
		}
	}
}

func TestCreateCustomFlowBuiltinCollision(t *testing.T) {
	flows, _, _ := newTestStores(t)

	err := flows.CreateCustomFlow(models.Flow{ID: DefaultFlowID, Name: "x", SystemPrompt: "x"})
	if !errors.Is(err, models.ErrFlowExists) {
		t.Errorf("expected ErrFlowExists for builtin id, got %v", err)
	}
}

func TestCreateCustomFlowDuplicate(t *testing.T) {
	flows, _, _ := newTestStores(t)

	def := models.Flow{ID: "soporte", Name: "Soporte", SystemPrompt: "x"}
	if err := flows.CreateCustomFlow(def); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	if err := flows.CreateCustomFlow(def); !errors.Is(err, models.ErrFlowExists) {
		t.Errorf("expected ErrFlowExists on duplicate, got %v", err)
	}
}

func TestConcurrentCreateSameID(t *testing.T) {
	flows, _, _ := newTestStores(t)

	const workers = 8
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- flows.CreateCustomFlow(models.Flow{ID: "carrera", Name: "Carrera", SystemPrompt: "x"})
		}()
	}
	wg.Wait()
	close(errs)

	var successes, conflicts int
	for err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, models.ErrFlowExists):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Errorf("expected exactly 1 successful create, got %d", successes)
	}
	if conflicts != workers-1 {
		t.Errorf("expected %d conflicts, got %d", workers-1, conflicts)
	}
}

func TestSetActiveFlow(t *testing.T) {
	flows, _, _ := newTestStores(t)

	if err := flows.CreateCustomFlow(models.Flow{ID: "soporte", Name: "Soporte", SystemPrompt: "Eres soporte."}); err != nil {
		t.Fatalf("CreateCustomFlow failed: %v", err)
	}
	if err := flows.SetActiveFlow("soporte"); err != nil {
		t.Fatalf("SetActiveFlow failed: %v", err)
	}
	if got := flows.ActiveFlowID(); got != "soporte" {
		t.Errorf("expected active flow soporte, got %q", got)
	}
	if got := flows.ActivePrompt(); got != "Eres soporte." {
		t.Errorf("expected prompt to follow active flow, got %q", got)
	}

	if err := flows.SetActiveFlow("no_existe"); !errors.Is(err, models.ErrFlowNotFound) {
		t.Errorf("expected ErrFlowNotFound, got %v", err)
	}
	if got := flows.ActiveFlowID(); got != "soporte" {
		t.Errorf("failed activation must not change active flow, got %q", got)
	}
}

func TestSetSystemPromptBuiltinRejected(t *testing.T) {
	flows, _, _ := newTestStores(t)

	if err := flows.SetSystemPrompt("nuevo prompt"); !errors.Is(err, models.ErrBuiltinFlow) {
		t.Errorf("expected ErrBuiltinFlow while builtin is active, got %v", err)
	}
}

func TestSetSystemPromptCustomFlow(t *testing.T) {
	flows, _, _ := newTestStores(t)

	if err := flows.CreateCustomFlow(models.Flow{ID: "soporte", Name: "Soporte", SystemPrompt: "viejo"}); err != nil {
		t.Fatalf("CreateCustomFlow failed: %v", err)
	}
	if err := flows.SetActiveFlow("soporte"); err != nil {
		t.Fatalf("SetActiveFlow failed: %v", err)
	}
	if err := flows.SetSystemPrompt("nuevo"); err != nil {
		t.Fatalf("SetSystemPrompt failed: %v", err)
	}
	if got := flows.ActivePrompt(); got != "nuevo" {
		t.Errorf("expected updated prompt, got %q", got)
	}
	f, err := flows.GetFlow("soporte")
	if err != nil {
		t.Fatalf("GetFlow failed: %v", err)
	}
	if f.SystemPrompt != "nuevo" {
		t.Errorf("expected flow table to carry updated prompt, got %q", f.SystemPrompt)
	}
}

func TestActivePromptBlankCustomPrompt(t *testing.T) {
	st := store.NewInMemoryStore()
	if err := st.SaveConfig(&models.BotConfig{
		ActiveFlowID: "silencio",
		SystemPrompt: "prompt viejo en cache",
		CustomFlows: map[string]models.Flow{
			"silencio": {ID: "silencio", Name: "Silencio", SystemPrompt: ""},
		},
		CustomFlowOrder: []string{"silencio"},
	}); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	flows, _ := NewStores(st)

	// A resolvable flow with a deliberately blank prompt stays blank; the
	// cached document prompt only covers an unresolvable active id.
	if got := flows.ActivePrompt(); got != "" {
		t.Errorf("expected blank prompt from the flow table, got %q", got)
	}
}

func TestActivePromptUnresolvableActiveFlow(t *testing.T) {
	st := store.NewInMemoryStore()
	if err := st.SaveConfig(&models.BotConfig{
		ActiveFlowID: "fantasma",
		SystemPrompt: "prompt en cache",
		CustomFlows:  map[string]models.Flow{},
	}); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	flows, _ := NewStores(st)

	// Load normalization reverts a missing active id to the default flow,
	// so the served prompt is the default's, never the stale cache.
	if got := flows.ActiveFlowID(); got != DefaultFlowID {
		t.Errorf("expected revert to default flow, got %q", got)
	}
	def, _ := builtinFlow(DefaultFlowID)
	if got := flows.ActivePrompt(); got != def.SystemPrompt {
		t.Errorf("expected default flow prompt, got %q", got)
	}
}

func TestUpdateCustomFlow(t *testing.T) {
	flows, _, _ := newTestStores(t)

	if err := flows.CreateCustomFlow(models.Flow{ID: "soporte", Name: "Soporte", Description: "d", SystemPrompt: "viejo"}); err != nil {
		t.Fatalf("CreateCustomFlow failed: %v", err)
	}

	newName := "Soporte Tecnico"
	newPrompt := "nuevo"
	if err := flows.UpdateCustomFlow("soporte", FlowUpdate{Name: &newName, SystemPrompt: &newPrompt}); err != nil {
		t.Fatalf("UpdateCustomFlow failed: %v", err)
	}

	f, err := flows.GetFlow("soporte")
	if err != nil {
		t.Fatalf("GetFlow failed: %v", err)
	}
	if f.Name != newName {
		t.Errorf("expected updated name, got %q", f.Name)
	}
	if f.SystemPrompt != newPrompt {
		t.Errorf("expected updated prompt, got %q", f.SystemPrompt)
	}
	if f.Description != "d" {
		t.Errorf("untouched field changed: %q", f.Description)
	}

	if err := flows.UpdateCustomFlow("restaurant", FlowUpdate{Name: &newName}); !errors.Is(err, models.ErrBuiltinFlow) {
		t.Errorf("expected ErrBuiltinFlow for builtin update, got %v", err)
	}
	if err := flows.UpdateCustomFlow("no_existe", FlowUpdate{Name: &newName}); !errors.Is(err, models.ErrFlowNotFound) {
		t.Errorf("expected ErrFlowNotFound, got %v", err)
	}
}

func TestUpdateActiveFlowPromptRefreshesCache(t *testing.T) {
	flows, _, _ := newTestStores(t)

	if err := flows.CreateCustomFlow(models.Flow{ID: "soporte", Name: "Soporte", SystemPrompt: "viejo"}); err != nil {
		t.Fatalf("CreateCustomFlow failed: %v", err)
	}
	if err := flows.SetActiveFlow("soporte"); err != nil {
		t.Fatalf("SetActiveFlow failed: %v", err)
	}

	newPrompt := "nuevo"
	if err := flows.UpdateCustomFlow("soporte", FlowUpdate{SystemPrompt: &newPrompt}); err != nil {
		t.Fatalf("UpdateCustomFlow failed: %v", err)
	}
	if got := flows.ActivePrompt(); got != "nuevo" {
		t.Errorf("expected active prompt refreshed, got %q", got)
	}
}

func TestDeleteCustomFlow(t *testing.T) {
	flows, _, _ := newTestStores(t)

	if err := flows.CreateCustomFlow(models.Flow{ID: "soporte", Name: "Soporte", SystemPrompt: "x"}); err != nil {
		t.Fatalf("CreateCustomFlow failed: %v", err)
	}
	if err := flows.DeleteCustomFlow("soporte"); err != nil {
		t.Fatalf("DeleteCustomFlow failed: %v", err)
	}
	if _, err := flows.GetFlow("soporte"); !errors.Is(err, models.ErrFlowNotFound) {
		t.Errorf("expected flow gone, got %v", err)
	}

	if err := flows.DeleteCustomFlow("sales"); !errors.Is(err, models.ErrBuiltinFlow) {
		t.Errorf("expected ErrBuiltinFlow for builtin delete, got %v", err)
	}
	if err := flows.DeleteCustomFlow("no_existe"); !errors.Is(err, models.ErrFlowNotFound) {
		t.Errorf("expected ErrFlowNotFound, got %v", err)
	}
}

func TestDeleteActiveFlowFallsBackToDefault(t *testing.T) {
	flows, _, _ := newTestStores(t)

	if err := flows.CreateCustomFlow(models.Flow{ID: "soporte", Name: "Soporte", SystemPrompt: "prompt soporte"}); err != nil {
		t.Fatalf("CreateCustomFlow failed: %v", err)
	}
	if err := flows.SetActiveFlow("soporte"); err != nil {
		t.Fatalf("SetActiveFlow failed: %v", err)
	}
	if err := flows.DeleteCustomFlow("soporte"); err != nil {
		t.Fatalf("DeleteCustomFlow failed: %v", err)
	}

	if got := flows.ActiveFlowID(); got != DefaultFlowID {
		t.Errorf("expected fallback to %q, got %q", DefaultFlowID, got)
	}
	def, _ := builtinFlow(DefaultFlowID)
	if got := flows.ActivePrompt(); got != def.SystemPrompt {
		t.Error("expected active prompt to match default flow after fallback")
	}
}

func TestConfigSurvivesReload(t *testing.T) {
	flows, blacklist, st := newTestStores(t)

	if err := flows.CreateCustomFlow(models.Flow{ID: "soporte", Name: "Soporte", SystemPrompt: "x"}); err != nil {
		t.Fatalf("CreateCustomFlow failed: %v", err)
	}
	if err := flows.SetActiveFlow("soporte"); err != nil {
		t.Fatalf("SetActiveFlow failed: %v", err)
	}
	if err := blacklist.Add("52111"); err != nil {
		t.Fatalf("blacklist Add failed: %v", err)
	}

	// A fresh set of stores over the same backend sees the same document.
	flows2, blacklist2 := NewStores(st)
	if got := flows2.ActiveFlowID(); got != "soporte" {
		t.Errorf("expected reloaded active flow soporte, got %q", got)
	}
	if _, err := flows2.GetFlow("soporte"); err != nil {
		t.Errorf("expected reloaded custom flow, got %v", err)
	}
	if !blacklist2.Contains("52111") {
		t.Error("expected reloaded blacklist entry")
	}
}
