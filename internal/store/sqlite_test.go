package store

import (
	"path/filepath"
	"testing"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "karunabot.db")
	st, err := NewSQLiteStore(WithSQLiteDSN(dbPath))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestSQLiteStoreEmptyLoad(t *testing.T) {
	st := newTestSQLiteStore(t)

	cfg, err := st.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg != nil {
		t.Fatal("expected nil config from fresh database")
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)

	if err := st.SaveConfig(sampleConfig()); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := st.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected config after save")
	}
	if loaded.ActiveFlowID != "karuna" {
		t.Errorf("expected active flow karuna, got %q", loaded.ActiveFlowID)
	}
	flow, ok := loaded.CustomFlows["soporte"]
	if !ok {
		t.Fatal("expected custom flow soporte")
	}
	if flow.MenuConfig == nil || len(flow.MenuConfig.Options) != 1 {
		t.Error("expected menu config to survive the round trip")
	}
	if len(loaded.Blacklist) != 2 {
		t.Errorf("expected 2 blacklist entries, got %d", len(loaded.Blacklist))
	}
}

func TestSQLiteStoreOverwrite(t *testing.T) {
	st := newTestSQLiteStore(t)

	if err := st.SaveConfig(sampleConfig()); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}
	updated := sampleConfig()
	updated.ActiveFlowID = "soporte"
	updated.Blacklist = nil
	if err := st.SaveConfig(updated); err != nil {
		t.Fatalf("second SaveConfig failed: %v", err)
	}

	loaded, err := st.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.ActiveFlowID != "soporte" {
		t.Errorf("expected overwritten active flow soporte, got %q", loaded.ActiveFlowID)
	}
	if len(loaded.Blacklist) != 0 {
		t.Errorf("expected empty blacklist after overwrite, got %v", loaded.Blacklist)
	}
}

func TestSQLiteStoreMalformedDocument(t *testing.T) {
	st := newTestSQLiteStore(t)

	if _, err := st.db.Exec(`INSERT OR REPLACE INTO bot_config (id, document, updated_at) VALUES (1, 'not json', 0)`); err != nil {
		t.Fatalf("failed to plant malformed document: %v", err)
	}

	cfg, err := st.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig must tolerate malformed documents, got %v", err)
	}
	if cfg != nil {
		t.Error("expected nil config for malformed document")
	}
}

func TestSQLiteStoreRequiresDSN(t *testing.T) {
	if _, err := NewSQLiteStore(); err == nil {
		t.Fatal("expected error without DSN")
	}
}
