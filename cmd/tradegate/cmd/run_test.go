package cmd

import (
	"path/filepath"
	"testing"

	"github.com/quantfold/tradegate/internal/config"
)

func TestBuildEngineRejectsLiveMode(t *testing.T) {
	cfg := config.Default()
	cfg.TradingMode = "live"
	if _, _, err := buildEngine(cfg); err == nil {
		t.Fatal("expected error: no live broker transport is wired")
	}
}

func TestBuildEnginePaperMode(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Risk.StatePath = filepath.Join(dir, "risk_state.json")
	cfg.Audit.Path = filepath.Join(dir, "audit.csv")
	cfg.Audit.BackupPath = filepath.Join(dir, "audit_backup.csv")
	cfg.Audit.JournalDB = filepath.Join(dir, "journal.db")

	eng, jnl, err := buildEngine(cfg)
	if err != nil {
		t.Fatalf("buildEngine: %v", err)
	}
	if eng == nil || jnl == nil {
		t.Fatal("expected engine and journal")
	}
	jnl.Close()
}
