package risk

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// State holds the per-account daily risk counters. One instance per account,
// mutated only through Manager and flushed after every mutation.
type State struct {
	DayStartEquity    float64 `json:"day_start_equity"`
	DayRealizedPnl    float64 `json:"day_realized_pnl"`
	TradesToday       int     `json:"trades_today"`
	ConsecutiveLosers int     `json:"consecutive_losers"`
	HaltedUntilBarTs  int64   `json:"halted_until_bar_ts"` // epoch ms
	HaltedReason      string  `json:"halted_reason"`
	LastBarTs         int64   `json:"last_bar_ts"` // epoch ms
	DailyLossBreached bool    `json:"daily_loss_breached"`
	PeakEquity        float64 `json:"peak_equity"`
}

// StateStore persists State. Injected so tests can supply an in-memory fake.
type StateStore interface {
	Load() (State, bool, error)
	Save(State) error
}

// FileStateStore keeps State as a JSON blob at a configurable path.
// Absence on first read is not an error.
type FileStateStore struct {
	path string
}

func NewFileStateStore(path string) *FileStateStore {
	return &FileStateStore{path: path}
}

func (s *FileStateStore) Load() (State, bool, error) {
	var st State
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return st, false, nil
		}
		return st, false, fmt.Errorf("read risk state: %w", err)
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, false, fmt.Errorf("unmarshal risk state: %w", err)
	}
	return st, true, nil
}

// Save writes atomically via temp file + rename.
func (s *FileStateStore) Save(st State) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create risk state dir: %w", err)
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal risk state: %w", err)
	}
	tempPath := s.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("write risk state: %w", err)
	}
	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename risk state: %w", err)
	}
	return nil
}

// MemStateStore is an in-memory StateStore for tests and dry runs.
type MemStateStore struct {
	st    State
	found bool
	// FailSaves forces Save errors to exercise fail-closed behavior.
	FailSaves bool
}

func (m *MemStateStore) Load() (State, bool, error) { return m.st, m.found, nil }

func (m *MemStateStore) Save(st State) error {
	if m.FailSaves {
		return fmt.Errorf("save risk state: store unavailable")
	}
	m.st = st
	m.found = true
	return nil
}
