package journal

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS outcomes (
	trade_id TEXT PRIMARY KEY,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	qty REAL NOT NULL,
	pnl REAL NOT NULL,
	opened_at DATETIME NOT NULL,
	closed_at DATETIME NOT NULL,
	reason TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_outcomes_closed_at ON outcomes(closed_at);
`

// Outcome is one closed round-trip trade.
type Outcome struct {
	TradeID  string
	Symbol   string
	Side     string
	Qty      float64
	Pnl      float64
	OpenedAt time.Time
	ClosedAt time.Time
	Reason   string
}

// Journal is the durable trade-outcome log backing the performance
// tracker. Writes are best-effort from the engine's point of view: a
// journal failure never blocks a decision.
type Journal struct {
	db *sql.DB
}

func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Journal{db: db}, nil
}

func (j *Journal) RecordOutcome(o Outcome) error {
	_, err := j.db.Exec(`
		INSERT INTO outcomes
		(trade_id, symbol, side, qty, pnl, opened_at, closed_at, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		o.TradeID, o.Symbol, o.Side, o.Qty, o.Pnl, o.OpenedAt, o.ClosedAt, o.Reason,
	)
	return err
}

// RecentOutcomes returns up to limit outcomes, newest first.
func (j *Journal) RecentOutcomes(limit int) ([]Outcome, error) {
	rows, err := j.db.Query(`
		SELECT trade_id, symbol, side, qty, pnl, opened_at, closed_at, reason
		FROM outcomes ORDER BY closed_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Outcome
	for rows.Next() {
		var o Outcome
		if err := rows.Scan(&o.TradeID, &o.Symbol, &o.Side, &o.Qty, &o.Pnl,
			&o.OpenedAt, &o.ClosedAt, &o.Reason); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (j *Journal) Close() error { return j.db.Close() }
