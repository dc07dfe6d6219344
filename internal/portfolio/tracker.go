package portfolio

import (
	"math"
	"sync"

	"github.com/quantfold/tradegate/internal/observ"
)

// Position is a live holding for a single symbol. Qty is signed: positive
// long, negative short. Entries exist only while qty is non-zero.
type Position struct {
	Symbol   string  `json:"symbol"`
	Qty      float64 `json:"qty"`
	AvgPrice float64 `json:"avg_price"`
}

// Side reports the direction of the position.
func (p Position) Side() string {
	switch {
	case p.Qty > 0:
		return "LONG"
	case p.Qty < 0:
		return "SHORT"
	}
	return "FLAT"
}

// Tracker owns all position state. It is mutated only by fill events; every
// other consumer reads snapshots.
type Tracker struct {
	mu          sync.RWMutex
	positions   map[string]Position
	marks       map[string]float64 // last seen price per symbol
	capitalBase float64
	realizedPnl float64
	peakEquity  float64
}

func NewTracker(capitalBase float64) *Tracker {
	return &Tracker{
		positions:   make(map[string]Position),
		marks:       make(map[string]float64),
		capitalBase: capitalBase,
		peakEquity:  capitalBase,
	}
}

// ApplyFill merges a fill into the position for symbol. Same-direction adds
// recompute the weighted-average price; opposite-direction fills reduce and
// may flip, realizing PnL against the average. Returns realized PnL.
func (t *Tracker) ApplyFill(symbol, side string, qty, price float64) float64 {
	if qty <= 0 || price <= 0 {
		return 0
	}
	signed := qty
	if side == "SELL" {
		signed = -qty
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.marks[symbol] = price
	pos := t.positions[symbol]
	pos.Symbol = symbol

	var realized float64
	switch {
	case pos.Qty == 0:
		pos.Qty = signed
		pos.AvgPrice = price
	case sameSign(pos.Qty, signed):
		total := pos.Qty + signed
		pos.AvgPrice = (pos.AvgPrice*math.Abs(pos.Qty) + price*math.Abs(signed)) / math.Abs(total)
		pos.Qty = total
	default:
		closed := math.Min(math.Abs(signed), math.Abs(pos.Qty))
		if pos.Qty > 0 {
			realized = closed * (price - pos.AvgPrice)
		} else {
			realized = closed * (pos.AvgPrice - price)
		}
		pos.Qty += signed
		if pos.Qty != 0 && !sameSign(pos.Qty, pos.Qty-signed) {
			// Flipped through flat: remainder opens at the fill price.
			pos.AvgPrice = price
		}
	}

	t.realizedPnl += realized
	if pos.Qty == 0 {
		delete(t.positions, symbol)
	} else {
		t.positions[symbol] = pos
	}

	eq := t.equityLocked()
	if eq > t.peakEquity {
		t.peakEquity = eq
	}
	observ.SetEquity(eq)
	return realized
}

// UpdateMark records a fresh mark price without touching the position.
func (t *Tracker) UpdateMark(symbol string, price float64) {
	if price <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.marks[symbol] = price
}

// GetPosition returns the position and whether one exists.
func (t *Tracker) GetPosition(symbol string) (Position, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	pos, ok := t.positions[symbol]
	return pos, ok
}

// Positions returns a copy of every open position.
func (t *Tracker) Positions() map[string]Position {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]Position, len(t.positions))
	for s, p := range t.positions {
		out[s] = p
	}
	return out
}

// TotalExposure sums |qty|*price across symbols using the supplied price
// map, falling back to the stored mark, then the entry average.
func (t *Tracker) TotalExposure(prices map[string]float64) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	total := 0.0
	for sym, pos := range t.positions {
		px := prices[sym]
		if px <= 0 {
			px = t.marks[sym]
		}
		if px <= 0 {
			px = pos.AvgPrice
		}
		total += math.Abs(pos.Qty) * px
	}
	return total
}

// GrossExposure is TotalExposure against the stored marks.
func (t *Tracker) GrossExposure() float64 {
	return t.TotalExposure(nil)
}

// Equity returns capital base plus realized and unrealized PnL. ok is false
// when no capital base was configured.
func (t *Tracker) Equity() (float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.capitalBase <= 0 {
		return 0, false
	}
	return t.equityLocked(), true
}

func (t *Tracker) equityLocked() float64 {
	eq := t.capitalBase + t.realizedPnl
	for sym, pos := range t.positions {
		mark := t.marks[sym]
		if mark <= 0 {
			continue
		}
		eq += pos.Qty * (mark - pos.AvgPrice)
	}
	return eq
}

// RealizedPnl returns cumulative realized PnL since construction or the
// last day reset.
func (t *Tracker) RealizedPnl() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.realizedPnl
}

// Drawdown is 1 - equity/peakEquity; peak only ratchets upward.
func (t *Tracker) Drawdown() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.peakEquity <= 0 {
		return 0
	}
	dd := 1 - t.equityLocked()/t.peakEquity
	if dd < 0 {
		return 0
	}
	return dd
}

// SectorNotionals aggregates gross exposure per sector using the supplied
// symbol classifier.
func (t *Tracker) SectorNotionals(sectorOf func(string) string) map[string]float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]float64)
	for sym, pos := range t.positions {
		px := t.marks[sym]
		if px <= 0 {
			px = pos.AvgPrice
		}
		out[sectorOf(sym)] += math.Abs(pos.Qty) * px
	}
	return out
}

// ResetDay folds the day's realized PnL into the capital base so equity is
// continuous across the boundary. Positions and peak equity carry over.
func (t *Tracker) ResetDay() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.capitalBase += t.realizedPnl
	t.realizedPnl = 0
}

func sameSign(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}
