package execution

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// PaperBroker simulates fills with configurable latency and slippage. Used
// by the demo command and the engine tests; it honors ctx deadlines the
// same way a live transport would.
type PaperBroker struct {
	mu        sync.Mutex
	positions map[string]*BrokerPosition

	LatencyMsMin   int
	LatencyMsMax   int
	SlippageBpsMin int
	SlippageBpsMax int
	// MarkPrice is used when the request carries no limit price.
	MarkPrice float64
	// FailNext forces the next PlaceOrder to fail, for retry tests.
	FailNext int
	// RawStatus overrides the reported status string, for normalization tests.
	RawStatus string
}

func NewPaperBroker(markPrice float64) *PaperBroker {
	return &PaperBroker{
		positions:      make(map[string]*BrokerPosition),
		LatencyMsMin:   1,
		LatencyMsMax:   5,
		SlippageBpsMin: 1,
		SlippageBpsMax: 5,
		MarkPrice:      markPrice,
	}
}

func (b *PaperBroker) PlaceOrder(ctx context.Context, req OrderRequest) (RawOrderResult, error) {
	b.mu.Lock()
	if b.FailNext > 0 {
		b.FailNext--
		b.mu.Unlock()
		return RawOrderResult{}, context.DeadlineExceeded
	}
	latency := b.LatencyMsMin
	if b.LatencyMsMax > b.LatencyMsMin {
		latency += rand.Intn(b.LatencyMsMax - b.LatencyMsMin + 1)
	}
	slippageBps := b.SlippageBpsMin
	if b.SlippageBpsMax > b.SlippageBpsMin {
		slippageBps += rand.Intn(b.SlippageBpsMax - b.SlippageBpsMin + 1)
	}
	b.mu.Unlock()

	select {
	case <-ctx.Done():
		return RawOrderResult{}, ctx.Err()
	case <-time.After(time.Duration(latency) * time.Millisecond):
	}

	px := req.LimitPrice
	if px <= 0 {
		px = b.MarkPrice
	}
	slip := 1 + float64(slippageBps)/10000
	if req.Side == "BUY" {
		px *= slip
	} else {
		px /= slip
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	pos, ok := b.positions[req.Symbol]
	if !ok {
		pos = &BrokerPosition{Symbol: req.Symbol}
		b.positions[req.Symbol] = pos
	}
	if req.Side == "BUY" {
		pos.Qty += req.Qty
	} else {
		pos.Qty -= req.Qty
	}
	pos.AvgCost = px

	status := "Filled"
	if b.RawStatus != "" {
		status = b.RawStatus
	}
	return RawOrderResult{
		OrderID:  ulid.Make().String(),
		Status:   status,
		Filled:   req.Qty,
		AvgPrice: px,
	}, nil
}

func (b *PaperBroker) Positions(ctx context.Context) ([]BrokerPosition, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]BrokerPosition, 0, len(b.positions))
	for _, p := range b.positions {
		out = append(out, *p)
	}
	return out, nil
}
