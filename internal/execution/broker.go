package execution

import "context"

// RawOrderResult is what a broker hands back before normalization. Status
// is broker-native; the core never assumes a fixed vocabulary here.
type RawOrderResult struct {
	OrderID  string
	Status   string
	Filled   float64
	AvgPrice float64
}

// BrokerPosition mirrors Broker.positions() rows.
type BrokerPosition struct {
	Symbol  string
	Qty     float64
	AvgCost float64
}

// OrderRequest is one order submitted to a broker.
type OrderRequest struct {
	Symbol     string
	Side       string // BUY | SELL
	Qty        float64
	OrderType  string // market | limit
	LimitPrice float64
	Meta       map[string]string
}

// Broker is the transport boundary. Implementations may run their own event
// loops; from this core's perspective PlaceOrder is a synchronous call with
// an explicit deadline carried by ctx.
type Broker interface {
	PlaceOrder(ctx context.Context, req OrderRequest) (RawOrderResult, error)
	Positions(ctx context.Context) ([]BrokerPosition, error)
}
