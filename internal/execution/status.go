package execution

import "strings"

// Status is the canonical order-outcome vocabulary. Every executor and
// broker result is normalized into this closed set before anything
// downstream sees it.
type Status string

const (
	StatusFilled   Status = "filled"
	StatusPending  Status = "pending"
	StatusBlocked  Status = "blocked"
	StatusRejected Status = "rejected"
	StatusError    Status = "error"
	StatusOK       Status = "ok"
	StatusIgnored  Status = "ignored"
)

// Result is the normalized outcome handed back to the engine.
type Result struct {
	OrderID  string  `json:"order_id,omitempty"`
	Status   Status  `json:"status"`
	Reason   string  `json:"reason,omitempty"`
	Filled   float64 `json:"filled"`
	AvgPrice float64 `json:"avg_price"`
}

// rawStatusTable maps every known upstream status string to the canonical
// vocabulary. Broker-native spellings observed in the wild are listed
// explicitly; nothing outside this table passes through.
var rawStatusTable = map[string]Status{
	"filled":           StatusFilled,
	"fill":             StatusFilled,
	"done":             StatusFilled,
	"executed":         StatusFilled,
	"complete":         StatusFilled,
	"pending":          StatusPending,
	"submitted":        StatusPending,
	"presubmitted":     StatusPending,
	"pendingsubmit":    StatusPending,
	"new":              StatusPending,
	"accepted":         StatusPending,
	"open":             StatusPending,
	"partially_filled": StatusPending,
	"blocked":          StatusBlocked,
	"veto":             StatusBlocked,
	"rejected":         StatusRejected,
	"cancelled":        StatusRejected,
	"canceled":         StatusRejected,
	"inactive":         StatusRejected,
	"expired":          StatusRejected,
	"error":            StatusError,
	"failed":           StatusError,
	"timeout":          StatusError,
	"ok":               StatusOK,
	"ignored":          StatusIgnored,
	"skip":             StatusIgnored,
	"skipped":          StatusIgnored,
}

// NormalizeStatus maps a raw executor status into the canonical set. An
// unrecognized value is a contract bug in the executor, not a tradeable
// state: it maps to rejected/invalid_status and never passes through.
func NormalizeStatus(raw string) (Status, string) {
	if s, ok := rawStatusTable[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return s, ""
	}
	return StatusRejected, "invalid_status"
}
