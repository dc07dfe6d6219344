package observ

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"
)

func TestLogEmitsJSONLines(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	Log("order_routed", map[string]any{"symbol": "AAPL", "qty": 10.0})
	Log("order_routed", nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}

	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("line is not JSON: %v", err)
	}
	if rec["event"] != "order_routed" {
		t.Errorf("event = %v", rec["event"])
	}
	if rec["symbol"] != "AAPL" {
		t.Errorf("symbol = %v", rec["symbol"])
	}
	if _, ok := rec["ts"]; !ok {
		t.Error("missing ts key")
	}

	// nil kv still produces a valid record.
	if err := json.Unmarshal([]byte(lines[1]), &rec); err != nil {
		t.Fatalf("nil-kv line is not JSON: %v", err)
	}
	if rec["event"] != "order_routed" {
		t.Errorf("event = %v", rec["event"])
	}
}
