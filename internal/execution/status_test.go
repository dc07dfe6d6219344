package execution

import "testing"

func TestNormalizeStatus(t *testing.T) {
	testCases := []struct {
		raw        string
		want       Status
		wantReason string
	}{
		{"filled", StatusFilled, ""},
		{"Filled", StatusFilled, ""},
		{"EXECUTED", StatusFilled, ""},
		{" done ", StatusFilled, ""},
		{"submitted", StatusPending, ""},
		{"PreSubmitted", StatusPending, ""},
		{"partially_filled", StatusPending, ""},
		{"accepted", StatusPending, ""},
		{"blocked", StatusBlocked, ""},
		{"veto", StatusBlocked, ""},
		{"cancelled", StatusRejected, ""},
		{"canceled", StatusRejected, ""},
		{"expired", StatusRejected, ""},
		{"timeout", StatusError, ""},
		{"failed", StatusError, ""},
		{"ok", StatusOK, ""},
		{"skipped", StatusIgnored, ""},
		// Anything outside the table is a contract bug, never tradeable.
		{"weird", StatusRejected, "invalid_status"},
		{"", StatusRejected, "invalid_status"},
		{"FILLED_MAYBE", StatusRejected, "invalid_status"},
	}

	for _, tc := range testCases {
		t.Run(tc.raw, func(t *testing.T) {
			got, reason := NormalizeStatus(tc.raw)
			if got != tc.want || reason != tc.wantReason {
				t.Errorf("NormalizeStatus(%q) = (%s, %q), want (%s, %q)",
					tc.raw, got, reason, tc.want, tc.wantReason)
			}
		})
	}
}
