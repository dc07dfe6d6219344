package engine

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

var auditHeader = []string{"ts", "symbol", "side", "qty", "price", "status", "equity", "reason"}

// AuditLog appends decision rows to a CSV file, writing the header only
// when the file does not yet exist, and mirrors every row to a backup file.
type AuditLog struct {
	path       string
	backupPath string
}

func NewAuditLog(path, backupPath string) *AuditLog {
	return &AuditLog{path: path, backupPath: backupPath}
}

// AuditRow is one terminal decision.
type AuditRow struct {
	Ts     time.Time
	Symbol string
	Side   string
	Qty    float64
	Price  float64
	Status string
	Equity float64
	Reason string
}

// Append writes the row to the primary file and the backup mirror. The
// first error is returned for logging; the caller never fails a decision
// over it.
func (a *AuditLog) Append(row AuditRow) error {
	record := []string{
		row.Ts.UTC().Format(time.RFC3339),
		row.Symbol,
		row.Side,
		fmt.Sprintf("%g", row.Qty),
		fmt.Sprintf("%g", row.Price),
		row.Status,
		fmt.Sprintf("%.2f", row.Equity),
		row.Reason,
	}
	err := appendCSV(a.path, record)
	if berr := appendCSV(a.backupPath, record); err == nil {
		err = berr
	}
	return err
}

func appendCSV(path string, record []string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	_, statErr := os.Stat(path)
	writeHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(auditHeader); err != nil {
			return err
		}
	}
	if err := w.Write(record); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
