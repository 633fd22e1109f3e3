package audit

import (
	"bytes"
	"encoding/csv"
	"sort"
	"strings"
	"time"
)

// CSV column order is fixed; the export is read back by spreadsheet tooling
// that expects these headers.
var csvHeader = []string{"Date", "Utilisateur", "Action", "Ressource", "Statut", "Sévérité", "Détails"}

// WriteCSV serializes records in the fixed export column order. encoding/csv
// applies RFC 4180 quoting, so free-text details containing commas, quotes or
// newlines survive a round trip intact.
func WriteCSV(records []Record) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	writer.UseCRLF = true

	if err := writer.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, record := range records {
		row := []string{
			record.Timestamp.UTC().Format(time.RFC3339),
			record.ActorName,
			record.Action,
			formatResource(record),
			string(record.Status),
			string(record.Severity),
			FormatDetails(record.Details),
		}
		if err := writer.Write(row); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExportFilename follows the audit-logs-<ISO-date>.csv convention.
func ExportFilename(at time.Time) string {
	return "audit-logs-" + at.UTC().Format("2006-01-02") + ".csv"
}

// FormatDetails flattens the details map into a stable "k=v; k2=v2" string,
// keys sorted so two exports of the same record compare equal.
func FormatDetails(details map[string]string) string {
	if len(details) == 0 {
		return ""
	}
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+details[k])
	}
	return strings.Join(parts, "; ")
}

func formatResource(record Record) string {
	if record.ResourceID == "" {
		return record.ResourceType
	}
	return record.ResourceType + "/" + record.ResourceID
}
