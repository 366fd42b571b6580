package event

import (
	"bytes"
	"encoding/csv"
	"time"
)

var exportHeader = []string{"id", "created_at", "event_type", "ambassador_id", "referral_id", "source", "device", "metadata"}

// escapeCell neutralises values a spreadsheet would evaluate as a formula.
func escapeCell(v string) string {
	if v == "" {
		return v
	}
	switch v[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + v
	}
	return v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func renderCSV(events []*ReferralEvent) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(exportHeader); err != nil {
		return nil, err
	}
	for _, e := range events {
		row := []string{
			e.ID,
			e.CreatedAt.UTC().Format(time.RFC3339),
			string(e.EventType),
			deref(e.AmbassadorID),
			deref(e.ReferralID),
			e.Source,
			string(e.Device),
			string(e.Metadata),
		}
		for i := range row {
			row[i] = escapeCell(row[i])
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	return buf.Bytes(), w.Error()
}
