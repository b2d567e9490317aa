package verify

import (
	"encoding/json"
	"io"
	"sync"
	"time"
)

// File statuses recorded in the manifest.
const (
	StatusMatched   = "matched"
	StatusDuplicate = "duplicate"
	StatusUnmatched = "unmatched"
	StatusSkipped   = "skipped"
	StatusError     = "error"
)

// Record describes one candidate file for the manifest.
type Record struct {
	SchemaVersion int      `json:"schema_version"`
	Collection    string   `json:"collection,omitempty"`
	Path          string   `json:"path"`
	Entry         string   `json:"entry,omitempty"`
	Size          int      `json:"size,omitempty"`
	CRC           string   `json:"crc,omitempty"`
	Status        string   `json:"status"`
	Categories    []string `json:"categories,omitempty"`
	Error         string   `json:"error,omitempty"`
	StartedAt     string   `json:"started_at,omitempty"`
	FinishedAt    string   `json:"finished_at,omitempty"`
}

// SafeWriter provides serialized writes for logs/manifests.
type SafeWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewSafeWriter wraps w. A nil w discards everything.
func NewSafeWriter(w io.Writer) *SafeWriter {
	if w == nil {
		w = io.Discard
	}
	return &SafeWriter{w: w}
}

func (sw *SafeWriter) Write(p []byte) (int, error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.w.Write(p)
}

// writeRecords encodes one JSON line per record.
func writeRecords(w io.Writer, recs []Record) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, rec := range recs {
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	return nil
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
