// Package format renders log records to bytes, either through the
// %-directive pattern language or as fixed-schema JSON lines.
package format

import (
	"encoding/json"
	"time"

	"github.com/treelog-io/treelog/pkg/model"
)

// Formatter renders a record for a handler's sink.
type Formatter interface {
	// Format renders rec, including any trailing record separator.
	Format(rec *model.Record) []byte

	// NeedsCaller reports whether rendering consults the record's source
	// location. Caller capture is expensive, so the engine only performs
	// it when some resolved handler's formatter requires it.
	NeedsCaller() bool
}

// startTime anchors the %r (relative time) directive.
var startTime = time.Now()

// jsonRecord is the fixed schema emitted by the JSON formatter. It bypasses
// the pattern language entirely.
type jsonRecord struct {
	Timestamp   time.Time         `json:"timestamp"`
	Sequence    uint64            `json:"sequence"`
	LoggerName  string            `json:"loggerName"`
	Level       string            `json:"level"`
	Message     string            `json:"message"`
	Thread      string            `json:"thread"`
	HostName    string            `json:"hostName"`
	ProcessID   int               `json:"processId"`
	ProcessName string            `json:"processName"`
	Error       string            `json:"error,omitempty"`
	MDC         map[string]string `json:"mdc,omitempty"`
	NDC         []string          `json:"ndc,omitempty"`
	Caller      *model.Caller     `json:"caller,omitempty"`
}

// JSONFormatter serializes records as one JSON object per line, suitable for
// consumption by an external shipper.
type JSONFormatter struct{}

// NewJSON creates a JSON formatter.
func NewJSON() *JSONFormatter { return &JSONFormatter{} }

// Format implements Formatter.
func (f *JSONFormatter) Format(rec *model.Record) []byte {
	out := jsonRecord{
		Timestamp:   rec.Time,
		Sequence:    rec.Sequence,
		LoggerName:  rec.Category,
		Level:       rec.Level.String(),
		Message:     rec.Message,
		Thread:      rec.Goroutine,
		HostName:    model.HostName,
		ProcessID:   model.ProcessID,
		ProcessName: model.ProcessName,
		Error:       rec.ErrText,
		MDC:         rec.MDC,
		NDC:         rec.NDC,
		Caller:      rec.Caller,
	}
	b, err := json.Marshal(out)
	if err != nil {
		// Only unmarshalable values can fail here and the schema has none;
		// fall back to the bare message so the record is not lost.
		b = []byte(`{"message":` + string(mustQuote(rec.Message)) + `}`)
	}
	return append(b, '\n')
}

// NeedsCaller implements Formatter. The JSON schema includes the caller only
// when some other attached formatter already forced its capture.
func (f *JSONFormatter) NeedsCaller() bool { return false }

func mustQuote(s string) []byte {
	b, err := json.Marshal(s)
	if err != nil {
		return []byte(`""`)
	}
	return b
}
