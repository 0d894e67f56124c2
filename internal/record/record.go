// Package record defines the canonical Record type shared by every tier of
// the service (hot store, cold store, live broadcaster, HTTP surface). A
// single struct with camelCase JSON tags and a snake_case column mapping
// replaces the teacher's-original two-schema split (spec.md §9 Open
// Question / SPEC_FULL.md §3+).
package record

import (
	"encoding/json"
	"errors"
	"time"
)

// LogLevel is one of the five values spec.md §3 allows.
type LogLevel string

const (
	LevelDebug LogLevel = "DEBUG"
	LevelInfo  LogLevel = "INFO"
	LevelWarn  LogLevel = "WARN"
	LevelError LogLevel = "ERROR"
	LevelFatal LogLevel = "FATAL"
)

func (l LogLevel) Valid() bool {
	switch l {
	case LevelDebug, LevelInfo, LevelWarn, LevelError, LevelFatal:
		return true
	}
	return false
}

// Direction is the optional "type" attribute: in/out/error.
type Direction string

const (
	DirectionIn    Direction = "in"
	DirectionOut   Direction = "out"
	DirectionError Direction = "error"
)

// HasError is the tri-valued has_error attribute: the literal strings
// "True"/"False", or absent. Comparisons must be explicit string equality —
// never Go truthiness — per spec.md §9.
type HasError string

const (
	HasErrorTrue  HasError = "True"
	HasErrorFalse HasError = "False"
	HasErrorUnset HasError = ""
)

// Record is the canonical unit of data: one request/response exchange.
type Record struct {
	CorrelationID string    `json:"correlationId" db:"correlation_id"`
	Timestamp     time.Time `json:"timestamp" db:"timestamp"`
	TimestampRaw  string    `json:"timestampRaw,omitempty" db:"timestamp_raw"` // original string, preserved for display per spec.md §9
	APIName       string    `json:"apiName" db:"api_name"`
	ServiceName   string    `json:"serviceName" db:"service_name"`
	LogLevel      LogLevel  `json:"logLevel" db:"log_level"`

	SessionID string    `json:"sessionId,omitempty" db:"session_id"`
	PartyID   string    `json:"partyId,omitempty" db:"party_id"`
	Type      Direction `json:"type,omitempty" db:"log_type"`
	HasError  HasError  `json:"hasError,omitempty" db:"has_error"`

	DurationMs *int64 `json:"durationMs,omitempty" db:"duration_ms"`
	URL        string `json:"url,omitempty" db:"url"`

	Request  json.RawMessage `json:"request,omitempty" db:"request"`
	Response json.RawMessage `json:"response,omitempty" db:"response"`

	ErrorMessage string          `json:"errorMessage,omitempty" db:"error_message"`
	ErrorTrace   string          `json:"errorTrace,omitempty" db:"error_trace"`
	HeaderLog    json.RawMessage `json:"headerLog,omitempty" db:"header_log"`

	SourceFile string    `json:"sourceFile,omitempty" db:"file_name"`
	IngestedAt time.Time `json:"ingestedAt,omitempty" db:"created_at"`
}

// wireRecord mirrors the JSON shape produced by the upstream service inside
// a Frame; field names follow the log lines exactly (camelCase, as emitted
// by the instrumented services). The JSON names match Record's own tags; it is
// a separate type because the timestamp and log level arrive as raw strings
// that ParseWire validates before building a Record.
type wireRecord struct {
	CorrelationID string          `json:"correlationId"`
	Timestamp     string          `json:"timestamp"`
	APIName       string          `json:"apiName"`
	ServiceName   string          `json:"serviceName"`
	LogLevel      string          `json:"logLevel"`
	SessionID     string          `json:"sessionId"`
	PartyID       string          `json:"partyId"`
	Type          string          `json:"type"`
	HasError      string          `json:"hasError"`
	DurationMs    *int64          `json:"durationMs"`
	URL           string          `json:"url"`
	Request       json.RawMessage `json:"request"`
	Response      json.RawMessage `json:"response"`
	ErrorMessage  string          `json:"errorMessage"`
	ErrorTrace    string          `json:"errorTrace"`
	HeaderLog     json.RawMessage `json:"headerLog"`
}

var (
	ErrRequiredFieldMissing = errors.New("required field missing")
	ErrInvalidTimestamp     = errors.New("timestamp is not a valid RFC3339 value")
	ErrInvalidLogLevel      = errors.New("log_level is not one of DEBUG/INFO/WARN/ERROR/FATAL")
)

// ParseWire unmarshals the JSON payload enclosed by a Frame into a Record,
// validating the required attributes named in spec.md §3. markerCID is the
// correlation id recovered from the frame's sentinel markers; it is
// authoritative over whatever correlationId appears in the JSON body
// (spec.md §4.1's CidMismatch rule).
func ParseWire(data []byte, markerCID string) (rec Record, mismatched bool, err error) {
	var w wireRecord
	if err = json.Unmarshal(data, &w); err != nil {
		return
	}

	if w.CorrelationID == "" || w.Timestamp == "" || w.APIName == "" || w.ServiceName == "" || w.LogLevel == "" {
		err = ErrRequiredFieldMissing
		return
	}

	lvl := LogLevel(w.LogLevel)
	if !lvl.Valid() {
		err = ErrInvalidLogLevel
		return
	}

	// Parse the full offset and normalize to UTC, but keep the original
	// string for display — spec.md §9's "+02:00" ambiguity note.
	ts, perr := time.Parse(time.RFC3339, w.Timestamp)
	if perr != nil {
		err = ErrInvalidTimestamp
		return
	}

	cid := markerCID
	if cid == "" {
		cid = w.CorrelationID
	} else if cid != w.CorrelationID {
		mismatched = true
	}

	rec = Record{
		CorrelationID: cid,
		Timestamp:     ts.UTC(),
		TimestampRaw:  w.Timestamp,
		APIName:       w.APIName,
		ServiceName:   w.ServiceName,
		LogLevel:      lvl,
		SessionID:     w.SessionID,
		PartyID:       w.PartyID,
		Type:          Direction(w.Type),
		HasError:      HasError(w.HasError),
		DurationMs:    w.DurationMs,
		URL:           w.URL,
		Request:       w.Request,
		Response:      w.Response,
		ErrorMessage:  w.ErrorMessage,
		ErrorTrace:    w.ErrorTrace,
		HeaderLog:     w.HeaderLog,
	}
	if rec.HasError == HasErrorTrue && rec.ErrorMessage == "" {
		// Invariant in spec.md §3 is advisory, not a rejection reason —
		// the frame is still well-formed; downstream callers may warn.
	}
	return
}
