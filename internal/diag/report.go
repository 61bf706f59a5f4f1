package diag

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sunholo/ferrous/internal/span"
)

// SchemaVersion tags serialized reports
const SchemaVersion = "ferrous.diag/v1"

// Report is the canonical structured diagnostic type.
// All stage error builders return *Report, wrapped as ReportError.
type Report struct {
	Schema  string         `json:"schema"`
	Code    string         `json:"code"`           // Stable code (EXP001, TYP002, ...)
	Phase   string         `json:"phase"`          // "expand", "resolve", "typecheck", "layout", "target"
	Message string         `json:"message"`        // Human-readable message
	Span    *span.Span     `json:"span,omitempty"` // Source location (optional)
	Data    map[string]any `json:"data,omitempty"` // Structured data
}

// New creates a report for the given phase and code
func New(phase, code string, sp span.Span, format string, args ...any) *Report {
	r := &Report{
		Schema:  SchemaVersion,
		Code:    code,
		Phase:   phase,
		Message: fmt.Sprintf(format, args...),
	}
	if !sp.IsZero() {
		r.Span = &sp
	}
	return r
}

// ReportError wraps a Report as an error so structure survives errors.As
type ReportError struct {
	Rep *Report
}

// Error implements the error interface
func (e *ReportError) Error() string {
	if e.Rep == nil {
		return "unknown error"
	}
	if e.Rep.Span != nil {
		return fmt.Sprintf("%s: %s: %s", e.Rep.Span, e.Rep.Code, e.Rep.Message)
	}
	return e.Rep.Code + ": " + e.Rep.Message
}

// AsReport attempts to extract a Report from an error chain
func AsReport(err error) (*Report, bool) {
	var re *ReportError
	if errors.As(err, &re) {
		return re.Rep, true
	}
	return nil, false
}

// WrapReport wraps a Report as a ReportError
func WrapReport(r *Report) error {
	if r == nil {
		return nil
	}
	return &ReportError{Rep: r}
}

// Errorf builds and wraps a report in one step
func Errorf(phase, code string, sp span.Span, format string, args ...any) error {
	return WrapReport(New(phase, code, sp, format, args...))
}

// ToJSON converts a Report to JSON (deterministic: fields in declaration
// order, Data keys sorted)
func (r *Report) ToJSON(compact bool) (string, error) {
	var data []byte
	var err error
	if compact {
		data, err = json.Marshal(r)
	} else {
		data, err = json.MarshalIndent(r, "", "  ")
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}
