package diag

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Sink accumulates warnings and renders diagnostics.
// Warnings batch; the first fatal report terminates the pass that raised
// it, so a sink holds at most one.
type Sink struct {
	Warnings []*Report

	out     io.Writer
	colored bool
}

// NewSink creates a sink writing to stderr, with color when it is a tty
func NewSink() *Sink {
	return &Sink{
		out:     os.Stderr,
		colored: isatty.IsTerminal(os.Stderr.Fd()),
	}
}

// NewSinkTo creates a sink writing to w without color (tests, JSON mode)
func NewSinkTo(w io.Writer) *Sink {
	return &Sink{out: w}
}

// Warn records and renders a warning report
func (s *Sink) Warn(r *Report) {
	s.Warnings = append(s.Warnings, r)
	s.render("warning", color.FgYellow, r)
}

// Fatal renders a fatal report and returns it as an error for the stage
// to propagate. The sink does not exit; the driver decides.
func (s *Sink) Fatal(r *Report) error {
	s.render("error", color.FgRed, r)
	return WrapReport(r)
}

func (s *Sink) render(label string, c color.Attribute, r *Report) {
	at := ""
	if r.Span != nil {
		at = r.Span.String()
	}
	s.renderAt(label, c, at, r)
}

func (s *Sink) renderAt(label string, c color.Attribute, at string, r *Report) {
	if s.out == nil {
		return
	}
	tag := label
	if s.colored {
		tag = color.New(c, color.Bold).Sprint(label)
	}
	if at != "" {
		fmt.Fprintf(s.out, "%s: %s: [%s] %s\n", at, tag, r.Code, r.Message)
	} else {
		fmt.Fprintf(s.out, "%s: [%s] %s\n", tag, r.Code, r.Message)
	}
}
