package diag

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"radasm/internal/source"
)

// Reporter is the minimal contract for receiving diagnostics from assembly
// phases. Implementations: StreamReporter (formats immediately, in source
// order), BagReporter (collects for tests), MultiReporter (fan-out).
type Reporter interface {
	Report(d Diagnostic)
}

// StreamReporter prints each diagnostic the moment it is reported, preceded
// by the macro/include backtrace of its position. Assembly is sequential, so
// printing at report time preserves source order.
type StreamReporter struct {
	W     io.Writer
	Set   *source.Set
	Color bool

	errors   uint64
	warnings uint64
}

var (
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	infoColor    = color.New(color.FgCyan)
)

func (r *StreamReporter) Report(d Diagnostic) {
	switch d.Severity {
	case SevError:
		r.errors++
	case SevWarning:
		r.warnings++
	}
	r.Set.WriteOrigin(r.W, d.Pos)
	sev := d.Severity.String()
	if r.Color {
		switch d.Severity {
		case SevError:
			sev = errorColor.Sprint(sev)
		case SevWarning:
			sev = warningColor.Sprint(sev)
		default:
			sev = infoColor.Sprint(sev)
		}
	}
	fmt.Fprintf(r.W, "%s: %s: %s\n", r.Set.Describe(d.Pos), sev, d.Message)
}

// Errors returns the number of error diagnostics seen so far.
func (r *StreamReporter) Errors() uint64 { return r.errors }

// Warnings returns the number of warning diagnostics seen so far.
func (r *StreamReporter) Warnings() uint64 { return r.warnings }

// BagReporter collects diagnostics into a Bag.
type BagReporter struct{ Bag *Bag }

func (r BagReporter) Report(d Diagnostic) {
	if r.Bag == nil {
		return
	}
	r.Bag.Add(d)
}

// MultiReporter forwards every diagnostic to all child reporters.
type MultiReporter []Reporter

func (m MultiReporter) Report(d Diagnostic) {
	for _, r := range m {
		r.Report(d)
	}
}
