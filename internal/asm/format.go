package asm

import (
	"io"

	"radasm/internal/diag"
)

// FormatHandler routes assembled content into the sections of one output
// container. The driver writes bytes only through the current section id it
// got from the handler; the handler owns naming, kernel grouping and the
// format-specific pseudo-ops.
type FormatHandler interface {
	// Kind identifies the container format.
	Kind() FormatKind
	// AddKernel registers a kernel and makes it current.
	AddKernel(a *Assembler, name string) (KernelID, error)
	// AddSection resolves a section name within a kernel, creating the
	// section on first use.
	AddSection(a *Assembler, name string, kernel KernelID) (SectionID, error)
	// SectionFlags reports what the driver may do with a section.
	SectionFlags(id SectionID) SectionFlags
	// ParsePseudoOp handles a format-specific pseudo-op; it reports false
	// when the name is not one of its own.
	ParsePseudoOp(a *Assembler, st *stmt) bool
	// Emit writes the output container.
	Emit(a *Assembler, w io.Writer) error
}

// parseConfigInt is the shared helper of the handler config pseudo-ops: one
// absolute expression argument.
func parseConfigInt(a *Assembler, st *stmt) (uint64, bool) {
	v, end, ok := a.resolveAbsExpr(st.line, st.p)
	if !ok {
		return 0, false
	}
	a.ensureLineEnd(st.line, end)
	return v, true
}

// parseConfigIntList parses up to max comma separated absolute expressions.
func parseConfigIntList(a *Assembler, st *stmt, max int) ([]uint64, bool) {
	var values []uint64
	p := skipSpaces(st.line, st.p)
	for {
		v, end, ok := a.resolveAbsExpr(st.line, p)
		if !ok {
			return nil, false
		}
		values = append(values, v)
		p = skipSpaces(st.line, end)
		if p >= len(st.line) {
			return values, true
		}
		if st.line[p] != ',' || len(values) >= max {
			a.errorAtOff(p, diag.SynExpectedComma, "garbage after configuration value")
			return nil, false
		}
		p = skipSpaces(st.line, p+1)
	}
}
