package asm

import (
	"radasm/internal/diag"
	"radasm/internal/source"
)

// occurrence is a back-reference stored on a symbol: "this symbol appears in
// expr at argument slot argIdx, operator slot opIdx". Substitution on
// resolution is O(1) per occurrence.
type occurrence struct {
	expr   *Expression
	argIdx int
	opIdx  int
}

// Symbol is one symbol table record. A symbol either has a value (HasValue)
// or an attached unresolved expression, never both.
type Symbol struct {
	Name    string
	Section SectionID
	Value   uint64
	Size    uint64
	// Info and Other mirror the ELF symbol info/other bytes (.type, .globl).
	Info  byte
	Other byte

	HasValue bool
	// OnceDefined symbols (labels, .equiv, .eqv) reject redefinition.
	OnceDefined bool
	// resolving guards against cyclic snapshot recursion.
	resolving bool
	// Base marks a symbol owning a .eqv base expression.
	Base bool
	// Snapshot marks a materialised snapshot of a base symbol.
	Snapshot bool

	Expr        *Expression
	occurrences []occurrence
}

func newSymbol(name string) *Symbol {
	return &Symbol{Name: name, Section: SectAbs}
}

// Defined reports whether the symbol may no longer be (re)bound by a
// once-defining construct.
func (s *Symbol) Defined() bool {
	return s.HasValue || s.Expr != nil
}

func (s *Symbol) addOccurrence(e *Expression, argIdx, opIdx int) {
	s.occurrences = append(s.occurrences, occurrence{expr: e, argIdx: argIdx, opIdx: opIdx})
}

func (s *Symbol) removeOccurrence(e *Expression, argIdx, opIdx int) {
	for i := range s.occurrences {
		occ := s.occurrences[i]
		if occ.expr == e && occ.argIdx == argIdx && occ.opIdx == opIdx {
			s.occurrences = append(s.occurrences[:i], s.occurrences[i+1:]...)
			return
		}
	}
}

// undefine returns the symbol to the undefined state, keeping the last value
// for inspection. Used for the Nf side of local labels.
func (s *Symbol) undefine() {
	s.HasValue = false
	if !s.Base {
		s.Expr = nil
	}
}

// lookupSymbol returns the symbol record for name, creating it when create is
// set. The output counter "." is maintained here so that reads always see the
// current (section, offset).
func (a *Assembler) lookupSymbol(name string, create bool) *Symbol {
	if name == "." {
		a.refreshDot()
		return a.dotSymbol
	}
	if sym, ok := a.symbols[name]; ok {
		return sym
	}
	if !create {
		return nil
	}
	sym := newSymbol(name)
	a.symbols[name] = sym
	return sym
}

func (a *Assembler) refreshDot() {
	a.dotSymbol.Value = a.curOutPos
	a.dotSymbol.Section = a.curSection
	a.dotSymbol.HasValue = true
}

// setSymbol gives sym a value and eagerly substitutes every registered
// occurrence. Expressions whose last reference is closed evaluate immediately
// and update their targets; symbol targets that become defined are processed
// iteratively through a worklist, so resolution never recurses.
func (a *Assembler) setSymbol(sym *Symbol, value uint64, section SectionID) {
	type resolved struct {
		sym     *Symbol
		value   uint64
		section SectionID
	}
	work := []resolved{{sym, value, section}}

	for len(work) > 0 {
		it := work[len(work)-1]
		work = work[:len(work)-1]

		s := it.sym
		s.Value = it.value
		s.Section = it.section
		s.HasValue = true
		s.Expr = nil

		occs := s.occurrences
		s.occurrences = nil
		for _, occ := range occs {
			e := occ.expr
			e.substituteOccurrence(occ, it.value, it.section)
			if e.symOccurs != 0 {
				continue
			}
			v, sect, ok := a.evaluateExpr(e)
			if !ok {
				continue
			}
			switch e.target.kind {
			case targetSymbol:
				work = append(work, resolved{e.target.sym, v, sect})
			case targetData8, targetData16, targetData32, targetData64:
				a.writeExprValue(e, v, sect)
			case targetISA:
				a.resolveISAFixup(e, v, sect)
			}
		}
	}
}

// applyResolvedExpr evaluates an expression whose last symbol reference has
// been closed outside setSymbol and updates its target.
func (a *Assembler) applyResolvedExpr(e *Expression) {
	v, sect, ok := a.evaluateExpr(e)
	if !ok {
		return
	}
	switch e.target.kind {
	case targetSymbol:
		a.setSymbol(e.target.sym, v, sect)
	case targetData8, targetData16, targetData32, targetData64:
		a.writeExprValue(e, v, sect)
	case targetISA:
		a.resolveISAFixup(e, v, sect)
	}
}

// writeExprValue stores a resolved data-slot expression little-endian,
// warning (not erroring) when the value exceeds the slot width.
func (a *Assembler) writeExprValue(e *Expression, value uint64, section SectionID) {
	if section != SectAbs {
		a.errorAt(e.pos, diag.ExpRelInData, "relative value cannot be written to data")
		return
	}
	width := e.target.kind.dataWidth()
	a.warnValueRange(e.pos, width*8, value)
	sec := a.sections[e.target.section]
	off := e.target.offset
	for i := uint32(0); i < width; i++ {
		sec.Content[off+uint64(i)] = byte(value >> (8 * i))
	}
}

// warnValueRange emits the range warning when value does not fit bits as
// either a signed or an unsigned quantity.
func (a *Assembler) warnValueRange(pos source.Pos, bits uint32, value uint64) {
	if bits >= 64 {
		return
	}
	unsignedMax := (uint64(1) << bits) - 1
	signedMin := ^uint64(0) << (bits - 1) // sign-extended minimum
	if value > unsignedMax && value < signedMin {
		a.warnAt(pos, diag.ExpValueRange, "%d-bit value out of range", bits)
	}
}

// resolveISAFixup patches previously emitted instruction bytes.
func (a *Assembler) resolveISAFixup(e *Expression, value uint64, section SectionID) {
	if section != SectAbs && section != e.target.section {
		a.errorAt(e.pos, diag.ExpSectionCross, "fixup target is in another section")
		return
	}
	sec := a.sections[e.target.section]
	if !a.isaEnc.Resolve(sec.Content, e.target.offset, e.target.fixup, value) {
		a.errorAt(e.pos, diag.IsaFixupRange, "value out of range for instruction field")
	}
}
