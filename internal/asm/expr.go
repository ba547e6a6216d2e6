package asm

import (
	"radasm/internal/isa"
	"radasm/internal/source"
)

// ExprOp is one postfix operator code of an expression.
type ExprOp uint8

const (
	// OpValue is an argument slot holding an absolute or section-relative value.
	OpValue ExprOp = iota
	// OpSymbol is an argument slot holding a not-yet-substituted symbol reference.
	OpSymbol
	// OpNegate is arithmetic negation.
	OpNegate
	// OpBitNot is bitwise complement.
	OpBitNot
	// OpLogNot is logical negation.
	OpLogNot
	// OpPlus is unary plus (identity).
	OpPlus
	OpAdd
	OpSub
	OpMul
	// OpDiv is unsigned division.
	OpDiv
	OpSignedDiv
	// OpMod is unsigned modulo.
	OpMod
	OpSignedMod
	OpBitAnd
	OpBitOr
	OpBitXor
	// OpBitOrNot computes a | ^b.
	OpBitOrNot
	OpShl
	// OpShr is a logical shift right.
	OpShr
	OpSignedShr
	OpLogAnd
	OpLogOr
	OpEq
	OpNe
	// OpLess..OpGreaterEq are signed comparisons.
	OpLess
	OpLessEq
	OpGreater
	OpGreaterEq
	// OpBelow..OpAboveEq are unsigned comparisons.
	OpBelow
	OpBelowEq
	OpAbove
	OpAboveEq
	// OpChoice is the ternary cond ? a : b.
	OpChoice
	// OpChoiceStart marks where the condition of a choice ends.
	OpChoiceStart

	// OpNone is the null operator.
	OpNone ExprOp = 0xff
)

func (op ExprOp) isArg() bool {
	return op == OpValue || op == OpSymbol
}

func (op ExprOp) isUnary() bool {
	return op >= OpNegate && op <= OpPlus
}

// exprTargetKind discriminates ExprTarget.
type exprTargetKind uint8

const (
	targetNone exprTargetKind = iota
	targetSymbol
	targetData8
	targetData16
	targetData32
	targetData64
	targetISA
)

func (k exprTargetKind) dataWidth() uint32 {
	switch k {
	case targetData8:
		return 1
	case targetData16:
		return 2
	case targetData32:
		return 4
	case targetData64:
		return 8
	}
	return 0
}

// ExprTarget is the destination an expression writes to once it resolves:
// either a symbol, an n-byte data slot at (section, offset), or an ISA fixup.
type ExprTarget struct {
	kind    exprTargetKind
	sym     *Symbol
	section SectionID
	offset  uint64
	fixup   isa.FixupKind
}

func symbolTarget(sym *Symbol) ExprTarget {
	return ExprTarget{kind: targetSymbol, sym: sym}
}

func dataTarget(width uint32, section SectionID, offset uint64) ExprTarget {
	kind := targetData8
	switch width {
	case 2:
		kind = targetData16
	case 4:
		kind = targetData32
	case 8:
		kind = targetData64
	}
	return ExprTarget{kind: kind, section: section, offset: offset}
}

func isaTarget(section SectionID, offset uint64, fixup isa.FixupKind) ExprTarget {
	return ExprTarget{kind: targetISA, section: section, offset: offset, fixup: fixup}
}

// ExprArg is one argument slot. A slot holds a symbol reference while Sym is
// non-nil, otherwise a value; Section is SectAbs for absolute values.
type ExprArg struct {
	Sym     *Symbol
	Value   uint64
	Section SectionID
}

// Expression is the postfix form of one source expression, lazily bound to a
// target. Unresolved symbol references keep the expression alive through the
// occurrence lists of the symbols they name.
type Expression struct {
	target ExprTarget
	pos    source.Pos
	ops    []ExprOp
	// msgPos records, per operator, the line/column for point-of-error
	// reporting within macro-expanded lines.
	msgPos []source.LineCol
	args   []ExprArg

	symOccurs    int
	relSymOccurs bool
	base         bool
}

// substituteOccurrence replaces one symbol reference with a resolved value.
func (e *Expression) substituteOccurrence(occ occurrence, value uint64, section SectionID) {
	e.ops[occ.opIdx] = OpValue
	e.args[occ.argIdx] = ExprArg{Value: value, Section: section}
	if section != SectAbs {
		e.relSymOccurs = true
	}
	e.symOccurs--
}

// detach unregisters every pending symbol reference of the expression, used
// when an assignment replaces a symbol's expression before it resolved.
func (e *Expression) detach() {
	ai := -1
	for oi, op := range e.ops {
		if !op.isArg() {
			continue
		}
		ai++
		if op != OpSymbol {
			continue
		}
		if sym := e.args[ai].Sym; sym != nil {
			sym.removeOccurrence(e, ai, oi)
		}
	}
	e.symOccurs = 0
}
