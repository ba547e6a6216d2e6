package asm

import (
	"radasm/internal/diag"
	"radasm/internal/source"
)

// ClauseType classifies an open clause stack frame.
type ClauseType uint8

const (
	ClauseIf ClauseType = iota
	ClauseElseIf
	ClauseElse
	ClauseRepeat
	ClauseMacro
)

func (t ClauseType) String() string {
	switch t {
	case ClauseIf:
		return ".if"
	case ClauseElseIf:
		return ".elseif"
	case ClauseElse:
		return ".else"
	case ClauseRepeat:
		return ".rept"
	case ClauseMacro:
		return ".macro"
	}
	return "?"
}

// Clause is one active frame of the clause stack. satisfied is set once any
// arm of an .if/.elseif chain has been taken.
type Clause struct {
	typ       ClauseType
	pos       source.Pos
	satisfied bool
	prevIfPos source.Pos
}

func (a *Assembler) pushClause(typ ClauseType, pos source.Pos, satisfied bool) {
	a.clauses = append(a.clauses, Clause{typ: typ, pos: pos, satisfied: satisfied})
}

func (a *Assembler) topClause() *Clause {
	if len(a.clauses) == 0 {
		return nil
	}
	return &a.clauses[len(a.clauses)-1]
}

func (a *Assembler) popClauseFrame() {
	a.clauses = a.clauses[:len(a.clauses)-1]
}

// conditional clause classification used while scanning a not-taken branch
type skipOp uint8

const (
	skipNone skipOp = iota
	skipOpen   // .if family, .rept, .macro: opens a nested region
	skipClose  // .endr, .endm: closes a nested region
	skipElseif // .elseif
	skipElse   // .else
	skipEndif  // .endif
)

func classifySkipOp(name string) skipOp {
	switch name {
	case ".if", ".ifdef", ".ifndef", ".ifeq", ".ifne", ".rept", ".macro":
		return skipOpen
	case ".endr", ".endm":
		return skipClose
	case ".elseif":
		return skipElseif
	case ".else":
		return skipElse
	case ".endif":
		return skipEndif
	}
	return skipNone
}

// skipClauses consumes statements of a not-taken branch, honouring only
// clause-bracketing directives, until an arm of the innermost chain is taken
// or the chain closes. The top clause frame records the chain state.
func (a *Assembler) skipClauses() {
	depth := 0
	for {
		line, ok := a.readLine()
		if !ok {
			top := a.topClause()
			a.errorAt(top.pos, diag.ClsUnterminated, "unterminated '%s'", top.typ)
			a.popClauseFrame()
			return
		}
		p := skipSpaces(line, 0)
		name, end, ok := scanName(line, p)
		if !ok || name[0] != '.' {
			continue
		}
		switch op := classifySkipOp(name); op {
		case skipOpen:
			depth++
		case skipClose:
			if depth > 0 {
				depth--
			}
		case skipEndif:
			if depth > 0 {
				depth--
				continue
			}
			a.popClauseFrame()
			return
		case skipElseif:
			if depth > 0 {
				continue
			}
			top := a.topClause()
			if top.typ == ClauseElse {
				a.errorAtOff(p, diag.ClsNoOpenClause, "'.elseif' after '.else'")
				continue
			}
			if top.satisfied {
				continue
			}
			cond, condOK := a.parseIfCondition(line, end)
			if condOK && cond {
				top.typ = ClauseElseIf
				top.satisfied = true
				return
			}
		case skipElse:
			if depth > 0 {
				continue
			}
			top := a.topClause()
			if top.typ == ClauseElse {
				a.errorAtOff(p, diag.ClsElseAfterElse, "duplicate '.else'")
				continue
			}
			if !top.satisfied {
				top.typ = ClauseElse
				top.satisfied = true
				return
			}
			top.typ = ClauseElse
		}
	}
}

// parseIfCondition evaluates an .if/.elseif condition. The expression must be
// resolvable on the spot; an unresolved condition is an error and counts as
// false.
func (a *Assembler) parseIfCondition(line []byte, p int) (bool, bool) {
	e, end, ok := a.parseExpr(line, p, false)
	if !ok {
		return false, false
	}
	if e.symOccurs != 0 {
		e.detach()
		a.errorAt(e.pos, diag.SymExprUnresolvd, "expression of condition must be resolvable")
		return false, false
	}
	v, sect, ok := a.evaluateExpr(e)
	if !ok {
		return false, false
	}
	if sect != SectAbs {
		a.errorAt(e.pos, diag.ExpNeedAbsolute, "condition must be an absolute value")
		return false, false
	}
	a.ensureLineEnd(line, end)
	return v != 0, true
}
