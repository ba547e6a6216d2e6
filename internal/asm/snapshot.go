package asm

import (
	"radasm/internal/diag"
	"radasm/internal/source"
)

// makeSnapshot materialises a use of a .eqv-bound symbol: it clones the base
// expression, resolving every leaf that is defined right now, recursively
// snapshotting leaves that are themselves .eqv-bound, and keeping plain
// undefined leaves as live references. snapMap deduplicates snapshots within
// one expression parse so a diamond reference shares a single clone.
func (a *Assembler) makeSnapshot(sym *Symbol, snapMap map[*Symbol]*Symbol, usePos source.Pos) (*Symbol, bool) {
	if snap, ok := snapMap[sym]; ok {
		return snap, true
	}
	if sym.resolving {
		a.errorAt(usePos, diag.SymCycle, "cyclic dependency on symbol '%s'", sym.Name)
		return nil, false
	}
	sym.resolving = true
	defer func() { sym.resolving = false }()

	base := sym.Expr
	snap := newSymbol(sym.Name)
	snap.Snapshot = true

	e := &Expression{
		pos:    base.pos,
		ops:    append([]ExprOp(nil), base.ops...),
		msgPos: append([]source.LineCol(nil), base.msgPos...),
		args:   make([]ExprArg, len(base.args)),
	}
	e.target = symbolTarget(snap)

	ai := -1
	for oi, op := range e.ops {
		if !op.isArg() {
			continue
		}
		ai++
		arg := base.args[ai]
		if op != OpSymbol {
			e.args[ai] = arg
			if arg.Section != SectAbs {
				e.relSymOccurs = true
			}
			continue
		}

		leaf := arg.Sym
		if leaf.Base && !leaf.HasValue {
			ls, ok := a.makeSnapshot(leaf, snapMap, usePos)
			if !ok {
				return nil, false
			}
			leaf = ls
		}
		if leaf.HasValue {
			e.ops[oi] = OpValue
			e.args[ai] = ExprArg{Value: leaf.Value, Section: leaf.Section}
			if leaf.Section != SectAbs {
				e.relSymOccurs = true
			}
			continue
		}
		e.args[ai] = ExprArg{Sym: leaf, Section: SectAbs}
		leaf.addOccurrence(e, ai, oi)
		e.symOccurs++
	}

	a.snapshots = append(a.snapshots, snap)
	snapMap[sym] = snap

	if e.symOccurs == 0 {
		if v, sect, ok := a.evaluateExpr(e); ok {
			snap.Value = v
			snap.Section = sect
			snap.HasValue = true
		}
		return snap, true
	}
	snap.Expr = e
	return snap, true
}
