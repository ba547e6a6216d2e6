package asm

import (
	"math"

	"radasm/internal/diag"
	"radasm/internal/source"
)

// evalValue is one evaluation stack entry. A failure (division by zero,
// relative-value misuse) is deferred: it only surfaces if the operand that
// carries it is actually selected, which gives && || and ?: their lazy
// semantics without a tree walk.
type evalValue struct {
	val    uint64
	sect   SectionID
	failed bool
	code   diag.Code
	msg    string
	lc     source.LineCol
}

func (v evalValue) abs() bool { return v.sect == SectAbs }

func failValue(lc source.LineCol, code diag.Code, msg string) evalValue {
	return evalValue{failed: true, code: code, msg: msg, lc: lc}
}

// pick propagates the first failure of a strict operator.
func pick(a, b evalValue) (evalValue, bool) {
	if a.failed {
		return a, true
	}
	if b.failed {
		return b, true
	}
	return evalValue{}, false
}

// requireAbs downgrades a strict operator to a failure when an operand is
// section-relative.
func requireAbs(lc source.LineCol, vals ...evalValue) (evalValue, bool) {
	for _, v := range vals {
		if !v.abs() {
			return failValue(lc, diag.ExpNeedAbsolute,
				"only absolute values allowed for this operator"), true
		}
	}
	return evalValue{}, false
}

// evaluateExpr evaluates a fully substituted expression. Diagnostics are
// reported here; ok is false when evaluation failed.
func (a *Assembler) evaluateExpr(e *Expression) (value uint64, section SectionID, ok bool) {
	if e.symOccurs != 0 {
		a.errorAt(e.pos, diag.SymExprUnresolvd, "expression is not fully resolved")
		return 0, SectAbs, false
	}

	stack := make([]evalValue, 0, 8)
	push := func(v evalValue) { stack = append(stack, v) }
	pop := func() evalValue {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v
	}

	ai := 0
	for oi, op := range e.ops {
		lc := e.msgPos[oi]
		switch op {
		case OpValue:
			arg := e.args[ai]
			ai++
			push(evalValue{val: arg.Value, sect: arg.Section})
			continue
		case OpSymbol:
			a.errorAt(e.pos, diag.SymExprUnresolvd, "expression is not fully resolved")
			return 0, SectAbs, false
		case OpChoiceStart:
			continue
		}

		if op.isUnary() {
			v := pop()
			if v.failed {
				push(v)
				continue
			}
			switch op {
			case OpPlus:
				push(v)
			case OpNegate:
				if !v.abs() {
					push(failValue(lc, diag.ExpNeedAbsolute, "relative value cannot be negated"))
					continue
				}
				push(evalValue{val: -v.val, sect: SectAbs})
			case OpBitNot:
				if !v.abs() {
					push(failValue(lc, diag.ExpNeedAbsolute, "relative value cannot be complemented"))
					continue
				}
				push(evalValue{val: ^v.val, sect: SectAbs})
			case OpLogNot:
				if !v.abs() {
					push(failValue(lc, diag.ExpNeedAbsolute, "relative value has no truth value"))
					continue
				}
				push(evalValue{val: b2u(v.val == 0), sect: SectAbs})
			}
			continue
		}

		if op == OpChoice {
			falseV := pop()
			trueV := pop()
			cond := pop()
			switch {
			case cond.failed:
				push(cond)
			case !cond.abs():
				push(failValue(lc, diag.ExpNeedAbsolute, "choice condition must be absolute"))
			case cond.val != 0:
				push(trueV)
			default:
				push(falseV)
			}
			continue
		}

		b := pop()
		av := pop()
		push(a.applyBinary(op, av, b, lc))
	}

	if len(stack) != 1 {
		a.errorAt(e.pos, diag.SynExpectedExpr, "invalid expression")
		return 0, SectAbs, false
	}
	res := stack[0]
	if res.failed {
		a.errorAt(source.Pos{Subst: e.pos.Subst, Src: e.pos.Src, Line: res.lc.Line, Col: res.lc.Col},
			res.code, "%s", res.msg)
		return 0, SectAbs, false
	}
	return res.val, res.sect, true
}

func b2u(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func (a *Assembler) applyBinary(op ExprOp, x, y evalValue, lc source.LineCol) evalValue {
	// logical operators select their result before failures propagate
	switch op {
	case OpLogAnd:
		if !x.failed && x.abs() && x.val == 0 {
			return evalValue{val: 0, sect: SectAbs}
		}
		if v, bad := pick(x, y); bad {
			return v
		}
		if v, bad := requireAbs(lc, x, y); bad {
			return v
		}
		return evalValue{val: b2u(x.val != 0 && y.val != 0), sect: SectAbs}
	case OpLogOr:
		if !x.failed && x.abs() && x.val != 0 {
			return evalValue{val: 1, sect: SectAbs}
		}
		if v, bad := pick(x, y); bad {
			return v
		}
		if v, bad := requireAbs(lc, x, y); bad {
			return v
		}
		return evalValue{val: b2u(x.val != 0 || y.val != 0), sect: SectAbs}
	}

	if v, bad := pick(x, y); bad {
		return v
	}

	switch op {
	case OpAdd:
		switch {
		case !x.abs() && !y.abs():
			return failValue(lc, diag.ExpSectionCross, "two relative values cannot be added")
		case !x.abs():
			return evalValue{val: x.val + y.val, sect: x.sect}
		case !y.abs():
			return evalValue{val: x.val + y.val, sect: y.sect}
		}
		return evalValue{val: x.val + y.val, sect: SectAbs}
	case OpSub:
		switch {
		case !x.abs() && !y.abs():
			if x.sect != y.sect {
				return failValue(lc, diag.ExpSectionCross, "relative expression across sections")
			}
			return evalValue{val: x.val - y.val, sect: SectAbs}
		case !x.abs():
			return evalValue{val: x.val - y.val, sect: x.sect}
		case !y.abs():
			return failValue(lc, diag.ExpSectionCross, "relative value cannot be subtracted from an absolute one")
		}
		return evalValue{val: x.val - y.val, sect: SectAbs}
	}

	if v, bad := requireAbs(lc, x, y); bad {
		return v
	}

	switch op {
	case OpMul:
		return evalValue{val: x.val * y.val, sect: SectAbs}
	case OpDiv:
		if y.val == 0 {
			return failValue(lc, diag.ExpDivByZero, "division by zero")
		}
		return evalValue{val: x.val / y.val, sect: SectAbs}
	case OpSignedDiv:
		if y.val == 0 {
			return failValue(lc, diag.ExpDivByZero, "division by zero")
		}
		if int64(x.val) == math.MinInt64 && int64(y.val) == -1 {
			return evalValue{val: x.val, sect: SectAbs}
		}
		return evalValue{val: uint64(int64(x.val) / int64(y.val)), sect: SectAbs}
	case OpMod:
		if y.val == 0 {
			return failValue(lc, diag.ExpDivByZero, "division by zero")
		}
		return evalValue{val: x.val % y.val, sect: SectAbs}
	case OpSignedMod:
		if y.val == 0 {
			return failValue(lc, diag.ExpDivByZero, "division by zero")
		}
		if int64(x.val) == math.MinInt64 && int64(y.val) == -1 {
			return evalValue{val: 0, sect: SectAbs}
		}
		return evalValue{val: uint64(int64(x.val) % int64(y.val)), sect: SectAbs}
	case OpBitAnd:
		return evalValue{val: x.val & y.val, sect: SectAbs}
	case OpBitOr:
		return evalValue{val: x.val | y.val, sect: SectAbs}
	case OpBitXor:
		return evalValue{val: x.val ^ y.val, sect: SectAbs}
	case OpBitOrNot:
		return evalValue{val: x.val | ^y.val, sect: SectAbs}
	case OpShl:
		return evalValue{val: x.val << (y.val & 63), sect: SectAbs}
	case OpShr:
		return evalValue{val: x.val >> (y.val & 63), sect: SectAbs}
	case OpSignedShr:
		return evalValue{val: uint64(int64(x.val) >> (y.val & 63)), sect: SectAbs}
	case OpEq:
		return evalValue{val: b2u(x.val == y.val), sect: SectAbs}
	case OpNe:
		return evalValue{val: b2u(x.val != y.val), sect: SectAbs}
	case OpLess:
		return evalValue{val: b2u(int64(x.val) < int64(y.val)), sect: SectAbs}
	case OpLessEq:
		return evalValue{val: b2u(int64(x.val) <= int64(y.val)), sect: SectAbs}
	case OpGreater:
		return evalValue{val: b2u(int64(x.val) > int64(y.val)), sect: SectAbs}
	case OpGreaterEq:
		return evalValue{val: b2u(int64(x.val) >= int64(y.val)), sect: SectAbs}
	case OpBelow:
		return evalValue{val: b2u(x.val < y.val), sect: SectAbs}
	case OpBelowEq:
		return evalValue{val: b2u(x.val <= y.val), sect: SectAbs}
	case OpAbove:
		return evalValue{val: b2u(x.val > y.val), sect: SectAbs}
	case OpAboveEq:
		return evalValue{val: b2u(x.val >= y.val), sect: SectAbs}
	}
	return failValue(lc, diag.SynUnexpectedOp, "unknown operator")
}
