package asm

import (
	"radasm/internal/diag"
	"radasm/internal/source"
)

// Shunting-yard parsing of assembler expressions into the postfix form of
// Expression. Operator spellings and precedence (binding tighter first):
//
//	unary   + - ~ !
//	8       *  /  //  %  %%        (/ and % unsigned, // and %% signed)
//	7       +  -
//	6       <<  >>  >>>            (>> logical, >>> arithmetic)
//	5       &  |  ^  !             (binary ! is or-not: a | ~b)
//	4       <  <=  >  >=  <@  <=@  >@  >=@   (@ suffix: unsigned)
//	3       ==  !=
//	2       &&
//	1       ||
//	0       ?:                     (right associative)
//
// The stream filter removes "//" and the rest of the line as a comment before
// a source line reaches the parser, so signed division is not reachable from
// source text.

type stackKind uint8

const (
	skOp stackKind = iota
	skUnary
	skParen
	skQuestion
	skChoice
)

type stackEnt struct {
	kind stackKind
	op   ExprOp
	prec int8
	lc   source.LineCol
}

type exprParser struct {
	a        *Assembler
	line     []byte
	p        int
	makeBase bool
	snapMap  map[*Symbol]*Symbol

	ops      []ExprOp
	msgPos   []source.LineCol
	args     []ExprArg
	argOpIdx []int
	opStack  []stackEnt

	relSymOccurs bool
	failed       bool
}

// parseExpr parses an expression from line at p. With makeBase set, defined
// symbols are not inlined and no occurrences are registered; the caller owns
// the result as a .eqv base expression. On failure the problem has been
// reported and ok is false.
func (a *Assembler) parseExpr(line []byte, p int, makeBase bool) (e *Expression, end int, ok bool) {
	ep := exprParser{a: a, line: line, p: p, makeBase: makeBase, snapMap: map[*Symbol]*Symbol{}}
	return ep.run()
}

func (ep *exprParser) lc(off int) source.LineCol {
	return ep.a.lineCol(off)
}

func (ep *exprParser) errorf(off int, code diag.Code, format string, args ...any) {
	ep.a.errorAtOff(off, code, format, args...)
	ep.failed = true
}

func (ep *exprParser) emit(ent stackEnt) {
	ep.ops = append(ep.ops, ent.op)
	ep.msgPos = append(ep.msgPos, ent.lc)
}

func (ep *exprParser) pushArgValue(off int, value uint64, section SectionID) {
	ep.argOpIdx = append(ep.argOpIdx, len(ep.ops))
	ep.ops = append(ep.ops, OpValue)
	ep.msgPos = append(ep.msgPos, ep.lc(off))
	ep.args = append(ep.args, ExprArg{Value: value, Section: section})
	if section != SectAbs {
		ep.relSymOccurs = true
	}
}

func (ep *exprParser) pushArgSymbol(off int, sym *Symbol) {
	ep.argOpIdx = append(ep.argOpIdx, len(ep.ops))
	ep.ops = append(ep.ops, OpSymbol)
	ep.msgPos = append(ep.msgPos, ep.lc(off))
	ep.args = append(ep.args, ExprArg{Sym: sym, Section: SectAbs})
}

func (ep *exprParser) pushStack(ent stackEnt) bool {
	if len(ep.opStack) >= maxExprNesting {
		ep.a.fatalAtOff(ep.p, diag.ClsDepthExceeded, "expression nesting too deep")
		ep.failed = true
		return false
	}
	ep.opStack = append(ep.opStack, ent)
	return true
}

// pushBinary applies precedence against the operator stack, then pushes.
func (ep *exprParser) pushBinary(off int, op ExprOp, prec int8, rightAssoc bool) bool {
	for len(ep.opStack) > 0 {
		top := ep.opStack[len(ep.opStack)-1]
		if top.kind == skParen || top.kind == skQuestion {
			break
		}
		if top.prec > prec || (top.prec == prec && !rightAssoc) {
			ep.emit(top)
			ep.opStack = ep.opStack[:len(ep.opStack)-1]
			continue
		}
		break
	}
	return ep.pushStack(stackEnt{kind: skOp, op: op, prec: prec, lc: ep.lc(off)})
}

// operand parses one operand in unary context. It returns false when the
// expression ends or a problem was reported.
func (ep *exprParser) operand() bool {
	for {
		ep.p = skipSpaces(ep.line, ep.p)
		if ep.p >= len(ep.line) {
			ep.errorf(ep.p, diag.SynExpectedExpr, "expected expression")
			return false
		}
		c := ep.line[ep.p]
		switch {
		case c == '(':
			if !ep.pushStack(stackEnt{kind: skParen, lc: ep.lc(ep.p)}) {
				return false
			}
			ep.p++
			continue
		case c == '+':
			if !ep.pushStack(stackEnt{kind: skUnary, op: OpPlus, prec: 9, lc: ep.lc(ep.p)}) {
				return false
			}
			ep.p++
			continue
		case c == '-':
			if !ep.pushStack(stackEnt{kind: skUnary, op: OpNegate, prec: 9, lc: ep.lc(ep.p)}) {
				return false
			}
			ep.p++
			continue
		case c == '~':
			if !ep.pushStack(stackEnt{kind: skUnary, op: OpBitNot, prec: 9, lc: ep.lc(ep.p)}) {
				return false
			}
			ep.p++
			continue
		case c == '!':
			if !ep.pushStack(stackEnt{kind: skUnary, op: OpLogNot, prec: 9, lc: ep.lc(ep.p)}) {
				return false
			}
			ep.p++
			continue
		}

		if name, end, ok := scanLocalLabelRef(ep.line, ep.p); ok {
			ep.symbolOperand(name, end)
			return !ep.failed
		}
		if isDigit(c) || c == '\'' {
			value, end, err := parseLiteral(ep.line, ep.p)
			if err != nil {
				ep.errorf(err.off, diag.LexBadLiteral, "%s", err.msg)
				return false
			}
			ep.pushArgValue(ep.p, value, SectAbs)
			ep.p = end
			return true
		}
		if name, end, ok := scanName(ep.line, ep.p); ok {
			if name == "." {
				ep.a.refreshDot()
				ep.pushArgValue(ep.p, ep.a.curOutPos, ep.a.curSection)
				ep.p = end
				return true
			}
			ep.symbolOperand(name, end)
			return !ep.failed
		}
		ep.errorf(ep.p, diag.SynExpectedExpr, "expected expression operand")
		return false
	}
}

func (ep *exprParser) symbolOperand(name string, end int) {
	sym := ep.a.lookupSymbol(name, true)
	if sym.Base && !ep.makeBase {
		snap, ok := ep.a.makeSnapshot(sym, ep.snapMap, ep.a.linePos(ep.p))
		if !ok {
			ep.failed = true
			return
		}
		sym = snap
	}
	if !ep.makeBase && sym.HasValue {
		ep.pushArgValue(ep.p, sym.Value, sym.Section)
	} else {
		ep.pushArgSymbol(ep.p, sym)
	}
	ep.p = end
}

// binaryOp matches an operator spelling in binary context. It returns the
// matched op with its precedence, or done=true when the expression ends here.
func (ep *exprParser) binaryOp() (op ExprOp, prec int8, width int, done bool) {
	line, p := ep.line, ep.p
	rest := line[p:]
	two := byte(0)
	three := byte(0)
	if len(rest) > 1 {
		two = rest[1]
	}
	if len(rest) > 2 {
		three = rest[2]
	}
	switch rest[0] {
	case '*':
		return OpMul, 8, 1, false
	case '/':
		if two == '/' {
			return OpSignedDiv, 8, 2, false
		}
		return OpDiv, 8, 1, false
	case '%':
		if two == '%' {
			return OpSignedMod, 8, 2, false
		}
		return OpMod, 8, 1, false
	case '+':
		return OpAdd, 7, 1, false
	case '-':
		return OpSub, 7, 1, false
	case '<':
		switch {
		case two == '=' && three == '@':
			return OpBelowEq, 4, 3, false
		case two == '=':
			return OpLessEq, 4, 2, false
		case two == '@':
			return OpBelow, 4, 2, false
		case two == '<':
			return OpShl, 6, 2, false
		}
		return OpLess, 4, 1, false
	case '>':
		switch {
		case two == '=' && three == '@':
			return OpAboveEq, 4, 3, false
		case two == '=':
			return OpGreaterEq, 4, 2, false
		case two == '@':
			return OpAbove, 4, 2, false
		case two == '>' && three == '>':
			return OpSignedShr, 6, 3, false
		case two == '>':
			return OpShr, 6, 2, false
		}
		return OpGreater, 4, 1, false
	case '&':
		if two == '&' {
			return OpLogAnd, 2, 2, false
		}
		return OpBitAnd, 5, 1, false
	case '|':
		if two == '|' {
			return OpLogOr, 1, 2, false
		}
		return OpBitOr, 5, 1, false
	case '^':
		return OpBitXor, 5, 1, false
	case '!':
		if two == '=' {
			return OpNe, 3, 2, false
		}
		return OpBitOrNot, 5, 1, false
	case '=':
		if two == '=' {
			return OpEq, 3, 2, false
		}
	}
	return OpNone, 0, 0, true
}

func (ep *exprParser) run() (*Expression, int, bool) {
	startOff := skipSpaces(ep.line, ep.p)
	pos := ep.a.linePos(startOff)

scan:
	for {
		if !ep.operand() {
			return nil, ep.p, false
		}

		// binary context: operators keep us here, ')' closes a group in
		// place, anything else hands control back to operand parsing
		for {
			ep.p = skipSpaces(ep.line, ep.p)
			if ep.p >= len(ep.line) {
				break scan
			}
			c := ep.line[ep.p]
			if c == ')' {
				if !ep.popParen() {
					break scan // not ours; the caller owns this ')'
				}
				ep.p++
				continue
			}
			if c == '?' {
				for len(ep.opStack) > 0 {
					top := ep.opStack[len(ep.opStack)-1]
					if top.kind == skParen || top.kind == skQuestion || top.prec <= 0 {
						break
					}
					ep.emit(top)
					ep.opStack = ep.opStack[:len(ep.opStack)-1]
				}
				ep.emit(stackEnt{op: OpChoiceStart, lc: ep.lc(ep.p)})
				if !ep.pushStack(stackEnt{kind: skQuestion, prec: 0, lc: ep.lc(ep.p)}) {
					return nil, ep.p, false
				}
				ep.p++
				continue scan
			}
			if c == ':' {
				if !ep.resolveColon() {
					return nil, ep.p, false
				}
				ep.p++
				continue scan
			}
			op, prec, width, done := ep.binaryOp()
			if done {
				break scan
			}
			off := ep.p
			ep.p += width
			if !ep.pushBinary(off, op, prec, false) {
				return nil, ep.p, false
			}
			continue scan
		}
	}

	return ep.finalize(pos)
}

// popParen drains operators down to the innermost '('. It reports false when
// there is no open parenthesis (the ')' terminates the expression instead).
func (ep *exprParser) popParen() bool {
	for i := len(ep.opStack) - 1; i >= 0; i-- {
		if ep.opStack[i].kind == skParen {
			for len(ep.opStack)-1 > i {
				top := ep.opStack[len(ep.opStack)-1]
				if top.kind == skQuestion {
					ep.errorf(ep.p, diag.SynChoiceNoColon, "missing ':' of choice operator")
					return true
				}
				if top.kind == skChoice {
					top.op = OpChoice
				}
				ep.emit(top)
				ep.opStack = ep.opStack[:len(ep.opStack)-1]
			}
			ep.opStack = ep.opStack[:i]
			return true
		}
	}
	return false
}

// resolveColon turns the pending '?' marker into a pending choice.
func (ep *exprParser) resolveColon() bool {
	for len(ep.opStack) > 0 {
		top := ep.opStack[len(ep.opStack)-1]
		if top.kind == skParen {
			break
		}
		if top.kind == skQuestion {
			ep.opStack[len(ep.opStack)-1] = stackEnt{kind: skChoice, op: OpChoice, prec: 0, lc: top.lc}
			return true
		}
		if top.kind == skChoice {
			// a nested choice completes before the outer ':' binds
			ep.emit(top)
			ep.opStack = ep.opStack[:len(ep.opStack)-1]
			continue
		}
		ep.emit(top)
		ep.opStack = ep.opStack[:len(ep.opStack)-1]
	}
	ep.errorf(ep.p, diag.SynChoiceNoColon, "':' without matching '?'")
	return false
}

func (ep *exprParser) finalize(pos source.Pos) (*Expression, int, bool) {
	for len(ep.opStack) > 0 {
		top := ep.opStack[len(ep.opStack)-1]
		ep.opStack = ep.opStack[:len(ep.opStack)-1]
		switch top.kind {
		case skParen:
			ep.errorf(ep.p, diag.SynMismatchedParen, "missing ')'")
			return nil, ep.p, false
		case skQuestion:
			ep.errorf(ep.p, diag.SynChoiceNoColon, "missing ':' of choice operator")
			return nil, ep.p, false
		default:
			ep.emit(top)
		}
	}
	if ep.failed {
		return nil, ep.p, false
	}
	if len(ep.ops) == 0 {
		ep.errorf(ep.p, diag.SynExpectedExpr, "expected expression")
		return nil, ep.p, false
	}

	e := &Expression{
		pos:          pos,
		ops:          ep.ops,
		msgPos:       ep.msgPos,
		args:         ep.args,
		relSymOccurs: ep.relSymOccurs,
		base:         ep.makeBase,
	}
	for ai, arg := range ep.args {
		if arg.Sym == nil {
			continue
		}
		e.symOccurs++
		if !ep.makeBase {
			arg.Sym.addOccurrence(e, ai, ep.argOpIdx[ai])
		}
	}
	return e, ep.p, true
}
