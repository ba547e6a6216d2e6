package asm

import (
	"fmt"

	"radasm/internal/diag"
)

// stmt is the cursor state of one pseudo-op statement: the logical line, the
// offset of the directive name and the parse position after it.
type stmt struct {
	line  []byte
	p     int
	opOff int
	name  string
}

// pseudoOps is the driver-level directive registry. Format-specific
// pseudo-ops live on the format handlers and are consulted afterwards.
var pseudoOps map[string]func(*Assembler, *stmt)

func init() {
	pseudoOps = map[string]func(*Assembler, *stmt){
		".byte":   func(a *Assembler, st *stmt) { a.emitIntList(st, 1) },
		".short":  func(a *Assembler, st *stmt) { a.emitIntList(st, 2) },
		".hword":  func(a *Assembler, st *stmt) { a.emitIntList(st, 2) },
		".word":   func(a *Assembler, st *stmt) { a.emitIntList(st, 4) },
		".int":    func(a *Assembler, st *stmt) { a.emitIntList(st, 4) },
		".long":   func(a *Assembler, st *stmt) { a.emitIntList(st, 4) },
		".quad":   func(a *Assembler, st *stmt) { a.emitIntList(st, 8) },
		".ascii":  func(a *Assembler, st *stmt) { a.emitStrings(st, false) },
		".asciz":  func(a *Assembler, st *stmt) { a.emitStrings(st, true) },
		".string": func(a *Assembler, st *stmt) { a.emitStrings(st, true) },

		".equ":   func(a *Assembler, st *stmt) { a.pseudoAssign(st, assignPlain) },
		".set":   func(a *Assembler, st *stmt) { a.pseudoAssign(st, assignPlain) },
		".equiv": func(a *Assembler, st *stmt) { a.pseudoAssign(st, assignOnce) },
		".eqv":   func(a *Assembler, st *stmt) { a.pseudoAssign(st, assignBase) },

		".global": (*Assembler).pseudoGlobal,
		".globl":  (*Assembler).pseudoGlobal,
		".local":  (*Assembler).pseudoLocal,
		".weak":   (*Assembler).pseudoWeak,
		".size":   (*Assembler).pseudoSize,
		".type":   (*Assembler).pseudoType,

		".if":     func(a *Assembler, st *stmt) { a.pseudoIf(st, condExpr) },
		".ifeq":   func(a *Assembler, st *stmt) { a.pseudoIf(st, condExprZero) },
		".ifne":   func(a *Assembler, st *stmt) { a.pseudoIf(st, condExpr) },
		".ifdef":  func(a *Assembler, st *stmt) { a.pseudoIf(st, condDefined) },
		".ifndef": func(a *Assembler, st *stmt) { a.pseudoIf(st, condUndefined) },
		".elseif": (*Assembler).pseudoElseif,
		".else":   (*Assembler).pseudoElse,
		".endif":  (*Assembler).pseudoEndif,

		".rept":   (*Assembler).pseudoRept,
		".endr":   (*Assembler).pseudoEndr,
		".macro":  (*Assembler).pseudoMacro,
		".endm":   (*Assembler).pseudoEndm,
		".exitm":  (*Assembler).pseudoExitm,
		".purgem": (*Assembler).pseudoPurgem,

		".include": (*Assembler).pseudoInclude,
		".incbin":  (*Assembler).pseudoIncbin,

		".skip":   (*Assembler).pseudoSkip,
		".space":  (*Assembler).pseudoSkip,
		".fill":   (*Assembler).pseudoFill,
		".align":  (*Assembler).pseudoAlign,
		".balign": (*Assembler).pseudoAlign,
		".org":    (*Assembler).pseudoOrg,

		".print":   (*Assembler).pseudoPrint,
		".error":   (*Assembler).pseudoError,
		".warning": (*Assembler).pseudoWarning,
		".abort":   (*Assembler).pseudoAbort,

		".rawcode": func(a *Assembler, st *stmt) { a.pseudoFormat(st, FormatRawCode) },
		".amd":     func(a *Assembler, st *stmt) { a.pseudoFormat(st, FormatAMD) },
		".gallium": func(a *Assembler, st *stmt) { a.pseudoFormat(st, FormatGallium) },

		".kernel":     (*Assembler).pseudoKernel,
		".section":    (*Assembler).pseudoSection,
		".text":       func(a *Assembler, st *stmt) { a.pseudoNamedSection(st, ".text") },
		".data":       func(a *Assembler, st *stmt) { a.pseudoNamedSection(st, ".data") },
		".globaldata": func(a *Assembler, st *stmt) { a.pseudoNamedSection(st, ".globaldata") },
	}
}

// emitIntList implements .byte/.short/.word/.int/.long/.quad: little-endian
// values of the given width, each registered as a lazy fixup when its
// expression does not resolve on the spot.
func (a *Assembler) emitIntList(st *stmt, width uint32) {
	a.initializeOutputFormat()
	p := skipSpaces(st.line, st.p)
	if p >= len(st.line) {
		a.errorAtOff(p, diag.SynExpectedExpr, "expected expression")
		return
	}
	for {
		e, end, ok := a.parseExpr(st.line, p, false)
		if !ok {
			return
		}
		offset := a.reserveData(uint64(width), 0)
		e.target = dataTarget(width, a.curSection, offset)
		if e.symOccurs == 0 {
			a.applyResolvedExpr(e)
		}
		p = skipSpaces(st.line, end)
		if p >= len(st.line) {
			return
		}
		if st.line[p] != ',' {
			a.errorAtOff(p, diag.SynExpectedComma, "expected ',' before next value")
			return
		}
		p = skipSpaces(st.line, p+1)
	}
}

// emitStrings implements .ascii/.asciz/.string.
func (a *Assembler) emitStrings(st *stmt, nulTerminated bool) {
	a.initializeOutputFormat()
	p := skipSpaces(st.line, st.p)
	if p >= len(st.line) {
		a.errorAtOff(p, diag.SynExpectedString, "expected string literal")
		return
	}
	for {
		value, end, err := parseStringLiteral(st.line, p)
		if err != nil {
			a.errorAtOff(err.off, diag.LexUnterminatedStr, "%s", err.msg)
			return
		}
		a.putData(value)
		if nulTerminated {
			a.putData([]byte{0})
		}
		p = skipSpaces(st.line, end)
		if p >= len(st.line) {
			return
		}
		if st.line[p] != ',' {
			a.errorAtOff(p, diag.SynExpectedComma, "expected ',' before next string")
			return
		}
		p = skipSpaces(st.line, p+1)
	}
}

// pseudoAssign implements .equ/.set/.equiv/.eqv: NAME, EXPR.
func (a *Assembler) pseudoAssign(st *stmt, kind assignKind) {
	p := skipSpaces(st.line, st.p)
	name, end, ok := scanName(st.line, p)
	if !ok {
		a.errorAtOff(p, diag.SynExpectedSymbol, "expected symbol name")
		return
	}
	namePos := a.linePos(p)
	p = skipSpaces(st.line, end)
	if p >= len(st.line) || st.line[p] != ',' {
		a.errorAtOff(p, diag.SynExpectedComma, "expected ',' after symbol name")
		return
	}
	a.assignSymbol(name, namePos, st.line, p+1, kind)
}

// symbolList parses the comma separated symbol list of .globl and friends and
// applies fn to each.
func (a *Assembler) symbolList(st *stmt, fn func(sym *Symbol)) {
	p := skipSpaces(st.line, st.p)
	for {
		name, end, ok := scanName(st.line, p)
		if !ok {
			a.errorAtOff(p, diag.SynExpectedSymbol, "expected symbol name")
			return
		}
		fn(a.lookupSymbol(name, true))
		p = skipSpaces(st.line, end)
		if p >= len(st.line) {
			return
		}
		if st.line[p] != ',' {
			a.errorAtOff(p, diag.SynExpectedComma, "expected ',' before next symbol")
			return
		}
		p = skipSpaces(st.line, p+1)
	}
}

// ELF symbol info nibbles
const (
	elfBindLocal  = 0x0
	elfBindGlobal = 0x1
	elfBindWeak   = 0x2
	elfTypeObject = 0x1
	elfTypeFunc   = 0x2
)

func (a *Assembler) pseudoGlobal(st *stmt) {
	a.symbolList(st, func(sym *Symbol) { sym.Info = sym.Info&0x0f | elfBindGlobal<<4 })
}

func (a *Assembler) pseudoLocal(st *stmt) {
	a.symbolList(st, func(sym *Symbol) { sym.Info = sym.Info & 0x0f })
}

func (a *Assembler) pseudoWeak(st *stmt) {
	a.symbolList(st, func(sym *Symbol) { sym.Info = sym.Info&0x0f | elfBindWeak<<4 })
}

// pseudoSize implements .size NAME, EXPR with an immediately resolvable
// absolute expression.
func (a *Assembler) pseudoSize(st *stmt) {
	p := skipSpaces(st.line, st.p)
	name, end, ok := scanName(st.line, p)
	if !ok {
		a.errorAtOff(p, diag.SynExpectedSymbol, "expected symbol name")
		return
	}
	p = skipSpaces(st.line, end)
	if p >= len(st.line) || st.line[p] != ',' {
		a.errorAtOff(p, diag.SynExpectedComma, "expected ',' after symbol name")
		return
	}
	value, end2, ok := a.resolveAbsExpr(st.line, p+1)
	if !ok {
		return
	}
	a.ensureLineEnd(st.line, end2)
	a.lookupSymbol(name, true).Size = value
}

// pseudoType implements .type NAME, @function|@object.
func (a *Assembler) pseudoType(st *stmt) {
	p := skipSpaces(st.line, st.p)
	name, end, ok := scanName(st.line, p)
	if !ok {
		a.errorAtOff(p, diag.SynExpectedSymbol, "expected symbol name")
		return
	}
	p = skipSpaces(st.line, end)
	if p >= len(st.line) || st.line[p] != ',' {
		a.errorAtOff(p, diag.SynExpectedComma, "expected ',' after symbol name")
		return
	}
	p = skipSpaces(st.line, p+1)
	if p < len(st.line) && (st.line[p] == '@' || st.line[p] == '%') {
		p++
	}
	kindName, end, ok := scanName(st.line, p)
	if !ok {
		a.errorAtOff(p, diag.SynExpectedSymbol, "expected symbol type")
		return
	}
	sym := a.lookupSymbol(name, true)
	switch kindName {
	case "function":
		sym.Info = sym.Info&0xf0 | elfTypeFunc
	case "object":
		sym.Info = sym.Info&0xf0 | elfTypeObject
	default:
		a.errorAtOff(p, diag.SynBadPseudoOp, "unknown symbol type '%s'", kindName)
		return
	}
	a.ensureLineEnd(st.line, end)
}

// resolveAbsExpr parses an expression that must evaluate now to an absolute
// value.
func (a *Assembler) resolveAbsExpr(line []byte, p int) (uint64, int, bool) {
	e, end, ok := a.parseExpr(line, p, false)
	if !ok {
		return 0, end, false
	}
	if e.symOccurs != 0 {
		e.detach()
		a.errorAt(e.pos, diag.SymExprUnresolvd, "expression must be resolvable")
		return 0, end, false
	}
	v, sect, ok := a.evaluateExpr(e)
	if !ok {
		return 0, end, false
	}
	if sect != SectAbs {
		a.errorAt(e.pos, diag.ExpNeedAbsolute, "expected an absolute value")
		return 0, end, false
	}
	return v, end, true
}

// conditionals

type condKind uint8

const (
	condExpr condKind = iota
	condExprZero
	condDefined
	condUndefined
)

func (a *Assembler) pseudoIf(st *stmt, kind condKind) {
	pos := a.linePos(st.opOff)
	var taken bool
	switch kind {
	case condExpr, condExprZero:
		v, condOK := a.parseIfCondition(st.line, st.p)
		if condOK {
			taken = v
			if kind == condExprZero {
				// .ifeq takes the branch when the expression is zero
				taken = !v
			}
		}
	case condDefined, condUndefined:
		p := skipSpaces(st.line, st.p)
		name, end, ok := scanName(st.line, p)
		if !ok {
			a.errorAtOff(p, diag.SynExpectedSymbol, "expected symbol name")
		} else {
			a.ensureLineEnd(st.line, end)
			sym := a.lookupSymbol(name, false)
			defined := sym != nil && sym.Defined()
			taken = defined == (kind == condDefined)
		}
	}
	a.pushClause(ClauseIf, pos, taken)
	if !taken {
		a.skipClauses()
	}
}

func (a *Assembler) pseudoElseif(st *stmt) {
	top := a.topClause()
	if top == nil || (top.typ != ClauseIf && top.typ != ClauseElseIf) {
		a.errorAtOff(st.opOff, diag.ClsNoOpenClause, "no open '.if' for '.elseif'")
		return
	}
	// the taken arm was just executing; skip the remaining arms
	top.typ = ClauseElseIf
	a.skipClauses()
}

func (a *Assembler) pseudoElse(st *stmt) {
	top := a.topClause()
	if top == nil || top.typ == ClauseRepeat || top.typ == ClauseMacro {
		a.errorAtOff(st.opOff, diag.ClsNoOpenClause, "no open '.if' for '.else'")
		return
	}
	if top.typ == ClauseElse {
		a.errorAtOff(st.opOff, diag.ClsElseAfterElse, "duplicate '.else'")
		return
	}
	a.ensureLineEnd(st.line, st.p)
	top.typ = ClauseElse
	a.skipClauses()
}

func (a *Assembler) pseudoEndif(st *stmt) {
	top := a.topClause()
	if top == nil || top.typ == ClauseRepeat || top.typ == ClauseMacro {
		a.errorAtOff(st.opOff, diag.ClsNoOpenClause, "no open '.if' for '.endif'")
		return
	}
	a.ensureLineEnd(st.line, st.p)
	a.popClauseFrame()
}

// layout directives

func (a *Assembler) pseudoSkip(st *stmt) {
	size, end, ok := a.resolveAbsExpr(st.line, st.p)
	if !ok {
		return
	}
	fill := uint64(0)
	p := skipSpaces(st.line, end)
	if p < len(st.line) && st.line[p] == ',' {
		var ok2 bool
		fill, end, ok2 = a.resolveAbsExpr(st.line, p+1)
		if !ok2 {
			return
		}
		p = end
	}
	a.ensureLineEnd(st.line, p)
	a.reserveData(size, byte(fill))
}

func (a *Assembler) pseudoFill(st *stmt) {
	repeat, end, ok := a.resolveAbsExpr(st.line, st.p)
	if !ok {
		return
	}
	size := uint64(1)
	value := uint64(0)
	p := skipSpaces(st.line, end)
	if p < len(st.line) && st.line[p] == ',' {
		size, end, ok = a.resolveAbsExpr(st.line, p+1)
		if !ok {
			return
		}
		p = skipSpaces(st.line, end)
		if p < len(st.line) && st.line[p] == ',' {
			value, end, ok = a.resolveAbsExpr(st.line, p+1)
			if !ok {
				return
			}
			p = end
		}
	}
	a.ensureLineEnd(st.line, p)
	if size > 8 {
		a.errorAtOff(st.p, diag.ExpValueRange, "fill size cannot exceed 8 bytes")
		return
	}
	a.initializeOutputFormat()
	for i := uint64(0); i < repeat; i++ {
		var buf [8]byte
		for j := uint64(0); j < size; j++ {
			buf[j] = byte(value >> (8 * j))
		}
		a.putData(buf[:size])
	}
}

func (a *Assembler) pseudoAlign(st *stmt) {
	align, end, ok := a.resolveAbsExpr(st.line, st.p)
	if !ok {
		return
	}
	fill := uint64(0)
	p := skipSpaces(st.line, end)
	if p < len(st.line) && st.line[p] == ',' {
		fill, end, ok = a.resolveAbsExpr(st.line, p+1)
		if !ok {
			return
		}
		p = end
	}
	a.ensureLineEnd(st.line, p)
	if align == 0 || align&(align-1) != 0 {
		a.errorAtOff(st.p, diag.ExpValueRange, "alignment must be a power of two")
		return
	}
	a.initializeOutputFormat()
	if rem := a.curOutPos % align; rem != 0 {
		a.reserveData(align-rem, byte(fill))
	}
}

func (a *Assembler) pseudoOrg(st *stmt) {
	target, end, ok := a.resolveAbsExpr(st.line, st.p)
	if !ok {
		return
	}
	a.ensureLineEnd(st.line, end)
	a.initializeOutputFormat()
	if target < a.curOutPos {
		a.errorAtOff(st.p, diag.ExpValueRange, "attempt to move the output counter backwards")
		return
	}
	a.reserveData(target-a.curOutPos, 0)
}

// message directives

func (a *Assembler) pseudoPrint(st *stmt) {
	p := skipSpaces(st.line, st.p)
	value, end, err := parseStringLiteral(st.line, p)
	if err != nil {
		a.errorAtOff(err.off, diag.SynExpectedString, "%s", err.msg)
		return
	}
	a.ensureLineEnd(st.line, end)
	fmt.Fprintf(a.opts.PrintW, "%s\n", value)
}

func (a *Assembler) pseudoError(st *stmt) {
	msg := a.optionalMessage(st, ".error encountered")
	a.errorAtOff(st.opOff, diag.IOUserError, "%s", msg)
}

func (a *Assembler) pseudoWarning(st *stmt) {
	msg := a.optionalMessage(st, ".warning encountered")
	a.warnAt(a.linePos(st.opOff), diag.IOUserError, "%s", msg)
}

func (a *Assembler) optionalMessage(st *stmt, def string) string {
	p := skipSpaces(st.line, st.p)
	if p >= len(st.line) {
		return def
	}
	value, end, err := parseStringLiteral(st.line, p)
	if err != nil {
		a.errorAtOff(err.off, diag.SynExpectedString, "%s", err.msg)
		return def
	}
	a.ensureLineEnd(st.line, end)
	return string(value)
}

func (a *Assembler) pseudoAbort(st *stmt) {
	a.errorAtOff(st.opOff, diag.IOAbort, "assembly aborted by .abort")
	a.aborted = true
}

// format selection and sections

func (a *Assembler) pseudoFormat(st *stmt, kind FormatKind) {
	a.ensureLineEnd(st.line, st.p)
	if a.formatInitialized {
		a.errorAtOff(st.opOff, diag.FmtAlreadyDefined, "output format type is already defined")
		return
	}
	a.opts.Format = kind
}

func (a *Assembler) pseudoKernel(st *stmt) {
	p := skipSpaces(st.line, st.p)
	name, end, ok := scanName(st.line, p)
	if !ok {
		a.errorAtOff(p, diag.SynExpectedSymbol, "expected kernel name")
		return
	}
	a.ensureLineEnd(st.line, end)
	kernel, err := a.Handler().AddKernel(a, name)
	if err != nil {
		a.errorAtOff(st.opOff, diag.FmtDuplicateKernel, "%s", err)
		return
	}
	a.curKernel = kernel
}

func (a *Assembler) pseudoSection(st *stmt) {
	p := skipSpaces(st.line, st.p)
	name, end, ok := scanName(st.line, p)
	if !ok {
		a.errorAtOff(p, diag.SynExpectedSymbol, "expected section name")
		return
	}
	a.ensureLineEnd(st.line, end)
	a.switchNamedSection(st, name)
}

func (a *Assembler) pseudoNamedSection(st *stmt, name string) {
	a.ensureLineEnd(st.line, st.p)
	a.switchNamedSection(st, name)
}

func (a *Assembler) switchNamedSection(st *stmt, name string) {
	id, err := a.Handler().AddSection(a, name, a.curKernel)
	if err != nil {
		a.errorAtOff(st.opOff, diag.FmtUnknownSection, "%s", err)
		return
	}
	a.switchSection(id)
}
