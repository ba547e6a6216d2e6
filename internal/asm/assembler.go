package asm

import (
	"fmt"
	"io"
	"os"
	"sort"

	"radasm/internal/diag"
	"radasm/internal/isa"
	"radasm/internal/source"
)

// Resource bounds of the input pipeline. Exceeding any of them is a fatal
// diagnostic that aborts assembly.
const (
	maxIncludeDepth = 200
	maxMacroDepth   = 200
	maxRepeatDepth  = 200
	maxExprNesting  = 200
)

// FormatKind selects the output container.
type FormatKind uint8

const (
	FormatRawCode FormatKind = iota
	FormatAMD
	FormatGallium
)

func (k FormatKind) String() string {
	switch k {
	case FormatRawCode:
		return "rawcode"
	case FormatAMD:
		return "amd"
	case FormatGallium:
		return "gallium"
	}
	return "unknown"
}

// ParseFormat resolves a format name from the CLI or a config file.
func ParseFormat(name string) (FormatKind, error) {
	switch name {
	case "raw", "rawcode":
		return FormatRawCode, nil
	case "amd", "catalyst":
		return FormatAMD, nil
	case "gallium":
		return FormatGallium, nil
	}
	return 0, fmt.Errorf("unknown output format: %s", name)
}

// DefSym is one initial symbol definition from the command line.
type DefSym struct {
	Name  string
	Value uint64
}

// Options configure one assembly run.
type Options struct {
	Format      FormatKind
	Device      isa.DeviceType
	Is64Bit     bool
	Warnings    bool
	IncludeDirs []string
	DefSyms     []DefSym

	// MessageW receives diagnostics, PrintW the output of .print.
	MessageW io.Writer
	PrintW   io.Writer
	Color    bool
}

// Assembler drives one assembly: it pulls logical lines off the input filter
// stack, classifies them, and feeds the symbol table, the expression engine,
// the format handler and the ISA encoder. It is strictly single-threaded.
type Assembler struct {
	opts     Options
	srcSet   *source.Set
	reporter *diag.StreamReporter
	isaEnc   isa.Encoder

	filters []LineFilter
	// filterMarks records, per filter, the clause depth at push time; .exitm
	// unwinds to the mark of the macro filter it terminates.
	filterMarks  []int
	includeDepth int
	macroDepth   int
	repeatDepth  int

	symbols    map[string]*Symbol
	dotSymbol  *Symbol
	snapshots  []*Symbol
	macros     map[string]*Macro
	macroCount uint64

	sections []*Section
	handler  FormatHandler
	// formatInitialized is set once the handler produced its first sections;
	// from then on the format pseudo-ops may no longer switch the container.
	formatInitialized bool

	curKernel  KernelID
	curSection SectionID
	curOutPos  uint64

	clauses []Clause

	good    bool
	aborted bool
}

// New creates an assembler over one input. enc may be nil when the input
// contains no instruction statements (pure data assembly).
func New(inputName string, input []byte, enc isa.Encoder, opts Options) *Assembler {
	if opts.MessageW == nil {
		opts.MessageW = os.Stderr
	}
	if opts.PrintW == nil {
		opts.PrintW = os.Stdout
	}
	if enc == nil {
		enc = nopEncoder{}
	}
	srcSet := source.NewSet()
	a := &Assembler{
		opts:   opts,
		srcSet: srcSet,
		reporter: &diag.StreamReporter{
			W:     opts.MessageW,
			Set:   srcSet,
			Color: opts.Color,
		},
		isaEnc:     enc,
		symbols:    make(map[string]*Symbol),
		macros:     make(map[string]*Macro),
		curKernel:  KernGlobal,
		curSection: 0,
		good:       true,
	}
	a.dotSymbol = newSymbol(".")
	a.dotSymbol.Section = 0
	a.dotSymbol.HasValue = true

	src := srcSet.AddVirtual(inputName)
	a.pushFilter(NewStreamFilter(src, input))
	return a
}

// NewFromFile creates an assembler reading the main input from disk.
func NewFromFile(path string, enc isa.Encoder, opts Options) (*Assembler, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	a := New(path, content, enc, opts)
	return a, nil
}

// nopEncoder rejects every instruction; used when no ISA encoder is wired.
type nopEncoder struct{}

func (nopEncoder) IsMnemonic(string) bool { return false }

func (nopEncoder) Assemble(_ uint64, _ string, report func(col uint32, msg string)) ([]byte, []isa.Fixup, bool) {
	report(1, "no instruction set encoder configured")
	return nil, nil, false
}

func (nopEncoder) Resolve([]byte, uint64, isa.FixupKind, uint64) bool { return false }

// Good reports whether no error diagnostic occurred.
func (a *Assembler) Good() bool { return a.good }

// Sections returns the output sections in creation order.
func (a *Assembler) Sections() []*Section { return a.sections }

// Symbol looks up a symbol record by name ("." included).
func (a *Assembler) Symbol(name string) (*Symbol, bool) {
	if name == "." {
		a.refreshDot()
		return a.dotSymbol, true
	}
	s, ok := a.symbols[name]
	return s, ok
}

// SymbolNames returns all symbol names including "." in sorted order.
func (a *Assembler) SymbolNames() []string {
	names := make([]string, 0, len(a.symbols)+1)
	names = append(names, ".")
	for name := range a.symbols {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Handler returns the active format handler, initializing the output format
// if necessary.
func (a *Assembler) Handler() FormatHandler {
	a.initializeOutputFormat()
	return a.handler
}

// Emit writes the output container of the active format handler.
func (a *Assembler) Emit(w io.Writer) error {
	return a.Handler().Emit(a, w)
}

// Device returns the target GPU device.
func (a *Assembler) Device() isa.DeviceType { return a.opts.Device }

// Is64Bit reports the addressing mode of the assembly.
func (a *Assembler) Is64Bit() bool { return a.opts.Is64Bit }

// position and diagnostic helpers

func (a *Assembler) topFilter() LineFilter {
	return a.filters[len(a.filters)-1]
}

// lineCol maps an offset of the current logical line to its original
// line/column.
func (a *Assembler) lineCol(off int) source.LineCol {
	if len(a.filters) == 0 {
		return source.LineCol{Line: 1, Col: 1}
	}
	return a.topFilter().TranslatePos(off)
}

// linePos builds the full source position of an offset of the current line.
func (a *Assembler) linePos(off int) source.Pos {
	if len(a.filters) == 0 {
		return source.Pos{}
	}
	f := a.topFilter()
	lc := f.TranslatePos(off)
	return source.Pos{Subst: f.Subst(), Src: f.Source(), Line: lc.Line, Col: lc.Col}
}

func (a *Assembler) errorAt(pos source.Pos, code diag.Code, format string, args ...any) {
	a.good = false
	a.reporter.Report(diag.Diagnostic{
		Severity: diag.SevError,
		Code:     code,
		Pos:      pos,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (a *Assembler) errorAtOff(off int, code diag.Code, format string, args ...any) {
	a.errorAt(a.linePos(off), code, format, args...)
}

func (a *Assembler) warnAt(pos source.Pos, code diag.Code, format string, args ...any) {
	if !a.opts.Warnings {
		return
	}
	a.reporter.Report(diag.Diagnostic{
		Severity: diag.SevWarning,
		Code:     code,
		Pos:      pos,
		Message:  fmt.Sprintf(format, args...),
	})
}

// fatalAtOff reports a depth-exceeded class error and aborts assembly.
func (a *Assembler) fatalAtOff(off int, code diag.Code, format string, args ...any) {
	a.errorAtOff(off, code, format, args...)
	a.aborted = true
}

// ensureLineEnd reports trailing garbage after a completely parsed statement.
func (a *Assembler) ensureLineEnd(line []byte, p int) {
	p = skipSpaces(line, p)
	if p < len(line) {
		a.errorAtOff(p, diag.LexGarbageAtEnd, "garbage at end of line")
	}
}

// input filter stack

func (a *Assembler) pushFilter(f LineFilter) {
	a.filters = append(a.filters, f)
	a.filterMarks = append(a.filterMarks, len(a.clauses))
}

func (a *Assembler) popFilter() {
	f := a.filters[len(a.filters)-1]
	a.filters = a.filters[:len(a.filters)-1]
	a.filterMarks = a.filterMarks[:len(a.filterMarks)-1]
	switch f.(type) {
	case *StreamFilter:
		if a.includeDepth > 0 {
			a.includeDepth--
		}
	case *MacroFilter:
		a.macroDepth--
	case *RepeatFilter:
		a.repeatDepth--
	}
}

// readLine pulls the next logical line off the filter stack, popping
// exhausted filters.
func (a *Assembler) readLine() ([]byte, bool) {
	for len(a.filters) > 0 && !a.aborted {
		f := a.topFilter()
		line, ok := f.ReadLine()
		if !ok {
			a.popFilter()
			continue
		}
		if msg, lc, has := f.TakeError(); has {
			a.errorAt(source.Pos{Subst: f.Subst(), Src: f.Source(), Line: lc.Line, Col: lc.Col},
				diag.LexBadStatement, "%s", msg)
		}
		return line, true
	}
	return nil, false
}

// Assemble runs the driver loop to completion and returns the good flag.
func (a *Assembler) Assemble() bool {
	a.defineInitialSymbols()

	for !a.aborted {
		line, ok := a.readLine()
		if !ok {
			break
		}
		a.processLine(line)
	}

	for len(a.clauses) > 0 {
		top := a.topClause()
		a.errorAt(top.pos, diag.ClsUnterminated, "unterminated '%s'", top.typ)
		a.popClauseFrame()
	}
	a.checkUnresolved()
	a.refreshDot()
	return a.good
}

// defineInitialSymbols applies -D name=value definitions before the first
// source line.
func (a *Assembler) defineInitialSymbols() {
	if len(a.opts.DefSyms) == 0 {
		return
	}
	src := a.srcSet.AddVirtual("<command-line>")
	pos := source.Pos{Src: src, Line: 1, Col: 1}
	for _, ds := range a.opts.DefSyms {
		if !validSymbolName(ds.Name) {
			a.errorAt(pos, diag.IODefsym, "invalid initial symbol name '%s'", ds.Name)
			continue
		}
		if a.checkReservedName(pos, ds.Name) {
			continue
		}
		sym := a.lookupSymbol(ds.Name, true)
		a.setSymbol(sym, ds.Value, SectAbs)
	}
}

func validSymbolName(name string) bool {
	if name == "" || name == "." || !isIdentStart(name[0]) {
		return false
	}
	for i := 1; i < len(name); i++ {
		if !isIdentPart(name[i]) {
			return false
		}
	}
	return true
}

// checkReservedName rejects symbol names colliding with pseudo-ops or
// instruction mnemonics. It reports and returns true for a reserved name.
func (a *Assembler) checkReservedName(pos source.Pos, name string) bool {
	if _, ok := pseudoOps[name]; ok || a.isaEnc.IsMnemonic(name) {
		a.errorAt(pos, diag.SymReservedName, "'%s' is a reserved name", name)
		return true
	}
	return false
}

// processLine classifies and dispatches one logical line.
func (a *Assembler) processLine(line []byte) {
	p := skipSpaces(line, 0)
	for p < len(line) {
		c := line[p]

		if isDigit(c) {
			// a leading number can only be a local label definition
			q := p
			for q < len(line) && isDigit(line[q]) {
				q++
			}
			if q < len(line) && line[q] == ':' {
				a.defineLocalLabel(string(line[p:q]))
				p = skipSpaces(line, q+1)
				continue
			}
			a.errorAtOff(p, diag.LexBadStatement, "illegal number at statement begin")
			return
		}

		if !isIdentStart(c) {
			a.errorAtOff(p, diag.LexBadStatement, "garbage at statement begin")
			return
		}

		name, end, _ := scanName(line, p)
		if end < len(line) && line[end] == ':' {
			a.defineLabel(name, a.linePos(p))
			p = skipSpaces(line, end+1)
			continue
		}

		r := skipSpaces(line, end)
		if r < len(line) && line[r] == '=' && (r+1 >= len(line) || line[r+1] != '=') {
			a.assignSymbol(name, a.linePos(p), line, r+1, assignPlain)
			return
		}

		if name[0] == '.' {
			a.dispatchPseudoOp(name, p, line, r)
			return
		}
		if macro, ok := a.macros[name]; ok {
			a.invokeMacro(macro, line, p, r)
			return
		}
		a.assembleInstruction(line, p)
		return
	}
}

// dispatchPseudoOp routes a dot-directive: driver-level pseudo-ops first,
// then the format handler's.
func (a *Assembler) dispatchPseudoOp(name string, opOff int, line []byte, p int) {
	st := &stmt{line: line, p: p, opOff: opOff, name: name}
	if fn, ok := pseudoOps[name]; ok {
		fn(a, st)
		return
	}
	if a.Handler().ParsePseudoOp(a, st) {
		return
	}
	a.errorAtOff(opOff, diag.SynBadPseudoOp, "unknown pseudo-op '%s'", name)
}

// assignment kinds of assignSymbol
type assignKind uint8

const (
	// assignPlain is "=", .equ and .set: redefinable.
	assignPlain assignKind = iota
	// assignOnce is .equiv: resolves like assignPlain but rejects redefinition.
	assignOnce
	// assignBase is .eqv: the RHS becomes an owned base expression that is
	// snapshotted at every use.
	assignBase
)

// assignSymbol binds name to the expression at line[p:].
func (a *Assembler) assignSymbol(name string, namePos source.Pos, line []byte, p int, kind assignKind) {
	if name == "." {
		a.errorAt(namePos, diag.SymNotRegular, "'.' cannot be assigned; use .org")
		return
	}
	if a.checkReservedName(namePos, name) {
		return
	}
	sym := a.lookupSymbol(name, true)
	if sym.Defined() && (sym.OnceDefined || kind != assignPlain) {
		// .equiv and .eqv demand a fresh symbol; "=" only respects labels
		a.errorAt(namePos, diag.SymRedefined, "symbol '%s' is already defined", name)
		return
	}

	e, end, ok := a.parseExpr(line, p, kind == assignBase)
	if !ok {
		return
	}
	a.ensureLineEnd(line, end)

	// an assignment replaces any pending expression of the symbol
	if sym.Expr != nil && !sym.Base {
		sym.Expr.detach()
		sym.Expr = nil
	}

	once := kind != assignPlain
	if e.symOccurs == 0 {
		v, sect, evalOK := a.evaluateExpr(e)
		if !evalOK {
			return
		}
		sym.OnceDefined = sym.OnceDefined || once
		a.setSymbol(sym, v, sect)
		return
	}

	e.target = symbolTarget(sym)
	sym.Expr = e
	sym.OnceDefined = sym.OnceDefined || once
	if kind == assignBase {
		sym.Base = true
		a.repointPendingToSnapshots(sym)
	}
}

// repointPendingToSnapshots serves references that were registered on a
// symbol before it became .eqv-bound: every pending occurrence is re-pointed
// to a snapshot taken right now, so those earlier expressions resolve with
// the values at the .eqv site (tracking leaves still undefined there).
func (a *Assembler) repointPendingToSnapshots(sym *Symbol) {
	occs := sym.occurrences
	if len(occs) == 0 {
		return
	}
	sym.occurrences = nil
	snapMap := map[*Symbol]*Symbol{}
	for _, occ := range occs {
		snap, ok := a.makeSnapshot(sym, snapMap, occ.expr.pos)
		if !ok {
			continue
		}
		e := occ.expr
		if snap.HasValue {
			e.substituteOccurrence(occ, snap.Value, snap.Section)
			if e.symOccurs == 0 {
				a.applyResolvedExpr(e)
			}
			continue
		}
		e.args[occ.argIdx].Sym = snap
		snap.addOccurrence(e, occ.argIdx, occ.opIdx)
	}
}

// defineLabel binds a regular label to the current output position.
func (a *Assembler) defineLabel(name string, pos source.Pos) {
	if a.checkReservedName(pos, name) {
		return
	}
	sym := a.lookupSymbol(name, true)
	if sym.OnceDefined && sym.Defined() {
		a.errorAt(pos, diag.SymRedefined, "symbol '%s' is already defined", name)
		return
	}
	if sym.Expr != nil && !sym.Base {
		sym.Expr.detach()
		sym.Expr = nil
	}
	a.initializeOutputFormat()
	sym.OnceDefined = true
	a.setSymbol(sym, a.curOutPos, a.curSection)
}

// defineLocalLabel handles "N:": the Nb symbol is redefined, pending Nf
// references resolve, and Nf returns to the undefined state so later Nf
// references wait for the next instance.
func (a *Assembler) defineLocalLabel(num string) {
	a.initializeOutputFormat()
	back := a.lookupSymbol(num+"b", true)
	fwd := a.lookupSymbol(num+"f", true)
	a.setSymbol(back, a.curOutPos, a.curSection)
	a.setSymbol(fwd, a.curOutPos, a.curSection)
	fwd.undefine()
}

// assembleInstruction hands a mnemonic statement to the ISA encoder and
// routes the emitted bytes and fixups.
func (a *Assembler) assembleInstruction(line []byte, p int) {
	a.initializeOutputFormat()
	lineNo := a.linePos(p).Line
	report := func(col uint32, msg string) {
		a.errorAtOff(p+int(col)-1, diag.IsaBadOperand, "%s", msg)
	}
	code, fixups, ok := a.isaEnc.Assemble(lineNo, string(line[p:]), report)
	if !ok {
		return
	}
	offset := a.curOutPos
	a.putData(code)
	for _, f := range fixups {
		exprOff := p + int(f.Col) - 1
		e, end, ok := a.parseExpr(line, exprOff, false)
		if !ok {
			continue
		}
		a.ensureLineEnd(line, end)
		e.target = isaTarget(a.curSection, offset+f.Offset, f.Kind)
		if e.symOccurs == 0 {
			a.applyResolvedExpr(e)
		}
	}
}

// output plumbing

// initializeOutputFormat creates the handler's initial sections the first
// time anything touches the output.
func (a *Assembler) initializeOutputFormat() {
	if a.formatInitialized {
		return
	}
	a.formatInitialized = true
	switch a.opts.Format {
	case FormatRawCode:
		a.handler = newRawCodeHandler(a)
	case FormatGallium:
		a.handler = newGalliumHandler(a)
	default:
		a.handler = newAmdHandler(a)
	}
}

func (a *Assembler) newSection(name string, kernel KernelID, typ SectionType) SectionID {
	id := SectionID(len(a.sections))
	a.sections = append(a.sections, &Section{Kernel: kernel, Type: typ, Name: name})
	return id
}

func (a *Assembler) switchSection(id SectionID) {
	a.curSection = id
	a.curOutPos = uint64(len(a.sections[id].Content))
}

// reserveData appends n fill bytes to the current section and returns the
// offset they start at.
func (a *Assembler) reserveData(n uint64, fill byte) uint64 {
	a.initializeOutputFormat()
	sec := a.sections[a.curSection]
	offset := a.curOutPos
	for i := uint64(0); i < n; i++ {
		sec.Content = append(sec.Content, fill)
	}
	a.curOutPos += n
	return offset
}

func (a *Assembler) putData(b []byte) {
	a.initializeOutputFormat()
	sec := a.sections[a.curSection]
	sec.Content = append(sec.Content, b...)
	a.curOutPos += uint64(len(b))
}

// checkUnresolved reports, at end of assembly, every expression that still
// waits on an undefined symbol and would have written output. Symbols that
// are merely declared and never used in data are not errors.
func (a *Assembler) checkUnresolved() {
	reported := make(map[*Expression]bool)
	var walk func(sym *Symbol)
	walk = func(sym *Symbol) {
		for _, occ := range sym.occurrences {
			e := occ.expr
			if reported[e] {
				continue
			}
			switch e.target.kind {
			case targetData8, targetData16, targetData32, targetData64, targetISA:
				reported[e] = true
				a.errorAt(e.pos, diag.ExpNotResolved,
					"expression will not be resolved: undefined symbol '%s'", sym.Name)
			}
		}
	}

	for _, name := range a.SymbolNames() {
		if name == "." {
			continue
		}
		sym := a.symbols[name]
		if !sym.HasValue {
			walk(sym)
		}
	}
	for _, snap := range a.snapshots {
		if !snap.HasValue {
			walk(snap)
		}
	}
}
