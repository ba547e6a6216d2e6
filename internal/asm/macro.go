package asm

import (
	"fmt"
	"os"
	"path/filepath"

	"radasm/internal/diag"
	"radasm/internal/source"
)

// pseudoMacro implements ".macro NAME param[=default|:req], ...": the body is
// captured raw until the matching .endm and stored immutably.
func (a *Assembler) pseudoMacro(st *stmt) {
	openPos := a.linePos(st.opOff)
	p := skipSpaces(st.line, st.p)
	name, end, ok := scanName(st.line, p)
	if !ok {
		a.errorAtOff(p, diag.SynExpectedSymbol, "expected macro name")
		a.captureBody(openPos, ".macro", ".endm")
		return
	}
	params, paramsOK := a.parseMacroParams(st.line, end)

	body, bodyOK := a.captureBody(openPos, ".macro", ".endm")
	if !paramsOK || !bodyOK {
		return
	}
	if _, exists := a.macros[name]; exists {
		a.errorAtOff(p, diag.ClsMacroRedefined, "macro '%s' is already defined", name)
		return
	}
	if _, reserved := pseudoOps[name]; reserved || a.isaEnc.IsMnemonic(name) {
		a.errorAtOff(p, diag.SymReservedName, "'%s' is a reserved name", name)
		return
	}
	a.macros[name] = &Macro{Name: name, Params: params, Body: body, DefPos: openPos}
}

// parseMacroParams parses the formal parameter list of a .macro header.
func (a *Assembler) parseMacroParams(line []byte, p int) ([]MacroParam, bool) {
	var params []MacroParam
	p = skipSpaces(line, p)
	for p < len(line) {
		name, end, ok := scanName(line, p)
		if !ok {
			a.errorAtOff(p, diag.ClsMacroArgs, "expected parameter name")
			return nil, false
		}
		param := MacroParam{Name: name}
		p = end
		if p < len(line) && line[p] == '=' {
			p++
			start := p
			for p < len(line) && line[p] != ',' && !isSpace(line[p]) {
				p++
			}
			param.Default = string(line[start:p])
		} else if p < len(line) && line[p] == ':' {
			kindName, end2, ok := scanName(line, p+1)
			if !ok || kindName != "req" {
				a.errorAtOff(p, diag.ClsMacroArgs, "expected ':req' qualifier")
				return nil, false
			}
			param.Required = true
			p = end2
		}
		params = append(params, param)
		p = skipSpaces(line, p)
		if p < len(line) && line[p] == ',' {
			p = skipSpaces(line, p+1)
		}
	}
	return params, true
}

// captureBody consumes raw lines until the matching close directive, keeping
// track of nested open directives of the same kind.
func (a *Assembler) captureBody(openPos source.Pos, open, close string) ([]bodyLine, bool) {
	var body []bodyLine
	depth := 0
	for !a.aborted {
		line, ok := a.readLine()
		if !ok {
			a.errorAt(openPos, diag.ClsUnterminated, "unterminated '%s'", open)
			return nil, false
		}
		p := skipSpaces(line, 0)
		if name, end, ok := scanName(line, p); ok {
			switch name {
			case open:
				depth++
			case close:
				if depth == 0 {
					a.ensureLineEnd(line, end)
					return body, true
				}
				depth--
			}
		}
		body = append(body, bodyLine{text: string(line), pos: a.linePos(0)})
	}
	return nil, false
}

func (a *Assembler) pseudoEndm(st *stmt) {
	a.errorAtOff(st.opOff, diag.ClsNoOpenClause, "no open '.macro' for '.endm'")
}

func (a *Assembler) pseudoEndr(st *stmt) {
	a.errorAtOff(st.opOff, diag.ClsNoOpenClause, "no open '.rept' for '.endr'")
}

// invokeMacro parses the actual arguments of a macro call and pushes a macro
// input filter.
func (a *Assembler) invokeMacro(macro *Macro, line []byte, nameOff, p int) {
	callPos := a.linePos(nameOff)
	if a.macroDepth >= maxMacroDepth {
		a.fatalAtOff(nameOff, diag.ClsDepthExceeded, "macro substitution level exceeded")
		return
	}

	args := make(map[string]string, len(macro.Params))
	argIdx := 0
	p = skipSpaces(line, p)
	for p < len(line) {
		value, end, ok := a.parseMacroArgValue(line, p)
		if !ok {
			return
		}
		if argIdx >= len(macro.Params) {
			a.errorAtOff(p, diag.ClsMacroArgs, "too many arguments for macro '%s'", macro.Name)
			return
		}
		args[macro.Params[argIdx].Name] = value
		argIdx++
		p = skipSpaces(line, end)
		if p < len(line) && line[p] == ',' {
			p = skipSpaces(line, p+1)
		}
	}
	for _, param := range macro.Params[argIdx:] {
		if param.Required {
			a.errorAtOff(p, diag.ClsMacroArgs,
				"required argument '%s' of macro '%s' is missing", param.Name, macro.Name)
			return
		}
		args[param.Name] = param.Default
	}

	subst := a.srcSet.AddSubst(macro.Name, callPos, macro.DefPos)
	a.macroCount++
	a.macroDepth++
	a.pushFilter(NewMacroFilter(subst, macro, args, a.macroCount))
}

// parseMacroArgValue reads one actual macro argument: a quoted string
// (unescaped) or a bare token up to the next comma.
func (a *Assembler) parseMacroArgValue(line []byte, p int) (string, int, bool) {
	if line[p] == '"' {
		value, end, err := parseStringLiteral(line, p)
		if err != nil {
			a.errorAtOff(err.off, diag.ClsMacroArgs, "%s", err.msg)
			return "", end, false
		}
		return string(value), end, true
	}
	start := p
	for p < len(line) && line[p] != ',' {
		p++
	}
	end := p
	for end > start && isSpace(line[end-1]) {
		end--
	}
	return string(line[start:end]), p, true
}

// pseudoRept implements ".rept COUNT [counter]" ... ".endr".
func (a *Assembler) pseudoRept(st *stmt) {
	openPos := a.linePos(st.opOff)
	count, end, ok := a.resolveAbsExpr(st.line, st.p)
	counter := ""
	if ok {
		p := skipSpaces(st.line, end)
		if p < len(st.line) {
			name, nameEnd, nameOK := scanName(st.line, p)
			if !nameOK {
				a.errorAtOff(p, diag.ClsMacroArgs, "expected counter name")
				ok = false
			} else {
				counter = name
				a.ensureLineEnd(st.line, nameEnd)
			}
		}
	}

	body, bodyOK := a.captureBody(openPos, ".rept", ".endr")
	if !ok || !bodyOK {
		return
	}
	if count == 0 || len(body) == 0 {
		return
	}
	if a.repeatDepth >= maxRepeatDepth {
		a.fatalAtOff(st.opOff, diag.ClsDepthExceeded, "repetition level exceeded")
		return
	}
	subst := a.srcSet.AddSubst(".rept", openPos, openPos)
	a.repeatDepth++
	a.pushFilter(NewRepeatFilter(subst, body, counter, count))
}

// pseudoExitm drops the rest of the innermost macro expansion, including any
// clauses the expansion opened but no longer closes.
func (a *Assembler) pseudoExitm(st *stmt) {
	a.ensureLineEnd(st.line, st.p)
	for i := len(a.filters) - 1; i >= 0; i-- {
		mf, ok := a.filters[i].(*MacroFilter)
		if !ok {
			continue
		}
		for len(a.filters) > i+1 {
			a.popFilter()
		}
		mf.exhaust()
		if mark := a.filterMarks[i]; len(a.clauses) > mark {
			a.clauses = a.clauses[:mark]
		}
		return
	}
	a.errorAtOff(st.opOff, diag.ClsExitmOutside, "'.exitm' outside of a macro")
}

func (a *Assembler) pseudoPurgem(st *stmt) {
	p := skipSpaces(st.line, st.p)
	name, end, ok := scanName(st.line, p)
	if !ok {
		a.errorAtOff(p, diag.SynExpectedSymbol, "expected macro name")
		return
	}
	a.ensureLineEnd(st.line, end)
	if _, exists := a.macros[name]; !exists {
		a.errorAtOff(p, diag.ClsMacroUnknown, "macro '%s' is not defined", name)
		return
	}
	delete(a.macros, name)
}

// findIncludeFile resolves a file name against the include directories.
func (a *Assembler) findIncludeFile(name string) (string, []byte, error) {
	candidates := []string{name}
	if !filepath.IsAbs(name) {
		for _, dir := range a.opts.IncludeDirs {
			candidates = append(candidates, filepath.Join(dir, name))
		}
	}
	var firstErr error
	for _, cand := range candidates {
		content, err := os.ReadFile(cand)
		if err == nil {
			return cand, content, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return "", nil, fmt.Errorf("file '%s' not found: %w", name, firstErr)
}

// pseudoInclude pushes a stream filter over the named file.
func (a *Assembler) pseudoInclude(st *stmt) {
	p := skipSpaces(st.line, st.p)
	value, end, err := parseStringLiteral(st.line, p)
	if err != nil {
		a.errorAtOff(err.off, diag.SynExpectedString, "%s", err.msg)
		return
	}
	a.ensureLineEnd(st.line, end)
	if a.includeDepth >= maxIncludeDepth {
		a.fatalAtOff(st.opOff, diag.ClsDepthExceeded, "inclusion level exceeded")
		return
	}
	path, content, ferr := a.findIncludeFile(string(value))
	if ferr != nil {
		a.errorAtOff(p, diag.IOLoadError, "%s", ferr)
		return
	}
	src := a.srcSet.AddFile(path, a.linePos(st.opOff))
	a.includeDepth++
	a.pushFilter(NewStreamFilter(src, content))
}

// pseudoIncbin splices raw file bytes into the current section.
func (a *Assembler) pseudoIncbin(st *stmt) {
	p := skipSpaces(st.line, st.p)
	value, end, err := parseStringLiteral(st.line, p)
	if err != nil {
		a.errorAtOff(err.off, diag.SynExpectedString, "%s", err.msg)
		return
	}
	offset := uint64(0)
	count := ^uint64(0)
	q := skipSpaces(st.line, end)
	if q < len(st.line) && st.line[q] == ',' {
		var ok bool
		offset, end, ok = a.resolveAbsExpr(st.line, q+1)
		if !ok {
			return
		}
		q = skipSpaces(st.line, end)
		if q < len(st.line) && st.line[q] == ',' {
			count, end, ok = a.resolveAbsExpr(st.line, q+1)
			if !ok {
				return
			}
			q = end
		}
	}
	a.ensureLineEnd(st.line, q)

	_, content, ferr := a.findIncludeFile(string(value))
	if ferr != nil {
		a.errorAtOff(p, diag.IOLoadError, "%s", ferr)
		return
	}
	if offset >= uint64(len(content)) {
		return
	}
	content = content[offset:]
	if count < uint64(len(content)) {
		content = content[:count]
	}
	a.putData(content)
}
