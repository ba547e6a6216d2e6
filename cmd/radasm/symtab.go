package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"

	"radasm/internal/asm"
)

// printSymbolListing writes the final symbol table as an aligned listing.
// Column widths follow the rendered width of the names so the table stays
// readable for any symbol names.
func printSymbolListing(w io.Writer, a *asm.Assembler) {
	names := a.SymbolNames()
	nameWidth := len("symbol")
	for _, name := range names {
		if width := runewidth.StringWidth(name); width > nameWidth {
			nameWidth = width
		}
	}

	pad := func(s string) string {
		return s + strings.Repeat(" ", nameWidth-runewidth.StringWidth(s))
	}
	fmt.Fprintf(w, "%s  %-18s %-8s %s\n", pad("symbol"), "value", "section", "state")
	for _, name := range names {
		sym, _ := a.Symbol(name)
		state := "undefined"
		switch {
		case sym.HasValue && sym.OnceDefined:
			state = "defined once"
		case sym.HasValue:
			state = "defined"
		case sym.Base:
			state = "eqv base"
		}
		section := "abs"
		if sym.Section != asm.SectAbs {
			section = fmt.Sprintf("%d", sym.Section)
		}
		fmt.Fprintf(w, "%s  %#-18x %-8s %s\n", pad(name), sym.Value, section, state)
	}
}
