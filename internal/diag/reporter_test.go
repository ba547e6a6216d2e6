package diag

import (
	"strings"
	"testing"

	"radasm/internal/source"
)

func TestStreamReporterFormat(t *testing.T) {
	set := source.NewSet()
	src := set.AddVirtual("test.s")

	var sb strings.Builder
	rep := &StreamReporter{W: &sb, Set: set}
	rep.Report(Diagnostic{
		Severity: SevError,
		Code:     SymRedefined,
		Pos:      source.Pos{Src: src, Line: 3, Col: 1},
		Message:  "symbol 'start' is already defined",
	})

	want := "test.s:3:1: Error: symbol 'start' is already defined\n"
	if sb.String() != want {
		t.Fatalf("got %q want %q", sb.String(), want)
	}
	if rep.Errors() != 1 || rep.Warnings() != 0 {
		t.Fatalf("counter mismatch: %d errors, %d warnings", rep.Errors(), rep.Warnings())
	}
}

func TestStreamReporterBacktrace(t *testing.T) {
	set := source.NewSet()
	main := set.AddFile("main.s", source.Pos{})
	sub := set.AddSubst("emit", source.Pos{Src: main, Line: 9, Col: 5}, source.Pos{Src: main, Line: 1, Col: 1})

	var sb strings.Builder
	rep := &StreamReporter{W: &sb, Set: set}
	rep.Report(Diagnostic{
		Severity: SevWarning,
		Code:     ExpValueRange,
		Pos:      source.Pos{Subst: sub, Src: main, Line: 2, Col: 12},
		Message:  "value truncated to 8 bits",
	})

	want := "In macro substituted from main.s:9:5:\n" +
		"main.s:2:12: Warning: value truncated to 8 bits\n"
	if sb.String() != want {
		t.Fatalf("got:\n%s\nwant:\n%s", sb.String(), want)
	}
}

func TestBagReporter(t *testing.T) {
	bag := NewBag()
	rep := BagReporter{Bag: bag}
	rep.Report(Diagnostic{Severity: SevWarning, Code: ExpValueRange})
	rep.Report(Diagnostic{Severity: SevError, Code: ExpDivByZero})

	if bag.Len() != 2 {
		t.Fatalf("Len = %d", bag.Len())
	}
	if !bag.HasErrors() || !bag.HasWarnings() {
		t.Fatalf("expected both errors and warnings")
	}
	if bag.Errors() != 1 {
		t.Fatalf("Errors = %d", bag.Errors())
	}
}

func TestCodeID(t *testing.T) {
	cases := []struct {
		code Code
		id   string
	}{
		{LexBadLiteral, "LEX1001"},
		{SymRedefined, "SYM3001"},
		{ExpDivByZero, "EXP4001"},
		{ClsUnterminated, "CLS5003"},
	}
	for _, tc := range cases {
		if got := tc.code.ID(); got != tc.id {
			t.Errorf("ID(%d) = %q, want %q", tc.code, got, tc.id)
		}
	}
}
