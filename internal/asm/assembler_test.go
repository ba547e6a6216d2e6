package asm

import (
	"bytes"
	"strings"
	"testing"

	"radasm/internal/isa"
	"radasm/internal/isa/gcn"
)

type asmResult struct {
	a        *Assembler
	good     bool
	messages string
	printed  string
}

func assemble(t *testing.T, input string, format FormatKind) *asmResult {
	t.Helper()
	var msg, prn strings.Builder
	a := New("test.s", []byte(input), gcn.New(isa.DeviceCapeVerde), Options{
		Format:   format,
		Device:   isa.DeviceCapeVerde,
		Warnings: true,
		MessageW: &msg,
		PrintW:   &prn,
	})
	good := a.Assemble()
	return &asmResult{a: a, good: good, messages: msg.String(), printed: prn.String()}
}

func expectSym(t *testing.T, a *Assembler, name string, value uint64, section SectionID,
	hasValue, once, base bool) {
	t.Helper()
	sym, ok := a.Symbol(name)
	if !ok {
		t.Errorf("symbol %q missing", name)
		return
	}
	if sym.HasValue != hasValue {
		t.Errorf("symbol %q: HasValue = %v, want %v", name, sym.HasValue, hasValue)
	}
	if hasValue && sym.Value != value {
		t.Errorf("symbol %q: value = %d, want %d", name, sym.Value, value)
	}
	if hasValue && sym.Section != section {
		t.Errorf("symbol %q: section = %d, want %d", name, sym.Section, section)
	}
	if sym.OnceDefined != once {
		t.Errorf("symbol %q: OnceDefined = %v, want %v", name, sym.OnceDefined, once)
	}
	if sym.Base != base {
		t.Errorf("symbol %q: Base = %v, want %v", name, sym.Base, base)
	}
}

func expectContent(t *testing.T, a *Assembler, section int, want []byte) {
	t.Helper()
	secs := a.Sections()
	if section >= len(secs) {
		t.Fatalf("section %d missing, have %d sections", section, len(secs))
	}
	if !bytes.Equal(secs[section].Content, want) {
		t.Errorf("section %d content:\n got %v\nwant %v", section, secs[section].Content, want)
	}
}

func errorCount(messages string) int {
	return strings.Count(messages, ": Error: ")
}

func TestEmptyInput(t *testing.T) {
	r := assemble(t, "", FormatAMD)
	if !r.good {
		t.Fatalf("good = false: %s", r.messages)
	}
	if len(r.a.Sections()) != 0 {
		t.Fatalf("no sections expected, got %d", len(r.a.Sections()))
	}
	expectSym(t, r.a, ".", 0, 0, true, false, false)
}

func TestForwardChainAssignments(t *testing.T) {
	r := assemble(t, `sym1 = 7
        sym2 = 81
        sym3 = sym7*sym4
        sym4 = sym5*sym6+sym7 - sym1
        sym5 = 17
        sym6 = 43
        sym7 = 91`, FormatAMD)
	if !r.good {
		t.Fatalf("good = false: %s", r.messages)
	}
	expectSym(t, r.a, "sym1", 7, SectAbs, true, false, false)
	expectSym(t, r.a, "sym2", 81, SectAbs, true, false, false)
	expectSym(t, r.a, "sym3", 91*(17*43+91-7), SectAbs, true, false, false)
	expectSym(t, r.a, "sym4", 17*43+91-7, SectAbs, true, false, false)
	expectSym(t, r.a, "sym5", 17, SectAbs, true, false, false)
	expectSym(t, r.a, "sym6", 43, SectAbs, true, false, false)
	expectSym(t, r.a, "sym7", 91, SectAbs, true, false, false)
}

func TestUndefinedAndRedefined(t *testing.T) {
	r := assemble(t, `sym1 = 7
        sym2 = 81
        sym3 = sym7*sym4
        sym4 = sym5*sym6+sym7 - sym1
        sym5 = 17
        sym6 = 43
        sym9 = sym9
        sym10 = sym10
        sym10 = sym2+7`, FormatAMD)
	if !r.good {
		t.Fatalf("good = false: %s", r.messages)
	}
	expectSym(t, r.a, "sym1", 7, SectAbs, true, false, false)
	expectSym(t, r.a, "sym10", 88, SectAbs, true, false, false)
	expectSym(t, r.a, "sym2", 81, SectAbs, true, false, false)
	expectSym(t, r.a, "sym3", 0, SectAbs, false, false, false)
	expectSym(t, r.a, "sym4", 0, SectAbs, false, false, false)
	expectSym(t, r.a, "sym5", 17, SectAbs, true, false, false)
	expectSym(t, r.a, "sym6", 43, SectAbs, true, false, false)
	expectSym(t, r.a, "sym7", 0, SectAbs, false, false, false)
	expectSym(t, r.a, "sym9", 0, SectAbs, false, false, false)
}

func TestLabelsAndLocalLabels(t *testing.T) {
	r := assemble(t, `.rawcode
start: .int 3,5,6
label1: vx0 = start
        vx2 = label1+6
        vx3 = label2+8
        .int 1,2,3,4
label2: .int 3,6,7
        vx4 = 2f
2:      .int 11
        vx5 = 2b
        vx6 = 2f
        vx7 = 3f
2:      .int 12
3:      vx8 = 3b`, FormatAMD)
	if !r.good {
		t.Fatalf("good = false: %s", r.messages)
	}
	expectContent(t, r.a, 0, []byte{
		3, 0, 0, 0, 5, 0, 0, 0, 6, 0, 0, 0, 1, 0, 0, 0, 2, 0, 0, 0,
		3, 0, 0, 0, 4, 0, 0, 0, 3, 0, 0, 0, 6, 0, 0, 0, 7, 0, 0, 0,
		11, 0, 0, 0, 12, 0, 0, 0,
	})
	expectSym(t, r.a, ".", 48, 0, true, false, false)
	expectSym(t, r.a, "2b", 44, 0, true, false, false)
	expectSym(t, r.a, "2f", 0, 0, false, false, false)
	expectSym(t, r.a, "3b", 48, 0, true, false, false)
	expectSym(t, r.a, "3f", 0, 0, false, false, false)
	expectSym(t, r.a, "label1", 12, 0, true, true, false)
	expectSym(t, r.a, "label2", 28, 0, true, true, false)
	expectSym(t, r.a, "start", 0, 0, true, true, false)
	expectSym(t, r.a, "vx0", 0, 0, true, false, false)
	expectSym(t, r.a, "vx2", 18, 0, true, false, false)
	expectSym(t, r.a, "vx3", 36, 0, true, false, false)
	expectSym(t, r.a, "vx4", 40, 0, true, false, false)
	expectSym(t, r.a, "vx5", 40, 0, true, false, false)
	expectSym(t, r.a, "vx6", 44, 0, true, false, false)
	expectSym(t, r.a, "vx7", 48, 0, true, false, false)
	expectSym(t, r.a, "vx8", 48, 0, true, false, false)
}

func TestLabelsOnGlobalData(t *testing.T) {
	r := assemble(t, `label1:
3:      v1 = label1
        v2 = 3b`, FormatAMD)
	if !r.good {
		t.Fatalf("good = false: %s", r.messages)
	}
	if len(r.a.Sections()) != 1 || r.a.Sections()[0].Type != SectData {
		t.Fatalf("expected a single global data section")
	}
	expectSym(t, r.a, "3b", 0, 0, true, false, false)
	expectSym(t, r.a, "3f", 0, 0, false, false, false)
	expectSym(t, r.a, "label1", 0, 0, true, true, false)
	expectSym(t, r.a, "v1", 0, 0, true, false, false)
	expectSym(t, r.a, "v2", 0, 0, true, false, false)
}

func TestAssignmentsAndRedefinitionErrors(t *testing.T) {
	r := assemble(t, `.rawcode
start: .byte 0xfa, 0xfd, 0xfb, 0xda
start:
        start = 132
        .byte zx
        zx = 9
        .byte zx
        zx = 10
1:      .byte zx
        1 = 6
        .byte zy
        .set zy, 10
        .byte zy
        .set zy, 11
        .byte zy
        .byte zz
        .equ zz, 100
        .byte zz
        .equ zz, 120
        .byte zz
        .byte testx
        .equiv testx, 130
        .byte testx
        .equiv testx, 150
        .byte testx
        myval = 0x12
        .equiv myval,0x15
        .equiv myval,0x15
        myval = 6
        .set myval,8
        .equ myval,9
        testx = 566
        .set testx,55`, FormatAMD)
	if r.good {
		t.Fatal("good = true, expected redefinition errors")
	}
	expectContent(t, r.a, 0, []byte{
		0xfa, 0xfd, 0xfb, 0xda, 0x09, 0x09, 0x0a, 0x0a, 0x0a, 0x0b, 0x64, 0x64,
		0x78, 0x82, 0x82, 0x82,
	})
	expectSym(t, r.a, ".", 16, 0, true, false, false)
	expectSym(t, r.a, "1b", 6, 0, true, false, false)
	expectSym(t, r.a, "1f", 0, 0, false, false, false)
	expectSym(t, r.a, "myval", 9, SectAbs, true, false, false)
	expectSym(t, r.a, "start", 0, 0, true, true, false)
	expectSym(t, r.a, "testx", 130, SectAbs, true, true, false)
	expectSym(t, r.a, "zx", 10, SectAbs, true, false, false)
	expectSym(t, r.a, "zy", 11, SectAbs, true, false, false)
	expectSym(t, r.a, "zz", 120, SectAbs, true, false, false)

	if got := errorCount(r.messages); got != 8 {
		t.Errorf("error count = %d, want 8:\n%s", got, r.messages)
	}
	if !strings.Contains(r.messages, "symbol 'start' is already defined") {
		t.Errorf("missing redefinition message:\n%s", r.messages)
	}
	if !strings.Contains(r.messages, "illegal number at statement begin") {
		t.Errorf("missing number-statement message:\n%s", r.messages)
	}
}

func TestEqvSnapshots(t *testing.T) {
	r := assemble(t, `        z=5
        .eqv v1,v+t
        .eqv v,z*y
        .int v1
        .int v+v
        z=8
        .int v+v
        z=9
        y=3
        t=7
        .int v1
        t=8
        y=2
        .int v1+v`, FormatAMD)
	if !r.good {
		t.Fatalf("good = false: %s", r.messages)
	}
	expectContent(t, r.a, 0, []byte{
		0x16, 0, 0, 0, 0x1e, 0, 0, 0, 0x30, 0, 0, 0, 0x22, 0, 0, 0,
		0x2c, 0, 0, 0,
	})
	expectSym(t, r.a, ".", 20, 0, true, false, false)
	expectSym(t, r.a, "t", 8, SectAbs, true, false, false)
	expectSym(t, r.a, "v", 0, SectAbs, false, true, true)
	expectSym(t, r.a, "v1", 0, SectAbs, false, true, true)
	expectSym(t, r.a, "y", 2, SectAbs, true, false, false)
	expectSym(t, r.a, "z", 9, SectAbs, true, false, false)
}

func TestEqvBeforeAndAfterUse(t *testing.T) {
	r := assemble(t, `.int y+7
        t=8
        tx=3
        .eqv y,t*tx+2

        .int y2+7
        t2=8
        .eqv y2,t2*tx2+3
        tx2=5

        n1=7
        n2=6
        .eqv out0,n1*n2+2
        .int out0
        n2=5
        .int out0

        t2=3
        t3=4
        .eqv x0,2*t2*t3
        .eqv out1,x0*2
        .int out1

        .eqv x1,2
        .eqv out2,x1*2
        .int out2`, FormatAMD)
	if !r.good {
		t.Fatalf("good = false: %s", r.messages)
	}
	expectContent(t, r.a, 0, []byte{
		0x21, 0, 0, 0, 0x32, 0, 0, 0, 0x2c, 0, 0, 0, 0x25, 0, 0, 0,
		0x30, 0, 0, 0, 0x04, 0, 0, 0,
	})
	expectSym(t, r.a, "n1", 7, SectAbs, true, false, false)
	expectSym(t, r.a, "n2", 5, SectAbs, true, false, false)
	expectSym(t, r.a, "out0", 0, SectAbs, false, true, true)
	expectSym(t, r.a, "out1", 0, SectAbs, false, true, true)
	expectSym(t, r.a, "out2", 0, SectAbs, false, true, true)
	expectSym(t, r.a, "x0", 0, SectAbs, false, true, true)
	expectSym(t, r.a, "x1", 2, SectAbs, true, true, false)
	expectSym(t, r.a, "y", 0, SectAbs, false, true, true)
	expectSym(t, r.a, "y2", 0, SectAbs, false, true, true)
	expectSym(t, r.a, "tx2", 5, SectAbs, true, false, false)
}

func TestEqvDefinitionOrders(t *testing.T) {
	r := assemble(t, `x00t = 6
            x00u = x00t+9
            .eqv x03,6
            .eqv x02,x03+2*x03+x00u
            .eqv x01,x02*x02+x00t
            x00 = x01+x02*x03
            .int x00
            z00 = x00

            x10u = x10t+11
            x10t = 8
            .eqv x12,x13+2*x13+x10u
            .eqv x13,14
            .eqv x11,x12*x12+x10t
            x10 = x11+x12*x13
            .int x10
            z10 = x10

            x20u = x20t+3
            x20t = 11
            .eqv x21,x22*x22+x20t
            .eqv x22,x23+2*x23+x20u
            .eqv x23,78
            x20 = x21+x22*x23
            .int x20
            z20 = x20

            x30u = x30t+21
            x30t = 31
            x30 = x31+x32*x33
            .eqv x31,x32*x32+x30t
            .eqv x32,x33+2*x33+x30u
            .eqv x33,5
            .int x30
            z30 = x30

            z40 = x40
            .int x40
            x40u = x40t+71
            x40t = 22
            x40 = x41+x42*x43
            .eqv x41,x42*x42+x40t
            .eqv x42,x43+2*x43+x40u
            .eqv x43,12

            z50 = x50
            .int x50
            x50t = 15
            x50 = x51+x52*x53
            .eqv x51,x52*x52+x50t
            .eqv x52,x53+2*x53+x50u
            .eqv x53,23
            x50u = x50t+19`, FormatAMD)
	if !r.good {
		t.Fatalf("good = false: %s", r.messages)
	}
	expectContent(t, r.a, 0, []byte{
		0x0d, 0x05, 0, 0, 0xe7, 0x11, 0, 0, 0xdb, 0x3b, 1, 0, 0xf7, 0x12, 0, 0,
		0x23, 0x47, 0, 0, 0xc1, 0x32, 0, 0,
	})
	for _, tc := range []struct {
		name  string
		value uint64
	}{
		{"x00", 1293}, {"x10", 4583}, {"x20", 80859}, {"x30", 4855},
		{"x40", 18211}, {"x50", 12993},
		{"z00", 1293}, {"z10", 4583}, {"z20", 80859}, {"z30", 4855},
		{"z40", 18211}, {"z50", 12993},
	} {
		expectSym(t, r.a, tc.name, tc.value, SectAbs, true, false, false)
	}
	expectSym(t, r.a, "x01", 0, SectAbs, false, true, true)
	expectSym(t, r.a, "x03", 6, SectAbs, true, true, false)
	expectSym(t, r.a, "x43", 12, SectAbs, true, true, false)
}

func TestEqvRecursiveBases(t *testing.T) {
	r := assemble(t, `x40u = 93
            x40t = 22
            x40 = x41+x42*x43
            .eqv x41,x42*x42+x40t
            .eqv x42,x43+2*x43+x40u
            .eqv x43,x40u*x40t+12`, FormatAMD)
	if !r.good {
		t.Fatalf("good = false: %s", r.messages)
	}
	expectSym(t, r.a, "x40", 52172797, SectAbs, true, false, false)
	expectSym(t, r.a, "x41", 0, SectAbs, false, true, true)
	expectSym(t, r.a, "x42", 0, SectAbs, false, true, true)
	expectSym(t, r.a, "x43", 0, SectAbs, false, true, true)
}

func TestEqvCycleDetected(t *testing.T) {
	r := assemble(t, `.eqv a,b+1
.eqv b,a+1
x = a`, FormatAMD)
	if r.good {
		t.Fatal("expected cycle error")
	}
	if !strings.Contains(r.messages, "cyclic dependency") {
		t.Errorf("missing cycle message:\n%s", r.messages)
	}
}

func TestUndefinedDataReference(t *testing.T) {
	r := assemble(t, ".int nowhere\n", FormatAMD)
	if r.good {
		t.Fatal("expected undefined reference error")
	}
	if !strings.Contains(r.messages, "expression will not be resolved") {
		t.Errorf("missing unresolved message:\n%s", r.messages)
	}
	// the slot stays zero-filled
	expectContent(t, r.a, 0, []byte{0, 0, 0, 0})
}

func TestUnreferencedUndefinedSymbolIsNoError(t *testing.T) {
	r := assemble(t, "x = missing\n", FormatAMD)
	if !r.good {
		t.Fatalf("good = false: %s", r.messages)
	}
	expectSym(t, r.a, "x", 0, SectAbs, false, false, false)
}

func TestBranchFixupResolution(t *testing.T) {
	r := assemble(t, `.rawcode
start:
s_branch lend
s_nop 0
lend:
s_endpgm`, FormatAMD)
	if !r.good {
		t.Fatalf("good = false: %s", r.messages)
	}
	expectContent(t, r.a, 0, []byte{
		0x01, 0x00, 0x82, 0xBF, // s_branch +1 word
		0x00, 0x00, 0x80, 0xBF, // s_nop 0
		0x00, 0x00, 0x81, 0xBF, // s_endpgm
	})
}

func TestUnknownMnemonic(t *testing.T) {
	r := assemble(t, "frobnicate r0\n", FormatAMD)
	if r.good {
		t.Fatal("expected unknown mnemonic error")
	}
	if !strings.Contains(r.messages, "unknown mnemonic") {
		t.Errorf("missing mnemonic message:\n%s", r.messages)
	}
}

func TestRangeWarningTruncates(t *testing.T) {
	r := assemble(t, ".byte 256\n", FormatAMD)
	if !r.good {
		t.Fatalf("range overflow must stay a warning: %s", r.messages)
	}
	if !strings.Contains(r.messages, "Warning") {
		t.Errorf("missing range warning:\n%s", r.messages)
	}
	expectContent(t, r.a, 0, []byte{0})
}

func TestDefSyms(t *testing.T) {
	var msg strings.Builder
	a := New("test.s", []byte(".int BUFSIZE\n"), nil, Options{
		Format:   FormatAMD,
		Warnings: true,
		MessageW: &msg,
		PrintW:   &msg,
		DefSyms:  []DefSym{{Name: "BUFSIZE", Value: 0x1234}},
	})
	if !a.Assemble() {
		t.Fatalf("good = false: %s", msg.String())
	}
	expectContent(t, a, 0, []byte{0x34, 0x12, 0, 0})
}

func TestDotOutputCounter(t *testing.T) {
	r := assemble(t, `.rawcode
.int 1,2
here = .`, FormatAMD)
	if !r.good {
		t.Fatalf("good = false: %s", r.messages)
	}
	expectSym(t, r.a, "here", 8, 0, true, false, false)
}
