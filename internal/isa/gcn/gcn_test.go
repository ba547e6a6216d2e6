package gcn

import (
	"encoding/binary"
	"testing"

	"radasm/internal/isa"
)

func noReport(t *testing.T) func(col uint32, msg string) {
	t.Helper()
	return func(col uint32, msg string) {
		t.Fatalf("unexpected report at col %d: %s", col, msg)
	}
}

func TestAssembleNoOperand(t *testing.T) {
	enc := New(isa.DeviceCapeVerde)
	code, fixups, ok := enc.Assemble(1, "s_endpgm", noReport(t))
	if !ok {
		t.Fatal("assemble failed")
	}
	if len(fixups) != 0 {
		t.Fatalf("unexpected fixups: %v", fixups)
	}
	if got := binary.LittleEndian.Uint32(code); got != 0xBF810000 {
		t.Fatalf("s_endpgm = %#08x", got)
	}
}

func TestAssembleImmOperand(t *testing.T) {
	enc := New(isa.DeviceCapeVerde)
	code, fixups, ok := enc.Assemble(1, "  s_waitcnt 0", noReport(t))
	if !ok {
		t.Fatal("assemble failed")
	}
	if got := binary.LittleEndian.Uint32(code); got != 0xBF8C0000 {
		t.Fatalf("s_waitcnt = %#08x", got)
	}
	if len(fixups) != 1 || fixups[0].Kind != isa.FixupImm16 || fixups[0].Expr != "0" {
		t.Fatalf("fixups = %+v", fixups)
	}
}

func TestAssembleBranchFixup(t *testing.T) {
	enc := New(isa.DeviceCapeVerde)
	code, fixups, ok := enc.Assemble(1, "s_branch lend", noReport(t))
	if !ok {
		t.Fatal("assemble failed")
	}
	if len(fixups) != 1 || fixups[0].Kind != isa.FixupBranch16 || fixups[0].Expr != "lend" {
		t.Fatalf("fixups = %+v", fixups)
	}
	if got := binary.LittleEndian.Uint32(code); got != 0xBF820000 {
		t.Fatalf("s_branch = %#08x", got)
	}
}

func TestAssembleErrors(t *testing.T) {
	enc := New(isa.DeviceCapeVerde)

	reported := ""
	report := func(col uint32, msg string) { reported = msg }

	if _, _, ok := enc.Assemble(1, "v_bogus_op v0", report); ok {
		t.Fatal("expected unknown mnemonic failure")
	}
	if reported == "" {
		t.Fatal("no report for unknown mnemonic")
	}

	reported = ""
	if _, _, ok := enc.Assemble(1, "s_endpgm 7", report); ok {
		t.Fatal("expected operand rejection")
	}
	if reported == "" {
		t.Fatal("no report for extra operand")
	}

	reported = ""
	if _, _, ok := enc.Assemble(1, "s_branch", report); ok {
		t.Fatal("expected missing operand failure")
	}
	if reported == "" {
		t.Fatal("no report for missing operand")
	}
}

func TestDeviceGating(t *testing.T) {
	si := New(isa.DeviceCapeVerde)
	ci := New(isa.DeviceBonaire)
	if si.IsMnemonic("s_cbranch_cdbgsys") {
		t.Fatal("GCN 1.1 mnemonic must not be available on capeverde")
	}
	if !ci.IsMnemonic("s_cbranch_cdbgsys") {
		t.Fatal("GCN 1.1 mnemonic must be available on bonaire")
	}
}

func TestResolveBranch(t *testing.T) {
	enc := New(isa.DeviceCapeVerde)
	code := make([]byte, 16)
	binary.LittleEndian.PutUint32(code[4:], 0xBF820000)

	// Branch at offset 4 to target 12: (12-4-4)/4 = 1 word forward.
	if !enc.Resolve(code, 4, isa.FixupBranch16, 12) {
		t.Fatal("resolve failed")
	}
	if got := binary.LittleEndian.Uint16(code[4:]); got != 1 {
		t.Fatalf("branch simm = %d", got)
	}

	// Backward branch to 0: (0-4-4)/4 = -2.
	if !enc.Resolve(code, 4, isa.FixupBranch16, 0) {
		t.Fatal("backward resolve failed")
	}
	if got := int16(binary.LittleEndian.Uint16(code[4:])); got != -2 {
		t.Fatalf("backward simm = %d", got)
	}

	// Misaligned target must be rejected.
	if enc.Resolve(code, 4, isa.FixupBranch16, 13) {
		t.Fatal("misaligned target accepted")
	}
}

func TestResolveImm(t *testing.T) {
	enc := New(isa.DeviceCapeVerde)
	code := make([]byte, 4)
	if !enc.Resolve(code, 0, isa.FixupImm16, 0x1234) {
		t.Fatal("imm resolve failed")
	}
	if got := binary.LittleEndian.Uint16(code); got != 0x1234 {
		t.Fatalf("imm = %#x", got)
	}
	if enc.Resolve(code, 0, isa.FixupImm16, 0x10000) {
		t.Fatal("oversized imm accepted")
	}
}
