// Package isa defines the contract between the assembler core and the
// instruction-set encoders. The core classifies a statement as an instruction,
// hands the whole line to the encoder, and routes the returned bytes into the
// current code section; any operand the encoder could not finish (a forward
// branch target) comes back as a Fixup whose expression text the core parses
// and resolves with its own expression engine.
package isa

// FixupKind tells Resolve how to patch previously emitted code.
type FixupKind uint8

const (
	// FixupNone marks an unused fixup slot.
	FixupNone FixupKind = iota
	// FixupBranch16 is a 16-bit word-relative branch displacement in the low
	// half of the instruction word at Offset.
	FixupBranch16
	// FixupImm16 is a plain 16-bit immediate in the low half of the
	// instruction word at Offset.
	FixupImm16
)

// Fixup describes an operand whose value was not known at encode time.
// Offset is relative to the start of the bytes returned by Assemble; the core
// rebases it against the section before registering the expression.
type Fixup struct {
	Offset uint64
	Kind   FixupKind
	// Expr is the operand text to be parsed by the core's expression engine.
	Expr string
	// Col is the 1-based column of the operand within the line.
	Col uint32
}

// Encoder assembles instruction statements for one instruction set.
// Implementations must be agnostic of the surrounding source pipeline; errors
// are delivered through the report callback with a column inside the line.
type Encoder interface {
	// IsMnemonic reports whether name is an instruction mnemonic.
	IsMnemonic(name string) bool

	// Assemble encodes one instruction line. It returns the emitted bytes and
	// the fixups pending on them; ok is false when the line was rejected (the
	// callback has already reported why).
	Assemble(lineNo uint64, line string, report func(col uint32, msg string)) (code []byte, fixups []Fixup, ok bool)

	// Resolve patches code previously produced by Assemble. offset is the
	// section-relative position of the instruction, value the resolved target.
	// It returns false when the value does not fit the fixup field.
	Resolve(code []byte, offset uint64, kind FixupKind, value uint64) bool
}
