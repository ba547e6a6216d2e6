// Package gcn implements the SOPP subset of the GCN scalar instruction set.
// It is deliberately thin: full mnemonic coverage lives outside the assembler
// core; this encoder carries the driver path mnemonic -> bytes -> fixup
// resolution for real hardware encodings.
package gcn

import (
	"encoding/binary"
	"fmt"
	"strings"

	"radasm/internal/isa"
)

// sopp instruction word: 0xBF800000 | op<<16 | simm16.
const soppEncoding uint32 = 0xBF800000

type operandKind uint8

const (
	operandNone operandKind = iota
	operandImm16
	operandBranch
)

type soppInsn struct {
	op      uint8
	operand operandKind
	minGen  isa.Generation
}

var soppTable = map[string]soppInsn{
	"s_nop":              {op: 0, operand: operandImm16},
	"s_endpgm":           {op: 1, operand: operandNone},
	"s_branch":           {op: 2, operand: operandBranch},
	"s_cbranch_scc0":     {op: 4, operand: operandBranch},
	"s_cbranch_scc1":     {op: 5, operand: operandBranch},
	"s_cbranch_vccz":     {op: 6, operand: operandBranch},
	"s_cbranch_vccnz":    {op: 7, operand: operandBranch},
	"s_cbranch_execz":    {op: 8, operand: operandBranch},
	"s_cbranch_execnz":   {op: 9, operand: operandBranch},
	"s_barrier":          {op: 10, operand: operandNone},
	"s_waitcnt":          {op: 12, operand: operandImm16},
	"s_sethalt":          {op: 13, operand: operandImm16},
	"s_sleep":            {op: 14, operand: operandImm16},
	"s_setprio":          {op: 15, operand: operandImm16},
	"s_cbranch_cdbgsys":  {op: 23, operand: operandBranch, minGen: isa.GCN11},
	"s_cbranch_cdbguser": {op: 24, operand: operandBranch, minGen: isa.GCN11},
}

// Encoder assembles GCN scalar program instructions for one device.
type Encoder struct {
	device isa.DeviceType
}

// New creates an encoder for the given device.
func New(device isa.DeviceType) *Encoder {
	return &Encoder{device: device}
}

func (e *Encoder) lookup(name string) (soppInsn, bool) {
	insn, ok := soppTable[strings.ToLower(name)]
	if !ok || e.device.Gen() < insn.minGen {
		return soppInsn{}, false
	}
	return insn, ok
}

// IsMnemonic reports whether name is a mnemonic on the encoder's device.
func (e *Encoder) IsMnemonic(name string) bool {
	_, ok := e.lookup(name)
	return ok
}

// Assemble encodes one instruction line.
func (e *Encoder) Assemble(lineNo uint64, line string,
	report func(col uint32, msg string)) ([]byte, []isa.Fixup, bool) {
	_ = lineNo
	p := 0
	for p < len(line) && (line[p] == ' ' || line[p] == '\t') {
		p++
	}
	start := p
	for p < len(line) && line[p] != ' ' && line[p] != '\t' {
		p++
	}
	name := line[start:p]
	insn, ok := e.lookup(name)
	if !ok {
		report(uint32(start+1), fmt.Sprintf("unknown mnemonic '%s' for device %s", name, e.device))
		return nil, nil, false
	}

	for p < len(line) && (line[p] == ' ' || line[p] == '\t') {
		p++
	}
	rest := strings.TrimRight(line[p:], " \t")

	code := make([]byte, 4)
	binary.LittleEndian.PutUint32(code, soppEncoding|uint32(insn.op)<<16)

	switch insn.operand {
	case operandNone:
		if rest != "" {
			report(uint32(p+1), fmt.Sprintf("'%s' takes no operand", name))
			return nil, nil, false
		}
		return code, nil, true
	default:
		if rest == "" {
			report(uint32(p+1), fmt.Sprintf("'%s' requires an operand", name))
			return nil, nil, false
		}
		kind := isa.FixupImm16
		if insn.operand == operandBranch {
			kind = isa.FixupBranch16
		}
		// The operand is an expression; the core parses and resolves it.
		fixup := isa.Fixup{Offset: 0, Kind: kind, Expr: rest, Col: uint32(p + 1)}
		return code, []isa.Fixup{fixup}, true
	}
}

// Resolve patches the instruction at offset with the resolved operand value.
func (e *Encoder) Resolve(code []byte, offset uint64, kind isa.FixupKind, value uint64) bool {
	if offset+4 > uint64(len(code)) {
		return false
	}
	switch kind {
	case isa.FixupImm16:
		if value > 0xffff {
			return false
		}
		binary.LittleEndian.PutUint16(code[offset:], uint16(value))
		return true
	case isa.FixupBranch16:
		// Branch displacement counts 4-byte words from the next instruction.
		diff := int64(value) - int64(offset) - 4
		if diff%4 != 0 {
			return false
		}
		words := diff / 4
		if words < -0x8000 || words > 0x7fff {
			return false
		}
		binary.LittleEndian.PutUint16(code[offset:], uint16(int16(words)))
		return true
	}
	return false
}

var _ isa.Encoder = (*Encoder)(nil)
