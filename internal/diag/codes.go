package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Scanner and literals
	LexInfo              Code = 1000
	LexBadLiteral        Code = 1001
	LexLiteralOutOfRange Code = 1002
	LexUnterminatedStr   Code = 1003
	LexBadEscape         Code = 1004
	LexGarbageAtEnd      Code = 1005
	LexBadStatement      Code = 1006

	// Statement / expression syntax
	SynInfo            Code = 2000
	SynExpectedExpr    Code = 2001
	SynMismatchedParen Code = 2002
	SynUnexpectedOp    Code = 2003
	SynExpectedComma   Code = 2004
	SynExpectedSymbol  Code = 2005
	SynExpectedString  Code = 2006
	SynBadPseudoOp     Code = 2007
	SynChoiceNoColon   Code = 2008
	SynExprNesting     Code = 2009

	// Symbols
	SymInfo          Code = 3000
	SymRedefined     Code = 3001
	SymUndefined     Code = 3002
	SymCycle         Code = 3003
	SymReservedName  Code = 3004
	SymExprUnresolvd Code = 3005
	SymNotRegular    Code = 3006

	// Expression evaluation
	ExpInfo         Code = 4000
	ExpDivByZero    Code = 4001
	ExpSectionCross Code = 4002
	ExpNeedAbsolute Code = 4003
	ExpValueRange   Code = 4004
	ExpNotResolved  Code = 4005
	ExpRelInData    Code = 4006

	// Clauses and input filters
	ClsInfo           Code = 5000
	ClsNoOpenClause   Code = 5001
	ClsElseAfterElse  Code = 5002
	ClsUnterminated   Code = 5003
	ClsDepthExceeded  Code = 5004
	ClsMacroRedefined Code = 5005
	ClsMacroUnknown   Code = 5006
	ClsMacroArgs      Code = 5007
	ClsExitmOutside   Code = 5008

	// Format handlers
	FmtInfo            Code = 6000
	FmtAlreadyDefined  Code = 6001
	FmtKernelIllegal   Code = 6002
	FmtUnknownSection  Code = 6003
	FmtDuplicateKernel Code = 6004
	FmtBadConfig       Code = 6005

	// ISA encoder
	IsaInfo         Code = 7000
	IsaUnknownMnemo Code = 7001
	IsaBadOperand   Code = 7002
	IsaFixupRange   Code = 7003

	// I/O and environment
	IOInfo      Code = 8000
	IOLoadError Code = 8001
	IODefsym    Code = 8002
	IOAbort     Code = 8003
	IOUserError Code = 8004
)

var codeDescription = map[Code]string{
	UnknownCode:          "Unknown error",
	LexInfo:              "Scanner information",
	LexBadLiteral:        "Malformed literal",
	LexLiteralOutOfRange: "Literal out of range",
	LexUnterminatedStr:   "Unterminated string",
	LexBadEscape:         "Bad escape sequence",
	LexGarbageAtEnd:      "Garbage at end of line",
	LexBadStatement:      "Malformed statement",
	SynInfo:              "Syntax information",
	SynExpectedExpr:      "Expected expression",
	SynMismatchedParen:   "Mismatched parentheses",
	SynUnexpectedOp:      "Unexpected operator",
	SynExpectedComma:     "Expected comma",
	SynExpectedSymbol:    "Expected symbol name",
	SynExpectedString:    "Expected string literal",
	SynBadPseudoOp:       "Unknown pseudo-op",
	SynChoiceNoColon:     "Missing ':' of choice operator",
	SynExprNesting:       "Expression nesting too deep",
	SymInfo:              "Symbol information",
	SymRedefined:         "Symbol already defined",
	SymUndefined:         "Undefined symbol",
	SymCycle:             "Cyclic symbol dependency",
	SymReservedName:      "Reserved symbol name",
	SymExprUnresolvd:     "Expression not resolved",
	SymNotRegular:        "Not a regular symbol",
	ExpInfo:              "Evaluation information",
	ExpDivByZero:         "Division by zero",
	ExpSectionCross:      "Relative expression across sections",
	ExpNeedAbsolute:      "Absolute value required",
	ExpValueRange:        "Value out of range",
	ExpNotResolved:       "Expression will not be resolved",
	ExpRelInData:         "Relative value in data",
	ClsInfo:              "Clause information",
	ClsNoOpenClause:      "No open clause",
	ClsElseAfterElse:     "Duplicate else",
	ClsUnterminated:      "Unterminated clause",
	ClsDepthExceeded:     "Nesting depth exceeded",
	ClsMacroRedefined:    "Macro already defined",
	ClsMacroUnknown:      "Unknown macro",
	ClsMacroArgs:         "Bad macro arguments",
	ClsExitmOutside:      "Exitm outside macro",
	FmtInfo:              "Format information",
	FmtAlreadyDefined:    "Output format already defined",
	FmtKernelIllegal:     "Kernel not allowed in this format",
	FmtUnknownSection:    "Unknown section",
	FmtDuplicateKernel:   "Duplicate kernel",
	FmtBadConfig:         "Bad kernel configuration",
	IsaInfo:              "ISA information",
	IsaUnknownMnemo:      "Unknown mnemonic",
	IsaBadOperand:        "Bad instruction operand",
	IsaFixupRange:        "Fixup value out of range",
	IOInfo:               "I/O information",
	IOLoadError:          "I/O load error",
	IODefsym:             "Bad initial defsym",
	IOAbort:              "Assembly aborted",
	IOUserError:          "User error directive",
}

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("LEX%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("SYN%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("SYM%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("EXP%04d", ic)
	case ic >= 5000 && ic < 6000:
		return fmt.Sprintf("CLS%04d", ic)
	case ic >= 6000 && ic < 7000:
		return fmt.Sprintf("FMT%04d", ic)
	case ic >= 7000 && ic < 8000:
		return fmt.Sprintf("ISA%04d", ic)
	case ic >= 8000 && ic < 9000:
		return fmt.Sprintf("IO%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[Code(0)]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
