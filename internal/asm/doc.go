// Package asm implements the assembler front-end: the input filter stack
// (includes, macro expansion, repetition), the statement scanner, the symbol
// table with occurrence back-references, the lazy expression engine with
// forward references and .eqv snapshots, the pseudo-op dispatcher with the
// clause stack, and the driver loop that routes assembled bytes through the
// active format handler.
//
// Assembly is strictly sequential: the driver loop is the only mutator of the
// symbol table, the section contents and the clause stack, and symbol
// resolution happens eagerly the moment a definition makes it possible.
package asm
