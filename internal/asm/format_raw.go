package asm

import (
	"errors"
	"fmt"
	"io"
)

// rawCodeHandler emits a bare code dump: exactly one .text section, no
// kernels.
type rawCodeHandler struct {
	text SectionID
}

func newRawCodeHandler(a *Assembler) *rawCodeHandler {
	h := &rawCodeHandler{}
	h.text = a.newSection(".text", KernGlobal, SectCode)
	a.switchSection(h.text)
	return h
}

func (h *rawCodeHandler) Kind() FormatKind { return FormatRawCode }

func (h *rawCodeHandler) AddKernel(a *Assembler, name string) (KernelID, error) {
	return KernGlobal, errors.New("kernels are not supported in raw code format")
}

func (h *rawCodeHandler) AddSection(a *Assembler, name string, kernel KernelID) (SectionID, error) {
	if name != ".text" {
		return 0, fmt.Errorf("section '%s' is not supported in raw code format", name)
	}
	return h.text, nil
}

func (h *rawCodeHandler) SectionFlags(id SectionID) SectionFlags {
	return SectWritable | SectAbsAddressable
}

func (h *rawCodeHandler) ParsePseudoOp(a *Assembler, st *stmt) bool {
	return false
}

func (h *rawCodeHandler) Emit(a *Assembler, w io.Writer) error {
	_, err := w.Write(a.sections[h.text].Content)
	return err
}
