package asm

import (
	"fmt"
	"io"

	"radasm/internal/diag"
	"radasm/internal/objfile"
)

// galliumKernel is one kernel entry of the GalliumCompute container. All
// kernels share the global code section; the entry records the offset the
// kernel starts at.
type galliumKernel struct {
	name   string
	offset uint64
	config objfile.KernelConfig
}

// galliumHandler builds GalliumCompute binaries: shared code, global data,
// comment and disasm sections, and per-kernel argument/proginfo records.
type galliumHandler struct {
	global  SectionID
	code    SectionID
	comment SectionID
	disasm  SectionID
	kernels []*galliumKernel
	byName  map[string]KernelID
}

func newGalliumHandler(a *Assembler) *galliumHandler {
	h := &galliumHandler{byName: make(map[string]KernelID)}
	h.global = a.newSection(".globaldata", KernGlobal, SectData)
	h.code = a.newSection(".text", KernGlobal, SectCode)
	h.comment = a.newSection(".comment", KernGlobal, SectGalliumComment)
	h.disasm = a.newSection(".disasm", KernGlobal, SectGalliumDisasm)
	a.switchSection(h.global)
	return h
}

func (h *galliumHandler) Kind() FormatKind { return FormatGallium }

func (h *galliumHandler) AddKernel(a *Assembler, name string) (KernelID, error) {
	if _, exists := h.byName[name]; exists {
		return KernGlobal, fmt.Errorf("kernel '%s' is already defined", name)
	}
	id := KernelID(len(h.kernels))
	h.kernels = append(h.kernels, &galliumKernel{
		name:   name,
		offset: uint64(len(a.sections[h.code].Content)),
	})
	h.byName[name] = id
	a.switchSection(h.code)
	return id, nil
}

func (h *galliumHandler) AddSection(a *Assembler, name string, kernel KernelID) (SectionID, error) {
	switch name {
	case ".globaldata", ".data":
		return h.global, nil
	case ".text":
		return h.code, nil
	case ".comment":
		return h.comment, nil
	case ".disasm":
		return h.disasm, nil
	}
	return 0, fmt.Errorf("section '%s' is not supported in GalliumCompute format", name)
}

func (h *galliumHandler) SectionFlags(id SectionID) SectionFlags {
	return SectWritable | SectAbsAddressable
}

func (h *galliumHandler) curKernel(a *Assembler, st *stmt) *galliumKernel {
	if a.curKernel == KernGlobal || int(a.curKernel) >= len(h.kernels) {
		a.errorAtOff(st.opOff, diag.FmtBadConfig, "'%s' requires a current kernel", st.name)
		return nil
	}
	return h.kernels[a.curKernel]
}

func (h *galliumHandler) ParsePseudoOp(a *Assembler, st *stmt) bool {
	switch st.name {
	case ".args", ".proginfo":
		// section-style markers preceding .arg/.entry runs
		a.ensureLineEnd(st.line, st.p)
		h.curKernel(a, st)
	case ".arg":
		k := h.curKernel(a, st)
		if k == nil {
			return true
		}
		parseKernelArg(a, st, &k.config)
	case ".entry":
		k := h.curKernel(a, st)
		if k == nil {
			return true
		}
		values, ok := parseConfigIntList(a, st, 2)
		if !ok {
			return true
		}
		if len(values) != 2 {
			a.errorAtOff(st.p, diag.FmtBadConfig, "'.entry' requires an address and a value")
			return true
		}
		k.config.ProgInfo = append(k.config.ProgInfo, objfile.ProgInfoEntry{
			Address: uint32(values[0]),
			Value:   uint32(values[1]),
		})
	default:
		return false
	}
	return true
}

func (h *galliumHandler) Emit(a *Assembler, w io.Writer) error {
	c := &objfile.Container{
		Format:     objfile.FormatGallium,
		Device:     a.Device().String(),
		Is64Bit:    a.Is64Bit(),
		GlobalData: a.sections[h.global].Content,
		Code:       a.sections[h.code].Content,
		Comment:    a.sections[h.comment].Content,
		Disasm:     a.sections[h.disasm].Content,
	}
	for _, k := range h.kernels {
		c.Kernels = append(c.Kernels, objfile.Kernel{
			Name:   k.name,
			Offset: k.offset,
			Config: k.config,
		})
	}
	return objfile.Write(w, c)
}
