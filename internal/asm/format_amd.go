package asm

import (
	"fmt"
	"io"

	"radasm/internal/diag"
	"radasm/internal/objfile"
)

// amdKernel groups the per-kernel sections of the AMD Catalyst container.
type amdKernel struct {
	name     string
	header   SectionID
	metadata SectionID
	code     SectionID
	data     SectionID
	config   objfile.KernelConfig
}

// amdHandler builds AMD Catalyst OpenCL binaries: a global data section plus
// .header/.metadata/.text/.data per kernel, and the kernel configuration
// pseudo-ops.
type amdHandler struct {
	global  SectionID
	kernels []*amdKernel
	byName  map[string]KernelID
}

func newAmdHandler(a *Assembler) *amdHandler {
	h := &amdHandler{byName: make(map[string]KernelID)}
	h.global = a.newSection(".globaldata", KernGlobal, SectData)
	a.switchSection(h.global)
	return h
}

func (h *amdHandler) Kind() FormatKind { return FormatAMD }

func (h *amdHandler) AddKernel(a *Assembler, name string) (KernelID, error) {
	if _, exists := h.byName[name]; exists {
		return KernGlobal, fmt.Errorf("kernel '%s' is already defined", name)
	}
	id := KernelID(len(h.kernels))
	k := &amdKernel{name: name}
	k.header = a.newSection(".header", id, SectAmdHeader)
	k.metadata = a.newSection(".metadata", id, SectAmdMetadata)
	k.code = a.newSection(".text", id, SectCode)
	k.data = a.newSection(".data", id, SectData)
	h.kernels = append(h.kernels, k)
	h.byName[name] = id
	a.switchSection(k.code)
	return id, nil
}

func (h *amdHandler) kernelOf(kernel KernelID) (*amdKernel, error) {
	if kernel == KernGlobal || int(kernel) >= len(h.kernels) {
		return nil, fmt.Errorf("no current kernel")
	}
	return h.kernels[kernel], nil
}

func (h *amdHandler) AddSection(a *Assembler, name string, kernel KernelID) (SectionID, error) {
	if name == ".globaldata" {
		return h.global, nil
	}
	k, err := h.kernelOf(kernel)
	if err != nil {
		return 0, fmt.Errorf("section '%s' requires a kernel", name)
	}
	switch name {
	case ".header":
		return k.header, nil
	case ".metadata":
		return k.metadata, nil
	case ".text":
		return k.code, nil
	case ".data":
		return k.data, nil
	}
	return 0, fmt.Errorf("section '%s' is not supported in AMD Catalyst format", name)
}

func (h *amdHandler) SectionFlags(id SectionID) SectionFlags {
	return SectWritable | SectAbsAddressable
}

// config reaches the configuration record of the current kernel, reporting
// when there is none.
func (h *amdHandler) config(a *Assembler, st *stmt) *objfile.KernelConfig {
	k, err := h.kernelOf(a.curKernel)
	if err != nil {
		a.errorAtOff(st.opOff, diag.FmtBadConfig, "'%s' requires a current kernel", st.name)
		return nil
	}
	return &k.config
}

func (h *amdHandler) ParsePseudoOp(a *Assembler, st *stmt) bool {
	switch st.name {
	case ".dims":
		cfg := h.config(a, st)
		if cfg == nil {
			return true
		}
		p := skipSpaces(st.line, st.p)
		name, end, ok := scanName(st.line, p)
		if !ok {
			a.errorAtOff(p, diag.FmtBadConfig, "expected dimension letters")
			return true
		}
		var dims uint8
		for i := 0; i < len(name); i++ {
			switch name[i] {
			case 'x':
				dims |= 1
			case 'y':
				dims |= 2
			case 'z':
				dims |= 4
			default:
				a.errorAtOff(p+i, diag.FmtBadConfig, "unknown dimension '%c'", name[i])
				return true
			}
		}
		a.ensureLineEnd(st.line, end)
		cfg.Dims = dims
	case ".cws":
		cfg := h.config(a, st)
		if cfg == nil {
			return true
		}
		values, ok := parseConfigIntList(a, st, 3)
		if !ok {
			return true
		}
		for i, v := range values {
			cfg.CWS[i] = uint32(v)
		}
	case ".sgprsnum":
		h.setConfigU32(a, st, func(cfg *objfile.KernelConfig, v uint32) { cfg.SGPRCount = v })
	case ".vgprsnum":
		h.setConfigU32(a, st, func(cfg *objfile.KernelConfig, v uint32) { cfg.VGPRCount = v })
	case ".scratchbuffer":
		h.setConfigU32(a, st, func(cfg *objfile.KernelConfig, v uint32) { cfg.ScratchBuffer = v })
	case ".uavid":
		h.setConfigU32(a, st, func(cfg *objfile.KernelConfig, v uint32) { cfg.UAVID = v })
	case ".userdata":
		h.setConfigU32(a, st, func(cfg *objfile.KernelConfig, v uint32) { cfg.UserDataLen = v })
	case ".arg":
		cfg := h.config(a, st)
		if cfg == nil {
			return true
		}
		parseKernelArg(a, st, cfg)
	default:
		return false
	}
	return true
}

func (h *amdHandler) setConfigU32(a *Assembler, st *stmt, set func(*objfile.KernelConfig, uint32)) {
	cfg := h.config(a, st)
	if cfg == nil {
		return
	}
	v, ok := parseConfigInt(a, st)
	if !ok {
		return
	}
	set(cfg, uint32(v))
}

// parseKernelArg parses ".arg name, typename[, size]".
func parseKernelArg(a *Assembler, st *stmt, cfg *objfile.KernelConfig) {
	p := skipSpaces(st.line, st.p)
	name, end, ok := scanName(st.line, p)
	if !ok {
		a.errorAtOff(p, diag.FmtBadConfig, "expected argument name")
		return
	}
	p = skipSpaces(st.line, end)
	if p >= len(st.line) || st.line[p] != ',' {
		a.errorAtOff(p, diag.SynExpectedComma, "expected ',' after argument name")
		return
	}
	p = skipSpaces(st.line, p+1)
	start := p
	for p < len(st.line) && st.line[p] != ',' {
		p++
	}
	typeEnd := p
	for typeEnd > start && isSpace(st.line[typeEnd-1]) {
		typeEnd--
	}
	if typeEnd == start {
		a.errorAtOff(p, diag.FmtBadConfig, "expected argument type")
		return
	}
	arg := objfile.KernelArg{Name: name, Type: string(st.line[start:typeEnd])}
	if p < len(st.line) && st.line[p] == ',' {
		size, end2, ok := a.resolveAbsExpr(st.line, p+1)
		if !ok {
			return
		}
		arg.Size = size
		a.ensureLineEnd(st.line, end2)
	}
	cfg.Args = append(cfg.Args, arg)
}

func (h *amdHandler) Emit(a *Assembler, w io.Writer) error {
	c := &objfile.Container{
		Format:     objfile.FormatAMD,
		Device:     a.Device().String(),
		Is64Bit:    a.Is64Bit(),
		GlobalData: a.sections[h.global].Content,
	}
	for _, k := range h.kernels {
		c.Kernels = append(c.Kernels, objfile.Kernel{
			Name:     k.name,
			Header:   a.sections[k.header].Content,
			Metadata: a.sections[k.metadata].Content,
			Code:     a.sections[k.code].Content,
			Data:     a.sections[k.data].Content,
			Config:   k.config,
		})
	}
	return objfile.Write(w, c)
}
