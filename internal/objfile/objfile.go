// Package objfile defines the intermediate object container the format
// handlers emit. The downstream ELF generators consume this container; the
// assembler itself only fills it in and serializes it.
package objfile

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Magic identifies a serialized container, followed by the schema version.
var Magic = [4]byte{'R', 'A', 'D', 'O'}

// SchemaVersion is incremented when the container layout changes.
const SchemaVersion uint16 = 1

// Format names accepted in a container header.
const (
	FormatRawCode = "rawcode"
	FormatAMD     = "amd"
	FormatGallium = "gallium"
)

// KernelArg describes one kernel argument of an OpenCL binary.
type KernelArg struct {
	Name string
	Type string
	Size uint64
}

// KernelConfig collects the config pseudo-op state of one kernel.
type KernelConfig struct {
	Dims          uint8
	CWS           [3]uint32
	SGPRCount     uint32
	VGPRCount     uint32
	ScratchBuffer uint32
	UAVID         uint32
	UserDataLen   uint32
	Args          []KernelArg
	ProgInfo      []ProgInfoEntry
}

// ProgInfoEntry is one address/value pair of a Gallium program info block.
type ProgInfoEntry struct {
	Address uint32
	Value   uint32
}

// Kernel groups the per-kernel sections of a container.
type Kernel struct {
	Name     string
	Offset   uint64
	Header   []byte
	Metadata []byte
	Code     []byte
	Data     []byte
	Comment  []byte
	Disasm   []byte
	Config   KernelConfig
}

// Container is the whole object payload of one assembly.
type Container struct {
	Format     string
	Device     string
	Is64Bit    bool
	GlobalData []byte
	Code       []byte
	Comment    []byte
	Disasm     []byte
	Kernels    []Kernel
}

// Write serializes the container: magic, schema version, msgpack payload.
func Write(w io.Writer, c *Container) error {
	if _, err := w.Write(Magic[:]); err != nil {
		return err
	}
	var ver [2]byte
	binary.LittleEndian.PutUint16(ver[:], SchemaVersion)
	if _, err := w.Write(ver[:]); err != nil {
		return err
	}
	enc := msgpack.NewEncoder(w)
	return enc.Encode(c)
}

// Read deserializes a container written by Write.
func Read(r io.Reader) (*Container, error) {
	var header [6]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	if [4]byte(header[:4]) != Magic {
		return nil, fmt.Errorf("objfile: bad magic %q", header[:4])
	}
	if ver := binary.LittleEndian.Uint16(header[4:]); ver != SchemaVersion {
		return nil, fmt.Errorf("objfile: unsupported schema version %d", ver)
	}
	var c Container
	dec := msgpack.NewDecoder(r)
	if err := dec.Decode(&c); err != nil {
		return nil, err
	}
	return &c, nil
}
