package objfile

import (
	"bytes"
	"testing"
)

func TestWriteRead(t *testing.T) {
	in := &Container{
		Format:     FormatAMD,
		Device:     "pitcairn",
		GlobalData: []byte{1, 2, 3},
		Kernels: []Kernel{
			{
				Name: "fill",
				Code: []byte{0, 0, 0x81, 0xBF},
				Config: KernelConfig{
					Dims:      3,
					SGPRCount: 8,
					Args:      []KernelArg{{Name: "out", Type: "uint*", Size: 8}},
				},
			},
		},
	}

	var buf bytes.Buffer
	if err := Write(&buf, in); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, err := Read(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if out.Format != FormatAMD || out.Device != "pitcairn" {
		t.Fatalf("header mismatch: %+v", out)
	}
	if len(out.Kernels) != 1 || out.Kernels[0].Name != "fill" {
		t.Fatalf("kernel mismatch: %+v", out.Kernels)
	}
	if out.Kernels[0].Config.Args[0].Name != "out" {
		t.Fatalf("config mismatch: %+v", out.Kernels[0].Config)
	}
}

func TestReadRejectsBadMagic(t *testing.T) {
	if _, err := Read(bytes.NewReader([]byte("XXXXXXXXXX"))); err == nil {
		t.Fatal("expected bad magic error")
	}
}
