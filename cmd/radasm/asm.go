package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"radasm/internal/asm"
	"radasm/internal/config"
	"radasm/internal/isa"
	"radasm/internal/isa/gcn"
)

var asmCmd = &cobra.Command{
	Use:   "asm [flags] input.s",
	Short: "Assemble a GCN source file",
	Long:  `Assemble one source file into the selected output container format`,
	Args:  cobra.ExactArgs(1),
	RunE:  runAsm,
}

func init() {
	asmCmd.Flags().StringArrayP("include-dir", "I", nil, "add an include directory (repeatable)")
	asmCmd.Flags().StringArrayP("defsym", "D", nil, "define an initial symbol: name=value (repeatable)")
	asmCmd.Flags().StringP("format", "f", "", "output format (raw|amd|gallium)")
	asmCmd.Flags().StringP("device", "t", "", "target GPU device type")
	asmCmd.Flags().BoolP("64bit", "6", false, "64-bit addressing mode")
	asmCmd.Flags().BoolP("no-warnings", "w", false, "suppress warnings")
	asmCmd.Flags().StringP("output", "o", "", "output file path")
	asmCmd.Flags().BoolP("symbols", "s", false, "print the final symbol listing")
}

func runAsm(cmd *cobra.Command, args []string) error {
	inputPath := args[0]

	cfg, err := config.LoadNear(inputPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	opts, err := buildOptions(cmd, cfg)
	if err != nil {
		return err
	}
	opts.Color = useColor(cmd, os.Stderr)

	enc := gcn.New(opts.Device)
	assembler, err := asm.NewFromFile(inputPath, enc, opts)
	if err != nil {
		return err
	}
	good := assembler.Assemble()

	if show, _ := cmd.Flags().GetBool("symbols"); show {
		printSymbolListing(os.Stdout, assembler)
	}

	if good {
		outPath, _ := cmd.Flags().GetString("output")
		if outPath == "" {
			outPath = defaultOutputPath(inputPath, opts.Format)
		}
		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := assembler.Emit(f); err != nil {
			return fmt.Errorf("emit: %w", err)
		}
	}

	if !good {
		// diagnostics already went to stderr; just reflect the bad state
		cmd.SilenceUsage = true
		cmd.SilenceErrors = true
		os.Exit(1)
	}
	return nil
}

// buildOptions merges radasm.toml defaults with command line flags; flags
// win.
func buildOptions(cmd *cobra.Command, cfg config.Config) (asm.Options, error) {
	opts := asm.Options{
		Format:   asm.FormatAMD,
		Device:   isa.DeviceCapeVerde,
		Warnings: true,
		MessageW: os.Stderr,
		PrintW:   os.Stdout,
	}

	formatName := cfg.Format
	if s, _ := cmd.Flags().GetString("format"); s != "" {
		formatName = s
	}
	if formatName != "" {
		format, err := asm.ParseFormat(formatName)
		if err != nil {
			return opts, err
		}
		opts.Format = format
	}

	deviceName := cfg.Device
	if s, _ := cmd.Flags().GetString("device"); s != "" {
		deviceName = s
	}
	if deviceName != "" {
		device, err := isa.ParseDevice(deviceName)
		if err != nil {
			return opts, err
		}
		opts.Device = device
	}

	opts.Is64Bit = cfg.Is64Bit
	if b, _ := cmd.Flags().GetBool("64bit"); b {
		opts.Is64Bit = true
	}
	if cfg.NoWarnings {
		opts.Warnings = false
	}
	if b, _ := cmd.Flags().GetBool("no-warnings"); b {
		opts.Warnings = false
	}

	opts.IncludeDirs = append(opts.IncludeDirs, cfg.IncludeDirs...)
	dirs, _ := cmd.Flags().GetStringArray("include-dir")
	opts.IncludeDirs = append(opts.IncludeDirs, dirs...)

	// config defsyms first (sorted for determinism), then command line
	names := make([]string, 0, len(cfg.DefSyms))
	for name := range cfg.DefSyms {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		opts.DefSyms = append(opts.DefSyms, asm.DefSym{Name: name, Value: cfg.DefSyms[name]})
	}
	defs, _ := cmd.Flags().GetStringArray("defsym")
	for _, def := range defs {
		name, valueText, found := strings.Cut(def, "=")
		if !found {
			return opts, fmt.Errorf("defsym '%s': expected name=value", def)
		}
		value, err := strconv.ParseUint(valueText, 0, 64)
		if err != nil {
			return opts, fmt.Errorf("defsym '%s': %w", def, err)
		}
		opts.DefSyms = append(opts.DefSyms, asm.DefSym{Name: name, Value: value})
	}
	return opts, nil
}

func defaultOutputPath(inputPath string, format asm.FormatKind) string {
	base := strings.TrimSuffix(inputPath, ".s")
	switch format {
	case asm.FormatRawCode:
		return base + ".bin"
	default:
		return base + ".rado"
	}
}
