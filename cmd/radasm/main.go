package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"radasm/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "radasm",
	Short: "Assembler for AMD GCN GPU binaries",
	Long:  `radasm assembles GCN source into raw code dumps, AMD Catalyst or GalliumCompute containers`,
}

func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(asmCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func useColor(cmd *cobra.Command, f *os.File) bool {
	colorFlag, _ := cmd.Root().PersistentFlags().GetString("color")
	return colorFlag == "on" || (colorFlag == "auto" && isTerminal(f))
}
