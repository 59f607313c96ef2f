package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dzyphr/solana-playground/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "pgls",
	Short: "Playground language service",
	Long:  `pgls runs the playground analysis session against a local workspace of Rust sources`,
}

func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress non-essential output")
	rootCmd.PersistentFlags().Int("max-diagnostics", 0, "print at most this many diagnostics per file (0 = unlimited)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// isTerminal checks whether the file is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// configureColor applies the --color flag to the global color state.
func configureColor(mode string) {
	switch mode {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	default:
		color.NoColor = !isTerminal(os.Stdout)
	}
}
