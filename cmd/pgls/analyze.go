package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/dzyphr/solana-playground/internal/crates"
	"github.com/dzyphr/solana-playground/internal/ui"
)

var analyzeCmd = &cobra.Command{
	Use:          "analyze [flags] <directory>",
	Short:        "Analyze a workspace directory once and print diagnostics",
	Long:         `Load the workspace's Rust sources, pull in every crate its files use, compute diagnostics and print them`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runAnalyze,
}

func init() {
	analyzeCmd.Flags().String("crates-dir", "", "load crates from a local directory instead of the crate host")
	analyzeCmd.Flags().String("crates-url", "", "crate host base URL (default "+defaultCrateHost+")")
	analyzeCmd.Flags().Bool("progress", false, "show crate-loading progress (default: only on a terminal)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	colorMode, _ := cmd.Root().PersistentFlags().GetString("color")
	quiet, _ := cmd.Root().PersistentFlags().GetBool("quiet")
	maxDiags, _ := cmd.Root().PersistentFlags().GetInt("max-diagnostics")
	cratesDir, _ := cmd.Flags().GetString("crates-dir")
	cratesURL, _ := cmd.Flags().GetString("crates-url")
	showProgress, _ := cmd.Flags().GetBool("progress")
	configureColor(colorMode)
	if !cmd.Flags().Changed("progress") {
		showProgress = isTerminal(os.Stdout) && !quiet
	}

	ctx := cmd.Context()
	var events chan crates.Event
	var observer func(crates.Event)
	if showProgress {
		events = make(chan crates.Event, 64)
		observer = func(ev crates.Event) {
			select {
			case events <- ev:
			default:
			}
		}
	}

	svc, err := buildService(ctx, serviceOptions{
		dir:       args[0],
		cratesDir: cratesDir,
		cratesURL: cratesURL,
		observer:  observer,
		quiet:     quiet,
	})
	if err != nil {
		return err
	}
	defer svc.closer()

	run := func() {
		for _, f := range svc.ws.Snapshot() {
			if err := svc.pipe.Update(ctx, f.Path); err != nil && !quiet {
				fmt.Fprintf(os.Stderr, "update %s: %v\n", f.Path, err)
			}
		}
	}

	if showProgress && len(svc.loader.Permitted()) > 0 {
		model := ui.NewCrateProgress("loading crates", svc.loader.Permitted(), events)
		done := make(chan struct{})
		go func() {
			defer close(done)
			run()
			close(events)
		}()
		if _, err := tea.NewProgram(model).Run(); err != nil && !quiet {
			fmt.Fprintf(os.Stderr, "progress view failed: %v\n", err)
		}
		<-done
	} else {
		run()
	}

	errorCount := renderStore(cmd.OutOrStdout(), svc.markers, maxDiags)
	if errorCount > 0 {
		return fmt.Errorf("diagnostics reported %d error(s)", errorCount)
	}
	if !quiet {
		fmt.Fprintln(cmd.OutOrStdout(), "no problems found")
	}
	return nil
}
