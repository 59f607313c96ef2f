package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dzyphr/solana-playground/internal/pipeline"
	"github.com/dzyphr/solana-playground/internal/workspace"
)

var watchCmd = &cobra.Command{
	Use:          "watch [flags] <directory>",
	Short:        "Watch a workspace directory and reprint diagnostics on change",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runWatch,
}

func init() {
	watchCmd.Flags().String("crates-dir", "", "load crates from a local directory instead of the crate host")
	watchCmd.Flags().String("crates-url", "", "crate host base URL (default "+defaultCrateHost+")")
}

// printingSink forwards marker sets to a store and echoes each change.
type printingSink struct {
	store *pipeline.MarkerStore
	out   io.Writer
	max   int
	mu    sync.Mutex
}

func (s *printingSink) SetMarkers(path string, markers []pipeline.Marker) {
	s.store.SetMarkers(path, markers)
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(markers) == 0 {
		fmt.Fprintf(s.out, "%s: clean\n", path)
		return
	}
	renderMarkers(s.out, path, markers, s.max)
}

func runWatch(cmd *cobra.Command, args []string) error {
	colorMode, _ := cmd.Root().PersistentFlags().GetString("color")
	quiet, _ := cmd.Root().PersistentFlags().GetBool("quiet")
	maxDiags, _ := cmd.Root().PersistentFlags().GetInt("max-diagnostics")
	cratesDir, _ := cmd.Flags().GetString("crates-dir")
	cratesURL, _ := cmd.Flags().GetString("crates-url")
	configureColor(colorMode)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink := &printingSink{store: pipeline.NewMarkerStore(), out: cmd.OutOrStdout(), max: maxDiags}
	svc, err := buildService(ctx, serviceOptions{
		dir:       args[0],
		cratesDir: cratesDir,
		cratesURL: cratesURL,
		sink:      sink,
		quiet:     quiet,
	})
	if err != nil {
		return err
	}
	defer svc.closer()

	svc.pipe.Bind(ctx)

	// Initial pass so the first report does not wait for an edit.
	for _, f := range svc.ws.Snapshot() {
		if err := svc.pipe.Update(ctx, f.Path); err != nil && !quiet {
			fmt.Fprintf(os.Stderr, "update %s: %v\n", f.Path, err)
		}
	}

	watcher, err := workspace.NewWatcher(svc.ws, args[0], nil)
	if err != nil {
		return fmt.Errorf("watch %s: %w", args[0], err)
	}
	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "watching %s (ctrl-c to stop)\n", args[0])
	}
	if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
