package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dzyphr/solana-playground/internal/crates"
	"github.com/dzyphr/solana-playground/internal/engine"
	"github.com/dzyphr/solana-playground/internal/pipeline"
	"github.com/dzyphr/solana-playground/internal/session"
	"github.com/dzyphr/solana-playground/internal/workspace"
)

// defaultCrateHost serves prebuilt crate sources and manifests under the
// /crate/<name>.<ext> scheme.
const defaultCrateHost = "https://crates.solpg.io"

// service bundles everything one workspace run needs.
type service struct {
	ws      *workspace.Workspace
	sess    *session.Session
	loader  *crates.Loader
	pipe    *pipeline.Pipeline
	markers *pipeline.MarkerStore
	closer  func()
}

type serviceOptions struct {
	dir       string
	cratesDir string
	cratesURL string
	observer  func(crates.Event)
	sink      pipeline.MarkerSink
	quiet     bool
}

// buildService loads the workspace directory, starts the background engine
// and wires loader and pipeline over it. The permitted crate set comes from
// the workspace's own Cargo.toml; a missing manifest simply means no
// external crates.
func buildService(ctx context.Context, opts serviceOptions) (*service, error) {
	ws := workspace.New()
	if err := workspace.LoadDir(ws, opts.dir); err != nil {
		return nil, fmt.Errorf("load workspace %s: %w", opts.dir, err)
	}

	permitted, err := permittedCrates(opts.dir)
	if err != nil {
		return nil, err
	}

	sess, closer, err := engine.Start(ctx, engine.NewStub())
	if err != nil {
		return nil, fmt.Errorf("start engine: %w", err)
	}

	logf := func(format string, args ...any) {
		if !opts.quiet {
			fmt.Fprintf(os.Stderr, format+"\n", args...)
		}
	}
	loader := crates.NewLoader(sess, crateStore(opts), crates.Options{
		Permitted: permitted,
		Observer:  opts.observer,
		Logf:      logf,
	})
	markers := pipeline.NewMarkerStore()
	var sink pipeline.MarkerSink = markers
	if opts.sink != nil {
		sink = opts.sink
	}
	syncer := workspace.NewSynchronizer(ws, sess)
	pipe := pipeline.New(ws, loader, sess, syncer, sink, pipeline.Options{Logf: logf})

	if err := syncer.Sync(ctx); err != nil {
		closer.Close()
		return nil, fmt.Errorf("sync workspace: %w", err)
	}
	return &service{
		ws:      ws,
		sess:    sess,
		loader:  loader,
		pipe:    pipe,
		markers: markers,
		closer:  func() { closer.Close() },
	}, nil
}

func crateStore(opts serviceOptions) crates.Store {
	if opts.cratesDir != "" {
		return crates.DirStore{Dir: opts.cratesDir}
	}
	url := opts.cratesURL
	if url == "" {
		url = defaultCrateHost
	}
	return crates.NewHTTPStore(url)
}

// permittedCrates reads the workspace manifest's [dependencies] names. An
// absent manifest is not an error: the workspace just has no crates to load.
func permittedCrates(dir string) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(dir, "Cargo.toml"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	deps, err := crates.ManifestDependencies(string(data))
	if err != nil {
		return nil, fmt.Errorf("workspace manifest: %w", err)
	}
	return deps, nil
}
