// Package pipeline drives the incremental update path: on every
// content-affecting event it decides which crates must be (re)loaded,
// awaits those loads, then recomputes and republishes diagnostics.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/dzyphr/solana-playground/internal/crates"
	"github.com/dzyphr/solana-playground/internal/session"
	"github.com/dzyphr/solana-playground/internal/workspace"
)

// Diagnoser is the slice of the analysis session the pipeline queries.
type Diagnoser interface {
	Diagnostics(ctx context.Context, path, content string) ([]session.Diagnostic, error)
}

// Pipeline reruns dependency loading and diagnostics per changed file.
type Pipeline struct {
	ws     *workspace.Workspace
	loader *crates.Loader
	diag   Diagnoser
	syncer *workspace.Synchronizer
	sink   MarkerSink
	logf   func(string, ...any)

	mu  sync.Mutex
	gen map[string]uint64
}

// Options configures a Pipeline.
type Options struct {
	// Logf receives swallowed best-effort failures. Defaults to stderr.
	Logf func(string, ...any)
}

// New wires the pipeline against its collaborators.
func New(ws *workspace.Workspace, loader *crates.Loader, diag Diagnoser, syncer *workspace.Synchronizer, sink MarkerSink, opts Options) *Pipeline {
	logf := opts.Logf
	if logf == nil {
		logf = func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, "pipeline: "+format+"\n", args...)
		}
	}
	return &Pipeline{
		ws:     ws,
		loader: loader,
		diag:   diag,
		syncer: syncer,
		sink:   sink,
		logf:   logf,
		gen:    make(map[string]uint64),
	}
}

// Update runs the full per-file pass: scan the text for crate usage, load or
// register every permitted crate accordingly, then fetch diagnostics for the
// file's current content and republish its marker set. Loads for one update
// are sequential in the permitted set's fixed order and all awaited before
// diagnostics are requested.
func (p *Pipeline) Update(ctx context.Context, path string) error {
	if !strings.HasSuffix(path, workspace.SourceExt) {
		return nil
	}
	content, ok := p.ws.Read(path)
	if !ok {
		// Nothing to do; the file is already gone.
		return nil
	}
	gen := p.nextGen(path)

	for _, name := range p.loader.Permitted() {
		switch p.loader.Status(name) {
		case crates.StatusFull:
			continue
		default:
			// Syntactic heuristic, not a parse: "name::" anywhere in the
			// text counts as usage, comments and strings included. The
			// over-approximation only costs a load that real usage would
			// have triggered anyway.
			if strings.Contains(content, name+"::") {
				if err := p.loader.EnsureFull(ctx, name); err != nil {
					p.logf("load of %s failed: %v", name, err)
				}
			} else if p.loader.Status(name) == crates.StatusNotLoaded {
				if err := p.loader.MarkSeen(ctx, name); err != nil {
					p.logf("registering %s failed: %v", name, err)
				}
			}
		}
	}

	// Re-read: the loads above suspend, and the file may have changed
	// underneath. Diagnostics always reflect the current content.
	content, ok = p.ws.Read(path)
	if !ok {
		return nil
	}
	diags, err := p.diag.Diagnostics(ctx, path, content)
	if err != nil {
		return fmt.Errorf("diagnostics for %s: %w", path, err)
	}
	p.publish(path, gen, toMarkers(diags))
	return nil
}

// publish republishes the file's markers unless a newer update for the same
// file has started. Check and publish happen under one lock so an older
// in-flight result can never overwrite a newer one.
func (p *Pipeline) publish(path string, gen uint64, markers []Marker) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gen[path] != gen {
		return
	}
	p.sink.SetMarkers(path, markers)
}

// Bind subscribes the pipeline to workspace change events. File-set changes
// resync the full snapshot before updating; content writes update directly.
// Handlers run on their own goroutine so the mutating flow never blocks.
func (p *Pipeline) Bind(ctx context.Context) {
	p.ws.Subscribe(func(ev workspace.Event) {
		go p.handleEvent(ctx, ev)
	})
}

func (p *Pipeline) handleEvent(ctx context.Context, ev workspace.Event) {
	switch ev.Kind {
	case workspace.EventWrite:
		p.run(ctx, ev.Path)
	case workspace.EventCreate:
		p.resync(ctx)
		p.run(ctx, ev.Path)
	case workspace.EventRename:
		p.resync(ctx)
		p.sink.SetMarkers(ev.OldPath, nil)
		p.run(ctx, ev.Path)
	case workspace.EventDelete:
		p.resync(ctx)
		p.sink.SetMarkers(ev.Path, nil)
	case workspace.EventSwitch:
		p.resync(ctx)
		for _, f := range p.ws.Snapshot() {
			p.run(ctx, f.Path)
		}
	}
}

func (p *Pipeline) run(ctx context.Context, path string) {
	if err := p.Update(ctx, path); err != nil {
		p.logf("update of %s failed: %v", path, err)
	}
}

func (p *Pipeline) resync(ctx context.Context) {
	if err := p.syncer.Sync(ctx); err != nil {
		p.logf("sync failed: %v", err)
	}
}

func (p *Pipeline) nextGen(path string) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gen[path]++
	return p.gen[path]
}

func toMarkers(diags []session.Diagnostic) []Marker {
	if len(diags) == 0 {
		return nil
	}
	markers := make([]Marker, len(diags))
	for i, d := range diags {
		markers[i] = Marker{
			Range:    d.Range,
			Severity: d.Severity,
			Code:     d.Code,
			Message:  d.Message,
		}
	}
	return markers
}
