// Package crates loads external dependency crates into the analysis session
// at most once each, while letting the engine recognize crate names it has
// not fully ingested so identifier lookup stays cheap and honest.
package crates

import (
	"context"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Session is the slice of the analysis session the loader drives.
type Session interface {
	LoadCrate(ctx context.Context, name, source, manifest string) ([]string, error)
	RegisterEmptyCrate(ctx context.Context, name string) error
}

// Phase labels a point in one crate's load for progress observers.
type Phase uint8

const (
	PhaseFetching Phase = iota
	PhaseIngesting
	PhaseDone
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseFetching:
		return "fetching"
	case PhaseIngesting:
		return "ingesting"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	}
	return "unknown"
}

// Event reports load progress for one crate.
type Event struct {
	Name  string
	Phase Phase
}

// Options configures a Loader.
type Options struct {
	// Permitted is the fixed-order set of crates the workspace may use.
	// Requirements outside it are never loaded.
	Permitted []string
	// Observer, when set, receives load-progress events.
	Observer func(Event)
	// Logf receives swallowed best-effort failures. Defaults to stderr.
	Logf func(string, ...any)
}

// Loader owns the per-crate load-state cache and performs recursive
// fetch-and-install. All crate status mutation in the process goes through
// it, keeping the single-writer convention explicit.
type Loader struct {
	session   Session
	store     Store
	permitted []string
	allowed   map[string]struct{}
	observer  func(Event)
	logf      func(string, ...any)

	mu     sync.Mutex
	status map[string]Status

	flight singleflight.Group
}

// NewLoader builds a loader over a session and a dependency store.
func NewLoader(sess Session, store Store, opts Options) *Loader {
	logf := opts.Logf
	if logf == nil {
		logf = func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, "crates: "+format+"\n", args...)
		}
	}
	allowed := make(map[string]struct{}, len(opts.Permitted))
	for _, name := range opts.Permitted {
		allowed[name] = struct{}{}
	}
	return &Loader{
		session:   sess,
		store:     store,
		permitted: append([]string(nil), opts.Permitted...),
		allowed:   allowed,
		observer:  opts.Observer,
		logf:      logf,
		status:    make(map[string]Status),
	}
}

// Permitted returns the workspace's permitted crate set in its fixed order.
func (l *Loader) Permitted() []string {
	return l.permitted
}

// Status returns the crate's current load state.
func (l *Loader) Status(name string) Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status[name]
}

// EnsureFull loads name and everything it transitively requires, exactly
// once per session. It is idempotent: once the crate is Full every further
// call returns without engine side effects. Concurrent calls for the same
// name converge on a single fetch-and-install flight.
func (l *Loader) EnsureFull(ctx context.Context, name string) error {
	if l.Status(name) == StatusFull {
		return nil
	}
	_, err, _ := l.flight.Do(name, func() (any, error) {
		return nil, l.loadFull(ctx, name)
	})
	return err
}

func (l *Loader) loadFull(ctx context.Context, name string) error {
	// A duplicate flight queued behind the winner lands here after the
	// status already flipped.
	if l.Status(name) == StatusFull {
		return nil
	}

	l.emit(Event{Name: name, Phase: PhaseFetching})
	var source, manifest string
	g, fctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		source, err = l.store.Source(fctx, name)
		return err
	})
	g.Go(func() error {
		var err error
		manifest, err = l.store.Manifest(fctx, name)
		return err
	})
	if err := g.Wait(); err != nil {
		l.emit(Event{Name: name, Phase: PhaseFailed})
		return fmt.Errorf("fetch crate %s: %w", name, err)
	}

	l.emit(Event{Name: name, Phase: PhaseIngesting})
	requires, err := l.session.LoadCrate(ctx, name, source, manifest)
	if err != nil {
		l.emit(Event{Name: name, Phase: PhaseFailed})
		return fmt.Errorf("ingest crate %s: %w", name, err)
	}

	// Mark Full before recursing so a dependency cycle that reaches back to
	// this name terminates at the cache check instead of re-entering.
	l.setStatus(name, StatusFull)
	l.emit(Event{Name: name, Phase: PhaseDone})

	for _, req := range requires {
		if _, ok := l.allowed[req]; !ok {
			continue
		}
		if err := l.EnsureFull(ctx, req); err != nil {
			// Best effort: the requirement stays non-Full and is retried by
			// a later update that still shows usage.
			l.logf("transitive load of %s (required by %s) failed: %v", req, name, err)
		}
	}
	return nil
}

// MarkSeen registers name as a known-but-empty crate. No-op once the crate
// is Empty or Full; status is never demoted.
func (l *Loader) MarkSeen(ctx context.Context, name string) error {
	l.mu.Lock()
	if l.status[name] != StatusNotLoaded {
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()
	if err := l.session.RegisterEmptyCrate(ctx, name); err != nil {
		return fmt.Errorf("register crate %s: %w", name, err)
	}
	l.setStatus(name, StatusEmpty)
	return nil
}

// setStatus upgrades a crate's status. Downgrades are ignored, keeping the
// per-session monotonicity invariant even under interleaved flows.
func (l *Loader) setStatus(name string, s Status) {
	l.mu.Lock()
	if l.status[name] < s {
		l.status[name] = s
	}
	l.mu.Unlock()
}

func (l *Loader) emit(ev Event) {
	if l.observer != nil {
		l.observer(ev)
	}
}
