package pipeline

import (
	"context"
	"sync"
	"testing"

	"github.com/dzyphr/solana-playground/internal/crates"
	"github.com/dzyphr/solana-playground/internal/session"
	"github.com/dzyphr/solana-playground/internal/workspace"
)

// callLog is shared by the fakes so tests can assert cross-component order.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	l.calls = append(l.calls, call)
	l.mu.Unlock()
}

func (l *callLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type fakeCrateSession struct {
	log *callLog
}

func (s *fakeCrateSession) LoadCrate(ctx context.Context, name, source, manifest string) ([]string, error) {
	s.log.add("load:" + name)
	return nil, nil
}

func (s *fakeCrateSession) RegisterEmptyCrate(ctx context.Context, name string) error {
	s.log.add("register:" + name)
	return nil
}

type fakeCrateStore struct{}

func (fakeCrateStore) Source(ctx context.Context, name string) (string, error) {
	return "// crate " + name, nil
}

func (fakeCrateStore) Manifest(ctx context.Context, name string) (string, error) {
	return "[package]\nname = \"" + name + "\"", nil
}

type fakeDiagnoser struct {
	log         *callLog
	diags       map[string][]session.Diagnostic
	gate        chan struct{}        // blocks the first call when set
	entered     chan struct{}        // closed once the first call has parked on the gate
	gatedResult []session.Diagnostic // what the gated call reports after release
	once        sync.Once
}

func (d *fakeDiagnoser) Diagnostics(ctx context.Context, path, content string) ([]session.Diagnostic, error) {
	if d.gate != nil {
		gated := false
		d.once.Do(func() { gated = true })
		if gated {
			close(d.entered)
			<-d.gate
			if d.log != nil {
				d.log.add("diag:" + path)
			}
			return d.gatedResult, nil
		}
	}
	if d.log != nil {
		d.log.add("diag:" + path)
	}
	return d.diags[path], nil
}

type nullSink struct{}

func (nullSink) LoadFiles(ctx context.Context, files []session.File) error { return nil }

func quietLogf(t *testing.T) func(string, ...any) {
	return func(format string, args ...any) { t.Logf("pipeline: "+format, args...) }
}

type fixture struct {
	ws     *workspace.Workspace
	loader *crates.Loader
	diag   *fakeDiagnoser
	store  *MarkerStore
	pipe   *Pipeline
	log    *callLog
}

func newFixture(t *testing.T, permitted []string) *fixture {
	log := &callLog{}
	ws := workspace.New()
	loader := crates.NewLoader(&fakeCrateSession{log: log}, fakeCrateStore{}, crates.Options{
		Permitted: permitted,
		Logf:      quietLogf(t),
	})
	diag := &fakeDiagnoser{log: log, diags: make(map[string][]session.Diagnostic)}
	store := NewMarkerStore()
	syncer := workspace.NewSynchronizer(ws, nullSink{})
	pipe := New(ws, loader, diag, syncer, store, Options{Logf: quietLogf(t)})
	return &fixture{ws: ws, loader: loader, diag: diag, store: store, pipe: pipe, log: log}
}

func TestUpdateRegistersUnusedCratesAsEmpty(t *testing.T) {
	f := newFixture(t, []string{"anchor_lang", "borsh"})
	f.ws.Create("src/lib.rs", "fn main() {}")

	if err := f.pipe.Update(context.Background(), "src/lib.rs"); err != nil {
		t.Fatalf("update: %v", err)
	}
	for _, name := range []string{"anchor_lang", "borsh"} {
		if got := f.loader.Status(name); got != crates.StatusEmpty {
			t.Fatalf("%s = %s, want Empty", name, got)
		}
	}
}

func TestUpdateLoadsUsedCrateOnce(t *testing.T) {
	f := newFixture(t, []string{"anchor_lang", "borsh"})
	f.ws.Create("src/lib.rs", "use anchor_lang::prelude::*;")
	ctx := context.Background()

	if err := f.pipe.Update(ctx, "src/lib.rs"); err != nil {
		t.Fatalf("first update: %v", err)
	}
	if err := f.pipe.Update(ctx, "src/lib.rs"); err != nil {
		t.Fatalf("second update: %v", err)
	}

	if got := f.loader.Status("anchor_lang"); got != crates.StatusFull {
		t.Fatalf("anchor_lang = %s, want Full", got)
	}
	if got := f.loader.Status("borsh"); got != crates.StatusEmpty {
		t.Fatalf("borsh = %s, want Empty", got)
	}
	loads := 0
	for _, call := range f.log.all() {
		if call == "load:anchor_lang" {
			loads++
		}
	}
	if loads != 1 {
		t.Fatalf("anchor_lang loaded %d times, want 1", loads)
	}
}

func TestUpdateAwaitsLoadsBeforeDiagnostics(t *testing.T) {
	f := newFixture(t, []string{"anchor_lang", "borsh"})
	f.ws.Create("src/lib.rs", "use anchor_lang::prelude::*; use borsh::ser::*;")

	if err := f.pipe.Update(context.Background(), "src/lib.rs"); err != nil {
		t.Fatalf("update: %v", err)
	}

	calls := f.log.all()
	want := []string{"load:anchor_lang", "load:borsh", "diag:src/lib.rs"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("call %d = %s, want %s (full log %v)", i, calls[i], want[i], calls)
		}
	}
}

func TestUpdateReplacesMarkers(t *testing.T) {
	f := newFixture(t, nil)
	f.ws.Create("src/lib.rs", "broken")
	f.diag.diags["src/lib.rs"] = []session.Diagnostic{
		{Message: "first", Severity: session.SeverityError},
		{Message: "second", Severity: session.SeverityWarning},
		{Message: "third", Severity: session.SeverityError},
	}

	ctx := context.Background()
	if err := f.pipe.Update(ctx, "src/lib.rs"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := len(f.store.Markers("src/lib.rs")); got != 3 {
		t.Fatalf("markers = %d, want 3", got)
	}

	// The file is fixed: the next publish replaces, never merges.
	f.diag.diags["src/lib.rs"] = nil
	if err := f.pipe.Update(ctx, "src/lib.rs"); err != nil {
		t.Fatalf("second update: %v", err)
	}
	if got := len(f.store.Markers("src/lib.rs")); got != 0 {
		t.Fatalf("stale markers survived: %d", got)
	}
	if got := len(f.store.Paths()); got != 0 {
		t.Fatalf("cleared file still listed: %v", f.store.Paths())
	}
}

func TestStaleUpdateIsDiscarded(t *testing.T) {
	f := newFixture(t, nil)
	f.ws.Create("src/lib.rs", "v1")
	f.diag.gate = make(chan struct{})
	f.diag.entered = make(chan struct{})
	f.diag.gatedResult = []session.Diagnostic{{Message: "stale", Severity: session.SeverityError}}
	ctx := context.Background()

	// The first update blocks inside diagnostics.
	firstDone := make(chan error, 1)
	go func() { firstDone <- f.pipe.Update(ctx, "src/lib.rs") }()
	<-f.diag.entered

	// A newer update for the same file runs to completion meanwhile.
	if err := f.pipe.Update(ctx, "src/lib.rs"); err != nil {
		t.Fatalf("second update: %v", err)
	}

	// Release the first update; its result must be dropped, not published.
	close(f.diag.gate)
	if err := <-firstDone; err != nil {
		t.Fatalf("first update: %v", err)
	}
	if got := f.store.Markers("src/lib.rs"); len(got) != 0 {
		t.Fatalf("stale result published: %v", got)
	}
}

func TestUpdateSkipsNonSourceFiles(t *testing.T) {
	f := newFixture(t, nil)
	f.ws.Create("Cargo.toml", "[package]")
	if err := f.pipe.Update(context.Background(), "Cargo.toml"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if calls := f.log.all(); len(calls) != 0 {
		t.Fatalf("non-source file reached the engine: %v", calls)
	}
}

func TestDeleteEventClearsMarkers(t *testing.T) {
	f := newFixture(t, nil)
	f.ws.Create("src/lib.rs", "broken")
	f.diag.diags["src/lib.rs"] = []session.Diagnostic{{Message: "oops", Severity: session.SeverityError}}
	ctx := context.Background()

	if err := f.pipe.Update(ctx, "src/lib.rs"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(f.store.Markers("src/lib.rs")) != 1 {
		t.Fatal("setup failed: no markers published")
	}

	f.ws.Delete("src/lib.rs")
	f.pipe.handleEvent(ctx, workspace.Event{Kind: workspace.EventDelete, Path: "src/lib.rs"})
	if got := f.store.Markers("src/lib.rs"); len(got) != 0 {
		t.Fatalf("deleted file kept markers: %v", got)
	}
}

func TestRenameEventMovesMarkers(t *testing.T) {
	f := newFixture(t, nil)
	f.ws.Create("src/old.rs", "broken")
	f.diag.diags["src/old.rs"] = []session.Diagnostic{{Message: "oops", Severity: session.SeverityError}}
	f.diag.diags["src/new.rs"] = []session.Diagnostic{{Message: "oops", Severity: session.SeverityError}}
	ctx := context.Background()

	if err := f.pipe.Update(ctx, "src/old.rs"); err != nil {
		t.Fatalf("update: %v", err)
	}
	f.ws.Rename("src/old.rs", "src/new.rs")
	f.pipe.handleEvent(ctx, workspace.Event{Kind: workspace.EventRename, Path: "src/new.rs", OldPath: "src/old.rs"})

	if got := f.store.Markers("src/old.rs"); len(got) != 0 {
		t.Fatalf("old path kept markers: %v", got)
	}
	if got := f.store.Markers("src/new.rs"); len(got) != 1 {
		t.Fatalf("new path markers = %d, want 1", len(got))
	}
}
