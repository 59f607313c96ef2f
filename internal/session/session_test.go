package session

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"

	"github.com/dzyphr/solana-playground/internal/bridge"
)

// recordingBackend implements Backend and logs every operation it serves.
type recordingBackend struct {
	mu    sync.Mutex
	calls []string

	files      []File
	crateDeps  map[string][]string
	registered []string
	diags      []Diagnostic
}

func (b *recordingBackend) record(call string) {
	b.mu.Lock()
	b.calls = append(b.calls, call)
	b.mu.Unlock()
}

func (b *recordingBackend) LoadFiles(ctx context.Context, files []File) error {
	b.record("loadFiles")
	b.mu.Lock()
	b.files = files
	b.mu.Unlock()
	return nil
}

func (b *recordingBackend) LoadCrate(ctx context.Context, name, source, manifest string) ([]string, error) {
	b.record("loadCrate:" + name)
	return b.crateDeps[name], nil
}

func (b *recordingBackend) RegisterEmptyCrate(ctx context.Context, name string) error {
	b.record("registerEmpty:" + name)
	b.mu.Lock()
	b.registered = append(b.registered, name)
	b.mu.Unlock()
	return nil
}

func (b *recordingBackend) Diagnostics(ctx context.Context, path, content string) ([]Diagnostic, error) {
	b.record("diagnostics:" + path)
	return b.diags, nil
}

func (b *recordingBackend) Hover(ctx context.Context, path string, pos Position) (Hover, error) {
	return Hover{Contents: "hovered"}, nil
}

func (b *recordingBackend) Completion(ctx context.Context, path string, pos Position) ([]CompletionItem, error) {
	return []CompletionItem{{Label: "anchor_lang", Detail: "crate"}}, nil
}

func (b *recordingBackend) Definition(ctx context.Context, path string, pos Position) ([]Location, error) {
	return nil, nil
}

func (b *recordingBackend) Rename(ctx context.Context, path string, pos Position, newName string) ([]TextEdit, error) {
	return []TextEdit{{Path: path, NewText: newName}}, nil
}

func startSession(t *testing.T, backend Backend) (*Session, *bridge.Channel) {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	go func() { _ = bridge.Serve(context.Background(), server, NewHandler(backend)) }()
	ch, err := bridge.Dial(context.Background(), client, bridge.ChannelOptions{
		Logf: func(format string, args ...any) { t.Logf("bridge: "+format, args...) },
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return New(ch), ch
}

func TestSessionRoundTrips(t *testing.T) {
	backend := &recordingBackend{
		crateDeps: map[string][]string{"anchor_lang": {"borsh", "solana_program"}},
		diags: []Diagnostic{
			{
				Path:     "lib.rs",
				Range:    Range{Start: Position{Line: 1, Character: 4}, End: Position{Line: 1, Character: 9}},
				Severity: SeverityError,
				Code:     "unresolved-crate",
				Message:  "cannot find crate `junk`",
			},
		},
	}
	sess, _ := startSession(t, backend)
	ctx := context.Background()

	if err := sess.LoadFiles(ctx, []File{{Path: "lib.rs", Content: "fn main() {}"}}); err != nil {
		t.Fatalf("loadFiles: %v", err)
	}
	requires, err := sess.LoadCrate(ctx, "anchor_lang", "// source", "[package]\nname = \"anchor_lang\"")
	if err != nil {
		t.Fatalf("loadCrate: %v", err)
	}
	if len(requires) != 2 || requires[0] != "borsh" || requires[1] != "solana_program" {
		t.Fatalf("unexpected requirements: %v", requires)
	}
	if err := sess.RegisterEmptyCrate(ctx, "spl_token"); err != nil {
		t.Fatalf("registerEmptyCrate: %v", err)
	}

	diags, err := sess.Diagnostics(ctx, "lib.rs", "junk::thing()")
	if err != nil {
		t.Fatalf("diagnostics: %v", err)
	}
	if len(diags) != 1 {
		t.Fatalf("expected 1 diagnostic, got %d", len(diags))
	}
	got := diags[0]
	if got.Severity != SeverityError || got.Code != "unresolved-crate" {
		t.Fatalf("diagnostic mismatch: %+v", got)
	}
	if got.Range.Start.Line != 1 || got.Range.Start.Character != 4 {
		t.Fatalf("range mismatch: %+v", got.Range)
	}

	hover, err := sess.Hover(ctx, "lib.rs", Position{Line: 0, Character: 0})
	if err != nil || hover.Contents != "hovered" {
		t.Fatalf("hover: %+v err %v", hover, err)
	}
	items, err := sess.Completion(ctx, "lib.rs", Position{})
	if err != nil || len(items) != 1 || items[0].Label != "anchor_lang" {
		t.Fatalf("completion: %+v err %v", items, err)
	}
	edits, err := sess.Rename(ctx, "lib.rs", Position{}, "renamed")
	if err != nil || len(edits) != 1 || edits[0].NewText != "renamed" {
		t.Fatalf("rename: %+v err %v", edits, err)
	}

	backend.mu.Lock()
	defer backend.mu.Unlock()
	if backend.calls[0] != "loadFiles" || backend.calls[1] != "loadCrate:anchor_lang" {
		t.Fatalf("unexpected call order: %v", backend.calls)
	}
	if len(backend.files) != 1 || backend.files[0].Path != "lib.rs" {
		t.Fatalf("files not delivered: %+v", backend.files)
	}
	if len(backend.registered) != 1 || backend.registered[0] != "spl_token" {
		t.Fatalf("empty crate not registered: %v", backend.registered)
	}
}

func TestUnknownMethodIsHardError(t *testing.T) {
	_, ch := startSession(t, &recordingBackend{})
	_, err := ch.Call(context.Background(), "analysis/telepathy")
	var remote *bridge.RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("expected RemoteError for unknown method, got %v", err)
	}
}

func TestArgumentArityMismatchIsHardError(t *testing.T) {
	_, ch := startSession(t, &recordingBackend{})
	// crate/load wants three arguments.
	_, err := ch.Call(context.Background(), "crate/load", "only-one")
	var remote *bridge.RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("expected RemoteError for arity mismatch, got %v", err)
	}
}
