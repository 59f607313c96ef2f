// Package session exposes the background analysis engine's operation set as
// a typed call surface over the bridge. The proxy adds no semantics beyond
// name/argument forwarding; it exists so the rest of the system is written
// against a capability interface rather than a transport. The same package
// declares the Backend interface and its dispatcher, keeping client and
// server views of the operation set in one place.
package session

import (
	"context"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/dzyphr/solana-playground/internal/bridge"
)

// Session is the single live proxy bound to one background engine instance.
// One is created per process once the channel reports readiness.
type Session struct {
	ch *bridge.Channel
}

// New wraps an established channel.
func New(ch *bridge.Channel) *Session {
	return &Session{ch: ch}
}

func (s *Session) call(ctx context.Context, method string, out any, args ...any) error {
	raw, err := s.ch.Call(ctx, method, args...)
	if err != nil {
		return err
	}
	if out == nil || raw == nil {
		return nil
	}
	return msgpack.Unmarshal(raw, out)
}

// LoadFiles replaces the engine's view of the workspace with the given file
// set. The engine reconciles; callers always send the complete current set.
func (s *Session) LoadFiles(ctx context.Context, files []File) error {
	return s.call(ctx, methodLoadFiles, nil, files)
}

// LoadCrate ingests a crate's full source and manifest and returns the names
// of the further crates this crate itself requires.
func (s *Session) LoadCrate(ctx context.Context, name, source, manifest string) ([]string, error) {
	var requires []string
	if err := s.call(ctx, methodLoadCrate, &requires, name, source, manifest); err != nil {
		return nil, err
	}
	return requires, nil
}

// RegisterEmptyCrate makes the engine aware of a crate name without ingesting
// its source, so identifier lookup for it does not fail outright.
func (s *Session) RegisterEmptyCrate(ctx context.Context, name string) error {
	return s.call(ctx, methodRegisterEmptyCrate, nil, name)
}

// Diagnostics computes diagnostics for one file's current content.
func (s *Session) Diagnostics(ctx context.Context, path, content string) ([]Diagnostic, error) {
	var diags []Diagnostic
	if err := s.call(ctx, methodDiagnostics, &diags, path, content); err != nil {
		return nil, err
	}
	return diags, nil
}

// Hover answers a hover query at pos.
func (s *Session) Hover(ctx context.Context, path string, pos Position) (Hover, error) {
	var h Hover
	err := s.call(ctx, methodHover, &h, path, pos)
	return h, err
}

// Completion answers a completion query at pos.
func (s *Session) Completion(ctx context.Context, path string, pos Position) ([]CompletionItem, error) {
	var items []CompletionItem
	if err := s.call(ctx, methodCompletion, &items, path, pos); err != nil {
		return nil, err
	}
	return items, nil
}

// Definition resolves the definition sites of the symbol at pos.
func (s *Session) Definition(ctx context.Context, path string, pos Position) ([]Location, error) {
	var locs []Location
	if err := s.call(ctx, methodDefinition, &locs, path, pos); err != nil {
		return nil, err
	}
	return locs, nil
}

// Rename computes the edits for renaming the symbol at pos.
func (s *Session) Rename(ctx context.Context, path string, pos Position, newName string) ([]TextEdit, error) {
	var edits []TextEdit
	if err := s.call(ctx, methodRename, &edits, path, pos, newName); err != nil {
		return nil, err
	}
	return edits, nil
}
