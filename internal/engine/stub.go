package engine

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/dzyphr/solana-playground/internal/crates"
	"github.com/dzyphr/solana-playground/internal/session"
)

// crateRef matches the textual crate-usage form "name::" and captures name.
var crateRef = regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*)::`)

// rustReserved are path roots that never name an external crate.
var rustReserved = map[string]struct{}{
	"std":   {},
	"core":  {},
	"alloc": {},
	"crate": {},
	"self":  {},
	"super": {},
	"Self":  {},
}

// Stub is a minimal in-process backend. It implements the full operation
// set but only enough analysis to exercise the bridge and pipeline: it
// tracks ingested files and crates, reports transitive crate requirements
// from manifests, and flags references to crates it has never heard of.
// Real language analysis lives outside this repository.
type Stub struct {
	mu     sync.Mutex
	files  map[string]string
	crates map[string]bool // name -> fully ingested
	logf   func(string, ...any)
}

// NewStub returns an empty stub backend.
func NewStub() *Stub {
	return &Stub{
		files:  make(map[string]string),
		crates: make(map[string]bool),
		logf: func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, "engine: "+format+"\n", args...)
		},
	}
}

func (st *Stub) LoadFiles(ctx context.Context, files []session.File) error {
	next := make(map[string]string, len(files))
	for _, f := range files {
		next[f.Path] = f.Content
	}
	st.mu.Lock()
	st.files = next
	st.mu.Unlock()
	return nil
}

func (st *Stub) LoadCrate(ctx context.Context, name, source, manifest string) ([]string, error) {
	st.mu.Lock()
	st.crates[name] = true
	st.mu.Unlock()
	requires, err := crates.ManifestDependencies(manifest)
	if err != nil {
		// Degraded but safe: the crate is ingested, it just reports no
		// transitive requirements.
		st.logf("manifest of %s unreadable: %v", name, err)
		return nil, nil
	}
	return requires, nil
}

func (st *Stub) RegisterEmptyCrate(ctx context.Context, name string) error {
	st.mu.Lock()
	if !st.crates[name] {
		st.crates[name] = false
	}
	st.mu.Unlock()
	return nil
}

// Diagnostics flags crate references the engine has never been told about.
// A crate registered empty is known, so it is not flagged; that is the whole
// point of the empty registration.
func (st *Stub) Diagnostics(ctx context.Context, path, content string) ([]session.Diagnostic, error) {
	st.mu.Lock()
	known := make(map[string]struct{}, len(st.crates))
	for name := range st.crates {
		known[name] = struct{}{}
	}
	st.mu.Unlock()

	var diags []session.Diagnostic
	seen := make(map[string]struct{})
	for _, match := range crateRef.FindAllStringSubmatchIndex(content, -1) {
		// Only path roots name crates; a segment preceded by ':' is
		// mid-path (the prelude in anchor_lang::prelude::*).
		if match[0] > 0 && content[match[0]-1] == ':' {
			continue
		}
		name := content[match[2]:match[3]]
		if _, ok := rustReserved[name]; ok {
			continue
		}
		if _, ok := known[name]; ok {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		start := offsetToPosition(content, match[2])
		end := offsetToPosition(content, match[3])
		diags = append(diags, session.Diagnostic{
			Path:     path,
			Range:    session.Range{Start: start, End: end},
			Severity: session.SeverityError,
			Code:     "unresolved-crate",
			Message:  fmt.Sprintf("cannot find crate `%s`", name),
		})
	}
	sort.Slice(diags, func(i, j int) bool {
		a, b := diags[i].Range.Start, diags[j].Range.Start
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Character < b.Character
	})
	return diags, nil
}

func (st *Stub) Hover(ctx context.Context, path string, pos session.Position) (session.Hover, error) {
	return session.Hover{}, nil
}

func (st *Stub) Completion(ctx context.Context, path string, pos session.Position) ([]session.CompletionItem, error) {
	st.mu.Lock()
	names := make([]string, 0, len(st.crates))
	for name := range st.crates {
		names = append(names, name)
	}
	st.mu.Unlock()
	sort.Strings(names)
	items := make([]session.CompletionItem, len(names))
	for i, name := range names {
		items[i] = session.CompletionItem{Label: name, Detail: "crate"}
	}
	return items, nil
}

func (st *Stub) Definition(ctx context.Context, path string, pos session.Position) ([]session.Location, error) {
	return nil, nil
}

func (st *Stub) Rename(ctx context.Context, path string, pos session.Position, newName string) ([]session.TextEdit, error) {
	return nil, nil
}

func offsetToPosition(text string, offset int) session.Position {
	prefix := text[:offset]
	line := strings.Count(prefix, "\n")
	character := offset
	if idx := strings.LastIndexByte(prefix, '\n'); idx >= 0 {
		character = offset - idx - 1
	}
	return session.Position{Line: line, Character: character}
}
