// Package workspace owns the in-memory set of source files under analysis
// and notifies subscribers of every file-set or content change. It is the
// process-local stand-in for the editor's file explorer: the analysis core
// never reads the disk directly, only workspace snapshots.
package workspace

import (
	"sort"
	"strings"
	"sync"
)

// SourceExt is the file extension the analysis session cares about. Files
// with other extensions live in the workspace but never reach the engine.
const SourceExt = ".rs"

// EventKind classifies a workspace change notification.
type EventKind uint8

const (
	// EventCreate fires when a file is added.
	EventCreate EventKind = iota
	// EventWrite fires when an existing file's content changes.
	EventWrite
	// EventDelete fires when a file is removed.
	EventDelete
	// EventRename fires when a file moves; OldPath carries the previous name.
	EventRename
	// EventSwitch fires when the whole workspace is replaced.
	EventSwitch
)

func (k EventKind) String() string {
	switch k {
	case EventCreate:
		return "create"
	case EventWrite:
		return "write"
	case EventDelete:
		return "delete"
	case EventRename:
		return "rename"
	case EventSwitch:
		return "switch"
	}
	return "unknown"
}

// Event is one workspace change notification.
type Event struct {
	Kind    EventKind
	Path    string
	OldPath string
}

// File is one (path, content) pair.
type File struct {
	Path    string
	Content string
}

// Workspace is a thread-safe path→content map with change subscriptions.
type Workspace struct {
	mu    sync.Mutex
	files map[string]string
	subs  []func(Event)
}

// New returns an empty workspace.
func New() *Workspace {
	return &Workspace{files: make(map[string]string)}
}

// Subscribe registers fn for every subsequent change event. Events are
// delivered synchronously on the mutating goroutine, in mutation order.
func (w *Workspace) Subscribe(fn func(Event)) {
	w.mu.Lock()
	w.subs = append(w.subs, fn)
	w.mu.Unlock()
}

// Read returns the current content of path.
func (w *Workspace) Read(path string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	content, ok := w.files[path]
	return content, ok
}

// Create adds a file. Creating an existing path behaves like a write.
func (w *Workspace) Create(path, content string) {
	w.mu.Lock()
	_, existed := w.files[path]
	w.files[path] = content
	subs := w.subscribers()
	w.mu.Unlock()
	kind := EventCreate
	if existed {
		kind = EventWrite
	}
	notify(subs, Event{Kind: kind, Path: path})
}

// Write updates a file's content, creating it if absent.
func (w *Workspace) Write(path, content string) {
	w.mu.Lock()
	_, existed := w.files[path]
	w.files[path] = content
	subs := w.subscribers()
	w.mu.Unlock()
	kind := EventWrite
	if !existed {
		kind = EventCreate
	}
	notify(subs, Event{Kind: kind, Path: path})
}

// Delete removes a file. Deleting an absent path is a silent no-op.
func (w *Workspace) Delete(path string) {
	w.mu.Lock()
	_, existed := w.files[path]
	delete(w.files, path)
	subs := w.subscribers()
	w.mu.Unlock()
	if existed {
		notify(subs, Event{Kind: EventDelete, Path: path})
	}
}

// Rename moves a file from oldPath to newPath, keeping its content.
func (w *Workspace) Rename(oldPath, newPath string) {
	w.mu.Lock()
	content, ok := w.files[oldPath]
	if !ok {
		w.mu.Unlock()
		return
	}
	delete(w.files, oldPath)
	w.files[newPath] = content
	subs := w.subscribers()
	w.mu.Unlock()
	notify(subs, Event{Kind: EventRename, Path: newPath, OldPath: oldPath})
}

// Replace swaps in a whole new file set, as on a workspace switch.
func (w *Workspace) Replace(files []File) {
	next := make(map[string]string, len(files))
	for _, f := range files {
		next[f.Path] = f.Content
	}
	w.mu.Lock()
	w.files = next
	subs := w.subscribers()
	w.mu.Unlock()
	notify(subs, Event{Kind: EventSwitch})
}

// Snapshot returns the current source files sorted by path. It is re-derived
// on every call; the analysis core never caches it.
func (w *Workspace) Snapshot() []File {
	w.mu.Lock()
	files := make([]File, 0, len(w.files))
	for path, content := range w.files {
		if !strings.HasSuffix(path, SourceExt) {
			continue
		}
		files = append(files, File{Path: path, Content: content})
	}
	w.mu.Unlock()
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files
}

func (w *Workspace) subscribers() []func(Event) {
	subs := make([]func(Event), len(w.subs))
	copy(subs, w.subs)
	return subs
}

func notify(subs []func(Event), ev Event) {
	for _, fn := range subs {
		fn(ev)
	}
}
