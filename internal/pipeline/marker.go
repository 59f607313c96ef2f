package pipeline

import (
	"sync"

	"github.com/dzyphr/solana-playground/internal/session"
)

// Marker is one editor-surface annotation derived from an engine diagnostic.
type Marker struct {
	Range    session.Range
	Severity session.Severity
	Code     string
	Message  string
}

// MarkerSink receives, per file, a replace-all marker set. The editor-surface
// adapter implements this; SetMarkers with an empty list clears the file.
type MarkerSink interface {
	SetMarkers(path string, markers []Marker)
}

// MarkerStore is an in-memory MarkerSink, used by the CLI and tests in place
// of a real editor surface.
type MarkerStore struct {
	mu      sync.Mutex
	markers map[string][]Marker
}

// NewMarkerStore returns an empty store.
func NewMarkerStore() *MarkerStore {
	return &MarkerStore{markers: make(map[string][]Marker)}
}

// SetMarkers replaces the file's marker set entirely; prior markers are
// never merged in.
func (s *MarkerStore) SetMarkers(path string, markers []Marker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(markers) == 0 {
		delete(s.markers, path)
		return
	}
	s.markers[path] = append([]Marker(nil), markers...)
}

// Markers returns the file's current marker set.
func (s *MarkerStore) Markers(path string) []Marker {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Marker(nil), s.markers[path]...)
}

// Paths returns the files that currently have markers.
func (s *MarkerStore) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	paths := make([]string, 0, len(s.markers))
	for path := range s.markers {
		paths = append(paths, path)
	}
	return paths
}
