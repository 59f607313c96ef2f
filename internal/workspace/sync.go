package workspace

import (
	"context"

	"github.com/dzyphr/solana-playground/internal/session"
)

// FileSink is the slice of the analysis session the synchronizer pushes to.
type FileSink interface {
	LoadFiles(ctx context.Context, files []session.File) error
}

// Synchronizer pushes full workspace snapshots to the session. It never
// diffs: the complete current set is resent and the engine reconciles, which
// trades redundant bytes for correctness at user-paced change rates.
type Synchronizer struct {
	ws   *Workspace
	sink FileSink
}

// NewSynchronizer binds a workspace to a session file sink.
func NewSynchronizer(ws *Workspace, sink FileSink) *Synchronizer {
	return &Synchronizer{ws: ws, sink: sink}
}

// Sync sends the current snapshot. An empty workspace still syncs, clearing
// the engine's file view.
func (s *Synchronizer) Sync(ctx context.Context) error {
	snapshot := s.ws.Snapshot()
	files := make([]session.File, len(snapshot))
	for i, f := range snapshot {
		files[i] = session.File{Path: f.Path, Content: f.Content}
	}
	return s.sink.LoadFiles(ctx, files)
}
