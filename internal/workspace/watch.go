package workspace

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// LoadDir replaces the workspace content with the source files under dir.
// Paths are stored slash-separated relative to dir.
func LoadDir(ws *Workspace, dir string) error {
	var files []File
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, SourceExt) {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, File{Path: filepath.ToSlash(rel), Content: string(data)})
		return nil
	})
	if err != nil {
		return err
	}
	ws.Replace(files)
	return nil
}

// Watcher mirrors filesystem changes under a directory into a workspace.
type Watcher struct {
	ws   *Workspace
	dir  string
	fsw  *fsnotify.Watcher
	logf func(string, ...any)
}

// NewWatcher starts watching dir and its subdirectories. The workspace must
// already hold the directory's content (see LoadDir).
func NewWatcher(ws *Workspace, dir string, logf func(string, ...any)) (*Watcher, error) {
	if logf == nil {
		logf = func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, "watch: "+format+"\n", args...)
		}
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{ws: ws, dir: dir, fsw: fsw, logf: logf}
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != dir {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
	if err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run applies filesystem events to the workspace until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logf("watcher error: %v", err)
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.apply(ev)
		}
	}
}

func (w *Watcher) apply(ev fsnotify.Event) {
	if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
		if ev.Op.Has(fsnotify.Create) {
			if err := w.fsw.Add(ev.Name); err != nil {
				w.logf("failed to watch %s: %v", ev.Name, err)
			}
		}
		return
	}
	rel, err := filepath.Rel(w.dir, ev.Name)
	if err != nil {
		return
	}
	path := filepath.ToSlash(rel)
	switch {
	case ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write):
		data, err := os.ReadFile(ev.Name)
		if err != nil {
			// The file may already be gone again; the Remove event follows.
			return
		}
		if ev.Op.Has(fsnotify.Create) {
			w.ws.Create(path, string(data))
		} else {
			w.ws.Write(path, string(data))
		}
	case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
		// fsnotify reports a rename as Rename(old) followed by Create(new),
		// so from the workspace's view it is a delete plus a create.
		w.ws.Delete(path)
	}
}
