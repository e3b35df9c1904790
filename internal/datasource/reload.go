package datasource

import (
	"context"
	"fmt"
	"sync"

	"github.com/vanderheijden86/plmirror/pkg/backend"
	"github.com/vanderheijden86/plmirror/pkg/debug"
	"github.com/vanderheijden86/plmirror/pkg/loader"
	"github.com/vanderheijden86/plmirror/pkg/watcher"
)

// Reloader re-reads a playlist file into a live Playlist. The playlist
// reports the differences to its subscribers, so a mirror following it
// converges without a full rebuild.
type Reloader struct {
	pl   *backend.Playlist
	path string
	opts loader.ParseOptions

	mu sync.Mutex
}

// NewReloader creates a reloader for the playlist file at path.
func NewReloader(pl *backend.Playlist, path string, opts loader.ParseOptions) *Reloader {
	return &Reloader{pl: pl, path: path, opts: opts}
}

// Path returns the playlist file being reloaded.
func (r *Reloader) Path() string { return r.path }

// Reload reads the file and replaces the playlist content with it. A file
// that fails to load leaves the playlist untouched.
func (r *Reloader) Reload(ctx context.Context) (backend.Diff, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return backend.Diff{}, err
	}
	items, err := loader.LoadFileWithOptions(r.path, r.opts)
	if err != nil {
		return backend.Diff{}, fmt.Errorf("reload %s: %w", r.path, err)
	}
	diff, err := r.pl.Replace(items)
	if err != nil {
		return diff, fmt.Errorf("reload %s: %w", r.path, err)
	}
	debug.Log("reload: %s: %s", r.path, diff.Summary())
	return diff, nil
}

// Follow reloads after every change reported by w until ctx is done.
// onReload, when set, receives each outcome. A removed file is reported as
// watcher.ErrFileRemoved and leaves the playlist as it was.
func (r *Reloader) Follow(ctx context.Context, w *watcher.Watcher, onReload func(backend.Diff, error)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case c := <-w.Changes():
			if c.Removed {
				debug.Log("reload: %s: %v", r.path, c.Err())
				if onReload != nil {
					onReload(backend.Diff{}, c.Err())
				}
				continue
			}
			diff, err := r.Reload(ctx)
			if ctx.Err() != nil {
				return nil
			}
			if onReload != nil {
				onReload(diff, err)
			}
		}
	}
}
