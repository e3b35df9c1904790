// Package watcher reports settled changes to a playlist file.
//
// Run listens with fsnotify on local disks and falls back to stat polling on
// network and FUSE mounts, or when PLM_FORCE_POLL is set. A burst of writes
// is collapsed by a Debouncer into a single Change.
package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vanderheijden86/plmirror/pkg/debug"
)

// ForcePollEnvVar forces polling mode when set to a true value.
const ForcePollEnvVar = "PLM_FORCE_POLL"

// DefaultPollInterval is how often a polling watcher stats the playlist.
const DefaultPollInterval = 2 * time.Second

// Common errors.
var (
	ErrFileRemoved    = errors.New("playlist file was removed")
	ErrPermission     = errors.New("permission denied")
	ErrAlreadyRunning = errors.New("watcher already running")
)

// Change describes the playlist file once a burst of writes has settled.
type Change struct {
	Path    string
	ModTime time.Time
	Size    int64
	// Removed is set while the file is missing. Its return is reported as
	// an ordinary Change.
	Removed bool
}

// Err returns ErrFileRemoved for a removal and nil otherwise.
func (c Change) Err() error {
	if c.Removed {
		return ErrFileRemoved
	}
	return nil
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets how long the file must stay quiet before a Change is
// reported. Non-positive values use DefaultDebounceDuration.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debouncer = NewDebouncer(d) }
}

// WithPollInterval sets the stat interval used in polling mode.
func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// WithForcePoll polls even where fsnotify would work.
func WithForcePoll(force bool) Option {
	return func(w *Watcher) { w.forcePoll = force }
}

// fileState is what a stat of the playlist tells us.
type fileState struct {
	exists bool
	mtime  time.Time
	size   int64
}

func (s fileState) differs(o fileState) bool {
	return s.exists != o.exists || !s.mtime.Equal(o.mtime) || s.size != o.size
}

func statFile(path string) (fileState, error) {
	info, err := os.Stat(path)
	switch {
	case err == nil:
		return fileState{exists: true, mtime: info.ModTime(), size: info.Size()}, nil
	case os.IsNotExist(err):
		return fileState{}, nil
	case os.IsPermission(err):
		return fileState{}, ErrPermission
	}
	return fileState{}, err
}

// Watcher follows one playlist file.
type Watcher struct {
	path         string
	pollInterval time.Duration
	forcePoll    bool
	debouncer    *Debouncer

	changes   chan Change
	ready     chan struct{}
	readyOnce sync.Once

	mu      sync.Mutex
	running bool
	polling bool
	fsType  FilesystemType
	last    fileState
}

// New creates a watcher for the playlist at path. Nothing is watched until
// Run.
func New(path string, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		path:         abs,
		pollInterval: DefaultPollInterval,
		debouncer:    NewDebouncer(0),
		changes:      make(chan Change, 1),
		ready:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string { return w.path }

// Changes delivers one Change per settled burst. A reader that falls behind
// only sees the latest one.
func (w *Watcher) Changes() <-chan Change { return w.changes }

// Ready is closed once Run has taken the initial stat and chosen its mode.
func (w *Watcher) Ready() <-chan struct{} { return w.ready }

// Polling reports whether Run fell back to stat polling.
func (w *Watcher) Polling() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.polling
}

// FilesystemType returns the classification Run used to choose its mode.
func (w *Watcher) FilesystemType() FilesystemType {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fsType
}

// Run watches the playlist until ctx is done. A missing file is fine; its
// creation is reported as a Change.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.begin(); err != nil {
		return err
	}
	defer w.end()

	var (
		events <-chan fsnotify.Event
		errs   <-chan error
		tick   <-chan time.Time
	)
	if !w.Polling() {
		fsw, err := w.listen()
		if err != nil {
			debug.Log("watcher: fsnotify unavailable for %s, polling: %v", w.path, err)
			w.mu.Lock()
			w.polling = true
			w.mu.Unlock()
		} else {
			defer fsw.Close()
			events, errs = fsw.Events, fsw.Errors
		}
	}
	if w.Polling() {
		ticker := time.NewTicker(w.pollInterval)
		defer ticker.Stop()
		tick = ticker.C
	}
	debug.Log("watcher: %s on %s filesystem, polling=%v", w.path, w.FilesystemType(), w.Polling())
	w.readyOnce.Do(func() { close(w.ready) })

	settled := make(chan struct{}, 1)
	settle := func() {
		w.debouncer.Trigger(func() {
			select {
			case settled <- struct{}{}:
			default:
			}
		})
	}
	base := filepath.Base(w.path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-events:
			if !ok {
				return nil
			}
			// The directory is watched so that atomic renames onto the
			// playlist are seen.
			if filepath.Base(ev.Name) == base && ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				settle()
			}

		case err, ok := <-errs:
			if !ok {
				return nil
			}
			debug.Log("watcher: %s: %v", w.path, err)

		case <-tick:
			if w.poll() {
				settle()
			}

		case <-settled:
			w.report()
		}
	}
}

func (w *Watcher) begin() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return ErrAlreadyRunning
	}
	last, err := statFile(w.path)
	if err != nil {
		return err
	}
	w.running = true
	w.last = last
	w.fsType = DetectFilesystemType(w.path)
	w.polling = w.forcePoll || envBool(ForcePollEnvVar) || isRemoteFilesystem(w.fsType)
	return nil
}

func (w *Watcher) end() {
	w.debouncer.Cancel()
	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
}

func (w *Watcher) listen() (*fsnotify.Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		fsw.Close()
		return nil, err
	}
	return fsw, nil
}

// poll stats the file and reports whether it differs from the last stat.
func (w *Watcher) poll() bool {
	cur, err := statFile(w.path)
	if err != nil {
		debug.Log("watcher: %s: %v", w.path, err)
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if !cur.differs(w.last) {
		return false
	}
	w.last = cur
	return true
}

// report publishes the settled state, replacing a Change nobody read yet.
func (w *Watcher) report() {
	cur, err := statFile(w.path)
	if err != nil {
		debug.Log("watcher: %s: %v", w.path, err)
		return
	}
	w.mu.Lock()
	w.last = cur
	w.mu.Unlock()

	c := Change{Path: w.path, ModTime: cur.mtime, Size: cur.size, Removed: !cur.exists}
	for {
		select {
		case w.changes <- c:
			return
		default:
		}
		select {
		case <-w.changes:
		default:
		}
	}
}

func envBool(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}
