package config

import (
	"crypto/sha256"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher monitors a config file for changes and calls a callback with the
// old and new [ConfigTree] whenever a reload succeeds. It prefers fsnotify's
// inotify/kqueue backend and falls back to polling when the underlying
// filesystem does not support file events (§4.2 hot reload).
type Watcher struct {
	path     string
	interval time.Duration
	onChange func(old, new *ConfigTree)

	mu      sync.Mutex
	current *ConfigTree

	fsw  *fsnotify.Watcher
	done chan struct{}

	stopOnce sync.Once

	lastHash [sha256.Size]byte
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling-fallback interval. The default is 5 seconds;
// unused when fsnotify is active.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWatcher creates a config file watcher. It loads the initial config
// immediately, then starts watching for changes in the background, using
// fsnotify when the path supports it and polling otherwise.
func NewWatcher(path string, onChange func(old, new *ConfigTree), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: 5 * time.Second,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	tree, hash, err := w.loadAndHash()
	if err != nil {
		return nil, err
	}
	w.current = tree
	w.lastHash = hash

	if fsw, err := fsnotify.NewWatcher(); err == nil {
		if err := fsw.Add(path); err == nil {
			w.fsw = fsw
			go w.watchFsnotify()
			return w, nil
		}
		fsw.Close()
		slog.Warn("config watcher: fsnotify unavailable for path, falling back to polling", "path", path, "err", err)
	} else {
		slog.Warn("config watcher: fsnotify init failed, falling back to polling", "err", err)
	}

	go w.pollLoop()
	return w, nil
}

// Current returns the most recently loaded valid config snapshot.
func (w *Watcher) Current() *ConfigTree {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Stop stops the file watcher.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		if w.fsw != nil {
			w.fsw.Close()
		}
	})
}

func (w *Watcher) watchFsnotify() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				// A save that renames a temp file over path unlinks the
				// watched inode and drops the watch; watch the new file.
				if err := w.fsw.Add(w.path); err != nil {
					slog.Warn("config watcher: re-adding watch failed", "path", w.path, "err", err)
				}
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				w.reload()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("config watcher: fsnotify error", "err", err)
		}
	}
}

func (w *Watcher) pollLoop() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.reload()
		}
	}
}

// reload re-reads the config file and, if content has changed and is valid,
// invokes onChange and swaps in the new snapshot.
func (w *Watcher) reload() {
	tree, hash, err := w.loadAndHash()
	if err != nil {
		slog.Warn("config watcher: failed to reload config, keeping previous snapshot", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	if hash == w.lastHash {
		w.mu.Unlock()
		return
	}
	old := w.current
	w.current = tree
	w.lastHash = hash
	w.mu.Unlock()

	slog.Info("config watcher: configuration reloaded", "path", w.path)

	if w.onChange != nil {
		w.onChange(old, tree)
	}
}

// loadAndHash reads, parses, and validates the config file, returning the
// snapshot alongside the raw file's SHA-256 hash.
func (w *Watcher) loadAndHash() (*ConfigTree, [sha256.Size]byte, error) {
	var zeroHash [sha256.Size]byte

	f, err := os.Open(w.path)
	if err != nil {
		return nil, zeroHash, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, zeroHash, err
	}
	hash := sha256.Sum256(data)

	tree, err := LoadFromReader(newBytesReader(data))
	if err != nil {
		return nil, zeroHash, err
	}

	return tree, hash, nil
}

// bytesReaderImpl wraps a byte slice in a minimal io.Reader, avoiding a
// second disk read when the caller already has the file's bytes in memory.
type bytesReaderImpl struct {
	data []byte
	pos  int
}

func newBytesReader(b []byte) io.Reader {
	return &bytesReaderImpl{data: b}
}

func (r *bytesReaderImpl) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}
