package config

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// defaultPollInterval is how often the watcher re-checks the config file.
const defaultPollInterval = 5 * time.Second

// Watcher hot-reloads the server configuration so threshold and provider
// tuning can land between dictation sessions without a restart. It polls by
// mtime first and content hash second; an edit that fails validation is
// logged and skipped, leaving the last good config in effect.
type Watcher struct {
	path     string
	interval time.Duration
	onChange func(old, updated *Config)

	mu      sync.Mutex
	current *Config
	mtime   time.Time
	sum     [sha256.Size]byte

	done     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval overrides the poll interval. Non-positive values are ignored.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWatcher loads the config at path and starts polling it for edits.
// onChange, if non-nil, is called with the previous and the freshly loaded
// config after every accepted reload; it runs outside the watcher's lock so
// it may call [Watcher.Current]. A file that does not load on startup is a
// hard error, the server should not come up half-configured.
func NewWatcher(path string, onChange func(old, updated *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: defaultPollInterval,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	cfg, sum, mtime, err := w.readFile()
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}
	w.current = cfg
	w.sum = sum
	w.mtime = mtime

	go w.run()
	return w, nil
}

// Current returns the most recently accepted config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Stop halts polling. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.done) })
}

func (w *Watcher) run() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.sweep()
		}
	}
}

// sweep performs one poll: a cheap mtime comparison, then a full
// read-hash-parse only when the file actually moved.
func (w *Watcher) sweep() {
	info, err := os.Stat(w.path)
	if err != nil {
		slog.Warn("config: cannot stat config file", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	unchanged := info.ModTime().Equal(w.mtime)
	w.mu.Unlock()
	if unchanged {
		return
	}

	cfg, sum, mtime, err := w.readFile()
	if err != nil {
		slog.Warn("config: ignoring invalid edit, keeping last good config",
			"path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	if sum == w.sum {
		// Touched but identical, just remember the new mtime.
		w.mtime = mtime
		w.mu.Unlock()
		return
	}
	old := w.current
	w.current = cfg
	w.sum = sum
	w.mtime = mtime
	w.mu.Unlock()

	slog.Info("config: reload applied", "path", w.path)
	if w.onChange != nil {
		w.onChange(old, cfg)
	}
}

// readFile loads and validates the config file, returning it together with
// the content hash and modification time used for change detection.
func (w *Watcher) readFile() (*Config, [sha256.Size]byte, time.Time, error) {
	var none [sha256.Size]byte

	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, none, time.Time{}, err
	}
	info, err := os.Stat(w.path)
	if err != nil {
		return nil, none, time.Time{}, err
	}

	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, none, time.Time{}, err
	}
	return cfg, sha256.Sum256(data), info.ModTime(), nil
}
