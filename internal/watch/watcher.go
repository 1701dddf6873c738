// SPDX-License-Identifier: MPL-2.0

// Package watch drives continuous builds. It watches a project tree and
// calls a rebuild function once sources stop changing for a quiet period.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// DefaultQuietPeriod is used when Options.QuietPeriod is not positive.
const DefaultQuietPeriod = 400 * time.Millisecond

// ErrAlreadyStarted is returned by a second call to Run.
var ErrAlreadyStarted = errors.New("watcher already started")

// Tool caches and editor files that never trigger a rebuild.
var builtinExcludes = []string{
	"**/.git/**",
	"**/.gradle/**",
	"**/.dart_tool/**",
	"**/.idea/**",
	"**/*.swp",
	"**/*~",
	"**/.DS_Store",
}

type (
	// Options configures a Watcher. Patterns are doublestar globs matched
	// against slash-separated paths relative to Root.
	Options struct {
		Root string
		// Include selects the files that trigger a rebuild. Empty means all.
		Include []string
		// Exclude is added to the built-in excludes. Directories matching it
		// are not watched at all.
		Exclude     []string
		QuietPeriod time.Duration
		Logger      *log.Logger
	}

	// Rebuild is called with the changed paths, relative to Root.
	Rebuild func(ctx context.Context, changed []string) error

	// Watcher watches a directory tree. Run may be called once.
	Watcher struct {
		root    string
		include []string
		exclude []string
		quiet   time.Duration
		logger  *log.Logger
		fsw     *fsnotify.Watcher
		started atomic.Bool
	}
)

// New validates the patterns and registers every directory under Root that
// is not excluded.
func New(opts Options) (*Watcher, error) {
	root := opts.Root
	if root == "" {
		root = "."
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve watch root: %w", err)
	}

	for _, pat := range slices.Concat(opts.Include, opts.Exclude) {
		if !doublestar.ValidatePattern(pat) {
			return nil, fmt.Errorf("invalid watch pattern %q", pat)
		}
	}

	w := &Watcher{
		root:    root,
		include: slices.Clone(opts.Include),
		exclude: slices.Concat(builtinExcludes, opts.Exclude),
		quiet:   opts.QuietPeriod,
		logger:  opts.Logger,
	}
	if w.quiet <= 0 {
		w.quiet = DefaultQuietPeriod
	}
	if w.logger == nil {
		w.logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "watch"})
	}

	w.fsw, err = fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := w.addTree(root); err != nil {
		_ = w.fsw.Close()
		return nil, err
	}
	return w, nil
}

// Root returns the absolute watch root.
func (w *Watcher) Root() string { return w.root }

// Run processes file events until ctx is done, waits for a rebuild in
// progress, then closes the watcher. Changes arriving while rebuild runs are
// collected and trigger one more rebuild afterwards. Rebuild errors are
// logged; only resource exhaustion in the underlying watcher ends Run with
// an error.
func (w *Watcher) Run(ctx context.Context, rebuild Rebuild) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	defer func() {
		if err := w.fsw.Close(); err != nil {
			w.logger.Warn("Closing file watcher failed", "error", err)
		}
	}()

	var (
		mu       sync.Mutex
		pending  = map[string]struct{}{}
		timer    *time.Timer
		stopped  bool
		busy     atomic.Bool
		inflight sync.WaitGroup
	)
	// Runs before the watcher is closed: no new rebuilds start, and the one
	// in progress finishes.
	defer func() {
		mu.Lock()
		stopped = true
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		inflight.Wait()
	}()

	fire := func() {
		mu.Lock()
		if stopped || ctx.Err() != nil {
			mu.Unlock()
			return
		}
		if !busy.CompareAndSwap(false, true) {
			// Keep the pending set and try again after the current rebuild.
			timer.Reset(w.quiet)
			mu.Unlock()
			return
		}
		inflight.Add(1)
		defer inflight.Done()
		defer busy.Store(false)

		changed := make([]string, 0, len(pending))
		for path := range pending {
			changed = append(changed, path)
		}
		clear(pending)
		mu.Unlock()
		if len(changed) == 0 {
			return
		}
		slices.Sort(changed)

		w.logger.Info("Change detected, rebuilding", "files", len(changed))
		if err := rebuild(ctx, changed); err != nil {
			w.logger.Error("Rebuild failed", "error", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("file watcher event channel closed")
			}
			rel := w.rel(evt.Name)
			if evt.Has(fsnotify.Create) {
				w.addIfDir(evt.Name)
			}
			if w.excluded(rel) || !w.included(rel) {
				continue
			}

			mu.Lock()
			pending[rel] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.quiet, fire)
			} else {
				timer.Reset(w.quiet)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("file watcher error channel closed")
			}
			if isFatal(err) {
				return fmt.Errorf("file watcher failed: %w", err)
			}
			w.logger.Warn("File watcher error", "error", err)
		}
	}
}

func (w *Watcher) addTree(root string) error {
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("Skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.excludedDir(w.rel(path)) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to register watch tree: %w", err)
	}
	return nil
}

// addIfDir extends the watch to directories created after startup, such
// as a new module's src tree.
func (w *Watcher) addIfDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	if err := w.addTree(path); err != nil {
		w.logger.Warn("Not watching new directory", "path", path, "error", err)
	}
}

func (w *Watcher) rel(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func (w *Watcher) excluded(rel string) bool {
	return matchAny(w.exclude, rel)
}

// excludedDir also matches "dir/**" style patterns against the directory itself.
func (w *Watcher) excludedDir(rel string) bool {
	return matchAny(w.exclude, rel) || matchAny(w.exclude, rel+"/")
}

func (w *Watcher) included(rel string) bool {
	return len(w.include) == 0 || matchAny(w.include, rel)
}

func matchAny(patterns []string, rel string) bool {
	for _, pat := range patterns {
		if doublestar.MatchUnvalidated(pat, rel) {
			return true
		}
	}
	return false
}
