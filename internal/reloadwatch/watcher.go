// Package reloadwatch decides when to ask registered live resources
// whether they are stale. Filesystem events and an optional poll interval
// both end in an explicit ReloadIfStale on the affected entries; the
// resource handles themselves never watch anything.
package reloadwatch

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/keithlinneman/resource/internal/log"
	"github.com/keithlinneman/resource/internal/registry"
	"github.com/keithlinneman/resource/internal/xerrors"
)

const (
	SourceFSNotify = "fsnotify"
	SourcePoll     = "poll"

	// DefaultDebounce coalesces the burst of events an editor produces for
	// one save.
	DefaultDebounce = 50 * time.Millisecond
)

// Metrics is implemented by the metrics package.
type Metrics interface {
	IncWatcherEvent(source string)
	IncWatcherError()
}

type Options struct {
	Logger   log.Logger
	Registry *registry.Registry
	// Notify enables filesystem notifications on the parent directories
	// of registered files.
	Notify bool
	// PollInterval, when positive, checks every live entry on a ticker.
	PollInterval time.Duration
	Debounce     time.Duration
	Metrics      Metrics

	// OnReload is called after an entry is swapped, on the watcher
	// goroutine.
	OnReload func(name string)
}

// Watcher reloads stale registry entries on filesystem events or ticks.
type Watcher struct {
	reg      *registry.Registry
	logger   log.Logger
	notify   bool
	interval time.Duration
	debounce time.Duration
	metrics  Metrics
	onReload func(name string)

	reloadCount atomic.Int64
}

func New(opts Options) *Watcher {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		reg:      opts.Registry,
		logger:   log.OrNop(opts.Logger),
		notify:   opts.Notify,
		interval: opts.PollInterval,
		debounce: debounce,
		metrics:  opts.Metrics,
		onReload: opts.OnReload,
	}
}

// Run blocks until ctx is cancelled. It returns nil at once when there is
// nothing to watch: no file-backed entries, or neither trigger enabled.
// When notifications cannot be set up it falls back to polling if a poll
// interval is set, and otherwise returns the error.
func (w *Watcher) Run(ctx context.Context) error {
	paths := w.reg.Paths()
	if len(paths) == 0 || (!w.notify && w.interval <= 0) {
		w.logger.Info(ctx, "reload watcher idle", "live_entries", len(paths))
		return nil
	}

	var (
		events <-chan fsnotify.Event
		errs   <-chan error
	)
	notifying := false
	if w.notify {
		fw, err := w.startNotify(ctx, paths)
		switch {
		case err == nil:
			defer fw.Close()
			events, errs = fw.Events, fw.Errors
			notifying = true
		case w.interval > 0:
			w.logger.Error(ctx, err, "reload watcher: fsnotify unavailable, polling only",
				"poll_interval", w.interval.String(),
			)
			w.countError()
		default:
			w.countError()
			return err
		}
	}

	var tick <-chan time.Time
	if w.interval > 0 {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	w.logger.Info(ctx, "reload watcher starting",
		"live_entries", len(paths),
		"notify", notifying,
		"poll_interval", w.interval.String(),
	)

	// pending paths are flushed once the debounce timer fires
	pending := make(map[string]struct{})
	flush := time.NewTimer(w.debounce)
	flush.Stop()
	defer flush.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info(ctx, "reload watcher stopping",
				"reason", ctx.Err(),
				"reloads", w.reloadCount.Load(),
			)
			return nil
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if !relevant(ev) || len(w.reg.ByPath(ev.Name)) == 0 {
				continue
			}
			if len(pending) == 0 {
				flush.Reset(w.debounce)
			}
			pending[ev.Name] = struct{}{}
		case <-flush.C:
			for p := range pending {
				if w.metrics != nil {
					w.metrics.IncWatcherEvent(SourceFSNotify)
				}
				w.checkEntries(ctx, w.reg.ByPath(p), SourceFSNotify)
			}
			clear(pending)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			w.logger.Error(ctx, err, "reload watcher: fsnotify error")
			w.countError()
		case <-tick:
			if w.metrics != nil {
				w.metrics.IncWatcherEvent(SourcePoll)
			}
			w.CheckAll(ctx)
		}
	}
}

// startNotify watches the parent directory of every path. A directory that
// cannot be watched is logged and skipped; it is an error only when none
// can be.
func (w *Watcher) startNotify(ctx context.Context, paths []string) (*fsnotify.Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, xerrors.Wrap(err, "create fsnotify watcher")
	}
	dirs := parentDirs(paths)
	watched := 0
	for _, dir := range dirs {
		if err := fw.Add(dir); err != nil {
			w.logger.Error(ctx, xerrors.Wrapf(err, "watch %s", dir), "reload watcher: directory not watched",
				"dir", dir,
			)
			w.countError()
			continue
		}
		watched++
	}
	if watched == 0 {
		_ = fw.Close()
		return nil, xerrors.Newf("no watchable directory among %d", len(dirs))
	}
	return fw, nil
}

func (w *Watcher) countError() {
	if w.metrics != nil {
		w.metrics.IncWatcherError()
	}
}

// CheckAll runs ReloadIfStale on every registered entry and returns how
// many were reloaded.
func (w *Watcher) CheckAll(ctx context.Context) int {
	return w.checkEntries(ctx, w.reg.Entries(), SourcePoll)
}

func (w *Watcher) checkEntries(ctx context.Context, entries []registry.Entry, source string) int {
	n := 0
	for _, e := range entries {
		reloaded, err := e.ReloadIfStale()
		if err != nil {
			w.logger.Error(ctx, err, "reload watcher: reload failed, keeping current content",
				"resource", e.Name(),
				"source", source,
			)
			w.countError()
			continue
		}
		if !reloaded {
			continue
		}
		n++
		w.reloadCount.Add(1)
		_, modTime := e.Snapshot()
		w.logger.Info(ctx, "reload watcher: resource reloaded",
			"resource", e.Name(),
			"source", source,
			"mod_time", modTime,
		)
		w.notifyReload(ctx, e.Name())
	}
	return n
}

func (w *Watcher) notifyReload(ctx context.Context, name string) {
	if w.onReload == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error(ctx, fmt.Errorf("OnReload panic: %v", r),
				"reload watcher: OnReload callback panicked, continuing",
				"resource", name,
			)
		}
	}()
	w.onReload(name)
}

// relevant filters out events that cannot change a file's content.
func relevant(ev fsnotify.Event) bool {
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Chmod)
}

// parentDirs watches directories rather than files so atomic
// rename-over saves keep being observed.
func parentDirs(paths []string) []string {
	var dirs []string
	for _, p := range paths {
		if d := filepath.Dir(p); !slices.Contains(dirs, d) {
			dirs = append(dirs, d)
		}
	}
	slices.Sort(dirs)
	return dirs
}
