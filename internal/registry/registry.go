// Package registry names the resources a long-running process serves and
// holds one shared handle per name, so the HTTP layer and the reload
// watcher act on the same buffers.
package registry

import (
	"io/fs"
	"path"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/keithlinneman/resource/internal/resource"
	"github.com/keithlinneman/resource/internal/xerrors"
)

// Entry is a registered resource, erased to bytes for serving.
type Entry interface {
	Name() string
	Kind() resource.Kind
	Mode() resource.Mode
	Path() string
	// Snapshot returns content and fingerprint from the same load. The
	// slice must not be modified.
	Snapshot() ([]byte, time.Time)
	IsStale() bool
	Reload() error
	ReloadIfStale() (bool, error)
}

type handle[C resource.Content] struct {
	name string
	s    *resource.Shared[C]

	// mu guards view, the byte form of text content. It is built once per
	// loaded version and dropped by a successful reload.
	mu     sync.RWMutex
	view   []byte
	viewed bool
}

func (h *handle[C]) Name() string        { return h.name }
func (h *handle[C]) Kind() resource.Kind { return resource.KindOf[C]() }
func (h *handle[C]) Mode() resource.Mode { return h.s.Mode() }
func (h *handle[C]) Path() string        { return h.s.Path() }
func (h *handle[C]) IsStale() bool       { return h.s.IsStale() }

func (h *handle[C]) Reload() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.s.Reload(); err != nil {
		return err
	}
	h.view, h.viewed = nil, false
	return nil
}

func (h *handle[C]) ReloadIfStale() (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	reloaded, err := h.s.ReloadIfStale()
	if reloaded {
		h.view, h.viewed = nil, false
	}
	return reloaded, err
}

// Snapshot returns byte content as stored. Text is converted on the first
// call after each load and the same slice is returned until the next one.
func (h *handle[C]) Snapshot() ([]byte, time.Time) {
	h.mu.RLock()
	c, mt := h.s.Snapshot()
	if b, ok := any(c).([]byte); ok {
		h.mu.RUnlock()
		return b, mt
	}
	if h.viewed {
		v := h.view
		h.mu.RUnlock()
		return v, mt
	}
	h.mu.RUnlock()

	h.mu.Lock()
	defer h.mu.Unlock()
	c, mt = h.s.Snapshot()
	if !h.viewed {
		h.view, h.viewed = []byte(c), true
	}
	return h.view, mt
}

// Registry maps names to entries. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func New() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Add registers r under name, replacing any previous entry.
func Add[C resource.Content](reg *Registry, name string, r *resource.Resource[C]) Entry {
	e := &handle[C]{name: name, s: resource.Share(r)}
	reg.mu.Lock()
	reg.entries[name] = e
	reg.mu.Unlock()
	return e
}

func (reg *Registry) Get(name string) (Entry, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	e, ok := reg.entries[name]
	return e, ok
}

func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.entries)
}

// Entries returns every entry sorted by name.
func (reg *Registry) Entries() []Entry {
	reg.mu.RLock()
	out := make([]Entry, 0, len(reg.entries))
	for _, e := range reg.entries {
		out = append(out, e)
	}
	reg.mu.RUnlock()
	slices.SortFunc(out, func(a, b Entry) int { return strings.Compare(a.Name(), b.Name()) })
	return out
}

func (reg *Registry) Names() []string {
	es := reg.Entries()
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.Name()
	}
	return out
}

// ByPath returns the file-backed entries whose absolute path is p.
func (reg *Registry) ByPath(p string) []Entry {
	var out []Entry
	for _, e := range reg.Entries() {
		if e.Path() == p {
			out = append(out, e)
		}
	}
	return out
}

// Paths returns the distinct absolute paths of file-backed entries.
func (reg *Registry) Paths() []string {
	var out []string
	for _, e := range reg.Entries() {
		if p := e.Path(); p != "" && !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	slices.Sort(out)
	return out
}

var textExts = map[string]bool{
	".txt": true, ".md": true, ".json": true, ".yaml": true, ".yml": true,
	".toml": true, ".csv": true, ".html": true, ".css": true, ".js": true,
	".svg": true, ".xml": true,
}

// KindFor picks the content kind for a resource name by extension. Unknown
// extensions load as bytes.
func KindFor(name string) resource.Kind {
	if textExts[strings.ToLower(path.Ext(name))] {
		return resource.KindText
	}
	return resource.KindBytes
}

// LoadTree registers every resource under dir, walking subdirectories and
// skipping hidden ones. Each directory is enumerated with Loader.List.
// Nothing is registered if any load fails.
func LoadTree(reg *Registry, l *resource.Loader, dir string) (int, error) {
	var names []string
	err := fs.WalkDir(l.Backend().FS(), dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && strings.HasPrefix(d.Name(), ".") {
			return fs.SkipDir
		}
		ents, err := l.List(p)
		if err != nil {
			return err
		}
		for _, e := range ents {
			names = append(names, e.Path)
		}
		return nil
	})
	if err != nil {
		return 0, xerrors.Wrapf(err, "walk %s", dir)
	}

	pending := make([]func(), 0, len(names))
	for _, name := range names {
		switch KindFor(name) {
		case resource.KindText:
			r, err := resource.Load[string](l, name)
			if err != nil {
				return 0, err
			}
			pending = append(pending, func() { Add(reg, name, r) })
		default:
			r, err := resource.Load[[]byte](l, name)
			if err != nil {
				return 0, err
			}
			pending = append(pending, func() { Add(reg, name, r) })
		}
	}
	for _, add := range pending {
		add()
	}
	return len(pending), nil
}
