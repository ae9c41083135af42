package resource

import (
	"os"
	"path/filepath"
	"time"

	"github.com/keithlinneman/resource/internal/xerrors"
)

// Resource is a handle over one loaded text or byte buffer. The same
// methods work whether the content is embedded or file-backed.
//
// A Resource is not safe for concurrent use when one goroutine may call
// Reload or ReloadIfStale; wrap it with Share for that.
type Resource[C Content] struct {
	content C
	file    *fileState // nil for embedded content
	hooks   *hooks
}

// Static wraps content that lives for the whole process, typically a
// string or []byte variable initialized by //go:embed. It never fails.
func Static[C Content](content C) *Resource[C] {
	return &Resource[C]{content: content}
}

// Open loads a file-backed resource from path without a Loader. Relative
// paths are made absolute against the working directory.
func Open[C Content](path string) (*Resource[C], error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, xerrors.Wrapf(err, "resolve %s", path)
	}
	v, modTime, err := readFile(KindOf[C](), "load", abs)
	if err != nil {
		return nil, xerrors.EnsureTrace(err)
	}
	return &Resource[C]{content: v.(C), file: &fileState{path: abs, modTime: modTime}}, nil
}

// Content returns the current buffer. Byte content is shared with the
// handle (and, when embedded, with every other handle for the same name)
// and must not be modified.
func (r *Resource[C]) Content() C { return r.content }

// Len is the content length in bytes.
func (r *Resource[C]) Len() int { return len(r.content) }

// Equal reports whether the content equals v.
func (r *Resource[C]) Equal(v C) bool { return string(r.content) == string(v) }

func (r *Resource[C]) IsEmbedded() bool { return r.file == nil }

func (r *Resource[C]) Mode() Mode {
	if r.file == nil {
		return ModeFrozen
	}
	return ModeLive
}

// Path is the absolute source path, or "" for embedded content.
func (r *Resource[C]) Path() string {
	if r.file == nil {
		return ""
	}
	return r.file.path
}

// ModTime is the fingerprint from the most recent load: the file's
// modification time, Epoch if it could not be queried, or the zero time for
// embedded content.
func (r *Resource[C]) ModTime() time.Time {
	if r.file == nil {
		return time.Time{}
	}
	return r.file.modTime
}

// IsStale re-queries the file's modification time and reports whether it
// differs from the fingerprint. Embedded content is never stale. If the
// query fails (file removed, permissions changed) the answer is false:
// without a fresh signal there is no evidence of change.
func (r *Resource[C]) IsStale() bool {
	if r.file == nil {
		return false
	}
	info, err := os.Stat(r.file.path)
	stale := err == nil && !info.ModTime().Equal(r.file.modTime)
	r.hooks.staleChecked(r.file.path, stale, err)
	return stale
}

// Reload re-reads a file-backed resource unconditionally, replacing content
// and fingerprint together. On error both are left as they were. Reload of
// embedded content is a no-op.
func (r *Resource[C]) Reload() error {
	if r.file == nil {
		return nil
	}
	kind := KindOf[C]()
	path := r.file.path
	v, modTime, err := readFile(kind, "reload", path)
	if err != nil {
		r.hooks.reloaded(kind, path, 0, err)
		return xerrors.EnsureTrace(err)
	}
	r.content = v.(C)
	r.file = &fileState{path: path, modTime: modTime}
	r.hooks.reloaded(kind, path, len(r.content), nil)
	return nil
}

// ReloadIfStale checks staleness once and, if stale, reloads once. It
// reports whether the content was replaced. Staleness is not re-checked
// after the reload.
func (r *Resource[C]) ReloadIfStale() (bool, error) {
	if !r.IsStale() {
		return false, nil
	}
	if err := r.Reload(); err != nil {
		return false, err
	}
	return true, nil
}

// MustReload is Reload that panics on failure.
func (r *Resource[C]) MustReload() {
	if err := r.Reload(); err != nil {
		panic(err)
	}
}

// MustReloadIfStale is ReloadIfStale that panics on failure.
func (r *Resource[C]) MustReloadIfStale() bool {
	reloaded, err := r.ReloadIfStale()
	if err != nil {
		panic(err)
	}
	return reloaded
}

// Clone returns an independent handle. Byte content of file-backed
// resources is deep-copied; embedded content keeps pointing at the same
// process-lifetime storage.
func (r *Resource[C]) Clone() *Resource[C] {
	c := &Resource[C]{content: r.content, hooks: r.hooks}
	if r.file != nil {
		st := *r.file
		c.file = &st
		c.content = clone(r.content)
	}
	return c
}

// Cow consumes the handle: embedded content comes back borrowed,
// file-backed content comes back owned. Don't use the handle afterwards.
func (r *Resource[C]) Cow() Cow[C] {
	if r.file == nil {
		return Borrowed(r.content)
	}
	return Owned(r.content)
}
