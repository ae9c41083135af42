package resource

import (
	"bytes"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/keithlinneman/resource/internal/xerrors"
)

var epoch = time.Unix(0, 0).UTC()

// Epoch is the fingerprint recorded when a file was read but its
// modification time could not be queried. It differs from every real
// timestamp, so the next successful IsStale reports stale and the handle
// reloads once: a bias toward reloading, never toward serving stale data.
func Epoch() time.Time { return epoch }

// Backend is the storage strategy behind a Loader, chosen once when the
// Loader is built. Implementations live in this package.
type Backend interface {
	Mode() Mode
	// FS exposes the backend's tree for enumeration with List.
	FS() fs.FS
	fetch(name string, kind Kind) (value any, file *fileState, err error)
}

// fileState is the live-mode half of a handle. path never changes; a reload
// swaps in a new fileState rather than editing this one.
type fileState struct {
	path    string
	modTime time.Time
}

// EmbeddedBackend serves content from a filesystem captured with
// //go:embed. Each (name, kind) is decoded once into a table that lives as
// long as the backend. Text loads of a name share one string; byte loads
// each get a private copy of the decoded table entry.
type EmbeddedBackend struct {
	fsys fs.FS

	mu    sync.Mutex
	table map[tableKey]any
}

type tableKey struct {
	name string
	kind Kind
}

func NewEmbeddedBackend(fsys fs.FS) *EmbeddedBackend {
	return &EmbeddedBackend{fsys: fsys, table: make(map[tableKey]any)}
}

func (b *EmbeddedBackend) Mode() Mode { return ModeFrozen }
func (b *EmbeddedBackend) FS() fs.FS  { return b.fsys }

func (b *EmbeddedBackend) fetch(name string, kind Kind) (any, *fileState, error) {
	key := tableKey{name: name, kind: kind}

	b.mu.Lock()
	defer b.mu.Unlock()

	if v, ok := b.table[key]; ok {
		return private(v), nil, nil
	}
	raw, err := fs.ReadFile(b.fsys, name)
	if err != nil {
		return nil, nil, &LoadError{Op: "load", Path: name, Err: err}
	}
	v, err := decode(kind, name, raw)
	if err != nil {
		return nil, nil, err
	}
	b.table[key] = v
	return private(v), nil, nil
}

// private returns a value a caller may mutate without touching the table.
func private(v any) any {
	if p, ok := v.([]byte); ok {
		return bytes.Clone(p)
	}
	return v
}

// FileBackend resolves names under a root directory and reads them on
// every load.
type FileBackend struct {
	root string
}

// NewFileBackend makes root absolute and checks that it is a directory.
func NewFileBackend(root string) (*FileBackend, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, xerrors.Wrapf(err, "resolve resource root %s", root)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, xerrors.Wrapf(err, "resource root %s", abs)
	}
	if !info.IsDir() {
		return nil, xerrors.Newf("resource root %s: %w", abs, ErrNotDirectory)
	}
	return &FileBackend{root: abs}, nil
}

func (b *FileBackend) Mode() Mode   { return ModeLive }
func (b *FileBackend) FS() fs.FS    { return os.DirFS(b.root) }
func (b *FileBackend) Root() string { return b.root }

// Resolve returns the absolute path for a resource name.
func (b *FileBackend) Resolve(name string) string {
	return filepath.Join(b.root, filepath.FromSlash(name))
}

func (b *FileBackend) fetch(name string, kind Kind) (any, *fileState, error) {
	path := b.Resolve(name)
	v, modTime, err := readFile(kind, "load", path)
	if err != nil {
		return nil, nil, err
	}
	return v, &fileState{path: path, modTime: modTime}, nil
}

// readFile reads path fully and decodes it. The fingerprint is taken from
// the open file before reading, so a write racing the read can only make
// the handle look stale, never fresh. Nothing is returned unless the read
// and decode both succeed.
func readFile(kind Kind, op, path string) (any, time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, time.Time{}, &LoadError{Op: op, Path: path, Err: err}
	}
	defer f.Close()

	modTime := epoch
	if info, err := f.Stat(); err == nil {
		modTime = info.ModTime()
	}

	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, time.Time{}, &LoadError{Op: op, Path: path, Err: err}
	}
	v, err := decode(kind, path, raw)
	if err != nil {
		return nil, time.Time{}, err
	}
	return v, modTime, nil
}
