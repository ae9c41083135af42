package resource

import (
	"context"
	"io/fs"

	"github.com/keithlinneman/resource/internal/log"
	"github.com/keithlinneman/resource/internal/pathutil"
	"github.com/keithlinneman/resource/internal/xerrors"
)

// BuildRoot is the default live-mode root, normally the project directory
// stamped at build time:
//
//	go build -ldflags "-X github.com/keithlinneman/resource/internal/resource.BuildRoot=$PWD/assets"
var BuildRoot string

type Options struct {
	// Mode picks the backend. ModeDefault uses DefaultMode.
	Mode Mode

	// Embedded is the //go:embed filesystem used in frozen mode.
	Embedded fs.FS

	// Root is the live-mode directory. Empty falls back to BuildRoot, then
	// the working directory.
	Root string

	// Require lists names that must resolve when the Loader is built, so a
	// missing resource stops the program at startup rather than at first use.
	Require []string

	Logger  log.Logger
	Metrics Metrics
}

// Loader is the accessor. Its backend is fixed at construction and shared
// by every load; handles it returns share nothing with each other.
type Loader struct {
	backend Backend
	hooks   *hooks
}

func New(opts Options) (*Loader, error) {
	mode := opts.Mode.Resolve()

	var b Backend
	switch mode {
	case ModeFrozen:
		if opts.Embedded == nil {
			return nil, xerrors.WithStack(ErrNoEmbedded)
		}
		b = NewEmbeddedBackend(opts.Embedded)
	case ModeLive:
		root := opts.Root
		if root == "" {
			root = BuildRoot
		}
		if root == "" {
			root = "."
		}
		fb, err := NewFileBackend(root)
		if err != nil {
			return nil, err
		}
		b = fb
	default:
		return nil, xerrors.Newf("%w %d", ErrUnknownMode, mode)
	}

	l := &Loader{backend: b, hooks: newHooks(opts.Logger, opts.Metrics)}
	for _, name := range opts.Require {
		if err := l.Check(name); err != nil {
			return nil, err
		}
	}

	kv := []any{"mode", mode.String(), "required", len(opts.Require)}
	if fb, ok := b.(*FileBackend); ok {
		kv = append(kv, "root", fb.Root())
	}
	l.hooks.logger.Info(context.Background(), "resource loader ready", kv...)
	return l, nil
}

func (l *Loader) Mode() Mode       { return l.backend.Mode() }
func (l *Loader) Backend() Backend { return l.backend }

// Check verifies that name addresses a regular file in the active backend
// without loading it.
func (l *Loader) Check(name string) error {
	if !pathutil.ValidName(name) {
		return xerrors.WithStack(&LoadError{Op: "check", Path: name, Err: ErrInvalidName})
	}
	info, err := fs.Stat(l.backend.FS(), name)
	if err != nil {
		return xerrors.WithStack(&LoadError{Op: "check", Path: name, Err: err})
	}
	if !info.Mode().IsRegular() {
		return xerrors.WithStack(&LoadError{Op: "check", Path: name, Err: fs.ErrInvalid})
	}
	return nil
}

// List enumerates a directory through the active backend.
func (l *Loader) List(dir string) ([]Entry, error) {
	return List(l.backend.FS(), dir)
}

// Load returns a handle for name using the Loader's backend.
func Load[C Content](l *Loader, name string) (*Resource[C], error) {
	kind := KindOf[C]()
	if !pathutil.ValidName(name) {
		err := &LoadError{Op: "load", Path: name, Err: ErrInvalidName}
		l.hooks.loaded(l.backend.Mode(), kind, name, 0, err)
		return nil, xerrors.WithStack(err)
	}
	v, file, err := l.backend.fetch(name, kind)
	if err != nil {
		l.hooks.loaded(l.backend.Mode(), kind, name, 0, err)
		return nil, xerrors.EnsureTrace(err)
	}
	l.hooks.loaded(l.backend.Mode(), kind, name, sizeOf(v), nil)
	return &Resource[C]{content: v.(C), file: file, hooks: l.hooks}, nil
}

// MustLoad is Load that panics, for resources the program cannot run without.
func MustLoad[C Content](l *Loader, name string) *Resource[C] {
	r, err := Load[C](l, name)
	if err != nil {
		panic(err)
	}
	return r
}

// Text loads name as UTF-8 text.
func (l *Loader) Text(name string) (*Resource[string], error) { return Load[string](l, name) }

// Bytes loads name as raw bytes.
func (l *Loader) Bytes(name string) (*Resource[[]byte], error) { return Load[[]byte](l, name) }

func (l *Loader) MustText(name string) *Resource[string]  { return MustLoad[string](l, name) }
func (l *Loader) MustBytes(name string) *Resource[[]byte] { return MustLoad[[]byte](l, name) }

// Texts loads names as text, in order.
func (l *Loader) Texts(names ...string) ([]*Resource[string], error) {
	return LoadArray[string](l, names)
}

// BytesArray loads names as bytes, in order.
func (l *Loader) BytesArray(names ...string) ([]*Resource[[]byte], error) {
	return LoadArray[[]byte](l, names)
}
