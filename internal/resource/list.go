package resource

import (
	"io/fs"
	"path"
	"slices"
	"strings"

	"github.com/keithlinneman/resource/internal/pathutil"
	"github.com/keithlinneman/resource/internal/xerrors"
)

// Entry is one enumerated file: its base name and the resource name to
// load it by.
type Entry struct {
	Name string
	Path string
}

// List returns the regular, non-hidden files directly under dir, sorted by
// name. Subdirectories, symlinks and names starting with "." are skipped.
func List(fsys fs.FS, dir string) ([]Entry, error) {
	if !pathutil.ValidDir(dir) {
		return nil, xerrors.WithStack(&LoadError{Op: "list", Path: dir, Err: ErrInvalidName})
	}
	dirents, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, xerrors.WithStack(&LoadError{Op: "list", Path: dir, Err: err})
	}
	out := make([]Entry, 0, len(dirents))
	for _, d := range dirents {
		name := d.Name()
		if !d.Type().IsRegular() || strings.HasPrefix(name, ".") {
			continue
		}
		out = append(out, Entry{Name: name, Path: path.Join(dir, name)})
	}
	slices.SortFunc(out, func(a, b Entry) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

// Named pairs an enumerated file name with its handle.
type Named[C Content] struct {
	Name     string
	Resource *Resource[C]
}

// LoadDir lists dir through the Loader's backend and loads every entry,
// all-or-nothing. An empty directory gives an empty result.
func LoadDir[C Content](l *Loader, dir string) ([]Named[C], error) {
	entries, err := l.List(dir)
	if err != nil {
		return nil, err
	}
	out := make([]Named[C], 0, len(entries))
	for i, e := range entries {
		r, err := Load[C](l, e.Path)
		if err != nil {
			return nil, &BatchError{Index: i, Name: e.Path, Err: err}
		}
		out = append(out, Named[C]{Name: e.Name, Resource: r})
	}
	return out, nil
}
