package resource

import (
	"github.com/keithlinneman/resource/internal/xerrors"
)

// Batches are all-or-nothing: the first failing item aborts the batch with
// a *BatchError and no partial results. Output order always matches input
// order, and a repeated name yields independent values.

// Map loads name and returns f applied to its content. The handle is
// dropped; the result has no tie to it.
func Map[C Content, T any](l *Loader, name string, f func(C) T) (T, error) {
	r, err := Load[C](l, name)
	if err != nil {
		var zero T
		return zero, err
	}
	return f(r.content), nil
}

// TryMap is Map with a transform that can fail, such as decompression or
// decoding. A transform error is returned as is.
func TryMap[C Content, T any](l *Loader, name string, f func(C) (T, error)) (T, error) {
	r, err := Load[C](l, name)
	if err != nil {
		var zero T
		return zero, err
	}
	return f(r.content)
}

func Load2[C Content](l *Loader, a, b string) (*Resource[C], *Resource[C], error) {
	rs, err := loadBatch[C](l, []string{a, b})
	if err != nil {
		return nil, nil, err
	}
	return rs[0], rs[1], nil
}

func Load3[C Content](l *Loader, a, b, c string) (*Resource[C], *Resource[C], *Resource[C], error) {
	rs, err := loadBatch[C](l, []string{a, b, c})
	if err != nil {
		return nil, nil, nil, err
	}
	return rs[0], rs[1], rs[2], nil
}

func Load4[C Content](l *Loader, a, b, c, d string) (*Resource[C], *Resource[C], *Resource[C], *Resource[C], error) {
	rs, err := loadBatch[C](l, []string{a, b, c, d})
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return rs[0], rs[1], rs[2], rs[3], nil
}

func Map2[C Content, T any](l *Loader, f func(C) T, a, b string) (T, T, error) {
	vs, err := mapBatch(l, []string{a, b}, lift(f))
	if err != nil {
		var zero T
		return zero, zero, err
	}
	return vs[0], vs[1], nil
}

func Map3[C Content, T any](l *Loader, f func(C) T, a, b, c string) (T, T, T, error) {
	vs, err := mapBatch(l, []string{a, b, c}, lift(f))
	if err != nil {
		var zero T
		return zero, zero, zero, err
	}
	return vs[0], vs[1], vs[2], nil
}

func Map4[C Content, T any](l *Loader, f func(C) T, a, b, c, d string) (T, T, T, T, error) {
	vs, err := mapBatch(l, []string{a, b, c, d}, lift(f))
	if err != nil {
		var zero T
		return zero, zero, zero, zero, err
	}
	return vs[0], vs[1], vs[2], vs[3], nil
}

// LoadArray loads one handle per name. The result has exactly len(names)
// elements. Go has no length-generic arrays, so the array shape is a slice
// whose length is fixed by the caller's list and whose elements share one
// type; use Load2..Load4 for tuple-shaped results.
func LoadArray[C Content](l *Loader, names []string) ([]*Resource[C], error) {
	return loadBatch[C](l, names)
}

// MapArray applies f to each loaded content in order.
func MapArray[C Content, T any](l *Loader, names []string, f func(C) T) ([]T, error) {
	return mapBatch(l, names, lift(f))
}

// TryMapArray is MapArray with a fallible transform; a transform error
// aborts the batch like a load error.
func TryMapArray[C Content, T any](l *Loader, names []string, f func(C) (T, error)) ([]T, error) {
	return mapBatch(l, names, f)
}

func lift[C Content, T any](f func(C) T) func(C) (T, error) {
	return func(c C) (T, error) { return f(c), nil }
}

func loadBatch[C Content](l *Loader, names []string) ([]*Resource[C], error) {
	if len(names) == 0 {
		return nil, xerrors.WithStack(ErrEmptyBatch)
	}
	out := make([]*Resource[C], len(names))
	for i, name := range names {
		r, err := Load[C](l, name)
		if err != nil {
			return nil, &BatchError{Index: i, Name: name, Err: err}
		}
		out[i] = r
	}
	return out, nil
}

func mapBatch[C Content, T any](l *Loader, names []string, f func(C) (T, error)) ([]T, error) {
	if len(names) == 0 {
		return nil, xerrors.WithStack(ErrEmptyBatch)
	}
	out := make([]T, len(names))
	for i, name := range names {
		r, err := Load[C](l, name)
		if err != nil {
			return nil, &BatchError{Index: i, Name: name, Err: err}
		}
		v, err := f(r.content)
		if err != nil {
			return nil, &BatchError{Index: i, Name: name, Err: xerrors.Wrap(err, "transform")}
		}
		out[i] = v
	}
	return out, nil
}
