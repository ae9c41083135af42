// Package transform holds content transforms for resource.Map and
// resource.TryMap. Each takes the borrowed content view and returns a value
// that shares nothing with it.
package transform

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/keithlinneman/resource/internal/xerrors"
)

// ReverseBytes returns b with its bytes in reverse order.
func ReverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[len(b)-1-i] = c
	}
	return out
}

// ReverseString reverses s rune by rune.
func ReverseString(s string) string {
	out := make([]byte, 0, len(s))
	for len(s) > 0 {
		r, size := utf8.DecodeLastRuneInString(s)
		out = utf8.AppendRune(out, r)
		s = s[:len(s)-size]
	}
	return string(out)
}

// Lines splits s on "\n", dropping a single trailing newline so that
// "a\nb\n" gives two lines.
func Lines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return []string{}
	}
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// Trim drops leading and trailing white space.
func Trim(s string) string { return strings.TrimSpace(s) }

// Bytes copies b, for callers that want to keep content past the handle.
func Bytes(b []byte) []byte { return bytes.Clone(b) }

var decoder = sync.OnceValues(func() (*zstd.Decoder, error) {
	return zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
})

// Zstd decompresses a zstd frame.
func Zstd(b []byte) ([]byte, error) {
	d, err := decoder()
	if err != nil {
		return nil, xerrors.Wrap(err, "zstd decoder")
	}
	out, err := d.DecodeAll(b, nil)
	if err != nil {
		return nil, xerrors.Wrap(err, "zstd decode")
	}
	return out, nil
}

// JSON returns a transform that decodes content into a T. Unknown fields
// are rejected.
func JSON[T any]() func([]byte) (T, error) {
	return func(b []byte) (T, error) {
		var v T
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&v); err != nil {
			return v, xerrors.Wrap(err, "decode json")
		}
		return v, nil
	}
}

// Msgpack returns a transform that decodes msgpack content into a T.
func Msgpack[T any]() func([]byte) (T, error) {
	return func(b []byte) (T, error) {
		var v T
		if err := msgpack.Unmarshal(b, &v); err != nil {
			return v, xerrors.Wrap(err, "decode msgpack")
		}
		return v, nil
	}
}

// Chain composes a fallible decode with a further fallible step, such as
// Zstd followed by Msgpack for .msgpack.zst resources.
func Chain[A, B, C any](f func(A) (B, error), g func(B) (C, error)) func(A) (C, error) {
	return func(a A) (C, error) {
		b, err := f(a)
		if err != nil {
			var zero C
			return zero, err
		}
		return g(b)
	}
}

// ByName picks a named transform for command-line use. It reports false
// for unknown names.
func ByName(name string) (func([]byte) ([]byte, error), bool) {
	switch name {
	case "", "none":
		return func(b []byte) ([]byte, error) { return b, nil }, true
	case "reverse":
		return func(b []byte) ([]byte, error) { return ReverseBytes(b), nil }, true
	case "trim":
		return func(b []byte) ([]byte, error) { return bytes.TrimSpace(b), nil }, true
	case "zstd":
		return Zstd, true
	}
	return nil, false
}
