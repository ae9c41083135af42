package resource

import (
	"unicode/utf8"
)

// Content is the set of content kinds a Resource can hold: text, which is
// validated as UTF-8 on load, and raw bytes.
type Content interface {
	string | []byte
}

// Kind names a content kind at runtime.
type Kind uint8

const (
	KindText Kind = iota + 1
	KindBytes
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindBytes:
		return "bytes"
	default:
		return "unknown"
	}
}

// KindOf reports the Kind for the type parameter C.
func KindOf[C Content]() Kind {
	var zero C
	if _, ok := any(zero).(string); ok {
		return KindText
	}
	return KindBytes
}

// decode turns raw file bytes into the value stored for kind. raw is owned by
// the caller after the call only for KindText.
func decode(kind Kind, name string, raw []byte) (any, error) {
	switch kind {
	case KindText:
		if !utf8.Valid(raw) {
			return nil, &LoadError{Op: "decode", Path: name, Err: ErrInvalidUTF8}
		}
		return string(raw), nil
	case KindBytes:
		if raw == nil {
			raw = []byte{}
		}
		return raw, nil
	default:
		return nil, &LoadError{Op: "decode", Path: name, Err: ErrUnknownKind}
	}
}

// clone copies byte content; strings are immutable and returned as is.
func clone[C Content](v C) C {
	if b, ok := any(v).([]byte); ok {
		return any(append([]byte(nil), b...)).(C)
	}
	return v
}
