package resource

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidName  = errors.New("invalid resource name")
	ErrInvalidUTF8  = errors.New("content is not valid UTF-8")
	ErrUnknownKind  = errors.New("unknown content kind")
	ErrNoEmbedded   = errors.New("frozen mode requires an embedded filesystem")
	ErrEmptyBatch   = errors.New("batch has no names")
	ErrUnknownMode  = errors.New("unknown mode")
	ErrNotDirectory = errors.New("not a directory")
)

// LoadError reports a failed load, reload or decode of one resource. Path is
// the resource name for embedded content and the absolute file path for
// file-backed content.
type LoadError struct {
	Op   string
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("resource %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// BatchError reports which element of an ordered batch failed. No partial
// results are returned alongside it.
type BatchError struct {
	Index int
	Name  string
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch item %d (%s): %v", e.Index, e.Name, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }
