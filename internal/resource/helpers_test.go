package resource

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"testing/fstest"
	"time"
)

const strText = "This\nis\na\nstring\n"

var binBytes = []byte{48, 49, 50, 51, 52}

// base is a fixed past mtime so tests can move timestamps forward without
// depending on filesystem clock granularity.
var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func writeFile(t *testing.T, path string, data []byte, mtime time.Time) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}

// fixture lays out the same files on disk and in a MapFS.
func fixture(t *testing.T) (string, fstest.MapFS) {
	t.Helper()
	dir := t.TempDir()
	files := map[string][]byte{
		"str.txt":          []byte(strText),
		"bytes.bin":        binBytes,
		"string_a.txt":     []byte("String A\n"),
		"string_b.txt":     []byte("String B\n"),
		"string_c.txt":     []byte("String C\n"),
		"nested/deep.txt":  []byte("deep\n"),
		"nested/.hidden":   []byte("hidden\n"),
		"nested/other.txt": []byte("other\n"),
	}
	mfs := fstest.MapFS{}
	for name, data := range files {
		writeFile(t, filepath.Join(dir, filepath.FromSlash(name)), data, base)
		mfs[name] = &fstest.MapFile{Data: data, ModTime: base}
	}
	return dir, mfs
}

func liveLoader(t *testing.T, root string, opts ...func(*Options)) *Loader {
	t.Helper()
	o := Options{Mode: ModeLive, Root: root}
	for _, f := range opts {
		f(&o)
	}
	l, err := New(o)
	if err != nil {
		t.Fatalf("New(live): %v", err)
	}
	return l
}

func frozenLoader(t *testing.T, fsys fstest.MapFS, opts ...func(*Options)) *Loader {
	t.Helper()
	o := Options{Mode: ModeFrozen, Embedded: fsys}
	for _, f := range opts {
		f(&o)
	}
	l, err := New(o)
	if err != nil {
		t.Fatalf("New(frozen): %v", err)
	}
	return l
}

type event struct {
	op    string
	mode  Mode
	kind  Kind
	size  int
	stale bool
	err   bool
}

type recordingMetrics struct {
	mu     sync.Mutex
	events []event
}

func (m *recordingMetrics) ObserveLoad(mode Mode, kind Kind, size int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event{op: "load", mode: mode, kind: kind, size: size, err: err != nil})
}

func (m *recordingMetrics) ObserveStaleCheck(stale bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event{op: "stale", stale: stale, err: err != nil})
}

func (m *recordingMetrics) ObserveReload(kind Kind, size int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event{op: "reload", kind: kind, size: size, err: err != nil})
}

func (m *recordingMetrics) snapshot() []event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]event(nil), m.events...)
}
