package resource

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"
	"unsafe"

	"github.com/google/go-cmp/cmp"
)

func TestModeParity_SameContentBothBackends(t *testing.T) {
	dir, mfs := fixture(t)
	live := liveLoader(t, dir)
	frozen := frozenLoader(t, mfs)

	for _, name := range []string{"str.txt", "bytes.bin", "nested/deep.txt"} {
		lb := live.MustBytes(name)
		fb := frozen.MustBytes(name)
		if diff := cmp.Diff(fb.Content(), lb.Content()); diff != "" {
			t.Errorf("%s bytes differ across modes (-frozen +live):\n%s", name, diff)
		}
	}

	lt := live.MustText("str.txt")
	ft := frozen.MustText("str.txt")
	if lt.Content() != ft.Content() || lt.Content() != strText {
		t.Fatalf("text differs: live=%q frozen=%q", lt.Content(), ft.Content())
	}
}

func TestScenario_StrTxt(t *testing.T) {
	dir, mfs := fixture(t)

	live := liveLoader(t, dir)
	a := live.MustText("str.txt")
	b := live.MustText("str.txt")
	if !a.Equal(strText) || !b.Equal(strText) {
		t.Fatalf("live content = %q", a.Content())
	}
	if a.IsEmbedded() || a.Path() != filepath.Join(dir, "str.txt") {
		t.Fatalf("live handle path = %q, embedded = %v", a.Path(), a.IsEmbedded())
	}
	if !a.Cow().IsOwned() {
		t.Fatal("file-backed content should be owned")
	}

	frozen := frozenLoader(t, mfs)
	x := frozen.MustText("str.txt")
	y := frozen.MustText("str.txt")
	if unsafe.StringData(x.Content()) != unsafe.StringData(y.Content()) {
		t.Fatal("embedded loads of one name should share storage")
	}
	if !x.IsEmbedded() || x.Path() != "" || !x.ModTime().IsZero() {
		t.Fatal("embedded handle should have no file state")
	}
	cow := x.Cow()
	if !cow.IsBorrowed() || !cow.Equal(a.Content()) {
		t.Fatalf("embedded cow = %+v", cow)
	}
}

func TestScenario_BytesReverse(t *testing.T) {
	dir, mfs := fixture(t)
	reverse := func(b []byte) []byte {
		out := make([]byte, len(b))
		for i, c := range b {
			out[len(b)-1-i] = c
		}
		return out
	}
	want := []byte{52, 51, 50, 49, 48}

	for _, l := range []*Loader{liveLoader(t, dir), frozenLoader(t, mfs)} {
		got, err := Map(l, "bytes.bin", reverse)
		if err != nil {
			t.Fatalf("Map(%s): %v", l.Mode(), err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("%s reversed bytes (-want +got):\n%s", l.Mode(), diff)
		}
	}
}

func TestEmbedded_NeverStaleAndReloadNoop(t *testing.T) {
	dir, mfs := fixture(t)
	r := frozenLoader(t, mfs).MustText("str.txt")

	// touching the disk copy has no bearing on embedded content
	writeFile(t, filepath.Join(dir, "str.txt"), []byte("changed"), base.Add(time.Hour))

	if r.IsStale() {
		t.Fatal("embedded handle reported stale")
	}
	if err := r.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	reloaded, err := r.ReloadIfStale()
	if err != nil || reloaded {
		t.Fatalf("ReloadIfStale = %v, %v", reloaded, err)
	}
	if r.Content() != strText {
		t.Fatalf("content changed to %q", r.Content())
	}
}

func TestStatic(t *testing.T) {
	r := Static(strText)
	if !r.IsEmbedded() || r.Mode() != ModeFrozen || r.IsStale() {
		t.Fatal("Static handle should behave as embedded")
	}
	r.MustReload()
	if r.MustReloadIfStale() {
		t.Fatal("Static handle should never reload")
	}
	if r.Len() != len(strText) {
		t.Fatalf("Len = %d", r.Len())
	}
}

func TestIsStale_DetectsNewerMtime(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	writeFile(t, path, []byte("Old"), base)

	r, err := Open[string](path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !r.ModTime().Equal(base) {
		t.Fatalf("ModTime = %v, want %v", r.ModTime(), base)
	}
	if r.IsStale() {
		t.Fatal("fresh handle reported stale")
	}

	writeFile(t, path, []byte("New"), base.Add(10*time.Second))
	if !r.IsStale() {
		t.Fatal("rewrite with newer mtime should be stale")
	}
	if r.Content() != "Old" {
		t.Fatal("IsStale must not change content")
	}
}

func TestIsStale_SameMtimeNotStale(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	writeFile(t, path, []byte("Old"), base)
	r, err := Open[string](path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	writeFile(t, path, []byte("Old"), base)
	if r.IsStale() {
		t.Fatal("unchanged mtime should not be stale")
	}
}

func TestIsStale_MissingFileIsFresh(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	writeFile(t, path, []byte("Old"), base)
	r, err := Open[[]byte](path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if r.IsStale() {
		t.Fatal("stat failure should not report stale")
	}
	reloaded, err := r.ReloadIfStale()
	if reloaded || err != nil {
		t.Fatalf("ReloadIfStale = %v, %v", reloaded, err)
	}
}

func TestReload_UpdatesContentAndFingerprint(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), []byte("Old"), base)
	m := &recordingMetrics{}
	l := liveLoader(t, dir, func(o *Options) { o.Metrics = m })
	r := l.MustText("a.txt")

	newer := base.Add(10 * time.Second)
	writeFile(t, filepath.Join(dir, "a.txt"), []byte("New"), newer)
	if err := r.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if r.Content() != "New" {
		t.Fatalf("content = %q", r.Content())
	}
	if !r.ModTime().Equal(newer) {
		t.Fatalf("ModTime = %v, want %v", r.ModTime(), newer)
	}
	if r.IsStale() {
		t.Fatal("reloaded handle should be fresh")
	}

	want := []event{
		{op: "load", mode: ModeLive, kind: KindText, size: 3},
		{op: "reload", kind: KindText, size: 3},
		{op: "stale"},
	}
	if diff := cmp.Diff(want, m.snapshot(), cmp.AllowUnexported(event{})); diff != "" {
		t.Fatalf("metrics events (-want +got):\n%s", diff)
	}
}

func TestReload_FailureKeepsState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	writeFile(t, path, []byte("Old"), base)
	r, err := Open[string](path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	err = r.Reload()
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("Reload err = %v, want not-exist", err)
	}
	var le *LoadError
	if !errors.As(err, &le) || le.Op != "reload" || le.Path != path {
		t.Fatalf("LoadError = %+v", le)
	}
	if r.Content() != "Old" || !r.ModTime().Equal(base) {
		t.Fatal("failed reload must leave content and fingerprint untouched")
	}
}

func TestReload_InvalidUTF8KeepsState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	writeFile(t, path, []byte("Old"), base)
	r, err := Open[string](path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	writeFile(t, path, []byte{0xff, 0xfe}, base.Add(time.Second))

	reloaded, err := r.ReloadIfStale()
	if reloaded || !errors.Is(err, ErrInvalidUTF8) {
		t.Fatalf("ReloadIfStale = %v, %v", reloaded, err)
	}
	if r.Content() != "Old" || !r.ModTime().Equal(base) {
		t.Fatal("failed reload must leave content and fingerprint untouched")
	}
	if !r.IsStale() {
		t.Fatal("handle should still be stale after a failed reload")
	}
}

func TestReloadIfStale_MatchesIsStale(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	writeFile(t, path, []byte("Old"), base)
	r, err := Open[string](path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	reloaded, err := r.ReloadIfStale()
	if err != nil || reloaded || r.Content() != "Old" {
		t.Fatalf("fresh ReloadIfStale = %v, %v, %q", reloaded, err, r.Content())
	}

	writeFile(t, path, []byte("New"), base.Add(time.Minute))
	reloaded, err = r.ReloadIfStale()
	if err != nil || !reloaded || r.Content() != "New" {
		t.Fatalf("stale ReloadIfStale = %v, %v, %q", reloaded, err, r.Content())
	}
	if r.MustReloadIfStale() {
		t.Fatal("second call should find the handle fresh")
	}
}

func TestEpochFingerprint_ReloadsOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	writeFile(t, path, []byte("Old"), base)

	// a handle whose initial stat failed carries Epoch
	r := &Resource[string]{content: "Old", file: &fileState{path: path, modTime: Epoch()}}
	if !r.IsStale() {
		t.Fatal("Epoch fingerprint should read as stale once the file is visible")
	}
	if !r.MustReloadIfStale() {
		t.Fatal("expected one reload")
	}
	if !r.ModTime().Equal(base) || r.IsStale() {
		t.Fatalf("after reload ModTime = %v, stale = %v", r.ModTime(), r.IsStale())
	}
}

func TestEpoch_Fixed(t *testing.T) {
	if e := Epoch(); e.Unix() != 0 || e.Location() != time.UTC {
		t.Fatalf("Epoch() = %v, want unix 0 UTC", e)
	}
	// callers get a copy; nothing they hold can move the sentinel
	e := Epoch()
	e = e.Add(time.Hour)
	if !Epoch().Equal(time.Unix(0, 0)) || e.Equal(Epoch()) {
		t.Fatalf("Epoch() = %v after caller change", Epoch())
	}
}

func TestMustReload_Panics(t *testing.T) {
	r := &Resource[string]{file: &fileState{path: filepath.Join(t.TempDir(), "gone")}}
	defer func() {
		if recover() == nil {
			t.Fatal("MustReload should panic on failure")
		}
	}()
	r.MustReload()
}

func TestClone_Independent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.bin")
	writeFile(t, path, []byte{1, 2, 3}, base)
	r, err := Open[[]byte](path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	c := r.Clone()
	c.Content()[0] = 9
	if r.Content()[0] != 1 {
		t.Fatal("clone shares its byte buffer with the original")
	}

	writeFile(t, path, []byte{4, 5}, base.Add(time.Second))
	if err := c.Reload(); err != nil {
		t.Fatal(err)
	}
	if !r.IsStale() || !r.ModTime().Equal(base) {
		t.Fatal("reloading the clone must not touch the original")
	}
}

func TestOpen_Errors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Open[string](filepath.Join(dir, "missing")); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("missing file err = %v", err)
	}
	path := filepath.Join(dir, "bad.txt")
	writeFile(t, path, []byte{0xc3, 0x28}, base)
	if _, err := Open[string](path); !errors.Is(err, ErrInvalidUTF8) {
		t.Fatalf("invalid utf-8 err = %v", err)
	}
	r, err := Open[[]byte](path)
	if err != nil || r.Len() != 2 {
		t.Fatalf("bytes load of non-utf8 = %v, %v", r, err)
	}
}

func TestEmptyFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "empty"), nil, base)
	r, err := Open[[]byte](filepath.Join(dir, "empty"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if r.Content() == nil || r.Len() != 0 {
		t.Fatalf("empty file content = %#v", r.Content())
	}
}
