package resourcehttp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/resource/internal/cryptoutil"
	"github.com/keithlinneman/resource/internal/registry"
	"github.com/keithlinneman/resource/internal/resource"
)

const strText = "This\nis\na\nstring\n"

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type throttleCounter struct{ n atomic.Int64 }

func (c *throttleCounter) IncStaleCheckThrottled() { c.n.Add(1) }

func write(t *testing.T, path, data string, mtime time.Time) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}
}

type fixture struct {
	dir     string
	api     *API
	public  http.Handler
	admin   http.Handler
	counter *throttleCounter
}

func liveFixture(t *testing.T, interval time.Duration) *fixture {
	t.Helper()
	dir := t.TempDir()
	write(t, filepath.Join(dir, "str.txt"), strText, base)
	write(t, filepath.Join(dir, "bytes.bin"), "01234", base)
	write(t, filepath.Join(dir, "strings", "string_a.txt"), "String A\n", base)

	l, err := resource.New(resource.Options{Mode: resource.ModeLive, Root: dir})
	if err != nil {
		t.Fatal(err)
	}
	return newFixture(t, dir, l, interval)
}

func newFixture(t *testing.T, dir string, l *resource.Loader, interval time.Duration) *fixture {
	t.Helper()
	reg := registry.New()
	if _, err := registry.LoadTree(reg, l, "."); err != nil {
		t.Fatal(err)
	}
	c := &throttleCounter{}
	api := New(Options{Registry: reg, Mode: l.Mode(), StaleCheckInterval: interval, Metrics: c})
	r := chi.NewRouter()
	api.RegisterRoutes(r)
	return &fixture{dir: dir, api: api, public: r, admin: api.AdminHandler(), counter: c}
}

func get(h http.Handler, path string, hdr ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", path, nil)
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func post(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", path, nil))
	return rec
}

// GET /r/*

func TestHandleResource_ServesText(t *testing.T) {
	f := liveFixture(t, 0)
	rec := get(f.public, "/r/str.txt")

	if rec.Code != http.StatusOK || rec.Body.String() != strText {
		t.Fatalf("status = %d body = %q", rec.Code, rec.Body.String())
	}
	h := rec.Header()
	if h.Get(ModeHeader) != "live" {
		t.Fatalf("%s = %q", ModeHeader, h.Get(ModeHeader))
	}
	if !strings.HasPrefix(h.Get("Content-Type"), "text/plain") {
		t.Fatalf("Content-Type = %q", h.Get("Content-Type"))
	}
	if h.Get("Last-Modified") != base.Format(http.TimeFormat) {
		t.Fatalf("Last-Modified = %q", h.Get("Last-Modified"))
	}
	if !strings.HasPrefix(h.Get("ETag"), `"sha256-`) {
		t.Fatalf("ETag = %q", h.Get("ETag"))
	}
}

func TestHandleResource_ServesBytesInSubdirs(t *testing.T) {
	f := liveFixture(t, 0)
	if rec := get(f.public, "/r/bytes.bin"); rec.Body.String() != "01234" || rec.Header().Get("Content-Type") == "" {
		t.Fatalf("bytes.bin: %q %q", rec.Body.String(), rec.Header().Get("Content-Type"))
	}
	if rec := get(f.public, "/r/strings/string_a.txt"); rec.Body.String() != "String A\n" {
		t.Fatalf("string_a: %q", rec.Body.String())
	}
}

func TestHandleResource_NotFound(t *testing.T) {
	f := liveFixture(t, 0)
	for _, p := range []string{"/r/missing.txt", "/r/../str.txt", "/r/strings//string_a.txt", "/r/"} {
		if rec := get(f.public, p); rec.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", p, rec.Code)
		}
	}
}

func TestHandleResource_ConditionalGet(t *testing.T) {
	f := liveFixture(t, 0)
	tag := get(f.public, "/r/str.txt").Header().Get("ETag")

	rec := get(f.public, "/r/str.txt", "If-None-Match", tag)
	if rec.Code != http.StatusNotModified || rec.Body.Len() != 0 {
		t.Fatalf("status = %d body = %q", rec.Code, rec.Body.String())
	}
	if rec := get(f.public, "/r/str.txt", "If-None-Match", `"sha256-other"`); rec.Code != http.StatusOK {
		t.Fatalf("mismatched tag: status = %d", rec.Code)
	}
}

func TestHandleResource_Head(t *testing.T) {
	f := liveFixture(t, 0)
	rec := httptest.NewRecorder()
	f.public.ServeHTTP(rec, httptest.NewRequest("HEAD", "/r/bytes.bin", nil))
	if rec.Code != http.StatusOK || rec.Body.Len() != 0 || rec.Header().Get("Content-Length") != "5" {
		t.Fatalf("status = %d body = %q length = %q", rec.Code, rec.Body.String(), rec.Header().Get("Content-Length"))
	}
}

func TestHandleResource_ReloadsStaleBeforeServing(t *testing.T) {
	f := liveFixture(t, 0)
	first := get(f.public, "/r/str.txt")

	write(t, filepath.Join(f.dir, "str.txt"), "edited\n", base.Add(time.Minute))
	rec := get(f.public, "/r/str.txt", "If-None-Match", first.Header().Get("ETag"))
	if rec.Code != http.StatusOK || rec.Body.String() != "edited\n" {
		t.Fatalf("status = %d body = %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("ETag") == first.Header().Get("ETag") {
		t.Fatal("ETag should change with content")
	}
}

func TestHandleResource_FailedReloadServesPrevious(t *testing.T) {
	f := liveFixture(t, 0)
	write(t, filepath.Join(f.dir, "str.txt"), "\xff\xfe", base.Add(time.Minute))

	rec := get(f.public, "/r/str.txt")
	if rec.Code != http.StatusOK || rec.Body.String() != strText {
		t.Fatalf("status = %d body = %q", rec.Code, rec.Body.String())
	}
}

func TestHandleResource_StaleCheckThrottled(t *testing.T) {
	f := liveFixture(t, time.Hour)
	get(f.public, "/r/str.txt")

	write(t, filepath.Join(f.dir, "str.txt"), "edited\n", base.Add(time.Minute))
	rec := get(f.public, "/r/str.txt")
	if rec.Body.String() != strText {
		t.Fatalf("throttled request should serve previous content, got %q", rec.Body.String())
	}
	if f.counter.n.Load() != 1 {
		t.Fatalf("throttled = %d, want 1", f.counter.n.Load())
	}

	// throttles are per entry
	if rec := get(f.public, "/r/bytes.bin"); rec.Code != http.StatusOK {
		t.Fatal(rec.Code)
	}
	if f.counter.n.Load() != 1 {
		t.Fatal("first request for another entry should not be throttled")
	}
}

func TestHandleResource_Frozen(t *testing.T) {
	l, err := resource.New(resource.Options{
		Mode:     resource.ModeFrozen,
		Embedded: fstest.MapFS{"str.txt": {Data: []byte(strText)}},
	})
	if err != nil {
		t.Fatal(err)
	}
	f := newFixture(t, "", l, 0)

	rec := get(f.public, "/r/str.txt")
	if rec.Body.String() != strText || rec.Header().Get(ModeHeader) != "frozen" {
		t.Fatalf("body = %q mode = %q", rec.Body.String(), rec.Header().Get(ModeHeader))
	}
	if rec.Header().Get("Last-Modified") != "" {
		t.Fatal("embedded content has no Last-Modified")
	}
}

// GET /api/resources

func TestHandleList(t *testing.T) {
	f := liveFixture(t, 0)
	write(t, filepath.Join(f.dir, "bytes.bin"), "43210", base.Add(time.Minute))

	rec := get(f.public, "/api/resources")
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		t.Fatalf("status = %d ct = %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	var resp ListResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Mode != "live" || resp.Count != 3 || len(resp.Resources) != 3 {
		t.Fatalf("resp = %+v", resp)
	}

	got := map[string]ResourceInfo{}
	for _, ri := range resp.Resources {
		got[ri.Name] = ri
	}
	b := got["bytes.bin"]
	if !b.Stale || b.Kind != "bytes" || b.Size != 5 || b.ModTime == nil || !b.ModTime.Equal(base) {
		t.Fatalf("bytes.bin = %+v", b)
	}
	if s := got["str.txt"]; s.Stale || s.Kind != "text" || s.Path != filepath.Join(f.dir, "str.txt") {
		t.Fatalf("str.txt = %+v", s)
	}

	// listing reports staleness without reloading
	if e, _ := f.api.reg.Get("bytes.bin"); !e.IsStale() {
		t.Fatal("list must not reload")
	}
}

// POST /api/reload/*

func TestHandleReload(t *testing.T) {
	f := liveFixture(t, time.Hour)
	get(f.public, "/r/strings/string_a.txt")

	// same mtime and size, different bytes: only a forced reload sees it
	write(t, filepath.Join(f.dir, "strings", "string_a.txt"), "String Z\n", base)
	rec := post(f.admin, "/api/reload/strings/string_a.txt")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var info ResourceInfo
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatal(err)
	}
	if info.Name != "strings/string_a.txt" || info.Stale {
		t.Fatalf("info = %+v", info)
	}

	served := get(f.public, "/r/strings/string_a.txt")
	if served.Body.String() != "String Z\n" {
		t.Fatalf("body = %q", served.Body.String())
	}
	if served.Header().Get("ETag") != info.ETag {
		t.Fatal("ETag should be recomputed after a forced reload")
	}
}

func TestHandleReload_BytesSameFingerprint(t *testing.T) {
	f := liveFixture(t, time.Hour)
	first := get(f.public, "/r/bytes.bin").Header().Get("ETag")

	write(t, filepath.Join(f.dir, "bytes.bin"), "43210", base)
	if rec := post(f.admin, "/api/reload/bytes.bin"); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	served := get(f.public, "/r/bytes.bin")
	if served.Body.String() != "43210" {
		t.Fatalf("body = %q", served.Body.String())
	}
	if tag := served.Header().Get("ETag"); tag == first || tag != cryptoutil.ETag([]byte("43210")) {
		t.Fatalf("ETag = %q, first = %q", tag, first)
	}
	if rec := get(f.public, "/r/bytes.bin", "If-None-Match", first); rec.Code != http.StatusOK {
		t.Fatalf("old ETag matched: status = %d", rec.Code)
	}
}

func TestHandleReload_Errors(t *testing.T) {
	f := liveFixture(t, 0)
	if rec := post(f.admin, "/api/reload/nope.txt"); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown: status = %d", rec.Code)
	}

	write(t, filepath.Join(f.dir, "str.txt"), "\xff", base.Add(time.Minute))
	if rec := post(f.admin, "/api/reload/str.txt"); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid UTF-8: status = %d", rec.Code)
	}

	if err := os.Remove(filepath.Join(f.dir, "bytes.bin")); err != nil {
		t.Fatal(err)
	}
	if rec := post(f.admin, "/api/reload/bytes.bin"); rec.Code != http.StatusInternalServerError {
		t.Fatalf("missing file: status = %d", rec.Code)
	}
	if rec := get(f.public, "/r/bytes.bin"); rec.Body.String() != "01234" {
		t.Fatalf("failed reload should keep content, got %q", rec.Body.String())
	}
}

func TestContentType(t *testing.T) {
	if got := contentType("blob", resource.KindBytes); got != "application/octet-stream" {
		t.Fatalf("bytes fallback = %q", got)
	}
	if got := contentType("README", resource.KindText); got != "text/plain; charset=utf-8" {
		t.Fatalf("text fallback = %q", got)
	}
	if got := contentType("config.json", resource.KindText); got != "application/json" {
		t.Fatalf("json = %q", got)
	}
}
