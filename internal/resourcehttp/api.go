// Package resourcehttp serves registered resources over HTTP. Request
// traffic is one of the triggers that asks a live entry whether it is
// stale; the check is throttled per entry.
package resourcehttp

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"path"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/keithlinneman/resource/internal/cryptoutil"
	"github.com/keithlinneman/resource/internal/httpmw"
	"github.com/keithlinneman/resource/internal/log"
	"github.com/keithlinneman/resource/internal/pathutil"
	"github.com/keithlinneman/resource/internal/registry"
	"github.com/keithlinneman/resource/internal/resource"
)

const tracerName = "github.com/keithlinneman/resource/internal/resourcehttp"

// ModeHeader reports whether a response came from embedded or file-backed
// content.
const ModeHeader = "X-Resource-Mode"

// API implements the resource endpoints.
type API struct {
	reg      *registry.Registry
	mode     resource.Mode
	logger   log.Logger
	interval time.Duration
	metrics  Metrics
	etags    *etagCache

	mu        sync.Mutex
	throttles map[string]*rate.Sometimes
}

func New(opts Options) *API {
	return &API{
		reg:       opts.Registry,
		mode:      opts.Mode,
		logger:    log.OrNop(opts.Logger),
		interval:  opts.StaleCheckInterval,
		metrics:   opts.Metrics,
		etags:     newETagCache(opts.ETagCacheSize, opts.ETagTTL),
		throttles: make(map[string]*rate.Sometimes),
	}
}

// RegisterRoutes attaches the read-only endpoints to the public router.
func (api *API) RegisterRoutes(r chi.Router) {
	r.With(httpmw.Scope("resource")).Get("/r/*", api.HandleResource)
	r.With(httpmw.Scope("resource")).Head("/r/*", api.HandleResource)
	r.With(httpmw.Scope("list")).Get("/api/resources", api.HandleList)
}

// AdminHandler serves the list and the forced reload endpoint. It is meant
// for the ops listener.
func (api *API) AdminHandler() http.Handler {
	r := chi.NewRouter()
	r.Get("/api/resources", api.HandleList)
	r.Post("/api/reload/*", api.HandleReload)
	return r
}

// ResourceInfo describes one registered entry.
type ResourceInfo struct {
	Name    string     `json:"name"`
	Kind    string     `json:"kind"`
	Mode    string     `json:"mode"`
	Path    string     `json:"path,omitempty"`
	ModTime *time.Time `json:"mod_time,omitempty"`
	Stale   bool       `json:"stale"`
	Size    int        `json:"size"`
	ETag    string     `json:"etag"`
}

// ListResponse is the body of GET /api/resources.
type ListResponse struct {
	Mode       string         `json:"mode"`
	Count      int            `json:"count"`
	Resources  []ResourceInfo `json:"resources"`
	ServerTime time.Time      `json:"server_time"`
}

type errorResponse struct {
	Error    string `json:"error"`
	Resource string `json:"resource,omitempty"`
}

// HandleResource serves one entry's bytes. A live entry is checked for
// staleness first, at most once per StaleCheckInterval.
func (api *API) HandleResource(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "*")

	if !pathutil.ValidName(name) {
		http.NotFound(w, r)
		return
	}
	e, ok := api.reg.Get(name)
	if !ok {
		http.NotFound(w, r)
		return
	}

	api.maybeRefresh(ctx, e)

	data, modTime := e.Snapshot()
	tag := api.etags.get(name, data, modTime)

	h := w.Header()
	h.Set(ModeHeader, e.Mode().String())
	h.Set("ETag", tag)
	h.Set("Cache-Control", "no-cache")
	if e.Mode() == resource.ModeLive {
		h.Set("Last-Modified", modTime.UTC().Format(http.TimeFormat))
	}

	if cryptoutil.ETagMatch(r.Header.Get("If-None-Match"), tag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	h.Set("Content-Type", contentType(name, e.Kind()))
	h.Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(data)
}

// maybeRefresh runs ReloadIfStale on a live entry, throttled per entry. A
// failed reload is logged and the previous content keeps being served.
func (api *API) maybeRefresh(ctx context.Context, e registry.Entry) {
	if e.Mode() != resource.ModeLive {
		return
	}

	ran := false
	check := func() {
		ran = true
		api.refresh(ctx, e)
	}
	if api.interval <= 0 {
		check()
		return
	}
	api.throttle(e.Name()).Do(check)
	if !ran && api.metrics != nil {
		api.metrics.IncStaleCheckThrottled()
	}
}

func (api *API) refresh(ctx context.Context, e registry.Entry) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "resource.refresh",
		trace.WithAttributes(attribute.String("resource.name", e.Name())),
	)
	defer span.End()

	reloaded, err := e.ReloadIfStale()
	span.SetAttributes(attribute.Bool("resource.reloaded", reloaded))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reload failed")
		log.FromContext(ctx).Error(ctx, err, "stale resource reload failed, serving previous content",
			"resource", e.Name(),
		)
		return
	}
	if reloaded {
		log.FromContext(ctx).Info(ctx, "stale resource reloaded", "resource", e.Name())
	}
}

func (api *API) throttle(name string) *rate.Sometimes {
	api.mu.Lock()
	defer api.mu.Unlock()
	s, ok := api.throttles[name]
	if !ok {
		s = &rate.Sometimes{Interval: api.interval}
		api.throttles[name] = s
	}
	return s
}

// HandleList reports every registered entry and whether it is stale. It
// does not reload anything.
func (api *API) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entries := api.reg.Entries()
	resp := ListResponse{
		Mode:       api.mode.String(),
		Count:      len(entries),
		Resources:  make([]ResourceInfo, 0, len(entries)),
		ServerTime: time.Now().UTC().Truncate(time.Second),
	}
	for _, e := range entries {
		resp.Resources = append(resp.Resources, api.info(e))
	}
	api.writeJSON(ctx, w, http.StatusOK, resp)
}

// HandleReload forces a reload of one entry regardless of staleness.
func (api *API) HandleReload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "*")

	e, ok := api.reg.Get(name)
	if !pathutil.ValidName(name) || !ok {
		api.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Error: "resource not registered", Resource: name})
		return
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "resource.reload",
		trace.WithAttributes(attribute.String("resource.name", name)),
	)
	defer span.End()

	if err := e.Reload(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reload failed")
		api.logger.Error(ctx, err, "forced reload failed", "resource", name)
		status := http.StatusInternalServerError
		if errors.Is(err, resource.ErrInvalidUTF8) {
			status = http.StatusUnprocessableEntity
		}
		api.writeJSON(ctx, w, status, errorResponse{Error: err.Error(), Resource: name})
		return
	}

	api.logger.Info(ctx, "forced reload", "resource", name)
	api.writeJSON(ctx, w, http.StatusOK, api.info(e))
}

func (api *API) info(e registry.Entry) ResourceInfo {
	data, modTime := e.Snapshot()
	info := ResourceInfo{
		Name:  e.Name(),
		Kind:  e.Kind().String(),
		Mode:  e.Mode().String(),
		Path:  e.Path(),
		Stale: e.IsStale(),
		Size:  len(data),
		ETag:  api.etags.get(e.Name(), data, modTime),
	}
	if e.Mode() == resource.ModeLive {
		mt := modTime.UTC()
		info.ModTime = &mt
	}
	return info
}

func (api *API) writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		api.logger.Warn(ctx, "failed to encode JSON response", "error", err)
	}
}

// contentType picks a media type by extension; text entries fall back to
// text/plain and byte entries to application/octet-stream.
func contentType(name string, kind resource.Kind) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	if kind == resource.KindText {
		return "text/plain; charset=utf-8"
	}
	return "application/octet-stream"
}
