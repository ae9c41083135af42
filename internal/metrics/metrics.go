package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/keithlinneman/resource/internal/resource"
	"github.com/keithlinneman/resource/internal/version"
)

type ServerMetrics struct {
	reg             *prometheus.Registry
	handler         http.Handler
	inflight        prometheus.Gauge
	reqTotal        *prometheus.CounterVec
	reqDur          *prometheus.HistogramVec
	respBytes       *prometheus.HistogramVec
	errorsTotal     *prometheus.CounterVec
	httpPanicTotal  prometheus.Counter
	buildInfo       *prometheus.GaugeVec
	profilingActive prometheus.Gauge

	// resource metrics
	loadsTotal        *prometheus.CounterVec
	loadBytes         *prometheus.HistogramVec
	staleChecksTotal  *prometheus.CounterVec
	reloadsTotal      *prometheus.CounterVec
	resourcesServed   *prometheus.GaugeVec
	staleChecksDenied prometheus.Counter

	// watcher metrics
	watcherEventsTotal *prometheus.CounterVec
	watcherErrorsTotal prometheus.Counter

	rateLimitDenied prometheus.Counter
}

var _ resource.Metrics = (*ServerMetrics)(nil)

// New returns a fresh registry + standard collectors + HTTP metrics
// safe labels only (method, route, code) to avoid path/cardinality explosions
func New() *ServerMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	sizeBuckets := []float64{256, 1024, 4096, 16384, 65536, 262144, 1048576, 4194304, 16777216, 52428800}

	m := &ServerMetrics{
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Current number of in-flight HTTP requests",
		}),
		reqTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route, and status",
		}, []string{"method", "route", "status"}),
		reqDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request latency by method and route",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "route"}),
		respBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Response size by method and route",
			Buckets: sizeBuckets,
		}, []string{"method", "route"}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total 5xx HTTP server errors by method and route (SLI)",
		}, []string{"method", "route"}),
		httpPanicTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_panic_total",
			Help: "Total number of recovered httpserver panics",
		}),
		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build metadata (value is always 1)",
		}, []string{"app", "component", "version", "commit", "commit_date", "build_id", "build_date", "vcs_dirty", "go_version"}),
		profilingActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "profiling_active",
			Help: "Whether continuous profiling is active (1) or disabled/failed (0)",
		}),
		loadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "resource_loads_total",
			Help: "Resource loads by backend mode, content kind and result",
		}, []string{"mode", "kind", "result"}),
		loadBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "resource_load_bytes",
			Help:    "Size of successfully loaded or reloaded resources",
			Buckets: sizeBuckets,
		}, []string{"kind"}),
		staleChecksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "resource_stale_checks_total",
			Help: "Staleness checks by result (fresh, stale, error)",
		}, []string{"result"}),
		reloadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "resource_reloads_total",
			Help: "File-backed resource reloads by result",
		}, []string{"result"}),
		resourcesServed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "resource_registered",
			Help: "Resources registered with the server by mode",
		}, []string{"mode"}),
		staleChecksDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "resource_stale_checks_throttled_total",
			Help: "Requests served without a staleness check because the per-resource interval had not elapsed",
		}),
		watcherEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "resource_watcher_events_total",
			Help: "Reload watcher triggers by source (fsnotify, poll)",
		}, []string{"source"}),
		watcherErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "resource_watcher_errors_total",
			Help: "Errors reported by the file watcher",
		}),
		rateLimitDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_rate_limit_denied_total",
			Help: "Requests rejected by the per-client rate limiter",
		}),
	}
	reg.MustRegister(
		m.inflight,
		m.reqTotal,
		m.reqDur,
		m.respBytes,
		m.errorsTotal,
		m.httpPanicTotal,
		m.buildInfo,
		m.profilingActive,
		m.loadsTotal,
		m.loadBytes,
		m.staleChecksTotal,
		m.reloadsTotal,
		m.resourcesServed,
		m.staleChecksDenied,
		m.watcherEventsTotal,
		m.watcherErrorsTotal,
		m.rateLimitDenied,
	)

	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
	m.reg = reg
	return m
}

func (m *ServerMetrics) IncHttpPanic() {
	m.httpPanicTotal.Inc()
}

func (m *ServerMetrics) Handler() http.Handler {
	return m.handler
}

// set once at startup.
func (m *ServerMetrics) SetBuildInfoFromVersion(component string, vi version.Info) {
	dirty := "unknown"
	if vi.VCSDirty != nil {
		dirty = strconv.FormatBool(*vi.VCSDirty)
	}
	m.buildInfo.With(prometheus.Labels{
		"app":         vi.AppName,
		"component":   component,
		"version":     vi.Version,
		"commit":      vi.Commit,
		"commit_date": vi.CommitDate,
		"build_id":    vi.BuildId,
		"build_date":  vi.BuildDate,
		"go_version":  vi.GoVersion,
		"vcs_dirty":   dirty,
	}).Set(1)
}

func (m *ServerMetrics) SetProfilingActive(active bool) {
	if active {
		m.profilingActive.Set(1)
	} else {
		m.profilingActive.Set(0)
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *ServerMetrics) ObserveLoad(mode resource.Mode, kind resource.Kind, size int, err error) {
	m.loadsTotal.WithLabelValues(mode.String(), kind.String(), result(err)).Inc()
	if err == nil {
		m.loadBytes.WithLabelValues(kind.String()).Observe(float64(size))
	}
}

func (m *ServerMetrics) ObserveStaleCheck(stale bool, err error) {
	switch {
	case err != nil:
		m.staleChecksTotal.WithLabelValues("error").Inc()
	case stale:
		m.staleChecksTotal.WithLabelValues("stale").Inc()
	default:
		m.staleChecksTotal.WithLabelValues("fresh").Inc()
	}
}

func (m *ServerMetrics) ObserveReload(kind resource.Kind, size int, err error) {
	m.reloadsTotal.WithLabelValues(result(err)).Inc()
	if err == nil {
		m.loadBytes.WithLabelValues(kind.String()).Observe(float64(size))
	}
}

// SetRegistered records how many resources the server exposes.
func (m *ServerMetrics) SetRegistered(mode resource.Mode, n int) {
	m.resourcesServed.Reset()
	m.resourcesServed.WithLabelValues(mode.String()).Set(float64(n))
}

func (m *ServerMetrics) IncStaleCheckThrottled() {
	m.staleChecksDenied.Inc()
}

func (m *ServerMetrics) IncWatcherEvent(source string) {
	m.watcherEventsTotal.WithLabelValues(source).Inc()
}

func (m *ServerMetrics) IncWatcherError() {
	m.watcherErrorsTotal.Inc()
}

func (m *ServerMetrics) IncRateLimitDenied() {
	m.rateLimitDenied.Inc()
}
