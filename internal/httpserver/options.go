package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/resource/internal/log"
	"github.com/keithlinneman/resource/internal/probe"
)

type Options struct {
	Logger       log.Logger
	Port         int
	UseRecoverMW bool
	OnPanic      func()
	MetricsMW    func(http.Handler) http.Handler
	// RateLimitMW wraps the application routes only; probes are exempt.
	RateLimitMW func(http.Handler) http.Handler
	Health      probe.Probe
	Readiness   probe.Probe
	// Routes registers the application routes on the public router.
	Routes func(chi.Router)
}
