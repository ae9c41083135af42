package opshttp

import (
	"net/http"

	"github.com/keithlinneman/resource/internal/probe"
)

type Options struct {
	Port        int
	Metrics     http.Handler
	EnablePprof bool
	Health      probe.Probe
	Readiness   probe.Probe
	// Admin is mounted under /admin/ with the prefix stripped. The
	// resource reload endpoints live here.
	Admin        http.Handler
	UseRecoverMW bool
	OnPanic      func() // Optional callback for recovered panics, e.g. to increment a prometheus counter.
}
