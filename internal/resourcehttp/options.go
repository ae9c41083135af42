package resourcehttp

import (
	"time"

	"github.com/keithlinneman/resource/internal/log"
	"github.com/keithlinneman/resource/internal/registry"
	"github.com/keithlinneman/resource/internal/resource"
)

// Metrics is implemented by the metrics package.
type Metrics interface {
	IncStaleCheckThrottled()
}

type Options struct {
	Logger   log.Logger
	Registry *registry.Registry
	// Mode is the loader's mode, reported by the list endpoint.
	Mode resource.Mode
	// StaleCheckInterval bounds how often one entry is checked for
	// staleness by request traffic. Zero checks on every request.
	StaleCheckInterval time.Duration
	// ETagCacheSize and ETagTTL size the content digest cache.
	ETagCacheSize int
	ETagTTL       time.Duration
	Metrics       Metrics
}

const (
	DefaultETagCacheSize = 1024
	DefaultETagTTL       = 10 * time.Minute
)
