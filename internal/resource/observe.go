package resource

import (
	"context"

	"github.com/keithlinneman/resource/internal/log"
)

// Metrics is implemented by the metrics package to observe resource
// activity. All methods must be safe for concurrent use.
type Metrics interface {
	ObserveLoad(mode Mode, kind Kind, size int, err error)
	ObserveStaleCheck(stale bool, err error)
	ObserveReload(kind Kind, size int, err error)
}

// hooks fans resource events out to a logger and a metrics sink. A nil
// *hooks is valid and does nothing, which is what Static and Open use.
type hooks struct {
	logger  log.Logger
	metrics Metrics
}

func newHooks(l log.Logger, m Metrics) *hooks {
	return &hooks{logger: log.OrNop(l), metrics: m}
}

func (h *hooks) loaded(mode Mode, kind Kind, name string, size int, err error) {
	if h == nil {
		return
	}
	if h.metrics != nil {
		h.metrics.ObserveLoad(mode, kind, size, err)
	}
	ctx := context.Background()
	if err != nil {
		h.logger.Error(ctx, err, "resource load failed", "name", name, "mode", mode.String(), "kind", kind.String())
		return
	}
	h.logger.Debug(ctx, "resource loaded", "name", name, "mode", mode.String(), "kind", kind.String(), "bytes", size)
}

func (h *hooks) staleChecked(path string, stale bool, err error) {
	if h == nil {
		return
	}
	if h.metrics != nil {
		h.metrics.ObserveStaleCheck(stale, err)
	}
	if err != nil {
		// no fresh signal; not evidence of change
		h.logger.Debug(context.Background(), "resource stat failed, treating as fresh", "path", path, "error", err)
	}
}

func (h *hooks) reloaded(kind Kind, path string, size int, err error) {
	if h == nil {
		return
	}
	if h.metrics != nil {
		h.metrics.ObserveReload(kind, size, err)
	}
	ctx := context.Background()
	if err != nil {
		h.logger.Error(ctx, err, "resource reload failed", "path", path)
		return
	}
	h.logger.Info(ctx, "resource reloaded", "path", path, "bytes", size)
}

func sizeOf(v any) int {
	switch c := v.(type) {
	case string:
		return len(c)
	case []byte:
		return len(c)
	}
	return 0
}
