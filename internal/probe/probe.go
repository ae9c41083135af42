// Package probe holds the liveness and readiness checks served on the ops
// listener and the handlers that expose them.
package probe

import (
	"context"
	"sync/atomic"

	"github.com/keithlinneman/resource/internal/xerrors"
)

// Probe is evaluated at request time
// nil = OK non-nil = FAIL with reason.
type Probe interface{ Check(context.Context) error }

// Func adapts a function into a Probe.
type Func func(context.Context) error

func (f Func) Check(ctx context.Context) error { return f(ctx) }

// Static returns a probe that always returns ok or fails with the given reason
func Static(ok bool, reason string) Func {
	if ok {
		return func(context.Context) error { return nil }
	}
	if reason == "" {
		reason = "unhealthy"
	}
	return func(context.Context) error { return xerrors.New(reason) }
}

// Multi is AND: passes only if all probes pass; returns the first error.
func Multi(ps ...Probe) Func {
	return func(ctx context.Context) error {
		for _, p := range ps {
			if p == nil {
				continue
			}
			if err := p.Check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

// NameChecker reports whether a named resource can currently be loaded.
// *resource.Loader satisfies it.
type NameChecker interface {
	Check(name string) error
}

// Resources fails while any of names cannot be resolved through c. In live
// mode this catches files removed from under a running server.
func Resources(c NameChecker, names ...string) Func {
	return func(ctx context.Context) error {
		if c == nil {
			return xerrors.New("no resource loader")
		}
		for _, name := range names {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := c.Check(name); err != nil {
				return xerrors.Wrapf(err, "resource %q", name)
			}
		}
		return nil
	}
}

// ShutdownGate flips readiness to false during drain/shutdown.
type ShutdownGate struct {
	draining atomic.Bool
	reason   atomic.Value
}

func (g *ShutdownGate) Set(reason string) {
	g.draining.Store(true)
	g.reason.Store(reason)
}
func (g *ShutdownGate) Clear() {
	g.draining.Store(false)
	g.reason.Store("")
}
func (g *ShutdownGate) Probe() Func {
	return func(context.Context) error {
		if !g.draining.Load() {
			return nil
		}
		r, _ := g.reason.Load().(string)
		if r == "" {
			r = "draining"
		}
		return xerrors.New(r)
	}
}
