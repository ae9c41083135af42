package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/keithlinneman/resource/internal/assets"
	"github.com/keithlinneman/resource/internal/cfg"
	"github.com/keithlinneman/resource/internal/httpserver"
	"github.com/keithlinneman/resource/internal/log"
	"github.com/keithlinneman/resource/internal/metrics"
	"github.com/keithlinneman/resource/internal/opshttp"
	"github.com/keithlinneman/resource/internal/otelx"
	"github.com/keithlinneman/resource/internal/probe"
	"github.com/keithlinneman/resource/internal/prof"
	"github.com/keithlinneman/resource/internal/ratelimit"
	"github.com/keithlinneman/resource/internal/registry"
	"github.com/keithlinneman/resource/internal/reloadwatch"
	"github.com/keithlinneman/resource/internal/resource"
	"github.com/keithlinneman/resource/internal/resourcehttp"
	v "github.com/keithlinneman/resource/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	vi := v.Get()

	var conf cfg.App
	var showVersion bool
	var drain time.Duration

	cfg.Register(flag.CommandLine, &conf)
	flag.BoolVar(&showVersion, "V", false, "Print version+build information and exit")
	flag.DurationVar(&drain, "drain", 5*time.Second, "time to fail readiness before stopping listeners")
	flag.Parse()

	if showVersion {
		fmt.Printf("%s default_mode=%s\n", vi, resource.DefaultMode)
		os.Exit(0)
	}

	cfg.FillFromEnv(flag.CommandLine, "RESOURCED_", func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})

	if err := cfg.Validate(conf); err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	lvl, err := log.ParseLevel(conf.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %s: %v\n", conf.LogLevel, err)
		os.Exit(1)
	}
	stackLvl, _ := log.ParseLevel(conf.StacktraceLevel)
	lg, err := log.New(log.Options{
		App:               v.AppName,
		Version:           v.Version,
		Level:             lvl,
		StacktraceLevel:   stackLvl,
		JsonFormat:        conf.LogJSON,
		MaxErrorLinks:     conf.MaxErrorLinks,
		IncludeErrorLinks: conf.IncludeErrorLinks,
		File:              conf.LogFile,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init error:", err)
		os.Exit(1)
	}
	defer lg.Sync()
	L := lg.With("component", "server")
	ctx = log.WithContext(ctx, L)

	// ParseMode was checked by Validate
	mode, _ := resource.ParseMode(conf.Mode)
	mode = mode.Resolve()

	L.Info(ctx, "initializing application",
		"version", vi.Version,
		"commit", vi.Commit,
		"build_id", vi.BuildId,
		"go_version", vi.GoVersion,
		"build_tags", vi.Tags,
		"mode", mode.String(),
		"root", conf.Root,
		"require", conf.Require,
		"watch", conf.Watch,
		"poll_interval", conf.PollInterval,
		"stale_check_interval", conf.StaleCheckInterval,
		"http_port", conf.HTTPPort,
		"admin_port", conf.AdminPort,
		"enable_pprof", conf.EnablePprof,
		"enable_pyroscope", conf.EnablePyroscope,
		"enable_tracing", conf.EnableTracing,
		"otlp_endpoint", conf.OTLPEndpoint,
		"trace_sample", conf.TraceSample,
	)

	stopProf, err := prof.Start(ctx, prof.Options{
		Enabled:       conf.EnablePyroscope,
		AppName:       v.AppName,
		ServerAddress: conf.PyroServer,
		TenantID:      conf.PyroTenantID,
		Tags: map[string]string{
			"app":       v.AppName,
			"component": "server",
			"version":   vi.Version,
			"commit":    vi.Commit,
			"mode":      mode.String(),
		},
	})
	profErr := err
	if err != nil {
		L.Error(ctx, err, "pyroscope start failed", "pyro_server", conf.PyroServer)
	}
	defer stopProf()

	// collector runs on localhost
	shutdownOTEL, err := otelx.Init(ctx, otelx.Options{
		Enabled:    conf.EnableTracing,
		Endpoint:   conf.OTLPEndpoint,
		Insecure:   true,
		Sample:     conf.TraceSample,
		Service:    v.AppName,
		Component:  "server",
		Version:    vi.Version,
		Attributes: map[string]string{"resource.mode": mode.String()},
	})
	if err != nil {
		L.Error(ctx, err, "otel init failed")
	}
	defer func() { _ = shutdownOTEL(context.Background()) }()

	m := metrics.New()
	m.SetBuildInfoFromVersion("server", vi)
	m.SetProfilingActive(conf.EnablePyroscope && profErr == nil)

	root := conf.Root
	if root == "" && resource.BuildRoot == "" {
		root = assets.SourceDir()
	}
	required := append(append([]string{}, assets.Required...), conf.RequiredNames()...)

	// a missing required resource is fatal here, before any listener opens
	loader, err := resource.New(resource.Options{
		Mode:     mode,
		Embedded: assets.FS(),
		Root:     root,
		Require:  required,
		Logger:   L,
		Metrics:  m,
	})
	if err != nil {
		L.Error(ctx, err, "failed to create resource loader")
		os.Exit(1)
	}

	reg := registry.New()
	n, err := registry.LoadTree(reg, loader, ".")
	if err != nil {
		L.Error(ctx, err, "failed to load resources")
		os.Exit(1)
	}
	m.SetRegistered(loader.Mode(), n)
	L.Info(ctx, "loaded resources", "count", n, "mode", loader.Mode().String())

	api := resourcehttp.New(resourcehttp.Options{
		Logger:             L,
		Registry:           reg,
		Mode:               loader.Mode(),
		StaleCheckInterval: conf.StaleCheckInterval,
		Metrics:            m,
	})

	var gate probe.ShutdownGate
	readiness := probe.Multi(
		gate.Probe(),
		probe.Resources(loader, required...),
	)

	// one log line per client per bucket lifetime, a counter per denial
	var rateLimitMW func(http.Handler) http.Handler
	if conf.RateLimit > 0 {
		limiter := ratelimit.New(
			ratelimit.WithRate(conf.RateLimit, conf.RateBurst),
			ratelimit.WithOnDenied(func(string) { m.IncRateLimitDenied() }),
			ratelimit.WithOnFirstDenied(func(ip string) {
				L.Warn(ctx, "rate limit triggered", "ip", ip)
			}),
		)
		rateLimitMW = limiter.Middleware
	}

	siteHTTPStop, err := httpserver.Start(ctx, httpserver.Options{
		Logger:       L,
		Port:         conf.HTTPPort,
		Health:       probe.Static(true, ""),
		Readiness:    readiness,
		Routes:       api.RegisterRoutes,
		UseRecoverMW: true,
		OnPanic:      m.IncHttpPanic,
		MetricsMW:    m.Middleware,
		RateLimitMW:  rateLimitMW,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start http listener")
		os.Exit(1)
	}
	defer func() { _ = siteHTTPStop(context.Background()) }()

	// ops port rejects public clients in middleware
	opsHTTPStop, err := opshttp.Start(ctx, L, opshttp.Options{
		Port:         conf.AdminPort,
		Metrics:      m.Handler(),
		EnablePprof:  conf.EnablePprof,
		Health:       probe.Static(true, ""),
		Readiness:    readiness,
		Admin:        api.AdminHandler(),
		UseRecoverMW: true,
		OnPanic:      m.IncHttpPanic,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start ops http listener")
		os.Exit(1)
	}
	defer func() { _ = opsHTTPStop(context.Background()) }()

	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()
	g, gctx := errgroup.WithContext(watchCtx)
	if loader.Mode() == resource.ModeLive {
		watcher := reloadwatch.New(reloadwatch.Options{
			Logger:       L,
			Registry:     reg,
			Notify:       conf.Watch,
			PollInterval: conf.PollInterval,
			Metrics:      m,
		})
		g.Go(func() error {
			err := watcher.Run(gctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				// serving continues on the content loaded at startup
				L.Error(gctx, err, "resource watcher stopped, live reload disabled")
			}
			return err
		})
	}

	if err := notifySystemd(); err != nil {
		L.Warn(ctx, "failed to notify systemd of readiness", "error", err)
	}

	<-ctx.Done()
	L.Info(context.Background(), "shutdown signal received")

	gate.Set("draining")
	L.Info(context.Background(), "shutdown gate closed", "drain", drain)

	forceCh := make(chan os.Signal, 1)
	signal.Notify(forceCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-time.After(drain):
		L.Info(context.Background(), "drain period complete")
	case <-forceCh:
		L.Warn(context.Background(), "second signal received, skipping drain")
	}
	signal.Stop(forceCh)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cancelWatch()
	_ = g.Wait()

	if err := siteHTTPStop(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "http server shutdown")
	}
	if err := opsHTTPStop(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "ops http server shutdown")
	}
	if err := shutdownOTEL(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "otel shutdown")
	}
	stopProf()

	L.Info(context.Background(), "shutdown complete")
	os.Exit(0)
}

func notifySystemd() error {
	// set when started under systemd with Type=notify
	addr := os.Getenv("NOTIFY_SOCKET")
	if addr == "" {
		return fmt.Errorf("NOTIFY_SOCKET not set, skipping systemd notify")
	}
	conn, err := net.Dial("unixgram", addr)
	if err != nil {
		return fmt.Errorf("systemd notify failed: dial failed: %w", err)
	}
	if _, err := conn.Write([]byte("READY=1")); err != nil {
		_ = conn.Close()
		return fmt.Errorf("systemd notify failed: write failed: %w", err)
	}
	if err := conn.Close(); err != nil {
		return fmt.Errorf("systemd notify failed: close failed: %w", err)
	}
	return nil
}
