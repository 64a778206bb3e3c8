package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"plancal/internal/config"
	appLog "plancal/internal/log"
	"plancal/internal/metrics"
	"plancal/internal/refresh"
	"plancal/internal/schedule"
	"plancal/internal/upstream"
	"plancal/internal/wallclock"
	"plancal/internal/web"
)

const version = "0.1.0"

type flagConfig struct {
	configPath string
	listen     string
	once       bool
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.SetOutput(os.Stderr, conf.Log.Pretty)
	appLog.SetLevel(appLog.ParseLevel(conf.Log.Level))
	appLog.Info("plancal starting", "version", version)
	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"upstream", conf.Upstream.BaseURL,
		"cache_backend", conf.Cache.Backend,
		"refresh", conf.RefreshCron,
		"warm_targets", len(conf.Warm),
		"once", flags.once,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, conf, flags.once); err != nil {
		appLog.Error("plancal exited with error", err)
		os.Exit(1)
	}
	appLog.Info("plancal exiting")
}

func run(ctx context.Context, conf *config.Config, once bool) error {
	oracle, err := wallclock.NewLocationOracle(conf.Timezone)
	if err != nil {
		return err
	}
	conv := wallclock.NewConverter(oracle)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewCollector(reg)

	cache, closeCache := openCache(ctx, conf.Cache)
	defer closeCache()

	fetcher := upstream.NewFetcher(upstream.Options{
		BaseURL:       conf.Upstream.BaseURL,
		UserAgent:     conf.Upstream.UserAgent,
		Timeout:       conf.Upstream.Timeout,
		MaxBodyBytes:  conf.Upstream.MaxBodyBytes,
		RatePerSecond: conf.Upstream.RatePerSecond,
		Burst:         conf.Upstream.Burst,
		TTLs: upstream.TTLs{
			Groupings: conf.Cache.TTL.Groupings,
			Headers:   conf.Cache.TTL.Headers,
			Schedule:  conf.Cache.TTL.Schedule,
		},
	}, cache, rec)
	svc := schedule.NewService(fetcher, conv, rec)

	targets, err := refresh.TargetsFromConfig(conf.Warm)
	if err != nil {
		return err
	}
	var pruner upstream.Pruner
	if p, ok := cache.(upstream.Pruner); ok {
		pruner = p
	}
	warmer := refresh.NewWarmer(svc, targets, pruner)

	if once {
		return warmer.RunOnce(ctx)
	}

	stopRefresh, err := warmer.Start(ctx, conf.RefreshCron, oracle.Location())
	if err != nil {
		return err
	}
	defer stopRefresh()

	opts := web.Options{
		Service:   svc,
		Converter: conv,
		Status: schedule.StatusPolicy{
			UpcomingInclusive: conf.ItemStatus.UpcomingInclusive,
			EndExclusive:      conf.ItemStatus.EndExclusive,
		},
		BasicAuth:   conf.BasicAuth,
		CalendarTTL: conf.Cache.TTL.Schedule,
	}
	if !conf.DisableMetrics {
		opts.Metrics = metrics.Handler(reg)
	}

	srv := &http.Server{
		Addr:              conf.Listen,
		Handler:           web.NewServer(opts).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      conf.Upstream.Timeout + 15*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		appLog.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openCache builds the configured cache backend. The returned func releases
// it.
func openCache(ctx context.Context, c config.CacheConfig) (upstream.Cache, func()) {
	switch c.Backend {
	case config.CacheRedis:
		rc := upstream.NewRedisCache(ctx, upstream.RedisOptions{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
		})
		return rc, func() {
			if err := rc.Close(); err != nil {
				appLog.Warn("closing redis cache", "err", err.Error())
			}
		}
	case config.CacheNone:
		return nil, func() {}
	default:
		appLog.Info("using disk cache", "dir", c.Dir)
		return upstream.NewDiskCache(c.Dir), func() {}
	}
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/plancal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one cache warm-up pass and exit")

	flag.Parse()

	return cfg
}
