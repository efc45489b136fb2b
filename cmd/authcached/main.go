/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Command authcached serves the credential verification API on top of a bounded verifier cache.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/acronis/go-authcache/boundedcache"
	"github.com/acronis/go-authcache/config"
	"github.com/acronis/go-authcache/credential"
	"github.com/acronis/go-authcache/internal/authapi"
	"github.com/acronis/go-authcache/internal/cachestats"
	"github.com/acronis/go-authcache/internal/libinfo"
	"github.com/acronis/go-authcache/log"
	"github.com/acronis/go-authcache/profserver"
	"github.com/acronis/go-authcache/service"
	"github.com/acronis/go-authcache/subjectstore"
)

const envVarsPrefix = "AUTHCACHE"

const metricsNamespace = "authcache"

type appConfig struct {
	Log        *log.Config
	Cache      *boundedcache.Config
	Credential *credential.Config
	Server     *authapi.Config
	Stats      *cachestats.Config
	Profiling  *profserver.Config
}

func (c *appConfig) all() []config.Config {
	return []config.Config{c.Log, c.Cache, c.Credential, c.Server, c.Stats, c.Profiling}
}

func main() {
	configPath := pflag.StringP("config", "c", "", "path to the YAML configuration file")
	printVersion := pflag.Bool("version", false, "print version and exit")
	pflag.Parse()

	if *printVersion {
		fmt.Println(libinfo.Version())
		return
	}

	if err := run(context.Background(), *configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*appConfig, error) {
	cfg := &appConfig{
		Log:        log.NewConfig(),
		Cache:      boundedcache.NewConfig(""),
		Credential: credential.NewConfig(),
		Server:     authapi.NewConfig(),
		Stats:      cachestats.NewConfig(),
		Profiling:  profserver.NewConfig(),
	}
	cfgs := cfg.all()
	loader := config.NewDefaultLoader(envVarsPrefix)
	var err error
	if path == "" {
		err = loader.LoadDefaults(cfgs[0], cfgs[1:]...)
	} else {
		err = loader.LoadFromFile(path, config.DataTypeYAML, cfgs[0], cfgs[1:]...)
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger, closeLogger := log.NewLogger(cfg.Log)
	defer closeLogger()
	logger.Info("starting authcached", log.String("version", libinfo.Version()))

	store, err := subjectstore.OpenFileStore(cfg.Credential.StorePath)
	if err != nil {
		logger.Error("failed to open credential store", log.String("path", cfg.Credential.StorePath), log.Error(err))
		return err
	}
	logger.Info("credential store opened", log.String("path", cfg.Credential.StorePath), log.Int("subjects", store.Len()))

	constLabels := libinfo.AddPrometheusVersionLabel(nil)
	cacheMetrics := boundedcache.NewPrometheusMetricsWithOpts(boundedcache.PrometheusMetricsOpts{
		Namespace:   metricsNamespace,
		ConstLabels: constLabels,
	})
	apiMetrics := authapi.NewMetricsWithOpts(authapi.MetricsOpts{
		Namespace:   metricsNamespace,
		ConstLabels: constLabels,
	})
	cacheMetrics.MustRegister()
	defer cacheMetrics.Unregister()
	apiMetrics.MustRegister()
	defer apiMetrics.Unregister()

	cache, err := boundedcache.NewWithOpts[string, *credential.Verifier](
		cfg.Cache.MaxEntries, cacheMetrics, boundedcache.Options[string, *credential.Verifier]{
			OnEvicted: func(subject string, _ *boundedcache.Entry[*credential.Verifier]) {
				logger.Debug("verifier evicted", log.Subject(subject))
			},
		})
	if err != nil {
		return fmt.Errorf("create verifier cache: %w", err)
	}

	registryOpts := cfg.Credential.RegistryOpts()
	registryOpts.Logger = logger
	registry := credential.NewRegistry(cache, store, registryOpts)

	router, err := authapi.NewRouter(cfg.Server, registry, logger, authapi.RouterOpts{
		Metrics:        apiMetrics,
		MetricsHandler: promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{}),
	})
	if err != nil {
		return fmt.Errorf("create router: %w", err)
	}

	units := []service.Unit{authapi.NewServer(cfg.Server, router, logger, nil)}
	if statsUnit := cachestats.NewUnit(cfg.Stats, registry, logger); statsUnit != nil {
		units = append(units, statsUnit)
	}
	if cfg.Profiling.Enabled {
		units = append(units, profserver.New(cfg.Profiling, logger, nil))
	}
	return service.Run(ctx, logger, service.NewCompositeUnit(units...))
}
