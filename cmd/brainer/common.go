package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/thedartagnan/brainer/internal/config"
	"github.com/thedartagnan/brainer/internal/logging"
	"github.com/thedartagnan/brainer/internal/metrics"
	"github.com/thedartagnan/brainer/internal/observability"
)

// loadConfig applies config precedence in three layers: defaults, then
// config file, then environment.
func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		var err error
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	config.LoadFromEnv(cfg)
	return cfg, nil
}

// initObservability wires logging, tracing, and metrics for serviceName,
// returning a shutdown func to defer.
func initObservability(cfg *config.Config, serviceName string) (func(), error) {
	logging.SetLevelFromString(cfg.Daemon.LogLevel)
	logging.InitStructured(cfg.Observability.Logging.Format, cfg.Observability.Logging.Level)

	tracingCfg := cfg.Observability.Tracing
	if tracingCfg.ServiceName == "" {
		tracingCfg.ServiceName = serviceName
	}
	if err := observability.Init(context.Background(), observability.Config{
		Enabled:     tracingCfg.Enabled,
		Exporter:    tracingCfg.Exporter,
		Endpoint:    tracingCfg.Endpoint,
		ServiceName: tracingCfg.ServiceName,
		SampleRate:  tracingCfg.SampleRate,
	}); err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	var metricsServer *http.Server
	if cfg.Observability.Metrics.Enabled {
		metrics.Init(cfg.Observability.Metrics.Namespace)
		if cfg.Observability.Metrics.HTTPAddr != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			metricsServer = &http.Server{Addr: cfg.Observability.Metrics.HTTPAddr, Handler: mux}
			go func() {
				if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logging.Op().Error("metrics server failed", "error", err)
				}
			}()
		}
	}

	return func() {
		if metricsServer != nil {
			metricsServer.Close()
		}
		observability.Shutdown(context.Background())
	}, nil
}
