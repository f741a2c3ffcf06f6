// Package main provides the entry point for ns-server.
//
// ns-server manages a cluster node's identity: it discovers and
// persists the node address, brings up the communication layer, and
// serves the admin API for address changes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/minddrive/ns-server/internal/companion"
	"github.com/minddrive/ns-server/internal/configstore"
	"github.com/minddrive/ns-server/internal/infra/buildinfo"
	"github.com/minddrive/ns-server/internal/infra/confloader"
	"github.com/minddrive/ns-server/internal/infra/shutdown"
	"github.com/minddrive/ns-server/internal/node/addrstore"
	"github.com/minddrive/ns-server/internal/node/distnet"
	"github.com/minddrive/ns-server/internal/node/identity"
	"github.com/minddrive/ns-server/internal/node/peerwait"
	"github.com/minddrive/ns-server/internal/node/prober"
	"github.com/minddrive/ns-server/internal/node/rename"
	"github.com/minddrive/ns-server/internal/server/adminserver"
	"github.com/minddrive/ns-server/internal/server/config"
	"github.com/minddrive/ns-server/internal/telemetry/logger"
	"github.com/minddrive/ns-server/internal/telemetry/metric"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("ns-server %s\n", buildinfo.String())
		return nil
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, slogLogger, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	log.Info("starting ns-server",
		"version", buildinfo.Version,
		"node", cfg.Node.ShortName,
		"config", *configFile)

	reg := prometheus.NewRegistry()
	metrics := metric.NewNodeMetrics(reg)

	cfgStore, err := configstore.NewBadgerStore(configstore.BadgerConfig{
		Dir:        filepath.Join(cfg.Node.DataDir, "config"),
		SyncWrites: true,
		Logger:     slogLogger,
		Registerer: reg,
	})
	if err != nil {
		return fmt.Errorf("open config store: %w", err)
	}

	dncfg, err := config.ToDistnetConfig(cfg, slogLogger)
	if err != nil {
		cfgStore.Close()
		return fmt.Errorf("build layer config: %w", err)
	}
	layer := distnet.NewController(dncfg)

	addrStore := addrstore.New(cfg.Node.DataDir, slogLogger)
	if cfg.Node.Address != "" {
		// Operator-preset address, persisted before the identity
		// service first reads the slots.
		if err := addrStore.Save(cfg.Node.Address, true); err != nil {
			cfgStore.Close()
			return fmt.Errorf("save preset address: %w", err)
		}
	}

	marker := rename.NewMarker(cfg.Node.DataDir)
	renOpts := []rename.Option{rename.WithMetrics(metrics)}
	if cfg.Cluster.CompanionAddr != "" {
		renOpts = append(renOpts,
			rename.WithNotifier(companion.NewClient(cfg.Cluster.CompanionAddr, slogLogger)))
	}
	renamer := rename.New(cfgStore, configstore.NewLocalReplicator(), marker, slogLogger, renOpts...)

	node := identity.New(identity.Config{
		ShortName:    cfg.Node.ShortName,
		NodeNameFile: filepath.Join(cfg.Node.DataDir, "nodefile"),
		PeerAddr:     cfg.Cluster.PeerAddr,
	},
		addrStore,
		prober.New(slogLogger, prober.WithMetrics(metrics)),
		layer,
		peerwait.New(slogLogger),
		renamer,
		marker,
		slogLogger,
		metrics,
	)

	ctx := context.Background()
	if err := node.Start(ctx); err != nil {
		cfgStore.Close()
		return fmt.Errorf("start node identity: %w", err)
	}

	router := adminserver.NewRouter(&adminserver.RouterConfig{
		Node:      node,
		Logger:    slogLogger,
		Gatherer:  reg,
		RateLimit: cfg.Admin.RateLimit,
	})
	adminServer := adminserver.New(cfg.Admin.Addr, router)

	shutdownHandler := shutdown.NewHandler(30 * time.Second)

	// Reverse order of startup.
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("shutting down admin server")
		return adminServer.Shutdown(ctx)
	})
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("tearing down communication layer")
		if err := layer.Teardown(); err != nil && !errors.Is(err, distnet.ErrExternallyManaged) {
			return err
		}
		return nil
	})
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("closing config store")
		return cfgStore.Close()
	})

	if *configFile != "" {
		if err := watchConfig(*configFile, slogLogger, shutdownHandler); err != nil {
			log.Warn("config watch disabled", "error", err)
		}
	}

	go func() {
		log.Info("admin server listening", "addr", cfg.Admin.Addr)
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("admin server error", "error", err)
		}
	}()

	log.Info("node started", "name", node.NodeName())
	if err := shutdownHandler.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// loadConfig loads configuration from file and environment.
func loadConfig(configFile string) (*config.ServerConfig, error) {
	cfg := config.Default()

	opts := []confloader.Option{}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}

	loader := confloader.NewLoader(opts...)
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}

	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// initLogger initializes the structured logger. Returns both the
// logger interface and a slog.Logger for components that take one.
func initLogger(cfg *config.ServerConfig) (logger.Logger, *slog.Logger, error) {
	lcfg := logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	}

	log, err := logger.New(lcfg)
	if err != nil {
		return nil, nil, err
	}
	logger.SetDefault(log)

	slogLogger, err := logger.NewSlog(lcfg)
	if err != nil {
		return nil, nil, err
	}

	return log, slogLogger, nil
}

// watchConfig reloads the log level when the configuration file
// changes. Other settings require a restart.
func watchConfig(path string, slogLogger *slog.Logger, h *shutdown.Handler) error {
	watcher, err := confloader.NewWatcher(confloader.WithWatcherLogger(slogLogger))
	if err != nil {
		return err
	}

	watcher.OnChange(func(changed string) {
		cfg, err := loadConfig(changed)
		if err != nil {
			slogLogger.Warn("config reload failed", "path", changed, "error", err)
			return
		}
		logger.SetLevel(cfg.Log.Level)
		slogLogger.Info("log level reloaded", "level", cfg.Log.Level)
	})

	if err := watcher.Watch(path); err != nil {
		watcher.Stop()
		return err
	}
	watcher.StartAsync()

	h.OnShutdown(func(ctx context.Context) error {
		return watcher.Stop()
	})
	return nil
}
