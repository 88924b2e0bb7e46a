// Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
//
// WSO2 LLC. licenses this file to you under the Apache License,
// Version 2.0 (the "License"); you may not use this file except
// in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied. See the License for the
// specific language governing permissions and limitations
// under the License.

package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/AnujaKalahara99/fusion-engine/internal/archive"
	"github.com/AnujaKalahara99/fusion-engine/internal/bus"
	"github.com/AnujaKalahara99/fusion-engine/internal/conflict"
	"github.com/AnujaKalahara99/fusion-engine/internal/fusion"
	"github.com/AnujaKalahara99/fusion-engine/internal/logging"
	"github.com/AnujaKalahara99/fusion-engine/internal/policy"
	"github.com/AnujaKalahara99/fusion-engine/internal/profile"
	"github.com/AnujaKalahara99/fusion-engine/internal/session"
	"github.com/AnujaKalahara99/fusion-engine/pkg/config"
	"github.com/AnujaKalahara99/fusion-engine/pkg/core"
	"github.com/AnujaKalahara99/fusion-engine/pkg/plugins"
	"github.com/AnujaKalahara99/fusion-engine/pkg/plugins/amqp"
	"github.com/AnujaKalahara99/fusion-engine/pkg/plugins/httppost"
	"github.com/AnujaKalahara99/fusion-engine/pkg/plugins/kafka"
	"github.com/AnujaKalahara99/fusion-engine/pkg/plugins/mqtt5"
	"github.com/AnujaKalahara99/fusion-engine/pkg/plugins/rabbitmq"
	"github.com/AnujaKalahara99/fusion-engine/pkg/plugins/sse"
	"github.com/AnujaKalahara99/fusion-engine/pkg/plugins/status"
	"github.com/AnujaKalahara99/fusion-engine/pkg/plugins/ws"
)

const shutdownTimeout = 10 * time.Second

func main() {
	bootstrap := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		bootstrap.Warn("failed to load .env", "error", err)
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = config.DefaultPath
	}

	cfg, err := config.Load(configPath)
	missing := errors.Is(err, fs.ErrNotExist)
	if missing {
		cfg, err = config.Default(), nil
	}
	if err != nil {
		bootstrap.Error("failed to load config", "path", configPath, "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	if missing {
		logger.Warn("config file not found, using defaults", "path", configPath)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("fusion engine failed", "error", err)
		os.Exit(1)
	}
}

func newLogger(lc config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: config.ParseLevel(lc.Level)}
	if strings.EqualFold(lc.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func run(cfg *config.Config, logger *slog.Logger) error {
	policies, err := cfg.Policies()
	if err != nil {
		return err
	}
	table, err := policy.NewTable(policies...)
	if err != nil {
		return err
	}
	engine := fusion.NewEngine(conflict.NewResolver(logger), fusion.WithLogger(logger))

	store, err := archive.NewStore(cfg.Archive)
	if err != nil {
		return err
	}
	defer store.Close()

	profiles, err := profile.NewStore(cfg.Profile.Path, cfg.Profile.Driver)
	if err != nil {
		return err
	}

	// The overflow handler fires only on publish, after mgr is set.
	var mgr *session.Manager
	events := bus.New("events",
		bus.WithValidator(core.ModalityEvent.Validate),
		bus.WithQueueSize[core.ModalityEvent](cfg.Bus.QueueSize),
		bus.WithOverflowHandler(func(o bus.Overflow[core.ModalityEvent]) { mgr.NoteOverflow(o) }),
		bus.WithLogger[core.ModalityEvent](logger.With("component", "bus")),
	)
	results := bus.New("results",
		bus.WithQueueSize[core.FusionResult](cfg.Bus.QueueSize),
		bus.WithLogger[core.FusionResult](logger.With("component", "bus")),
	)
	mgr = session.NewManager(table, engine, events, results, logger,
		session.WithProfiles(profiles),
		session.WithArchive(store),
		session.WithInboxSize(cfg.Bus.InboxSize),
	)

	registry := plugins.NewRegistry(logger)
	registerSources(cfg, registry, logger)
	registerSinks(cfg, registry, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connected := registry.ConnectSinks(ctx)
	logger.Info("sinks connected", "connected", connected, "total", len(registry.Sinks()))

	statusServer := status.New(cfg.Status.Port, mgr, logger,
		status.WithArchive(store),
		status.WithHealth(registry),
		status.WithBus(events.Name(), events.Stats),
		status.WithBus(results.Name(), results.Stats),
	)

	dispatcher := plugins.NewDispatcher(registry, results, logger)
	dispatcher.Subscribe()
	mgr.Subscribe()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return mgr.Run(gctx) })
	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error { return logging.NewTrafficLogger(logger).Run(gctx, events, results) })
	g.Go(func() error { return statusServer.Run(gctx) })
	g.Go(func() error {
		registry.RunSources(gctx, events)
		return nil
	})
	if cfg.Profile.Path != "" {
		watcher := profile.NewWatcher(profiles, cfg.Profile.ReloadInterval, logger)
		g.Go(func() error {
			watcher.Watch(gctx)
			return nil
		})
	}

	logger.Info("fusion engine started",
		"scenarios", table.Len(),
		"sources", len(registry.Sources()),
		"sinks", len(registry.Sinks()),
		"status_port", cfg.Status.Port,
	)

	<-gctx.Done()
	logger.Info("shutting down fusion engine")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	registry.StopAll(shutdownCtx)
	events.Close()
	results.Close()

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()
	select {
	case err = <-done:
	case <-shutdownCtx.Done():
		logger.Warn("shutdown budget exceeded")
		return nil
	}

	logger.Info("fusion engine stopped")
	return err
}

func registerSources(cfg *config.Config, reg *plugins.Registry, logger *slog.Logger) {
	for _, s := range cfg.Sources {
		switch s.Type {
		case "websocket":
			e := ws.New(s.Name, s.Port, logger)
			reg.RegisterSource(e)
			reg.RegisterSink(e)
		case "http_post":
			reg.RegisterSource(httppost.New(s.Name, s.Port, logger))
		case "mqtt5":
			reg.RegisterSource(mqtt5.New(s.Name, s.Config["broker"], s.Config["topic_in"], "", logger))
		case "kafka":
			reg.RegisterSource(kafka.New(
				s.Name, strings.Split(s.Config["brokers"], ","),
				s.Config["topic_in"], "",
				s.Config["group_id"],
				logger,
			))
		case "rabbitmq":
			reg.RegisterSource(rabbitmq.New(s.Name, s.Config["url"], s.Config["queue_in"], "", logger))
		case "amqp":
			reg.RegisterSource(amqp.New(s.Name, s.Config["url"], s.Config["queue_in"], "", logger))
		default:
			logger.Warn("unknown source type", "name", s.Name, "type", s.Type)
		}
	}
}

func registerSinks(cfg *config.Config, reg *plugins.Registry, logger *slog.Logger) {
	for _, s := range cfg.Sinks {
		switch s.Type {
		case "sse":
			reg.RegisterSink(sse.New(s.Name, s.Port, logger))
		case "mqtt5":
			reg.RegisterSink(mqtt5.New(s.Name, s.Config["broker"], "", s.Config["topic_out"], logger))
		case "kafka":
			reg.RegisterSink(kafka.New(
				s.Name, strings.Split(s.Config["brokers"], ","),
				"", s.Config["topic_out"],
				"",
				logger,
			))
		case "rabbitmq":
			reg.RegisterSink(rabbitmq.New(s.Name, s.Config["url"], "", s.Config["queue_out"], logger))
		case "amqp":
			reg.RegisterSink(amqp.New(s.Name, s.Config["url"], "", s.Config["queue_out"], logger))
		default:
			logger.Warn("unknown sink type", "name", s.Name, "type", s.Type)
		}
	}
}
