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

package plugins

import (
	"context"
	"log/slog"
	"sync"

	"github.com/AnujaKalahara99/fusion-engine/pkg/core"
)

// Registry owns the perception sources and result sinks.
type Registry struct {
	sources map[string]core.Source
	sinks   map[string]core.Sink
	healthy map[string]bool
	logger  *slog.Logger
	mu      sync.RWMutex
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		sources: make(map[string]core.Source),
		sinks:   make(map[string]core.Sink),
		healthy: make(map[string]bool),
		logger:  logger.With("component", "plugins"),
	}
}

func (r *Registry) RegisterSource(s core.Source) {
	r.mu.Lock()
	r.sources[s.Name()] = s
	r.mu.Unlock()
	r.logger.Info("registered source", "name", s.Name(), "type", s.Type())
}

func (r *Registry) RegisterSink(s core.Sink) {
	r.mu.Lock()
	r.sinks[s.Name()] = s
	r.mu.Unlock()
	r.logger.Info("registered sink", "name", s.Name(), "type", s.Type())
}

func (r *Registry) Sources() map[string]core.Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cp := make(map[string]core.Source, len(r.sources))
	for k, v := range r.sources {
		cp[k] = v
	}
	return cp
}

func (r *Registry) Sinks() map[string]core.Sink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cp := make(map[string]core.Sink, len(r.sinks))
	for k, v := range r.sinks {
		cp[k] = v
	}
	return cp
}

// ConnectSinks connects every sink and returns how many succeeded.
// Failed sinks stay registered but are reported unhealthy.
func (r *Registry) ConnectSinks(ctx context.Context) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	connected := 0
	for name, s := range r.sinks {
		if err := s.Connect(ctx); err != nil {
			r.logger.Error("sink connect failed", "name", name, "error", err)
			r.healthy[name] = false
		} else {
			r.healthy[name] = true
			connected++
		}
	}
	return connected
}

func (r *Registry) IsSinkHealthy(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.healthy[name]
}

// Health reports the connection state of every sink.
func (r *Registry) Health() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cp := make(map[string]bool, len(r.sinks))
	for name := range r.sinks {
		cp[name] = r.healthy[name]
	}
	return cp
}

// RunSources starts every source and blocks until all of them return.
// A failing source is logged; the others keep running.
func (r *Registry) RunSources(ctx context.Context, pub core.Publisher) {
	var wg sync.WaitGroup
	for name, src := range r.Sources() {
		wg.Add(1)
		go func(n string, s core.Source) {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					r.logger.Error("source panic recovered", "name", n, "error", rec)
				}
			}()
			if err := s.Start(ctx, pub); err != nil {
				r.logger.Error("source failed", "name", n, "error", err)
			}
		}(name, src)
	}
	wg.Wait()
}

func (r *Registry) StopAll(ctx context.Context) {
	for name, s := range r.Sources() {
		r.logger.Info("stopping source", "name", name)
		if err := s.Stop(ctx); err != nil {
			r.logger.Warn("source stop failed", "name", name, "error", err)
		}
	}
	for name, s := range r.Sinks() {
		r.logger.Info("stopping sink", "name", name)
		if err := s.Disconnect(ctx); err != nil {
			r.logger.Warn("sink disconnect failed", "name", name, "error", err)
		}
	}
}
