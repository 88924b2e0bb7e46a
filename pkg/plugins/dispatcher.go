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

	"github.com/AnujaKalahara99/fusion-engine/internal/bus"
	"github.com/AnujaKalahara99/fusion-engine/pkg/core"
)

// Dispatcher forwards fusion results to every healthy sink. Each sink has
// its own bus subscription, so a slow sink only loses from its own queue.
type Dispatcher struct {
	registry *Registry
	results  *bus.Bus[core.FusionResult]
	logger   *slog.Logger

	once   sync.Once
	routes []route
}

type route struct {
	sink core.Sink
	sub  *bus.Subscription[core.FusionResult]
}

func NewDispatcher(registry *Registry, results *bus.Bus[core.FusionResult], logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		results:  results,
		logger:   logger.With("component", "dispatcher"),
	}
}

// SubscriberName is the result bus subscription used for sink name.
func SubscriberName(sink string) string { return "sink:" + sink }

// Subscribe opens one result subscription per healthy sink. Call it before
// anything publishes results so that none are missed; Run calls it when
// it has not been called yet.
func (d *Dispatcher) Subscribe() {
	d.once.Do(func() {
		for name, sink := range d.registry.Sinks() {
			if !d.registry.IsSinkHealthy(name) {
				d.logger.Warn("skipping unhealthy sink", "name", name)
				continue
			}
			d.routes = append(d.routes, route{sink: sink, sub: d.results.Subscribe(SubscriberName(name), nil)})
		}
	})
}

// Run blocks until ctx ends or the result bus closes.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.Subscribe()
	var wg sync.WaitGroup
	for _, rt := range d.routes {
		wg.Add(1)
		go func(rt route) {
			defer wg.Done()
			defer rt.sub.Unsubscribe()
			d.forward(ctx, rt.sink, rt.sub)
		}(rt)
	}
	wg.Wait()
	return nil
}

func (d *Dispatcher) forward(ctx context.Context, s core.Sink, sub *bus.Subscription[core.FusionResult]) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("sink panic recovered", "name", s.Name(), "error", r)
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-sub.C():
			if !ok {
				return
			}
			if err := s.Send(ctx, r); err != nil {
				if ctx.Err() != nil {
					return
				}
				d.logger.Error("sink send failed",
					"name", s.Name(),
					"session_id", r.SessionID,
					"error", err,
				)
			}
		}
	}
}
