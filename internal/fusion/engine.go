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

// Package fusion turns the events collected by a session into a single
// decision, using the strategy named by the scenario policy.
package fusion

import (
	"log/slog"
	"time"

	"github.com/AnujaKalahara99/fusion-engine/internal/conflict"
	"github.com/AnujaKalahara99/fusion-engine/pkg/core"
)

// Engine holds no per-session state; Fuse depends only on its arguments.
type Engine struct {
	resolver   *conflict.Resolver
	strategies map[core.FusionStrategy]Strategy
	logger     *slog.Logger
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func NewEngine(resolver *conflict.Resolver, opts ...Option) *Engine {
	e := &Engine{
		resolver: resolver,
		strategies: map[core.FusionStrategy]Strategy{
			core.StrategyConfidenceWeighted: ConfidenceWeighted,
			core.StrategyPriorityBased:      PriorityBased,
			core.StrategyMajorityVote:       MajorityVote,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "fusion")
	if e.resolver == nil {
		e.resolver = conflict.NewResolver(e.logger)
	}
	return e
}

// Register installs or replaces the strategy for kind. It is meant for
// startup wiring, before the engine is shared.
func (e *Engine) Register(kind core.FusionStrategy, s Strategy) {
	e.strategies[kind] = s
}

// Ready reports whether the session holds enough to fuse.
func (e *Engine) Ready(view core.SessionView, p core.ScenarioPolicy) bool {
	present := view.Modalities()

	if p.Strategy == core.StrategyPriorityBased && p.HighConfidence > 0 {
		for _, ev := range view.Events {
			if p.Expects(ev.Modality) && ev.HasIntent() && ev.Confidence >= p.HighConfidence {
				return true
			}
		}
	}

	switch p.Completion {
	case core.CompletionAnyExpected:
		for _, m := range p.Expected {
			if present[m] {
				return true
			}
		}
		return false
	default:
		for _, m := range p.Expected {
			if !present[m] {
				return false
			}
		}
		return len(p.Expected) > 0
	}
}

// Conflict reports the current intent conflict among the view's recent
// events.
func (e *Engine) Conflict(view core.SessionView, p core.ScenarioPolicy) (conflict.Conflict, bool) {
	return e.resolver.Detect(view.Events, p)
}

// Fuse produces the session's decision. A detected conflict is settled by
// the resolver and its result replaces the strategy's.
func (e *Engine) Fuse(view core.SessionView, p core.ScenarioPolicy, now time.Time) core.FusionResult {
	if c, ok := e.Conflict(view, p); ok {
		res := e.resolver.Resolve(c, p, now)
		return res.Result(view, p, now)
	}

	strategy, ok := e.strategies[p.Strategy]
	if !ok {
		e.logger.Error("no strategy registered", "strategy", p.Strategy.String(), "session_id", view.ID)
		return core.NewInsufficientResult(view, p.Strategy, now)
	}

	d, ok := strategy(view.Events, p)
	if !ok {
		return core.NewInsufficientResult(view, p.Strategy, now)
	}
	return core.FusionResult{
		SessionID:    view.ID,
		Scenario:     view.Scenario,
		Intent:       d.Intent,
		Confidence:   d.Confidence,
		Contributing: d.Contributing,
		Outcome:      core.OutcomeDecided,
		Strategy:     p.Strategy,
		Scores:       d.Scores,
		DecidedAt:    now,
	}
}
