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

// Package conflict detects contradictory intents within a session and
// settles them according to the scenario's conflict policy.
package conflict

import (
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/AnujaKalahara99/fusion-engine/pkg/core"
)

// Epsilon is the confidence difference treated as a tie.
const Epsilon = 1e-6

// Conflict is the set of events whose intents oppose at least one other
// event in the same session, in arrival order.
type Conflict struct {
	Events []core.ModalityEvent
}

// Resolution is the outcome of applying a conflict policy. Winner is nil
// when the tie could not be broken.
type Resolution struct {
	Policy   core.ConflictPolicy
	Winner   *core.ModalityEvent
	Conflict Conflict
}

type handler func(r *Resolver, c Conflict, p core.ScenarioPolicy, now time.Time) *core.ModalityEvent

var handlers = map[core.ConflictPolicy]handler{
	core.ConflictHighestConfidence: (*Resolver).highestConfidence,
	core.ConflictModalityPriority:  (*Resolver).modalityPriority,
	core.ConflictTemporalOrder:     (*Resolver).temporalOrder,
	core.ConflictUserPreference:    (*Resolver).userPreference,
}

type Resolver struct {
	logger *slog.Logger
}

func NewResolver(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{logger: logger.With("component", "conflict")}
}

// Detect reports the events taking part in an intent conflict, if any.
// Only events within p.RecentWindow of the newest event are compared; a
// zero window compares all of them.
func (r *Resolver) Detect(events []core.ModalityEvent, p core.ScenarioPolicy) (Conflict, bool) {
	events = recent(events, p.RecentWindow)
	var c Conflict
	for i, a := range events {
		for j, b := range events {
			if i != j && p.Opposed(a.Intent, b.Intent) {
				c.Events = append(c.Events, a)
				break
			}
		}
	}
	return c, len(c.Events) > 0
}

func recent(events []core.ModalityEvent, window time.Duration) []core.ModalityEvent {
	if window <= 0 || len(events) == 0 {
		return events
	}
	newest := events[0].Timestamp
	for _, e := range events[1:] {
		if e.Timestamp.After(newest) {
			newest = e.Timestamp
		}
	}
	out := make([]core.ModalityEvent, 0, len(events))
	for _, e := range events {
		if newest.Sub(e.Timestamp) <= window {
			out = append(out, e)
		}
	}
	return out
}

// Resolve applies p.ConflictPolicy to c. An unset policy behaves as
// highest confidence.
func (r *Resolver) Resolve(c Conflict, p core.ScenarioPolicy, now time.Time) Resolution {
	policy := p.ConflictPolicy
	if policy == core.ConflictUnset {
		policy = core.ConflictHighestConfidence
	}
	h, ok := handlers[policy]
	if !ok {
		r.logger.Warn("no handler for conflict policy, using highest confidence", "policy", policy.String())
		policy = core.ConflictHighestConfidence
		h = handlers[policy]
	}
	winner := h(r, c, p, now)
	if winner == nil {
		r.logger.Debug("conflict tie not broken",
			"scenario", p.Scenario.String(),
			"policy", policy.String(),
			"events", len(c.Events),
		)
	}
	return Resolution{Policy: policy, Winner: winner, Conflict: c}
}

func (r *Resolver) highestConfidence(c Conflict, p core.ScenarioPolicy, _ time.Time) *core.ModalityEvent {
	best := math.Inf(-1)
	for _, e := range c.Events {
		best = math.Max(best, e.Confidence)
	}
	var tied []core.ModalityEvent
	for _, e := range c.Events {
		if best-e.Confidence <= Epsilon {
			tied = append(tied, e)
		}
	}
	if len(tied) == 1 {
		return &tied[0]
	}
	return byPriority(tied, p)
}

func (r *Resolver) modalityPriority(c Conflict, p core.ScenarioPolicy, _ time.Time) *core.ModalityEvent {
	return byPriority(c.Events, p)
}

func (r *Resolver) temporalOrder(c Conflict, p core.ScenarioPolicy, now time.Time) *core.ModalityEvent {
	recent := c.Events
	if p.RecentWindow > 0 {
		recent = nil
		for _, e := range c.Events {
			if now.Sub(e.Timestamp) <= p.RecentWindow {
				recent = append(recent, e)
			}
		}
	}
	if len(recent) == 0 {
		return nil
	}
	latest := recent[0].Timestamp
	for _, e := range recent[1:] {
		if e.Timestamp.After(latest) {
			latest = e.Timestamp
		}
	}
	var tied []core.ModalityEvent
	for _, e := range recent {
		if e.Timestamp.Equal(latest) {
			tied = append(tied, e)
		}
	}
	if len(tied) == 1 {
		return &tied[0]
	}
	return byPriority(tied, p)
}

func (r *Resolver) userPreference(c Conflict, p core.ScenarioPolicy, _ time.Time) *core.ModalityEvent {
	if p.PreferredIntent == "" {
		return byPriority(c.Events, p)
	}
	var matching []core.ModalityEvent
	for _, e := range c.Events {
		if e.Intent == p.PreferredIntent {
			matching = append(matching, e)
		}
	}
	if len(matching) == 0 {
		return byPriority(c.Events, p)
	}
	return strongest(matching)
}

// byPriority keeps the events of the best-ranked modality. The tie is
// broken only when those events agree on a single intent.
func byPriority(events []core.ModalityEvent, p core.ScenarioPolicy) *core.ModalityEvent {
	if len(events) == 0 {
		return nil
	}
	best := p.Rank(events[0].Modality)
	for _, e := range events[1:] {
		best = min(best, p.Rank(e.Modality))
	}
	var top []core.ModalityEvent
	for _, e := range events {
		if p.Rank(e.Modality) == best {
			top = append(top, e)
		}
	}
	for _, e := range top[1:] {
		if e.Intent != top[0].Intent {
			return nil
		}
	}
	return strongest(top)
}

// strongest picks the highest confidence event, earliest first on ties.
func strongest(events []core.ModalityEvent) *core.ModalityEvent {
	i := 0
	for j, e := range events[1:] {
		cur := events[i]
		if e.Confidence > cur.Confidence+Epsilon ||
			(math.Abs(e.Confidence-cur.Confidence) <= Epsilon && e.Timestamp.Before(cur.Timestamp)) {
			i = j + 1
		}
	}
	winner := events[i]
	return &winner
}

// Result builds the fusion result that supersedes the plain strategy.
// Without a winner the intent stays empty so the action layer asks again.
func (res Resolution) Result(view core.SessionView, p core.ScenarioPolicy, now time.Time) core.FusionResult {
	out := core.FusionResult{
		SessionID:        view.ID,
		Scenario:         view.Scenario,
		ResolvedConflict: true,
		Outcome:          core.OutcomeDecided,
		Strategy:         p.Strategy,
		DecidedAt:        now,
	}
	if res.Winner == nil {
		out.Conflicting = slices.Clone(res.Conflict.Events)
		return out
	}
	out.Intent = res.Winner.Intent
	out.Confidence = res.Winner.Confidence
	out.Contributing = []core.ModalityEvent{*res.Winner}
	for _, e := range res.Conflict.Events {
		if e.ID != res.Winner.ID {
			out.Conflicting = append(out.Conflicting, e)
		}
	}
	return out
}
