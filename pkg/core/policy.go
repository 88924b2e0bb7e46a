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

package core

import (
	"fmt"
	"maps"
	"slices"
	"time"
)

// TriggerSpec is the predicate that opens a session for a scenario.
// Empty Types or Intents match any value.
type TriggerSpec struct {
	Modality      Modality
	Types         []string
	Intents       []string
	MinConfidence float64
}

func (t TriggerSpec) Matches(evt ModalityEvent) bool {
	if evt.Modality != t.Modality {
		return false
	}
	if evt.Confidence < t.MinConfidence {
		return false
	}
	if len(t.Types) > 0 && !slices.Contains(t.Types, evt.Type) {
		return false
	}
	if len(t.Intents) > 0 && !slices.Contains(t.Intents, evt.Intent) {
		return false
	}
	return true
}

// IntentPair names two intents that contradict each other.
type IntentPair [2]string

// ScenarioPolicy is the static configuration of one interaction scenario.
type ScenarioPolicy struct {
	Scenario       Scenario
	Trigger        TriggerSpec
	Expected       []Modality
	Weights        map[Modality]float64
	Priority       []Modality
	Strategy       FusionStrategy
	ConflictPolicy ConflictPolicy
	Timeout        time.Duration
	RecentWindow   time.Duration
	Opposites      []IntentPair
	Completion     Completion
	HighConfidence float64
	ActiveState    State

	// PreferredIntent is the user override consumed by ConflictUserPreference.
	PreferredIntent string
}

// Weight returns the configured weight for m, 1.0 when absent.
func (p ScenarioPolicy) Weight(m Modality) float64 {
	if w, ok := p.Weights[m]; ok {
		return w
	}
	return 1.0
}

// Rank returns the position of m in the priority order. Lower ranks win;
// modalities missing from the list rank after every listed one.
func (p ScenarioPolicy) Rank(m Modality) int {
	if i := slices.Index(p.Priority, m); i >= 0 {
		return i
	}
	return len(p.Priority)
}

func (p ScenarioPolicy) Expects(m Modality) bool {
	return slices.Contains(p.Expected, m)
}

// Opposed reports whether intents a and b are configured as contradictory.
func (p ScenarioPolicy) Opposed(a, b string) bool {
	if a == "" || b == "" || a == b {
		return false
	}
	for _, pair := range p.Opposites {
		if (pair[0] == a && pair[1] == b) || (pair[0] == b && pair[1] == a) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers may adjust it freely.
func (p ScenarioPolicy) Clone() ScenarioPolicy {
	c := p
	c.Trigger.Types = slices.Clone(p.Trigger.Types)
	c.Trigger.Intents = slices.Clone(p.Trigger.Intents)
	c.Expected = slices.Clone(p.Expected)
	c.Weights = maps.Clone(p.Weights)
	c.Priority = slices.Clone(p.Priority)
	c.Opposites = slices.Clone(p.Opposites)
	return c
}

// ProfileOverride carries per-user adjustments merged at session creation.
type ProfileOverride struct {
	PreferredIntent string               `json:"preferred_intent,omitempty"`
	Weights         map[Modality]float64 `json:"weights,omitempty"`
	Priority        []Modality           `json:"priority,omitempty"`
}

// WithOverrides returns a copy of p with o applied. Weights merge per
// modality, a non-empty priority list replaces the scenario's.
func (p ScenarioPolicy) WithOverrides(o ProfileOverride) ScenarioPolicy {
	c := p.Clone()
	if o.PreferredIntent != "" {
		c.PreferredIntent = o.PreferredIntent
	}
	if len(o.Weights) > 0 {
		if c.Weights == nil {
			c.Weights = make(map[Modality]float64, len(o.Weights))
		}
		maps.Copy(c.Weights, o.Weights)
	}
	if len(o.Priority) > 0 {
		c.Priority = slices.Clone(o.Priority)
	}
	return c
}

func (p ScenarioPolicy) Validate() error {
	if _, err := ParseScenario(p.Scenario.String()); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPolicy, err)
	}
	if !p.Trigger.Modality.Known() {
		return fmt.Errorf("%w: %s: trigger modality: %w", ErrInvalidPolicy, p.Scenario, ErrUnknownModality)
	}
	if len(p.Expected) == 0 {
		return fmt.Errorf("%w: %s: no expected modalities", ErrInvalidPolicy, p.Scenario)
	}
	for _, m := range slices.Concat(p.Expected, p.Priority) {
		if !m.Known() {
			return fmt.Errorf("%w: %s: %w", ErrInvalidPolicy, p.Scenario, ErrUnknownModality)
		}
	}
	for m, w := range p.Weights {
		if w < 0 {
			return fmt.Errorf("%w: %s: negative weight for %s", ErrInvalidPolicy, p.Scenario, m)
		}
	}
	if _, err := ParseFusionStrategy(p.Strategy.String()); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidPolicy, p.Scenario, err)
	}
	if _, err := ParseConflictPolicy(p.ConflictPolicy.String()); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidPolicy, p.Scenario, err)
	}
	if p.Timeout <= 0 {
		return fmt.Errorf("%w: %s: timeout must be positive", ErrInvalidPolicy, p.Scenario)
	}
	if p.RecentWindow < 0 {
		return fmt.Errorf("%w: %s: negative recent window", ErrInvalidPolicy, p.Scenario)
	}
	if p.HighConfidence < 0 || p.HighConfidence > 1 {
		return fmt.Errorf("%w: %s: high confidence threshold outside [0,1]", ErrInvalidPolicy, p.Scenario)
	}
	switch p.ActiveState {
	case StateDistractionDetected, StateWaitingResponse:
	default:
		return fmt.Errorf("%w: %s: active state %s", ErrInvalidPolicy, p.Scenario, p.ActiveState)
	}
	return nil
}
