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

import "time"

// SessionView is the read-only snapshot of a session handed to fusion.
type SessionView struct {
	ID        string          `json:"id"`
	Scenario  Scenario        `json:"scenario"`
	State     State           `json:"state"`
	Expected  []Modality      `json:"expected"`
	Events    []ModalityEvent `json:"events"`
	CreatedAt time.Time       `json:"created_at"`
	Deadline  time.Time       `json:"deadline"`
}

// Modalities returns the set of modalities represented in the view.
func (v SessionView) Modalities() map[Modality]bool {
	seen := make(map[Modality]bool, len(v.Events))
	for _, e := range v.Events {
		seen[e.Modality] = true
	}
	return seen
}

// FusionResult is the single decision produced for a session.
// An empty Intent means no decision was reachable.
type FusionResult struct {
	SessionID        string             `json:"session_id"`
	Scenario         Scenario           `json:"scenario"`
	Intent           string             `json:"intent,omitempty"`
	Confidence       float64            `json:"confidence"`
	Contributing     []ModalityEvent    `json:"contributing,omitempty"`
	Conflicting      []ModalityEvent    `json:"conflicting,omitempty"`
	ResolvedConflict bool               `json:"resolved_conflict"`
	Outcome          Outcome            `json:"outcome"`
	Strategy         FusionStrategy     `json:"strategy"`
	Scores           map[string]float64 `json:"scores,omitempty"`
	DecidedAt        time.Time          `json:"decided_at"`
}

// IsActionable reports whether the action layer should act on r.
func (r FusionResult) IsActionable() bool {
	return r.Outcome == OutcomeDecided && r.Intent != ""
}

// NewInsufficientResult is the no-op outcome for a view with nothing usable.
func NewInsufficientResult(view SessionView, strategy FusionStrategy, now time.Time) FusionResult {
	return FusionResult{
		SessionID: view.ID,
		Scenario:  view.Scenario,
		Outcome:   OutcomeInsufficientData,
		Strategy:  strategy,
		DecidedAt: now,
	}
}

// NewTimedOutResult closes a session whose deadline elapsed. No decision
// was reached, so nothing contributed; the collected events stay on the
// archived session.
func NewTimedOutResult(view SessionView, strategy FusionStrategy, now time.Time) FusionResult {
	return FusionResult{
		SessionID: view.ID,
		Scenario:  view.Scenario,
		Outcome:   OutcomeTimedOut,
		Strategy:  strategy,
		DecidedAt: now,
	}
}

// Transition records one state change of a session.
type Transition struct {
	From State     `json:"from"`
	To   State     `json:"to"`
	At   time.Time `json:"at"`
}
