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

package policy

import (
	"time"

	"github.com/AnujaKalahara99/fusion-engine/pkg/core"
)

// Intent names shared by the built-in scenarios.
const (
	IntentConfirm  = "confirm"
	IntentReject   = "reject"
	IntentDeviated = "deviated"
)

// DefaultOpposites pairs intents that cannot both be acted on.
var DefaultOpposites = []core.IntentPair{{IntentConfirm, IntentReject}}

// Defaults returns the built-in scenarios used when the configuration
// declares none.
func Defaults() []core.ScenarioPolicy {
	return []core.ScenarioPolicy{
		{
			Scenario: core.ScenarioDistractionAlert,
			Trigger: core.TriggerSpec{
				Modality:      core.ModalityGaze,
				Intents:       []string{IntentDeviated},
				MinConfidence: 0.6,
			},
			Expected: []core.Modality{core.ModalityAudio, core.ModalityGesture},
			Weights: map[core.Modality]float64{
				core.ModalityGaze:    0.4,
				core.ModalityAudio:   0.4,
				core.ModalityGesture: 0.2,
			},
			Priority:       []core.Modality{core.ModalityAudio, core.ModalityGesture, core.ModalityGaze},
			Strategy:       core.StrategyPriorityBased,
			ConflictPolicy: core.ConflictModalityPriority,
			Timeout:        5 * time.Second,
			RecentWindow:   3 * time.Second,
			Opposites:      DefaultOpposites,
			Completion:     core.CompletionAnyExpected,
			HighConfidence: 0.9,
			ActiveState:    core.StateDistractionDetected,
		},
		{
			Scenario: core.ScenarioVoiceCommand,
			Trigger: core.TriggerSpec{
				Modality: core.ModalityAudio,
				Types:    []string{core.EventIntentClassified},
			},
			Expected: []core.Modality{core.ModalityAudio, core.ModalityGesture, core.ModalityGaze},
			Weights: map[core.Modality]float64{
				core.ModalityAudio:   1.0,
				core.ModalityGesture: 0.8,
				core.ModalityGaze:    0.5,
			},
			Priority:       []core.Modality{core.ModalityAudio, core.ModalityGesture, core.ModalityGaze},
			Strategy:       core.StrategyConfidenceWeighted,
			ConflictPolicy: core.ConflictHighestConfidence,
			Timeout:        5 * time.Second,
			RecentWindow:   5 * time.Second,
			Opposites:      DefaultOpposites,
			Completion:     core.CompletionAllExpected,
			ActiveState:    core.StateWaitingResponse,
		},
		{
			Scenario: core.ScenarioGestureControl,
			Trigger: core.TriggerSpec{
				Modality: core.ModalityGesture,
				Types:    []string{core.EventGestureDetected},
			},
			Expected: []core.Modality{core.ModalityGesture, core.ModalityGaze, core.ModalityAudio},
			Weights: map[core.Modality]float64{
				core.ModalityGesture: 0.5,
				core.ModalityGaze:    0.3,
				core.ModalityAudio:   0.2,
			},
			Priority:       []core.Modality{core.ModalityGesture, core.ModalityGaze, core.ModalityAudio},
			Strategy:       core.StrategyMajorityVote,
			ConflictPolicy: core.ConflictTemporalOrder,
			Timeout:        3 * time.Second,
			RecentWindow:   3 * time.Second,
			Opposites:      DefaultOpposites,
			Completion:     core.CompletionAllExpected,
			ActiveState:    core.StateWaitingResponse,
		},
	}
}

// DefaultTable builds a Table from Defaults.
func DefaultTable() *Table {
	t, err := NewTable(Defaults()...)
	if err != nil {
		panic(err)
	}
	return t
}
