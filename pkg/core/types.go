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
	"strings"
)

// nameTable maps a closed set of variants to their wire names and back.
type nameTable[T comparable] struct {
	names  map[T]string
	values map[string]T
	err    error
}

func newNameTable[T comparable](err error, names map[T]string) nameTable[T] {
	values := make(map[string]T, len(names))
	for v, n := range names {
		values[n] = v
	}
	return nameTable[T]{names: names, values: values, err: err}
}

func (t nameTable[T]) name(v T) string {
	if n, ok := t.names[v]; ok {
		return n
	}
	return "unknown"
}

func (t nameTable[T]) parse(s string) (T, error) {
	v, ok := t.values[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %q", t.err, s)
	}
	return v, nil
}

type Modality int

const (
	ModalityUnknown Modality = iota
	ModalityAudio
	ModalityVision
	ModalityGaze
	ModalityGesture
	ModalityHeadPose
)

var modalityNames = newNameTable(ErrUnknownModality, map[Modality]string{
	ModalityAudio:    "audio",
	ModalityVision:   "vision",
	ModalityGaze:     "gaze",
	ModalityGesture:  "gesture",
	ModalityHeadPose: "head_pose",
})

func (m Modality) String() string { return modalityNames.name(m) }

// Known reports whether m is one of the declared modalities.
func (m Modality) Known() bool {
	_, ok := modalityNames.names[m]
	return ok
}

func ParseModality(s string) (Modality, error) { return modalityNames.parse(s) }

func (m Modality) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Modality) UnmarshalText(b []byte) error {
	v, err := ParseModality(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ParseModalities parses a list of modality names, preserving order.
func ParseModalities(names []string) ([]Modality, error) {
	out := make([]Modality, 0, len(names))
	for _, n := range names {
		m, err := ParseModality(n)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

type Scenario int

const (
	ScenarioUnknown Scenario = iota
	ScenarioDistractionAlert
	ScenarioVoiceCommand
	ScenarioGestureControl
)

var scenarioNames = newNameTable(ErrUnknownScenario, map[Scenario]string{
	ScenarioDistractionAlert: "distraction_alert",
	ScenarioVoiceCommand:     "voice_command",
	ScenarioGestureControl:   "gesture_control",
})

func (s Scenario) String() string { return scenarioNames.name(s) }

func ParseScenario(s string) (Scenario, error) { return scenarioNames.parse(s) }

func (s Scenario) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Scenario) UnmarshalText(b []byte) error {
	v, err := ParseScenario(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

type State int

const (
	StateIdle State = iota
	StateMonitoring
	StateDistractionDetected
	StateWaitingResponse
	StateProcessingResponse
	StateInteractionComplete
	StateTimedOut
)

var stateNames = newNameTable(ErrUnknownState, map[State]string{
	StateIdle:                "idle",
	StateMonitoring:          "monitoring",
	StateDistractionDetected: "distraction_detected",
	StateWaitingResponse:     "waiting_response",
	StateProcessingResponse:  "processing_response",
	StateInteractionComplete: "interaction_complete",
	StateTimedOut:            "timed_out",
})

func (s State) String() string { return stateNames.name(s) }

func ParseState(s string) (State, error) { return stateNames.parse(s) }

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	v, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateInteractionComplete || s == StateTimedOut
}

type FusionStrategy int

const (
	StrategyUnknown FusionStrategy = iota
	StrategyConfidenceWeighted
	StrategyPriorityBased
	StrategyMajorityVote
)

var strategyNames = newNameTable(ErrUnknownStrategy, map[FusionStrategy]string{
	StrategyConfidenceWeighted: "confidence_weighted",
	StrategyPriorityBased:      "priority_based",
	StrategyMajorityVote:       "majority_vote",
})

func (f FusionStrategy) String() string { return strategyNames.name(f) }

func ParseFusionStrategy(s string) (FusionStrategy, error) { return strategyNames.parse(s) }

func (f FusionStrategy) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

func (f *FusionStrategy) UnmarshalText(b []byte) error {
	v, err := ParseFusionStrategy(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// ConflictPolicy selects how contradictory intents are adjudicated.
// ConflictUnset falls back to ConflictHighestConfidence.
type ConflictPolicy int

const (
	ConflictUnset ConflictPolicy = iota
	ConflictHighestConfidence
	ConflictModalityPriority
	ConflictTemporalOrder
	ConflictUserPreference
)

var conflictNames = newNameTable(ErrUnknownConflictPolicy, map[ConflictPolicy]string{
	ConflictUnset:             "",
	ConflictHighestConfidence: "highest_confidence",
	ConflictModalityPriority:  "modality_priority",
	ConflictTemporalOrder:     "temporal_order",
	ConflictUserPreference:    "user_preference",
})

func (c ConflictPolicy) String() string { return conflictNames.name(c) }

func ParseConflictPolicy(s string) (ConflictPolicy, error) { return conflictNames.parse(s) }

func (c ConflictPolicy) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *ConflictPolicy) UnmarshalText(b []byte) error {
	v, err := ParseConflictPolicy(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

type Outcome int

const (
	OutcomeUnknown Outcome = iota
	OutcomeDecided
	OutcomeTimedOut
	OutcomeInsufficientData
)

var outcomeNames = newNameTable(ErrUnknownOutcome, map[Outcome]string{
	OutcomeDecided:          "decided",
	OutcomeTimedOut:         "timed_out",
	OutcomeInsufficientData: "insufficient_data",
})

func (o Outcome) String() string { return outcomeNames.name(o) }

func ParseOutcome(s string) (Outcome, error) { return outcomeNames.parse(s) }

func (o Outcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func (o *Outcome) UnmarshalText(b []byte) error {
	v, err := ParseOutcome(string(b))
	if err != nil {
		return err
	}
	*o = v
	return nil
}

// Completion decides when a session has collected enough to fuse.
type Completion int

const (
	CompletionAllExpected Completion = iota
	CompletionAnyExpected
)

var completionNames = newNameTable(ErrUnknownCompletion, map[Completion]string{
	CompletionAllExpected: "all",
	CompletionAnyExpected: "any",
})

func (c Completion) String() string { return completionNames.name(c) }

func ParseCompletion(s string) (Completion, error) {
	if strings.TrimSpace(s) == "" {
		return CompletionAllExpected, nil
	}
	return completionNames.parse(s)
}

// Well-known event type tags produced by the perception pipelines.
const (
	EventSpeechRecognized = "speech_recognized"
	EventIntentClassified = "intent_classified"
	EventGestureDetected  = "gesture_detected"
	EventGazeChanged      = "gaze_changed"
	EventHeadPoseChanged  = "head_pose_changed"
)
