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

package fusion

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnujaKalahara99/fusion-engine/internal/conflict"
	"github.com/AnujaKalahara99/fusion-engine/internal/policy"
	"github.com/AnujaKalahara99/fusion-engine/pkg/core"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func testEngine() *Engine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEngine(conflict.NewResolver(logger), WithLogger(logger))
}

func lookup(t *testing.T, s core.Scenario) core.ScenarioPolicy {
	t.Helper()
	p, ok := policy.DefaultTable().Lookup(s)
	require.True(t, ok)
	return p
}

func ev(id string, m core.Modality, intent string, conf float64, at time.Duration) core.ModalityEvent {
	return core.ModalityEvent{ID: id, Modality: m, Intent: intent, Confidence: conf, Timestamp: t0.Add(at)}
}

func view(s core.Scenario, events ...core.ModalityEvent) core.SessionView {
	return core.SessionView{ID: "session-1", Scenario: s, Events: events, CreatedAt: t0}
}

func TestConfidenceWeightedCommand(t *testing.T) {
	p := lookup(t, core.ScenarioVoiceCommand)
	v := view(core.ScenarioVoiceCommand,
		ev("a", core.ModalityAudio, "navigate", 0.7, 0),
		ev("g", core.ModalityGesture, "navigate", 0.6, time.Second),
		ev("z", core.ModalityGaze, "none", 0.3, time.Second),
	)

	result := testEngine().Fuse(v, p, t0.Add(2*time.Second))

	assert.Equal(t, core.OutcomeDecided, result.Outcome)
	assert.Equal(t, "navigate", result.Intent)
	assert.InDelta(t, (1.0*0.7+0.8*0.6)/2.3, result.Confidence, 1e-9)
	assert.InDelta(t, 0.513, result.Confidence, 1e-3)
	assert.Len(t, result.Contributing, 2)
	assert.False(t, result.ResolvedConflict)
}

func TestConfidenceWeightedScoresSumToOne(t *testing.T) {
	p := lookup(t, core.ScenarioVoiceCommand)
	sets := [][]core.ModalityEvent{
		{ev("1", core.ModalityAudio, "play", 0.2, 0)},
		{
			ev("1", core.ModalityAudio, "play", 0.9, 0),
			ev("2", core.ModalityGesture, "pause", 0.4, 0),
			ev("3", core.ModalityGaze, "skip", 0.1, 0),
			ev("4", core.ModalityVision, "play", 0.3, 0),
		},
		{
			ev("1", core.ModalityAudio, "play", 0, 0),
			ev("2", core.ModalityGesture, "pause", 0, 0),
		},
	}
	for _, events := range sets {
		d, ok := ConfidenceWeighted(events, p)
		require.True(t, ok)
		var sum float64
		for intent, s := range d.Scores {
			sum += s
			assert.GreaterOrEqual(t, d.Scores[d.Intent], s, "intent %s beats winner", intent)
		}
		assert.InDelta(t, 1.0, sum, 1e-6)
	}
}

func TestConfidenceWeightedTieUsesPriority(t *testing.T) {
	p := lookup(t, core.ScenarioVoiceCommand)
	p.Weights = nil
	events := []core.ModalityEvent{
		ev("g", core.ModalityGesture, "left", 0.5, 0),
		ev("a", core.ModalityAudio, "right", 0.5, time.Second),
	}
	d, ok := ConfidenceWeighted(events, p)
	require.True(t, ok)
	assert.Equal(t, "right", d.Intent)
}

func TestPriorityBasedDeterministic(t *testing.T) {
	p := lookup(t, core.ScenarioDistractionAlert)
	events := []core.ModalityEvent{
		ev("g", core.ModalityGesture, "confirm", 0.95, 1200*time.Millisecond),
		ev("a1", core.ModalityAudio, "", 0.99, 0),
		ev("a2", core.ModalityAudio, "confirm", 0.8, time.Second),
		ev("a3", core.ModalityAudio, "confirm", 0.6, time.Second),
	}
	first, ok := PriorityBased(events, p)
	require.True(t, ok)
	for i := 0; i < 20; i++ {
		again, _ := PriorityBased(events, p)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, "confirm", first.Intent)
	assert.InDelta(t, 0.8, first.Confidence, 1e-9)
	require.Len(t, first.Contributing, 1)
	assert.Equal(t, "a2", first.Contributing[0].ID)
}

func TestPriorityBasedIgnoresUnlistedModalities(t *testing.T) {
	p := lookup(t, core.ScenarioDistractionAlert)
	_, ok := PriorityBased([]core.ModalityEvent{ev("h", core.ModalityHeadPose, "confirm", 0.9, 0)}, p)
	assert.False(t, ok)
}

func TestMajorityVoteStop(t *testing.T) {
	p := lookup(t, core.ScenarioGestureControl)
	p.Priority = []core.Modality{core.ModalityAudio, core.ModalityGesture, core.ModalityGaze}
	events := []core.ModalityEvent{
		ev("a", core.ModalityAudio, "stop", 0.6, 0),
		ev("g", core.ModalityGesture, "stop", 0.7, 0),
		ev("z", core.ModalityGaze, "go", 0.9, 0),
	}
	d, ok := MajorityVote(events, p)
	require.True(t, ok)
	assert.Equal(t, "stop", d.Intent)
	assert.InDelta(t, 2.0/3.0, d.Confidence, 1e-9)
}

func TestMajorityVoteTieBreaks(t *testing.T) {
	p := lookup(t, core.ScenarioGestureControl)

	t.Run("priority", func(t *testing.T) {
		events := []core.ModalityEvent{
			ev("a", core.ModalityAudio, "up", 0.9, 0),
			ev("g", core.ModalityGesture, "down", 0.5, time.Second),
		}
		d, ok := MajorityVote(events, p)
		require.True(t, ok)
		assert.Equal(t, "down", d.Intent)
		assert.InDelta(t, 0.5, d.Confidence, 1e-9)
	})

	t.Run("earliest timestamp", func(t *testing.T) {
		events := []core.ModalityEvent{
			ev("g1", core.ModalityGesture, "up", 0.9, 2*time.Second),
			ev("g2", core.ModalityGesture, "down", 0.5, time.Second),
		}
		d, ok := MajorityVote(events, p)
		require.True(t, ok)
		assert.Equal(t, "down", d.Intent)
	})

	t.Run("null intents count toward total", func(t *testing.T) {
		events := []core.ModalityEvent{
			ev("g", core.ModalityGesture, "up", 0.9, 0),
			ev("z", core.ModalityGaze, "", 0.5, 0),
		}
		d, ok := MajorityVote(events, p)
		require.True(t, ok)
		assert.InDelta(t, 0.5, d.Confidence, 1e-9)
	})
}

func TestInsufficientData(t *testing.T) {
	e := testEngine()
	for _, s := range []core.Scenario{core.ScenarioDistractionAlert, core.ScenarioVoiceCommand, core.ScenarioGestureControl} {
		p := lookup(t, s)

		empty := e.Fuse(view(s), p, t0)
		assert.Equal(t, core.OutcomeInsufficientData, empty.Outcome, s.String())
		assert.Empty(t, empty.Intent)

		unclassified := e.Fuse(view(s, ev("x", core.ModalityAudio, "", 0.9, 0)), p, t0)
		assert.Equal(t, core.OutcomeInsufficientData, unclassified.Outcome, s.String())
		assert.False(t, unclassified.IsActionable())
	}
}

func TestDistractionAlertScenario(t *testing.T) {
	p := lookup(t, core.ScenarioDistractionAlert)
	v := view(core.ScenarioDistractionAlert,
		ev("a", core.ModalityAudio, "confirm", 0.8, time.Second),
		ev("g", core.ModalityGesture, "confirm", 0.95, 1200*time.Millisecond),
	)
	result := testEngine().Fuse(v, p, t0.Add(1300*time.Millisecond))

	assert.Equal(t, "confirm", result.Intent)
	assert.InDelta(t, 0.8, result.Confidence, 1e-9)
	assert.Equal(t, core.OutcomeDecided, result.Outcome)
	assert.Equal(t, "session-1", result.SessionID)
}

func TestConflictSupersedesStrategy(t *testing.T) {
	p := lookup(t, core.ScenarioDistractionAlert)
	p.Priority = []core.Modality{core.ModalityAudio, core.ModalityGesture}
	v := view(core.ScenarioDistractionAlert,
		ev("a", core.ModalityAudio, "confirm", 0.85, time.Second),
		ev("g", core.ModalityGesture, "reject", 0.9, 1500*time.Millisecond),
	)
	result := testEngine().Fuse(v, p, t0.Add(2*time.Second))

	assert.Equal(t, "confirm", result.Intent)
	assert.True(t, result.ResolvedConflict)
	require.Len(t, result.Contributing, 1)
	assert.Equal(t, "a", result.Contributing[0].ID)
	require.Len(t, result.Conflicting, 1)
	assert.Equal(t, "g", result.Conflicting[0].ID)
}

func TestConflictOnlyWithinRecentWindow(t *testing.T) {
	e := testEngine()
	p := lookup(t, core.ScenarioDistractionAlert)
	p.RecentWindow = 3 * time.Second
	v := view(core.ScenarioDistractionAlert,
		ev("a", core.ModalityAudio, "confirm", 0.85, 0),
		ev("g", core.ModalityGesture, "reject", 0.9, 5*time.Second),
	)

	_, ok := e.Conflict(v, p)
	assert.False(t, ok)
	result := e.Fuse(v, p, t0.Add(6*time.Second))
	assert.False(t, result.ResolvedConflict)
	assert.Empty(t, result.Conflicting)

	v.Events = append(v.Events, ev("a2", core.ModalityAudio, "confirm", 0.8, 6*time.Second))
	c, ok := e.Conflict(v, p)
	require.True(t, ok)
	assert.Len(t, c.Events, 2)
}

func TestReady(t *testing.T) {
	e := testEngine()

	t.Run("all expected", func(t *testing.T) {
		p := lookup(t, core.ScenarioVoiceCommand)
		partial := view(core.ScenarioVoiceCommand,
			ev("a", core.ModalityAudio, "play", 0.9, 0),
			ev("g", core.ModalityGesture, "play", 0.9, 0),
		)
		assert.False(t, e.Ready(partial, p))
		full := partial
		full.Events = append(full.Events, ev("z", core.ModalityGaze, "", 0.2, 0))
		assert.True(t, e.Ready(full, p))
	})

	t.Run("any expected", func(t *testing.T) {
		p := lookup(t, core.ScenarioDistractionAlert)
		assert.False(t, e.Ready(view(core.ScenarioDistractionAlert), p))
		assert.True(t, e.Ready(view(core.ScenarioDistractionAlert, ev("g", core.ModalityGesture, "", 0.3, 0)), p))
	})

	t.Run("high confidence shortcut", func(t *testing.T) {
		p := lookup(t, core.ScenarioDistractionAlert)
		p.Completion = core.CompletionAllExpected
		v := view(core.ScenarioDistractionAlert, ev("a", core.ModalityAudio, "confirm", 0.92, 0))
		assert.True(t, e.Ready(v, p))
		v.Events[0].Confidence = 0.5
		assert.False(t, e.Ready(v, p))
	})
}

func TestRegisterCustomStrategy(t *testing.T) {
	e := testEngine()
	e.Register(core.StrategyMajorityVote, func(events []core.ModalityEvent, _ core.ScenarioPolicy) (Decision, bool) {
		return Decision{Intent: "fixed", Confidence: 1}, true
	})
	p := lookup(t, core.ScenarioGestureControl)
	result := e.Fuse(view(core.ScenarioGestureControl, ev("g", core.ModalityGesture, "up", 0.5, 0)), p, t0)
	assert.Equal(t, "fixed", result.Intent)
}
