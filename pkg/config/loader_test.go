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

package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnujaKalahara99/fusion-engine/internal/archive"
	"github.com/AnujaKalahara99/fusion-engine/pkg/core"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
  format: text
bus:
  queue_size: 128
scenarios:
  - name: voice_command
    trigger:
      modality: audio
      types: [intent_classified]
    expected: [audio, gesture]
    weights:
      audio: 1.0
      gesture: 0.8
    priority: [audio, gesture]
    strategy: confidence_weighted
    conflict_policy: highest_confidence
    timeout: 4s
    recent_window: 2s
    opposites:
      - [yes, no]
sources:
  - name: ws-in
    type: websocket
    port: 8066
sinks:
  - name: kafka-out
    type: kafka
    config:
      brokers: "localhost:9092"
      topic_out: fusion.results
archive:
  type: redis
  history: 50
  redis:
    addr: localhost:6379
    key_prefix: "cabin:"
profile:
  path: /etc/fusion/profiles.yaml
  driver: alice
  reload_interval: 10s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, slog.LevelDebug, ParseLevel(cfg.Log.Level))
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, 128, cfg.Bus.QueueSize)
	assert.Equal(t, 16, cfg.Bus.InboxSize)
	assert.Equal(t, DefaultStatusPort, cfg.Status.Port)

	require.Len(t, cfg.Sources, 1)
	assert.Equal(t, 8066, cfg.Sources[0].Port)
	require.Len(t, cfg.Sinks, 1)
	assert.Equal(t, "fusion.results", cfg.Sinks[0].Config["topic_out"])

	assert.Equal(t, archive.StoreTypeRedis, cfg.Archive.Type)
	assert.Equal(t, 50, cfg.Archive.History)
	assert.Equal(t, "cabin:", cfg.Archive.Redis.KeyPrefix)
	assert.Equal(t, 10*time.Second, cfg.Profile.ReloadInterval)

	policies, err := cfg.Policies()
	require.NoError(t, err)
	require.Len(t, policies, 1)
	p := policies[0]
	assert.Equal(t, core.ScenarioVoiceCommand, p.Scenario)
	assert.Equal(t, core.ModalityAudio, p.Trigger.Modality)
	assert.Equal(t, []core.Modality{core.ModalityAudio, core.ModalityGesture}, p.Expected)
	assert.InDelta(t, 0.8, p.Weight(core.ModalityGesture), 1e-9)
	assert.Equal(t, core.StrategyConfidenceWeighted, p.Strategy)
	assert.Equal(t, core.ConflictHighestConfidence, p.ConflictPolicy)
	assert.Equal(t, core.CompletionAllExpected, p.Completion)
	assert.Equal(t, core.StateWaitingResponse, p.ActiveState)
	assert.Equal(t, 4*time.Second, p.Timeout)
	assert.Equal(t, 2*time.Second, p.RecentWindow)
	assert.True(t, p.Opposed("yes", "no"))
	assert.False(t, p.Opposed("confirm", "reject"))
}

func TestLoadWithoutScenariosUsesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "log:\n  level: warn\n"))
	require.NoError(t, err)

	policies, err := cfg.Policies()
	require.NoError(t, err)
	assert.Len(t, policies, 3)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path")
	assert.Error(t, err)
}

func TestToPolicyErrors(t *testing.T) {
	valid := ScenarioConfig{
		Name:     "gesture_control",
		Trigger:  TriggerConfig{Modality: "gesture"},
		Expected: []string{"gesture"},
		Strategy: "majority_vote",
		Timeout:  time.Second,
	}
	p, err := valid.ToPolicy()
	require.NoError(t, err)
	assert.Equal(t, core.ConflictUnset, p.ConflictPolicy)
	assert.True(t, p.Opposed("confirm", "reject"))

	tests := []struct {
		name   string
		mutate func(*ScenarioConfig)
		want   error
	}{
		{"unknown scenario", func(c *ScenarioConfig) { c.Name = "parking" }, core.ErrUnknownScenario},
		{"unknown trigger", func(c *ScenarioConfig) { c.Trigger.Modality = "smell" }, core.ErrUnknownModality},
		{"unknown expected", func(c *ScenarioConfig) { c.Expected = []string{"touch"} }, core.ErrUnknownModality},
		{"unknown strategy", func(c *ScenarioConfig) { c.Strategy = "random" }, core.ErrUnknownStrategy},
		{"unknown conflict policy", func(c *ScenarioConfig) { c.ConflictPolicy = "coin_flip" }, core.ErrUnknownConflictPolicy},
		{"unknown completion", func(c *ScenarioConfig) { c.Completion = "most" }, core.ErrUnknownCompletion},
		{"no timeout", func(c *ScenarioConfig) { c.Timeout = 0 }, core.ErrInvalidPolicy},
		{"no expected", func(c *ScenarioConfig) { c.Expected = nil }, core.ErrInvalidPolicy},
		{"terminal active state", func(c *ScenarioConfig) { c.ActiveState = "timed_out" }, core.ErrInvalidPolicy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			_, err := c.ToPolicy()
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.input), tt.input)
	}
}

func TestParseActiveState(t *testing.T) {
	s, err := ParseActiveState("", core.ScenarioDistractionAlert)
	require.NoError(t, err)
	assert.Equal(t, core.StateDistractionDetected, s)

	s, err = ParseActiveState("", core.ScenarioGestureControl)
	require.NoError(t, err)
	assert.Equal(t, core.StateWaitingResponse, s)

	_, err = ParseActiveState("sleeping", core.ScenarioGestureControl)
	assert.True(t, errors.Is(err, core.ErrUnknownState))
}
