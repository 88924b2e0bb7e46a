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
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AnujaKalahara99/fusion-engine/internal/archive"
	"github.com/AnujaKalahara99/fusion-engine/internal/bus"
	"github.com/AnujaKalahara99/fusion-engine/internal/policy"
	"github.com/AnujaKalahara99/fusion-engine/internal/session"
	"github.com/AnujaKalahara99/fusion-engine/pkg/core"
)

const (
	DefaultPath       = "/etc/fusion/config.yaml"
	DefaultStatusPort = 9090
)

type Config struct {
	Log       LogConfig        `yaml:"log"`
	Bus       BusConfig        `yaml:"bus"`
	Scenarios []ScenarioConfig `yaml:"scenarios"`
	Sources   []PluginConfig   `yaml:"sources"`
	Sinks     []PluginConfig   `yaml:"sinks"`
	Archive   archive.Config   `yaml:"archive"`
	Profile   ProfileConfig    `yaml:"profile"`
	Status    StatusConfig     `yaml:"status"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type BusConfig struct {
	QueueSize int `yaml:"queue_size"`
	InboxSize int `yaml:"inbox_size"`
}

type TriggerConfig struct {
	Modality      string   `yaml:"modality"`
	Types         []string `yaml:"types"`
	Intents       []string `yaml:"intents"`
	MinConfidence float64  `yaml:"min_confidence"`
}

type ScenarioConfig struct {
	Name           string             `yaml:"name"`
	Trigger        TriggerConfig      `yaml:"trigger"`
	Expected       []string           `yaml:"expected"`
	Completion     string             `yaml:"completion"`
	Weights        map[string]float64 `yaml:"weights"`
	Priority       []string           `yaml:"priority"`
	Strategy       string             `yaml:"strategy"`
	ConflictPolicy string             `yaml:"conflict_policy"`
	Timeout        time.Duration      `yaml:"timeout"`
	RecentWindow   time.Duration      `yaml:"recent_window"`
	HighConfidence float64            `yaml:"high_confidence"`
	ActiveState    string             `yaml:"active_state"`
	Opposites      [][2]string        `yaml:"opposites"`
}

// PluginConfig describes one source or sink. Port applies to the HTTP
// based plugins; Config carries transport specific settings.
type PluginConfig struct {
	Name   string            `yaml:"name"`
	Type   string            `yaml:"type"`
	Port   int               `yaml:"port"`
	Config map[string]string `yaml:"config"`
}

type ProfileConfig struct {
	Path           string        `yaml:"path"`
	Driver         string        `yaml:"driver"`
	ReloadInterval time.Duration `yaml:"reload_interval"`
}

type StatusConfig struct {
	Port int `yaml:"port"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default is the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Bus.QueueSize <= 0 {
		c.Bus.QueueSize = bus.DefaultQueueSize
	}
	if c.Bus.InboxSize <= 0 {
		c.Bus.InboxSize = session.DefaultInboxSize
	}
	if c.Archive.History <= 0 {
		c.Archive.History = archive.DefaultHistory
	}
	if c.Status.Port == 0 {
		c.Status.Port = DefaultStatusPort
	}
}

// Policies converts the scenario section. An empty section yields the
// built-in scenarios.
func (c *Config) Policies() ([]core.ScenarioPolicy, error) {
	if len(c.Scenarios) == 0 {
		return policy.Defaults(), nil
	}
	out := make([]core.ScenarioPolicy, 0, len(c.Scenarios))
	for _, sc := range c.Scenarios {
		p, err := sc.ToPolicy()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseActiveState returns the state a new session enters after
// monitoring. The alert scenario defaults to distraction_detected.
func ParseActiveState(s string, scenario core.Scenario) (core.State, error) {
	if strings.TrimSpace(s) == "" {
		if scenario == core.ScenarioDistractionAlert {
			return core.StateDistractionDetected, nil
		}
		return core.StateWaitingResponse, nil
	}
	return core.ParseState(s)
}

func (sc ScenarioConfig) ToPolicy() (core.ScenarioPolicy, error) {
	scenario, err := core.ParseScenario(sc.Name)
	if err != nil {
		return core.ScenarioPolicy{}, err
	}
	wrap := func(field string, err error) error {
		return fmt.Errorf("scenario %s: %s: %w", sc.Name, field, err)
	}

	trigger, err := core.ParseModality(sc.Trigger.Modality)
	if err != nil {
		return core.ScenarioPolicy{}, wrap("trigger", err)
	}
	expected, err := core.ParseModalities(sc.Expected)
	if err != nil {
		return core.ScenarioPolicy{}, wrap("expected", err)
	}
	priority, err := core.ParseModalities(sc.Priority)
	if err != nil {
		return core.ScenarioPolicy{}, wrap("priority", err)
	}
	weights := make(map[core.Modality]float64, len(sc.Weights))
	for name, w := range sc.Weights {
		m, err := core.ParseModality(name)
		if err != nil {
			return core.ScenarioPolicy{}, wrap("weights", err)
		}
		weights[m] = w
	}
	strategy, err := core.ParseFusionStrategy(sc.Strategy)
	if err != nil {
		return core.ScenarioPolicy{}, wrap("strategy", err)
	}
	conflictPolicy, err := core.ParseConflictPolicy(sc.ConflictPolicy)
	if err != nil {
		return core.ScenarioPolicy{}, wrap("conflict_policy", err)
	}
	completion, err := core.ParseCompletion(sc.Completion)
	if err != nil {
		return core.ScenarioPolicy{}, wrap("completion", err)
	}
	active, err := ParseActiveState(sc.ActiveState, scenario)
	if err != nil {
		return core.ScenarioPolicy{}, wrap("active_state", err)
	}

	opposites := policy.DefaultOpposites
	if len(sc.Opposites) > 0 {
		opposites = make([]core.IntentPair, 0, len(sc.Opposites))
		for _, pair := range sc.Opposites {
			opposites = append(opposites, core.IntentPair(pair))
		}
	}

	p := core.ScenarioPolicy{
		Scenario: scenario,
		Trigger: core.TriggerSpec{
			Modality:      trigger,
			Types:         sc.Trigger.Types,
			Intents:       sc.Trigger.Intents,
			MinConfidence: sc.Trigger.MinConfidence,
		},
		Expected:       expected,
		Weights:        weights,
		Priority:       priority,
		Strategy:       strategy,
		ConflictPolicy: conflictPolicy,
		Timeout:        sc.Timeout,
		RecentWindow:   sc.RecentWindow,
		Opposites:      opposites,
		Completion:     completion,
		HighConfidence: sc.HighConfidence,
		ActiveState:    active,
	}
	if err := p.Validate(); err != nil {
		return core.ScenarioPolicy{}, err
	}
	return p, nil
}
