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

// Package profile supplies per-driver preference overrides that are merged
// into a scenario policy when a session opens.
package profile

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/AnujaKalahara99/fusion-engine/pkg/core"
)

type fileConfig struct {
	Drivers map[string]driverConfig `yaml:"drivers"`
}

type driverConfig struct {
	Scenarios map[string]overrideConfig `yaml:"scenarios"`
}

type overrideConfig struct {
	PreferredIntent string             `yaml:"preferred_intent"`
	Weights         map[string]float64 `yaml:"weights"`
	Priority        []string           `yaml:"priority"`
}

type profiles map[string]map[core.Scenario]core.ProfileOverride

// Store implements core.ProfileProvider for one active driver.
type Store struct {
	path string

	mu       sync.RWMutex
	driver   string
	profiles profiles
}

// NewStore loads path and selects driver. An empty path yields a store
// with no overrides.
func NewStore(path, driver string) (*Store, error) {
	s := &Store{path: path, driver: driver, profiles: profiles{}}
	if path == "" {
		return s, nil
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Path() string { return s.path }

// Reload re-reads the profile file and swaps the whole set atomically.
func (s *Store) Reload() error {
	p, err := load(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.profiles = p
	s.mu.Unlock()
	return nil
}

// SetDriver switches the driver whose preferences apply to new sessions.
func (s *Store) SetDriver(id string) {
	s.mu.Lock()
	s.driver = id
	s.mu.Unlock()
}

func (s *Store) Driver() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.driver
}

func (s *Store) Overrides(_ context.Context, scenario core.Scenario) (core.ProfileOverride, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.profiles[s.driver][scenario]
	return o, ok
}

// load parses a driver profile file.
func load(path string) (profiles, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}

	out := make(profiles, len(fc.Drivers))
	for id, dc := range fc.Drivers {
		byScenario := make(map[core.Scenario]core.ProfileOverride, len(dc.Scenarios))
		for name, oc := range dc.Scenarios {
			scenario, err := core.ParseScenario(name)
			if err != nil {
				return nil, fmt.Errorf("driver %s: %w", id, err)
			}
			o, err := oc.toOverride()
			if err != nil {
				return nil, fmt.Errorf("driver %s: %s: %w", id, name, err)
			}
			byScenario[scenario] = o
		}
		out[id] = byScenario
	}
	return out, nil
}

func (oc overrideConfig) toOverride() (core.ProfileOverride, error) {
	o := core.ProfileOverride{PreferredIntent: oc.PreferredIntent}
	if len(oc.Weights) > 0 {
		o.Weights = make(map[core.Modality]float64, len(oc.Weights))
		for name, w := range oc.Weights {
			m, err := core.ParseModality(name)
			if err != nil {
				return core.ProfileOverride{}, err
			}
			if w < 0 {
				return core.ProfileOverride{}, fmt.Errorf("%w: negative weight for %s", core.ErrInvalidPolicy, name)
			}
			o.Weights[m] = w
		}
	}
	if len(oc.Priority) > 0 {
		priority, err := core.ParseModalities(oc.Priority)
		if err != nil {
			return core.ProfileOverride{}, err
		}
		o.Priority = priority
	}
	return o, nil
}
