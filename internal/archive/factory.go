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

// Package archive keeps terminated sessions and their aggregate statistics.
package archive

import (
	"fmt"
	"time"

	"github.com/AnujaKalahara99/fusion-engine/pkg/core"
)

type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeRedis  StoreType = "redis"
)

// DefaultHistory bounds the number of records kept for Recent.
const DefaultHistory = 100

type Config struct {
	Type    StoreType   `yaml:"type"`
	History int         `yaml:"history"`
	Redis   RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	KeyPrefix string        `yaml:"key_prefix"`
	TTL       time.Duration `yaml:"ttl"`
}

// NewStore creates an ArchiveStore based on configuration.
func NewStore(cfg Config) (core.ArchiveStore, error) {
	history := cfg.History
	if history <= 0 {
		history = DefaultHistory
	}
	switch cfg.Type {
	case StoreTypeMemory, "":
		return NewMemoryStore(history), nil
	case StoreTypeRedis:
		if cfg.Redis.Addr == "" {
			return nil, fmt.Errorf("archive: redis addr is required when type=redis")
		}
		return NewRedisStore(cfg.Redis, history)
	default:
		return nil, fmt.Errorf("unknown archive store type: %s", cfg.Type)
	}
}

// tally accumulates the counters behind core.SessionStats.
type tally struct {
	total, completed, timedOut, insufficient, conflicts int64
	durationNanos                                        int64
	byScenario, byStrategy                               map[string]int64
}

func newTally() tally {
	return tally{byScenario: map[string]int64{}, byStrategy: map[string]int64{}}
}

func (t *tally) add(rec core.SessionRecord) {
	t.total++
	switch rec.Session.State {
	case core.StateInteractionComplete:
		t.completed++
	case core.StateTimedOut:
		t.timedOut++
	}
	if rec.Result.Outcome == core.OutcomeInsufficientData {
		t.insufficient++
	}
	if rec.Result.ResolvedConflict {
		t.conflicts++
	}
	t.durationNanos += int64(rec.Duration)
	t.byScenario[rec.Session.Scenario.String()]++
	t.byStrategy[rec.Result.Strategy.String()]++
}

func (t tally) stats() core.SessionStats {
	s := core.SessionStats{
		Total:            t.total,
		Completed:        t.completed,
		TimedOut:         t.timedOut,
		Insufficient:     t.insufficient,
		ConflictsSettled: t.conflicts,
		ByScenario:       make(map[string]int64, len(t.byScenario)),
		ByStrategy:       make(map[string]int64, len(t.byStrategy)),
	}
	for k, v := range t.byScenario {
		s.ByScenario[k] = v
	}
	for k, v := range t.byStrategy {
		s.ByStrategy[k] = v
	}
	if t.total > 0 {
		s.CompletionRate = float64(t.completed) / float64(t.total)
		s.AvgDuration = core.Duration(t.durationNanos / t.total)
	}
	return s
}
