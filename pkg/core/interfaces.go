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
	"context"
	"time"
)

// Publisher is the ingress side of the event bus.
type Publisher interface {
	Publish(evt ModalityEvent) error
}

// Rejecter is implemented by publishers that count input discarded before
// it could become an event.
type Rejecter interface {
	Reject(err error)
}

// Source feeds perception events from an external transport.
type Source interface {
	Name() string
	Type() string
	Start(ctx context.Context, pub Publisher) error
	Stop(ctx context.Context) error
}

// Sink delivers fusion results to the action/response layer.
type Sink interface {
	Name() string
	Type() string
	Connect(ctx context.Context) error
	Send(ctx context.Context, result FusionResult) error
	Disconnect(ctx context.Context) error
}

// ProfileProvider supplies per-user overrides for a scenario.
type ProfileProvider interface {
	Overrides(ctx context.Context, scenario Scenario) (ProfileOverride, bool)
}

// SessionRecord is the archived form of a terminated session.
type SessionRecord struct {
	Session      SessionView  `json:"session"`
	Result       FusionResult `json:"result"`
	Transitions  []Transition `json:"transitions"`
	Triggers     int          `json:"triggers"`
	MissedEvents int64        `json:"missed_events"`
	Duration     Duration     `json:"duration"`
}

// SessionStats aggregates archived sessions.
type SessionStats struct {
	Total            int64            `json:"total"`
	Completed        int64            `json:"completed"`
	TimedOut         int64            `json:"timed_out"`
	Insufficient     int64            `json:"insufficient"`
	ConflictsSettled int64            `json:"conflicts_settled"`
	CompletionRate   float64          `json:"completion_rate"`
	AvgDuration      Duration         `json:"avg_duration"`
	ByScenario       map[string]int64 `json:"by_scenario"`
	ByStrategy       map[string]int64 `json:"by_strategy"`
}

// ArchiveStore keeps terminated sessions for introspection and statistics.
type ArchiveStore interface {
	Save(ctx context.Context, rec SessionRecord) error
	Recent(ctx context.Context, n int) ([]SessionRecord, error)
	Stats(ctx context.Context) (SessionStats, error)
	Close() error
}

// Duration marshals as a Go duration string.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) { return []byte(time.Duration(d).String()), nil }

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}
