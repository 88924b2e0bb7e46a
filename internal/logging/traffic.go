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

package logging

import (
	"context"
	"log/slog"

	"github.com/AnujaKalahara99/fusion-engine/internal/bus"
	"github.com/AnujaKalahara99/fusion-engine/pkg/core"
)

// Subscription names used on the buses. Drops on these queues never
// affect sessions.
const (
	EventSubscriber  = "telemetry-events"
	ResultSubscriber = "telemetry-results"
)

// TrafficLogger is the read-only telemetry subscriber: it records every
// perception event and fusion result as structured log lines.
type TrafficLogger struct {
	logger *slog.Logger
}

func NewTrafficLogger(logger *slog.Logger) *TrafficLogger {
	return &TrafficLogger{logger: logger.With("component", "traffic")}
}

func (l *TrafficLogger) LogEvent(evt core.ModalityEvent) {
	l.logger.Info("event",
		"event_id", evt.ID,
		"producer", evt.Producer,
		"modality", evt.Modality.String(),
		"type", evt.Type,
		"intent", evt.Intent,
		"confidence", evt.Confidence,
		"payload_size", len(evt.Payload),
		"timestamp", evt.Timestamp,
	)
}

func (l *TrafficLogger) LogResult(r core.FusionResult) {
	l.logger.Info("result",
		"session_id", r.SessionID,
		"scenario", r.Scenario.String(),
		"outcome", r.Outcome.String(),
		"strategy", r.Strategy.String(),
		"intent", r.Intent,
		"confidence", r.Confidence,
		"resolved_conflict", r.ResolvedConflict,
		"contributing", len(r.Contributing),
		"conflicting", len(r.Conflicting),
		"decided_at", r.DecidedAt,
	)
}

// Run logs both streams until ctx ends or both buses close.
func (l *TrafficLogger) Run(ctx context.Context, events *bus.Bus[core.ModalityEvent], results *bus.Bus[core.FusionResult]) error {
	evSub := events.Subscribe(EventSubscriber, nil)
	defer evSub.Unsubscribe()
	resSub := results.Subscribe(ResultSubscriber, nil)
	defer resSub.Unsubscribe()

	evC, resC := evSub.C(), resSub.C()
	for evC != nil || resC != nil {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-evC:
			if !ok {
				evC = nil
				continue
			}
			l.LogEvent(evt)
		case r, ok := <-resC:
			if !ok {
				resC = nil
				continue
			}
			l.LogResult(r)
		}
	}
	return nil
}
