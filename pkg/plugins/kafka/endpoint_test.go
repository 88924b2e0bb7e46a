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

package kafka

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnujaKalahara99/fusion-engine/pkg/core"
)

func TestResultMessageKeyedBySession(t *testing.T) {
	decided := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msg, err := resultMessage(core.FusionResult{
		SessionID: "sess-7",
		Scenario:  core.ScenarioDistractionAlert,
		Intent:    "confirm",
		Outcome:   core.OutcomeDecided,
		Strategy:  core.StrategyPriorityBased,
		DecidedAt: decided,
	})
	require.NoError(t, err)

	assert.Equal(t, "sess-7", string(msg.Key))
	assert.Equal(t, decided, msg.Time)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "distraction_alert", string(msg.Headers[0].Value))

	got, err := core.DecodeResult(msg.Value)
	require.NoError(t, err)
	assert.Equal(t, "confirm", got.Intent)
}

func TestSinkWithoutOutputTopicIsNoop(t *testing.T) {
	e := New("k", []string{"localhost:9092"}, "", "", "", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, e.Connect(context.Background()))
	assert.NoError(t, e.Send(context.Background(), core.FusionResult{SessionID: "x"}))
	assert.NoError(t, e.Disconnect(context.Background()))
}
