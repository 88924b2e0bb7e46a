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

package amqp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnujaKalahara99/fusion-engine/pkg/core"
)

func TestResultMessageProperties(t *testing.T) {
	r := core.FusionResult{
		SessionID: "sess-9",
		Scenario:  core.ScenarioVoiceCommand,
		Outcome:   core.OutcomeTimedOut,
		Strategy:  core.StrategyConfidenceWeighted,
	}
	msg := resultMessage(r, []byte(`{}`))

	require.NotNil(t, msg.Properties)
	assert.Equal(t, "sess-9", msg.Properties.MessageID)
	assert.Equal(t, "voice_command", *msg.Properties.Subject)
	assert.Equal(t, "application/json", *msg.Properties.ContentType)
	assert.Equal(t, "timed_out", msg.ApplicationProperties["outcome"])
	assert.Equal(t, []byte(`{}`), msg.GetData())
}
