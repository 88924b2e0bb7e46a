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
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEventFillsDefaults(t *testing.T) {
	received := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	evt, err := DecodeEvent([]byte(`{"modality":"head_pose","type":"pose","confidence":0.3}`), "imu", received)
	require.NoError(t, err)

	assert.NotEmpty(t, evt.ID)
	assert.Equal(t, "imu", evt.Producer)
	assert.Equal(t, ModalityHeadPose, evt.Modality)
	assert.Equal(t, received, evt.Timestamp)
	assert.False(t, evt.HasIntent())
}

func TestDecodeEventKeepsExplicitFields(t *testing.T) {
	evt, err := DecodeEvent([]byte(`{
		"id":"e-1","producer":"mic","modality":"audio","type":"intent_classified",
		"timestamp":"2026-05-01T08:00:01.5Z","confidence":0.85,"intent":"confirm",
		"payload":{"text":"yes"}
	}`), "fallback", time.Now())
	require.NoError(t, err)

	assert.Equal(t, "e-1", evt.ID)
	assert.Equal(t, "mic", evt.Producer)
	assert.Equal(t, time.Date(2026, 5, 1, 8, 0, 1, 500_000_000, time.UTC), evt.Timestamp)
	assert.Equal(t, "confirm", evt.Intent)
	assert.JSONEq(t, `{"text":"yes"}`, string(evt.Payload))
}

func TestDecodeEventErrors(t *testing.T) {
	cases := map[string]string{
		"syntax":             `{"modality":`,
		"unknown modality":   `{"modality":"smell","confidence":0.5}`,
		"missing confidence": `{"modality":"audio"}`,
		"bad timestamp":      `{"modality":"audio","confidence":0.5,"timestamp":"yesterday"}`,
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeEvent([]byte(data), "p", time.Now())
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedEvent))
		})
	}
}

func TestDecodeEventsKeepsGoodElementsOfABatch(t *testing.T) {
	batch, err := DecodeEvents([]byte(`[
		{"modality":"audio","confidence":0.5},
		{"modality":"lidar","confidence":0.5},
		{"modality":"gaze"},
		{"modality":"gesture","confidence":0.5,"timestamp":"yesterday"},
		42
	]`), "p", time.Now())
	require.NoError(t, err)

	require.Len(t, batch.Events, 3)
	assert.Equal(t, ModalityAudio, batch.Events[0].Modality)
	assert.NoError(t, batch.Events[0].Validate())
	assert.Equal(t, ModalityUnknown, batch.Events[1].Modality)
	assert.True(t, errors.Is(batch.Events[1].Validate(), ErrUnknownModality))
	assert.True(t, errors.Is(batch.Events[2].Validate(), ErrMalformedEvent))

	require.Len(t, batch.Invalid, 2)
	assert.Contains(t, batch.Invalid[0].Error(), "event 3")
	assert.Contains(t, batch.Invalid[1].Error(), "event 4")
}

func TestDecodeEventsRejectsNonJSON(t *testing.T) {
	for _, data := range []string{``, `{"modality":`, `[{"modality":"audio"}`} {
		_, err := DecodeEvents([]byte(data), "p", time.Now())
		require.Error(t, err, data)
		assert.True(t, errors.Is(err, ErrMalformedEvent))
	}

	batch, err := DecodeEvents([]byte(` [{"modality":"gaze","confidence":0.5}] `), "p", time.Now())
	require.NoError(t, err)
	assert.Len(t, batch.Events, 1)
	assert.Empty(t, batch.Invalid)
}

func TestEncodeEventUsesNullForMissingIntent(t *testing.T) {
	data, err := EncodeEvent(NewModalityEvent("cam", ModalityVision, "scene", "", 0.4))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "intent")
	assert.Nil(t, raw["intent"])
	assert.Equal(t, "vision", raw["modality"])
}

func TestProducerID(t *testing.T) {
	r := httptest.NewRequest("GET", "/events", nil)
	r.Header.Set(ProducerIDHeader, "kiosk")
	assert.Equal(t, "kiosk", ProducerID(r))

	a := httptest.NewRequest("GET", "/events", nil)
	a.RemoteAddr = "10.0.0.7:5000"
	b := httptest.NewRequest("GET", "/events", nil)
	b.RemoteAddr = "10.0.0.7:6000"
	assert.Len(t, ProducerID(a), 12)
	assert.Equal(t, ProducerID(a), ProducerID(b))
}
