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

package status

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnujaKalahara99/fusion-engine/internal/archive"
	"github.com/AnujaKalahara99/fusion-engine/internal/bus"
	"github.com/AnujaKalahara99/fusion-engine/pkg/core"
)

type staticSessions struct {
	active []core.SessionView
	missed int64
}

func (s staticSessions) Active() []core.SessionView { return s.active }
func (s staticSessions) ActiveCount() int           { return len(s.active) }
func (s staticSessions) MissedEvents() int64        { return s.missed }

type staticHealth map[string]bool

func (h staticHealth) Health() map[string]bool { return h }

func get(t *testing.T, h http.Handler, target string, out any) int {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	if out != nil && rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec.Code
}

func logger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestHealthReportsDegradedSinks(t *testing.T) {
	sessions := staticSessions{active: []core.SessionView{{ID: "a"}}}
	srv := New(0, sessions, logger(), WithHealth(staticHealth{"mqtt": true, "kafka": false}))

	var resp healthResponse
	require.Equal(t, http.StatusOK, get(t, srv.Handler(), "/healthz", &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, 1, resp.ActiveSessions)
	assert.False(t, resp.Sinks["kafka"])
}

func TestSessionsSortedByCreation(t *testing.T) {
	now := time.Now()
	sessions := staticSessions{active: []core.SessionView{
		{ID: "late", Scenario: core.ScenarioVoiceCommand, CreatedAt: now, State: core.StateWaitingResponse},
		{ID: "early", Scenario: core.ScenarioGestureControl, CreatedAt: now.Add(-time.Second), State: core.StateMonitoring},
	}}
	srv := New(0, sessions, logger())

	var views []core.SessionView
	require.Equal(t, http.StatusOK, get(t, srv.Handler(), "/sessions", &views))
	require.Len(t, views, 2)
	assert.Equal(t, "early", views[0].ID)
	assert.Equal(t, "late", views[1].ID)
}

func TestArchiveEndpoint(t *testing.T) {
	store := archive.NewMemoryStore(10)
	defer store.Close()
	for _, id := range []string{"one", "two", "three"} {
		require.NoError(t, store.Save(context.Background(), core.SessionRecord{
			Session: core.SessionView{ID: id, Scenario: core.ScenarioVoiceCommand, State: core.StateInteractionComplete},
			Result: core.FusionResult{
				SessionID: id,
				Scenario:  core.ScenarioVoiceCommand,
				Outcome:   core.OutcomeDecided,
				Strategy:  core.StrategyConfidenceWeighted,
			},
		}))
	}
	srv := New(0, staticSessions{}, logger(), WithArchive(store))

	var resp archiveResponse
	require.Equal(t, http.StatusOK, get(t, srv.Handler(), "/archive?n=2", &resp))
	assert.Equal(t, int64(3), resp.Stats.Total)
	require.Len(t, resp.Recent, 2)
	assert.Equal(t, "three", resp.Recent[0].Session.ID)

	assert.Equal(t, http.StatusBadRequest, get(t, srv.Handler(), "/archive?n=-1", nil))
	assert.Equal(t, http.StatusNotFound, get(t, New(0, staticSessions{}, logger()).Handler(), "/archive", nil))
}

func TestBusEndpoint(t *testing.T) {
	events := bus.New("events", bus.WithValidator(core.ModalityEvent.Validate))
	defer events.Close()
	_ = events.Publish(core.NewModalityEvent("mic", core.ModalityAudio, "speech", "confirm", 2))

	srv := New(0, staticSessions{missed: 4}, logger(), WithBus("events", events.Stats))

	var resp busResponse
	require.Equal(t, http.StatusOK, get(t, srv.Handler(), "/bus", &resp))
	assert.Equal(t, int64(4), resp.MissedEvents)
	assert.Equal(t, uint64(1), resp.Buses["events"].Rejected)
}
