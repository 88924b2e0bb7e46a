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

package sse

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnujaKalahara99/fusion-engine/pkg/core"
)

func TestResultsStreamAsServerSentEvents(t *testing.T) {
	e := New("sse", 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := httptest.NewServer(e.Handler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/results", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	require.Eventually(t, func() bool { return e.clients.Len() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, e.Send(context.Background(), core.FusionResult{
		SessionID: "s-42",
		Scenario:  core.ScenarioGestureControl,
		Intent:    "stop",
		Outcome:   core.OutcomeDecided,
		Strategy:  core.StrategyMajorityVote,
	}))

	reader := bufio.NewReader(resp.Body)
	var lines []string
	for len(lines) < 3 {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		lines = append(lines, strings.TrimRight(line, "\n"))
	}
	assert.Equal(t, "id: s-42", lines[0])
	assert.Equal(t, "event: decided", lines[1])
	require.True(t, strings.HasPrefix(lines[2], "data: "))

	got, err := core.DecodeResult([]byte(strings.TrimPrefix(lines[2], "data: ")))
	require.NoError(t, err)
	assert.Equal(t, "stop", got.Intent)
}

func TestConnectAndDisconnect(t *testing.T) {
	e := New("sse", 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, e.Connect(context.Background()))
	require.NoError(t, e.Connect(context.Background()))
	require.NoError(t, e.Disconnect(context.Background()))
	require.NoError(t, e.Disconnect(context.Background()))
}
