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

package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnujaKalahara99/fusion-engine/pkg/core"
)

func record(id string, scenario core.Scenario, state core.State, outcome core.Outcome, d time.Duration) core.SessionRecord {
	return core.SessionRecord{
		Session: core.SessionView{ID: id, Scenario: scenario, State: state},
		Result: core.FusionResult{
			SessionID: id,
			Scenario:  scenario,
			Outcome:   outcome,
			Strategy:  core.StrategyPriorityBased,
		},
		Triggers: 1,
		Duration: core.Duration(d),
	}
}

func sampleRecords() []core.SessionRecord {
	conflicted := record("s3", core.ScenarioVoiceCommand, core.StateInteractionComplete, core.OutcomeDecided, 3*time.Second)
	conflicted.Result.ResolvedConflict = true
	conflicted.Result.Strategy = core.StrategyConfidenceWeighted
	return []core.SessionRecord{
		record("s1", core.ScenarioDistractionAlert, core.StateInteractionComplete, core.OutcomeDecided, time.Second),
		record("s2", core.ScenarioDistractionAlert, core.StateTimedOut, core.OutcomeTimedOut, 5*time.Second),
		conflicted,
		record("s4", core.ScenarioGestureControl, core.StateInteractionComplete, core.OutcomeInsufficientData, 3*time.Second),
	}
}

func assertSampleStats(t *testing.T, stats core.SessionStats) {
	t.Helper()
	assert.Equal(t, int64(4), stats.Total)
	assert.Equal(t, int64(3), stats.Completed)
	assert.Equal(t, int64(1), stats.TimedOut)
	assert.Equal(t, int64(1), stats.Insufficient)
	assert.Equal(t, int64(1), stats.ConflictsSettled)
	assert.InDelta(t, 0.75, stats.CompletionRate, 1e-9)
	assert.Equal(t, core.Duration(3*time.Second), stats.AvgDuration)
	assert.Equal(t, int64(2), stats.ByScenario["distraction_alert"])
	assert.Equal(t, int64(1), stats.ByScenario["gesture_control"])
	assert.Equal(t, int64(3), stats.ByStrategy["priority_based"])
	assert.Equal(t, int64(1), stats.ByStrategy["confidence_weighted"])
}

func TestMemoryStoreStats(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(10)
	for _, rec := range sampleRecords() {
		require.NoError(t, store.Save(ctx, rec))
	}
	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assertSampleStats(t, stats)
}

func TestMemoryStoreEmptyStats(t *testing.T) {
	stats, err := NewMemoryStore(0).Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
	assert.Zero(t, stats.CompletionRate)
}

func TestMemoryStoreRecentIsBoundedNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(3)
	for i := 1; i <= 5; i++ {
		id := fmt.Sprintf("s%d", i)
		require.NoError(t, store.Save(ctx, record(id, core.ScenarioVoiceCommand, core.StateTimedOut, core.OutcomeTimedOut, time.Second)))
	}

	recent, err := store.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "s5", recent[0].Session.ID)
	assert.Equal(t, "s4", recent[1].Session.ID)
	assert.Equal(t, "s3", recent[2].Session.ID)

	two, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.Total)
}

func TestMemoryStoreClosed(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(3)
	require.NoError(t, store.Close())

	err := store.Save(ctx, record("s1", core.ScenarioVoiceCommand, core.StateTimedOut, core.OutcomeTimedOut, 0))
	assert.True(t, errors.Is(err, core.ErrStoreClosed))
	_, err = store.Recent(ctx, 1)
	assert.True(t, errors.Is(err, core.ErrStoreClosed))
}

func TestNewStore(t *testing.T) {
	store, err := NewStore(Config{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	_, err = NewStore(Config{Type: StoreTypeRedis})
	assert.Error(t, err)

	_, err = NewStore(Config{Type: "etcd"})
	assert.Error(t, err)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	prefix := fmt.Sprintf("fusion:test:%d:", time.Now().UnixNano())
	store, err := NewRedisStore(RedisConfig{Addr: addr, KeyPrefix: prefix, TTL: time.Minute}, 2)
	require.NoError(t, err)
	t.Cleanup(func() {
		store.client.Del(ctx, store.recordsKey(), store.statsKey(), store.scenariosKey(), store.strategiesKey())
		_ = store.Close()
	})

	for _, rec := range sampleRecords() {
		require.NoError(t, store.Save(ctx, rec))
	}

	recent, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "s4", recent[0].Session.ID)
	assert.Equal(t, core.OutcomeInsufficientData, recent[0].Result.Outcome)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assertSampleStats(t, stats)
}
