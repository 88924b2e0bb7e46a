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
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AnujaKalahara99/fusion-engine/pkg/core"
)

const (
	defaultKeyPrefix = "fusion:archive:"

	fieldTotal         = "total"
	fieldCompleted     = "completed"
	fieldTimedOut      = "timed_out"
	fieldInsufficient  = "insufficient"
	fieldConflicts     = "conflicts_settled"
	fieldDurationNanos = "duration_ns"
)

// RedisStore keeps records in a capped list and statistics in hashes so
// several engine instances can share one archive.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	history   int64
	ttl       time.Duration
}

func NewRedisStore(cfg RedisConfig, history int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	if history <= 0 {
		history = DefaultHistory
	}

	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
		history:   int64(history),
		ttl:       cfg.TTL,
	}, nil
}

func (r *RedisStore) recordsKey() string    { return r.keyPrefix + "records" }
func (r *RedisStore) statsKey() string      { return r.keyPrefix + "stats" }
func (r *RedisStore) scenariosKey() string  { return r.keyPrefix + "by_scenario" }
func (r *RedisStore) strategiesKey() string { return r.keyPrefix + "by_strategy" }

func (r *RedisStore) Save(ctx context.Context, rec core.SessionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session record: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, r.recordsKey(), data)
	pipe.LTrim(ctx, r.recordsKey(), 0, r.history-1)

	pipe.HIncrBy(ctx, r.statsKey(), fieldTotal, 1)
	switch rec.Session.State {
	case core.StateInteractionComplete:
		pipe.HIncrBy(ctx, r.statsKey(), fieldCompleted, 1)
	case core.StateTimedOut:
		pipe.HIncrBy(ctx, r.statsKey(), fieldTimedOut, 1)
	}
	if rec.Result.Outcome == core.OutcomeInsufficientData {
		pipe.HIncrBy(ctx, r.statsKey(), fieldInsufficient, 1)
	}
	if rec.Result.ResolvedConflict {
		pipe.HIncrBy(ctx, r.statsKey(), fieldConflicts, 1)
	}
	pipe.HIncrBy(ctx, r.statsKey(), fieldDurationNanos, int64(rec.Duration))
	pipe.HIncrBy(ctx, r.scenariosKey(), rec.Session.Scenario.String(), 1)
	pipe.HIncrBy(ctx, r.strategiesKey(), rec.Result.Strategy.String(), 1)

	if r.ttl > 0 {
		pipe.Expire(ctx, r.recordsKey(), r.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save session record: %w", err)
	}
	return nil
}

func (r *RedisStore) Recent(ctx context.Context, n int) ([]core.SessionRecord, error) {
	stop := int64(n) - 1
	if n <= 0 {
		stop = -1
	}
	raw, err := r.client.LRange(ctx, r.recordsKey(), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("load session records: %w", err)
	}

	out := make([]core.SessionRecord, 0, len(raw))
	for _, data := range raw {
		var rec core.SessionRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *RedisStore) Stats(ctx context.Context) (core.SessionStats, error) {
	pipe := r.client.Pipeline()
	counters := pipe.HGetAll(ctx, r.statsKey())
	scenarios := pipe.HGetAll(ctx, r.scenariosKey())
	strategies := pipe.HGetAll(ctx, r.strategiesKey())
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return core.SessionStats{}, fmt.Errorf("load archive stats: %w", err)
	}

	c := parseCounts(counters.Val())
	t := tally{
		total:         c[fieldTotal],
		completed:     c[fieldCompleted],
		timedOut:      c[fieldTimedOut],
		insufficient:  c[fieldInsufficient],
		conflicts:     c[fieldConflicts],
		durationNanos: c[fieldDurationNanos],
		byScenario:    parseCounts(scenarios.Val()),
		byStrategy:    parseCounts(strategies.Val()),
	}
	return t.stats(), nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func parseCounts(fields map[string]string) map[string]int64 {
	out := make(map[string]int64, len(fields))
	for k, v := range fields {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		out[k] = n
	}
	return out
}
