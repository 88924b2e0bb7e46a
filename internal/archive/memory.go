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
	"sync"

	"github.com/AnujaKalahara99/fusion-engine/pkg/core"
)

// MemoryStore keeps the most recent records in a ring and counts every
// record ever saved.
type MemoryStore struct {
	mu     sync.RWMutex
	ring   []core.SessionRecord
	next   int
	full   bool
	tally  tally
	closed bool
}

func NewMemoryStore(history int) *MemoryStore {
	if history <= 0 {
		history = DefaultHistory
	}
	return &MemoryStore{
		ring:  make([]core.SessionRecord, history),
		tally: newTally(),
	}
}

func (s *MemoryStore) Save(_ context.Context, rec core.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return core.ErrStoreClosed
	}
	s.ring[s.next] = rec
	s.next = (s.next + 1) % len(s.ring)
	if s.next == 0 {
		s.full = true
	}
	s.tally.add(rec)
	return nil
}

// Recent returns up to n records, newest first. n <= 0 returns all kept.
func (s *MemoryStore) Recent(_ context.Context, n int) ([]core.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, core.ErrStoreClosed
	}
	size := s.next
	if s.full {
		size = len(s.ring)
	}
	if n <= 0 || n > size {
		n = size
	}
	out := make([]core.SessionRecord, 0, n)
	for i := 1; i <= n; i++ {
		idx := (s.next - i + len(s.ring)) % len(s.ring)
		out = append(out, s.ring[idx])
	}
	return out, nil
}

func (s *MemoryStore) Stats(_ context.Context) (core.SessionStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return core.SessionStats{}, core.ErrStoreClosed
	}
	return s.tally.stats(), nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
