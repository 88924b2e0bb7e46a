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

package plugins

import (
	"sync"

	"github.com/AnujaKalahara99/fusion-engine/pkg/core"
)

// DefaultClientBuffer is the per-client result backlog for streaming sinks.
const DefaultClientBuffer = 16

// Broadcaster fans results out to streaming clients. A client that falls
// behind loses results rather than stalling the others.
type Broadcaster struct {
	buffer  int
	mu      sync.RWMutex
	clients map[string]chan core.FusionResult
}

func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = DefaultClientBuffer
	}
	return &Broadcaster{buffer: buffer, clients: make(map[string]chan core.FusionResult)}
}

// Join registers a client. The returned leave func closes its channel.
func (b *Broadcaster) Join(id string) (<-chan core.FusionResult, func()) {
	ch := make(chan core.FusionResult, b.buffer)
	b.mu.Lock()
	b.clients[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			if b.clients[id] == ch {
				delete(b.clients, id)
			}
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Send offers r to every client and returns how many were skipped.
func (b *Broadcaster) Send(r core.FusionResult) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	skipped := 0
	for _, ch := range b.clients {
		select {
		case ch <- r:
		default:
			skipped++
		}
	}
	return skipped
}

func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}
