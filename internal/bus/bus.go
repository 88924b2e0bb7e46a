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

// Package bus is a typed publish/subscribe channel with bounded
// per-subscriber queues. Publishing never blocks: when a subscriber falls
// behind, its oldest buffered item is discarded and reported.
package bus

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/AnujaKalahara99/fusion-engine/pkg/core"
)

const DefaultQueueSize = 64

// Overflow describes an item dropped from a full subscriber queue.
type Overflow[T any] struct {
	Bus        string
	Subscriber string
	Dropped    T
}

type Stats struct {
	Published   uint64 `json:"published"`
	Rejected    uint64 `json:"rejected"`
	Delivered   uint64 `json:"delivered"`
	Dropped     uint64 `json:"dropped"`
	Subscribers int    `json:"subscribers"`
}

type Option[T any] func(*Bus[T])

func WithQueueSize[T any](n int) Option[T] {
	return func(b *Bus[T]) {
		if n > 0 {
			b.queueSize = n
		}
	}
}

// WithValidator rejects items at the bus boundary before any delivery.
func WithValidator[T any](fn func(T) error) Option[T] {
	return func(b *Bus[T]) { b.validate = fn }
}

// WithOverflowHandler receives every drop caused by a full queue. It runs
// on the publisher's goroutine and must not block.
func WithOverflowHandler[T any](fn func(Overflow[T])) Option[T] {
	return func(b *Bus[T]) { b.onOverflow = fn }
}

func WithLogger[T any](logger *slog.Logger) Option[T] {
	return func(b *Bus[T]) {
		if logger != nil {
			b.logger = logger
		}
	}
}

type Bus[T any] struct {
	name       string
	queueSize  int
	validate   func(T) error
	onOverflow func(Overflow[T])
	logger     *slog.Logger

	mu     sync.RWMutex
	subs   map[uint64]*Subscription[T]
	nextID uint64
	closed bool

	published atomic.Uint64
	rejected  atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
}

func New[T any](name string, opts ...Option[T]) *Bus[T] {
	b := &Bus[T]{
		name:      name,
		queueSize: DefaultQueueSize,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		subs:      make(map[uint64]*Subscription[T]),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bus[T]) Name() string { return b.name }

// Publish fans v out to every matching subscriber. A validation failure is
// counted and returned; nothing is delivered in that case.
func (b *Bus[T]) Publish(v T) error {
	if b.validate != nil {
		if err := b.validate(v); err != nil {
			b.rejected.Add(1)
			b.logger.Warn("rejected malformed item", "bus", b.name, "error", err)
			return err
		}
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return fmt.Errorf("%w: %s", core.ErrBusClosed, b.name)
	}
	b.published.Add(1)

	for _, sub := range b.subs {
		if sub.match != nil && !sub.match(v) {
			continue
		}
		dropped, ok, overflowed := sub.enqueue(v)
		if !ok {
			continue
		}
		b.delivered.Add(1)
		if overflowed {
			b.dropped.Add(1)
			b.logger.Debug("subscriber queue full, dropped oldest", "bus", b.name, "subscriber", sub.name)
			if b.onOverflow != nil {
				b.onOverflow(Overflow[T]{Bus: b.name, Subscriber: sub.name, Dropped: dropped})
			}
		}
	}
	return nil
}

// Reject counts input that failed before it could be published, such as
// an undecodable element of an inbound batch.
func (b *Bus[T]) Reject(err error) {
	b.rejected.Add(1)
	b.logger.Warn("rejected malformed item", "bus", b.name, "error", err)
}

// Subscribe registers a consumer. A nil predicate matches everything.
func (b *Bus[T]) Subscribe(name string, match func(T) bool) *Subscription[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscription[T]{
		name:  name,
		match: match,
		ch:    make(chan T, b.queueSize),
		bus:   b,
	}
	if b.closed {
		sub.closed = true
		close(sub.ch)
		return sub
	}
	b.nextID++
	sub.id = b.nextID
	b.subs[sub.id] = sub
	return sub
}

func (b *Bus[T]) remove(id uint64) {
	b.mu.Lock()
	delete(b.subs, id)
	b.mu.Unlock()
}

func (b *Bus[T]) Stats() Stats {
	b.mu.RLock()
	n := len(b.subs)
	b.mu.RUnlock()
	return Stats{
		Published:   b.published.Load(),
		Rejected:    b.rejected.Load(),
		Delivered:   b.delivered.Load(),
		Dropped:     b.dropped.Load(),
		Subscribers: n,
	}
}

// Close ends every subscription; later publishes fail with ErrBusClosed.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[uint64]*Subscription[T])
	b.mu.Unlock()

	for _, sub := range subs {
		sub.shutdown()
	}
}

// Subscription is a lazy stream of matching items, open until Unsubscribe.
type Subscription[T any] struct {
	id    uint64
	name  string
	match func(T) bool
	bus   *Bus[T]

	mu     sync.Mutex
	ch     chan T
	closed bool
}

func (s *Subscription[T]) Name() string { return s.name }

// C is closed after Unsubscribe or when the bus closes.
func (s *Subscription[T]) C() <-chan T { return s.ch }

func (s *Subscription[T]) Unsubscribe() {
	s.bus.remove(s.id)
	s.shutdown()
}

func (s *Subscription[T]) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// enqueue buffers v, evicting the oldest buffered item when full.
func (s *Subscription[T]) enqueue(v T) (dropped T, ok bool, overflowed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return dropped, false, false
	}
	for {
		select {
		case s.ch <- v:
			return dropped, true, overflowed
		default:
		}
		select {
		case old := <-s.ch:
			dropped = old
			overflowed = true
		default:
		}
	}
}

// ByModality matches events from any of the given modalities.
func ByModality(modalities ...core.Modality) func(core.ModalityEvent) bool {
	set := make(map[core.Modality]bool, len(modalities))
	for _, m := range modalities {
		set[m] = true
	}
	return func(e core.ModalityEvent) bool { return set[e.Modality] }
}

// ByEventType matches events carrying any of the given type tags.
func ByEventType(types ...string) func(core.ModalityEvent) bool {
	set := make(map[string]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return func(e core.ModalityEvent) bool { return set[e.Type] }
}
