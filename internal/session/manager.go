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

// Package session owns the interaction sessions. Each active session runs
// as its own goroutine that consumes events strictly in arrival order and
// races them against the session deadline.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/AnujaKalahara99/fusion-engine/internal/bus"
	"github.com/AnujaKalahara99/fusion-engine/internal/fusion"
	"github.com/AnujaKalahara99/fusion-engine/internal/policy"
	"github.com/AnujaKalahara99/fusion-engine/pkg/core"
)

const (
	// SubscriberName is the manager's subscription on the event bus.
	SubscriberName = "session-manager"

	DefaultInboxSize = 16

	archiveTimeout = 2 * time.Second
)

type Option func(*Manager)

func WithProfiles(p core.ProfileProvider) Option {
	return func(m *Manager) { m.profiles = p }
}

func WithArchive(a core.ArchiveStore) Option {
	return func(m *Manager) { m.archive = a }
}

func WithInboxSize(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.inboxSize = n
		}
	}
}

// WithClock overrides the source of event and result timestamps.
// Deadlines still run on the wall clock.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

type Manager struct {
	policies []core.ScenarioPolicy
	engine   *fusion.Engine
	events   *bus.Bus[core.ModalityEvent]
	results  *bus.Bus[core.FusionResult]
	profiles core.ProfileProvider
	archive  core.ArchiveStore
	logger   *slog.Logger

	inboxSize int
	now       func() time.Time

	sessions sync.Map // core.Scenario -> *activeSession

	subOnce sync.Once
	sub     *bus.Subscription[core.ModalityEvent]

	mu      sync.Mutex
	stopped bool
	stop    chan struct{}
	wg      sync.WaitGroup

	missed atomic.Int64
}

func NewManager(
	table *policy.Table,
	engine *fusion.Engine,
	events *bus.Bus[core.ModalityEvent],
	results *bus.Bus[core.FusionResult],
	logger *slog.Logger,
	opts ...Option,
) *Manager {
	m := &Manager{
		engine:    engine,
		events:    events,
		results:   results,
		logger:    logger.With("component", "session"),
		inboxSize: DefaultInboxSize,
		now:       time.Now,
		stop:      make(chan struct{}),
	}
	for _, s := range table.Scenarios() {
		p, _ := table.Lookup(s)
		m.policies = append(m.policies, p)
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe attaches the manager to the event bus. Run calls it when it
// has not been called yet.
func (m *Manager) Subscribe() {
	m.subOnce.Do(func() { m.sub = m.events.Subscribe(SubscriberName, nil) })
}

// Run routes every event from the bus until ctx ends or the bus closes.
// Active sessions are then stopped without emitting results.
func (m *Manager) Run(ctx context.Context) error {
	m.Subscribe()
	sub := m.sub
	defer sub.Unsubscribe()
	defer m.shutdown()

	m.logger.Info("session manager started", "scenarios", len(m.policies))
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-sub.C():
			if !ok {
				return nil
			}
			if err := m.Handle(ctx, evt); err != nil && !errors.Is(err, context.Canceled) {
				m.logger.Warn("event not routed", "event_id", evt.ID, "error", err)
			}
		}
	}
}

// Handle routes one event. For each scenario an active session receives
// the event when it expects the modality or the event re-triggers it;
// otherwise a matching trigger opens a new session.
func (m *Manager) Handle(ctx context.Context, evt core.ModalityEvent) error {
	for _, p := range m.policies {
		trigger := p.Trigger.Matches(evt)
		if v, ok := m.sessions.Load(p.Scenario); ok {
			s := v.(*activeSession)
			if !trigger && !s.policy.Expects(evt.Modality) {
				continue
			}
			delivered, err := m.deliver(ctx, s, evt)
			if err != nil {
				return err
			}
			if delivered {
				continue
			}
			m.sessions.CompareAndDelete(p.Scenario, s)
		}
		if !trigger {
			continue
		}
		if err := m.create(ctx, p, evt); err != nil {
			return err
		}
	}
	return nil
}

// deliver reports false when the session finished before taking evt.
func (m *Manager) deliver(ctx context.Context, s *activeSession, evt core.ModalityEvent) (bool, error) {
	select {
	case <-s.done:
		return false, nil
	default:
	}
	select {
	case s.inbox <- evt:
		return true, nil
	case <-s.done:
		m.logger.Debug("session terminated before taking event",
			"session_id", s.id,
			"event_id", evt.ID,
		)
		return false, nil
	case <-m.stop:
		return false, core.ErrManagerStopped
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (m *Manager) create(ctx context.Context, p core.ScenarioPolicy, trigger core.ModalityEvent) error {
	if m.profiles != nil {
		if o, ok := m.profiles.Overrides(ctx, p.Scenario); ok {
			p = p.WithOverrides(o)
		}
	}

	now := m.now()
	deadline, cancel := context.WithTimeout(context.Background(), p.Timeout)
	s := &activeSession{
		id:        uuid.New().String(),
		scenario:  p.Scenario,
		policy:    p,
		inbox:     make(chan core.ModalityEvent, m.inboxSize),
		deadline:  deadline,
		cancel:    cancel,
		done:      make(chan struct{}),
		state:     core.StateIdle,
		createdAt: now,
		expiresAt: now.Add(p.Timeout),
	}
	if err := s.moveTo(core.StateMonitoring, now); err != nil {
		cancel()
		return err
	}
	if err := s.moveTo(p.ActiveState, now); err != nil {
		cancel()
		return err
	}

	for {
		m.mu.Lock()
		if m.stopped {
			m.mu.Unlock()
			cancel()
			return core.ErrManagerStopped
		}
		v, loaded := m.sessions.LoadOrStore(p.Scenario, s)
		if !loaded {
			m.wg.Add(1)
			m.mu.Unlock()
			break
		}
		m.mu.Unlock()
		existing := v.(*activeSession)
		delivered, err := m.deliver(ctx, existing, trigger)
		if err != nil || delivered {
			cancel()
			return err
		}
		m.sessions.CompareAndDelete(p.Scenario, existing)
	}

	m.logger.Info("session created",
		"session_id", s.id,
		"scenario", p.Scenario.String(),
		"trigger_modality", trigger.Modality.String(),
		"state", p.ActiveState.String(),
		"timeout", p.Timeout.String(),
	)

	go m.runSession(s)

	_, err := m.deliver(ctx, s, trigger)
	return err
}

func (m *Manager) runSession(s *activeSession) {
	defer m.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("session panic recovered", "session_id", s.id, "error", r)
			s.terminate()
			m.sessions.CompareAndDelete(s.scenario, s)
		}
	}()

	for {
		select {
		case <-s.deadline.Done():
			if errors.Is(s.deadline.Err(), context.DeadlineExceeded) {
				m.expire(s)
			}
			return
		case <-m.stop:
			s.terminate()
			m.sessions.CompareAndDelete(s.scenario, s)
			m.logger.Debug("session stopped", "session_id", s.id)
			return
		case evt := <-s.inbox:
			if m.apply(s, evt) {
				return
			}
		}
	}
}

// apply processes one inbox event and reports whether the session
// completed.
func (m *Manager) apply(s *activeSession, evt core.ModalityEvent) bool {
	if s.policy.Trigger.Matches(evt) {
		s.triggers++
		if s.triggers > 1 {
			m.logger.Debug("duplicate trigger merged", "session_id", s.id, "event_id", evt.ID)
		}
	}
	if !s.policy.Expects(evt.Modality) {
		return false
	}

	s.append(evt)
	if err := s.moveTo(core.StateWaitingResponse, m.now()); err != nil {
		m.logger.Error("append rejected", "session_id", s.id, "error", err)
		return false
	}

	view := s.view()
	if c, ok := m.engine.Conflict(view, s.policy); ok && len(c.Events) > s.conflicting {
		s.conflicting = len(c.Events)
		m.logger.Info("intent conflict detected",
			"session_id", s.id,
			"scenario", s.scenario.String(),
			"events", len(c.Events),
		)
	}
	if !m.engine.Ready(view, s.policy) {
		return false
	}

	if err := s.moveTo(core.StateProcessingResponse, m.now()); err != nil {
		m.logger.Error("fusion rejected", "session_id", s.id, "error", err)
		return false
	}
	s.cancel()

	result := m.engine.Fuse(view, s.policy, m.now())
	if err := s.moveTo(core.StateInteractionComplete, result.DecidedAt); err != nil {
		m.logger.Error("completion rejected", "session_id", s.id, "error", err)
	}
	m.finish(s, result)
	return true
}

func (m *Manager) expire(s *activeSession) {
	now := m.now()
	if err := s.moveTo(core.StateTimedOut, now); err != nil {
		m.logger.Error("timeout rejected", "session_id", s.id, "error", err)
	}
	m.finish(s, core.NewTimedOutResult(s.view(), s.policy.Strategy, now))
}

// finish emits the single terminal result, archives and unregisters.
func (m *Manager) finish(s *activeSession, result core.FusionResult) {
	s.terminate()

	if err := m.results.Publish(result); err != nil {
		m.logger.Warn("result not published", "session_id", s.id, "error", err)
	}

	m.logger.Info("session finished",
		"session_id", s.id,
		"scenario", s.scenario.String(),
		"outcome", result.Outcome.String(),
		"intent", result.Intent,
		"confidence", result.Confidence,
		"resolved_conflict", result.ResolvedConflict,
		"events", len(result.Contributing),
		"missed_events", s.missed.Load(),
	)

	if m.archive != nil {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		if err := m.archive.Save(ctx, s.record(result)); err != nil {
			m.logger.Warn("session not archived", "session_id", s.id, "error", err)
		}
		cancel()
	}

	m.sessions.CompareAndDelete(s.scenario, s)
}

// NoteOverflow is the event bus overflow handler. A drop from the
// manager's own queue counts as a possible missed event for every active
// session expecting that modality.
func (m *Manager) NoteOverflow(o bus.Overflow[core.ModalityEvent]) {
	if o.Subscriber != SubscriberName {
		return
	}
	m.missed.Add(1)
	m.sessions.Range(func(_, v any) bool {
		s := v.(*activeSession)
		if s.policy.Expects(o.Dropped.Modality) {
			s.missed.Add(1)
			m.logger.Warn("possible missed event",
				"session_id", s.id,
				"scenario", s.scenario.String(),
				"modality", o.Dropped.Modality.String(),
			)
		}
		return true
	})
}

// MissedEvents counts drops from the manager's bus queue since start.
func (m *Manager) MissedEvents() int64 { return m.missed.Load() }

// Active returns snapshots of the sessions currently in flight.
func (m *Manager) Active() []core.SessionView {
	var out []core.SessionView
	m.sessions.Range(func(_, v any) bool {
		out = append(out, v.(*activeSession).view())
		return true
	})
	return out
}

func (m *Manager) ActiveCount() int {
	count := 0
	m.sessions.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}

func (m *Manager) shutdown() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	close(m.stop)
	m.mu.Unlock()

	m.wg.Wait()
	m.logger.Info("session manager stopped")
}
