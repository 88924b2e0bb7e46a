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

package session

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AnujaKalahara99/fusion-engine/pkg/core"
)

// activeSession is owned by one actor goroutine. Only that goroutine
// mutates it; mu exists so introspection can take consistent snapshots.
type activeSession struct {
	id       string
	scenario core.Scenario
	policy   core.ScenarioPolicy
	inbox    chan core.ModalityEvent

	// deadline is the session's single timeout token. Completion cancels
	// it before leaving the processing state.
	deadline context.Context
	cancel   context.CancelFunc

	done     chan struct{}
	doneOnce sync.Once

	missed      atomic.Int64
	triggers    int
	conflicting int

	mu          sync.RWMutex
	state       core.State
	events      []core.ModalityEvent
	transitions []core.Transition
	createdAt   time.Time
	expiresAt   time.Time
}

func (s *activeSession) moveTo(to core.State, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := checkTransition(s.state, to); err != nil {
		return err
	}
	if s.state != to {
		s.transitions = append(s.transitions, core.Transition{From: s.state, To: to, At: at})
	}
	s.state = to
	return nil
}

func (s *activeSession) append(evt core.ModalityEvent) {
	s.mu.Lock()
	s.events = append(s.events, evt)
	s.mu.Unlock()
}

func (s *activeSession) view() core.SessionView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.SessionView{
		ID:        s.id,
		Scenario:  s.scenario,
		State:     s.state,
		Expected:  slices.Clone(s.policy.Expected),
		Events:    slices.Clone(s.events),
		CreatedAt: s.createdAt,
		Deadline:  s.expiresAt,
	}
}

func (s *activeSession) record(result core.FusionResult) core.SessionRecord {
	view := s.view()
	s.mu.RLock()
	transitions := slices.Clone(s.transitions)
	s.mu.RUnlock()
	return core.SessionRecord{
		Session:      view,
		Result:       result,
		Transitions:  transitions,
		Triggers:     s.triggers,
		MissedEvents: s.missed.Load(),
		Duration:     core.Duration(result.DecidedAt.Sub(view.CreatedAt)),
	}
}

// terminate marks the session finished; later deliveries are refused.
func (s *activeSession) terminate() {
	s.doneOnce.Do(func() {
		s.cancel()
		close(s.done)
	})
}
