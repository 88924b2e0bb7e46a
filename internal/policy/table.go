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

package policy

import (
	"fmt"

	"github.com/AnujaKalahara99/fusion-engine/pkg/core"
)

// Table is the read-only scenario policy table. It is built once at
// startup and shared by every session without locking.
type Table struct {
	order    []core.Scenario
	policies map[core.Scenario]core.ScenarioPolicy
}

func NewTable(policies ...core.ScenarioPolicy) (*Table, error) {
	t := &Table{
		order:    make([]core.Scenario, 0, len(policies)),
		policies: make(map[core.Scenario]core.ScenarioPolicy, len(policies)),
	}
	for _, p := range policies {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := t.policies[p.Scenario]; dup {
			return nil, fmt.Errorf("%w: %s", core.ErrDuplicateScenario, p.Scenario)
		}
		t.order = append(t.order, p.Scenario)
		t.policies[p.Scenario] = p.Clone()
	}
	return t, nil
}

// Lookup returns a copy of the policy for scenario.
func (t *Table) Lookup(scenario core.Scenario) (core.ScenarioPolicy, bool) {
	p, ok := t.policies[scenario]
	if !ok {
		return core.ScenarioPolicy{}, false
	}
	return p.Clone(), true
}

// Scenarios lists the configured scenarios in table order.
func (t *Table) Scenarios() []core.Scenario {
	out := make([]core.Scenario, len(t.order))
	copy(out, t.order)
	return out
}

// MatchTriggers returns every scenario whose trigger accepts evt.
func (t *Table) MatchTriggers(evt core.ModalityEvent) []core.Scenario {
	var out []core.Scenario
	for _, s := range t.order {
		if t.policies[s].Trigger.Matches(evt) {
			out = append(out, s)
		}
	}
	return out
}

func (t *Table) Len() int { return len(t.order) }
