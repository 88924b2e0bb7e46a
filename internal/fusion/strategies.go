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

package fusion

import (
	"slices"

	"github.com/AnujaKalahara99/fusion-engine/internal/conflict"
	"github.com/AnujaKalahara99/fusion-engine/pkg/core"
)

// Decision is what a strategy concludes from a session's events.
type Decision struct {
	Intent       string
	Confidence   float64
	Contributing []core.ModalityEvent
	Scores       map[string]float64
}

// Strategy combines events into a decision. It reports false when no
// event carries a usable intent.
type Strategy func(events []core.ModalityEvent, p core.ScenarioPolicy) (Decision, bool)

// candidate is a tied intent with the keys used to order it.
type candidate struct {
	intent string
	rank   int
	first  core.ModalityEvent
}

func less(a, b candidate) int {
	if a.rank != b.rank {
		return a.rank - b.rank
	}
	if !a.first.Timestamp.Equal(b.first.Timestamp) {
		return a.first.Timestamp.Compare(b.first.Timestamp)
	}
	if a.intent < b.intent {
		return -1
	}
	if a.intent > b.intent {
		return 1
	}
	return 0
}

func withIntent(events []core.ModalityEvent, intent string) []core.ModalityEvent {
	var out []core.ModalityEvent
	for _, e := range events {
		if e.Intent == intent {
			out = append(out, e)
		}
	}
	return out
}

// ConfidenceWeighted scores every intent by the weighted sum of its
// confidences over the total weight of all classified events. Scores holds
// the per-intent distribution, normalized to sum to 1.
func ConfidenceWeighted(events []core.ModalityEvent, p core.ScenarioPolicy) (Decision, bool) {
	score := make(map[string]float64)
	top := make(map[string]core.ModalityEvent)
	var totalWeight float64
	var order []string

	for _, e := range events {
		if !e.HasIntent() {
			continue
		}
		w := p.Weight(e.Modality)
		totalWeight += w
		if _, seen := score[e.Intent]; !seen {
			order = append(order, e.Intent)
		}
		score[e.Intent] += w * e.Confidence
		if cur, ok := top[e.Intent]; !ok || w*e.Confidence > p.Weight(cur.Modality)*cur.Confidence {
			top[e.Intent] = e
		}
	}
	if len(order) == 0 || totalWeight <= 0 {
		return Decision{}, false
	}

	best := 0.0
	for _, intent := range order {
		best = max(best, score[intent])
	}
	var tied []candidate
	for _, intent := range order {
		if best-score[intent] <= conflict.Epsilon {
			e := top[intent]
			tied = append(tied, candidate{intent: intent, rank: p.Rank(e.Modality), first: e})
		}
	}
	winner := slices.MinFunc(tied, less).intent

	var sum float64
	for _, s := range score {
		sum += s
	}
	scores := make(map[string]float64, len(score))
	for intent, s := range score {
		if sum > 0 {
			scores[intent] = s / sum
		} else {
			scores[intent] = 1 / float64(len(score))
		}
	}

	return Decision{
		Intent:       winner,
		Confidence:   score[winner] / totalWeight,
		Contributing: withIntent(events, winner),
		Scores:       scores,
	}, true
}

// PriorityBased takes the strongest classified event of the first
// modality in priority order that has one.
func PriorityBased(events []core.ModalityEvent, p core.ScenarioPolicy) (Decision, bool) {
	for _, m := range p.Priority {
		var pick *core.ModalityEvent
		for i := range events {
			e := &events[i]
			if e.Modality != m || !e.HasIntent() {
				continue
			}
			if pick == nil || e.Confidence > pick.Confidence {
				pick = e
			}
		}
		if pick != nil {
			return Decision{
				Intent:       pick.Intent,
				Confidence:   pick.Confidence,
				Contributing: []core.ModalityEvent{*pick},
			}, true
		}
	}
	return Decision{}, false
}

// MajorityVote picks the most frequent intent. Confidence is its share of
// all collected events, classified or not.
func MajorityVote(events []core.ModalityEvent, p core.ScenarioPolicy) (Decision, bool) {
	counts := make(map[string]int)
	var order []string
	for _, e := range events {
		if !e.HasIntent() {
			continue
		}
		if counts[e.Intent] == 0 {
			order = append(order, e.Intent)
		}
		counts[e.Intent]++
	}
	if len(order) == 0 {
		return Decision{}, false
	}

	most := 0
	for _, intent := range order {
		most = max(most, counts[intent])
	}
	var tied []candidate
	for _, intent := range order {
		if counts[intent] != most {
			continue
		}
		c := candidate{intent: intent, rank: len(p.Priority) + 1}
		for _, e := range withIntent(events, intent) {
			if r := p.Rank(e.Modality); r < c.rank || (r == c.rank && e.Timestamp.Before(c.first.Timestamp)) {
				c.rank = r
				c.first = e
			}
		}
		tied = append(tied, c)
	}
	winner := slices.MinFunc(tied, less).intent

	scores := make(map[string]float64, len(counts))
	for intent, n := range counts {
		scores[intent] = float64(n) / float64(len(events))
	}
	return Decision{
		Intent:       winner,
		Confidence:   float64(most) / float64(len(events)),
		Contributing: withIntent(events, winner),
		Scores:       scores,
	}, true
}
