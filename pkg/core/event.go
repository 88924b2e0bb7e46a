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

package core

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// ModalityEvent is one confidence-scored observation from a perception
// pipeline. It is never mutated after publication.
type ModalityEvent struct {
	ID         string          `json:"id"`
	Producer   string          `json:"producer"`
	Modality   Modality        `json:"modality"`
	Type       string          `json:"type"`
	Timestamp  time.Time       `json:"timestamp"`
	Confidence float64         `json:"confidence"`
	Intent     string          `json:"intent,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// NewModalityEvent builds an event stamped with the current time.
func NewModalityEvent(producer string, modality Modality, eventType, intent string, confidence float64) ModalityEvent {
	return ModalityEvent{
		ID:         uuid.New().String(),
		Producer:   producer,
		Modality:   modality,
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		Confidence: confidence,
		Intent:     intent,
	}
}

// HasIntent reports whether upstream classified the event.
func (e ModalityEvent) HasIntent() bool { return e.Intent != "" }

func (e ModalityEvent) Validate() error {
	if !e.Modality.Known() {
		return fmt.Errorf("%w: %w: %d", ErrMalformedEvent, ErrUnknownModality, int(e.Modality))
	}
	if math.IsNaN(e.Confidence) || e.Confidence < 0 || e.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v outside [0,1]", ErrMalformedEvent, e.Confidence)
	}
	return nil
}
