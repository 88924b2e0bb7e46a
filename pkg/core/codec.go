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
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

type wireEvent struct {
	ID         string          `json:"id,omitempty"`
	Producer   string          `json:"producer,omitempty"`
	Modality   string          `json:"modality"`
	Type       string          `json:"type"`
	Timestamp  string          `json:"timestamp,omitempty"`
	Confidence *float64        `json:"confidence"`
	Intent     *string         `json:"intent"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// DecodeEvent parses the JSON wire form of a perception event. A missing
// id is generated, a missing timestamp becomes received, and a missing
// producer falls back to fallbackProducer. The decoded event must also
// pass Validate.
func DecodeEvent(data []byte, fallbackProducer string, received time.Time) (ModalityEvent, error) {
	evt, err := decodeElement(data, fallbackProducer, received)
	if err != nil {
		return ModalityEvent{}, err
	}
	if err := evt.Validate(); err != nil {
		return ModalityEvent{}, err
	}
	return evt, nil
}

// Batch is one decoded inbound payload. Invalid holds an error for every
// element that could not be turned into an event at all.
type Batch struct {
	Events  []ModalityEvent
	Invalid []error
}

// DecodeEvents accepts either a single JSON object or an array of them.
// Elements are decoded independently. An unknown modality or a missing
// confidence still yields an event so that the bus validator rejects and
// counts it. The returned error is set only when data is not JSON of
// either shape.
func DecodeEvents(data []byte, fallbackProducer string, received time.Time) (Batch, error) {
	var b Batch
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		if !json.Valid(trimmed) {
			return b, fmt.Errorf("%w: payload is not valid JSON", ErrMalformedEvent)
		}
		b.add(0, trimmed, fallbackProducer, received)
		return b, nil
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(trimmed, &elems); err != nil {
		return b, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	b.Events = make([]ModalityEvent, 0, len(elems))
	for i, raw := range elems {
		b.add(i, raw, fallbackProducer, received)
	}
	return b, nil
}

func (b *Batch) add(i int, raw []byte, fallbackProducer string, received time.Time) {
	evt, err := decodeElement(raw, fallbackProducer, received)
	if err != nil {
		b.Invalid = append(b.Invalid, fmt.Errorf("event %d: %w", i, err))
		return
	}
	b.Events = append(b.Events, evt)
}

func decodeElement(data []byte, fallbackProducer string, received time.Time) (ModalityEvent, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return ModalityEvent{}, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	return w.toEvent(fallbackProducer, received)
}

// toEvent leaves an unparseable modality as ModalityUnknown and a missing
// confidence as NaN; both fail Validate.
func (w wireEvent) toEvent(fallbackProducer string, received time.Time) (ModalityEvent, error) {
	modality, err := ParseModality(w.Modality)
	if err != nil {
		modality = ModalityUnknown
	}
	confidence := math.NaN()
	if w.Confidence != nil {
		confidence = *w.Confidence
	}
	evt := ModalityEvent{
		ID:         w.ID,
		Producer:   w.Producer,
		Modality:   modality,
		Type:       w.Type,
		Timestamp:  received.UTC(),
		Confidence: confidence,
		Payload:    w.Payload,
	}
	if evt.ID == "" {
		evt.ID = uuid.New().String()
	}
	if evt.Producer == "" {
		evt.Producer = fallbackProducer
	}
	if w.Intent != nil {
		evt.Intent = *w.Intent
	}
	if w.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339Nano, w.Timestamp)
		if err != nil {
			return ModalityEvent{}, fmt.Errorf("%w: timestamp: %w", ErrMalformedEvent, err)
		}
		evt.Timestamp = ts.UTC()
	}
	return evt, nil
}

func EncodeEvent(evt ModalityEvent) ([]byte, error) {
	w := wireEvent{
		ID:         evt.ID,
		Producer:   evt.Producer,
		Modality:   evt.Modality.String(),
		Type:       evt.Type,
		Timestamp:  evt.Timestamp.UTC().Format(time.RFC3339Nano),
		Confidence: &evt.Confidence,
		Payload:    evt.Payload,
	}
	if evt.HasIntent() {
		w.Intent = &evt.Intent
	}
	return json.Marshal(w)
}

func EncodeResult(r FusionResult) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeResult(data []byte) (FusionResult, error) {
	var r FusionResult
	if err := json.Unmarshal(data, &r); err != nil {
		return FusionResult{}, fmt.Errorf("decode result: %w", err)
	}
	return r, nil
}
