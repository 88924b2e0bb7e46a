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

// Package kafka consumes perception events from a Kafka topic and writes
// fusion results to another, keyed by session id.
package kafka

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/AnujaKalahara99/fusion-engine/pkg/core"
	"github.com/AnujaKalahara99/fusion-engine/pkg/plugins"
)

type Endpoint struct {
	name     string
	brokers  []string
	topicIn  string
	topicOut string
	groupID  string
	logger   *slog.Logger

	mu     sync.Mutex
	writer *kafka.Writer
	reader *kafka.Reader
}

func New(name string, brokers []string, topicIn, topicOut, groupID string, logger *slog.Logger) *Endpoint {
	return &Endpoint{
		name:     name,
		brokers:  brokers,
		topicIn:  topicIn,
		topicOut: topicOut,
		groupID:  groupID,
		logger:   logger.With("component", "kafka", "name", name),
	}
}

func (e *Endpoint) Name() string { return e.name }
func (e *Endpoint) Type() string { return "kafka" }

func (e *Endpoint) Connect(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.topicOut != "" && e.writer == nil {
		e.writer = &kafka.Writer{
			Addr:         kafka.TCP(e.brokers...),
			Topic:        e.topicOut,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		}
	}
	e.logger.Info("kafka endpoint connected",
		"brokers", strings.Join(e.brokers, ","),
		"topic_in", e.topicIn,
		"topic_out", e.topicOut,
	)
	return nil
}

func (e *Endpoint) Disconnect(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var errs []error
	if e.reader != nil {
		errs = append(errs, e.reader.Close())
		e.reader = nil
	}
	if e.writer != nil {
		errs = append(errs, e.writer.Close())
		e.writer = nil
	}
	return errors.Join(errs...)
}

// Start reads topicIn as a consumer group member. Offsets are committed
// once the payload has been handed to the bus, malformed or not.
func (e *Endpoint) Start(ctx context.Context, pub core.Publisher) error {
	if e.topicIn == "" {
		<-ctx.Done()
		return nil
	}

	groupID := e.groupID
	if groupID == "" {
		groupID = "fusion-" + e.name
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  e.brokers,
		Topic:    e.topicIn,
		GroupID:  groupID,
		MaxWait:  100 * time.Millisecond,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	e.mu.Lock()
	e.reader = reader
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		if e.reader == reader {
			e.reader = nil
		}
		e.mu.Unlock()
		reader.Close()
	}()

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			e.logger.Error("kafka fetch error", "error", err)
			return err
		}

		producer := string(msg.Key)
		if producer == "" {
			producer = e.name
		}
		received := msg.Time
		if received.IsZero() {
			received = time.Now()
		}
		if _, err := plugins.Ingest(pub, msg.Value, producer, received); err != nil {
			e.logger.Warn("kafka payload rejected",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
		if err := reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			e.logger.Warn("kafka commit failed", "offset", msg.Offset, "error", err)
		}
	}
}

func (e *Endpoint) Stop(ctx context.Context) error {
	return e.Disconnect(ctx)
}

func (e *Endpoint) Send(ctx context.Context, r core.FusionResult) error {
	e.mu.Lock()
	w := e.writer
	e.mu.Unlock()
	if w == nil {
		return nil
	}
	msg, err := resultMessage(r)
	if err != nil {
		return err
	}
	return w.WriteMessages(ctx, msg)
}

// resultMessage keys by session id so one session's result always lands in
// the same partition.
func resultMessage(r core.FusionResult) (kafka.Message, error) {
	data, err := core.EncodeResult(r)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(r.SessionID),
		Value: data,
		Time:  r.DecidedAt,
		Headers: []kafka.Header{
			{Key: "scenario", Value: []byte(r.Scenario.String())},
			{Key: "outcome", Value: []byte(r.Outcome.String())},
		},
	}, nil
}
