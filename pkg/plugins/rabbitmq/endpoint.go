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

// Package rabbitmq consumes perception events from a durable queue and
// publishes fusion results to another.
package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/AnujaKalahara99/fusion-engine/pkg/core"
	"github.com/AnujaKalahara99/fusion-engine/pkg/plugins"
)

type Endpoint struct {
	name     string
	url      string
	queueIn  string
	queueOut string
	logger   *slog.Logger

	mu    sync.Mutex
	conn  *amqp.Connection
	pubCh *amqp.Channel
}

func New(name, url, queueIn, queueOut string, logger *slog.Logger) *Endpoint {
	return &Endpoint{
		name:     name,
		url:      url,
		queueIn:  queueIn,
		queueOut: queueOut,
		logger:   logger.With("component", "rabbitmq", "name", name),
	}
}

func (e *Endpoint) Name() string { return e.name }
func (e *Endpoint) Type() string { return "rabbitmq" }

func (e *Endpoint) Connect(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn != nil && !e.conn.IsClosed() {
		return nil
	}

	conn, err := amqp.Dial(e.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	pubCh, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("rabbitmq publish channel: %w", err)
	}
	for _, q := range []string{e.queueIn, e.queueOut} {
		if q == "" {
			continue
		}
		if _, err := pubCh.QueueDeclare(q, true, false, false, false, nil); err != nil {
			conn.Close()
			return fmt.Errorf("rabbitmq queue declare %s: %w", q, err)
		}
	}
	e.conn = conn
	e.pubCh = pubCh

	e.logger.Info("rabbitmq endpoint connected", "queue_in", e.queueIn, "queue_out", e.queueOut)
	return nil
}

func (e *Endpoint) Disconnect(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var errs []error
	if e.pubCh != nil {
		errs = append(errs, e.pubCh.Close())
		e.pubCh = nil
	}
	if e.conn != nil {
		errs = append(errs, e.conn.Close())
		e.conn = nil
	}
	return errors.Join(errs...)
}

// Start consumes queueIn with manual acks. A payload that cannot be decoded
// is rejected without requeue so it cannot loop forever.
func (e *Endpoint) Start(ctx context.Context, pub core.Publisher) error {
	if e.queueIn == "" {
		<-ctx.Done()
		return nil
	}
	if err := e.Connect(ctx); err != nil {
		return err
	}

	e.mu.Lock()
	conn := e.conn
	e.mu.Unlock()
	if conn == nil {
		return errors.New("rabbitmq endpoint disconnected")
	}
	consumerCh, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq consumer channel: %w", err)
	}
	defer consumerCh.Close()

	if err := consumerCh.Qos(16, 0, false); err != nil {
		return fmt.Errorf("rabbitmq qos: %w", err)
	}
	deliveries, err := consumerCh.Consume(
		e.queueIn,
		"fusion-"+e.name,
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("rabbitmq consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			e.handle(pub, d)
		}
	}
}

func (e *Endpoint) handle(pub core.Publisher, d amqp.Delivery) {
	producer := d.AppId
	if producer == "" {
		producer = e.name
	}
	received := d.Timestamp
	if received.IsZero() {
		received = time.Now()
	}
	if _, err := plugins.Ingest(pub, d.Body, producer, received); err != nil {
		e.logger.Warn("rabbitmq payload rejected", "delivery_tag", d.DeliveryTag, "error", err)
		if err := d.Nack(false, false); err != nil {
			e.logger.Warn("rabbitmq nack failed", "error", err)
		}
		return
	}
	if err := d.Ack(false); err != nil {
		e.logger.Warn("rabbitmq ack failed", "error", err)
	}
}

func (e *Endpoint) Stop(ctx context.Context) error {
	return e.Disconnect(ctx)
}

func (e *Endpoint) Send(ctx context.Context, r core.FusionResult) error {
	if e.queueOut == "" {
		return nil
	}
	e.mu.Lock()
	ch := e.pubCh
	e.mu.Unlock()
	if ch == nil {
		return errors.New("rabbitmq endpoint not connected")
	}
	data, err := core.EncodeResult(r)
	if err != nil {
		return err
	}
	return ch.PublishWithContext(ctx,
		"",
		e.queueOut,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         data,
			MessageId:    r.SessionID,
			Timestamp:    r.DecidedAt,
			Type:         r.Outcome.String(),
		},
	)
}
