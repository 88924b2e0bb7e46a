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

// Package amqp connects to an AMQP 1.0 broker. It receives perception
// events from one address and sends fusion results to another.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	goamqp "github.com/Azure/go-amqp"

	"github.com/AnujaKalahara99/fusion-engine/pkg/core"
	"github.com/AnujaKalahara99/fusion-engine/pkg/plugins"
)

type Endpoint struct {
	name     string
	url      string
	queueIn  string
	queueOut string
	logger   *slog.Logger

	mu       sync.Mutex
	conn     *goamqp.Conn
	sendSess *goamqp.Session
	sender   *goamqp.Sender
}

func New(name, url, queueIn, queueOut string, logger *slog.Logger) *Endpoint {
	return &Endpoint{
		name:     name,
		url:      url,
		queueIn:  queueIn,
		queueOut: queueOut,
		logger:   logger.With("component", "amqp", "name", name),
	}
}

func (e *Endpoint) Name() string { return e.name }
func (e *Endpoint) Type() string { return "amqp" }

func (e *Endpoint) Connect(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn != nil {
		return nil
	}

	conn, err := goamqp.Dial(ctx, e.url, nil)
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}
	if e.queueOut != "" {
		sess, err := conn.NewSession(ctx, nil)
		if err != nil {
			conn.Close()
			return fmt.Errorf("amqp send session: %w", err)
		}
		sender, err := sess.NewSender(ctx, e.queueOut, nil)
		if err != nil {
			conn.Close()
			return fmt.Errorf("amqp sender: %w", err)
		}
		e.sendSess = sess
		e.sender = sender
	}
	e.conn = conn

	e.logger.Info("amqp endpoint connected", "queue_in", e.queueIn, "queue_out", e.queueOut)
	return nil
}

func (e *Endpoint) Disconnect(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sender != nil {
		e.sender.Close(ctx)
		e.sender = nil
	}
	if e.sendSess != nil {
		e.sendSess.Close(ctx)
		e.sendSess = nil
	}
	if e.conn == nil {
		return nil
	}
	err := e.conn.Close()
	e.conn = nil
	return err
}

// Start receives from queueIn, accepting each decoded message and rejecting
// the ones that fail to decode.
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
		return errors.New("amqp endpoint disconnected")
	}
	recvSess, err := conn.NewSession(ctx, nil)
	if err != nil {
		return fmt.Errorf("amqp receive session: %w", err)
	}
	receiver, err := recvSess.NewReceiver(ctx, e.queueIn, &goamqp.ReceiverOptions{Credit: 16})
	if err != nil {
		recvSess.Close(ctx)
		return fmt.Errorf("amqp receiver: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		receiver.Close(closeCtx)
		recvSess.Close(closeCtx)
	}()

	for {
		msg, err := receiver.Receive(ctx, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("amqp receive: %w", err)
		}

		producer := e.name
		if msg.Properties != nil && msg.Properties.UserID != nil {
			producer = string(msg.Properties.UserID)
		}
		if _, err := plugins.Ingest(pub, msg.GetData(), producer, time.Now()); err != nil {
			e.logger.Warn("amqp payload rejected", "error", err)
			if err := receiver.RejectMessage(ctx, msg, nil); err != nil && ctx.Err() == nil {
				e.logger.Warn("amqp reject failed", "error", err)
			}
			continue
		}
		if err := receiver.AcceptMessage(ctx, msg); err != nil && ctx.Err() == nil {
			e.logger.Warn("amqp accept failed", "error", err)
		}
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
	sender := e.sender
	e.mu.Unlock()
	if sender == nil {
		return errors.New("amqp endpoint not connected")
	}
	data, err := core.EncodeResult(r)
	if err != nil {
		return err
	}
	return sender.Send(ctx, resultMessage(r, data), nil)
}

func resultMessage(r core.FusionResult, data []byte) *goamqp.Message {
	contentType := "application/json"
	return &goamqp.Message{
		Data: [][]byte{data},
		Properties: &goamqp.MessageProperties{
			MessageID:   r.SessionID,
			ContentType: &contentType,
			Subject:     stringPtr(r.Scenario.String()),
		},
		ApplicationProperties: map[string]any{
			"outcome":  r.Outcome.String(),
			"strategy": r.Strategy.String(),
		},
	}
}

func stringPtr(s string) *string { return &s }
