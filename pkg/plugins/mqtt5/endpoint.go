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

// Package mqtt5 reads perception events from an MQTT v5 topic and
// publishes fusion results to another.
package mqtt5

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/google/uuid"

	"github.com/AnujaKalahara99/fusion-engine/pkg/core"
	"github.com/AnujaKalahara99/fusion-engine/pkg/plugins"
)

const inboundBuffer = 64

type Endpoint struct {
	name      string
	brokerURL string
	topicIn   string
	topicOut  string
	logger    *slog.Logger
	router    *paho.StandardRouter

	mu sync.Mutex
	cm *autopaho.ConnectionManager
}

// New builds an endpoint. An empty topicIn disables the source side and an
// empty topicOut disables the sink side.
func New(name, brokerURL, topicIn, topicOut string, logger *slog.Logger) *Endpoint {
	return &Endpoint{
		name:      name,
		brokerURL: brokerURL,
		topicIn:   topicIn,
		topicOut:  topicOut,
		logger:    logger.With("component", "mqtt5", "name", name),
		router:    paho.NewStandardRouter(),
	}
}

func (e *Endpoint) Name() string { return e.name }
func (e *Endpoint) Type() string { return "mqtt5" }

func (e *Endpoint) Connect(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cm != nil {
		return nil
	}

	serverURL, err := url.Parse(e.brokerURL)
	if err != nil {
		return fmt.Errorf("mqtt5 invalid URL: %w", err)
	}

	cfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{serverURL},
		KeepAlive:                     30,
		CleanStartOnInitialConnection: true,
		SessionExpiryInterval:         60,
		OnConnectionUp: func(*autopaho.ConnectionManager, *paho.Connack) {
			e.logger.Info("mqtt5 connection up")
		},
		OnConnectError: func(err error) {
			e.logger.Warn("mqtt5 connect attempt failed", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: "fusion-" + e.name + "-" + uuid.New().String()[:8],
			Router:   e.router,
		},
	}

	cm, err := autopaho.NewConnection(ctx, cfg)
	if err != nil {
		return fmt.Errorf("mqtt5 connection: %w", err)
	}
	if err := cm.AwaitConnection(ctx); err != nil {
		return fmt.Errorf("mqtt5 await connection: %w", err)
	}
	e.cm = cm

	e.logger.Info("mqtt5 endpoint connected", "broker", e.brokerURL)
	return nil
}

func (e *Endpoint) Disconnect(ctx context.Context) error {
	e.mu.Lock()
	cm := e.cm
	e.cm = nil
	e.mu.Unlock()
	if cm == nil {
		return nil
	}
	return cm.Disconnect(ctx)
}

// Start subscribes to topicIn and publishes every decoded event until ctx
// ends.
func (e *Endpoint) Start(ctx context.Context, pub core.Publisher) error {
	if e.topicIn == "" {
		<-ctx.Done()
		return nil
	}
	if err := e.Connect(ctx); err != nil {
		return err
	}

	inbound := make(chan *paho.Publish, inboundBuffer)
	e.router.RegisterHandler(e.topicIn, func(p *paho.Publish) {
		select {
		case inbound <- p:
		default:
			e.logger.Warn("mqtt5 inbound buffer full, message dropped", "topic", p.Topic)
		}
	})
	defer e.router.UnregisterHandler(e.topicIn)

	e.mu.Lock()
	cm := e.cm
	e.mu.Unlock()
	if cm == nil {
		return errors.New("mqtt5 endpoint disconnected")
	}
	if _, err := cm.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{{Topic: e.topicIn, QoS: 1}},
	}); err != nil {
		return fmt.Errorf("mqtt5 subscribe: %w", err)
	}
	e.logger.Info("mqtt5 source subscribed", "topic", e.topicIn)

	for {
		select {
		case <-ctx.Done():
			return nil
		case p := <-inbound:
			producer := e.name
			if p.Properties != nil && p.Properties.User.Get(core.ProducerIDHeader) != "" {
				producer = p.Properties.User.Get(core.ProducerIDHeader)
			}
			res, err := plugins.Ingest(pub, p.Payload, producer, time.Now())
			if err != nil {
				e.logger.Warn("mqtt5 payload rejected", "topic", p.Topic, "error", err)
				continue
			}
			if res.Rejected > 0 {
				e.logger.Debug("mqtt5 events rejected", "topic", p.Topic, "rejected", res.Rejected)
			}
		}
	}
}

func (e *Endpoint) Stop(ctx context.Context) error {
	return e.Disconnect(ctx)
}

// Send publishes the result JSON to topicOut.
func (e *Endpoint) Send(ctx context.Context, r core.FusionResult) error {
	if e.topicOut == "" {
		return nil
	}
	e.mu.Lock()
	cm := e.cm
	e.mu.Unlock()
	if cm == nil {
		return errors.New("mqtt5 endpoint not connected")
	}
	data, err := core.EncodeResult(r)
	if err != nil {
		return err
	}
	_, err = cm.Publish(ctx, &paho.Publish{
		Topic:   e.topicOut,
		QoS:     1,
		Payload: data,
		Properties: &paho.PublishProperties{
			ContentType: "application/json",
		},
	})
	return err
}
