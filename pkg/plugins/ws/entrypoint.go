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

// Package ws carries perception events in and fusion results out over
// WebSocket. Producers connect to /events; action-layer clients connect to
// /results.
package ws

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/AnujaKalahara99/fusion-engine/pkg/core"
	"github.com/AnujaKalahara99/fusion-engine/pkg/plugins"
)

const writeWait = 5 * time.Second

type Entrypoint struct {
	name     string
	port     int
	upgrader websocket.Upgrader
	clients  *plugins.Broadcaster
	server   *http.Server
	logger   *slog.Logger
}

func New(name string, port int, logger *slog.Logger) *Entrypoint {
	return &Entrypoint{
		name: name,
		port: port,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: plugins.NewBroadcaster(plugins.DefaultClientBuffer),
		logger:  logger.With("component", "websocket", "name", name),
	}
}

func (e *Entrypoint) Name() string { return e.name }
func (e *Entrypoint) Type() string { return "websocket" }

func (e *Entrypoint) Start(ctx context.Context, pub core.Publisher) error {
	e.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", e.port),
		Handler:           e.Handler(pub),
		ReadHeaderTimeout: 5 * time.Second,
	}
	e.logger.Info("websocket entrypoint starting", "port", e.port)
	return plugins.Serve(ctx, e.server)
}

func (e *Entrypoint) Stop(ctx context.Context) error {
	if e.server != nil {
		return e.server.Shutdown(ctx)
	}
	return nil
}

// Connect is a no-op: result clients attach themselves on /results.
func (e *Entrypoint) Connect(context.Context) error { return nil }

func (e *Entrypoint) Disconnect(ctx context.Context) error { return nil }

func (e *Entrypoint) Send(_ context.Context, r core.FusionResult) error {
	if skipped := e.clients.Send(r); skipped > 0 {
		e.logger.Warn("slow result clients skipped", "session_id", r.SessionID, "skipped", skipped)
	}
	return nil
}

func (e *Entrypoint) Handler(pub core.Publisher) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		e.handleEvents(w, r, pub)
	})
	mux.HandleFunc("/results", e.handleResults)
	return mux
}

func (e *Entrypoint) handleEvents(w http.ResponseWriter, r *http.Request, pub core.Publisher) {
	conn, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		e.logger.Error("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	producer := core.ProducerID(r)
	e.logger.Info("ws producer connected", "producer", producer)
	defer e.logger.Info("ws producer disconnected", "producer", producer)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				e.logger.Error("ws read error", "producer", producer, "error", err)
			}
			return
		}
		if _, err := plugins.Ingest(pub, payload, producer, time.Now()); err != nil {
			e.logger.Warn("ws payload rejected", "producer", producer, "error", err)
		}
	}
}

func (e *Entrypoint) handleResults(w http.ResponseWriter, r *http.Request) {
	conn, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		e.logger.Error("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	clientID := uuid.New().String()
	results, leave := e.clients.Join(clientID)
	defer leave()
	e.logger.Info("ws result client connected", "client_id", clientID)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			e.logger.Info("ws result client disconnected", "client_id", clientID)
			return
		case <-r.Context().Done():
			return
		case res := <-results:
			data, err := core.EncodeResult(res)
			if err != nil {
				e.logger.Error("encode result failed", "error", err)
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				e.logger.Error("ws write failed", "client_id", clientID, "error", err)
				return
			}
		}
	}
}
