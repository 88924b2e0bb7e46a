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

// Package sse streams fusion results to action-layer clients as
// server-sent events on /results.
package sse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AnujaKalahara99/fusion-engine/pkg/core"
	"github.com/AnujaKalahara99/fusion-engine/pkg/plugins"
)

type Entrypoint struct {
	name    string
	port    int
	clients *plugins.Broadcaster
	logger  *slog.Logger

	mu     sync.Mutex
	server *http.Server
	done   chan struct{}
}

func New(name string, port int, logger *slog.Logger) *Entrypoint {
	return &Entrypoint{
		name:    name,
		port:    port,
		clients: plugins.NewBroadcaster(plugins.DefaultClientBuffer),
		logger:  logger.With("component", "sse", "name", name),
	}
}

func (e *Entrypoint) Name() string { return e.name }
func (e *Entrypoint) Type() string { return "sse" }

// Connect binds the port and serves in the background until Disconnect.
func (e *Entrypoint) Connect(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.server != nil {
		return nil
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", fmt.Sprintf(":%d", e.port))
	if err != nil {
		return fmt.Errorf("sse listen: %w", err)
	}
	e.server = &http.Server{Handler: e.Handler(), ReadHeaderTimeout: 5 * time.Second}
	e.done = make(chan struct{})

	go func(srv *http.Server, done chan struct{}) {
		defer close(done)
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			e.logger.Error("sse server failed", "error", err)
		}
	}(e.server, e.done)

	e.logger.Info("sse sink listening", "port", e.port)
	return nil
}

func (e *Entrypoint) Disconnect(ctx context.Context) error {
	e.mu.Lock()
	srv, done := e.server, e.done
	e.server = nil
	e.mu.Unlock()
	if srv == nil {
		return nil
	}
	// Streams never finish on their own.
	err := srv.Close()
	<-done
	return err
}

func (e *Entrypoint) Send(_ context.Context, r core.FusionResult) error {
	if skipped := e.clients.Send(r); skipped > 0 {
		e.logger.Warn("slow sse clients skipped", "session_id", r.SessionID, "skipped", skipped)
	}
	return nil
}

func (e *Entrypoint) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /results", e.handleSSE)
	return mux
}

func (e *Entrypoint) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	clientID := uuid.New().String()
	results, leave := e.clients.Join(clientID)
	defer leave()

	e.logger.Info("sse client connected", "client_id", clientID)
	defer e.logger.Info("sse client disconnected", "client_id", clientID)

	for {
		select {
		case <-r.Context().Done():
			return
		case res := <-results:
			data, err := core.EncodeResult(res)
			if err != nil {
				e.logger.Error("marshal sse result failed", "error", err)
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", res.SessionID, res.Outcome, data)
			flusher.Flush()
		}
	}
}
