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

// Package httppost accepts perception events over plain HTTP.
package httppost

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/AnujaKalahara99/fusion-engine/pkg/core"
	"github.com/AnujaKalahara99/fusion-engine/pkg/plugins"
)

const defaultMaxBody = 1 << 20

type Entrypoint struct {
	name    string
	port    int
	server  *http.Server
	logger  *slog.Logger
	maxBody int64
	now     func() time.Time
}

func New(name string, port int, logger *slog.Logger) *Entrypoint {
	return &Entrypoint{
		name:    name,
		port:    port,
		logger:  logger.With("component", "http_post", "name", name),
		maxBody: defaultMaxBody,
		now:     time.Now,
	}
}

func (e *Entrypoint) Name() string { return e.name }
func (e *Entrypoint) Type() string { return "http_post" }

func (e *Entrypoint) Start(ctx context.Context, pub core.Publisher) error {
	e.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", e.port),
		Handler:           e.Handler(pub),
		ReadHeaderTimeout: 5 * time.Second,
	}
	e.logger.Info("http_post source starting", "port", e.port)
	return plugins.Serve(ctx, e.server)
}

func (e *Entrypoint) Stop(ctx context.Context) error {
	if e.server != nil {
		return e.server.Shutdown(ctx)
	}
	return nil
}

// Handler serves POST /events. The body is one event or an array of them.
func (e *Entrypoint) Handler(pub core.Publisher) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /events", func(w http.ResponseWriter, r *http.Request) {
		e.handlePost(w, r, pub)
	})
	return mux
}

func (e *Entrypoint) handlePost(w http.ResponseWriter, r *http.Request, pub core.Publisher) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, e.maxBody))
	if err != nil {
		plugins.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}

	producer := core.ProducerID(r)
	res, err := plugins.Ingest(pub, body, producer, e.now())
	if err != nil {
		e.logger.Warn("http_post payload rejected", "producer", producer, "error", err)
		plugins.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	status := http.StatusAccepted
	if res.Accepted == 0 && res.Rejected > 0 {
		status = http.StatusUnprocessableEntity
	}
	plugins.WriteJSON(w, status, res)
}
