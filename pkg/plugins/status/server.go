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

// Package status serves read-only introspection over HTTP: health,
// in-flight sessions, archived sessions and bus counters.
package status

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/AnujaKalahara99/fusion-engine/internal/bus"
	"github.com/AnujaKalahara99/fusion-engine/pkg/core"
	"github.com/AnujaKalahara99/fusion-engine/pkg/plugins"
)

const defaultRecent = 20

// Sessions is the view of the session manager the server needs.
type Sessions interface {
	Active() []core.SessionView
	ActiveCount() int
	MissedEvents() int64
}

// HealthReporter reports per-sink connection state.
type HealthReporter interface {
	Health() map[string]bool
}

type Option func(*Server)

func WithArchive(a core.ArchiveStore) Option {
	return func(s *Server) { s.archive = a }
}

func WithHealth(h HealthReporter) Option {
	return func(s *Server) { s.health = h }
}

// WithBus exposes the counters of a named bus on /bus.
func WithBus(name string, stats func() bus.Stats) Option {
	return func(s *Server) { s.buses[name] = stats }
}

type Server struct {
	port     int
	sessions Sessions
	archive  core.ArchiveStore
	health   HealthReporter
	buses    map[string]func() bus.Stats
	server   *http.Server
	logger   *slog.Logger
}

func New(port int, sessions Sessions, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		port:     port,
		sessions: sessions,
		buses:    make(map[string]func() bus.Stats),
		logger:   logger.With("component", "status"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run serves until ctx ends.
func (s *Server) Run(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.logger.Info("status server starting", "port", s.port)
	return plugins.Serve(ctx, s.server)
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /sessions", s.handleSessions)
	mux.HandleFunc("GET /archive", s.handleArchive)
	mux.HandleFunc("GET /bus", s.handleBus)
	return mux
}

type healthResponse struct {
	Status         string          `json:"status"`
	ActiveSessions int             `json:"active_sessions"`
	Sinks          map[string]bool `json:"sinks,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok", ActiveSessions: s.sessions.ActiveCount()}
	if s.health != nil {
		resp.Sinks = s.health.Health()
		for _, ok := range resp.Sinks {
			if !ok {
				resp.Status = "degraded"
			}
		}
	}
	plugins.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSessions(w http.ResponseWriter, _ *http.Request) {
	active := s.sessions.Active()
	sort.Slice(active, func(i, j int) bool { return active[i].CreatedAt.Before(active[j].CreatedAt) })
	if active == nil {
		active = []core.SessionView{}
	}
	plugins.WriteJSON(w, http.StatusOK, active)
}

type archiveResponse struct {
	Stats  core.SessionStats    `json:"stats"`
	Recent []core.SessionRecord `json:"recent"`
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		plugins.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "archive disabled"})
		return
	}
	n := defaultRecent
	if raw := r.URL.Query().Get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			plugins.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "n must be a non-negative integer"})
			return
		}
		n = v
	}

	stats, err := s.archive.Stats(r.Context())
	if err != nil {
		s.logger.Error("archive stats failed", "error", err)
		plugins.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	recent, err := s.archive.Recent(r.Context(), n)
	if err != nil {
		s.logger.Error("archive recent failed", "error", err)
		plugins.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if recent == nil {
		recent = []core.SessionRecord{}
	}
	plugins.WriteJSON(w, http.StatusOK, archiveResponse{Stats: stats, Recent: recent})
}

type busResponse struct {
	Buses        map[string]bus.Stats `json:"buses"`
	MissedEvents int64                `json:"missed_events"`
}

func (s *Server) handleBus(w http.ResponseWriter, _ *http.Request) {
	resp := busResponse{
		Buses:        make(map[string]bus.Stats, len(s.buses)),
		MissedEvents: s.sessions.MissedEvents(),
	}
	for name, stats := range s.buses {
		resp.Buses[name] = stats()
	}
	plugins.WriteJSON(w, http.StatusOK, resp)
}
