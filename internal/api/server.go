// Package api serves read-only observation of a running simulation over
// HTTP. GET endpoints are public; POST endpoints require a bearer token.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/polity/internal/engine"
	"github.com/talgya/polity/internal/persistence"
)

const (
	maxStreamConns = 4
	streamBuffer   = 8
	writeWait      = 10 * time.Second
	pingPeriod     = 15 * time.Second
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// Server serves the simulation state over HTTP.
type Server struct {
	Sim      *engine.Simulation
	Eng      *engine.Engine // Optional; nil in batch mode
	DB       *persistence.DB
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	// Active stream connection count (atomic).
	streamConns int32

	gridLimiter *RateLimiter
}

// Handler builds the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	if s.gridLimiter == nil {
		s.gridLimiter = NewRateLimiter(120, time.Minute)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/grid", RateLimitMiddleware(s.gridLimiter, s.handleGrid))
	mux.HandleFunc("/api/v1/metrics", s.handleMetrics)
	mux.HandleFunc("/api/v1/stats/history", s.handleStatsHistory)
	mux.HandleFunc("/api/v1/stream", s.handleStream)

	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))

	return corsMiddleware(mux)
}

// Start begins serving on addr in a goroutine and returns the server so the
// caller can shut it down.
func (s *Server) Start(addr string) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "", "db", s.DB != nil)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	return srv
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list of extra origins.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request carries the admin token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly requires bearer token auth on POST requests. GET passes through.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no POLITY_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	report := s.Sim.Report()
	cfg := s.Sim.Config

	status := map[string]any{
		"run_id":      report.RunID,
		"seed":        report.Seed,
		"tick":        report.Ticks,
		"width":       cfg.Width,
		"height":      cfg.Height,
		"topology":    cfg.Topology(),
		"territories": len(s.Sim.Capitals),
		"metrics":     report.Final,
		"births":      report.Totals.Births,
		"deaths":      report.Totals.Deaths,
		"speed":       0.0,
		"running":     false,
	}
	if s.Eng != nil {
		status["speed"] = s.Eng.Speed()
		status["running"] = s.Eng.Running()
	}
	writeJSON(w, status)
}

func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Snapshot())
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.LatestMetrics())
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if s.Eng == nil {
		http.Error(w, "no engine running", http.StatusServiceUnavailable)
		return
	}
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Speed < 0 || req.Speed > 1000 {
			http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
			return
		}
		s.Eng.SetSpeed(req.Speed)
		slog.Info("speed changed", "speed", req.Speed)
	}

	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

// handleStatsHistory serves stored metrics when a database is attached and
// the in-memory history otherwise.
func (s *Server) handleStatsHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fromTick := uint64(0)
	toTick := uint64(0)
	limit := 100

	if f := q.Get("from"); f != "" {
		if v, err := strconv.ParseUint(f, 10, 63); err == nil {
			fromTick = v
		}
	}
	if t := q.Get("to"); t != "" {
		if v, err := strconv.ParseUint(t, 10, 63); err == nil {
			toTick = v
		}
	}
	if l := q.Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 10000 {
			limit = v
		}
	}
	runID := q.Get("run")
	if runID == "" {
		runID = s.Sim.RunID
	}

	var rows []engine.Metrics
	if s.DB != nil {
		var err error
		rows, err = s.DB.LoadStatsHistory(runID, fromTick, toTick, limit)
		if err != nil {
			slog.Error("stats history query failed", "error", err)
			http.Error(w, "stats history unavailable", http.StatusInternalServerError)
			return
		}
	} else {
		if runID != s.Sim.RunID {
			http.Error(w, "no database attached for past runs", http.StatusServiceUnavailable)
			return
		}
		for _, m := range s.Sim.HistorySince(fromTick) {
			if (toTick > 0 && m.Tick > toTick) || len(rows) >= limit {
				break
			}
			rows = append(rows, m)
		}
	}
	if rows == nil {
		rows = []engine.Metrics{}
	}
	writeJSON(w, rows)
}

// handleStream upgrades to a WebSocket and pushes one snapshot per tick.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.Sim.Feed == nil {
		http.Error(w, "streaming disabled", http.StatusServiceUnavailable)
		return
	}

	current := atomic.AddInt32(&s.streamConns, 1)
	if current > maxStreamConns {
		atomic.AddInt32(&s.streamConns, -1)
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}
	defer atomic.AddInt32(&s.streamConns, -1)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("stream upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ch := s.Sim.Feed.Subscribe(streamBuffer)
	defer s.Sim.Feed.Unsubscribe(ch)

	// Drain client frames so close and pong control messages are handled.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(snap *engine.Snapshot) error {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(snap)
	}

	if latest := s.Sim.Feed.Latest(); latest != nil {
		if err := send(latest); err != nil {
			return
		}
	} else if err := send(s.Sim.Snapshot()); err != nil {
		return
	}
	slog.Info("stream client connected", "remote", r.RemoteAddr)

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				return
			}
			if err := send(snap); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			slog.Info("stream client disconnected", "remote", r.RemoteAddr)
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
