// Package api provides the HTTP API for running simulations remotely.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token when an admin key is configured.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/housesim/internal/agents"
	"github.com/talgya/housesim/internal/annealing"
	"github.com/talgya/housesim/internal/engine"
	"github.com/talgya/housesim/internal/housing"
	"github.com/talgya/housesim/internal/metrics"
	"github.com/talgya/housesim/internal/persistence"
)

// SessionState tracks a session through its lifecycle.
type SessionState string

const (
	StateCreated  SessionState = "created"
	StateRunning  SessionState = "running"
	StateComplete SessionState = "complete"
	StateFailed   SessionState = "failed"
)

// Session is one configured simulation held by the server. A session runs
// at most once; the result stays queryable until the server stops.
type Session struct {
	ID        string           `json:"id"`
	State     SessionState     `json:"state"`
	Config    engine.RunConfig `json:"config"`
	CreatedAt time.Time        `json:"created_at"`

	Error   string         `json:"error,omitempty"`
	Result  *engine.Result `json:"-"`
	FinalM1 float64        `json:"final_m1,omitempty"`
}

// Server serves simulation sessions over HTTP.
type Server struct {
	DB       *persistence.DB // optional; completed runs are stored when set
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST open.

	mu       sync.Mutex
	sessions map[string]*Session
}

// Handler builds the route table. Split from Start so tests can drive the
// mux directly.
func (s *Server) Handler() http.Handler {
	launches := NewRunThrottle(60, time.Hour)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/v1/session", s.adminOnly(throttled(launches, s.handleCreateSession)))
	mux.HandleFunc("/api/v1/session/", s.adminOnly(throttled(launches, s.handleSessionRoutes)))
	return mux
}

// Start begins serving the HTTP API. Blocks until the listener fails.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "", "persistence", s.DB != nil)
	return http.ListenAndServe(addr, s.Handler())
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests
// when an admin key is configured. GET requests pass through.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && s.AdminKey != "" && !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	n := len(s.sessions)
	s.mu.Unlock()
	writeJSON(w, map[string]any{"status": "ok", "sessions": n})
}

// SessionRequest is the wire form of a run configuration. Enumerated
// options travel as strings and are parsed on arrival.
type SessionRequest struct {
	Seed   int64 `json:"seed"`
	Agents int   `json:"agents"`
	Houses int   `json:"houses"`
	Days   int   `json:"days"`

	Share    string `json:"share"`
	Capacity int    `json:"capacity,omitempty"`

	Noise       float64 `json:"noise,omitempty"`
	NoiseModel  string  `json:"noise_model,omitempty"`
	NoiseTarget string  `json:"noise_target,omitempty"`
	Sampling    string  `json:"sampling,omitempty"`

	ProposalsPerDay int     `json:"proposals_per_day,omitempty"`
	TempStart       float64 `json:"temp_start,omitempty"`
	TempDecay       float64 `json:"temp_decay,omitempty"`
	TempFloor       float64 `json:"temp_floor,omitempty"`
	CompatWeight    float64 `json:"compat_weight,omitempty"`
	Verbose         bool    `json:"verbose,omitempty"`
}

// ToConfig parses the request into an engine configuration.
func (req SessionRequest) ToConfig() (engine.RunConfig, error) {
	policy, err := housing.ParsePolicy(orDefault(req.Share, "none"))
	if err != nil {
		return engine.RunConfig{}, err
	}
	model, err := agents.ParseNoiseModel(orDefault(req.NoiseModel, "gaussian"))
	if err != nil {
		return engine.RunConfig{}, err
	}
	target, err := agents.ParseNoiseTarget(orDefault(req.NoiseTarget, "utility"))
	if err != nil {
		return engine.RunConfig{}, err
	}
	sampling, err := annealing.ParseSamplingMode(orDefault(req.Sampling, "per_day"))
	if err != nil {
		return engine.RunConfig{}, err
	}

	cfg := engine.RunConfig{
		Seed:            req.Seed,
		Agents:          req.Agents,
		Houses:          req.Houses,
		Days:            req.Days,
		Policy:          policy,
		Capacity:        req.Capacity,
		NoiseLevel:      req.Noise,
		NoiseModel:      model,
		NoiseTarget:     target,
		Sampling:        sampling,
		ProposalsPerDay: req.ProposalsPerDay,
		TempStart:       req.TempStart,
		TempDecay:       req.TempDecay,
		TempFloor:       req.TempFloor,
		CompatWeight:    req.CompatWeight,
		Verbose:         req.Verbose,
	}
	return cfg, cfg.Validate()
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// handleCreateSession accepts a run configuration and registers a session
// for it. The run does not start until /run is called.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	cfg, err := req.ToConfig()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sess := &Session{
		ID:        uuid.NewString(),
		State:     StateCreated,
		Config:    cfg,
		CreatedAt: time.Now().UTC(),
	}
	sess.Config.RunID = sess.ID

	s.mu.Lock()
	if s.sessions == nil {
		s.sessions = make(map[string]*Session)
	}
	s.sessions[sess.ID] = sess
	view := *sess
	s.mu.Unlock()

	slog.Info("session created", "session_id", sess.ID, "agents", cfg.Agents, "days", cfg.Days)
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, view)
}

// handleSessionRoutes dispatches /api/v1/session/:id[/run|/metrics].
func (s *Server) handleSessionRoutes(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	// api/v1/session/:id → parts[0]="api" [1]="v1" [2]="session" [3]=id [4]=action
	if len(parts) < 4 || parts[3] == "" {
		http.Error(w, "missing session id", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	sess, ok := s.sessions[parts[3]]
	var view Session
	if ok {
		view = *sess // copied under the lock; the run handler mutates sess
	}
	s.mu.Unlock()
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	if len(parts) == 4 {
		writeJSON(w, view)
		return
	}

	switch parts[4] {
	case "run":
		s.handleRunSession(w, r, sess)
	case "metrics":
		s.handleSessionMetrics(w, r, sess)
	default:
		http.Error(w, "unknown session action", http.StatusNotFound)
	}
}

// ErrSessionSpent marks a session whose run already started.
var ErrSessionSpent = errors.New("session already ran")

// handleRunSession executes a session's simulation synchronously.
func (s *Server) handleRunSession(w http.ResponseWriter, r *http.Request, sess *Session) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	if sess.State != StateCreated {
		s.mu.Unlock()
		http.Error(w, ErrSessionSpent.Error(), http.StatusConflict)
		return
	}
	sess.State = StateRunning
	s.mu.Unlock()

	run, err := engine.NewRun(sess.Config)
	if err != nil {
		s.failSession(sess, err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	res, err := run.Execute()
	if err != nil {
		s.failSession(sess, err)
		http.Error(w, "run failed", http.StatusInternalServerError)
		return
	}

	s.mu.Lock()
	sess.State = StateComplete
	sess.Result = res
	sess.FinalM1 = res.FinalM1
	s.mu.Unlock()

	if s.DB != nil {
		if err := s.DB.SaveRun(res); err != nil {
			slog.Error("session persist failed", "session_id", sess.ID, "error", err)
		}
	}

	writeJSON(w, map[string]any{
		"id":             sess.ID,
		"state":          StateComplete,
		"final_m1":       res.FinalM1,
		"best_objective": res.BestObjective,
		"days":           len(res.Snapshots),
		"elapsed_ms":     res.Elapsed.Milliseconds(),
	})
}

func (s *Server) failSession(sess *Session, err error) {
	slog.Error("session run failed", "session_id", sess.ID, "error", err)
	s.mu.Lock()
	sess.State = StateFailed
	sess.Error = err.Error()
	s.mu.Unlock()
}

// handleSessionMetrics returns the day-ordered snapshot series of a
// completed session.
func (s *Server) handleSessionMetrics(w http.ResponseWriter, r *http.Request, sess *Session) {
	s.mu.Lock()
	complete := sess.State == StateComplete && sess.Result != nil
	var snaps []metrics.Snapshot
	if complete {
		snaps = append([]metrics.Snapshot{}, sess.Result.Snapshots...)
	}
	s.mu.Unlock()

	if !complete {
		http.Error(w, "session has no results yet", http.StatusConflict)
		return
	}
	writeJSON(w, map[string]any{
		"id":        sess.ID,
		"snapshots": snaps,
	})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
