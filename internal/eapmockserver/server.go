// Package eapmockserver is a scriptable stand-in for an external agent,
// serving the two routes internal/eap.Client calls: POST /task and GET
// /health. It exists for integration tests and local demos that need a
// real HTTP peer instead of an httptest.Server built inline, grounded on
// the teacher's services/datafeed/marble/handlers.go gorilla/mux routing
// (mux.Vars for path params, one handler method per route) generalized
// from a read-only price feed to a scripted task responder.
package eapmockserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/R3E-Network/agent-orchestrator/internal/eap"
	"github.com/R3E-Network/agent-orchestrator/internal/logging"
)

// TaskHandler produces the result for a received task assignment. Tests
// supply their own to script success, failure, or slow responses.
type TaskHandler func(eap.TaskAssignment) eap.TaskResult

// Server is an in-process External Agent Protocol peer. The zero value is
// not usable; build one with New.
type Server struct {
	logger *logging.Logger
	router *mux.Router

	mu          sync.Mutex
	taskHandler TaskHandler
	health      eap.Heartbeat
	receivedTok string
	tasks       []eap.TaskAssignment
}

// New builds a Server that, by default, reports every task completed with
// no output and answers health checks online. Use SetTaskHandler and
// SetHealth to script other behavior.
func New(logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Default()
	}
	s := &Server{
		logger: logger,
		taskHandler: func(a eap.TaskAssignment) eap.TaskResult {
			return eap.TaskResult{TaskID: a.TaskID, Status: "completed"}
		},
		health: eap.Heartbeat{Status: eap.HealthOnline, Timestamp: time.Now().UTC()},
	}
	s.router = mux.NewRouter()
	s.router.HandleFunc("/task", s.handleTask).Methods(http.MethodPost)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	return s
}

// Router exposes the mux.Router so callers can wrap it in httptest.Server
// or mount it directly.
func (s *Server) Router() *mux.Router { return s.router }

// SetTaskHandler replaces the scripted response to POST /task.
func (s *Server) SetTaskHandler(h TaskHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taskHandler = h
}

// SetHealth replaces the scripted response to GET /health.
func (s *Server) SetHealth(hb eap.Heartbeat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.health = hb
}

// ReceivedTasks returns every task assignment the server has handled, in
// arrival order, for tests to assert against.
func (s *Server) ReceivedTasks() []eap.TaskAssignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]eap.TaskAssignment, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// LastAgentToken returns the X-Agent-Token header of the most recent
// /task request, letting tests assert the orchestrator authenticated
// itself with the token it issued.
func (s *Server) LastAgentToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.receivedTok
}

func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	var assignment eap.TaskAssignment
	if err := json.NewDecoder(r.Body).Decode(&assignment); err != nil {
		badRequest(w, "invalid task assignment body")
		return
	}

	s.mu.Lock()
	s.receivedTok = r.Header.Get("X-Agent-Token")
	s.tasks = append(s.tasks, assignment)
	handler := s.taskHandler
	s.mu.Unlock()

	result := handler(assignment)
	s.logger.WithFields(map[string]interface{}{
		"task_id": assignment.TaskID,
		"status":  result.Status,
	}).Info("eap mock handled task")
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	hb := s.health
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, hb)
}
