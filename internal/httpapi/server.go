package httpapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/agentctl/runtime/internal/agent"
	"github.com/agentctl/runtime/internal/skills"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server wires a single agent's runtime into an HTTP mux: a health
// check, a Prometheus metrics endpoint, and a bearer-authenticated run
// endpoint.
type Server struct {
	Provider     agent.LLMProvider
	Checkpoints  agent.CheckpointStore
	Skills       *skills.Manager
	WorkspaceDir string
	Model        string
	MaxSteps     int
	Auth         *JWTAuth
	Metrics      *Metrics
	Logger       *slog.Logger
	Tools        []agent.Tool
}

// Handler builds the mux this Server serves.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", promhttp.Handler())

	var run http.Handler = http.HandlerFunc(s.handleRun)
	run = Middleware(s.Auth)(run)
	mux.Handle("/v1/run", run)

	var listSkills http.Handler = http.HandlerFunc(s.handleSkills)
	listSkills = Middleware(s.Auth)(listSkills)
	mux.Handle("/v1/skills", listSkills)

	return mux
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":    "ok",
		"workspace": s.WorkspaceDir,
	})
}

type skillSummary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// handleSkills lists the skills discovered under the server's configured
// skill roots, for callers choosing which skill to ask the agent to use.
func (s *Server) handleSkills(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var out []skillSummary
	if s.Skills != nil {
		for _, sk := range s.Skills.List() {
			out = append(out, skillSummary{Name: sk.Name, Description: sk.Description})
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

type runRequest struct {
	Task     string `json:"task"`
	ThreadID string `json:"thread_id,omitempty"`
}

type runResponse struct {
	Response string `json:"response"`
	Steps    int    `json:"steps"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if req.Task == "" {
		http.Error(w, "task is required", http.StatusBadRequest)
		return
	}

	start := time.Now()
	a := agent.NewAgent(s.Provider, agent.AgentConfig{
		Name:        "agentctl-serve",
		Tools:       s.Tools,
		MaxSteps:    s.MaxSteps,
		ThreadID:    req.ThreadID,
		Model:       s.Model,
		Checkpoints: s.Checkpoints,
		Logger:      s.Logger,
	})
	a.AddUserMessage(req.Task)

	response, logs, err := a.Run(r.Context())
	if s.Metrics != nil {
		s.Metrics.ObserveRun(time.Since(start), err == nil)
	}
	if err != nil {
		s.Logger.Error("run failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(runResponse{Response: response, Steps: len(logs)})
}
