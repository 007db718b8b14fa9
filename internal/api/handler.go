package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/devricklin/fanwatch-bridge/internal/biz/domain"
	"github.com/devricklin/fanwatch-bridge/internal/service"
)

// Server provides the local admin HTTP API used by watch-mcp and operators
type Server struct {
	registry *service.Registry

	server *http.Server
	port   int
}

// NewServer creates a new API server
func NewServer(registry *service.Registry, port int) *Server {
	return &Server{
		registry: registry,
		port:     port,
	}
}

// Router builds the route table
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/operators/{id:[0-9]+}").Subrouter()
	api.HandleFunc("/accounts", s.handleListAccounts).Methods(http.MethodGet)
	api.HandleFunc("/accounts", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/accounts", s.handleCloseAll).Methods(http.MethodDelete)
	api.HandleFunc("/accounts/{name}", s.handleRemove).Methods(http.MethodDelete)
	api.HandleFunc("/accounts/{name}/reconnect", s.handleReconnect).Methods(http.MethodPost)
	api.HandleFunc("/accounts/{name}/triggers", s.handleGetTriggers).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{name}/triggers", s.handleUpdateTriggers).Methods(http.MethodPut)
	api.HandleFunc("/accounts/{name}/forward-all", s.handleForwardAll).Methods(http.MethodPut)

	return r
}

// Start starts the HTTP server (blocking)
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", s.port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	fmt.Printf("[API] Starting HTTP server on port %d\n", s.port)
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// GetPort returns the server port
func (s *Server) GetPort() int {
	return s.port
}

// TriggersResponse is the trigger set of one account
type TriggersResponse struct {
	Account   string   `json:"account"`
	Effective []string `json:"effective"`
	Added     []string `json:"added"`
}

// TriggersUpdate is applied as clear, then remove, then add
type TriggersUpdate struct {
	Add    []string `json:"add,omitempty"`
	Remove []string `json:"remove,omitempty"`
	Clear  bool     `json:"clear,omitempty"`
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	opID, ok := operatorID(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"accounts": s.registry.ListAccounts(opID)})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	opID, ok := operatorID(w, r)
	if !ok {
		return
	}

	var req struct {
		Name  string `json:"name"`
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	acc, err := s.registry.Register(r.Context(), opID, req.Name, req.Token)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "account": acc.Key.AccountName})
}

func (s *Server) handleCloseAll(w http.ResponseWriter, r *http.Request) {
	opID, ok := operatorID(w, r)
	if !ok {
		return
	}
	n, err := s.registry.CloseAll(r.Context(), opID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"closed": n})
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	opID, ok := operatorID(w, r)
	if !ok {
		return
	}
	if err := s.registry.Remove(r.Context(), opID, mux.Vars(r)["name"]); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleReconnect(w http.ResponseWriter, r *http.Request) {
	opID, ok := operatorID(w, r)
	if !ok {
		return
	}
	if err := s.registry.Reconnect(opID, mux.Vars(r)["name"]); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]bool{"success": true})
}

func (s *Server) handleGetTriggers(w http.ResponseWriter, r *http.Request) {
	opID, ok := operatorID(w, r)
	if !ok {
		return
	}
	name := mux.Vars(r)["name"]
	ts, err := s.registry.TriggerWords(opID, name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, triggersResponse(name, ts))
}

func (s *Server) handleUpdateTriggers(w http.ResponseWriter, r *http.Request) {
	opID, ok := operatorID(w, r)
	if !ok {
		return
	}
	name := mux.Vars(r)["name"]

	var req TriggersUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	ts, err := s.registry.TriggerWords(opID, name)
	if err == nil && req.Clear {
		ts, err = s.registry.ClearTriggers(ctx, opID, name)
	}
	if err == nil && len(req.Remove) > 0 {
		ts, err = s.registry.RemoveTriggers(ctx, opID, name, req.Remove)
	}
	if err == nil && len(req.Add) > 0 {
		ts, err = s.registry.AddTriggers(ctx, opID, name, req.Add)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, triggersResponse(name, ts))
}

func (s *Server) handleForwardAll(w http.ResponseWriter, r *http.Request) {
	opID, ok := operatorID(w, r)
	if !ok {
		return
	}

	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.registry.SetForwardAll(r.Context(), opID, mux.Vars(r)["name"], req.Enabled); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true, "forward_all": req.Enabled})
}

func triggersResponse(name string, ts domain.TriggerSet) TriggersResponse {
	return TriggersResponse{Account: name, Effective: ts.Effective(), Added: ts.Added()}
}

func operatorID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid operator id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidConfig):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrAccountNotFound), errors.Is(err, domain.ErrSessionNotFound):
		status = http.StatusNotFound
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
