// Package server provides the HTTP JSON API over a ProblemStore:
// submitting analysis results, listing and searching stored problems,
// and a health check.
package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/codesentry/codesentry/pkg/engine"
	"github.com/codesentry/codesentry/pkg/store"
)

// MaxRequestBodySize limits request body size to 1MB.
const MaxRequestBodySize = 1 << 20

// Server serves the HTTP API over a ProblemStore.
type Server struct {
	store *store.ProblemStore
	addr  string
	mux   *http.ServeMux
}

// NewServer creates a Server bound to addr, serving st.
func NewServer(st *store.ProblemStore, addr string) *Server {
	s := &Server{store: st, addr: addr, mux: http.NewServeMux()}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/problems", s.handleProblems)
	s.mux.HandleFunc("/api/problems/search", s.handleSearch)
	s.mux.HandleFunc("/api/problems/stats", s.handleStats)
	s.mux.HandleFunc("/health", s.handleHealth)
}

// Start runs the HTTP server until it errors or is shut down.
func (s *Server) Start() error {
	fmt.Printf("sentry server listening on %s\n", s.addr)
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return srv.ListenAndServe()
}

func limitRequestBody(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
}

func jsonResponse(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("http: failed to encode response: %v", err)
	}
}

func errorResponse(w http.ResponseWriter, message string, status int) {
	jsonResponse(w, map[string]string{"error": message}, status)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// submitRequest is the body of a POST /api/problems request: a URI and
// its already-computed problems, as produced by pkg/batch or a direct
// engine.Analyze call upstream of the store.
type submitRequest struct {
	URI      string           `json:"uri"`
	Problems []engine.Problem `json:"problems"`
}

func (s *Server) handleProblems(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		uri := r.URL.Query().Get("uri")
		if uri == "" {
			errorResponse(w, "uri query parameter is required", http.StatusBadRequest)
			return
		}
		problems, err := s.store.ListForFile(uri)
		if err != nil {
			errorResponse(w, err.Error(), http.StatusInternalServerError)
			return
		}
		jsonResponse(w, problems, http.StatusOK)

	case http.MethodPost:
		limitRequestBody(w, r)
		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			errorResponse(w, "invalid JSON or request too large", http.StatusBadRequest)
			return
		}
		if req.URI == "" {
			errorResponse(w, "uri is required", http.StatusBadRequest)
			return
		}
		if err := s.store.ReplaceForFile(req.URI, req.Problems); err != nil {
			errorResponse(w, err.Error(), http.StatusInternalServerError)
			return
		}
		jsonResponse(w, map[string]int{"stored": len(req.Problems)}, http.StatusOK)

	default:
		errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		errorResponse(w, "q query parameter is required", http.StatusBadRequest)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	records, err := s.store.Search(query, limit)
	if err != nil {
		errorResponse(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, records, http.StatusOK)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	stats, err := s.store.Stats()
	if err != nil {
		errorResponse(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, stats, http.StatusOK)
}
