package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wricardo/stitch-turtle/transport/websocket"
	"github.com/wricardo/stitch-turtle/turtle/script"
	"github.com/wricardo/stitch-turtle/turtle/service"
)

// Server represents the REST API server
type Server struct {
	service service.RenderService
	hub     *websocket.Hub
	router  *mux.Router
	limiter *clientLimiter
	log     *log.Logger
}

// Option configures a Server
type Option func(*Server)

// WithRateLimit limits run and render requests per client. A non-positive
// rate disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(s *Server) {
		if perSecond > 0 {
			s.limiter = newClientLimiter(perSecond, burst)
		}
	}
}

// WithLogger sets the server logger
func WithLogger(logger *log.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.log = logger.WithPrefix("api")
		}
	}
}

// NewServer creates a new API server
func NewServer(renderService service.RenderService, hub *websocket.Hub, opts ...Option) *Server {
	s := &Server{
		service: renderService,
		hub:     hub,
		router:  mux.NewRouter(),
		log:     log.Default().WithPrefix("api"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Stateless rendering
	api.HandleFunc("/render", s.rateLimited(s.handleRender)).Methods("POST")

	// Session management
	api.HandleFunc("/sessions", s.handleCreateSession).Methods("POST")
	api.HandleFunc("/sessions", s.handleListSessions).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods("DELETE")

	// Script execution
	api.HandleFunc("/sessions/{id}/run", s.rateLimited(s.handleRun)).Methods("POST")
	api.HandleFunc("/sessions/{id}/cancel", s.handleCancel).Methods("POST")
	api.HandleFunc("/sessions/{id}/restart", s.handleRestart).Methods("POST")
	api.HandleFunc("/sessions/{id}/svg/{variant}", s.handleGetSVG).Methods("GET")
	api.HandleFunc("/sessions/{id}/history", s.handleGetHistory).Methods("GET")

	// Presets
	api.HandleFunc("/presets", s.handleListPresets).Methods("GET")
	api.HandleFunc("/presets", s.handleCreatePreset).Methods("POST")
	api.HandleFunc("/presets/{id}", s.handleGetPreset).Methods("GET")

	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler())

	// WebSocket
	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondRunError maps run failures onto status codes and an error kind
func respondRunError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	kind := script.Kind(err)
	switch {
	case errors.Is(err, script.ErrScriptFailed):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, script.ErrRunCancelled):
		status = http.StatusConflict
	case errors.Is(err, script.ErrRunnerCrashed), errors.Is(err, script.ErrRunnerBroken):
		status = http.StatusServiceUnavailable
	case isNotFound(err):
		status = http.StatusNotFound
		kind = "not_found"
	}
	respondJSON(w, status, map[string]string{"error": err.Error(), "kind": kind})
}

func isNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "not found")
}

// Render Handlers

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	var req service.RenderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.service.Render(r.Context(), req)
	if err != nil {
		s.log.Info("render failed", "kind", script.Kind(err), "error", err)
		respondRunError(w, err)
		return
	}

	s.logRun("-", result)

	// ?variant= returns the document itself instead of the JSON envelope
	if name := r.URL.Query().Get("variant"); name != "" {
		variant, err := script.ParseVariant(name)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondSVG(w, result.Result.SVG[variant], "")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// Session Handlers

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PresetID string `json:"preset_id,omitempty"`
	}

	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	session, err := s.service.CreateSession(r.Context(), req.PresetID)
	if err != nil {
		status := http.StatusInternalServerError
		if isNotFound(err) {
			status = http.StatusNotFound
		}
		respondError(w, status, err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, session)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.service.ListSessions(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	query := r.URL.Query()
	sortBy := query.Get("sort")    // "created", "accessed" (default)
	order := query.Get("order")    // "asc", "desc" (default: "desc")
	limitStr := query.Get("limit") // number of sessions to return

	if sortBy == "" {
		sortBy = "accessed"
	}
	if order == "" {
		order = "desc"
	}

	sort.Slice(sessions, func(i, j int) bool {
		var ti, tj time.Time
		if sortBy == "created" {
			ti, tj = sessions[i].CreatedAt, sessions[j].CreatedAt
		} else {
			ti, tj = sessions[i].LastAccessedAt, sessions[j].LastAccessedAt
		}

		if order == "asc" {
			return ti.Before(tj)
		}
		return ti.After(tj)
	})

	total := len(sessions)
	limit := total
	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l < total {
			limit = l
		}
	}
	sessions = sessions[:limit]

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(sessions),
		"total":    total,
		"sessions": sessions,
		"sort":     sortBy,
		"order":    order,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	session, err := s.service.GetSession(r.Context(), sessionID)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, session)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	if err := s.service.DeleteSession(r.Context(), sessionID); err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Session %s deleted", sessionID),
	})
}

// Script Handlers

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req struct {
		Script string `json:"script"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	result, err := s.service.Run(r.Context(), sessionID, req.Script)
	if s.hub != nil && !isNotFound(err) {
		s.hub.PublishRun(strings.ToLower(sessionID), result, err)
	}
	if err != nil {
		s.log.Info("run failed", "session", sessionID, "kind", script.Kind(err), "error", err)
		respondRunError(w, err)
		return
	}

	s.logRun(sessionID, result)
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	cancelled, err := s.service.Cancel(r.Context(), sessionID)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	if err := s.service.Restart(r.Context(), sessionID); err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Runner restarted",
	})
}

func (s *Server) handleGetSVG(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sessionID := vars["id"]

	variant, err := script.ParseVariant(strings.TrimSuffix(vars["variant"], ".svg"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	query := r.URL.Query()
	embed := query.Get("source") == "1" || query.Get("source") == "true"

	doc, err := s.service.GetSVG(r.Context(), sessionID, variant, embed)
	if err != nil {
		if errors.Is(err, service.ErrNoResult) || isNotFound(err) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	filename := ""
	if query.Get("download") == "1" {
		filename = fmt.Sprintf("turtle-%s-%s.svg", sessionID, variant)
	}
	respondSVG(w, doc, filename)
}

func respondSVG(w http.ResponseWriter, doc, filename string) {
	w.Header().Set("Content-Type", "image/svg+xml")
	if filename != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(doc))
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	opts := service.HistoryOptions{
		Page:  1,
		Limit: 20,
		Order: "desc",
	}

	query := r.URL.Query()
	if pageStr := query.Get("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			opts.Page = p
		}
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			opts.Limit = l
		}
	}

	if order := query.Get("order"); order == "asc" || order == "desc" {
		opts.Order = order
	}

	history, err := s.service.GetRunHistory(r.Context(), sessionID, opts)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, history)
}

// Preset Handlers

func (s *Server) handleListPresets(w http.ResponseWriter, r *http.Request) {
	presets, err := s.service.ListPresets(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if presets == nil {
		presets = []*service.PresetInfo{}
	}
	respondJSON(w, http.StatusOK, presets)
}

func (s *Server) handleGetPreset(w http.ResponseWriter, r *http.Request) {
	presetID := strings.TrimSuffix(mux.Vars(r)["id"], ".yaml")

	preset, err := s.service.LoadPreset(r.Context(), presetID)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, preset)
}

func (s *Server) handleCreatePreset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
		service.Preset
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.ID == "" {
		respondError(w, http.StatusBadRequest, "Preset id is required")
		return
	}

	if err := s.service.SavePreset(r.Context(), req.ID, &req.Preset); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("Failed to save preset: %v", err))
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message":   "Preset saved successfully",
		"preset_id": req.ID,
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, "session parameter required", http.StatusBadRequest)
		return
	}

	if _, err := s.service.GetSession(context.Background(), sessionID); err != nil {
		http.Error(w, "Invalid session", http.StatusNotFound)
		return
	}

	if s.hub == nil {
		http.Error(w, "WebSocket not available", http.StatusServiceUnavailable)
		return
	}

	s.hub.ServeWS(w, r, strings.ToLower(sessionID))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// logRun writes a compact one-line summary of a successful run
func (s *Server) logRun(sessionID string, result *service.RunResult) {
	if result == nil || result.Result == nil {
		return
	}
	res := result.Result
	s.log.Info("run",
		"session", sessionID,
		"run", result.RunID,
		"tracks", res.Tracks,
		"segments", res.Segments,
		"drawn", res.Drawn,
		"canvas", fmt.Sprintf("%dx%d", res.Width, res.Height),
		"took", res.Duration.Round(time.Microsecond))
}
