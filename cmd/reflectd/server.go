package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/theimaginaryfoundation/mood-reflect/journal"
	"github.com/theimaginaryfoundation/mood-reflect/reflection"
)

// Server is the HTTP surface of the reflection daemon.
type Server struct {
	svc     *reflection.Service
	entries *journal.Store
	config  *ServerConfig
	logger  *zap.Logger
	server  *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(svc *reflection.Service, entries *journal.Store, cfg *ServerConfig, logger *zap.Logger) *Server {
	return &Server{
		svc:     svc,
		entries: entries,
		config:  cfg,
		logger:  logger,
	}
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Minute))

	r.Post("/api/v1/entries", s.handleCreateEntry)
	r.Post("/api/v1/reflections", s.handleGenerateReflection)
	r.Get("/api/v1/reflections/status", s.handleStatus)
	r.Delete("/api/v1/cache", s.handleClearCache)
	r.Get("/health", s.handleHealth)

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: r,
	}
	s.logger.Info("starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

type createEntryRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Mood    string `json:"mood"`
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var req createEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	entry, err := s.entries.InsertEntry(r.Context(), reflection.JournalEntry{
		Title:   req.Title,
		Content: req.Content,
		Mood:    reflection.Mood(req.Mood),
	})
	if err != nil {
		s.logger.Error("insert entry failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, entry)
}

type reflectionRequest struct {
	Mood       string `json:"mood"`
	Timeframe  string `json:"timeframe"`
	Depth      string `json:"depth"`
	Regenerate bool   `json:"regenerate"`
}

func (s *Server) handleGenerateReflection(w http.ResponseWriter, r *http.Request) {
	var req reflectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Mood == "" {
		s.respondError(w, http.StatusBadRequest, "mood is required")
		return
	}
	if req.Timeframe == "" {
		req.Timeframe = string(reflection.TimeframeWeek)
	}
	if req.Depth == "" {
		req.Depth = string(reflection.DepthStandard)
	}

	mood := reflection.Mood(req.Mood)
	timeframe := reflection.Timeframe(req.Timeframe)
	depth := reflection.Depth(req.Depth)

	from, to := timeframe.Window(time.Now().UTC())
	entries, err := s.entries.FetchEntries(r.Context(), reflection.EntryFilter{
		Mood: mood,
		From: from,
		To:   to,
	})
	if err != nil {
		s.logger.Error("fetch entries failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.logger.Debug("reflection request",
		zap.String("mood", req.Mood),
		zap.String("timeframe", req.Timeframe),
		zap.String("depth", req.Depth),
		zap.Int("entries", len(entries)))

	var out reflection.MoodReflection
	if req.Regenerate {
		out, err = s.svc.RegenerateReflection(r.Context(), mood, entries, timeframe, depth)
	} else {
		out, err = s.svc.GenerateReflection(r.Context(), mood, entries, timeframe, depth)
	}
	if err != nil {
		s.respondPipelineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.svc.Status()
	resp := map[string]interface{}{
		"state":    string(st.State),
		"progress": st.Progress,
	}
	if st.Err != nil {
		resp["error"] = st.Err.Error()
		if hint := reflection.SuggestionFor(st.Err); hint != "" {
			resp["suggestion"] = hint
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.ClearCache(r.Context()); err != nil {
		s.logger.Error("clear cache failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// respondPipelineError maps pipeline failures to HTTP statuses and attaches
// the user-facing suggestion when one exists.
func (s *Server) respondPipelineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var insufficient *reflection.InsufficientEntriesError
	switch {
	case errors.As(err, &insufficient):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	s.logger.Error("reflection failed", zap.Error(err))
	resp := map[string]string{"error": err.Error()}
	if hint := reflection.SuggestionFor(err); hint != "" {
		resp["suggestion"] = hint
	}
	s.respondJSON(w, status, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
