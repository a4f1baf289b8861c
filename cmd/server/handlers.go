package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/brassbook/brassbook/pkg/brassbook"
	"github.com/brassbook/brassbook/pkg/logger"
)

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	service brassbook.Service
	config  *ServerConfig
	auth    *tokenAuth
	log     brassbook.Logger
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	DBPath         string
	TempDir        string
	SampleRate     int
	AllowedOrigins []string
	// Tokens are the accepted bearer tokens, plain or bcrypt-hashed.
	Tokens        []string
	MaxUploadSize int64
	// CompareTimeout bounds a single comparison including decoding.
	CompareTimeout time.Duration
	LogRequests    bool
}

// NewServer creates a new server instance
func NewServer(service brassbook.Service, config *ServerConfig) *Server {
	return &Server{
		service: service,
		config:  config,
		auth:    newTokenAuth(config.Tokens),
		log:     logger.GetLogger(),
	}
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"service": "Brassbook API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":          "GET /health",
			"metrics":         "GET /api/health/metrics",
			"tracks":          "GET /api/v1/tracks",
			"getTrack":        "GET /api/v1/tracks/{id}",
			"comparisons":     "GET /api/v1/comparisons",
			"compareMelodies": "POST /api/v1/compare_melodies",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleMetrics handles GET /api/health/metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	tracks, err := s.service.ListTracks()
	if err != nil {
		s.log.Errorf("Failed to get track count: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve metrics")
		return
	}

	s.respondJSON(w, http.StatusOK, MetricsResponse{
		Status:        "healthy",
		DatabasePath:  s.config.DBPath,
		TrackCount:    len(tracks),
		SampleRate:    s.config.SampleRate,
		MaxUploadSize: s.config.MaxUploadSize,
	})
}

// handleTracks handles GET /api/v1/tracks
func (s *Server) handleTracks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	tracks, err := s.service.ListTracks()
	if err != nil {
		s.log.Errorf("Failed to list tracks: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve tracks")
		return
	}

	dtos := make([]TrackDTO, len(tracks))
	for i, t := range tracks {
		dtos[i] = newTrackDTO(t)
	}
	s.respondJSON(w, http.StatusOK, ListTracksResponse{
		Tracks: dtos,
		Count:  len(dtos),
	})
}

// handleTrack handles GET /api/v1/tracks/{id}
func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/tracks/")
	if id == "" || strings.Contains(id, "/") {
		s.respondError(w, http.StatusBadRequest, "Invalid track ID")
		return
	}

	track, err := s.service.GetTrack(id)
	if errors.Is(err, brassbook.ErrTrackNotFound) {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("Track with ID %s not found", id))
		return
	}
	if err != nil {
		s.log.Errorf("Failed to get track %s: %v", id, err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve track")
		return
	}
	s.respondJSON(w, http.StatusOK, newTrackDTO(*track))
}

// handleComparisons handles GET /api/v1/comparisons?limit=N
func (s *Server) handleComparisons(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit := DefaultComparisonLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	history, err := s.service.ListComparisons(limit)
	if err != nil {
		s.log.Errorf("Failed to list comparisons: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve comparisons")
		return
	}

	dtos := make([]ComparisonDTO, len(history))
	for i, c := range history {
		dtos[i] = ComparisonDTO{
			ID:            c.ID,
			TrackID:       c.TrackID,
			ReferenceName: c.ReferenceName,
			RecordingName: c.RecordingName,
			Integral:      c.Integral,
			CreatedAt:     c.CreatedAt,
		}
	}
	s.respondJSON(w, http.StatusOK, ListComparisonsResponse{
		Comparisons: dtos,
		Count:       len(dtos),
	})
}

// handleCompareMelodies handles POST /api/v1/compare_melodies. The body is
// multipart with the reference in file1 and the performance in file2; the
// response is the bare result array.
func (s *Server) handleCompareMelodies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	timeout := s.config.CompareTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	limit := s.config.MaxUploadSize
	if limit > 0 {
		// Two files plus multipart overhead.
		r.Body = http.MaxBytesReader(w, r.Body, 2*limit+1<<20)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		s.log.Errorf("Failed to parse form: %v", err)
		s.respondError(w, http.StatusBadRequest, "Failed to parse form data")
		return
	}
	defer r.MultipartForm.RemoveAll()

	reference, status, msg := s.readUpload(r, ReferenceField)
	if status != 0 {
		s.respondError(w, status, msg)
		return
	}
	recording, status, msg := s.readUpload(r, RecordingField)
	if status != 0 {
		s.respondError(w, status, msg)
		return
	}
	reference.TrackID = r.FormValue(TrackIDField)

	result, err := s.service.CompareMelodies(ctx, reference, recording)
	switch {
	case err == nil:
		s.respondJSON(w, http.StatusOK, result)
	case errors.Is(err, brassbook.ErrUploadTooLarge):
		s.respondError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, brassbook.ErrNotAudio), errors.Is(err, brassbook.ErrEmptyUpload):
		s.respondError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Errorf("Melody comparison failed: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Error during melody comparison")
	}
}

// readUpload returns a non-zero status when field is missing or oversized.
func (s *Server) readUpload(r *http.Request, field string) (brassbook.Upload, int, string) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return brassbook.Upload{}, http.StatusBadRequest, fmt.Sprintf("%s is required", field)
	}
	if err != nil {
		return brassbook.Upload{}, http.StatusBadRequest, fmt.Sprintf("Failed to read %s", field)
	}
	defer file.Close()

	if s.config.MaxUploadSize > 0 && header.Size > s.config.MaxUploadSize {
		return brassbook.Upload{}, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("%s exceeds the maximum size of %d bytes", field, s.config.MaxUploadSize)
	}

	data, err := io.ReadAll(file)
	if err != nil {
		s.log.Errorf("Failed to read %s: %v", field, err)
		return brassbook.Upload{}, http.StatusBadRequest, fmt.Sprintf("Failed to read %s", field)
	}
	return brassbook.Upload{Name: header.Filename, Data: data}, 0, ""
}
