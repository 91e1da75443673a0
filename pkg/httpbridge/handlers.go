package httpbridge

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/soypete/mockinterview/pkg/transcribe"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`   // "healthy" or "degraded"
	Engine    bool   `json:"engine"`   // entry point and working dir present
	Database  string `json:"database"` // "ok", "down" or "disabled"
	Timestamp string `json:"timestamp"`
}

// handleHealth reports engine and database availability
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	engineOK := s.transcriber.Check() == nil

	database := "disabled"
	if s.history != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		database = "ok"
		if err := s.history.Ping(ctx); err != nil {
			database = "down"
		}
	}

	status := "healthy"
	if !engineOK || database == "down" {
		status = "degraded"
	}

	respondJSON(w, http.StatusOK, HealthResponse{
		Status:    status,
		Engine:    engineOK,
		Database:  database,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// TranscriptionsResponse lists recent runs
type TranscriptionsResponse struct {
	Runs  []transcribe.Run `json:"runs"`
	Count int              `json:"count"`
}

// handleTranscriptions handles GET /api/transcriptions?limit=N
func (s *Server) handleTranscriptions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.history == nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "history_disabled",
		})
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondJSON(w, http.StatusBadRequest, map[string]string{
				"error":  "invalid_limit",
				"detail": v,
			})
			return
		}
		limit = n
	}

	runs, err := s.history.ListRuns(r.Context(), limit)
	if err != nil {
		s.logger.Printf("[http] failed to list runs: %v", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{
			"error":  "history_failed",
			"detail": err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, TranscriptionsResponse{
		Runs:  runs,
		Count: len(runs),
	})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
