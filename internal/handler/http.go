package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/score-ledger/internal/domain"
	"github.com/score-ledger/internal/service"
	"github.com/score-ledger/internal/websocket"
)

// Handler provides HTTP handlers for the score ledger API
type Handler struct {
	ledger *service.ScoreLedger
	hub    *websocket.Hub
	logger *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(ledger *service.ScoreLedger, hub *websocket.Hub, logger *slog.Logger) *Handler {
	return &Handler{
		ledger: ledger,
		hub:    hub,
		logger: logger,
	}
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// WebSocket endpoint
	r.Get("/ws", h.HandleWebSocket)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/scores", h.SubmitScore)
		r.Options("/scores", preflight("POST, OPTIONS"))

		r.Get("/rankings", h.GetRankings)
		r.Options("/rankings", preflight("GET, OPTIONS"))

		r.Get("/players/{playerID}/stats", h.GetPlayerStats)
		r.Options("/players/{playerID}/stats", preflight("GET, OPTIONS"))

		// Query-param variant kept for callers that cannot set a path
		// segment; playerId comes from ?playerId=
		r.Get("/players/stats", h.GetPlayerStats)
		r.Options("/players/stats", preflight("GET, OPTIONS"))

		// WebSocket info endpoint
		r.Get("/ws/stats", h.GetWebSocketStats)
	})

	return r
}

// corsMiddleware adds wildcard CORS headers to every response
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		next.ServeHTTP(w, r)
	})
}

// preflight answers an OPTIONS request for an endpoint with the given
// method list
func preflight(methods string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.WriteHeader(http.StatusOK)
	}
}

// errorResponse is the failure envelope for all endpoints
type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeFailure writes an error JSON envelope
func (h *Handler) writeFailure(w http.ResponseWriter, status int, message, detail string) {
	h.writeJSON(w, status, errorResponse{
		Success: false,
		Message: message,
		Error:   detail,
	})
}

// validationMessage maps a validation error to its response message
func validationMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrMissingFields):
		return "Missing required fields: playerId, gameId, score, playerName"
	case errors.Is(err, domain.ErrScoreOutOfRange):
		return "Score must be between 0 and 999999"
	case errors.Is(err, domain.ErrPlayerIDRequired):
		return "playerId is required"
	}
	return err.Error()
}

func generatedAt() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// SubmitScore handles POST /api/v1/scores
func (h *Handler) SubmitScore(w http.ResponseWriter, r *http.Request) {
	var sub domain.ScoreSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		// An unreadable body is treated the same as an empty one
		h.writeFailure(w, http.StatusBadRequest, validationMessage(domain.ErrMissingFields), "")
		return
	}

	result, err := h.ledger.SubmitScore(r.Context(), sub)
	if err != nil {
		if domain.IsValidationError(err) {
			h.writeFailure(w, http.StatusBadRequest, validationMessage(err), "")
			return
		}
		h.logger.Error("failed to submit score", "error", err)
		h.writeFailure(w, http.StatusInternalServerError, "Internal server error", err.Error())
		return
	}

	if !result.Updated {
		h.writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":        true,
			"message":        result.Message,
			"currentScore":   result.CurrentScore,
			"attemptedScore": result.AttemptedScore,
		})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"message":       result.Message,
		"score":         result.Score,
		"previousScore": result.PreviousScore,
		"improvement":   result.Improvement,
		"isNewRecord":   result.IsNewRecord,
		"timestamp":     result.Timestamp,
	})
}

// GetRankings handles GET /api/v1/rankings
func (h *Handler) GetRankings(w http.ResponseWriter, r *http.Request) {
	gameID := r.URL.Query().Get("gameId")

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	rankings, err := h.ledger.GetRankings(r.Context(), gameID, limit)
	if err != nil {
		h.logger.Error("failed to get rankings", "error", err)
		h.writeFailure(w, http.StatusInternalServerError, "Error fetching rankings", err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"gameId":       rankings.GameID,
		"totalPlayers": rankings.TotalPlayers,
		"rankings":     rankings.Entries,
		"generatedAt":  generatedAt(),
	})
}

// GetPlayerStats handles GET /api/v1/players/{playerID}/stats
func (h *Handler) GetPlayerStats(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")
	if playerID == "" {
		playerID = r.URL.Query().Get("playerId")
	}

	stats, err := h.ledger.GetPlayerStats(r.Context(), playerID)
	if err != nil {
		if errors.Is(err, domain.ErrPlayerIDRequired) {
			h.writeFailure(w, http.StatusBadRequest, validationMessage(err), "")
			return
		}
		if errors.Is(err, domain.ErrPlayerNotFound) {
			h.writeFailure(w, http.StatusNotFound, "Player not found", "")
			return
		}
		h.logger.Error("failed to get player stats", "error", err)
		h.writeFailure(w, http.StatusInternalServerError, "Error fetching player stats", err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"player":      stats,
		"generatedAt": generatedAt(),
	})
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics. With
// ?gameId= it also reports that game's subscriber count.
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"success":           true,
		"total_connections": h.hub.GetTotalConnections(),
	}
	if gameID := r.URL.Query().Get("gameId"); gameID != "" {
		stats["game_id"] = gameID
		stats["subscribers"] = h.hub.GetSubscriberCount(gameID)
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"status":  "healthy",
	})
}

// ReadyCheck returns service readiness status
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"status":  "ready",
	})
}
