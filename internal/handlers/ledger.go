package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/kladdkaka/internal/app"
	"github.com/shrimpsizemoose/kladdkaka/internal/metrics"
)

type LedgerHandler struct {
	service *app.Service
}

func NewLedgerHandler(service *app.Service) *LedgerHandler {
	return &LedgerHandler{
		service: service,
	}
}

func (h *LedgerHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !h.service.ValidateHeaders(r.Header) {
		http.Error(w, "these are not the droids you are looking for", http.StatusNotFound)
		return
	}

	user := r.PathValue("user")
	if user == "" {
		logger.Error.Printf("Failed to extract user from path: %s", r.URL.Path)
		http.Error(w, "Invalid user", http.StatusBadRequest)
		return
	}

	history, err := h.service.History(user)
	if err != nil {
		logger.Error.Printf("Failed to fetch ledger history for %s: %v", user, err)
		http.Error(w, "Failed to fetch history", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"rows": history,
	}); err != nil {
		logger.Error.Printf("Failed to encode history: %v", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

func (h *LedgerHandler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !h.service.ValidateHeaders(r.Header) {
		http.Error(w, "these are not the droids you are looking for", http.StatusNotFound)
		return
	}

	user := r.PathValue("user")
	if user == "" {
		logger.Error.Printf("Failed to extract user from path: %s", r.URL.Path)
		http.Error(w, "Invalid user", http.StatusBadRequest)
		return
	}

	total, err := h.service.Balance(user)
	if err != nil {
		logger.Error.Printf("Failed to fetch balance for %s: %v", user, err)
		http.Error(w, "Failed to fetch balance", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"user_id":       user,
		"total_credits": total,
	}); err != nil {
		logger.Error.Printf("Failed to encode balance: %v", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

func (h *LedgerHandler) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !h.service.ValidateHeaders(r.Header) {
		http.Error(w, "these are not the droids you are looking for", http.StatusNotFound)
		return
	}

	board, err := h.service.Leaderboard()
	if err != nil {
		logger.Error.Printf("Failed to fetch leaderboard: %v", err)
		http.Error(w, "Failed to fetch leaderboard", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"rows": board,
	}); err != nil {
		logger.Error.Printf("Failed to encode leaderboard: %v", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

func (h *LedgerHandler) HandleBonus(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "200"
	defer func() {
		duration := time.Since(start).Seconds()
		metrics.APIRequestDuration.WithLabelValues(
			r.URL.Path,
			r.Method,
			status,
		).Observe(duration)
	}()

	if r.Method != http.MethodPost {
		status = "405"
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !h.service.ValidateHeaders(r.Header) {
		status = "403"
		http.Error(w, "these are not the droids you are looking for", http.StatusForbidden)
		return
	}

	var req struct {
		UserID   string `json:"user_id"`
		IssuerID string `json:"issuer_id"`
		Amount   int    `json:"amount"`
		Reason   string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		status = "400"
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	tx, err := h.service.AwardBonus(r.Context(), req.UserID, req.IssuerID, req.Amount, req.Reason)
	if err != nil {
		logger.Error.Printf("Failed to award bonus to %s: %v", req.UserID, err)
		status = "400"
		http.Error(w, "Failed to award bonus", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(tx); err != nil {
		logger.Error.Printf("Failed to encode bonus transaction: %v", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// HandlePromote flips a user to organizer when the shared secret matches.
// This is the only privilege escalation path in the system.
func (h *LedgerHandler) HandlePromote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		SecretKey string `json:"secret_key"`
		UserID    string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.PromoteUser(req.SecretKey, req.UserID); err != nil {
		logger.Error.Printf("Promotion of %s failed: %v", req.UserID, err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "User promoted to organizer",
	})
}
