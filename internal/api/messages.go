package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/remindbot/remindbot/internal/db"
)

// ListMessages handles GET /v1/messages?limit=20&offset=0
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 20
	offset := 0

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	messages, err := h.store.ListMessages(ctx, limit, offset)
	if err != nil {
		h.logger.Error("failed to list messages", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to list messages", "")
		return
	}

	total, err := h.store.CountMessages(ctx)
	if err != nil {
		h.logger.Error("failed to count messages", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to count messages", "")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":   messages,
		"limit":  limit,
		"offset": offset,
		"total":  total,
	})
}

// ListReminderMessages handles GET /v1/reminders/{id}/messages
func (h *Handler) ListReminderMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid reminder ID", "ID must be a valid UUID")
		return
	}

	messages, err := h.store.ListMessagesForReminder(ctx, id)
	if err != nil {
		h.logger.Error("failed to list reminder messages", zap.Error(err), zap.String("reminder_id", id.String()))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to list messages", "")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":  messages,
		"count": len(messages),
	})
}

// SetMessagePaid handles PUT /v1/messages/{id}/paid. Marking a delivery-log
// row paid is how the admin tracks that a billed reminder was settled.
func (h *Handler) SetMessagePaid(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid message ID", "ID must be a valid UUID")
		return
	}

	var req struct {
		IsPaid *bool `json:"is_paid"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}

	paid := true
	if req.IsPaid != nil {
		paid = *req.IsPaid
	}

	if err := h.store.SetMessagePaid(ctx, id, paid); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "not_found", "Message not found", "")
			return
		}
		h.logger.Error("failed to update message", zap.Error(err), zap.String("id", id.String()))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to update message", "")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":      id.String(),
		"is_paid": paid,
	})
}

// GetDashboardStats handles GET /v1/stats/dashboard
func (h *Handler) GetDashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetDashboardStats(r.Context())
	if err != nil {
		h.logger.Error("failed to load dashboard stats", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to load stats", "")
		return
	}

	h.writeJSON(w, http.StatusOK, stats)
}
