package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/remindbot/remindbot/internal/db"
	"github.com/remindbot/remindbot/internal/dispatch"
)

// ReminderRequest represents the incoming reminder body
type ReminderRequest struct {
	Title           string      `json:"title"`
	Message         string      `json:"message"`
	RecipientIDs    []string    `json:"recipient_ids"`
	Schedule        db.Schedule `json:"schedule"`
	Amount          *float64    `json:"amount"`
	DueDate         *string     `json:"due_date"`
	ReminderOffsets []int       `json:"reminder_offsets"`
	IsActive        *bool       `json:"is_active"`
	Category        string      `json:"category"`
}

// SendRequest represents the body of a manual send
type SendRequest struct {
	ContactIDs []string `json:"contact_ids"`
}

// parseDueDate accepts RFC3339 timestamps or plain YYYY-MM-DD dates.
func parseDueDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

func (h *Handler) resolveRecipients(r *http.Request, ids []string) ([]*db.Contact, string) {
	recipients := make([]*db.Contact, 0, len(ids))
	for _, idStr := range ids {
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, "recipient_ids must be valid UUIDs"
		}
		contact, err := h.store.GetContact(r.Context(), id)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return nil, "unknown contact: " + idStr
			}
			h.logger.Error("failed to resolve recipient", zap.Error(err), zap.String("contact_id", idStr))
			return nil, "failed to resolve recipients"
		}
		recipients = append(recipients, contact)
	}
	return recipients, ""
}

// CreateReminder handles POST /v1/reminders
func (h *Handler) CreateReminder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}

	if req.Title == "" || req.Message == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing required fields", "title and message are required")
		return
	}

	if len(req.RecipientIDs) == 0 {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing recipients", "at least one recipient is required")
		return
	}

	recipients, problem := h.resolveRecipients(r, req.RecipientIDs)
	if problem != "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid recipients", problem)
		return
	}

	rem := &db.Reminder{
		ID:              uuid.New(),
		Title:           req.Title,
		Message:         req.Message,
		Recipients:      recipients,
		Schedule:        req.Schedule,
		Amount:          req.Amount,
		ReminderOffsets: req.ReminderOffsets,
		IsActive:        true,
		Category:        req.Category,
	}

	if req.DueDate != nil && *req.DueDate != "" {
		due, err := parseDueDate(*req.DueDate)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid due_date", "due_date must be RFC3339 or YYYY-MM-DD")
			return
		}
		rem.DueDate = &due
	}

	if len(rem.ReminderOffsets) == 0 {
		rem.ReminderOffsets = db.DefaultReminderOffsets
	}
	if req.IsActive != nil {
		rem.IsActive = *req.IsActive
	}
	if rem.Schedule.Kind == "" {
		rem.Schedule.Kind = db.ScheduleMonthly
	}
	if rem.Category == "" {
		rem.Category = "general"
	}

	if err := h.store.CreateReminder(ctx, rem); err != nil {
		h.logger.Error("failed to create reminder", zap.Error(err), zap.String("title", req.Title))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to create reminder", "")
		return
	}

	h.writeJSON(w, http.StatusCreated, rem)
}

// GetReminder handles GET /v1/reminders/{id}
func (h *Handler) GetReminder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid reminder ID", "ID must be a valid UUID")
		return
	}

	rem, err := h.store.GetReminder(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "not_found", "Reminder not found", "")
			return
		}
		h.logger.Error("failed to get reminder", zap.Error(err), zap.String("id", id.String()))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to get reminder", "")
		return
	}

	h.writeJSON(w, http.StatusOK, rem)
}

// ListReminders handles GET /v1/reminders
func (h *Handler) ListReminders(w http.ResponseWriter, r *http.Request) {
	reminders, err := h.store.ListReminders(r.Context())
	if err != nil {
		h.logger.Error("failed to list reminders", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to list reminders", "")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":  reminders,
		"count": len(reminders),
	})
}

// UpdateReminder handles PUT /v1/reminders/{id}
func (h *Handler) UpdateReminder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid reminder ID", "ID must be a valid UUID")
		return
	}

	existing, err := h.store.GetReminder(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "not_found", "Reminder not found", "")
			return
		}
		h.logger.Error("failed to get reminder", zap.Error(err), zap.String("id", id.String()))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to get reminder", "")
		return
	}

	var req ReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}

	if req.Title != "" {
		existing.Title = req.Title
	}
	if req.Message != "" {
		existing.Message = req.Message
	}
	if req.RecipientIDs != nil {
		recipients, problem := h.resolveRecipients(r, req.RecipientIDs)
		if problem != "" {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid recipients", problem)
			return
		}
		if len(recipients) == 0 {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing recipients", "at least one recipient is required")
			return
		}
		existing.Recipients = recipients
	}
	if req.Schedule.Kind != "" {
		existing.Schedule = req.Schedule
	}
	if req.Amount != nil {
		existing.Amount = req.Amount
	}
	if req.DueDate != nil {
		if *req.DueDate == "" {
			existing.DueDate = nil
		} else {
			due, err := parseDueDate(*req.DueDate)
			if err != nil {
				h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid due_date", "due_date must be RFC3339 or YYYY-MM-DD")
				return
			}
			existing.DueDate = &due
		}
	}
	if req.ReminderOffsets != nil {
		existing.ReminderOffsets = req.ReminderOffsets
	}
	if req.IsActive != nil {
		existing.IsActive = *req.IsActive
	}
	if req.Category != "" {
		existing.Category = req.Category
	}

	if err := h.store.UpdateReminder(ctx, existing); err != nil {
		h.logger.Error("failed to update reminder", zap.Error(err), zap.String("id", id.String()))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to update reminder", "")
		return
	}

	h.writeJSON(w, http.StatusOK, existing)
}

// DeleteReminder handles DELETE /v1/reminders/{id}
func (h *Handler) DeleteReminder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid reminder ID", "ID must be a valid UUID")
		return
	}

	if err := h.store.DeleteReminder(ctx, id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "not_found", "Reminder not found", "")
			return
		}
		h.logger.Error("failed to delete reminder", zap.Error(err), zap.String("id", id.String()))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to delete reminder", "")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SendReminder handles POST /v1/reminders/{id}/send. It sends the reminder
// immediately, bypassing the offset gate and the per-day dedupe.
func (h *Handler) SendReminder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid reminder ID", "ID must be a valid UUID")
		return
	}

	// Body is optional; an empty body sends to all recipients.
	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}

	contactIDs := make([]uuid.UUID, 0, len(req.ContactIDs))
	for _, idStr := range req.ContactIDs {
		cid, err := uuid.Parse(idStr)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid contact_ids", "contact_ids must be valid UUIDs")
			return
		}
		contactIDs = append(contactIDs, cid)
	}

	result, err := h.dispatcher.SendManual(ctx, id, contactIDs, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, dispatch.ErrReminderNotFound):
			h.writeError(w, http.StatusNotFound, "not_found", "Reminder not found", "")
		case errors.Is(err, dispatch.ErrNoRecipients):
			h.writeError(w, http.StatusBadRequest, "invalid_request", "No valid recipients", err.Error())
		default:
			h.logger.Error("manual send failed", zap.Error(err), zap.String("reminder_id", id.String()))
			h.writeError(w, http.StatusInternalServerError, "dispatch_error", "Failed to send reminder", "")
		}
		return
	}

	h.logger.Info("manual send completed",
		zap.String("reminder_id", id.String()),
		zap.Int("success", result.SuccessCount),
		zap.Int("failure", result.FailureCount),
	)

	h.writeJSON(w, http.StatusOK, result)
}
