package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/remindbot/remindbot/internal/db"
)

// ContactRequest represents the incoming contact body
type ContactRequest struct {
	Name     string                `json:"name"`
	Phone    string                `json:"phone"`
	Tags     []string              `json:"tags"`
	Prefs    db.ContactPreferences `json:"preferences"`
	IsActive *bool                 `json:"is_active"`
}

// CreateContact handles POST /v1/contacts
func (h *Handler) CreateContact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}

	if req.Name == "" || req.Phone == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing required fields", "name and phone are required")
		return
	}

	contact := &db.Contact{
		ID:       uuid.New(),
		Name:     req.Name,
		Phone:    req.Phone,
		Tags:     req.Tags,
		Prefs:    req.Prefs,
		IsActive: true,
	}
	if req.IsActive != nil {
		contact.IsActive = *req.IsActive
	}
	if contact.Tags == nil {
		contact.Tags = []string{}
	}
	if contact.Prefs.Timezone == "" {
		contact.Prefs.Timezone = "America/New_York"
	}
	if contact.Prefs.ReminderOffset == 0 {
		contact.Prefs.ReminderOffset = 3
	}

	if err := h.store.CreateContact(ctx, contact); err != nil {
		h.logger.Error("failed to create contact", zap.Error(err), zap.String("name", req.Name))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to create contact", "")
		return
	}

	h.writeJSON(w, http.StatusCreated, contact)
}

// GetContact handles GET /v1/contacts/{id}
func (h *Handler) GetContact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid contact ID", "ID must be a valid UUID")
		return
	}

	contact, err := h.store.GetContact(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "not_found", "Contact not found", "")
			return
		}
		h.logger.Error("failed to get contact", zap.Error(err), zap.String("id", id.String()))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to get contact", "")
		return
	}

	h.writeJSON(w, http.StatusOK, contact)
}

// ListContacts handles GET /v1/contacts
func (h *Handler) ListContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := h.store.ListContacts(r.Context())
	if err != nil {
		h.logger.Error("failed to list contacts", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to list contacts", "")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":  contacts,
		"count": len(contacts),
	})
}

// UpdateContact handles PUT /v1/contacts/{id}
func (h *Handler) UpdateContact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid contact ID", "ID must be a valid UUID")
		return
	}

	existing, err := h.store.GetContact(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "not_found", "Contact not found", "")
			return
		}
		h.logger.Error("failed to get contact", zap.Error(err), zap.String("id", id.String()))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to get contact", "")
		return
	}

	var req ContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}

	if req.Name != "" {
		existing.Name = req.Name
	}
	if req.Phone != "" {
		existing.Phone = req.Phone
	}
	if req.Tags != nil {
		existing.Tags = req.Tags
	}
	if req.Prefs.Timezone != "" {
		existing.Prefs.Timezone = req.Prefs.Timezone
	}
	if req.Prefs.ReminderOffset != 0 {
		existing.Prefs.ReminderOffset = req.Prefs.ReminderOffset
	}
	if req.IsActive != nil {
		existing.IsActive = *req.IsActive
	}

	if err := h.store.UpdateContact(ctx, existing); err != nil {
		h.logger.Error("failed to update contact", zap.Error(err), zap.String("id", id.String()))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to update contact", "")
		return
	}

	h.writeJSON(w, http.StatusOK, existing)
}

// DeleteContact handles DELETE /v1/contacts/{id}
func (h *Handler) DeleteContact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid contact ID", "ID must be a valid UUID")
		return
	}

	if err := h.store.DeleteContact(ctx, id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "not_found", "Contact not found", "")
			return
		}
		h.logger.Error("failed to delete contact", zap.Error(err), zap.String("id", id.String()))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to delete contact", "")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
