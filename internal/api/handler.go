package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/remindbot/remindbot/internal/auth"
	"github.com/remindbot/remindbot/internal/db"
	"github.com/remindbot/remindbot/internal/dispatch"
	"github.com/remindbot/remindbot/internal/sms"
)

// Store defines the database operations the API handlers need.
type Store interface {
	CreateContact(ctx context.Context, c *db.Contact) error
	GetContact(ctx context.Context, id uuid.UUID) (*db.Contact, error)
	ListContacts(ctx context.Context) ([]*db.Contact, error)
	UpdateContact(ctx context.Context, c *db.Contact) error
	DeleteContact(ctx context.Context, id uuid.UUID) error

	CreateReminder(ctx context.Context, rem *db.Reminder) error
	GetReminder(ctx context.Context, id uuid.UUID) (*db.Reminder, error)
	ListReminders(ctx context.Context) ([]*db.Reminder, error)
	UpdateReminder(ctx context.Context, rem *db.Reminder) error
	DeleteReminder(ctx context.Context, id uuid.UUID) error

	ListMessages(ctx context.Context, limit, offset int) ([]*db.MessageDetail, error)
	ListMessagesForReminder(ctx context.Context, reminderID uuid.UUID) ([]*db.MessageDetail, error)
	CountMessages(ctx context.Context) (int64, error)
	SetMessagePaid(ctx context.Context, id uuid.UUID, paid bool) error
	GetDashboardStats(ctx context.Context) (*db.DashboardStats, error)
}

// Dispatcher defines the dispatch operations exposed through the API.
type Dispatcher interface {
	ProcessScheduled(ctx context.Context, now time.Time) (int, error)
	SendManual(ctx context.Context, reminderID uuid.UUID, contactIDs []uuid.UUID, now time.Time) (*dispatch.ManualResult, error)
}

// ErrorResponse represents an error in problem+json format
type ErrorResponse struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Handler holds dependencies for API handlers
type Handler struct {
	logger     *zap.Logger
	store      Store
	dispatcher Dispatcher
	gateway    sms.Gateway
	auth       *auth.Service // nil when authentication is disabled
}

// NewHandler creates a new API handler
func NewHandler(logger *zap.Logger, store Store, dispatcher Dispatcher, gateway sms.Gateway, authSvc *auth.Service) *Handler {
	return &Handler{
		logger:     logger,
		store:      store,
		dispatcher: dispatcher,
		gateway:    gateway,
		auth:       authSvc,
	}
}

// Login handles POST /v1/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if h.auth == nil || !h.auth.Enabled() {
		h.writeError(w, http.StatusNotFound, "not_found", "Authentication is not configured", "")
		return
	}

	var req struct {
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}

	token, err := h.auth.Login(req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.writeError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid password", "")
			return
		}
		h.logger.Error("login failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal_error", "Login failed", "")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// VerifyToken handles GET /v1/auth/verify. The UI calls it on load to decide
// whether a stored session is still good.
func (h *Handler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	if h.auth == nil || !h.auth.Enabled() {
		h.writeJSON(w, http.StatusOK, map[string]interface{}{"valid": true, "auth_disabled": true})
		return
	}

	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		h.writeError(w, http.StatusUnauthorized, "invalid_token", "Missing bearer token", "")
		return
	}

	subject, err := h.auth.Verify(token)
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "invalid_token", "Invalid or expired token", "")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"valid": true, "subject": subject})
}

// TriggerDispatch handles POST /v1/dispatch/run. It runs one scheduled
// dispatch pass immediately instead of waiting for the next tick.
func (h *Handler) TriggerDispatch(w http.ResponseWriter, r *http.Request) {
	sent, err := h.dispatcher.ProcessScheduled(r.Context(), time.Now())
	if err != nil {
		h.logger.Error("manual dispatch run failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "dispatch_error", "Dispatch run failed", "")
		return
	}

	h.logger.Info("manual dispatch run completed", zap.Int("sent", sent))

	h.writeJSON(w, http.StatusOK, map[string]int{"sent": sent})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, errType, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Type:   errType,
		Title:  title,
		Status: status,
		Detail: detail,
	})
}
