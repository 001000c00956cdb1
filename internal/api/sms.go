package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/remindbot/remindbot/internal/circuitbreaker"
)

// TestSMS handles POST /v1/sms/test. It sends a raw message through the
// configured gateway without touching the delivery log.
func (h *Handler) TestSMS(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone   string `json:"phone"`
		Message string `json:"message"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}

	if req.Phone == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing phone", "phone is required")
		return
	}
	if req.Message == "" {
		req.Message = "Test message from RemindBot"
	}

	result := h.gateway.Send(r.Context(), req.Phone, req.Message)

	h.logger.Info("test sms sent",
		zap.String("provider", h.gateway.Name()),
		zap.Bool("success", result.Success),
	)

	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadGateway
	}
	h.writeJSON(w, status, result)
}

// SMSStatus handles GET /v1/sms/status
func (h *Handler) SMSStatus(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"provider":   h.gateway.Name(),
		"configured": true,
	}

	if g, ok := h.gateway.(interface{ Configured() bool }); ok {
		body["configured"] = g.Configured()
	}
	if g, ok := h.gateway.(interface{ Stats() circuitbreaker.Stats }); ok {
		body["circuit_breaker"] = g.Stats()
	}

	h.writeJSON(w, http.StatusOK, body)
}
