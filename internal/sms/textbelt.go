package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// TextbeltConfig holds Textbelt provider settings.
type TextbeltConfig struct {
	APIKey  string
	BaseURL string        // defaults to https://textbelt.com
	Timeout time.Duration // defaults to 15s
}

// TextbeltGateway sends SMS through the Textbelt HTTP API.
type TextbeltGateway struct {
	client *http.Client
	config TextbeltConfig
	logger *zap.Logger
}

// NewTextbeltGateway creates a Textbelt-backed gateway.
func NewTextbeltGateway(cfg TextbeltConfig, logger *zap.Logger) *TextbeltGateway {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://textbelt.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}

	return &TextbeltGateway{
		client: &http.Client{Timeout: cfg.Timeout},
		config: cfg,
		logger: logger,
	}
}

// textbeltResponse mirrors the provider's JSON body.
type textbeltResponse struct {
	Success        bool        `json:"success"`
	TextID         json.Number `json:"textId"`
	QuotaRemaining int         `json:"quotaRemaining"`
	Error          string      `json:"error"`
}

// Send posts one message. Transport and provider failures both come back as
// Result with Success=false; Send never returns a Go error.
func (g *TextbeltGateway) Send(ctx context.Context, phone, text string) Result {
	form := url.Values{
		"phone":   {phone},
		"message": {text},
		"key":     {g.config.APIKey},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.config.BaseURL+"/text", strings.NewReader(form.Encode()))
	if err != nil {
		return Result{Error: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Warn("textbelt request failed", zap.Error(err))
		return Result{Error: err.Error()}
	}
	defer resp.Body.Close()

	var body textbeltResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Result{Error: fmt.Sprintf("decode textbelt response: %v", err)}
	}

	if !body.Success {
		errText := body.Error
		if errText == "" {
			errText = fmt.Sprintf("textbelt returned status %d", resp.StatusCode)
		}
		g.logger.Warn("textbelt send rejected",
			zap.String("phone", phone),
			zap.String("error", errText),
		)
		return Result{Error: errText, QuotaRemaining: body.QuotaRemaining}
	}

	g.logger.Info("sms sent via textbelt",
		zap.String("phone", phone),
		zap.String("text_id", body.TextID.String()),
		zap.Int("quota_remaining", body.QuotaRemaining),
	)

	return Result{
		Success:        true,
		MessageID:      body.TextID.String(),
		QuotaRemaining: body.QuotaRemaining,
	}
}

// Name identifies the provider.
func (g *TextbeltGateway) Name() string {
	return "textbelt"
}

// Configured reports whether an API key is present.
func (g *TextbeltGateway) Configured() bool {
	return g.config.APIKey != ""
}
