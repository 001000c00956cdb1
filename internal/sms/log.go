package sms

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LogGateway is a no-op gateway that logs messages instead of sending them
// (for development and testing).
type LogGateway struct {
	logger *zap.Logger
}

// NewLogGateway creates a logging gateway.
func NewLogGateway(logger *zap.Logger) *LogGateway {
	return &LogGateway{logger: logger}
}

// Send logs the message and reports success with a generated message id.
func (g *LogGateway) Send(ctx context.Context, phone, text string) Result {
	g.logger.Info("sms logged (development mode)",
		zap.String("phone", phone),
		zap.String("text", text),
	)

	return Result{Success: true, MessageID: uuid.NewString()}
}

// Name identifies the provider.
func (g *LogGateway) Name() string {
	return "log"
}
