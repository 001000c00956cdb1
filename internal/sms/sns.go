package sms

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"go.uber.org/zap"
)

// SNSConfig holds AWS SNS provider settings.
type SNSConfig struct {
	Region string
}

// SNSGateway sends SMS via AWS SNS direct publish.
type SNSGateway struct {
	client *sns.Client
	logger *zap.Logger
}

// NewSNSGateway creates an SNS-backed gateway.
func NewSNSGateway(ctx context.Context, cfg SNSConfig, logger *zap.Logger) (*SNSGateway, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load default AWS config for SNS: %w", err)
	}

	return &SNSGateway{
		client: sns.NewFromConfig(awsCfg),
		logger: logger,
	}, nil
}

// Send publishes one SMS. SNS errors surface through Result, never as a Go
// error, so a rejected number doesn't abort a dispatch run.
func (g *SNSGateway) Send(ctx context.Context, phone, text string) Result {
	out, err := g.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(phone),
		Message:     aws.String(text),
	})
	if err != nil {
		g.logger.Warn("sns publish failed",
			zap.String("phone", phone),
			zap.Error(err),
		)
		return Result{Error: err.Error()}
	}

	id := aws.ToString(out.MessageId)

	g.logger.Info("sms sent via sns",
		zap.String("phone", phone),
		zap.String("message_id", id),
	)

	return Result{Success: true, MessageID: id}
}

// Name identifies the provider.
func (g *SNSGateway) Name() string {
	return "sns"
}
