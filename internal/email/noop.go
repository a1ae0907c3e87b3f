package email

import (
	"context"

	"go.uber.org/zap"
)

// NoopSender logs report notifications instead of delivering them. It stands
// in for SMTP in development and in deployments without a configured relay.
type NoopSender struct {
	logger *zap.Logger
}

// NewNoopSender creates a NoopSender backed by the given logger.
func NewNoopSender(logger *zap.Logger) *NoopSender {
	return &NoopSender{logger: logger}
}

// Send records the would-be notification and reports success, so report
// transitions never stall on mail delivery.
func (n *NoopSender) Send(_ context.Context, to, subject, body string) error {
	n.logger.Info("report notification suppressed, no SMTP relay configured",
		zap.String("recipient", to),
		zap.String("subject", subject),
		zap.Int("body_bytes", len(body)),
	)
	return nil
}
