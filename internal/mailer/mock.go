package mailer

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// mockLatency models a real SMTP round-trip so load and timeout behavior can
// be exercised without a mail server.
const mockLatency = 500 * time.Millisecond

// Mock logs the message instead of delivering it. It never fails.
type Mock struct {
	logger  *zap.Logger
	latency time.Duration
}

func NewMock(logger *zap.Logger) *Mock {
	return &Mock{logger: logger, latency: mockLatency}
}

func (m *Mock) Send(ctx context.Context, recipient, subject, body string) error {
	timer := time.NewTimer(m.latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	m.logger.Info("mock email sent",
		zap.String("to", recipient),
		zap.String("subject", subject),
		zap.String("body", body),
	)
	return nil
}
