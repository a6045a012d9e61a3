// Package service is the composition root for the notification pipeline: it
// owns the startup order (queue declared before consuming begins) and the
// shutdown order (consumer drained before the connection closes).
package service

import (
	"go.uber.org/zap"

	"github.com/sebastianDLL/notification-svc/internal/config"
	"github.com/sebastianDLL/notification-svc/internal/rabbitmq"
	"github.com/sebastianDLL/notification-svc/internal/worker"
)

type Service struct {
	cfg    *config.Config
	logger *zap.Logger
	rmq    *rabbitmq.Client
	worker *worker.Worker
}

func New(cfg *config.Config, logger *zap.Logger, rmq *rabbitmq.Client, w *worker.Worker) *Service {
	return &Service{
		cfg:    cfg,
		logger: logger,
		rmq:    rmq,
		worker: w,
	}
}

// Start ensures the queue exists, then begins consuming in the background.
// It returns as soon as the consumer is registered so the HTTP host can
// report readiness without waiting on message processing.
func (s *Service) Start() error {
	if err := s.rmq.DeclareQueue(s.cfg.Worker.Queue); err != nil {
		return err
	}
	if err := s.worker.Start(); err != nil {
		return err
	}
	s.logger.Info("notification service started",
		zap.String("queue", s.cfg.Worker.Queue),
	)
	return nil
}

// Stop drains the worker (the in-flight message finishes its ack/nack) and
// then closes the broker connection.
func (s *Service) Stop() {
	if err := s.worker.Stop(); err != nil {
		s.logger.Error("error stopping worker", zap.Error(err))
	}
	s.rmq.Close()
	s.logger.Info("notification service stopped")
}
