// Package worker drives the queue-to-notification pipeline: it consumes
// appointment events, validates and renders them, hands the resulting emails
// to the mailer and settles every queue message with exactly one ack or
// nack.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/sebastianDLL/notification-svc/internal/config"
	"github.com/sebastianDLL/notification-svc/internal/event"
	"github.com/sebastianDLL/notification-svc/internal/mailer"
	"github.com/sebastianDLL/notification-svc/internal/models"
	"github.com/sebastianDLL/notification-svc/internal/rabbitmq"
	"github.com/sebastianDLL/notification-svc/internal/renderer"
)

// Outbox records notification emails whose send failed. Optional: a nil
// Outbox degrades to log-only handling of delivery failures.
type Outbox interface {
	Record(ctx context.Context, fd *models.FailedDelivery) error
}

// Worker owns the per-message processing outcome. It never owns the broker
// connection; that stays with the rabbitmq client.
type Worker struct {
	cfg         *config.WorkerConfig
	conn        *rabbitmq.Client
	mailer      mailer.Mailer
	outbox      Outbox
	logger      *zap.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	consumerTag string
}

func New(cfg *config.WorkerConfig, conn *rabbitmq.Client, m mailer.Mailer, outbox Outbox, logger *zap.Logger) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		cfg:         cfg,
		conn:        conn,
		mailer:      m,
		outbox:      outbox,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
		consumerTag: fmt.Sprintf("notification-worker-%d", time.Now().Unix()),
	}
}

// Start registers the consumer and begins processing in the background.
// Prefetch 1 means the broker withholds the next message until the current
// one is settled, so processing is strictly sequential on this connection.
func (w *Worker) Start() error {
	if w.cfg.Queue == "" {
		return fmt.Errorf("notification queue is required")
	}

	if err := w.startConsuming(); err != nil {
		return err
	}

	w.logger.Info("worker started",
		zap.String("queue", w.cfg.Queue),
		zap.String("consumer_tag", w.consumerTag),
		zap.Int("prefetch", w.cfg.Prefetch),
	)
	return nil
}

func (w *Worker) startConsuming() error {
	deliveries, err := w.conn.Consume(w.cfg.Queue, w.consumerTag, w.cfg.Prefetch)
	if err != nil {
		return fmt.Errorf("failed to start consuming from queue %s: %w", w.cfg.Queue, err)
	}

	go w.processMessages(deliveries)
	return nil
}

// Stop cancels the consumer so no new deliveries arrive, then signals the
// processing loop to exit. A message already being handled finishes its
// ack/nack before the loop observes the cancellation.
func (w *Worker) Stop() error {
	w.logger.Info("stopping worker", zap.String("consumer_tag", w.consumerTag))

	if err := w.conn.CancelConsumer(w.consumerTag); err != nil {
		w.logger.Error("failed to cancel consumer",
			zap.String("consumer_tag", w.consumerTag),
			zap.Error(err),
		)
	}
	w.cancel()

	w.logger.Info("worker stopped")
	return nil
}

func (w *Worker) processMessages(deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-w.ctx.Done():
			w.logger.Info("worker context cancelled, stopping message processing")
			return
		case msg, ok := <-deliveries:
			if !ok {
				w.restartConsuming()
				return
			}
			w.handleMessage(msg)
		}
	}
}

// restartConsuming re-registers the consumer after the delivery channel
// closes (connection loss). It waits for the client's reconnect monitor to
// restore the channel, retrying until it succeeds or the worker context is
// cancelled. Cancellation is the only shutdown signal; the loop holds no
// state shared with Stop.
func (w *Worker) restartConsuming() {
	w.logger.Warn("delivery channel closed, attempting to restart consumer",
		zap.String("queue", w.cfg.Queue),
	)

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}

		if !w.conn.IsHealthy() {
			w.logger.Debug("connection not healthy yet, waiting",
				zap.String("queue", w.cfg.Queue),
			)
			continue
		}

		if err := w.startConsuming(); err != nil {
			w.logger.Error("failed to restart consuming, will retry",
				zap.String("queue", w.cfg.Queue),
				zap.Error(err),
			)
			continue
		}

		w.logger.Info("consumer restarted after channel close",
			zap.String("queue", w.cfg.Queue),
		)
		return
	}
}

// handleMessage runs one message through parse → render → deliver and
// settles it with exactly one ack or nack. Only a validation failure nacks:
// a malformed payload is a poison message and requeueing it would loop
// forever. Mail failures are per-recipient, logged and recorded, and never
// fail the message.
func (w *Worker) handleMessage(msg amqp.Delivery) {
	correlationID := uuid.NewString()
	log := w.logger.With(
		zap.String("correlation_id", correlationID),
		zap.Uint64("delivery_tag", msg.DeliveryTag),
	)
	log.Info("received message", zap.String("queue", w.cfg.Queue))

	ev, err := event.Parse(msg.Body)
	if err != nil {
		var vErr *event.ValidationError
		if errors.As(err, &vErr) {
			log.Error("rejecting malformed message",
				zap.String("field", vErr.Field),
				zap.Error(err),
			)
		} else {
			log.Error("rejecting unparseable message", zap.Error(err))
		}
		w.nack(msg, log)
		return
	}

	if ev.Kind == event.KindUnknown {
		log.Warn("unknown notification type",
			zap.String("type", ev.RawKind),
			zap.String("reservation_id", ev.ReservationID),
		)
		w.ack(msg, log)
		return
	}

	deliveries := renderer.Render(ev)
	failed := 0
	for _, d := range deliveries {
		if err := w.deliver(d, ev, log); err != nil {
			failed++
		}
	}

	log.Info("notifications processed",
		zap.String("type", ev.Kind.String()),
		zap.String("reservation_id", ev.ReservationID),
		zap.Int("deliveries", len(deliveries)),
		zap.Int("failed", failed),
	)
	w.ack(msg, log)
}

// deliver attempts one email send with a bounded timeout so a stalled SMTP
// round-trip cannot block the sequential consume loop. The timeout is not
// derived from the worker context: shutdown lets the in-flight message
// finish its deliveries and reach its ack.
func (w *Worker) deliver(d renderer.Delivery, ev event.NotificationEvent, log *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.SendTimeout)
	defer cancel()

	attemptedAt := time.Now().UTC()
	err := w.mailer.Send(ctx, d.Recipient, d.Subject, d.Body)
	if err == nil {
		return nil
	}

	log.Error("failed to deliver notification",
		zap.String("recipient", d.Recipient),
		zap.String("reservation_id", ev.ReservationID),
		zap.Error(err),
	)

	if w.outbox != nil {
		fd := &models.FailedDelivery{
			ID:            uuid.New(),
			ReservationID: ev.ReservationID,
			Recipient:     d.Recipient,
			Subject:       d.Subject,
			Body:          d.Body,
			Reason:        err.Error(),
			AttemptedAt:   attemptedAt,
		}
		if recErr := w.outbox.Record(context.Background(), fd); recErr != nil {
			log.Error("failed to record failed delivery",
				zap.String("recipient", d.Recipient),
				zap.Error(recErr),
			)
		}
	}
	return err
}

func (w *Worker) ack(msg amqp.Delivery, log *zap.Logger) {
	if err := msg.Ack(false); err != nil {
		log.Error("failed to ack message", zap.Error(err))
	}
}

func (w *Worker) nack(msg amqp.Delivery, log *zap.Logger) {
	// requeue=false: the broker discards (or dead-letters) the message.
	if err := msg.Nack(false, false); err != nil {
		log.Error("failed to nack message", zap.Error(err))
	}
}
