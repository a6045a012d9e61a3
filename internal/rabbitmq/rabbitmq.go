package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/sebastianDLL/notification-svc/internal/config"
)

// ErrBrokerUnavailable is returned by Connect once the bounded retry budget
// is exhausted. Fatal at startup; the reconnect monitor handles later
// outages on its own.
var ErrBrokerUnavailable = errors.New("broker unavailable")

// maxConnectAttempts bounds the initial connection retries.
const maxConnectAttempts = 5

// Client exclusively owns the AMQP connection and channel. Everything else
// in the service goes through it; nothing else touches the broker.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	config  *config.RabbitMQConfig
	logger  *zap.Logger

	stopChan chan struct{}
	mu       sync.RWMutex

	reconnecting bool
	reconnectMu  sync.Mutex

	// sleep is a seam for tests; time.Sleep in production.
	sleep func(time.Duration)
}

// New creates a Client. Connect must be called before any other method.
func New(cfg *config.RabbitMQConfig, logger *zap.Logger) *Client {
	return &Client{
		config:   cfg,
		logger:   logger,
		stopChan: make(chan struct{}),
		sleep:    time.Sleep,
	}
}

// Connect establishes the connection, retrying up to maxConnectAttempts
// times with exponential backoff. On success it starts a monitor goroutine
// that reconnects automatically when the broker drops the connection.
func (c *Client) Connect() error {
	var lastErr error
	for attempt := 1; attempt <= maxConnectAttempts; attempt++ {
		c.logger.Info("connecting to RabbitMQ",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxConnectAttempts),
		)

		if lastErr = c.dial(); lastErr == nil {
			c.logger.Info("connected to RabbitMQ", zap.Int("attempt", attempt))
			go c.monitorConnection()
			return nil
		}

		if attempt < maxConnectAttempts {
			backoff := connectBackoff(attempt)
			c.logger.Warn("connection to RabbitMQ failed, retrying",
				zap.Error(lastErr),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
			)
			c.sleep(backoff)
		}
	}

	return fmt.Errorf("%w: %d attempts exhausted: %v", ErrBrokerUnavailable, maxConnectAttempts, lastErr)
}

// dial performs one connection attempt, replacing any previous
// connection/channel pair.
func (c *Client) dial() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil && !c.conn.IsClosed() {
		c.conn.Close()
	}
	if c.channel != nil && !c.channel.IsClosed() {
		c.channel.Close()
	}

	// Heartbeat of 10s detects dead connections quickly.
	amqpConfig := amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Vhost:     c.config.VHost,
		Properties: amqp.Table{
			"connection_name": "notification-svc",
		},
	}

	var err error
	c.conn, err = amqp.DialConfig(c.config.ConnectionURL(), amqpConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	c.channel, err = c.conn.Channel()
	if err != nil {
		c.conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	return nil
}

// monitorConnection watches for connection/channel close notifications and
// reconnects until Close is called.
func (c *Client) monitorConnection() {
	for {
		c.mu.RLock()
		if c.conn == nil || c.channel == nil {
			c.mu.RUnlock()
			return
		}
		connClose := c.conn.NotifyClose(make(chan *amqp.Error, 1))
		channelClose := c.channel.NotifyClose(make(chan *amqp.Error, 1))
		c.mu.RUnlock()

		select {
		case <-c.stopChan:
			return
		case err := <-connClose:
			if err != nil {
				c.logger.Error("RabbitMQ connection closed, reconnecting",
					zap.Error(err),
					zap.String("reason", err.Reason),
				)
				c.reconnect()
				continue
			}
			return
		case err := <-channelClose:
			if err != nil {
				c.logger.Error("RabbitMQ channel closed, reconnecting",
					zap.Error(err),
					zap.String("reason", err.Reason),
				)
				c.reconnect()
				continue
			}
			return
		}
	}
}

// reconnect retries without an attempt bound; the queue keeps any pending
// messages until a consumer comes back.
func (c *Client) reconnect() {
	c.reconnectMu.Lock()
	if c.reconnecting {
		c.reconnectMu.Unlock()
		return
	}
	c.reconnecting = true
	c.reconnectMu.Unlock()

	defer func() {
		c.reconnectMu.Lock()
		c.reconnecting = false
		c.reconnectMu.Unlock()
	}()

	backoff := connectBackoffBase
	for attempt := 1; ; attempt++ {
		select {
		case <-c.stopChan:
			return
		default:
		}

		if err := c.dial(); err != nil {
			c.logger.Warn("failed to reconnect to RabbitMQ, retrying",
				zap.Error(err),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
			)
			c.sleep(backoff)
			backoff = nextBackoff(backoff, reconnectBackoffMax)
			continue
		}

		c.logger.Info("reconnected to RabbitMQ", zap.Int("attempt", attempt))
		return
	}
}

// DeclareQueue declares a durable queue. Declaration is idempotent and safe
// to repeat across restarts.
func (c *Client) DeclareQueue(name string) error {
	c.mu.RLock()
	ch := c.channel
	c.mu.RUnlock()

	if ch == nil || ch.IsClosed() {
		return fmt.Errorf("RabbitMQ channel is not initialized or closed")
	}

	_, err := ch.QueueDeclare(
		name,
		true,  // durable: survives broker restarts
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", name, err)
	}

	c.logger.Info("queue declared", zap.String("queue", name))
	return nil
}

// Publish sends a persistent JSON message to the given queue via the default
// exchange. The channel may be briefly unavailable mid-reconnect, so the
// publish is retried a few times before giving up.
func (c *Client) Publish(ctx context.Context, queue string, body []byte) error {
	const maxRetries = 3
	retryDelay := 100 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		c.mu.RLock()
		ch := c.channel
		conn := c.conn
		c.mu.RUnlock()

		if ch == nil || ch.IsClosed() || conn == nil || conn.IsClosed() {
			if attempt < maxRetries-1 {
				c.logger.Warn("channel not available for publish, retrying",
					zap.Int("attempt", attempt+1),
				)
				c.sleep(retryDelay)
				retryDelay *= 2
				continue
			}
			return fmt.Errorf("RabbitMQ channel is not available after %d attempts", maxRetries)
		}

		err := ch.PublishWithContext(ctx,
			"",    // default exchange
			queue, // routing key
			false, // mandatory
			false, // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				Timestamp:    time.Now(),
				Body:         body,
			},
		)
		if err == nil {
			return nil
		}

		if attempt < maxRetries-1 && (ch.IsClosed() || conn.IsClosed()) {
			c.logger.Warn("publish failed due to connection issue, retrying",
				zap.Error(err),
				zap.Int("attempt", attempt+1),
			)
			c.sleep(retryDelay)
			retryDelay *= 2
			continue
		}
		return fmt.Errorf("failed to publish message: %w", err)
	}

	return fmt.Errorf("failed to publish message after %d attempts", maxRetries)
}

// Consume sets the channel prefetch and registers a manual-ack consumer on
// the queue. With prefetch 1 the broker holds message N+1 until message N
// has been acked or nacked, which serializes processing on this connection.
func (c *Client) Consume(queue, consumerTag string, prefetch int) (<-chan amqp.Delivery, error) {
	c.mu.RLock()
	ch := c.channel
	c.mu.RUnlock()

	if ch == nil || ch.IsClosed() {
		return nil, fmt.Errorf("RabbitMQ channel is not initialized or closed")
	}

	if err := ch.Qos(prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	deliveries, err := ch.Consume(
		queue,
		consumerTag,
		false, // autoAck: the worker acks explicitly
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register consumer: %w", err)
	}

	return deliveries, nil
}

// CancelConsumer stops delivery to the given consumer tag. In-flight
// messages keep their delivery handles and can still be acked.
func (c *Client) CancelConsumer(consumerTag string) error {
	c.mu.RLock()
	ch := c.channel
	c.mu.RUnlock()

	if ch == nil || ch.IsClosed() {
		return nil
	}
	return ch.Cancel(consumerTag, false)
}

// IsHealthy reports whether the connection and channel are both open.
func (c *Client) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && !c.conn.IsClosed() && c.channel != nil && !c.channel.IsClosed()
}

// Close stops the reconnect monitor and closes the channel and connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.stopChan:
	default:
		close(c.stopChan)
	}

	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
		c.logger.Info("RabbitMQ connection closed")
	}
}
