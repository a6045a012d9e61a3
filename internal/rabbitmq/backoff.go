package rabbitmq

import "time"

const (
	connectBackoffBase = time.Second
	connectBackoffMax  = 16 * time.Second

	reconnectBackoffMax = 30 * time.Second
)

// connectBackoff returns the delay before the given 1-indexed connection
// attempt is retried: 1s, 2s, 4s, 8s, 16s, then capped.
func connectBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := connectBackoffBase << (attempt - 1)
	if d > connectBackoffMax || d <= 0 {
		return connectBackoffMax
	}
	return d
}

// nextBackoff doubles d up to max. Used by the reconnect monitor, which
// retries without an attempt bound.
func nextBackoff(d, max time.Duration) time.Duration {
	d *= 2
	if d > max {
		return max
	}
	return d
}
