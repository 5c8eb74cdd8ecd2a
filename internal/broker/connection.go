package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/richtraceroute/enrichmentd/internal/errs"
	"github.com/richtraceroute/enrichmentd/internal/metrics"
)

// Connection is a reconnecting wrapper around an amqp091 connection. On an
// unexpected close it redials with a backoff of min(attempt, 30) seconds,
// matching the original project's Reconnector delay schedule.
type Connection struct {
	url    string
	logger *zap.Logger

	mu   sync.RWMutex
	conn *amqp.Connection

	closing bool

	reconnectMu  sync.Mutex
	reconnectCbs []func()
}

// OnReconnect registers fn to run after every successful redial, so
// channel owners can redeclare their queues/exchanges and consumers can
// resubscribe on the new connection. fn runs synchronously on the
// watcher goroutine; it should not block.
func (c *Connection) OnReconnect(fn func()) {
	c.reconnectMu.Lock()
	c.reconnectCbs = append(c.reconnectCbs, fn)
	c.reconnectMu.Unlock()
}

func (c *Connection) fireReconnectCbs() {
	c.reconnectMu.Lock()
	cbs := make([]func(), len(c.reconnectCbs))
	copy(cbs, c.reconnectCbs)
	c.reconnectMu.Unlock()

	for _, cb := range cbs {
		cb()
	}
}

// Dial opens the initial connection and starts the background watcher
// that redials on an unexpected close. The caller owns the returned
// Connection's lifetime and must call Close when done.
func Dial(ctx context.Context, url string, logger *zap.Logger) (*Connection, error) {
	c := &Connection{url: url, logger: logger}
	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	go c.watch()
	return c, nil
}

func (c *Connection) connect(ctx context.Context) error {
	conn, err := amqp.DialConfig(c.url, amqp.Config{})
	if err != nil {
		return errs.NewBrokerError("dial", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	return nil
}

// watch blocks on the connection's close notification and redials with
// a backoff of min(attempt, 30) seconds until it succeeds or Close is called.
func (c *Connection) watch() {
	for {
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn == nil {
			return
		}

		closeErr := <-conn.NotifyClose(make(chan *amqp.Error, 1))

		c.mu.RLock()
		closing := c.closing
		c.mu.RUnlock()
		if closing {
			return
		}

		c.logger.Warn("broker connection closed, reconnecting", zap.Error(closeErr))
		metrics.BrokerReconnectsTotal.WithLabelValues("connection_closed").Inc()

		attempt := 0
		for {
			attempt++
			delay := time.Duration(attempt) * time.Second
			if delay > 30*time.Second {
				delay = 30 * time.Second
			}
			time.Sleep(delay)

			if err := c.connect(context.Background()); err != nil {
				c.logger.Warn("reconnect attempt failed", zap.Int("attempt", attempt), zap.Error(err))
				continue
			}
			c.logger.Info("broker connection re-established", zap.Int("attempts", attempt))
			c.fireReconnectCbs()
			break
		}
	}
}

// IsConnected reports whether the current underlying connection is open.
func (c *Connection) IsConnected() bool {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	return conn != nil && !conn.IsClosed()
}

// Channel opens a new underlying amqp091 channel on the current
// connection.
func (c *Connection) Channel() (*amqp.Channel, error) {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return nil, errs.NewBrokerError("channel", fmt.Errorf("connection not established"))
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, errs.NewBrokerError("channel", err)
	}
	return ch, nil
}

// Close marks the connection as intentionally closing (suppressing the
// reconnect loop) and closes the underlying connection.
func (c *Connection) Close() error {
	c.mu.Lock()
	c.closing = true
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}
