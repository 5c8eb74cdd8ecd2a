package broker

import (
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/richtraceroute/enrichmentd/internal/errs"
)

// JobsChannel declares and owns the enrichment jobs queue: a non-durable
// work queue, one unacked message in flight per consumer, matching the
// original project's EnrichmentJobsChannel profile. On a broker reconnect
// it redeclares the queue and, if a consumer is active, resubscribes onto
// the new underlying amqp091 channel so callers never see their delivery
// stream go silently dead.
type JobsChannel struct {
	conn   *Connection
	logger *zap.Logger

	mu sync.RWMutex
	ch *amqp.Channel

	consumerTag string
	out         chan amqp.Delivery
}

// OpenJobsChannel declares EnrichmentJobsQueue and sets prefetch to 1 so a
// worker never holds more than one outstanding job.
func OpenJobsChannel(conn *Connection, logger *zap.Logger) (*JobsChannel, error) {
	j := &JobsChannel{conn: conn, logger: logger}
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := j.declare(ch); err != nil {
		return nil, err
	}
	j.ch = ch
	conn.OnReconnect(j.rebuild)
	return j, nil
}

func (j *JobsChannel) declare(ch *amqp.Channel) error {
	if _, err := ch.QueueDeclare(EnrichmentJobsQueue, false, false, false, false, nil); err != nil {
		return errs.NewBrokerError("declare jobs queue", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return errs.NewBrokerError("qos jobs channel", err)
	}
	return nil
}

// rebuild opens a fresh channel on the (now reconnected) connection,
// redeclares the queue, and resumes consuming if a consumer was active.
func (j *JobsChannel) rebuild() {
	ch, err := j.conn.Channel()
	if err != nil {
		j.logger.Error("rebuild jobs channel: open channel", zap.Error(err))
		return
	}
	if err := j.declare(ch); err != nil {
		j.logger.Error("rebuild jobs channel: declare", zap.Error(err))
		return
	}

	j.mu.Lock()
	j.ch = ch
	consumerTag := j.consumerTag
	j.mu.Unlock()

	if consumerTag != "" {
		j.subscribe(ch, consumerTag)
	}
}

// Publish enqueues a job payload with the jobs TTL so a stale job is
// dropped rather than processed long after nobody is waiting on it.
func (j *JobsChannel) Publish(body []byte) error {
	j.mu.RLock()
	ch := j.ch
	j.mu.RUnlock()
	return ch.Publish("", EnrichmentJobsQueue, false, false, amqp.Publishing{
		ContentType: "application/json",
		Expiration:  EnrichmentJobTTLMillis,
		Body:        body,
	})
}

// Consume returns a delivery stream that survives broker reconnects: the
// channel owner resubscribes under the hood each time the underlying
// amqp091 channel is rebuilt. Callers are responsible for Ack/Nack on each
// delivery.
func (j *JobsChannel) Consume(consumerTag string) (<-chan amqp.Delivery, error) {
	j.mu.Lock()
	j.consumerTag = consumerTag
	j.out = make(chan amqp.Delivery, 1)
	ch := j.ch
	j.mu.Unlock()

	if err := j.subscribeOrErr(ch, consumerTag); err != nil {
		return nil, err
	}
	return j.out, nil
}

func (j *JobsChannel) subscribeOrErr(ch *amqp.Channel, consumerTag string) error {
	deliveries, err := ch.Consume(EnrichmentJobsQueue, consumerTag, false, false, false, false, nil)
	if err != nil {
		return errs.NewBrokerError("consume jobs queue", err)
	}
	go j.forward(deliveries)
	return nil
}

func (j *JobsChannel) subscribe(ch *amqp.Channel, consumerTag string) {
	if err := j.subscribeOrErr(ch, consumerTag); err != nil {
		j.logger.Error("resubscribe jobs queue", zap.Error(err))
	}
}

func (j *JobsChannel) forward(deliveries <-chan amqp.Delivery) {
	j.mu.RLock()
	out := j.out
	j.mu.RUnlock()
	for d := range deliveries {
		out <- d
	}
}

// Close closes the underlying channel.
func (j *JobsChannel) Close() error {
	j.mu.RLock()
	ch := j.ch
	j.mu.RUnlock()
	return ch.Close()
}

// IPInfoChannel mirrors IPDBInfoChannel: a fanout exchange with a
// server-named exclusive queue per consumer, so every resident Enricher
// sees every IP-info update regardless of which worker triggered the
// lookup. Prefetch of 10 lets a worker absorb a burst of fanned-out
// updates without serializing them one at a time. Like JobsChannel, it
// redeclares and resubscribes on reconnect.
type IPInfoChannel struct {
	conn   *Connection
	logger *zap.Logger

	mu        sync.RWMutex
	ch        *amqp.Channel
	queueName string

	consumerTag string
	out         chan amqp.Delivery
}

// OpenIPInfoChannel declares IPInfoFanoutExchange and binds a fresh
// exclusive queue to it.
func OpenIPInfoChannel(conn *Connection, logger *zap.Logger) (*IPInfoChannel, error) {
	i := &IPInfoChannel{conn: conn, logger: logger}
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	queueName, err := i.declare(ch)
	if err != nil {
		return nil, err
	}
	i.ch = ch
	i.queueName = queueName
	conn.OnReconnect(i.rebuild)
	return i, nil
}

func (i *IPInfoChannel) declare(ch *amqp.Channel) (string, error) {
	if err := ch.ExchangeDeclare(IPInfoFanoutExchange, "fanout", false, false, false, false, nil); err != nil {
		return "", errs.NewBrokerError("declare ip info exchange", err)
	}
	if err := ch.Qos(10, 0, false); err != nil {
		return "", errs.NewBrokerError("qos ip info channel", err)
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return "", errs.NewBrokerError("declare ip info queue", err)
	}
	if err := ch.QueueBind(q.Name, "", IPInfoFanoutExchange, false, nil); err != nil {
		return "", errs.NewBrokerError("bind ip info queue", err)
	}
	return q.Name, nil
}

func (i *IPInfoChannel) rebuild() {
	ch, err := i.conn.Channel()
	if err != nil {
		i.logger.Error("rebuild ip info channel: open channel", zap.Error(err))
		return
	}
	queueName, err := i.declare(ch)
	if err != nil {
		i.logger.Error("rebuild ip info channel: declare", zap.Error(err))
		return
	}

	i.mu.Lock()
	i.ch = ch
	i.queueName = queueName
	consumerTag := i.consumerTag
	i.mu.Unlock()

	if consumerTag != "" {
		i.subscribe(ch, queueName, consumerTag)
	}
}

// Publish broadcasts an IP-info update to every bound consumer.
func (i *IPInfoChannel) Publish(body []byte) error {
	i.mu.RLock()
	ch := i.ch
	i.mu.RUnlock()
	return ch.Publish(IPInfoFanoutExchange, "", false, false, amqp.Publishing{
		ContentType: "application/json",
		Expiration:  IPInfoTTLMillis,
		Body:        body,
	})
}

// Consume returns this channel's exclusive queue's delivery stream,
// resubscribing automatically after a reconnect rebinds the queue.
func (i *IPInfoChannel) Consume(consumerTag string) (<-chan amqp.Delivery, error) {
	i.mu.Lock()
	i.consumerTag = consumerTag
	i.out = make(chan amqp.Delivery, 1)
	ch, queueName := i.ch, i.queueName
	i.mu.Unlock()

	if err := i.subscribeOrErr(ch, queueName, consumerTag); err != nil {
		return nil, err
	}
	return i.out, nil
}

func (i *IPInfoChannel) subscribeOrErr(ch *amqp.Channel, queueName, consumerTag string) error {
	deliveries, err := ch.Consume(queueName, consumerTag, true, true, false, false, nil)
	if err != nil {
		return errs.NewBrokerError("consume ip info queue", err)
	}
	go i.forward(deliveries)
	return nil
}

func (i *IPInfoChannel) subscribe(ch *amqp.Channel, queueName, consumerTag string) {
	if err := i.subscribeOrErr(ch, queueName, consumerTag); err != nil {
		i.logger.Error("resubscribe ip info queue", zap.Error(err))
	}
}

func (i *IPInfoChannel) forward(deliveries <-chan amqp.Delivery) {
	i.mu.RLock()
	out := i.out
	i.mu.RUnlock()
	for d := range deliveries {
		out <- d
	}
}

// Close closes the underlying channel.
func (i *IPInfoChannel) Close() error {
	i.mu.RLock()
	ch := i.ch
	i.mu.RUnlock()
	return ch.Close()
}

// NotifyChannel declares the topic exchange client-facing notification
// consumers bind to, routed per traceroute ID. It redeclares the exchange
// on reconnect; publishers pick up the rebuilt channel on their next call.
type NotifyChannel struct {
	conn   *Connection
	logger *zap.Logger

	mu sync.RWMutex
	ch *amqp.Channel
}

// OpenNotifyChannel declares NotificationExchange as a topic exchange.
func OpenNotifyChannel(conn *Connection, logger *zap.Logger) (*NotifyChannel, error) {
	n := &NotifyChannel{conn: conn, logger: logger}
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := n.declare(ch); err != nil {
		return nil, err
	}
	n.ch = ch
	conn.OnReconnect(n.rebuild)
	return n, nil
}

func (n *NotifyChannel) declare(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(NotificationExchange, "topic", false, false, false, false, nil); err != nil {
		return errs.NewBrokerError("declare notification exchange", err)
	}
	return nil
}

func (n *NotifyChannel) rebuild() {
	ch, err := n.conn.Channel()
	if err != nil {
		n.logger.Error("rebuild notify channel: open channel", zap.Error(err))
		return
	}
	if err := n.declare(ch); err != nil {
		n.logger.Error("rebuild notify channel: declare", zap.Error(err))
		return
	}
	n.mu.Lock()
	n.ch = ch
	n.mu.Unlock()
}

// Publish emits an event under routing key "t.<tracerouteID>".
func (n *NotifyChannel) Publish(routingKey string, body []byte) error {
	n.mu.RLock()
	ch := n.ch
	n.mu.RUnlock()
	return ch.Publish(NotificationExchange, routingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
}

// Close closes the underlying channel.
func (n *NotifyChannel) Close() error {
	n.mu.RLock()
	ch := n.ch
	n.mu.RUnlock()
	return ch.Close()
}
