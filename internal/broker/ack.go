package broker

import amqp "github.com/rabbitmq/amqp091-go"

// Ack acknowledges a single delivery.
func Ack(d amqp.Delivery) error {
	return d.Ack(false)
}

// NackRequeue rejects a delivery and puts it back on the queue, used when
// a worker's handoff queue is busy so another worker can take the job.
func NackRequeue(d amqp.Delivery) error {
	return d.Nack(false, true)
}

// NackDiscard rejects a delivery without requeueing it, used when the
// payload itself is unusable and retrying would only fail the same way.
func NackDiscard(d amqp.Delivery) error {
	return d.Nack(false, false)
}
