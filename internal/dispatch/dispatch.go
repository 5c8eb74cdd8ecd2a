// Package dispatch queues EnricherJob and IPDBInfo payloads in memory and
// drains them onto the broker on a 1-second timer, mirroring the original
// project's DispatcherThread/PUBLISH_INTERVAL pattern. Dispatch appends to
// a bounded channel-backed queue (capacity 4096) and blocks the caller
// while that queue is full — the queue retains messages across a broker
// reconnect rather than dropping them, so sustained backpressure is the
// one case it propagates to callers.
package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/richtraceroute/enrichmentd/internal/broker"
	"github.com/richtraceroute/enrichmentd/internal/ipinfo"
)

const publishInterval = 1 * time.Second

// JobsDispatcher publishes EnricherJob payloads onto EnrichmentJobsQueue.
type JobsDispatcher struct {
	queue  chan ipinfo.EnricherJob
	ch     *broker.JobsChannel
	logger *zap.Logger
}

// NewJobsDispatcher opens a jobs channel and starts the publish loop.
func NewJobsDispatcher(ctx context.Context, conn *broker.Connection, logger *zap.Logger) (*JobsDispatcher, error) {
	ch, err := broker.OpenJobsChannel(conn, logger.Named("broker.jobs"))
	if err != nil {
		return nil, err
	}
	d := &JobsDispatcher{
		queue:  make(chan ipinfo.EnricherJob, 4096),
		ch:     ch,
		logger: logger,
	}
	go d.run(ctx)
	return d, nil
}

// Dispatch enqueues a job for publishing. It does not wait on the broker
// itself, but blocks if the outbound queue is already full.
func (d *JobsDispatcher) Dispatch(job ipinfo.EnricherJob) {
	d.queue <- job
}

func (d *JobsDispatcher) run(ctx context.Context) {
	ticker := time.NewTicker(publishInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.drain()
		}
	}
}

// drain publishes every job currently queued, matching the original's
// drain-the-queue-then-reschedule behavior rather than one message per
// tick. A publish failure (e.g. the broker is mid-reconnect) puts the job
// back onto the queue instead of discarding it, so the outbound queue
// retains messages until the channel is back up; draining then stops for
// this tick rather than retrying in a hot loop.
func (d *JobsDispatcher) drain() {
	for {
		select {
		case job := <-d.queue:
			body, err := json.Marshal(job)
			if err != nil {
				d.logger.Error("marshal enrichment job", zap.Error(err))
				continue
			}
			if err := d.ch.Publish(body); err != nil {
				d.logger.Warn("publish enrichment job failed, will retry", zap.Error(err))
				d.requeue(job)
				return
			}
		default:
			return
		}
	}
}

// requeue puts a job back onto the outbound queue. If the queue is full,
// the oldest pending job is dropped to make room rather than blocking the
// publish loop.
func (d *JobsDispatcher) requeue(job ipinfo.EnricherJob) {
	select {
	case d.queue <- job:
	default:
		select {
		case <-d.queue:
		default:
		}
		d.queue <- job
	}
}

// IPInfoDispatcher publishes IPDBInfo updates onto IPInfoFanoutExchange.
type IPInfoDispatcher struct {
	queue  chan ipinfo.IPDBInfo
	ch     *broker.IPInfoChannel
	logger *zap.Logger
}

// NewIPInfoDispatcher opens an IP-info channel and starts the publish loop.
func NewIPInfoDispatcher(ctx context.Context, conn *broker.Connection, logger *zap.Logger) (*IPInfoDispatcher, error) {
	ch, err := broker.OpenIPInfoChannel(conn, logger.Named("broker.ipinfo"))
	if err != nil {
		return nil, err
	}
	d := &IPInfoDispatcher{
		queue:  make(chan ipinfo.IPDBInfo, 4096),
		ch:     ch,
		logger: logger,
	}
	go d.run(ctx)
	return d, nil
}

// Dispatch enqueues an IP-info fact for fan-out publishing.
func (d *IPInfoDispatcher) Dispatch(info ipinfo.IPDBInfo) {
	d.queue <- info
}

func (d *IPInfoDispatcher) run(ctx context.Context) {
	ticker := time.NewTicker(publishInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.drain()
		}
	}
}

// drain publishes every queued IP-info fact; a publish failure requeues it
// and stops this tick's drain, the same retry discipline as JobsDispatcher.
func (d *IPInfoDispatcher) drain() {
	for {
		select {
		case info := <-d.queue:
			body, err := json.Marshal(info)
			if err != nil {
				d.logger.Error("marshal ip info", zap.Error(err))
				continue
			}
			if err := d.ch.Publish(body); err != nil {
				d.logger.Warn("publish ip info failed, will retry", zap.Error(err))
				d.requeue(info)
				return
			}
		default:
			return
		}
	}
}

// requeue puts an IP-info fact back onto the outbound queue. If the queue
// is full, the oldest pending fact is dropped to make room rather than
// blocking the publish loop.
func (d *IPInfoDispatcher) requeue(info ipinfo.IPDBInfo) {
	select {
	case d.queue <- info:
	default:
		select {
		case <-d.queue:
		default:
		}
		d.queue <- info
	}
}
