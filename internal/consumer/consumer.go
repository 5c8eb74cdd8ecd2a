// Package consumer implements the worker-side half of the broker: one
// Worker owns a small pool of enrich.Enrichers sharing a capacity-1
// handoff queue, consuming EnrichmentJobsQueue and relaying
// IPInfoFanoutExchange updates to every resident enricher's trie.
package consumer

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/richtraceroute/enrichmentd/internal/broker"
	"github.com/richtraceroute/enrichmentd/internal/enrich"
	"github.com/richtraceroute/enrichmentd/internal/ipinfo"
	"github.com/richtraceroute/enrichmentd/internal/metrics"
)

// Worker consumes jobs and IP-info fanout for one set of enrichers. The
// handoff queue has capacity 1: a consumer only accepts a new job once
// its enrichers have drained the previous one, matching the original
// project's qsize()==0 admission check.
type Worker struct {
	name      string
	jobsCh    *broker.JobsChannel
	ipInfoCh  *broker.IPInfoChannel
	enrichers []*enrich.Enricher
	jobQueue  chan ipinfo.EnricherJob
	logger    *zap.Logger
}

// NewWorker opens its own jobs and IP-info channels on conn and attaches
// the given enrichers, which all take jobs from the same jobQueue; the
// caller builds them, typically around one shared trie.
func NewWorker(name string, conn *broker.Connection, enrichers []*enrich.Enricher, logger *zap.Logger) (*Worker, error) {
	jobsCh, err := broker.OpenJobsChannel(conn, logger.Named("broker.jobs"))
	if err != nil {
		return nil, err
	}
	ipInfoCh, err := broker.OpenIPInfoChannel(conn, logger.Named("broker.ipinfo"))
	if err != nil {
		return nil, err
	}

	w := &Worker{
		name:      name,
		jobsCh:    jobsCh,
		ipInfoCh:  ipInfoCh,
		enrichers: enrichers,
		jobQueue:  make(chan ipinfo.EnricherJob, 1),
		logger:    logger.With(zap.String("consumer", name)),
	}
	return w, nil
}

// Run starts each enricher's processing loop and the two consume loops.
// It blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for _, e := range w.enrichers {
		e.WarmUpTrie(ctx)
		go w.runEnricher(ctx, e)
	}

	jobDeliveries, err := w.jobsCh.Consume(w.name + "-jobs")
	if err != nil {
		return err
	}
	ipInfoDeliveries, err := w.ipInfoCh.Consume(w.name + "-ipinfo")
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-jobDeliveries:
			if !ok {
				return nil
			}
			w.handleJobDelivery(d)
		case d, ok := <-ipInfoDeliveries:
			if !ok {
				return nil
			}
			w.handleIPInfoDelivery(d)
		}
	}
}

// handleJobDelivery admits a job onto the handoff queue if it is empty,
// acking it; otherwise it nacks with requeue so another (idle) consumer
// gets a chance to pick it up.
func (w *Worker) handleJobDelivery(d amqp.Delivery) {
	if len(w.jobQueue) != 0 {
		metrics.ConsumerNacksTotal.WithLabelValues(w.name).Inc()
		if err := broker.NackRequeue(d); err != nil {
			w.logger.Error("nack job delivery failed", zap.Error(err))
		}
		return
	}

	var job ipinfo.EnricherJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		w.logger.Error("unmarshal enrichment job failed", zap.Error(err))
		if err := broker.NackDiscard(d); err != nil {
			w.logger.Error("nack-discard malformed job failed", zap.Error(err))
		}
		return
	}

	if err := broker.Ack(d); err != nil {
		w.logger.Error("ack job delivery failed", zap.Error(err))
		return
	}

	w.jobQueue <- job
}

// handleIPInfoDelivery fans an IP-info update out to every resident
// enricher's local trie, without redispatching it onward.
func (w *Worker) handleIPInfoDelivery(d amqp.Delivery) {
	var info ipinfo.IPDBInfo
	if err := json.Unmarshal(d.Body, &info); err != nil {
		w.logger.Error("unmarshal ip info fanout failed", zap.Error(err))
		return
	}

	for _, e := range w.enrichers {
		if err := e.AddIPInfoToLocalCache(info, false, time.Now()); err != nil {
			w.logger.Warn("apply ip info fanout failed", zap.String("prefix", info.Prefix), zap.Error(err))
		}
	}
}

func (w *Worker) runEnricher(ctx context.Context, e *enrich.Enricher) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-w.jobQueue:
			e.ProcessJob(ctx, job)
		}
	}
}
