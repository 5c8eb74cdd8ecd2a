// Package notify emits the three per-traceroute event kinds onto
// NotificationExchange, routed by traceroute ID so any worker process can
// publish into a room regardless of which process holds the client's
// connection.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/richtraceroute/enrichmentd/internal/broker"
	"github.com/richtraceroute/enrichmentd/internal/traceroute"
)

const (
	eventHostEnriched        = "traceroute_host_enriched"
	eventHostEnrichmentError = "traceroute_host_enrichment_error"
	eventEnrichmentCompleted = "traceroute_enrichment_completed"
)

// Emitter publishes notification events, each into the room of the
// traceroute it names.
type Emitter struct {
	ch *broker.NotifyChannel
}

// NewEmitter opens a notification channel on conn.
func NewEmitter(conn *broker.Connection, logger *zap.Logger) (*Emitter, error) {
	ch, err := broker.OpenNotifyChannel(conn, logger.Named("broker.notify"))
	if err != nil {
		return nil, err
	}
	return &Emitter{ch: ch}, nil
}

func routingKey(tracerouteID string) string {
	return "t." + tracerouteID
}

type envelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

func (e *Emitter) publish(tracerouteID, event string, payload any) error {
	body, err := json.Marshal(envelope{Event: event, Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event, err)
	}
	return e.ch.Publish(routingKey(tracerouteID), body)
}

// EmitHostEnriched publishes a traceroute_host_enriched event with the
// host's full dict projection.
func (e *Emitter) EmitHostEnriched(ctx context.Context, tracerouteID string, host *traceroute.Host) error {
	payload := struct {
		TracerouteID string `json:"traceroute_id"`
		traceroute.Dict
	}{
		TracerouteID: tracerouteID,
		Dict:         host.ToDict(),
	}
	return e.publish(tracerouteID, eventHostEnriched, payload)
}

// EmitHostEnrichmentError publishes a traceroute_host_enrichment_error
// event for a single host that failed unrecoverably.
func (e *Emitter) EmitHostEnrichmentError(ctx context.Context, tracerouteID string, hopN int, hostID, errMsg string) error {
	payload := struct {
		TracerouteID string `json:"traceroute_id"`
		HopN         int    `json:"hop_n"`
		HostID       string `json:"host_id"`
		Error        string `json:"error"`
	}{
		TracerouteID: tracerouteID,
		HopN:         hopN,
		HostID:       hostID,
		Error:        errMsg,
	}
	return e.publish(tracerouteID, eventHostEnrichmentError, payload)
}

// EmitEnrichmentCompleted publishes the terminal
// traceroute_enrichment_completed event for a fully enriched traceroute.
func (e *Emitter) EmitEnrichmentCompleted(ctx context.Context, tr *traceroute.Traceroute) error {
	payload := struct {
		TracerouteID string                    `json:"traceroute_id"`
		Traceroute   traceroute.TracerouteDict `json:"traceroute"`
		Text         string                    `json:"text"`
	}{
		TracerouteID: tr.ID,
		Traceroute:   tr.ToDict(),
		Text:         tr.ToText(),
	}
	return e.publish(tr.ID, eventEnrichmentCompleted, payload)
}
