// Package broker wraps github.com/rabbitmq/amqp091-go with the
// connection/channel lifecycle the enrichment pipeline needs: a
// reconnecting connection with capped backoff, and per-role channel
// profiles (job queue, IP-info fanout, notification topic) that declare
// their own topology on (re)open.
package broker

const (
	// EnrichmentJobsQueue carries EnricherJob payloads from the web
	// front-end to consumer workers.
	EnrichmentJobsQueue = "enrichment_jobs"

	// IPInfoFanoutExchange broadcasts IPDBInfo updates to every
	// consumer's in-memory LPM cache.
	IPInfoFanoutExchange = "ip_info_data"

	// NotificationExchange carries per-host enrichment events, routed by
	// traceroute ID, to whichever process holds the client-facing
	// WebSocket/SSE connection for that traceroute.
	NotificationExchange = "traceroute_notifications"

	// EnrichmentJobTTLMillis is the message TTL applied to EnricherJob
	// publishes: a job older than this is dropped rather than processed
	// against a traceroute nobody is waiting on anymore.
	EnrichmentJobTTLMillis = "120000"

	// IPInfoTTLMillis is the message TTL applied to IP-info fanout
	// publishes.
	IPInfoTTLMillis = "60000"
)
