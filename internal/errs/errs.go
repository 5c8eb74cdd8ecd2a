// Package errs defines the error taxonomy shared across the enrichment
// pipeline: which failures are fatal at startup, which are recoverable and
// swallowed, and which trigger a reconnect loop.
package errs

import "errors"

// ParseError is returned by a traceroute parser when the input does not
// match its format, or matches but violates an invariant (e.g. non-
// contiguous hop numbers). The parser registry treats it as "this parser
// doesn't apply" and moves on to the next candidate.
type ParseError struct {
	Parser string
	Reason string
}

func (e *ParseError) Error() string {
	return e.Parser + ": " + e.Reason
}

func NewParseError(parser, reason string) *ParseError {
	return &ParseError{Parser: parser, Reason: reason}
}

// BrokerError wraps a failure talking to the message broker. It never
// terminates the process; the reconnector catches it and retries with
// backoff.
type BrokerError struct {
	Op  string
	Err error
}

func (e *BrokerError) Error() string { return "broker: " + e.Op + ": " + e.Err.Error() }
func (e *BrokerError) Unwrap() error { return e.Err }

func NewBrokerError(op string, err error) *BrokerError {
	return &BrokerError{Op: op, Err: err}
}

// ExternalSourceError marks a failed call to RIPEstat or PeeringDB. Callers
// treat it as "no data available" rather than propagating it further: the
// host or prefix is still saved, just without the enrichment facts.
type ExternalSourceError struct {
	Source string
	Err    error
}

func (e *ExternalSourceError) Error() string { return "external source " + e.Source + ": " + e.Err.Error() }
func (e *ExternalSourceError) Unwrap() error { return e.Err }

func NewExternalSourceError(source string, err error) *ExternalSourceError {
	return &ExternalSourceError{Source: source, Err: err}
}

// EnrichmentError marks an unhandled failure while enriching a single host.
// The enricher's per-job loop does not construct it: it logs any host
// failure as a plain error, emits a host-level error event, and continues
// with the next host.
type EnrichmentError struct {
	HostID string
	Err    error
}

func (e *EnrichmentError) Error() string { return "enrichment of host " + e.HostID + ": " + e.Err.Error() }
func (e *EnrichmentError) Unwrap() error { return e.Err }

// ErrNotParseable is returned by the parser registry when no registered
// parser could make sense of the input.
var ErrNotParseable = errors.New("traceroute: no parser could parse this input")

// ErrTracerouteNotFound is returned when looking up a traceroute ID that
// does not exist.
var ErrTracerouteNotFound = errors.New("traceroute: not found")
