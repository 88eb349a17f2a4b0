// Package venue defines the capability-set contract every exchange adapter
// implements. Routing from subscription id to instrument is a flat map per
// stream; each adapter is a
// distinct Go type satisfying Connector rather than a dynamic-dispatch
// inheritance hierarchy.
package venue

import (
	"context"
	"time"

	"github.com/fd1az/cryptofeed/business/marketdata/domain"
)

// ValidationResult is the outcome of checking a subscribe-response frame.
type ValidationResult string

const (
	ValidationOK      ValidationResult = "ok"
	ValidationPending ValidationResult = "pending"
	ValidationFail    ValidationResult = "fail"
)

// Capability flags which decoders an adapter advertises for a given
// instrument kind. Not every venue implements every channel on every kind
// (e.g. Binance futures open interest never arrives over the socket).
type Capability int

const (
	CapTrade Capability = 1 << iota
	CapL1
	CapL2
	CapLiquidation
	CapOpenInterest
)

// Has reports whether cap is present in the capability set s.
func (s Capability) Has(cap Capability) bool {
	return s&cap != 0
}

// Connector is the contract every venue package implements: URL/ping policy,
// subscribe-frame construction, subscribe-response validation, and raw
// payload decoding into zero or more normalized domain.MarketEvents.
type Connector interface {
	// Name identifies the venue for logging, metrics, and exchange_last_seen.
	Name() domain.Venue

	// Capabilities returns the supported channel set for the given
	// instrument kind, so the app wiring layer can reject unsupported
	// (venue, channel) pairs at startup.
	Capabilities(kind domain.Kind) Capability

	// BuildSubscribeFrames returns the wire frames to send after a
	// successful handshake to subscribe to every given Subscription. A venue
	// may batch several subscriptions into one frame.
	BuildSubscribeFrames(subs []domain.Subscription) ([][]byte, error)

	// SubscriptionID returns the venue-specific stable string used to route
	// an inbound payload back to its Subscription.
	SubscriptionID(sub domain.Subscription) string

	// ValidateSubscribeResponse inspects one inbound frame during the
	// Validate state and reports whether it confirms, is still pending, or
	// rejects the subscription batch.
	ValidateSubscribeResponse(frame []byte) ValidationResult

	// Decode parses one inbound frame into zero or more normalized events,
	// routed via the per-stream subscription map. Unknown subscription ids
	// and malformed payloads are reported as errors, never panics.
	Decode(ctx context.Context, frame []byte) ([]domain.MarketEvent, error)

	// PingPolicy returns the venue's keepalive frame and cadence. A nil
	// frame with cadence 0 means the venue needs no application-level ping
	// (left to the wsconn client's own heartbeat).
	PingPolicy() (frame []byte, interval time.Duration)
}
