// Package stream implements the reconnecting market-data stream: one
// physical WebSocket per homogeneous subscription batch, driving handshake,
// subscribe, validate, and steady-state read, and emitting Reconnecting /
// Item events for the merger to fan in. The physical dial/handshake/backoff
// cycle is delegated to internal/wsconn.Client, which already owns that
// state machine; this package layers the venue-protocol concerns wsconn
// knows nothing about: sending subscribe frames after every (re)connect,
// application-level ping cadence, subscribe-response validation, and
// routing payload frames through a venue.Connector's Decode.
package stream

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/fd1az/cryptofeed/business/marketdata/domain"
	"github.com/fd1az/cryptofeed/business/marketdata/venue"
	"github.com/fd1az/cryptofeed/internal/apperror"
	"github.com/fd1az/cryptofeed/internal/logger"
	"github.com/fd1az/cryptofeed/internal/wsconn"
)

// Kind tags a Stream event as either a reconnect notice or a carried item.
type Kind string

const (
	KindReconnecting Kind = "reconnecting"
	KindItem         Kind = "item"
)

// Event is one value emitted onto a Stream's output channel. Exactly one of
// Event/Err is set when Kind == KindItem; KindReconnecting carries neither.
type Event struct {
	Kind  Kind
	Venue domain.Venue
	Event *domain.MarketEvent
	Err   error
}

// Stream owns one wsconn.Client for one (venue, channel)-homogeneous batch
// of subscriptions, preserving transformer-relevant state (the connector's
// own per-instrument L2/sequence maps) across reconnects since the
// connector outlives any one physical connection.
type Stream struct {
	name      string
	connector venue.Connector
	subs      []domain.Subscription
	cfg       wsconn.Config
	log       logger.LoggerInterface
}

// Option customizes a Stream's wsconn.Config before it is built.
type Option func(*wsconn.Config)

// WithBackoff overrides the default 2s reconnect backoff.
func WithBackoff(initial, max time.Duration) Option {
	return func(c *wsconn.Config) {
		c.InitialBackoff = initial
		c.MaxBackoff = max
	}
}

// WithIdleTimeout overrides the 120s inactivity guard.
func WithIdleTimeout(d time.Duration) Option {
	return func(c *wsconn.Config) { c.IdleTimeout = d }
}

// New builds a Stream for one subscription batch against one venue
// WebSocket host. url and name identify the physical socket (e.g. Binance's
// separate spot vs futures hosts); connector and subs must already agree on
// a single venue and a homogeneous channel set — splitting mixed batches is
// the caller's (app wiring's) responsibility.
func New(url, name string, connector venue.Connector, subs []domain.Subscription, log logger.LoggerInterface, opts ...Option) *Stream {
	cfg := wsconn.DefaultConfig(url, name)
	cfg.InitialBackoff = 2 * time.Second // default reconnect backoff
	cfg.MaxBackoff = 2 * time.Second     // constant base backoff; wsconn adds up to 50% jitter
	cfg.ReadTimeout = wsconn.DefaultIdleTimeout
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Stream{name: name, connector: connector, subs: subs, cfg: cfg, log: log}
}

// Run dials the stream and returns a channel of Events. The channel closes
// when ctx is cancelled or the underlying client is permanently closed.
func (s *Stream) Run(ctx context.Context) <-chan Event {
	out := make(chan Event, 256)
	go s.run(ctx, out)
	return out
}

func (s *Stream) run(ctx context.Context, out chan<- Event) {
	defer close(out)

	client, err := wsconn.New(s.cfg)
	if err != nil {
		if s.log != nil {
			s.log.Error(ctx, "stream: build client failed", "stream", s.name, "error", err)
		}
		return
	}

	var validated atomic.Bool
	var pingGen atomic.Int64

	client.OnStateChange(func(state wsconn.State, _ error) {
		switch state {
		case wsconn.StateConnected:
			validated.Store(false)
			gen := pingGen.Add(1)
			go s.subscribe(ctx, client)
			go s.pingLoop(ctx, client, &pingGen, gen)
		case wsconn.StateReconnecting:
			pingGen.Add(1) // invalidate any ping loop still running for the old connection
			select {
			case out <- Event{Kind: KindReconnecting, Venue: s.connector.Name()}:
			case <-ctx.Done():
			}
		}
	})

	if err := client.ConnectWithRetry(ctx); err != nil {
		return
	}
	defer client.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-client.Messages():
			if !ok {
				return
			}
			s.handleFrame(ctx, client, frame, &validated, out)
		}
	}
}

// subscribe sends the connector's subscribe frames once a connection is
// live. Send failures are left to wsconn's own disconnect handling; there is
// nothing more useful to do here than retry on the next reconnect.
func (s *Stream) subscribe(ctx context.Context, client *wsconn.Client) {
	frames, err := s.connector.BuildSubscribeFrames(s.subs)
	if err != nil {
		if s.log != nil {
			s.log.Error(ctx, "stream: build subscribe frames failed", "stream", s.name, "error", err)
		}
		return
	}
	for _, f := range frames {
		if err := client.Send(ctx, f); err != nil {
			return
		}
	}
}

// pingLoop sends the venue's application-level keepalive frame (distinct
// from wsconn's own transport-level ping control frames) on its documented
// cadence until the connection drops (Bybit 29s {"op":"ping"}, OKX 29s "ping"
// text). gen identifies the physical connection this loop was
// started for; once pingGen has moved past gen (a reconnect happened), the
// loop exits rather than sending pings into a stale client.
func (s *Stream) pingLoop(ctx context.Context, client *wsconn.Client, pingGen *atomic.Int64, gen int64) {
	frame, interval := s.connector.PingPolicy()
	if frame == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if pingGen.Load() != gen {
				return
			}
			if err := client.Send(ctx, frame); err != nil {
				return
			}
		}
	}
}

// handleFrame is the live-state read path: documented venue noise is
// swallowed, subscribe-response validation is checked while still
// unvalidated, and every frame is offered to the connector's Decode. A
// terminal decode error (sequence gap, rejected subscription) forces a
// reconnect through the owning wsconn.Client instead of being surfaced as an
// Item; terminal errors are consumed internally, never handed to a
// consumer as a decode failure.
func (s *Stream) handleFrame(ctx context.Context, client *wsconn.Client, frame []byte, validated *atomic.Bool, out chan<- Event) {
	if venue.IsPongText(frame) || venue.IsOKXPingText(frame) {
		return
	}

	if !validated.Load() {
		switch s.connector.ValidateSubscribeResponse(frame) {
		case venue.ValidationOK:
			validated.Store(true)
		case venue.ValidationFail:
			client.ForceReconnect(ctx, apperror.New(apperror.CodeVenueSubscribeRejected,
				apperror.WithContext(s.name)))
			return
		}
	}

	events, err := s.connector.Decode(ctx, frame)
	if err != nil {
		if isTerminal(err) {
			client.ForceReconnect(ctx, err)
			return
		}
		select {
		case out <- Event{Kind: KindItem, Venue: s.connector.Name(), Err: err}:
		case <-ctx.Done():
		}
		return
	}

	for i := range events {
		ev := events[i]
		select {
		case out <- Event{Kind: KindItem, Venue: s.connector.Name(), Event: &ev}:
		case <-ctx.Done():
			return
		}
	}
}

// isTerminal classifies a decode error: sequence gaps are always terminal;
// everything else falls back to the case-insensitive socket-error substring
// match (Decode implementations should not normally return transport
// errors, but a future connector might surface one verbatim).
func isTerminal(err error) bool {
	if apperror.GetCode(err) == apperror.CodeSequenceGap {
		return true
	}
	return apperror.IsTerminalSocketError(err.Error())
}
