// Package bridge connects to the optional external futures-data bridge: a
// separate process that pushes ES/NQ equity-index ticks over its own
// WebSocket so the micro-bar sub-engine can correlate them against BTC.
package bridge

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fd1az/cryptofeed/internal/apperror"
	"github.com/fd1az/cryptofeed/internal/logger"
	"github.com/fd1az/cryptofeed/internal/wsconn"
)

// Sink receives one ES/NQ tick at a time, ts being the tick's own exchange
// timestamp (not arrival time) so backfilled ticks bucket into the right
// micro-bar.
type Sink func(symbol string, ts time.Time, price, size float64)

// frame is the tagged-union shape every bridge message shares; only the
// fields relevant to its Type are populated by the sender.
type frame struct {
	Type      string      `json:"type"`
	Symbol    string      `json:"symbol"`
	TS        int64       `json:"ts"`
	Px        float64     `json:"px"`
	Sz        float64     `json:"sz"`
	Ticks     []tickFrame `json:"ticks"`
	Connected bool        `json:"connected"`
}

type tickFrame struct {
	TS int64   `json:"ts"`
	Px float64 `json:"px"`
	Sz float64 `json:"sz"`
}

// Client dials the bridge WebSocket and feeds decoded ticks into Sink,
// reconnecting at a constant base interval until ctx is cancelled.
type Client struct {
	url           string
	reconnectWait time.Duration
	sink          Sink
	log           logger.LoggerInterface
}

// New builds a bridge Client. reconnectWait is used as both the initial and
// maximum backoff, giving a constant base delay rather than exponential
// growth (wsconn still adds up to 50% random jitter to each wait) — the
// bridge is a local companion process, not a rate-limited public venue.
func New(url string, reconnectWait time.Duration, sink Sink, log logger.LoggerInterface) *Client {
	if reconnectWait <= 0 {
		reconnectWait = 5 * time.Second
	}
	return &Client{url: url, reconnectWait: reconnectWait, sink: sink, log: log}
}

// Run dials the bridge and blocks until ctx is cancelled, feeding every
// decoded tick to the Client's Sink. Connection failures are logged and
// retried; they are never fatal to the rest of the service since the bridge
// is explicitly an optional external collaborator.
func (c *Client) Run(ctx context.Context) {
	cfg := wsconn.DefaultConfig(c.url, "futures-bridge")
	cfg.InitialBackoff = c.reconnectWait
	cfg.MaxBackoff = c.reconnectWait

	client, err := wsconn.New(cfg)
	if err != nil {
		if c.log != nil {
			c.log.Error(ctx, "bridge: build client failed", "error", err)
		}
		return
	}

	client.OnStateChange(func(state wsconn.State, err error) {
		if c.log == nil {
			return
		}
		switch state {
		case wsconn.StateConnected:
			c.log.Info(ctx, "bridge: connected", "url", c.url)
		case wsconn.StateReconnecting:
			c.log.Warn(ctx, "bridge: reconnecting", "url", c.url, "error", err)
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
		case msg, ok := <-client.Messages():
			if !ok {
				return
			}
			c.handleFrame(ctx, msg)
		}
	}
}

func (c *Client) handleFrame(ctx context.Context, msg []byte) {
	var f frame
	if err := json.Unmarshal(msg, &f); err != nil {
		if c.log != nil {
			c.log.Warn(ctx, "bridge: malformed frame",
				"error", apperror.New(apperror.CodeDecodeFailed).Error())
		}
		return
	}

	switch f.Type {
	case "welcome", "status":
		// No state to act on beyond logging the connection's own lifecycle,
		// already handled via OnStateChange.
	case "tick":
		sz := f.Sz
		if sz <= 0 {
			sz = 1.0 // missing or non-positive size counts as one unit
		}
		c.sink(f.Symbol, time.UnixMilli(f.TS), f.Px, sz)
	case "tick_backfill":
		for _, t := range f.Ticks {
			sz := t.Sz
			if sz <= 0 {
				sz = 1.0
			}
			c.sink(f.Symbol, time.UnixMilli(t.TS), t.Px, sz)
		}
	}
}
