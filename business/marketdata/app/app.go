// Package app wires every marketdata package into one running service:
// venue connectors and subscriptions, the reconnecting streams, the CVD
// transform, the aggregator, the broadcast bus and its WebSocket server,
// the Binance open-interest poller, and the optional external futures
// bridge. It is the only package that imports every venue adapter.
package app

import (
	"context"
	"fmt"

	"github.com/fd1az/cryptofeed/business/marketdata/aggregator"
	"github.com/fd1az/cryptofeed/business/marketdata/bridge"
	"github.com/fd1az/cryptofeed/business/marketdata/broadcast"
	"github.com/fd1az/cryptofeed/business/marketdata/domain"
	"github.com/fd1az/cryptofeed/business/marketdata/stream"
	"github.com/fd1az/cryptofeed/business/marketdata/transform"
	"github.com/fd1az/cryptofeed/business/marketdata/venue"
	"github.com/fd1az/cryptofeed/business/marketdata/venue/binance"
	"github.com/fd1az/cryptofeed/business/marketdata/venue/bybit"
	"github.com/fd1az/cryptofeed/business/marketdata/venue/okx"
	"github.com/fd1az/cryptofeed/internal/apperror"
	"github.com/fd1az/cryptofeed/internal/asset"
	"github.com/fd1az/cryptofeed/internal/config"
	"github.com/fd1az/cryptofeed/internal/di"
	"github.com/fd1az/cryptofeed/internal/logger"
	"github.com/fd1az/cryptofeed/internal/monolith"
)

// StatusHooks lets the entrypoint observe module lifecycle events (for a
// TUI, a log line, or nothing) without the module importing a UI package.
// Every field is optional; nil hooks are simply skipped.
type StatusHooks struct {
	OnConnection func(venue string, connected bool)
	OnThroughput func(messagesReceived int64, broadcastClients int)
}

// Module wires and runs the marketdata pipeline as one monolith.Module.
type Module struct {
	Hooks StatusHooks

	agg    *aggregator.Aggregator
	bus    *broadcast.Bus
	cvd    *transform.CVDAccumulator
	server *broadcast.Server

	received int64
}

type venueLeg struct {
	connector venue.Connector
	url       string
	name      string
	kind      domain.Kind
}

// RegisterServices builds the aggregator, broadcast bus, and CVD
// accumulator and registers them for any later module to depend on.
func (m *Module) RegisterServices(c di.Container) error {
	cfg := c.Get("config").(*config.Config)
	assets := c.Get("assetRegistry").(*asset.Registry)

	thresholds := aggregator.Thresholds{
		WhaleUSD:      cfg.Aggregator.WhaleThreshold,
		MaxWhales:     cfg.Aggregator.MaxWhales,
		LiqDangerUSD:  cfg.Aggregator.LiqDangerThreshold,
		CascadeCapUSD: aggregator.DefaultThresholds().CascadeCapUSD,
	}
	m.agg = aggregator.New(thresholds, [3]string{"btc", "eth", "sol"}, assets)
	m.bus = broadcast.NewBus(cfg.Broadcast.BufferSize)
	m.cvd = transform.NewCVDAccumulator()

	c.Register("aggregator", m.agg)
	c.Register("broadcastBus", m.bus)
	c.Register("cvdAccumulator", m.cvd)
	return nil
}

// Startup dials every venue stream, starts the Binance open-interest
// poller, optionally starts the external futures bridge, and runs the
// merged ingest loop plus the broadcast WebSocket server until ctx is
// cancelled.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	cfg := mono.Config()
	log := mono.Logger()

	legs := m.venueLegs(cfg)

	var channels []<-chan stream.Event
	for _, leg := range legs {
		batches := buildChannelBatches(leg.connector, cfg.Venues.Tickers, leg.kind)
		for channel, subs := range batches {
			if len(subs) == 0 {
				continue
			}
			name := fmt.Sprintf("%s-%s-%s", leg.connector.Name(), leg.kind, channel)
			s := stream.New(leg.url, name, leg.connector, subs, log,
				stream.WithBackoff(cfg.Venues.InitialBackoff, cfg.Venues.MaxBackoff),
				stream.WithIdleTimeout(cfg.Venues.IdleTimeout))
			channels = append(channels, s.Run(ctx))
		}
	}

	oiEvents := m.startBinanceOIPollers(ctx, cfg, log)
	channels = append(channels, oiEvents)

	if cfg.Bridge.Enabled {
		bridgeClient := bridge.New(cfg.Bridge.URL, cfg.Bridge.ReconnectWait, m.agg.IngestBridgeTick, log)
		go bridgeClient.Run(ctx)
	}

	merged := stream.Merge(ctx, channels...)
	go m.ingestLoop(ctx, merged, log)

	m.server = broadcast.NewServer(cfg.Broadcast.Addr, m.bus, log)
	return m.server.ListenAndServe(ctx)
}

// venueLegs builds one leg per (venue, instrument-kind) the service
// tracks: Binance spot/futures, Bybit spot/linear, OKX public (which
// serves both spot and perpetual-swap instruments over one host).
func (m *Module) venueLegs(cfg *config.Config) []venueLeg {
	return []venueLeg{
		{connector: binance.NewSpotConnector(), url: cfg.Venues.BinanceSpotURL, name: "binance-spot", kind: domain.KindSpot},
		{connector: binance.NewFuturesConnector(), url: cfg.Venues.BinanceFutURL, name: "binance-futures", kind: domain.KindPerpetual},
		{connector: bybit.NewSpotConnector(), url: cfg.Venues.BybitSpotURL, name: "bybit-spot", kind: domain.KindSpot},
		{connector: bybit.NewLinearConnector(), url: cfg.Venues.BybitLinearURL, name: "bybit-linear", kind: domain.KindPerpetual},
		{connector: okx.NewConnector(), url: cfg.Venues.OKXPublicURL, name: "okx-spot", kind: domain.KindSpot},
		{connector: okx.NewConnector(), url: cfg.Venues.OKXPublicURL, name: "okx-swap", kind: domain.KindPerpetual},
	}
}

// channelCaps maps a wire-level Channel to the Capability flag that governs
// whether a given venue leg supports it for a given instrument kind. OI is
// skipped for Binance in buildChannelBatches: BuildSubscribeFrames has no
// wire suffix for it since Binance never publishes open interest over the
// socket, so it is always served by the REST poller instead.
var channelCaps = map[domain.Channel]venue.Capability{
	domain.ChannelTrade:        venue.CapTrade,
	domain.ChannelL1:           venue.CapL1,
	domain.ChannelL2:           venue.CapL2,
	domain.ChannelLiquidation:  venue.CapLiquidation,
	domain.ChannelOpenInterest: venue.CapOpenInterest,
}

// buildChannelBatches groups every (ticker, channel) this leg supports into
// one homogeneous subscription batch per channel, since stream.New requires
// a single venue and a single channel per Stream.
func buildChannelBatches(conn venue.Connector, tickers []string, kind domain.Kind) map[domain.Channel][]domain.Subscription {
	caps := conn.Capabilities(kind)
	out := make(map[domain.Channel][]domain.Subscription)

	for channel, required := range channelCaps {
		if !caps.Has(required) {
			continue
		}
		if conn.Name() == domain.VenueBinance && channel == domain.ChannelOpenInterest {
			continue // served by the REST poller, never the socket
		}
		for _, ticker := range tickers {
			inst := domain.NewInstrument(ticker, "USDT", kind)
			out[channel] = append(out[channel], domain.Subscription{
				Venue:      conn.Name(),
				Instrument: inst,
				Channel:    channel,
			})
		}
	}
	return out
}

// startBinanceOIPollers runs one REST poller per tracked ticker against
// Binance's USD-M futures open-interest endpoint, fanning their output into
// a single stream.Event channel that joins the merged venue stream.
func (m *Module) startBinanceOIPollers(ctx context.Context, cfg *config.Config, log logger.LoggerInterface) <-chan stream.Event {
	raw := make(chan domain.MarketEvent, 64)
	out := make(chan stream.Event, 64)

	requestsPerMinute := 1200 / max(1, len(cfg.Venues.Tickers))

	for _, ticker := range cfg.Venues.Tickers {
		inst := domain.NewInstrument(ticker, "USDT", domain.KindPerpetual)
		poller, err := binance.NewOIPoller(inst, log, requestsPerMinute)
		if err != nil {
			if log != nil {
				log.Error(ctx, "app: failed to build open interest poller", "ticker", ticker, "error", err)
			}
			continue
		}
		go poller.Run(ctx, raw)
	}

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-raw:
				if !ok {
					return
				}
				select {
				case out <- stream.Event{Kind: stream.KindItem, Venue: ev.Venue, Event: &ev}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

// ingestLoop drains the merged stream, folding every item into the
// aggregator and publishing it to the broadcast bus. Trade items are also
// run through the CVD accumulator, whose derived event is ingested and
// published alongside the trade that produced it.
func (m *Module) ingestLoop(ctx context.Context, merged <-chan stream.Event, log logger.LoggerInterface) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-merged:
			if !ok {
				return
			}
			m.handleStreamEvent(ctx, ev, log)
		}
	}
}

func (m *Module) handleStreamEvent(ctx context.Context, ev stream.Event, log logger.LoggerInterface) {
	switch ev.Kind {
	case stream.KindReconnecting:
		if m.Hooks.OnConnection != nil {
			m.Hooks.OnConnection(string(ev.Venue), false)
		}
		if log != nil {
			log.Warn(ctx, "app: venue stream reconnecting", "venue", ev.Venue)
		}
	case stream.KindItem:
		if ev.Err != nil {
			if log != nil {
				log.Warn(ctx, "app: stream item error",
					"venue", ev.Venue, "error", apperror.New(apperror.CodeAggregatorIngestFailed).Error())
			}
			return
		}
		if ev.Event == nil {
			return
		}
		if m.Hooks.OnConnection != nil {
			m.Hooks.OnConnection(string(ev.Venue), true)
		}
		m.received++

		m.agg.Ingest(*ev.Event)
		m.bus.Publish(*ev.Event)

		if ev.Event.Kind() == domain.EventTrade {
			cvdEvent := m.cvd.Apply(*ev.Event)
			m.agg.Ingest(cvdEvent)
			m.bus.Publish(cvdEvent)
		}

		if m.Hooks.OnThroughput != nil {
			m.Hooks.OnThroughput(m.received, 0)
		}
	}
}

// Aggregator exposes the running aggregator for the entrypoint to poll for
// whale/throughput summaries it wants to surface in a TUI or CLI log line.
func (m *Module) Aggregator() *aggregator.Aggregator { return m.agg }
