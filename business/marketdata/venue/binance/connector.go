// Package binance implements the spot and USD-M futures venue adapter: the
// combined-stream URL shape, SUBSCRIBE/UNSUBSCRIBE frame construction, and
// stream-suffix routing are venue-specific; the decoders emit normalized
// trade/L1/L2/liquidation events rather than raw exchange payloads.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/cryptofeed/business/marketdata/domain"
	"github.com/fd1az/cryptofeed/business/marketdata/venue"
)

const (
	// BaseSpotURL is Binance's spot combined-stream websocket host.
	BaseSpotURL = "wss://stream.binance.com:9443"
	// BaseFuturesURL is Binance's USD-M futures combined-stream websocket host.
	BaseFuturesURL = "wss://fstream.binance.com"
	// OpenInterestRESTURL is polled every 10s since open interest is not
	// published over the futures websocket.
	OpenInterestRESTURL = "https://fapi.binance.com/fapi/v1/openInterest"
)

type l2State struct {
	initialized bool
	lastUpdate  int64
}

// Connector implements venue.Connector for Binance spot + futures.
type Connector struct {
	// Futures selects the USD-M futures host/capabilities instead of spot.
	Futures bool

	mu  sync.Mutex
	l2  map[string]*l2State // keyed by SubscriptionID(L2 sub)
	ids nextID
}

type nextID struct {
	mu sync.Mutex
	n  int64
}

func (n *nextID) next() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.n++
	return n.n
}

// NewSpotConnector builds a Binance spot adapter.
func NewSpotConnector() *Connector {
	return &Connector{l2: make(map[string]*l2State)}
}

// NewFuturesConnector builds a Binance USD-M futures adapter.
func NewFuturesConnector() *Connector {
	return &Connector{Futures: true, l2: make(map[string]*l2State)}
}

func (c *Connector) Name() domain.Venue { return domain.VenueBinance }

func (c *Connector) Capabilities(kind domain.Kind) venue.Capability {
	if c.Futures {
		return venue.CapTrade | venue.CapL1 | venue.CapL2 | venue.CapLiquidation | venue.CapOpenInterest
	}
	return venue.CapTrade | venue.CapL1 | venue.CapL2
}

func symbol(i domain.Instrument) string {
	return strings.ToUpper(i.Base + i.Quote)
}

func streamSuffix(ch domain.Channel) string {
	switch ch {
	case domain.ChannelTrade:
		return "@aggTrade"
	case domain.ChannelL1:
		return "@bookTicker"
	case domain.ChannelL2:
		return "@depth@100ms"
	case domain.ChannelLiquidation:
		return "@forceOrder"
	default:
		return ""
	}
}

// SubscriptionID returns the combined-stream name Binance uses as the
// routing key: the lowercase symbol plus the stream suffix, e.g.
// "btcusdt@aggTrade".
func (c *Connector) SubscriptionID(sub domain.Subscription) string {
	return strings.ToLower(symbol(sub.Instrument)) + streamSuffix(sub.Channel)
}

func (c *Connector) BuildSubscribeFrames(subs []domain.Subscription) ([][]byte, error) {
	if len(subs) == 0 {
		return nil, fmt.Errorf("binance: %w", errEmptySubs)
	}
	streams := make([]string, 0, len(subs))
	for _, s := range subs {
		id := c.SubscriptionID(s)
		if id == "" {
			return nil, fmt.Errorf("binance: unsupported channel %s", s.Channel)
		}
		streams = append(streams, id)
	}
	req := WSRequest{Method: "SUBSCRIBE", Params: streams, ID: c.ids.next()}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	return [][]byte{data}, nil
}

func (c *Connector) ValidateSubscribeResponse(frame []byte) venue.ValidationResult {
	var resp WSResponse
	if err := json.Unmarshal(frame, &resp); err != nil {
		return venue.ValidationPending
	}
	if resp.ID == 0 {
		return venue.ValidationPending
	}
	return venue.ValidationOK
}

func (c *Connector) PingPolicy() ([]byte, time.Duration) {
	// Binance's combined stream only requires replying to server-initiated
	// pings at the transport level; wsconn's own ping loop covers liveness.
	return nil, 0
}

func (c *Connector) Decode(ctx context.Context, frame []byte) ([]domain.MarketEvent, error) {
	var env StreamEvent
	if err := json.Unmarshal(frame, &env); err != nil {
		var resp WSResponse
		if json.Unmarshal(frame, &resp) == nil {
			return nil, nil // subscribe confirmation, not an event
		}
		return nil, domain.NewDecodeError("binance", err)
	}

	now := time.Now()
	stream := strings.ToLower(env.Stream)

	switch {
	case strings.HasSuffix(stream, "@aggtrade"):
		var t AggTradeEvent
		if err := json.Unmarshal(env.Data, &t); err != nil {
			return nil, domain.NewDecodeError(stream, err)
		}
		price, _ := decimal.NewFromString(t.Price)
		qty, _ := decimal.NewFromString(t.Quantity)
		side := domain.SideBuy
		if t.IsBuyerMaker {
			side = domain.SideSell
		}
		inst := instrumentFromSymbol(t.Symbol, c.Futures)
		return []domain.MarketEvent{{
			TimeExchange: time.UnixMilli(t.TradeTime),
			TimeReceived: now,
			Venue:        domain.VenueBinance,
			Instrument:   inst,
			Data: domain.Trade{
				ID:     fmt.Sprintf("%d", t.AggTradeID),
				Side:   side,
				Price:  price,
				Amount: qty,
			},
		}}, nil

	case strings.HasSuffix(stream, "@bookticker"):
		var bt BookTickerEvent
		if err := json.Unmarshal(env.Data, &bt); err != nil {
			return nil, domain.NewDecodeError(stream, err)
		}
		inst := instrumentFromSymbol(bt.Symbol, c.Futures)
		bidP, _ := decimal.NewFromString(bt.BidPrice)
		bidQ, _ := decimal.NewFromString(bt.BidQty)
		askP, _ := decimal.NewFromString(bt.AskPrice)
		askQ, _ := decimal.NewFromString(bt.AskQty)
		return []domain.MarketEvent{{
			TimeExchange: now,
			TimeReceived: now,
			Venue:        domain.VenueBinance,
			Instrument:   inst,
			Data: domain.OrderBookL1{
				BestBid:    &domain.BookLevel{Price: bidP, Amount: bidQ},
				BestAsk:    &domain.BookLevel{Price: askP, Amount: askQ},
				LastUpdate: now,
			},
		}}, nil

	case strings.Contains(stream, "@depth"):
		var d DepthUpdateEvent
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return nil, domain.NewDecodeError(stream, err)
		}
		return c.decodeDepth(stream, d, now)

	case strings.HasSuffix(stream, "@forceorder"):
		var fo ForceOrderEvent
		if err := json.Unmarshal(env.Data, &fo); err != nil {
			return nil, domain.NewDecodeError(stream, err)
		}
		price, _ := decimal.NewFromString(fo.Order.Price)
		qty, _ := decimal.NewFromString(fo.Order.Quantity)
		side := domain.SideSell
		if strings.EqualFold(fo.Order.Side, "BUY") {
			side = domain.SideBuy
		}
		inst := instrumentFromSymbol(fo.Order.Symbol, c.Futures)
		return []domain.MarketEvent{{
			TimeExchange: time.UnixMilli(fo.Order.OrderTradeAt),
			TimeReceived: now,
			Venue:        domain.VenueBinance,
			Instrument:   inst,
			Data: domain.Liquidation{
				Side:     side,
				Price:    price,
				Quantity: qty,
				Time:     time.UnixMilli(fo.Order.OrderTradeAt),
			},
		}}, nil

	default:
		return nil, domain.NewUnknownSubscriptionError(stream)
	}
}

// decodeDepth applies the Binance L2 sequencing invariant: the first frame
// received for a subscription establishes the baseline lastUpdateId (acting
// as the "snapshot"); every subsequent frame's FirstUpdateID must equal
// baseline+1 or a terminal sequence-gap error is returned, forcing the owning
// reconnecting stream to reconnect.
func (c *Connector) decodeDepth(stream string, d DepthUpdateEvent, now time.Time) ([]domain.MarketEvent, error) {
	c.mu.Lock()
	st, ok := c.l2[stream]
	if !ok {
		st = &l2State{}
		c.l2[stream] = st
	}
	defer c.mu.Unlock()

	inst := instrumentFromSymbol(d.Symbol, c.Futures)

	if !st.initialized {
		st.initialized = true
		st.lastUpdate = d.FinalUpdateID
		return []domain.MarketEvent{{
			TimeExchange: time.UnixMilli(d.EventTime),
			TimeReceived: now,
			Venue:        domain.VenueBinance,
			Instrument:   inst,
			Data: domain.OrderBookEvent{
				Action: domain.BookActionSnapshot,
				Book:   bookFromDepth(d),
			},
		}}, nil
	}

	if d.FirstUpdateID != st.lastUpdate+1 {
		return nil, domain.NewSequenceGapError(inst, st.lastUpdate, d.FirstUpdateID)
	}
	st.lastUpdate = d.FinalUpdateID

	return []domain.MarketEvent{{
		TimeExchange: time.UnixMilli(d.EventTime),
		TimeReceived: now,
		Venue:        domain.VenueBinance,
		Instrument:   inst,
		Data: domain.OrderBookEvent{
			Action: domain.BookActionUpdate,
			Book:   bookFromDepth(d),
		},
	}}, nil
}

func bookFromDepth(d DepthUpdateEvent) domain.OrderBook {
	return domain.OrderBook{
		Sequence: d.FinalUpdateID,
		Bids:     levelsFromPairs(d.Bids),
		Asks:     levelsFromPairs(d.Asks),
	}
}

func levelsFromPairs(pairs [][]string) []domain.BookLevel {
	levels := make([]domain.BookLevel, 0, len(pairs))
	for _, p := range pairs {
		if len(p) != 2 {
			continue
		}
		price, _ := decimal.NewFromString(p[0])
		amount, _ := decimal.NewFromString(p[1])
		levels = append(levels, domain.BookLevel{Price: price, Amount: amount})
	}
	return levels
}

var quoteAssets = []string{"USDT", "USDC", "BUSD", "USD"}

func instrumentFromSymbol(sym string, futures bool) domain.Instrument {
	sym = strings.ToUpper(sym)
	base, quote := sym, ""
	for _, q := range quoteAssets {
		if strings.HasSuffix(sym, q) && len(sym) > len(q) {
			base = sym[:len(sym)-len(q)]
			quote = q
			break
		}
	}
	kind := domain.KindSpot
	if futures {
		kind = domain.KindPerpetual
	}
	return domain.NewInstrument(base, quote, kind)
}

type stringError string

func (e stringError) Error() string { return string(e) }

const errEmptySubs = stringError("empty subscription set")
