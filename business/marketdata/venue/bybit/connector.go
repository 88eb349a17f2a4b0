package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/cryptofeed/business/marketdata/domain"
	"github.com/fd1az/cryptofeed/business/marketdata/venue"
)

// WSResponse confirms a subscribe/unsubscribe request.
type WSResponse struct {
	Success bool   `json:"success"`
	RetMsg  string `json:"ret_msg"`
	Op      string `json:"op"`
}

// Connector implements venue.Connector for Bybit v5 public spot and linear
// perpetual markets. Unlike Binance, Bybit's L2 sequence is not validated
// here: its seq is passed through on the book unchecked, and snapshot/delta
// is tagged explicitly in the envelope, so no per-subscription gap-tracking
// state is kept.
type Connector struct {
	// Linear selects the linear-perpetual category instead of spot. Bybit's
	// public channel names are identical across categories; the distinction
	// only affects which instruments are meaningful to subscribe to.
	Linear bool
}

func NewSpotConnector() *Connector   { return &Connector{} }
func NewLinearConnector() *Connector { return &Connector{Linear: true} }

func (c *Connector) Name() domain.Venue { return domain.VenueBybit }

func (c *Connector) Capabilities(kind domain.Kind) venue.Capability {
	if c.Linear {
		return venue.CapTrade | venue.CapL1 | venue.CapL2 | venue.CapLiquidation | venue.CapOpenInterest
	}
	return venue.CapTrade | venue.CapL1 | venue.CapL2
}

func symbol(i domain.Instrument) string {
	return strings.ToUpper(i.Base + i.Quote)
}

func topicPrefix(ch domain.Channel) string {
	switch ch {
	case domain.ChannelTrade:
		return "publicTrade"
	case domain.ChannelL1:
		return "orderbook.1"
	case domain.ChannelL2:
		return "orderbook.200"
	case domain.ChannelOpenInterest:
		return "tickers"
	case domain.ChannelLiquidation:
		return "allLiquidation"
	default:
		return ""
	}
}

// SubscriptionID derives a stable id from the topic string:
// "publicTrade.BTCUSDT" -> "publicTrade|BTCUSDT".
func (c *Connector) SubscriptionID(sub domain.Subscription) string {
	prefix := topicPrefix(sub.Channel)
	if prefix == "" {
		return ""
	}
	return prefix + "|" + symbol(sub.Instrument)
}

func (c *Connector) BuildSubscribeFrames(subs []domain.Subscription) ([][]byte, error) {
	if len(subs) == 0 {
		return nil, fmt.Errorf("bybit: empty subscription set")
	}
	args := make([]string, 0, len(subs))
	for _, s := range subs {
		prefix := topicPrefix(s.Channel)
		if prefix == "" {
			return nil, fmt.Errorf("bybit: unsupported channel %s", s.Channel)
		}
		args = append(args, prefix+"."+symbol(s.Instrument))
	}
	data, err := json.Marshal(WSRequest{Op: "subscribe", Args: args})
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
	if resp.Op != "subscribe" {
		return venue.ValidationPending
	}
	if resp.Success {
		return venue.ValidationOK
	}
	return venue.ValidationFail
}

// PingPolicy returns Bybit's documented {"op":"ping"} keepalive frame, sent
// every 29s. The server's pong reply is non-JSON text and must be filtered
// before reaching Decode (see venue.IsPongText).
func (c *Connector) PingPolicy() ([]byte, time.Duration) {
	frame, _ := json.Marshal(PingFrame{Op: "ping"})
	return frame, 29 * time.Second
}

func (c *Connector) Decode(ctx context.Context, frame []byte) ([]domain.MarketEvent, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		var resp WSResponse
		if json.Unmarshal(frame, &resp) == nil {
			return nil, nil
		}
		return nil, domain.NewDecodeError("bybit", err)
	}
	if env.Topic == "" {
		return nil, nil // control/ack frame, not a data event
	}

	now := time.Now()
	ts := time.UnixMilli(env.Ts)
	parts := strings.SplitN(env.Topic, ".", 2)
	if len(parts) != 2 {
		return nil, domain.NewUnknownSubscriptionError(env.Topic)
	}
	channel, sym := parts[0], parts[len(parts)-1]

	switch channel {
	case "publicTrade":
		var trades []Trade
		if err := json.Unmarshal(env.Data, &trades); err != nil {
			return nil, domain.NewDecodeError(env.Topic, err)
		}
		inst := instrumentFromSymbol(sym, c.Linear)
		events := make([]domain.MarketEvent, 0, len(trades))
		for _, t := range trades {
			price, _ := decimal.NewFromString(t.Price)
			amount, _ := decimal.NewFromString(t.Amount)
			side := domain.SideBuy
			if strings.EqualFold(t.Side, "Sell") {
				side = domain.SideSell
			}
			events = append(events, domain.MarketEvent{
				TimeExchange: time.UnixMilli(t.Time),
				TimeReceived: now,
				Venue:        domain.VenueBybit,
				Instrument:   inst,
				Data:         domain.Trade{ID: t.ID, Side: side, Price: price, Amount: amount},
			})
		}
		return events, nil

	case "orderbook.1", "orderbook.200":
		var ob OrderBookData
		if err := json.Unmarshal(env.Data, &ob); err != nil {
			return nil, domain.NewDecodeError(env.Topic, err)
		}
		inst := instrumentFromSymbol(sym, c.Linear)
		if channel == "orderbook.1" {
			bids := levelsFromPairs(ob.Bids)
			asks := levelsFromPairs(ob.Asks)
			l1 := domain.OrderBookL1{LastUpdate: ts}
			if len(bids) > 0 {
				l1.BestBid = &bids[0]
			}
			if len(asks) > 0 {
				l1.BestAsk = &asks[0]
			}
			return []domain.MarketEvent{{
				TimeExchange: ts, TimeReceived: now, Venue: domain.VenueBybit,
				Instrument: inst, Data: l1,
			}}, nil
		}
		action := domain.BookActionUpdate
		if env.Type == "snapshot" {
			action = domain.BookActionSnapshot
		}
		return []domain.MarketEvent{{
			TimeExchange: ts, TimeReceived: now, Venue: domain.VenueBybit,
			Instrument: inst,
			Data: domain.OrderBookEvent{
				Action: action,
				Book: domain.OrderBook{
					Sequence:   ob.Sequence,
					TimeEngine: &ts,
					Bids:       levelsFromPairs(ob.Bids),
					Asks:       levelsFromPairs(ob.Asks),
				},
			},
		}}, nil

	case "tickers":
		var t Ticker
		if err := json.Unmarshal(env.Data, &t); err != nil {
			return nil, domain.NewDecodeError(env.Topic, err)
		}
		if t.OpenInterest == "" {
			return nil, nil // partial ticker update with no OI field this tick
		}
		contracts, err := strconv.ParseFloat(t.OpenInterest, 64)
		if err != nil {
			return nil, domain.NewDecodeError(env.Topic, err)
		}
		inst := instrumentFromSymbol(sym, c.Linear)
		oi := domain.OpenInterest{Contracts: decimal.NewFromFloat(contracts), Time: &ts}
		if t.OpenInterestValue != "" {
			if notional, nerr := decimal.NewFromString(t.OpenInterestValue); nerr == nil {
				oi.Notional = &notional
			}
		}
		return []domain.MarketEvent{{
			TimeExchange: ts, TimeReceived: now, Venue: domain.VenueBybit,
			Instrument: inst, Data: oi,
		}}, nil

	case "allLiquidation":
		var liqs []Liquidation
		if err := json.Unmarshal(env.Data, &liqs); err != nil {
			return nil, domain.NewDecodeError(env.Topic, err)
		}
		inst := instrumentFromSymbol(sym, c.Linear)
		events := make([]domain.MarketEvent, 0, len(liqs))
		for _, l := range liqs {
			price, _ := decimal.NewFromString(l.Price)
			qty, _ := decimal.NewFromString(l.Quantity)
			side := domain.SideBuy
			if strings.EqualFold(l.Side, "Sell") {
				side = domain.SideSell
			}
			lt := time.UnixMilli(l.Time)
			events = append(events, domain.MarketEvent{
				TimeExchange: lt, TimeReceived: now, Venue: domain.VenueBybit,
				Instrument: inst,
				Data:       domain.Liquidation{Side: side, Price: price, Quantity: qty, Time: lt},
			})
		}
		return events, nil

	default:
		return nil, domain.NewUnknownSubscriptionError(env.Topic)
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

var quoteAssets = []string{"USDT", "USDC", "USD"}

func instrumentFromSymbol(sym string, linear bool) domain.Instrument {
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
	if linear {
		kind = domain.KindPerpetual
	}
	return domain.NewInstrument(base, quote, kind)
}
