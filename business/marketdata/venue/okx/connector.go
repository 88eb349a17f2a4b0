package okx

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/cryptofeed/business/marketdata/domain"
	"github.com/fd1az/cryptofeed/business/marketdata/venue"
)

// Connector implements venue.Connector for OKX v5 public spot and
// perpetual-swap markets.
type Connector struct {
	mu sync.Mutex
	// l2 tracks, per subscription id, whether a snapshot has been seen yet:
	// updates received before a snapshot are silently dropped rather than
	// treated as errors.
	l2 map[string]bool
}

func NewConnector() *Connector {
	return &Connector{l2: make(map[string]bool)}
}

func (c *Connector) Name() domain.Venue { return domain.VenueOKX }

// Capabilities omits CapL1: OKX's public channel set (§4.A) has no
// top-of-book channel distinct from "books" L2, so there is no wire mapping
// for it in channelName below.
func (c *Connector) Capabilities(kind domain.Kind) venue.Capability {
	if kind == domain.KindPerpetual || kind == domain.KindFuture {
		return venue.CapTrade | venue.CapL2 | venue.CapLiquidation | venue.CapOpenInterest
	}
	return venue.CapTrade | venue.CapL2
}

func instID(i domain.Instrument) string {
	base, quote := strings.ToUpper(i.Base), strings.ToUpper(i.Quote)
	if i.IsPerp() {
		return base + "-" + quote + "-SWAP"
	}
	return base + "-" + quote
}

func channelName(ch domain.Channel) string {
	switch ch {
	case domain.ChannelTrade, domain.ChannelCVD:
		return "trades"
	case domain.ChannelL2:
		return "books"
	case domain.ChannelOpenInterest:
		return "open-interest"
	case domain.ChannelLiquidation:
		return "liquidation-orders"
	default:
		return ""
	}
}

// SubscriptionID derives "channel|instId" for every channel except
// liquidation-orders, which keys off instType[-uly]
// instead since OKX's liquidation feed is scoped per product type, not per
// instrument.
func (c *Connector) SubscriptionID(sub domain.Subscription) string {
	ch := channelName(sub.Channel)
	if ch == "" {
		return ""
	}
	if ch == "liquidation-orders" {
		return venue.OKXLiquidationSubscriptionID
	}
	return ch + "|" + instID(sub.Instrument)
}

func (c *Connector) BuildSubscribeFrames(subs []domain.Subscription) ([][]byte, error) {
	if len(subs) == 0 {
		return nil, fmt.Errorf("okx: empty subscription set")
	}
	args := make([]Arg, 0, len(subs))
	seen := make(map[string]bool)
	for _, s := range subs {
		ch := channelName(s.Channel)
		if ch == "" {
			return nil, fmt.Errorf("okx: unsupported channel %s", s.Channel)
		}
		var arg Arg
		if ch == "liquidation-orders" {
			arg = Arg{Channel: ch, InstType: "SWAP"}
		} else {
			arg = Arg{Channel: ch, InstID: instID(s.Instrument)}
		}
		key := arg.Channel + "|" + arg.InstID + "|" + arg.InstType
		if seen[key] {
			continue
		}
		seen[key] = true
		args = append(args, arg)
	}
	data, err := json.Marshal(WSRequest{Op: "subscribe", Args: args})
	if err != nil {
		return nil, err
	}
	return [][]byte{data}, nil
}

func (c *Connector) ValidateSubscribeResponse(frame []byte) venue.ValidationResult {
	var resp OpResponse
	if err := json.Unmarshal(frame, &resp); err != nil {
		return venue.ValidationPending
	}
	switch resp.Event {
	case "subscribe":
		return venue.ValidationOK
	case "error":
		return venue.ValidationFail
	default:
		return venue.ValidationPending
	}
}

// PingPolicy returns OKX's raw "ping" text frame, sent every 29s; the server
// replies with raw "pong" text, filtered before reaching Decode (see
// venue.IsPongText).
func (c *Connector) PingPolicy() ([]byte, time.Duration) {
	return []byte("ping"), 29 * time.Second
}

func (c *Connector) Decode(ctx context.Context, frame []byte) ([]domain.MarketEvent, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		var resp OpResponse
		if json.Unmarshal(frame, &resp) == nil {
			return nil, nil
		}
		return nil, domain.NewDecodeError("okx", err)
	}
	if env.Arg.Channel == "" {
		return nil, nil // control frame
	}

	now := time.Now()

	switch env.Arg.Channel {
	case "trades":
		var trades []Trade
		if err := json.Unmarshal(env.Data, &trades); err != nil {
			return nil, domain.NewDecodeError("okx:trades", err)
		}
		events := make([]domain.MarketEvent, 0, len(trades))
		for _, t := range trades {
			inst := instrumentFromID(t.InstID)
			price, _ := decimal.NewFromString(t.Price)
			size, _ := decimal.NewFromString(t.Size)
			side := domain.SideBuy
			if strings.EqualFold(t.Side, "sell") {
				side = domain.SideSell
			}
			ms, _ := strconv.ParseInt(t.Ts, 10, 64)
			ts := time.UnixMilli(ms)
			events = append(events, domain.MarketEvent{
				TimeExchange: ts, TimeReceived: now, Venue: domain.VenueOKX,
				Instrument: inst,
				Data:       domain.Trade{ID: t.TradeID, Side: side, Price: price, Amount: size},
			})
		}
		return events, nil

	case "books":
		var entries []BookData
		if err := json.Unmarshal(env.Data, &entries); err != nil {
			return nil, domain.NewDecodeError("okx:books", err)
		}
		if len(entries) == 0 {
			return nil, nil
		}
		subID := "books|" + env.Arg.InstID
		inst := instrumentFromID(env.Arg.InstID)

		c.mu.Lock()
		initialized := c.l2[subID]
		if env.Action == "snapshot" {
			c.l2[subID] = true
			initialized = true
		}
		c.mu.Unlock()

		if env.Action == "update" && !initialized {
			return nil, nil // dropped: update arrived before the first snapshot
		}

		action := domain.BookActionUpdate
		if env.Action == "snapshot" {
			action = domain.BookActionSnapshot
		}
		events := make([]domain.MarketEvent, 0, len(entries))
		for _, d := range entries {
			ms, _ := strconv.ParseInt(d.Ts, 10, 64)
			ts := time.UnixMilli(ms)
			events = append(events, domain.MarketEvent{
				TimeExchange: ts, TimeReceived: now, Venue: domain.VenueOKX,
				Instrument: inst,
				Data: domain.OrderBookEvent{
					Action: action,
					Book: domain.OrderBook{
						TimeEngine: &ts,
						Bids:       levelsFromOKXPairs(d.Bids),
						Asks:       levelsFromOKXPairs(d.Asks),
					},
				},
			})
		}
		return events, nil

	case "open-interest":
		var ois []OpenInterest
		if err := json.Unmarshal(env.Data, &ois); err != nil {
			return nil, domain.NewDecodeError("okx:open-interest", err)
		}
		events := make([]domain.MarketEvent, 0, len(ois))
		for _, o := range ois {
			inst := instrumentFromID(o.InstID)
			contracts, _ := decimal.NewFromString(o.OI)
			ms, _ := strconv.ParseInt(o.Ts, 10, 64)
			ts := time.UnixMilli(ms)
			oi := domain.OpenInterest{Contracts: contracts, Time: &ts}
			if o.OIUsd != "" {
				if notional, err := decimal.NewFromString(o.OIUsd); err == nil {
					oi.Notional = &notional
				}
			} else if o.OICcy != "" {
				if notional, err := decimal.NewFromString(o.OICcy); err == nil {
					oi.Notional = &notional
				}
			}
			events = append(events, domain.MarketEvent{
				TimeExchange: ts, TimeReceived: now, Venue: domain.VenueOKX,
				Instrument: inst, Data: oi,
			})
		}
		return events, nil

	case "liquidation-orders":
		var orders []LiquidationOrder
		if err := json.Unmarshal(env.Data, &orders); err != nil {
			return nil, domain.NewDecodeError("okx:liquidation-orders", err)
		}
		var events []domain.MarketEvent
		for _, o := range orders {
			inst := instrumentFromID(o.InstID)
			for _, d := range o.Details {
				price, _ := decimal.NewFromString(d.BkPx)
				qty, _ := decimal.NewFromString(d.Sz)
				side := domain.SideBuy
				if strings.EqualFold(d.Side, "sell") {
					side = domain.SideSell
				}
				ms, _ := strconv.ParseInt(d.Ts, 10, 64)
				ts := time.UnixMilli(ms)
				events = append(events, domain.MarketEvent{
					TimeExchange: ts, TimeReceived: now, Venue: domain.VenueOKX,
					Instrument: inst,
					Data:       domain.Liquidation{Side: side, Price: price, Quantity: qty, Time: ts},
				})
			}
		}
		return events, nil

	default:
		return nil, domain.NewUnknownSubscriptionError(env.Arg.Channel + "|" + env.Arg.InstID)
	}
}

func levelsFromOKXPairs(pairs [][]string) []domain.BookLevel {
	levels := make([]domain.BookLevel, 0, len(pairs))
	for _, p := range pairs {
		if len(p) < 2 {
			continue
		}
		price, _ := decimal.NewFromString(p[0])
		amount, _ := decimal.NewFromString(p[1])
		levels = append(levels, domain.BookLevel{Price: price, Amount: amount})
	}
	return levels
}

// instrumentFromID splits OKX's "BASE-QUOTE" or "BASE-QUOTE-SWAP" instId.
func instrumentFromID(id string) domain.Instrument {
	parts := strings.Split(id, "-")
	if len(parts) < 2 {
		return domain.NewInstrument(id, "", domain.KindSpot)
	}
	kind := domain.KindSpot
	if len(parts) >= 3 && strings.EqualFold(parts[2], "SWAP") {
		kind = domain.KindPerpetual
	}
	return domain.NewInstrument(parts[0], parts[1], kind)
}
