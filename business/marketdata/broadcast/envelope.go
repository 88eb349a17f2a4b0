package broadcast

import (
	"encoding/json"
	"time"

	"github.com/fd1az/cryptofeed/business/marketdata/domain"
)

// envelope is the downstream wire shape every market event is re-encoded
// into: {time_exchange, time_received, exchange, instrument, kind, data}.
type envelope struct {
	TimeExchange time.Time       `json:"time_exchange"`
	TimeReceived time.Time       `json:"time_received"`
	Exchange     string          `json:"exchange"`
	Instrument   instrumentWire  `json:"instrument"`
	Kind         domain.EventKind `json:"kind"`
	Data         any             `json:"data"`
}

type instrumentWire struct {
	Base  string     `json:"base"`
	Quote string     `json:"quote"`
	Kind  domain.Kind `json:"kind"`
}

type levelWire struct {
	Price  string `json:"price"`
	Amount string `json:"amount"`
}

func levelWireOf(l *domain.BookLevel) *levelWire {
	if l == nil {
		return nil
	}
	return &levelWire{Price: l.Price.String(), Amount: l.Amount.String()}
}

func levelsWireOf(levels []domain.BookLevel) []levelWire {
	out := make([]levelWire, len(levels))
	for i, l := range levels {
		out[i] = levelWire{Price: l.Price.String(), Amount: l.Amount.String()}
	}
	return out
}

// toEnvelope translates a normalized MarketEvent into the wire envelope:
// prices and level amounts are rendered as decimal strings for L1/L2 to
// preserve precision, every other numeric stays a JSON number.
func toEnvelope(ev domain.MarketEvent) envelope {
	return envelope{
		TimeExchange: ev.TimeExchange,
		TimeReceived: ev.TimeReceived,
		Exchange:     string(ev.Venue),
		Instrument: instrumentWire{
			Base:  ev.Instrument.Base,
			Quote: ev.Instrument.Quote,
			Kind:  ev.Instrument.Kind,
		},
		Kind: ev.Kind(),
		Data: wireData(ev.Data),
	}
}

func wireData(data domain.EventData) any {
	switch d := data.(type) {
	case domain.Trade:
		return struct {
			ID     string      `json:"id"`
			Price  json.Number `json:"price"`
			Amount json.Number `json:"amount"`
			Side   domain.Side `json:"side"`
		}{ID: d.ID, Price: json.Number(d.Price.String()), Amount: json.Number(d.Amount.String()), Side: d.Side}

	case domain.Liquidation:
		return struct {
			Side     domain.Side `json:"side"`
			Price    json.Number `json:"price"`
			Quantity json.Number `json:"quantity"`
			Time     time.Time   `json:"time"`
		}{Side: d.Side, Price: json.Number(d.Price.String()), Quantity: json.Number(d.Quantity.String()), Time: d.Time}

	case domain.OpenInterest:
		var notional *json.Number
		if d.Notional != nil {
			s := json.Number(d.Notional.String())
			notional = &s
		}
		return struct {
			Contracts json.Number  `json:"contracts"`
			Notional  *json.Number `json:"notional,omitempty"`
			Time      *time.Time   `json:"time,omitempty"`
		}{Contracts: json.Number(d.Contracts.String()), Notional: notional, Time: d.Time}

	case domain.CVD:
		return struct {
			DeltaBase  json.Number `json:"delta_base"`
			DeltaQuote json.Number `json:"delta_quote"`
		}{DeltaBase: json.Number(d.DeltaBase.String()), DeltaQuote: json.Number(d.DeltaQuote.String())}

	case domain.OrderBookL1:
		return struct {
			LastUpdate time.Time  `json:"last_update_time"`
			BestBid    *levelWire `json:"best_bid,omitempty"`
			BestAsk    *levelWire `json:"best_ask,omitempty"`
		}{LastUpdate: d.LastUpdate, BestBid: levelWireOf(d.BestBid), BestAsk: levelWireOf(d.BestAsk)}

	case domain.OrderBookEvent:
		book := struct {
			Sequence   int64       `json:"sequence"`
			TimeEngine *time.Time  `json:"time_engine,omitempty"`
			Bids       []levelWire `json:"bids"`
			Asks       []levelWire `json:"asks"`
		}{
			Sequence:   d.Book.Sequence,
			TimeEngine: d.Book.TimeEngine,
			Bids:       levelsWireOf(d.Book.Bids),
			Asks:       levelsWireOf(d.Book.Asks),
		}
		if d.Action == domain.BookActionSnapshot {
			return map[string]any{"Snapshot": book}
		}
		return map[string]any{"Update": book}

	default:
		return nil
	}
}
