package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the taker side of a trade or liquidation.
type Side string

const (
	SideBuy  Side = "Buy"
	SideSell Side = "Sell"
)

// EventKind tags which payload a MarketEvent carries. This is a closed sum
// type in spirit — every EventData implementation below corresponds to
// exactly one EventKind and transformers/consumers switch on it instead of
// relying on dynamic dispatch.
type EventKind string

const (
	EventTrade        EventKind = "trade"
	EventLiquidation  EventKind = "liquidation"
	EventOpenInterest EventKind = "open_interest"
	EventCVD          EventKind = "cumulative_volume_delta"
	EventOrderBookL1  EventKind = "order_book_l1"
	EventOrderBookL2  EventKind = "order_book_l2"
)

// EventData is the marker interface every normalized event payload
// implements. It exists only to let MarketEvent.Data hold any one of the
// fixed payload variants; there is no shared behavior across variants.
type EventData interface {
	Kind() EventKind
}

// Trade is a single executed trade.
type Trade struct {
	ID     string
	Side   Side
	Price  decimal.Decimal
	Amount decimal.Decimal
}

func (Trade) Kind() EventKind { return EventTrade }

// Liquidation is a forced-close trade reported by the venue.
type Liquidation struct {
	Side     Side
	Price    decimal.Decimal
	Quantity decimal.Decimal
	Time     time.Time
}

func (Liquidation) Kind() EventKind { return EventLiquidation }

// OpenInterest carries the venue's reported open-interest snapshot.
type OpenInterest struct {
	Contracts decimal.Decimal
	Notional  *decimal.Decimal
	Time      *time.Time
}

func (OpenInterest) Kind() EventKind { return EventOpenInterest }

// CVD carries the running cumulative-volume-delta totals after applying one
// trade — not just that trade's own delta.
type CVD struct {
	DeltaBase  decimal.Decimal
	DeltaQuote decimal.Decimal
}

func (CVD) Kind() EventKind { return EventCVD }

// BookLevel is a single price/amount pair at the top or within the depth of
// an order book.
type BookLevel struct {
	Price  decimal.Decimal
	Amount decimal.Decimal
}

// OrderBookL1 is a best-bid/best-ask top-of-book update.
type OrderBookL1 struct {
	BestBid    *BookLevel
	BestAsk    *BookLevel
	LastUpdate time.Time
}

func (OrderBookL1) Kind() EventKind { return EventOrderBookL1 }

// OrderBookAction distinguishes a full snapshot from an incremental update
// within the L2 sum type OrderBookEvent ∈ {Snapshot(book), Update(book)}.
type OrderBookAction string

const (
	BookActionSnapshot OrderBookAction = "Snapshot"
	BookActionUpdate   OrderBookAction = "Update"
)

// OrderBookEvent wraps a depth-of-book OrderBook tagged as either a full
// Snapshot or an incremental Update.
type OrderBookEvent struct {
	Action OrderBookAction
	Book   OrderBook
}

func (OrderBookEvent) Kind() EventKind { return EventOrderBookL2 }

// OrderBook is a depth-of-book view: sequence number, bids ordered
// descending by price, asks ordered ascending by price. Prices and amounts
// are fixed-point decimal — never binary float at this boundary.
type OrderBook struct {
	Sequence   int64
	TimeEngine *time.Time
	Bids       []BookLevel
	Asks       []BookLevel
}

// MarketEvent is the normalized envelope every transformer emits and every
// downstream sink (aggregator, broadcast) consumes. K is carried in Data as
// one of the EventData variants above; ownership moves through the pipeline
// by value, never by shared reference.
type MarketEvent struct {
	TimeExchange time.Time
	TimeReceived time.Time
	Venue        Venue
	Instrument   Instrument
	Data         EventData
}

// Kind is a convenience accessor over the wrapped payload's tag.
func (e MarketEvent) Kind() EventKind {
	if e.Data == nil {
		return ""
	}
	return e.Data.Kind()
}
