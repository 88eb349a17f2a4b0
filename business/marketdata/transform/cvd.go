// Package transform holds the venue-agnostic event transformers that sit
// between a venue.Connector's raw decode and the aggregator: logic that
// depends only on the normalized domain.MarketEvent stream, not on any one
// exchange's wire format.
package transform

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/fd1az/cryptofeed/business/marketdata/domain"
)

type cvdKey struct {
	venue domain.Venue
	inst  domain.Instrument
}

type cvdTotals struct {
	deltaBase  decimal.Decimal
	deltaQuote decimal.Decimal
}

// CVDAccumulator derives a running cumulative-volume-delta total from a
// trade event stream: each trade contributes a signed base amount (+amount
// for Buy, -amount for Sell) and its quote-denominated equivalent,
// accumulated forever per instrument.
//
// Totals are keyed by (Venue, Instrument) rather than Instrument alone: a
// trade feed from two venues for the same symbol must not share one running
// total, since each venue's trade tape is an independent sample of flow.
type CVDAccumulator struct {
	mu     sync.Mutex
	totals map[cvdKey]*cvdTotals
}

// NewCVDAccumulator builds an empty accumulator.
func NewCVDAccumulator() *CVDAccumulator {
	return &CVDAccumulator{totals: make(map[cvdKey]*cvdTotals)}
}

// Apply folds one trade event into the running total and returns the CVD
// event carrying the post-update totals. Apply panics if ev.Data is not a
// domain.Trade; callers must only invoke it for trade-kind events.
func (a *CVDAccumulator) Apply(ev domain.MarketEvent) domain.MarketEvent {
	trade := ev.Data.(domain.Trade)

	signedBase := trade.Amount
	if trade.Side == domain.SideSell {
		signedBase = signedBase.Neg()
	}
	signedQuote := signedBase.Mul(trade.Price)

	key := cvdKey{venue: ev.Venue, inst: ev.Instrument}

	a.mu.Lock()
	totals, ok := a.totals[key]
	if !ok {
		totals = &cvdTotals{}
		a.totals[key] = totals
	}
	totals.deltaBase = totals.deltaBase.Add(signedBase)
	totals.deltaQuote = totals.deltaQuote.Add(signedQuote)
	deltaBase, deltaQuote := totals.deltaBase, totals.deltaQuote
	a.mu.Unlock()

	return domain.MarketEvent{
		TimeExchange: ev.TimeExchange,
		TimeReceived: ev.TimeReceived,
		Venue:        ev.Venue,
		Instrument:   ev.Instrument,
		Data:         domain.CVD{DeltaBase: deltaBase, DeltaQuote: deltaQuote},
	}
}

// Reset clears the running total for one (venue, instrument) pair, so the
// next Apply for that pair starts again from zero.
func (a *CVDAccumulator) Reset(v domain.Venue, inst domain.Instrument) {
	a.mu.Lock()
	delete(a.totals, cvdKey{venue: v, inst: inst})
	a.mu.Unlock()
}
