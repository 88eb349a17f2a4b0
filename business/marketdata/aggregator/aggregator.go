package aggregator

import (
	"math"
	"strings"
	"sync"
	"time"

	"github.com/fd1az/cryptofeed/business/marketdata/domain"
	"github.com/fd1az/cryptofeed/internal/asset"
)

// Aggregator is the single in-memory derived-state store: one writer task
// ingests the merged MarketEvent stream under Aggregator's mutex; readers
// call Snapshot to get a value-typed copy, never a reference into the live
// buffers.
type Aggregator struct {
	mu sync.Mutex

	tickers        map[string]*tickerState
	exchangeSeen   map[domain.Venue]time.Time
	thresholds     Thresholds
	correlationSet [3]string // fixed BTC/ETH/SOL row/column order
	assets         *asset.Registry

	trad *TradMarketState
}

// New builds an empty Aggregator. correlationAssets fixes the row/column
// order of the cross-ticker correlation matrix (a 3x3 grid over BTC/ETH/
// SOL by default); callers outside the default wiring may pass a different
// triple for testing. assets supplies per-ticker metadata (liquidation
// bucket width, decimals); a nil registry falls back to the $10 default
// bucket for every ticker.
func New(thresholds Thresholds, correlationAssets [3]string, assets *asset.Registry) *Aggregator {
	return &Aggregator{
		tickers:        make(map[string]*tickerState),
		exchangeSeen:   make(map[domain.Venue]time.Time),
		thresholds:     thresholds,
		correlationSet: correlationAssets,
		assets:         assets,
		trad:           NewTradMarketState(),
	}
}

// Ingest folds one normalized MarketEvent into the aggregator's state. This
// is the sole write path; every event passes through one critical section.
func (a *Aggregator) Ingest(ev domain.MarketEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.exchangeSeen[ev.Venue] = ev.TimeReceived

	switch data := ev.Data.(type) {
	case domain.Trade:
		ts := state(a, ev.Instrument.Symbol())
		isSpot, isPerp := classify(ev.Instrument, ev.Venue)
		price, _ := data.Price.Float64()
		amount, _ := data.Amount.Float64()
		side := Side(data.Side)
		ts.pushTrade(ev.TimeExchange, side, price, amount, string(ev.Venue), isSpot, isPerp)

		if strings.EqualFold(ev.Instrument.Symbol(), "btc") {
			a.trad.IngestTick("BTC", ev.TimeExchange, price, amount)
		}

	case domain.Liquidation:
		ts := state(a, ev.Instrument.Symbol())
		price, _ := data.Price.Float64()
		qty, _ := data.Quantity.Float64()
		ts.pushLiquidation(ev.TimeExchange, Side(data.Side), price, qty, string(ev.Venue))

	case domain.OpenInterest:
		ts := state(a, ev.Instrument.Symbol())
		contracts, _ := data.Contracts.Float64()
		ts.pushOpenInterest(string(ev.Venue), contracts)

	case domain.OrderBookL1:
		ts := state(a, ev.Instrument.Symbol())
		isSpot, isPerp := classify(ev.Instrument, ev.Venue)
		mid, spreadPct, bestBid, bestAsk := l1Mid(data)
		ts.pushOrderBookL1(ev.TimeExchange, mid, spreadPct, bestBid, bestAsk, isSpot, isPerp)

	case domain.OrderBookEvent:
		ts := state(a, ev.Instrument.Symbol())
		isSpot, isPerp := classify(ev.Instrument, ev.Venue)
		if mid := l2Mid(data.Book); mid != nil {
			ts.pushOrderBookL1(ev.TimeExchange, mid, nil, topLevel(data.Book.Bids), topLevel(data.Book.Asks), isSpot, isPerp)
		}

	case domain.CVD:
		// The aggregator derives its own rolling CVD directly from the
		// trades buffer (tickerState.cvdTotal); the transform-layer CVD
		// event exists for the broadcast wire format, not for aggregation.
	}
}

// IngestBridgeTick feeds one external futures-bridge tick (ES/NQ) into the
// micro-bar sub-engine. ts lets the bridge replay backfilled ticks at their
// own historical timestamp rather than at arrival time, so each tick buckets
// into its 5-second bar using its own timestamp, not arrival order.
func (a *Aggregator) IngestBridgeTick(symbol string, ts time.Time, price, size float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.trad.IngestTick(symbol, ts, price, size)
}

func state(a *Aggregator, ticker string) *tickerState {
	ticker = strings.ToUpper(ticker)
	ts, ok := a.tickers[ticker]
	if !ok {
		ts = newTickerState(ticker, a.thresholds, a.assets)
		a.tickers[ticker] = ts
	}
	return ts
}

// classify tags a trade is_spot/is_perp from the instrument kind, falling
// back to a lowercased venue-name substring match when the kind alone
// doesn't resolve it. Never defaults true silently — if neither matches,
// both are false and the trade is excluded from perp-only aggregates.
func classify(inst domain.Instrument, venue domain.Venue) (isSpot, isPerp bool) {
	isSpot = inst.IsSpot()
	isPerp = inst.IsPerp()
	if isSpot || isPerp {
		return isSpot, isPerp
	}
	v := strings.ToLower(string(venue))
	if strings.Contains(v, "spot") {
		return true, false
	}
	if strings.Contains(v, "perp") || strings.Contains(v, "futures") || strings.Contains(v, "swap") {
		return false, true
	}
	return false, false
}

func l1Mid(d domain.OrderBookL1) (mid, spreadPct *float64, bestBid, bestAsk *PriceSize) {
	if d.BestBid == nil || d.BestAsk == nil {
		return nil, nil, nil, nil
	}
	bidP, _ := d.BestBid.Price.Float64()
	bidQ, _ := d.BestBid.Amount.Float64()
	askP, _ := d.BestAsk.Price.Float64()
	askQ, _ := d.BestAsk.Amount.Float64()
	m := (bidP + askP) / 2
	var sp *float64
	if m > 0 {
		v := (askP - bidP) / m * 100.0
		sp = &v
	}
	return &m, sp, &PriceSize{Price: bidP, Size: bidQ}, &PriceSize{Price: askP, Size: askQ}
}

func l2Mid(book domain.OrderBook) *float64 {
	if len(book.Bids) == 0 || len(book.Asks) == 0 {
		return nil
	}
	bidP, _ := book.Bids[0].Price.Float64()
	askP, _ := book.Asks[0].Price.Float64()
	m := (bidP + askP) / 2
	return &m
}

func topLevel(levels []domain.BookLevel) *PriceSize {
	if len(levels) == 0 {
		return nil
	}
	p, _ := levels[0].Price.Float64()
	a, _ := levels[0].Amount.Float64()
	return &PriceSize{Price: p, Size: a}
}

// Snapshot rebuilds the full bounded summary: every ticker's TickerSnapshot,
// the BTC/ETH/SOL correlation matrix, and per-venue liveness. Held fields
// are copied out; no slice or map backing a live buffer is handed to the
// caller.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	tickers := make(map[string]TickerSnapshot, len(a.tickers))
	for k, v := range a.tickers {
		tickers[k] = v.toSnapshot()
	}

	health := make(map[string]bool, len(a.exchangeSeen))
	now := time.Now()
	for v, seen := range a.exchangeSeen {
		health[string(v)] = now.Sub(seen) < 30*time.Second
	}

	return Snapshot{
		Tickers:        tickers,
		Correlation:    a.correlationMatrix(),
		ExchangeHealth: health,
	}
}

// TradMarketSnapshot returns the current micro-bar sub-engine summary for
// the operator TUI / broadcast.
func (a *Aggregator) TradMarketSnapshot() TradMarketSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.trad.Snapshot()
}

func (a *Aggregator) correlationMatrix() CorrelationMatrix {
	assets := a.correlationSet
	m := CorrelationMatrix{Assets: assets}
	series := make([][]float64, 3)
	for i, sym := range assets {
		if ts, ok := a.tickers[strings.ToUpper(sym)]; ok {
			series[i] = recentPrices(ts.priceHistory, 100)
		}
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if i == j {
				m.Matrix[i][j] = 1.0
				continue
			}
			m.Matrix[i][j] = pearson(series[i], series[j])
		}
	}
	return m
}

func recentPrices(history []timedValue, n int) []float64 {
	if len(history) > n {
		history = history[len(history)-n:]
	}
	out := make([]float64, len(history))
	for i, v := range history {
		out[i] = v.value
	}
	return out
}

// pearson computes the Pearson correlation coefficient of two equal-length
// series, clamped to [-1,1]. Fewer than 5 points or mismatched lengths yield
// a neutral 0 rather than an optional, since correlation matrix cells are
// always populated floats.
func pearson(xs, ys []float64) float64 {
	n := len(xs)
	if n != len(ys) || n < 5 {
		return 0
	}
	var sumX, sumY float64
	for i := 0; i < n; i++ {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX, meanY := sumX/float64(n), sumY/float64(n)

	var cov, varX, varY float64
	for i := 0; i < n; i++ {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX <= 0 || varY <= 0 {
		return 0
	}
	r := cov / (math.Sqrt(varX) * math.Sqrt(varY))
	return clamp(r, -1, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
