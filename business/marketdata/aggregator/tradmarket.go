package aggregator

import (
	"math"
	"time"
)

// barWindow is the micro-bar aggregation interval.
const barWindow = 5 * time.Second

// ringCapacity is how many completed bars each symbol retains.
const ringCapacity = 60

// staleAfter flags a symbol as stale if no tick has arrived in this long,
// measured against wall-clock arrival time rather than the tick's own
// timestamp.
const staleAfter = 30 * time.Second

// leadLagMaxBars bounds the lead/lag scan to ±6 bars either side.
const leadLagMaxBars = 6

// minDivergenceSamples is the minimum spread-history length before a
// z-score is computed at all, matching the Rust original's
// calc_divergence_zscore, which returns None below this length rather than
// standardizing against a near-empty sample.
const minDivergenceSamples = 20

// divergenceHistoryLen is how many spread samples back the z-score compares
// the current spread against.
const divergenceHistoryLen = 60

// returnWindowBars is how many trailing bars feed the correlation inputs.
const returnWindowBars = 12

// Bar is one completed OHLCV micro-bar.
type Bar struct {
	Start  time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

type symbolBars struct {
	bars        []Bar // ring, oldest first, capped at ringCapacity
	current     *Bar
	lastArrival time.Time
}

// TradMarketState is the ES/NQ/BTC micro-bar sub-engine: per-symbol 5s
// OHLCV bars built from the tick's own timestamp, with cross-asset
// correlation, divergence z-score, and lead-lag recomputed on every ES bar
// completion.
type TradMarketState struct {
	symbols map[string]*symbolBars

	spreadHistory []float64 // last divergenceHistoryLen samples of btc_return - es_return

	corrESNQ    float64
	corrESBTC   float64
	divergenceZ float64
	leadLagBars int
}

// NewTradMarketState builds an empty micro-bar engine.
func NewTradMarketState() *TradMarketState {
	return &TradMarketState{symbols: make(map[string]*symbolBars)}
}

// IngestTick folds one tick into symbol's current bar, aligning to the
// bucket the tick's own timestamp falls in — not wall-clock arrival time —
// so a burst of backfilled ticks spanning minutes produces the same bar
// sequence a live feed would. Ticks with non-positive price or timestamp
// are rejected outright.
func (t *TradMarketState) IngestTick(symbol string, ts time.Time, price, size float64) {
	if price <= 0 || ts.IsZero() || ts.Unix() <= 0 {
		return
	}

	sb, ok := t.symbols[symbol]
	if !ok {
		sb = &symbolBars{}
		t.symbols[symbol] = sb
	}
	sb.lastArrival = time.Now()

	bucket := ts.Truncate(barWindow)

	if sb.current == nil {
		sb.current = &Bar{Start: bucket, Open: price, High: price, Low: price, Close: price, Volume: size}
		return
	}

	if bucket.After(sb.current.Start) {
		t.completeBar(symbol, sb)
		sb.current = &Bar{Start: bucket, Open: price, High: price, Low: price, Close: price, Volume: size}
		return
	}

	// Same bucket (including late-but-not-yet-rolled-over backfill ticks):
	// fold into the still-open bar.
	b := sb.current
	if price > b.High {
		b.High = price
	}
	if price < b.Low {
		b.Low = price
	}
	b.Close = price
	b.Volume += size
}

func (t *TradMarketState) completeBar(symbol string, sb *symbolBars) {
	sb.bars = append(sb.bars, *sb.current)
	if len(sb.bars) > ringCapacity {
		sb.bars = sb.bars[len(sb.bars)-ringCapacity:]
	}
	if symbol == "ES" {
		t.recompute()
	}
}

// recompute runs on every ES bar completion, not on a wall-clock timer:
// 12-bar returns, ES/NQ and ES/BTC Pearson correlation, the
// btc-minus-es spread history, its divergence z-score, and a ±6-bar
// lead-lag scan.
func (t *TradMarketState) recompute() {
	es := t.returns("ES")
	nq := t.returns("NQ")
	btc := t.returns("BTC")

	t.corrESNQ = pearson(es, nq)
	t.corrESBTC = pearson(es, btc)

	if len(es) > 0 && len(btc) > 0 {
		spread := btc[len(btc)-1] - es[len(es)-1]
		t.spreadHistory = append(t.spreadHistory, spread)
		if len(t.spreadHistory) > divergenceHistoryLen {
			t.spreadHistory = t.spreadHistory[len(t.spreadHistory)-divergenceHistoryLen:]
		}
		if len(t.spreadHistory) >= minDivergenceSamples {
			t.divergenceZ = zscore(spread, t.spreadHistory)
		} else {
			t.divergenceZ = 0
		}
	}

	t.leadLagBars = leadLag(es, btc, leadLagMaxBars)
}

// returns computes simple bar-over-bar returns over the trailing
// returnWindowBars+1 closes for symbol (empty if too few bars exist yet).
func (t *TradMarketState) returns(symbol string) []float64 {
	sb, ok := t.symbols[symbol]
	if !ok {
		return nil
	}
	bars := sb.bars
	if len(bars) > returnWindowBars+1 {
		bars = bars[len(bars)-(returnWindowBars+1):]
	}
	if len(bars) < 2 {
		return nil
	}
	out := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		prev := bars[i-1].Close
		if prev == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (bars[i].Close-prev)/prev)
	}
	return out
}

// zscore standardizes value against history's own mean/stdev; a history with
// zero variance (or no samples) yields 0 rather than dividing by zero.
func zscore(value float64, history []float64) float64 {
	n := len(history)
	if n == 0 {
		return 0
	}
	var sum float64
	for _, v := range history {
		sum += v
	}
	mean := sum / float64(n)

	var variance float64
	for _, v := range history {
		d := v - mean
		variance += d * d
	}
	variance /= float64(n)
	stdev := math.Sqrt(variance)
	if stdev == 0 {
		return 0
	}
	return (value - mean) / stdev
}

// leadLag scans lags in [-maxLag, maxLag] and returns the lag whose shifted
// correlation between a and b has the largest magnitude — the glossary's
// "argmax over lags of cross-correlation, indicating which series moves
// first." A positive lag means a leads b by that many bars.
func leadLag(a, b []float64, maxLag int) int {
	bestLag := 0
	bestAbs := -1.0
	for lag := -maxLag; lag <= maxLag; lag++ {
		as, bs := shift(a, b, lag)
		if len(as) < 5 {
			continue
		}
		r := pearson(as, bs)
		if abs := math.Abs(r); abs > bestAbs {
			bestAbs = abs
			bestLag = lag
		}
	}
	return bestLag
}

// shift aligns a and b for a given lag: lag>0 compares a[i] against
// b[i+lag] (a leading b); lag<0 compares a[i+|lag|] against b[i].
func shift(a, b []float64, lag int) ([]float64, []float64) {
	if lag >= 0 {
		if lag >= len(b) {
			return nil, nil
		}
		n := min(len(a), len(b)-lag)
		return a[:n], b[lag : lag+n]
	}
	lag = -lag
	if lag >= len(a) {
		return nil, nil
	}
	n := min(len(a)-lag, len(b))
	return a[lag : lag+n], b[:n]
}

// TradMarketSnapshot is the value-typed summary handed to consumers.
type TradMarketSnapshot struct {
	Bars            map[string][]Bar
	CorrelationESNQ float64
	CorrelationESBTC float64
	DivergenceZ     float64
	LeadLagBars     int
	Stale           map[string]bool
}

// Snapshot copies out every bar ring and the latest cross-asset signals.
func (t *TradMarketState) Snapshot() TradMarketSnapshot {
	bars := make(map[string][]Bar, len(t.symbols))
	stale := make(map[string]bool, len(t.symbols))
	now := time.Now()
	for sym, sb := range t.symbols {
		cp := make([]Bar, len(sb.bars))
		copy(cp, sb.bars)
		bars[sym] = cp
		stale[sym] = !sb.lastArrival.IsZero() && now.Sub(sb.lastArrival) > staleAfter
	}
	return TradMarketSnapshot{
		Bars:             bars,
		CorrelationESNQ:  t.corrESNQ,
		CorrelationESBTC: t.corrESBTC,
		DivergenceZ:      t.divergenceZ,
		LeadLagBars:      t.leadLagBars,
		Stale:            stale,
	}
}
