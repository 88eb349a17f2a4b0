// Package aggregator maintains the rolling per-instrument derived state
// (order flow, CVD, liquidation clusters, basis, whale detection, and
// cross-asset correlation) that downstream consumers read as a snapshot.
// The retention windows, whale fairness algorithm, liquidation bucketing,
// cascade-risk formula, basis deadband, and CVD-divergence truth table all
// live in tickerState (ticker_state.go).
package aggregator

import "time"

// Side mirrors domain.Side locally so this package has no compile-time
// dependency on the wire-decoding layer beyond the MarketEvent it consumes.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Snapshot is the full aggregated state returned to broadcast consumers.
type Snapshot struct {
	Tickers        map[string]TickerSnapshot
	Correlation    CorrelationMatrix
	ExchangeHealth map[string]bool
}

// CorrelationMatrix is the 3x3 Pearson correlation grid over BTC/ETH/SOL
// price history, in that fixed row/column order.
type CorrelationMatrix struct {
	Assets [3]string
	Matrix [3][3]float64
}

// TickerSnapshot is the pre-computed, per-ticker (base-asset) metric set.
type TickerSnapshot struct {
	Ticker            string
	LatestPrice       *float64
	LatestSpreadPct   *float64
	SpotMid           *float64
	PerpMid           *float64
	Basis             *BasisStats
	Orderflow1m       OrderflowStats
	Orderflow5m       OrderflowStats
	ExchangeDominance map[string]float64
	VWAP1m            *float64
	VWAP5m            *float64
	BestBid           *PriceSize
	BestAsk           *PriceSize
	ExchangePrices    map[string]float64
	Whales            []WhaleRecord
	Liquidations      []LiquidationCluster
	LiqRatePerMin     float64
	LiqBucket         float64
	CascadeRisk       float64
	NextCascadeLevel  *CascadeLevel
	ProtectionLevel   *CascadeLevel
	CVD               CVDSummary
	CVD1mTotal        float64
	CVDPerExchange5m  map[string]float64
	Trades5m          int
	Vol5m             float64
	AvgTradeUSD5m     float64
	OITotal           float64
	TickDirection     TickDirection
	TickDirection5m   TickDirection
	TradeSpeed        float64
	AvgTradeUSD       float64
	CVDDivergence     DivergenceSignal
}

// PriceSize is a (price, size) pair, used for best bid/ask.
type PriceSize struct {
	Price float64
	Size  float64
}

// OrderflowStats summarizes buy/sell pressure over a rolling window.
type OrderflowStats struct {
	BuyUSD        float64
	SellUSD       float64
	ImbalancePct  float64
	NetFlowPerMin float64
	TradesPerSec  float64
}

// BasisState classifies the spot/perp spread.
type BasisState string

const (
	BasisUnknown       BasisState = "Unknown"
	BasisContango      BasisState = "Contango"
	BasisBackwardation BasisState = "Backwardation"
)

// BasisStats is the perp-vs-spot basis computed from the latest mids.
type BasisStats struct {
	BasisUSD float64
	BasisPct float64
	State    BasisState
	Steep    bool
}

// LiquidationCluster groups liquidations into one price bucket.
type LiquidationCluster struct {
	PriceLevel float64
	TotalUSD   float64
	LongCount  int
	ShortCount int
}

// CascadeLevel flags a liquidation cluster dense enough to matter as a
// directional risk marker relative to the current price.
type CascadeLevel struct {
	Price    float64
	TotalUSD float64
	Side     Side
}

// WhaleRecord is one trade large enough to clear the whale-notional threshold.
type WhaleRecord struct {
	Time       time.Time
	Side       Side
	VolumeUSD  float64
	Price      float64
	Exchange   string
	MarketKind string // "SPOT" | "PERP" | "OTHER"
}

// CVDSummary is the rolling cumulative-volume-delta total and its velocity.
type CVDSummary struct {
	TotalQuote    float64
	VelocityQuote float64
}

// TickDirection counts upticks vs downticks over a window.
type TickDirection struct {
	Upticks    uint64
	Downticks  uint64
	UptickPct  float64
}

// DivergenceSignal classifies price vs CVD trend divergence.
type DivergenceSignal string

const (
	DivergenceBullish DivergenceSignal = "Bullish"
	DivergenceBearish DivergenceSignal = "Bearish"
	DivergenceAligned DivergenceSignal = "Aligned"
	DivergenceNeutral DivergenceSignal = "Neutral"
	DivergenceUnknown DivergenceSignal = "Unknown"
)

// Retention windows for the rolling buffers.
const (
	TradeRetention = 15 * time.Minute
	LiqRetention   = 10 * time.Minute
	CVDRetention   = 5 * time.Minute
	PriceRetention = 15 * time.Minute
)

// Thresholds, overridable via internal/config's AggregatorConfig.
type Thresholds struct {
	WhaleUSD         float64
	MaxWhales        int
	LiqDangerUSD     float64
	CascadeCapUSD    float64 // denominator of the cascade-risk percentage
}

// DefaultThresholds are the fallback values used when no config overrides them.
func DefaultThresholds() Thresholds {
	return Thresholds{
		WhaleUSD:      500_000.0,
		MaxWhales:     500,
		LiqDangerUSD:  1_000_000.0,
		CascadeCapUSD: 50_000_000.0,
	}
}
