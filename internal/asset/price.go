package asset

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// pricePrecision bounds the division precision used when inverting a price;
// 18 places comfortably exceeds any venue's quoted tick size.
const pricePrecision = 18

// Price represents an exchange rate between two assets, as observed at a
// point in time (e.g. last trade price, best bid/ask mid). Stored as
// decimal.Decimal end to end — this service never converts a price to
// binary float except at a metrics/display boundary.
type Price struct {
	rate      decimal.Decimal
	base      *Asset
	quote     *Asset
	timestamp time.Time
}

// NewPrice creates a new price from a decimal rate.
func NewPrice(base, quote *Asset, rate decimal.Decimal, timestamp time.Time) Price {
	if base == nil || quote == nil {
		panic("asset: nil base or quote in price")
	}
	if rate.IsNegative() {
		panic("asset: negative price rate")
	}
	return Price{rate: rate, base: base, quote: quote, timestamp: timestamp}
}

// NewPriceNow creates a price with current timestamp.
func NewPriceNow(base, quote *Asset, rate decimal.Decimal) Price {
	return NewPrice(base, quote, rate, time.Now())
}

// Rate returns the price rate.
func (p Price) Rate() decimal.Decimal {
	return p.rate
}

// Base returns the base asset.
func (p Price) Base() *Asset {
	return p.base
}

// Quote returns the quote asset.
func (p Price) Quote() *Asset {
	return p.quote
}

// Timestamp returns when this price was observed.
func (p Price) Timestamp() time.Time {
	return p.timestamp
}

// Pair returns the trading pair symbol (e.g., "ETH/USDT").
func (p Price) Pair() string {
	if p.base == nil || p.quote == nil {
		return "???/???"
	}
	return fmt.Sprintf("%s/%s", p.base.Symbol(), p.quote.Symbol())
}

// IsZero returns true if the price is zero.
func (p Price) IsZero() bool {
	return p.rate.IsZero()
}

// Invert returns the inverse price (e.g., ETH/USDT -> USDT/ETH).
func (p Price) Invert() Price {
	if p.IsZero() {
		return Price{rate: decimal.Zero, base: p.quote, quote: p.base, timestamp: p.timestamp}
	}
	inverted := decimal.NewFromInt(1).DivRound(p.rate, pricePrecision)
	return Price{rate: inverted, base: p.quote, quote: p.base, timestamp: p.timestamp}
}

// Convert converts an amount from base to quote currency using this price.
func (p Price) Convert(amount Amount) (Amount, error) {
	if amount.Asset() == nil {
		return Amount{}, ErrNilAsset
	}
	if !amount.Asset().ID().Equals(p.base.ID()) {
		return Amount{}, fmt.Errorf("%w: expected %s, got %s",
			ErrAssetMismatch, p.base.Symbol(), amount.Asset().Symbol())
	}
	return NewAmount(p.quote, amount.value.Mul(p.rate)), nil
}

// String returns a human-readable representation.
func (p Price) String() string {
	return fmt.Sprintf("%s %s", p.rate.String(), p.Pair())
}

// Age returns how old this price is.
func (p Price) Age() time.Duration {
	return time.Since(p.timestamp)
}

// IsStale returns true if the price is older than the given duration.
func (p Price) IsStale(maxAge time.Duration) bool {
	return p.Age() > maxAge
}
