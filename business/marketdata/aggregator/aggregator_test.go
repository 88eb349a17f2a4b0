package aggregator

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/cryptofeed/business/marketdata/domain"
	"github.com/fd1az/cryptofeed/internal/asset"
)

func tradeEvent(venue domain.Venue, kind domain.Kind, side domain.Side, price, amount string, at time.Time) domain.MarketEvent {
	return domain.MarketEvent{
		TimeExchange: at,
		TimeReceived: at,
		Venue:        venue,
		Instrument:   domain.NewInstrument("BTC", "USDT", kind),
		Data: domain.Trade{
			Side:   side,
			Price:  decimal.RequireFromString(price),
			Amount: decimal.RequireFromString(amount),
		},
	}
}

func TestOrderflowImbalanceBoundedAndNeutralWhenEmpty(t *testing.T) {
	agg := New(DefaultThresholds(), [3]string{"BTC", "ETH", "SOL"}, asset.DefaultRegistry())
	snap := agg.Snapshot()
	if _, ok := snap.Tickers["BTC"]; ok {
		t.Fatalf("expected no ticker state before any ingest")
	}
	if empty := newTickerState("BTC", DefaultThresholds(), nil).orderflow(60 * time.Second); empty.ImbalancePct != 50.0 {
		t.Fatalf("expected neutral 50%% imbalance with no trades, got %f", empty.ImbalancePct)
	}

	now := time.Now()
	agg.Ingest(tradeEvent(domain.VenueBinance, domain.KindPerpetual, domain.SideBuy, "30000", "1", now))

	snap = agg.Snapshot()
	of := snap.Tickers["BTC"].Orderflow1m
	if of.ImbalancePct != 100.0 {
		t.Fatalf("expected 100%% buy imbalance with only a buy trade, got %f", of.ImbalancePct)
	}
	if of.ImbalancePct < 0 || of.ImbalancePct > 100 {
		t.Fatalf("imbalance out of [0,100] bounds: %f", of.ImbalancePct)
	}
}

func TestWhaleFairnessAcrossVenues(t *testing.T) {
	th := DefaultThresholds()
	th.WhaleUSD = 100_000
	th.MaxWhales = 9 // each venue's whale deque holds up to 9; the 20-entry list gives 3 venues max(3, 20/3) = 6 slots each
	agg := New(th, [3]string{"BTC", "ETH", "SOL"}, asset.DefaultRegistry())

	now := time.Now()
	for _, v := range []domain.Venue{domain.VenueBinance, domain.VenueBybit, domain.VenueOKX} {
		for i := 0; i < 5; i++ {
			agg.Ingest(tradeEvent(v, domain.KindPerpetual, domain.SideBuy, "30000", "10", now.Add(time.Duration(i)*time.Millisecond)))
		}
	}

	snap := agg.Snapshot()
	counts := map[string]int{}
	for _, w := range snap.Tickers["BTC"].Whales {
		counts[w.Exchange]++
	}
	for _, v := range []domain.Venue{domain.VenueBinance, domain.VenueBybit, domain.VenueOKX} {
		if counts[string(v)] < 3 {
			t.Fatalf("expected at least 3 whale entries from %s, got %d", v, counts[string(v)])
		}
	}
}

func TestBasisDeadbandAndSteepClassification(t *testing.T) {
	agg := New(DefaultThresholds(), [3]string{"BTC", "ETH", "SOL"}, asset.DefaultRegistry())
	now := time.Now()

	spotL1 := domain.MarketEvent{
		TimeExchange: now, TimeReceived: now,
		Venue:      domain.VenueBinance,
		Instrument: domain.NewInstrument("BTC", "USDT", domain.KindSpot),
		Data: domain.OrderBookL1{
			BestBid: &domain.BookLevel{Price: decimal.RequireFromString("99.99"), Amount: decimal.RequireFromString("1")},
			BestAsk: &domain.BookLevel{Price: decimal.RequireFromString("100.01"), Amount: decimal.RequireFromString("1")},
		},
	}
	perpL1 := domain.MarketEvent{
		TimeExchange: now, TimeReceived: now,
		Venue:      domain.VenueBinance,
		Instrument: domain.NewInstrument("BTC", "USDT", domain.KindPerpetual),
		Data: domain.OrderBookL1{
			BestBid: &domain.BookLevel{Price: decimal.RequireFromString("100.19"), Amount: decimal.RequireFromString("1")},
			BestAsk: &domain.BookLevel{Price: decimal.RequireFromString("100.21"), Amount: decimal.RequireFromString("1")},
		},
	}
	agg.Ingest(spotL1)
	agg.Ingest(perpL1)

	basis := agg.Snapshot().Tickers["BTC"].Basis
	if basis == nil {
		t.Fatal("expected basis to be computed once both mids are known")
	}
	if basis.State != BasisContango {
		t.Fatalf("expected Contango, got %s", basis.State)
	}
	if basis.Steep {
		t.Fatalf("expected basis not steep at ~0.2%%, got steep=%v pct=%f", basis.Steep, basis.BasisPct)
	}
}

func TestExchangeHealthReflectsRecentEvents(t *testing.T) {
	agg := New(DefaultThresholds(), [3]string{"BTC", "ETH", "SOL"}, asset.DefaultRegistry())
	now := time.Now()
	agg.Ingest(tradeEvent(domain.VenueBinance, domain.KindSpot, domain.SideBuy, "100", "1", now))

	snap := agg.Snapshot()
	if !snap.ExchangeHealth[string(domain.VenueBinance)] {
		t.Fatalf("expected binance to be healthy immediately after an event")
	}
	if snap.ExchangeHealth[string(domain.VenueBybit)] {
		t.Fatalf("expected bybit to be unhealthy, it never sent an event")
	}
}
