package transform

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/cryptofeed/business/marketdata/domain"
)

func trade(venue domain.Venue, inst domain.Instrument, side domain.Side, price, amount string) domain.MarketEvent {
	return domain.MarketEvent{
		TimeExchange: time.Unix(0, 0),
		TimeReceived: time.Unix(0, 0),
		Venue:        venue,
		Instrument:   inst,
		Data: domain.Trade{
			Side:   side,
			Price:  decimal.RequireFromString(price),
			Amount: decimal.RequireFromString(amount),
		},
	}
}

func TestCVDAccumulatorRunningTotal(t *testing.T) {
	inst := domain.NewInstrument("BTC", "USDT", domain.KindSpot)
	acc := NewCVDAccumulator()

	out := acc.Apply(trade(domain.VenueBinance, inst, domain.SideBuy, "100", "2"))
	cvd := out.Data.(domain.CVD)
	if !cvd.DeltaBase.Equal(decimal.RequireFromString("2")) {
		t.Fatalf("expected delta_base=2, got %s", cvd.DeltaBase)
	}

	out = acc.Apply(trade(domain.VenueBinance, inst, domain.SideSell, "100", "1"))
	cvd = out.Data.(domain.CVD)
	if !cvd.DeltaBase.Equal(decimal.RequireFromString("1")) {
		t.Fatalf("expected delta_base=1 after a sell, got %s", cvd.DeltaBase)
	}
	if !cvd.DeltaQuote.Equal(decimal.RequireFromString("100")) {
		t.Fatalf("expected delta_quote=100, got %s", cvd.DeltaQuote)
	}
}

func TestCVDAccumulatorKeyedPerVenue(t *testing.T) {
	inst := domain.NewInstrument("BTC", "USDT", domain.KindSpot)
	acc := NewCVDAccumulator()

	acc.Apply(trade(domain.VenueBinance, inst, domain.SideBuy, "100", "5"))
	out := acc.Apply(trade(domain.VenueBybit, inst, domain.SideBuy, "100", "1"))

	cvd := out.Data.(domain.CVD)
	if !cvd.DeltaBase.Equal(decimal.RequireFromString("1")) {
		t.Fatalf("expected bybit's total to be independent of binance's, got %s", cvd.DeltaBase)
	}
}
