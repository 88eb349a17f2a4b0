package binance

import (
	"context"
	"testing"

	"github.com/fd1az/cryptofeed/business/marketdata/domain"
)

func TestDecodeAggTradeEmitsTrade(t *testing.T) {
	c := NewSpotConnector()
	frame := []byte(`{"stream":"btcusdt@aggTrade","data":{"e":"aggTrade","E":1690000000000,"s":"BTCUSDT","a":123,"p":"65000.50","q":"0.010","T":1690000000000,"m":false}}`)

	events, err := c.Decode(context.Background(), frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	trade, ok := events[0].Data.(domain.Trade)
	if !ok {
		t.Fatalf("expected domain.Trade, got %T", events[0].Data)
	}
	if trade.Side != domain.SideBuy {
		t.Errorf("expected buy side for m=false, got %s", trade.Side)
	}
	if events[0].Instrument.Base != "btc" || events[0].Instrument.Quote != "usdt" {
		t.Errorf("unexpected instrument: %+v", events[0].Instrument)
	}
}

// TestDecodeDepthSequenceGap exercises Binance's L2 sequencing rule: the first
// frame establishes the snapshot baseline (lastUpdateId=100); a frame whose
// FirstUpdateID continues the sequence is accepted; a frame with a gap is a
// terminal sequence error.
func TestDecodeDepthSequenceGap(t *testing.T) {
	c := NewFuturesConnector()
	ctx := context.Background()

	snapshot := []byte(`{"stream":"btcusdt@depth@100ms","data":{"e":"depthUpdate","E":1,"s":"BTCUSDT","U":90,"u":100,"pu":0,"b":[],"a":[]}}`)
	events, err := c.Decode(ctx, snapshot)
	if err != nil {
		t.Fatalf("snapshot: unexpected error: %v", err)
	}
	ob, ok := events[0].Data.(domain.OrderBookEvent)
	if !ok || ob.Action != domain.BookActionSnapshot {
		t.Fatalf("expected a snapshot event, got %+v", events[0].Data)
	}

	contiguous := []byte(`{"stream":"btcusdt@depth@100ms","data":{"e":"depthUpdate","E":2,"s":"BTCUSDT","U":101,"u":105,"pu":100,"b":[],"a":[]}}`)
	events, err = c.Decode(ctx, contiguous)
	if err != nil {
		t.Fatalf("contiguous update: unexpected error: %v", err)
	}
	if ob, ok := events[0].Data.(domain.OrderBookEvent); !ok || ob.Action != domain.BookActionUpdate {
		t.Fatalf("expected an update event, got %+v", events[0].Data)
	}

	gapped := []byte(`{"stream":"btcusdt@depth@100ms","data":{"e":"depthUpdate","E":3,"s":"BTCUSDT","U":110,"u":115,"pu":105,"b":[],"a":[]}}`)
	if _, err := c.Decode(ctx, gapped); err == nil {
		t.Fatal("expected a sequence-gap error for a non-contiguous update")
	}
}

func TestInstrumentFromSymbolStripsQuoteSuffix(t *testing.T) {
	cases := []struct {
		sym          string
		futures      bool
		base, quote  string
		wantKind     domain.Kind
	}{
		{"BTCUSDT", false, "btc", "usdt", domain.KindSpot},
		{"ETHUSDT", true, "eth", "usdt", domain.KindPerpetual},
		{"SOLUSDC", false, "sol", "usdc", domain.KindSpot},
	}
	for _, tc := range cases {
		inst := instrumentFromSymbol(tc.sym, tc.futures)
		if inst.Base != tc.base || inst.Quote != tc.quote || inst.Kind != tc.wantKind {
			t.Errorf("instrumentFromSymbol(%q, %v) = %+v, want base=%s quote=%s kind=%s",
				tc.sym, tc.futures, inst, tc.base, tc.quote, tc.wantKind)
		}
	}
}

func TestBuildSubscribeFramesRejectsEmpty(t *testing.T) {
	c := NewSpotConnector()
	if _, err := c.BuildSubscribeFrames(nil); err == nil {
		t.Fatal("expected an error for an empty subscription set")
	}
}
