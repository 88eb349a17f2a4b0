package bridge

import (
	"context"
	"testing"
	"time"
)

type recordedTick struct {
	symbol string
	ts     time.Time
	price  float64
	size   float64
}

func TestHandleFrameTick(t *testing.T) {
	var got []recordedTick
	c := New("ws://example", 0, func(symbol string, ts time.Time, price, size float64) {
		got = append(got, recordedTick{symbol, ts, price, size})
	}, nil)

	c.handleFrame(context.Background(), []byte(`{"type":"tick","symbol":"ES","ts":1700000000000,"px":5000.25,"sz":2}`))

	if len(got) != 1 {
		t.Fatalf("expected one tick, got %d", len(got))
	}
	if got[0].symbol != "ES" || got[0].price != 5000.25 || got[0].size != 2 {
		t.Fatalf("unexpected tick: %+v", got[0])
	}
}

func TestHandleFrameBackfill(t *testing.T) {
	var got []recordedTick
	c := New("ws://example", 0, func(symbol string, ts time.Time, price, size float64) {
		got = append(got, recordedTick{symbol, ts, price, size})
	}, nil)

	c.handleFrame(context.Background(), []byte(`{"type":"tick_backfill","symbol":"NQ","ticks":[{"ts":1,"px":100,"sz":1},{"ts":2,"px":101,"sz":2}]}`))

	if len(got) != 2 {
		t.Fatalf("expected two ticks, got %d", len(got))
	}
	if got[0].symbol != "NQ" || got[1].price != 101 {
		t.Fatalf("unexpected ticks: %+v", got)
	}
}

func TestHandleFrameIgnoresWelcomeAndStatus(t *testing.T) {
	called := false
	c := New("ws://example", 0, func(string, time.Time, float64, float64) { called = true }, nil)

	c.handleFrame(context.Background(), []byte(`{"type":"welcome"}`))
	c.handleFrame(context.Background(), []byte(`{"type":"status","connected":true}`))

	if called {
		t.Fatal("expected welcome/status frames not to invoke the sink")
	}
}

func TestHandleFrameMalformedIsIgnored(t *testing.T) {
	called := false
	c := New("ws://example", 0, func(string, time.Time, float64, float64) { called = true }, nil)

	c.handleFrame(context.Background(), []byte(`not json`))

	if called {
		t.Fatal("expected malformed frame not to invoke the sink")
	}
}
