package broadcast

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/cryptofeed/business/marketdata/domain"
)

func tradeEventAt(amount int64) domain.MarketEvent {
	return domain.MarketEvent{
		Venue:      domain.VenueBinance,
		Instrument: domain.NewInstrument("BTC", "USDT", domain.KindSpot),
		Data: domain.Trade{
			Side:   domain.SideBuy,
			Price:  decimal.NewFromInt(100),
			Amount: decimal.NewFromInt(amount),
		},
	}
}

func TestBusPreservesOrderWithoutLag(t *testing.T) {
	bus := NewBus(10)
	cursor := bus.NewConsumer()

	for i := int64(1); i <= 3; i++ {
		bus.Publish(tradeEventAt(i))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for i := int64(1); i <= 3; i++ {
		item, err := cursor.Next(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if item.Skipped != 0 {
			t.Fatalf("expected no lag, got skipped=%d", item.Skipped)
		}
		trade := item.Event.Data.(domain.Trade)
		if !trade.Amount.Equal(decimal.NewFromInt(i)) {
			t.Fatalf("expected amount %d, got %s", i, trade.Amount.String())
		}
	}
}

func TestBusReportsLagAfterOverflow(t *testing.T) {
	bus := NewBus(4)
	cursor := bus.NewConsumer()

	for i := int64(1); i <= 10; i++ {
		bus.Publish(tradeEventAt(i))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	item, err := cursor.Next(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.Skipped == 0 {
		t.Fatalf("expected a lag notification, got a direct event")
	}
	if item.Skipped != 6 {
		t.Fatalf("expected skip count 6 (10 produced - 0 consumed - capacity 4), got %d", item.Skipped)
	}

	for i := int64(7); i <= 10; i++ {
		item, err := cursor.Next(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if item.Skipped != 0 {
			t.Fatalf("unexpected lag at amount %d: skipped=%d", i, item.Skipped)
		}
		trade := item.Event.Data.(domain.Trade)
		if !trade.Amount.Equal(decimal.NewFromInt(i)) {
			t.Fatalf("expected amount %d, got %s", i, trade.Amount.String())
		}
	}
}

func TestCursorNextRespectsContextCancellation(t *testing.T) {
	bus := NewBus(4)
	cursor := bus.NewConsumer()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := cursor.Next(ctx)
	if err == nil {
		t.Fatal("expected context deadline error when no events are ever published")
	}
}

func TestNewConsumerOnlySeesFutureEvents(t *testing.T) {
	bus := NewBus(4)
	bus.Publish(tradeEventAt(1))

	cursor := bus.NewConsumer()
	bus.Publish(tradeEventAt(2))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	item, err := cursor.Next(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	trade := item.Event.Data.(domain.Trade)
	if !trade.Amount.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("expected to skip the pre-existing event and see amount 2, got %s", trade.Amount.String())
	}
}
