package stream

import (
	"context"
	"testing"
	"time"

	"github.com/fd1az/cryptofeed/business/marketdata/domain"
)

func TestMergeFansInAllStreams(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := make(chan Event, 2)
	b := make(chan Event, 2)
	a <- Event{Kind: KindItem, Venue: domain.VenueBinance}
	b <- Event{Kind: KindItem, Venue: domain.VenueBybit}
	close(a)
	close(b)

	out := Merge(ctx, a, b)

	seen := map[domain.Venue]int{}
	for ev := range out {
		seen[ev.Venue]++
	}
	if seen[domain.VenueBinance] != 1 || seen[domain.VenueBybit] != 1 {
		t.Fatalf("expected one event from each input stream, got %v", seen)
	}
}

func TestMergeClosesOutputWhenAllInputsClose(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := make(chan Event)
	close(a)

	out := Merge(ctx, a)
	select {
	case _, ok := <-out:
		if ok {
			t.Fatalf("expected closed output channel")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for output channel to close")
	}
}

func TestMergeWithNoInputsClosesImmediately(t *testing.T) {
	out := Merge(context.Background())
	select {
	case _, ok := <-out:
		if ok {
			t.Fatalf("expected closed output channel")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for output channel to close")
	}
}
