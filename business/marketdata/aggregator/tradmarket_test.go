package aggregator

import (
	"testing"
	"time"
)

// TestMicroBarBackfillProducesExpectedBarCount exercises a backfill burst:
// 500 ticks spaced 720ms apart (360s total span) should yield at least
// floor(360/5) - 1 = 71 completed bars regardless of wall-clock arrival
// pattern, since bucketing is keyed on the tick's own timestamp. The ring
// retains only the newest ringCapacity (60) of them, buckets 11..70.
func TestMicroBarBackfillProducesExpectedBarCount(t *testing.T) {
	trad := NewTradMarketState()
	base := time.Unix(1_700_000_000, 0)

	for i := 0; i < 500; i++ {
		ts := base.Add(time.Duration(i) * 720 * time.Millisecond)
		trad.IngestTick("ES", ts, 5000+float64(i%10), 1)
	}

	snap := trad.Snapshot()
	bars := snap.Bars["ES"]
	if len(bars) != ringCapacity {
		t.Fatalf("expected the ring to hold %d bars, got %d", ringCapacity, len(bars))
	}
	if !bars[len(bars)-1].Start.Equal(base.Add(70 * barWindow)) {
		t.Fatalf("expected the newest completed bar at bucket 70, got start %v", bars[len(bars)-1].Start)
	}
	if !bars[0].Start.Equal(base.Add(11 * barWindow)) {
		t.Fatalf("expected the oldest retained bar at bucket 11, got start %v", bars[0].Start)
	}
}

func TestMicroBarRejectsNonPositiveInputs(t *testing.T) {
	trad := NewTradMarketState()
	trad.IngestTick("ES", time.Now(), 0, 1)
	trad.IngestTick("ES", time.Time{}, 100, 1)

	snap := trad.Snapshot()
	if len(snap.Bars["ES"]) != 0 {
		t.Fatalf("expected no bars from rejected ticks, got %d", len(snap.Bars["ES"]))
	}
}

func TestMicroBarAlignsToFiveSecondBuckets(t *testing.T) {
	trad := NewTradMarketState()
	base := time.Unix(1_700_000_000, 0)

	trad.IngestTick("ES", base, 100, 1)
	trad.IngestTick("ES", base.Add(2*time.Second), 110, 1) // same bucket
	trad.IngestTick("ES", base.Add(6*time.Second), 120, 1) // next bucket, completes bar 1

	snap := trad.Snapshot()
	bars := snap.Bars["ES"]
	if len(bars) != 1 {
		t.Fatalf("expected exactly one completed bar, got %d", len(bars))
	}
	if bars[0].Open != 100 || bars[0].Close != 110 || bars[0].High != 110 {
		t.Fatalf("unexpected bar contents: %+v", bars[0])
	}
}

func TestPearsonIdenticalAndNegatedSeries(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5, 6}
	if r := pearson(xs, xs); r < 1-1e-4 {
		t.Fatalf("expected identical series to correlate ~1.0, got %f", r)
	}

	neg := make([]float64, len(xs))
	for i, v := range xs {
		neg[i] = -v
	}
	if r := pearson(xs, neg); r > -1+1e-4 {
		t.Fatalf("expected negated series to correlate ~-1.0, got %f", r)
	}
}

func TestPearsonTooShortYieldsZero(t *testing.T) {
	if r := pearson([]float64{1, 2, 3}, []float64{1, 2, 3}); r != 0 {
		t.Fatalf("expected 0 for series shorter than 5 points, got %f", r)
	}
}
