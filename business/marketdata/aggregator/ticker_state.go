package aggregator

import (
	"sort"
	"time"

	"github.com/fd1az/cryptofeed/internal/asset"
)

type tradeRecord struct {
	time     time.Time
	side     Side
	price    float64
	amount   float64
	exchange string
	usd      float64
	isSpot   bool
	isPerp   bool
}

type liquidationRecord struct {
	time     time.Time
	side     Side
	price    float64
	value    float64
	exchange string
}

type cvdRecord struct {
	time       time.Time
	totalQuote float64
}

// tickerState holds every rolling buffer for one base asset (e.g. "BTC"),
// aggregated across every venue and instrument kind that trades it.
type tickerState struct {
	ticker string

	trades              []tradeRecord
	whalesByExchange    map[string][]WhaleRecord // front = most recent
	liquidations        []liquidationRecord
	cvdHistory          []cvdRecord // snapshots of the rolling perp CVD total
	oiByExchange        map[string]float64
	spotMid             *float64
	perpMid             *float64
	spreadPct           *float64
	bestBid             *PriceSize
	bestAsk             *PriceSize
	priceHistory        []timedValue
	exchangeVolume      []exchangeVolumeEntry
	lastTradeByExchange map[string]float64
	lastWhaleExchange   string
	lastWhaleKind       string

	thresholds Thresholds
	assets     *asset.Registry
}

type timedValue struct {
	time  time.Time
	value float64
}

type exchangeVolumeEntry struct {
	time     time.Time
	exchange string
	usd      float64
}

func newTickerState(ticker string, thresholds Thresholds, assets *asset.Registry) *tickerState {
	return &tickerState{
		ticker:              ticker,
		whalesByExchange:    make(map[string][]WhaleRecord),
		oiByExchange:        make(map[string]float64),
		lastTradeByExchange: make(map[string]float64),
		thresholds:          thresholds,
		assets:              assets,
	}
}

func (s *tickerState) pushTrade(t time.Time, side Side, price, amount float64, exchange string, isSpot, isPerp bool) {
	usd := price * amount
	s.trades = append(s.trades, tradeRecord{
		time: t, side: side, price: price, amount: amount,
		exchange: exchange, usd: usd, isSpot: isSpot, isPerp: isPerp,
	})
	s.priceHistory = append(s.priceHistory, timedValue{time: t, value: price})
	s.exchangeVolume = append(s.exchangeVolume, exchangeVolumeEntry{time: t, exchange: exchange, usd: usd})
	s.lastTradeByExchange[exchange] = price

	if usd >= s.thresholds.WhaleUSD {
		kind := "OTHER"
		switch {
		case isSpot:
			kind = "SPOT"
		case isPerp:
			kind = "PERP"
		}
		rec := WhaleRecord{Time: t, Side: side, VolumeUSD: usd, Price: price, Exchange: exchange, MarketKind: kind}

		capPerExchange := s.thresholds.MaxWhales / 3
		if capPerExchange < 50 {
			capPerExchange = 50
		}
		if capPerExchange > s.thresholds.MaxWhales {
			capPerExchange = s.thresholds.MaxWhales
		}
		deque := append([]WhaleRecord{rec}, s.whalesByExchange[exchange]...)
		if len(deque) > capPerExchange {
			deque = deque[:capPerExchange]
		}
		s.whalesByExchange[exchange] = deque

		s.lastWhaleExchange = exchange
		s.lastWhaleKind = kind
	}

	if isSpot {
		s.spotMid = &price
	}
	if isPerp {
		s.perpMid = &price
	}

	if isPerp {
		total := s.cvdTotal(CVDRetention)
		s.cvdHistory = append(s.cvdHistory, cvdRecord{time: t, totalQuote: total})
	}

	s.prune(t)
}

func (s *tickerState) pushLiquidation(t time.Time, side Side, price, quantity float64, exchange string) {
	s.liquidations = append(s.liquidations, liquidationRecord{
		time: t, side: side, price: price, value: price * quantity, exchange: exchange,
	})
	s.prune(t)
}

func (s *tickerState) pushOpenInterest(exchange string, contracts float64) {
	s.oiByExchange[exchange] = contracts
}

func (s *tickerState) pushOrderBookL1(t time.Time, mid *float64, spreadPct *float64, bestBid, bestAsk *PriceSize, isSpot, isPerp bool) {
	if isSpot {
		s.spotMid = mid
	}
	if isPerp {
		s.perpMid = mid
		s.spreadPct = spreadPct
		if bestBid != nil {
			s.bestBid = bestBid
		}
		if bestAsk != nil {
			s.bestAsk = bestAsk
		}
	}
	if mid != nil {
		s.priceHistory = append(s.priceHistory, timedValue{time: t, value: *mid})
		s.prune(t)
	}
}

func (s *tickerState) lastWhale(exchange string) (string, bool) {
	if s.lastWhaleExchange == exchange {
		return s.lastWhaleKind, true
	}
	return "", false
}

// prune drops every buffer entry older than its retention window.
func (s *tickerState) prune(now time.Time) {
	tradeCutoff := now.Add(-TradeRetention)
	s.trades = dropOlderThan(s.trades, tradeCutoff, func(t tradeRecord) time.Time { return t.time })
	s.exchangeVolume = dropOlderThan(s.exchangeVolume, tradeCutoff, func(e exchangeVolumeEntry) time.Time { return e.time })

	liqCutoff := now.Add(-LiqRetention)
	s.liquidations = dropOlderThan(s.liquidations, liqCutoff, func(l liquidationRecord) time.Time { return l.time })

	cvdCutoff := now.Add(-CVDRetention)
	s.cvdHistory = dropOlderThan(s.cvdHistory, cvdCutoff, func(c cvdRecord) time.Time { return c.time })

	priceCutoff := now.Add(-PriceRetention)
	s.priceHistory = dropOlderThan(s.priceHistory, priceCutoff, func(v timedValue) time.Time { return v.time })
}

func dropOlderThan[T any](buf []T, cutoff time.Time, timeOf func(T) time.Time) []T {
	i := 0
	for i < len(buf) && timeOf(buf[i]).Before(cutoff) {
		i++
	}
	if i == 0 {
		return buf
	}
	return buf[i:]
}

func (s *tickerState) toSnapshot() TickerSnapshot {
	orderflow1m := s.orderflow(60 * time.Second)
	orderflow5m := s.orderflow(5 * time.Minute)
	exchangeDominance := s.exchangeDominance(60 * time.Second)
	vwap1m := s.vwap(60 * time.Second)
	vwap5m := s.vwap(5 * time.Minute)
	whales := s.fairWhaleSelection(20)
	clusters, cascadeRisk, nextLevel, protectionLevel := s.liquidationClusters()
	liqRate := s.liquidationRatePerMin()
	liqBucket := s.liquidationBucketSize()
	cvd := s.cvdSummary()
	cvd1m := s.cvdTotal(60 * time.Second)
	var oiTotal float64
	for _, v := range s.oiByExchange {
		oiTotal += v
	}
	tickDir := s.tickDirection(60 * time.Second)
	tickDir5m := s.tickDirection(5 * time.Minute)
	tradeSpeed, avgTradeUSD := s.tradeSpeed(60 * time.Second)
	trades5m, vol5m, avg5m := s.tradeStats(5 * time.Minute)
	basis := s.basis()
	divergence := s.cvdDivergence()
	cvdPerExchange5m := s.cvdPerExchange(5 * time.Minute)

	prices := make(map[string]float64, len(s.lastTradeByExchange))
	for k, v := range s.lastTradeByExchange {
		prices[k] = v
	}

	return TickerSnapshot{
		Ticker:            s.ticker,
		LatestPrice:       s.latestPrice(),
		LatestSpreadPct:   s.spreadPct,
		SpotMid:           s.spotMid,
		PerpMid:           s.perpMid,
		Basis:             basis,
		Orderflow1m:       orderflow1m,
		Orderflow5m:       orderflow5m,
		ExchangeDominance: exchangeDominance,
		VWAP1m:            vwap1m,
		VWAP5m:            vwap5m,
		BestBid:           s.bestBid,
		BestAsk:           s.bestAsk,
		ExchangePrices:    prices,
		Whales:            whales,
		Liquidations:      clusters,
		LiqRatePerMin:     liqRate,
		LiqBucket:         liqBucket,
		CascadeRisk:       cascadeRisk,
		NextCascadeLevel:  nextLevel,
		ProtectionLevel:   protectionLevel,
		CVD:               cvd,
		CVD1mTotal:        cvd1m,
		CVDPerExchange5m:  cvdPerExchange5m,
		Trades5m:          trades5m,
		Vol5m:             vol5m,
		AvgTradeUSD5m:     avg5m,
		OITotal:           oiTotal,
		TickDirection:     tickDir,
		TickDirection5m:   tickDir5m,
		TradeSpeed:        tradeSpeed,
		AvgTradeUSD:       avgTradeUSD,
		CVDDivergence:     divergence,
	}
}

func (s *tickerState) latestPrice() *float64 {
	if n := len(s.priceHistory); n > 0 {
		p := s.priceHistory[n-1].value
		return &p
	}
	if s.perpMid != nil {
		return s.perpMid
	}
	return s.spotMid
}

func (s *tickerState) orderflow(window time.Duration) OrderflowStats {
	cutoff := time.Now().Add(-window)
	var buy, sell float64
	var trades uint64
	for i := len(s.trades) - 1; i >= 0; i-- {
		t := s.trades[i]
		if t.time.Before(cutoff) {
			break
		}
		trades++
		if t.side == SideBuy {
			buy += t.usd
		} else {
			sell += t.usd
		}
	}

	total := buy + sell
	imbalance := 50.0
	if total > 0 {
		imbalance = buy / total * 100.0
	}
	windowSecs := window.Seconds()
	netFlow := 0.0
	tradesPerSec := 0.0
	if windowSecs > 0 {
		netFlow = (buy - sell) * 60.0 / windowSecs
		tradesPerSec = float64(trades) / windowSecs
	}

	return OrderflowStats{
		BuyUSD: buy, SellUSD: sell, ImbalancePct: imbalance,
		NetFlowPerMin: netFlow, TradesPerSec: tradesPerSec,
	}
}

func (s *tickerState) exchangeDominance(window time.Duration) map[string]float64 {
	cutoff := time.Now().Add(-window)
	totals := make(map[string]float64)
	for i := len(s.exchangeVolume) - 1; i >= 0; i-- {
		e := s.exchangeVolume[i]
		if e.time.Before(cutoff) {
			break
		}
		totals[e.exchange] += e.usd
	}
	var total float64
	for _, v := range totals {
		total += v
	}
	if total > 0 {
		for k, v := range totals {
			totals[k] = v / total * 100.0
		}
	}
	return totals
}

func (s *tickerState) vwap(window time.Duration) *float64 {
	cutoff := time.Now().Add(-window)
	var sumPV, sumV float64
	for i := len(s.trades) - 1; i >= 0; i-- {
		t := s.trades[i]
		if t.time.Before(cutoff) {
			break
		}
		sumPV += t.price * t.amount
		sumV += t.amount
	}
	if sumV > 0 {
		v := sumPV / sumV
		return &v
	}
	return nil
}

// liquidationBucketSize returns the asset-class bucket width, looked up
// from the asset registry (BTC ~$100, ETH ~$50); tickers absent from the
// registry (or when none was supplied) fall back to the $10 default.
func (s *tickerState) liquidationBucketSize() float64 {
	if s.assets != nil {
		if a, ok := s.assets.GetBySymbol(s.ticker); ok {
			return a.LiquidationBucketUSD()
		}
	}
	return 10.0
}

func (s *tickerState) liquidationClusters() ([]LiquidationCluster, float64, *CascadeLevel, *CascadeLevel) {
	cutoff := time.Now().Add(-LiqRetention)
	bucketSize := s.liquidationBucketSize()
	buckets := make(map[int64][]liquidationRecord)

	for i := len(s.liquidations) - 1; i >= 0; i-- {
		l := s.liquidations[i]
		if l.time.Before(cutoff) {
			break
		}
		bucket := int64(l.price / bucketSize)
		buckets[bucket] = append(buckets[bucket], l)
	}

	clusters := make([]LiquidationCluster, 0, len(buckets))
	for bucket, entries := range buckets {
		var totalUSD float64
		var longCount, shortCount int
		for _, l := range entries {
			totalUSD += l.value
			if l.side == SideBuy {
				longCount++
			} else {
				shortCount++
			}
		}
		clusters = append(clusters, LiquidationCluster{
			PriceLevel: float64(bucket) * bucketSize,
			TotalUSD:   totalUSD,
			LongCount:  longCount,
			ShortCount: shortCount,
		})
	}
	sort.Slice(clusters, func(i, j int) bool { return clusters[i].TotalUSD > clusters[j].TotalUSD })

	var cascadeRisk float64
	if len(clusters) > 0 {
		cascadeRisk = clusters[0].TotalUSD / s.thresholds.CascadeCapUSD * 100.0
		if cascadeRisk > 100.0 {
			cascadeRisk = 100.0
		}
	}

	currentPrice := 0.0
	if p := s.latestPrice(); p != nil {
		currentPrice = *p
	}

	var nextLevel, protectionLevel *CascadeLevel
	for _, c := range clusters {
		if currentPrice == 0.0 {
			break
		}
		denom := float64(c.LongCount + c.ShortCount)
		if denom < 1 {
			denom = 1
		}
		if c.PriceLevel < currentPrice {
			longsUSD := float64(c.LongCount) * (c.TotalUSD / denom)
			if longsUSD > s.thresholds.LiqDangerUSD {
				if nextLevel == nil || c.TotalUSD > nextLevel.TotalUSD {
					nextLevel = &CascadeLevel{Price: c.PriceLevel, TotalUSD: c.TotalUSD, Side: SideBuy}
				}
			}
		} else if c.PriceLevel > currentPrice {
			shortsUSD := float64(c.ShortCount) * (c.TotalUSD / denom)
			if shortsUSD > s.thresholds.LiqDangerUSD {
				if protectionLevel == nil || c.TotalUSD > protectionLevel.TotalUSD {
					protectionLevel = &CascadeLevel{Price: c.PriceLevel, TotalUSD: c.TotalUSD, Side: SideSell}
				}
			}
		}
	}

	return clusters, cascadeRisk, nextLevel, protectionLevel
}

func (s *tickerState) liquidationRatePerMin() float64 {
	cutoff := time.Now().Add(-LiqRetention)
	var count float64
	for i := len(s.liquidations) - 1; i >= 0; i-- {
		if s.liquidations[i].time.Before(cutoff) {
			break
		}
		count++
	}
	return count / (LiqRetention.Seconds() / 60.0)
}

func (s *tickerState) cvdSummary() CVDSummary {
	total := s.cvdTotal(CVDRetention)

	var velocity float64
	if len(s.cvdHistory) > 0 {
		first := s.cvdHistory[0]
		last := s.cvdHistory[len(s.cvdHistory)-1]
		if last.time.After(first.time) {
			secs := last.time.Sub(first.time).Seconds()
			if secs < 1 {
				secs = 1
			}
			velocity = (last.totalQuote - first.totalQuote) / secs
		}
	}

	return CVDSummary{TotalQuote: total, VelocityQuote: velocity}
}

func (s *tickerState) tickDirection(window time.Duration) TickDirection {
	cutoff := time.Now().Add(-window)
	var upticks, downticks uint64
	var prev *float64
	for i := len(s.priceHistory) - 1; i >= 0; i-- {
		v := s.priceHistory[i]
		if v.time.Before(cutoff) {
			break
		}
		if prev != nil {
			switch {
			case v.value > *prev:
				upticks++
			case v.value < *prev:
				downticks++
			}
		}
		price := v.value
		prev = &price
	}
	total := upticks + downticks
	uptickPct := 50.0
	if total > 0 {
		uptickPct = float64(upticks) / float64(total) * 100.0
	}
	return TickDirection{Upticks: upticks, Downticks: downticks, UptickPct: uptickPct}
}

func (s *tickerState) tradeSpeed(window time.Duration) (float64, float64) {
	cutoff := time.Now().Add(-window)
	var trades uint64
	var totalUSD float64
	for i := len(s.trades) - 1; i >= 0; i-- {
		t := s.trades[i]
		if t.time.Before(cutoff) {
			break
		}
		trades++
		totalUSD += t.usd
	}
	windowSecs := window.Seconds()
	speed := 0.0
	if windowSecs > 0 {
		speed = float64(trades) / windowSecs
	}
	avg := 0.0
	if trades > 0 {
		avg = totalUSD / float64(trades)
	}
	return speed, avg
}

func (s *tickerState) tradeStats(window time.Duration) (int, float64, float64) {
	cutoff := time.Now().Add(-window)
	var count int
	var volUSD float64
	for i := len(s.trades) - 1; i >= 0; i-- {
		t := s.trades[i]
		if t.time.Before(cutoff) {
			break
		}
		count++
		volUSD += t.usd
	}
	avg := 0.0
	if count > 0 {
		avg = volUSD / float64(count)
	}
	return count, volUSD, avg
}

// basis computes the perp-vs-spot spread with a 5bps deadband and a
// "steep" flag above 50bps.
func (s *tickerState) basis() *BasisStats {
	if s.spotMid == nil || s.perpMid == nil || *s.spotMid <= 0 {
		return nil
	}
	spot, perp := *s.spotMid, *s.perpMid

	basisUSD := perp - spot
	rawPct := basisUSD / spot * 100.0
	basisPct := roundTo2dp(rawPct)
	const neutralBand = 0.05

	state := BasisUnknown
	switch {
	case absf(basisPct) < neutralBand:
		state = BasisUnknown
	case basisPct > 0:
		state = BasisContango
	default:
		state = BasisBackwardation
	}

	return &BasisStats{
		BasisUSD: basisUSD,
		BasisPct: basisPct,
		State:    state,
		Steep:    absf(basisPct) > 0.5,
	}
}

// fairWhaleSelection distributes the display budget across every exchange
// that has produced a whale trade, so a single high-volume venue can't drown
// the rest out of the list.
func (s *tickerState) fairWhaleSelection(limit int) []WhaleRecord {
	exchangeCount := len(s.whalesByExchange)
	if exchangeCount == 0 {
		return nil
	}
	slotsPerExchange := limit / exchangeCount
	if slotsPerExchange < 3 {
		slotsPerExchange = 3
	}

	result := make([]WhaleRecord, 0, limit)
	for _, deque := range s.whalesByExchange {
		n := slotsPerExchange
		if n > len(deque) {
			n = len(deque)
		}
		result = append(result, deque[:n]...)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Time.After(result[j].Time) })
	if len(result) > limit {
		result = result[:limit]
	}
	return result
}

// cvdTotal sums signed perp trade notional over window, the running proxy
// for cumulative volume delta (spot trades don't move open-interest-backed
// flow, so only perp trades count).
func (s *tickerState) cvdTotal(window time.Duration) float64 {
	cutoff := time.Now().Add(-window)
	var total float64
	for i := len(s.trades) - 1; i >= 0; i-- {
		t := s.trades[i]
		if t.time.Before(cutoff) {
			break
		}
		if !t.isPerp {
			continue
		}
		if t.side == SideBuy {
			total += t.usd
		} else {
			total -= t.usd
		}
	}
	return total
}

func (s *tickerState) cvdPerExchange(window time.Duration) map[string]float64 {
	cutoff := time.Now().Add(-window)
	totals := make(map[string]float64)
	for i := len(s.trades) - 1; i >= 0; i-- {
		t := s.trades[i]
		if t.time.Before(cutoff) {
			break
		}
		if !t.isPerp {
			continue
		}
		signed := t.usd
		if t.side == SideSell {
			signed = -signed
		}
		totals[t.exchange] += signed
	}
	return totals
}

// cvdDivergence classifies price trend vs CVD trend using a 5-arm truth
// table.
func (s *tickerState) cvdDivergence() DivergenceSignal {
	if len(s.priceHistory) < 2 || len(s.cvdHistory) < 2 {
		return DivergenceUnknown
	}

	priceTrend := s.priceHistory[len(s.priceHistory)-1].value - s.priceHistory[0].value
	cvdTrend := s.cvdHistory[len(s.cvdHistory)-1].totalQuote - s.cvdHistory[0].totalQuote

	latest := 1.0
	if p := s.latestPrice(); p != nil {
		latest = *p
	}
	priceThreshold := latest * 0.001
	const cvdThreshold = 1000.0

	priceUp := priceTrend > priceThreshold
	priceDown := priceTrend < -priceThreshold
	cvdUp := cvdTrend > cvdThreshold
	cvdDown := cvdTrend < -cvdThreshold

	switch {
	case !priceUp && priceDown && cvdUp && !cvdDown:
		return DivergenceBullish
	case priceUp && !priceDown && !cvdUp && cvdDown:
		return DivergenceBearish
	case priceUp && !priceDown && cvdUp && !cvdDown:
		return DivergenceAligned
	case !priceUp && priceDown && !cvdUp && cvdDown:
		return DivergenceAligned
	case !priceUp && !priceDown && !cvdUp && !cvdDown:
		return DivergenceNeutral
	default:
		return DivergenceNeutral
	}
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func roundTo2dp(v float64) float64 {
	scaled := v * 100.0
	if scaled < 0 {
		return float64(int64(scaled-0.5)) / 100.0
	}
	return float64(int64(scaled+0.5)) / 100.0
}
