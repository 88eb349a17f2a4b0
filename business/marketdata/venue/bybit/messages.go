// Package bybit implements the Bybit v5 public spot + linear-perpetual venue
// adapter: the {topic,type,ts,data} envelope, "publicTrade"/"orderbook.1"/
// "orderbook.200"/"tickers"/"allLiquidation" channel names, and the
// subscription id derived from the topic ("publicTrade.BTCUSDT" ->
// "publicTrade|BTCUSDT").
package bybit

import "encoding/json"

// Envelope is the {topic,type,ts,data} shape every Bybit v5 public stream
// message shares.
type Envelope struct {
	Topic string          `json:"topic"`
	Type  string          `json:"type"` // "snapshot" | "delta"
	Ts    int64           `json:"ts"`
	Data  json.RawMessage `json:"data"`
}

// WSRequest is the subscribe/unsubscribe control frame.
type WSRequest struct {
	Op   string   `json:"op"`
	Args []string `json:"args"`
}

// PingFrame is sent every 29s to keep the connection alive.
type PingFrame struct {
	Op string `json:"op"`
}

// Trade is one entry of a publicTrade.<sym> payload ("data" is an array).
type Trade struct {
	Time   int64  `json:"T"`
	Symbol string `json:"s"`
	Side   string `json:"S"`
	Amount string `json:"v"`
	Price  string `json:"p"`
	ID     string `json:"i"`
}

// OrderBookData is the orderbook.1/orderbook.200 "data" payload.
type OrderBookData struct {
	Symbol   string     `json:"s"`
	Bids     [][]string `json:"b"`
	Asks     [][]string `json:"a"`
	UpdateID int64      `json:"u"`
	Sequence int64      `json:"seq"`
}

// Ticker is the subset of tickers.<sym> fields used to derive open interest.
type Ticker struct {
	Symbol            string `json:"symbol"`
	OpenInterest      string `json:"openInterest"`
	OpenInterestValue string `json:"openInterestValue"`
}

// Liquidation is one entry of an allLiquidation.<sym> payload.
type Liquidation struct {
	Time     int64  `json:"T"`
	Symbol   string `json:"s"`
	Side     string `json:"S"`
	Quantity string `json:"v"`
	Price    string `json:"p"`
}
