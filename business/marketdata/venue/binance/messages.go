package binance

import "encoding/json"

// StreamEvent is the combined-stream envelope Binance wraps every payload
// in when connecting to /stream?streams=... (adapted from
// business/pricing/infra/binance's StreamEvent wrapper).
type StreamEvent struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// WSRequest is the SUBSCRIBE/UNSUBSCRIBE control frame shape.
type WSRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

// WSResponse confirms a subscribe/unsubscribe request.
type WSResponse struct {
	Result any   `json:"result"`
	ID     int64 `json:"id"`
}

// AggTradeEvent is a Binance aggregate-trade payload.
type AggTradeEvent struct {
	EventType    string `json:"e"`
	EventTime    int64  `json:"E"`
	Symbol       string `json:"s"`
	AggTradeID   int64  `json:"a"`
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	TradeTime    int64  `json:"T"`
	IsBuyerMaker bool   `json:"m"`
}

// BookTickerEvent is a Binance best-bid/best-ask update.
type BookTickerEvent struct {
	UpdateID int64  `json:"u"`
	Symbol   string `json:"s"`
	BidPrice string `json:"b"`
	BidQty   string `json:"B"`
	AskPrice string `json:"a"`
	AskQty   string `json:"A"`
}

// DepthUpdateEvent is a Binance diff-depth update carrying the U/u/pu
// sequence fields that must be validated for futures L2.
type DepthUpdateEvent struct {
	EventType     string     `json:"e"`
	EventTime     int64      `json:"E"`
	Symbol        string     `json:"s"`
	FirstUpdateID int64      `json:"U"`
	FinalUpdateID int64      `json:"u"`
	PrevFinalID   int64      `json:"pu"` // futures-only "previous final update id"
	Bids          [][]string `json:"b"`
	Asks          [][]string `json:"a"`
}

// ForceOrderEvent is a Binance futures liquidation ("forceOrder") payload.
type ForceOrderEvent struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Order     struct {
		Symbol       string `json:"s"`
		Side         string `json:"S"`
		Price        string `json:"p"`
		AvgPrice     string `json:"ap"`
		Quantity     string `json:"q"`
		OrderTradeAt int64  `json:"T"`
	} `json:"o"`
}

// OpenInterestRESTResponse is the /fapi/v1/openInterest REST payload.
type OpenInterestRESTResponse struct {
	Symbol       string `json:"symbol"`
	OpenInterest string `json:"openInterest"`
	Time         int64  `json:"time"`
}
