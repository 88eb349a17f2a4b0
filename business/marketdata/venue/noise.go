package venue

import "strings"

// IsPongText reports whether frame is a raw, non-JSON "pong" reply: both
// Bybit and OKX's public websockets answer their keepalive ping with bare
// "pong" text rather than a structured frame, and it must be swallowed
// rather than reported as a decode error. Bybit additionally wraps its
// reply as `{"op":"pong",...}` on some channels, handled by the same check.
func IsPongText(frame []byte) bool {
	s := strings.TrimSpace(string(frame))
	return s == "pong" || strings.Contains(strings.ToLower(s), `"op":"pong"`)
}

// IsOKXPingText reports whether frame is the raw "ping" text OKX's transport
// uses in place of a JSON ping frame.
func IsOKXPingText(frame []byte) bool {
	return strings.TrimSpace(string(frame)) == "ping"
}

// OKXLiquidationSubscriptionID is the subscription id OKX's liquidation
// channel produces; some servers echo it back in contexts that otherwise
// look like an unsupported-subscription error, so callers must not surface
// it verbatim as a failure.
const OKXLiquidationSubscriptionID = "liquidation-orders|SWAP"
