package apperror

import "strings"

// IsTerminalSocketError reports whether a socket error message indicates the
// connection is dead and must be reconnected, as opposed to noise that can be
// logged and ignored. The matching is intentionally a case-insensitive
// substring scan over the rendered error text: terminated|connectionclosed|
// alreadyclosed|sendafterclosing|io(|timeout all force a reconnect; anything
// else does not.
func IsTerminalSocketError(msg string) bool {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "terminated"):
		return true
	case strings.Contains(lower, "connectionclosed"):
		return true
	case strings.Contains(lower, "alreadyclosed"):
		return true
	case strings.Contains(lower, "sendafterclosing"):
		return true
	case strings.Contains(lower, "io("):
		return true
	case strings.Contains(lower, "timeout"):
		return true
	default:
		return false
	}
}

// IsDocumentedNoise reports whether a raw payload/error string matches one of
// the documented non-error noise strings a venue adapter must swallow rather
// than surface as Item(Err): Bybit's non-JSON pong payload and OKX's
// liquidation-orders|SWAP subscription id, which some OKX servers echo back
// in a way that looks like an unsupported-subscription error.
func IsDocumentedNoise(s string) bool {
	lower := strings.ToLower(s)
	return strings.Contains(lower, "payload: pong") ||
		strings.Contains(lower, "liquidation-orders|swap") ||
		s == "pong"
}
