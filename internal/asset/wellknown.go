package asset

// Well-known Assets tracked by this service: the BTC/ETH/SOL universe,
// plus the stablecoin quote legs the venues settle in.
var (
	BTC  = NewAssetWithLiquidationBucket(NewSymbol("BTC"), "Bitcoin", 8, 100.0)
	ETH  = NewAssetWithLiquidationBucket(NewSymbol("ETH"), "Ethereum", 18, 50.0)
	SOL  = NewAssetWithName(NewSymbol("SOL"), "Solana", 9)
	USDT = NewAssetWithName(NewSymbol("USDT"), "Tether USD", 6)
	USD  = NewAssetWithName(NewSymbol("USD"), "US Dollar", 2)
)

// DefaultRegistry returns a registry pre-populated with the well-known
// tickers this service tracks out of the box.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(BTC)
	r.Register(ETH)
	r.Register(SOL)
	r.Register(USDT)
	r.Register(USD)
	return r
}
