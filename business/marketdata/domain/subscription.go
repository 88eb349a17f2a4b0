package domain

import "fmt"

// Channel is the kind of wire-level stream a Subscription asks for.
type Channel string

const (
	ChannelTrade        Channel = "Trade"
	ChannelL1           Channel = "L1"
	ChannelL2           Channel = "L2"
	ChannelLiquidation  Channel = "Liquidation"
	ChannelOpenInterest Channel = "OpenInterest"
	ChannelCVD          Channel = "CVD"
)

// Subscription is (venue, instrument, channel). Channel CVD is synthesized
// locally from the Trade channel and shares its wire subscription — it
// never opens a socket of its own.
type Subscription struct {
	Venue      Venue
	Instrument Instrument
	Channel    Channel
}

// ID returns the subscription id used to route payloads: a venue-specific
// stable string. Venue adapters build the exact wire-shaped id themselves
// (e.g. "publicTrade|BTCUSDT"); this generic form is for subscriptions this
// package itself needs to key on (CVD piggybacking on Trade, internal maps)
// when a venue-specific id isn't in scope.
func (s Subscription) ID() string {
	return fmt.Sprintf("%s|%s|%s|%s", s.Venue, s.Instrument.Base, s.Instrument.Quote, s.Channel)
}

// TradeSubscriptionID returns the id the CVD transformer keys its running
// totals under — identical to the underlying Trade subscription's id, since
// CVD piggybacks on the trade channel rather than opening its own stream.
func (s Subscription) TradeSubscriptionID() string {
	return Subscription{Venue: s.Venue, Instrument: s.Instrument, Channel: ChannelTrade}.ID()
}
