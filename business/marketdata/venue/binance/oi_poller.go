package binance

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"

	"github.com/fd1az/cryptofeed/business/marketdata/domain"
	"github.com/fd1az/cryptofeed/internal/apperror"
	"github.com/fd1az/cryptofeed/internal/httpclient"
	"github.com/fd1az/cryptofeed/internal/logger"
	"github.com/fd1az/cryptofeed/internal/ratelimit"
)

// OIPollInterval matches Binance futures' documented open-interest refresh
// cadence; the websocket never publishes this field, so it is backfilled by
// REST polling.
const OIPollInterval = 10 * time.Second

// OIPoller polls /fapi/v1/openInterest for one instrument on a fixed cadence,
// tripping a circuit breaker on repeated failures and throttling requests to
// Binance's documented rate limits.
type OIPoller struct {
	client     httpclient.Client
	limiter    *ratelimit.Limiter
	breaker    *gobreaker.CircuitBreaker[*OpenInterestRESTResponse]
	log        logger.LoggerInterface
	symbol     string
	instrument domain.Instrument
	interval   time.Duration
}

// NewOIPoller builds a poller for one futures instrument. requestsPerMinute
// should stay comfortably under Binance's weight-based REST limit since this
// endpoint is typically polled for several symbols concurrently.
func NewOIPoller(inst domain.Instrument, log logger.LoggerInterface, requestsPerMinute int) (*OIPoller, error) {
	client, err := httpclient.NewInstrumentedClient(httpclient.WithProviderName("binance-open-interest"))
	if err != nil {
		return nil, fmt.Errorf("binance: open interest client: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker[*OpenInterestRESTResponse](gobreaker.Settings{
		Name:        "binance-open-interest",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})

	return &OIPoller{
		client:     client,
		limiter:    ratelimit.New(requestsPerMinute),
		breaker:    breaker,
		log:        log,
		symbol:     symbol(inst),
		instrument: inst,
		interval:   OIPollInterval,
	}, nil
}

// Run polls until ctx is cancelled, sending one MarketEvent per successful
// poll on out. Failures (including an open breaker) are logged and skipped;
// the next tick tries again rather than tearing down the poller.
func (p *OIPoller) Run(ctx context.Context, out chan<- domain.MarketEvent) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ev, err := p.poll(ctx)
			if err != nil {
				p.log.Warnc(ctx, "binance.oi_poller", "open interest poll failed", "symbol", p.symbol, "error", err)
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (p *OIPoller) poll(ctx context.Context) (domain.MarketEvent, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return domain.MarketEvent{}, err
	}

	data, err := p.breaker.Execute(func() (*OpenInterestRESTResponse, error) {
		var resp OpenInterestRESTResponse
		r, reqErr := p.client.NewRequest().
			SetQueryParam("symbol", p.symbol).
			SetResult(&resp).
			Get(ctx, OpenInterestRESTURL)
		if reqErr != nil {
			return nil, reqErr
		}
		if r.IsError() {
			return nil, fmt.Errorf("binance: open interest http %d", r.StatusCode)
		}
		return &resp, nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return domain.MarketEvent{}, apperror.New(apperror.CodeCircuitOpen,
				apperror.WithMessage("binance open interest breaker open"),
				apperror.WithContext(p.symbol))
		}
		return domain.MarketEvent{}, err
	}

	contracts, _ := decimal.NewFromString(data.OpenInterest)
	timeExchange := time.UnixMilli(data.Time)
	now := time.Now()

	return domain.MarketEvent{
		TimeExchange: timeExchange,
		TimeReceived: now,
		Venue:        domain.VenueBinance,
		Instrument:   p.instrument,
		Data: domain.OpenInterest{
			Contracts: contracts,
			Time:      &timeExchange,
		},
	}, nil
}
