// market/feed.go
package market

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"captain_grid_go/logs"

	"github.com/go-resty/resty/v2"
)

// ErrNoPrice means no source answered and no price was ever observed.
var ErrNoPrice = errors.New("no price available")

// TickerSource is anything that can quote a contract. exchange.Client satisfies it.
type TickerSource interface {
	GetTicker(ctx context.Context, contractID string) (float64, error)
}

// Quote is the result of one price poll.
type Quote struct {
	Price  float64
	Source string
	// Stale is set when every source failed and Price is the last observed value.
	Stale bool
}

// PublicTicker reads a spot price from a Binance-compatible public ticker endpoint.
// It ignores the contract id and always quotes its configured symbol.
type PublicTicker struct {
	http   *resty.Client
	symbol string
}

// NewPublicTicker creates a fallback ticker for the given base URL and symbol.
func NewPublicTicker(baseURL, symbol string, timeout time.Duration) *PublicTicker {
	return &PublicTicker{
		http:   resty.New().SetBaseURL(strings.TrimSuffix(baseURL, "/")).SetTimeout(timeout),
		symbol: symbol,
	}
}

// GetTicker implements TickerSource.
func (p *PublicTicker) GetTicker(ctx context.Context, _ string) (float64, error) {
	var out struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	resp, err := p.http.R().
		SetContext(ctx).
		SetQueryParam("symbol", p.symbol).
		SetResult(&out).
		Get("/api/v3/ticker/price")
	if err != nil {
		return 0, fmt.Errorf("public ticker request failed: %w", err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("public ticker error: HTTP %d, body: %s", resp.StatusCode(), resp.String())
	}
	price, err := strconv.ParseFloat(out.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse public ticker price %q: %w", out.Price, err)
	}
	return price, nil
}

// PriceFeed polls the venue ticker, then an optional fallback ticker, and finally falls
// back to the last successfully observed price.
type PriceFeed struct {
	contractID string
	primary    TickerSource
	fallback   TickerSource
	last       float64
}

// NewPriceFeed creates a feed. fallback may be nil.
func NewPriceFeed(contractID string, primary, fallback TickerSource) *PriceFeed {
	return &PriceFeed{contractID: contractID, primary: primary, fallback: fallback}
}

// CurrentPrice never blocks beyond the sources' own request timeouts.
func (f *PriceFeed) CurrentPrice(ctx context.Context) (Quote, error) {
	price, err := f.primary.GetTicker(ctx, f.contractID)
	if err == nil && price > 0 {
		f.last = price
		return Quote{Price: price, Source: "venue"}, nil
	}
	logs.Errorf("[Price Feed] Venue ticker failed: %v", errOrNonPositive(err, price))

	if f.fallback != nil {
		price, err = f.fallback.GetTicker(ctx, f.contractID)
		if err == nil && price > 0 {
			f.last = price
			return Quote{Price: price, Source: "fallback"}, nil
		}
		logs.Errorf("[Price Feed] Fallback ticker failed: %v", errOrNonPositive(err, price))
	}

	if f.last > 0 {
		return Quote{Price: f.last, Source: "last", Stale: true}, nil
	}
	return Quote{}, ErrNoPrice
}

// LastPrice returns the last successfully observed price, zero if none.
func (f *PriceFeed) LastPrice() float64 { return f.last }

func errOrNonPositive(err error, price float64) error {
	if err != nil {
		return err
	}
	return fmt.Errorf("non-positive price %f", price)
}
