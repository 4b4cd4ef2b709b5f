package market

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTicker struct {
	price float64
	err   error
	calls int
}

func (s *stubTicker) GetTicker(ctx context.Context, contractID string) (float64, error) {
	s.calls++
	return s.price, s.err
}

func TestPriceFeed_FallbackChain(t *testing.T) {
	ctx := context.Background()
	primary := &stubTicker{price: 50000}
	fallback := &stubTicker{price: 50100}
	feed := NewPriceFeed("10000001", primary, fallback)

	q, err := feed.CurrentPrice(ctx)
	require.NoError(t, err)
	assert.Equal(t, Quote{Price: 50000, Source: "venue"}, q)
	assert.Equal(t, 0, fallback.calls)

	primary.err = errors.New("502")
	q, err = feed.CurrentPrice(ctx)
	require.NoError(t, err)
	assert.Equal(t, Quote{Price: 50100, Source: "fallback"}, q)

	fallback.err = errors.New("timeout")
	q, err = feed.CurrentPrice(ctx)
	require.NoError(t, err)
	assert.True(t, q.Stale)
	assert.Equal(t, 50100.0, q.Price)
	assert.Equal(t, 50100.0, feed.LastPrice())
}

func TestPriceFeed_NoPriceEver(t *testing.T) {
	feed := NewPriceFeed("10000001", &stubTicker{err: errors.New("down")}, nil)
	_, err := feed.CurrentPrice(context.Background())
	assert.ErrorIs(t, err, ErrNoPrice)
}

func TestPriceFeed_IgnoresNonPositivePrice(t *testing.T) {
	feed := NewPriceFeed("10000001", &stubTicker{price: 0}, nil)
	_, err := feed.CurrentPrice(context.Background())
	assert.ErrorIs(t, err, ErrNoPrice)
}

func TestPublicTicker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/price", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"symbol":"BTCUSDT","price":"50123.45000000"}`))
	}))
	defer srv.Close()

	price, err := NewPublicTicker(srv.URL, "BTCUSDT", time.Second).GetTicker(context.Background(), "ignored")
	require.NoError(t, err)
	assert.Equal(t, 50123.45, price)
}
