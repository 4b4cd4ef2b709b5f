package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0xsecretsecret"

func newTestClient(t *testing.T, handler http.HandlerFunc) *APIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewAPIClient(srv.URL, "42", testSecret, 2*time.Second)
	c.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return c
}

func writeEnvelope(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"code": "SUCCESS", "data": data})
}

func expectedSignature(method, path, payload string) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte("1700000000000" + method + path + payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestGetTicker_PrefersMarkPrice(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/public/ticker", r.URL.Path)
		assert.Equal(t, "10000001", r.URL.Query().Get("contractId"))
		assert.Empty(t, r.Header.Get(headerSignature), "public endpoint must not be signed")
		writeEnvelope(w, map[string]string{"lastPrice": "50010.5", "markPrice": "50000.1"})
	})

	price, err := c.GetTicker(context.Background(), "10000001")
	require.NoError(t, err)
	assert.Equal(t, 50000.1, price)
}

func TestGetTicker_FallsBackToLastPrice(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, map[string]string{"lastPrice": "49999"})
	})

	price, err := c.GetTicker(context.Background(), "10000001")
	require.NoError(t, err)
	assert.Equal(t, 49999.0, price)
}

func TestGetBalance_SignsRequest(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "42", r.Header.Get(headerAccountID))
		assert.Equal(t, "1700000000000", r.Header.Get(headerTimestamp))
		assert.Equal(t, expectedSignature("GET", r.URL.Path, r.URL.RawQuery), r.Header.Get(headerSignature))
		writeEnvelope(w, map[string]interface{}{
			"collateralList": []map[string]string{{"coinId": "1000", "amount": "17.18"}},
		})
	})

	balance, err := c.GetBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 17.18, balance)
}

func TestGetOpenOrders_FiltersOtherContracts(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, map[string]interface{}{
			"dataList": []map[string]string{
				{"id": "1", "contractId": "10000001", "side": "BUY", "price": "49970", "size": "0.001"},
				{"id": "2", "contractId": "10000002", "side": "SELL", "price": "3000", "size": "0.01"},
			},
		})
	})

	orders, err := c.GetOpenOrders(context.Background(), "10000001")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, Buy, orders[0].Side)
	assert.True(t, orders[0].Price.Equal(decimal.NewFromInt(49970)))
}

func TestCreateOrder_SendsSignedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, expectedSignature("POST", r.URL.Path, string(raw)), r.Header.Get(headerSignature))

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, "SELL", body["side"])
		assert.Equal(t, "50030", body["price"])
		assert.Equal(t, "0.001", body["size"])
		assert.Equal(t, "LIMIT", body["type"])
		writeEnvelope(w, map[string]string{"orderId": "777"})
	})

	order, err := c.CreateOrder(context.Background(), &OrderRequest{
		ContractID:    "10000001",
		ClientOrderID: "cid-1",
		Side:          Sell,
		Price:         decimal.NewFromInt(50030),
		Size:          decimal.RequireFromString("0.001"),
	})
	require.NoError(t, err)
	assert.Equal(t, "777", order.ID)
	assert.Equal(t, "cid-1", order.ClientOrderID)
}

func TestSendRequest_APIErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/private/order/cancelOrderById":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]string{"code": "ORDER_NOT_EXIST", "msg": "order not exist"})
		default:
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("upstream down"))
		}
	})

	err := c.CancelOrder(context.Background(), "9")
	assert.True(t, errors.Is(err, ErrOrderNotFound))

	_, err = c.GetBalance(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 502")
}

func TestGetPosition_FlatWhenAbsent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, []map[string]string{{"contractId": "10000001", "openSize": "-0.004"}})
	})

	pos, err := c.GetPosition(context.Background(), "10000001")
	require.NoError(t, err)
	assert.Equal(t, "-0.004", pos.NetSize.String())

	pos, err = c.GetPosition(context.Background(), "10000009")
	require.NoError(t, err)
	assert.True(t, pos.NetSize.IsZero())
}
