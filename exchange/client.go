// exchange/client.go
package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"captain_grid_go/logs"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// Ensure APIClient struct implements Client interface
var _ Client = (*APIClient)(nil)

const (
	headerTimestamp = "X-edgeX-Api-Timestamp"
	headerSignature = "X-edgeX-Api-Signature"
	headerAccountID = "X-edgeX-Account-Id"

	codeSuccess = "SUCCESS"
)

// APIClient talks to the venue's REST API. Requests are signed with an HMAC over
// timestamp, method, path and payload.
type APIClient struct {
	AccountID string
	apiSecret string
	http      *resty.Client
	now       func() time.Time
}

// envelope is the common response wrapper of every endpoint.
type envelope[T any] struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data T      `json:"data"`
}

type tickerData struct {
	ContractID string `json:"contractId"`
	LastPrice  string `json:"lastPrice"`
	MarkPrice  string `json:"markPrice"`
}

type accountAssetData struct {
	CollateralList []struct {
		CoinID string `json:"coinId"`
		Amount string `json:"amount"`
	} `json:"collateralList"`
}

type activeOrderPage struct {
	DataList []OpenOrder `json:"dataList"`
}

type createOrderData struct {
	OrderID string `json:"orderId"`
}

type positionData struct {
	ContractID string          `json:"contractId"`
	OpenSize   decimal.Decimal `json:"openSize"`
}

// NewAPIClient creates a new API client instance.
func NewAPIClient(baseURL, accountID, apiSecret string, timeout time.Duration) *APIClient {
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "captain-grid-go")
	return &APIClient{
		AccountID: accountID,
		apiSecret: apiSecret,
		http:      client,
		now:       time.Now,
	}
}

// sign builds the request signature: hex(HMAC-SHA256(secret, timestamp + METHOD + path + payload)).
func (c *APIClient) sign(timestamp, method, path, payload string) string {
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	_, _ = mac.Write([]byte(timestamp + strings.ToUpper(method) + path + payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// sendRequest signs (for private endpoints), sends and decodes a request into target's envelope.
func sendRequest[T any](ctx context.Context, c *APIClient, method, path string, query url.Values, body interface{}, private bool) (T, error) {
	var out envelope[T]
	var zero T

	req := c.http.R().SetContext(ctx).SetResult(&out).SetError(&out)
	payload := ""
	if query != nil {
		req.SetQueryParamsFromValues(query)
		payload = query.Encode()
	}
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return zero, fmt.Errorf("failed to encode request body: %w", err)
		}
		req.SetHeader("Content-Type", "application/json").SetBody(raw)
		payload = string(raw)
	}
	if private {
		ts := strconv.FormatInt(c.now().UnixMilli(), 10)
		req.SetHeader(headerTimestamp, ts).
			SetHeader(headerAccountID, c.AccountID).
			SetHeader(headerSignature, c.sign(ts, method, path, payload))
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return zero, fmt.Errorf("failed to execute request %s %s: %w", method, path, err)
	}
	if resp.IsError() {
		if out.Msg != "" {
			return zero, fmt.Errorf("API error: HTTP %d, %s (code: %s)", resp.StatusCode(), out.Msg, out.Code)
		}
		return zero, fmt.Errorf("API error: HTTP %d, body: %s", resp.StatusCode(), resp.String())
	}
	if out.Code != codeSuccess {
		return zero, fmt.Errorf("API error: %s (code: %s)", out.Msg, out.Code)
	}
	return out.Data, nil
}

// GetTicker returns markPrice, falling back to lastPrice when the mark is missing.
func (c *APIClient) GetTicker(ctx context.Context, contractID string) (float64, error) {
	q := url.Values{}
	q.Set("contractId", contractID)
	data, err := sendRequest[tickerData](ctx, c, resty.MethodGet, "/api/v1/public/ticker", q, nil, false)
	if err != nil {
		return 0, err
	}
	raw := data.MarkPrice
	if raw == "" {
		raw = data.LastPrice
	}
	if raw == "" {
		return 0, fmt.Errorf("ticker for contract %s carried no price", contractID)
	}
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse ticker price %q: %w", raw, err)
	}
	return price, nil
}

// GetBalance returns the amount of the first collateral entry (USDT on this venue).
func (c *APIClient) GetBalance(ctx context.Context) (float64, error) {
	q := url.Values{}
	q.Set("accountId", c.AccountID)
	data, err := sendRequest[accountAssetData](ctx, c, resty.MethodGet, "/api/v1/private/account/getAccountAsset", q, nil, true)
	if err != nil {
		return 0, err
	}
	if len(data.CollateralList) == 0 {
		return 0, errors.New("account asset response has no collateral entries")
	}
	amount, err := strconv.ParseFloat(data.CollateralList[0].Amount, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse collateral amount %q: %w", data.CollateralList[0].Amount, err)
	}
	return amount, nil
}

// GetOpenOrders lists active orders filtered by contract on the server side; entries for
// other contracts are dropped again here in case the filter is ignored.
func (c *APIClient) GetOpenOrders(ctx context.Context, contractID string) ([]OpenOrder, error) {
	q := url.Values{}
	q.Set("accountId", c.AccountID)
	q.Set("filterContractIdList", contractID)
	data, err := sendRequest[activeOrderPage](ctx, c, resty.MethodGet, "/api/v1/private/order/getActiveOrderPage", q, nil, true)
	if err != nil {
		return nil, err
	}
	orders := make([]OpenOrder, 0, len(data.DataList))
	for _, o := range data.DataList {
		if o.ContractID == contractID {
			orders = append(orders, o)
		}
	}
	return orders, nil
}

// CreateOrder submits a GTC limit order.
func (c *APIClient) CreateOrder(ctx context.Context, req *OrderRequest) (*OpenOrder, error) {
	body := map[string]interface{}{
		"accountId":     c.AccountID,
		"contractId":    req.ContractID,
		"side":          string(req.Side),
		"type":          "LIMIT",
		"timeInForce":   "GOOD_TIL_CANCEL",
		"price":         req.Price.String(),
		"size":          req.Size.String(),
		"clientOrderId": req.ClientOrderID,
	}
	data, err := sendRequest[createOrderData](ctx, c, resty.MethodPost, "/api/v1/private/order/createOrder", nil, body, true)
	if err != nil {
		return nil, err
	}
	return &OpenOrder{
		ID:            data.OrderID,
		ClientOrderID: req.ClientOrderID,
		ContractID:    req.ContractID,
		Side:          req.Side,
		Price:         req.Price,
		Size:          req.Size,
	}, nil
}

// CancelOrder cancels an order by venue id.
func (c *APIClient) CancelOrder(ctx context.Context, orderID string) error {
	body := map[string]interface{}{
		"accountId":   c.AccountID,
		"orderIdList": []string{orderID},
	}
	_, err := sendRequest[map[string]interface{}](ctx, c, resty.MethodPost, "/api/v1/private/order/cancelOrderById", nil, body, true)
	if err != nil && strings.Contains(err.Error(), "ORDER_NOT_EXIST") {
		return fmt.Errorf("cancel %s: %w", orderID, ErrOrderNotFound)
	}
	return err
}

// CancelAllOrders cancels all active orders of the contract.
func (c *APIClient) CancelAllOrders(ctx context.Context, contractID string) error {
	body := map[string]interface{}{
		"accountId":            c.AccountID,
		"filterContractIdList": []string{contractID},
	}
	_, err := sendRequest[map[string]interface{}](ctx, c, resty.MethodPost, "/api/v1/private/order/cancelAllOrder", nil, body, true)
	if err == nil {
		logs.Debugf("[API Client] Cancelled all orders for contract %s", contractID)
	}
	return err
}

// GetPosition returns the signed open size of the contract, zero when flat.
func (c *APIClient) GetPosition(ctx context.Context, contractID string) (*Position, error) {
	q := url.Values{}
	q.Set("accountId", c.AccountID)
	q.Set("contractIdList", contractID)
	data, err := sendRequest[[]positionData](ctx, c, resty.MethodGet, "/api/v1/private/account/getPositionByContractId", q, nil, true)
	if err != nil {
		return nil, err
	}
	for _, p := range data {
		if p.ContractID == contractID {
			return &Position{ContractID: contractID, NetSize: p.OpenSize}, nil
		}
	}
	return &Position{ContractID: contractID, NetSize: decimal.Zero}, nil
}
