package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"cross-venue-mm/market"
)

// ErrMissingCredentials 实盘调用缺少 apiKey/secret。
var ErrMissingCredentials = errors.New("missing api credentials")

// APIError 交易所返回的业务错误（HTTP 4xx/5xx + code/msg）。
type APIError struct {
	Status int
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance api status %d code %d: %s", e.Status, e.Code, e.Msg)
}

// RequestRecorder 记录请求/错误次数，由 metrics.Monitor 实现。
type RequestRecorder interface {
	RecordRESTRequest(action string)
	RecordRESTError(action string)
}

// BinanceRESTClient 现货下单客户端；HTTPClient 可注入 httptest。
type BinanceRESTClient struct {
	BaseURL      string
	APIKey       string
	Secret       string
	RecvWindowMs int64
	HTTPClient   *http.Client
	Limiter      RateLimiter
	Recorder     RequestRecorder
}

const (
	OrderTypeLimit      = "LIMIT"
	OrderTypeLimitMaker = "LIMIT_MAKER"
	TimeInForceIOC      = "IOC"
	TimeInForceGTC      = "GTC"
)

// OrderRequest 一笔限价单。LIMIT_MAKER 不带 timeInForce。
type OrderRequest struct {
	Symbol        string
	Side          market.Side
	Type          string
	TimeInForce   string
	Price         decimal.Decimal
	Qty           decimal.Decimal
	ClientOrderID string
}

// OrderResult newOrderRespType=RESULT 的返回。
type OrderResult struct {
	OrderID             int64           `json:"orderId"`
	ClientOrderID       string          `json:"clientOrderId"`
	Status              string          `json:"status"`
	ExecutedQty         decimal.Decimal `json:"executedQty"`
	CummulativeQuoteQty decimal.Decimal `json:"cummulativeQuoteQty"`
}

// Final 订单已不再挂在盘口上。
func (r OrderResult) Final() bool {
	switch r.Status {
	case "FILLED", "CANCELED", "REJECTED", "EXPIRED", "EXPIRED_IN_MATCH":
		return true
	}
	return false
}

// AvgPrice 成交均价；未成交时为 0。
func (r OrderResult) AvgPrice() decimal.Decimal {
	if r.ExecutedQty.IsZero() {
		return decimal.Zero
	}
	return r.CummulativeQuoteQty.Div(r.ExecutedQty)
}

// PlaceOrder 调用 /api/v3/order 下单。
func (c *BinanceRESTClient) PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error) {
	var res OrderResult
	if !req.Side.Valid() {
		return res, fmt.Errorf("%w: order %s", market.ErrInvalidSide, req.ClientOrderID)
	}
	params := map[string]string{
		"symbol":           req.Symbol,
		"side":             strings.ToUpper(req.Side.String()),
		"type":             req.Type,
		"price":            req.Price.String(),
		"quantity":         req.Qty.String(),
		"newOrderRespType": "RESULT",
	}
	if req.TimeInForce != "" && req.Type != OrderTypeLimitMaker {
		params["timeInForce"] = req.TimeInForce
	}
	if req.ClientOrderID != "" {
		params["newClientOrderId"] = req.ClientOrderID
	}
	err := c.do(ctx, http.MethodPost, "/api/v3/order", "place_order", params, &res)
	return res, err
}

// QueryOrder 查询订单当前状态与累计成交。
func (c *BinanceRESTClient) QueryOrder(ctx context.Context, symbol string, orderID int64) (OrderResult, error) {
	var res OrderResult
	params := map[string]string{
		"symbol":  symbol,
		"orderId": fmt.Sprintf("%d", orderID),
	}
	err := c.do(ctx, http.MethodGet, "/api/v3/order", "query_order", params, &res)
	return res, err
}

// CancelOrder 按 orderId 撤单，返回撤单时的最终成交量。
func (c *BinanceRESTClient) CancelOrder(ctx context.Context, symbol string, orderID int64) (OrderResult, error) {
	var res OrderResult
	params := map[string]string{
		"symbol":  symbol,
		"orderId": fmt.Sprintf("%d", orderID),
	}
	err := c.do(ctx, http.MethodDelete, "/api/v3/order", "cancel_order", params, &res)
	return res, err
}

// CancelAll 撤销该交易对全部挂单；没有挂单时交易所返回 -2011，视为成功。
func (c *BinanceRESTClient) CancelAll(ctx context.Context, symbol string) error {
	err := c.do(ctx, http.MethodDelete, "/api/v3/openOrders", "cancel_all", map[string]string{"symbol": symbol}, nil)
	if IsUnknownOrder(err) {
		return nil
	}
	return err
}

// IsUnknownOrder 交易所 -2011：订单不存在或已结束。
func IsUnknownOrder(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == -2011
}

func (c *BinanceRESTClient) do(ctx context.Context, method, path, action string, params map[string]string, out interface{}) error {
	if c == nil || c.HTTPClient == nil {
		return fmt.Errorf("http client not set")
	}
	if c.APIKey == "" || c.Secret == "" {
		return ErrMissingCredentials
	}
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return err
		}
	}
	if c.Recorder != nil {
		c.Recorder.RecordRESTRequest(action)
	}
	err := c.send(ctx, method, path, params, out)
	if err != nil && c.Recorder != nil {
		c.Recorder.RecordRESTError(action)
	}
	return err
}

func (c *BinanceRESTClient) send(ctx context.Context, method, path string, params map[string]string, out interface{}) error {
	query, sig := SignParams(params, c.Secret, c.RecvWindowMs)
	endpoint := c.BaseURL + path + "?" + query + "&signature=" + url.QueryEscape(sig)
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-MBX-APIKEY", c.APIKey)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.Unmarshal(body, apiErr)
		return apiErr
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

// NewDefaultHTTPClient 提供一个带超时的 http.Client。
func NewDefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}
