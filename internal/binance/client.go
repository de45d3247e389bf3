// Package binance implements the market-data and order gateways against the
// Binance spot REST API. Public market data goes through the keyless data
// endpoint; account and order calls are HMAC-SHA256 signed.
package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"breakout/internal/config"
	"breakout/internal/models"
)

type Client struct {
	httpClient  *http.Client
	baseURL     string
	dataBaseURL string
	apiKey      string
	apiSecret   string
	recvWindow  int64

	mu      sync.Mutex
	filters map[string]LotSize
}

type LotSize struct {
	StepSize decimal.Decimal
	MinQty   decimal.Decimal
}

type Balance struct {
	Asset string
	Free  decimal.Decimal
}

// OrderResult is a filled market order. FillPrice is the first fill's price.
type OrderResult struct {
	Symbol      string
	Side        string
	ExecutedQty decimal.Decimal
	FillPrice   decimal.Decimal
}

func NewClient(httpClient *http.Client, cfg config.BinanceConfig) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	data := strings.TrimRight(cfg.DataBaseURL, "/")
	base := strings.TrimRight(cfg.BaseURL, "/")
	if data == "" {
		data = base
	}
	return &Client{
		httpClient:  httpClient,
		baseURL:     base,
		dataBaseURL: data,
		apiKey:      cfg.APIKey,
		apiSecret:   cfg.APISecret,
		recvWindow:  cfg.RecvWindow,
		filters:     map[string]LotSize{},
	}
}

// WithCredentials returns a copy bound to run-level API keys. The lot-size
// cache is not shared; filters are cheap to refetch. A nil client stays nil.
func (c *Client) WithCredentials(apiKey, apiSecret string) *Client {
	if c == nil {
		return nil
	}
	next := &Client{
		httpClient:  c.httpClient,
		baseURL:     c.baseURL,
		dataBaseURL: c.dataBaseURL,
		apiKey:      apiKey,
		apiSecret:   apiSecret,
		recvWindow:  c.recvWindow,
		filters:     map[string]LotSize{},
	}
	return next
}

// FetchCandles returns up to limit bars, most-recent-last. Rows come back as
// mixed-type JSON arrays: open time is a number, prices and volumes are
// strings.
func (c *Client) FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))
	body, err := c.get(ctx, c.dataBaseURL, "/api/v3/klines", q, false)
	if err != nil {
		return nil, err
	}
	var rows [][]any
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, &GatewayError{Op: "klines", Err: err}
	}
	out := make([]models.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		openTime, ok := row[0].(float64)
		if !ok {
			continue
		}
		closePx, err1 := parseFloatField(row[4])
		volume, err2 := parseFloatField(row[5])
		if err1 != nil || err2 != nil {
			continue
		}
		out = append(out, models.Candle{
			OpenTime: int64(openTime),
			Close:    closePx,
			Volume:   volume,
		})
	}
	return out, nil
}

func (c *Client) TickerPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	body, err := c.get(ctx, c.baseURL, "/api/v3/ticker/price", q, false)
	if err != nil {
		return decimal.Zero, err
	}
	var parsed struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return decimal.Zero, &GatewayError{Op: "ticker", Err: err}
	}
	price, err := decimal.NewFromString(parsed.Price)
	if err != nil || price.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, &GatewayError{Op: "ticker", Err: fmt.Errorf("invalid price %q", parsed.Price)}
	}
	return price, nil
}

// GetLotSize returns the LOT_SIZE filter for symbol, cached per client.
func (c *Client) GetLotSize(ctx context.Context, symbol string) (LotSize, error) {
	c.mu.Lock()
	if ls, ok := c.filters[symbol]; ok {
		c.mu.Unlock()
		return ls, nil
	}
	c.mu.Unlock()

	q := url.Values{}
	q.Set("symbol", symbol)
	body, err := c.get(ctx, c.baseURL, "/api/v3/exchangeInfo", q, false)
	if err != nil {
		return LotSize{}, err
	}
	var parsed struct {
		Symbols []struct {
			Symbol  string `json:"symbol"`
			Filters []struct {
				FilterType string `json:"filterType"`
				StepSize   string `json:"stepSize"`
				MinQty     string `json:"minQty"`
			} `json:"filters"`
		} `json:"symbols"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return LotSize{}, &GatewayError{Op: "exchangeInfo", Err: err}
	}
	if len(parsed.Symbols) == 0 {
		return LotSize{}, &GatewayError{Op: "exchangeInfo", Err: fmt.Errorf("symbol %s not found", symbol)}
	}
	var ls LotSize
	for _, f := range parsed.Symbols[0].Filters {
		if f.FilterType != "LOT_SIZE" {
			continue
		}
		step, err1 := decimal.NewFromString(f.StepSize)
		minQty, err2 := decimal.NewFromString(f.MinQty)
		if err1 != nil || err2 != nil {
			return LotSize{}, &GatewayError{Op: "exchangeInfo", Err: fmt.Errorf("bad LOT_SIZE filter for %s", symbol)}
		}
		ls = LotSize{StepSize: step, MinQty: minQty}
	}
	if ls.StepSize.LessThanOrEqual(decimal.Zero) {
		return LotSize{}, &GatewayError{Op: "exchangeInfo", Err: fmt.Errorf("no LOT_SIZE filter for %s", symbol)}
	}

	c.mu.Lock()
	c.filters[symbol] = ls
	c.mu.Unlock()
	return ls, nil
}

func (c *Client) AccountBalances(ctx context.Context) ([]Balance, error) {
	body, err := c.get(ctx, c.baseURL, "/api/v3/account", url.Values{}, true)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Balances []struct {
			Asset string `json:"asset"`
			Free  string `json:"free"`
		} `json:"balances"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &GatewayError{Op: "account", Err: err}
	}
	out := make([]Balance, 0, len(parsed.Balances))
	for _, b := range parsed.Balances {
		free, err := decimal.NewFromString(b.Free)
		if err != nil {
			continue
		}
		out = append(out, Balance{Asset: b.Asset, Free: free})
	}
	return out, nil
}

// SubmitMarketOrder places a MARKET order for the given base quantity.
// Quantity is already step-size formatted by the caller.
func (c *Client) SubmitMarketOrder(ctx context.Context, symbol, side, quantity string) (*OrderResult, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("side", side)
	q.Set("type", "MARKET")
	q.Set("quantity", quantity)
	q.Set("newClientOrderId", uuid.NewString())
	q.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	if c.recvWindow > 0 {
		q.Set("recvWindow", strconv.FormatInt(c.recvWindow, 10))
	}
	q.Set("signature", c.sign(q))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v3/order", strings.NewReader(q.Encode()))
	if err != nil {
		return nil, &OrderError{Symbol: symbol, Side: side, Err: err}
	}
	req.Header.Set("X-MBX-APIKEY", c.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &OrderError{Symbol: symbol, Side: side, Err: err}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return nil, &OrderError{Symbol: symbol, Side: side, Status: resp.StatusCode, Body: string(body)}
	}

	var parsed struct {
		ExecutedQty string `json:"executedQty"`
		Fills       []struct {
			Price string `json:"price"`
			Qty   string `json:"qty"`
		} `json:"fills"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &OrderError{Symbol: symbol, Side: side, Err: err}
	}
	executed, err := decimal.NewFromString(parsed.ExecutedQty)
	if err != nil || executed.LessThanOrEqual(decimal.Zero) {
		return nil, &OrderError{Symbol: symbol, Side: side, Err: fmt.Errorf("empty execution: %s", string(body))}
	}
	if len(parsed.Fills) == 0 {
		return nil, &OrderError{Symbol: symbol, Side: side, Err: fmt.Errorf("no fills reported")}
	}
	price, err := decimal.NewFromString(parsed.Fills[0].Price)
	if err != nil || price.LessThanOrEqual(decimal.Zero) {
		return nil, &OrderError{Symbol: symbol, Side: side, Err: fmt.Errorf("invalid fill price %q", parsed.Fills[0].Price)}
	}
	return &OrderResult{
		Symbol:      symbol,
		Side:        side,
		ExecutedQty: executed,
		FillPrice:   price,
	}, nil
}

func (c *Client) get(ctx context.Context, base, path string, q url.Values, signed bool) ([]byte, error) {
	op := strings.TrimPrefix(path, "/api/v3/")
	if signed {
		q.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
		if c.recvWindow > 0 {
			q.Set("recvWindow", strconv.FormatInt(c.recvWindow, 10))
		}
		q.Set("signature", c.sign(q))
	}
	u := base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &GatewayError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if signed && c.apiKey != "" {
		req.Header.Set("X-MBX-APIKEY", c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &GatewayError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return nil, &GatewayError{Op: op, Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

func (c *Client) sign(q url.Values) string {
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(q.Encode()))
	return hex.EncodeToString(mac.Sum(nil))
}

func parseFloatField(v any) (float64, error) {
	switch t := v.(type) {
	case string:
		return strconv.ParseFloat(t, 64)
	case float64:
		return t, nil
	default:
		return 0, fmt.Errorf("unexpected kline field type %T", v)
	}
}
