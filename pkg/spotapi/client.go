// Package spotapi is a REST client for the spot exchange API: session
// handling with TOTP two-factor login, market data (klines, ticker), spot
// market orders, and account balances.
//
// Usage example:
//
//	c := spotapi.New(spotapi.Config{APIKey: "key", BaseURL: "https://api.exchange.example"})
//	if err := c.Login(ctx, "CLIENTID", "PASSWORD", "TOTPSECRET"); err != nil { log.Fatal(err) }
//	klines, err := c.GetKlines(ctx, "SOL-USDC", "1m", 500)
package spotapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pquerna/otp/totp"
	"golang.org/x/time/rate"
)

// Config configures the spot API client.
type Config struct {
	APIKey  string
	BaseURL string        // default: https://api.spotvenue.io
	Timeout time.Duration // default: 7s
	Debug   bool

	// RequestsPerSecond throttles all outgoing calls. Default 5.
	RequestsPerSecond float64
}

const defaultBaseURL = "https://api.spotvenue.io"

var routes = map[string]string{
	"api.login":   "/v1/auth/login",
	"api.refresh": "/v1/auth/refresh",
	"api.logout":  "/v1/auth/logout",

	"api.klines":      "/v1/market/klines",
	"api.ticker":      "/v1/market/ticker",
	"api.order.place": "/v1/spot/order",
	"api.order.get":   "/v1/spot/order",
	"api.balance":     "/v1/account/balance",
}

// Client is the spot exchange REST client. Not safe for concurrent token
// mutation; the bot uses it from a single goroutine.
type Client struct {
	apiKey       string
	accessToken  string
	refreshToken string

	baseURL string
	debug   bool

	httpClient *http.Client
	limiter    *rate.Limiter

	// SessionExpiryHook is called when the API reports an expired session.
	SessionExpiryHook func()
}

// New creates a spot API client.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 7 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		debug:      cfg.Debug,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), int(cfg.RequestsPerSecond)+1),
	}
}

// envelope is the standard API response wrapper.
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Error   string          `json:"error_type"`
	Data    json.RawMessage `json:"data"`
}

// Kline is one OHLCV row from the klines endpoint.
type Kline struct {
	OpenTime int64   `json:"t"` // unix seconds
	Open     float64 `json:"o,string"`
	High     float64 `json:"h,string"`
	Low      float64 `json:"l,string"`
	Close    float64 `json:"c,string"`
	Volume   float64 `json:"v,string"`
}

// Ticker is the last-trade snapshot for a market.
type Ticker struct {
	Market string  `json:"market"`
	Price  float64 `json:"price,string"`
	Time   int64   `json:"time"`
}

// OrderFill is the venue's fill report for a market order.
type OrderFill struct {
	OrderID     string  `json:"order_id"`
	Market      string  `json:"market"`
	Side        string  `json:"side"`
	AvgPrice    float64 `json:"avg_price,string"`
	FilledRaw   int64   `json:"filled_raw,string"` // base-token raw units
	RawDecimals int     `json:"raw_decimals"`
	QuoteSpent  float64 `json:"quote_spent,string"`
	ProceedsRaw int64   `json:"proceeds_raw,string"` // quote raw units (sells)
	TxSignature string  `json:"tx_signature"`
	Status      string  `json:"status"` // FILLED, REJECTED
}

// Balance is one asset balance.
type Balance struct {
	Asset  string  `json:"asset"`
	Free   float64 `json:"free,string"`
	Locked float64 `json:"locked,string"`
}

// Login performs the TOTP two-factor login and stores the session tokens.
// totpSecret is the shared base32 secret; the one-time code is generated
// locally at call time.
func (c *Client) Login(ctx context.Context, clientID, password, totpSecret string) error {
	code, err := totp.GenerateCode(totpSecret, time.Now())
	if err != nil {
		return fmt.Errorf("totp generate: %w", err)
	}

	var data struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	err = c.post(ctx, "api.login", map[string]any{
		"client_id": clientID,
		"password":  password,
		"totp":      code,
	}, &data)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	c.accessToken = data.AccessToken
	c.refreshToken = data.RefreshToken
	log.Printf("[spotapi] session established for %s", clientID)
	return nil
}

// RefreshSession exchanges the refresh token for a new access token.
func (c *Client) RefreshSession(ctx context.Context) error {
	var data struct {
		AccessToken string `json:"access_token"`
	}
	err := c.post(ctx, "api.refresh", map[string]any{"refresh_token": c.refreshToken}, &data)
	if err != nil {
		return fmt.Errorf("refresh session: %w", err)
	}
	c.accessToken = data.AccessToken
	return nil
}

// Logout terminates the session.
func (c *Client) Logout(ctx context.Context) error {
	return c.post(ctx, "api.logout", nil, nil)
}

// GetKlines fetches up to limit most recent closed candles for the market,
// oldest first. interval is the venue interval string, e.g. "1m".
func (c *Client) GetKlines(ctx context.Context, market, interval string, limit int) ([]Kline, error) {
	var klines []Kline
	err := c.get(ctx, "api.klines", map[string]string{
		"market":   market,
		"interval": interval,
		"limit":    fmt.Sprintf("%d", limit),
	}, &klines)
	if err != nil {
		return nil, fmt.Errorf("get klines %s %s: %w", market, interval, err)
	}
	return klines, nil
}

// GetTicker fetches the last-trade price for the market.
func (c *Client) GetTicker(ctx context.Context, market string) (*Ticker, error) {
	var t Ticker
	err := c.get(ctx, "api.ticker", map[string]string{"market": market}, &t)
	if err != nil {
		return nil, fmt.Errorf("get ticker %s: %w", market, err)
	}
	return &t, nil
}

// PlaceMarketBuy spends quoteAmount of the quote currency on a market buy.
func (c *Client) PlaceMarketBuy(ctx context.Context, market string, quoteAmount float64) (*OrderFill, error) {
	return c.placeOrder(ctx, map[string]any{
		"market":       market,
		"side":         "BUY",
		"type":         "MARKET",
		"quote_amount": fmt.Sprintf("%.8f", quoteAmount),
	})
}

// PlaceMarketSell sells sizeRaw base-token raw units at market.
func (c *Client) PlaceMarketSell(ctx context.Context, market string, sizeRaw int64, decimals int) (*OrderFill, error) {
	return c.placeOrder(ctx, map[string]any{
		"market":    market,
		"side":      "SELL",
		"type":      "MARKET",
		"size_raw":  fmt.Sprintf("%d", sizeRaw),
		"decimals":  decimals,
	})
}

func (c *Client) placeOrder(ctx context.Context, params map[string]any) (*OrderFill, error) {
	var fill OrderFill
	if err := c.post(ctx, "api.order.place", params, &fill); err != nil {
		return nil, fmt.Errorf("place order: %w", err)
	}
	if fill.Status != "FILLED" {
		return nil, fmt.Errorf("order %s not filled: %s", fill.OrderID, fill.Status)
	}
	return &fill, nil
}

// GetBalance fetches the free balance for one asset.
func (c *Client) GetBalance(ctx context.Context, asset string) (float64, error) {
	var balances []Balance
	err := c.get(ctx, "api.balance", map[string]string{"asset": asset}, &balances)
	if err != nil {
		return 0, fmt.Errorf("get balance %s: %w", asset, err)
	}
	for _, b := range balances {
		if b.Asset == asset {
			return b.Free, nil
		}
	}
	return 0, fmt.Errorf("asset %s not in balance response", asset)
}

// ---- request plumbing ----

func (c *Client) requestHeaders() http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	h.Set("X-API-Key", c.apiKey)
	if c.accessToken != "" {
		h.Set("Authorization", "Bearer "+c.accessToken)
	}
	return h
}

func (c *Client) get(ctx context.Context, route string, params map[string]string, out any) error {
	uri, ok := routes[route]
	if !ok {
		return fmt.Errorf("unknown route: %s", route)
	}
	reqURL := c.baseURL + uri
	if len(params) > 0 {
		q := url.Values{}
		for k, v := range params {
			q.Set(k, v)
		}
		reqURL += "?" + q.Encode()
	}
	return c.do(ctx, http.MethodGet, reqURL, nil, out)
}

func (c *Client) post(ctx context.Context, route string, params map[string]any, out any) error {
	uri, ok := routes[route]
	if !ok {
		return fmt.Errorf("unknown route: %s", route)
	}
	var body io.Reader
	if params != nil {
		b, _ := json.Marshal(params)
		body = bytes.NewReader(b)
	}
	return c.do(ctx, http.MethodPost, c.baseURL+uri, body, out)
}

func (c *Client) do(ctx context.Context, method, reqURL string, body io.Reader, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return err
	}
	req.Header = c.requestHeaders()

	if c.debug {
		log.Printf("[spotapi] %s %s", method, reqURL)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if c.debug {
		log.Printf("[spotapi] response code=%d body=%s", resp.StatusCode, string(raw))
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("parse response (code %d): %w", resp.StatusCode, err)
	}
	if env.Error != "" {
		if resp.StatusCode == http.StatusForbidden && env.Error == "SessionExpired" && c.SessionExpiryHook != nil {
			c.SessionExpiryHook()
		}
		return fmt.Errorf("%s: %s", env.Error, env.Message)
	}
	if !env.Status {
		return fmt.Errorf("api request failed: %s", env.Message)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}
