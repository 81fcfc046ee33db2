// Package mtbridge is the HTTP/WebSocket client for the MT bridge
// sidecar that fronts the broker terminal. The bridge exposes candles,
// symbol metadata, account state and order endpoints over REST and a
// quote stream over WebSocket.
//
// Sessions authenticate with an API key plus a rotating TOTP code; the
// client logs in lazily and retries once on 401.
package mtbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/pquerna/otp/totp"

	"breakout-botv1/internal/model"
)

// Config configures the bridge client.
type Config struct {
	BaseURL    string // e.g. "http://localhost:8228"
	Login      string // terminal account login
	APIKey     string
	TOTPSecret string        // base32 secret for session codes
	Timeout    time.Duration // default 7s
	Magic      int64         // filters deals to this bot's orders
}

var routes = map[string]string{
	"session":   "/api/v1/session",
	"candles":   "/api/v1/candles",
	"symbol":    "/api/v1/symbols/",
	"account":   "/api/v1/account",
	"order":     "/api/v1/orders",
	"stop":      "/api/v1/orders/stop",
	"deals":     "/api/v1/deals",
	"streamWS":  "/api/v1/stream",
	"heartbeat": "/api/v1/ping",
}

// Client talks to the bridge. It implements model.MarketData,
// model.OrderGateway, model.AccountData and model.PositionEvents.
type Client struct {
	cfg        Config
	httpClient *http.Client

	mu        sync.Mutex
	token     string
	lastDeals map[string]time.Time // high-water mark per symbol for deal polling
}

// NewClient creates a bridge client. No network call is made until the
// first request.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 7 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		lastDeals:  make(map[string]time.Time),
	}
}

type sessionRequest struct {
	Login  string `json:"login"`
	APIKey string `json:"api_key"`
	TOTP   string `json:"totp"`
}

type sessionResponse struct {
	Token string `json:"token"`
}

// login opens a session using the current TOTP code and stores the
// bearer token.
func (c *Client) login(ctx context.Context) error {
	code, err := totp.GenerateCode(c.cfg.TOTPSecret, time.Now())
	if err != nil {
		return fmt.Errorf("mtbridge: totp: %w", err)
	}

	body, _ := json.Marshal(sessionRequest{Login: c.cfg.Login, APIKey: c.cfg.APIKey, TOTP: code})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+routes["session"], bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mtbridge: session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("mtbridge: session status %d: %s", resp.StatusCode, raw)
	}

	var sess sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&sess); err != nil {
		return fmt.Errorf("mtbridge: session decode: %w", err)
	}

	c.mu.Lock()
	c.token = sess.Token
	c.mu.Unlock()
	log.Printf("[mtbridge] session established for %s", c.cfg.Login)
	return nil
}

// do performs an authenticated request, logging in on demand and
// retrying once after a 401.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()

	if token == "" {
		if err := c.login(ctx); err != nil {
			return err
		}
	}

	for attempt := 0; attempt < 2; attempt++ {
		status, err := c.send(ctx, method, path, query, body, out)
		if err != nil {
			return err
		}
		if status == http.StatusUnauthorized {
			if err := c.login(ctx); err != nil {
				return err
			}
			continue
		}
		if status < 200 || status > 299 {
			return fmt.Errorf("mtbridge: %s %s: status %d", method, path, status)
		}
		return nil
	}
	return fmt.Errorf("mtbridge: %s %s: unauthorized after relogin", method, path)
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body, out interface{}) (int, error) {
	reqURL := c.cfg.BaseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.mu.Lock()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.mu.Unlock()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("mtbridge: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 && out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("mtbridge: decode %s: %w", path, err)
		}
	}
	return resp.StatusCode, nil
}

type candlePayload struct {
	TS     int64   `json:"ts"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

type candlesResponse struct {
	Candles []candlePayload `json:"candles"`
}

// FetchCandles returns the most recent count closed bars for symbol.
func (c *Client) FetchCandles(ctx context.Context, symbol, timeframe string, count int) ([]model.Candle, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("timeframe", timeframe)
	q.Set("count", strconv.Itoa(count))

	var resp candlesResponse
	if err := c.do(ctx, http.MethodGet, routes["candles"], q, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Candles) == 0 {
		return nil, fmt.Errorf("%w: %s %s", model.ErrDataUnavailable, symbol, timeframe)
	}

	candles := make([]model.Candle, len(resp.Candles))
	for i, p := range resp.Candles {
		candles[i] = model.Candle{
			Symbol: symbol,
			TS:     time.Unix(p.TS, 0).UTC(),
			Open:   p.Open,
			High:   p.High,
			Low:    p.Low,
			Close:  p.Close,
			Volume: p.Volume,
		}
	}
	return candles, nil
}

type symbolResponse struct {
	Symbol          string  `json:"symbol"`
	Description     string  `json:"description"`
	TradeMode       string  `json:"trade_mode"` // "full", "disabled", ...
	Point           float64 `json:"point"`
	TradeStopsLevel float64 `json:"trade_stops_level"`
	TickValue       float64 `json:"tick_value"`
	VolumeMin       float64 `json:"volume_min"`
	VolumeMax       float64 `json:"volume_max"`
	VolumeStep      float64 `json:"volume_step"`
}

// InstrumentInfo returns venue metadata for symbol.
func (c *Client) InstrumentInfo(ctx context.Context, symbol string) (model.Instrument, error) {
	var resp symbolResponse
	if err := c.do(ctx, http.MethodGet, routes["symbol"]+url.PathEscape(symbol), nil, nil, &resp); err != nil {
		return model.Instrument{}, fmt.Errorf("%w: %s: %v", model.ErrInstrumentUnavailable, symbol, err)
	}
	return model.Instrument{
		Symbol:          resp.Symbol,
		Description:     resp.Description,
		Tradable:        resp.TradeMode == "full",
		Point:           resp.Point,
		TradeStopsLevel: resp.TradeStopsLevel,
		ValuePerPoint:   resp.TickValue,
		VolumeMin:       resp.VolumeMin,
		VolumeMax:       resp.VolumeMax,
		VolumeStep:      resp.VolumeStep,
	}, nil
}

type accountResponse struct {
	Equity float64 `json:"equity"`
}

// Equity returns current account equity.
func (c *Client) Equity(ctx context.Context) (float64, error) {
	var resp accountResponse
	if err := c.do(ctx, http.MethodGet, routes["account"], nil, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Equity, nil
}

type orderRequest struct {
	Symbol  string  `json:"symbol"`
	Side    string  `json:"side"`
	Volume  float64 `json:"volume"`
	Price   float64 `json:"price"`
	SL      float64 `json:"sl"`
	TP      float64 `json:"tp"`
	Comment string  `json:"comment"`
	Magic   int64   `json:"magic"`
}

type orderResponse struct {
	Accepted  bool    `json:"accepted"`
	OrderID   string  `json:"order_id"`
	FillPrice float64 `json:"fill_price"`
	Comment   string  `json:"comment"`
}

// SubmitOrder sends a market order with attached stop and target.
func (c *Client) SubmitOrder(ctx context.Context, spec model.OrderSpec) (model.OrderResult, error) {
	req := orderRequest{
		Symbol:  spec.Symbol,
		Side:    string(spec.Direction),
		Volume:  spec.Volume,
		Price:   spec.EntryPrice,
		SL:      spec.StopPrice,
		TP:      spec.TargetPrice,
		Comment: spec.Rationale,
		Magic:   spec.Magic,
	}
	var resp orderResponse
	if err := c.do(ctx, http.MethodPost, routes["order"], nil, req, &resp); err != nil {
		return model.OrderResult{}, err
	}
	return model.OrderResult{Accepted: resp.Accepted, OrderID: resp.OrderID, FillPrice: resp.FillPrice, Reason: resp.Comment}, nil
}

type stopRequest struct {
	OrderID    string  `json:"order_id"`
	Symbol     string  `json:"symbol"`
	Side       string  `json:"side"`
	EntryPrice float64 `json:"entry_price"`
	NewSL      float64 `json:"new_sl"`
	Magic      int64   `json:"magic"`
}

// ModifyStop moves the protective stop of the open position with the
// adjustment's order ID.
func (c *Client) ModifyStop(ctx context.Context, adj model.StopAdjustment) error {
	req := stopRequest{
		OrderID:    adj.OrderID,
		Symbol:     adj.Symbol,
		Side:       string(adj.Direction),
		EntryPrice: adj.EntryPrice,
		NewSL:      adj.NewStop,
		Magic:      c.cfg.Magic,
	}
	return c.do(ctx, http.MethodPost, routes["stop"], nil, req, nil)
}

type dealPayload struct {
	OrderID    string  `json:"order_id"`
	Symbol     string  `json:"symbol"`
	Side       string  `json:"side"`
	EntryPrice float64 `json:"entry_price"`
	ExitPrice  float64 `json:"exit_price"`
	ClosedAt   int64   `json:"closed_at"`
}

type dealsResponse struct {
	Deals []dealPayload `json:"deals"`
}

// ClosedPositions returns deals closed since the previous call for
// symbol, filtered to this bot's magic number by the bridge.
func (c *Client) ClosedPositions(ctx context.Context, symbol string) ([]model.ClosedPosition, error) {
	c.mu.Lock()
	since := c.lastDeals[symbol]
	c.mu.Unlock()

	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("magic", strconv.FormatInt(c.cfg.Magic, 10))
	if !since.IsZero() {
		q.Set("since", strconv.FormatInt(since.Unix(), 10))
	}

	var resp dealsResponse
	if err := c.do(ctx, http.MethodGet, routes["deals"], q, nil, &resp); err != nil {
		return nil, err
	}

	events := make([]model.ClosedPosition, 0, len(resp.Deals))
	latest := since
	for _, d := range resp.Deals {
		closedAt := time.Unix(d.ClosedAt, 0).UTC()
		events = append(events, model.ClosedPosition{
			OrderID:    d.OrderID,
			Symbol:     d.Symbol,
			Direction:  model.Direction(d.Side),
			EntryPrice: d.EntryPrice,
			ExitPrice:  d.ExitPrice,
			ClosedAt:   closedAt,
		})
		if closedAt.After(latest) {
			latest = closedAt
		}
	}

	c.mu.Lock()
	c.lastDeals[symbol] = latest
	c.mu.Unlock()
	return events, nil
}

// Ping checks bridge reachability without authentication.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+routes["heartbeat"], nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mtbridge: ping status %d", resp.StatusCode)
	}
	return nil
}
