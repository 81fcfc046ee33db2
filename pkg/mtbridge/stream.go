package mtbridge

import (
	"context"
	"encoding/json"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	heartbeatInterval = 10 * time.Second
	maxBackoff        = 30 * time.Second
	// Quotes older than this are not served; a stale quote is worse
	// than falling back to the candle close.
	quoteTTL = 30 * time.Second
)

// Quote is one streamed price update.
type Quote struct {
	Symbol string  `json:"symbol"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	TS     int64   `json:"ts"`
}

type quoteEntry struct {
	price      float64
	receivedAt time.Time
}

// Stream maintains a WebSocket subscription to the bridge quote feed
// and caches the latest mid price per symbol. The connection reconnects
// with exponential backoff; consumers only ever read the cache, so a
// dead stream degrades to candle-close prices rather than failing.
type Stream struct {
	wsURL   string
	symbols []string
	dialer  *websocket.Dialer

	mu     sync.RWMutex
	latest map[string]quoteEntry
}

// NewStream creates a quote stream for the given symbols. Run must be
// called to start it.
func NewStream(wsURL string, symbols []string) *Stream {
	return &Stream{
		wsURL:   wsURL,
		symbols: symbols,
		dialer:  websocket.DefaultDialer,
		latest:  make(map[string]quoteEntry),
	}
}

// LatestQuote returns the freshest cached mid price for symbol. The
// second return is false when no quote arrived within the staleness
// window. Matches the scheduler's Quote dependency signature.
func (s *Stream) LatestQuote(symbol string) (float64, bool) {
	s.mu.RLock()
	entry, ok := s.latest[symbol]
	s.mu.RUnlock()
	if !ok || time.Since(entry.receivedAt) > quoteTTL {
		return 0, false
	}
	return entry.price, true
}

// Run connects and consumes quotes until ctx is cancelled, reconnecting
// on any error.
func (s *Stream) Run(ctx context.Context) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}

		err := s.consume(ctx)
		if ctx.Err() != nil {
			return
		}
		log.Printf("[mtbridge-ws] stream ended: %v, reconnecting in %s", err, backoff)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// consume runs one connection lifetime: dial, subscribe, read until error.
func (s *Stream) consume(ctx context.Context) error {
	u, err := url.Parse(s.wsURL)
	if err != nil {
		return err
	}

	conn, _, err := s.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Context watcher closes the connection so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	sub := map[string]interface{}{"action": "subscribe", "symbols": s.symbols}
	if err := conn.WriteJSON(sub); err != nil {
		return err
	}
	log.Printf("[mtbridge-ws] subscribed to %d symbols", len(s.symbols))

	go s.heartbeat(ctx, conn)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var q Quote
		if err := json.Unmarshal(message, &q); err != nil || q.Symbol == "" {
			continue
		}
		mid := (q.Bid + q.Ask) / 2
		s.mu.Lock()
		s.latest[q.Symbol] = quoteEntry{price: mid, receivedAt: time.Now()}
		s.mu.Unlock()
	}
}

func (s *Stream) heartbeat(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(time.Second)); err != nil {
				return
			}
		}
	}
}
