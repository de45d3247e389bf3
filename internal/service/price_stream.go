// Package service hosts long-running support services around the engine.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// PriceStreamService keeps a last-price cache fed by the exchange's
// combined miniTicker websocket stream. Monitors consult it before falling
// back to REST; entries older than StaleAfter are not served.
type PriceStreamService struct {
	Logger     *zap.Logger
	URL        string
	StaleAfter time.Duration

	mu         sync.RWMutex
	symbols    map[string]struct{}
	generation int
	prices     map[string]pricePoint
}

type pricePoint struct {
	price decimal.Decimal
	at    time.Time
}

// Track subscribes additional symbols; the stream redials with the new set.
func (s *PriceStreamService) Track(symbols []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.symbols == nil {
		s.symbols = map[string]struct{}{}
	}
	changed := false
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			continue
		}
		if _, ok := s.symbols[sym]; !ok {
			s.symbols[sym] = struct{}{}
			changed = true
		}
	}
	if changed {
		s.generation++
	}
}

// LastPrice returns the cached price when present and fresh.
func (s *PriceStreamService) LastPrice(symbol string) (decimal.Decimal, bool) {
	staleAfter := s.StaleAfter
	if staleAfter <= 0 {
		staleAfter = 5 * time.Second
	}
	s.mu.RLock()
	p, ok := s.prices[strings.ToUpper(symbol)]
	s.mu.RUnlock()
	if !ok || time.Since(p.at) > staleAfter {
		return decimal.Zero, false
	}
	return p.price, true
}

func (s *PriceStreamService) Run(ctx context.Context) error {
	backoff := time.Second
	const backoffMax = 30 * time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		gen, streamURL := s.streamURL()
		if streamURL == "" {
			if err := sleepWithJitter(ctx, backoff); err != nil {
				return err
			}
			continue
		}
		conn, _, err := websocket.Dial(ctx, streamURL, nil)
		if err != nil {
			if s.Logger != nil {
				s.Logger.Warn("price stream connect failed", zap.Error(err))
			}
			if err := sleepWithJitter(ctx, backoff); err != nil {
				return err
			}
			backoff = nextBackoff(backoff, backoffMax)
			continue
		}
		conn.SetReadLimit(1 << 20)
		if s.Logger != nil {
			s.Logger.Info("price stream connected", zap.String("url", streamURL))
		}
		backoff = time.Second

		err = s.consume(ctx, conn, gen)
		_ = conn.Close(websocket.StatusNormalClosure, "reconnect")
		if errors.Is(err, context.Canceled) {
			return err
		}
		if errors.Is(err, errResubscribe) {
			continue
		}
		if err != nil && s.Logger != nil {
			s.Logger.Warn("price stream interrupted", zap.Error(err))
		}
	}
}

var errResubscribe = errors.New("symbol set changed")

func (s *PriceStreamService) consume(ctx context.Context, conn *websocket.Conn, gen int) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.mu.RLock()
		stale := s.generation != gen
		s.mu.RUnlock()
		if stale {
			return errResubscribe
		}

		readCtx, cancel := context.WithTimeout(ctx, 90*time.Second)
		_, data, err := conn.Read(readCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		var env struct {
			Data struct {
				Symbol string `json:"s"`
				Close  string `json:"c"`
			} `json:"data"`
		}
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		if env.Data.Symbol == "" {
			continue
		}
		price, err := decimal.NewFromString(env.Data.Close)
		if err != nil || price.LessThanOrEqual(decimal.Zero) {
			continue
		}
		s.mu.Lock()
		if s.prices == nil {
			s.prices = map[string]pricePoint{}
		}
		s.prices[env.Data.Symbol] = pricePoint{price: price, at: time.Now()}
		s.mu.Unlock()
	}
}

func (s *PriceStreamService) streamURL() (int, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.symbols) == 0 {
		return s.generation, ""
	}
	parts := make([]string, 0, len(s.symbols))
	for sym := range s.symbols {
		parts = append(parts, strings.ToLower(sym)+"@miniTicker")
	}
	base := strings.TrimRight(s.URL, "/")
	return s.generation, base + "?streams=" + strings.Join(parts, "/")
}

func sleepWithJitter(ctx context.Context, d time.Duration) error {
	jitter := time.Duration(rand.Int63n(int64(d)/2 + 1))
	t := time.NewTimer(d + jitter)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func nextBackoff(cur, max time.Duration) time.Duration {
	next := cur * 2
	if next > max {
		return max
	}
	return next
}
