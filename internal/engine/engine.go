// Package engine implements the breakout signal scanner and the concurrent
// position lifecycle: one scan loop per run plus one monitor goroutine per
// open position, cooperating through the locked position/risk state and the
// append-only ledger.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"breakout/internal/binance"
	"breakout/internal/metrics"
	"breakout/internal/models"
	"breakout/internal/notify"
)

// MarketGateway is the market-data side of the exchange client.
type MarketGateway interface {
	FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error)
	TickerPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	GetLotSize(ctx context.Context, symbol string) (binance.LotSize, error)
	AccountBalances(ctx context.Context) ([]binance.Balance, error)
}

// OrderGateway submits market orders.
type OrderGateway interface {
	SubmitMarketOrder(ctx context.Context, symbol, side, quantity string) (*binance.OrderResult, error)
}

// PriceSource is an optional cached live-price lookup (websocket stream).
// ok is false when the symbol is unknown or the cached price went stale.
type PriceSource interface {
	LastPrice(symbol string) (decimal.Decimal, bool)
}

// Engine runs one configured trading run to completion or cancellation.
type Engine struct {
	RunID  string
	Config RunConfig

	Market MarketGateway
	Orders OrderGateway
	Notify notify.Notifier
	Logger *zap.Logger
	Prices PriceSource // may be nil

	State  *State
	Ledger *Ledger
}

// Run performs the startup account check, then scans every configured
// instrument each interval until ctx is cancelled. Steady-state per-symbol
// errors never abort the loop.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.checkAccount(ctx); err != nil {
		e.Notify.Notify(ctx, fmt.Sprintf("Run %s aborted: %v", e.RunID, err))
		return err
	}
	e.Notify.Notify(ctx, fmt.Sprintf("Run %s started: %d instruments, %s candles", e.RunID, len(e.Config.Symbols), e.Config.Interval))

	ticker := time.NewTicker(e.Config.ScanInterval)
	defer ticker.Stop()

	for {
		for _, symbol := range e.Config.Symbols {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.scanSymbol(ctx, symbol)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// checkAccount is the setup-fatal gate: a failed balance query aborts the
// run before any scanning begins.
func (e *Engine) checkAccount(ctx context.Context) error {
	balances, err := e.Market.AccountBalances(ctx)
	if err != nil {
		return fmt.Errorf("account query failed: %w", err)
	}
	for _, b := range balances {
		if b.Asset == "USDT" {
			e.Notify.Notify(ctx, fmt.Sprintf("Exchange connected. USDT balance: %s", b.Free.StringFixed(2)))
			return nil
		}
	}
	e.Notify.Notify(ctx, "Exchange connected, but no USDT balance found.")
	return nil
}

func (e *Engine) scanSymbol(ctx context.Context, symbol string) {
	metrics.Scans.Inc()

	candles, err := e.Market.FetchCandles(ctx, symbol, e.Config.Interval, e.Config.Lookback)
	if err != nil {
		e.Logger.Debug("candle fetch failed", zap.String("run_id", e.RunID), zap.String("symbol", symbol), zap.Error(err))
		return
	}
	if len(candles) < 2 {
		return
	}

	fired, candleTime := Breakout(candles, e.Config.VolumeMultiplier, e.Config.PriceIncrease)
	if !fired {
		return
	}
	metrics.Signals.Inc()

	reason, ok := e.State.TryAdmit(AdmitQuery{
		Symbol:         symbol,
		CandleTime:     candleTime,
		PrevCandleTime: candles[len(candles)-2].OpenTime,
		CandleCount:    len(candles),
		Now:            time.Now(),
	}, e.Config)
	if !ok {
		metrics.AdmissionRejects.WithLabelValues(reason).Inc()
		e.Logger.Debug("signal rejected",
			zap.String("run_id", e.RunID),
			zap.String("symbol", symbol),
			zap.String("reason", reason),
		)
		return
	}

	fill, err := e.enter(ctx, symbol)
	if err != nil {
		// Entry failures are non-fatal per attempt: release the slot and
		// let the next cycle retry.
		e.State.ReleasePending(symbol)
		var qe *QuantityError
		if errors.As(err, &qe) {
			e.Logger.Debug("entry skipped", zap.String("run_id", e.RunID), zap.String("symbol", symbol), zap.Error(err))
			return
		}
		metrics.Orders.WithLabelValues(models.SideBuy, "failed").Inc()
		e.Logger.Warn("entry order failed", zap.String("run_id", e.RunID), zap.String("symbol", symbol), zap.Error(err))
		return
	}

	e.Ledger.Append(*fill)
	e.State.RecordEntry(symbol, candleTime, fill.QuoteAmount)
	metrics.Orders.WithLabelValues(models.SideBuy, "filled").Inc()
	metrics.OpenPositions.Inc()
	spent, _ := e.State.Totals()
	metrics.QuoteSpent.Set(spent.InexactFloat64())

	e.Logger.Info("position opened",
		zap.String("run_id", e.RunID),
		zap.String("symbol", symbol),
		zap.String("qty", fill.Quantity.String()),
		zap.String("price", fill.Price.String()),
		zap.String("quote_amount", fill.QuoteAmount.StringFixed(2)),
	)
	e.Notify.Notify(ctx, fmt.Sprintf("BUY %s qty=%s price=%s (%s USDT)",
		symbol, fill.Quantity.String(), fill.Price.String(), fill.QuoteAmount.StringFixed(2)))

	go e.monitorPosition(ctx, symbol, fill.Price, fill.Quantity)
}

// enter computes the lot-legal quantity and submits the BUY market order.
func (e *Engine) enter(ctx context.Context, symbol string) (*models.Fill, error) {
	price, err := e.Market.TickerPrice(ctx, symbol)
	if err != nil {
		return nil, err
	}
	lot, err := e.Market.GetLotSize(ctx, symbol)
	if err != nil {
		return nil, err
	}
	formatted, _, err := ComputeQuantity(symbol, e.Config.QuoteAmountPerTrade, price, lot.StepSize, lot.MinQty)
	if err != nil {
		return nil, err
	}
	result, err := e.Orders.SubmitMarketOrder(ctx, symbol, models.SideBuy, formatted)
	if err != nil {
		return nil, err
	}
	return &models.Fill{
		Timestamp:   time.Now().UTC(),
		Symbol:      symbol,
		Side:        models.SideBuy,
		Quantity:    result.ExecutedQty,
		Price:       result.FillPrice,
		QuoteAmount: result.ExecutedQty.Mul(result.FillPrice),
	}, nil
}

// currentPrice consults the stream cache first and falls back to REST.
func (e *Engine) currentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if e.Prices != nil {
		if p, ok := e.Prices.LastPrice(symbol); ok {
			return p, nil
		}
	}
	return e.Market.TickerPrice(ctx, symbol)
}
