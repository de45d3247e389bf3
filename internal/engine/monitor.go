package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"breakout/internal/metrics"
	"breakout/internal/models"
)

// monitorPosition watches one open position until it exits or the run is
// cancelled. Price fetch failures skip the tick. A failed exit order does
// not end the monitor: the position stays active and the sell is retried on
// the next tick the exit condition holds, so a position is never silently
// stranded.
func (e *Engine) monitorPosition(ctx context.Context, symbol string, entryPrice, quantity decimal.Decimal) {
	defer metrics.OpenPositions.Dec()

	quantityStr := quantity.String()
	takeProfit := decimal.NewFromFloat(e.Config.PriceIncrease)
	stopLoss := decimal.NewFromFloat(e.Config.StopLoss).Neg()
	sellFailureNotified := false

	ticker := time.NewTicker(e.Config.MonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		current, err := e.currentPrice(ctx, symbol)
		if err != nil {
			continue
		}

		change := current.Sub(entryPrice).Div(entryPrice)
		takeProfitHit := change.GreaterThanOrEqual(takeProfit)
		stopLossHit := e.Config.StopLossEnabled && change.LessThanOrEqual(stopLoss)
		if !takeProfitHit && !stopLossHit {
			continue
		}

		result, err := e.Orders.SubmitMarketOrder(ctx, symbol, models.SideSell, quantityStr)
		if err != nil {
			metrics.Orders.WithLabelValues(models.SideSell, "failed").Inc()
			e.Logger.Warn("exit order failed, will retry",
				zap.String("run_id", e.RunID),
				zap.String("symbol", symbol),
				zap.Error(err),
			)
			if !sellFailureNotified {
				sellFailureNotified = true
				e.Notify.Notify(ctx, fmt.Sprintf("SELL %s failed, retrying: %v", symbol, err))
			}
			continue
		}

		now := time.Now().UTC()
		quoteAmount := result.ExecutedQty.Mul(result.FillPrice)
		e.Ledger.Append(models.Fill{
			Timestamp:   now,
			Symbol:      symbol,
			Side:        models.SideSell,
			Quantity:    result.ExecutedQty,
			Price:       result.FillPrice,
			QuoteAmount: quoteAmount,
		})
		e.State.RecordExit(symbol, now)
		metrics.Orders.WithLabelValues(models.SideSell, "filled").Inc()

		reason := "take-profit"
		if stopLossHit {
			reason = "stop-loss"
		}
		e.Logger.Info("position closed",
			zap.String("run_id", e.RunID),
			zap.String("symbol", symbol),
			zap.String("reason", reason),
			zap.String("price", result.FillPrice.String()),
			zap.String("change", change.StringFixed(4)),
		)
		e.Notify.Notify(ctx, fmt.Sprintf("SELL %s (%s) qty=%s price=%s (%s USDT)",
			symbol, reason, result.ExecutedQty.String(), result.FillPrice.String(), quoteAmount.StringFixed(2)))
		return
	}
}
