package engine

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RunRequest is the wire shape of a start-run call. Threshold fields are
// percentages; RunConfig converts them to fractions.
type RunRequest struct {
	Symbols                       []string `json:"instruments" binding:"required"`
	Interval                      string   `json:"interval" binding:"required"`
	Lookback                      int      `json:"lookback" binding:"required"`
	VolumeMultiplier              float64  `json:"volumeMultiplier" binding:"required"`
	PriceIncreaseThresholdPercent float64  `json:"priceIncreaseThresholdPercent" binding:"required"`
	StopLossThresholdPercent      float64  `json:"stopLossThresholdPercent"`
	MaxQuoteLimit                 float64  `json:"maxQuoteLimit"`
	MaxTradesLimit                int      `json:"maxTradesLimit"`
	OneShotMode                   bool     `json:"oneShotMode"`
	CooldownHours                 float64  `json:"cooldownHours"`
	CooldownCandles               int      `json:"cooldownCandles"`
	QuoteAmountPerTrade           float64  `json:"quoteAmountPerTrade" binding:"required"`

	// Optional per-run credentials; service config is the fallback.
	BinanceAPIKey    string `json:"binanceApiKey"`
	BinanceAPISecret string `json:"binanceApiSecret"`
	TelegramToken    string `json:"telegramToken"`
	TelegramChatID   int64  `json:"telegramChatId"`
}

// RunConfig is the validated, immutable configuration of one run. It is
// shared read-only by the scan loop and every monitor.
type RunConfig struct {
	Symbols          []string
	Interval         string
	Lookback         int
	VolumeMultiplier float64

	PriceIncrease   float64 // fraction, entry trigger and take-profit
	StopLoss        float64 // fraction; StopLossEnabled false when zero
	StopLossEnabled bool

	MaxQuoteLimit       decimal.Decimal
	MaxTradesLimit      int
	OneShotMode         bool
	Cooldown            time.Duration
	CooldownCandles     int
	QuoteAmountPerTrade decimal.Decimal

	ScanInterval    time.Duration
	MonitorInterval time.Duration
}

// NewRunConfig validates a request and applies the source defaults
// (maxQuoteLimit 100, maxTradesLimit 5, cooldownHours 1, cooldownCandles 4).
func NewRunConfig(req RunRequest, scanInterval, monitorInterval time.Duration) (RunConfig, error) {
	if len(req.Symbols) == 0 {
		return RunConfig{}, fmt.Errorf("instruments must not be empty")
	}
	symbols := make([]string, 0, len(req.Symbols))
	for _, s := range req.Symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			return RunConfig{}, fmt.Errorf("instruments must not contain blanks")
		}
		symbols = append(symbols, s)
	}
	if strings.TrimSpace(req.Interval) == "" {
		return RunConfig{}, fmt.Errorf("interval is required")
	}
	if req.Lookback < 2 {
		return RunConfig{}, fmt.Errorf("lookback must be at least 2")
	}
	if req.VolumeMultiplier <= 0 {
		return RunConfig{}, fmt.Errorf("volumeMultiplier must be positive")
	}
	if req.PriceIncreaseThresholdPercent <= 0 {
		return RunConfig{}, fmt.Errorf("priceIncreaseThresholdPercent must be positive")
	}
	if req.QuoteAmountPerTrade <= 0 {
		return RunConfig{}, fmt.Errorf("quoteAmountPerTrade must be positive")
	}

	maxQuote := req.MaxQuoteLimit
	if maxQuote <= 0 {
		maxQuote = 100
	}
	maxTrades := req.MaxTradesLimit
	if maxTrades <= 0 {
		maxTrades = 5
	}
	cooldownHours := req.CooldownHours
	if cooldownHours < 0 {
		return RunConfig{}, fmt.Errorf("cooldownHours must not be negative")
	}
	if cooldownHours == 0 {
		cooldownHours = 1.0
	}
	cooldownCandles := req.CooldownCandles
	if cooldownCandles < 0 {
		return RunConfig{}, fmt.Errorf("cooldownCandles must not be negative")
	}
	if cooldownCandles == 0 {
		cooldownCandles = 4
	}
	if scanInterval <= 0 {
		scanInterval = 10 * time.Second
	}
	if monitorInterval <= 0 {
		monitorInterval = 10 * time.Second
	}

	stopLoss := math.Abs(req.StopLossThresholdPercent) / 100.0

	return RunConfig{
		Symbols:             symbols,
		Interval:            strings.TrimSpace(req.Interval),
		Lookback:            req.Lookback,
		VolumeMultiplier:    req.VolumeMultiplier,
		PriceIncrease:       req.PriceIncreaseThresholdPercent / 100.0,
		StopLoss:            stopLoss,
		StopLossEnabled:     stopLoss > 0,
		MaxQuoteLimit:       decimal.NewFromFloat(maxQuote),
		MaxTradesLimit:      maxTrades,
		OneShotMode:         req.OneShotMode,
		Cooldown:            time.Duration(cooldownHours * float64(time.Hour)),
		CooldownCandles:     cooldownCandles,
		QuoteAmountPerTrade: decimal.NewFromFloat(req.QuoteAmountPerTrade),
		ScanInterval:        scanInterval,
		MonitorInterval:     monitorInterval,
	}, nil
}
