package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func validRequest() RunRequest {
	return RunRequest{
		Symbols:                       []string{"btcusdt", " ethusdt "},
		Interval:                      "1h",
		Lookback:                      5,
		VolumeMultiplier:              2,
		PriceIncreaseThresholdPercent: 2,
		QuoteAmountPerTrade:           50,
	}
}

func TestNewRunConfig_DefaultsAndNormalization(t *testing.T) {
	cfg, err := NewRunConfig(validRequest(), 10*time.Second, 10*time.Second)
	if err != nil {
		t.Fatalf("err=%v want=nil", err)
	}
	if cfg.Symbols[0] != "BTCUSDT" || cfg.Symbols[1] != "ETHUSDT" {
		t.Fatalf("symbols=%v want upper-cased and trimmed", cfg.Symbols)
	}
	if cfg.PriceIncrease != 0.02 {
		t.Fatalf("priceIncrease=%v want=0.02", cfg.PriceIncrease)
	}
	if cfg.StopLossEnabled {
		t.Fatalf("stop loss enabled without a threshold")
	}
	if cfg.MaxQuoteLimit.Cmp(decimal.NewFromInt(100)) != 0 {
		t.Fatalf("maxQuoteLimit=%s want=100", cfg.MaxQuoteLimit.String())
	}
	if cfg.MaxTradesLimit != 5 {
		t.Fatalf("maxTradesLimit=%d want=5", cfg.MaxTradesLimit)
	}
	if cfg.Cooldown != time.Hour {
		t.Fatalf("cooldown=%v want=1h", cfg.Cooldown)
	}
	if cfg.CooldownCandles != 4 {
		t.Fatalf("cooldownCandles=%d want=4", cfg.CooldownCandles)
	}
}

func TestNewRunConfig_NegativeStopLossIsNormalized(t *testing.T) {
	req := validRequest()
	req.StopLossThresholdPercent = -5
	cfg, err := NewRunConfig(req, 0, 0)
	if err != nil {
		t.Fatalf("err=%v want=nil", err)
	}
	if !cfg.StopLossEnabled || cfg.StopLoss != 0.05 {
		t.Fatalf("stopLoss=%v enabled=%v want=0.05/true", cfg.StopLoss, cfg.StopLossEnabled)
	}
}

func TestNewRunConfig_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*RunRequest)
	}{
		{"no instruments", func(r *RunRequest) { r.Symbols = nil }},
		{"blank instrument", func(r *RunRequest) { r.Symbols = []string{"BTCUSDT", "  "} }},
		{"missing interval", func(r *RunRequest) { r.Interval = " " }},
		{"lookback too small", func(r *RunRequest) { r.Lookback = 1 }},
		{"zero volume multiplier", func(r *RunRequest) { r.VolumeMultiplier = 0 }},
		{"zero price threshold", func(r *RunRequest) { r.PriceIncreaseThresholdPercent = 0 }},
		{"zero quote amount", func(r *RunRequest) { r.QuoteAmountPerTrade = 0 }},
		{"negative cooldown", func(r *RunRequest) { r.CooldownHours = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(&req)
			if _, err := NewRunConfig(req, 0, 0); err == nil {
				t.Fatalf("err=nil want validation error")
			}
		})
	}
}
