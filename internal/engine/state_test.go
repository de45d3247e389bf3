package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func testRunConfig() RunConfig {
	return RunConfig{
		Symbols:             []string{"BTCUSDT"},
		Interval:            "1h",
		Lookback:            5,
		VolumeMultiplier:    2,
		PriceIncrease:       0.02,
		MaxQuoteLimit:       decimal.NewFromInt(100),
		MaxTradesLimit:      5,
		Cooldown:            time.Hour,
		CooldownCandles:     4,
		QuoteAmountPerTrade: decimal.NewFromInt(50),
	}
}

func admitQuery(candleTime int64) AdmitQuery {
	return AdmitQuery{
		Symbol:         "BTCUSDT",
		CandleTime:     candleTime,
		PrevCandleTime: candleTime - 3600_000,
		CandleCount:    5,
		Now:            time.Now(),
	}
}

func TestTryAdmit_PendingBlocksSecondAdmission(t *testing.T) {
	s := NewState()
	cfg := testRunConfig()

	if reason, ok := s.TryAdmit(admitQuery(1000), cfg); !ok {
		t.Fatalf("first admit rejected: %s", reason)
	}
	reason, ok := s.TryAdmit(admitQuery(1000), cfg)
	if ok {
		t.Fatalf("second admit granted, want reject")
	}
	if reason != RejectPending {
		t.Fatalf("reason=%s want=%s", reason, RejectPending)
	}
}

func TestTryAdmit_ReleasePendingRestoresEligibility(t *testing.T) {
	s := NewState()
	cfg := testRunConfig()

	if _, ok := s.TryAdmit(admitQuery(1000), cfg); !ok {
		t.Fatalf("first admit rejected")
	}
	s.ReleasePending("BTCUSDT")
	if reason, ok := s.TryAdmit(admitQuery(1000), cfg); !ok {
		t.Fatalf("admit after release rejected: %s", reason)
	}
}

func TestTryAdmit_ActivePositionBlocks(t *testing.T) {
	s := NewState()
	cfg := testRunConfig()

	if _, ok := s.TryAdmit(admitQuery(1000), cfg); !ok {
		t.Fatalf("admit rejected")
	}
	s.RecordEntry("BTCUSDT", 1000, decimal.NewFromInt(50))
	reason, ok := s.TryAdmit(admitQuery(2000), cfg)
	if ok || reason != RejectActive {
		t.Fatalf("reason=%s ok=%v want=%s reject", reason, ok, RejectActive)
	}
}

func TestTryAdmit_SameCandleDedup(t *testing.T) {
	s := NewState()
	cfg := testRunConfig()
	cfg.Cooldown = 0

	if _, ok := s.TryAdmit(admitQuery(1000), cfg); !ok {
		t.Fatalf("admit rejected")
	}
	s.RecordEntry("BTCUSDT", 1000, decimal.NewFromInt(50))
	s.RecordExit("BTCUSDT", time.Now())

	// Same candle that already produced a trade.
	q := admitQuery(1000)
	q.CandleCount = 2
	reason, ok := s.TryAdmit(q, cfg)
	if ok || reason != RejectSameCandle {
		t.Fatalf("reason=%s ok=%v want=%s reject", reason, ok, RejectSameCandle)
	}
}

func TestTryAdmit_CooldownClock(t *testing.T) {
	s := NewState()
	cfg := testRunConfig()

	if _, ok := s.TryAdmit(admitQuery(1000), cfg); !ok {
		t.Fatalf("admit rejected")
	}
	s.RecordEntry("BTCUSDT", 1000, decimal.NewFromInt(10))
	exitAt := time.Now().Add(-30 * time.Minute)
	s.RecordExit("BTCUSDT", exitAt)

	q := admitQuery(100_000_000)
	q.CandleCount = 2 // keep the candle-count cooldown out of the way
	reason, ok := s.TryAdmit(q, cfg)
	if ok || reason != RejectCooldownClock {
		t.Fatalf("reason=%s ok=%v want=%s reject", reason, ok, RejectCooldownClock)
	}

	// Exactly the cooldown elapsed admits.
	q.Now = exitAt.Add(time.Hour)
	if reason, ok := s.TryAdmit(q, cfg); !ok {
		t.Fatalf("admit at exact cooldown boundary rejected: %s", reason)
	}
}

func TestTryAdmit_CooldownCandles(t *testing.T) {
	s := NewState()
	cfg := testRunConfig()
	cfg.Cooldown = 0

	if _, ok := s.TryAdmit(admitQuery(0), cfg); !ok {
		t.Fatalf("admit rejected")
	}
	s.RecordEntry("BTCUSDT", 0, decimal.NewFromInt(10))
	s.RecordExit("BTCUSDT", time.Now().Add(-24*time.Hour))

	// 3 candles of 1h passed since the trade candle; cooldown is 4.
	q := AdmitQuery{
		Symbol:         "BTCUSDT",
		CandleTime:     3 * 3600_000,
		PrevCandleTime: 2 * 3600_000,
		CandleCount:    5,
		Now:            time.Now(),
	}
	reason, ok := s.TryAdmit(q, cfg)
	if ok || reason != RejectCooldownCandles {
		t.Fatalf("reason=%s ok=%v want=%s reject", reason, ok, RejectCooldownCandles)
	}

	// 4 candles passed admits.
	q.CandleTime = 4 * 3600_000
	q.PrevCandleTime = 3 * 3600_000
	if reason, ok := s.TryAdmit(q, cfg); !ok {
		t.Fatalf("admit after candle cooldown rejected: %s", reason)
	}
}

func TestTryAdmit_OneShotTradeCap(t *testing.T) {
	s := NewState()
	cfg := testRunConfig()
	cfg.OneShotMode = true
	cfg.MaxTradesLimit = 1
	cfg.Cooldown = 0

	if _, ok := s.TryAdmit(admitQuery(1000), cfg); !ok {
		t.Fatalf("admit rejected")
	}
	s.RecordEntry("BTCUSDT", 1000, decimal.NewFromInt(10))
	s.RecordExit("BTCUSDT", time.Now().Add(-24*time.Hour))

	// The position is closed, but in one-shot mode lifetime trades count.
	q := admitQuery(2000)
	q.CandleCount = 2
	reason, ok := s.TryAdmit(q, cfg)
	if ok || reason != RejectTradeCap {
		t.Fatalf("reason=%s ok=%v want=%s reject", reason, ok, RejectTradeCap)
	}
}

func TestTryAdmit_ContinuousModeCapsActiveOnly(t *testing.T) {
	s := NewState()
	cfg := testRunConfig()
	cfg.MaxTradesLimit = 1
	cfg.Cooldown = 0

	if _, ok := s.TryAdmit(admitQuery(1000), cfg); !ok {
		t.Fatalf("admit rejected")
	}
	s.RecordEntry("BTCUSDT", 1000, decimal.NewFromInt(10))

	// A second instrument is blocked while one position is active.
	q := admitQuery(1000)
	q.Symbol = "ETHUSDT"
	reason, ok := s.TryAdmit(q, cfg)
	if ok || reason != RejectTradeCap {
		t.Fatalf("reason=%s ok=%v want=%s reject", reason, ok, RejectTradeCap)
	}

	// Closing the position frees the slot.
	s.RecordExit("BTCUSDT", time.Now().Add(-24*time.Hour))
	if reason, ok := s.TryAdmit(q, cfg); !ok {
		t.Fatalf("admit after exit rejected: %s", reason)
	}
}

func TestTryAdmit_ExposureLimit(t *testing.T) {
	s := NewState()
	cfg := testRunConfig()
	cfg.QuoteAmountPerTrade = decimal.NewFromInt(60)
	cfg.Cooldown = 0

	if _, ok := s.TryAdmit(admitQuery(1000), cfg); !ok {
		t.Fatalf("admit rejected")
	}
	s.RecordEntry("BTCUSDT", 1000, decimal.NewFromInt(60))
	s.RecordExit("BTCUSDT", time.Now().Add(-24*time.Hour))

	// Spend is not refunded on exit: 60 booked + 60 planned > 100.
	q := admitQuery(2000)
	q.Symbol = "ETHUSDT"
	reason, ok := s.TryAdmit(q, cfg)
	if ok || reason != RejectExposure {
		t.Fatalf("reason=%s ok=%v want=%s reject", reason, ok, RejectExposure)
	}
}

func TestTotals_BookRealizedAmounts(t *testing.T) {
	s := NewState()
	s.RecordEntry("BTCUSDT", 1000, decimal.RequireFromString("49.95"))
	s.RecordEntry("ETHUSDT", 1000, decimal.RequireFromString("50.05"))

	spent, trades := s.Totals()
	if spent.Cmp(decimal.RequireFromString("100")) != 0 {
		t.Fatalf("spent=%s want=100", spent.String())
	}
	if trades != 2 {
		t.Fatalf("trades=%d want=2", trades)
	}
	if s.ActiveCount() != 2 {
		t.Fatalf("active=%d want=2", s.ActiveCount())
	}
}
