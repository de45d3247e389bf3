package engine

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Admission reject reasons, also used as metric labels.
const (
	RejectActive          = "active"
	RejectPending         = "pending"
	RejectSameCandle      = "same_candle"
	RejectCooldownClock   = "cooldown_clock"
	RejectCooldownCandles = "cooldown_candles"
	RejectTradeCap        = "trade_cap"
	RejectExposure        = "exposure"
)

// PositionRecord tracks one instrument's lifecycle. Records are created
// lazily on first evaluation and never removed during a run.
type PositionRecord struct {
	Active  bool
	Pending bool // admission granted, entry order in flight

	HasTraded           bool
	LastTradeCandleTime int64
	LastExitTime        *time.Time
}

// State is the position/risk store: the single critical section that
// linearizes admission decisions. The mutex is held only for in-memory
// checks and updates, never across a network call.
type State struct {
	mu        sync.Mutex
	positions map[string]*PositionRecord

	totalQuoteSpent decimal.Decimal
	totalTrades     int
}

func NewState() *State {
	return &State{positions: map[string]*PositionRecord{}}
}

// AdmitQuery carries everything the eligibility gate needs from the current
// candle series.
type AdmitQuery struct {
	Symbol         string
	CandleTime     int64 // last candle open time
	PrevCandleTime int64 // second-to-last candle open time
	CandleCount    int
	Now            time.Time
}

// TryAdmit runs the eligibility gate and the risk limiter in one critical
// section and, on success, marks the instrument pending so no concurrent
// scan can admit it again before the entry resolves. The caller must follow
// up with RecordEntry or ReleasePending.
func (s *State) TryAdmit(q AdmitQuery, cfg RunConfig) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.positions[q.Symbol]
	if rec == nil {
		rec = &PositionRecord{}
		s.positions[q.Symbol] = rec
	}

	// Eligibility gate, in source order.
	if rec.Active {
		return RejectActive, false
	}
	if rec.Pending {
		return RejectPending, false
	}
	if rec.HasTraded && rec.LastTradeCandleTime == q.CandleTime {
		return RejectSameCandle, false
	}
	if rec.LastExitTime != nil {
		if q.Now.Sub(*rec.LastExitTime) < cfg.Cooldown {
			return RejectCooldownClock, false
		}
	}
	if rec.HasTraded && q.CandleCount > 2 {
		candleMs := q.CandleTime - q.PrevCandleTime
		if candleMs > 0 {
			passed := float64(q.CandleTime-rec.LastTradeCandleTime) / float64(candleMs)
			if passed < float64(cfg.CooldownCandles) {
				return RejectCooldownCandles, false
			}
		}
	}

	// Risk limiter.
	if cfg.OneShotMode {
		if s.totalTrades >= cfg.MaxTradesLimit {
			return RejectTradeCap, false
		}
	} else if s.activeCountLocked() >= cfg.MaxTradesLimit {
		return RejectTradeCap, false
	}
	if s.totalQuoteSpent.Add(cfg.QuoteAmountPerTrade).GreaterThan(cfg.MaxQuoteLimit) {
		return RejectExposure, false
	}

	rec.Pending = true
	return "", true
}

// ReleasePending undoes a granted admission after a failed entry; the
// instrument stays eligible on the next cycle.
func (s *State) ReleasePending(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec := s.positions[symbol]; rec != nil {
		rec.Pending = false
	}
}

// RecordEntry transitions Idle -> Active after a successful BUY fill and
// books the realized fill amount against the risk totals.
func (s *State) RecordEntry(symbol string, candleTime int64, quoteAmount decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.positions[symbol]
	if rec == nil {
		rec = &PositionRecord{}
		s.positions[symbol] = rec
	}
	rec.Pending = false
	rec.Active = true
	rec.HasTraded = true
	rec.LastTradeCandleTime = candleTime
	s.totalQuoteSpent = s.totalQuoteSpent.Add(quoteAmount)
	s.totalTrades++
}

// RecordExit transitions Active -> Idle after a successful SELL fill. Spend
// is never refunded; closing frees a slot, not exposure.
func (s *State) RecordExit(symbol string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.positions[symbol]
	if rec == nil {
		rec = &PositionRecord{}
		s.positions[symbol] = rec
	}
	rec.Active = false
	t := at
	rec.LastExitTime = &t
}

func (s *State) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeCountLocked()
}

func (s *State) activeCountLocked() int {
	n := 0
	for _, rec := range s.positions {
		if rec.Active {
			n++
		}
	}
	return n
}

// Totals returns the monotonic risk counters.
func (s *State) Totals() (decimal.Decimal, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalQuoteSpent, s.totalTrades
}
