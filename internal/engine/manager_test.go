package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"breakout/internal/models"
	"breakout/internal/repository"
)

type stubRepo struct {
	mu           sync.Mutex
	failCountFor string // CountTradeRecordsByRunID errors for this run id
	inserted     map[string][]models.TradeRecord
	totalsFor    map[string]int
}

var _ repository.Repository = (*stubRepo)(nil)

func newStubRepo() *stubRepo {
	return &stubRepo{
		inserted:  map[string][]models.TradeRecord{},
		totalsFor: map[string]int{},
	}
}

func (r *stubRepo) InsertRun(ctx context.Context, item *models.BotRun) error { return nil }

func (r *stubRepo) UpdateRunStatus(ctx context.Context, id string, status string, stoppedAt *time.Time) error {
	return nil
}

func (r *stubRepo) UpdateRunTotals(ctx context.Context, id string, quoteSpent decimal.Decimal, trades int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.totalsFor[id] = trades
	return nil
}

func (r *stubRepo) ListRuns(ctx context.Context, limit, offset int) ([]models.BotRun, error) {
	return nil, nil
}

func (r *stubRepo) InsertTradeRecords(ctx context.Context, items []models.TradeRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, it := range items {
		r.inserted[it.RunID] = append(r.inserted[it.RunID], it)
	}
	return nil
}

func (r *stubRepo) CountTradeRecordsByRunID(ctx context.Context, runID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if runID == r.failCountFor {
		return 0, fmt.Errorf("journal unavailable")
	}
	return int64(len(r.inserted[runID])), nil
}

func (r *stubRepo) ListTradeRecords(ctx context.Context, params repository.ListTradeRecordsParams) ([]models.TradeRecord, error) {
	return nil, nil
}

func registeredRun(m *RunManager, id string) *ActiveRun {
	run := &ActiveRun{
		ID:        id,
		Engine:    &Engine{RunID: id, State: NewState(), Ledger: &Ledger{}},
		StartedAt: time.Now().UTC(),
		status:    models.RunStatusRunning,
		cancel:    func() {},
	}
	m.mu.Lock()
	m.runs[id] = run
	m.order = append([]string{id}, m.order...)
	m.mu.Unlock()
	return run
}

func TestStartRun_RequiresExchangeClient(t *testing.T) {
	m := NewRunManager(context.Background())
	m.Logger = zap.NewNop()

	req := validRequest()
	req.BinanceAPIKey = "k"
	req.BinanceAPISecret = "s"
	if _, err := m.StartRun(req); err == nil {
		t.Fatalf("err=nil want error without an exchange client")
	}
}

func TestFlushJournal_ContinuesPastFailingRun(t *testing.T) {
	m := NewRunManager(context.Background())
	m.Logger = zap.NewNop()
	repo := newStubRepo()
	repo.failCountFor = "run-a"
	m.Repo = repo

	registeredRun(m, "run-a")
	healthy := registeredRun(m, "run-b")
	healthy.Engine.Ledger.Append(models.Fill{
		Timestamp:   time.Now().UTC(),
		Symbol:      "BTCUSDT",
		Side:        models.SideBuy,
		Quantity:    decimal.RequireFromString("0.5"),
		Price:       decimal.NewFromInt(100),
		QuoteAmount: decimal.NewFromInt(50),
	})
	healthy.Engine.State.RecordEntry("BTCUSDT", 1000, decimal.NewFromInt(50))

	if err := m.FlushJournal(context.Background()); err != nil {
		t.Fatalf("err=%v want=nil", err)
	}
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if got := len(repo.inserted["run-b"]); got != 1 {
		t.Fatalf("run-b records=%d want=1 despite run-a failing", got)
	}
	if repo.totalsFor["run-b"] != 1 {
		t.Fatalf("run-b totals=%d want=1", repo.totalsFor["run-b"])
	}
	if len(repo.inserted["run-a"]) != 0 {
		t.Fatalf("run-a records=%d want=0", len(repo.inserted["run-a"]))
	}
}
