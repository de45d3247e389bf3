package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"breakout/internal/binance"
	"breakout/internal/config"
	"breakout/internal/models"
	"breakout/internal/notify"
	"breakout/internal/repository"
)

// RunManager owns the active runs: it starts engines, hands each one a
// cancellable context, and mirrors runs and fills into the journal.
type RunManager struct {
	Logger   *zap.Logger
	Notify   notify.Notifier
	Repo     repository.Repository // nil disables the journal
	Client   *binance.Client
	Prices   PriceSource
	Defaults config.EngineConfig

	// NewNotifier builds a per-run notifier from request credentials;
	// nil keeps the manager-level one.
	NewNotifier func(token string, chatID int64) (notify.Notifier, error)

	// Track registers a run's symbols with the streaming price cache.
	Track func(symbols []string)

	baseCtx context.Context

	mu   sync.Mutex
	runs map[string]*ActiveRun
	// most-recent-first run ids
	order []string
}

type ActiveRun struct {
	ID        string
	Config    RunConfig
	Engine    *Engine
	StartedAt time.Time

	cancel context.CancelFunc

	mu        sync.Mutex
	status    string
	stoppedAt *time.Time
}

func (r *ActiveRun) Status() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *ActiveRun) setStatus(status string, at *time.Time) {
	r.mu.Lock()
	r.status = status
	r.stoppedAt = at
	r.mu.Unlock()
}

// RunInfo is the control-surface view of a run.
type RunInfo struct {
	ID              string     `json:"runId"`
	Status          string     `json:"status"`
	Symbols         []string   `json:"instruments"`
	StartedAt       time.Time  `json:"startedAt"`
	StoppedAt       *time.Time `json:"stoppedAt,omitempty"`
	ActivePositions int        `json:"activePositions"`
	TotalQuoteSpent string     `json:"totalQuoteSpent"`
	TotalTrades     int        `json:"totalTrades"`
	Fills           int        `json:"fills"`
}

func NewRunManager(baseCtx context.Context) *RunManager {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &RunManager{
		baseCtx: baseCtx,
		runs:    map[string]*ActiveRun{},
	}
}

// StartRun validates the request, registers the run, and launches the
// engine in the background. It returns the run id immediately.
func (m *RunManager) StartRun(req RunRequest) (string, error) {
	cfg, err := NewRunConfig(req, m.Defaults.ScanInterval, m.Defaults.MonitorInterval)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	maxRuns := m.Defaults.MaxRuns
	if maxRuns <= 0 {
		maxRuns = 4
	}
	running := 0
	for _, r := range m.runs {
		if r.Status() == models.RunStatusRunning {
			running++
		}
	}
	if running >= maxRuns {
		m.mu.Unlock()
		return "", fmt.Errorf("run limit reached (%d running)", running)
	}
	m.mu.Unlock()

	client := m.Client
	if client == nil {
		return "", fmt.Errorf("exchange client not configured")
	}
	if req.BinanceAPIKey != "" && req.BinanceAPISecret != "" {
		client = client.WithCredentials(req.BinanceAPIKey, req.BinanceAPISecret)
	}

	notifier := m.Notify
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if req.TelegramToken != "" && req.TelegramChatID != 0 && m.NewNotifier != nil {
		n, err := m.NewNotifier(req.TelegramToken, req.TelegramChatID)
		if err != nil {
			m.Logger.Warn("per-run telegram setup failed, using default notifier", zap.Error(err))
		} else {
			notifier = n
		}
	}

	runID := uuid.NewString()
	eng := &Engine{
		RunID:  runID,
		Config: cfg,
		Market: client,
		Orders: client,
		Notify: notifier,
		Logger: m.Logger,
		Prices: m.Prices,
		State:  NewState(),
		Ledger: &Ledger{},
	}

	ctx, cancel := context.WithCancel(m.baseCtx)
	run := &ActiveRun{
		ID:        runID,
		Config:    cfg,
		Engine:    eng,
		StartedAt: time.Now().UTC(),
		cancel:    cancel,
		status:    models.RunStatusRunning,
	}

	m.mu.Lock()
	m.runs[runID] = run
	m.order = append([]string{runID}, m.order...)
	m.mu.Unlock()

	m.persistRunStart(run, req)

	if m.Track != nil {
		m.Track(cfg.Symbols)
	}

	go func() {
		err := eng.Run(ctx)
		now := time.Now().UTC()
		status := models.RunStatusStopped
		if err != nil && !errors.Is(err, context.Canceled) {
			status = models.RunStatusAborted
			m.Logger.Warn("run aborted", zap.String("run_id", runID), zap.Error(err))
		}
		run.setStatus(status, &now)
		if m.Repo != nil {
			ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
			if err := m.Repo.UpdateRunStatus(ctx2, runID, status, &now); err != nil {
				m.Logger.Warn("journal run status update failed", zap.String("run_id", runID), zap.Error(err))
			}
			cancel2()
		}
	}()

	m.Logger.Info("run started",
		zap.String("run_id", runID),
		zap.Strings("symbols", cfg.Symbols),
		zap.String("interval", cfg.Interval),
		zap.Bool("one_shot", cfg.OneShotMode),
	)
	return runID, nil
}

// StopRun cancels a run's context, stopping its scan loop and monitors.
func (m *RunManager) StopRun(runID string) error {
	m.mu.Lock()
	run, ok := m.runs[runID]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown run %s", runID)
	}
	run.cancel()
	return nil
}

// Get returns a run by id; empty id means the most recently started run.
func (m *RunManager) Get(runID string) (*ActiveRun, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if runID == "" {
		if len(m.order) == 0 {
			return nil, false
		}
		runID = m.order[0]
	}
	run, ok := m.runs[runID]
	return run, ok
}

// Runs lists all runs, most recent first.
func (m *RunManager) Runs() []RunInfo {
	m.mu.Lock()
	ids := make([]string, len(m.order))
	copy(ids, m.order)
	runs := make([]*ActiveRun, 0, len(ids))
	for _, id := range ids {
		if r, ok := m.runs[id]; ok {
			runs = append(runs, r)
		}
	}
	m.mu.Unlock()

	out := make([]RunInfo, 0, len(runs))
	for _, r := range runs {
		spent, trades := r.Engine.State.Totals()
		r.mu.Lock()
		stoppedAt := r.stoppedAt
		status := r.status
		r.mu.Unlock()
		out = append(out, RunInfo{
			ID:              r.ID,
			Status:          status,
			Symbols:         r.Config.Symbols,
			StartedAt:       r.StartedAt,
			StoppedAt:       stoppedAt,
			ActivePositions: r.Engine.State.ActiveCount(),
			TotalQuoteSpent: spent.StringFixed(2),
			TotalTrades:     trades,
			Fills:           r.Engine.Ledger.Len(),
		})
	}
	return out
}

// StopAll cancels every run; used on process shutdown.
func (m *RunManager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.runs {
		r.cancel()
	}
}

func (m *RunManager) persistRunStart(run *ActiveRun, req RunRequest) {
	if m.Repo == nil {
		return
	}
	req.BinanceAPIKey = ""
	req.BinanceAPISecret = ""
	req.TelegramToken = ""
	raw, _ := json.Marshal(req)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := m.Repo.InsertRun(ctx, &models.BotRun{
		ID:        run.ID,
		Status:    models.RunStatusRunning,
		Config:    datatypes.JSON(raw),
		StartedAt: run.StartedAt,
	})
	if err != nil {
		m.Logger.Warn("journal run insert failed", zap.String("run_id", run.ID), zap.Error(err))
	}
}

// FlushJournal mirrors not-yet-persisted ledger fills into trade_records and
// refreshes run totals. Registered as a cron job; best-effort, and a failure
// on one run never blocks flushing the others.
func (m *RunManager) FlushJournal(ctx context.Context) error {
	if m.Repo == nil {
		return nil
	}
	m.mu.Lock()
	runs := make([]*ActiveRun, 0, len(m.runs))
	for _, r := range m.runs {
		runs = append(runs, r)
	}
	m.mu.Unlock()

	for _, r := range runs {
		persisted, err := m.Repo.CountTradeRecordsByRunID(ctx, r.ID)
		if err != nil {
			m.Logger.Warn("journal count failed", zap.String("run_id", r.ID), zap.Error(err))
			continue
		}
		pending := r.Engine.Ledger.Since(int(persisted))
		if len(pending) > 0 {
			records := make([]models.TradeRecord, 0, len(pending))
			for _, f := range pending {
				records = append(records, models.TradeRecord{
					RunID:       r.ID,
					Symbol:      f.Symbol,
					Side:        f.Side,
					Quantity:    f.Quantity,
					Price:       f.Price,
					QuoteAmount: f.QuoteAmount,
					FilledAt:    f.Timestamp,
				})
			}
			if err := m.Repo.InsertTradeRecords(ctx, records); err != nil {
				m.Logger.Warn("journal fill insert failed", zap.String("run_id", r.ID), zap.Error(err))
				continue
			}
		}
		spent, trades := r.Engine.State.Totals()
		if err := m.Repo.UpdateRunTotals(ctx, r.ID, spent, trades); err != nil {
			m.Logger.Warn("journal totals update failed", zap.String("run_id", r.ID), zap.Error(err))
		}
	}
	return nil
}

// DailySummary notifies per-run activity totals; registered as a cron job.
func (m *RunManager) DailySummary(ctx context.Context) {
	notifier := m.Notify
	if notifier == nil {
		return
	}
	for _, info := range m.Runs() {
		if info.Status != models.RunStatusRunning {
			continue
		}
		notifier.Notify(ctx, fmt.Sprintf("Daily summary %s: %d trades, %s USDT spent, %d open positions",
			info.ID, info.TotalTrades, info.TotalQuoteSpent, info.ActivePositions))
	}
}
