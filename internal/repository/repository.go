package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"breakout/internal/models"
)

// Repository is the write-mostly journal store. Every caller treats it as
// best-effort: the engine keeps running when inserts fail.
type Repository interface {
	InsertRun(ctx context.Context, item *models.BotRun) error
	UpdateRunStatus(ctx context.Context, id string, status string, stoppedAt *time.Time) error
	UpdateRunTotals(ctx context.Context, id string, quoteSpent decimal.Decimal, trades int) error
	ListRuns(ctx context.Context, limit, offset int) ([]models.BotRun, error)

	InsertTradeRecords(ctx context.Context, items []models.TradeRecord) error
	CountTradeRecordsByRunID(ctx context.Context, runID string) (int64, error)
	ListTradeRecords(ctx context.Context, params ListTradeRecordsParams) ([]models.TradeRecord, error)
}

type ListTradeRecordsParams struct {
	RunID  *string
	Symbol *string
	Side   *string
	Since  *time.Time
	Limit  int
	Offset int
}
