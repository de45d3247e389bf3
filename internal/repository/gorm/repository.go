package gormrepository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"breakout/internal/models"
	"breakout/internal/repository"
)

type Repo struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

var _ repository.Repository = (*Repo)(nil)

func (r *Repo) InsertRun(ctx context.Context, item *models.BotRun) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *Repo) UpdateRunStatus(ctx context.Context, id string, status string, stoppedAt *time.Time) error {
	updates := map[string]any{"status": status}
	if stoppedAt != nil {
		updates["stopped_at"] = *stoppedAt
	}
	return r.db.WithContext(ctx).
		Model(&models.BotRun{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *Repo) UpdateRunTotals(ctx context.Context, id string, quoteSpent decimal.Decimal, trades int) error {
	return r.db.WithContext(ctx).
		Model(&models.BotRun{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"total_quote_spent": quoteSpent,
			"total_trades":      trades,
		}).Error
}

func (r *Repo) ListRuns(ctx context.Context, limit, offset int) ([]models.BotRun, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []models.BotRun
	err := r.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&out).Error
	return out, err
}

func (r *Repo) InsertTradeRecords(ctx context.Context, items []models.TradeRecord) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *Repo) CountTradeRecordsByRunID(ctx context.Context, runID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.TradeRecord{}).
		Where("run_id = ?", runID).
		Count(&n).Error
	return n, err
}

func (r *Repo) ListTradeRecords(ctx context.Context, params repository.ListTradeRecordsParams) ([]models.TradeRecord, error) {
	q := r.db.WithContext(ctx).Model(&models.TradeRecord{})
	if params.RunID != nil {
		q = q.Where("run_id = ?", *params.RunID)
	}
	if params.Symbol != nil {
		q = q.Where("symbol = ?", *params.Symbol)
	}
	if params.Side != nil {
		q = q.Where("side = ?", *params.Side)
	}
	if params.Since != nil {
		q = q.Where("filled_at >= ?", *params.Since)
	}
	limit := params.Limit
	if limit <= 0 {
		limit = 100
	}
	var out []models.TradeRecord
	err := q.Order("filled_at ASC").Limit(limit).Offset(params.Offset).Find(&out).Error
	return out, err
}
