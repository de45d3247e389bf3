package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// BotRun is the persisted record of one engine run. Write-only history:
// the engine never reads these rows back.
type BotRun struct {
	ID     string `gorm:"type:varchar(36);primaryKey"`
	Status string `gorm:"type:varchar(20);not null;index"`

	Config datatypes.JSON `gorm:"type:jsonb"`

	TotalQuoteSpent decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	TotalTrades     int             `gorm:"not null;default:0"`

	StartedAt time.Time  `gorm:"type:timestamptz;not null"`
	StoppedAt *time.Time `gorm:"type:timestamptz"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (BotRun) TableName() string {
	return "bot_runs"
}

const (
	RunStatusRunning = "running"
	RunStatusStopped = "stopped"
	RunStatusAborted = "aborted"
)

// TradeRecord mirrors a ledger fill into the journal table.
type TradeRecord struct {
	ID    uint64 `gorm:"primaryKey;autoIncrement"`
	RunID string `gorm:"type:varchar(36);not null;index"`

	Symbol string `gorm:"type:varchar(20);not null;index"`
	Side   string `gorm:"type:varchar(4);not null"`

	Quantity    decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	Price       decimal.Decimal `gorm:"type:numeric(20,10);not null"`
	QuoteAmount decimal.Decimal `gorm:"type:numeric(30,10);not null"`

	FilledAt  time.Time `gorm:"type:timestamptz;not null;index"`
	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (TradeRecord) TableName() string {
	return "trade_records"
}
