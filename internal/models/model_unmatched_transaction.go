package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// UnmatchedTransaction is a parsed payment that resolved to no debt and no payer.
// It waits for a human; nothing retries it automatically.
type UnmatchedTransaction struct {
	ID             string          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	PaymentLogID   string          `gorm:"column:payment_log_id;type:uuid" json:"payment_log_id"`
	ReferenceID    *string         `gorm:"column:reference_id;type:varchar(64);index" json:"reference_id"`
	AccountToken   string          `gorm:"column:account_token;type:varchar(64);not null" json:"account_token"`
	Amount         decimal.Decimal `gorm:"column:amount;type:numeric(18,2);not null" json:"amount"`
	PayerPhone     *string         `gorm:"column:payer_phone;type:varchar(32)" json:"payer_phone"`
	PayerName      *string         `gorm:"column:payer_name;type:varchar(128)" json:"payer_name"`
	OccurredAt     time.Time       `gorm:"column:occurred_at" json:"occurred_at"`
	RawText        string          `gorm:"column:raw_text;type:text" json:"raw_text"`
	Reason         string          `gorm:"column:reason;type:varchar(255);not null" json:"reason"`
	NeedsReview    bool            `gorm:"column:needs_review;not null;index" json:"needs_review"`
	ResolvedAt     *time.Time      `gorm:"column:resolved_at;default:null" json:"resolved_at"`
	ResolvedBy     *string         `gorm:"column:resolved_by;type:varchar(64)" json:"resolved_by"`
	ResolutionNote *string         `gorm:"column:resolution_note;type:text" json:"resolution_note"`
	CreatedAt      time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (UnmatchedTransaction) TableName() string { return "unmatched_transaction" }
