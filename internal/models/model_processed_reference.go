package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ProcessedReference marks a vendor reference id as applied. Presence of the row
// is the whole contract.
type ProcessedReference struct {
	ReferenceID string                      `gorm:"column:reference_id;type:varchar(64);primaryKey" json:"reference_id"`
	DebtCodes   datatypes.JSONSlice[string] `gorm:"column:debt_codes;type:jsonb;default:'[]'" json:"debt_codes"`
	Amount      decimal.Decimal             `gorm:"column:amount;type:numeric(18,2);not null" json:"amount"`
	CreatedAt   time.Time                   `json:"created_at"`
}

func (ProcessedReference) TableName() string { return "processed_reference" }
