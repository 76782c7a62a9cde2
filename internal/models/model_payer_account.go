package models

import (
	"time"

	"gorm.io/datatypes"
)

// PayerAccount groups the debts owed by one phone number.
type PayerAccount struct {
	// Phone is the canonical international number without "+", e.g. 254712345678.
	Phone string `gorm:"column:phone;type:varchar(32);primaryKey" json:"phone"`
	Name  string `gorm:"column:name;type:varchar(128)" json:"name"`
	// DebtCodes is kept in debt creation order; allocation walks it oldest first.
	DebtCodes datatypes.JSONSlice[string] `gorm:"column:debt_codes;type:jsonb;default:'[]'" json:"debt_codes"`
	CreatedAt time.Time                   `json:"created_at"`
	UpdatedAt time.Time                   `json:"updated_at"`
}

func (PayerAccount) TableName() string { return "payer_account" }
