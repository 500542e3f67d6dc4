package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// User is created on first sighting of a phone number and never deleted
// by this subsystem. LifetimeEarned and TotalWeight are cached display
// values, not authoritative.
type User struct {
	ID             uuid.UUID       `json:"id"`
	Phone          string          `json:"phone"`
	Nickname       string          `json:"nickname"`
	AvatarURL      string          `json:"avatar_url"`
	LifetimeEarned decimal.Decimal `json:"lifetime_earned"`
	TotalWeight    decimal.Decimal `json:"total_weight"`
	LastSyncedAt   *time.Time      `json:"last_synced_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Merchant is a recycling partner. Exactly one merchant may be flagged
// as the platform default, the fallback bucket for debits whose merchant
// cannot be matched.
type Merchant struct {
	ID              uuid.UUID `json:"id"`
	Code            string    `json:"code"`
	DisplayName     string    `json:"display_name"`
	PlatformDefault bool      `json:"platform_default"`
}

// EarningRecord credits a user for recycling activity at one merchant.
// Immutable once created except for status transitions performed by the
// external review process.
type EarningRecord struct {
	ID         uuid.UUID       `json:"id"`
	UserID     uuid.UUID       `json:"user_id"`
	MerchantID uuid.UUID       `json:"merchant_id"`
	Value      decimal.Decimal `json:"value"`
	Status     string          `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
}

// BankDetails is the payout destination attached to every withdrawal row.
type BankDetails struct {
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
	HolderName    string `json:"account_holder_name"`
}

// WithdrawalRecord debits one merchant's accrued earnings. Created
// exclusively by the withdrawal allocator.
type WithdrawalRecord struct {
	ID         uuid.UUID       `json:"id"`
	UserID     uuid.UUID       `json:"user_id"`
	MerchantID uuid.UUID       `json:"merchant_id"`
	Amount     decimal.Decimal `json:"amount"`
	Status     string          `json:"status"`
	Reference  string          `json:"reference,omitempty"`
	Bank       BankDetails     `json:"bank"`
	CreatedAt  time.Time       `json:"created_at"`
}

// LegacyDebitRecord is a frozen negative-amount entry from the prior
// accounting scheme. Amount is always <= 0 and is applied by absolute
// value; these rows are never reversed.
type LegacyDebitRecord struct {
	ID         uuid.UUID       `json:"id"`
	UserID     uuid.UUID       `json:"user_id"`
	MerchantID uuid.UUID       `json:"merchant_id"`
	Amount     decimal.Decimal `json:"amount"`
	Reference  string          `json:"reference,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}
