package ledger

import (
	"github.com/autogcm/rewards-ledger/internal/domain"
	"github.com/autogcm/rewards-ledger/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AllocationRequest describes one withdrawal to split across merchants.
type AllocationRequest struct {
	UserID uuid.UUID
	Amount decimal.Decimal
	Bank   models.BankDetails
}

// PlanAllocation splits the requested amount across the sheet's merchant
// entries in their recorded order. It validates before emitting anything:
// a non-positive amount or an amount strictly greater than the sheet
// total is rejected and no records are produced.
//
// Each emitted record debits at most the merchant's clamped balance, so
// a merchant is only ever debited from its own accrued earnings. A
// remainder after exhausting every merchant is a consistency defect
// (domain.ErrAllocationShortfall), not a user rejection.
func PlanAllocation(req AllocationRequest, sheet BalanceSheet) ([]models.WithdrawalRecord, error) {
	amount := domain.RoundPoints(req.Amount)
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}
	if amount.GreaterThan(sheet.Total) {
		return nil, domain.ErrInsufficientBalance
	}

	remaining := amount
	var records []models.WithdrawalRecord
	for _, entry := range sheet.Entries {
		if !remaining.IsPositive() {
			break
		}
		if !entry.Balance.IsPositive() {
			continue
		}
		take := decimal.Min(entry.Balance, remaining)
		records = append(records, models.WithdrawalRecord{
			ID:         uuid.New(),
			UserID:     req.UserID,
			MerchantID: entry.MerchantID,
			Amount:     take,
			Status:     domain.WithdrawalStatusPending,
			Bank:       req.Bank,
		})
		remaining = remaining.Sub(take)
	}

	if remaining.IsPositive() {
		return nil, domain.ErrAllocationShortfall
	}
	return records, nil
}
