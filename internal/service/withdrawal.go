package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/autogcm/rewards-ledger/internal/domain"
	"github.com/autogcm/rewards-ledger/internal/ledger"
	"github.com/autogcm/rewards-ledger/internal/models"
	"github.com/autogcm/rewards-ledger/internal/observability"
	"github.com/autogcm/rewards-ledger/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrInvalidBankDetails flags a submission whose payout destination is
// missing required fields.
var ErrInvalidBankDetails = errors.New("invalid bank details")

// WithdrawalService turns a withdrawal request into a batch of
// per-merchant debit records and persists them atomically.
type WithdrawalService struct {
	store QueryStore
	audit *AuditService
}

func NewWithdrawalService(store QueryStore) *WithdrawalService {
	return &WithdrawalService{
		store: store,
		audit: NewAuditService(store),
	}
}

// SubmitRequest holds the parameters for one withdrawal submission.
type SubmitRequest struct {
	UserID uuid.UUID
	Amount decimal.Decimal
	Bank   models.BankDetails
}

// Validate ensures the payout destination carries the required fields.
func (r SubmitRequest) Validate() error {
	if r.Bank.BankName == "" {
		return fmt.Errorf("%w: bank_name is required", ErrInvalidBankDetails)
	}
	if r.Bank.AccountNumber == "" {
		return fmt.Errorf("%w: account_number is required", ErrInvalidBankDetails)
	}
	if r.Bank.HolderName == "" {
		return fmt.Errorf("%w: account_holder_name is required", ErrInvalidBankDetails)
	}
	return nil
}

// Submit allocates the requested amount across the user's per-merchant
// balances and inserts the resulting PENDING rows as one batch.
//
// The balance is recomputed inside the transaction with the user row
// locked, so two overlapping submissions for the same user serialize and
// the second sees the first one's debits. A stale client-side total can
// therefore never double-spend. Callers must re-run the refresh
// pipeline afterwards instead of adjusting any local figure.
func (s *WithdrawalService) Submit(ctx context.Context, req SubmitRequest) ([]models.WithdrawalRecord, error) {
	amount := domain.RoundPoints(req.Amount)
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var planned []models.WithdrawalRecord
	err := s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		if err := qtx.LockUser(ctx, req.UserID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%w: unknown user %s", domain.ErrUserResolution, req.UserID)
			}
			return err
		}

		// Fresh aggregate under the lock; the cached snapshot and any
		// client-supplied total are ignored here.
		earnings, err := qtx.QueryEarnings(ctx, req.UserID)
		if err != nil {
			return err
		}
		withdrawals, err := qtx.QueryWithdrawals(ctx, req.UserID)
		if err != nil {
			return err
		}
		legacy, err := qtx.QueryLegacyDebits(ctx, req.UserID)
		if err != nil {
			return err
		}
		platformMerchant, err := qtx.ResolvePlatformMerchant(ctx)
		if err != nil {
			return err
		}
		sheet := ledger.Aggregate(earnings, withdrawals, legacy, platformMerchant)

		records, err := ledger.PlanAllocation(ledger.AllocationRequest{
			UserID: req.UserID,
			Amount: amount,
			Bank:   req.Bank,
		}, sheet)
		if err != nil {
			return err
		}

		if err := qtx.InsertWithdrawals(ctx, records); err != nil {
			return err
		}

		metadata, err := json.Marshal(map[string]any{
			"requested": domain.FormatPoints(amount),
			"records":   len(records),
		})
		if err != nil {
			return fmt.Errorf("failed to encode audit metadata: %w", err)
		}
		for _, rec := range records {
			if err := s.audit.Write(ctx, qtx, "withdrawal", rec.ID, nil, "created", "", domain.WithdrawalStatusPending, metadata); err != nil {
				return err
			}
		}

		planned = records
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidAmount), errors.Is(err, domain.ErrInsufficientBalance):
			observability.IncrementWithdrawalSubmission("rejected")
		case errors.Is(err, domain.ErrAllocationShortfall):
			observability.IncrementWithdrawalSubmission("shortfall")
			zap.L().Error("allocation shortfall despite total precondition",
				zap.Error(err), zap.String("user_id", req.UserID.String()))
		default:
			observability.IncrementWithdrawalSubmission("failed")
		}
		return nil, err
	}

	observability.IncrementWithdrawalSubmission("accepted")
	return planned, nil
}
