package service

import (
	"context"
	"fmt"

	"github.com/autogcm/rewards-ledger/internal/observability"
	"go.uber.org/zap"
)

// ReconciliationService verifies that legacy debits and withdrawals are
// disjoint populations. A migrated movement counted in both sets would
// deduct twice from the same merchant balance.
type ReconciliationService struct {
	store QueryStore
}

func NewReconciliationService(store QueryStore) *ReconciliationService {
	return &ReconciliationService{store: store}
}

// Run scans for legacy debits that mirror an EXTERNAL_SYNC withdrawal.
// Suspects are reported, not repaired; repair is an operator decision.
func (s *ReconciliationService) Run(ctx context.Context) error {
	suspects, err := s.store.Queries().FindDoubleCountedDebits(ctx)
	if err != nil {
		return fmt.Errorf("run double-count scan: %w", err)
	}

	if len(suspects) == 0 {
		zap.L().Info("ledger sources disjoint: no double-counted debits")
		return nil
	}

	for _, suspect := range suspects {
		observability.IncrementDoubleCountSuspect()
		zap.L().Error("legacy debit mirrors a migrated withdrawal",
			zap.String("legacy_debit_id", suspect.LegacyDebitID.String()),
			zap.String("withdrawal_id", suspect.WithdrawalID.String()),
			zap.String("user_id", suspect.UserID.String()),
			zap.String("merchant_id", suspect.MerchantID.String()),
			zap.String("amount", suspect.Amount.StringFixed(2)),
		)
	}
	return nil
}
