package service

import (
	"context"
	"testing"
	"time"

	"github.com/autogcm/rewards-ledger/internal/domain"
	"github.com/autogcm/rewards-ledger/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestResolveWithdrawalTransitions(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	store := repository.NewStore(db)
	withdrawalSvc := NewWithdrawalService(store)
	reviewSvc := NewReviewService(store)

	user := createTestUser(t, db, "+2348000000200")
	merchant := createTestMerchant(t, db, "rev-a", false)
	insertEarning(t, db, user.ID, merchant, "50.00", domain.EarningStatusApproved, time.Now().Add(-time.Hour))

	records, err := withdrawalSvc.Submit(ctx, SubmitRequest{
		UserID: user.ID,
		Amount: decimal.RequireFromString("20"),
		Bank:   testBank(),
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	withdrawalID := records[0].ID

	actorID := user.ID
	approved, err := reviewSvc.ResolveWithdrawal(ctx, withdrawalID, "approved", &actorID, "first pass")
	require.NoError(t, err)
	require.Equal(t, domain.WithdrawalStatusApproved, approved.Status)

	paid, err := reviewSvc.ResolveWithdrawal(ctx, withdrawalID, domain.WithdrawalStatusPaid, &actorID, "payout sent")
	require.NoError(t, err)
	require.Equal(t, domain.WithdrawalStatusPaid, paid.Status)

	// PAID is terminal.
	_, err = reviewSvc.ResolveWithdrawal(ctx, withdrawalID, domain.WithdrawalStatusRejected, &actorID, "")
	require.ErrorIs(t, err, ErrInvalidTransition)

	// Submission audit plus two status changes.
	require.Equal(t, 3, countRows(t, db, "audit_log"))
}

func TestResolveWithdrawalRejectsUnknownTargets(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	reviewSvc := NewReviewService(repository.NewStore(db))

	_, err := reviewSvc.ResolveWithdrawal(ctx, uuid.New(), domain.WithdrawalStatusApproved, nil, "")
	require.ErrorIs(t, err, ErrWithdrawalNotFound)

	_, err = reviewSvc.ResolveWithdrawal(ctx, uuid.New(), "SHIPPED", nil, "")
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestResolveWithdrawalCannotReopenRejected(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	store := repository.NewStore(db)
	withdrawalSvc := NewWithdrawalService(store)
	reviewSvc := NewReviewService(store)

	user := createTestUser(t, db, "+2348000000201")
	merchant := createTestMerchant(t, db, "rev-b", false)
	insertEarning(t, db, user.ID, merchant, "30.00", domain.EarningStatusApproved, time.Now().Add(-time.Hour))

	records, err := withdrawalSvc.Submit(ctx, SubmitRequest{
		UserID: user.ID,
		Amount: decimal.RequireFromString("10"),
		Bank:   testBank(),
	})
	require.NoError(t, err)

	_, err = reviewSvc.ResolveWithdrawal(ctx, records[0].ID, domain.WithdrawalStatusRejected, nil, "fraud check")
	require.NoError(t, err)

	_, err = reviewSvc.ResolveWithdrawal(ctx, records[0].ID, domain.WithdrawalStatusApproved, nil, "")
	require.ErrorIs(t, err, ErrInvalidTransition)
}
