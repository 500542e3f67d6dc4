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

func TestWithdrawalSubmitSplitsAcrossMerchants(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	store := repository.NewStore(db)
	svc := NewWithdrawalService(store)

	user := createTestUser(t, db, "+2348000000001")
	merchantA := createTestMerchant(t, db, "wd-a", false)
	merchantB := createTestMerchant(t, db, "wd-b", false)

	base := time.Now().Add(-time.Hour)
	insertEarning(t, db, user.ID, merchantA, "30.00", domain.EarningStatusApproved, base)
	insertEarning(t, db, user.ID, merchantB, "20.00", domain.EarningStatusApproved, base.Add(time.Minute))

	records, err := svc.Submit(ctx, SubmitRequest{
		UserID: user.ID,
		Amount: decimal.RequireFromString("35"),
		Bank:   testBank(),
	})
	require.NoError(t, err)
	require.Len(t, records, 2)

	require.Equal(t, merchantA, records[0].MerchantID)
	require.Equal(t, "30.00", records[0].Amount.StringFixed(2))
	require.Equal(t, merchantB, records[1].MerchantID)
	require.Equal(t, "5.00", records[1].Amount.StringFixed(2))
	for _, rec := range records {
		require.Equal(t, domain.WithdrawalStatusPending, rec.Status)
		require.Equal(t, user.ID, rec.UserID)
	}

	// The inserted rows must reduce the next aggregation to 15.
	stored, err := repository.New(db).QueryWithdrawals(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, stored, 2)

	balanceSvc := NewBalanceService(store, nil)
	sess := &Session{User: user}
	require.NoError(t, balanceSvc.Refresh(ctx, sess))
	require.Equal(t, "15.00", sess.Sheet.Total.StringFixed(2))
	require.Equal(t, "0.00", sess.Sheet.Lookup(merchantA).StringFixed(2))
	require.Equal(t, "15.00", sess.Sheet.Lookup(merchantB).StringFixed(2))
}

func TestWithdrawalSubmitInsufficientBalanceLeavesNothingBehind(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	svc := NewWithdrawalService(repository.NewStore(db))

	user := createTestUser(t, db, "+2348000000002")
	merchant := createTestMerchant(t, db, "wd-short", false)
	insertEarning(t, db, user.ID, merchant, "50.00", domain.EarningStatusApproved, time.Now().Add(-time.Hour))

	_, err := svc.Submit(ctx, SubmitRequest{
		UserID: user.ID,
		Amount: decimal.RequireFromString("50.01"),
		Bank:   testBank(),
	})
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)

	require.Equal(t, 0, countRows(t, db, "withdrawals"))
	require.Equal(t, 0, countRows(t, db, "audit_log"))
}

func TestWithdrawalSubmitRejectsNonPositiveAmount(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	svc := NewWithdrawalService(repository.NewStore(db))
	user := createTestUser(t, db, "+2348000000003")

	for _, amount := range []string{"0", "-5", "0.004"} {
		_, err := svc.Submit(context.Background(), SubmitRequest{
			UserID: user.ID,
			Amount: decimal.RequireFromString(amount),
			Bank:   testBank(),
		})
		require.ErrorIs(t, err, domain.ErrInvalidAmount, "amount %s", amount)
	}
}

func TestWithdrawalSubmitRejectsMissingBankDetails(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	svc := NewWithdrawalService(repository.NewStore(db))
	user := createTestUser(t, db, "+2348000000004")
	merchant := createTestMerchant(t, db, "wd-bank", false)
	insertEarning(t, db, user.ID, merchant, "10.00", domain.EarningStatusApproved, time.Now().Add(-time.Hour))

	bank := testBank()
	bank.AccountNumber = ""
	_, err := svc.Submit(context.Background(), SubmitRequest{
		UserID: user.ID,
		Amount: decimal.RequireFromString("5"),
		Bank:   bank,
	})
	require.ErrorIs(t, err, ErrInvalidBankDetails)
}

func TestWithdrawalSubmitUnknownUser(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	svc := NewWithdrawalService(repository.NewStore(db))
	_, err := svc.Submit(context.Background(), SubmitRequest{
		UserID: uuid.New(),
		Amount: decimal.RequireFromString("5"),
		Bank:   testBank(),
	})
	require.ErrorIs(t, err, domain.ErrUserResolution)
}

func TestWithdrawalSubmitWritesAuditTrail(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	svc := NewWithdrawalService(repository.NewStore(db))
	user := createTestUser(t, db, "+2348000000005")
	merchantA := createTestMerchant(t, db, "wd-audit-a", false)
	merchantB := createTestMerchant(t, db, "wd-audit-b", false)

	base := time.Now().Add(-time.Hour)
	insertEarning(t, db, user.ID, merchantA, "10.00", domain.EarningStatusApproved, base)
	insertEarning(t, db, user.ID, merchantB, "10.00", domain.EarningStatusApproved, base.Add(time.Minute))

	records, err := svc.Submit(context.Background(), SubmitRequest{
		UserID: user.ID,
		Amount: decimal.RequireFromString("15"),
		Bank:   testBank(),
	})
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, 2, countRows(t, db, "audit_log"))
}

func TestRejectedWithdrawalReturnsFunds(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	store := repository.NewStore(db)
	withdrawalSvc := NewWithdrawalService(store)
	reviewSvc := NewReviewService(store)
	balanceSvc := NewBalanceService(store, nil)

	user := createTestUser(t, db, "+2348000000006")
	merchant := createTestMerchant(t, db, "wd-reject", false)
	insertEarning(t, db, user.ID, merchant, "40.00", domain.EarningStatusApproved, time.Now().Add(-time.Hour))

	records, err := withdrawalSvc.Submit(ctx, SubmitRequest{
		UserID: user.ID,
		Amount: decimal.RequireFromString("25"),
		Bank:   testBank(),
	})
	require.NoError(t, err)
	require.Len(t, records, 1)

	sess := &Session{User: user}
	require.NoError(t, balanceSvc.Refresh(ctx, sess))
	require.Equal(t, "15.00", sess.Sheet.Total.StringFixed(2))

	_, err = reviewSvc.ResolveWithdrawal(ctx, records[0].ID, domain.WithdrawalStatusRejected, nil, "payout bounced")
	require.NoError(t, err)

	require.NoError(t, balanceSvc.Refresh(ctx, sess))
	require.Equal(t, "40.00", sess.Sheet.Total.StringFixed(2))
}

func TestConcurrentSubmissionsNeverOverdraw(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	store := repository.NewStore(db)
	svc := NewWithdrawalService(store)

	user := createTestUser(t, db, "+2348000000007")
	merchant := createTestMerchant(t, db, "wd-race", false)
	insertEarning(t, db, user.ID, merchant, "50.00", domain.EarningStatusApproved, time.Now().Add(-time.Hour))

	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := svc.Submit(ctx, SubmitRequest{
				UserID: user.ID,
				Amount: decimal.RequireFromString("40"),
				Bank:   testBank(),
			})
			results <- err
		}()
	}

	var failures int
	for i := 0; i < 2; i++ {
		if err := <-results; err != nil {
			require.ErrorIs(t, err, domain.ErrInsufficientBalance)
			failures++
		}
	}
	require.Equal(t, 1, failures, "exactly one of two 40-point submissions against 50 points must fail")

	balanceSvc := NewBalanceService(store, nil)
	sess := &Session{User: user}
	require.NoError(t, balanceSvc.Refresh(ctx, sess))
	require.Equal(t, "10.00", sess.Sheet.Total.StringFixed(2))
}
