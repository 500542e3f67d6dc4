package service

import (
	"context"
	"testing"
	"time"

	"github.com/autogcm/rewards-ledger/internal/domain"
	"github.com/autogcm/rewards-ledger/internal/repository"
	"github.com/stretchr/testify/require"
)

func TestOpenSessionResolvesUserByPhone(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	svc := NewBalanceService(repository.NewStore(db), nil)

	first, err := svc.OpenSession(ctx, "+2348000000100", "Ada", "")
	require.NoError(t, err)
	require.Equal(t, "Ada", first.User.Nickname)

	second, err := svc.OpenSession(ctx, "+2348000000100", "", "")
	require.NoError(t, err)
	require.Equal(t, first.User.ID, second.User.ID)
	require.False(t, second.Placeholder)
}

func TestRefreshAggregatesAllLedgerSources(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	store := repository.NewStore(db)
	svc := NewBalanceService(store, nil)

	user := createTestUser(t, db, "+2348000000101")
	merchantA := createTestMerchant(t, db, "bal-a", false)
	merchantB := createTestMerchant(t, db, "bal-b", false)

	base := time.Now().Add(-2 * time.Hour)
	insertEarning(t, db, user.ID, merchantA, "30.00", domain.EarningStatusApproved, base)
	insertEarning(t, db, user.ID, merchantA, "10.00", domain.EarningStatusPending, base.Add(time.Minute))
	insertEarning(t, db, user.ID, merchantA, "99.00", domain.StatusRejected, base.Add(2*time.Minute))
	insertEarning(t, db, user.ID, merchantB, "20.00", domain.EarningStatusApproved, base.Add(3*time.Minute))

	insertWithdrawal(t, db, user.ID, merchantA, "15.00", domain.WithdrawalStatusPaid, "")
	insertLegacyDebit(t, db, user.ID, merchantB, "-5.00", "")

	sess := &Session{User: user}
	require.NoError(t, svc.Refresh(ctx, sess))

	// A: 30 + 10 pending - 15 = 25. B: 20 - 5 = 15. Rejected earning ignored.
	require.Equal(t, "25.00", sess.Sheet.Lookup(merchantA).StringFixed(2))
	require.Equal(t, "15.00", sess.Sheet.Lookup(merchantB).StringFixed(2))
	require.Equal(t, "40.00", sess.Sheet.Total.StringFixed(2))
	require.Equal(t, "60.00", sess.Sheet.LifetimeEarned.StringFixed(2))
	require.Equal(t, "10.00", sess.Sheet.PendingEarnings.StringFixed(2))
	require.Len(t, sess.History, 1)
	require.False(t, sess.Placeholder)
}

func TestRefreshUpdatesCachedLifetimeEarned(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	store := repository.NewStore(db)
	svc := NewBalanceService(store, nil)

	user := createTestUser(t, db, "+2348000000102")
	merchant := createTestMerchant(t, db, "bal-cache", false)
	insertEarning(t, db, user.ID, merchant, "12.50", domain.EarningStatusApproved, time.Now().Add(-time.Hour))

	sess := &Session{User: user}
	require.NoError(t, svc.Refresh(ctx, sess))
	require.Equal(t, "12.50", sess.User.LifetimeEarned.StringFixed(2))

	reloaded, err := repository.New(db).FindOrCreateUser(ctx, user.Phone, "", "")
	require.NoError(t, err)
	require.Equal(t, "12.50", reloaded.LifetimeEarned.StringFixed(2))
	require.NotNil(t, reloaded.LastSyncedAt)
}

func TestRefreshRoutesUnmatchedDebitToPlatformDefault(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	svc := NewBalanceService(repository.NewStore(db), nil)

	user := createTestUser(t, db, "+2348000000103")
	platform := createTestMerchant(t, db, "bal-platform", true)
	ghost := createTestMerchant(t, db, "bal-ghost", false)

	insertEarning(t, db, user.ID, platform, "30.00", domain.EarningStatusApproved, time.Now().Add(-time.Hour))
	// Withdrawal against a merchant the user never earned from.
	insertWithdrawal(t, db, user.ID, ghost, "10.00", domain.WithdrawalStatusPaid, "")

	sess := &Session{User: user}
	require.NoError(t, svc.Refresh(ctx, sess))
	require.Equal(t, "20.00", sess.Sheet.Lookup(platform).StringFixed(2))
	require.Equal(t, "20.00", sess.Sheet.Total.StringFixed(2))
}
