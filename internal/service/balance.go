package service

import (
	"context"
	"fmt"
	"time"

	"github.com/autogcm/rewards-ledger/internal/domain"
	"github.com/autogcm/rewards-ledger/internal/ledger"
	"github.com/autogcm/rewards-ledger/internal/models"
	"github.com/autogcm/rewards-ledger/internal/observability"
	"github.com/autogcm/rewards-ledger/internal/snapshot"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BalanceService resolves users, fans out the ledger reads and produces
// balance sheets. One Session per user view; no state is shared across
// sessions at package level.
type BalanceService struct {
	store     QueryStore
	snapshots *snapshot.Store
}

func NewBalanceService(store QueryStore, snapshots *snapshot.Store) *BalanceService {
	return &BalanceService{store: store, snapshots: snapshots}
}

// Session is the per-user balance state with an explicit lifecycle:
// opened on view entry, refreshed explicitly (and after every successful
// withdrawal), discarded when the caller is done with it.
type Session struct {
	User    *models.User
	Sheet   ledger.BalanceSheet
	History []models.WithdrawalRecord

	// Placeholder reports that Sheet.Total came from the cache snapshot
	// and is waiting to be overwritten by the first live aggregation.
	Placeholder bool
}

// OpenSession resolves (or creates) the user by phone and seeds the
// total from the last snapshot for immediate display. User resolution
// failure is fatal: no partial reconciliation is attempted.
func (s *BalanceService) OpenSession(ctx context.Context, phone, nickname, avatarURL string) (*Session, error) {
	user, err := s.store.Queries().FindOrCreateUser(ctx, phone, nickname, avatarURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUserResolution, err)
	}

	sess := &Session{User: user}
	if total, ok := s.snapshots.Seed(ctx, user.ID); ok {
		sess.Sheet = ledger.BalanceSheet{Total: total}
		sess.Placeholder = true
	}
	return sess, nil
}

// Refresh runs the full read-and-aggregate pipeline and replaces the
// session's sheet. On any read failure the session is left untouched so
// the caller keeps its previously displayed balance.
func (s *BalanceService) Refresh(ctx context.Context, sess *Session) error {
	data, err := s.fetchLedger(ctx, sess.User.ID)
	if err != nil {
		observability.IncrementBalanceRefresh("failed")
		return err
	}

	sheet := ledger.Aggregate(data.earnings, data.withdrawals, data.legacy, data.platformMerchant)
	if sheet.DroppedDebits > 0 {
		zap.L().Warn("debits dropped: no merchant entry and no platform fallback",
			zap.Int("count", sheet.DroppedDebits),
			zap.String("user_id", sess.User.ID.String()))
		observability.AddDroppedDebits(sheet.DroppedDebits)
	}

	sess.Sheet = sheet
	sess.History = data.withdrawals
	sess.Placeholder = false

	s.snapshots.Save(ctx, sess.User.ID, sheet.Total)

	// Cache refresh of the lifetime column; losing it costs nothing.
	if err := s.store.Queries().UpdateUserLifetimeEarned(ctx, sess.User.ID, sheet.LifetimeEarned, time.Now()); err != nil {
		zap.L().Warn("lifetime earned cache update failed", zap.Error(err), zap.String("user_id", sess.User.ID.String()))
	} else {
		sess.User.LifetimeEarned = sheet.LifetimeEarned
	}

	observability.IncrementBalanceRefresh("success")
	return nil
}

type ledgerData struct {
	earnings         []models.EarningRecord
	withdrawals      []models.WithdrawalRecord
	legacy           []models.LegacyDebitRecord
	platformMerchant *uuid.UUID
}

// fetchLedger issues the three user-scoped reads plus the platform
// merchant lookup concurrently and waits for all of them. Any failure
// fails the whole fetch.
func (s *BalanceService) fetchLedger(ctx context.Context, userID uuid.UUID) (*ledgerData, error) {
	queries := s.store.Queries()
	data := &ledgerData{}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		data.earnings, err = queries.QueryEarnings(ctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		data.withdrawals, err = queries.QueryWithdrawals(ctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		data.legacy, err = queries.QueryLegacyDebits(ctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		data.platformMerchant, err = queries.ResolvePlatformMerchant(ctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrLedgerFetch, err)
	}
	return data, nil
}
