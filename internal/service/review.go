package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/autogcm/rewards-ledger/internal/domain"
	"github.com/autogcm/rewards-ledger/internal/models"
	"github.com/autogcm/rewards-ledger/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	ErrWithdrawalNotFound = errors.New("withdrawal not found")
	ErrInvalidTransition  = errors.New("invalid withdrawal status transition")
)

// Terminal states have no exits. A REJECTED withdrawal returns funds by
// being excluded from every future aggregation, never by a compensating
// row.
var withdrawalTransitions = map[string]map[string]struct{}{
	domain.WithdrawalStatusPending: {
		domain.WithdrawalStatusApproved: {},
		domain.WithdrawalStatusRejected: {},
	},
	domain.WithdrawalStatusApproved: {
		domain.WithdrawalStatusPaid:     {},
		domain.WithdrawalStatusRejected: {},
	},
	domain.WithdrawalStatusPaid:     {},
	domain.WithdrawalStatusRejected: {},
}

func normalizeStatus(status string) string {
	return strings.ToUpper(strings.TrimSpace(status))
}

func canTransition(current, next string) bool {
	nextStates, ok := withdrawalTransitions[normalizeStatus(current)]
	if !ok {
		return false
	}
	_, ok = nextStates[normalizeStatus(next)]
	return ok
}

// ReviewService applies operator decisions to withdrawal records.
type ReviewService struct {
	store QueryStore
	audit *AuditService
}

func NewReviewService(store QueryStore) *ReviewService {
	return &ReviewService{
		store: store,
		audit: NewAuditService(store),
	}
}

// ResolveWithdrawal moves one withdrawal to its next status and writes
// an audit entry, all in one transaction.
func (s *ReviewService) ResolveWithdrawal(ctx context.Context, withdrawalID uuid.UUID, nextStatus string, actorID *uuid.UUID, reason string) (models.WithdrawalRecord, error) {
	nextStatus = normalizeStatus(nextStatus)
	if _, ok := withdrawalTransitions[nextStatus]; !ok {
		return models.WithdrawalRecord{}, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, nextStatus)
	}

	var resolved models.WithdrawalRecord
	err := s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		row, err := qtx.GetWithdrawalForUpdate(ctx, withdrawalID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrWithdrawalNotFound
			}
			return fmt.Errorf("get withdrawal for update: %w", err)
		}
		if !canTransition(row.Status, nextStatus) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, row.Status, nextStatus)
		}

		rows, err := qtx.UpdateWithdrawalStatus(ctx, withdrawalID, nextStatus)
		if err != nil {
			return err
		}
		if err := requireExactlyOne(rows, "update withdrawal status"); err != nil {
			return err
		}

		metadata, err := json.Marshal(map[string]string{"reason": reason})
		if err != nil {
			return fmt.Errorf("failed to encode audit metadata: %w", err)
		}
		if err := s.audit.Write(ctx, qtx, "withdrawal", withdrawalID, actorID, "status_change", row.Status, nextStatus, metadata); err != nil {
			return err
		}

		row.Status = nextStatus
		resolved = row
		return nil
	})
	if err != nil {
		return models.WithdrawalRecord{}, err
	}
	return resolved, nil
}
