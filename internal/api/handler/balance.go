package handler

import (
	"errors"
	"net/http"

	"github.com/autogcm/rewards-ledger/internal/domain"
	"github.com/autogcm/rewards-ledger/internal/ledger"
	"github.com/autogcm/rewards-ledger/internal/service"
	"go.uber.org/zap"
)

// BalanceHandler serves the reconciled balance view.
type BalanceHandler struct {
	balanceSvc *service.BalanceService
}

// NewBalanceHandler creates a new BalanceHandler instance.
func NewBalanceHandler(balanceSvc *service.BalanceService) *BalanceHandler {
	return &BalanceHandler{balanceSvc: balanceSvc}
}

type merchantBalanceResponse struct {
	MerchantID string `json:"merchant_id"`
	Balance    string `json:"balance"`
}

type balanceResponse struct {
	UserID          string                    `json:"user_id"`
	Total           string                    `json:"total"`
	Entries         []merchantBalanceResponse `json:"entries"`
	PendingEarnings string                    `json:"pending_earnings"`
	LifetimeEarned  string                    `json:"lifetime_earned"`

	// Stale marks a total served from the last cached snapshot because
	// the live ledger reads failed.
	Stale bool `json:"stale"`
}

func balanceView(userID string, sheet ledger.BalanceSheet, stale bool) balanceResponse {
	entries := make([]merchantBalanceResponse, 0, len(sheet.Entries))
	for _, e := range sheet.Entries {
		entries = append(entries, merchantBalanceResponse{
			MerchantID: e.MerchantID.String(),
			Balance:    domain.FormatPoints(e.Balance),
		})
	}
	return balanceResponse{
		UserID:          userID,
		Total:           domain.FormatPoints(sheet.Total),
		Entries:         entries,
		PendingEarnings: domain.FormatPoints(sheet.PendingEarnings),
		LifetimeEarned:  domain.FormatPoints(sheet.LifetimeEarned),
		Stale:           stale,
	}
}

// GetBalance handles GET /v1/balance.
// It resolves the caller by phone, runs the full refresh pipeline and
// returns the per-merchant sheet. When the live reads fail but a cached
// snapshot seeded the session, the snapshot total is served with the
// stale flag set instead of an error.
func (h *BalanceHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	phone, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	sess, err := h.balanceSvc.OpenSession(r.Context(), phone, "", "")
	if err != nil {
		zap.L().Error("open balance session failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "balance/user-resolution-failed", "Failed to resolve user")
		return
	}

	if err := h.balanceSvc.Refresh(r.Context(), sess); err != nil {
		if errors.Is(err, domain.ErrLedgerFetch) && sess.Placeholder {
			zap.L().Warn("serving stale balance snapshot", zap.Error(err), zap.String("user_id", sess.User.ID.String()))
			RespondJSON(w, http.StatusOK, balanceView(sess.User.ID.String(), sess.Sheet, true))
			return
		}
		zap.L().Error("balance refresh failed", zap.Error(err), zap.String("user_id", sess.User.ID.String()))
		RespondError(w, r, http.StatusServiceUnavailable, "balance/refresh-failed", "Failed to refresh balance")
		return
	}

	RespondJSON(w, http.StatusOK, balanceView(sess.User.ID.String(), sess.Sheet, false))
}

// GetProfile handles GET /v1/profile.
func (h *BalanceHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	phone, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	sess, err := h.balanceSvc.OpenSession(r.Context(), phone, "", "")
	if err != nil {
		zap.L().Error("open profile session failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "profile/user-resolution-failed", "Failed to resolve user")
		return
	}

	RespondJSON(w, http.StatusOK, sess.User)
}
