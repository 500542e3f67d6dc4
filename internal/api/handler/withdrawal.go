package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/autogcm/rewards-ledger/internal/domain"
	"github.com/autogcm/rewards-ledger/internal/models"
	"github.com/autogcm/rewards-ledger/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// WithdrawalHandler handles HTTP requests for withdrawals.
type WithdrawalHandler struct {
	withdrawalSvc *service.WithdrawalService
	balanceSvc    *service.BalanceService
	reviewSvc     *service.ReviewService
}

// NewWithdrawalHandler creates a new WithdrawalHandler instance.
func NewWithdrawalHandler(withdrawalSvc *service.WithdrawalService, balanceSvc *service.BalanceService, reviewSvc *service.ReviewService) *WithdrawalHandler {
	return &WithdrawalHandler{
		withdrawalSvc: withdrawalSvc,
		balanceSvc:    balanceSvc,
		reviewSvc:     reviewSvc,
	}
}

// CreateWithdrawalRequest represents the request body for submitting a withdrawal.
type CreateWithdrawalRequest struct {
	Amount string             `json:"amount"`
	Bank   models.BankDetails `json:"bank"`
}

type withdrawalRecordResponse struct {
	ID         string `json:"id"`
	MerchantID string `json:"merchant_id"`
	Amount     string `json:"amount"`
	Status     string `json:"status"`
}

// CreateWithdrawal handles POST /v1/withdrawals
// It splits the requested amount across the caller's per-merchant
// balances and returns 201 Created with the resulting records.
func (h *WithdrawalHandler) CreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	phone, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	var req CreateWithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-amount", "amount must be a decimal string")
		return
	}

	sess, err := h.balanceSvc.OpenSession(r.Context(), phone, "", "")
	if err != nil {
		zap.L().Error("resolve withdrawal user failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "withdrawal/user-resolution-failed", "Failed to resolve user")
		return
	}

	records, err := h.withdrawalSvc.Submit(r.Context(), service.SubmitRequest{
		UserID: sess.User.ID,
		Amount: amount,
		Bank:   req.Bank,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidAmount):
			RespondError(w, r, http.StatusBadRequest, "withdrawal/invalid-amount", "Amount must be greater than zero")
			return
		case errors.Is(err, domain.ErrInsufficientBalance):
			RespondError(w, r, http.StatusUnprocessableEntity, "withdrawal/insufficient-balance", "Requested amount exceeds available balance")
			return
		case errors.Is(err, service.ErrInvalidBankDetails):
			RespondError(w, r, http.StatusBadRequest, "withdrawal/invalid-bank-details", err.Error())
			return
		}
		if status, problemType, message, ok := mapDBError(err); ok {
			RespondError(w, r, status, problemType, message)
			return
		}
		zap.L().Error("withdrawal submission failed", zap.Error(err), zap.String("user_id", sess.User.ID.String()))
		RespondError(w, r, http.StatusInternalServerError, "withdrawal/submit-failed", "Failed to submit withdrawal")
		return
	}

	items := make([]withdrawalRecordResponse, 0, len(records))
	for _, rec := range records {
		items = append(items, withdrawalRecordResponse{
			ID:         rec.ID.String(),
			MerchantID: rec.MerchantID.String(),
			Amount:     domain.FormatPoints(rec.Amount),
			Status:     rec.Status,
		})
	}
	RespondJSON(w, http.StatusCreated, map[string]any{
		"requested": domain.FormatPoints(domain.RoundPoints(amount)),
		"records":   items,
	})
}

// ListWithdrawals handles GET /v1/withdrawals.
// Returns the caller's withdrawal history, newest first.
func (h *WithdrawalHandler) ListWithdrawals(w http.ResponseWriter, r *http.Request) {
	phone, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	sess, err := h.balanceSvc.OpenSession(r.Context(), phone, "", "")
	if err != nil {
		zap.L().Error("resolve withdrawal history user failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "withdrawal/user-resolution-failed", "Failed to resolve user")
		return
	}

	if err := h.balanceSvc.Refresh(r.Context(), sess); err != nil {
		zap.L().Error("withdrawal history refresh failed", zap.Error(err), zap.String("user_id", sess.User.ID.String()))
		RespondError(w, r, http.StatusServiceUnavailable, "withdrawal/history-read-failed", "Failed to read withdrawal history")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]any{
		"items": sess.History,
		"count": len(sess.History),
	})
}

type resolveWithdrawalRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// ResolveWithdrawal handles PATCH /v1/withdrawals/{id}/status (admin only).
func (h *WithdrawalHandler) ResolveWithdrawal(w http.ResponseWriter, r *http.Request) {
	phone, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	withdrawalID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-withdrawal-id", "Invalid withdrawal ID")
		return
	}

	var req resolveWithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	if req.Status == "" {
		RespondError(w, r, http.StatusBadRequest, "request/missing-status", "status is required")
		return
	}

	// The reviewing operator is a user like any other; resolve them so the
	// audit trail carries a concrete actor id.
	actor, err := h.balanceSvc.OpenSession(r.Context(), phone, "", "")
	if err != nil {
		zap.L().Error("resolve reviewer failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "withdrawal/user-resolution-failed", "Failed to resolve reviewer")
		return
	}
	actorID := actor.User.ID

	resolved, err := h.reviewSvc.ResolveWithdrawal(r.Context(), withdrawalID, req.Status, &actorID, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrWithdrawalNotFound):
			RespondError(w, r, http.StatusNotFound, "withdrawal/not-found", "Withdrawal not found")
			return
		case errors.Is(err, service.ErrInvalidTransition):
			RespondError(w, r, http.StatusConflict, "withdrawal/invalid-transition", err.Error())
			return
		default:
			zap.L().Error("resolve withdrawal failed", zap.Error(err), zap.String("withdrawal_id", withdrawalID.String()))
			RespondError(w, r, http.StatusInternalServerError, "withdrawal/resolve-failed", "Failed to resolve withdrawal")
			return
		}
	}

	RespondJSON(w, http.StatusOK, resolved)
}
