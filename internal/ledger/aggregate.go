// Package ledger holds the pure reconciliation core: turning raw record
// sets into per-merchant balances and splitting a withdrawal request
// across them. Nothing here performs I/O.
package ledger

import (
	"github.com/autogcm/rewards-ledger/internal/domain"
	"github.com/autogcm/rewards-ledger/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MerchantBalance is one entry of the ordered balance sheet.
type MerchantBalance struct {
	MerchantID uuid.UUID       `json:"merchant_id"`
	Balance    decimal.Decimal `json:"balance"`
}

// BalanceSheet is the result of one aggregation pass. Entries preserve
// the order in which merchants were first seen in the earnings set; the
// allocator consumes them in exactly that order, so the order is an
// explicit property of the result rather than map iteration luck.
type BalanceSheet struct {
	Entries        []MerchantBalance `json:"entries"`
	Total          decimal.Decimal   `json:"total"`
	LifetimeEarned decimal.Decimal   `json:"lifetime_earned"`

	// PendingEarnings is the sum of earnings still awaiting review.
	// Display only; pending earnings already count toward the balance.
	PendingEarnings decimal.Decimal `json:"pending_earnings"`

	// DroppedDebits counts debits that matched no merchant entry and
	// had no platform-default bucket to fall back to.
	DroppedDebits int `json:"-"`
}

// Lookup returns the clamped balance of a merchant, or zero.
func (s BalanceSheet) Lookup(merchantID uuid.UUID) decimal.Decimal {
	for _, e := range s.Entries {
		if e.MerchantID == merchantID {
			return e.Balance
		}
	}
	return decimal.Zero
}

// Aggregate computes per-merchant net balances from the three record
// sets. It is deterministic and idempotent: identical inputs always
// produce an identical sheet, regardless of call order or repetition.
//
// Rules, in order:
//  1. Non-rejected earnings credit their merchant (first seen wins the
//     ordering slot) and accumulate into the lifetime figure.
//  2. Non-rejected withdrawals debit their merchant; an unmatched
//     merchant falls back to the platform-default entry when that entry
//     exists, otherwise the debit is dropped and counted.
//  3. Legacy debits apply their absolute value with the same fallback.
//  4. Balances round to two decimals; negatives clamp to zero and never
//     offset another merchant. Total sums the clamped positives only.
func Aggregate(
	earnings []models.EarningRecord,
	withdrawals []models.WithdrawalRecord,
	legacy []models.LegacyDebitRecord,
	platformMerchant *uuid.UUID,
) BalanceSheet {
	index := make(map[uuid.UUID]int, len(earnings))
	order := make([]uuid.UUID, 0, len(earnings))
	raw := make(map[uuid.UUID]decimal.Decimal, len(earnings))

	lifetime := decimal.Zero
	pending := decimal.Zero

	for _, e := range earnings {
		if e.Status == domain.StatusRejected {
			continue
		}
		if _, ok := index[e.MerchantID]; !ok {
			index[e.MerchantID] = len(order)
			order = append(order, e.MerchantID)
			raw[e.MerchantID] = decimal.Zero
		}
		raw[e.MerchantID] = raw[e.MerchantID].Add(e.Value)
		lifetime = lifetime.Add(e.Value)
		if e.Status == domain.EarningStatusPending {
			pending = pending.Add(e.Value)
		}
	}

	dropped := 0
	debit := func(merchantID uuid.UUID, amount decimal.Decimal) {
		if _, ok := index[merchantID]; ok {
			raw[merchantID] = raw[merchantID].Sub(amount)
			return
		}
		if platformMerchant != nil {
			if _, ok := index[*platformMerchant]; ok {
				raw[*platformMerchant] = raw[*platformMerchant].Sub(amount)
				return
			}
		}
		dropped++
	}

	for _, w := range withdrawals {
		if w.Status == domain.StatusRejected {
			continue
		}
		debit(w.MerchantID, w.Amount)
	}
	for _, d := range legacy {
		debit(d.MerchantID, d.Amount.Abs())
	}

	entries := make([]MerchantBalance, 0, len(order))
	total := decimal.Zero
	for _, merchantID := range order {
		balance := domain.ClampPoints(domain.RoundPoints(raw[merchantID]))
		entries = append(entries, MerchantBalance{MerchantID: merchantID, Balance: balance})
		total = total.Add(balance)
	}

	return BalanceSheet{
		Entries:         entries,
		Total:           domain.RoundPoints(total),
		LifetimeEarned:  domain.RoundPoints(lifetime),
		PendingEarnings: domain.RoundPoints(pending),
		DroppedDebits:   dropped,
	}
}
