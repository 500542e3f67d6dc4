package domain

import "errors"

var (
	// ErrUserResolution means the user could not be found or created.
	// Fatal for the refresh cycle; no partial reconciliation is attempted.
	ErrUserResolution = errors.New("user could not be resolved")

	// ErrLedgerFetch means one of the ledger reads failed. The caller
	// keeps its previously displayed balance and may retry.
	ErrLedgerFetch = errors.New("ledger fetch failed")

	// ErrInvalidAmount rejects a withdrawal request of zero or less
	// before any write.
	ErrInvalidAmount = errors.New("requested amount must be positive")

	// ErrInsufficientBalance rejects a request exceeding the freshly
	// aggregated total, before any write.
	ErrInsufficientBalance = errors.New("requested amount exceeds available balance")

	// ErrAllocationShortfall means the allocation loop exhausted every
	// merchant with an amount still outstanding. The total precondition
	// should make this impossible; it signals a ledger defect, not a
	// user-facing rejection.
	ErrAllocationShortfall = errors.New("allocation shortfall: balances changed mid-flight")
)
