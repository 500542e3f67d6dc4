package domain

// Earning statuses, assigned by the external submission review process.
// Everything except REJECTED counts toward the balance.
const (
	EarningStatusPending  = "PENDING"
	EarningStatusApproved = "APPROVED"
	EarningStatusRejected = "REJECTED"
)

// Withdrawal statuses. REJECTED withdrawals return funds by being
// excluded from the aggregate.
const (
	WithdrawalStatusPending  = "PENDING"
	WithdrawalStatusApproved = "APPROVED"
	WithdrawalStatusPaid     = "PAID"
	WithdrawalStatusRejected = "REJECTED"
)

// StatusRejected is the shared exclusion marker across both ledgers.
const StatusRejected = "REJECTED"

// ReferenceExternalSync marks withdrawal rows migrated from the legacy
// accounting scheme. They deduct like any other withdrawal; the matching
// legacy debit must not also be counted (see service.ReconciliationService).
const ReferenceExternalSync = "EXTERNAL_SYNC"
