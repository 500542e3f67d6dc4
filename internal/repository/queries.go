package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/autogcm/rewards-ledger/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx so every query can
// run standalone or inside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries bundles the hand-written SQL for the persistence gateway.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns a query set bound to the given transaction.
func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

// FindOrCreateUser upserts a user keyed by phone and returns the stored
// row. Idempotent: racing calls for one phone resolve to the same user.
func (q *Queries) FindOrCreateUser(ctx context.Context, phone, nickname, avatarURL string) (*models.User, error) {
	if nickname == "" {
		nickname = "New User"
	}
	query := `
		INSERT INTO users (id, phone, nickname, avatar_url, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (phone) DO UPDATE SET phone = EXCLUDED.phone
		RETURNING id, phone, nickname, avatar_url,
			lifetime_earned::text, total_weight::text, last_synced_at, created_at
	`
	var (
		user             models.User
		id               pgtype.UUID
		lifetime, weight string
		syncedAt         pgtype.Timestamptz
	)
	err := q.db.QueryRow(ctx, query, ToPgUUID(uuid.New()), phone, nickname, avatarURL).Scan(
		&id, &user.Phone, &user.Nickname, &user.AvatarURL, &lifetime, &weight, &syncedAt, &user.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find or create user: %w", err)
	}
	user.ID = FromPgUUID(id)
	if user.LifetimeEarned, err = scanDecimal(lifetime); err != nil {
		return nil, err
	}
	if user.TotalWeight, err = scanDecimal(weight); err != nil {
		return nil, err
	}
	if syncedAt.Valid {
		t := syncedAt.Time
		user.LastSyncedAt = &t
	}
	return &user, nil
}

// LockUser takes a row lock on the user for the duration of the
// enclosing transaction. Serializes concurrent withdrawal submissions.
func (q *Queries) LockUser(ctx context.Context, userID uuid.UUID) error {
	tag, err := q.db.Exec(ctx, `SELECT 1 FROM users WHERE id = $1 FOR UPDATE`, ToPgUUID(userID))
	if err != nil {
		return fmt.Errorf("failed to lock user: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return pgx.ErrNoRows
	}
	return nil
}

// QueryEarnings returns every earning record for the user, including
// PENDING ones. Status filtering is the aggregator's job.
func (q *Queries) QueryEarnings(ctx context.Context, userID uuid.UUID) ([]models.EarningRecord, error) {
	query := `
		SELECT id, user_id, merchant_id, value::text, status, created_at
		FROM earnings
		WHERE user_id = $1
		ORDER BY created_at ASC
	`
	rows, err := q.db.Query(ctx, query, ToPgUUID(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to query earnings: %w", err)
	}
	defer rows.Close()

	var earnings []models.EarningRecord
	for rows.Next() {
		var (
			e        models.EarningRecord
			id, uID  pgtype.UUID
			mID      pgtype.UUID
			rawValue string
		)
		if err := rows.Scan(&id, &uID, &mID, &rawValue, &e.Status, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan earning: %w", err)
		}
		e.ID, e.UserID, e.MerchantID = FromPgUUID(id), FromPgUUID(uID), FromPgUUID(mID)
		if e.Value, err = scanDecimal(rawValue); err != nil {
			return nil, err
		}
		earnings = append(earnings, e)
	}
	return earnings, rows.Err()
}

// QueryWithdrawals returns the user's withdrawal records, newest first.
func (q *Queries) QueryWithdrawals(ctx context.Context, userID uuid.UUID) ([]models.WithdrawalRecord, error) {
	query := `
		SELECT id, user_id, merchant_id, amount::text, status,
			COALESCE(reference, ''), bank_name, account_number, account_holder_name, created_at
		FROM withdrawals
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := q.db.Query(ctx, query, ToPgUUID(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to query withdrawals: %w", err)
	}
	defer rows.Close()

	var withdrawals []models.WithdrawalRecord
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		withdrawals = append(withdrawals, w)
	}
	return withdrawals, rows.Err()
}

func scanWithdrawal(row pgx.Row) (models.WithdrawalRecord, error) {
	var (
		w            models.WithdrawalRecord
		id, uID, mID pgtype.UUID
		rawAmount    string
	)
	err := row.Scan(&id, &uID, &mID, &rawAmount, &w.Status, &w.Reference,
		&w.Bank.BankName, &w.Bank.AccountNumber, &w.Bank.HolderName, &w.CreatedAt)
	if err != nil {
		return w, fmt.Errorf("failed to scan withdrawal: %w", err)
	}
	w.ID, w.UserID, w.MerchantID = FromPgUUID(id), FromPgUUID(uID), FromPgUUID(mID)
	if w.Amount, err = scanDecimal(rawAmount); err != nil {
		return w, err
	}
	return w, nil
}

// GetWithdrawal loads a single withdrawal row.
func (q *Queries) GetWithdrawal(ctx context.Context, id uuid.UUID) (models.WithdrawalRecord, error) {
	query := `
		SELECT id, user_id, merchant_id, amount::text, status,
			COALESCE(reference, ''), bank_name, account_number, account_holder_name, created_at
		FROM withdrawals
		WHERE id = $1
	`
	return scanWithdrawal(q.db.QueryRow(ctx, query, ToPgUUID(id)))
}

// GetWithdrawalForUpdate loads and locks a withdrawal row for a status
// transition.
func (q *Queries) GetWithdrawalForUpdate(ctx context.Context, id uuid.UUID) (models.WithdrawalRecord, error) {
	query := `
		SELECT id, user_id, merchant_id, amount::text, status,
			COALESCE(reference, ''), bank_name, account_number, account_holder_name, created_at
		FROM withdrawals
		WHERE id = $1
		FOR UPDATE
	`
	return scanWithdrawal(q.db.QueryRow(ctx, query, ToPgUUID(id)))
}

// UpdateWithdrawalStatus sets the status of one withdrawal row.
func (q *Queries) UpdateWithdrawalStatus(ctx context.Context, id uuid.UUID, status string) (int64, error) {
	tag, err := q.db.Exec(ctx,
		`UPDATE withdrawals SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, ToPgUUID(id))
	if err != nil {
		return 0, fmt.Errorf("failed to update withdrawal status: %w", err)
	}
	return tag.RowsAffected(), nil
}

// InsertWithdrawals writes the allocation batch. Callers must run this
// inside Store.RunInTx so the batch commits or rolls back as a unit.
func (q *Queries) InsertWithdrawals(ctx context.Context, records []models.WithdrawalRecord) error {
	query := `
		INSERT INTO withdrawals
			(id, user_id, merchant_id, amount, status, reference,
			 bank_name, account_number, account_holder_name, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, NOW())
	`
	for _, rec := range records {
		_, err := q.db.Exec(ctx, query,
			ToPgUUID(rec.ID), ToPgUUID(rec.UserID), ToPgUUID(rec.MerchantID),
			rec.Amount.StringFixed(2), rec.Status, rec.Reference,
			rec.Bank.BankName, rec.Bank.AccountNumber, rec.Bank.HolderName)
		if err != nil {
			return fmt.Errorf("failed to insert withdrawal for merchant %s: %w", rec.MerchantID, err)
		}
	}
	return nil
}

// QueryLegacyDebits returns the user's frozen legacy ledger entries.
// Amounts are stored negative.
func (q *Queries) QueryLegacyDebits(ctx context.Context, userID uuid.UUID) ([]models.LegacyDebitRecord, error) {
	query := `
		SELECT id, user_id, merchant_id, amount::text, COALESCE(reference, ''), created_at
		FROM legacy_debits
		WHERE user_id = $1
		ORDER BY created_at ASC
	`
	rows, err := q.db.Query(ctx, query, ToPgUUID(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to query legacy debits: %w", err)
	}
	defer rows.Close()

	var debits []models.LegacyDebitRecord
	for rows.Next() {
		var (
			d            models.LegacyDebitRecord
			id, uID, mID pgtype.UUID
			rawAmount    string
		)
		if err := rows.Scan(&id, &uID, &mID, &rawAmount, &d.Reference, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan legacy debit: %w", err)
		}
		d.ID, d.UserID, d.MerchantID = FromPgUUID(id), FromPgUUID(uID), FromPgUUID(mID)
		if d.Amount, err = scanDecimal(rawAmount); err != nil {
			return nil, err
		}
		debits = append(debits, d)
	}
	return debits, rows.Err()
}

// ResolvePlatformMerchant returns the id of the platform-default
// merchant, or nil when none is configured.
func (q *Queries) ResolvePlatformMerchant(ctx context.Context) (*uuid.UUID, error) {
	var id pgtype.UUID
	err := q.db.QueryRow(ctx,
		`SELECT id FROM merchants WHERE platform_default LIMIT 1`).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to resolve platform merchant: %w", err)
	}
	resolved := FromPgUUID(id)
	return &resolved, nil
}

// UpdateUserLifetimeEarned refreshes the cached lifetime figure after an
// aggregation. Best effort; correctness never depends on it.
func (q *Queries) UpdateUserLifetimeEarned(ctx context.Context, userID uuid.UUID, value decimal.Decimal, syncedAt time.Time) error {
	_, err := q.db.Exec(ctx,
		`UPDATE users SET lifetime_earned = $1, last_synced_at = $2 WHERE id = $3`,
		value.StringFixed(2), syncedAt, ToPgUUID(userID))
	if err != nil {
		return fmt.Errorf("failed to update lifetime earned: %w", err)
	}
	return nil
}

// DoubleCountSuspect pairs a legacy debit with a withdrawal that looks
// like the same migrated movement counted in both ledgers.
type DoubleCountSuspect struct {
	LegacyDebitID uuid.UUID
	WithdrawalID  uuid.UUID
	UserID        uuid.UUID
	MerchantID    uuid.UUID
	Amount        decimal.Decimal
}

// FindDoubleCountedDebits scans for legacy debits whose user, merchant
// and absolute amount match an EXTERNAL_SYNC withdrawal. The two record
// sets are meant to be disjoint; any hit is an accounting defect.
func (q *Queries) FindDoubleCountedDebits(ctx context.Context) ([]DoubleCountSuspect, error) {
	query := `
		SELECT d.id, w.id, d.user_id, d.merchant_id, ABS(d.amount)::text
		FROM legacy_debits d
		JOIN withdrawals w
			ON w.user_id = d.user_id
			AND w.merchant_id = d.merchant_id
			AND w.amount = ABS(d.amount)
			AND w.reference = $1
		ORDER BY d.created_at ASC
	`
	rows, err := q.db.Query(ctx, query, "EXTERNAL_SYNC")
	if err != nil {
		return nil, fmt.Errorf("failed to scan for double-counted debits: %w", err)
	}
	defer rows.Close()

	var suspects []DoubleCountSuspect
	for rows.Next() {
		var (
			s                  DoubleCountSuspect
			dID, wID, uID, mID pgtype.UUID
			rawAmount          string
		)
		if err := rows.Scan(&dID, &wID, &uID, &mID, &rawAmount); err != nil {
			return nil, fmt.Errorf("failed to scan suspect: %w", err)
		}
		s.LegacyDebitID, s.WithdrawalID = FromPgUUID(dID), FromPgUUID(wID)
		s.UserID, s.MerchantID = FromPgUUID(uID), FromPgUUID(mID)
		if s.Amount, err = scanDecimal(rawAmount); err != nil {
			return nil, err
		}
		suspects = append(suspects, s)
	}
	return suspects, rows.Err()
}

// InsertAuditLogParams holds one immutable audit entry.
type InsertAuditLogParams struct {
	EntityType string
	EntityID   uuid.UUID
	ActorID    *uuid.UUID
	Action     string
	PrevState  *string
	NextState  *string
	Metadata   []byte
}

// InsertAuditLog appends to the audit trail.
func (q *Queries) InsertAuditLog(ctx context.Context, params InsertAuditLogParams) error {
	var actor pgtype.UUID
	if params.ActorID != nil {
		actor = ToPgUUID(*params.ActorID)
	}
	_, err := q.db.Exec(ctx, `
		INSERT INTO audit_log (entity_type, entity_id, actor_id, action, prev_state, next_state, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`, params.EntityType, ToPgUUID(params.EntityID), actor, params.Action,
		params.PrevState, params.NextState, params.Metadata)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}
