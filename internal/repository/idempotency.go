package repository

import (
	"context"
	"fmt"
)

// IdempotencyRow mirrors the idempotency_keys table.
type IdempotencyRow struct {
	IdempotencyKey string
	RequestHash    string
	Method         string
	Path           string
	ResponseStatus int32
	ResponseBody   []byte
	ContentType    string
	InProgress     bool
}

// GetIdempotencyKey loads a stored idempotency record.
func (q *Queries) GetIdempotencyKey(ctx context.Context, key string) (IdempotencyRow, error) {
	var row IdempotencyRow
	err := q.db.QueryRow(ctx, `
		SELECT idempotency_key, request_hash, method, path,
			COALESCE(response_status, 0), COALESCE(response_body, ''::bytea),
			COALESCE(content_type, ''), in_progress
		FROM idempotency_keys
		WHERE idempotency_key = $1
	`, key).Scan(&row.IdempotencyKey, &row.RequestHash, &row.Method, &row.Path,
		&row.ResponseStatus, &row.ResponseBody, &row.ContentType, &row.InProgress)
	if err != nil {
		return row, err
	}
	return row, nil
}

// ReserveIdempotencyKey claims a key for the in-flight request. Returns
// pgx.ErrNoRows via the RETURNING clause when another request already
// holds the key.
func (q *Queries) ReserveIdempotencyKey(ctx context.Context, key, requestHash, method, path string) (string, error) {
	var reserved string
	err := q.db.QueryRow(ctx, `
		INSERT INTO idempotency_keys (idempotency_key, request_hash, method, path, in_progress, created_at)
		VALUES ($1, $2, $3, $4, TRUE, NOW())
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING idempotency_key
	`, key, requestHash, method, path).Scan(&reserved)
	if err != nil {
		return "", err
	}
	return reserved, nil
}

// FinalizeIdempotencyKey stores the response and releases the key.
func (q *Queries) FinalizeIdempotencyKey(ctx context.Context, key, requestHash string, status int32, body []byte, contentType string) (IdempotencyRow, error) {
	var row IdempotencyRow
	err := q.db.QueryRow(ctx, `
		UPDATE idempotency_keys
		SET response_status = $1, response_body = $2, content_type = $3,
			in_progress = FALSE, updated_at = NOW()
		WHERE idempotency_key = $4 AND request_hash = $5
		RETURNING idempotency_key, request_hash, method, path,
			response_status, response_body, content_type, in_progress
	`, status, body, contentType, key, requestHash).Scan(
		&row.IdempotencyKey, &row.RequestHash, &row.Method, &row.Path,
		&row.ResponseStatus, &row.ResponseBody, &row.ContentType, &row.InProgress)
	if err != nil {
		return row, fmt.Errorf("finalize idempotency key: %w", err)
	}
	return row, nil
}
