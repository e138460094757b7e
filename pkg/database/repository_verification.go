// Copyright 2025 Certen Protocol
//
// Verification Result Repository

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// VerificationResult is one audited verification verdict.
type VerificationResult struct {
	RequestID      uuid.UUID
	ValidatorID    string
	CertVersion    uint8
	ReferenceBlock uint32
	CurrentBlock   uint32
	Verdict        string // "valid" or "invalid"
	FailureRule    string // empty when valid
	VerifiedAt     time.Time
}

// VerificationResultRepository persists verification verdicts.
type VerificationResultRepository struct {
	db *sql.DB
}

// Save inserts a verification result.
func (r *VerificationResultRepository) Save(ctx context.Context, result *VerificationResult) error {
	const query = `
INSERT INTO verification_results
	(request_id, validator_id, cert_version, reference_block, current_block, verdict, failure_rule, verified_at)
VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8)`

	verifiedAt := result.VerifiedAt
	if verifiedAt.IsZero() {
		verifiedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, query,
		result.RequestID,
		result.ValidatorID,
		result.CertVersion,
		int64(result.ReferenceBlock),
		int64(result.CurrentBlock),
		result.Verdict,
		result.FailureRule,
		verifiedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save verification result: %w", err)
	}
	return nil
}

// GetByRequestID fetches a verification result; nil when absent.
func (r *VerificationResultRepository) GetByRequestID(ctx context.Context, requestID uuid.UUID) (*VerificationResult, error) {
	const query = `
SELECT request_id, validator_id, cert_version, reference_block, current_block,
	verdict, COALESCE(failure_rule, ''), verified_at
FROM verification_results
WHERE request_id = $1`

	var result VerificationResult
	var referenceBlock, currentBlock int64
	err := r.db.QueryRowContext(ctx, query, requestID).Scan(
		&result.RequestID,
		&result.ValidatorID,
		&result.CertVersion,
		&referenceBlock,
		&currentBlock,
		&result.Verdict,
		&result.FailureRule,
		&result.VerifiedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get verification result: %w", err)
	}
	result.ReferenceBlock = uint32(referenceBlock)
	result.CurrentBlock = uint32(currentBlock)
	return &result, nil
}

// RecentRejections lists the most recent invalid verdicts for auditing.
func (r *VerificationResultRepository) RecentRejections(ctx context.Context, limit int) ([]*VerificationResult, error) {
	const query = `
SELECT request_id, validator_id, cert_version, reference_block, current_block,
	verdict, COALESCE(failure_rule, ''), verified_at
FROM verification_results
WHERE verdict = 'invalid'
ORDER BY verified_at DESC
LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list rejections: %w", err)
	}
	defer rows.Close()

	var results []*VerificationResult
	for rows.Next() {
		var result VerificationResult
		var referenceBlock, currentBlock int64
		if err := rows.Scan(
			&result.RequestID,
			&result.ValidatorID,
			&result.CertVersion,
			&referenceBlock,
			&currentBlock,
			&result.Verdict,
			&result.FailureRule,
			&result.VerifiedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan rejection: %w", err)
		}
		result.ReferenceBlock = uint32(referenceBlock)
		result.CurrentBlock = uint32(currentBlock)
		results = append(results, &result)
	}
	return results, rows.Err()
}
