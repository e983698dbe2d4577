package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/garderoba/internal/model"
)

// PutVerificationCode stores a freshly issued code, replacing any earlier
// code for the same email and purpose.
func PutVerificationCode(ctx context.Context, db *sql.DB, email, purpose, codeHash string, issuedAt, expiresAt time.Time) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO verification_codes (email, purpose, code_hash, expires_at, created_at, used_at)
		 VALUES (?, ?, ?, ?, ?, NULL)
		 ON CONFLICT (email, purpose) DO UPDATE SET
		     code_hash = excluded.code_hash,
		     expires_at = excluded.expires_at,
		     created_at = excluded.created_at,
		     used_at = NULL`,
		model.NormalizeEmail(email), purpose, codeHash, expiresAt.UTC(), issuedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("storing verification code: %w", err)
	}
	return nil
}

// GetVerificationCode returns the current code for an email and purpose.
func GetVerificationCode(ctx context.Context, db *sql.DB, email, purpose string) (*model.VerificationCode, error) {
	c := &model.VerificationCode{}
	var usedAt sql.NullTime
	err := db.QueryRowContext(ctx,
		`SELECT email, purpose, code_hash, expires_at, created_at, used_at
		 FROM verification_codes WHERE email = ? AND purpose = ?`,
		model.NormalizeEmail(email), purpose,
	).Scan(&c.Email, &c.Purpose, &c.CodeHash, &c.ExpiresAt, &c.CreatedAt, &usedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting verification code: %w", err)
	}
	if usedAt.Valid {
		c.UsedAt = &usedAt.Time
	}
	return c, nil
}

// MarkCodeUsed consumes a code so it cannot be replayed.
func MarkCodeUsed(ctx context.Context, db *sql.DB, email, purpose string, at time.Time) error {
	result, err := db.ExecContext(ctx,
		`UPDATE verification_codes SET used_at = ? WHERE email = ? AND purpose = ? AND used_at IS NULL`,
		at.UTC(), model.NormalizeEmail(email), purpose,
	)
	if err != nil {
		return fmt.Errorf("marking code used: %w", err)
	}
	return requireAffected(result, "verification code")
}
