package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/erazemk/garderoba/internal/model"
)

const userColumns = `id, email, username, password_hash, role, bio, avatar_mime, member_since, confirmed_at, created_at, deleted_at`

// CreateUser creates a new, unconfirmed user.
func CreateUser(ctx context.Context, db *sql.DB, email, username, passwordHash, role string) (*model.User, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO users (email, username, password_hash, role) VALUES (?, ?, ?, ?)`,
		model.NormalizeEmail(email), strings.TrimSpace(username), passwordHash, role,
	)
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting user id: %w", err)
	}

	return GetUser(ctx, db, id)
}

// GetUser returns a user by ID.
func GetUser(ctx context.Context, db *sql.DB, id int64) (*model.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

// GetUserByEmail returns the newest user with the given email, including
// soft-deleted ones for auth checks.
func GetUserByEmail(ctx context.Context, db *sql.DB, email string) (*model.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?
		 ORDER BY deleted_at IS NULL DESC, id DESC LIMIT 1`, model.NormalizeEmail(email),
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by email: %w", err)
	}
	return u, nil
}

// ListUsers returns all non-deleted users.
func ListUsers(ctx context.Context, db *sql.DB) ([]model.User, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE deleted_at IS NULL ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// UpdateUserRole changes a user's role.
func UpdateUserRole(ctx context.Context, db *sql.DB, id int64, role string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE users SET role = ? WHERE id = ? AND deleted_at IS NULL`,
		role, id,
	)
	if err != nil {
		return fmt.Errorf("updating user role: %w", err)
	}
	return nil
}

// UpdateUserPassword updates a user's password hash.
func UpdateUserPassword(ctx context.Context, db *sql.DB, id int64, passwordHash string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE id = ? AND deleted_at IS NULL`,
		passwordHash, id,
	)
	if err != nil {
		return fmt.Errorf("updating user password: %w", err)
	}
	return nil
}

// ConfirmUser marks sign-up as complete and starts the membership clock.
// Confirming twice keeps the first confirmation.
func ConfirmUser(ctx context.Context, db *sql.DB, id int64, at time.Time) error {
	_, err := db.ExecContext(ctx,
		`UPDATE users SET confirmed_at = ?, member_since = ?
		 WHERE id = ? AND confirmed_at IS NULL AND deleted_at IS NULL`,
		at.UTC(), model.MemberSinceLabel(at), id,
	)
	if err != nil {
		return fmt.Errorf("confirming user: %w", err)
	}
	return nil
}

// UpdateProfile replaces a user's username and bio.
func UpdateProfile(ctx context.Context, db *sql.DB, id int64, username, bio string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE users SET username = ?, bio = ? WHERE id = ? AND deleted_at IS NULL`,
		strings.TrimSpace(username), strings.TrimSpace(bio), id,
	)
	if err != nil {
		return fmt.Errorf("updating profile: %w", err)
	}
	return requireAffected(result, "user")
}

// SetAvatar stores a user's profile photo.
func SetAvatar(ctx context.Context, db *sql.DB, id int64, image []byte, mime string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE users SET avatar = ?, avatar_mime = ? WHERE id = ? AND deleted_at IS NULL`,
		image, mime, id,
	)
	if err != nil {
		return fmt.Errorf("setting avatar: %w", err)
	}
	return requireAffected(result, "user")
}

// GetAvatar returns a user's profile photo and its MIME type.
func GetAvatar(ctx context.Context, db *sql.DB, id int64) ([]byte, string, error) {
	var image []byte
	var mime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT avatar, avatar_mime FROM users WHERE id = ? AND deleted_at IS NULL`, id,
	).Scan(&image, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting avatar: %w", err)
	}
	return image, mime.String, nil
}

// DeleteUser soft-deletes a user.
func DeleteUser(ctx context.Context, db *sql.DB, id int64) error {
	_, err := db.ExecContext(ctx,
		`UPDATE users SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	return nil
}

func scanUser(row rowScanner) (*model.User, error) {
	u := &model.User{}
	var avatarMime sql.NullString
	var confirmedAt, deletedAt sql.NullTime
	if err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.Role, &u.Bio, &avatarMime,
		&u.MemberSince, &confirmedAt, &u.CreatedAt, &deletedAt); err != nil {
		return nil, err
	}
	u.AvatarMime = avatarMime.String
	if confirmedAt.Valid {
		u.ConfirmedAt = &confirmedAt.Time
	}
	if deletedAt.Valid {
		u.DeletedAt = &deletedAt.Time
	}
	u.AvatarURL = model.DefaultAvatarURL
	if u.AvatarMime != "" {
		u.AvatarURL = fmt.Sprintf("/api/users/%d/avatar", u.ID)
	}
	return u, nil
}
