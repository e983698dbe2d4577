package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/garderoba/internal/model"
)

// ListNotifications returns a user's notifications, newest first.
func ListNotifications(ctx context.Context, db *sql.DB, userID string) ([]model.Notification, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, user_id, title, message, kind, is_read, created_at
		 FROM notifications WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`,
		model.NormalizeEmail(userID),
	)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	defer rows.Close()

	var notifications []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Kind, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// CountUnread returns how many of a user's notifications are unread.
func CountUnread(ctx context.Context, db *sql.DB, userID string) (int, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = 0`,
		model.NormalizeEmail(userID),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting unread notifications: %w", err)
	}
	return count, nil
}

// MarkNotificationRead flags one of the user's notifications as read.
func MarkNotificationRead(ctx context.Context, db *sql.DB, userID, id string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE id = ? AND user_id = ?`,
		id, model.NormalizeEmail(userID),
	)
	if err != nil {
		return fmt.Errorf("marking notification read: %w", err)
	}
	return requireAffected(result, "notification")
}

// ClearNotifications deletes all of a user's notifications.
func ClearNotifications(ctx context.Context, db *sql.DB, userID string) error {
	_, err := db.ExecContext(ctx,
		`DELETE FROM notifications WHERE user_id = ?`, model.NormalizeEmail(userID),
	)
	if err != nil {
		return fmt.Errorf("clearing notifications: %w", err)
	}
	return nil
}

func insertNotification(ctx context.Context, tx *sql.Tx, userID, title, message, kind string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO notifications (id, user_id, title, message, kind, is_read, created_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?)`,
		uuid.NewString(), model.NormalizeEmail(userID), title, message, kind, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting notification: %w", err)
	}
	return nil
}
