package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/garderoba/internal/model"
)

// SaveOutfit stores a styling suggestion for a user.
func SaveOutfit(ctx context.Context, db *sql.DB, userID, title, advice, occasion string, combination []string) (*model.Outfit, error) {
	if combination == nil {
		combination = []string{}
	}
	combo, err := json.Marshal(combination)
	if err != nil {
		return nil, fmt.Errorf("encoding combination: %w", err)
	}

	o := &model.Outfit{
		ID:          uuid.NewString(),
		UserID:      model.NormalizeEmail(userID),
		Title:       title,
		Advice:      advice,
		Combination: combination,
		Occasion:    occasion,
		CreatedAt:   time.Now().UTC(),
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO outfits (id, user_id, title, advice, combination, occasion, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.UserID, o.Title, o.Advice, string(combo), o.Occasion, o.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("saving outfit: %w", err)
	}
	return o, nil
}

// ListOutfits returns a user's saved outfits, newest first.
func ListOutfits(ctx context.Context, db *sql.DB, userID string) ([]model.Outfit, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, user_id, title, advice, combination, occasion, created_at
		 FROM outfits WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`,
		model.NormalizeEmail(userID),
	)
	if err != nil {
		return nil, fmt.Errorf("listing outfits: %w", err)
	}
	defer rows.Close()

	var outfits []model.Outfit
	for rows.Next() {
		var o model.Outfit
		var combo string
		if err := rows.Scan(&o.ID, &o.UserID, &o.Title, &o.Advice, &combo, &o.Occasion, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning outfit: %w", err)
		}
		if err := json.Unmarshal([]byte(combo), &o.Combination); err != nil {
			return nil, fmt.Errorf("decoding combination: %w", err)
		}
		outfits = append(outfits, o)
	}
	return outfits, rows.Err()
}

// DeleteOutfit removes one of a user's saved outfits.
func DeleteOutfit(ctx context.Context, db *sql.DB, userID, id string) error {
	result, err := db.ExecContext(ctx,
		`DELETE FROM outfits WHERE id = ? AND user_id = ?`, id, model.NormalizeEmail(userID),
	)
	if err != nil {
		return fmt.Errorf("deleting outfit: %w", err)
	}
	return requireAffected(result, "outfit")
}
