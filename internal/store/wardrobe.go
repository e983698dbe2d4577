package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/erazemk/garderoba/internal/model"
)

const wardrobeColumns = `id, owner_id, name, brand, image_url, image_mime, kind, security_code, catalog_garment_id, locked, created_at`

// ListWardrobe returns an owner's wardrobe, newest first.
func ListWardrobe(ctx context.Context, db *sql.DB, owner string) ([]model.WardrobeItem, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+wardrobeColumns+` FROM wardrobe WHERE owner_id = ? ORDER BY created_at DESC, id DESC`,
		model.NormalizeEmail(owner),
	)
	if err != nil {
		return nil, fmt.Errorf("listing wardrobe: %w", err)
	}
	defer rows.Close()

	var items []model.WardrobeItem
	for rows.Next() {
		item, err := scanWardrobeItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning wardrobe item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// GetWardrobeItem returns one of an owner's wardrobe items.
func GetWardrobeItem(ctx context.Context, db *sql.DB, owner string, id int64) (*model.WardrobeItem, error) {
	item, err := scanWardrobeItem(db.QueryRowContext(ctx,
		`SELECT `+wardrobeColumns+` FROM wardrobe WHERE id = ? AND owner_id = ?`,
		id, model.NormalizeEmail(owner),
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting wardrobe item: %w", err)
	}
	return item, nil
}

// CreateManualItem archives a garment the owner added by hand. Manual entries
// are locked from the start.
func CreateManualItem(ctx context.Context, db *sql.DB, owner, name, brand, imageURL string) (*model.WardrobeItem, error) {
	owner = model.NormalizeEmail(owner)
	result, err := db.ExecContext(ctx,
		`INSERT INTO wardrobe (owner_id, name, brand, image_url, kind, locked, created_at)
		 VALUES (?, ?, ?, ?, ?, 1, ?)`,
		owner, strings.TrimSpace(name), strings.TrimSpace(brand), strings.TrimSpace(imageURL),
		model.KindManual, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating manual item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting wardrobe item id: %w", err)
	}

	return GetWardrobeItem(ctx, db, owner, id)
}

// CreateManualUpload archives a hand-added garment together with its
// uploaded photo. The row, the image and its URL are written in one
// transaction, so a locked entry never exists without its picture.
func CreateManualUpload(ctx context.Context, db *sql.DB, owner, name, brand string, image []byte, mime string) (*model.WardrobeItem, error) {
	owner = model.NormalizeEmail(owner)
	now := time.Now().UTC()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO wardrobe (owner_id, name, brand, image_url, image, image_mime, kind, locked, created_at)
		 VALUES (?, ?, ?, '', ?, ?, ?, 1, ?)`,
		owner, strings.TrimSpace(name), strings.TrimSpace(brand), image, mime, model.KindManual, now,
	)
	if err != nil {
		return nil, fmt.Errorf("creating manual item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting wardrobe item id: %w", err)
	}

	imageURL := fmt.Sprintf("/api/wardrobe/%d/image", id)
	if _, err := tx.ExecContext(ctx, `UPDATE wardrobe SET image_url = ? WHERE id = ?`, imageURL, id); err != nil {
		return nil, fmt.Errorf("setting wardrobe image url: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing manual item: %w", err)
	}

	return &model.WardrobeItem{
		ID:        id,
		OwnerID:   owner,
		Name:      strings.TrimSpace(name),
		Brand:     strings.TrimSpace(brand),
		ImageURL:  imageURL,
		ImageMime: mime,
		Kind:      model.KindManual,
		Locked:    true,
		CreatedAt: now,
	}, nil
}

// GetWardrobeImage returns a wardrobe item's image data and MIME type.
func GetWardrobeImage(ctx context.Context, db *sql.DB, owner string, id int64) ([]byte, string, error) {
	var image []byte
	var mime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT image, image_mime FROM wardrobe WHERE id = ? AND owner_id = ?`,
		id, model.NormalizeEmail(owner),
	).Scan(&image, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting wardrobe image: %w", err)
	}
	return image, mime.String, nil
}

// LinkVerifiedGarment records a successful code match: it adds a locked,
// verified copy of the garment to the owner's wardrobe and resolves the
// owner's pending requests for it, in one transaction.
func LinkVerifiedGarment(ctx context.Context, db *sql.DB, owner string, g *model.Garment) (*model.WardrobeItem, error) {
	owner = model.NormalizeEmail(owner)
	now := time.Now().UTC()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO wardrobe (owner_id, name, brand, image_url, kind, security_code, catalog_garment_id, locked, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?)`,
		owner, g.Name, g.Brand, g.ImageURL, model.KindVerified, g.SecurityCode, g.ID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting verified item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting wardrobe item id: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE access_requests SET status = ?, resolved_code = ?
		 WHERE user_id = ? AND status = ? AND lower(trim(garment_name)) = lower(trim(?))`,
		model.RequestResolved, g.SecurityCode, owner, model.RequestPending, g.Name,
	)
	if err != nil {
		return nil, fmt.Errorf("resolving pending requests: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing verification: %w", err)
	}

	garmentID := g.ID
	return &model.WardrobeItem{
		ID:               id,
		OwnerID:          owner,
		Name:             g.Name,
		Brand:            g.Brand,
		ImageURL:         g.ImageURL,
		Kind:             model.KindVerified,
		SecurityCode:     g.SecurityCode,
		CatalogGarmentID: &garmentID,
		Locked:           true,
		CreatedAt:        now,
	}, nil
}

// RemoveWardrobeItem deletes an owner's item. Locked items are refused with
// ErrLocked before anything is written.
func RemoveWardrobeItem(ctx context.Context, db *sql.DB, owner string, id int64) error {
	item, err := GetWardrobeItem(ctx, db, owner, id)
	if err != nil {
		return err
	}
	if item == nil {
		return fmt.Errorf("wardrobe item: %w", ErrNotFound)
	}
	if !item.Removable() {
		return ErrLocked
	}

	result, err := db.ExecContext(ctx,
		`DELETE FROM wardrobe WHERE id = ? AND owner_id = ?`, id, item.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("removing wardrobe item: %w", err)
	}
	return requireAffected(result, "wardrobe item")
}

// HasVerifiedSince reports whether owner verified the named garment at or
// after since.
func HasVerifiedSince(ctx context.Context, db *sql.DB, owner, garmentName string, since time.Time) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM wardrobe
		 WHERE owner_id = ? AND kind = ? AND lower(trim(name)) = lower(trim(?)) AND created_at >= ?`,
		model.NormalizeEmail(owner), model.KindVerified, garmentName, since.UTC(),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking verified items: %w", err)
	}
	return count > 0, nil
}

func scanWardrobeItem(row rowScanner) (*model.WardrobeItem, error) {
	item := &model.WardrobeItem{}
	var imageMime, code sql.NullString
	var garmentID sql.NullInt64
	if err := row.Scan(&item.ID, &item.OwnerID, &item.Name, &item.Brand, &item.ImageURL, &imageMime,
		&item.Kind, &code, &garmentID, &item.Locked, &item.CreatedAt); err != nil {
		return nil, err
	}
	item.ImageMime = imageMime.String
	item.SecurityCode = code.String
	if garmentID.Valid {
		item.CatalogGarmentID = &garmentID.Int64
	}
	return item, nil
}
