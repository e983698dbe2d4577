package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/erazemk/garderoba/internal/model"
)

const garmentColumns = `id, name, brand, image_url, image_mime, security_code, created_at, updated_at`

// CreateGarment adds a garment to the catalog.
func CreateGarment(ctx context.Context, db *sql.DB, name, brand, imageURL, code string) (*model.Garment, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO garments (name, brand, image_url, security_code) VALUES (?, ?, ?, ?)`,
		strings.TrimSpace(name), strings.TrimSpace(brand), strings.TrimSpace(imageURL), strings.TrimSpace(code),
	)
	if err != nil {
		return nil, fmt.Errorf("creating garment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting garment id: %w", err)
	}

	return GetGarment(ctx, db, id)
}

// ImportGarments adds several garments in one transaction. Either all are
// created or none are.
func ImportGarments(ctx context.Context, db *sql.DB, garments []model.Garment) ([]int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	ids := make([]int64, 0, len(garments))
	for _, g := range garments {
		result, err := tx.ExecContext(ctx,
			`INSERT INTO garments (name, brand, image_url, security_code) VALUES (?, ?, ?, ?)`,
			strings.TrimSpace(g.Name), strings.TrimSpace(g.Brand), strings.TrimSpace(g.ImageURL), strings.TrimSpace(g.SecurityCode),
		)
		if err != nil {
			return nil, fmt.Errorf("importing garment %q: %w", g.Name, err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("getting garment id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing import: %w", err)
	}
	return ids, nil
}

// GetGarment returns a catalog garment by ID.
func GetGarment(ctx context.Context, db *sql.DB, id int64) (*model.Garment, error) {
	g, err := scanGarment(db.QueryRowContext(ctx,
		`SELECT `+garmentColumns+` FROM garments WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting garment: %w", err)
	}
	return g, nil
}

// GetGarmentByName returns the newest catalog garment whose name matches,
// ignoring case and surrounding whitespace.
func GetGarmentByName(ctx context.Context, db *sql.DB, name string) (*model.Garment, error) {
	g, err := scanGarment(db.QueryRowContext(ctx,
		`SELECT `+garmentColumns+` FROM garments
		 WHERE lower(trim(name)) = lower(trim(?))
		 ORDER BY created_at DESC, id DESC LIMIT 1`, name,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting garment by name: %w", err)
	}
	return g, nil
}

// ListGarments returns the full catalog, newest first.
func ListGarments(ctx context.Context, db *sql.DB) ([]model.Garment, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+garmentColumns+` FROM garments ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing garments: %w", err)
	}
	defer rows.Close()

	var garments []model.Garment
	for rows.Next() {
		g, err := scanGarment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning garment: %w", err)
		}
		garments = append(garments, *g)
	}
	return garments, rows.Err()
}

// UpdateGarment replaces a garment's fields. Wardrobe items that copied the
// old code are left as they are.
func UpdateGarment(ctx context.Context, db *sql.DB, id int64, name, brand, imageURL, code string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE garments SET name = ?, brand = ?, image_url = ?, security_code = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		strings.TrimSpace(name), strings.TrimSpace(brand), strings.TrimSpace(imageURL), strings.TrimSpace(code), id,
	)
	if err != nil {
		return fmt.Errorf("updating garment: %w", err)
	}
	return requireAffected(result, "garment")
}

// DeleteGarment removes a garment from the catalog.
func DeleteGarment(ctx context.Context, db *sql.DB, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM garments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting garment: %w", err)
	}
	return requireAffected(result, "garment")
}

// SetGarmentImage stores an uploaded image and points the image URL at it.
func SetGarmentImage(ctx context.Context, db *sql.DB, id int64, image []byte, mime string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE garments SET image = ?, image_mime = ?, image_url = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		image, mime, fmt.Sprintf("/api/garments/%d/image", id), id,
	)
	if err != nil {
		return fmt.Errorf("setting garment image: %w", err)
	}
	return requireAffected(result, "garment")
}

// GetGarmentImage returns a garment's image data and MIME type.
func GetGarmentImage(ctx context.Context, db *sql.DB, id int64) ([]byte, string, error) {
	var image []byte
	var mime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT image, image_mime FROM garments WHERE id = ?`, id,
	).Scan(&image, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting garment image: %w", err)
	}
	return image, mime.String, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGarment(row rowScanner) (*model.Garment, error) {
	g := &model.Garment{}
	var imageMime sql.NullString
	if err := row.Scan(&g.ID, &g.Name, &g.Brand, &g.ImageURL, &imageMime, &g.SecurityCode, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, err
	}
	g.ImageMime = imageMime.String
	return g, nil
}

// requireAffected turns a zero-row update into ErrNotFound.
func requireAffected(result sql.Result, what string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking %s update: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
