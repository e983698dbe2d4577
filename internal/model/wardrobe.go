package model

import "time"

// WardrobeItem is a garment in a user's personal collection.
type WardrobeItem struct {
	ID               int64     `json:"id"`
	OwnerID          string    `json:"owner_id"`
	Name             string    `json:"name"`
	Brand            string    `json:"brand"`
	ImageURL         string    `json:"image_url,omitempty"`
	ImageMime        string    `json:"image_mime,omitempty"`
	Kind             string    `json:"garment_kind"`
	SecurityCode     string    `json:"security_code,omitempty"`
	CatalogGarmentID *int64    `json:"catalog_garment_id,omitempty"`
	Locked           bool      `json:"locked"`
	CreatedAt        time.Time `json:"created_at"`
}

// Garment kinds.
const (
	KindVerified = "verified"
	KindManual   = "manual"
)

// Removable reports whether the owner may delete the item. Coded and manual
// entries form a permanent ledger and can never be removed.
func (w *WardrobeItem) Removable() bool {
	return w.SecurityCode == "" && w.Kind != KindManual
}

// Description is the line fed to the advice generator for this item.
func (w *WardrobeItem) Description() string {
	return w.Name + " (Brand: " + w.Brand + ", Kind: " + w.Kind + ")"
}
