// Package catalog bulk-loads garments from YAML files.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/erazemk/garderoba/internal/model"
	"github.com/erazemk/garderoba/internal/store"
)

// Entry is one garment in an import file.
type Entry struct {
	Name         string `yaml:"name"`
	Brand        string `yaml:"brand"`
	ImageURL     string `yaml:"image_url"`
	SecurityCode string `yaml:"security_code"`
}

// File is the import file layout:
//
//	garments:
//	  - name: Silk Scarf
//	    brand: AXSER
//	    image_url: https://...
//	    security_code: "482913"
type File struct {
	Garments []Entry `yaml:"garments"`
}

// Parse reads and validates an import file. Codes must be quoted in YAML so
// leading zeros survive.
func Parse(r io.Reader) ([]Entry, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parsing catalog file: %w", err)
	}

	for i, e := range f.Garments {
		if err := model.ValidateGarment(e.Name, e.Brand, e.ImageURL, e.SecurityCode); err != nil {
			return nil, fmt.Errorf("garment %d (%q): %w", i+1, e.Name, err)
		}
	}
	return f.Garments, nil
}

// Import creates every entry in one transaction and returns the stored
// garments.
func Import(ctx context.Context, db *sql.DB, entries []Entry) ([]model.Garment, error) {
	garments := make([]model.Garment, len(entries))
	for i, e := range entries {
		garments[i] = model.Garment{Name: e.Name, Brand: e.Brand, ImageURL: e.ImageURL, SecurityCode: e.SecurityCode}
	}

	ids, err := store.ImportGarments(ctx, db, garments)
	if err != nil {
		return nil, err
	}

	created := make([]model.Garment, 0, len(ids))
	for _, id := range ids {
		g, err := store.GetGarment(ctx, db, id)
		if err != nil {
			return nil, err
		}
		if g != nil {
			created = append(created, *g)
		}
	}
	return created, nil
}
