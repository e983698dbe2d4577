package store

import (
	"context"
	"errors"
	"testing"

	"github.com/erazemk/garderoba/internal/db"
	"github.com/erazemk/garderoba/internal/model"
)

func TestCreateAndGetGarment(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	g, err := CreateGarment(ctx, database, " Silk Scarf ", "AXSER", "https://img/scarf.jpg", "482913")
	if err != nil {
		t.Fatalf("CreateGarment: %v", err)
	}
	if g.Name != "Silk Scarf" {
		t.Errorf("expected trimmed name, got %q", g.Name)
	}
	if g.SecurityCode != "482913" {
		t.Errorf("expected code 482913, got %q", g.SecurityCode)
	}

	got, err := GetGarment(ctx, database, g.ID)
	if err != nil {
		t.Fatalf("GetGarment: %v", err)
	}
	if got == nil || got.Brand != "AXSER" {
		t.Errorf("unexpected garment: %+v", got)
	}

	missing, err := GetGarment(ctx, database, 9999)
	if err != nil {
		t.Fatalf("GetGarment: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for missing garment")
	}
}

func TestGetGarmentByNameIgnoresCase(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	CreateGarment(ctx, database, "Wool Coat", "AXSER", "https://img/coat.jpg", "111111")

	g, err := GetGarmentByName(ctx, database, "  wool coat ")
	if err != nil {
		t.Fatalf("GetGarmentByName: %v", err)
	}
	if g == nil || g.SecurityCode != "111111" {
		t.Fatalf("expected matching garment, got %+v", g)
	}

	none, _ := GetGarmentByName(ctx, database, "Wool Cap")
	if none != nil {
		t.Error("expected nil for unknown name")
	}
}

func TestUpdateAndDeleteGarment(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	g, _ := CreateGarment(ctx, database, "Boots", "AXSER", "https://img/boots.jpg", "222222")

	if err := UpdateGarment(ctx, database, g.ID, "Boots", "AXSER", "https://img/boots.jpg", "333333"); err != nil {
		t.Fatalf("UpdateGarment: %v", err)
	}
	got, _ := GetGarment(ctx, database, g.ID)
	if got.SecurityCode != "333333" {
		t.Errorf("expected updated code, got %q", got.SecurityCode)
	}

	if err := DeleteGarment(ctx, database, g.ID); err != nil {
		t.Fatalf("DeleteGarment: %v", err)
	}
	if err := DeleteGarment(ctx, database, g.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}

	garments, _ := ListGarments(ctx, database)
	if len(garments) != 0 {
		t.Errorf("expected empty catalog, got %d", len(garments))
	}
}

func TestGarmentImage(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	g, _ := CreateGarment(ctx, database, "Tote", "AXSER", "https://img/tote.jpg", "444444")

	if err := SetGarmentImage(ctx, database, g.ID, []byte("jpeg"), "image/jpeg"); err != nil {
		t.Fatalf("SetGarmentImage: %v", err)
	}

	data, mime, err := GetGarmentImage(ctx, database, g.ID)
	if err != nil {
		t.Fatalf("GetGarmentImage: %v", err)
	}
	if string(data) != "jpeg" || mime != "image/jpeg" {
		t.Errorf("unexpected image: %q %q", data, mime)
	}

	got, _ := GetGarment(ctx, database, g.ID)
	if got.ImageURL != "/api/garments/1/image" {
		t.Errorf("expected image URL to point at upload, got %q", got.ImageURL)
	}
}

func TestImportGarments(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	ids, err := ImportGarments(ctx, database, []model.Garment{
		{Name: "Silk Scarf", Brand: "AXSER", ImageURL: "https://img/scarf.jpg", SecurityCode: "012345"},
		{Name: " Wool Coat ", Brand: "Atelier", ImageURL: "https://img/coat.jpg", SecurityCode: "482913"},
	})
	if err != nil {
		t.Fatalf("ImportGarments: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 ids, got %d", len(ids))
	}

	g, err := GetGarment(ctx, database, ids[1])
	if err != nil {
		t.Fatalf("GetGarment: %v", err)
	}
	if g == nil || g.Name != "Wool Coat" {
		t.Errorf("unexpected garment: %+v", g)
	}
}
