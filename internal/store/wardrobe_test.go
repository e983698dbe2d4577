package store

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/garderoba/internal/db"
	"github.com/erazemk/garderoba/internal/model"
)

func TestLinkVerifiedGarmentResolvesPendingRequests(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	g, _ := CreateGarment(ctx, database, "Silk Scarf", "AXSER", "https://img/scarf.jpg", "482913")
	req, _ := CreateRequest(ctx, database, "ana@example.com", "Ana", "silk scarf", "AXSER")
	other, _ := CreateRequest(ctx, database, "ana@example.com", "Ana", "Wool Coat", "AXSER")

	item, err := LinkVerifiedGarment(ctx, database, "Ana@Example.com", g)
	if err != nil {
		t.Fatalf("LinkVerifiedGarment: %v", err)
	}
	if item.Kind != model.KindVerified || !item.Locked || item.SecurityCode != "482913" {
		t.Errorf("unexpected item: %+v", item)
	}
	if item.CatalogGarmentID == nil || *item.CatalogGarmentID != g.ID {
		t.Errorf("expected catalog link to %d", g.ID)
	}

	items, _ := ListWardrobe(ctx, database, "ana@example.com")
	if len(items) != 1 {
		t.Fatalf("expected 1 wardrobe item, got %d", len(items))
	}

	got, _ := GetRequest(ctx, database, req.ID)
	if got.Status != model.RequestResolved || got.ResolvedCode != "482913" {
		t.Errorf("expected matching request resolved, got %s %q", got.Status, got.ResolvedCode)
	}
	untouched, _ := GetRequest(ctx, database, other.ID)
	if untouched.Status != model.RequestPending {
		t.Errorf("expected other request still pending, got %s", untouched.Status)
	}
}

func TestCreateManualItemIsLocked(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item, err := CreateManualItem(ctx, database, "ana@example.com", "Denim Jacket", "Levi's", "https://img/denim.jpg")
	if err != nil {
		t.Fatalf("CreateManualItem: %v", err)
	}
	if item.Kind != model.KindManual || !item.Locked {
		t.Errorf("expected locked manual item, got %+v", item)
	}

	err = RemoveWardrobeItem(ctx, database, "ana@example.com", item.ID)
	if !errors.Is(err, ErrLocked) {
		t.Errorf("expected ErrLocked, got %v", err)
	}

	items, _ := ListWardrobe(ctx, database, "ana@example.com")
	if len(items) != 1 {
		t.Errorf("expected item to survive removal attempt, got %d items", len(items))
	}
}

func TestCreateManualUploadStoresImage(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item, err := CreateManualUpload(ctx, database, "Ana@example.com", " Wool Coat ", "Atelier", []byte{0xff, 0xd8}, "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "Wool Coat", item.Name)
	assert.True(t, item.Locked)
	assert.Equal(t, model.KindManual, item.Kind)

	stored, err := GetWardrobeItem(ctx, database, "ana@example.com", item.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "/api/wardrobe/"+strconv.FormatInt(item.ID, 10)+"/image", stored.ImageURL)
	assert.Equal(t, item.ImageURL, stored.ImageURL)

	data, mime, err := GetWardrobeImage(ctx, database, "ana@example.com", item.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8}, data)
	assert.Equal(t, "image/jpeg", mime)
}

func TestCreateManualUploadRollsBackOnFailure(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO wardrobe`).WillReturnResult(sqlmock.NewResult(9, 1))
	mock.ExpectExec(`UPDATE wardrobe SET image_url = \? WHERE id = \?`).
		WithArgs("/api/wardrobe/9/image", int64(9)).
		WillReturnError(errors.New("database is locked"))
	mock.ExpectRollback()

	item, err := CreateManualUpload(context.Background(), sqlDB, "ana@example.com", "Wool Coat", "Atelier", []byte{1}, "image/jpeg")
	assert.Error(t, err)
	assert.Nil(t, item)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoveWardrobeItemOwnership(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	// An uncoded verified entry is the only removable kind.
	res, err := database.ExecContext(ctx,
		`INSERT INTO wardrobe (owner_id, name, brand, kind, locked) VALUES ('ana@example.com', 'Old Tee', 'X', 'verified', 0)`)
	if err != nil {
		t.Fatal(err)
	}
	id, _ := res.LastInsertId()

	if err := RemoveWardrobeItem(ctx, database, "bob@example.com", id); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for another owner, got %v", err)
	}
	if err := RemoveWardrobeItem(ctx, database, "ana@example.com", id); err != nil {
		t.Errorf("RemoveWardrobeItem: %v", err)
	}
}

func TestRemoveLockedItemNeverWrites(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	rows := sqlmock.NewRows([]string{
		"id", "owner_id", "name", "brand", "image_url", "image_mime", "kind",
		"security_code", "catalog_garment_id", "locked", "created_at",
	}).AddRow(int64(7), "ana@example.com", "Silk Scarf", "AXSER", "https://img", nil, "verified",
		"482913", int64(1), int64(1), time.Now())

	mock.ExpectQuery(`SELECT .+ FROM wardrobe WHERE id = \? AND owner_id = \?`).
		WithArgs(int64(7), "ana@example.com").
		WillReturnRows(rows)

	err = RemoveWardrobeItem(context.Background(), sqlDB, "ana@example.com", 7)
	assert.ErrorIs(t, err, ErrLocked)
	// No Exec was expected, so any DELETE would have failed the mock.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHasVerifiedSince(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	g, _ := CreateGarment(ctx, database, "Boots", "AXSER", "https://img/boots.jpg", "222222")
	before := time.Now().Add(-time.Minute)
	LinkVerifiedGarment(ctx, database, "ana@example.com", g)

	ok, err := HasVerifiedSince(ctx, database, "ana@example.com", "boots", before)
	if err != nil {
		t.Fatalf("HasVerifiedSince: %v", err)
	}
	if !ok {
		t.Error("expected verification after the cutoff")
	}

	ok, _ = HasVerifiedSince(ctx, database, "ana@example.com", "Boots", time.Now().Add(time.Minute))
	if ok {
		t.Error("expected no verification after a future cutoff")
	}
}
