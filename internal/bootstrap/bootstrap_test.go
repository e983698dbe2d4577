package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/garderoba/internal/model"
	"github.com/erazemk/garderoba/internal/store"
)

func TestInitCreatesConfirmedAdmin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garderoba.sqlite3")

	database, password, err := Init(context.Background(), path, "Owner@Example.com")
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer database.Close()

	if len(password) != 16 {
		t.Errorf("expected 16 character password, got %d", len(password))
	}

	u, err := store.GetUserByEmail(context.Background(), database, "owner@example.com")
	if err != nil || u == nil {
		t.Fatalf("admin not found: %v", err)
	}
	if u.Role != model.RoleAdmin || !u.Confirmed() {
		t.Errorf("expected confirmed admin, got role %s confirmed %v", u.Role, u.Confirmed())
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		t.Error("stored hash does not match the printed password")
	}
}

func TestInitRejectsBadEmail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garderoba.sqlite3")

	if _, _, err := Init(context.Background(), path, "not-an-email"); err == nil {
		t.Fatal("expected error for invalid admin email")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("no database file should be left behind")
	}
}

func TestGeneratePasswordVaries(t *testing.T) {
	a, _ := GeneratePassword(24)
	b, _ := GeneratePassword(24)
	if len(a) != 24 || a == b {
		t.Errorf("unexpected passwords %q and %q", a, b)
	}
}
