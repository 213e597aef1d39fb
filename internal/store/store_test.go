package store

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/aldergrove/carecircle/internal/database"
	"github.com/aldergrove/carecircle/internal/model"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// seedCircle creates a user, a senior, and a primary membership linking
// them, returning the ids most tests need.
func seedCircle(t *testing.T, db *sql.DB) (userID, seniorID, membershipID int64) {
	t.Helper()

	users := NewUserStore(db)
	seniors := NewSeniorStore(db)
	memberships := NewMembershipStore(db)

	u, err := users.Create("margaret@example.com", "Margaret", "")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	sr, err := seniors.Create("Dorothy", "555-0100", model.Address{City: "Fairview"})
	if err != nil {
		t.Fatalf("create senior: %v", err)
	}
	m, err := memberships.Create(u.ID, sr.ID, "daughter", model.AccessFull, true)
	if err != nil {
		t.Fatalf("create membership: %v", err)
	}
	return u.ID, sr.ID, m.ID
}

func seedUser(t *testing.T, db *sql.DB, email string) int64 {
	t.Helper()
	u, err := NewUserStore(db).Create(email, "Test User", "")
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u.ID
}
