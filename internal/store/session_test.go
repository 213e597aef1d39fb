package store

import (
	"testing"
	"time"
)

func TestSessionLifecycle(t *testing.T) {
	db := testDB(t)
	userID, _, _ := seedCircle(t, db)
	sessions := NewSessionStore(db)

	sess, err := sessions.Create(userID, time.Hour)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(sess.Token) != 64 {
		t.Errorf("token length = %d, want 64 hex chars", len(sess.Token))
	}

	got, err := sessions.GetByToken(sess.Token)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.UserID != userID {
		t.Fatalf("got %+v, want session for user %d", got, userID)
	}

	if err := sessions.Delete(sess.Token); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err = sessions.GetByToken(sess.Token)
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if got != nil {
		t.Error("deleted session still resolvable")
	}
}

func TestExpiredSessionNotReturned(t *testing.T) {
	db := testDB(t)
	userID, _, _ := seedCircle(t, db)
	sessions := NewSessionStore(db)

	sess, err := sessions.Create(userID, -time.Minute)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := sessions.GetByToken(sess.Token)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Error("expired session resolved")
	}

	n, err := sessions.DeleteExpired()
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
}
