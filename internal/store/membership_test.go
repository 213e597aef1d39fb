package store

import (
	"testing"

	"github.com/aldergrove/carecircle/internal/model"
)

func TestMembershipDuplicateRejected(t *testing.T) {
	db := testDB(t)
	userID, seniorID, _ := seedCircle(t, db)
	memberships := NewMembershipStore(db)

	_, err := memberships.Create(userID, seniorID, "daughter", model.AccessStandard, false)
	if !IsUniqueViolation(err) {
		t.Fatalf("expected unique violation for duplicate membership, got %v", err)
	}
}

func TestMembershipSecondPrimaryRejected(t *testing.T) {
	db := testDB(t)
	_, seniorID, _ := seedCircle(t, db)
	second := seedUser(t, db, "carl@example.com")
	memberships := NewMembershipStore(db)

	_, err := memberships.Create(second, seniorID, "son", model.AccessStandard, true)
	if !IsUniqueViolation(err) {
		t.Fatalf("expected unique violation for second primary, got %v", err)
	}

	// A non-primary membership for the same user still works.
	m, err := memberships.Create(second, seniorID, "son", model.AccessStandard, false)
	if err != nil {
		t.Fatalf("create non-primary: %v", err)
	}
	if m.IsPrimaryContact {
		t.Error("membership unexpectedly primary")
	}
}

func TestDeleteWithTransfer(t *testing.T) {
	db := testDB(t)
	_, seniorID, primaryID := seedCircle(t, db)
	second := seedUser(t, db, "carl@example.com")
	memberships := NewMembershipStore(db)

	replacement, err := memberships.Create(second, seniorID, "son", model.AccessStandard, false)
	if err != nil {
		t.Fatalf("create replacement: %v", err)
	}

	if err := memberships.DeleteWithTransfer(primaryID, replacement.ID); err != nil {
		t.Fatalf("delete with transfer: %v", err)
	}

	gone, err := memberships.GetByID(primaryID)
	if err != nil {
		t.Fatalf("get removed: %v", err)
	}
	if gone != nil {
		t.Error("removed membership still present")
	}

	primary, err := memberships.GetPrimary(seniorID)
	if err != nil {
		t.Fatalf("get primary: %v", err)
	}
	if primary == nil || primary.ID != replacement.ID {
		t.Errorf("primary = %+v, want membership %d", primary, replacement.ID)
	}
}

func TestDeleteWithTransferMissingReplacement(t *testing.T) {
	db := testDB(t)
	_, seniorID, primaryID := seedCircle(t, db)
	memberships := NewMembershipStore(db)

	if err := memberships.DeleteWithTransfer(primaryID, 9999); err == nil {
		t.Fatal("expected error for missing replacement")
	}

	// The whole transaction must roll back: the primary is still there.
	primary, err := memberships.GetPrimary(seniorID)
	if err != nil {
		t.Fatalf("get primary: %v", err)
	}
	if primary == nil || primary.ID != primaryID {
		t.Errorf("primary = %+v, want membership %d intact", primary, primaryID)
	}
}

func TestTransferPrimary(t *testing.T) {
	db := testDB(t)
	_, seniorID, primaryID := seedCircle(t, db)
	second := seedUser(t, db, "carl@example.com")
	memberships := NewMembershipStore(db)

	other, err := memberships.Create(second, seniorID, "son", model.AccessStandard, false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := memberships.TransferPrimary(primaryID, other.ID); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	primary, err := memberships.GetPrimary(seniorID)
	if err != nil {
		t.Fatalf("get primary: %v", err)
	}
	if primary == nil || primary.ID != other.ID {
		t.Errorf("primary = %+v, want membership %d", primary, other.ID)
	}

	// Transferring from a membership that is no longer primary fails.
	if err := memberships.TransferPrimary(primaryID, other.ID); err == nil {
		t.Error("expected error transferring from non-primary")
	}
}

func TestChangeAccessLevelAudited(t *testing.T) {
	db := testDB(t)
	userID, _, membershipID := seedCircle(t, db)
	memberships := NewMembershipStore(db)

	m, err := memberships.ChangeAccessLevel(membershipID, userID, model.AccessMinimal)
	if err != nil {
		t.Fatalf("change level: %v", err)
	}
	if m.AccessLevel != model.AccessMinimal {
		t.Errorf("access level = %s, want minimal", m.AccessLevel)
	}

	m, err = memberships.ChangeAccessLevel(membershipID, userID, model.AccessFull)
	if err != nil {
		t.Fatalf("change level: %v", err)
	}
	if m.AccessLevel != model.AccessFull {
		t.Errorf("access level = %s, want full", m.AccessLevel)
	}

	changes, err := memberships.AccessLevelHistory(membershipID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(changes) != 2 {
		t.Fatalf("history length = %d, want 2", len(changes))
	}
	if changes[0].OldLevel != model.AccessFull || changes[0].NewLevel != model.AccessMinimal {
		t.Errorf("first change = %+v", changes[0])
	}
	if changes[1].OldLevel != model.AccessMinimal || changes[1].NewLevel != model.AccessFull {
		t.Errorf("second change = %+v", changes[1])
	}
	for _, c := range changes {
		if c.ActorID != userID {
			t.Errorf("actor = %d, want %d", c.ActorID, userID)
		}
	}
}

func TestChangeAccessLevelMissingMembership(t *testing.T) {
	db := testDB(t)
	memberships := NewMembershipStore(db)

	m, err := memberships.ChangeAccessLevel(9999, 1, model.AccessFull)
	if err != nil {
		t.Fatalf("change level: %v", err)
	}
	if m != nil {
		t.Errorf("expected nil for missing membership, got %+v", m)
	}
}
