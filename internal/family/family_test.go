package family

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aldergrove/carecircle/internal/code"
	"github.com/aldergrove/carecircle/internal/database"
	"github.com/aldergrove/carecircle/internal/model"
	"github.com/aldergrove/carecircle/internal/store"
)

type fixture struct {
	db          *sql.DB
	users       *store.UserStore
	seniors     *store.SeniorStore
	memberships *store.MembershipStore
	codes       *store.InviteCodeStore
	registry    *Registry
	svc         *Service

	founderID    int64
	seniorID     int64
	membershipID int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		db:          db,
		users:       store.NewUserStore(db),
		seniors:     store.NewSeniorStore(db),
		memberships: store.NewMembershipStore(db),
		codes:       store.NewInviteCodeStore(db),
	}
	f.registry = NewRegistry(f.memberships)
	f.svc = NewService(f.codes, f.registry, code.NewGenerator(f.codes), slog.New(slog.NewTextHandler(io.Discard, nil)))

	u, err := f.users.Create("margaret@example.com", "Margaret", "")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	sr, err := f.seniors.Create("Dorothy", "", model.Address{})
	if err != nil {
		t.Fatalf("create senior: %v", err)
	}
	m, err := f.registry.Create(u.ID, sr.ID, "daughter", model.AccessFull, true)
	if err != nil {
		t.Fatalf("create founding membership: %v", err)
	}
	f.founderID, f.seniorID, f.membershipID = u.ID, sr.ID, m.ID
	return f
}

func (f *fixture) newUser(t *testing.T, email string) int64 {
	t.Helper()
	u, err := f.users.Create(email, "Test User", "")
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u.ID
}

func TestIssueCodeSupersedesPrevious(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.IssueCode(ctx, f.seniorID, f.membershipID, 1, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	second, err := f.svc.IssueCode(ctx, f.seniorID, f.membershipID, 2, time.Hour)
	if err != nil {
		t.Fatalf("issue again: %v", err)
	}
	if first.Code == second.Code {
		t.Fatal("reissue produced the same code")
	}

	old, err := f.codes.GetByCode(first.Code)
	if err != nil {
		t.Fatalf("get old: %v", err)
	}
	if old.IsActive {
		t.Error("old code still active after reissue")
	}
	if !second.IsActive || second.MaxUses != 2 {
		t.Errorf("new code: %+v", second)
	}
}

func TestRedeemHappyPathThenExhausted(t *testing.T) {
	f := newFixture(t)
	ic, err := f.svc.IssueCode(context.Background(), f.seniorID, f.membershipID, 1, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	carl := f.newUser(t, "carl@example.com")
	m, err := f.svc.Redeem(context.Background(), ic.Code, carl, "son")
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if m.SeniorID != f.seniorID || m.UserID != carl {
		t.Errorf("membership = %+v", m)
	}
	if m.AccessLevel != model.AccessStandard {
		t.Errorf("access level = %s, want standard for redeemed members", m.AccessLevel)
	}
	if m.IsPrimaryContact {
		t.Error("redeemed member must not become primary; circle already has one")
	}

	// Same single-use code, different user: exhausted, not a duplicate error.
	erin := f.newUser(t, "erin@example.com")
	_, err = f.svc.Redeem(context.Background(), ic.Code, erin, "niece")
	if !errors.Is(err, ErrCodeExhausted) {
		t.Fatalf("err = %v, want ErrCodeExhausted", err)
	}
}

func TestRedeemNormalizesInput(t *testing.T) {
	f := newFixture(t)
	ic, err := f.svc.IssueCode(context.Background(), f.seniorID, f.membershipID, 1, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	carl := f.newUser(t, "carl@example.com")
	lower := "  " + strings.ToLower(ic.Code) + "  "
	if _, err := f.svc.Redeem(context.Background(), lower, carl, "son"); err != nil {
		t.Fatalf("redeem with messy input: %v", err)
	}
}

func TestRedeemExpiredBeforeExhausted(t *testing.T) {
	f := newFixture(t)

	// Insert directly so the expiry can be in the past with uses left.
	ic, err := f.codes.Insert("MC-EXP99", f.seniorID, f.membershipID, 5, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	carl := f.newUser(t, "carl@example.com")
	_, err = f.svc.Redeem(context.Background(), ic.Code, carl, "son")
	if !errors.Is(err, ErrCodeExpired) {
		t.Fatalf("err = %v, want ErrCodeExpired", err)
	}
}

func TestRedeemRevoked(t *testing.T) {
	f := newFixture(t)
	ic, err := f.svc.IssueCode(context.Background(), f.seniorID, f.membershipID, 1, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := f.svc.RevokeCode(ic.Code); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	carl := f.newUser(t, "carl@example.com")
	_, err = f.svc.Redeem(context.Background(), ic.Code, carl, "son")
	if !errors.Is(err, ErrCodeRevoked) {
		t.Fatalf("err = %v, want ErrCodeRevoked", err)
	}
}

func TestRedeemUnknownCode(t *testing.T) {
	f := newFixture(t)
	carl := f.newUser(t, "carl@example.com")
	_, err := f.svc.Redeem(context.Background(), "MC-ZZZZZ", carl, "son")
	if !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("err = %v, want ErrCodeNotFound", err)
	}
}

// An existing member redeeming again must be rejected before the use is
// consumed.
func TestRedeemExistingMemberDoesNotConsumeUse(t *testing.T) {
	f := newFixture(t)
	ic, err := f.svc.IssueCode(context.Background(), f.seniorID, f.membershipID, 1, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	_, err = f.svc.Redeem(context.Background(), ic.Code, f.founderID, "daughter")
	if !errors.Is(err, ErrAlreadyMember) {
		t.Fatalf("err = %v, want ErrAlreadyMember", err)
	}

	got, err := f.codes.GetByCode(ic.Code)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CurrentUses != 0 {
		t.Errorf("current_uses = %d, want 0", got.CurrentUses)
	}
}

func TestRevokeUnknownCode(t *testing.T) {
	f := newFixture(t)
	if err := f.svc.RevokeCode("MC-ZZZZZ"); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("err = %v, want ErrCodeNotFound", err)
	}
}

func TestRegistryFirstMemberForcedPrimary(t *testing.T) {
	f := newFixture(t)
	sr, err := f.seniors.Create("Walter", "", model.Address{})
	if err != nil {
		t.Fatalf("create senior: %v", err)
	}

	// Requested non-primary, but an empty circle always gets a primary.
	m, err := f.registry.Create(f.founderID, sr.ID, "son", model.AccessStandard, false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !m.IsPrimaryContact {
		t.Error("first membership not promoted to primary")
	}
}

func TestRegistrySecondPrimaryRejected(t *testing.T) {
	f := newFixture(t)
	carl := f.newUser(t, "carl@example.com")

	_, err := f.registry.Create(carl, f.seniorID, "son", model.AccessStandard, true)
	if !errors.Is(err, ErrPrimaryAlreadyAssigned) {
		t.Fatalf("err = %v, want ErrPrimaryAlreadyAssigned", err)
	}
}

func TestRegistryDuplicateMemberRejected(t *testing.T) {
	f := newFixture(t)
	_, err := f.registry.Create(f.founderID, f.seniorID, "daughter", model.AccessStandard, false)
	if !errors.Is(err, ErrAlreadyMember) {
		t.Fatalf("err = %v, want ErrAlreadyMember", err)
	}
}

func TestRegistryRemovePrimaryNeedsReplacement(t *testing.T) {
	f := newFixture(t)

	err := f.registry.Remove(f.membershipID, 0)
	if !errors.Is(err, ErrCannotRemovePrimary) {
		t.Fatalf("err = %v, want ErrCannotRemovePrimary", err)
	}

	// Registry unchanged: the primary is still there.
	primary, err := f.memberships.GetPrimary(f.seniorID)
	if err != nil {
		t.Fatalf("get primary: %v", err)
	}
	if primary == nil || primary.ID != f.membershipID {
		t.Errorf("primary = %+v, want %d", primary, f.membershipID)
	}
}

func TestRegistryRemovePrimaryWithReplacement(t *testing.T) {
	f := newFixture(t)
	carl := f.newUser(t, "carl@example.com")
	other, err := f.registry.Create(carl, f.seniorID, "son", model.AccessStandard, false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := f.registry.Remove(f.membershipID, other.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}

	primary, err := f.memberships.GetPrimary(f.seniorID)
	if err != nil {
		t.Fatalf("get primary: %v", err)
	}
	if primary == nil || primary.ID != other.ID {
		t.Errorf("primary = %+v, want %d", primary, other.ID)
	}
}

func TestRegistryRemoveRejectsCrossCircleReplacement(t *testing.T) {
	f := newFixture(t)

	sr, err := f.seniors.Create("Walter", "", model.Address{})
	if err != nil {
		t.Fatalf("create senior: %v", err)
	}
	carl := f.newUser(t, "carl@example.com")
	otherCircle, err := f.registry.Create(carl, sr.ID, "son", model.AccessStandard, false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	err = f.registry.Remove(f.membershipID, otherCircle.ID)
	if !errors.Is(err, ErrCannotRemovePrimary) {
		t.Fatalf("err = %v, want ErrCannotRemovePrimary", err)
	}
}

func TestRegistryRemoveNonPrimary(t *testing.T) {
	f := newFixture(t)
	carl := f.newUser(t, "carl@example.com")
	m, err := f.registry.Create(carl, f.seniorID, "son", model.AccessStandard, false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := f.registry.Remove(m.ID, 0); err != nil {
		t.Fatalf("remove non-primary: %v", err)
	}
	got, err := f.memberships.GetByID(m.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Error("membership still present after removal")
	}
}

func TestRegistryTransferPrimary(t *testing.T) {
	f := newFixture(t)
	carl := f.newUser(t, "carl@example.com")
	other, err := f.registry.Create(carl, f.seniorID, "son", model.AccessStandard, false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := f.registry.TransferPrimary(f.membershipID, other.ID); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	// A second transfer from the now-demoted membership fails typed.
	err = f.registry.TransferPrimary(f.membershipID, other.ID)
	if !errors.Is(err, ErrNotPrimaryContact) {
		t.Fatalf("err = %v, want ErrNotPrimaryContact", err)
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("  mc-ab12c\n"); got != "MC-AB12C" {
		t.Errorf("Normalize = %q, want MC-AB12C", got)
	}
}
