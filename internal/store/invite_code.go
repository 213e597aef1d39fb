package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aldergrove/carecircle/internal/model"
)

// RedeemOutcome classifies why an atomic redemption did or did not consume
// a use. The classification is read inside the same transaction as the
// conditional update, so a racing loser sees the state that beat it.
type RedeemOutcome int

const (
	RedeemOK RedeemOutcome = iota
	RedeemNotFound
	RedeemRevoked
	RedeemExpired
	RedeemExhausted
)

type InviteCodeStore struct {
	db *sql.DB
}

func NewInviteCodeStore(db *sql.DB) *InviteCodeStore {
	return &InviteCodeStore{db: db}
}

func scanInviteCode(scanner interface{ Scan(...any) error }) (*model.InviteCode, error) {
	var c model.InviteCode
	err := scanner.Scan(
		&c.ID, &c.Code, &c.SeniorID, &c.CreatedBy, &c.MaxUses,
		&c.CurrentUses, &c.ExpiresAt, &c.IsActive, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

const inviteCodeCols = `id, code, senior_id, created_by, max_uses, current_uses, expires_at, is_active, created_at`

// IsUniqueViolation reports whether err is a SQLite unique-constraint
// rejection, which the code generator treats as a collision to retry.
func IsUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Insert stores a freshly generated code and retires the senior's
// previously active codes in the same transaction. A rejected insert rolls
// the retirement back too, so the old code stays live until its
// replacement actually lands. The unique index on code is the collision
// check; callers retry on IsUniqueViolation.
func (s *InviteCodeStore) Insert(code string, seniorID, createdBy int64, maxUses int, expiresAt time.Time) (*model.InviteCode, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`UPDATE invite_codes SET is_active = 0 WHERE senior_id = ? AND is_active = 1`,
		seniorID,
	); err != nil {
		return nil, fmt.Errorf("retire active codes: %w", err)
	}

	result, err := tx.Exec(
		`INSERT INTO invite_codes (code, senior_id, created_by, max_uses, expires_at) VALUES (?, ?, ?, ?, ?)`,
		code, seniorID, createdBy, maxUses, expiresAt.UTC(),
	)
	if err != nil {
		return nil, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit insert: %w", err)
	}
	return s.GetByID(id)
}

func (s *InviteCodeStore) GetByID(id int64) (*model.InviteCode, error) {
	row := s.db.QueryRow(`SELECT `+inviteCodeCols+` FROM invite_codes WHERE id = ?`, id)
	c, err := scanInviteCode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get invite code: %w", err)
	}
	return c, nil
}

func (s *InviteCodeStore) GetByCode(code string) (*model.InviteCode, error) {
	row := s.db.QueryRow(`SELECT `+inviteCodeCols+` FROM invite_codes WHERE code = ?`, code)
	c, err := scanInviteCode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get invite code by code: %w", err)
	}
	return c, nil
}

func (s *InviteCodeStore) ListBySenior(seniorID int64) ([]model.InviteCode, error) {
	rows, err := s.db.Query(
		`SELECT `+inviteCodeCols+` FROM invite_codes WHERE senior_id = ? ORDER BY created_at DESC`,
		seniorID,
	)
	if err != nil {
		return nil, fmt.Errorf("list invite codes: %w", err)
	}
	defer rows.Close()

	var codes []model.InviteCode
	for rows.Next() {
		c, err := scanInviteCode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invite code: %w", err)
		}
		codes = append(codes, *c)
	}
	return codes, rows.Err()
}

// Redeem performs the atomic consume: one conditional UPDATE whose WHERE
// clause re-checks active/expiry/use-count at write time, plus the
// usage-history append, in a single transaction. Two requests racing for
// the last slot cannot both pass the UPDATE; the loser is classified from
// the row state inside the same transaction.
func (s *InviteCodeStore) Redeem(code string, userID int64, relationship string, now time.Time) (*model.InviteCode, RedeemOutcome, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, RedeemNotFound, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`UPDATE invite_codes
		 SET current_uses = current_uses + 1
		 WHERE code = ? AND is_active = 1 AND expires_at > ? AND current_uses < max_uses`,
		code, now.UTC(),
	)
	if err != nil {
		return nil, RedeemNotFound, fmt.Errorf("consume code: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, RedeemNotFound, fmt.Errorf("rows affected: %w", err)
	}

	row := tx.QueryRow(`SELECT `+inviteCodeCols+` FROM invite_codes WHERE code = ?`, code)
	c, err := scanInviteCode(row)
	if err == sql.ErrNoRows {
		return nil, RedeemNotFound, nil
	}
	if err != nil {
		return nil, RedeemNotFound, fmt.Errorf("read code: %w", err)
	}

	if n == 0 {
		switch {
		case !c.IsActive:
			return nil, RedeemRevoked, nil
		case !c.ExpiresAt.After(now):
			return nil, RedeemExpired, nil
		default:
			return nil, RedeemExhausted, nil
		}
	}

	if _, err := tx.Exec(
		`INSERT INTO code_uses (code_id, redeemed_by, relationship) VALUES (?, ?, ?)`,
		c.ID, userID, relationship,
	); err != nil {
		return nil, RedeemNotFound, fmt.Errorf("append code use: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, RedeemNotFound, fmt.Errorf("commit redeem: %w", err)
	}
	return c, RedeemOK, nil
}

// Revoke deactivates a code. Revocation is independent of expiry and
// use count and does not delete history.
func (s *InviteCodeStore) Revoke(code string) (bool, error) {
	result, err := s.db.Exec(`UPDATE invite_codes SET is_active = 0 WHERE code = ?`, code)
	if err != nil {
		return false, fmt.Errorf("revoke code: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// UsageHistory returns the append-only redemption history, oldest first.
func (s *InviteCodeStore) UsageHistory(codeID int64) ([]model.CodeUse, error) {
	rows, err := s.db.Query(
		`SELECT id, code_id, redeemed_by, relationship, created_at FROM code_uses WHERE code_id = ? ORDER BY id ASC`,
		codeID,
	)
	if err != nil {
		return nil, fmt.Errorf("list code uses: %w", err)
	}
	defer rows.Close()

	var uses []model.CodeUse
	for rows.Next() {
		var u model.CodeUse
		if err := rows.Scan(&u.ID, &u.CodeID, &u.RedeemedBy, &u.Relationship, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan code use: %w", err)
		}
		uses = append(uses, u)
	}
	return uses, rows.Err()
}
