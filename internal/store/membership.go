package store

import (
	"database/sql"
	"fmt"

	"github.com/aldergrove/carecircle/internal/model"
)

type MembershipStore struct {
	db *sql.DB
}

func NewMembershipStore(db *sql.DB) *MembershipStore {
	return &MembershipStore{db: db}
}

func scanMembership(scanner interface{ Scan(...any) error }) (*model.FamilyMembership, error) {
	var m model.FamilyMembership
	err := scanner.Scan(
		&m.ID, &m.UserID, &m.SeniorID, &m.Relationship, &m.IsPrimaryContact, &m.AccessLevel,
		&m.Notifications.PushEnabled, &m.Notifications.EmailEnabled, &m.Notifications.CriticalOnly,
		&m.Notifications.DailySummary, &m.Notifications.QuietHoursFrom, &m.Notifications.QuietHoursTo,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

const membershipCols = `id, user_id, senior_id, relationship, is_primary_contact, access_level,
	notify_push, notify_email, notify_critical_only, notify_daily_summary,
	quiet_hours_from, quiet_hours_to, created_at, updated_at`

// Create inserts a membership row. The unique (senior_id, user_id) pair
// and the partial unique primary index reject duplicates and second
// primaries at the store level regardless of caller checks.
func (s *MembershipStore) Create(userID, seniorID int64, relationship string, level model.AccessLevel, isPrimary bool) (*model.FamilyMembership, error) {
	result, err := s.db.Exec(
		`INSERT INTO family_memberships (user_id, senior_id, relationship, access_level, is_primary_contact)
		 VALUES (?, ?, ?, ?, ?)`,
		userID, seniorID, relationship, level, isPrimary,
	)
	if err != nil {
		return nil, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *MembershipStore) GetByID(id int64) (*model.FamilyMembership, error) {
	row := s.db.QueryRow(`SELECT `+membershipCols+` FROM family_memberships WHERE id = ?`, id)
	m, err := scanMembership(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get membership: %w", err)
	}
	return m, nil
}

func (s *MembershipStore) GetByUserAndSenior(userID, seniorID int64) (*model.FamilyMembership, error) {
	row := s.db.QueryRow(
		`SELECT `+membershipCols+` FROM family_memberships WHERE user_id = ? AND senior_id = ?`,
		userID, seniorID,
	)
	m, err := scanMembership(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get membership by user and senior: %w", err)
	}
	return m, nil
}

func (s *MembershipStore) GetPrimary(seniorID int64) (*model.FamilyMembership, error) {
	row := s.db.QueryRow(
		`SELECT `+membershipCols+` FROM family_memberships WHERE senior_id = ? AND is_primary_contact = 1`,
		seniorID,
	)
	m, err := scanMembership(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get primary membership: %w", err)
	}
	return m, nil
}

func (s *MembershipStore) ListBySenior(seniorID int64) ([]model.FamilyMembership, error) {
	rows, err := s.db.Query(
		`SELECT `+membershipCols+` FROM family_memberships WHERE senior_id = ? ORDER BY created_at ASC`,
		seniorID,
	)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	var members []model.FamilyMembership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

func (s *MembershipStore) CountBySenior(seniorID int64) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM family_memberships WHERE senior_id = ?`, seniorID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count memberships: %w", err)
	}
	return n, nil
}

// Delete removes a non-primary membership row. Primary removals go
// through DeleteWithTransfer.
func (s *MembershipStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM family_memberships WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}
	return nil
}

// DeleteWithTransfer removes a primary membership and promotes the
// replacement in one transaction, so the one-primary invariant holds at
// every commit point.
func (s *MembershipStore) DeleteWithTransfer(id, replacementID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM family_memberships WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}
	result, err := tx.Exec(
		`UPDATE family_memberships SET is_primary_contact = 1, updated_at = datetime('now') WHERE id = ?`,
		replacementID,
	)
	if err != nil {
		return fmt.Errorf("promote replacement: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("replacement membership %d not found", replacementID)
	}
	return tx.Commit()
}

// TransferPrimary demotes from and promotes to atomically. The demote
// runs first so the partial unique index never sees two primaries.
func (s *MembershipStore) TransferPrimary(fromID, toID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`UPDATE family_memberships SET is_primary_contact = 0, updated_at = datetime('now')
		 WHERE id = ? AND is_primary_contact = 1`,
		fromID,
	)
	if err != nil {
		return fmt.Errorf("demote primary: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("membership %d is not the primary contact", fromID)
	}

	result, err = tx.Exec(
		`UPDATE family_memberships SET is_primary_contact = 1, updated_at = datetime('now') WHERE id = ?`,
		toID,
	)
	if err != nil {
		return fmt.Errorf("promote primary: %w", err)
	}
	n, err = result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("membership %d not found", toID)
	}
	return tx.Commit()
}

// ChangeAccessLevel updates the level and writes the audit row in one
// transaction. Direction is unrestricted; the audit log keeps the actor.
func (s *MembershipStore) ChangeAccessLevel(id, actorID int64, newLevel model.AccessLevel) (*model.FamilyMembership, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var oldLevel model.AccessLevel
	err = tx.QueryRow(`SELECT access_level FROM family_memberships WHERE id = ?`, id).Scan(&oldLevel)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read access level: %w", err)
	}

	if _, err := tx.Exec(
		`UPDATE family_memberships SET access_level = ?, updated_at = datetime('now') WHERE id = ?`,
		newLevel, id,
	); err != nil {
		return nil, fmt.Errorf("update access level: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO access_level_changes (membership_id, actor_id, old_level, new_level) VALUES (?, ?, ?, ?)`,
		id, actorID, oldLevel, newLevel,
	); err != nil {
		return nil, fmt.Errorf("insert audit row: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit access change: %w", err)
	}
	return s.GetByID(id)
}

// AccessLevelHistory returns the audit log for a membership, oldest first.
func (s *MembershipStore) AccessLevelHistory(membershipID int64) ([]model.AccessLevelChange, error) {
	rows, err := s.db.Query(
		`SELECT id, membership_id, actor_id, old_level, new_level, created_at
		 FROM access_level_changes WHERE membership_id = ? ORDER BY id ASC`,
		membershipID,
	)
	if err != nil {
		return nil, fmt.Errorf("list access changes: %w", err)
	}
	defer rows.Close()

	var changes []model.AccessLevelChange
	for rows.Next() {
		var c model.AccessLevelChange
		if err := rows.Scan(&c.ID, &c.MembershipID, &c.ActorID, &c.OldLevel, &c.NewLevel, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan access change: %w", err)
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

// UpdateNotificationPreferences replaces the delivery flags for a membership.
func (s *MembershipStore) UpdateNotificationPreferences(id int64, p model.NotificationPreferences) (*model.FamilyMembership, error) {
	_, err := s.db.Exec(
		`UPDATE family_memberships
		 SET notify_push = ?, notify_email = ?, notify_critical_only = ?, notify_daily_summary = ?,
		     quiet_hours_from = ?, quiet_hours_to = ?, updated_at = datetime('now')
		 WHERE id = ?`,
		p.PushEnabled, p.EmailEnabled, p.CriticalOnly, p.DailySummary, p.QuietHoursFrom, p.QuietHoursTo, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update notification preferences: %w", err)
	}
	return s.GetByID(id)
}
