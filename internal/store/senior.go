package store

import (
	"database/sql"
	"fmt"

	"github.com/aldergrove/carecircle/internal/model"
)

type SeniorStore struct {
	db *sql.DB
}

func NewSeniorStore(db *sql.DB) *SeniorStore {
	return &SeniorStore{db: db}
}

func scanSenior(scanner interface{ Scan(...any) error }) (*model.Senior, error) {
	var sr model.Senior
	err := scanner.Scan(
		&sr.ID, &sr.Name, &sr.Phone,
		&sr.Address.Line1, &sr.Address.Line2, &sr.Address.City,
		&sr.Address.Region, &sr.Address.PostalCode, &sr.Address.Country,
		&sr.CreatedAt, &sr.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sr, nil
}

const seniorCols = `id, name, phone, address_line1, address_line2, address_city,
	address_region, address_postal_code, address_country, created_at, updated_at`

func (s *SeniorStore) Create(name, phone string, addr model.Address) (*model.Senior, error) {
	result, err := s.db.Exec(
		`INSERT INTO seniors (name, phone, address_line1, address_line2, address_city, address_region, address_postal_code, address_country)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		name, phone, addr.Line1, addr.Line2, addr.City, addr.Region, addr.PostalCode, addr.Country,
	)
	if err != nil {
		return nil, fmt.Errorf("insert senior: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *SeniorStore) GetByID(id int64) (*model.Senior, error) {
	row := s.db.QueryRow(`SELECT `+seniorCols+` FROM seniors WHERE id = ?`, id)
	sr, err := scanSenior(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get senior: %w", err)
	}
	return sr, nil
}

// Delete removes a senior row. Memberships, codes, and alerts cascade.
func (s *SeniorStore) Delete(id int64) error {
	if _, err := s.db.Exec(`DELETE FROM seniors WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete senior: %w", err)
	}
	return nil
}

func (s *SeniorStore) ListForUser(userID int64) ([]model.Senior, error) {
	rows, err := s.db.Query(
		`SELECT s.id, s.name, s.phone, s.address_line1, s.address_line2, s.address_city,
		        s.address_region, s.address_postal_code, s.address_country, s.created_at, s.updated_at
		 FROM seniors s
		 JOIN family_memberships fm ON s.id = fm.senior_id
		 WHERE fm.user_id = ?
		 ORDER BY s.name ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list seniors for user: %w", err)
	}
	defer rows.Close()

	var seniors []model.Senior
	for rows.Next() {
		sr, err := scanSenior(rows)
		if err != nil {
			return nil, fmt.Errorf("scan senior: %w", err)
		}
		seniors = append(seniors, *sr)
	}
	return seniors, rows.Err()
}

func (s *SeniorStore) Update(id int64, name, phone string, addr model.Address) (*model.Senior, error) {
	_, err := s.db.Exec(
		`UPDATE seniors SET name = ?, phone = ?, address_line1 = ?, address_line2 = ?, address_city = ?,
		 address_region = ?, address_postal_code = ?, address_country = ?, updated_at = datetime('now')
		 WHERE id = ?`,
		name, phone, addr.Line1, addr.Line2, addr.City, addr.Region, addr.PostalCode, addr.Country, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update senior: %w", err)
	}
	return s.GetByID(id)
}
