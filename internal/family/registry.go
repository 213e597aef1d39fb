package family

import (
	"fmt"

	"github.com/aldergrove/carecircle/internal/model"
	"github.com/aldergrove/carecircle/internal/store"
)

// Registry enforces the membership invariants for a senior's care circle:
// exactly one primary contact once any membership exists, no duplicate
// members, no implicit primary demotion. Access control is the caller's
// job; the registry stays usable by trusted internal callers.
type Registry struct {
	memberships *store.MembershipStore
}

func NewRegistry(memberships *store.MembershipStore) *Registry {
	return &Registry{memberships: memberships}
}

// Create adds a membership. The first membership for a senior is always
// created as primary regardless of the requested flag; an explicit primary
// request when one exists fails rather than demoting anyone.
func (r *Registry) Create(userID, seniorID int64, relationship string, level model.AccessLevel, isPrimary bool) (*model.FamilyMembership, error) {
	existing, err := r.memberships.GetByUserAndSenior(userID, seniorID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadyMember
	}

	count, err := r.memberships.CountBySenior(seniorID)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		isPrimary = true
	} else if isPrimary {
		primary, err := r.memberships.GetPrimary(seniorID)
		if err != nil {
			return nil, err
		}
		if primary != nil {
			return nil, ErrPrimaryAlreadyAssigned
		}
	}

	m, err := r.memberships.Create(userID, seniorID, relationship, level, isPrimary)
	if err != nil {
		// The partial unique index backs the checks above under races.
		if store.IsUniqueViolation(err) {
			if isPrimary {
				return nil, ErrPrimaryAlreadyAssigned
			}
			return nil, ErrAlreadyMember
		}
		return nil, fmt.Errorf("create membership: %w", err)
	}
	return m, nil
}

// Remove deletes a membership. Removing the primary contact requires a
// nominated replacement in the same call; the swap happens in one store
// transaction.
func (r *Registry) Remove(membershipID, replacementID int64) error {
	m, err := r.memberships.GetByID(membershipID)
	if err != nil {
		return err
	}
	if m == nil {
		return ErrMembershipNotFound
	}

	if !m.IsPrimaryContact {
		return r.memberships.Delete(membershipID)
	}

	if replacementID == 0 {
		return ErrCannotRemovePrimary
	}
	replacement, err := r.memberships.GetByID(replacementID)
	if err != nil {
		return err
	}
	if replacement == nil || replacement.SeniorID != m.SeniorID || replacement.ID == m.ID {
		return ErrCannotRemovePrimary
	}
	return r.memberships.DeleteWithTransfer(membershipID, replacementID)
}

// ChangeAccessLevel raises or lowers a membership's level. Direction is
// unrestricted; every change is audited with the acting user.
func (r *Registry) ChangeAccessLevel(membershipID, actorID int64, newLevel model.AccessLevel) (*model.FamilyMembership, error) {
	m, err := r.memberships.ChangeAccessLevel(membershipID, actorID, newLevel)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrMembershipNotFound
	}
	return m, nil
}

// TransferPrimary moves the primary-contact flag between two memberships
// of the same senior, atomically.
func (r *Registry) TransferPrimary(fromID, toID int64) error {
	from, err := r.memberships.GetByID(fromID)
	if err != nil {
		return err
	}
	to, err := r.memberships.GetByID(toID)
	if err != nil {
		return err
	}
	if from == nil || to == nil {
		return ErrMembershipNotFound
	}
	if !from.IsPrimaryContact {
		return ErrNotPrimaryContact
	}
	if from.SeniorID != to.SeniorID || from.ID == to.ID {
		return ErrMembershipNotFound
	}
	return r.memberships.TransferPrimary(fromID, toID)
}
