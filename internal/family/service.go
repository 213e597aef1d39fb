package family

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aldergrove/carecircle/internal/code"
	"github.com/aldergrove/carecircle/internal/model"
	"github.com/aldergrove/carecircle/internal/store"
)

// Service issues and redeems invite codes. Redemption is the one
// concurrency-sensitive path in the system: the consume runs as a single
// conditional update at the store so racing requests cannot double-spend
// the last use slot.
type Service struct {
	codes    *store.InviteCodeStore
	registry *Registry
	gen      *code.Generator
	logger   *slog.Logger
}

func NewService(codes *store.InviteCodeStore, registry *Registry, gen *code.Generator, logger *slog.Logger) *Service {
	return &Service{codes: codes, registry: registry, gen: gen, logger: logger}
}

// IssueCode generates a replacement code for the senior; the store retires
// any live codes in the same transaction as the insert, so at most one
// code is active per senior and a failed generation leaves the old code
// live. Old codes keep their rows and usage history.
func (s *Service) IssueCode(ctx context.Context, seniorID, createdBy int64, maxUses int, ttl time.Duration) (*model.InviteCode, error) {
	if maxUses < 1 {
		maxUses = 1
	}
	ic, err := s.gen.Generate(ctx, seniorID, createdBy, maxUses, ttl)
	if err != nil {
		return nil, err
	}
	s.logger.Info("invite code issued", "senior_id", seniorID, "code_id", ic.ID, "max_uses", maxUses)
	return ic, nil
}

// RevokeCode deactivates a single code by value.
func (s *Service) RevokeCode(raw string) error {
	ok, err := s.codes.Revoke(Normalize(raw))
	if err != nil {
		return err
	}
	if !ok {
		return ErrCodeNotFound
	}
	return nil
}

// Normalize trims and upper-cases a user-entered code before lookup.
func Normalize(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Redeem validates and atomically consumes a code, then creates the
// membership. The membership pre-check runs before the consume so an
// existing member is rejected without burning a use. If the membership
// insert fails after the consume, the use stays consumed: leaking one use
// is preferred over reopening the double-spend window.
func (s *Service) Redeem(ctx context.Context, raw string, userID int64, relationship string) (*model.FamilyMembership, error) {
	normalized := Normalize(raw)

	ic, err := s.codes.GetByCode(normalized)
	if err != nil {
		return nil, err
	}
	if ic == nil {
		return nil, ErrCodeNotFound
	}

	existing, err := s.registry.memberships.GetByUserAndSenior(userID, ic.SeniorID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadyMember
	}

	_, outcome, err := s.codes.Redeem(normalized, userID, relationship, time.Now())
	if err != nil {
		return nil, err
	}
	switch outcome {
	case store.RedeemOK:
	case store.RedeemNotFound:
		return nil, ErrCodeNotFound
	case store.RedeemRevoked:
		return nil, ErrCodeRevoked
	case store.RedeemExpired:
		return nil, ErrCodeExpired
	case store.RedeemExhausted:
		return nil, ErrCodeExhausted
	}

	m, err := s.registry.Create(userID, ic.SeniorID, relationship, model.AccessStandard, false)
	if err != nil {
		// Use already consumed; see trade-off note above.
		s.logger.Warn("membership creation failed after code consume",
			"code_id", ic.ID, "user_id", userID, "error", err)
		return nil, fmt.Errorf("create membership after redeem: %w", err)
	}

	s.logger.Info("invite code redeemed", "code_id", ic.ID, "user_id", userID, "senior_id", ic.SeniorID)
	return m, nil
}
