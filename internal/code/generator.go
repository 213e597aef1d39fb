package code

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/aldergrove/carecircle/internal/model"
	"github.com/aldergrove/carecircle/internal/store"
)

// ErrGenerationExhausted is returned when every generation attempt collided
// with an existing code. With ~28.6M possible codes this should never
// happen in practice, but the bound keeps a store fault from looping.
var ErrGenerationExhausted = errors.New("invite code generation exhausted")

const (
	// Prefix marks a code as a family invite when shared out-of-band.
	Prefix = "MC-"

	// codeLength counts the random characters after the prefix.
	codeLength = 5

	// alphabet excludes visually confusable characters (I, L, O, 0, 1).
	alphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

	maxAttempts = 5
)

// Generator produces collision-checked invite codes. It is optimistic:
// uniqueness comes from the store's unique index, and the generator simply
// retries when an insert is rejected.
type Generator struct {
	codes *store.InviteCodeStore
}

func NewGenerator(codes *store.InviteCodeStore) *Generator {
	return &Generator{codes: codes}
}

func randomCode() (string, error) {
	buf := make([]byte, codeLength)
	max := big.NewInt(int64(len(alphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		buf[i] = alphabet[n.Int64()]
	}
	return Prefix + string(buf), nil
}

// Generate inserts a fresh code for the senior, retrying on
// unique-constraint rejection up to the attempt bound.
func (g *Generator) Generate(ctx context.Context, seniorID, createdBy int64, maxUses int, ttl time.Duration) (*model.InviteCode, error) {
	expiresAt := time.Now().UTC().Add(ttl)

	var created *model.InviteCode
	backoff := retry.WithMaxRetries(maxAttempts-1, retry.NewConstant(time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		c, err := randomCode()
		if err != nil {
			return err
		}
		ic, err := g.codes.Insert(c, seniorID, createdBy, maxUses, expiresAt)
		if store.IsUniqueViolation(err) {
			return retry.RetryableError(err)
		}
		if err != nil {
			return fmt.Errorf("insert invite code: %w", err)
		}
		created = ic
		return nil
	})
	if err != nil {
		if store.IsUniqueViolation(err) {
			return nil, ErrGenerationExhausted
		}
		return nil, err
	}
	return created, nil
}
