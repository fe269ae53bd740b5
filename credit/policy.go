package credit

import (
	"github.com/cockroachdb/errors"

	"github.com/warp/gym-credit/gym"
)

const maxPolicyNameLen = 32

// ValidatePolicy checks a price policy before it is added to the catalog.
func ValidatePolicy(p gym.PricePolicy) error {
	switch {
	case p.Name == "":
		return errors.Mark(errors.New("name is required"), gym.ErrInvalidPolicy)
	case len([]rune(p.Name)) > maxPolicyNameLen:
		return errors.Mark(errors.Newf("name is longer than %d characters", maxPolicyNameLen), gym.ErrInvalidPolicy)
	case p.CreditCount <= 0:
		return errors.Mark(errors.New("credit count must be positive"), gym.ErrInvalidPolicy)
	case p.Period <= 0:
		return errors.Mark(errors.New("period must be positive"), gym.ErrInvalidPolicy)
	case p.Price.IsNegative():
		return errors.Mark(errors.New("price must not be negative"), gym.ErrInvalidPolicy)
	}
	return nil
}
