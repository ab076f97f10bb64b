package shares

import (
	"fmt"
	"math"

	"github.com/bitfsorg/rentshare-go/account"
)

// ValidateConservation checks that the balances sum exactly to total.
func ValidateConservation(total uint64, balances map[account.Account]uint64) error {
	var sum uint64
	for _, n := range balances {
		if n > math.MaxUint64-sum {
			return fmt.Errorf("%w: balance sum overflows", ErrShareConservationViolation)
		}
		sum += n
	}
	if sum != total {
		return fmt.Errorf("%w: total=%d held=%d", ErrShareConservationViolation, total, sum)
	}
	return nil
}
