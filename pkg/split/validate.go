package split

import (
	"fmt"
	"math"

	"github.com/amirasaad/ledgersync/pkg/domain"
)

// Validation rules applied before committing a user-edited split. The
// calculator itself stays permissive; these gate the write path.

// ValidatePercentages checks that percentage entries sum to exactly 100.
func ValidatePercentages(in domain.SplitInput) error {
	var sum float64
	for _, e := range in.Entries {
		sum += e.Value
	}
	if math.Abs(sum-100) > 1e-9 {
		return fmt.Errorf("%w: percentages sum to %.4f, want 100", domain.ErrValidation, sum)
	}
	return nil
}

// ValidateExact checks that exact entries sum to exactly the expense total.
func ValidateExact(in domain.SplitInput, totalCents int64) error {
	var sum int64
	for _, e := range in.Entries {
		sum += int64(e.Value)
	}
	if sum != totalCents {
		return fmt.Errorf("%w: exact amounts sum to %d, want %d", domain.ErrValidation, sum, totalCents)
	}
	return nil
}

// ValidateSelection checks that at least one participant is selected for an
// equalSelected split.
func ValidateSelection(in domain.SplitInput) error {
	for _, e := range in.Entries {
		if e.Value > 0 {
			return nil
		}
	}
	return fmt.Errorf("%w: at least one participant must be selected", domain.ErrValidation)
}

// Validate applies the rule matching the split kind; equal and shares splits
// have no pre-commit rule beyond what the calculator enforces.
func Validate(in domain.SplitInput, totalCents int64) error {
	switch in.Kind {
	case domain.SplitPercentage:
		return ValidatePercentages(in)
	case domain.SplitExact:
		return ValidateExact(in, totalCents)
	case domain.SplitEqualSelected:
		return ValidateSelection(in)
	default:
		return nil
	}
}
