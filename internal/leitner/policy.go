package leitner

import "fmt"

// IntervalPolicy is the number of days a card waits in each box before
// it comes due again, indexed box 1 through box 5.
type IntervalPolicy [BoxCount]int

// DefaultIntervalPolicy returns the standard progression: 1, 3, 7, 14,
// and 30 days.
func DefaultIntervalPolicy() IntervalPolicy {
	return IntervalPolicy{1, 3, 7, 14, 30}
}

// Days returns the waiting period for a box and whether the box level
// was in range.
func (p IntervalPolicy) Days(b Box) (int, bool) {
	if !b.Valid() {
		return 0, false
	}
	return p[b-MinBox], true
}

// Validate checks that every interval is positive and that intervals
// strictly increase from box to box. The returned error names the
// first entry that breaks a constraint.
func (p IntervalPolicy) Validate() error {
	for i, days := range p {
		box := i + 1
		if days <= 0 {
			return &ValidationError{
				Field:   fmt.Sprintf("intervals[%d]", i),
				Message: fmt.Sprintf("box %d interval must be a positive number of days, got %d", box, days),
			}
		}
		if i > 0 && days <= p[i-1] {
			return &ValidationError{
				Field:   fmt.Sprintf("intervals[%d]", i),
				Message: fmt.Sprintf("box %d interval (%d days) must be greater than box %d interval (%d days)", box, days, box-1, p[i-1]),
			}
		}
	}
	return nil
}
