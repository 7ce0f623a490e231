// Package leitner implements five-box Leitner scheduling: which box a
// card sits in, when it comes due, how it moves between boxes after a
// review, and how a set of cards rolls up into statistics.
//
// Everything in this package is a pure function of its inputs. There
// are no clocks, no storage calls, and no logging; callers pass the
// current time explicitly.
package leitner

import "fmt"

// Box is a Leitner box level. Valid levels run from MinBox to MaxBox;
// higher boxes wait longer between reviews.
type Box int

const (
	// MinBox is the first box. New cards start here and incorrect
	// answers come back here.
	MinBox Box = 1
	// MaxBox is the mastery box. Promotion caps here.
	MaxBox Box = 5
	// BoxCount is the number of boxes in the progression.
	BoxCount = 5
)

// Valid reports whether b is within the box range.
func (b Box) Valid() bool {
	return b >= MinBox && b <= MaxBox
}

// Clamp pulls an out-of-range box level back into [MinBox, MaxBox].
func (b Box) Clamp() Box {
	if b < MinBox {
		return MinBox
	}
	if b > MaxBox {
		return MaxBox
	}
	return b
}

// Outcome is the result of answering a card.
type Outcome string

const (
	OutcomeCorrect   Outcome = "correct"
	OutcomeIncorrect Outcome = "incorrect"
)

// Valid reports whether o is one of the two recognized outcomes.
func (o Outcome) Valid() bool {
	return o == OutcomeCorrect || o == OutcomeIncorrect
}

// ParseOutcome converts a raw string into an Outcome, rejecting
// anything other than the two recognized values.
func ParseOutcome(s string) (Outcome, error) {
	o := Outcome(s)
	if !o.Valid() {
		return "", &ValidationError{
			Field:   "outcome",
			Message: fmt.Sprintf("must be %q or %q, got %q", OutcomeCorrect, OutcomeIncorrect, s),
		}
	}
	return o, nil
}
