package leitner

import "time"

const day = 24 * time.Hour

// Card is the scheduling state of a single flashcard: the box it sits
// in and when it was last reviewed. A nil LastReviewed means the card
// has never been reviewed.
type Card struct {
	Box          Box        `json:"box"`
	LastReviewed *time.Time `json:"last_reviewed"`
}

// NewCard returns the state of a brand-new card: first box, never
// reviewed.
func NewCard() Card {
	return Card{Box: MinBox}
}

// DaysSince returns the number of whole days between last and now,
// truncated toward zero. Partial days do not count.
func DaysSince(last, now time.Time) int {
	return int(now.Sub(last) / day)
}

// IsDue reports whether a card should be shown for review at now under
// the given policy. A card that has never been reviewed is always due.
// A card whose box level is out of range is treated as due, so corrupt
// data surfaces for review instead of disappearing from the queue.
func IsDue(card Card, policy IntervalPolicy, now time.Time) bool {
	if card.LastReviewed == nil {
		return true
	}
	days, ok := policy.Days(card.Box)
	if !ok {
		return true
	}
	return DaysSince(*card.LastReviewed, now) >= days
}

// Transition records the box movement produced by a single review.
type Transition struct {
	From Box `json:"from"`
	To   Box `json:"to"`
}

// ApplyOutcome advances a card's state after a review. A correct
// answer promotes the card one box, capped at MaxBox; anything else
// returns it to MinBox. LastReviewed is set to now in both cases. The
// input card is never modified, and out-of-range input boxes are
// clamped so the returned state always holds a valid level.
func ApplyOutcome(card Card, outcome Outcome, now time.Time) (Card, Transition) {
	var next Box
	if outcome == OutcomeCorrect {
		next = (card.Box + 1).Clamp()
	} else {
		next = MinBox
	}
	reviewed := now
	return Card{Box: next, LastReviewed: &reviewed}, Transition{From: card.Box, To: next}
}
