package propertytest

import (
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/danieldreier/mcp-leitner/internal/leitner"
)

// TestReviewFollowsBoxLadder checks the transition rule over arbitrary
// review sequences: correct answers climb one box at a time and cap at
// the last box, a single miss drops the card back to box 1, and a
// review never touches the card's text.
func TestReviewFollowsBoxLadder(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	service, collection := NewTestService(t)

	properties := gopter.NewProperties(parameters)

	properties.Property("box follows the ladder for any outcome sequence", prop.ForAll(
		func(outcomes []leitner.Outcome) string {
			card, err := service.CreateCard(collection.ID, "ladder front", "ladder back")
			if err != nil {
				return fmt.Sprintf("create card: %v", err)
			}

			expected := leitner.MinBox
			for i, outcome := range outcomes {
				reviewed, err := service.SubmitReview(card.ID, outcome)
				if err != nil {
					return fmt.Sprintf("review %d (%s): %v", i, outcome, err)
				}

				if outcome == leitner.OutcomeCorrect {
					if expected < leitner.MaxBox {
						expected++
					}
				} else {
					expected = leitner.MinBox
				}

				if reviewed.Leitner.Box != expected {
					return fmt.Sprintf("review %d (%s): box = %d, want %d", i, outcome, reviewed.Leitner.Box, expected)
				}
				if !reviewed.Leitner.Box.Valid() {
					return fmt.Sprintf("review %d (%s): box %d out of range", i, outcome, reviewed.Leitner.Box)
				}
				if reviewed.Leitner.LastReviewed == nil {
					return fmt.Sprintf("review %d (%s): LastReviewed not stamped", i, outcome)
				}
				if reviewed.Front != "ladder front" || reviewed.Back != "ladder back" {
					return fmt.Sprintf("review %d (%s): text changed to %q / %q", i, outcome, reviewed.Front, reviewed.Back)
				}
			}
			return ""
		},
		gen.SliceOf(GenOutcome()),
	))

	properties.TestingRun(t)
}

// TestBackdatedReviewComesDueOnSchedule reviews a card at a point in
// the past and checks that the due evaluation agrees with the policy's
// waiting period for the box the card landed in.
func TestBackdatedReviewComesDueOnSchedule(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	service, collection := NewTestService(t)

	properties := gopter.NewProperties(parameters)

	properties.Property("due evaluation matches the policy after a backdated review", prop.ForAll(
		func(daysAgo int) string {
			card, err := service.CreateCard(collection.ID, "backdate front", "backdate back")
			if err != nil {
				return fmt.Sprintf("create card: %v", err)
			}

			when := time.Now().Add(-time.Duration(daysAgo) * 24 * time.Hour)
			reviewed, err := service.SubmitReviewWithTime(card.ID, leitner.OutcomeCorrect, when)
			if err != nil {
				return fmt.Sprintf("backdated review: %v", err)
			}

			if reviewed.Leitner.LastReviewed == nil || !reviewed.Leitner.LastReviewed.Equal(when.Truncate(time.Millisecond)) {
				return fmt.Sprintf("LastReviewed = %v, want %v", reviewed.Leitner.LastReviewed, when)
			}

			days, ok := collection.Intervals.Days(reviewed.Leitner.Box)
			if !ok {
				return fmt.Sprintf("no interval for box %d", reviewed.Leitner.Box)
			}
			wantDue := daysAgo >= days
			gotDue := leitner.IsDue(reviewed.Leitner, collection.Intervals, time.Now())
			if gotDue != wantDue {
				return fmt.Sprintf("due after %d days with a %d day interval = %v, want %v", daysAgo, days, gotDue, wantDue)
			}
			return ""
		},
		gen.IntRange(0, 60),
	))

	properties.TestingRun(t)
}
