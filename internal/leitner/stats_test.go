package leitner

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestAggregateEmpty(t *testing.T) {
	got := Aggregate(nil, DefaultIntervalPolicy(), time.Now(), nil)
	if diff := cmp.Diff(Stats{}, got); diff != "" {
		t.Errorf("empty aggregate should be all zeros (-want +got):\n%s", diff)
	}
	got = Aggregate([]Card{}, DefaultIntervalPolicy(), time.Now(), []Outcome{})
	if diff := cmp.Diff(Stats{}, got); diff != "" {
		t.Errorf("empty aggregate with empty history should be all zeros (-want +got):\n%s", diff)
	}
}

func TestAggregateBoxCountsAndDue(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	policy := DefaultIntervalPolicy()
	fresh := now.Add(-time.Hour)
	stale := now.Add(-40 * 24 * time.Hour)

	cards := []Card{
		{Box: 1},                       // never reviewed, due
		{Box: 1, LastReviewed: &fresh}, // reviewed an hour ago, not due
		{Box: 2, LastReviewed: &stale}, // long overdue
		{Box: 5, LastReviewed: &fresh}, // mastered, not due
		{Box: 0, LastReviewed: &fresh}, // corrupt, counts as box 1, fails open
		{Box: 9, LastReviewed: &fresh}, // corrupt, counts as box 5, fails open
	}

	got := Aggregate(cards, policy, now, []Outcome{})
	want := Stats{
		Total:     6,
		BoxCounts: [BoxCount]int{3, 1, 0, 0, 2},
		Due:       4,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("aggregate mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregateHistoryCounts(t *testing.T) {
	now := time.Now()
	policy := DefaultIntervalPolicy()
	reviewed := now.Add(-time.Hour)
	cards := []Card{{Box: 3, LastReviewed: &reviewed}}

	history := []Outcome{OutcomeCorrect, OutcomeCorrect, OutcomeIncorrect, Outcome("skipped"), OutcomeCorrect}
	got := Aggregate(cards, policy, now, history)
	if got.Correct != 3 {
		t.Errorf("Correct = %d, want 3", got.Correct)
	}
	if got.Incorrect != 1 {
		t.Errorf("Incorrect = %d, want 1", got.Incorrect)
	}

	// An empty but present history means zero recorded reviews, not a
	// request for the box-level fallback.
	got = Aggregate(cards, policy, now, []Outcome{})
	if got.Correct != 0 || got.Incorrect != 0 {
		t.Errorf("empty history counted (%d, %d), want (0, 0)", got.Correct, got.Incorrect)
	}
}

func TestAggregateFallbackWithoutHistory(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	policy := DefaultIntervalPolicy()
	reviewed := now.Add(-time.Hour)

	cards := []Card{
		{Box: 1},                          // never reviewed, counts as neither
		{Box: 1, LastReviewed: &reviewed}, // lapsed back to box 1
		{Box: 2, LastReviewed: &reviewed}, // promoted at least once
		{Box: 5, LastReviewed: &reviewed}, // promoted at least once
	}

	got := Aggregate(cards, policy, now, nil)
	if got.Correct != 2 {
		t.Errorf("fallback Correct = %d, want 2", got.Correct)
	}
	if got.Incorrect != 1 {
		t.Errorf("fallback Incorrect = %d, want 1", got.Incorrect)
	}
}

func TestStatsAdd(t *testing.T) {
	a := Stats{Total: 2, BoxCounts: [BoxCount]int{1, 1, 0, 0, 0}, Due: 1, Correct: 3, Incorrect: 1}
	b := Stats{Total: 3, BoxCounts: [BoxCount]int{0, 1, 1, 0, 1}, Due: 2, Correct: 5, Incorrect: 2}

	got := a.Add(b)
	want := Stats{Total: 5, BoxCounts: [BoxCount]int{1, 2, 1, 0, 1}, Due: 3, Correct: 8, Incorrect: 3}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Add mismatch (-want +got):\n%s", diff)
	}
	if a.Total != 2 || b.Total != 3 {
		t.Error("Add modified one of its operands")
	}
}

// TestSingleCardStudyScenario walks one card through a study session:
// first correct answer, waiting out the box 2 interval, then a lapse.
func TestSingleCardStudyScenario(t *testing.T) {
	policy := DefaultIntervalPolicy()
	t0 := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

	card := NewCard()
	if !IsDue(card, policy, t0) {
		t.Fatal("new card should be due immediately")
	}

	card, _ = ApplyOutcome(card, OutcomeCorrect, t0)
	if card.Box != 2 {
		t.Fatalf("after first correct answer box = %d, want 2", card.Box)
	}
	if !card.LastReviewed.Equal(t0) {
		t.Fatalf("LastReviewed = %v, want %v", card.LastReviewed, t0)
	}

	if IsDue(card, policy, t0.Add(2*24*time.Hour)) {
		t.Error("box 2 card should not be due two days after review")
	}
	if !IsDue(card, policy, t0.Add(3*24*time.Hour)) {
		t.Error("box 2 card should be due three days after review")
	}

	t1 := t0.Add(3 * 24 * time.Hour)
	card, _ = ApplyOutcome(card, OutcomeIncorrect, t1)
	if card.Box != 1 {
		t.Fatalf("after incorrect answer box = %d, want 1", card.Box)
	}

	got := Aggregate([]Card{card}, policy, t1, nil)
	want := Stats{Total: 1, BoxCounts: [BoxCount]int{1, 0, 0, 0, 0}, Due: 0, Correct: 0, Incorrect: 1}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("aggregate mismatch (-want +got):\n%s", diff)
	}
}
