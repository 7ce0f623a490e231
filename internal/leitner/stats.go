package leitner

import "time"

// Stats summarizes a set of cards at a point in time.
type Stats struct {
	Total     int           `json:"total_cards"`
	BoxCounts [BoxCount]int `json:"box_counts"`
	Due       int           `json:"due_cards"`
	Correct   int           `json:"correct"`
	Incorrect int           `json:"incorrect"`
}

// Add combines two summaries, for totals across collections.
func (s Stats) Add(other Stats) Stats {
	s.Total += other.Total
	for i := range s.BoxCounts {
		s.BoxCounts[i] += other.BoxCounts[i]
	}
	s.Due += other.Due
	s.Correct += other.Correct
	s.Incorrect += other.Incorrect
	return s
}

// Aggregate summarizes cards under a policy at now. BoxCounts buckets
// every card exactly once, clamping corrupt levels into range, and Due
// counts cards IsDue holds for. When a review history is available
// (non-nil), Correct and Incorrect count its outcomes. With no history
// they fall back to reading box levels: a card above the first box has
// answered correctly at least once, and a reviewed card sitting in the
// first box most recently answered incorrectly. An empty card set
// yields all zeros.
func Aggregate(cards []Card, policy IntervalPolicy, now time.Time, history []Outcome) Stats {
	var stats Stats
	stats.Total = len(cards)
	for _, c := range cards {
		stats.BoxCounts[c.Box.Clamp()-MinBox]++
		if IsDue(c, policy, now) {
			stats.Due++
		}
	}
	if history != nil {
		for _, o := range history {
			switch o {
			case OutcomeCorrect:
				stats.Correct++
			case OutcomeIncorrect:
				stats.Incorrect++
			}
		}
		return stats
	}
	for _, c := range cards {
		switch {
		case c.Box > MinBox:
			stats.Correct++
		case c.LastReviewed != nil:
			stats.Incorrect++
		}
	}
	return stats
}
