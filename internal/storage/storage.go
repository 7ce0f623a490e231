package storage

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/danieldreier/mcp-leitner/internal/leitner"
)

// Card represents a flashcard in storage. The embedded Leitner state
// carries the box level and last-review timestamp the scheduler works
// on; everything else is presentation data. A fresh card sits in the
// first box and has never been reviewed.
type Card struct {
	ID           string       `json:"id"`
	CollectionID string       `json:"collection_id"`
	Front        string       `json:"front"`
	Back         string       `json:"back"`
	CreatedAt    time.Time    `json:"created_at"`
	Leitner      leitner.Card `json:"leitner"`
}

// Collection groups cards that study together under one interval
// policy.
type Collection struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	CreatedAt time.Time              `json:"created_at"`
	Intervals leitner.IntervalPolicy `json:"intervals"`
}

// ReviewRecord is one entry in the append-only review history: which
// card was answered, how, when, and the box transition it produced.
type ReviewRecord struct {
	ID        string          `json:"id"`
	CardID    string          `json:"card_id"`
	Outcome   leitner.Outcome `json:"outcome"`
	Timestamp time.Time       `json:"timestamp"`
	FromBox   leitner.Box     `json:"from_box"`
	ToBox     leitner.Box     `json:"to_box"`
}

// Storage represents the storage interface for flashcards.
//
// Timestamps round-trip at millisecond precision, and a card that has
// never been reviewed keeps a nil last-review time distinct from any
// real timestamp. ListCards and ListCollections return records in
// creation order so review queues stay stable.
type Storage interface {
	// Collection operations
	CreateCollection(name string, intervals leitner.IntervalPolicy) (Collection, error)
	GetCollection(id string) (Collection, error)
	SaveCollection(col Collection) error
	DeleteCollection(id string) error
	ListCollections() ([]Collection, error)

	// Card operations
	CreateCard(collectionID, front, back string) (Card, error)
	GetCard(id string) (Card, error)
	SaveCard(card Card) error
	DeleteCard(id string) error
	ListCards(collectionID string) ([]Card, error)

	// Review history operations
	AddReview(rec ReviewRecord) error
	GetCardReviews(cardID string) ([]ReviewRecord, error)
	ListReviews(collectionID string) ([]ReviewRecord, error)

	// Lifecycle operations
	Load() error
	Save() error
	Close() error
}

// validateCard rejects cards that must not be persisted: blank text or
// a box level outside the valid range.
func validateCard(card Card) error {
	if strings.TrimSpace(card.Front) == "" {
		return &leitner.ValidationError{Field: "front", Message: "must not be empty"}
	}
	if strings.TrimSpace(card.Back) == "" {
		return &leitner.ValidationError{Field: "back", Message: "must not be empty"}
	}
	if !card.Leitner.Box.Valid() {
		return &leitner.ValidationError{
			Field:   "box",
			Message: fmt.Sprintf("must be between %d and %d, got %d", leitner.MinBox, leitner.MaxBox, card.Leitner.Box),
		}
	}
	return nil
}

// validateCollection rejects collections with blank names or interval
// policies that fail validation.
func validateCollection(col Collection) error {
	if strings.TrimSpace(col.Name) == "" {
		return &leitner.ValidationError{Field: "name", Message: "must not be empty"}
	}
	return col.Intervals.Validate()
}

// sortCards orders cards by creation time, with the ID breaking ties
// between same-millisecond cards.
func sortCards(cards []Card) {
	sort.Slice(cards, func(i, j int) bool {
		if cards[i].CreatedAt.Equal(cards[j].CreatedAt) {
			return cards[i].ID < cards[j].ID
		}
		return cards[i].CreatedAt.Before(cards[j].CreatedAt)
	})
}

// sortCollections orders collections by creation time, ID as tiebreak.
func sortCollections(cols []Collection) {
	sort.Slice(cols, func(i, j int) bool {
		if cols[i].CreatedAt.Equal(cols[j].CreatedAt) {
			return cols[i].ID < cols[j].ID
		}
		return cols[i].CreatedAt.Before(cols[j].CreatedAt)
	})
}
