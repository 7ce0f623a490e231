// Package main provides implementation for the Leitner flashcards MCP service.
package main

import (
	"github.com/danieldreier/mcp-leitner/internal/leitner"
	"github.com/danieldreier/mcp-leitner/internal/storage"
)

// CardResponse represents the response structure for get_due_card
type CardResponse struct {
	Card  storage.Card  `json:"card"`
	Stats leitner.Stats `json:"stats"`
}

// ReviewResponse represents the response structure for submit_review
type ReviewResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Card    storage.Card `json:"card"`
}

// CreateCardResponse represents the response structure for create_card
type CreateCardResponse struct {
	Card storage.Card `json:"card"`
}

// UpdateCardResponse represents the response structure for update_card
type UpdateCardResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// DeleteCardResponse represents the response structure for delete_card
type DeleteCardResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ListCardsResponse represents the response structure for list_cards
type ListCardsResponse struct {
	Cards []storage.Card `json:"cards"`
	Stats *leitner.Stats `json:"stats,omitempty"`
}

// CollectionResponse represents the response structure for
// create_collection and set_intervals
type CollectionResponse struct {
	Collection storage.Collection `json:"collection"`
}

// DeleteCollectionResponse represents the response structure for delete_collection
type DeleteCollectionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ListCollectionsResponse represents the response structure for list_collections
type ListCollectionsResponse struct {
	Collections []storage.Collection `json:"collections"`
}

// StatsResponse represents the response structure for get_stats
type StatsResponse struct {
	CollectionID string        `json:"collection_id,omitempty"`
	Stats        leitner.Stats `json:"stats"`
}

// StrugglingCard pairs a card with its miss counts for learning analysis
type StrugglingCard struct {
	Card           storage.Card `json:"card"`
	ReviewCount    int          `json:"review_count"`
	IncorrectCount int          `json:"incorrect_count"`
	MissRate       float64      `json:"miss_rate"`
}

// AnalyzeLearningResponse represents the response structure for help_analyze_learning
type AnalyzeLearningResponse struct {
	StrugglingCards []StrugglingCard `json:"struggling_cards"`
	TotalReviews    int              `json:"total_reviews"`
	Stats           leitner.Stats    `json:"stats"`
}
