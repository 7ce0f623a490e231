package main

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danieldreier/mcp-leitner/internal/flashcards"
	"github.com/danieldreier/mcp-leitner/internal/leitner"
	"github.com/danieldreier/mcp-leitner/internal/storage"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// setupHandlerTest builds a service backed by a temporary file and the
// context carrying it, mirroring how main wires handlers.
func setupHandlerTest(t *testing.T) (context.Context, *flashcards.Service) {
	t.Helper()

	filePath := filepath.Join(t.TempDir(), "handler_test_flashcards.json")
	store := storage.NewFileStorage(filePath)
	require.NoError(t, store.Load(), "Failed to load storage")

	// Nop logger keeps test output readable
	service := flashcards.NewServiceWithLogger(store, zap.NewNop())
	ctx := context.WithValue(context.Background(), "service", service)
	return ctx, service
}

type toolHandler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

// callTool invokes a handler the way the MCP server does and returns the
// text payload of the first content entry.
func callTool(t *testing.T, ctx context.Context, handler toolHandler, name string, args map[string]interface{}) string {
	t.Helper()

	request := mcp.CallToolRequest{}
	request.Params.Name = name
	request.Params.Arguments = args

	result, err := handler(ctx, request)
	require.NoError(t, err, "Handler %s returned unexpected error", name)
	require.NotEmpty(t, result.Content, "Handler %s returned no content", name)

	textContent, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "Expected text content from handler %s", name)
	return textContent.Text
}

func TestHandleServiceMissing(t *testing.T) {
	// A context without the service should produce an error result, not
	// a panic
	ctx := context.Background()

	text := callTool(t, ctx, handleGetDueCard, "get_due_card", nil)
	assert.Equal(t, "Error: Service not available", text)

	text = callTool(t, ctx, handleListCollections, "list_collections", nil)
	assert.Equal(t, "Service not available", text)
}

func TestHandleCreateCollection(t *testing.T) {
	ctx, service := setupHandlerTest(t)

	text := callTool(t, ctx, handleCreateCollection, "create_collection", map[string]interface{}{
		"name": "Spanish Vocabulary",
	})
	var created CollectionResponse
	require.NoError(t, json.Unmarshal([]byte(text), &created), "Failed to parse create_collection response")
	assert.NotEmpty(t, created.Collection.ID, "Expected collection ID to be set")
	assert.Equal(t, "Spanish Vocabulary", created.Collection.Name)
	assert.Equal(t, leitner.DefaultIntervalPolicy(), created.Collection.Intervals,
		"Omitted intervals should fall back to the default schedule")

	text = callTool(t, ctx, handleCreateCollection, "create_collection", map[string]interface{}{
		"name":      "Chemistry Basics",
		"intervals": []interface{}{2.0, 4.0, 9.0, 20.0, 45.0},
	})
	var custom CollectionResponse
	require.NoError(t, json.Unmarshal([]byte(text), &custom), "Failed to parse create_collection response")
	assert.Equal(t, leitner.IntervalPolicy{2, 4, 9, 20, 45}, custom.Collection.Intervals)

	collections, err := service.ListCollections()
	require.NoError(t, err, "Failed to list collections")
	assert.Len(t, collections, 2, "Expected both collections to be persisted")
}

func TestHandleCreateCollectionValidation(t *testing.T) {
	ctx, service := setupHandlerTest(t)

	text := callTool(t, ctx, handleCreateCollection, "create_collection", map[string]interface{}{})
	assert.Equal(t, "Missing required parameter: name", text)

	// Wrong number of values
	text = callTool(t, ctx, handleCreateCollection, "create_collection", map[string]interface{}{
		"name":      "Short Schedule",
		"intervals": []interface{}{1.0, 3.0, 7.0},
	})
	assert.Contains(t, text, "Invalid intervals")
	assert.Contains(t, text, "exactly 5 values, got 3")

	// Wrong element type
	text = callTool(t, ctx, handleCreateCollection, "create_collection", map[string]interface{}{
		"name":      "Typed Schedule",
		"intervals": []interface{}{1.0, "three", 7.0, 14.0, 30.0},
	})
	assert.Contains(t, text, "intervals[1] must be a number")

	// Values that fail schedule validation
	text = callTool(t, ctx, handleCreateCollection, "create_collection", map[string]interface{}{
		"name":      "Flat Schedule",
		"intervals": []interface{}{1.0, 1.0, 7.0, 14.0, 30.0},
	})
	assert.Contains(t, text, "Error creating collection")
	assert.Contains(t, text, "intervals[1]")

	collections, err := service.ListCollections()
	require.NoError(t, err, "Failed to list collections")
	assert.Empty(t, collections, "Rejected collections must not be persisted")
}

func TestHandleCreateCard(t *testing.T) {
	ctx, service := setupHandlerTest(t)

	collection, err := service.CreateCollection("Geography", nil)
	require.NoError(t, err, "Failed to create collection")

	text := callTool(t, ctx, handleCreateCard, "create_card", map[string]interface{}{
		"collection_id": collection.ID,
		"front":         "What is the capital of France?",
		"back":          "Paris",
	})
	var response CreateCardResponse
	require.NoError(t, json.Unmarshal([]byte(text), &response), "Failed to parse create_card response")
	assert.NotEmpty(t, response.Card.ID, "Expected card ID to be set")
	assert.Equal(t, collection.ID, response.Card.CollectionID)
	assert.Equal(t, "What is the capital of France?", response.Card.Front)
	assert.Equal(t, "Paris", response.Card.Back)
	assert.Equal(t, leitner.Box(1), response.Card.Leitner.Box, "New cards start in box 1")
	assert.Nil(t, response.Card.Leitner.LastReviewed, "New cards have never been reviewed")

	// Missing parameters are reported by name
	text = callTool(t, ctx, handleCreateCard, "create_card", map[string]interface{}{
		"front": "Orphan front",
		"back":  "Orphan back",
	})
	assert.Equal(t, "Missing required parameter: collection_id", text)

	text = callTool(t, ctx, handleCreateCard, "create_card", map[string]interface{}{
		"collection_id": collection.ID,
		"back":          "No front",
	})
	assert.Equal(t, "Missing required parameter: front", text)

	// Unknown collection
	text = callTool(t, ctx, handleCreateCard, "create_card", map[string]interface{}{
		"collection_id": "no-such-collection",
		"front":         "front",
		"back":          "back",
	})
	assert.Contains(t, text, "Error creating card")
}

func TestHandleGetDueCardFlow(t *testing.T) {
	ctx, service := setupHandlerTest(t)

	collection, err := service.CreateCollection("History", nil)
	require.NoError(t, err, "Failed to create collection")

	first, err := service.CreateCard(collection.ID, "First front", "First back")
	require.NoError(t, err, "Failed to create first card")
	// Creation timestamps have millisecond precision; keep them distinct
	// so the queue order is deterministic.
	time.Sleep(2 * time.Millisecond)
	second, err := service.CreateCard(collection.ID, "Second front", "Second back")
	require.NoError(t, err, "Failed to create second card")

	text := callTool(t, ctx, handleGetDueCard, "get_due_card", map[string]interface{}{
		"collection_id": collection.ID,
	})
	var response CardResponse
	require.NoError(t, json.Unmarshal([]byte(text), &response), "Failed to parse get_due_card response")
	assert.Equal(t, first.ID, response.Card.ID, "Oldest card should be served first")
	assert.Equal(t, 2, response.Stats.Total)
	assert.Equal(t, 2, response.Stats.Due)

	// Answer the first card; the second should come up next
	callTool(t, ctx, handleSubmitReview, "submit_review", map[string]interface{}{
		"card_id": first.ID,
		"outcome": "correct",
	})
	text = callTool(t, ctx, handleGetDueCard, "get_due_card", map[string]interface{}{
		"collection_id": collection.ID,
	})
	require.NoError(t, json.Unmarshal([]byte(text), &response), "Failed to parse get_due_card response")
	assert.Equal(t, second.ID, response.Card.ID)

	// Answer the second card; nothing is due anymore, but stats still
	// come back alongside the error message
	callTool(t, ctx, handleSubmitReview, "submit_review", map[string]interface{}{
		"card_id": second.ID,
		"outcome": "correct",
	})
	text = callTool(t, ctx, handleGetDueCard, "get_due_card", map[string]interface{}{
		"collection_id": collection.ID,
	})
	var errResponse struct {
		Error string        `json:"error"`
		Stats leitner.Stats `json:"stats"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &errResponse), "Failed to parse no-cards-due response")
	assert.Equal(t, "No cards due for review in collection "+collection.ID, errResponse.Error)
	assert.Equal(t, 2, errResponse.Stats.Total)
	assert.Equal(t, 0, errResponse.Stats.Due)
	assert.Equal(t, 2, errResponse.Stats.BoxCounts[1], "Both cards should have moved to box 2")
}

func TestHandleSubmitReview(t *testing.T) {
	ctx, service := setupHandlerTest(t)

	collection, err := service.CreateCollection("Biology", nil)
	require.NoError(t, err, "Failed to create collection")
	card, err := service.CreateCard(collection.ID, "Powerhouse of the cell?", "Mitochondria")
	require.NoError(t, err, "Failed to create card")

	text := callTool(t, ctx, handleSubmitReview, "submit_review", map[string]interface{}{
		"card_id": card.ID,
		"outcome": "correct",
	})
	var response ReviewResponse
	require.NoError(t, json.Unmarshal([]byte(text), &response), "Failed to parse submit_review response")
	assert.True(t, response.Success)
	assert.Contains(t, response.Message, card.ID)
	assert.Equal(t, leitner.Box(2), response.Card.Leitner.Box, "Correct answer should promote the card")
	require.NotNil(t, response.Card.Leitner.LastReviewed, "Review should stamp the card")

	text = callTool(t, ctx, handleSubmitReview, "submit_review", map[string]interface{}{
		"card_id": card.ID,
		"outcome": "incorrect",
	})
	require.NoError(t, json.Unmarshal([]byte(text), &response), "Failed to parse submit_review response")
	assert.Equal(t, leitner.Box(1), response.Card.Leitner.Box, "Incorrect answer should reset the card to box 1")
}

func TestHandleSubmitReviewValidation(t *testing.T) {
	ctx, service := setupHandlerTest(t)

	collection, err := service.CreateCollection("Physics", nil)
	require.NoError(t, err, "Failed to create collection")
	card, err := service.CreateCard(collection.ID, "Unit of force?", "Newton")
	require.NoError(t, err, "Failed to create card")

	text := callTool(t, ctx, handleSubmitReview, "submit_review", map[string]interface{}{
		"outcome": "correct",
	})
	assert.Equal(t, "Missing required parameter: card_id", text)

	text = callTool(t, ctx, handleSubmitReview, "submit_review", map[string]interface{}{
		"card_id": card.ID,
	})
	assert.Equal(t, "Missing required parameter: outcome", text)

	// Ratings from other systems are not valid outcomes
	text = callTool(t, ctx, handleSubmitReview, "submit_review", map[string]interface{}{
		"card_id": card.ID,
		"outcome": "easy",
	})
	assert.Contains(t, text, "invalid outcome")

	text = callTool(t, ctx, handleSubmitReview, "submit_review", map[string]interface{}{
		"card_id": "no-such-card",
		"outcome": "correct",
	})
	assert.Contains(t, text, "Error submitting review")

	// None of the rejected reviews should have touched the card
	stored, err := service.GetCard(card.ID)
	require.NoError(t, err, "Failed to get card")
	assert.Equal(t, leitner.Box(1), stored.Leitner.Box)
	assert.Nil(t, stored.Leitner.LastReviewed)
}

func TestHandleUpdateCard(t *testing.T) {
	ctx, service := setupHandlerTest(t)

	collection, err := service.CreateCollection("Latin", nil)
	require.NoError(t, err, "Failed to create collection")
	card, err := service.CreateCard(collection.ID, "carpe diem", "seize the day")
	require.NoError(t, err, "Failed to create card")

	// Move the card out of box 1 so we can see that edits leave the
	// schedule alone
	reviewed, err := service.SubmitReview(card.ID, leitner.OutcomeCorrect)
	require.NoError(t, err, "Failed to submit review")

	text := callTool(t, ctx, handleUpdateCard, "update_card", map[string]interface{}{
		"card_id": card.ID,
		"front":   "carpe diem (Horace)",
	})
	var response UpdateCardResponse
	require.NoError(t, json.Unmarshal([]byte(text), &response), "Failed to parse update_card response")
	assert.True(t, response.Success)
	assert.Contains(t, response.Message, "carpe diem (Horace)")

	stored, err := service.GetCard(card.ID)
	require.NoError(t, err, "Failed to get card")
	assert.Equal(t, "carpe diem (Horace)", stored.Front)
	assert.Equal(t, "seize the day", stored.Back, "Omitted back should stay unchanged")
	assert.Equal(t, reviewed.Leitner.Box, stored.Leitner.Box, "Editing text must not change the box")
	require.NotNil(t, stored.Leitner.LastReviewed)
	assert.True(t, stored.Leitner.LastReviewed.Equal(*reviewed.Leitner.LastReviewed),
		"Editing text must not change the review timestamp")

	text = callTool(t, ctx, handleUpdateCard, "update_card", map[string]interface{}{
		"front": "no card id",
	})
	assert.Equal(t, "Missing required parameter: card_id", text)

	text = callTool(t, ctx, handleUpdateCard, "update_card", map[string]interface{}{
		"card_id": "no-such-card",
		"front":   "ghost",
	})
	assert.Contains(t, text, "Error updating card")
}

func TestHandleDeleteCard(t *testing.T) {
	ctx, service := setupHandlerTest(t)

	collection, err := service.CreateCollection("Music", nil)
	require.NoError(t, err, "Failed to create collection")
	card, err := service.CreateCard(collection.ID, "Lines of the treble staff?", "EGBDF")
	require.NoError(t, err, "Failed to create card")

	text := callTool(t, ctx, handleDeleteCard, "delete_card", map[string]interface{}{
		"card_id": card.ID,
	})
	var response DeleteCardResponse
	require.NoError(t, json.Unmarshal([]byte(text), &response), "Failed to parse delete_card response")
	assert.True(t, response.Success)

	_, err = service.GetCard(card.ID)
	assert.Error(t, err, "Deleted card should not be retrievable")

	// Deleting again reports the missing card instead of succeeding
	text = callTool(t, ctx, handleDeleteCard, "delete_card", map[string]interface{}{
		"card_id": card.ID,
	})
	assert.Contains(t, text, "Card not found")
}

func TestHandleListCards(t *testing.T) {
	ctx, service := setupHandlerTest(t)

	spanish, err := service.CreateCollection("Spanish", nil)
	require.NoError(t, err, "Failed to create collection")
	french, err := service.CreateCollection("French", nil)
	require.NoError(t, err, "Failed to create collection")

	_, err = service.CreateCard(spanish.ID, "hola", "hello")
	require.NoError(t, err, "Failed to create card")
	_, err = service.CreateCard(spanish.ID, "adiós", "goodbye")
	require.NoError(t, err, "Failed to create card")
	_, err = service.CreateCard(french.ID, "bonjour", "hello")
	require.NoError(t, err, "Failed to create card")

	text := callTool(t, ctx, handleListCards, "list_cards", map[string]interface{}{
		"collection_id": spanish.ID,
		"include_stats": true,
	})
	var response ListCardsResponse
	require.NoError(t, json.Unmarshal([]byte(text), &response), "Failed to parse list_cards response")
	assert.Len(t, response.Cards, 2, "Expected only the Spanish cards")
	require.NotNil(t, response.Stats, "Expected stats to be included")
	assert.Equal(t, 2, response.Stats.Total)

	// Without include_stats the stats key is omitted entirely
	text = callTool(t, ctx, handleListCards, "list_cards", map[string]interface{}{})
	require.NoError(t, json.Unmarshal([]byte(text), &response), "Failed to parse list_cards response")
	assert.Len(t, response.Cards, 3, "Expected cards from every collection")
	assert.False(t, strings.Contains(text, `"stats"`), "Stats should be omitted when not requested")
}

func TestHandleSetIntervals(t *testing.T) {
	ctx, service := setupHandlerTest(t)

	collection, err := service.CreateCollection("Astronomy", nil)
	require.NoError(t, err, "Failed to create collection")

	text := callTool(t, ctx, handleSetIntervals, "set_intervals", map[string]interface{}{
		"collection_id": collection.ID,
		"intervals":     []interface{}{1.0, 2.0, 4.0, 8.0, 16.0},
	})
	var response CollectionResponse
	require.NoError(t, json.Unmarshal([]byte(text), &response), "Failed to parse set_intervals response")
	assert.Equal(t, leitner.IntervalPolicy{1, 2, 4, 8, 16}, response.Collection.Intervals)

	stored, err := service.Storage.GetCollection(collection.ID)
	require.NoError(t, err, "Failed to read back collection")
	assert.Equal(t, leitner.IntervalPolicy{1, 2, 4, 8, 16}, stored.Intervals)

	// Invalid schedules never reach storage
	text = callTool(t, ctx, handleSetIntervals, "set_intervals", map[string]interface{}{
		"collection_id": collection.ID,
		"intervals":     []interface{}{0.0, 2.0, 4.0, 8.0, 16.0},
	})
	assert.Contains(t, text, "Error setting intervals")
	assert.Contains(t, text, "intervals[0]")

	stored, err = service.Storage.GetCollection(collection.ID)
	require.NoError(t, err, "Failed to read back collection")
	assert.Equal(t, leitner.IntervalPolicy{1, 2, 4, 8, 16}, stored.Intervals,
		"Rejected schedule must leave the stored one unchanged")

	text = callTool(t, ctx, handleSetIntervals, "set_intervals", map[string]interface{}{
		"intervals": []interface{}{1.0, 2.0, 4.0, 8.0, 16.0},
	})
	assert.Equal(t, "Missing required parameter: collection_id", text)

	text = callTool(t, ctx, handleSetIntervals, "set_intervals", map[string]interface{}{
		"collection_id": collection.ID,
	})
	assert.Equal(t, "Missing required parameter: intervals", text)
}

func TestHandleDeleteCollection(t *testing.T) {
	ctx, service := setupHandlerTest(t)

	doomed, err := service.CreateCollection("Doomed", nil)
	require.NoError(t, err, "Failed to create collection")
	card, err := service.CreateCard(doomed.ID, "front", "back")
	require.NoError(t, err, "Failed to create card")

	text := callTool(t, ctx, handleDeleteCollection, "delete_collection", map[string]interface{}{
		"collection_id": doomed.ID,
	})
	var response DeleteCollectionResponse
	require.NoError(t, json.Unmarshal([]byte(text), &response), "Failed to parse delete_collection response")
	assert.True(t, response.Success)

	_, err = service.GetCard(card.ID)
	assert.Error(t, err, "Cards should be deleted along with their collection")

	text = callTool(t, ctx, handleDeleteCollection, "delete_collection", map[string]interface{}{
		"collection_id": doomed.ID,
	})
	assert.Contains(t, text, "Error deleting collection")

	text = callTool(t, ctx, handleDeleteCollection, "delete_collection", map[string]interface{}{})
	assert.Equal(t, "Missing required parameter: collection_id", text)
}

func TestHandleGetStats(t *testing.T) {
	ctx, service := setupHandlerTest(t)

	collection, err := service.CreateCollection("Algebra", nil)
	require.NoError(t, err, "Failed to create collection")
	card, err := service.CreateCard(collection.ID, "x + 2 = 5, x = ?", "3")
	require.NoError(t, err, "Failed to create card")

	_, err = service.SubmitReview(card.ID, leitner.OutcomeCorrect)
	require.NoError(t, err, "Failed to submit review")
	_, err = service.SubmitReview(card.ID, leitner.OutcomeIncorrect)
	require.NoError(t, err, "Failed to submit review")

	text := callTool(t, ctx, handleGetStats, "get_stats", map[string]interface{}{
		"collection_id": collection.ID,
	})
	var response StatsResponse
	require.NoError(t, json.Unmarshal([]byte(text), &response), "Failed to parse get_stats response")
	assert.Equal(t, collection.ID, response.CollectionID)
	assert.Equal(t, 1, response.Stats.Total)
	assert.Equal(t, 1, response.Stats.Correct)
	assert.Equal(t, 1, response.Stats.Incorrect)
	assert.Equal(t, 1, response.Stats.BoxCounts[0], "Card should be back in box 1")

	// Omitting collection_id aggregates everything
	text = callTool(t, ctx, handleGetStats, "get_stats", map[string]interface{}{})
	response = StatsResponse{}
	require.NoError(t, json.Unmarshal([]byte(text), &response), "Failed to parse get_stats response")
	assert.Empty(t, response.CollectionID)
	assert.Equal(t, 1, response.Stats.Total)

	text = callTool(t, ctx, handleGetStats, "get_stats", map[string]interface{}{
		"collection_id": "no-such-collection",
	})
	assert.Contains(t, text, "Error calculating stats")
}

func TestHandleHelpAnalyzeLearning(t *testing.T) {
	ctx, service := setupHandlerTest(t)

	collection, err := service.CreateCollection("Vocabulary", nil)
	require.NoError(t, err, "Failed to create collection")

	hard, err := service.CreateCard(collection.ID, "ephemeral", "lasting a very short time")
	require.NoError(t, err, "Failed to create card")
	easy, err := service.CreateCard(collection.ID, "happy", "feeling joy")
	require.NoError(t, err, "Failed to create card")
	_, err = service.CreateCard(collection.ID, "untouched", "never reviewed")
	require.NoError(t, err, "Failed to create card")

	// Miss the hard card twice out of three attempts
	_, err = service.SubmitReview(hard.ID, leitner.OutcomeIncorrect)
	require.NoError(t, err, "Failed to submit review")
	_, err = service.SubmitReview(hard.ID, leitner.OutcomeIncorrect)
	require.NoError(t, err, "Failed to submit review")
	_, err = service.SubmitReview(hard.ID, leitner.OutcomeCorrect)
	require.NoError(t, err, "Failed to submit review")

	// The easy card is always answered correctly
	_, err = service.SubmitReview(easy.ID, leitner.OutcomeCorrect)
	require.NoError(t, err, "Failed to submit review")
	_, err = service.SubmitReview(easy.ID, leitner.OutcomeCorrect)
	require.NoError(t, err, "Failed to submit review")

	text := callTool(t, ctx, handleHelpAnalyzeLearning, "help_analyze_learning", map[string]interface{}{
		"collection_id": collection.ID,
	})
	var response AnalyzeLearningResponse
	require.NoError(t, json.Unmarshal([]byte(text), &response), "Failed to parse help_analyze_learning response")

	assert.Equal(t, 5, response.TotalReviews)
	require.Len(t, response.StrugglingCards, 1, "Only the frequently missed card should be flagged")
	assert.Equal(t, hard.ID, response.StrugglingCards[0].Card.ID)
	assert.Equal(t, 3, response.StrugglingCards[0].ReviewCount)
	assert.Equal(t, 2, response.StrugglingCards[0].IncorrectCount)
	assert.InDelta(t, 2.0/3.0, response.StrugglingCards[0].MissRate, 0.0001)
	assert.Equal(t, 3, response.Stats.Total)
}

func TestHandleHelpAnalyzeLearningEmpty(t *testing.T) {
	ctx, service := setupHandlerTest(t)

	_, err := service.CreateCollection("Empty", nil)
	require.NoError(t, err, "Failed to create collection")

	text := callTool(t, ctx, handleHelpAnalyzeLearning, "help_analyze_learning", map[string]interface{}{})
	var response AnalyzeLearningResponse
	require.NoError(t, json.Unmarshal([]byte(text), &response), "Failed to parse help_analyze_learning response")
	assert.Empty(t, response.StrugglingCards)
	assert.Zero(t, response.TotalReviews)
	assert.Zero(t, response.Stats.Total)
}
