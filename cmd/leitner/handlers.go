// Package main provides implementation for the Leitner flashcards MCP service.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/danieldreier/mcp-leitner/internal/flashcards"
	"github.com/danieldreier/mcp-leitner/internal/leitner"
	"github.com/mark3labs/mcp-go/mcp"
)

// parseIntervals converts a JSON array argument into a review schedule.
// Exactly five positive, strictly increasing day counts are expected;
// value validation happens when the schedule is persisted.
func parseIntervals(raw []interface{}) (leitner.IntervalPolicy, error) {
	var intervals leitner.IntervalPolicy
	if len(raw) != leitner.BoxCount {
		return intervals, fmt.Errorf("intervals must contain exactly %d values, got %d", leitner.BoxCount, len(raw))
	}
	for i, value := range raw {
		days, ok := value.(float64)
		if !ok {
			return intervals, fmt.Errorf("intervals[%d] must be a number, got %T", i, value)
		}
		intervals[i] = int(days)
	}
	return intervals, nil
}

// handleGetDueCard handles the get_due_card tool request by retrieving
// the next flashcard due for review, optionally restricted to one
// collection. It returns the card along with current review statistics.
// If no cards are due, it returns a friendly error message that still
// carries the statistics.
func handleGetDueCard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// Get the service from context
	s, ok := ctx.Value("service").(*flashcards.Service)
	if !ok || s == nil {
		return mcp.NewToolResultText("Error: Service not available"), nil
	}

	// Extract optional parameters
	collectionID, _ := request.Params.Arguments["collection_id"].(string)

	card, stats, err := s.GetDueCard(collectionID)
	if err != nil {
		// Stats are calculated even when nothing is due, so error
		// responses still let the client report progress.
		type ErrorResponseWithStats struct {
			Error string        `json:"error"`
			Stats leitner.Stats `json:"stats"`
		}
		errorMsg := fmt.Sprintf("Error getting due card: %v", err)
		if strings.Contains(err.Error(), "no cards due for review") {
			if collectionID != "" {
				errorMsg = fmt.Sprintf("No cards due for review in collection %s", collectionID)
			} else {
				errorMsg = "No cards due for review"
			}
		}
		errorResponse := ErrorResponseWithStats{
			Error: errorMsg,
			Stats: stats,
		}
		jsonBytes, marshalErr := json.MarshalIndent(errorResponse, "", "  ")
		if marshalErr != nil {
			return mcp.NewToolResultText(fmt.Sprintf(`{"error": "%s", "stats_error": "%v"}`, errorMsg, marshalErr)), nil
		}
		return mcp.NewToolResultText(string(jsonBytes)), nil
	}

	response := CardResponse{
		Card:  card,
		Stats: stats,
	}

	jsonBytes, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		return nil, err
	}

	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// handleSubmitReview handles the submit_review tool request by recording
// whether the student answered a card correctly. Correct answers promote
// the card one box; incorrect answers send it back to box 1.
func handleSubmitReview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// Extract required parameters
	cardID, ok := request.Params.Arguments["card_id"].(string)
	if !ok {
		return mcp.NewToolResultText("Missing required parameter: card_id"), nil
	}

	outcomeStr, ok := request.Params.Arguments["outcome"].(string)
	if !ok {
		return mcp.NewToolResultText("Missing required parameter: outcome"), nil
	}
	outcome, err := leitner.ParseOutcome(outcomeStr)
	if err != nil {
		return mcp.NewToolResultText(fmt.Sprintf(`{"error": "%v"}`, err)), nil
	}

	// Get the service from context
	s, ok := ctx.Value("service").(*flashcards.Service)
	if !ok || s == nil {
		return mcp.NewToolResultText("Error: Service not available"), nil
	}

	updatedCard, err := s.SubmitReview(cardID, outcome)
	if err != nil {
		return mcp.NewToolResultText(fmt.Sprintf(`{"error": "Error submitting review: %v"}`, err)), nil
	}

	response := ReviewResponse{
		Success: true,
		Message: "Review submitted successfully for card " + cardID,
		Card:    updatedCard,
	}

	jsonBytes, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		return nil, err
	}

	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// handleCreateCard handles the create_card tool request by creating a
// new flashcard in a collection. New cards start in box 1 and are due
// immediately.
func handleCreateCard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// Extract required parameters
	collectionID, ok := request.Params.Arguments["collection_id"].(string)
	if !ok {
		return mcp.NewToolResultText("Missing required parameter: collection_id"), nil
	}

	front, ok := request.Params.Arguments["front"].(string)
	if !ok {
		return mcp.NewToolResultText("Missing required parameter: front"), nil
	}

	back, ok := request.Params.Arguments["back"].(string)
	if !ok {
		return mcp.NewToolResultText("Missing required parameter: back"), nil
	}

	// Get the service from context
	s, ok := ctx.Value("service").(*flashcards.Service)
	if !ok || s == nil {
		return mcp.NewToolResultText("Error: Service not available"), nil
	}

	newCard, err := s.CreateCard(collectionID, front, back)
	if err != nil {
		return mcp.NewToolResultText(fmt.Sprintf(`{"error": "Error creating card: %v"}`, err)), nil
	}

	response := CreateCardResponse{
		Card: newCard,
	}

	jsonBytes, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		return nil, err
	}

	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// handleUpdateCard handles the update_card tool request by rewriting a
// card's text. Only provided fields are changed; the card's box and
// review timestamp are never touched by an edit.
func handleUpdateCard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// Extract required parameter
	cardID, ok := request.Params.Arguments["card_id"].(string)
	if !ok {
		return mcp.NewToolResultText("Missing required parameter: card_id"), nil
	}

	// Extract optional parameters; absent fields stay unchanged
	var front, back *string
	if value, ok := request.Params.Arguments["front"].(string); ok {
		front = &value
	}
	if value, ok := request.Params.Arguments["back"].(string); ok {
		back = &value
	}

	// Get the service from context
	s, ok := ctx.Value("service").(*flashcards.Service)
	if !ok || s == nil {
		return mcp.NewToolResultText("Error: Service not available"), nil
	}

	updatedCard, err := s.UpdateCard(cardID, front, back)
	if err != nil {
		return mcp.NewToolResultText(fmt.Sprintf(`{"error": "Error updating card: %v"}`, err)), nil
	}

	response := UpdateCardResponse{
		Success: true,
		Message: fmt.Sprintf("Card %s updated successfully - Front: %s, Back: %s",
			cardID, updatedCard.Front, updatedCard.Back),
	}

	jsonBytes, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		return nil, err
	}

	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// handleDeleteCard handles the delete_card tool request by removing a
// flashcard and its review history. It first verifies the card exists
// before attempting deletion.
func handleDeleteCard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// Extract required parameter
	cardID, ok := request.Params.Arguments["card_id"].(string)
	if !ok {
		return mcp.NewToolResultText("Missing required parameter: card_id"), nil
	}

	// Get the service from context
	s, ok := ctx.Value("service").(*flashcards.Service)
	if !ok || s == nil {
		return mcp.NewToolResultText("Error: Service not available"), nil
	}

	// First check if the card exists
	if _, err := s.GetCard(cardID); err != nil {
		return mcp.NewToolResultText(fmt.Sprintf(`{"error": "Card not found: %v"}`, err)), nil
	}

	if err := s.DeleteCard(cardID); err != nil {
		return mcp.NewToolResultText(fmt.Sprintf(`{"error": "Error deleting card: %v"}`, err)), nil
	}

	response := DeleteCardResponse{
		Success: true,
		Message: fmt.Sprintf("Card %s was successfully deleted", cardID),
	}

	jsonBytes, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		return nil, err
	}

	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// handleListCards handles the list_cards tool request by retrieving all
// flashcards, optionally restricted to one collection. It can also
// include statistics for the same scope if requested.
func handleListCards(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// Extract optional parameters
	collectionID, _ := request.Params.Arguments["collection_id"].(string)

	includeStats := false
	if includeStatsVal, ok := request.Params.Arguments["include_stats"].(bool); ok {
		includeStats = includeStatsVal
	}

	// Get the service from context
	s, ok := ctx.Value("service").(*flashcards.Service)
	if !ok || s == nil {
		return mcp.NewToolResultText("Error: Service not available"), nil
	}

	cards, stats, err := s.ListCards(collectionID, includeStats)
	if err != nil {
		return mcp.NewToolResultText(fmt.Sprintf(`{"error": "Error listing cards: %v"}`, err)), nil
	}

	response := ListCardsResponse{
		Cards: cards,
	}
	if includeStats {
		response.Stats = &stats
	}

	jsonBytes, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		return nil, err
	}

	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// handleCreateCollection handles the create_collection tool request.
// Omitting the intervals argument selects the default 1/3/7/14/30
// schedule.
func handleCreateCollection(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// Get the service from context
	s, ok := ctx.Value("service").(*flashcards.Service)
	if !ok || s == nil {
		return mcp.NewToolResultError("Service not available"), nil
	}

	name, ok := request.Params.Arguments["name"].(string)
	if !ok {
		return mcp.NewToolResultError("Missing required parameter: name"), nil
	}

	var intervals *leitner.IntervalPolicy
	if raw, ok := request.Params.Arguments["intervals"].([]interface{}); ok {
		parsed, err := parseIntervals(raw)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid intervals: %v", err)), nil
		}
		intervals = &parsed
	}

	collection, err := s.CreateCollection(name, intervals)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error creating collection: %v", err)), nil
	}

	response := CollectionResponse{
		Collection: collection,
	}

	jsonBytes, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		return nil, err
	}

	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// handleSetIntervals handles the set_intervals tool request by replacing
// a collection's review schedule. Schedules must be five positive,
// strictly increasing day counts; anything else is rejected before it is
// persisted.
func handleSetIntervals(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// Get the service from context
	s, ok := ctx.Value("service").(*flashcards.Service)
	if !ok || s == nil {
		return mcp.NewToolResultError("Service not available"), nil
	}

	collectionID, ok := request.Params.Arguments["collection_id"].(string)
	if !ok {
		return mcp.NewToolResultError("Missing required parameter: collection_id"), nil
	}

	raw, ok := request.Params.Arguments["intervals"].([]interface{})
	if !ok {
		return mcp.NewToolResultError("Missing required parameter: intervals"), nil
	}
	intervals, err := parseIntervals(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid intervals: %v", err)), nil
	}

	collection, err := s.SetCollectionIntervals(collectionID, intervals)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error setting intervals: %v", err)), nil
	}

	response := CollectionResponse{
		Collection: collection,
	}

	jsonBytes, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		return nil, err
	}

	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// handleDeleteCollection handles the delete_collection tool request.
// Deleting a collection also removes its cards and their review history.
func handleDeleteCollection(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// Get the service from context
	s, ok := ctx.Value("service").(*flashcards.Service)
	if !ok || s == nil {
		return mcp.NewToolResultError("Service not available"), nil
	}

	collectionID, ok := request.Params.Arguments["collection_id"].(string)
	if !ok {
		return mcp.NewToolResultError("Missing required parameter: collection_id"), nil
	}

	if err := s.DeleteCollection(collectionID); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error deleting collection: %v", err)), nil
	}

	response := DeleteCollectionResponse{
		Success: true,
		Message: fmt.Sprintf("Collection %s and all of its cards were deleted", collectionID),
	}

	jsonBytes, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		return nil, err
	}

	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// handleListCollections handles the list_collections tool request.
func handleListCollections(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// Get the service from context
	s, ok := ctx.Value("service").(*flashcards.Service)
	if !ok || s == nil {
		return mcp.NewToolResultError("Service not available"), nil
	}

	collections, err := s.ListCollections()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error listing collections: %v", err)), nil
	}

	response := ListCollectionsResponse{
		Collections: collections,
	}

	jsonBytes, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		return nil, err
	}

	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// handleGetStats handles the get_stats tool request. An empty or absent
// collection_id aggregates over every collection.
func handleGetStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// Get the service from context
	s, ok := ctx.Value("service").(*flashcards.Service)
	if !ok || s == nil {
		return mcp.NewToolResultError("Service not available"), nil
	}

	collectionID, _ := request.Params.Arguments["collection_id"].(string)

	stats, err := s.CollectionStats(collectionID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error calculating stats: %v", err)), nil
	}

	response := StatsResponse{
		CollectionID: collectionID,
		Stats:        stats,
	}

	jsonBytes, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		return nil, err
	}

	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// handleHelpAnalyzeLearning analyzes the student's learning progress by
// identifying frequently missed cards and providing data that assists
// the LLM in making personalized learning recommendations.
func handleHelpAnalyzeLearning(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// Get the service from context
	s, ok := ctx.Value("service").(*flashcards.Service)
	if !ok || s == nil {
		return mcp.NewToolResultText("Error: Service not available"), nil
	}

	// Extract optional parameters
	collectionID, _ := request.Params.Arguments["collection_id"].(string)

	cards, _, err := s.ListCards(collectionID, false)
	if err != nil {
		return mcp.NewToolResultText(fmt.Sprintf(`{"error": "Error listing cards: %v"}`, err)), nil
	}

	stats, err := s.CollectionStats(collectionID)
	if err != nil {
		return mcp.NewToolResultText(fmt.Sprintf(`{"error": "Error calculating stats: %v"}`, err)), nil
	}

	// Analyze each card's review history to find difficult cards
	var analyzed []StrugglingCard
	totalReviews := 0
	for _, card := range cards {
		records, err := s.Storage.GetCardReviews(card.ID)
		if err != nil {
			continue // Skip this card if reviews can't be retrieved
		}
		if len(records) == 0 {
			continue
		}

		incorrect := 0
		for _, record := range records {
			if record.Outcome == leitner.OutcomeIncorrect {
				incorrect++
			}
		}
		totalReviews += len(records)

		analyzed = append(analyzed, StrugglingCard{
			Card:           card,
			ReviewCount:    len(records),
			IncorrectCount: incorrect,
			MissRate:       float64(incorrect) / float64(len(records)),
		})
	}

	// Sort cards by miss rate (highest first)
	sort.Slice(analyzed, func(i, j int) bool {
		if analyzed[i].MissRate != analyzed[j].MissRate {
			return analyzed[i].MissRate > analyzed[j].MissRate
		}
		return analyzed[i].IncorrectCount > analyzed[j].IncorrectCount
	})

	// Keep cards missed at least half the time, capped at the 10 worst
	strugglingCards := []StrugglingCard{}
	for _, analysis := range analyzed {
		if analysis.MissRate >= 0.5 && analysis.IncorrectCount > 0 {
			strugglingCards = append(strugglingCards, analysis)
		}
		if len(strugglingCards) >= 10 {
			break
		}
	}

	responseData := AnalyzeLearningResponse{
		StrugglingCards: strugglingCards,
		TotalReviews:    totalReviews,
		Stats:           stats,
	}

	jsonBytes, err := json.MarshalIndent(responseData, "", "  ")
	if err != nil {
		return nil, err
	}

	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// handleCollectionsResource generates a resource showing all collections
// in the system with their schedules and card counts. This helps users
// and LLMs know what collections are available for filtering cards.
func handleCollectionsResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	// Get the service from context
	s, ok := ctx.Value("service").(*flashcards.Service)
	if !ok || s == nil {
		return nil, fmt.Errorf("service not available")
	}

	collections, err := s.ListCollections()
	if err != nil {
		return nil, fmt.Errorf("error listing collections: %w", err)
	}

	type CollectionInfo struct {
		ID        string                 `json:"id"`
		Name      string                 `json:"name"`
		Intervals leitner.IntervalPolicy `json:"intervals"`
		CardCount int                    `json:"card_count"`
		DueCount  int                    `json:"due_count"`
	}

	infos := make([]CollectionInfo, 0, len(collections))
	for _, collection := range collections {
		stats, err := s.CollectionStats(collection.ID)
		if err != nil {
			return nil, fmt.Errorf("error calculating stats for collection %s: %w", collection.ID, err)
		}
		infos = append(infos, CollectionInfo{
			ID:        collection.ID,
			Name:      collection.Name,
			Intervals: collection.Intervals,
			CardCount: stats.Total,
			DueCount:  stats.Due,
		})
	}

	jsonBytes, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("error marshaling collections to JSON: %w", err)
	}

	textContent := mcp.TextResourceContents{
		URI:      "available-collections",
		MIMEType: "application/json",
		Text:     string(jsonBytes),
	}

	var contents []mcp.ResourceContents
	contents = append(contents, textContent)

	return contents, nil
}

// BoxProgressInfo holds per-collection mastery progress for the
// box-progress resource.
type BoxProgressInfo struct {
	CollectionID    string                `json:"collection_id"`
	Name            string                `json:"name"`
	BoxCounts       [leitner.BoxCount]int `json:"box_counts"`
	TotalCards      int                   `json:"total_cards"`
	DueCards        int                   `json:"due_cards"`
	MasteredCards   int                   `json:"mastered_cards"`
	ProgressPercent float64               `json:"progress_percent"`
}

// handleBoxProgressResource generates a resource showing how far each
// collection has progressed through the boxes. A card counts as mastered
// once it reaches box 5.
func handleBoxProgressResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	// Get the service from context
	s, ok := ctx.Value("service").(*flashcards.Service)
	if !ok || s == nil {
		return nil, fmt.Errorf("service not available")
	}

	collections, err := s.ListCollections()
	if err != nil {
		return nil, fmt.Errorf("error listing collections: %w", err)
	}

	progressInfos := []BoxProgressInfo{}
	for _, collection := range collections {
		stats, err := s.CollectionStats(collection.ID)
		if err != nil {
			return nil, fmt.Errorf("error calculating stats for collection %s: %w", collection.ID, err)
		}
		progress, err := s.CollectionProgress(collection.ID)
		if err != nil {
			return nil, fmt.Errorf("error calculating progress for collection %s: %w", collection.ID, err)
		}

		progressInfos = append(progressInfos, BoxProgressInfo{
			CollectionID:    collection.ID,
			Name:            collection.Name,
			BoxCounts:       stats.BoxCounts,
			TotalCards:      progress.TotalCards,
			DueCards:        stats.Due,
			MasteredCards:   progress.MasteredCards,
			ProgressPercent: progress.ProgressPercent,
		})
	}

	jsonBytes, err := json.MarshalIndent(progressInfos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("error marshaling box progress: %w", err)
	}

	textContent := mcp.TextResourceContents{
		URI:      "box-progress",
		MIMEType: "application/json",
		Text:     string(jsonBytes),
	}

	var contents []mcp.ResourceContents
	contents = append(contents, textContent)

	return contents, nil
}
