// Package flashcards implements the review workflow for Leitner-system
// flashcards on top of the storage layer.
package flashcards

import (
	"fmt"
	"os"
	"time"

	"github.com/danieldreier/mcp-leitner/internal/leitner"
	"github.com/danieldreier/mcp-leitner/internal/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Service manages flashcard operations with storage and the Leitner
// scheduler.
type Service struct {
	Storage storage.Storage // Interface for storage operations
	Logger  *zap.Logger
}

// NewLogger builds a development logger at the named level (debug, info,
// warn, error). Output goes to stderr so it never interferes with the
// stdio transport.
func NewLogger(level string) (*zap.Logger, error) {
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("error parsing log level %q: %w", level, err)
	}
	logConfig := zap.NewDevelopmentConfig()
	logConfig.Level = zap.NewAtomicLevelAt(parsed)
	return logConfig.Build(zap.AddStacktrace(zapcore.ErrorLevel))
}

// NewService creates a Service with a debug-level development logger.
func NewService(store storage.Storage) *Service {
	logger, err := NewLogger("debug")
	if err != nil {
		// Fallback to a no-op logger if zap fails (shouldn't normally happen)
		fmt.Fprintf(os.Stderr, "Error initializing zap logger: %v. Falling back to no-op logger.\n", err)
		return &Service{Storage: store, Logger: zap.NewNop()}
	}
	return &Service{Storage: store, Logger: logger}
}

// NewServiceWithLogger creates a Service with a caller-supplied logger.
func NewServiceWithLogger(store storage.Storage, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{Storage: store, Logger: logger}
}

// CreateCollection creates a named collection of cards. A nil intervals
// pointer selects the default schedule.
func (s *Service) CreateCollection(name string, intervals *leitner.IntervalPolicy) (storage.Collection, error) {
	policy := leitner.DefaultIntervalPolicy()
	if intervals != nil {
		policy = *intervals
	}
	s.Logger.Debug("Service CreateCollection called", zap.String("name", name), zap.Any("intervals", policy))

	collection, err := s.Storage.CreateCollection(name, policy)
	if err != nil {
		s.Logger.Error("Error creating collection in storage", zap.Error(err))
		return storage.Collection{}, fmt.Errorf("error creating collection in storage: %w", err)
	}

	if err := s.Storage.Save(); err != nil {
		s.Logger.Warn("Failed to save storage after creating collection, but collection exists in memory",
			zap.String("collection_id", collection.ID), zap.Error(err))
	}

	return collection, nil
}

// SetCollectionIntervals replaces a collection's review schedule. The
// name and creation time are left untouched; invalid schedules are
// rejected before anything is persisted.
func (s *Service) SetCollectionIntervals(collectionID string, intervals leitner.IntervalPolicy) (storage.Collection, error) {
	s.Logger.Debug("Service SetCollectionIntervals called",
		zap.String("collection_id", collectionID), zap.Any("intervals", intervals))

	collection, err := s.Storage.GetCollection(collectionID)
	if err != nil {
		return storage.Collection{}, fmt.Errorf("error getting collection %s: %w", collectionID, err)
	}

	// Only save if the schedule actually changed
	if collection.Intervals == intervals {
		return collection, nil
	}
	collection.Intervals = intervals

	if err := s.Storage.SaveCollection(collection); err != nil {
		return storage.Collection{}, fmt.Errorf("error updating collection %s in storage: %w", collectionID, err)
	}
	if err := s.Storage.Save(); err != nil {
		return storage.Collection{}, fmt.Errorf("error saving storage after updating collection %s: %w", collectionID, err)
	}

	return collection, nil
}

// DeleteCollection removes a collection together with its cards and
// their review history.
func (s *Service) DeleteCollection(collectionID string) error {
	s.Logger.Debug("Starting DeleteCollection", zap.String("collection_id", collectionID))
	if err := s.Storage.DeleteCollection(collectionID); err != nil {
		s.Logger.Error("Storage.DeleteCollection returned error", zap.String("collection_id", collectionID), zap.Error(err))
		return fmt.Errorf("error deleting collection: %w", err)
	}

	if err := s.Storage.Save(); err != nil {
		s.Logger.Error("Storage.Save() returned error after delete", zap.String("collection_id", collectionID), zap.Error(err))
		return fmt.Errorf("error saving storage: %w", err)
	}

	return nil
}

// ListCollections lists all collections in creation order.
func (s *Service) ListCollections() ([]storage.Collection, error) {
	collections, err := s.Storage.ListCollections()
	if err != nil {
		return nil, fmt.Errorf("error listing collections from storage: %w", err)
	}
	return collections, nil
}

// CreateCard creates a new flashcard in a collection. New cards start in
// box 1 with no review history.
func (s *Service) CreateCard(collectionID, front, back string) (storage.Card, error) {
	s.Logger.Debug("Service CreateCard called",
		zap.String("collection_id", collectionID), zap.String("front", front), zap.String("back", back))

	card, err := s.Storage.CreateCard(collectionID, front, back)
	if err != nil {
		s.Logger.Error("Error creating card in storage", zap.Error(err))
		return storage.Card{}, fmt.Errorf("error creating card in storage: %w", err)
	}
	s.Logger.Debug("Card created in storage layer", zap.String("card_id", card.ID))

	if err := s.Storage.Save(); err != nil {
		s.Logger.Warn("Failed to save storage after creating card, but card exists in memory",
			zap.String("card_id", card.ID), zap.Error(err))
	}

	return card, nil
}

// GetCard retrieves a single card by ID.
func (s *Service) GetCard(cardID string) (storage.Card, error) {
	card, err := s.Storage.GetCard(cardID)
	if err != nil {
		return storage.Card{}, fmt.Errorf("error getting card %s: %w", cardID, err)
	}
	return card, nil
}

// UpdateCard rewrites a card's text selectively based on non-nil input
// pointers. Scheduling state is never touched here.
func (s *Service) UpdateCard(cardID string, front *string, back *string) (storage.Card, error) {
	card, err := s.Storage.GetCard(cardID)
	if err != nil {
		return storage.Card{}, fmt.Errorf("error getting card %s: %w", cardID, err)
	}

	updated := false
	// Update fields only if the corresponding pointer is not nil
	if front != nil && card.Front != *front {
		card.Front = *front
		updated = true
	}
	if back != nil && card.Back != *back {
		card.Back = *back
		updated = true
	}

	// Only save if changes were actually made
	if updated {
		if err := s.Storage.SaveCard(card); err != nil {
			return storage.Card{}, fmt.Errorf("error updating card %s in storage: %w", cardID, err)
		}
		if err := s.Storage.Save(); err != nil {
			return storage.Card{}, fmt.Errorf("error saving storage after updating card %s: %w", cardID, err)
		}
	}

	return card, nil
}

// DeleteCard deletes a flashcard and its review history.
func (s *Service) DeleteCard(cardID string) error {
	s.Logger.Debug("Starting DeleteCard", zap.String("card_id", cardID))
	if err := s.Storage.DeleteCard(cardID); err != nil {
		s.Logger.Error("Storage.DeleteCard returned error", zap.String("card_id", cardID), zap.Error(err))
		return fmt.Errorf("error deleting card: %w", err)
	}
	s.Logger.Debug("Card deleted from storage successfully", zap.String("card_id", cardID))

	if err := s.Storage.Save(); err != nil {
		s.Logger.Error("Storage.Save() returned error after delete", zap.String("card_id", cardID), zap.Error(err))
		return fmt.Errorf("error saving storage: %w", err)
	}

	return nil
}

// ListCards lists cards in creation order, optionally restricted to one
// collection and optionally with statistics for the same scope.
func (s *Service) ListCards(collectionID string, includeStats bool) ([]storage.Card, leitner.Stats, error) {
	s.Logger.Debug("Service ListCards called",
		zap.String("collection_id", collectionID), zap.Bool("include_stats", includeStats))

	cards, err := s.Storage.ListCards(collectionID)
	if err != nil {
		return nil, leitner.Stats{}, fmt.Errorf("error listing cards from storage: %w", err)
	}

	var stats leitner.Stats
	if includeStats {
		stats, err = s.statsAt(collectionID, timeNow())
		if err != nil {
			// Log error but proceed with a bare count
			s.Logger.Warn("Error calculating stats for card listing", zap.Error(err))
			stats = leitner.Stats{Total: len(cards)}
		}
	}

	return cards, stats, nil
}

// GetDueCard returns the next card due for review along with statistics
// for the requested scope. An empty collectionID considers every
// collection, each card judged under its own collection's schedule.
//
// Statistics are returned even when no card is due so callers can report
// progress alongside the error.
func (s *Service) GetDueCard(collectionID string) (storage.Card, leitner.Stats, error) {
	s.Logger.Debug("GetDueCard called", zap.String("collection_id", collectionID))

	now := timeNow()
	stats, err := s.statsAt(collectionID, now)
	if err != nil {
		s.Logger.Error("GetDueCard: error calculating stats", zap.Error(err))
		return storage.Card{}, leitner.Stats{}, err
	}

	cards, err := s.Storage.ListCards(collectionID)
	if err != nil {
		s.Logger.Error("GetDueCard: error listing cards", zap.Error(err))
		return storage.Card{}, stats, fmt.Errorf("error listing cards: %w", err)
	}
	s.Logger.Debug("GetDueCard: considering cards", zap.Int("count", len(cards)))

	policies, err := s.intervalPolicies()
	if err != nil {
		return storage.Card{}, stats, err
	}

	// Cards arrive sorted by creation time, so the first due card is the
	// head of the review queue.
	for _, card := range cards {
		intervals, ok := policies[card.CollectionID]
		if !ok {
			intervals = leitner.DefaultIntervalPolicy()
		}
		if leitner.IsDue(card.Leitner, intervals, now) {
			s.Logger.Debug("GetDueCard: returning due card",
				zap.String("card_id", card.ID), zap.Int("box", int(card.Leitner.Box)))
			return card, stats, nil
		}
	}

	if collectionID != "" {
		s.Logger.Debug("GetDueCard: no cards due in collection", zap.String("collection_id", collectionID))
		return storage.Card{}, stats, fmt.Errorf("no cards due for review in collection %s", collectionID)
	}
	s.Logger.Debug("GetDueCard: no cards are due for review")
	return storage.Card{}, stats, fmt.Errorf("no cards due for review")
}

// SubmitReview processes a review outcome for a card and moves it
// between boxes.
func (s *Service) SubmitReview(cardID string, outcome leitner.Outcome) (storage.Card, error) {
	return s.SubmitReviewWithTime(cardID, outcome, timeNow())
}

// SubmitReviewWithTime processes a review at a specific timestamp. This
// allows tests to provide a simulated "now" timestamp.
func (s *Service) SubmitReviewWithTime(cardID string, outcome leitner.Outcome, now time.Time) (storage.Card, error) {
	if _, err := leitner.ParseOutcome(string(outcome)); err != nil {
		return storage.Card{}, err
	}

	// Timestamps are stored with millisecond precision
	now = now.Truncate(time.Millisecond)
	s.Logger.Debug("SubmitReview starting",
		zap.String("card_id", cardID), zap.String("outcome", string(outcome)), zap.Time("now", now))

	card, err := s.Storage.GetCard(cardID)
	if err != nil {
		s.Logger.Error("Error getting card", zap.String("card_id", cardID), zap.Error(err))
		return storage.Card{}, fmt.Errorf("error getting card: %w", err)
	}

	next, transition := leitner.ApplyOutcome(card.Leitner, outcome, now)
	s.Logger.Debug("Leitner transition",
		zap.String("card_id", cardID),
		zap.Int("from_box", int(transition.From)),
		zap.Int("to_box", int(transition.To)))

	card.Leitner = next
	if err := s.Storage.SaveCard(card); err != nil {
		s.Logger.Error("Error updating card in storage", zap.String("card_id", cardID), zap.Error(err))
		return storage.Card{}, fmt.Errorf("error updating card: %w", err)
	}

	record := storage.ReviewRecord{
		ID:        uuid.New().String(),
		CardID:    cardID,
		Outcome:   outcome,
		Timestamp: now,
		FromBox:   transition.From,
		ToBox:     transition.To,
	}
	if err := s.Storage.AddReview(record); err != nil {
		s.Logger.Error("Error adding review to storage", zap.String("card_id", cardID), zap.Error(err))
		return storage.Card{}, fmt.Errorf("error adding review: %w", err)
	}

	if err := s.Storage.Save(); err != nil {
		s.Logger.Error("Error saving storage", zap.String("card_id", cardID), zap.Error(err))
		return storage.Card{}, fmt.Errorf("error saving storage: %w", err)
	}

	s.Logger.Debug("SubmitReview completed",
		zap.String("card_id", cardID), zap.Int("box", int(card.Leitner.Box)))
	return card, nil
}

// Variable to allow mocking time.Now in tests
var timeNow = time.Now

// CollectionStats calculates review statistics. An empty collectionID
// sums statistics over all collections.
func (s *Service) CollectionStats(collectionID string) (leitner.Stats, error) {
	return s.statsAt(collectionID, timeNow())
}

func (s *Service) statsAt(collectionID string, now time.Time) (leitner.Stats, error) {
	if collectionID == "" {
		collections, err := s.Storage.ListCollections()
		if err != nil {
			return leitner.Stats{}, fmt.Errorf("error listing collections: %w", err)
		}
		var total leitner.Stats
		for _, collection := range collections {
			stats, err := s.collectionStatsAt(collection, now)
			if err != nil {
				return leitner.Stats{}, err
			}
			total = total.Add(stats)
		}
		return total, nil
	}

	collection, err := s.Storage.GetCollection(collectionID)
	if err != nil {
		return leitner.Stats{}, fmt.Errorf("error getting collection %s: %w", collectionID, err)
	}
	return s.collectionStatsAt(collection, now)
}

func (s *Service) collectionStatsAt(collection storage.Collection, now time.Time) (leitner.Stats, error) {
	cards, err := s.Storage.ListCards(collection.ID)
	if err != nil {
		return leitner.Stats{}, fmt.Errorf("error listing cards for collection %s: %w", collection.ID, err)
	}

	// Outcome counts come from the review log. When the log cannot be
	// read the aggregation falls back to inferring counts from box
	// positions, which undercounts repeat mistakes.
	var history []leitner.Outcome
	records, err := s.Storage.ListReviews(collection.ID)
	if err != nil {
		s.Logger.Warn("Error listing reviews, falling back to box-level counting",
			zap.String("collection_id", collection.ID), zap.Error(err))
	} else {
		history = make([]leitner.Outcome, 0, len(records))
		for _, record := range records {
			history = append(history, record.Outcome)
		}
	}

	return leitner.Aggregate(scheduleStates(cards), collection.Intervals, now, history), nil
}

// scheduleStates extracts the Leitner state of each card for aggregation.
func scheduleStates(cards []storage.Card) []leitner.Card {
	states := make([]leitner.Card, 0, len(cards))
	for _, card := range cards {
		states = append(states, card.Leitner)
	}
	return states
}

// intervalPolicies maps collection IDs to their review schedules.
func (s *Service) intervalPolicies() (map[string]leitner.IntervalPolicy, error) {
	collections, err := s.Storage.ListCollections()
	if err != nil {
		return nil, fmt.Errorf("error listing collections: %w", err)
	}
	policies := make(map[string]leitner.IntervalPolicy, len(collections))
	for _, collection := range collections {
		policies[collection.ID] = collection.Intervals
	}
	return policies, nil
}

// ProgressStats summarizes mastery for a collection. A card counts as
// mastered once it reaches the top box.
type ProgressStats struct {
	TotalCards      int     `json:"total_cards"`
	MasteredCards   int     `json:"mastered_cards"`
	ProgressPercent float64 `json:"progress_percent"`
}

// CollectionProgress calculates mastery progress for a collection, or
// for all collections when collectionID is empty.
func (s *Service) CollectionProgress(collectionID string) (ProgressStats, error) {
	s.Logger.Debug("CollectionProgress called", zap.String("collection_id", collectionID))

	stats, err := s.CollectionStats(collectionID)
	if err != nil {
		return ProgressStats{}, err
	}

	progress := ProgressStats{
		TotalCards:    stats.Total,
		MasteredCards: stats.BoxCounts[leitner.BoxCount-1],
	}
	if progress.TotalCards > 0 {
		progress.ProgressPercent = float64(progress.MasteredCards) / float64(progress.TotalCards) * 100.0
	}

	s.Logger.Debug("CollectionProgress result", zap.String("collection_id", collectionID), zap.Any("progress", progress))
	return progress, nil
}
