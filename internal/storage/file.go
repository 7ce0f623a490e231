package storage

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/danieldreier/mcp-leitner/internal/leitner"
)

// FlashcardStore represents the data structure stored in the JSON file.
type FlashcardStore struct {
	Collections map[string]Collection `json:"collections"`
	Cards       map[string]Card       `json:"cards"`
	Reviews     []ReviewRecord        `json:"reviews"`
	LastUpdated time.Time             `json:"last_updated"`
}

func emptyStore() FlashcardStore {
	return FlashcardStore{
		Collections: make(map[string]Collection),
		Cards:       make(map[string]Card),
		Reviews:     []ReviewRecord{},
	}
}

// FileStorage implements the Storage interface using a JSON file for
// persistence. Mutations only touch the in-memory store; callers
// persist explicitly through Save.
type FileStorage struct {
	filePath string
	store    FlashcardStore
	mu       sync.RWMutex
}

// NewFileStorage creates a new FileStorage instance.
func NewFileStorage(filePath string) *FileStorage {
	return &FileStorage{
		filePath: filePath,
		store:    emptyStore(),
	}
}

// CreateCollection creates a new collection under the given interval
// policy. The policy is validated before the collection is stored.
func (fs *FileStorage) CreateCollection(name string, intervals leitner.IntervalPolicy) (Collection, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	col := Collection{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: time.Now().Truncate(time.Millisecond),
		Intervals: intervals,
	}
	if err := validateCollection(col); err != nil {
		return Collection{}, err
	}

	fs.store.Collections[col.ID] = col
	fs.store.LastUpdated = time.Now()

	return col, nil
}

// GetCollection retrieves a collection by ID.
func (fs *FileStorage) GetCollection(id string) (Collection, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	col, exists := fs.store.Collections[id]
	if !exists {
		return Collection{}, ErrCollectionNotFound
	}

	return col, nil
}

// SaveCollection updates an existing collection. An invalid interval
// policy blocks the save.
func (fs *FileStorage) SaveCollection(col Collection) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := validateCollection(col); err != nil {
		return err
	}
	if _, exists := fs.store.Collections[col.ID]; !exists {
		return ErrCollectionNotFound
	}

	fs.store.Collections[col.ID] = col
	fs.store.LastUpdated = time.Now()

	return nil
}

// DeleteCollection deletes a collection along with its cards and their
// review history.
func (fs *FileStorage) DeleteCollection(id string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, exists := fs.store.Collections[id]; !exists {
		return ErrCollectionNotFound
	}

	removed := make(map[string]bool)
	for cardID, card := range fs.store.Cards {
		if card.CollectionID == id {
			removed[cardID] = true
			delete(fs.store.Cards, cardID)
		}
	}
	if len(removed) > 0 {
		kept := make([]ReviewRecord, 0, len(fs.store.Reviews))
		for _, rec := range fs.store.Reviews {
			if !removed[rec.CardID] {
				kept = append(kept, rec)
			}
		}
		fs.store.Reviews = kept
	}

	delete(fs.store.Collections, id)
	fs.store.LastUpdated = time.Now()

	return nil
}

// ListCollections returns all collections in creation order.
func (fs *FileStorage) ListCollections() ([]Collection, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	result := make([]Collection, 0, len(fs.store.Collections))
	for _, col := range fs.store.Collections {
		result = append(result, col)
	}
	sortCollections(result)

	return result, nil
}

// CreateCard creates a new flashcard in a collection. The card starts
// in the first box, never reviewed.
func (fs *FileStorage) CreateCard(collectionID, front, back string) (Card, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, exists := fs.store.Collections[collectionID]; !exists {
		return Card{}, ErrCollectionNotFound
	}

	card := Card{
		ID:           uuid.New().String(),
		CollectionID: collectionID,
		Front:        front,
		Back:         back,
		CreatedAt:    time.Now().Truncate(time.Millisecond),
		Leitner:      leitner.NewCard(),
	}
	if err := validateCard(card); err != nil {
		return Card{}, err
	}

	fs.store.Cards[card.ID] = card
	fs.store.LastUpdated = time.Now()

	return card, nil
}

// GetCard retrieves a flashcard by ID.
func (fs *FileStorage) GetCard(id string) (Card, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	card, exists := fs.store.Cards[id]
	if !exists {
		return Card{}, ErrCardNotFound
	}

	return card, nil
}

// SaveCard updates an existing flashcard. Blank text or an
// out-of-range box level blocks the save.
func (fs *FileStorage) SaveCard(card Card) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := validateCard(card); err != nil {
		return err
	}
	if _, exists := fs.store.Cards[card.ID]; !exists {
		return ErrCardNotFound
	}

	fs.store.Cards[card.ID] = card
	fs.store.LastUpdated = time.Now()

	return nil
}

// DeleteCard deletes a flashcard by ID along with its review history.
func (fs *FileStorage) DeleteCard(id string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, exists := fs.store.Cards[id]; !exists {
		return ErrCardNotFound
	}

	delete(fs.store.Cards, id)
	kept := make([]ReviewRecord, 0, len(fs.store.Reviews))
	for _, rec := range fs.store.Reviews {
		if rec.CardID != id {
			kept = append(kept, rec)
		}
	}
	fs.store.Reviews = kept
	fs.store.LastUpdated = time.Now()

	return nil
}

// ListCards returns cards in creation order, filtered to a collection
// when collectionID is non-empty.
func (fs *FileStorage) ListCards(collectionID string) ([]Card, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	result := make([]Card, 0, len(fs.store.Cards))
	for _, card := range fs.store.Cards {
		if collectionID == "" || card.CollectionID == collectionID {
			result = append(result, card)
		}
	}
	sortCards(result)

	return result, nil
}

// AddReview appends a review record for a card.
func (fs *FileStorage) AddReview(rec ReviewRecord) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, exists := fs.store.Cards[rec.CardID]; !exists {
		return ErrCardNotFound
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}

	fs.store.Reviews = append(fs.store.Reviews, rec)
	fs.store.LastUpdated = time.Now()

	return nil
}

// GetCardReviews gets all reviews for a specific card, oldest first.
func (fs *FileStorage) GetCardReviews(cardID string) ([]ReviewRecord, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	if _, exists := fs.store.Cards[cardID]; !exists {
		return nil, ErrCardNotFound
	}

	var cardReviews []ReviewRecord
	for _, rec := range fs.store.Reviews {
		if rec.CardID == cardID {
			cardReviews = append(cardReviews, rec)
		}
	}

	return cardReviews, nil
}

// ListReviews returns review records oldest first, filtered to one
// collection's cards when collectionID is non-empty.
func (fs *FileStorage) ListReviews(collectionID string) ([]ReviewRecord, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	if collectionID == "" {
		result := make([]ReviewRecord, len(fs.store.Reviews))
		copy(result, fs.store.Reviews)
		return result, nil
	}

	result := []ReviewRecord{}
	for _, rec := range fs.store.Reviews {
		card, ok := fs.store.Cards[rec.CardID]
		if ok && card.CollectionID == collectionID {
			result = append(result, rec)
		}
	}

	return result, nil
}

// save is the internal helper for saving data without acquiring the
// lock again. Assumes the write lock is already held.
func (fs *FileStorage) save() error {
	fs.store.LastUpdated = time.Now()

	dataBytes, err := json.MarshalIndent(fs.store, "", "  ")
	if err != nil {
		return &StorageError{Op: "save", Err: fmt.Errorf("marshal store: %w", err)}
	}

	dir := filepath.Dir(fs.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &StorageError{Op: "save", Err: fmt.Errorf("create directory: %w", err)}
	}

	// Write to a temporary file, then rename over the target (atomic
	// on most systems).
	tempFile := fs.filePath + ".tmp"
	if err := os.WriteFile(tempFile, dataBytes, 0644); err != nil {
		os.Remove(tempFile)
		return &StorageError{Op: "save", Err: fmt.Errorf("write temporary file: %w", err)}
	}
	if err := os.Rename(tempFile, fs.filePath); err != nil {
		os.Remove(tempFile)
		return &StorageError{Op: "save", Err: fmt.Errorf("rename temporary file: %w", err)}
	}

	return nil
}

// Load loads the flashcards data from the file, initializing and
// persisting an empty store when the file does not exist yet.
func (fs *FileStorage) Load() error {
	fs.mu.Lock() // Write lock for the potential initial save
	defer fs.mu.Unlock()

	if _, err := os.Stat(fs.filePath); os.IsNotExist(err) {
		log.Printf("[Storage:Load] %s not found, initializing empty store", fs.filePath)
		fs.store = emptyStore()
		if saveErr := fs.save(); saveErr != nil {
			return fmt.Errorf("failed to save initial empty store: %w", saveErr)
		}
		return nil
	}

	data, err := os.ReadFile(fs.filePath)
	if err != nil {
		return &StorageError{Op: "load", Err: fmt.Errorf("read storage file: %w", err)}
	}
	if len(data) == 0 {
		fs.store = emptyStore()
		return nil
	}

	var store FlashcardStore
	if err := json.Unmarshal(data, &store); err != nil {
		return &StorageError{Op: "load", Err: fmt.Errorf("unmarshal storage data: %w", err)}
	}

	// Initialize maps/slices that are nil after unmarshal (an older or
	// hand-edited file).
	if store.Collections == nil {
		store.Collections = make(map[string]Collection)
	}
	if store.Cards == nil {
		store.Cards = make(map[string]Card)
	}
	if store.Reviews == nil {
		store.Reviews = []ReviewRecord{}
	}

	fs.store = store
	return nil
}

// Save saves the flashcards data to the file atomically.
func (fs *FileStorage) Save() error {
	fs.mu.Lock() // Write lock for saving
	defer fs.mu.Unlock()
	return fs.save()
}

// Close is a no-op for file-backed storage; persistence happens through
// explicit Save calls.
func (fs *FileStorage) Close() error {
	return nil
}
