package propertytest

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danieldreier/mcp-leitner/internal/leitner"
)

// TestCollectionIsolation verifies that reviews, schedule changes, and
// deletion in one collection never bleed into another.
func TestCollectionIsolation(t *testing.T) {
	service, _ := NewTestService(t)

	alpha, err := service.CreateCollection("Alpha Deck", nil)
	require.NoError(t, err)
	beta, err := service.CreateCollection("Beta Deck", nil)
	require.NoError(t, err)

	alphaIDs := make([]string, 0, 2)
	for i := 0; i < 2; i++ {
		card, err := service.CreateCard(alpha.ID, fmt.Sprintf("alpha front %d", i), fmt.Sprintf("alpha back %d", i))
		require.NoError(t, err)
		alphaIDs = append(alphaIDs, card.ID)
	}
	betaIDs := make([]string, 0, 2)
	for i := 0; i < 2; i++ {
		card, err := service.CreateCard(beta.ID, fmt.Sprintf("beta front %d", i), fmt.Sprintf("beta back %d", i))
		require.NoError(t, err)
		betaIDs = append(betaIDs, card.ID)
	}

	// All activity goes to alpha. Beta must not see any of it.
	_, err = service.SubmitReview(alphaIDs[0], leitner.OutcomeCorrect)
	require.NoError(t, err)
	_, err = service.SubmitReview(alphaIDs[1], leitner.OutcomeIncorrect)
	require.NoError(t, err)
	_, err = service.SetCollectionIntervals(alpha.ID, leitner.IntervalPolicy{2, 4, 9, 20, 45})
	require.NoError(t, err)

	wantBeta := leitner.Stats{Total: 2, Due: 2}
	wantBeta.BoxCounts[0] = 2

	betaStats, err := service.CollectionStats(beta.ID)
	require.NoError(t, err)
	assert.Equal(t, wantBeta, betaStats)

	storedBeta, err := service.Storage.GetCollection(beta.ID)
	require.NoError(t, err)
	assert.Equal(t, leitner.DefaultIntervalPolicy(), storedBeta.Intervals)

	for _, id := range betaIDs {
		card, err := service.GetCard(id)
		require.NoError(t, err)
		assert.Equal(t, leitner.MinBox, card.Leitner.Box)
		assert.Nil(t, card.Leitner.LastReviewed)
	}

	due, _, err := service.GetDueCard(beta.ID)
	require.NoError(t, err)
	assert.Equal(t, beta.ID, due.CollectionID)

	// Deleting alpha takes its cards and reviews with it and leaves
	// beta untouched.
	require.NoError(t, service.DeleteCollection(alpha.ID))

	for _, id := range alphaIDs {
		_, err := service.GetCard(id)
		assert.Error(t, err)
	}
	orphans, _, err := service.ListCards(alpha.ID, false)
	require.NoError(t, err)
	assert.Empty(t, orphans)

	betaStats, err = service.CollectionStats(beta.ID)
	require.NoError(t, err)
	assert.Equal(t, wantBeta, betaStats)

	total, err := service.CollectionStats("")
	require.NoError(t, err)
	assert.Equal(t, wantBeta, total)
}

// TestConcurrentCreates hammers a single service with parallel card
// creation and checks that every card lands exactly once.
func TestConcurrentCreates(t *testing.T) {
	service, collection := NewTestService(t)

	const workers = 8
	const perWorker = 5

	var wg sync.WaitGroup
	idCh := make(chan string, workers*perWorker)
	errCh := make(chan error, workers*perWorker)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				card, err := service.CreateCard(collection.ID,
					fmt.Sprintf("front %d-%d", w, i), fmt.Sprintf("back %d-%d", w, i))
				if err != nil {
					errCh <- err
					continue
				}
				idCh <- card.ID
			}
		}(w)
	}
	wg.Wait()
	close(idCh)
	close(errCh)

	for err := range errCh {
		t.Errorf("concurrent create: %v", err)
	}

	seen := make(map[string]bool)
	for id := range idCh {
		assert.False(t, seen[id], "duplicate card ID %s", id)
		seen[id] = true
	}
	require.Len(t, seen, workers*perWorker)

	cards, stats, err := service.ListCards(collection.ID, true)
	require.NoError(t, err)
	assert.Len(t, cards, workers*perWorker)
	assert.Equal(t, workers*perWorker, stats.Total)
	assert.Equal(t, workers*perWorker, stats.Due)
}
