// Package propertytest provides property-based tests for the Leitner
// flashcards service.
package propertytest

import (
	"path/filepath"
	"testing"

	"github.com/danieldreier/mcp-leitner/internal/flashcards"
	"github.com/danieldreier/mcp-leitner/internal/leitner"
	"github.com/danieldreier/mcp-leitner/internal/storage"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"go.uber.org/zap"
)

// NewTestService builds a flashcard service backed by a throwaway file
// store, plus a collection on the default schedule for the commands to
// operate on. Each call creates a completely isolated environment.
func NewTestService(t *testing.T) (*flashcards.Service, storage.Collection) {
	t.Helper()

	filePath := filepath.Join(t.TempDir(), "property_flashcards.json")
	store := storage.NewFileStorage(filePath)
	if err := store.Load(); err != nil {
		t.Fatalf("Failed to load storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	// Nop logger keeps property runs quiet
	service := flashcards.NewServiceWithLogger(store, zap.NewNop())
	collection, err := service.CreateCollection("Property Cards", nil)
	if err != nil {
		t.Fatalf("Failed to create collection: %v", err)
	}
	return service, collection
}

// --- Generators ---

// GenCardText generates non-empty strings for card content.
func GenCardText(maxLength int) gopter.Gen {
	return gen.AlphaString().SuchThat(func(s string) bool {
		return len(s) > 0 && len(s) <= maxLength
	}).WithLabel("CardText")
}

// GenMaybeText generates a string pointer that is sometimes nil.
func GenMaybeText(maxLength int) gopter.Gen {
	return gopter.CombineGens(
		gen.Bool(),             // Decide if the string should be generated
		GenCardText(maxLength), // Generate the actual string
	).Map(func(values []interface{}) *string {
		shouldGenerate := values[0].(bool)
		if !shouldGenerate {
			return nil
		}
		str := values[1].(string)
		return &str
	})
}

// GenOutcome generates a random review outcome.
func GenOutcome() gopter.Gen {
	return gen.OneConstOf(leitner.OutcomeCorrect, leitner.OutcomeIncorrect).
		WithLabel("Outcome")
}

// GenIntervalPolicy generates valid review schedules: five positive,
// strictly increasing day counts built from cumulative positive steps.
func GenIntervalPolicy(maxStep int) gopter.Gen {
	return gen.SliceOfN(leitner.BoxCount, gen.IntRange(1, maxStep)).
		Map(func(steps []int) leitner.IntervalPolicy {
			var policy leitner.IntervalPolicy
			total := 0
			for i, step := range steps {
				total += step
				policy[i] = total
			}
			return policy
		}).WithLabel("IntervalPolicy")
}

// GenInvalidIntervalPolicy starts from a valid schedule and breaks one
// slot: either a non-positive day count or a repeat of its predecessor.
func GenInvalidIntervalPolicy() gopter.Gen {
	return gopter.CombineGens(
		GenIntervalPolicy(10),
		gen.IntRange(0, leitner.BoxCount-1),
		gen.Bool(),
	).Map(func(values []interface{}) leitner.IntervalPolicy {
		policy := values[0].(leitner.IntervalPolicy)
		idx := values[1].(int)
		makeNegative := values[2].(bool)
		if makeNegative || idx == 0 {
			policy[idx] = -policy[idx]
		} else {
			policy[idx] = policy[idx-1]
		}
		return policy
	}).WithLabel("InvalidIntervalPolicy")
}
