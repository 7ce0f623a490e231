package propertytest

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/prop"

	"github.com/danieldreier/mcp-leitner/internal/leitner"
)

// TestCreateReadRoundTrip checks that a freshly created card comes back
// from storage with its text intact, sitting in the first box with no
// review stamp.
func TestCreateReadRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	service, collection := NewTestService(t)

	properties := gopter.NewProperties(parameters)

	properties.Property("created cards read back unchanged", prop.ForAll(
		func(front, back string) string {
			created, err := service.CreateCard(collection.ID, front, back)
			if err != nil {
				return fmt.Sprintf("create card: %v", err)
			}
			if created.Front != front || created.Back != back {
				return fmt.Sprintf("created card text %q / %q, want %q / %q", created.Front, created.Back, front, back)
			}

			read, err := service.GetCard(created.ID)
			if err != nil {
				return fmt.Sprintf("get card %s: %v", created.ID, err)
			}
			if read.Front != front || read.Back != back {
				return fmt.Sprintf("read back text %q / %q, want %q / %q", read.Front, read.Back, front, back)
			}
			if read.Leitner.Box != leitner.MinBox {
				return fmt.Sprintf("new card in box %d, want %d", read.Leitner.Box, leitner.MinBox)
			}
			if read.Leitner.LastReviewed != nil {
				return fmt.Sprintf("new card already has a review stamp: %v", read.Leitner.LastReviewed)
			}
			if read.CollectionID != collection.ID {
				return fmt.Sprintf("card in collection %s, want %s", read.CollectionID, collection.ID)
			}
			if read.CreatedAt.IsZero() {
				return "new card has no creation time"
			}
			return ""
		},
		GenCardText(100),
		GenCardText(200),
	))

	properties.TestingRun(t)
}
