package propertytest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/danieldreier/mcp-leitner/internal/flashcards"
	"github.com/danieldreier/mcp-leitner/internal/leitner"
	"github.com/danieldreier/mcp-leitner/internal/storage"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/commands"
)

// --- System Under Test Definition ---

// LeitnerSUT drives the real service in-process. Every command operates
// on one collection created alongside the service. RealIDs binds the
// model's card refs to the IDs storage actually assigned.
type LeitnerSUT struct {
	Service      *flashcards.Service
	CollectionID string
	RealIDs      map[string]string
	CreateSeq    int
	T            *testing.T
}

// realID resolves a model ref to the storage ID bound during the run.
func (s *LeitnerSUT) realID(ref string) (string, error) {
	id, ok := s.RealIDs[ref]
	if !ok {
		return "", fmt.Errorf("no storage ID bound to %s", ref)
	}
	return id, nil
}

// --- State Definition ---

// ModelCard is the model's view of one card: its text, the box the
// transition rule says it should be in, whether it has ever been
// reviewed, and its per-outcome review counts.
type ModelCard struct {
	Ref       string
	Front     string
	Back      string
	Box       leitner.Box
	Reviewed  bool
	Correct   int
	Incorrect int
}

// CommandState holds the model state. Cards are keyed by refs ("#0",
// "#1", ...) handed out in creation order. The generation walk and the
// replay assign identical refs because both count creates the same
// way; the system under test binds each ref to a storage ID when the
// create actually runs.
type CommandState struct {
	Cards     map[string]ModelCard
	Refs      []string
	CreateSeq int
	T         *testing.T
}

// NewCommandState returns an empty model.
func NewCommandState(t *testing.T) *CommandState {
	return &CommandState{
		Cards: make(map[string]ModelCard),
		Refs:  []string{},
		T:     t,
	}
}

// Reset returns the model to its empty starting condition. Choosing
// commands walks the model forward, so each replay resets it before
// running against a fresh system.
func (s *CommandState) Reset() {
	s.Cards = make(map[string]ModelCard)
	s.Refs = []string{}
	s.CreateSeq = 0
}

// cardRef names the n-th created card.
func cardRef(seq int) string {
	return fmt.Sprintf("#%d", seq)
}

// dueCount reports how many model cards the scheduler should consider
// due. Within a command sequence every review happens "today", so a
// reviewed card is never due again and an unreviewed card always is.
func (s *CommandState) dueCount() int {
	due := 0
	for _, card := range s.Cards {
		if !card.Reviewed {
			due++
		}
	}
	return due
}

// expectedStats derives the statistics the service should report for
// the model.
func (s *CommandState) expectedStats() leitner.Stats {
	stats := leitner.Stats{Total: len(s.Cards), Due: s.dueCount()}
	for _, card := range s.Cards {
		stats.BoxCounts[card.Box-leitner.MinBox]++
		stats.Correct += card.Correct
		stats.Incorrect += card.Incorrect
	}
	return stats
}

func (s *CommandState) removeRef(ref string) {
	for i, known := range s.Refs {
		if known == ref {
			s.Refs = append(s.Refs[:i], s.Refs[i+1:]...)
			return
		}
	}
}

// --- CreateCardCmd ---

type CreateCardCmd struct {
	Front string
	Back  string
}

func (c *CreateCardCmd) Run(sut commands.SystemUnderTest) commands.Result {
	lsut := sut.(*LeitnerSUT)
	card, err := lsut.Service.CreateCard(lsut.CollectionID, c.Front, c.Back)
	if err != nil {
		return fmt.Errorf("create card run failed: %w", err)
	}
	lsut.RealIDs[cardRef(lsut.CreateSeq)] = card.ID
	lsut.CreateSeq++
	return card
}

func (c *CreateCardCmd) NextState(state commands.State) commands.State {
	cmdState := state.(*CommandState)
	ref := cardRef(cmdState.CreateSeq)
	cmdState.CreateSeq++
	cmdState.Cards[ref] = ModelCard{
		Ref:   ref,
		Front: c.Front,
		Back:  c.Back,
		Box:   leitner.MinBox,
	}
	cmdState.Refs = append(cmdState.Refs, ref)
	return state
}

func (c *CreateCardCmd) PreCondition(state commands.State) bool {
	return true // Can always attempt to create
}

func (c *CreateCardCmd) PostCondition(state commands.State, result commands.Result) *gopter.PropResult {
	cmdState := state.(*CommandState)
	label := fmt.Sprintf("PostCondition %s", c.String())

	if errResult, ok := result.(error); ok {
		cmdState.T.Logf("%s failed: %v", label, errResult)
		return gopter.NewPropResult(false, label)
	}
	card := result.(storage.Card)

	if card.ID == "" || card.Front != c.Front || card.Back != c.Back {
		cmdState.T.Logf("%s: data mismatch, got ID=%q Front=%q Back=%q", label, card.ID, card.Front, card.Back)
		return gopter.NewPropResult(false, label)
	}
	if card.Leitner.Box != leitner.MinBox || card.Leitner.LastReviewed != nil {
		cmdState.T.Logf("%s: new card must start unreviewed in box %d, got box %d", label, leitner.MinBox, card.Leitner.Box)
		return gopter.NewPropResult(false, label)
	}
	return gopter.NewPropResult(true, label)
}

func (c *CreateCardCmd) String() string {
	return fmt.Sprintf("CreateCard(Front: %q, Back: %q)", c.Front, c.Back)
}

// --- GetCardCmd ---

type GetCardCmd struct {
	Ref string
}

func (c *GetCardCmd) Run(sut commands.SystemUnderTest) commands.Result {
	lsut := sut.(*LeitnerSUT)
	cardID, err := lsut.realID(c.Ref)
	if err != nil {
		return err
	}
	card, err := lsut.Service.GetCard(cardID)
	if err != nil {
		return fmt.Errorf("get card run failed: %w", err)
	}
	return card
}

func (c *GetCardCmd) NextState(state commands.State) commands.State {
	return state // Reads never change the model
}

func (c *GetCardCmd) PreCondition(state commands.State) bool {
	_, exists := state.(*CommandState).Cards[c.Ref]
	return exists
}

func (c *GetCardCmd) PostCondition(state commands.State, result commands.Result) *gopter.PropResult {
	cmdState := state.(*CommandState)
	label := fmt.Sprintf("PostCondition %s", c.String())

	if errResult, ok := result.(error); ok {
		cmdState.T.Logf("%s failed: %v", label, errResult)
		return gopter.NewPropResult(false, label)
	}
	card := result.(storage.Card)

	model := cmdState.Cards[c.Ref]
	if card.Front != model.Front || card.Back != model.Back {
		cmdState.T.Logf("%s: text mismatch, expected Front=%q Back=%q got Front=%q Back=%q",
			label, model.Front, model.Back, card.Front, card.Back)
		return gopter.NewPropResult(false, label)
	}
	if card.Leitner.Box != model.Box {
		cmdState.T.Logf("%s: box mismatch, expected %d got %d", label, model.Box, card.Leitner.Box)
		return gopter.NewPropResult(false, label)
	}
	if model.Reviewed != (card.Leitner.LastReviewed != nil) {
		cmdState.T.Logf("%s: review stamp mismatch, model reviewed=%v", label, model.Reviewed)
		return gopter.NewPropResult(false, label)
	}
	return gopter.NewPropResult(true, label)
}

func (c *GetCardCmd) String() string { return fmt.Sprintf("GetCard(%s)", c.Ref) }

// --- UpdateCardCmd ---

type UpdateCardCmd struct {
	Ref      string
	NewFront *string
	NewBack  *string
}

func (c *UpdateCardCmd) Run(sut commands.SystemUnderTest) commands.Result {
	lsut := sut.(*LeitnerSUT)
	cardID, err := lsut.realID(c.Ref)
	if err != nil {
		return err
	}
	card, err := lsut.Service.UpdateCard(cardID, c.NewFront, c.NewBack)
	if err != nil {
		return fmt.Errorf("update card run failed: %w", err)
	}
	return card
}

func (c *UpdateCardCmd) NextState(state commands.State) commands.State {
	cmdState := state.(*CommandState)
	card, ok := cmdState.Cards[c.Ref]
	if !ok {
		return state
	}
	if c.NewFront != nil {
		card.Front = *c.NewFront
	}
	if c.NewBack != nil {
		card.Back = *c.NewBack
	}
	cmdState.Cards[c.Ref] = card
	return state
}

func (c *UpdateCardCmd) PreCondition(state commands.State) bool {
	if c.NewFront == nil && c.NewBack == nil {
		return false
	}
	_, exists := state.(*CommandState).Cards[c.Ref]
	return exists
}

func (c *UpdateCardCmd) PostCondition(state commands.State, result commands.Result) *gopter.PropResult {
	cmdState := state.(*CommandState)
	label := fmt.Sprintf("PostCondition %s", c.String())

	if errResult, ok := result.(error); ok {
		cmdState.T.Logf("%s failed: %v", label, errResult)
		return gopter.NewPropResult(false, label)
	}
	card := result.(storage.Card)

	model := cmdState.Cards[c.Ref]
	if card.Front != model.Front || card.Back != model.Back {
		cmdState.T.Logf("%s: text mismatch after update, expected Front=%q Back=%q got Front=%q Back=%q",
			label, model.Front, model.Back, card.Front, card.Back)
		return gopter.NewPropResult(false, label)
	}
	// Editing text must never touch the schedule
	if card.Leitner.Box != model.Box || model.Reviewed != (card.Leitner.LastReviewed != nil) {
		cmdState.T.Logf("%s: edit changed the schedule, box %d reviewed=%v", label, card.Leitner.Box, model.Reviewed)
		return gopter.NewPropResult(false, label)
	}
	return gopter.NewPropResult(true, label)
}

func (c *UpdateCardCmd) String() string {
	front, back := "<keep>", "<keep>"
	if c.NewFront != nil {
		front = fmt.Sprintf("%q", *c.NewFront)
	}
	if c.NewBack != nil {
		back = fmt.Sprintf("%q", *c.NewBack)
	}
	return fmt.Sprintf("UpdateCard(%s, Front: %s, Back: %s)", c.Ref, front, back)
}

// --- DeleteCardCmd ---

type DeleteCardCmd struct {
	Ref string
}

func (c *DeleteCardCmd) Run(sut commands.SystemUnderTest) commands.Result {
	lsut := sut.(*LeitnerSUT)
	cardID, err := lsut.realID(c.Ref)
	if err != nil {
		return err
	}
	if err := lsut.Service.DeleteCard(cardID); err != nil {
		return fmt.Errorf("delete card run failed: %w", err)
	}
	// The card must be gone immediately
	if _, err := lsut.Service.GetCard(cardID); err == nil {
		return fmt.Errorf("card %s still retrievable after delete", cardID)
	}
	delete(lsut.RealIDs, c.Ref)
	return nil
}

func (c *DeleteCardCmd) NextState(state commands.State) commands.State {
	cmdState := state.(*CommandState)
	delete(cmdState.Cards, c.Ref)
	cmdState.removeRef(c.Ref)
	return state
}

func (c *DeleteCardCmd) PreCondition(state commands.State) bool {
	_, exists := state.(*CommandState).Cards[c.Ref]
	return exists
}

func (c *DeleteCardCmd) PostCondition(state commands.State, result commands.Result) *gopter.PropResult {
	cmdState := state.(*CommandState)
	label := fmt.Sprintf("PostCondition %s", c.String())

	if errResult, ok := result.(error); ok {
		cmdState.T.Logf("%s failed: %v", label, errResult)
		return gopter.NewPropResult(false, label)
	}
	return gopter.NewPropResult(true, label)
}

func (c *DeleteCardCmd) String() string { return fmt.Sprintf("DeleteCard(%s)", c.Ref) }

// --- SubmitReviewCmd ---

type SubmitReviewCmd struct {
	Ref     string
	Outcome leitner.Outcome
}

func (c *SubmitReviewCmd) Run(sut commands.SystemUnderTest) commands.Result {
	lsut := sut.(*LeitnerSUT)
	cardID, err := lsut.realID(c.Ref)
	if err != nil {
		return err
	}
	card, err := lsut.Service.SubmitReview(cardID, c.Outcome)
	if err != nil {
		return fmt.Errorf("submit review run failed: %w", err)
	}
	return card
}

func (c *SubmitReviewCmd) NextState(state commands.State) commands.State {
	cmdState := state.(*CommandState)
	card, ok := cmdState.Cards[c.Ref]
	if !ok {
		return state
	}
	if c.Outcome == leitner.OutcomeCorrect {
		if card.Box < leitner.MaxBox {
			card.Box++
		}
		card.Correct++
	} else {
		card.Box = leitner.MinBox
		card.Incorrect++
	}
	card.Reviewed = true
	cmdState.Cards[c.Ref] = card
	return state
}

func (c *SubmitReviewCmd) PreCondition(state commands.State) bool {
	_, exists := state.(*CommandState).Cards[c.Ref]
	return exists
}

func (c *SubmitReviewCmd) PostCondition(state commands.State, result commands.Result) *gopter.PropResult {
	cmdState := state.(*CommandState)
	label := fmt.Sprintf("PostCondition %s", c.String())

	if errResult, ok := result.(error); ok {
		cmdState.T.Logf("%s failed: %v", label, errResult)
		return gopter.NewPropResult(false, label)
	}
	card := result.(storage.Card)

	model := cmdState.Cards[c.Ref]
	if card.Leitner.Box != model.Box {
		cmdState.T.Logf("%s: box mismatch, expected %d got %d", label, model.Box, card.Leitner.Box)
		return gopter.NewPropResult(false, label)
	}
	if card.Leitner.LastReviewed == nil {
		cmdState.T.Logf("%s: review did not stamp the card", label)
		return gopter.NewPropResult(false, label)
	}
	// Reviews must never rewrite the card text
	if card.Front != model.Front || card.Back != model.Back {
		cmdState.T.Logf("%s: review changed the card text", label)
		return gopter.NewPropResult(false, label)
	}
	return gopter.NewPropResult(true, label)
}

func (c *SubmitReviewCmd) String() string {
	return fmt.Sprintf("SubmitReview(%s, Outcome: %s)", c.Ref, c.Outcome)
}

// --- GetDueCardCmd ---

// dueCardResult carries everything GetDueCard returns, including the
// error, so the postcondition can check the no-cards-due contract. Ref
// is the model ref bound to the returned card, when one was returned.
type dueCardResult struct {
	Ref   string
	Card  storage.Card
	Stats leitner.Stats
	Err   error
}

type GetDueCardCmd struct{}

func (c *GetDueCardCmd) Run(sut commands.SystemUnderTest) commands.Result {
	lsut := sut.(*LeitnerSUT)
	card, stats, err := lsut.Service.GetDueCard(lsut.CollectionID)
	res := dueCardResult{Card: card, Stats: stats, Err: err}
	if err == nil {
		for ref, id := range lsut.RealIDs {
			if id == card.ID {
				res.Ref = ref
				break
			}
		}
	}
	return res
}

func (c *GetDueCardCmd) NextState(state commands.State) commands.State {
	return state // Reads never change the model
}

func (c *GetDueCardCmd) PreCondition(state commands.State) bool {
	return true
}

func (c *GetDueCardCmd) PostCondition(state commands.State, result commands.Result) *gopter.PropResult {
	cmdState := state.(*CommandState)
	label := fmt.Sprintf("PostCondition %s", c.String())

	res, ok := result.(dueCardResult)
	if !ok {
		cmdState.T.Logf("%s: unexpected result type %T", label, result)
		return gopter.NewPropResult(false, label)
	}

	// Statistics must match the model whether or not a card was due
	expected := cmdState.expectedStats()
	if res.Stats != expected {
		cmdState.T.Logf("%s: stats mismatch, expected %+v got %+v", label, expected, res.Stats)
		return gopter.NewPropResult(false, label)
	}

	if expected.Due == 0 {
		if res.Err == nil {
			cmdState.T.Logf("%s: expected no-cards-due error, got card %s", label, res.Card.ID)
			return gopter.NewPropResult(false, label)
		}
		if !strings.Contains(res.Err.Error(), "no cards due for review") {
			cmdState.T.Logf("%s: unexpected error: %v", label, res.Err)
			return gopter.NewPropResult(false, label)
		}
		return gopter.NewPropResult(true, label)
	}

	if res.Err != nil {
		cmdState.T.Logf("%s: expected a due card, got error: %v", label, res.Err)
		return gopter.NewPropResult(false, label)
	}
	model, exists := cmdState.Cards[res.Ref]
	if res.Ref == "" || !exists {
		cmdState.T.Logf("%s: returned card %s is not bound to any model ref", label, res.Card.ID)
		return gopter.NewPropResult(false, label)
	}
	if model.Reviewed {
		cmdState.T.Logf("%s: returned card %s was already reviewed today", label, res.Ref)
		return gopter.NewPropResult(false, label)
	}
	if res.Card.Front != model.Front || res.Card.Back != model.Back {
		cmdState.T.Logf("%s: due card text does not match the model for %s", label, res.Ref)
		return gopter.NewPropResult(false, label)
	}
	return gopter.NewPropResult(true, label)
}

func (c *GetDueCardCmd) String() string { return "GetDueCard()" }
