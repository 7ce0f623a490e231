package propertytest

import (
	"reflect"

	"github.com/danieldreier/mcp-leitner/internal/leitner"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/commands"
	"github.com/leanovate/gopter/gen"
)

// --- Custom Command Generators ---

// genCreateCardCmd produces CreateCardCmd instances with random text.
func genCreateCardCmd() gopter.Gen {
	return gopter.CombineGens(GenCardText(60), GenCardText(120)).
		Map(func(values []interface{}) commands.Command {
			return &CreateCardCmd{Front: values[0].(string), Back: values[1].(string)}
		})
}

// genGetDueCardCmd produces GetDueCardCmd instances.
func genGetDueCardCmd() gopter.Gen {
	return gen.Const(&GetDueCardCmd{}).Map(func(cmd *GetDueCardCmd) commands.Command {
		return cmd
	})
}

// genKnownRef picks one of the card refs the model knows about. The
// caller must ensure at least one ref exists.
func genKnownRef(cmdState *CommandState) gopter.Gen {
	refs := make([]interface{}, len(cmdState.Refs))
	for i, ref := range cmdState.Refs {
		refs[i] = ref
	}
	return gen.OneConstOf(refs...)
}

// genCommand builds the weighted command generator for the current
// model state. Ref-based commands only become available once at least
// one card exists.
func genCommand(state commands.State) gopter.Gen {
	cmdState := state.(*CommandState)

	weightedGens := []gen.WeightedGen{
		{Weight: 5, Gen: genCreateCardCmd()},
		{Weight: 2, Gen: genGetDueCardCmd()},
	}

	if len(cmdState.Refs) > 0 {
		refGen := genKnownRef(cmdState)

		// Weight: 2 - GetCardCmd
		getCardGen := refGen.FlatMap(func(refVal interface{}) gopter.Gen {
			ref, ok := refVal.(string)
			if !ok {
				return gen.Fail(reflect.TypeOf((*GetCardCmd)(nil)))
			}
			return gen.Const(&GetCardCmd{Ref: ref})
		}, reflect.TypeOf((*GetCardCmd)(nil)))
		weightedGens = append(weightedGens, gen.WeightedGen{Weight: 2, Gen: getCardGen})

		// Weight: 1 - DeleteCardCmd
		deleteCardGen := refGen.FlatMap(func(refVal interface{}) gopter.Gen {
			ref, ok := refVal.(string)
			if !ok {
				return gen.Fail(reflect.TypeOf((*DeleteCardCmd)(nil)))
			}
			return gen.Const(&DeleteCardCmd{Ref: ref})
		}, reflect.TypeOf((*DeleteCardCmd)(nil)))
		weightedGens = append(weightedGens, gen.WeightedGen{Weight: 1, Gen: deleteCardGen})

		// Weight: 3 - UpdateCardCmd
		updateCardGen := refGen.FlatMap(func(refVal interface{}) gopter.Gen {
			ref, ok := refVal.(string)
			if !ok {
				return gen.Fail(reflect.TypeOf((*UpdateCardCmd)(nil)))
			}
			return gopter.CombineGens(GenMaybeText(60), GenMaybeText(120)).
				SuchThat(func(values []interface{}) bool {
					return values[0].(*string) != nil || values[1].(*string) != nil
				}).
				Map(func(values []interface{}) commands.Command {
					return &UpdateCardCmd{
						Ref:      ref,
						NewFront: values[0].(*string),
						NewBack:  values[1].(*string),
					}
				})
		}, reflect.TypeOf((*UpdateCardCmd)(nil)))
		weightedGens = append(weightedGens, gen.WeightedGen{Weight: 3, Gen: updateCardGen})

		// Weight: 10 - SubmitReviewCmd
		submitReviewGen := refGen.FlatMap(func(refVal interface{}) gopter.Gen {
			ref, ok := refVal.(string)
			if !ok {
				return gen.Fail(reflect.TypeOf((*SubmitReviewCmd)(nil)))
			}
			return GenOutcome().Map(func(outcome leitner.Outcome) commands.Command {
				return &SubmitReviewCmd{Ref: ref, Outcome: outcome}
			})
		}, reflect.TypeOf((*SubmitReviewCmd)(nil)))
		weightedGens = append(weightedGens, gen.WeightedGen{Weight: 10, Gen: submitReviewGen})
	}

	return gen.Weighted(weightedGens)
}
