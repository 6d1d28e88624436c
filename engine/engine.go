// Package engine derives macro-nutrient totals from catalog items and
// consumption entries. It is pure computation: nothing in here mutates state
// or talks to the network.
package engine

import (
	"fmt"
	"log"

	"mealtrack/client/types"
)

// ItemResolver looks up catalog items by ID. The catalog cache satisfies it.
type ItemResolver interface {
	ItemByID(itemID int64) (types.Item, bool)
}

// ConsumptionEntry is the (item, quantity) pair the aggregator folds over.
type ConsumptionEntry struct {
	ItemID   int64
	Quantity float64
}

// ComputeItemMacros scales the item's per-serving nutrient fields linearly to
// quantityGrams. A non-positive serving weight is a configuration error on
// the item, reported as an error rather than producing garbage ratios.
func ComputeItemMacros(item types.Item, quantityGrams float64) (types.Macros, error) {
	if item.ServingWeight <= 0 {
		return types.Macros{}, fmt.Errorf("item %q (id %d) has invalid serving weight %v", item.Name, item.ItemID, item.ServingWeight)
	}

	ratio := quantityGrams / item.ServingWeight
	return types.Macros{
		Calories: item.Calories * ratio,
		Protein:  item.Protein * ratio,
		Carbs:    (item.CarbsSugar + item.CarbsFiber + item.CarbsStarch) * ratio,
		Fats:     (item.FatsSaturated + item.FatsUnsaturated) * ratio,
	}, nil
}

// ComputeMealMacros sums the ingredient macros over every recipe link of the
// meal. Unresolvable or misconfigured ingredients are skipped and logged; the
// catalog and recipe fetches are independent calls that may disagree briefly.
func ComputeMealMacros(meal types.Item, recipes []types.Recipe, resolver ItemResolver) types.Macros {
	var total types.Macros

	for _, recipe := range recipes {
		if recipe.Meal != meal.ItemID {
			continue
		}

		ingredient, ok := resolver.ItemByID(recipe.Ingredient)
		if !ok {
			log.Printf("Skipping recipe ingredient %d for meal %q: not in catalog", recipe.Ingredient, meal.Name)
			continue
		}

		macros, err := ComputeItemMacros(ingredient, recipe.Quantity)
		if err != nil {
			log.Printf("Skipping recipe ingredient %d for meal %q: %v", recipe.Ingredient, meal.Name, err)
			continue
		}

		total = total.Add(macros)
	}

	return total
}

// AggregateDailyTotals folds ComputeItemMacros over all entries with a
// zero-initialized accumulator. Entries referencing an unresolvable item are
// skipped and logged, never fatal.
func AggregateDailyTotals(entries []ConsumptionEntry, resolver ItemResolver) types.Macros {
	var total types.Macros

	for _, entry := range entries {
		item, ok := resolver.ItemByID(entry.ItemID)
		if !ok {
			log.Printf("Skipping consumption entry for item %d: not in catalog", entry.ItemID)
			continue
		}

		macros, err := ComputeItemMacros(item, entry.Quantity)
		if err != nil {
			log.Printf("Skipping consumption entry for item %d: %v", entry.ItemID, err)
			continue
		}

		total = total.Add(macros)
	}

	return total
}
