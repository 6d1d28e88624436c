package types

import (
	"time"
)

// Item represents a catalog entry, either a plain food or a composite meal.
// Nutrient fields are per ServingWeight grams; a meal carries zero nutrient
// fields and is defined by its Recipe links instead.
type Item struct {
	ItemID          int64   `json:"item_id"`
	Name            string  `json:"name"`
	IsMeal          bool    `json:"is_meal"`
	ServingWeight   float64 `json:"serving_weight"`
	Calories        float64 `json:"calories"`
	Protein         float64 `json:"protein"`
	FatsSaturated   float64 `json:"fats_saturated"`
	FatsUnsaturated float64 `json:"fats_unsaturated"`
	CarbsSugar      float64 `json:"carbs_sugar"`
	CarbsFiber      float64 `json:"carbs_fiber"`
	CarbsStarch     float64 `json:"carbs_starch"`
}

// Recipe links a meal item to one ingredient item with the quantity in grams
// consumed per serving of the meal. Ingredients are always non-meal items.
type Recipe struct {
	Meal       int64   `json:"meal"`
	Ingredient int64   `json:"ingredient"`
	Quantity   float64 `json:"quantity"`
}

// ActionType tags an action record.
type ActionType string

const (
	ActionEat     ActionType = "EAT"
	ActionAdd     ActionType = "ADD"
	ActionDispose ActionType = "DISPOSE"
	ActionCook    ActionType = "COOK"
)

// Action is an event recorded against the backend: consumption (EAT) or a
// pantry mutation (ADD/DISPOSE/COOK). Ingredient is only meaningful for COOK,
// where it names the specific ingredient consumed for the cooked meal.
type Action struct {
	ActionID   int64      `json:"action_id"`
	ActionType ActionType `json:"action_type"`
	Item       int64      `json:"item"`
	Ingredient int64      `json:"ingredient,omitempty"`
	Quantity   float64    `json:"quantity"`
	Timestamp  time.Time  `json:"timestamp"`
}

// Macros is the four-tuple describing nutritional content. Values are exact
// fractional grams/kcal; rounding belongs to the presentation layer.
type Macros struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fats     float64 `json:"fats"`
}

// Add returns the component-wise sum of two Macros.
func (m Macros) Add(other Macros) Macros {
	return Macros{
		Calories: m.Calories + other.Calories,
		Protein:  m.Protein + other.Protein,
		Carbs:    m.Carbs + other.Carbs,
		Fats:     m.Fats + other.Fats,
	}
}

// Scale returns the Macros multiplied by a factor.
func (m Macros) Scale(factor float64) Macros {
	return Macros{
		Calories: m.Calories * factor,
		Protein:  m.Protein * factor,
		Carbs:    m.Carbs * factor,
		Fats:     m.Fats * factor,
	}
}

// Goal holds the per-user daily nutrient targets.
type Goal struct {
	GoalCalories float64 `json:"goal_calories"`
	GoalProtein  float64 `json:"goal_protein"`
	GoalCarbs    float64 `json:"goal_carbs"`
	GoalFats     float64 `json:"goal_fats"`
}

// DefaultGoal returns the targets used until the server has a settings record.
func DefaultGoal() Goal {
	return Goal{
		GoalCalories: 2000,
		GoalProtein:  150,
		GoalCarbs:    250,
		GoalFats:     45,
	}
}

// Credentials is the token pair returned by the login exchange.
type Credentials struct {
	AccessToken  string `json:"access"`
	RefreshToken string `json:"refresh"`
}

// LogEntry is one EAT record resolved against the catalog for display.
type LogEntry struct {
	ActionID  int64     `json:"action_id"`
	Item      Item      `json:"item"`
	Quantity  float64   `json:"quantity"`
	Timestamp time.Time `json:"timestamp"`
	Macros    Macros    `json:"macros"`
}
