package types

// LoginRequest contains the credentials for the token exchange.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterRequest contains the fields for account creation.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AddLogEntryRequest records one eaten food for a given day.
type AddLogEntryRequest struct {
	ItemID   int64   `json:"item_id"`
	Quantity float64 `json:"quantity"`
	Date     string  `json:"date"` // YYYY-MM-DD, defaults to today when empty
}

// PantryAmountRequest adds to or disposes from the pantry.
type PantryAmountRequest struct {
	ItemID   int64   `json:"item_id"`
	Quantity float64 `json:"quantity"`
}

// CookMealRequest commits a cook of one meal with user-adjusted quantities.
type CookMealRequest struct {
	MealID     int64             `json:"meal_id"`
	Quantities map[int64]float64 `json:"quantities"`
}

// CreateFoodRequest creates a plain food item in the catalog.
type CreateFoodRequest struct {
	Name            string  `json:"name" binding:"required"`
	ServingWeight   float64 `json:"serving_weight"`
	Calories        float64 `json:"calories"`
	Protein         float64 `json:"protein"`
	FatsSaturated   float64 `json:"fats_saturated"`
	FatsUnsaturated float64 `json:"fats_unsaturated"`
	CarbsSugar      float64 `json:"carbs_sugar"`
	CarbsFiber      float64 `json:"carbs_fiber"`
	CarbsStarch     float64 `json:"carbs_starch"`
}

// MealIngredient is one ingredient line of a meal being created.
type MealIngredient struct {
	IngredientID int64   `json:"ingredient_id"`
	Quantity     float64 `json:"quantity"`
}

// CreateMealRequest creates a composite meal and its recipe links.
type CreateMealRequest struct {
	Name        string           `json:"name" binding:"required"`
	Ingredients []MealIngredient `json:"ingredients" binding:"required"`
}
