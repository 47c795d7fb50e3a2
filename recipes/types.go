package recipes

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Ingredient is a canonical ingredient record.
type Ingredient struct {
	ID       int    `json:"id"`
	Title    string `json:"title"`
	ImageURL string `json:"image_url"`
}

// Summary is a recipe as listed in search results.
type Summary struct {
	ID              int    `json:"id"`
	Title           string `json:"title"`
	ImageURL        string `json:"image_url"`
	PreparationTime string `json:"preparation_time"`
}

// Recipe is a full recipe. The service returns the list fields as JSON-encoded strings.
type Recipe struct {
	Summary
	Servings        json.RawMessage `json:"servings"`
	IngredientsJSON string          `json:"ingredients"`
	StepsJSON       string          `json:"instructions"`
	NutritionJSON   string          `json:"nutrition_info"`
}

// RecipeIngredient is one line of a recipe's ingredient list.
type RecipeIngredient struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Step is one cooking instruction.
type Step struct {
	Instruction string `json:"instruction"`
	Image       string `json:"image"`
}

// Nutrient is one nutrition table row.
type Nutrient struct {
	Name   string            `json:"name"`
	Values map[string]string `json:"values"`
}

// Ingredients decodes the ingredient list.
func (r *Recipe) Ingredients() ([]RecipeIngredient, error) {
	var out []RecipeIngredient
	return out, decodeField("ingredients", r.IngredientsJSON, &out)
}

// Steps decodes the instructions.
func (r *Recipe) Steps() ([]Step, error) {
	var out []Step
	return out, decodeField("instructions", r.StepsJSON, &out)
}

// Nutrition decodes the nutrition table.
func (r *Recipe) Nutrition() ([]Nutrient, error) {
	var out []Nutrient
	return out, decodeField("nutrition_info", r.NutritionJSON, &out)
}

func decodeField(name, raw string, v any) error {
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return errors.Wrapf(err, "error decoding recipe %s", name)
	}
	return nil
}
