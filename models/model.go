// Package models - Class label tables for the supported detectors.
package models

import "github.com/pkg/errors"

// ModelFamily is the family of models, which fixes the built-in label table.
type ModelFamily string

const (
	// ModelFamilyIngredients is the five-class ingredient detector shipped with the app.
	ModelFamilyIngredients ModelFamily = "ingredients"
	// ModelFamilyYOLO is a stock YOLO model with the 80 COCO classes and no background class.
	ModelFamilyYOLO ModelFamily = "yolo"
	// ModelFamilyCOCO is the 80 COCO classes with index 0 reserved for the background.
	ModelFamilyCOCO ModelFamily = "coco"
)

// Families lists the built-in model families.
var Families = []ModelFamily{ModelFamilyIngredients, ModelFamilyYOLO, ModelFamilyCOCO}

// BuiltinTable returns the bundled label table for family.
func BuiltinTable(family ModelFamily) (*LabelTable, error) {
	switch family {
	case ModelFamilyIngredients:
		return IngredientClasses, nil
	case ModelFamilyYOLO:
		return YOLOClasses, nil
	case ModelFamilyCOCO:
		return COCOClasses, nil
	default:
		return nil, errors.Errorf("unknown model family %q", family)
	}
}
