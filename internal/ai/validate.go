package ai

import (
	"github.com/go-playground/validator/v10"
)

// NewValidator returns a validator that knows the incident_type and category enumerations
// used on models.Classification.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("incident_type", func(fl validator.FieldLevel) bool {
		return ValidIncidentType(fl.Field().String())
	})
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return ValidCategory(fl.Field().String())
	})
	return v
}
