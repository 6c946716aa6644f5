package validator

import (
	"reflect"
	"strings"

	apperrors "github.com/edadapt/assessment-service/internal/errors"
	"github.com/edadapt/assessment-service/internal/models"
	"github.com/go-playground/validator/v10"
)

// Validator wraps the struct validator with the service's custom tags.
type Validator struct {
	structValidator *validator.Validate
}

// New creates a new validator instance with all custom tags registered.
func New() *Validator {
	structValidator := validator.New()
	registerCustomValidators(structValidator)

	return &Validator{
		structValidator: structValidator,
	}
}

// ValidateStruct validates struct tags and maps failures onto the
// service's ValidationErrors type.
func (v *Validator) ValidateStruct(s interface{}) error {
	if err := v.structValidator.Struct(s); err != nil {
		if errs := apperrors.ToValidationErrors(err); len(errs) > 0 {
			return errs
		}
		return err
	}
	return nil
}

// Var validates a single value against a tag expression.
func (v *Validator) Var(field interface{}, tag string) error {
	return v.structValidator.Var(field, tag)
}

// registerCustomValidators registers all custom validation functions
func registerCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("difficulty_tier", validateDifficultyTier)
	validate.RegisterValidation("test_code", validateTestCode)
	validate.RegisterValidation("test_status", validateTestStatus)
	validate.RegisterValidation("user_role", validateUserRole)

	// Custom tag name function for better error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Custom validation functions

func validateDifficultyTier(fl validator.FieldLevel) bool {
	return models.DifficultyTier(fl.Field().String()).Valid()
}

// validateTestCode accepts exactly six uppercase letters or digits.
func validateTestCode(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if len(value) != 6 {
		return false
	}
	for _, c := range value {
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

func validateTestStatus(fl validator.FieldLevel) bool {
	switch models.TestStatus(fl.Field().String()) {
	case models.TestStatusDraft, models.TestStatusActive, models.TestStatusArchived:
		return true
	}
	return false
}

func validateUserRole(fl validator.FieldLevel) bool {
	switch models.UserRole(fl.Field().String()) {
	case models.RoleStudent, models.RoleTeacher, models.RoleAdmin:
		return true
	}
	return false
}
