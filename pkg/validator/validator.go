// Package validator provides struct validation utilities with custom validators.
package validator

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/capscanio/capscan/pkg/domain/capability"
	"github.com/capscanio/capscan/pkg/domain/scansession"
)

// Validator wraps the go-playground validator with custom validations.
type Validator struct {
	validate *validator.Validate
}

// ValidationError represents a single field validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, e := range v {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return sb.String()
}

// New creates a new Validator with custom validators registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	_ = v.RegisterValidation("scan_phase", validateScanPhase)
	_ = v.RegisterValidation("scan_scope", validateScanScope)
	_ = v.RegisterValidation("scan_action", validateScanAction)
	_ = v.RegisterValidation("complexity", validateComplexity)

	return &Validator{validate: v}
}

// Validate validates a struct and returns ValidationErrors if validation fails.
func (v *Validator) Validate(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !stderrors.As(err, &validationErrors) {
		return err
	}

	result := make(ValidationErrors, 0, len(validationErrors))
	for _, e := range validationErrors {
		result = append(result, ValidationError{
			Field:   toSnakeCase(e.Field()),
			Message: formatErrorMessage(e),
		})
	}

	return result
}

// validateScanPhase validates that a string is a valid scan workflow phase.
func validateScanPhase(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // Let 'required' handle empty values
	}
	return scansession.Phase(value).IsValid()
}

// validateScanScope validates the selection scope choice.
func validateScanScope(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return value == "all" || value == "specific"
}

// validateScanAction validates the in-scan action.
func validateScanAction(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return value == "status" || value == "stop"
}

// validateComplexity validates that a string is a valid complexity level.
func validateComplexity(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return capability.Complexity(value).IsValid()
}

// formatErrorMessage converts validation errors to human-readable messages.
func formatErrorMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must have at least %s entries or characters", e.Param())
	case "max":
		return fmt.Sprintf("must have at most %s entries or characters", e.Param())
	case "scan_phase":
		return "must be one of: selecting, specifying, scanning, complete"
	case "scan_scope":
		return "must be one of: all, specific"
	case "scan_action":
		return "must be one of: status, stop"
	case "complexity":
		return fmt.Sprintf("must be one of: %s", formatComplexities())
	default:
		return fmt.Sprintf("failed validation: %s", e.Tag())
	}
}

// toSnakeCase converts PascalCase/camelCase to snake_case.
func toSnakeCase(s string) string {
	var result strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			result.WriteByte('_')
		}
		result.WriteRune(r)
	}
	return strings.ToLower(result.String())
}

// formatComplexities returns a comma-separated list of valid complexities.
func formatComplexities() string {
	all := capability.AllComplexities()
	strs := make([]string, len(all))
	for i, c := range all {
		strs[i] = c.String()
	}
	return strings.Join(strs, ", ")
}
