// Package validator provides struct validation utilities with custom validators.
package validator

import (
	stderrors "errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/vulnwatch/api/pkg/domain/license"
	"github.com/vulnwatch/api/pkg/domain/policy"
	"github.com/vulnwatch/api/pkg/domain/vulnerability"
	"github.com/vulnwatch/api/pkg/domain/workflow"
)

// cveIDRegex validates CVE IDs: CVE-YYYY-NNNNN (4+ digits)
var cveIDRegex = regexp.MustCompile(`^CVE-\d{4}-\d{4,}$`)

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

	// Vulnerability domain
	_ = v.RegisterValidation("cve_id", validateCVEID)
	_ = v.RegisterValidation("severity", validateSeverity)
	_ = v.RegisterValidation("finding_status", validateFindingStatus)

	// Workflow domain
	_ = v.RegisterValidation("role", validateRole)

	// License/policy domain
	_ = v.RegisterValidation("license_classification", validateClassification)
	_ = v.RegisterValidation("policy_action", validatePolicyAction)

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

// validateCVEID validates that a string is a valid CVE ID (CVE-YYYY-NNNNN).
func validateCVEID(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // Let 'required' handle empty values
	}
	return cveIDRegex.MatchString(strings.ToUpper(value))
}

// validateSeverity validates that a string is a valid Severity.
func validateSeverity(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // Let 'required' handle empty values
	}
	return vulnerability.Severity(strings.ToLower(value)).IsValid()
}

// validateFindingStatus validates that a string is a valid finding Status.
func validateFindingStatus(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // Let 'required' handle empty values
	}
	_, err := vulnerability.ParseStatus(value)
	return err == nil
}

// validateRole validates that a string is a valid workflow Role.
func validateRole(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // Let 'required' handle empty values
	}
	_, err := workflow.ParseRole(value)
	return err == nil
}

// validateClassification validates that a string is a valid license Classification.
func validateClassification(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // Let 'required' handle empty values
	}
	return license.Classification(strings.ToLower(value)).IsValid()
}

// validatePolicyAction validates that a string is a valid policy Action.
func validatePolicyAction(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // Let 'required' handle empty values
	}
	return policy.Action(strings.ToLower(value)).IsValid()
}

// formatErrorMessage converts validation errors to human-readable messages.
func formatErrorMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", e.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", e.Param())
	case "cve_id":
		return "must be a valid CVE ID (e.g., CVE-2024-12345)"
	case "severity":
		return fmt.Sprintf("must be one of: %s", formatSeverities())
	case "finding_status":
		return fmt.Sprintf("must be one of: %s", formatStatuses())
	case "role":
		return fmt.Sprintf("must be one of: %s", formatRoles())
	case "license_classification":
		return fmt.Sprintf("must be one of: %s", formatClassifications())
	case "policy_action":
		return "must be one of: block, warn, allow, audit"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	case "uuid":
		return "must be a valid UUID"
	case "url":
		return "must be a valid URL"
	default:
		return fmt.Sprintf("failed on '%s' validation", e.Tag())
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

// formatSeverities returns a comma-separated list of valid severities.
func formatSeverities() string {
	severities := vulnerability.AllSeverities()
	strs := make([]string, len(severities))
	for i, s := range severities {
		strs[i] = string(s)
	}
	return strings.Join(strs, ", ")
}

// formatStatuses returns a comma-separated list of valid finding statuses.
func formatStatuses() string {
	statuses := vulnerability.AllStatuses()
	strs := make([]string, len(statuses))
	for i, s := range statuses {
		strs[i] = string(s)
	}
	return strings.Join(strs, ", ")
}

// formatRoles returns a comma-separated list of valid roles.
func formatRoles() string {
	roles := workflow.AllRoles()
	strs := make([]string, len(roles))
	for i, r := range roles {
		strs[i] = string(r)
	}
	return strings.Join(strs, ", ")
}

// formatClassifications returns a comma-separated list of valid classifications.
func formatClassifications() string {
	classifications := license.AllClassifications()
	strs := make([]string, len(classifications))
	for i, c := range classifications {
		strs[i] = string(c)
	}
	return strings.Join(strs, ", ")
}
