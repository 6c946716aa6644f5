package services

import (
	"errors"
	"fmt"

	apperrors "github.com/edadapt/assessment-service/internal/errors"
)

// ===== COMMON SERVICE ERRORS =====

var (
	// Generic errors
	ErrNotFound         = errors.New("resource not found")
	ErrUnauthorized     = errors.New("unauthorized access")
	ErrForbidden        = errors.New("forbidden - insufficient permissions")
	ErrValidationFailed = errors.New("validation failed")
	ErrInternalError    = errors.New("internal server error")
	ErrConflict         = errors.New("resource conflict")

	// Test specific errors
	ErrTestNotFound       = errors.New("test not found")
	ErrTestNotActive      = errors.New("test is not active")
	ErrTestNotEditable    = errors.New("test cannot be edited in current status")
	ErrTestAccessDenied   = errors.New("access denied to test")
	ErrTestCodeExhausted  = errors.New("could not generate a unique test code")
	ErrTestInvalidStatus  = errors.New("invalid test status transition")
	ErrTestHasNoQuestions = errors.New("test has no practice questions")

	// Session / attempt specific errors
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionClosed       = errors.New("session already submitted")
	ErrAlreadyCompleted    = errors.New("test already completed by this student")
	ErrAttemptAccessDenied = errors.New("access denied to attempt")

	// User errors
	ErrUserNotFound = errors.New("user not found")
	ErrInvalidRole  = errors.New("invalid user role")

	// Extraction errors
	ErrExtractionFailed      = errors.New("question extraction failed")
	ErrExtractionEmptyOutput = errors.New("extraction returned no questions")

	// Import errors
	ErrImportUnsupportedFormat = errors.New("unsupported import format")
	ErrImportEmptyFile         = errors.New("import file contains no questions")
)

// ===== CUSTOM ERROR TYPES =====

// Use shared validation errors from errors package
type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

type PermissionError struct {
	UserID   string `json:"user_id"`
	Resource string `json:"resource"`
	Action   string `json:"action"`
	Reason   string `json:"reason"`
}

func (pe *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: user %s cannot %s %s - %s",
		pe.UserID, pe.Action, pe.Resource, pe.Reason)
}

// ===== ERROR HELPERS =====

// NewValidationError creates a new validation error using the shared type
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return apperrors.NewValidationError(field, message, value)
}

func NewPermissionError(userID, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:   userID,
		Resource: resource,
		Action:   action,
		Reason:   reason,
	}
}

// IsNotFound checks if error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrTestNotFound) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrUserNotFound)
}

// IsUnauthorized checks if error represents an "unauthorized" condition
func IsUnauthorized(err error) bool {
	if errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrTestAccessDenied) ||
		errors.Is(err, ErrAttemptAccessDenied) {
		return true
	}
	var pe *PermissionError
	return errors.As(err, &pe)
}

// IsValidation checks if error represents a validation failure
func IsValidation(err error) bool {
	if errors.Is(err, ErrValidationFailed) {
		return true
	}
	var ve apperrors.ValidationErrors
	if errors.As(err, &ve) {
		return true
	}
	var single *apperrors.ValidationError
	return errors.As(err, &single)
}

// IsConflict checks if error represents a resource conflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrAlreadyCompleted) ||
		errors.Is(err, ErrSessionClosed) ||
		errors.Is(err, ErrTestNotEditable)
}
