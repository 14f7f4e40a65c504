package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents different types of application errors
type ErrorType string

const (
	ErrorTypeConfiguration ErrorType = "configuration"  // database permission / security rule problems
	ErrorTypeAccountState  ErrorType = "account_state"  // identity session exists but user document does not
	ErrorTypeProvider      ErrorType = "provider"       // errors surfaced by the identity provider
	ErrorTypeSync          ErrorType = "sync"           // remote read/write failures, logged and swallowed
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeInternal      ErrorType = "internal"
)

// Code identifies a machine-readable provider error kind. Flow routing relies on
// these codes, never on message text.
type Code string

const (
	CodeNone                    Code = ""
	CodeInvalidCredentials      Code = "invalid_credentials"
	CodeEmailInUse              Code = "email_in_use"
	CodeWeakPassword            Code = "weak_password"
	CodeUserNotFound            Code = "user_not_found"
	CodeUnauthorizedDomain      Code = "unauthorized_domain"
	CodePopupBlocked            Code = "popup_blocked"
	CodePopupClosed             Code = "popup_closed_by_user"
	CodeUserCancelled           Code = "user_cancelled"
	CodeOAuthNotPublished       Code = "oauth_not_published"
	CodeRequiresRecentLogin     Code = "requires_recent_login"
	CodeOperationNotSupported   Code = "operation_not_supported"
	CodeAccountExistsOtherCreds Code = "account_exists_with_different_credential"
	CodePermissionDenied        Code = "permission_denied"
	CodeTooManyAttempts         Code = "too_many_attempts"
)

// AppError represents a structured application error
type AppError struct {
	Type        ErrorType `json:"type"`
	Code        Code      `json:"code,omitempty"`
	Message     string    `json:"message"`
	Remediation string    `json:"remediation,omitempty"`
	Internal    error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Internal.Error())
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Internal
}

// UserMessage returns the text to surface to the user, preferring remediation
// guidance when one is attached.
func (e *AppError) UserMessage() string {
	if e.Remediation != "" {
		return e.Message + "\n\n" + e.Remediation
	}
	return e.Message
}

// NewConfigurationError creates an error for permission-denied database responses
func NewConfigurationError(message string, internal error) *AppError {
	return &AppError{
		Type:        ErrorTypeConfiguration,
		Code:        CodePermissionDenied,
		Message:     message,
		Remediation: "Check the document database security rules for the users collection.",
		Internal:    internal,
	}
}

// NewAccountStateError creates an error for a session without a user document
func NewAccountStateError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeAccountState,
		Message: message,
	}
}

// NewProviderError creates an error carrying the provider's machine-readable kind
func NewProviderError(code Code, message string, internal error) *AppError {
	return &AppError{
		Type:        ErrorTypeProvider,
		Code:        code,
		Message:     message,
		Remediation: remediationFor(code),
		Internal:    internal,
	}
}

// NewSyncError creates an error for remote sync failures; callers log and swallow these
func NewSyncError(message string, internal error) *AppError {
	return &AppError{
		Type:     ErrorTypeSync,
		Message:  message,
		Internal: internal,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, internal error) *AppError {
	return &AppError{
		Type:     ErrorTypeInternal,
		Message:  message,
		Internal: internal,
	}
}

// remediationFor maps known provider error kinds to actionable guidance text
func remediationFor(code Code) string {
	switch code {
	case CodeUnauthorizedDomain:
		return "Add this domain under Authentication > Settings > Authorized domains in the provider console."
	case CodePopupBlocked:
		return "Allow popups for this site and try again."
	case CodeOAuthNotPublished:
		return "The OAuth consent screen is still in testing mode. Publish the app in the provider console."
	case CodeRequiresRecentLogin:
		return "This action requires a recent login. Log out and log back in, then try again."
	case CodeOperationNotSupported:
		return "This sign-in method is not supported here. Refresh, or try a different browser."
	case CodeAccountExistsOtherCreds:
		return "An account with this email already exists using a different sign-in method."
	default:
		return ""
	}
}

// TypeOf returns the ErrorType of err, or ErrorTypeInternal for plain errors
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// CodeOf returns the provider code of err, or CodeNone
func CodeOf(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeNone
}

// IsCancellation reports whether err represents the user abandoning a sign-in
// flow; these are swallowed silently.
func IsCancellation(err error) bool {
	switch CodeOf(err) {
	case CodePopupClosed, CodeUserCancelled:
		return true
	}
	return false
}

// IsPermissionDenied reports whether err is a database permission failure
func IsPermissionDenied(err error) bool {
	return CodeOf(err) == CodePermissionDenied
}
