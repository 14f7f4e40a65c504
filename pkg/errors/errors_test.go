package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{name: "configuration", err: NewConfigurationError("denied", nil), want: ErrorTypeConfiguration},
		{name: "account state", err: NewAccountStateError("no document"), want: ErrorTypeAccountState},
		{name: "provider", err: NewProviderError(CodeEmailInUse, "in use", nil), want: ErrorTypeProvider},
		{name: "validation", err: NewValidationError("too short"), want: ErrorTypeValidation},
		{name: "plain error", err: fmt.Errorf("boom"), want: ErrorTypeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TypeOf(tt.err))
		})
	}
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeWeakPassword, CodeOf(NewProviderError(CodeWeakPassword, "weak", nil)))
	assert.Equal(t, CodeNone, CodeOf(fmt.Errorf("boom")))

	// Codes survive wrapping
	wrapped := fmt.Errorf("sign in: %w", NewProviderError(CodeInvalidCredentials, "bad", nil))
	assert.Equal(t, CodeInvalidCredentials, CodeOf(wrapped))
}

func TestIsCancellation(t *testing.T) {
	assert.True(t, IsCancellation(NewProviderError(CodePopupClosed, "closed", nil)))
	assert.True(t, IsCancellation(NewProviderError(CodeUserCancelled, "cancelled", nil)))
	assert.False(t, IsCancellation(NewProviderError(CodePopupBlocked, "blocked", nil)))
	assert.False(t, IsCancellation(fmt.Errorf("boom")))
}

func TestIsPermissionDenied(t *testing.T) {
	assert.True(t, IsPermissionDenied(NewConfigurationError("denied", nil)))
	assert.False(t, IsPermissionDenied(NewValidationError("nope")))
}

func TestUserMessage(t *testing.T) {
	// Remediation guidance rides along when one is known
	withGuidance := NewProviderError(CodePopupBlocked, "Could not open the sign-in window", nil)
	assert.Contains(t, withGuidance.UserMessage(), "Could not open the sign-in window")
	assert.Contains(t, withGuidance.UserMessage(), "Allow popups")

	plain := NewProviderError(CodeInvalidCredentials, "Invalid email or password", nil)
	assert.Equal(t, "Invalid email or password", plain.UserMessage())
}

func TestAppErrorUnwrap(t *testing.T) {
	inner := fmt.Errorf("socket closed")
	err := NewInternalError("request failed", inner)
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "socket closed")
}
