package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront-v2/internal/service"
	"storefront-v2/pkg/errors"
	"storefront-v2/pkg/logger"
)

func testLogger() *logger.Logger {
	return &logger.Logger{Logger: zap.NewNop()}
}

// fakeProvider scripts the platform API per endpoint
type fakeProvider struct {
	t *testing.T

	// errorKind, when set for an endpoint, produces a provider error payload
	errorKind map[string]string
	requests  []string
}

func (f *fakeProvider) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := strings.TrimPrefix(r.URL.Path, "/v1/")
		f.requests = append(f.requests, endpoint)

		require.Equal(f.t, "test-key", r.URL.Query().Get("key"))

		if kind, ok := f.errorKind[endpoint]; ok {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, `{"error":{"code":400,"message":%q}}`, kind)
			return
		}

		var body map[string]interface{}
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))

		switch endpoint {
		case "accounts:signUp", "accounts:signInWithPassword":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"localId":      "uid-1",
				"email":        body["email"],
				"idToken":      "tok-1",
				"refreshToken": "refresh-1",
			})
		case "accounts:update":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"localId": "uid-1",
				"idToken": "tok-2",
			})
		case "accounts:sendOobCode", "accounts:signOut":
			fmt.Fprint(w, "{}")
		default:
			f.t.Fatalf("unexpected endpoint %q", endpoint)
		}
	})
}

func setupClient(t *testing.T) (service.IdentityProvider, *fakeProvider) {
	t.Helper()

	provider := &fakeProvider{t: t, errorKind: make(map[string]string)}
	server := httptest.NewServer(provider.handler())
	t.Cleanup(server.Close)

	return NewClient(server.URL, "test-key", testLogger()), provider
}

func TestClient_SignUpAndSignIn(t *testing.T) {
	client, _ := setupClient(t)
	ctx := context.Background()

	session, err := client.SignUp(ctx, "amy@example.com", "secret99")
	require.NoError(t, err)
	assert.Equal(t, "uid-1", session.UID)
	assert.Equal(t, "amy@example.com", session.Email)
	assert.Equal(t, "password", session.Provider)

	session, err = client.SignIn(ctx, "amy@example.com", "secret99")
	require.NoError(t, err)
	assert.Equal(t, "uid-1", session.UID)
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		kind     string
		wantCode errors.Code
	}{
		{kind: "EMAIL_EXISTS", wantCode: errors.CodeEmailInUse},
		{kind: "EMAIL_NOT_FOUND", wantCode: errors.CodeInvalidCredentials},
		{kind: "INVALID_PASSWORD", wantCode: errors.CodeInvalidCredentials},
		{kind: "INVALID_LOGIN_CREDENTIALS", wantCode: errors.CodeInvalidCredentials},
		{kind: "WEAK_PASSWORD", wantCode: errors.CodeWeakPassword},
		{kind: "USER_DISABLED", wantCode: errors.CodeUserNotFound},
		{kind: "TOKEN_EXPIRED", wantCode: errors.CodeRequiresRecentLogin},
		{kind: "TOO_MANY_ATTEMPTS_TRY_LATER", wantCode: errors.CodeTooManyAttempts},
		{kind: "SOMETHING_NEW", wantCode: errors.CodeNone},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			client, provider := setupClient(t)
			provider.errorKind["accounts:signInWithPassword"] = tt.kind

			_, err := client.SignIn(context.Background(), "amy@example.com", "secret99")
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, errors.CodeOf(err))
			assert.Equal(t, errors.ErrorTypeProvider, errors.TypeOf(err))
		})
	}
}

func TestClient_UpdateDisplayNameNeedsSession(t *testing.T) {
	client, provider := setupClient(t)
	ctx := context.Background()

	// No prior sign-in: there is no token to authorize the update
	err := client.UpdateDisplayName(ctx, "uid-1", "Amy")
	require.Error(t, err)
	assert.Equal(t, errors.CodeRequiresRecentLogin, errors.CodeOf(err))

	_, err = client.SignUp(ctx, "amy@example.com", "secret99")
	require.NoError(t, err)

	require.NoError(t, client.UpdateDisplayName(ctx, "uid-1", "Amy"))
	assert.Contains(t, provider.requests, "accounts:update")
}

func TestClient_SignOutDropsToken(t *testing.T) {
	client, provider := setupClient(t)
	ctx := context.Background()

	_, err := client.SignUp(ctx, "amy@example.com", "secret99")
	require.NoError(t, err)

	require.NoError(t, client.SignOut(ctx, "uid-1"))
	assert.Contains(t, provider.requests, "accounts:signOut")

	// Token gone: a second sign-out is a local no-op
	before := len(provider.requests)
	require.NoError(t, client.SignOut(ctx, "uid-1"))
	assert.Len(t, provider.requests, before)

	// And authorized calls fail until the next sign-in
	err = client.UpdatePassword(ctx, "uid-1", "newpass1")
	require.Error(t, err)
	assert.Equal(t, errors.CodeRequiresRecentLogin, errors.CodeOf(err))
}

func TestClient_SendPasswordReset(t *testing.T) {
	client, provider := setupClient(t)

	require.NoError(t, client.SendPasswordReset(context.Background(), "amy@example.com"))
	assert.Equal(t, []string{"accounts:sendOobCode"}, provider.requests)
}
