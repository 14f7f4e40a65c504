package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"storefront-v2/internal/domain"
	"storefront-v2/internal/service"
	"storefront-v2/pkg/errors"
	"storefront-v2/pkg/logger"
)

// Client talks to the identity platform's REST API. It is the only component
// that sees raw credentials and session tokens.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *logger.Logger

	mu     sync.Mutex
	tokens map[string]string // uid -> current session token
}

// NewClient creates a new identity client
func NewClient(baseURL, apiKey string, log *logger.Logger) service.IdentityProvider {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log:    log.Named("identity"),
		tokens: make(map[string]string),
	}
}

// sessionResponse is the provider's reply to sign-up and sign-in calls
type sessionResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	PhotoURL     string `json:"profilePicture"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
}

type providerError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SignUp creates a new email/password account and returns its session
func (c *Client) SignUp(ctx context.Context, email, password string) (*domain.Session, error) {
	c.log.WithField("email", email).Debug("Attempting sign up")

	body := map[string]interface{}{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}
	var resp sessionResponse
	if err := c.post(ctx, "accounts:signUp", body, &resp); err != nil {
		return nil, err
	}
	return c.sessionFrom(&resp, "password"), nil
}

// SignIn authenticates an email/password account
func (c *Client) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	c.log.WithField("email", email).Debug("Attempting sign in")

	body := map[string]interface{}{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}
	var resp sessionResponse
	if err := c.post(ctx, "accounts:signInWithPassword", body, &resp); err != nil {
		return nil, err
	}
	return c.sessionFrom(&resp, "password"), nil
}

// UpdateDisplayName sets the display name on the account profile
func (c *Client) UpdateDisplayName(ctx context.Context, uid, displayName string) error {
	token, err := c.tokenFor(uid)
	if err != nil {
		return err
	}
	body := map[string]interface{}{
		"idToken":           token,
		"displayName":       displayName,
		"returnSecureToken": false,
	}
	return c.post(ctx, "accounts:update", body, nil)
}

// UpdatePassword replaces the account credential
func (c *Client) UpdatePassword(ctx context.Context, uid, newPassword string) error {
	token, err := c.tokenFor(uid)
	if err != nil {
		return err
	}
	body := map[string]interface{}{
		"idToken":           token,
		"password":          newPassword,
		"returnSecureToken": true,
	}
	var resp sessionResponse
	if err := c.post(ctx, "accounts:update", body, &resp); err != nil {
		return err
	}
	if resp.IDToken != "" {
		c.storeToken(uid, resp.IDToken)
	}
	return nil
}

// SendPasswordReset triggers the provider's reset-email flow
func (c *Client) SendPasswordReset(ctx context.Context, email string) error {
	body := map[string]interface{}{
		"requestType": "PASSWORD_RESET",
		"email":       email,
	}
	return c.post(ctx, "accounts:sendOobCode", body, nil)
}

// SignOut ends the session for the uid. The provider side is best effort; the
// local token is always dropped.
func (c *Client) SignOut(ctx context.Context, uid string) error {
	c.mu.Lock()
	token, ok := c.tokens[uid]
	delete(c.tokens, uid)
	c.mu.Unlock()

	if !ok {
		return nil
	}
	body := map[string]interface{}{"idToken": token}
	if err := c.post(ctx, "accounts:signOut", body, nil); err != nil {
		c.log.WithError(err).WithField("uid", uid).Warn("provider sign-out failed")
		return err
	}
	return nil
}

// sessionFrom builds a Session from a provider response, preferring response
// fields and falling back to token claims for profile data.
func (c *Client) sessionFrom(resp *sessionResponse, provider string) *domain.Session {
	session := &domain.Session{
		UID:         resp.LocalID,
		Email:       resp.Email,
		DisplayName: resp.DisplayName,
		PhotoURL:    resp.PhotoURL,
		Provider:    provider,
	}

	if resp.IDToken != "" {
		if claims := decodeClaims(resp.IDToken); claims != nil {
			if session.UID == "" {
				session.UID = stringClaim(claims, "sub")
			}
			if session.Email == "" {
				session.Email = stringClaim(claims, "email")
			}
			if session.DisplayName == "" {
				session.DisplayName = stringClaim(claims, "name")
			}
			if session.PhotoURL == "" {
				session.PhotoURL = stringClaim(claims, "picture")
			}
		}
		c.storeToken(session.UID, resp.IDToken)
	}
	return session
}

func (c *Client) storeToken(uid, token string) {
	c.mu.Lock()
	c.tokens[uid] = token
	c.mu.Unlock()
}

func (c *Client) tokenFor(uid string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	token, ok := c.tokens[uid]
	if !ok {
		return "", errors.NewProviderError(errors.CodeRequiresRecentLogin,
			"No active session token for this account", nil)
	}
	return token, nil
}

// post issues a JSON request against the platform API and decodes the reply
func (c *Client) post(ctx context.Context, endpoint string, body map[string]interface{}, out interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	url := fmt.Sprintf("%s/v1/%s?key=%s", c.baseURL, endpoint, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.NewProviderError(errors.CodeNone, "Identity provider unreachable", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return c.mapError(raw, resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to decode provider response: %w", err)
		}
	}
	return nil
}

// mapError converts a provider error payload into a structured AppError. The
// provider's machine-readable kind drives routing; message text never does.
func (c *Client) mapError(raw []byte, status int) error {
	var pe providerError
	if err := json.Unmarshal(raw, &pe); err != nil || pe.Error.Message == "" {
		return errors.NewProviderError(errors.CodeNone,
			fmt.Sprintf("Identity provider returned status %d", status), nil)
	}

	kind := pe.Error.Message
	switch kind {
	case "EMAIL_EXISTS":
		return errors.NewProviderError(errors.CodeEmailInUse, "An account with this email already exists", nil)
	case "EMAIL_NOT_FOUND", "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS":
		return errors.NewProviderError(errors.CodeInvalidCredentials, "Invalid email or password", nil)
	case "WEAK_PASSWORD":
		return errors.NewProviderError(errors.CodeWeakPassword, "Password must be at least 6 characters long", nil)
	case "USER_NOT_FOUND", "USER_DISABLED":
		return errors.NewProviderError(errors.CodeUserNotFound, "No account found for this user", nil)
	case "CREDENTIAL_TOO_OLD_LOGIN_AGAIN", "TOKEN_EXPIRED":
		return errors.NewProviderError(errors.CodeRequiresRecentLogin, "This action requires a recent login", nil)
	case "TOO_MANY_ATTEMPTS_TRY_LATER":
		return errors.NewProviderError(errors.CodeTooManyAttempts, "Too many attempts, try again later", nil)
	default:
		c.log.WithField("kind", kind).Warn("unclassified provider error")
		return errors.NewProviderError(errors.CodeNone, kind, nil)
	}
}

// decodeClaims extracts claims from a session token without verifying it; the
// engine is the token's audience, not its verifier.
func decodeClaims(token string) jwt.MapClaims {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil
	}
	return claims
}

func stringClaim(claims jwt.MapClaims, key string) string {
	if val, ok := claims[key].(string); ok {
		return val
	}
	return ""
}
