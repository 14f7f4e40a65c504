package google

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"storefront-v2/internal/config"
	"storefront-v2/internal/domain"
	"storefront-v2/pkg/errors"
	"storefront-v2/pkg/logger"
	"storefront-v2/pkg/redis"
)

const (
	callbackPath = "/auth/google/callback"

	// popupTimeout bounds how long the popup flow waits for the user
	popupTimeout = 3 * time.Minute

	// exchangeTimeout bounds the code-for-token exchange when resolving a
	// redirect on a fresh engine start
	exchangeTimeout = 10 * time.Second

	// staleAfter is the timeout guard: pending redirect state older than
	// this is force-cleared instead of resolved
	staleAfter = 15 * time.Minute
)

var mobileUA = regexp.MustCompile(`Android|iPhone|iPad|iPod|Opera Mini|IEMobile|WPDesktop`)

// IsMobileUserAgent reports whether the user agent gets the redirect flow
func IsMobileUserAgent(userAgent string) bool {
	return mobileUA.MatchString(userAgent)
}

// DetectDevice maps a user agent onto a device class
func DetectDevice(userAgent string) string {
	if IsMobileUserAgent(userAgent) {
		return "mobile"
	}
	return "desktop"
}

// Authenticator implements the Google sign-in flows: an interactive loopback
// flow standing in for the desktop popup, and a detached redirect flow whose
// completion survives in the persisted redirect-state slot.
type Authenticator struct {
	oauthCfg     *oauth2.Config
	local        *redis.LocalStore
	log          *logger.Logger
	callbackAddr string
	homeURL      string

	// openURL presents the provider consent page to the user; the default
	// logs the URL for the embedding page to open.
	openURL func(url string)

	// now is swappable for redirect-timeout tests
	now func() time.Time
}

// NewAuthenticator creates a Google authenticator from configuration
func NewAuthenticator(cfg *config.Config, local *redis.LocalStore, log *logger.Logger) *Authenticator {
	a := &Authenticator{
		oauthCfg: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  fmt.Sprintf("http://%s%s", cfg.CallbackAddr, callbackPath),
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: googleoauth.Endpoint,
		},
		local:        local,
		log:          log.Named("google"),
		callbackAddr: cfg.CallbackAddr,
		homeURL:      cfg.HomeURL,
		now:          time.Now,
	}
	a.openURL = func(url string) {
		a.log.WithField("url", url).Info("open the Google consent page")
	}
	return a
}

type callbackResult struct {
	code string
	err  string
}

// SignInPopup runs the interactive desktop flow: a loopback listener plays the
// popup, capturing the authorization code from the provider's callback.
func (a *Authenticator) SignInPopup(ctx context.Context) (*domain.Session, error) {
	listener, err := net.Listen("tcp", a.callbackAddr)
	if err != nil {
		// The popup analog could not open at all.
		return nil, errors.NewProviderError(errors.CodePopupBlocked,
			"Could not open the sign-in window", err)
	}

	results := make(chan callbackResult, 1)

	router := chi.NewRouter()
	router.Get(callbackPath, func(w http.ResponseWriter, r *http.Request) {
		res := callbackResult{
			code: r.URL.Query().Get("code"),
			err:  r.URL.Query().Get("error"),
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if res.err != "" || res.code == "" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, "<html><body>Sign-in failed. You can close this window.</body></html>")
		} else {
			fmt.Fprint(w, "<html><body>Sign-in complete. You can close this window.</body></html>")
		}
		select {
		case results <- res:
		default:
		}
	})

	server := &http.Server{Handler: router}
	go func() {
		if serveErr := server.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			a.log.WithError(serveErr).Warn("callback listener stopped unexpectedly")
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	authURL := a.oauthCfg.AuthCodeURL("state", oauth2.AccessTypeOffline)
	a.openURL(authURL)

	timer := time.NewTimer(popupTimeout)
	defer timer.Stop()

	select {
	case res := <-results:
		if res.err != "" {
			return nil, classifyCallbackError(res.err)
		}
		return a.completeExchange(ctx, res.code)
	case <-timer.C:
		return nil, errors.NewProviderError(errors.CodePopupClosed,
			"Sign-in window timed out", nil)
	case <-ctx.Done():
		return nil, errors.NewProviderError(errors.CodeUserCancelled,
			"Sign-in cancelled", ctx.Err())
	}
}

// BeginRedirect persists the pending redirect state and hands off to the
// provider. No further handling happens in this call; the navigation boundary
// is crossed and completion is observed by ResolveRedirect on a later start.
func (a *Authenticator) BeginRedirect(ctx context.Context) error {
	state := domain.RedirectState{
		Phase:     domain.RedirectPending,
		StartedAt: a.now(),
		ReturnURL: a.homeURL,
	}
	if err := a.local.SaveRedirectState(ctx, state); err != nil {
		return errors.NewInternalError("Failed to persist redirect state", err)
	}

	authURL := a.oauthCfg.AuthCodeURL("state", oauth2.AccessTypeOffline)
	a.log.Info("redirecting to Google sign-in")
	a.openURL(authURL)
	return nil
}

// AcceptRedirectCode stores the authorization code the returning navigation
// carried, so ResolveRedirect can complete the exchange.
func (a *Authenticator) AcceptRedirectCode(ctx context.Context, code string) error {
	state, err := a.local.LoadRedirectState(ctx)
	if err != nil {
		return err
	}
	if !state.InFlight() {
		a.log.Warn("redirect code arrived with no redirect in flight, ignoring")
		return nil
	}
	state.Code = code
	return a.local.SaveRedirectState(ctx, state)
}

// ResolveRedirect finishes a previously started redirect flow. Whatever the
// outcome, the persisted state is cleared so future page loads start clean.
func (a *Authenticator) ResolveRedirect(ctx context.Context) (*domain.Session, error) {
	state, err := a.local.LoadRedirectState(ctx)
	if err != nil {
		a.log.WithError(err).Warn("could not read redirect state")
		return nil, nil
	}
	if !state.InFlight() {
		return nil, nil
	}

	// Timeout guard: a pending attempt that never resolved must not wedge
	// sign-in on every future page load.
	if state.Expired(staleAfter, a.now()) {
		a.log.Warn("redirect attempt expired, clearing stale state")
		_ = a.local.ClearRedirectState(ctx)
		return nil, nil
	}

	state.Phase = domain.RedirectResolving
	_ = a.local.SaveRedirectState(ctx, state)

	if state.Code == "" {
		// Expected a result, none arrived: abandoned, not failed.
		a.log.Info("no redirect result found, treating attempt as abandoned")
		_ = a.local.ClearRedirectState(ctx)
		return nil, nil
	}

	exchangeCtx, cancel := context.WithTimeout(ctx, exchangeTimeout)
	defer cancel()

	session, err := a.completeExchange(exchangeCtx, state.Code)
	_ = a.local.ClearRedirectState(ctx)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// completeExchange trades the authorization code for a token and builds the
// session from the Google userinfo endpoint.
func (a *Authenticator) completeExchange(ctx context.Context, code string) (*domain.Session, error) {
	token, err := a.oauthCfg.Exchange(ctx, code)
	if err != nil {
		return nil, errors.NewProviderError(errors.CodeNone,
			"Google token exchange failed", err)
	}

	svc, err := oauth2api.NewService(ctx,
		option.WithTokenSource(a.oauthCfg.TokenSource(ctx, token)))
	if err != nil {
		return nil, errors.NewInternalError("Failed to create userinfo service", err)
	}

	info, err := svc.Userinfo.Get().Do()
	if err != nil {
		return nil, errors.NewProviderError(errors.CodeNone,
			"Failed to fetch Google user profile", err)
	}

	session := &domain.Session{
		UID:         info.Id,
		Email:       info.Email,
		DisplayName: info.Name,
		PhotoURL:    info.Picture,
		Provider:    "google.com",
	}
	a.log.WithFields(map[string]interface{}{
		"uid":   session.UID,
		"email": session.Email,
	}).Info("Google sign-in complete")
	return session, nil
}

// classifyCallbackError maps the provider's callback error parameter onto the
// structured taxonomy.
func classifyCallbackError(kind string) error {
	switch kind {
	case "access_denied":
		return errors.NewProviderError(errors.CodeUserCancelled, "Sign-in cancelled", nil)
	case "redirect_uri_mismatch", "unauthorized_client":
		return errors.NewProviderError(errors.CodeUnauthorizedDomain,
			"This domain is not authorized for Google sign-in", nil)
	case "invalid_client", "consent_required":
		return errors.NewProviderError(errors.CodeOAuthNotPublished,
			"The Google OAuth app is not published", nil)
	case "unsupported_response_type":
		return errors.NewProviderError(errors.CodeOperationNotSupported,
			"This sign-in method is not supported here", nil)
	default:
		return errors.NewProviderError(errors.CodeNone,
			fmt.Sprintf("Google sign-in failed: %s", kind), nil)
	}
}
