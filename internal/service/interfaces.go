package service

import (
	"context"

	"storefront-v2/internal/domain"
)

// DeviceClass selects between the popup and redirect social sign-in flows
type DeviceClass string

const (
	DeviceDesktop DeviceClass = "desktop"
	DeviceMobile  DeviceClass = "mobile"
)

// IdentityProvider defines the interface to the external identity platform
type IdentityProvider interface {
	// SignUp creates a new email/password account and returns its session
	SignUp(ctx context.Context, email, password string) (*domain.Session, error)

	// SignIn authenticates an email/password account
	SignIn(ctx context.Context, email, password string) (*domain.Session, error)

	// UpdateDisplayName sets the display name on the account profile
	UpdateDisplayName(ctx context.Context, uid, displayName string) error

	// UpdatePassword replaces the account credential
	UpdatePassword(ctx context.Context, uid, newPassword string) error

	// SendPasswordReset triggers the provider's reset-email flow
	SendPasswordReset(ctx context.Context, email string) error

	// SignOut ends the session for the uid
	SignOut(ctx context.Context, uid string) error
}

// SocialAuthenticator defines the Google sign-in flows
type SocialAuthenticator interface {
	// SignInPopup runs the interactive desktop flow and blocks until it
	// completes, fails, or the context is cancelled
	SignInPopup(ctx context.Context) (*domain.Session, error)

	// BeginRedirect persists the pending redirect state and hands control
	// to the provider; completion is observed on a later engine start
	BeginRedirect(ctx context.Context) error

	// ResolveRedirect finishes a previously started redirect flow.
	// (nil, nil) means there was nothing to resolve or the attempt was
	// abandoned; both clear the persisted state.
	ResolveRedirect(ctx context.Context) (*domain.Session, error)
}

// ChromePresenter receives page-chrome state changes. The engine never touches
// markup; everything the page would render funnels through this interface.
type ChromePresenter interface {
	// ShowLoggedIn swaps the login button for the profile entry point
	ShowLoggedIn(name string)

	// ShowLoggedOut resets the chrome to the logged-out state
	ShowLoggedOut()

	// ShowProfile opens the profile panel
	ShowProfile(profile domain.Profile)

	// UpdateCartBadge sets the cart count badges
	UpdateCartBadge(count int)

	// RenderCart draws the cart panel
	RenderCart(view domain.CartView)

	// Toast shows a transient notification
	Toast(message string)

	// Alert shows a blocking message
	Alert(message string)

	// RequireLogin redirects an anonymous user to the login page
	RequireLogin(message string)

	// NavigateHome navigates to the landing page
	NavigateHome()

	// ForceReload discards a cached navigation snapshot
	ForceReload()
}

// Services aggregates the external-facing service interfaces
type Services struct {
	Identity IdentityProvider
	Social   SocialAuthenticator
}
