package service

import (
	"context"
	goerrors "errors"
	"sync"
	"time"

	"storefront-v2/internal/domain"
	"storefront-v2/internal/repository"
	"storefront-v2/pkg/errors"
	"storefront-v2/pkg/logger"
	"storefront-v2/pkg/redis"
)

// redirectResolveTimeout force-clears pending redirect state when resolution
// never completes, so a broken attempt cannot wedge future page loads.
const redirectResolveTimeout = 10 * time.Second

// minPasswordLength is enforced client-side before any provider call
const minPasswordLength = 6

// SessionService mediates all identity operations and keeps the page chrome
// and the user document consistent with session state.
type SessionService struct {
	identity  IdentityProvider
	social    SocialAuthenticator
	docs      repository.UserDocumentStore
	local     *redis.LocalStore
	presenter ChromePresenter
	log       *logger.Logger

	authPage bool
	device   DeviceClass

	mu               sync.Mutex
	current          *domain.Session
	observers        []func(*domain.Session)
	socialInProgress bool
}

// SessionOptions configures a SessionService
type SessionOptions struct {
	AuthPage bool
	Device   DeviceClass
}

// NewSessionService creates the session manager
func NewSessionService(
	identity IdentityProvider,
	social SocialAuthenticator,
	docs repository.UserDocumentStore,
	local *redis.LocalStore,
	presenter ChromePresenter,
	log *logger.Logger,
	opts SessionOptions,
) *SessionService {
	device := opts.Device
	if device == "" {
		device = DeviceDesktop
	}
	return &SessionService{
		identity:  identity,
		social:    social,
		docs:      docs,
		local:     local,
		presenter: presenter,
		log:       log.Named("session"),
		authPage:  opts.AuthPage,
		device:    device,
	}
}

// CurrentSession returns the active session, or nil
func (s *SessionService) CurrentSession() *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// OnSessionChange registers an observer fired on every session transition,
// including the transition to nil on logout.
func (s *SessionService) OnSessionChange(fn func(*domain.Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// SignUp creates the identity account, sets the display name, then creates the
// user document. A permission-denied document write leaves the identity account
// in place and surfaces a configuration error; the inconsistency is accepted.
func (s *SessionService) SignUp(ctx context.Context, email, password, displayName string) (*domain.Session, error) {
	session, err := s.identity.SignUp(ctx, email, password)
	if err != nil {
		s.log.WithError(err).WithField("email", email).Error("sign up failed at identity layer")
		return nil, err
	}

	if err := s.identity.UpdateDisplayName(ctx, session.UID, displayName); err != nil {
		s.log.WithError(err).Error("failed to set display name")
		return nil, err
	}
	session.DisplayName = displayName

	doc := &domain.UserDocument{
		UID:         session.UID,
		Email:       email,
		DisplayName: displayName,
		Orders:      []domain.Order{},
		Cart:        []domain.CartItem{},
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		if goerrors.Is(err, repository.ErrPermissionDenied) {
			return nil, errors.NewConfigurationError(
				"Database storage failed (permission denied); the account exists but is not registered", err)
		}
		return nil, err
	}

	s.log.WithField("uid", session.UID).Info("sign up complete")
	s.setSession(ctx, session)
	return session, nil
}

// Login authenticates and then requires the user document to exist. A missing
// document signs the session back out and fails with an account-state error,
// keeping the identity store and the document store in lockstep.
func (s *SessionService) Login(ctx context.Context, email, password string) (*domain.Session, error) {
	session, err := s.identity.SignIn(ctx, email, password)
	if err != nil {
		s.log.WithError(err).WithField("email", email).Error("login failed at identity layer")
		return nil, err
	}

	if _, err := s.docs.Get(ctx, session.UID); err != nil {
		switch {
		case goerrors.Is(err, repository.ErrDocumentNotFound):
			s.log.WithField("uid", session.UID).Error("login verification failed: no user document")
			if signOutErr := s.identity.SignOut(ctx, session.UID); signOutErr != nil {
				s.log.WithError(signOutErr).Warn("forced sign-out failed")
			}
			return nil, errors.NewAccountStateError(
				"Login failed: your account exists but is not registered in our database. Please sign up again.")
		case goerrors.Is(err, repository.ErrPermissionDenied):
			return nil, errors.NewConfigurationError(
				"Login failed: database verification was blocked", err)
		default:
			return nil, err
		}
	}

	s.log.WithField("uid", session.UID).Info("login complete")
	s.setSession(ctx, session)
	return session, nil
}

// Logout clears the durable cart mirror, ends the session, and always
// navigates to the landing page; session-ending failures are best effort.
func (s *SessionService) Logout(ctx context.Context) {
	if err := s.local.ClearCart(ctx); err != nil {
		s.log.WithError(err).Warn("failed to clear cart mirror on logout")
	}

	s.mu.Lock()
	current := s.current
	s.mu.Unlock()

	if current != nil {
		if err := s.identity.SignOut(ctx, current.UID); err != nil {
			s.log.WithError(err).Warn("provider sign-out failed, continuing")
		}
	}

	s.setSession(ctx, nil)
	s.presenter.NavigateHome()
}

// SignInWithGoogle branches on device class: popup flow on desktop, detached
// redirect flow on mobile. A redirect start returns (nil, nil); completion is
// observed by ResolveRedirect on the next engine start.
func (s *SessionService) SignInWithGoogle(ctx context.Context) (*domain.Session, error) {
	s.setSocialInProgress(ctx, true)

	if s.device == DeviceMobile {
		s.log.Info("mobile device, using redirect flow")
		if err := s.social.BeginRedirect(ctx); err != nil {
			s.setSocialInProgress(ctx, false)
			s.surfaceSocialError(err)
			return nil, err
		}
		return nil, nil
	}

	s.log.Info("desktop device, using popup flow")
	session, err := s.social.SignInPopup(ctx)
	s.setSocialInProgress(ctx, false)
	if err != nil {
		if errors.IsCancellation(err) {
			s.log.Info("user cancelled Google sign-in")
			return nil, err
		}
		s.surfaceSocialError(err)
		return nil, err
	}

	s.syncUserDocument(ctx, session)
	s.setSession(ctx, session)
	s.presenter.NavigateHome()
	return session, nil
}

// ResolveRedirect runs once per page load, before anything else reacts to
// session state. It inspects the persisted redirect flags and either completes,
// abandons, or fails the in-flight social sign-in.
func (s *SessionService) ResolveRedirect(ctx context.Context) (*domain.Session, error) {
	state, err := s.local.LoadRedirectState(ctx)
	if err != nil {
		s.log.WithError(err).Warn("could not read redirect state")
		return nil, nil
	}
	if !state.InFlight() {
		return nil, nil
	}

	// Guard against a resolution that never finishes.
	guard := time.AfterFunc(redirectResolveTimeout, func() {
		guardCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		stuck, loadErr := s.local.LoadRedirectState(guardCtx)
		if loadErr == nil && stuck.InFlight() {
			s.log.Warn("redirect resolution took too long, clearing flags")
			_ = s.local.ClearRedirectState(guardCtx)
			_ = s.local.SetSocialLogin(guardCtx, false)
		}
	})
	defer guard.Stop()

	session, err := s.social.ResolveRedirect(ctx)
	s.setSocialInProgress(ctx, false)

	if err != nil {
		if errors.IsCancellation(err) {
			s.log.Info("redirect sign-in cancelled by user")
			return nil, nil
		}
		s.surfaceSocialError(err)
		return nil, err
	}
	if session == nil {
		// Abandoned attempt: flags cleared, no error.
		return nil, nil
	}

	s.syncUserDocument(ctx, session)
	s.setSession(ctx, session)
	s.presenter.NavigateHome()
	return session, nil
}

// ChangePassword updates the credential after client-side length validation.
// A requires-recent-login response instructs the user to re-authenticate
// instead of retrying automatically.
func (s *SessionService) ChangePassword(ctx context.Context, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return errors.NewValidationError("Password must be at least 6 characters long.")
	}

	s.mu.Lock()
	current := s.current
	s.mu.Unlock()
	if current == nil {
		return errors.NewAccountStateError("No active session")
	}

	if err := s.identity.UpdatePassword(ctx, current.UID, newPassword); err != nil {
		if errors.CodeOf(err) == errors.CodeRequiresRecentLogin {
			s.presenter.Alert("This action requires a recent login. Please log out and log back in to change your password.")
		} else {
			s.presenter.Alert("Error updating password.")
		}
		return err
	}

	s.presenter.Toast("Password updated successfully!")
	return nil
}

// ResetPassword delegates to the provider's reset-email flow; both outcomes
// produce a user-visible message.
func (s *SessionService) ResetPassword(ctx context.Context, email string) error {
	if err := s.identity.SendPasswordReset(ctx, email); err != nil {
		s.log.WithError(err).Error("password reset failed")
		s.presenter.Alert("Could not send the password reset email.")
		return err
	}
	s.presenter.Toast("Password reset email sent! Check your inbox.")
	return nil
}

// ShowUserProfile opens the profile panel for the active session
func (s *SessionService) ShowUserProfile() {
	s.mu.Lock()
	current := s.current
	s.mu.Unlock()
	if current == nil {
		return
	}
	s.presenter.ShowProfile(current.Profile())
}

// setSession is the auth-state observer: it reflects the transition into the
// chrome, runs the lazy document heal, and notifies registered observers.
func (s *SessionService) setSession(ctx context.Context, session *domain.Session) {
	s.mu.Lock()
	s.current = session
	observers := make([]func(*domain.Session), len(s.observers))
	copy(observers, s.observers)
	s.mu.Unlock()

	if session != nil {
		s.log.WithField("uid", session.UID).Info("auth state: logged in")
		s.presenter.ShowLoggedIn(session.Name())

		// Auto-redirect away from login/signup pages unless a social flow
		// is mid-flight; the persisted flag covers the redirect's reload.
		if s.authPage && !s.socialFlowInFlight(ctx) {
			s.presenter.NavigateHome()
		}

		// An existence check gates the write so fields are not clobbered
		// on every load.
		if _, err := s.docs.Get(ctx, session.UID); goerrors.Is(err, repository.ErrDocumentNotFound) {
			s.log.WithField("uid", session.UID).Info("creating missing user document")
			s.syncUserDocument(ctx, session)
		} else if err != nil {
			s.log.WithError(err).Warn("document existence check failed")
		}
	} else {
		s.log.Info("auth state: logged out")
		s.presenter.ShowLoggedOut()
	}

	for _, fn := range observers {
		fn(session)
	}
}

// syncUserDocument upserts profile fields, initializing the document with
// empty orders/cart on first creation. Failures are logged and swallowed; the
// caller's flow is never blocked by a sync failure.
func (s *SessionService) syncUserDocument(ctx context.Context, session *domain.Session) {
	if session == nil {
		return
	}

	_, err := s.docs.Get(ctx, session.UID)
	switch {
	case goerrors.Is(err, repository.ErrDocumentNotFound):
		doc := &domain.UserDocument{
			UID:         session.UID,
			Email:       session.Email,
			DisplayName: session.DisplayName,
			PhotoURL:    session.PhotoURL,
			Orders:      []domain.Order{},
			Cart:        []domain.CartItem{},
		}
		if createErr := s.docs.Create(ctx, doc); createErr != nil {
			s.log.WithError(errors.NewSyncError("user document create failed", createErr)).
				WithField("uid", session.UID).Error("document sync failed")
		}
	case err != nil:
		s.log.WithError(errors.NewSyncError("user document read failed", err)).
			WithField("uid", session.UID).Error("document sync failed")
	default:
		patch := repository.DocumentPatch{
			Email:          &session.Email,
			DisplayName:    &session.DisplayName,
			PhotoURL:       &session.PhotoURL,
			TouchLastLogin: true,
		}
		if mergeErr := s.docs.Merge(ctx, session.UID, patch); mergeErr != nil {
			s.log.WithError(errors.NewSyncError("user document merge failed", mergeErr)).
				WithField("uid", session.UID).Error("document sync failed")
		}
	}
}

// setSocialInProgress flips both the in-memory flag and the persisted one; the
// persisted flag is what survives the redirect's page reload.
func (s *SessionService) setSocialInProgress(ctx context.Context, inProgress bool) {
	s.mu.Lock()
	s.socialInProgress = inProgress
	s.mu.Unlock()
	if err := s.local.SetSocialLogin(ctx, inProgress); err != nil {
		s.log.WithError(err).Warn("failed to persist social-login flag")
	}
}

// socialFlowInFlight checks the in-memory flag OR the persisted one
func (s *SessionService) socialFlowInFlight(ctx context.Context) bool {
	s.mu.Lock()
	inMemory := s.socialInProgress
	s.mu.Unlock()
	if inMemory {
		return true
	}
	persisted, err := s.local.SocialLoginInProgress(ctx)
	if err != nil {
		s.log.WithError(err).Warn("failed to read social-login flag")
		return false
	}
	return persisted
}

// surfaceSocialError presents a classified social sign-in failure
func (s *SessionService) surfaceSocialError(err error) {
	var appErr *errors.AppError
	if goerrors.As(err, &appErr) {
		s.presenter.Alert(appErr.UserMessage())
		return
	}
	s.presenter.Alert("Google Sign-In failed: " + err.Error())
}
