package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront-v2/internal/domain"
	"storefront-v2/pkg/logger"
	"storefront-v2/pkg/redis"
)

func testLogger() *logger.Logger {
	return &logger.Logger{Logger: zap.NewNop()}
}

// setupLocalStore creates a LocalStore backed by an in-process Redis
func setupLocalStore(t *testing.T) *redis.LocalStore {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := redis.NewClient("redis://"+mr.Addr(), "test")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return redis.NewLocalStore(client)
}

// recordingPresenter captures every chrome call for assertions
type recordingPresenter struct {
	mu sync.Mutex

	loggedInNames []string
	loggedOut     int
	profiles      []domain.Profile
	badgeCounts   []int
	renders       []domain.CartView
	toasts        []string
	alerts        []string
	loginPrompts  []string
	homeNavs      int
	reloads       int
}

func (p *recordingPresenter) ShowLoggedIn(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loggedInNames = append(p.loggedInNames, name)
}

func (p *recordingPresenter) ShowLoggedOut() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loggedOut++
}

func (p *recordingPresenter) ShowProfile(profile domain.Profile) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profiles = append(p.profiles, profile)
}

func (p *recordingPresenter) UpdateCartBadge(count int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.badgeCounts = append(p.badgeCounts, count)
}

func (p *recordingPresenter) RenderCart(view domain.CartView) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.renders = append(p.renders, view)
}

func (p *recordingPresenter) Toast(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.toasts = append(p.toasts, message)
}

func (p *recordingPresenter) Alert(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alerts = append(p.alerts, message)
}

func (p *recordingPresenter) RequireLogin(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loginPrompts = append(p.loginPrompts, message)
}

func (p *recordingPresenter) NavigateHome() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.homeNavs++
}

func (p *recordingPresenter) ForceReload() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reloads++
}

func (p *recordingPresenter) lastBadge() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.badgeCounts) == 0 {
		return -1
	}
	return p.badgeCounts[len(p.badgeCounts)-1]
}

func (p *recordingPresenter) lastRender() (domain.CartView, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.renders) == 0 {
		return domain.CartView{}, false
	}
	return p.renders[len(p.renders)-1], true
}

func (p *recordingPresenter) alertCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.alerts)
}

func (p *recordingPresenter) homeNavCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.homeNavs
}

// fakeIdentity is a scriptable IdentityProvider
type fakeIdentity struct {
	mu sync.Mutex

	signUpErr      error
	signInErr      error
	updateNameErr  error
	updatePassErr  error
	resetErr       error
	signOutErr     error
	nextUID        int
	accounts       map[string]*domain.Session // email -> session
	signedOut      []string
	passwordResets []string
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{accounts: make(map[string]*domain.Session)}
}

func (f *fakeIdentity) SignUp(ctx context.Context, email, password string) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signUpErr != nil {
		return nil, f.signUpErr
	}
	f.nextUID++
	session := &domain.Session{
		UID:      fmt.Sprintf("uid-%d", f.nextUID),
		Email:    email,
		Provider: "password",
	}
	f.accounts[email] = session
	copied := *session
	return &copied, nil
}

func (f *fakeIdentity) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	session, ok := f.accounts[email]
	if !ok {
		f.nextUID++
		session = &domain.Session{
			UID:      fmt.Sprintf("uid-%d", f.nextUID),
			Email:    email,
			Provider: "password",
		}
		f.accounts[email] = session
	}
	copied := *session
	return &copied, nil
}

func (f *fakeIdentity) UpdateDisplayName(ctx context.Context, uid, displayName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateNameErr != nil {
		return f.updateNameErr
	}
	for _, session := range f.accounts {
		if session.UID == uid {
			session.DisplayName = displayName
		}
	}
	return nil
}

func (f *fakeIdentity) UpdatePassword(ctx context.Context, uid, newPassword string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updatePassErr
}

func (f *fakeIdentity) SendPasswordReset(ctx context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resetErr != nil {
		return f.resetErr
	}
	f.passwordResets = append(f.passwordResets, email)
	return nil
}

func (f *fakeIdentity) SignOut(ctx context.Context, uid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signOutErr != nil {
		return f.signOutErr
	}
	f.signedOut = append(f.signedOut, uid)
	return nil
}

func (f *fakeIdentity) signedOutUIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.signedOut))
	copy(out, f.signedOut)
	return out
}

// fakeSocial is a scriptable SocialAuthenticator
type fakeSocial struct {
	mu sync.Mutex

	popupSession   *domain.Session
	popupErr       error
	beginErr       error
	resolveSession *domain.Session
	resolveErr     error
	beginCalls     int
}

func (f *fakeSocial) SignInPopup(ctx context.Context) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.popupErr != nil {
		return nil, f.popupErr
	}
	return f.popupSession, nil
}

func (f *fakeSocial) BeginRedirect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.beginCalls++
	return f.beginErr
}

func (f *fakeSocial) ResolveRedirect(ctx context.Context) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	return f.resolveSession, nil
}

func (f *fakeSocial) beginCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.beginCalls
}
