package redis

import (
	"fmt"
	"time"
)

// Slot key constants
const (
	// Durable storage: the serialized cart mirror, read at startup and on
	// page restore, written on every count update.
	KeyCartSlot = "storefront:cart"

	// Redirect-flow state, one typed JSON value surviving the navigation
	// boundary of a redirect-based social sign-in.
	KeyRedirectState = "storefront:auth:redirect"

	// Social-login-in-progress marker checked by the auth-state observer.
	KeySocialLogin = "storefront:auth:social"

	// Page-session flags, expire with the browsing session.
	KeySplashShown = "storefront:session:splash"
	KeyPromoShown  = "storefront:session:promo"
)

// TTL constants
const (
	TTLCartSlot      = 0                // durable, no expiry
	TTLRedirectState = 15 * time.Minute // stale redirect state must not outlive the attempt by much
	TTLSessionFlag   = 12 * time.Hour   // approximates a browsing session
)

// KeyBuilder provides environment-aware key building
type KeyBuilder struct {
	prefix string
}

// NewKeyBuilder creates a new key builder with environment-based prefix
func NewKeyBuilder(environment string) *KeyBuilder {
	prefix := "prod"
	if environment == "development" || environment == "staging" || environment == "test" {
		prefix = environment
	}
	return &KeyBuilder{prefix: prefix}
}

// BuildKey constructs a key with the environment prefix
func (kb *KeyBuilder) BuildKey(key string) string {
	return fmt.Sprintf("%s:%s", kb.prefix, key)
}

func (kb *KeyBuilder) KeyCartSlot() string {
	return kb.BuildKey(KeyCartSlot)
}

func (kb *KeyBuilder) KeyRedirectState() string {
	return kb.BuildKey(KeyRedirectState)
}

func (kb *KeyBuilder) KeySocialLogin() string {
	return kb.BuildKey(KeySocialLogin)
}

func (kb *KeyBuilder) KeySplashShown() string {
	return kb.BuildKey(KeySplashShown)
}

func (kb *KeyBuilder) KeyPromoShown() string {
	return kb.BuildKey(KeyPromoShown)
}
