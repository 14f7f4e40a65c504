package domain

import "time"

// RedirectPhase is the state of the redirect-based social sign-in flow. The
// value survives the navigation boundary by living in the persisted slot.
type RedirectPhase string

const (
	RedirectIdle      RedirectPhase = "idle"
	RedirectPending   RedirectPhase = "pending"
	RedirectResolving RedirectPhase = "resolving"
)

// RedirectState is the typed schema persisted across the redirect navigation.
// One value replaces the loose boolean flags that could drift apart.
type RedirectState struct {
	Phase     RedirectPhase `json:"phase"`
	StartedAt time.Time     `json:"started_at,omitempty"`
	ReturnURL string        `json:"return_url,omitempty"`
	// Code is the authorization code the returning navigation hands back.
	// Empty while the user is still at the provider.
	Code string `json:"code,omitempty"`
}

// InFlight reports whether a redirect sign-in is mid-flow
func (r RedirectState) InFlight() bool {
	return r.Phase == RedirectPending || r.Phase == RedirectResolving
}

// Expired reports whether a pending redirect has outlived the timeout guard
func (r RedirectState) Expired(timeout time.Duration, now time.Time) bool {
	if !r.InFlight() || r.StartedAt.IsZero() {
		return false
	}
	return now.Sub(r.StartedAt) > timeout
}
