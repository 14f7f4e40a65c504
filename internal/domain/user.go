package domain

import (
	"strings"
	"time"
)

// Session represents an authenticated identity-provider session
type Session struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
	Provider    string `json:"provider"` // "password" or "google.com"
}

// Name returns the display name, falling back to the email local part
func (s *Session) Name() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	if at := strings.IndexByte(s.Email, '@'); at > 0 {
		return s.Email[:at]
	}
	return s.Email
}

// AvatarInitial returns the uppercased first rune of the name for the profile avatar
func (s *Session) AvatarInitial() string {
	name := s.Name()
	if name == "" {
		return "?"
	}
	return strings.ToUpper(string([]rune(name)[0]))
}

// Profile is the data shown in the profile panel
type Profile struct {
	Name    string
	Email   string
	Initial string
}

// Profile builds the profile-panel view for this session
func (s *Session) Profile() Profile {
	return Profile{
		Name:    s.Name(),
		Email:   s.Email,
		Initial: s.AvatarInitial(),
	}
}

// Order is a placed order inside the user document. Orders are append-only and
// written elsewhere; this engine only initializes the empty sequence.
type Order struct {
	ID       string     `json:"id"`
	Items    []CartItem `json:"items"`
	Total    float64    `json:"total"`
	PlacedAt time.Time  `json:"placed_at"`
}

// UserDocument is the per-user document in the document database, keyed by the
// session UID. Every authenticated session must have exactly one.
type UserDocument struct {
	UID         string     `json:"uid"`
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name"`
	PhotoURL    string     `json:"photo_url"`
	Orders      []Order    `json:"orders"`
	Cart        []CartItem `json:"cart"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLogin   time.Time  `json:"last_login"`
	LastUpdated time.Time  `json:"last_updated"`
}
