package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionName(t *testing.T) {
	tests := []struct {
		name    string
		session Session
		want    string
	}{
		{name: "display name wins", session: Session{DisplayName: "Amy", Email: "amy@example.com"}, want: "Amy"},
		{name: "email local part fallback", session: Session{Email: "amy@example.com"}, want: "amy"},
		{name: "malformed email", session: Session{Email: "not-an-email"}, want: "not-an-email"},
		{name: "empty session", session: Session{}, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.session.Name())
		})
	}
}

func TestSessionAvatarInitial(t *testing.T) {
	assert.Equal(t, "A", (&Session{DisplayName: "amy"}).AvatarInitial())
	assert.Equal(t, "B", (&Session{Email: "bob@example.com"}).AvatarInitial())
	assert.Equal(t, "?", (&Session{}).AvatarInitial())
}

func TestSessionProfile(t *testing.T) {
	session := Session{DisplayName: "Amy", Email: "amy@example.com"}
	assert.Equal(t, Profile{Name: "Amy", Email: "amy@example.com", Initial: "A"}, session.Profile())
}
