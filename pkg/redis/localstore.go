package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"storefront-v2/internal/domain"
)

// LocalStore is the typed view over the storefront slots: the durable cart
// mirror, the redirect-flow state, and the once-per-session flags.
type LocalStore struct {
	client *Client
}

// NewLocalStore creates a LocalStore on top of a connected client
func NewLocalStore(client *Client) *LocalStore {
	return &LocalStore{client: client}
}

// LoadCart reads the durable cart mirror; a missing or empty slot is an empty cart
func (s *LocalStore) LoadCart(ctx context.Context) ([]domain.CartItem, error) {
	raw, err := s.client.Get(ctx, s.client.KeyBuilder.KeyCartSlot())
	if err != nil {
		return nil, fmt.Errorf("load cart slot: %w", err)
	}
	if raw == "" {
		return []domain.CartItem{}, nil
	}
	var items []domain.CartItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("decode cart slot: %w", err)
	}
	return items, nil
}

// SaveCart writes the serialized cart into the durable mirror
func (s *LocalStore) SaveCart(ctx context.Context, items []domain.CartItem) error {
	if items == nil {
		items = []domain.CartItem{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode cart slot: %w", err)
	}
	return s.client.Set(ctx, s.client.KeyBuilder.KeyCartSlot(), string(raw), TTLCartSlot)
}

// ClearCart removes the durable cart mirror
func (s *LocalStore) ClearCart(ctx context.Context) error {
	return s.client.Delete(ctx, s.client.KeyBuilder.KeyCartSlot())
}

// HasCart reports whether the durable mirror slot is present at all
func (s *LocalStore) HasCart(ctx context.Context) (bool, error) {
	n, err := s.client.Exists(ctx, s.client.KeyBuilder.KeyCartSlot())
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// LoadRedirectState reads the redirect-flow state; a missing slot is idle
func (s *LocalStore) LoadRedirectState(ctx context.Context) (domain.RedirectState, error) {
	raw, err := s.client.Get(ctx, s.client.KeyBuilder.KeyRedirectState())
	if err != nil {
		return domain.RedirectState{Phase: domain.RedirectIdle}, fmt.Errorf("load redirect state: %w", err)
	}
	if raw == "" {
		return domain.RedirectState{Phase: domain.RedirectIdle}, nil
	}
	var state domain.RedirectState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		// A corrupt slot must not wedge sign-in across page loads.
		return domain.RedirectState{Phase: domain.RedirectIdle}, nil
	}
	return state, nil
}

// SaveRedirectState persists the redirect-flow state
func (s *LocalStore) SaveRedirectState(ctx context.Context, state domain.RedirectState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode redirect state: %w", err)
	}
	return s.client.Set(ctx, s.client.KeyBuilder.KeyRedirectState(), string(raw), TTLRedirectState)
}

// ClearRedirectState resets the redirect flow to idle
func (s *LocalStore) ClearRedirectState(ctx context.Context) error {
	return s.client.Delete(ctx, s.client.KeyBuilder.KeyRedirectState())
}

// SetSocialLogin marks or clears the social-login-in-progress flag
func (s *LocalStore) SetSocialLogin(ctx context.Context, inProgress bool) error {
	key := s.client.KeyBuilder.KeySocialLogin()
	if !inProgress {
		return s.client.Delete(ctx, key)
	}
	return s.client.Set(ctx, key, "true", TTLRedirectState)
}

// SocialLoginInProgress reads the persisted social-login flag
func (s *LocalStore) SocialLoginInProgress(ctx context.Context) (bool, error) {
	raw, err := s.client.Get(ctx, s.client.KeyBuilder.KeySocialLogin())
	if err != nil {
		return false, err
	}
	return raw == "true", nil
}

// MarkShown records a once-per-session flag (splash, promo)
func (s *LocalStore) MarkShown(ctx context.Context, key string) error {
	return s.client.Set(ctx, s.client.KeyBuilder.BuildKey(key), "true", TTLSessionFlag)
}

// WasShown reads a once-per-session flag
func (s *LocalStore) WasShown(ctx context.Context, key string) (bool, error) {
	raw, err := s.client.Get(ctx, s.client.KeyBuilder.BuildKey(key))
	if err != nil {
		return false, err
	}
	return raw == "true", nil
}

// Health checks the underlying connection
func (s *LocalStore) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}
