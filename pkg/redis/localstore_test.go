package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-v2/internal/domain"
)

func setupTestStore(t *testing.T) (*LocalStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewClient("redis://"+mr.Addr(), "test")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return NewLocalStore(client), mr
}

func TestLocalStore_CartRoundTrip(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	// Missing slot reads as an empty cart
	items, err := store.LoadCart(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)

	hasCart, err := store.HasCart(ctx)
	require.NoError(t, err)
	assert.False(t, hasCart)

	saved := []domain.CartItem{
		{Name: "Croissant", Price: 3.50, Quantity: 2},
		{Name: "Baguette", Price: 2.00, Quantity: 1},
	}
	require.NoError(t, store.SaveCart(ctx, saved))

	items, err = store.LoadCart(ctx)
	require.NoError(t, err)
	assert.True(t, domain.ItemsEqual(items, saved))

	hasCart, err = store.HasCart(ctx)
	require.NoError(t, err)
	assert.True(t, hasCart)

	// An explicitly saved empty cart is a present slot, unlike a cleared one
	require.NoError(t, store.SaveCart(ctx, nil))
	hasCart, err = store.HasCart(ctx)
	require.NoError(t, err)
	assert.True(t, hasCart)

	require.NoError(t, store.ClearCart(ctx))
	hasCart, err = store.HasCart(ctx)
	require.NoError(t, err)
	assert.False(t, hasCart)
}

func TestLocalStore_RedirectStateRoundTrip(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	// Missing slot reads as idle
	state, err := store.LoadRedirectState(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.RedirectIdle, state.Phase)
	assert.False(t, state.InFlight())

	started := time.Now().UTC().Truncate(time.Second)
	saved := domain.RedirectState{
		Phase:     domain.RedirectPending,
		StartedAt: started,
		ReturnURL: "https://bakery.example/",
		Code:      "auth-code",
	}
	require.NoError(t, store.SaveRedirectState(ctx, saved))

	state, err = store.LoadRedirectState(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.RedirectPending, state.Phase)
	assert.Equal(t, "auth-code", state.Code)
	assert.True(t, state.StartedAt.Equal(started))

	require.NoError(t, store.ClearRedirectState(ctx))
	state, err = store.LoadRedirectState(ctx)
	require.NoError(t, err)
	assert.False(t, state.InFlight())
}

func TestLocalStore_CorruptRedirectStateReadsIdle(t *testing.T) {
	store, mr := setupTestStore(t)
	ctx := context.Background()

	key := store.client.KeyBuilder.KeyRedirectState()
	require.NoError(t, mr.Set(key, "{not json"))

	state, err := store.LoadRedirectState(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.RedirectIdle, state.Phase)
}

func TestLocalStore_SocialLoginFlag(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	inProgress, err := store.SocialLoginInProgress(ctx)
	require.NoError(t, err)
	assert.False(t, inProgress)

	require.NoError(t, store.SetSocialLogin(ctx, true))
	inProgress, err = store.SocialLoginInProgress(ctx)
	require.NoError(t, err)
	assert.True(t, inProgress)

	require.NoError(t, store.SetSocialLogin(ctx, false))
	inProgress, err = store.SocialLoginInProgress(ctx)
	require.NoError(t, err)
	assert.False(t, inProgress)
}

func TestLocalStore_SessionFlags(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	for _, key := range []string{KeySplashShown, KeyPromoShown} {
		seen, err := store.WasShown(ctx, key)
		require.NoError(t, err)
		assert.False(t, seen)

		require.NoError(t, store.MarkShown(ctx, key))
		seen, err = store.WasShown(ctx, key)
		require.NoError(t, err)
		assert.True(t, seen)
	}
}

func TestKeyBuilder_EnvironmentPrefix(t *testing.T) {
	prod := NewKeyBuilder("production")
	dev := NewKeyBuilder("development")

	assert.NotEqual(t, prod.KeyCartSlot(), dev.KeyCartSlot())
	assert.Contains(t, dev.KeyCartSlot(), KeyCartSlot)
}
