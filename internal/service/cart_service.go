package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"storefront-v2/internal/domain"
	"storefront-v2/internal/repository"
	"storefront-v2/pkg/errors"
	"storefront-v2/pkg/logger"
	"storefront-v2/pkg/redis"
)

// remoteWriteTimeout bounds the fire-and-forget remote cart upsert
const remoteWriteTimeout = 5 * time.Second

// CartService is the single source of truth for cart contents during the page
// session, with a durable local mirror and a live remote subscription.
type CartService struct {
	docs      repository.UserDocumentStore
	local     *redis.LocalStore
	presenter ChromePresenter
	log       *logger.Logger

	mu           sync.Mutex
	items        []domain.CartItem
	viewOpen     bool
	remoteLoaded bool
	activeUID    string
	cancelWatch  func()
	watchDone    chan struct{}

	// pushMu serializes remote writes; pushSeq/pushedSeq let a late goroutine
	// detect that a newer cart already landed and skip its stale write.
	pushMu    sync.Mutex
	pushSeq   uint64
	pushedSeq uint64
	pending   int
}

// NewCartService creates the cart synchronizer, seeding the in-memory cart
// from the durable mirror for instant reload.
func NewCartService(
	ctx context.Context,
	docs repository.UserDocumentStore,
	local *redis.LocalStore,
	presenter ChromePresenter,
	log *logger.Logger,
) *CartService {
	c := &CartService{
		docs:      docs,
		local:     local,
		presenter: presenter,
		log:       log.Named("cart"),
	}

	items, err := local.LoadCart(ctx)
	if err != nil {
		c.log.WithError(err).Warn("could not read cart mirror at startup")
		items = []domain.CartItem{}
	}
	c.items = items
	return c
}

// Items returns a copy of the current cart
func (c *CartService) Items() []domain.CartItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.CloneItems(c.items)
}

// AddItem merges a line into the cart by name: an existing line's quantity is
// incremented, anything else appends a new line with quantity 1. Anonymous
// users are sent to the login page instead.
func (c *CartService) AddItem(ctx context.Context, name string, price float64) error {
	if price < 0 {
		return errors.NewValidationError("Price must be non-negative")
	}

	c.mu.Lock()
	if c.activeUID == "" {
		c.mu.Unlock()
		c.presenter.RequireLogin("Login to add items to your cart")
		return errors.NewAccountStateError("Login required to modify the cart")
	}

	found := false
	for i := range c.items {
		if c.items[i].Name == name {
			// The stored price is frozen at first add; only quantity moves.
			c.items[i].Quantity++
			found = true
			break
		}
	}
	if !found {
		c.items = append(c.items, domain.CartItem{Name: name, Price: price, Quantity: 1})
	}
	uid := c.activeUID
	snapshot := domain.CloneItems(c.items)
	viewOpen := c.viewOpen
	seq := c.nextPushLocked()
	c.mu.Unlock()

	c.updateCount(ctx, snapshot)
	go c.pushRemote(uid, snapshot, seq)
	if viewOpen {
		c.presenter.RenderCart(domain.NewCartView(snapshot))
	}
	c.presenter.Toast(fmt.Sprintf("Added %s to cart!", name))
	return nil
}

// RemoveItem removes the line at the given position. An out-of-range index is
// a no-op and must not corrupt the remaining lines.
func (c *CartService) RemoveItem(ctx context.Context, index int) error {
	c.mu.Lock()
	if index < 0 || index >= len(c.items) {
		c.mu.Unlock()
		return nil
	}
	c.items = append(c.items[:index], c.items[index+1:]...)
	uid := c.activeUID
	snapshot := domain.CloneItems(c.items)
	viewOpen := c.viewOpen
	var seq uint64
	if uid != "" {
		seq = c.nextPushLocked()
	}
	c.mu.Unlock()

	c.updateCount(ctx, snapshot)
	if uid != "" {
		go c.pushRemote(uid, snapshot, seq)
	}
	if viewOpen {
		c.presenter.RenderCart(domain.NewCartView(snapshot))
	}
	return nil
}

// OpenCart opens the cart view; anonymous users are sent to the login page
func (c *CartService) OpenCart(ctx context.Context) error {
	c.mu.Lock()
	if c.activeUID == "" {
		c.mu.Unlock()
		c.presenter.RequireLogin("Login to view your cart")
		return errors.NewAccountStateError("Login required to view the cart")
	}
	c.viewOpen = true
	snapshot := domain.CloneItems(c.items)
	c.mu.Unlock()

	c.presenter.RenderCart(domain.NewCartView(snapshot))
	return nil
}

// CloseCart closes the cart view
func (c *CartService) CloseCart() {
	c.mu.Lock()
	c.viewOpen = false
	c.mu.Unlock()
}

// RenderView recomputes the read-only cart listing and total
func (c *CartService) RenderView() domain.CartView {
	c.mu.Lock()
	snapshot := domain.CloneItems(c.items)
	c.mu.Unlock()

	view := domain.NewCartView(snapshot)
	c.presenter.RenderCart(view)
	return view
}

// UpdateCount recomputes the badge total and persists the cart. This is the
// sole place guaranteeing local durability; every mutation path goes through it.
func (c *CartService) UpdateCount(ctx context.Context) {
	c.mu.Lock()
	snapshot := domain.CloneItems(c.items)
	c.mu.Unlock()
	c.updateCount(ctx, snapshot)
}

func (c *CartService) updateCount(ctx context.Context, snapshot []domain.CartItem) {
	c.presenter.UpdateCartBadge(domain.TotalQuantity(snapshot))
	if err := c.local.SaveCart(ctx, snapshot); err != nil {
		c.log.WithError(err).Warn("failed to persist cart mirror")
	}
}

// OnSessionChange reacts to session transitions: a new session opens the
// remote subscription, a lost session tears it down and, when the durable
// mirror is gone too, wipes the in-memory cart.
func (c *CartService) OnSessionChange(session *domain.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), remoteWriteTimeout)
	defer cancel()

	if session == nil {
		c.teardownWatch()

		c.mu.Lock()
		remoteLoaded := c.remoteLoaded
		c.activeUID = ""
		c.mu.Unlock()

		hasMirror, err := c.local.HasCart(ctx)
		if err != nil {
			c.log.WithError(err).Warn("could not check cart mirror")
			hasMirror = true
		}
		if remoteLoaded && !hasMirror {
			// Logout wipe. Transient null-session blips during
			// navigation keep the mirror and are left untouched.
			c.log.Info("logout detected, clearing runtime cart")
			c.mu.Lock()
			c.items = []domain.CartItem{}
			c.mu.Unlock()
		}
		c.UpdateCount(ctx)
		return
	}

	c.mu.Lock()
	if c.activeUID == session.UID {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.teardownWatch()

	c.mu.Lock()
	c.activeUID = session.UID
	c.mu.Unlock()

	c.openWatch(session.UID)
}

// openWatch subscribes to the user's remote document
func (c *CartService) openWatch(uid string) {
	watchCtx, cancel := context.WithCancel(context.Background())
	snapshots, stop, err := c.docs.Watch(watchCtx, uid)
	if err != nil {
		cancel()
		c.log.WithError(err).WithField("uid", uid).Error("could not open cart subscription")
		return
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.cancelWatch = func() {
		stop()
		cancel()
	}
	c.watchDone = done
	c.mu.Unlock()

	c.log.WithField("uid", uid).Info("cart subscription opened")
	go func() {
		defer close(done)
		for snap := range snapshots {
			c.reconcile(snap)
		}
	}()
}

// teardownWatch closes any open subscription so a stale user's updates are
// never applied.
func (c *CartService) teardownWatch() {
	c.mu.Lock()
	cancel := c.cancelWatch
	done := c.watchDone
	c.cancelWatch = nil
	c.watchDone = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// reconcile applies the conflict policy to one remote snapshot: an empty
// remote cart yields to non-empty local state and is pushed up; any other
// difference adopts the remote as authoritative.
func (c *CartService) reconcile(snap repository.DocumentSnapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), remoteWriteTimeout)
	defer cancel()

	c.mu.Lock()
	if snap.UID != c.activeUID {
		// A subscription started under an earlier session resolved late.
		c.mu.Unlock()
		c.log.WithField("uid", snap.UID).Debug("dropping snapshot for inactive session")
		return
	}

	if !snap.Exists {
		if !c.remoteLoaded {
			c.log.Debug("no user document yet, keeping local items")
		}
		c.remoteLoaded = true
		c.mu.Unlock()
		return
	}

	if c.pending > 0 {
		// A local write is still in flight; this snapshot predates it.
		c.remoteLoaded = true
		c.mu.Unlock()
		return
	}

	remote := snap.Doc.Cart
	local := c.items

	if len(remote) == 0 && len(local) > 0 {
		// The remote read raced ahead of an unsynced local cart, e.g.
		// right after signup. Local wins and is pushed up.
		uid := c.activeUID
		snapshot := domain.CloneItems(local)
		seq := c.nextPushLocked()
		c.remoteLoaded = true
		c.mu.Unlock()

		c.log.Info("remote cart empty, preserving local items and syncing up")
		c.pushRemote(uid, snapshot, seq)
		return
	}

	if !domain.ItemsEqual(remote, local) {
		c.items = domain.CloneItems(remote)
		snapshot := domain.CloneItems(c.items)
		viewOpen := c.viewOpen
		c.remoteLoaded = true
		c.mu.Unlock()

		c.log.Info("adopting remote cart state")
		c.updateCount(ctx, snapshot)
		if viewOpen {
			c.presenter.RenderCart(domain.NewCartView(snapshot))
		}
		return
	}

	c.remoteLoaded = true
	c.mu.Unlock()
}

// nextPushLocked assigns a sequence number to a scheduled remote write.
// Callers must hold c.mu.
func (c *CartService) nextPushLocked() uint64 {
	c.pushSeq++
	c.pending++
	return c.pushSeq
}

// pushRemote upserts the cart into the user document. Failures are logged and
// swallowed; local state remains the fallback source of truth.
func (c *CartService) pushRemote(uid string, snapshot []domain.CartItem, seq uint64) {
	defer func() {
		c.mu.Lock()
		c.pending--
		c.mu.Unlock()
	}()

	c.pushMu.Lock()
	defer c.pushMu.Unlock()

	c.mu.Lock()
	stale := seq < c.pushedSeq
	if !stale {
		c.pushedSeq = seq
	}
	c.mu.Unlock()
	if stale {
		c.log.WithField("uid", uid).Debug("skipping superseded cart write")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), remoteWriteTimeout)
	defer cancel()

	if err := c.docs.SetCart(ctx, uid, snapshot); err != nil {
		c.log.WithError(errors.NewSyncError("remote cart write failed", err)).
			WithField("uid", uid).Warn("cart sync failed")
		return
	}
	c.log.WithField("uid", uid).Debug("cart synced to remote document")
}

// Restore runs on every page show/restore event: the durable mirror is re-read
// into memory and displays refresh. A cached navigation snapshot forces a full
// reload instead of trusting stale chrome.
func (c *CartService) Restore(ctx context.Context, fromCachedSnapshot bool) {
	items, err := c.local.LoadCart(ctx)
	if err != nil {
		c.log.WithError(err).Warn("could not re-read cart mirror")
	} else {
		c.mu.Lock()
		c.items = items
		c.mu.Unlock()
	}

	c.mu.Lock()
	snapshot := domain.CloneItems(c.items)
	viewOpen := c.viewOpen
	c.mu.Unlock()

	c.updateCount(ctx, snapshot)
	if viewOpen {
		c.presenter.RenderCart(domain.NewCartView(snapshot))
	}
	if fromCachedSnapshot {
		c.presenter.ForceReload()
	}
}

// Stop tears down any open subscription
func (c *CartService) Stop() {
	c.teardownWatch()
}
