package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"storefront-v2/internal/config"
	"storefront-v2/internal/container"
	"storefront-v2/pkg/logger"
	"storefront-v2/pkg/redis"
)

// Resources holds all resources that need cleanup
type Resources struct {
	container *container.Container
	log       *logger.Logger
	mu        sync.Mutex
	closed    bool
}

// Cleanup gracefully closes all resources
func (r *Resources) Cleanup(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	r.log.Info("Starting graceful shutdown...")

	if r.container != nil {
		if store := r.container.GetLocalStore(); store != nil {
			healthCtx, healthCancel := context.WithTimeout(ctx, 2*time.Second)
			if err := store.Health(healthCtx); err != nil {
				r.log.WithError(err).Warn("Local store health check failed before closing")
			}
			healthCancel()
		}
		r.container.Close()
	}

	r.log.Info("Graceful shutdown completed successfully")
	return nil
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.WithFields(map[string]interface{}{
		"page":        cfg.Page,
		"log_level":   cfg.LogLevel,
		"environment": cfg.Environment,
	}).Info("Starting storefront-v2 engine")

	ctx := context.Background()

	// Create dependency injection container
	c, err := container.New(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to create container")
	}

	resources := &Resources{container: c, log: log}

	// Setup graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := resources.Cleanup(cleanupCtx); err != nil {
			log.WithError(err).Error("Cleanup completed with errors")
		}
	}()

	session := c.GetSessionService()
	cart := c.GetCartService()

	// A redirect sign-in started before this launch resolves now, before the
	// chrome settles into a logged-out state.
	if _, err := session.ResolveRedirect(ctx); err != nil {
		log.WithError(err).Warn("Redirect sign-in did not complete")
	}

	// Splash and promo are once-per-session affordances on the landing page
	if cfg.Page == "index" {
		showOncePerSession(ctx, c, redis.KeySplashShown, "splash screen")
		showOncePerSession(ctx, c, redis.KeyPromoShown, "promo banner")
	}

	// Reflect whatever cart survived the last page session
	cart.UpdateCount(ctx)

	log.Info("Engine ready")

	sig := <-quit
	log.WithField("signal", sig.String()).Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()

	if err := resources.Cleanup(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown completed with errors")
		os.Exit(1)
	}

	log.Info("Application shutdown complete")
}

// showOncePerSession presents a one-shot page affordance, suppressed for the
// rest of the session once seen.
func showOncePerSession(ctx context.Context, c *container.Container, key, name string) {
	log := c.GetLogger()
	store := c.GetLocalStore()

	seen, err := store.WasShown(ctx, key)
	if err != nil {
		log.WithError(err).WithField("flag", key).Warn("Could not read session flag")
		return
	}
	if seen {
		return
	}
	c.Presenter.Toast(fmt.Sprintf("Showing %s", name))
	if err := store.MarkShown(ctx, key); err != nil {
		log.WithError(err).WithField("flag", key).Warn("Could not persist session flag")
	}
}
