package container

import (
	"context"

	"storefront-v2/internal/config"
	"storefront-v2/internal/repository"
	"storefront-v2/internal/service"
	"storefront-v2/internal/service/google"
	"storefront-v2/internal/service/identity"
	"storefront-v2/pkg/database"
	"storefront-v2/pkg/logger"
	"storefront-v2/pkg/redis"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *logger.Logger
	RedisClient *redis.Client
	LocalStore  *redis.LocalStore
	Database    *database.PostgresDB
	Documents   repository.UserDocumentStore
	Presenter   service.ChromePresenter
	Services    *service.Services
	Session     *service.SessionService
	Cart        *service.CartService
}

// New creates a new dependency injection container
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Container, error) {
	redisClient, err := redis.NewClient(cfg.RedisURL, cfg.Environment)
	if err != nil {
		return nil, err
	}
	log.Info("Redis client initialized successfully")
	local := redis.NewLocalStore(redisClient)

	// The document store degrades to in-memory when no database is
	// configured, so the engine still runs for local development.
	var db *database.PostgresDB
	var docs repository.UserDocumentStore
	if cfg.DatabaseURL != "" {
		db, err = database.NewPostgresDB(ctx, cfg.DatabaseURL)
		if err != nil {
			redisClient.Close()
			return nil, err
		}
		if err := db.EnsureSchema(ctx); err != nil {
			db.Close()
			redisClient.Close()
			return nil, err
		}
		docs = repository.NewUserDocumentStore(db, log)
		log.Info("PostgreSQL document store initialized successfully")
	} else {
		docs = repository.NewMemoryDocumentStore()
		log.Warn("DATABASE_URL not configured, using in-memory document store")
	}

	presenter := service.NewLogPresenter(log)

	identityClient := identity.NewClient(cfg.IdentityAPIURL, cfg.IdentityAPIKey, log)
	socialAuth := google.NewAuthenticator(cfg, local, log)

	services := &service.Services{
		Identity: identityClient,
		Social:   socialAuth,
	}

	sessionSvc := service.NewSessionService(
		identityClient,
		socialAuth,
		docs,
		local,
		presenter,
		log,
		service.SessionOptions{
			AuthPage: cfg.IsAuthPage(),
			Device:   service.DeviceClass(google.DetectDevice(cfg.UserAgent)),
		},
	)
	cartSvc := service.NewCartService(ctx, docs, local, presenter, log)

	// Session transitions drive the cart's remote subscription lifecycle
	sessionSvc.OnSessionChange(cartSvc.OnSessionChange)

	return &Container{
		Config:      cfg,
		Logger:      log,
		RedisClient: redisClient,
		LocalStore:  local,
		Database:    db,
		Documents:   docs,
		Presenter:   presenter,
		Services:    services,
		Session:     sessionSvc,
		Cart:        cartSvc,
	}, nil
}

// GetSessionService returns the session manager
func (c *Container) GetSessionService() *service.SessionService {
	return c.Session
}

// GetCartService returns the cart synchronizer
func (c *Container) GetCartService() *service.CartService {
	return c.Cart
}

// GetLocalStore returns the typed local-storage view
func (c *Container) GetLocalStore() *redis.LocalStore {
	return c.LocalStore
}

// GetLogger returns the logger
func (c *Container) GetLogger() *logger.Logger {
	return c.Logger
}

// GetConfig returns the configuration
func (c *Container) GetConfig() *config.Config {
	return c.Config
}

// HasDatabase returns true if the durable document store is available
func (c *Container) HasDatabase() bool {
	return c.Database != nil
}

// Close releases all held resources
func (c *Container) Close() {
	if c.Cart != nil {
		c.Cart.Stop()
	}
	if c.Database != nil {
		c.Database.Close()
	}
	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Logger.WithError(err).Error("Failed to close Redis client")
		}
	}
}
