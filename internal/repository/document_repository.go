package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"storefront-v2/internal/domain"
	"storefront-v2/pkg/database"
	"storefront-v2/pkg/logger"
)

const notifyChannel = "user_documents"

// documentRepository implements UserDocumentStore on top of a per-user JSONB
// row, with LISTEN/NOTIFY powering the live subscription.
type documentRepository struct {
	db  *database.PostgresDB
	log *logger.Logger
}

// NewUserDocumentStore creates a Postgres-backed document store
func NewUserDocumentStore(db *database.PostgresDB, log *logger.Logger) UserDocumentStore {
	return &documentRepository{db: db, log: log.Named("docstore")}
}

// Get retrieves the document for a uid
func (r *documentRepository) Get(ctx context.Context, uid string) (*domain.UserDocument, error) {
	const query = `
		SELECT email, display_name, photo_url, orders, cart, created_at, last_login, last_updated
		FROM user_documents
		WHERE uid = $1`

	doc := &domain.UserDocument{UID: uid}
	var ordersRaw, cartRaw []byte

	err := r.db.Pool.QueryRow(ctx, query, uid).Scan(
		&doc.Email, &doc.DisplayName, &doc.PhotoURL,
		&ordersRaw, &cartRaw,
		&doc.CreatedAt, &doc.LastLogin, &doc.LastUpdated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, mapPgError(err)
	}

	if err := json.Unmarshal(ordersRaw, &doc.Orders); err != nil {
		return nil, fmt.Errorf("decode orders for %s: %w", uid, err)
	}
	if err := json.Unmarshal(cartRaw, &doc.Cart); err != nil {
		return nil, fmt.Errorf("decode cart for %s: %w", uid, err)
	}
	return doc, nil
}

// Create inserts a fresh document; orders and cart default to empty sequences
func (r *documentRepository) Create(ctx context.Context, doc *domain.UserDocument) error {
	const query = `
		INSERT INTO user_documents (uid, email, display_name, photo_url, orders, cart)
		VALUES ($1, $2, $3, $4, $5, $6)`

	orders := doc.Orders
	if orders == nil {
		orders = []domain.Order{}
	}
	cart := doc.Cart
	if cart == nil {
		cart = []domain.CartItem{}
	}

	ordersRaw, err := json.Marshal(orders)
	if err != nil {
		return fmt.Errorf("encode orders: %w", err)
	}
	cartRaw, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}

	_, err = r.db.Pool.Exec(ctx, query, doc.UID, doc.Email, doc.DisplayName, doc.PhotoURL, ordersRaw, cartRaw)
	if err != nil {
		return mapPgError(err)
	}
	return nil
}

// Merge applies a partial profile upsert; timestamps are server-assigned
func (r *documentRepository) Merge(ctx context.Context, uid string, patch DocumentPatch) error {
	const query = `
		UPDATE user_documents
		SET email        = COALESCE($2, email),
		    display_name = COALESCE($3, display_name),
		    photo_url    = COALESCE($4, photo_url),
		    last_login   = CASE WHEN $5 THEN now() ELSE last_login END,
		    last_updated = now()
		WHERE uid = $1`

	tag, err := r.db.Pool.Exec(ctx, query, uid, patch.Email, patch.DisplayName, patch.PhotoURL, patch.TouchLastLogin)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// SetCart replaces the cart sequence and bumps last_updated
func (r *documentRepository) SetCart(ctx context.Context, uid string, items []domain.CartItem) error {
	const query = `
		UPDATE user_documents
		SET cart = $2, last_updated = now()
		WHERE uid = $1`

	if items == nil {
		items = []domain.CartItem{}
	}
	cartRaw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}

	tag, err := r.db.Pool.Exec(ctx, query, uid, cartRaw)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// Watch opens a live subscription for the uid backed by LISTEN/NOTIFY on a
// dedicated connection. The first snapshot is delivered immediately.
func (r *documentRepository) Watch(ctx context.Context, uid string) (<-chan DocumentSnapshot, func(), error) {
	conn, err := r.db.Pool.Acquire(ctx)
	if err != nil {
		return nil, nil, mapPgError(err)
	}

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		conn.Release()
		return nil, nil, mapPgError(err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	snapshots := make(chan DocumentSnapshot, 8)

	go func() {
		defer close(snapshots)
		defer conn.Release()

		// Initial delivery, matching the subscription contract of the
		// document platform this mirrors.
		r.deliver(watchCtx, uid, snapshots)

		for {
			notification, err := conn.Conn().WaitForNotification(watchCtx)
			if err != nil {
				if watchCtx.Err() == nil {
					r.log.WithError(err).WithField("uid", uid).Warn("document watch interrupted")
				}
				return
			}
			if notification.Payload != uid {
				continue
			}
			r.deliver(watchCtx, uid, snapshots)
		}
	}()

	return snapshots, cancel, nil
}

// deliver reads the current document and pushes a snapshot to the channel
func (r *documentRepository) deliver(ctx context.Context, uid string, out chan<- DocumentSnapshot) {
	snap := DocumentSnapshot{UID: uid}

	doc, err := r.Get(ctx, uid)
	switch {
	case err == nil:
		snap.Exists = true
		snap.Doc = doc
	case errors.Is(err, ErrDocumentNotFound):
		// absent document is a valid snapshot
	default:
		r.log.WithError(err).WithField("uid", uid).Warn("failed to read document for snapshot")
		return
	}

	select {
	case out <- snap:
	case <-ctx.Done():
	}
}

// mapPgError translates driver errors into the store's sentinel errors
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "42501" {
		return fmt.Errorf("%w: %s", ErrPermissionDenied, pgErr.Message)
	}
	return err
}
