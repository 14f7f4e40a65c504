package repository

import (
	"context"
	"errors"

	"storefront-v2/internal/domain"
)

// ErrDocumentNotFound is returned by Get when no document exists for the uid
var ErrDocumentNotFound = errors.New("user document not found")

// ErrPermissionDenied is returned when the database rejects the operation for
// lack of privileges; callers surface it as a configuration error.
var ErrPermissionDenied = errors.New("permission denied by database")

// DocumentPatch is a partial upsert of profile fields. Nil pointers leave the
// stored value untouched. LastLogin is always server-assigned when touched.
type DocumentPatch struct {
	Email          *string
	DisplayName    *string
	PhotoURL       *string
	TouchLastLogin bool
}

// DocumentSnapshot is one delivery from a live document subscription
type DocumentSnapshot struct {
	UID    string
	Exists bool
	Doc    *domain.UserDocument
}

// UserDocumentStore defines the interface for per-user document operations
type UserDocumentStore interface {
	// Get retrieves the document for a uid; ErrDocumentNotFound when absent
	Get(ctx context.Context, uid string) (*domain.UserDocument, error)

	// Create inserts a fresh document with server-assigned timestamps and
	// empty orders/cart sequences unless provided
	Create(ctx context.Context, doc *domain.UserDocument) error

	// Merge applies a partial profile upsert to an existing document
	Merge(ctx context.Context, uid string, patch DocumentPatch) error

	// SetCart replaces the cart sequence and bumps last_updated
	SetCart(ctx context.Context, uid string, items []domain.CartItem) error

	// Watch opens a live subscription for the uid. The first snapshot is
	// delivered immediately; the returned cancel func tears the watch down.
	Watch(ctx context.Context, uid string) (<-chan DocumentSnapshot, func(), error)
}
