// Package identity turns bearer access tokens into user records. Lookups go
// through a short-lived redis snapshot first; the database stays the source
// of truth and the cache is never allowed to fail a request.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mkostiuk/contact_service/internal/apperr"
	"github.com/mkostiuk/contact_service/internal/logging"
	"github.com/mkostiuk/contact_service/internal/models"
	"github.com/mkostiuk/contact_service/internal/service/token"
	"github.com/mkostiuk/contact_service/internal/tokencache"
)

const DefaultSnapshotTTL = 5 * time.Minute

type Resolver struct {
	DB          *gorm.DB
	Cache       *tokencache.Cache
	Tokens      *token.Service
	SnapshotTTL time.Duration
}

func NewResolver(db *gorm.DB, cache *tokencache.Cache, tokens *token.Service) *Resolver {
	return &Resolver{
		DB:          db,
		Cache:       cache,
		Tokens:      tokens,
		SnapshotTTL: DefaultSnapshotTTL,
	}
}

// Resolve maps a bearer access token to the user it names. Snapshot hits are
// served without touching the database and may be up to SnapshotTTL stale.
// Every auth failure comes back as apperr.ErrAuthentication so the caller
// cannot tell which check tripped.
func (r *Resolver) Resolve(ctx context.Context, rawToken string) (*models.User, error) {
	claims, err := r.Tokens.ParseAccess(rawToken)
	if err != nil {
		return nil, err
	}
	email := claims.Subject

	l := logging.FromContext(ctx).With("component", "identity_resolver")

	var cached models.User
	hit, err := r.Cache.Get(ctx, tokencache.SnapshotKey(email), &cached)
	if err != nil {
		l.Warn("snapshot_read_failed", "error", err)
	} else if hit {
		return &cached, nil
	}

	var user models.User
	if err := r.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrAuthentication
		}
		return nil, fmt.Errorf("identity lookup: %w", err)
	}

	if err := r.Cache.Set(ctx, tokencache.SnapshotKey(email), user, r.SnapshotTTL); err != nil {
		l.Warn("snapshot_write_failed", "error", err)
	}
	return &user, nil
}

// Invalidate drops the snapshot for email. Called after identity mutations
// (avatar, password, confirmation) so the next resolve rereads the store.
// Best effort: a cache failure only extends staleness to the TTL.
func (r *Resolver) Invalidate(ctx context.Context, email string) {
	if _, err := r.Cache.Delete(ctx, tokencache.SnapshotKey(email)); err != nil {
		logging.FromContext(ctx).Warn("snapshot_invalidate_failed", "error", err)
	}
}

// RequireRole authorizes an already-resolved user against a required role.
// Exact match, no hierarchy.
func RequireRole(user *models.User, role string) error {
	if user == nil || user.Role != role {
		return apperr.ErrAuthorization
	}
	return nil
}
