// Package token owns the session-token lifecycle: issuance, the single-use
// refresh rotation, and revocation. Refresh validity is decided by the jti
// registered in the token cache, not by the token alone.
package token

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mkostiuk/contact_service/internal/apperr"
	"github.com/mkostiuk/contact_service/internal/tokencache"
	"github.com/mkostiuk/contact_service/internal/tokens"
)

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
	DefaultActionTTL  = 24 * time.Hour
)

type Service struct {
	Cache         *tokencache.Cache
	JWTSecret     []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	ActionTTL     time.Duration
}

func NewService(cache *tokencache.Cache, jwtSecret, refreshSecret []byte) *Service {
	return &Service{
		Cache:         cache,
		JWTSecret:     jwtSecret,
		RefreshSecret: refreshSecret,
		AccessTTL:     DefaultAccessTTL,
		RefreshTTL:    DefaultRefreshTTL,
		ActionTTL:     DefaultActionTTL,
	}
}

func (s *Service) IssueAccess(subject string) (string, error) {
	return tokens.SignAccess(subject, s.JWTSecret, s.AccessTTL)
}

// IssueRefresh signs a refresh token and registers its jti as active. The jti
// entry expires together with the token, so revoked-by-time entries never
// linger. Registration failure fails the call: an unregistered refresh token
// would be rejected on its first exchange anyway.
func (s *Service) IssueRefresh(ctx context.Context, subject string) (string, error) {
	jti := uuid.NewString()
	signed, err := tokens.SignRefresh(subject, jti, s.RefreshSecret, s.RefreshTTL)
	if err != nil {
		return "", err
	}
	if err := s.Cache.Set(ctx, tokencache.RefreshKey(jti), subject, s.RefreshTTL); err != nil {
		return "", fmt.Errorf("register refresh jti: %w", err)
	}
	return signed, nil
}

func (s *Service) IssueAction(subject string, kind tokens.Kind) (string, error) {
	return tokens.SignAction(subject, kind, s.JWTSecret, s.ActionTTL)
}

// ExchangeRefresh validates the presented refresh token, retires its jti and
// returns a fresh access/refresh pair. The delete-and-count on the jti key is
// the rotation point: of two concurrent exchanges of the same token exactly
// one observes the key present, the other gets ErrAuthentication.
func (s *Service) ExchangeRefresh(ctx context.Context, rawToken string) (string, string, error) {
	claims, err := tokens.ParseRefresh(rawToken, s.RefreshSecret)
	if err != nil {
		return "", "", err
	}

	removed, err := s.Cache.Delete(ctx, tokencache.RefreshKey(claims.ID))
	if err != nil {
		return "", "", fmt.Errorf("refresh state lookup: %w", err)
	}
	if !removed {
		return "", "", fmt.Errorf("refresh jti not active: %w", apperr.ErrAuthentication)
	}

	newAccess, err := s.IssueAccess(claims.Subject)
	if err != nil {
		return "", "", err
	}
	newRefresh, err := s.IssueRefresh(ctx, claims.Subject)
	if err != nil {
		return "", "", err
	}
	return newAccess, newRefresh, nil
}

// Revoke drops the jti from the active set. Revoking an unknown or already
// revoked jti is a no-op.
func (s *Service) Revoke(ctx context.Context, jti string) error {
	if _, err := s.Cache.Delete(ctx, tokencache.RefreshKey(jti)); err != nil {
		return fmt.Errorf("revoke refresh jti: %w", err)
	}
	return nil
}

func (s *Service) ParseAccess(rawToken string) (*tokens.AccessClaims, error) {
	return tokens.ParseAccess(rawToken, s.JWTSecret)
}

func (s *Service) ParseRefresh(rawToken string) (*tokens.RefreshClaims, error) {
	return tokens.ParseRefresh(rawToken, s.RefreshSecret)
}

func (s *Service) ParseAction(rawToken string, kind tokens.Kind) (*tokens.ActionClaims, error) {
	return tokens.ParseAction(rawToken, kind, s.JWTSecret)
}
