// Package tokens defines the closed claim schemas of every token kind the
// service signs, and the signing/parsing helpers around them. A token of one
// kind never validates as another: refresh, email-verification and
// password-reset tokens carry a "typ" discriminator that is checked at parse
// time, access tokens carry none.
package tokens

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mkostiuk/contact_service/internal/apperr"
)

type Kind string

const (
	KindRefresh           Kind = "refresh"
	KindEmailVerification Kind = "email_verification"
	KindPasswordReset     Kind = "password_reset"
)

// AccessClaims carries no "typ": any discriminated token presented as an
// access token is rejected even when the signature checks out.
type AccessClaims struct {
	Type string `json:"typ,omitempty"`
	jwt.RegisteredClaims
}

// RefreshClaims carries the jti in RegisteredClaims.ID; the jti, not the
// signature, is what makes the token revocable.
type RefreshClaims struct {
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

// ActionClaims backs the single-use mail flows (email verification and
// password reset).
type ActionClaims struct {
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

func SignAccess(subject string, secret []byte, ttl time.Duration) (string, error) {
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func SignRefresh(subject, jti string, secret []byte, ttl time.Duration) (string, error) {
	claims := RefreshClaims{
		Type: string(KindRefresh),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        jti,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func SignAction(subject string, kind Kind, secret []byte, ttl time.Duration) (string, error) {
	claims := ActionClaims{
		Type: string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func ParseAccess(tokenStr string, secret []byte) (*AccessClaims, error) {
	var claims AccessClaims
	if err := parse(tokenStr, &claims, secret); err != nil {
		return nil, err
	}
	if claims.Subject == "" || claims.Type != "" {
		return nil, apperr.ErrTokenMalformed
	}
	return &claims, nil
}

func ParseRefresh(tokenStr string, secret []byte) (*RefreshClaims, error) {
	var claims RefreshClaims
	if err := parse(tokenStr, &claims, secret); err != nil {
		return nil, err
	}
	if claims.Type != string(KindRefresh) || claims.Subject == "" || claims.ID == "" {
		return nil, apperr.ErrTokenMalformed
	}
	return &claims, nil
}

func ParseAction(tokenStr string, kind Kind, secret []byte) (*ActionClaims, error) {
	var claims ActionClaims
	if err := parse(tokenStr, &claims, secret); err != nil {
		return nil, err
	}
	if claims.Type != string(kind) || claims.Subject == "" {
		return nil, apperr.ErrTokenMalformed
	}
	return &claims, nil
}

func parse(tokenStr string, claims jwt.Claims, secret []byte) error {
	tkn, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected sign method")
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return apperr.ErrTokenExpired
		}
		return apperr.ErrTokenMalformed
	}
	if !tkn.Valid {
		return apperr.ErrTokenMalformed
	}
	return nil
}
