// ABOUTME: JWT token signing and verification for node-to-node cluster calls
// ABOUTME: Uses HS256 signing with a shared cluster secret

package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
)

// tokenTTL bounds how long a node-to-node token stays valid. Tokens are
// minted per call, so the window only needs to cover clock skew.
const tokenTTL = 2 * time.Minute

// TokenAuth signs and verifies the short-lived HS256 tokens nodes attach
// to cluster calls. All nodes share one cluster secret.
type TokenAuth struct {
	secret []byte
	node   string
}

// New creates a TokenAuth for this node with the shared cluster secret.
func New(secret []byte, node string) *TokenAuth {
	return &TokenAuth{secret: secret, node: node}
}

// Token mints a token identifying this node, valid for a short window.
func (a *TokenAuth) Token() (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": a.node,
		"iat": now.Unix(),
		"exp": now.Add(tokenTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Verify validates the token and extracts the calling node's host
// identifier from the "sub" claim.
func (a *TokenAuth) Verify(tokenString string) (node string, err error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method is HS256
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})

	if err != nil {
		// Check if it's specifically an expiration error
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", fmt.Errorf("%w: sub", ErrMissingClaim)
	}

	return sub, nil
}

// Middleware rejects requests lacking a valid bearer token. Applied to
// the cluster-internal endpoints only; the public API stays open.
func (a *TokenAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}

		if _, err := a.Verify(strings.TrimPrefix(header, "Bearer ")); err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
