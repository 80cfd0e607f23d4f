package proxy

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

// Claims are the bearer token claims accepted by the proxy.
type Claims struct {
	jwt.RegisteredClaims
}

// IssueToken returns an HS256 token for subject valid for ttl.
func IssueToken(secret []byte, subject string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("switchyard: empty proxy secret")
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ulid.Make().String(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString(secret)
}

// VerifyToken validates signature and expiry of tokenStr.
func VerifyToken(secret []byte, tokenStr string) (*Claims, error) {
	if len(secret) == 0 {
		return nil, errors.New("switchyard: empty proxy secret")
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	tok, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, errors.New("switchyard: invalid proxy token")
	}
	claims, ok := tok.Claims.(*Claims)
	if !ok {
		return nil, errors.New("switchyard: invalid proxy token claims")
	}

	return claims, nil
}

// TokenSource produces the bearer token attached to each request.
type TokenSource func() (string, error)

// StaticToken returns a TokenSource that always yields token.
func StaticToken(token string) TokenSource {
	return func() (string, error) { return token, nil }
}

// SigningTokenSource issues a fresh short-lived token for every request.
func SigningTokenSource(secret []byte, subject string, ttl time.Duration) TokenSource {
	return func() (string, error) {
		return IssueToken(secret, subject, ttl)
	}
}

// extractBearerToken returns the token of an "Authorization: Bearer" header,
// or "" when the header is missing or malformed.
func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")

	// Must start with "Bearer " (case-sensitive per RFC 6750)
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}

	return strings.TrimSpace(auth[len(prefix):])
}

// authorize accepts either a valid JWT signed with secret or, when set, the
// static API key compared in constant time.
func authorize(secret []byte, apiKey, token string) error {
	if token == "" {
		return ErrUnauthorized
	}
	if apiKey != "" && len(token) == len(apiKey) &&
		subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) == 1 {
		return nil
	}
	if len(secret) == 0 {
		return ErrUnauthorized
	}
	if _, err := VerifyToken(secret, token); err != nil {
		return errors.Join(ErrUnauthorized, err)
	}

	return nil
}
