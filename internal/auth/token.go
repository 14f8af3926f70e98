// Package auth provides optional bearer-token authentication for the HTTP
// control plane: a JWT issuer/verifier and a chi-compatible middleware that
// gates the routes which drive or record a browser.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// TokenTTL is how long an issued token remains valid.
const TokenTTL = 24 * time.Hour

// MinSecretKeyLength is the minimum accepted secret length for HMAC-SHA256.
const MinSecretKeyLength = 32

var ErrSecretKeyTooShort = fmt.Errorf("auth: secret key must be at least %d bytes for HMAC-SHA256", MinSecretKeyLength)

var (
	ErrTokenRequired = errors.New("auth: bearer token required")
	ErrTokenInvalid  = errors.New("auth: bearer token invalid")
	ErrTokenExpired  = errors.New("auth: bearer token expired")
)

// Claims is the JWT payload issued by Manager. Unlike a browser-session
// token there is no client fingerprint to bind: a bearer token simply
// proves the caller holds a value the operator handed out.
type Claims struct {
	jwt.RegisteredClaims
	Subject string `json:"sub,omitempty"`
}

// Manager issues and verifies HS256 bearer tokens.
type Manager struct {
	secretKey []byte
	logger    *zap.Logger
}

// NewManager creates a Manager. secretKey must be at least MinSecretKeyLength
// bytes.
func NewManager(secretKey string, logger *zap.Logger) (*Manager, error) {
	if len(secretKey) < MinSecretKeyLength {
		return nil, ErrSecretKeyTooShort
	}
	return &Manager{secretKey: []byte(secretKey), logger: logger}, nil
}

// IssueToken creates a new bearer token for subject, valid for TokenTTL.
func (m *Manager) IssueToken(subject string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(TokenTTL)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Subject: subject,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secretKey)
	if err != nil {
		m.logger.Error("auth: failed to sign token", zap.Error(err))
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// VerifyToken parses and validates tokenString, returning the claims on
// success.
func (m *Manager) VerifyToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrTokenRequired
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return m.secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		m.logger.Debug("auth: token validation failed", zap.Error(err))
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

type contextKey string

const claimsContextKey contextKey = "auth.claims"

// Middleware returns an http middleware that requires a valid
// "Authorization: Bearer <token>" header, rejecting requests with 401
// otherwise. Pass nil to disable auth entirely (all requests pass through).
func Middleware(manager *Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if manager == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(header, prefix) {
				writeUnauthorized(w, ErrTokenRequired)
				return
			}

			claims, err := manager.VerifyToken(strings.TrimPrefix(header, prefix))
			if err != nil {
				writeUnauthorized(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":{"code":"UNAUTHORIZED","message":"` + err.Error() + `"}}`))
}

// ClaimsFromContext retrieves the verified claims a Middleware call placed
// on the request context, if any.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*Claims)
	return claims, ok
}
