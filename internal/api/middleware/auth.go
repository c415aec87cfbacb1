package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Context keys for storing account information
type contextKey string

const (
	AccountIDKey contextKey = "account_id"
	JWTClaimsKey contextKey = "jwt_claims"
)

// ErrMissingSubject is returned for tokens without a sub claim
var ErrMissingSubject = errors.New("token has no subject")

// JWTAuthMiddleware verifies HS256 bearer tokens issued by the identity provider.
// The sub claim is the identity-provider account ID.
type JWTAuthMiddleware struct {
	logger *slog.Logger
	issuer string
	secret []byte
}

// NewJWTAuthMiddleware creates the auth middleware. An empty issuer disables the iss check.
func NewJWTAuthMiddleware(secret []byte, issuer string, logger *slog.Logger) *JWTAuthMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &JWTAuthMiddleware{
		secret: secret,
		issuer: issuer,
		logger: logger,
	}
}

// RequireAuth middleware ensures the request carries a valid token
// If not authenticated, returns 401
// If authenticated, injects the account ID and claims into context
func (m *JWTAuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeAuthError(w, "Missing Authorization header")
			return
		}

		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok {
			writeAuthError(w, "Invalid Authorization header format. Expected: Bearer <token>")
			return
		}

		claims, err := m.Verify(strings.TrimSpace(token))
		if err != nil {
			m.logger.Warn("auth failure",
				"type", "verification_failed",
				"ip", r.RemoteAddr,
				"method", r.Method,
				"path", r.URL.Path,
				"error", err)
			writeAuthError(w, "Invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
	})
}

// OptionalAuth middleware loads account info if authenticated, but doesn't require it
// An invalid token is treated as anonymous
func (m *JWTAuthMiddleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := m.Verify(strings.TrimSpace(token))
		if err != nil {
			m.logger.Debug("optional auth ignored invalid token", "path", r.URL.Path, "error", err)
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
	})
}

// Verify parses and validates a token string
func (m *JWTAuthMiddleware) Verify(tokenString string) (*jwt.RegisteredClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("HS256 verification failed: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("HS256 verification failed: token signature invalid")
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}
	return claims, nil
}

// IssueToken signs a token for accountID. Used by local tooling that stands in
// for the identity provider.
func IssueToken(secret []byte, issuer, accountID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   accountID,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func withClaims(ctx context.Context, claims *jwt.RegisteredClaims) context.Context {
	ctx = context.WithValue(ctx, AccountIDKey, claims.Subject)
	return context.WithValue(ctx, JWTClaimsKey, claims)
}

// GetAccountID extracts the account ID from the request context
// Returns empty string if not authenticated
func GetAccountID(r *http.Request) string {
	accountID, _ := r.Context().Value(AccountIDKey).(string)
	return accountID
}

// GetJWTClaims extracts the JWT claims from the request context
// Returns nil if not authenticated
func GetJWTClaims(r *http.Request) *jwt.RegisteredClaims {
	claims, _ := r.Context().Value(JWTClaimsKey).(*jwt.RegisteredClaims)
	return claims
}

// SetTestAccountID sets an account ID in the context for tests
func SetTestAccountID(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, AccountIDKey, accountID)
}

// writeAuthError writes a JSON error response for authentication failures
func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="snapfeed"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "AuthRequired",
		"message": message,
	})
}
