package middleware

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bakerysensors/hub/internal/config"
	"github.com/bakerysensors/hub/internal/errors"
	"github.com/golang-jwt/jwt/v5"
	nuts "github.com/vaudience/go-nuts"
)

const (
	RoleManager = "manager"
	issuer      = "sensorhub"
)

type contextKey string

const sessionContextKey contextKey = "session"

// SessionClaims are the claims of a manager session token.
type SessionClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// SessionMiddleware issues and verifies HS256 session tokens.
type SessionMiddleware struct {
	secret  []byte
	timeout time.Duration
	now     func() time.Time
}

// NewSessionMiddleware builds the middleware from the auth config. Without a
// configured secret a random one is generated, so sessions do not survive a
// restart.
func NewSessionMiddleware(cfg config.AuthConfig) *SessionMiddleware {
	secret := []byte(cfg.JWTSecret)
	if len(secret) == 0 {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			panic(fmt.Sprintf("generating session secret: %v", err))
		}
		secret = []byte(hex.EncodeToString(buf))
		nuts.L.Warnf("[Auth] No JWT secret configured, sessions will not survive a restart")
	}
	timeout := cfg.SessionTimeout
	if timeout <= 0 {
		timeout = time.Hour
	}
	return &SessionMiddleware{secret: secret, timeout: timeout, now: time.Now}
}

// IssueToken signs a new session token for role.
func (m *SessionMiddleware) IssueToken(role string) (string, time.Time, error) {
	now := m.now()
	expires := now.Add(m.timeout)
	claims := SessionClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        nuts.NID("ses", 16),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// ParseToken validates a token and returns its claims.
func (m *SessionMiddleware) ParseToken(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// Authenticate validates the token and adds the session to the context
func (m *SessionMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			handleError(w, errors.NewAuthError("no token provided", nil))
			return
		}

		claims, err := m.ParseToken(token)
		if err != nil {
			handleError(w, errors.NewAuthError("invalid or expired session", err))
			return
		}
		if claims.Role != RoleManager {
			handleError(w, errors.NewAuthorizationError("insufficient permissions", nil))
			return
		}

		ctx := context.WithValue(r.Context(), sessionContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SessionFromContext returns the session claims set by Authenticate.
func SessionFromContext(ctx context.Context) (*SessionClaims, bool) {
	claims, ok := ctx.Value(sessionContextKey).(*SessionClaims)
	return claims, ok
}

// LoginLimiter locks a client out after too many failed PIN attempts.
type LoginLimiter struct {
	maxAttempts int
	lockout     time.Duration
	now         func() time.Time

	mu       sync.Mutex
	attempts map[string]*loginAttempts
}

type loginAttempts struct {
	failures    int
	lockedUntil time.Time
}

// NewLoginLimiter creates a limiter from the auth config.
func NewLoginLimiter(cfg config.AuthConfig) *LoginLimiter {
	maxAttempts := cfg.MaxLoginAttempts
	if maxAttempts < 1 {
		maxAttempts = 4
	}
	lockout := cfg.LockoutDuration
	if lockout <= 0 {
		lockout = 15 * time.Minute
	}
	return &LoginLimiter{
		maxAttempts: maxAttempts,
		lockout:     lockout,
		now:         time.Now,
		attempts:    make(map[string]*loginAttempts),
	}
}

// Allowed reports whether client may attempt a login, and until when it is
// locked out if not.
func (l *LoginLimiter) Allowed(client string) (bool, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.attempts[client]
	if !ok {
		return true, time.Time{}
	}
	if a.lockedUntil.IsZero() {
		return true, time.Time{}
	}
	if l.now().Before(a.lockedUntil) {
		return false, a.lockedUntil
	}
	delete(l.attempts, client)
	return true, time.Time{}
}

// Failure counts a failed attempt and returns the attempts left before lockout.
func (l *LoginLimiter) Failure(client string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.attempts[client]
	if !ok {
		a = &loginAttempts{}
		l.attempts[client] = a
	}
	a.failures++
	if a.failures >= l.maxAttempts {
		a.lockedUntil = l.now().Add(l.lockout)
		nuts.L.Warnf("[Auth] Client %s locked out until %s", client, a.lockedUntil.Format(time.RFC3339))
		return 0
	}
	return l.maxAttempts - a.failures
}

// Success clears the failure count of client.
func (l *LoginLimiter) Success(client string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.attempts, client)
}

// ClientKey identifies the caller for rate limiting.
func ClientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 {
		host = host[:i]
	}
	return host
}

func extractToken(r *http.Request) string {
	bearerToken := r.Header.Get("Authorization")
	if len(strings.Split(bearerToken, " ")) == 2 {
		return strings.Split(bearerToken, " ")[1]
	}
	return ""
}

func handleError(w http.ResponseWriter, err *errors.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Code)
	json.NewEncoder(w).Encode(err)
}
