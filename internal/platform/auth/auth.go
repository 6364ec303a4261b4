// Package auth gates access to the back-office. A single administrator
// identity logs in with an email and password and receives a signed session
// token; logging out revokes that token.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials is returned by Login on any identifier/secret mismatch.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidSession is returned by Verify for malformed, expired or revoked tokens.
	ErrInvalidSession = errors.New("invalid session")
)

const issuer = "clinic"

// Session is the authenticated state of one login.
type Session struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Claims are the JWT claims of a session token. The token id is the session id.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

type Config struct {
	Email        string
	PasswordHash []byte
	Secret       []byte
	TTL          time.Duration
}

// Authenticator issues and verifies session tokens.
type Authenticator struct {
	cfg     Config
	revoked *TokenRevocationStore
	now     func() time.Time
}

func NewAuthenticator(cfg Config, revoked *TokenRevocationStore) (*Authenticator, error) {
	if cfg.Email == "" {
		return nil, fmt.Errorf("auth: admin email is required")
	}
	if len(cfg.PasswordHash) == 0 {
		return nil, fmt.Errorf("auth: admin password hash is required")
	}
	if _, err := bcrypt.Cost(cfg.PasswordHash); err != nil {
		return nil, fmt.Errorf("auth: admin password hash: %w", err)
	}
	if len(cfg.Secret) == 0 {
		return nil, fmt.Errorf("auth: session secret is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 12 * time.Hour
	}
	return &Authenticator{cfg: cfg, revoked: revoked, now: time.Now}, nil
}

// HashPassword returns the bcrypt hash of plain.
func HashPassword(plain string, cost int) ([]byte, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return bcrypt.GenerateFromPassword([]byte(plain), cost)
}

// Login checks the credentials and starts a new session.
func (a *Authenticator) Login(identifier, secret string) (*Session, string, error) {
	emailOK := subtle.ConstantTimeCompare([]byte(identifier), []byte(a.cfg.Email)) == 1
	passErr := bcrypt.CompareHashAndPassword(a.cfg.PasswordHash, []byte(secret))
	if !emailOK || passErr != nil {
		return nil, "", ErrInvalidCredentials
	}

	now := a.now().UTC().Truncate(time.Second)
	sess := &Session{
		ID:        uuid.NewString(),
		Email:     a.cfg.Email,
		IssuedAt:  now,
		ExpiresAt: now.Add(a.cfg.TTL),
	}
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sess.ID,
			Subject:   sess.Email,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(sess.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
		Email: sess.Email,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.cfg.Secret)
	if err != nil {
		return nil, "", fmt.Errorf("sign session token: %w", err)
	}
	return sess, token, nil
}

// Verify resolves a token to its session.
func (a *Authenticator) Verify(token string) (*Session, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return a.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidSession
	}
	if claims.ID == "" || a.revoked.IsRevoked(claims.ID) {
		return nil, ErrInvalidSession
	}
	return &Session{
		ID:        claims.ID,
		Email:     claims.Email,
		IssuedAt:  claims.IssuedAt.Time.UTC(),
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}, nil
}

// Logout revokes the session behind token. Unknown or invalid tokens are
// ignored.
func (a *Authenticator) Logout(token string) {
	sess, err := a.Verify(token)
	if err != nil {
		return
	}
	a.revoked.Revoke(sess.ID, sess.ExpiresAt)
}

// -- Context --

type contextKey string

const sessionKey contextKey = "session"

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromContext returns the current session or nil.
func SessionFromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey).(*Session)
	return s
}

func IsAuthenticated(ctx context.Context) bool {
	return SessionFromContext(ctx) != nil
}
