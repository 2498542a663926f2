package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/iammatthias/mysky.wtf/internal/bluesky"
	"github.com/iammatthias/mysky.wtf/internal/domain"
)

const DefaultSessionTTL = 30 * 24 * time.Hour

var (
	ErrNoSession     = errors.New("no session")
	ErrInvalidHandle = errors.New("invalid handle")
)

// SessionStore persists PDS sessions by id. GetSession returns
// domain.ErrNotFound for unknown ids.
type SessionStore interface {
	SaveSession(ctx context.Context, id string, s bluesky.Session) error
	GetSession(ctx context.Context, id string) (*bluesky.Session, error)
	DeleteSession(ctx context.Context, id string) error
}

// Session is a signed-in user as seen by callers.
type Session struct {
	ID        string    `json:"id"`
	DID       string    `json:"did"`
	Handle    string    `json:"handle"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Claims is the payload of a session token.
type Claims struct {
	jwt.RegisteredClaims
	Handle string `json:"handle"`
}

// Manager signs users in and out and turns session tokens back into agents.
// The authenticator is built on first use and shared afterwards; if building
// it fails, every call reports that failure.
type Manager struct {
	store  SessionStore
	secret []byte
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	newAuthenticator func() (Authenticator, error)
	once             sync.Once
	authn            Authenticator
	authnErr         error
}

// NewManager creates a Manager. Tokens are signed with secret and live for ttl
// (DefaultSessionTTL when zero).
func NewManager(store SessionStore, secret []byte, ttl time.Duration, newAuthenticator func() (Authenticator, error), logger *slog.Logger) *Manager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Manager{
		store:            store,
		secret:           secret,
		ttl:              ttl,
		logger:           logger,
		now:              time.Now,
		newAuthenticator: newAuthenticator,
	}
}

func (m *Manager) authenticator() (Authenticator, error) {
	m.once.Do(func() {
		m.authn, m.authnErr = m.newAuthenticator()
		if m.authnErr != nil {
			m.authnErr = fmt.Errorf("create authenticator: %w", m.authnErr)
		}
	})
	return m.authn, m.authnErr
}

// SignIn logs in with a handle (or DID) and app password and returns a signed
// session token.
func (m *Manager) SignIn(ctx context.Context, handle, password string) (string, *Session, error) {
	identifier, err := NormalizeHandle(handle)
	if err != nil {
		return "", nil, err
	}

	authn, err := m.authenticator()
	if err != nil {
		return "", nil, err
	}

	pdsSession, err := authn.CreateSession(ctx, identifier, password)
	if err != nil {
		return "", nil, fmt.Errorf("sign in %s: %w", identifier, err)
	}

	id := uuid.NewString()
	if err := m.store.SaveSession(ctx, id, *pdsSession); err != nil {
		return "", nil, err
	}

	now := m.now()
	sess := &Session{
		ID:        id,
		DID:       pdsSession.DID,
		Handle:    pdsSession.Handle,
		ExpiresAt: now.Add(m.ttl),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Subject:   sess.DID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
		Handle: sess.Handle,
	})
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}

	m.logger.Info("signed in", "did", sess.DID, "handle", sess.Handle)
	return signed, sess, nil
}

// Session returns the session behind token, or ErrNoSession.
func (m *Manager) Session(ctx context.Context, token string) (*Session, error) {
	claims, err := m.parse(token)
	if err != nil {
		return nil, err
	}

	stored, err := m.store.GetSession(ctx, claims.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}

	return &Session{
		ID:        claims.ID,
		DID:       stored.DID,
		Handle:    stored.Handle,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Agent returns a client bound to the PDS session behind token. When the
// client refreshes an expired access token, the rotated tokens are written
// back to the store.
func (m *Manager) Agent(ctx context.Context, token string) (*bluesky.Client, error) {
	claims, err := m.parse(token)
	if err != nil {
		return nil, err
	}

	stored, err := m.store.GetSession(ctx, claims.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}

	client := bluesky.Resume(*stored)
	id := claims.ID
	client.OnRefresh(func(ctx context.Context, refreshed bluesky.Session) {
		if err := m.store.SaveSession(ctx, id, refreshed); err != nil {
			m.logger.Error("failed to persist refreshed session", "did", refreshed.DID, "error", err)
			return
		}
		m.logger.Debug("session refreshed", "did", refreshed.DID)
	})
	return client, nil
}

// SignOut revokes the PDS session behind token and forgets it. A token that
// no longer maps to a session is not an error.
func (m *Manager) SignOut(ctx context.Context, token string) error {
	claims, err := m.parse(token)
	if err != nil {
		return nil
	}

	stored, err := m.store.GetSession(ctx, claims.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if authn, err := m.authenticator(); err == nil {
		if err := authn.RevokeSession(ctx, *stored); err != nil {
			m.logger.Warn("session revoke failed", "did", stored.DID, "error", err)
		}
	}

	if err := m.store.DeleteSession(ctx, claims.ID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	m.logger.Info("signed out", "did", stored.DID)
	return nil
}

func (m *Manager) parse(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrNoSession
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !parsed.Valid || claims.ID == "" {
		return nil, ErrNoSession
	}
	return claims, nil
}
