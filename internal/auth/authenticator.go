package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/bluesky-social/indigo/atproto/syntax"

	"github.com/iammatthias/mysky.wtf/internal/bluesky"
)

// Authenticator creates and revokes PDS sessions.
type Authenticator interface {
	CreateSession(ctx context.Context, identifier, password string) (*bluesky.Session, error)
	RevokeSession(ctx context.Context, s bluesky.Session) error
}

// PDSResolver finds the PDS hosting a DID.
type PDSResolver interface {
	ResolvePDS(ctx context.Context, did string) (string, error)
}

// XRPCAuthenticator signs in with an app password against the account's own
// PDS, found through the entryway and the resolver.
type XRPCAuthenticator struct {
	entryway string
	resolver PDSResolver
	logger   *slog.Logger
}

// NewXRPCAuthenticator validates entryway and returns an authenticator. A nil
// resolver sends every sign-in to the entryway.
func NewXRPCAuthenticator(entryway string, resolver PDSResolver, logger *slog.Logger) (*XRPCAuthenticator, error) {
	u, err := url.Parse(entryway)
	if err != nil {
		return nil, fmt.Errorf("parse entryway: %w", err)
	}
	if (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return nil, fmt.Errorf("invalid entryway %q", entryway)
	}
	return &XRPCAuthenticator{
		entryway: strings.TrimRight(entryway, "/"),
		resolver: resolver,
		logger:   logger,
	}, nil
}

// CreateSession logs in with identifier, a handle or DID.
func (a *XRPCAuthenticator) CreateSession(ctx context.Context, identifier, password string) (*bluesky.Session, error) {
	pds := a.pdsFor(ctx, identifier)
	sess, err := bluesky.NewClient(pds).Login(ctx, identifier, password)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// RevokeSession deletes s on its PDS.
func (a *XRPCAuthenticator) RevokeSession(ctx context.Context, s bluesky.Session) error {
	return bluesky.Resume(s).Logout(ctx)
}

// pdsFor finds the identifier's PDS, falling back to the entryway.
func (a *XRPCAuthenticator) pdsFor(ctx context.Context, identifier string) string {
	if a.resolver == nil {
		return a.entryway
	}

	did := identifier
	if !strings.HasPrefix(identifier, "did:") {
		resolved, err := bluesky.NewClient(a.entryway).ResolveHandle(ctx, identifier)
		if err != nil {
			a.logger.Debug("handle resolution failed, using entryway", "handle", identifier, "error", err)
			return a.entryway
		}
		did = resolved
	}

	pds, err := a.resolver.ResolvePDS(ctx, did)
	if err != nil {
		a.logger.Debug("pds resolution failed, using entryway", "did", did, "error", err)
		return a.entryway
	}
	return pds
}

// NormalizeHandle strips a leading "@", lower-cases and validates a handle.
// DIDs are returned unchanged.
func NormalizeHandle(input string) (string, error) {
	s := strings.TrimSpace(input)
	if strings.HasPrefix(s, "did:") {
		did, err := syntax.ParseDID(s)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidHandle, err)
		}
		return did.String(), nil
	}

	s = strings.ToLower(strings.TrimPrefix(s, "@"))
	h, err := syntax.ParseHandle(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidHandle, err)
	}
	return h.String(), nil
}
