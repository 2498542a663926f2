package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bluesky-social/indigo/atproto/syntax"
	"github.com/patrickmn/go-cache"

	"github.com/iammatthias/mysky.wtf/internal/domain"
)

const (
	DefaultDirectory = "https://plc.directory"

	pdsServiceType   = "AtprotoPersonalDataServer"
	pdsServiceSuffix = "#atproto_pds"
)

// ErrNoPDS means the DID document was resolved but names no PDS, or the DID
// cannot be resolved by any supported method.
var ErrNoPDS = errors.New("no PDS for DID")

// Resolver maps DIDs to the base URL of the PDS hosting their repository.
// Successful lookups are kept for the lifetime of the Resolver; failures are
// always retried.
type Resolver struct {
	directory  string
	httpClient *http.Client
	cache      *cache.Cache
	logger     *slog.Logger

	// webScheme is "https" outside tests.
	webScheme string
}

// NewResolver creates a Resolver that asks directory about did:plc
// identities. An empty directory means plc.directory.
func NewResolver(directory string, logger *slog.Logger) *Resolver {
	if directory == "" {
		directory = DefaultDirectory
	}
	return &Resolver{
		directory: strings.TrimRight(directory, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		cache:     cache.New(cache.NoExpiration, 0),
		logger:    logger,
		webScheme: "https",
	}
}

type didDocument struct {
	ID      string       `json:"id"`
	Service []didService `json:"service"`
}

type didService struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	ServiceEndpoint string `json:"serviceEndpoint"`
}

// ResolvePDS returns the PDS endpoint of did.
func (r *Resolver) ResolvePDS(ctx context.Context, did string) (string, error) {
	if x, found := r.cache.Get(did); found {
		return x.(string), nil
	}

	parsed, err := syntax.ParseDID(did)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrNoPDS, did, err)
	}

	var docURL string
	switch parsed.Method() {
	case "plc":
		docURL = r.directory + "/" + did
	case "web":
		host := strings.ReplaceAll(parsed.Identifier(), "%3A", ":")
		docURL = fmt.Sprintf("%s://%s/.well-known/did.json", r.webScheme, host)
	default:
		return "", fmt.Errorf("%w: unsupported method %q", ErrNoPDS, parsed.Method())
	}

	doc, err := r.fetchDocument(ctx, docURL)
	if err != nil {
		return "", fmt.Errorf("%w: resolve %s: %v", domain.ErrUnavailable, did, err)
	}

	endpoint := pdsEndpoint(doc)
	if endpoint == "" {
		return "", fmt.Errorf("%w: %s", ErrNoPDS, did)
	}

	r.cache.Set(did, endpoint, cache.NoExpiration)
	r.logger.Debug("resolved pds", "did", did, "pds", endpoint)
	return endpoint, nil
}

func (r *Resolver) fetchDocument(ctx context.Context, docURL string) (*didDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, docURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("directory status %d", resp.StatusCode)
	}

	var doc didDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal did document: %w", err)
	}
	return &doc, nil
}

func pdsEndpoint(doc *didDocument) string {
	for _, svc := range doc.Service {
		if svc.Type == pdsServiceType || strings.HasSuffix(svc.ID, pdsServiceSuffix) {
			return strings.TrimRight(svc.ServiceEndpoint, "/")
		}
	}
	return ""
}
