package pds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/iammatthias/mysky.wtf/internal/domain"
)

const (
	DefaultListLimit = 50
	maxListLimit     = 100

	recordNotFound = "RecordNotFound"
)

var tracer = otel.Tracer("mysky/pds")

var _ domain.RecordReader = (*Reader)(nil)

// Resolver finds the PDS hosting a DID.
type Resolver interface {
	ResolvePDS(ctx context.Context, did string) (string, error)
}

// Reader reads public records straight from the PDS that hosts each
// repository. It implements domain.RecordReader.
type Reader struct {
	resolver   Resolver
	httpClient *http.Client
	logger     *slog.Logger
}

// NewReader creates a Reader.
func NewReader(resolver Resolver, logger *slog.Logger) *Reader {
	return &Reader{
		resolver: resolver,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logger,
	}
}

// GetRecord fetches one record.
func (r *Reader) GetRecord(ctx context.Context, repo, collection, rkey string) (*domain.RecordEntry, error) {
	ctx, span := tracer.Start(ctx, "Reader.GetRecord")
	defer span.End()
	span.SetAttributes(
		attribute.String("repo", repo),
		attribute.String("collection", collection),
		attribute.String("rkey", rkey),
	)

	q := url.Values{}
	q.Set("repo", repo)
	q.Set("collection", collection)
	q.Set("rkey", rkey)

	var entry domain.RecordEntry
	if err := r.get(ctx, repo, "com.atproto.repo.getRecord", q, &entry); err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			span.RecordError(err)
		}
		return nil, err
	}
	return &entry, nil
}

// ListRecords lists up to limit records of a collection. Limits outside
// 1..100 fall back to the default or the maximum.
func (r *Reader) ListRecords(ctx context.Context, repo, collection string, limit int) ([]domain.RecordEntry, error) {
	records, _, err := r.ListRecordsPage(ctx, repo, collection, limit, "")
	return records, err
}

// ListRecordsPage lists one page of a collection starting at cursor and
// returns the cursor of the next page, empty after the last one.
func (r *Reader) ListRecordsPage(ctx context.Context, repo, collection string, limit int, cursor string) ([]domain.RecordEntry, string, error) {
	ctx, span := tracer.Start(ctx, "Reader.ListRecords")
	defer span.End()

	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > maxListLimit:
		limit = maxListLimit
	}
	span.SetAttributes(
		attribute.String("repo", repo),
		attribute.String("collection", collection),
		attribute.Int("limit", limit),
		attribute.Bool("cursor", cursor != ""),
	)

	q := url.Values{}
	q.Set("repo", repo)
	q.Set("collection", collection)
	q.Set("limit", strconv.Itoa(limit))
	if cursor != "" {
		q.Set("cursor", cursor)
	}

	var resp struct {
		Records []domain.RecordEntry `json:"records"`
		Cursor  string               `json:"cursor,omitempty"`
	}
	if err := r.get(ctx, repo, "com.atproto.repo.listRecords", q, &resp); err != nil {
		span.RecordError(err)
		return nil, "", err
	}
	if resp.Records == nil {
		return []domain.RecordEntry{}, "", nil
	}
	return resp.Records, resp.Cursor, nil
}

type xrpcError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (r *Reader) get(ctx context.Context, repo, method string, q url.Values, result any) error {
	endpoint, err := r.resolver.ResolvePDS(ctx, repo)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}

	reqURL := endpoint + "/xrpc/" + method + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("%w: create request: %v", domain.ErrUnavailable, err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: send request: %v", domain.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", domain.ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var xe xrpcError
		_ = json.Unmarshal(body, &xe)
		if resp.StatusCode == http.StatusNotFound || xe.Error == recordNotFound {
			return domain.ErrNotFound
		}
		r.logger.Debug("pds request failed", "method", method, "repo", repo, "status", resp.StatusCode, "error", xe.Error)
		return fmt.Errorf("%w: %s status %d: %s", domain.ErrUnavailable, method, resp.StatusCode, xe.Error)
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("%w: unmarshal response: %v", domain.ErrUnavailable, err)
	}
	return nil
}
