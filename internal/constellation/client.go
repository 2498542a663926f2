package constellation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/iammatthias/mysky.wtf/internal/domain"
)

const DefaultURL = "https://constellation.microcosm.blue"

var tracer = otel.Tracer("mysky/constellation")

// Client queries a Constellation backlink index. It implements
// domain.BacklinkIndex.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client. An empty baseURL means the public instance.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

type linksResponse struct {
	Total          int                 `json:"total"`
	LinkingRecords []domain.RecordLink `json:"linking_records"`
	Cursor         *string             `json:"cursor"`
}

// Links returns records in collection whose field at path references target.
func (c *Client) Links(ctx context.Context, target, collection, path string, limit int) ([]domain.RecordLink, error) {
	ctx, span := tracer.Start(ctx, "Client.Links")
	defer span.End()
	span.SetAttributes(
		attribute.String("target", target),
		attribute.String("collection", collection),
	)

	q := url.Values{}
	q.Set("target", target)
	q.Set("collection", collection)
	q.Set("path", path)
	q.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/links?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: send request: %v", domain.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("%w: constellation status %d", domain.ErrUnavailable, resp.StatusCode)
		span.RecordError(err)
		return nil, err
	}

	var result linksResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: unmarshal links: %v", domain.ErrUnavailable, err)
	}

	c.logger.Debug("backlinks fetched", "target", target, "collection", collection, "total", result.Total, "returned", len(result.LinkingRecords))
	span.SetAttributes(attribute.Int("links", len(result.LinkingRecords)))
	if result.LinkingRecords == nil {
		return []domain.RecordLink{}, nil
	}
	return result.LinkingRecords, nil
}
