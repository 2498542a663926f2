package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lithammer/shortuuid/v3"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("mysky/domain")

// listPageSize is the largest page listRecords serves.
const listPageSize = 100

// Service is the record façade. It reads public records through a
// RecordReader, discovers cross-repo comments through a BacklinkIndex, and
// writes through the Agent passed to each mutating call.
type Service struct {
	reader  RecordReader
	links   BacklinkIndex
	logger  *slog.Logger
	siteURL string
	now     func() time.Time
	newKey  func() string
}

// Option configures a Service.
type Option func(*Service)

// WithSiteURL sets the base URL used when synthesizing publications.
func WithSiteURL(url string) Option {
	return func(s *Service) { s.siteURL = url }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithKeyGenerator replaces the random record key generator used for albums and photos.
func WithKeyGenerator(gen func() string) Option {
	return func(s *Service) { s.newKey = gen }
}

// NewService creates a Service. links may be nil, in which case comment
// aggregation only scans repositories directly.
func NewService(reader RecordReader, links BacklinkIndex, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		reader:  reader,
		links:   links,
		logger:  logger,
		siteURL: DefaultSiteURL,
		now:     time.Now,
		newKey:  shortuuid.New,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) timestamp() string {
	return formatTime(s.now())
}

// authenticated returns the agent's DID or ErrNotAuthenticated.
func authenticated(agent Agent) (string, error) {
	if agent == nil {
		return "", ErrNotAuthenticated
	}
	did := agent.DID()
	if did == "" {
		return "", ErrNotAuthenticated
	}
	return did, nil
}

// saveRecord overwrites collection/rkey and falls back to creating it when the
// repository rejects the overwrite.
func (s *Service) saveRecord(ctx context.Context, agent Agent, collection, rkey string, record any) error {
	_, err := agent.PutRecord(ctx, collection, rkey, record)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrRejected) {
		return fmt.Errorf("put %s: %w", collection, err)
	}

	s.logger.Debug("put rejected, creating record", "collection", collection, "rkey", rkey, "error", err)
	if _, err := agent.CreateRecord(ctx, collection, rkey, record); err != nil {
		return fmt.Errorf("create %s: %w", collection, err)
	}
	return nil
}

// getEntry reads one public record and decodes it.
func getEntry[T any](ctx context.Context, reader RecordReader, did, collection, rkey string) (*Entry[T], error) {
	raw, err := reader.GetRecord(ctx, did, collection, rkey)
	if err != nil {
		return nil, err
	}
	e, err := decodeEntry[T](*raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if e.RKey == "" {
		e.RKey = rkey
	}
	return &e, nil
}

// listEntries lists and decodes a collection, dropping undecodable records.
func listEntries[T any](ctx context.Context, reader RecordReader, did, collection string, limit int) ([]Entry[T], error) {
	raws, err := reader.ListRecords(ctx, did, collection, limit)
	if err != nil {
		return []Entry[T]{}, err
	}
	return decodeEntries[T](raws), nil
}

// listAllEntries follows the listRecords cursor to the end of a collection.
// Records decoded before a failing page are returned with the error.
func listAllEntries[T any](ctx context.Context, reader RecordReader, did, collection string) ([]Entry[T], error) {
	out := []Entry[T]{}
	cursor := ""
	for {
		raws, next, err := reader.ListRecordsPage(ctx, did, collection, listPageSize, cursor)
		if err != nil {
			return out, err
		}
		out = append(out, decodeEntries[T](raws)...)
		if next == "" || next == cursor || len(raws) == 0 {
			return out, nil
		}
		cursor = next
	}
}
