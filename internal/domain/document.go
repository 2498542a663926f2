package domain

import (
	"context"
	"errors"
	"fmt"
)

const (
	defaultDocumentLimit = 20
	defaultDraftLimit    = 50
)

// DocumentInput is a new blog post. Content is markdown.
type DocumentInput struct {
	Title       string
	Content     string
	Description string
	Tags        []string
	Visibility  Visibility
	CoverImage  *BlobRef
}

// DocumentUpdate holds the fields to change; nil fields keep their value.
type DocumentUpdate struct {
	Title       *string
	Content     *string
	Description *string
	Tags        []string
	Visibility  *Visibility
	CoverImage  *BlobRef
}

// GetDocuments lists did's documents, all visibilities included.
func (s *Service) GetDocuments(ctx context.Context, did string, limit int) ([]DocumentRecord, error) {
	if limit <= 0 {
		limit = defaultDocumentLimit
	}
	return listEntries[Document](ctx, s.reader, did, CollectionDocument, limit)
}

// GetDocument returns one of did's documents.
func (s *Service) GetDocument(ctx context.Context, did, rkey string) (*DocumentRecord, error) {
	return getEntry[Document](ctx, s.reader, did, CollectionDocument, rkey)
}

// GetPublishedDocuments lists did's documents that are not drafts.
func (s *Service) GetPublishedDocuments(ctx context.Context, did string, limit int) ([]DocumentRecord, error) {
	docs, err := s.GetDocuments(ctx, did, limit)
	return FilterPublished(docs), err
}

// GetDraftDocuments lists did's drafts.
func (s *Service) GetDraftDocuments(ctx context.Context, did string, limit int) ([]DocumentRecord, error) {
	if limit <= 0 {
		limit = defaultDraftLimit
	}
	docs, err := s.GetDocuments(ctx, did, limit)
	return FilterDrafts(docs), err
}

// CreateDocument publishes a new document in the signed-in user's repo. A
// publication is synthesized first if the user has none.
func (s *Service) CreateDocument(ctx context.Context, agent Agent, in DocumentInput) (*DocumentRecord, error) {
	did, err := authenticated(agent)
	if err != nil {
		return nil, err
	}

	if err := s.ensurePublication(ctx, agent, did); err != nil {
		return nil, err
	}

	now := s.now()
	rkey := DocumentRKey(in.Title, now)

	visibility := in.Visibility
	if visibility == "" {
		visibility = VisibilityPublic
	}

	record := Document{
		Type:        CollectionDocument,
		Site:        publicationURI(did),
		Path:        "/" + rkey,
		Title:       in.Title,
		Description: in.Description,
		Content:     MarkdownContent(in.Content),
		TextContent: StripMarkdown(in.Content),
		Tags:        in.Tags,
		CoverImage:  in.CoverImage,
		PublishedAt: formatTime(now),
		Visibility:  visibility,
	}

	ref, err := agent.CreateRecord(ctx, CollectionDocument, rkey, record)
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}

	s.logger.Info("document created", "did", did, "rkey", rkey, "visibility", visibility)
	return &DocumentRecord{URI: ref.URI, CID: ref.CID, RKey: rkey, Value: record}, nil
}

func (s *Service) ensurePublication(ctx context.Context, agent Agent, did string) error {
	_, err := s.GetPublication(ctx, agent, did)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("get publication: %w", err)
	}

	profile, err := agent.GetProfile(ctx, did)
	if err != nil {
		return fmt.Errorf("get profile: %w", err)
	}
	if _, err := s.CreateDefaultPublication(ctx, agent, profile.Handle, profile.DisplayName); err != nil {
		return fmt.Errorf("create default publication: %w", err)
	}
	s.logger.Info("default publication created", "did", did, "handle", profile.Handle)
	return nil
}

// UpdateDocument merges upd into an existing document of the signed-in user.
func (s *Service) UpdateDocument(ctx context.Context, agent Agent, rkey string, upd DocumentUpdate) error {
	did, err := authenticated(agent)
	if err != nil {
		return err
	}

	existing, err := s.GetDocument(ctx, did, rkey)
	if err != nil {
		return fmt.Errorf("document %s: %w", rkey, err)
	}

	record := existing.Value
	if upd.Title != nil {
		record.Title = *upd.Title
	}
	if upd.Description != nil {
		record.Description = *upd.Description
	}
	if upd.Tags != nil {
		record.Tags = upd.Tags
	}
	if upd.Visibility != nil {
		record.Visibility = *upd.Visibility
	}
	if upd.CoverImage != nil {
		record.CoverImage = upd.CoverImage
	}
	if upd.Content != nil {
		record.Content = MarkdownContent(*upd.Content)
		record.TextContent = StripMarkdown(*upd.Content)
	}
	record.UpdatedAt = s.timestamp()

	if _, err := agent.PutRecord(ctx, CollectionDocument, rkey, record); err != nil {
		return fmt.Errorf("put document: %w", err)
	}
	return nil
}

// DeleteDocument removes one of the signed-in user's documents.
func (s *Service) DeleteDocument(ctx context.Context, agent Agent, rkey string) error {
	if _, err := authenticated(agent); err != nil {
		return err
	}
	if err := agent.DeleteRecord(ctx, CollectionDocument, rkey); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}
