package domain

import (
	"context"
	"fmt"

	"github.com/h2non/filetype"
)

const cssMimeType = "text/css"

// UploadCustomCSS uploads a stylesheet and returns its CID, which profiles
// store in customCssBlobRef.
func (s *Service) UploadCustomCSS(ctx context.Context, agent Agent, css string) (string, error) {
	if _, err := authenticated(agent); err != nil {
		return "", err
	}
	ref, err := agent.UploadBlob(ctx, []byte(css), cssMimeType)
	if err != nil {
		return "", fmt.Errorf("upload css: %w", err)
	}
	return ref.CID(), nil
}

// GetCustomCSS fetches a stylesheet blob from did's repo.
func (s *Service) GetCustomCSS(ctx context.Context, agent Agent, did, cid string) (string, error) {
	if agent == nil {
		return "", ErrNotAuthenticated
	}
	data, err := agent.GetBlob(ctx, did, cid)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// UploadImage uploads image bytes. An empty mimeType is sniffed from the
// content, which must then be an image.
func (s *Service) UploadImage(ctx context.Context, agent Agent, data []byte, mimeType string) (*BlobRef, error) {
	if _, err := authenticated(agent); err != nil {
		return nil, err
	}

	if mimeType == "" {
		if !filetype.IsImage(data) {
			return nil, ErrUnsupportedMedia
		}
		kind, err := filetype.Match(data)
		if err != nil {
			return nil, fmt.Errorf("detect image type: %w", err)
		}
		mimeType = kind.MIME.Value
	}

	ref, err := agent.UploadBlob(ctx, data, mimeType)
	if err != nil {
		return nil, fmt.Errorf("upload image: %w", err)
	}

	out := NewBlobRef(ref.CID(), ref.MimeType, ref.Size)
	if out.MimeType == "" {
		out.MimeType = mimeType
	}
	if out.Size == 0 {
		out.Size = int64(len(data))
	}
	s.logger.Debug("image uploaded", "cid", out.CID(), "mimeType", out.MimeType, "size", out.Size)
	return &out, nil
}
