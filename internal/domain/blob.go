package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	cdnURLTemplate  = "https://cdn.bsky.app/img/feed_thumbnail/plain/%s/%s@jpeg"
	fallbackImgPath = "/default-avatar.svg"
)

// CIDLink is the {"$link": cid} wrapper used by blob references.
type CIDLink struct {
	Link string `json:"$link"`
}

// BlobRef is the canonical blob reference. Every shape the PDS or older
// records produce is folded into this one when decoded.
type BlobRef struct {
	Type     string  `json:"$type"`
	Ref      CIDLink `json:"ref"`
	MimeType string  `json:"mimeType"`
	Size     int64   `json:"size"`
}

// NewBlobRef builds a typed blob reference.
func NewBlobRef(cid, mimeType string, size int64) BlobRef {
	return BlobRef{Type: BlobType, Ref: CIDLink{Link: cid}, MimeType: mimeType, Size: size}
}

// CID returns the content address, empty if the reference carried none.
func (b BlobRef) CID() string {
	return b.Ref.Link
}

// UnmarshalJSON decodes any known blob shape. A reference without a CID still
// decodes so that display code can fall back instead of dropping the record.
func (b *BlobRef) UnmarshalJSON(data []byte) error {
	ref, err := decodeBlobShape(data)
	if err != nil {
		return err
	}
	*b = ref
	return nil
}

// ParseBlobRef normalizes an upstream blob reference and requires a CID.
// Accepted shapes: {"ref":{"$link":cid}}, {"ref":cid}, {"cid":cid} and the
// legacy untyped {"cid":cid,"mimeType":...}.
func ParseBlobRef(raw json.RawMessage) (BlobRef, error) {
	ref, err := decodeBlobShape(raw)
	if err != nil {
		return BlobRef{}, fmt.Errorf("%w: %v", ErrInvalidBlobRef, err)
	}
	if ref.CID() == "" {
		return BlobRef{}, ErrInvalidBlobRef
	}
	return ref, nil
}

func decodeBlobShape(data []byte) (BlobRef, error) {
	var shape struct {
		Type     string          `json:"$type"`
		Ref      json.RawMessage `json:"ref"`
		CID      string          `json:"cid"`
		MimeType string          `json:"mimeType"`
		Size     int64           `json:"size"`
	}
	if err := json.Unmarshal(data, &shape); err != nil {
		return BlobRef{}, fmt.Errorf("decode blob: %w", err)
	}

	cid := linkFromRef(shape.Ref)
	if cid == "" {
		cid = shape.CID
	}

	return BlobRef{
		Type:     BlobType,
		Ref:      CIDLink{Link: cid},
		MimeType: shape.MimeType,
		Size:     shape.Size,
	}, nil
}

func linkFromRef(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
		return ""
	}
	var link CIDLink
	if err := json.Unmarshal(raw, &link); err == nil {
		return link.Link
	}
	return ""
}

// PhotoURL returns the CDN URL serving blob for did, or a static placeholder
// when the reference has no content address.
func PhotoURL(did string, blob *BlobRef) string {
	if blob == nil || blob.CID() == "" {
		return fallbackImgPath
	}
	return fmt.Sprintf(cdnURLTemplate, did, blob.CID())
}
