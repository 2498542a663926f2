package domain

import (
	"context"
	"fmt"
)

const albumScanLimit = 100

// AlbumInput is a new photo album.
type AlbumInput struct {
	Name        string
	Description string
	Visibility  Visibility
}

// AlbumUpdate holds the fields to change; nil fields keep their value.
type AlbumUpdate struct {
	Name        *string
	Description *string
	Visibility  *Visibility
	CoverPhoto  *BlobRef
}

// PhotoUpdate holds the fields to change; nil fields keep their value.
type PhotoUpdate struct {
	Caption *string
	Tags    []string
}

// GetPhotoAlbums lists did's albums.
func (s *Service) GetPhotoAlbums(ctx context.Context, did string) ([]AlbumRecord, error) {
	return listEntries[PhotoAlbum](ctx, s.reader, did, CollectionPhotoAlbum, albumScanLimit)
}

// GetPhotoAlbum returns one of did's albums.
func (s *Service) GetPhotoAlbum(ctx context.Context, did, rkey string) (*AlbumRecord, error) {
	return getEntry[PhotoAlbum](ctx, s.reader, did, CollectionPhotoAlbum, rkey)
}

// CreatePhotoAlbum creates an album under a fresh random key.
func (s *Service) CreatePhotoAlbum(ctx context.Context, agent Agent, in AlbumInput) (*AlbumRecord, error) {
	if _, err := authenticated(agent); err != nil {
		return nil, err
	}

	visibility := in.Visibility
	if visibility == "" {
		visibility = VisibilityPublic
	}

	rkey := s.newKey()
	record := PhotoAlbum{
		Type:        CollectionPhotoAlbum,
		Name:        in.Name,
		Description: in.Description,
		Visibility:  visibility,
		CreatedAt:   s.timestamp(),
	}

	ref, err := agent.CreateRecord(ctx, CollectionPhotoAlbum, rkey, record)
	if err != nil {
		return nil, fmt.Errorf("create album: %w", err)
	}
	return &AlbumRecord{URI: ref.URI, CID: ref.CID, RKey: rkey, Value: record}, nil
}

// UpdatePhotoAlbum merges upd into an existing album.
func (s *Service) UpdatePhotoAlbum(ctx context.Context, agent Agent, rkey string, upd AlbumUpdate) error {
	did, err := authenticated(agent)
	if err != nil {
		return err
	}

	existing, err := s.GetPhotoAlbum(ctx, did, rkey)
	if err != nil {
		return fmt.Errorf("album %s: %w", rkey, err)
	}

	record := existing.Value
	if upd.Name != nil {
		record.Name = *upd.Name
	}
	if upd.Description != nil {
		record.Description = *upd.Description
	}
	if upd.Visibility != nil {
		record.Visibility = *upd.Visibility
	}
	if upd.CoverPhoto != nil {
		record.CoverPhoto = upd.CoverPhoto
	}
	record.UpdatedAt = s.timestamp()

	if _, err := agent.PutRecord(ctx, CollectionPhotoAlbum, rkey, record); err != nil {
		return fmt.Errorf("put album: %w", err)
	}
	return nil
}

// DeletePhotoAlbum deletes every photo in the album, then the album. A failure
// part way leaves the remaining photos and the album in place.
func (s *Service) DeletePhotoAlbum(ctx context.Context, agent Agent, rkey string) error {
	did, err := authenticated(agent)
	if err != nil {
		return err
	}

	photos, err := s.GetAlbumPhotos(ctx, did, rkey)
	if err != nil {
		return fmt.Errorf("list album photos: %w", err)
	}
	for _, p := range photos {
		if err := s.DeletePhoto(ctx, agent, p.RKey); err != nil {
			return err
		}
	}

	if err := agent.DeleteRecord(ctx, CollectionPhotoAlbum, rkey); err != nil {
		return fmt.Errorf("delete album: %w", err)
	}
	s.logger.Info("album deleted", "did", did, "rkey", rkey, "photos", len(photos))
	return nil
}

// GetAlbumPhotos lists did's photos that belong to albumRKey.
func (s *Service) GetAlbumPhotos(ctx context.Context, did, albumRKey string) ([]PhotoRecord, error) {
	photos, err := s.GetAllPhotos(ctx, did)
	out := make([]PhotoRecord, 0, len(photos))
	for _, p := range photos {
		if p.Value.AlbumRKey == albumRKey {
			out = append(out, p)
		}
	}
	return out, err
}

// GetAllPhotos lists every one of did's photos across albums, following the
// listing cursor to the end.
func (s *Service) GetAllPhotos(ctx context.Context, did string) ([]PhotoRecord, error) {
	return listAllEntries[Photo](ctx, s.reader, did, CollectionPhoto)
}

// GetPhoto returns one of did's photos.
func (s *Service) GetPhoto(ctx context.Context, did, rkey string) (*PhotoRecord, error) {
	return getEntry[Photo](ctx, s.reader, did, CollectionPhoto, rkey)
}

// UploadPhoto uploads an image and records it in an album.
func (s *Service) UploadPhoto(ctx context.Context, agent Agent, albumRKey string, data []byte, mimeType, caption string, tags []string) (*PhotoRecord, error) {
	if _, err := authenticated(agent); err != nil {
		return nil, err
	}

	image, err := s.UploadImage(ctx, agent, data, mimeType)
	if err != nil {
		return nil, err
	}

	rkey := s.newKey()
	record := Photo{
		Type:       CollectionPhoto,
		AlbumRKey:  albumRKey,
		Image:      image,
		Caption:    caption,
		Tags:       tags,
		UploadedAt: s.timestamp(),
	}

	ref, err := agent.CreateRecord(ctx, CollectionPhoto, rkey, record)
	if err != nil {
		return nil, fmt.Errorf("create photo: %w", err)
	}
	return &PhotoRecord{URI: ref.URI, CID: ref.CID, RKey: rkey, Value: record}, nil
}

// UpdatePhoto merges upd into an existing photo.
func (s *Service) UpdatePhoto(ctx context.Context, agent Agent, rkey string, upd PhotoUpdate) error {
	did, err := authenticated(agent)
	if err != nil {
		return err
	}

	existing, err := s.GetPhoto(ctx, did, rkey)
	if err != nil {
		return fmt.Errorf("photo %s: %w", rkey, err)
	}

	record := existing.Value
	if upd.Caption != nil {
		record.Caption = *upd.Caption
	}
	if upd.Tags != nil {
		record.Tags = upd.Tags
	}

	if _, err := agent.PutRecord(ctx, CollectionPhoto, rkey, record); err != nil {
		return fmt.Errorf("put photo: %w", err)
	}
	return nil
}

// DeletePhoto removes one of the signed-in user's photos.
func (s *Service) DeletePhoto(ctx context.Context, agent Agent, rkey string) error {
	if _, err := authenticated(agent); err != nil {
		return err
	}
	if err := agent.DeleteRecord(ctx, CollectionPhoto, rkey); err != nil {
		return fmt.Errorf("delete photo %s: %w", rkey, err)
	}
	return nil
}
