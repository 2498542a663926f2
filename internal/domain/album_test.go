package domain

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D, 'I', 'H', 'D', 'R'}

func TestAlbumLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc := newTestService(repo, nil)
	agent := newFakeAgent("did:plc:alice", repo)

	album, err := svc.CreatePhotoAlbum(ctx, agent, AlbumInput{Name: "Summer"})
	require.NoError(t, err)
	assert.Equal(t, "key1", album.RKey)
	assert.Equal(t, VisibilityPublic, album.Value.Visibility)

	other, err := svc.CreatePhotoAlbum(ctx, agent, AlbumInput{Name: "Winter", Visibility: VisibilityPrivate})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := svc.UploadPhoto(ctx, agent, album.RKey, pngHeader, "", "beach", []string{"sun"})
		require.NoError(t, err)
	}
	kept, err := svc.UploadPhoto(ctx, agent, other.RKey, pngHeader, "image/png", "snow", nil)
	require.NoError(t, err)

	photos, err := svc.GetAlbumPhotos(ctx, "did:plc:alice", album.RKey)
	require.NoError(t, err)
	require.Len(t, photos, 3)
	assert.Equal(t, "image/png", photos[0].Value.Image.MimeType)

	name := "Summer '24"
	require.NoError(t, svc.UpdatePhotoAlbum(ctx, agent, album.RKey, AlbumUpdate{Name: &name}))
	updated, err := svc.GetPhotoAlbum(ctx, "did:plc:alice", album.RKey)
	require.NoError(t, err)
	assert.Equal(t, name, updated.Value.Name)
	assert.Equal(t, VisibilityPublic, updated.Value.Visibility)
	assert.NotEmpty(t, updated.Value.UpdatedAt)

	require.NoError(t, svc.DeletePhotoAlbum(ctx, agent, album.RKey))

	all, err := svc.GetAllPhotos(ctx, "did:plc:alice")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, kept.RKey, all[0].RKey)

	albums, err := svc.GetPhotoAlbums(ctx, "did:plc:alice")
	require.NoError(t, err)
	require.Len(t, albums, 1)
	assert.Equal(t, "Winter", albums[0].Value.Name)
}

func TestUpdateMissingAlbumWritesNothing(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, nil)
	agent := newFakeAgent("did:plc:alice", repo)

	name := "x"
	err := svc.UpdatePhotoAlbum(context.Background(), agent, "nope", AlbumUpdate{Name: &name})
	assert.ErrorIs(t, err, ErrNotFound)

	caption := "y"
	err = svc.UpdatePhoto(context.Background(), agent, "nope", PhotoUpdate{Caption: &caption})
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Empty(t, agent.writes())
}

func TestUpdatePhoto(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc := newTestService(repo, nil)
	agent := newFakeAgent("did:plc:alice", repo)

	photo, err := svc.UploadPhoto(ctx, agent, "album", pngHeader, "", "old", []string{"a"})
	require.NoError(t, err)

	caption := "new"
	require.NoError(t, svc.UpdatePhoto(ctx, agent, photo.RKey, PhotoUpdate{Caption: &caption}))

	got, err := svc.GetPhoto(ctx, "did:plc:alice", photo.RKey)
	require.NoError(t, err)
	assert.Equal(t, "new", got.Value.Caption)
	assert.Equal(t, []string{"a"}, got.Value.Tags)
	assert.Equal(t, "bafyblob", got.Value.Image.CID())
}

func TestUploadImage(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc := newTestService(repo, nil)

	t.Run("sniffs the type", func(t *testing.T) {
		agent := newFakeAgent("did:plc:alice", repo)
		ref, err := svc.UploadImage(ctx, agent, pngHeader, "")
		require.NoError(t, err)
		assert.Equal(t, "image/png", ref.MimeType)
		assert.Equal(t, BlobType, ref.Type)
	})

	t.Run("rejects non images", func(t *testing.T) {
		agent := newFakeAgent("did:plc:alice", repo)
		_, err := svc.UploadImage(ctx, agent, []byte("just some text"), "")
		assert.ErrorIs(t, err, ErrUnsupportedMedia)
		assert.Empty(t, agent.writes())
	})

	t.Run("fills in what the PDS left out", func(t *testing.T) {
		agent := newFakeAgent("did:plc:alice", repo)
		agent.blob = &BlobRef{Ref: CIDLink{Link: "bafybare"}}
		ref, err := svc.UploadImage(ctx, agent, pngHeader, "image/png")
		require.NoError(t, err)
		assert.Equal(t, "bafybare", ref.CID())
		assert.Equal(t, "image/png", ref.MimeType)
		assert.Equal(t, int64(len(pngHeader)), ref.Size)
	})

	t.Run("upload failure", func(t *testing.T) {
		agent := newFakeAgent("did:plc:alice", repo)
		agent.blobErr = ErrInvalidBlobRef
		_, err := svc.UploadImage(ctx, agent, pngHeader, "")
		assert.ErrorIs(t, err, ErrInvalidBlobRef)
	})
}

func TestCustomCSS(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc := newTestService(repo, nil)
	agent := newFakeAgent("did:plc:alice", repo)

	cid, err := svc.UploadCustomCSS(ctx, agent, "body { color: hotpink; }")
	require.NoError(t, err)
	assert.Equal(t, "bafyblob", cid)
	assert.Equal(t, []string{"upload text/css"}, agent.writes())

	css, err := svc.GetCustomCSS(ctx, agent, "did:plc:alice", cid)
	require.NoError(t, err)
	assert.Equal(t, "body { color: hotpink; }", css)

	_, err = svc.GetCustomCSS(ctx, nil, "did:plc:alice", cid)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestDeletePhotoAlbumBeyondOnePage(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc := newTestService(repo, nil)
	agent := newFakeAgent("did:plc:alice", repo)

	album, err := svc.CreatePhotoAlbum(ctx, agent, AlbumInput{Name: "Everything"})
	require.NoError(t, err)

	image := NewBlobRef("bafyblob", "image/png", 16)
	for i := 0; i < 105; i++ {
		repo.put("did:plc:alice", CollectionPhoto, fmt.Sprintf("p%03d", i), Photo{Type: CollectionPhoto, AlbumRKey: album.RKey, Image: &image})
	}
	// Newer photos in another album fill the first page.
	for i := 0; i < 100; i++ {
		repo.put("did:plc:alice", CollectionPhoto, fmt.Sprintf("q%03d", i), Photo{Type: CollectionPhoto, AlbumRKey: "other", Image: &image})
	}

	photos, err := svc.GetAlbumPhotos(ctx, "did:plc:alice", album.RKey)
	require.NoError(t, err)
	assert.Len(t, photos, 105)

	require.NoError(t, svc.DeletePhotoAlbum(ctx, agent, album.RKey))

	left, err := svc.GetAlbumPhotos(ctx, "did:plc:alice", album.RKey)
	require.NoError(t, err)
	assert.Empty(t, left)
	assert.Equal(t, 100, repo.count("did:plc:alice", CollectionPhoto))
	assert.Equal(t, 0, repo.count("did:plc:alice", CollectionPhotoAlbum))
}

func TestDeletePhotoAlbumListingFailureDeletesNothing(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc := newTestService(repo, nil)
	agent := newFakeAgent("did:plc:alice", repo)

	album, err := svc.CreatePhotoAlbum(ctx, agent, AlbumInput{Name: "Summer"})
	require.NoError(t, err)
	repo.readErr["did:plc:alice"] = fmt.Errorf("%w: timeout", ErrUnavailable)

	err = svc.DeletePhotoAlbum(ctx, agent, album.RKey)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 1, repo.count("did:plc:alice", CollectionPhotoAlbum))
}
