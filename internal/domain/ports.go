package domain

import "context"

// RecordReader reads public records from whichever PDS hosts a repository.
type RecordReader interface {
	// GetRecord returns ErrNotFound when the repository confirms the record is
	// absent and an error wrapping ErrUnavailable when it could not be asked.
	GetRecord(ctx context.Context, repo, collection, rkey string) (*RecordEntry, error)

	// ListRecords returns at most limit records of a collection, newest first.
	ListRecords(ctx context.Context, repo, collection string, limit int) ([]RecordEntry, error)

	// ListRecordsPage lists one page starting at cursor (empty for the first)
	// and returns the cursor of the next page, empty when there is none.
	ListRecordsPage(ctx context.Context, repo, collection string, limit int, cursor string) ([]RecordEntry, string, error)
}

// RecordLink identifies a record that references some target.
type RecordLink struct {
	DID        string `json:"did"`
	Collection string `json:"collection"`
	RKey       string `json:"rkey"`
}

// BacklinkIndex finds records in any repository whose field at path references target.
type BacklinkIndex interface {
	Links(ctx context.Context, target, collection, path string, limit int) ([]RecordLink, error)
}

// Agent is an authenticated handle on the signed-in user's repository. Writes
// always target the agent's own repo.
type Agent interface {
	// DID returns the signed-in identity, empty when the session is gone.
	DID() string

	GetRecord(ctx context.Context, repo, collection, rkey string) (*RecordEntry, error)
	PutRecord(ctx context.Context, collection, rkey string, record any) (*RecordRef, error)
	// CreateRecord lets the PDS pick the key when rkey is empty.
	CreateRecord(ctx context.Context, collection, rkey string, record any) (*RecordRef, error)
	DeleteRecord(ctx context.Context, collection, rkey string) error

	UploadBlob(ctx context.Context, data []byte, mimeType string) (*BlobRef, error)
	GetBlob(ctx context.Context, did, cid string) ([]byte, error)

	GetProfile(ctx context.Context, actor string) (*ActorProfile, error)
	ResolveHandle(ctx context.Context, handle string) (string, error)
	SearchActors(ctx context.Context, query string, limit int) ([]ActorProfile, error)
}
