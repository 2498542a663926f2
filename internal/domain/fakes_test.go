package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeRecord struct {
	rkey  string
	value json.RawMessage
}

// fakeRepo is an in-memory set of repositories. It serves reads for any DID
// and writes for the agents built from it.
type fakeRepo struct {
	mu      sync.Mutex
	records map[string][]fakeRecord
	readErr map[string]error
	seq     int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: map[string][]fakeRecord{}, readErr: map[string]error{}}
}

func (f *fakeRepo) put(did, collection, rkey string, value any) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.Marshal(value)
	if err != nil {
		panic(err)
	}
	key := did + "|" + collection
	if rkey == "" {
		f.seq++
		rkey = fmt.Sprintf("tid%04d", f.seq)
	}
	for i, r := range f.records[key] {
		if r.rkey == rkey {
			f.records[key][i].value = data
			return
		}
	}
	f.records[key] = append(f.records[key], fakeRecord{rkey: rkey, value: data})
}

func (f *fakeRepo) count(did, collection string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records[did+"|"+collection])
}

func (f *fakeRepo) GetRecord(ctx context.Context, repo, collection, rkey string) (*RecordEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.readErr[repo]; err != nil {
		return nil, err
	}
	for _, r := range f.records[repo+"|"+collection] {
		if r.rkey == rkey {
			return &RecordEntry{URI: fmt.Sprintf("at://%s/%s/%s", repo, collection, rkey), CID: "cid-" + rkey, Value: r.value}, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeRepo) ListRecords(ctx context.Context, repo, collection string, limit int) ([]RecordEntry, error) {
	records, _, err := f.ListRecordsPage(ctx, repo, collection, limit, "")
	return records, err
}

// ListRecordsPage serves newest first, at most 100 per page like a real PDS.
// The cursor is the offset of the next page.
func (f *fakeRepo) ListRecordsPage(ctx context.Context, repo, collection string, limit int, cursor string) ([]RecordEntry, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.readErr[repo]; err != nil {
		return nil, "", err
	}
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	offset := 0
	if cursor != "" {
		offset, _ = strconv.Atoi(cursor)
	}

	stored := f.records[repo+"|"+collection]
	out := []RecordEntry{}
	i := len(stored) - 1 - offset
	for ; i >= 0 && len(out) < limit; i-- {
		out = append(out, RecordEntry{
			URI:   fmt.Sprintf("at://%s/%s/%s", repo, collection, stored[i].rkey),
			CID:   "cid-" + stored[i].rkey,
			Value: stored[i].value,
		})
	}
	next := ""
	if i >= 0 {
		next = strconv.Itoa(offset + len(out))
	}
	return out, next, nil
}

// fakeAgent writes into a fakeRepo as did. Errors set on it are returned by
// the matching call before anything is written.
type fakeAgent struct {
	did  string
	repo *fakeRepo

	putErr    error
	createErr error
	blobErr   error
	blob      *BlobRef
	profiles  map[string]ActorProfile

	mu       sync.Mutex
	calls    []string
	uploaded string
}

func newFakeAgent(did string, repo *fakeRepo) *fakeAgent {
	return &fakeAgent{did: did, repo: repo, profiles: map[string]ActorProfile{}}
}

func (a *fakeAgent) record(call string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, call)
}

func (a *fakeAgent) writes() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string{}, a.calls...)
}

func (a *fakeAgent) DID() string { return a.did }

func (a *fakeAgent) GetRecord(ctx context.Context, repo, collection, rkey string) (*RecordEntry, error) {
	return a.repo.GetRecord(ctx, repo, collection, rkey)
}

func (a *fakeAgent) PutRecord(ctx context.Context, collection, rkey string, record any) (*RecordRef, error) {
	a.record("put " + collection)
	if a.putErr != nil {
		return nil, a.putErr
	}
	a.repo.put(a.did, collection, rkey, record)
	return &RecordRef{URI: fmt.Sprintf("at://%s/%s/%s", a.did, collection, rkey), CID: "cid"}, nil
}

func (a *fakeAgent) CreateRecord(ctx context.Context, collection, rkey string, record any) (*RecordRef, error) {
	a.record("create " + collection)
	if a.createErr != nil {
		return nil, a.createErr
	}
	a.repo.put(a.did, collection, rkey, record)
	return &RecordRef{URI: fmt.Sprintf("at://%s/%s/%s", a.did, collection, rkey), CID: "cid"}, nil
}

func (a *fakeAgent) DeleteRecord(ctx context.Context, collection, rkey string) error {
	a.record("delete " + collection + "/" + rkey)

	a.repo.mu.Lock()
	defer a.repo.mu.Unlock()
	key := a.did + "|" + collection
	kept := a.repo.records[key][:0]
	for _, r := range a.repo.records[key] {
		if r.rkey != rkey {
			kept = append(kept, r)
		}
	}
	a.repo.records[key] = kept
	return nil
}

func (a *fakeAgent) UploadBlob(ctx context.Context, data []byte, mimeType string) (*BlobRef, error) {
	a.record("upload " + mimeType)
	if a.blobErr != nil {
		return nil, a.blobErr
	}
	a.mu.Lock()
	a.uploaded = string(data)
	a.mu.Unlock()
	if a.blob != nil {
		return a.blob, nil
	}
	ref := NewBlobRef("bafyblob", mimeType, int64(len(data)))
	return &ref, nil
}

func (a *fakeAgent) GetBlob(ctx context.Context, did, cid string) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if cid != "bafyblob" {
		return nil, ErrNotFound
	}
	return []byte(a.uploaded), nil
}

func (a *fakeAgent) GetProfile(ctx context.Context, actor string) (*ActorProfile, error) {
	p, ok := a.profiles[actor]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (a *fakeAgent) ResolveHandle(ctx context.Context, handle string) (string, error) {
	for did, p := range a.profiles {
		if p.Handle == handle {
			return did, nil
		}
	}
	return "", ErrNotFound
}

func (a *fakeAgent) SearchActors(ctx context.Context, query string, limit int) ([]ActorProfile, error) {
	out := []ActorProfile{}
	for _, p := range a.profiles {
		out = append(out, p)
	}
	return out, nil
}

type fakeLinks struct {
	links []RecordLink
	err   error
}

func (f fakeLinks) Links(ctx context.Context, target, collection, path string, limit int) ([]RecordLink, error) {
	return f.links, f.err
}

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService(repo *fakeRepo, links BacklinkIndex) *Service {
	n := 0
	return NewService(repo, links, discard,
		WithClock(func() time.Time { return fixedNow }),
		WithKeyGenerator(func() string {
			n++
			return fmt.Sprintf("key%d", n)
		}),
	)
}
