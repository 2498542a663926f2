package pds

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iammatthias/mysky.wtf/internal/domain"
)

type staticResolver struct {
	endpoint string
	err      error
}

func (s staticResolver) ResolvePDS(context.Context, string) (string, error) {
	return s.endpoint, s.err
}

func newTestReader(t *testing.T, handler http.HandlerFunc) *Reader {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewReader(staticResolver{endpoint: srv.URL}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestGetRecord(t *testing.T) {
	r := newTestReader(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/xrpc/com.atproto.repo.getRecord", req.URL.Path)
		assert.Equal(t, "did:plc:alice", req.URL.Query().Get("repo"))
		assert.Equal(t, "space.myspace.profile", req.URL.Query().Get("collection"))
		assert.Equal(t, "self", req.URL.Query().Get("rkey"))
		io.WriteString(w, `{"uri":"at://did:plc:alice/space.myspace.profile/self","cid":"bafy","value":{"headline":"hi"}}`)
	})

	entry, err := r.GetRecord(context.Background(), "did:plc:alice", "space.myspace.profile", "self")
	require.NoError(t, err)
	assert.Equal(t, "bafy", entry.CID)
	assert.JSONEq(t, `{"headline":"hi"}`, string(entry.Value))
}

func TestGetRecord_NotFound(t *testing.T) {
	r := newTestReader(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":"RecordNotFound","message":"Could not locate record"}`)
	})

	_, err := r.GetRecord(context.Background(), "did:plc:alice", "space.myspace.topFriends", "self")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetRecord_ServerErrorIsUnavailable(t *testing.T) {
	r := newTestReader(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := r.GetRecord(context.Background(), "did:plc:alice", "space.myspace.topFriends", "self")
	assert.ErrorIs(t, err, domain.ErrUnavailable)
	assert.False(t, errors.Is(err, domain.ErrNotFound))
}

func TestGetRecord_ResolverFailureIsUnavailable(t *testing.T) {
	r := NewReader(staticResolver{err: errors.New("boom")}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := r.GetRecord(context.Background(), "did:plc:alice", "space.myspace.topFriends", "self")
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}

func TestListRecords_ClampsLimit(t *testing.T) {
	var got []string
	r := newTestReader(t, func(w http.ResponseWriter, req *http.Request) {
		got = append(got, req.URL.Query().Get("limit"))
		io.WriteString(w, `{"records":[{"uri":"at://did:plc:alice/space.myspace.bulletin/1","cid":"c1","value":{}}]}`)
	})

	for _, limit := range []int{0, 20, 500} {
		records, err := r.ListRecords(context.Background(), "did:plc:alice", "space.myspace.bulletin", limit)
		require.NoError(t, err)
		assert.Len(t, records, 1)
	}
	assert.Equal(t, []string{"50", "20", "100"}, got)
}

func TestListRecords_EmptyIsNotNil(t *testing.T) {
	r := newTestReader(t, func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `{}`)
	})

	records, err := r.ListRecords(context.Background(), "did:plc:alice", "space.myspace.bulletin", 10)
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestListRecordsPage_FollowsCursor(t *testing.T) {
	var cursors []string
	r := newTestReader(t, func(w http.ResponseWriter, req *http.Request) {
		cursor := req.URL.Query().Get("cursor")
		cursors = append(cursors, cursor)
		if cursor == "" {
			io.WriteString(w, `{"records":[{"uri":"at://did:plc:alice/space.myspace.photo/b","cid":"c2","value":{}}],"cursor":"b"}`)
			return
		}
		io.WriteString(w, `{"records":[{"uri":"at://did:plc:alice/space.myspace.photo/a","cid":"c1","value":{}}]}`)
	})

	records, next, err := r.ListRecordsPage(context.Background(), "did:plc:alice", "space.myspace.photo", 1, "")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "b", next)

	records, next, err = r.ListRecordsPage(context.Background(), "did:plc:alice", "space.myspace.photo", 1, next)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Empty(t, next)
	assert.Equal(t, []string{"", "b"}, cursors)
}
