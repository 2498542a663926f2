package firehose

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iammatthias/mysky.wtf/internal/domain"
)

type fakeIndex struct {
	mu      sync.Mutex
	links   map[domain.RecordLink]string
	cursors map[string]int64
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{links: map[domain.RecordLink]string{}, cursors: map[string]int64{}}
}

func (f *fakeIndex) IndexComment(_ context.Context, link domain.RecordLink, target string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.links[link] = target
	return nil
}

func (f *fakeIndex) RemoveComment(_ context.Context, link domain.RecordLink) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.links, link)
	return nil
}

func (f *fakeIndex) GetCursor(_ context.Context, service string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cursors[service], nil
}

func (f *fakeIndex) UpdateCursor(_ context.Context, service string, cursor int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cursors[service] = cursor
	return nil
}

func (f *fakeIndex) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.links)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const createEvent = `{"did":"did:plc:author","time_us":1700000000000000,"kind":"commit","commit":{"rev":"r1","operation":"create","collection":"space.myspace.comment","rkey":"3k","cid":"bafy","record":{"$type":"space.myspace.comment","targetDid":"did:plc:target","content":"hi","createdAt":"2025-01-01T00:00:00.000Z"}}}`

func TestParseEvent(t *testing.T) {
	event, err := parseEvent([]byte(createEvent))
	require.NoError(t, err)
	assert.Equal(t, "did:plc:author", event.DID)
	require.NotNil(t, event.Commit)
	require.NotNil(t, event.Commit.Record)
	assert.Equal(t, "did:plc:target", event.Commit.Record.TargetDID)
}

func TestHandleCommit(t *testing.T) {
	ctx := context.Background()
	index := newFakeIndex()
	s := NewSubscriber("wss://unused", index, discardLogger())

	event, err := parseEvent([]byte(createEvent))
	require.NoError(t, err)

	indexed, err := s.handleCommit(ctx, event)
	require.NoError(t, err)
	assert.True(t, indexed)
	assert.Equal(t, "did:plc:target", index.links[domain.RecordLink{DID: "did:plc:author", Collection: domain.CollectionComment, RKey: "3k"}])

	del, err := parseEvent([]byte(`{"did":"did:plc:author","time_us":2,"kind":"commit","commit":{"operation":"delete","collection":"space.myspace.comment","rkey":"3k"}}`))
	require.NoError(t, err)
	indexed, err = s.handleCommit(ctx, del)
	require.NoError(t, err)
	assert.False(t, indexed)
	assert.Zero(t, index.count())
}

func TestHandleCommit_IgnoresOtherCollections(t *testing.T) {
	index := newFakeIndex()
	s := NewSubscriber("wss://unused", index, discardLogger())

	event, err := parseEvent([]byte(`{"did":"did:plc:a","time_us":1,"kind":"commit","commit":{"operation":"create","collection":"app.bsky.feed.post","rkey":"1","record":{"text":"x"}}}`))
	require.NoError(t, err)

	indexed, err := s.handleCommit(context.Background(), event)
	require.NoError(t, err)
	assert.False(t, indexed)
	assert.Zero(t, index.count())
}

func TestBuildURL(t *testing.T) {
	s := NewSubscriber("wss://jetstream.example/subscribe", newFakeIndex(), discardLogger())

	u, err := s.buildURL(42)
	require.NoError(t, err)
	assert.Contains(t, u, "wantedCollections=space.myspace.comment")
	assert.Contains(t, u, "cursor=42")
}

func TestStart_IndexesFromWebsocket(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(createEvent))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	index := newFakeIndex()
	s := NewSubscriber("ws"+strings.TrimPrefix(srv.URL, "http"), index, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	require.Eventually(t, func() bool { return index.count() == 1 }, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("subscriber did not stop")
	}
}
