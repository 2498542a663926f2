package identity

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iammatthias/mysky.wtf/internal/domain"
)

const testDID = "did:plc:ewvi7nxzyoun6zhxrhs64oiz"

func newTestResolver(t *testing.T, handler http.HandlerFunc) (*Resolver, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	r := NewResolver(srv.URL, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return r, &calls
}

func TestResolvePDS_CachesSuccess(t *testing.T) {
	r, calls := newTestResolver(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/"+testDID, req.URL.Path)
		io.WriteString(w, `{"id":"`+testDID+`","service":[{"id":"#atproto_pds","type":"AtprotoPersonalDataServer","serviceEndpoint":"https://pds.example.com/"}]}`)
	})

	for i := 0; i < 3; i++ {
		endpoint, err := r.ResolvePDS(context.Background(), testDID)
		require.NoError(t, err)
		assert.Equal(t, "https://pds.example.com", endpoint)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestResolvePDS_ServiceIDSuffix(t *testing.T) {
	r, _ := newTestResolver(t, func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `{"service":[{"id":"did:plc:x#atproto_labeler","type":"AtprotoLabeler","serviceEndpoint":"https://labeler"},{"id":"did:plc:x#atproto_pds","type":"Other","serviceEndpoint":"https://pds"}]}`)
	})

	endpoint, err := r.ResolvePDS(context.Background(), testDID)
	require.NoError(t, err)
	assert.Equal(t, "https://pds", endpoint)
}

func TestResolvePDS_NoServiceIsNotCached(t *testing.T) {
	r, calls := newTestResolver(t, func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `{"service":[]}`)
	})

	_, err := r.ResolvePDS(context.Background(), testDID)
	require.ErrorIs(t, err, ErrNoPDS)

	_, err = r.ResolvePDS(context.Background(), testDID)
	require.ErrorIs(t, err, ErrNoPDS)
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestResolvePDS_DirectoryFailureIsUnavailable(t *testing.T) {
	r, _ := newTestResolver(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := r.ResolvePDS(context.Background(), testDID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnavailable))
	assert.False(t, errors.Is(err, ErrNoPDS))
}

func TestResolvePDS_DIDWeb(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/.well-known/did.json", req.URL.Path)
		io.WriteString(w, `{"service":[{"id":"#atproto_pds","type":"AtprotoPersonalDataServer","serviceEndpoint":"https://web-pds"}]}`)
	}))
	defer srv.Close()

	r := NewResolver("", slog.New(slog.NewTextHandler(io.Discard, nil)))
	r.webScheme = "http"
	host := strings.TrimPrefix(srv.URL, "http://")
	// did:web encodes the port separator as %3A.
	did := "did:web:" + strings.Replace(host, ":", "%3A", 1)

	endpoint, err := r.ResolvePDS(context.Background(), did)
	require.NoError(t, err)
	assert.Equal(t, "https://web-pds", endpoint)
}

func TestResolvePDS_MalformedDID(t *testing.T) {
	r, calls := newTestResolver(t, func(w http.ResponseWriter, _ *http.Request) {})

	_, err := r.ResolvePDS(context.Background(), "not-a-did")
	require.ErrorIs(t, err, ErrNoPDS)
	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}
