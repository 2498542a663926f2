package httpserver

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
)

// fakePDS is an in-memory repository host speaking the handful of XRPC
// methods the server uses.
type fakePDS struct {
	mu      sync.Mutex
	records map[string][]storedRecord
	seq     int
	server  *httptest.Server
}

type storedRecord struct {
	rkey  string
	value json.RawMessage
}

func newFakePDS(t *testing.T) *fakePDS {
	t.Helper()
	f := &fakePDS{records: map[string][]storedRecord{}}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakePDS) URL() string { return f.server.URL }

func (f *fakePDS) count(repo, collection string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records[repo+"|"+collection])
}

func (f *fakePDS) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	q := r.URL.Query()
	switch r.URL.Path {
	case "/xrpc/com.atproto.repo.getRecord":
		repo, coll, rkey := q.Get("repo"), q.Get("collection"), q.Get("rkey")
		for _, rec := range f.records[repo+"|"+coll] {
			if rec.rkey == rkey {
				writeJSON(w, http.StatusOK, map[string]any{"uri": uri(repo, coll, rkey), "cid": "cid-" + rkey, "value": rec.value})
				return
			}
		}
		writeError(w, http.StatusBadRequest, "RecordNotFound", "Could not locate record")

	case "/xrpc/com.atproto.repo.listRecords":
		repo, coll := q.Get("repo"), q.Get("collection")
		limit, _ := strconv.Atoi(q.Get("limit"))
		offset, _ := strconv.Atoi(q.Get("cursor"))
		stored := f.records[repo+"|"+coll]
		out := []map[string]any{}
		i := len(stored) - 1 - offset
		for ; i >= 0 && len(out) < limit; i-- {
			out = append(out, map[string]any{"uri": uri(repo, coll, stored[i].rkey), "cid": "cid-" + stored[i].rkey, "value": stored[i].value})
		}
		resp := map[string]any{"records": out}
		if i >= 0 {
			resp["cursor"] = strconv.Itoa(offset + len(out))
		}
		writeJSON(w, http.StatusOK, resp)

	case "/xrpc/com.atproto.repo.putRecord", "/xrpc/com.atproto.repo.createRecord":
		var body struct {
			Repo       string          `json:"repo"`
			Collection string          `json:"collection"`
			RKey       string          `json:"rkey"`
			Record     json.RawMessage `json:"record"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.RKey == "" {
			f.seq++
			body.RKey = fmt.Sprintf("tid%04d", f.seq)
		}
		key := body.Repo + "|" + body.Collection
		replaced := false
		for i, rec := range f.records[key] {
			if rec.rkey == body.RKey {
				f.records[key][i].value = body.Record
				replaced = true
			}
		}
		if !replaced {
			f.records[key] = append(f.records[key], storedRecord{rkey: body.RKey, value: body.Record})
		}
		writeJSON(w, http.StatusOK, map[string]string{"uri": uri(body.Repo, body.Collection, body.RKey), "cid": "cid-" + body.RKey})

	case "/xrpc/com.atproto.repo.deleteRecord":
		var body struct {
			Repo       string `json:"repo"`
			Collection string `json:"collection"`
			RKey       string `json:"rkey"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		key := body.Repo + "|" + body.Collection
		kept := f.records[key][:0]
		for _, rec := range f.records[key] {
			if rec.rkey != body.RKey {
				kept = append(kept, rec)
			}
		}
		f.records[key] = kept
		writeJSON(w, http.StatusOK, map[string]any{})

	case "/xrpc/com.atproto.repo.uploadBlob":
		data, _ := io.ReadAll(r.Body)
		f.seq++
		writeJSON(w, http.StatusOK, map[string]any{"blob": map[string]any{
			"$type": "blob", "ref": map[string]string{"$link": fmt.Sprintf("bafkblob%d", f.seq)},
			"mimeType": r.Header.Get("Content-Type"), "size": len(data),
		}})

	case "/xrpc/app.bsky.actor.getProfile":
		actor := q.Get("actor")
		writeJSON(w, http.StatusOK, map[string]string{"did": actor, "handle": actor + ".test"})

	case "/xrpc/com.atproto.server.deleteSession":
		w.WriteHeader(http.StatusOK)

	default:
		writeError(w, http.StatusNotImplemented, "MethodNotImplemented", r.URL.Path)
	}
}

func uri(repo, collection, rkey string) string {
	return fmt.Sprintf("at://%s/%s/%s", repo, collection, rkey)
}
