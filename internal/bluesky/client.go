package bluesky

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/iammatthias/mysky.wtf/internal/domain"
)

const DefaultPDS = "https://bsky.social"

var _ domain.Agent = (*Client)(nil)

// Client is a minimal AT Protocol client for a signed-in account. It
// implements domain.Agent; every write goes to the authenticated user's repo.
type Client struct {
	pds        string
	httpClient *http.Client

	// populated after Login or Resume; tokens are rotated by refresh
	mu         sync.Mutex
	accessJwt  string
	refreshJwt string
	did        string
	handle     string

	refreshMu sync.Mutex
	onRefresh func(context.Context, Session)
}

// Session is the credential set returned by createSession.
type Session struct {
	DID        string `json:"did"`
	Handle     string `json:"handle"`
	AccessJwt  string `json:"accessJwt"`
	RefreshJwt string `json:"refreshJwt"`
	PDS        string `json:"-"`
}

// NewClient creates a new client. If pds is empty, it defaults to
// https://bsky.social.
func NewClient(pds string) *Client {
	if pds == "" {
		pds = DefaultPDS
	}
	return &Client{
		pds: strings.TrimRight(pds, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Resume creates a client bound to a previously created session.
func Resume(s Session) *Client {
	c := NewClient(s.PDS)
	c.accessJwt = s.AccessJwt
	c.refreshJwt = s.RefreshJwt
	c.did = s.DID
	c.handle = s.Handle
	return c
}

// Login authenticates with the PDS and stores the session tokens. Use an App
// Password, not your account password.
func (c *Client) Login(ctx context.Context, identifier, password string) (*Session, error) {
	body := map[string]string{
		"identifier": identifier,
		"password":   password,
	}

	var resp Session
	if err := c.post(ctx, "com.atproto.server.createSession", body, &resp); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	c.mu.Lock()
	c.accessJwt = resp.AccessJwt
	c.refreshJwt = resp.RefreshJwt
	c.did = resp.DID
	c.handle = resp.Handle
	c.mu.Unlock()
	resp.PDS = c.pds
	return &resp, nil
}

// Logout revokes the session on the PDS. The client is unusable afterwards.
func (c *Client) Logout(ctx context.Context) error {
	_, refreshJwt := c.tokens()
	if refreshJwt == "" {
		return domain.ErrNotAuthenticated
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.pds+"/xrpc/com.atproto.server.deleteSession", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+refreshJwt)

	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	c.mu.Lock()
	c.accessJwt, c.refreshJwt, c.did = "", "", ""
	c.mu.Unlock()
	return nil
}

// OnRefresh registers fn to receive the rotated session after an expired
// access token has been refreshed. The old refresh token is spent by then, so
// fn should persist the new one.
func (c *Client) OnRefresh(fn func(context.Context, Session)) {
	c.onRefresh = fn
}

// Session returns the client's current credentials.
func (c *Client) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Session{DID: c.did, Handle: c.handle, AccessJwt: c.accessJwt, RefreshJwt: c.refreshJwt, PDS: c.pds}
}

func (c *Client) tokens() (access, refresh string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessJwt, c.refreshJwt
}

func (c *Client) signedIn() bool {
	access, _ := c.tokens()
	return access != ""
}

// refresh trades the refresh token for a new pair via
// com.atproto.server.refreshSession. stale is the access token that was
// rejected; if another request already replaced it, nothing is sent.
func (c *Client) refresh(ctx context.Context, stale string) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	access, refreshJwt := c.tokens()
	if access != stale {
		return nil
	}
	if refreshJwt == "" {
		return domain.ErrNotAuthenticated
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.pds+"/xrpc/com.atproto.server.refreshSession", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+refreshJwt)

	var resp Session
	if err := c.do(req, &resp); err != nil {
		return fmt.Errorf("refresh session: %w", err)
	}

	c.mu.Lock()
	c.accessJwt = resp.AccessJwt
	c.refreshJwt = resp.RefreshJwt
	if resp.Handle != "" {
		c.handle = resp.Handle
	}
	c.mu.Unlock()

	if c.onRefresh != nil {
		c.onRefresh(ctx, c.Session())
	}
	return nil
}

// DID returns the authenticated user's DID. Only valid after Login.
func (c *Client) DID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.did
}

// Handle returns the authenticated user's handle.
func (c *Client) Handle() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle
}

// PDS returns the base URL of the client's PDS.
func (c *Client) PDS() string {
	return c.pds
}

// GetRecord reads a record from any repository through the user's PDS.
func (c *Client) GetRecord(ctx context.Context, repo, collection, rkey string) (*domain.RecordEntry, error) {
	q := url.Values{}
	q.Set("repo", repo)
	q.Set("collection", collection)
	q.Set("rkey", rkey)

	var entry domain.RecordEntry
	if err := c.get(ctx, "com.atproto.repo.getRecord", q, &entry); err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return &entry, nil
}

// PutRecord creates or replaces a record via com.atproto.repo.putRecord.
func (c *Client) PutRecord(ctx context.Context, collection, rkey string, record any) (*domain.RecordRef, error) {
	if !c.signedIn() {
		return nil, domain.ErrNotAuthenticated
	}

	body := writeRecordRequest{
		Repo:       c.DID(),
		Collection: collection,
		RKey:       rkey,
		Record:     record,
	}

	var ref domain.RecordRef
	if err := c.post(ctx, "com.atproto.repo.putRecord", body, &ref); err != nil {
		return nil, fmt.Errorf("put record: %w", err)
	}
	return &ref, nil
}

// CreateRecord creates a record via com.atproto.repo.createRecord. With an
// empty rkey the PDS assigns one.
func (c *Client) CreateRecord(ctx context.Context, collection, rkey string, record any) (*domain.RecordRef, error) {
	if !c.signedIn() {
		return nil, domain.ErrNotAuthenticated
	}

	body := writeRecordRequest{
		Repo:       c.DID(),
		Collection: collection,
		RKey:       rkey,
		Record:     record,
	}

	var ref domain.RecordRef
	if err := c.post(ctx, "com.atproto.repo.createRecord", body, &ref); err != nil {
		return nil, fmt.Errorf("create record: %w", err)
	}
	return &ref, nil
}

// DeleteRecord deletes a record from the authenticated user's repo via
// com.atproto.repo.deleteRecord.
func (c *Client) DeleteRecord(ctx context.Context, collection, rkey string) error {
	if !c.signedIn() {
		return domain.ErrNotAuthenticated
	}

	body := deleteRecordRequest{
		Repo:       c.DID(),
		Collection: collection,
		RKey:       rkey,
	}

	var resp json.RawMessage
	if err := c.post(ctx, "com.atproto.repo.deleteRecord", body, &resp); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

// UploadBlob uploads raw bytes as a blob and returns a normalized reference.
// The blob will be deleted if not referenced in a record within a time window.
func (c *Client) UploadBlob(ctx context.Context, data []byte, mimeType string) (*domain.BlobRef, error) {
	if !c.signedIn() {
		return nil, domain.ErrNotAuthenticated
	}

	newReq := func(token string) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.pds+"/xrpc/com.atproto.repo.uploadBlob", bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", mimeType)
		req.Header.Set("Authorization", "Bearer "+token)
		return req, nil
	}

	var result uploadBlobResponse
	if err := c.send(ctx, newReq, &result); err != nil {
		return nil, fmt.Errorf("upload blob: %w", err)
	}

	ref, err := domain.ParseBlobRef(result.Blob)
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

// GetBlob downloads a blob from did's repo via com.atproto.sync.getBlob.
func (c *Client) GetBlob(ctx context.Context, did, cid string) ([]byte, error) {
	q := url.Values{}
	q.Set("did", did)
	q.Set("cid", cid)

	data, err := c.sendRaw(ctx, c.getRequest(ctx, "com.atproto.sync.getBlob", q))
	if err != nil {
		return nil, fmt.Errorf("get blob: %w", err)
	}
	return data, nil
}

// GetProfile fetches an actor's public profile.
func (c *Client) GetProfile(ctx context.Context, actor string) (*domain.ActorProfile, error) {
	q := url.Values{}
	q.Set("actor", actor)

	var profile domain.ActorProfile
	if err := c.get(ctx, "app.bsky.actor.getProfile", q, &profile); err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &profile, nil
}

// ResolveHandle maps a handle to a DID.
func (c *Client) ResolveHandle(ctx context.Context, handle string) (string, error) {
	q := url.Values{}
	q.Set("handle", handle)

	var resp struct {
		DID string `json:"did"`
	}
	if err := c.get(ctx, "com.atproto.identity.resolveHandle", q, &resp); err != nil {
		return "", fmt.Errorf("resolve handle: %w", err)
	}
	return resp.DID, nil
}

// SearchActors searches accounts by handle or display name.
func (c *Client) SearchActors(ctx context.Context, query string, limit int) ([]domain.ActorProfile, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(limit))

	var resp struct {
		Actors []domain.ActorProfile `json:"actors"`
	}
	if err := c.get(ctx, "app.bsky.actor.searchActors", q, &resp); err != nil {
		return nil, fmt.Errorf("search actors: %w", err)
	}
	if resp.Actors == nil {
		return []domain.ActorProfile{}, nil
	}
	return resp.Actors, nil
}

// APIError is a non-2xx answer from the PDS. It matches domain.ErrRejected
// only for 4xx answers carrying an XRPC error body, and domain.ErrNotFound
// when the PDS reports RecordNotFound or 404.
type APIError struct {
	StatusCode int
	Name       string
	Message    string
}

func newAPIError(status int, body []byte) *APIError {
	e := &APIError{StatusCode: status}
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil {
		e.Name = payload.Error
		e.Message = payload.Message
	}
	if e.Name == "" && e.Message == "" {
		e.Message = string(body)
	}
	return e
}

func (e *APIError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("API error (status %d): %s: %s", e.StatusCode, e.Name, e.Message)
	}
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case domain.ErrRejected:
		return e.Name != "" && e.StatusCode >= 400 && e.StatusCode < 500
	case domain.ErrNotFound:
		return e.Name == "RecordNotFound" || e.StatusCode == http.StatusNotFound
	}
	return false
}

// IsAuthError reports whether err is an expired or invalid session.
func IsAuthError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusUnauthorized || apiErr.Name == "ExpiredToken" || apiErr.Name == "InvalidToken"
}

func isExpiredToken(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Name == "ExpiredToken"
}

// requestFunc builds a request carrying token, which may be empty.
type requestFunc func(token string) (*http.Request, error)

func (c *Client) getRequest(ctx context.Context, method string, q url.Values) requestFunc {
	return func(token string) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.pds+"/xrpc/"+method+"?"+q.Encode(), nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		return req, nil
	}
}

func (c *Client) get(ctx context.Context, method string, q url.Values, result any) error {
	return c.send(ctx, c.getRequest(ctx, method, q), result)
}

func (c *Client) post(ctx context.Context, method string, body any, result any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	newReq := func(token string) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.pds+"/xrpc/"+method, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		return req, nil
	}
	return c.send(ctx, newReq, result)
}

// send performs an authenticated call and decodes the answer into result.
func (c *Client) send(ctx context.Context, newReq requestFunc, result any) error {
	body, err := c.sendRaw(ctx, newReq)
	if err != nil {
		return err
	}
	return decode(body, result)
}

// sendRaw performs an authenticated call. An ExpiredToken answer refreshes
// the session and replays the call once.
func (c *Client) sendRaw(ctx context.Context, newReq requestFunc) ([]byte, error) {
	token, _ := c.tokens()
	body, err := c.roundTrip(newReq, token)
	if err == nil || token == "" || !isExpiredToken(err) {
		return body, err
	}

	if err := c.refresh(ctx, token); err != nil {
		return nil, err
	}
	token, _ = c.tokens()
	return c.roundTrip(newReq, token)
}

func (c *Client) roundTrip(newReq requestFunc, token string) ([]byte, error) {
	req, err := newReq(token)
	if err != nil {
		return nil, err
	}
	return c.doRaw(req)
}

func (c *Client) do(req *http.Request, result any) error {
	body, err := c.doRaw(req)
	if err != nil {
		return err
	}
	return decode(body, result)
}

func (c *Client) doRaw(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newAPIError(resp.StatusCode, respBody)
	}
	return respBody, nil
}

func decode(body []byte, result any) error {
	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

type writeRecordRequest struct {
	Repo       string `json:"repo"`
	Collection string `json:"collection"`
	RKey       string `json:"rkey,omitempty"`
	Record     any    `json:"record"`
}

type deleteRecordRequest struct {
	Repo       string `json:"repo"`
	Collection string `json:"collection"`
	RKey       string `json:"rkey"`
}

type uploadBlobResponse struct {
	Blob json.RawMessage `json:"blob"`
}
