package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Visibility is the audience of a document or album.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityFriends Visibility = "friends"
	VisibilityDraft   Visibility = "draft"
	VisibilityPrivate Visibility = "private"
)

// MySpaceProfile is the space.myspace.profile record, stored at rkey "self".
type MySpaceProfile struct {
	Type             string           `json:"$type"`
	Headline         string           `json:"headline,omitempty"`
	Mood             string           `json:"mood,omitempty"`
	AboutMe          string           `json:"aboutMe,omitempty"`
	WhoIdLikeToMeet  string           `json:"whoIdLikeToMeet,omitempty"`
	Interests        *Interests       `json:"interests,omitempty"`
	SongURL          string           `json:"songUrl,omitempty"`
	CustomCSSBlobRef string           `json:"customCssBlobRef,omitempty"`
	Privacy          *PrivacySettings `json:"privacy,omitempty"`
	BlogSettings     *BlogSettings    `json:"blogSettings,omitempty"`
}

type Interests struct {
	General    string `json:"general,omitempty"`
	Music      string `json:"music,omitempty"`
	Movies     string `json:"movies,omitempty"`
	Television string `json:"television,omitempty"`
	Books      string `json:"books,omitempty"`
	Heroes     string `json:"heroes,omitempty"`
}

// PrivacySettings uses pointers so an unset flag is distinguishable from false.
type PrivacySettings struct {
	ProfileVisibility string `json:"profileVisibility,omitempty"` // public | friends
	ContactMe         string `json:"contactMe,omitempty"`         // anyone | friends
	BlogVisibility    string `json:"blogVisibility,omitempty"`    // public | friends
	ShowOnline        *bool  `json:"showOnline,omitempty"`
	ShowLastLogin     *bool  `json:"showLastLogin,omitempty"`
	AllowComments     *bool  `json:"allowComments,omitempty"`
	ShowFriends       *bool  `json:"showFriends,omitempty"`
}

type BlogSettings struct {
	BlogTitle         string     `json:"blogTitle,omitempty"`
	BlogTagline       string     `json:"blogTagline,omitempty"`
	PostsPerPage      int        `json:"postsPerPage,omitempty"`
	ShowAuthor        *bool      `json:"showAuthor,omitempty"`
	ShowDate          *bool      `json:"showDate,omitempty"`
	AllowComments     *bool      `json:"allowComments,omitempty"`
	DefaultVisibility Visibility `json:"defaultVisibility,omitempty"`
	BlogCSS           string     `json:"blogCss,omitempty"`
}

// TopFriends is the space.myspace.topFriends record.
type TopFriends struct {
	Type      string   `json:"$type"`
	Friends   []string `json:"friends"`
	UpdatedAt string   `json:"updatedAt"`
}

// ThemeColor is a site.standard.theme.color#rgb value. Channels are 0-255.
type ThemeColor struct {
	Type string `json:"$type"`
	R    int    `json:"r"`
	G    int    `json:"g"`
	B    int    `json:"b"`
}

// RGB builds a ThemeColor.
func RGB(r, g, b int) ThemeColor {
	return ThemeColor{Type: ThemeColorRGBType, R: r, G: g, B: b}
}

type ThemeBasic struct {
	Background       ThemeColor `json:"background"`
	Foreground       ThemeColor `json:"foreground"`
	Accent           ThemeColor `json:"accent"`
	AccentForeground ThemeColor `json:"accentForeground"`
}

type PublicationPreferences struct {
	ShowInDiscover bool `json:"showInDiscover"`
}

// Publication is the site.standard.publication record, stored at rkey "self".
type Publication struct {
	Type        string                  `json:"$type"`
	URL         string                  `json:"url"`
	Name        string                  `json:"name"`
	Description string                  `json:"description,omitempty"`
	Icon        *BlobRef                `json:"icon,omitempty"`
	BasicTheme  *ThemeBasic             `json:"basicTheme,omitempty"`
	Preferences *PublicationPreferences `json:"preferences,omitempty"`
}

// StrongRef points at a specific version of a record.
type StrongRef struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

// DocumentContent is the document content union. Records written before the
// union existed carry a bare string; those decode with Legacy set.
type DocumentContent struct {
	Type   string
	Value  string
	Legacy bool
}

// MarkdownContent wraps value as markdown content.
func MarkdownContent(value string) *DocumentContent {
	return &DocumentContent{Type: ContentTypeMarkdown, Value: value}
}

func (c DocumentContent) MarshalJSON() ([]byte, error) {
	if c.Legacy {
		return json.Marshal(c.Value)
	}
	return json.Marshal(struct {
		Type  string `json:"$type"`
		Value string `json:"value"`
	}{c.Type, c.Value})
}

func (c *DocumentContent) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = DocumentContent{Value: s, Legacy: true}
		return nil
	}

	var obj struct {
		Type  string `json:"$type"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("decode document content: %w", err)
	}
	*c = DocumentContent{Type: obj.Type, Value: obj.Value}
	return nil
}

// Document is the site.standard.document record (a blog post).
type Document struct {
	Type        string           `json:"$type"`
	Site        string           `json:"site"`
	Path        string           `json:"path,omitempty"`
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	CoverImage  *BlobRef         `json:"coverImage,omitempty"`
	Content     *DocumentContent `json:"content,omitempty"`
	TextContent string           `json:"textContent,omitempty"`
	BskyPostRef *StrongRef       `json:"bskyPostRef,omitempty"`
	Tags        []string         `json:"tags,omitempty"`
	PublishedAt string           `json:"publishedAt"`
	UpdatedAt   string           `json:"updatedAt,omitempty"`
	Visibility  Visibility       `json:"visibility,omitempty"`
}

// Bulletin is the space.myspace.bulletin record.
type Bulletin struct {
	Type      string `json:"$type"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	CreatedAt string `json:"createdAt"`
}

// Comment is the space.myspace.comment record. It lives in the author's repo.
type Comment struct {
	Type      string `json:"$type"`
	TargetDID string `json:"targetDid"`
	Author    string `json:"author,omitempty"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt"`
}

// PhotoAlbum is the space.myspace.photoAlbum record.
type PhotoAlbum struct {
	Type        string     `json:"$type"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	CoverPhoto  *BlobRef   `json:"coverPhoto,omitempty"`
	Visibility  Visibility `json:"visibility,omitempty"`
	CreatedAt   string     `json:"createdAt"`
	UpdatedAt   string     `json:"updatedAt,omitempty"`
}

// Photo is the space.myspace.photo record. AlbumRKey ties it to its album.
type Photo struct {
	Type       string   `json:"$type"`
	AlbumRKey  string   `json:"albumRkey"`
	Image      *BlobRef `json:"image"`
	Caption    string   `json:"caption,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	UploadedAt string   `json:"uploadedAt"`
}

// RecordEntry is a record as returned by getRecord/listRecords, value undecoded.
type RecordEntry struct {
	URI   string          `json:"uri"`
	CID   string          `json:"cid"`
	Value json.RawMessage `json:"value"`
}

// RecordRef is the uri/cid pair returned by record writes.
type RecordRef struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

// Entry is a decoded record with its metadata.
type Entry[T any] struct {
	URI   string `json:"uri"`
	CID   string `json:"cid"`
	RKey  string `json:"rkey"`
	Value T      `json:"value"`
}

type (
	DocumentRecord = Entry[Document]
	AlbumRecord    = Entry[PhotoAlbum]
	PhotoRecord    = Entry[Photo]
)

func decodeEntry[T any](raw RecordEntry) (Entry[T], error) {
	var v T
	if err := json.Unmarshal(raw.Value, &v); err != nil {
		return Entry[T]{}, fmt.Errorf("decode %s: %w", raw.URI, err)
	}
	return Entry[T]{
		URI:   raw.URI,
		CID:   raw.CID,
		RKey:  RKeyFromURI(raw.URI),
		Value: v,
	}, nil
}

// decodeEntries decodes every entry it can and drops the rest.
func decodeEntries[T any](raws []RecordEntry) []Entry[T] {
	out := make([]Entry[T], 0, len(raws))
	for _, raw := range raws {
		e, err := decodeEntry[T](raw)
		if err != nil {
			continue
		}
		out = append(out, e)
	}
	return out
}

// ActorProfile is the subset of app.bsky.actor.defs#profileViewDetailed we use.
type ActorProfile struct {
	DID         string `json:"did"`
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
	Banner      string `json:"banner,omitempty"`
	Description string `json:"description,omitempty"`
}
