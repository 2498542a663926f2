package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/bluesky-social/indigo/atproto/syntax"
	"github.com/writeas/slug"
)

const maxSlugLength = 100

var markdownStripper = strings.NewReplacer(
	"#", "", "*", "", "_", "", "`", "", "~", "",
	"[", "", "]", "", "(", "", ")", "",
)

// StripMarkdown removes markdown punctuation to produce the plaintext mirror
// stored in textContent.
func StripMarkdown(s string) string {
	return strings.TrimSpace(markdownStripper.Replace(s))
}

// Slugify turns a title into a URL-safe slug of at most 100 characters.
func Slugify(title string) string {
	s := slug.Make(title)
	if len(s) > maxSlugLength {
		s = s[:maxSlugLength]
	}
	return strings.Trim(s, "-")
}

// DocumentRKey derives a document record key from its title and creation time:
// the slug, a dash, then the unix milliseconds in base 36.
func DocumentRKey(title string, now time.Time) string {
	s := Slugify(title)
	if s == "" {
		s = "post"
	}
	return s + "-" + strconv.FormatInt(now.UnixMilli(), 36)
}

// RKeyFromURI returns the record key of an at:// URI.
func RKeyFromURI(uri string) string {
	if aturi, err := syntax.ParseATURI(uri); err == nil {
		if rkey := aturi.RecordKey(); rkey != "" {
			return rkey.String()
		}
	}
	return uri[strings.LastIndex(uri, "/")+1:]
}

// DocumentText extracts displayable text: the content union value first,
// then the plaintext mirror, then legacy string content.
func DocumentText(doc Document) string {
	switch {
	case doc.Content != nil && !doc.Content.Legacy:
		return doc.Content.Value
	case doc.TextContent != "":
		return doc.TextContent
	case doc.Content != nil:
		return doc.Content.Value
	}
	return ""
}

// FilterPublished keeps every document whose visibility is not draft.
func FilterPublished(docs []DocumentRecord) []DocumentRecord {
	out := make([]DocumentRecord, 0, len(docs))
	for _, d := range docs {
		if d.Value.Visibility != VisibilityDraft {
			out = append(out, d)
		}
	}
	return out
}

// FilterDrafts keeps only draft documents.
func FilterDrafts(docs []DocumentRecord) []DocumentRecord {
	out := make([]DocumentRecord, 0, len(docs))
	for _, d := range docs {
		if d.Value.Visibility == VisibilityDraft {
			out = append(out, d)
		}
	}
	return out
}

// timeLayout matches JavaScript's Date.toISOString, which existing records use.
const timeLayout = "2006-01-02T15:04:05.000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime parses record timestamps leniently. ok is false when the value is
// not a recognizable datetime.
func parseTime(s string) (t time.Time, ok bool) {
	if dt, err := syntax.ParseDatetimeLenient(s); err == nil {
		return dt.Time(), true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}
