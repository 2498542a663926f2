package domain

import (
	"encoding/json"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripMarkdown(t *testing.T) {
	assert.Equal(t, "Hi there", StripMarkdown("# Hi *there*"))
	assert.Equal(t, "bold text", StripMarkdown("**bold** text"))
	assert.Equal(t, "code", StripMarkdown("  `code`  "))
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "hello-world", Slugify("Hello World"))
	assert.Equal(t, "my-first-post", Slugify("  My First Post  "))
	assert.LessOrEqual(t, len(Slugify(strings.Repeat("word ", 50))), maxSlugLength)
}

func TestDocumentRKey(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	ms := strconv.FormatInt(1700000000000, 36)

	assert.Equal(t, "hello-world-"+ms, DocumentRKey("Hello World", now))
	assert.Equal(t, "post-"+ms, DocumentRKey("", now))
}

func TestRKeyFromURI(t *testing.T) {
	assert.Equal(t, "abc", RKeyFromURI("at://did:plc:alice/space.myspace.comment/abc"))
	assert.Equal(t, "self", RKeyFromURI("at://did:plc:alice/space.myspace.profile/self"))
	assert.Equal(t, "tail", RKeyFromURI("not/a/uri/tail"))
}

func TestDocumentContentUnion(t *testing.T) {
	var typed Document
	require.NoError(t, json.Unmarshal([]byte(`{"title":"t","content":{"$type":"site.standard.content.markdown","value":"# md"},"textContent":"md"}`), &typed))
	assert.Equal(t, "# md", DocumentText(typed))
	assert.False(t, typed.Content.Legacy)

	var legacy Document
	require.NoError(t, json.Unmarshal([]byte(`{"title":"t","content":"old body"}`), &legacy))
	assert.True(t, legacy.Content.Legacy)
	assert.Equal(t, "old body", DocumentText(legacy))

	legacy.TextContent = "mirror"
	assert.Equal(t, "mirror", DocumentText(legacy))

	assert.Equal(t, "", DocumentText(Document{}))

	out, err := json.Marshal(legacy.Content)
	require.NoError(t, err)
	assert.Equal(t, `"old body"`, string(out))

	out, err = json.Marshal(MarkdownContent("x"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"$type":"site.standard.content.markdown","value":"x"}`, string(out))
}

func TestParseTime(t *testing.T) {
	_, ok := parseTime("2024-01-01T00:00:00.000Z")
	assert.True(t, ok)
	_, ok = parseTime("2024-01-01T00:00:00+02:00")
	assert.True(t, ok)
	_, ok = parseTime("last tuesday")
	assert.False(t, ok)

	assert.Equal(t, "2024-03-01T12:00:00.000Z", formatTime(fixedNow))
}
