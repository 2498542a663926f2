// Package render turns document content into HTML that is safe to embed.
package render

import (
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"

	"github.com/iammatthias/mysky.wtf/internal/domain"
)

// MarkdownToHTML renders markdown and sanitizes the result.
func MarkdownToHTML(md string) string {
	extensions := parser.CommonExtensions | parser.AutoHeadingIDs | parser.HardLineBreak
	mdParser := parser.NewWithExtensions(extensions)

	opts := html.RendererOptions{
		Flags:     html.CommonFlags | html.HrefTargetBlank,
		Generator: "",
	}
	renderer := html.NewRenderer(opts)

	maybeUnsafeHTML := markdown.ToHTML([]byte(md), mdParser, renderer)
	return string(policy().SanitizeBytes(maybeUnsafeHTML))
}

// SanitizeHTML strips anything the UGC policy does not allow.
func SanitizeHTML(s string) string {
	return policy().Sanitize(s)
}

// DocumentHTML renders a document's body. HTML content is sanitized only;
// markdown and legacy string content are rendered first. Documents without
// content fall back to their plaintext mirror.
func DocumentHTML(doc domain.Document) string {
	if doc.Content != nil && doc.Content.Type == domain.ContentTypeHTML {
		return SanitizeHTML(doc.Content.Value)
	}
	return MarkdownToHTML(domain.DocumentText(doc))
}

func policy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("target").OnElements("a")
	p.AllowAttrs("alt", "loading").OnElements("img")
	return p
}
