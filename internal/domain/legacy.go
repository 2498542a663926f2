package domain

import "context"

const (
	defaultBlogEntryLimit = 10
	maxDescriptionLength  = 300
)

// BlogEntry is the pre-standard.site shape of a blog post, still consumed by
// older profile layouts.
type BlogEntry struct {
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	CreatedAt   string     `json:"createdAt"`
	Visibility  Visibility `json:"visibility,omitempty"`
	URI         string     `json:"uri"`
	RKey        string     `json:"rkey"`
	Description string     `json:"description,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	UpdatedAt   string     `json:"updatedAt,omitempty"`
}

// GetBlogEntries lists did's documents in the legacy blog entry shape.
func (s *Service) GetBlogEntries(ctx context.Context, did string, limit int) ([]BlogEntry, error) {
	if limit <= 0 {
		limit = defaultBlogEntryLimit
	}
	docs, err := s.GetDocuments(ctx, did, limit)

	entries := make([]BlogEntry, 0, len(docs))
	for _, d := range docs {
		entries = append(entries, BlogEntry{
			Title:       d.Value.Title,
			Content:     DocumentText(d.Value),
			CreatedAt:   d.Value.PublishedAt,
			Visibility:  d.Value.Visibility,
			URI:         d.URI,
			RKey:        d.RKey,
			Description: d.Value.Description,
			Tags:        d.Value.Tags,
			UpdatedAt:   d.Value.UpdatedAt,
		})
	}
	return entries, err
}

// CreateBlogEntry creates a document from the legacy title/content form.
func (s *Service) CreateBlogEntry(ctx context.Context, agent Agent, title, content string, visibility Visibility) error {
	if visibility == "" {
		visibility = VisibilityPublic
	}
	_, err := s.CreateDocument(ctx, agent, DocumentInput{
		Title:       title,
		Content:     content,
		Description: truncateRunes(content, maxDescriptionLength),
		Visibility:  visibility,
	})
	return err
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
