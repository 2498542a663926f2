package domain

import (
	"context"
	"fmt"
)

// GetPublication reads did's publication through the signed-in agent.
func (s *Service) GetPublication(ctx context.Context, agent Agent, did string) (*Publication, error) {
	if agent == nil {
		return nil, ErrNotAuthenticated
	}
	raw, err := agent.GetRecord(ctx, did, CollectionPublication, SelfKey)
	if err != nil {
		return nil, err
	}
	e, err := decodeEntry[Publication](*raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &e.Value, nil
}

// SavePublication writes the signed-in user's publication.
func (s *Service) SavePublication(ctx context.Context, agent Agent, pub Publication) error {
	if _, err := authenticated(agent); err != nil {
		return err
	}
	pub.Type = CollectionPublication
	return s.saveRecord(ctx, agent, CollectionPublication, SelfKey, pub)
}

// CreateDefaultPublication writes a publication named after the user with the
// default MySky theme.
func (s *Service) CreateDefaultPublication(ctx context.Context, agent Agent, handle, displayName string) (*Publication, error) {
	if _, err := authenticated(agent); err != nil {
		return nil, err
	}

	name := displayName
	if name == "" {
		name = handle
	}

	pub := Publication{
		Type:        CollectionPublication,
		URL:         fmt.Sprintf("%s/profile/%s/blog", s.siteURL, handle),
		Name:        fmt.Sprintf("%s's Blog", name),
		Description: fmt.Sprintf("Blog posts from %s on MySky", name),
		BasicTheme: &ThemeBasic{
			Background:       RGB(255, 255, 255),
			Foreground:       RGB(0, 51, 102),
			Accent:           RGB(255, 102, 0),
			AccentForeground: RGB(255, 255, 255),
		},
		Preferences: &PublicationPreferences{ShowInDiscover: true},
	}

	if err := s.SavePublication(ctx, agent, pub); err != nil {
		return nil, err
	}
	return &pub, nil
}

// publicationURI is the at:// URI documents use as their site.
func publicationURI(did string) string {
	return fmt.Sprintf("at://%s/%s/%s", did, CollectionPublication, SelfKey)
}
