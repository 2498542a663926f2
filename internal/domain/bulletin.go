package domain

import (
	"context"
	"fmt"
)

const defaultBulletinLimit = 20

// GetBulletins lists did's bulletins.
func (s *Service) GetBulletins(ctx context.Context, did string, limit int) ([]Bulletin, error) {
	if limit <= 0 {
		limit = defaultBulletinLimit
	}
	entries, err := listEntries[Bulletin](ctx, s.reader, did, CollectionBulletin, limit)
	bulletins := make([]Bulletin, len(entries))
	for i, e := range entries {
		bulletins[i] = e.Value
	}
	return bulletins, err
}

// PostBulletin appends a bulletin to the signed-in user's repo.
func (s *Service) PostBulletin(ctx context.Context, agent Agent, subject, body string) error {
	if _, err := authenticated(agent); err != nil {
		return err
	}

	record := Bulletin{
		Type:      CollectionBulletin,
		Subject:   subject,
		Body:      body,
		CreatedAt: s.timestamp(),
	}
	if _, err := agent.CreateRecord(ctx, CollectionBulletin, "", record); err != nil {
		return fmt.Errorf("create bulletin: %w", err)
	}
	return nil
}
