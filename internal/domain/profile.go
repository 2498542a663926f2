package domain

import (
	"context"
	"errors"
)

// GetMySpaceProfile returns the profile extension of did. The error is
// ErrNotFound when did has never saved one.
func (s *Service) GetMySpaceProfile(ctx context.Context, did string) (*MySpaceProfile, error) {
	e, err := getEntry[MySpaceProfile](ctx, s.reader, did, CollectionProfile, SelfKey)
	if err != nil {
		return nil, err
	}
	return &e.Value, nil
}

// SaveMySpaceProfile writes the signed-in user's profile extension.
func (s *Service) SaveMySpaceProfile(ctx context.Context, agent Agent, profile MySpaceProfile) error {
	if _, err := authenticated(agent); err != nil {
		return err
	}
	profile.Type = CollectionProfile
	return s.saveRecord(ctx, agent, CollectionProfile, SelfKey, profile)
}

// GetTopFriends returns did's top friends. Without a saved list the result is
// Tom alone. If the repository could not be reached the error says so, and
// the returned list is still the default.
func (s *Service) GetTopFriends(ctx context.Context, did string) ([]string, error) {
	e, err := getEntry[TopFriends](ctx, s.reader, did, CollectionTopFriends, SelfKey)
	switch {
	case errors.Is(err, ErrNotFound):
		return []string{TomDID}, nil
	case err != nil:
		return []string{TomDID}, err
	}
	if e.Value.Friends == nil {
		return []string{}, nil
	}
	return e.Value.Friends, nil
}

// SaveTopFriends writes the signed-in user's top friends, keeping the first eight.
func (s *Service) SaveTopFriends(ctx context.Context, agent Agent, friends []string) error {
	if _, err := authenticated(agent); err != nil {
		return err
	}

	if len(friends) > MaxTopFriends {
		friends = friends[:MaxTopFriends]
	}
	record := TopFriends{
		Type:      CollectionTopFriends,
		Friends:   append([]string{}, friends...),
		UpdatedAt: s.timestamp(),
	}
	return s.saveRecord(ctx, agent, CollectionTopFriends, SelfKey, record)
}
