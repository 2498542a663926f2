package domain

import (
	"context"
	"sync"
)

const defaultSearchLimit = 20

// ResolveHandle maps a handle to its DID.
func (s *Service) ResolveHandle(ctx context.Context, agent Agent, handle string) (string, error) {
	if agent == nil {
		return "", ErrNotAuthenticated
	}
	return agent.ResolveHandle(ctx, handle)
}

// GetProfiles fetches several profiles concurrently, for the top friends box.
// Profiles that fail to load are left out; the rest keep input order.
func (s *Service) GetProfiles(ctx context.Context, agent Agent, dids []string) []ActorProfile {
	if agent == nil {
		return []ActorProfile{}
	}

	results := make([]*ActorProfile, len(dids))
	var wg sync.WaitGroup
	for i, did := range dids {
		wg.Add(1)
		go func(idx int, did string) {
			defer wg.Done()
			p, err := agent.GetProfile(ctx, did)
			if err != nil {
				s.logger.Debug("profile unavailable", "did", did, "error", err)
				return
			}
			results[idx] = p
		}(i, did)
	}
	wg.Wait()

	profiles := make([]ActorProfile, 0, len(dids))
	for _, p := range results {
		if p != nil {
			profiles = append(profiles, *p)
		}
	}
	return profiles
}

// SearchUsers searches actors by name or handle.
func (s *Service) SearchUsers(ctx context.Context, agent Agent, query string, limit int) ([]ActorProfile, error) {
	if agent == nil {
		return []ActorProfile{}, ErrNotAuthenticated
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	actors, err := agent.SearchActors(ctx, query, limit)
	if err != nil {
		return []ActorProfile{}, err
	}
	return actors, nil
}
