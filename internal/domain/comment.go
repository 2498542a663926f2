package domain

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/attribute"
)

const (
	commentLinkPath  = ".targetDid"
	commentScanLimit = 50
)

// GetProfileComments gathers the comments left on target's profile. Comments
// live in their authors' repositories, so they are found through the backlink
// index, then topped up from target's own repo (legacy writes) and from the
// caller's repo (fresh comments the index has not seen yet). The result is
// deduplicated and newest first.
//
// Every stage is best effort: the returned comments are whatever could be
// gathered, and the error joins the failures of the stages that did not
// complete. A nil error means every source answered.
func (s *Service) GetProfileComments(ctx context.Context, agent Agent, target string) ([]Comment, error) {
	ctx, span := tracer.Start(ctx, "Service.GetProfileComments")
	defer span.End()
	span.SetAttributes(attribute.String("target", target))

	var (
		all  []Comment
		errs []error
	)

	linked, err := s.linkedComments(ctx, target)
	if err != nil {
		errs = append(errs, fmt.Errorf("backlinks: %w", err))
	}
	all = append(all, linked...)

	own, err := s.scanComments(ctx, target, target)
	if err != nil {
		errs = append(errs, fmt.Errorf("target repo: %w", err))
	}
	all = append(all, own...)

	if agent != nil {
		if caller := agent.DID(); caller != "" && caller != target {
			mine, err := s.scanComments(ctx, caller, target)
			if err != nil {
				errs = append(errs, fmt.Errorf("caller repo: %w", err))
			}
			all = append(all, mine...)
		}
	}

	comments := SortCommentsNewestFirst(DedupeComments(all))
	span.SetAttributes(attribute.Int("comments", len(comments)))

	err = errors.Join(errs...)
	if err != nil {
		span.RecordError(err)
		s.logger.Warn("comment aggregation degraded", "target", target, "comments", len(comments), "error", err)
	}
	return comments, err
}

// linkedComments fetches every comment the backlink index knows about.
// Records that cannot be fetched are skipped.
func (s *Service) linkedComments(ctx context.Context, target string) ([]Comment, error) {
	if s.links == nil {
		return nil, nil
	}

	links, err := s.links.Links(ctx, target, CollectionComment, commentLinkPath, commentScanLimit)
	if err != nil {
		return nil, err
	}

	results := make([]*Comment, len(links))
	var wg sync.WaitGroup
	for i, link := range links {
		if link.DID == "" || link.Collection == "" || link.RKey == "" {
			continue
		}
		wg.Add(1)
		go func(idx int, link RecordLink) {
			defer wg.Done()
			e, err := getEntry[Comment](ctx, s.reader, link.DID, link.Collection, link.RKey)
			if err != nil {
				s.logger.Debug("skipping linked comment", "did", link.DID, "rkey", link.RKey, "error", err)
				return
			}
			c := e.Value
			if c.Author == "" {
				c.Author = link.DID
			}
			results[idx] = &c
		}(i, link)
	}
	wg.Wait()

	comments := make([]Comment, 0, len(results))
	for _, c := range results {
		if c != nil {
			comments = append(comments, *c)
		}
	}
	return comments, nil
}

// scanComments lists comments stored in repo and keeps those aimed at target.
// Comments without an author are attributed to repo.
func (s *Service) scanComments(ctx context.Context, repo, target string) ([]Comment, error) {
	entries, err := listEntries[Comment](ctx, s.reader, repo, CollectionComment, commentScanLimit)
	if err != nil {
		return nil, err
	}

	comments := make([]Comment, 0, len(entries))
	for _, e := range entries {
		c := e.Value
		if c.TargetDID != target {
			continue
		}
		if c.Author == "" {
			c.Author = repo
		}
		comments = append(comments, c)
	}
	return comments, nil
}

// DedupeComments drops comments whose (author, createdAt, content) triple was
// already seen, keeping the first occurrence.
func DedupeComments(comments []Comment) []Comment {
	type key struct{ author, createdAt, content string }

	seen := make(map[key]struct{}, len(comments))
	out := make([]Comment, 0, len(comments))
	for _, c := range comments {
		k := key{c.Author, c.CreatedAt, c.Content}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, c)
	}
	return out
}

// SortCommentsNewestFirst sorts in place by createdAt, newest first.
// Comments with unparsable timestamps go last.
func SortCommentsNewestFirst(comments []Comment) []Comment {
	sort.SliceStable(comments, func(i, j int) bool {
		ti, okI := parseTime(comments[i].CreatedAt)
		tj, okJ := parseTime(comments[j].CreatedAt)
		if okI != okJ {
			return okI
		}
		return ti.After(tj)
	})
	return comments
}

// PostComment stores a comment on target's profile in the author's own repo.
func (s *Service) PostComment(ctx context.Context, agent Agent, target, content string) error {
	did, err := authenticated(agent)
	if err != nil {
		return err
	}

	record := Comment{
		Type:      CollectionComment,
		TargetDID: target,
		Author:    did,
		Content:   content,
		CreatedAt: s.timestamp(),
	}
	if _, err := agent.CreateRecord(ctx, CollectionComment, "", record); err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	s.logger.Info("comment posted", "author", did, "target", target)
	return nil
}
