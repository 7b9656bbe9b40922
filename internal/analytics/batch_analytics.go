package analytics

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

const (
	maxBatchEvents   = 50
	batchConcurrency = 4
)

var ErrBatchTooLarge = fmt.Errorf("at most %d events per batch", maxBatchEvents)

// BatchEventAnalytics holds analytics for several events. Ids that are
// unknown or organized by someone else are listed in Skipped.
type BatchEventAnalytics struct {
	Events  []*EventAnalytics `json:"events"`
	Skipped []string          `json:"skipped"`
}

// GetBatchEventAnalytics loads the analytics of every id concurrently,
// keeping the request order and dropping duplicates.
func (s *Service) GetBatchEventAnalytics(ctx context.Context, actorID string, eventIDs []string) (*BatchEventAnalytics, error) {
	if actorID == "" {
		return nil, ErrUnauthenticated
	}

	ids := dedupe(eventIDs)
	if len(ids) > maxBatchEvents {
		return nil, ErrBatchTooLarge
	}

	results := make([]*EventAnalytics, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			a, err := s.GetEventAnalytics(gctx, actorID, id)
			if errors.Is(err, ErrEventNotFound) || errors.Is(err, ErrNotOrganizer) {
				return nil
			}
			if err != nil {
				return err
			}
			results[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &BatchEventAnalytics{Events: []*EventAnalytics{}, Skipped: []string{}}
	for i, a := range results {
		if a == nil {
			out.Skipped = append(out.Skipped, ids[i])
			continue
		}
		out.Events = append(out.Events, a)
	}
	return out, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
