package advisor

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/tjfontaine/blackjack-advisor/internal/core/domain"
)

// Compare asks several providers about the same snapshot concurrently. The
// results are in the order of providers; with no providers, every known
// provider is consulted.
func (o *Orchestrator) Compare(ctx context.Context, snapshot domain.GameSnapshot, providers ...domain.Provider) []domain.Recommendation {
	if len(providers) == 0 {
		providers = domain.Providers()
	}

	snap := snapshot.Clone()
	out := make([]domain.Recommendation, len(providers))

	// Recommend never fails, so the group is only used for fan-out.
	var g errgroup.Group
	for i, p := range providers {
		g.Go(func() error {
			out[i] = o.Recommend(ctx, snap, p)
			return nil
		})
	}
	_ = g.Wait()

	return out
}
