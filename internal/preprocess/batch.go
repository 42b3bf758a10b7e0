package preprocess

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/sells-group/transcribe-cli/internal/model"
	"github.com/sells-group/transcribe-cli/internal/profile"
)

// Batch preprocesses a span's images with bounded concurrency, preserving
// input order. Safe to parallelize: each transform is pure and per-image.
func Batch(ctx context.Context, images []model.ImageInput, pol profile.Policy, concurrency int) ([]Result, error) {
	if concurrency <= 0 {
		concurrency = 3
	}

	results := make([]Result, len(images))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, img := range images {
		i, img := i, img
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			res, err := ForProfile(img, pol)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
