package source

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/reconcile-cli/internal/model"
)

// LoadFiles loads every path concurrently, at most maxConcurrent at a time,
// and returns the records in path order. The first failure cancels the rest.
func LoadFiles(ctx context.Context, paths []string, opts Options, maxConcurrent int) ([]model.SourceRecord, error) {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	results := make([][]model.SourceRecord, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)

	for i, path := range paths {
		g.Go(func() error {
			recs, err := Load(gctx, path, opts)
			if err != nil {
				return err
			}
			results[i] = recs
			zap.L().Debug("source: loaded file",
				zap.String("path", path),
				zap.Int("records", len(recs)),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []model.SourceRecord
	for _, recs := range results {
		out = append(out, recs...)
	}
	return out, nil
}
