// Package segments refits a path model within each level of a
// stratification field so drivers can be compared across subgroups.
package segments

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"surveykit/internal/dataset"
	"surveykit/internal/pathmodel"
)

// SegmentResult pairs one segment's label and size with its refit.
// Undersized segments still get a row; their edges carry the
// insufficient-data status instead of estimates.
type SegmentResult struct {
	Segment string               `json:"segment"`
	N       int                  `json:"n"`
	Fit     *pathmodel.FitResult `json:"fit"`
}

// Stratifier partitions a dataset on a label field and refits the same
// model per segment, bounded-concurrently.
type Stratifier struct {
	fitter    *pathmodel.Fitter
	maxRefits int
	logger    *slog.Logger
}

// NewStratifier builds a stratifier. maxRefits caps how many segment
// fits run at once; values below 1 are treated as 1.
func NewStratifier(fitter *pathmodel.Fitter, maxRefits int, logger *slog.Logger) *Stratifier {
	if maxRefits < 1 {
		maxRefits = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Stratifier{fitter: fitter, maxRefits: maxRefits, logger: logger}
}

// Stratify splits ds on field and refits spec in each segment. Results
// come back in the field's sorted label order, one per segment, so
// small segments are visible rather than silently dropped.
func (s *Stratifier) Stratify(ctx context.Context, ds *dataset.Dataset, field string, spec pathmodel.ModelSpec) ([]SegmentResult, error) {
	// Validate once against the full frame so a bad spec fails fast
	// instead of once per goroutine.
	if err := pathmodel.Validate(ds, spec); err != nil {
		return nil, fmt.Errorf("stratify on %q: %w", field, err)
	}

	parts, err := ds.Partition(field)
	if err != nil {
		return nil, fmt.Errorf("stratify on %q: %w", field, err)
	}
	labels := ds.Segments(field)

	results := make([]SegmentResult, len(labels))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxRefits)
	for i, label := range labels {
		g.Go(func() error {
			sub := parts[label]
			fit, err := s.fitter.Fit(gctx, sub, spec)
			if err != nil {
				return fmt.Errorf("segment %q: %w", label, err)
			}
			s.logger.InfoContext(gctx, "refit segment",
				slog.String("field", field),
				slog.String("segment", label),
				slog.Int("n", sub.Len()))
			mu.Lock()
			results[i] = SegmentResult{Segment: label, N: sub.Len(), Fit: fit}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
