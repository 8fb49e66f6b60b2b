// Package factors extracts principal-component factors from a block of
// survey items, giving loadings for dimensionality checks and factor
// scores for downstream modeling.
package factors

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/mat"

	"surveykit/internal/dataset"
	"surveykit/internal/errors"
)

// minExtractionN is the smallest complete-case sample the extraction
// will accept; below it loadings are noise.
const minExtractionN = 10

// Solution is the output of one extraction. Loadings is items × factors
// with items in the input order; VarianceExplained is the per-factor
// share of total item variance; Scores holds one row per complete case.
type Solution struct {
	Items             []string    `json:"items"`
	Factors           int         `json:"factors"`
	N                 int         `json:"n"`
	Loadings          [][]float64 `json:"loadings"`
	VarianceExplained []float64   `json:"variance_explained"`
	Scores            [][]float64 `json:"-"`
	Rows              []int       `json:"-"`
}

// Extractor runs principal-component extractions on standardized items.
type Extractor struct {
	factorCount int
	logger      *slog.Logger
}

// NewExtractor builds an extractor retaining factorCount components.
func NewExtractor(factorCount int, logger *slog.Logger) (*Extractor, error) {
	if factorCount < 1 {
		return nil, errors.Newf(errors.CodeConfiguration,
			"factor count %d must be at least 1", factorCount)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{factorCount: factorCount, logger: logger}, nil
}

// Extract standardizes the items over their complete cases and takes
// the leading singular vectors of the centered data matrix. Loadings
// are eigenvector weights scaled by the component's singular value, so
// they read as item-factor correlations.
func (e *Extractor) Extract(ctx context.Context, ds *dataset.Dataset, items []string) (*Solution, error) {
	if len(items) < 2 {
		return nil, errors.Newf(errors.CodeConfiguration,
			"factor extraction needs at least 2 items, got %d", len(items))
	}
	k := e.factorCount
	if k > len(items) {
		return nil, errors.Newf(errors.CodeConfiguration,
			"cannot extract %d factors from %d items", k, len(items))
	}

	rows, err := ds.CompleteCases(items)
	if err != nil {
		return nil, fmt.Errorf("factor extraction: %w", err)
	}
	n := len(rows)
	if n < minExtractionN {
		return nil, errors.Newf(errors.CodeInsufficientData,
			"factor extraction has %d complete cases, need at least %d", n, minExtractionN)
	}

	p := len(items)
	data := mat.NewDense(n, p, nil)
	for j, item := range items {
		col := ds.Gather(item, rows)
		m, sd := meanStd(col)
		if sd == 0 {
			return nil, errors.Newf(errors.CodeDegenerate,
				"item %q has zero variance over complete cases", item)
		}
		for i, v := range col {
			data.Set(i, j, (v-m)/sd)
		}
	}

	var svd mat.SVD
	if ok := svd.Factorize(data, mat.SVDThin); !ok {
		return nil, errors.Newf(errors.CodeDegenerate, "svd failed to converge")
	}
	var v mat.Dense
	svd.VTo(&v)
	sigma := svd.Values(nil)

	// Total standardized variance equals the item count.
	sol := &Solution{
		Items:             items,
		Factors:           k,
		N:                 n,
		Loadings:          make([][]float64, p),
		VarianceExplained: make([]float64, k),
		Rows:              rows,
	}
	denom := float64(n - 1)
	for f := 0; f < k; f++ {
		eigenvalue := sigma[f] * sigma[f] / denom
		sol.VarianceExplained[f] = eigenvalue / float64(p)
	}
	for j := 0; j < p; j++ {
		sol.Loadings[j] = make([]float64, k)
		for f := 0; f < k; f++ {
			sol.Loadings[j][f] = v.At(j, f) * sigma[f] / math.Sqrt(denom)
		}
	}

	// Scores are the projections onto the retained components,
	// rescaled to unit variance.
	sol.Scores = make([][]float64, n)
	for i := 0; i < n; i++ {
		sol.Scores[i] = make([]float64, k)
		for f := 0; f < k; f++ {
			var s float64
			for j := 0; j < p; j++ {
				s += data.At(i, j) * v.At(j, f)
			}
			if sigma[f] > 0 {
				s = s / sigma[f] * math.Sqrt(denom)
			}
			sol.Scores[i][f] = s
		}
	}

	e.logger.InfoContext(ctx, "extracted factors",
		slog.Int("items", p),
		slog.Int("factors", k),
		slog.Int("n", n),
		slog.Float64("variance_explained_first", sol.VarianceExplained[0]))
	return sol, nil
}

// AttachScores writes the factor scores back onto the dataset as new
// numeric columns named prefix1..prefixK, with NaN on rows that were
// not complete cases.
func (s *Solution) AttachScores(ds *dataset.Dataset, prefix string) error {
	for f := 0; f < s.Factors; f++ {
		col := make([]float64, ds.Len())
		for i := range col {
			col[i] = math.NaN()
		}
		for i, row := range s.Rows {
			col[row] = s.Scores[i][f]
		}
		name := fmt.Sprintf("%s%d", prefix, f+1)
		if err := ds.AddNumeric(name, col); err != nil {
			return fmt.Errorf("attach factor scores: %w", err)
		}
	}
	return nil
}

func meanStd(xs []float64) (mean, sd float64) {
	for _, v := range xs {
		mean += v
	}
	mean /= float64(len(xs))
	var ss float64
	for _, v := range xs {
		d := v - mean
		ss += d * d
	}
	if len(xs) > 1 {
		sd = math.Sqrt(ss / float64(len(xs)-1))
	}
	return mean, sd
}
