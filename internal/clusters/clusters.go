// Package clusters groups survey items by the similarity of their
// response patterns, so item themes come from the data instead of a
// predefined functional/emotional split. Each respondent gets one
// composite score per discovered cluster for downstream modeling.
package clusters

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"surveykit/internal/dataset"
	"surveykit/internal/errors"
)

const (
	// minGroupingN is the smallest complete-case sample accepted.
	minGroupingN = 10

	// minClusterSize is the smallest item count a cluster may have for
	// its solution to be preferred during k selection.
	minClusterSize = 3

	// maxComponents caps the projection dimension used for clustering.
	maxComponents = 10

	kmeansRestarts = 10
	kmeansMaxIter  = 100
	kmeansSeed     = 42
)

// Grouping is the output of one clustering run. Assignments holds a
// 1-based cluster id per item in input order; MeanRating is the average
// raw rating of each cluster's items; Scores holds one row per complete
// case with a composite score per cluster.
type Grouping struct {
	Items       []string    `json:"items"`
	Assignments []int       `json:"assignments"`
	K           int         `json:"k"`
	Silhouette  float64     `json:"silhouette"`
	N           int         `json:"n"`
	MeanRating  []float64   `json:"mean_rating"`
	Scores      [][]float64 `json:"-"`
	Rows        []int       `json:"-"`
}

// ClusterItems returns the items assigned to the 1-based cluster id.
func (g *Grouping) ClusterItems(cluster int) []string {
	var items []string
	for j, c := range g.Assignments {
		if c == cluster {
			items = append(items, g.Items[j])
		}
	}
	return items
}

// Grouper clusters items over a configurable range of cluster counts
// and keeps the solution with the best size-weighted silhouette.
type Grouper struct {
	minK   int
	maxK   int
	logger *slog.Logger
}

// NewGrouper builds a grouper evaluating solutions from minK to maxK
// clusters inclusive.
func NewGrouper(minK, maxK int, logger *slog.Logger) (*Grouper, error) {
	if minK < 2 || maxK < minK {
		return nil, errors.Newf(errors.CodeConfiguration,
			"cluster range %d..%d is invalid, need 2 <= min <= max", minK, maxK)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Grouper{minK: minK, maxK: maxK, logger: logger}, nil
}

// Group standardizes the items over their complete cases, projects each
// item's response pattern onto the leading principal components, and
// runs k-means over the item points for every candidate k. Solutions
// whose smallest cluster has at least minClusterSize items compete on
// silhouette weighted by that smallest size; if none qualify, the raw
// silhouette decides.
func (g *Grouper) Group(ctx context.Context, ds *dataset.Dataset, items []string) (*Grouping, error) {
	p := len(items)
	if p <= g.minK {
		return nil, errors.Newf(errors.CodeConfiguration,
			"cluster analysis needs more than %d items, got %d", g.minK, p)
	}
	maxK := g.maxK
	if maxK >= p {
		maxK = p - 1
	}

	rows, err := ds.CompleteCases(items)
	if err != nil {
		return nil, fmt.Errorf("cluster analysis: %w", err)
	}
	n := len(rows)
	if n < minGroupingN {
		return nil, errors.Newf(errors.CodeInsufficientData,
			"cluster analysis has %d complete cases, need at least %d", n, minGroupingN)
	}

	raw := make([][]float64, p)
	data := mat.NewDense(n, p, nil)
	for j, item := range items {
		col := ds.Gather(item, rows)
		raw[j] = col
		m, sd := meanStd(col)
		if sd == 0 {
			return nil, errors.Newf(errors.CodeDegenerate,
				"item %q has zero variance over complete cases", item)
		}
		for i, v := range col {
			data.Set(i, j, (v-m)/sd)
		}
	}

	points, err := itemCoordinates(data, n, p)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(kmeansSeed))
	bestK, bestSil := 0, math.Inf(-1)
	bestCombined := math.Inf(-1)
	var bestLabels []int
	anyQualified := false
	for k := g.minK; k <= maxK; k++ {
		labels := kmeans(points, k, rng)
		sil := silhouette(points, labels, k)
		smallest := smallestCluster(labels, k)
		qualified := smallest >= minClusterSize
		combined := sil * float64(smallest) / 5
		g.logger.DebugContext(ctx, "evaluated cluster solution",
			slog.Int("k", k),
			slog.Float64("silhouette", sil),
			slog.Int("smallest_cluster", smallest))

		switch {
		case qualified && (!anyQualified || combined > bestCombined):
			anyQualified = true
			bestK, bestSil, bestCombined, bestLabels = k, sil, combined, labels
		case !anyQualified && sil > bestSil:
			bestK, bestSil, bestLabels = k, sil, labels
		}
	}

	grouping := &Grouping{
		Items:       items,
		Assignments: make([]int, p),
		K:           bestK,
		Silhouette:  bestSil,
		N:           n,
		MeanRating:  make([]float64, bestK),
		Rows:        rows,
	}
	for j, c := range bestLabels {
		grouping.Assignments[j] = c + 1
	}

	// Cluster composites are plain means of the raw member items, so
	// they stay on the original rating scale.
	grouping.Scores = make([][]float64, n)
	counts := make([]int, bestK)
	for i := 0; i < n; i++ {
		grouping.Scores[i] = make([]float64, bestK)
	}
	for j, c := range bestLabels {
		counts[c]++
		for i := 0; i < n; i++ {
			grouping.Scores[i][c] += raw[j][i]
		}
	}
	for c := 0; c < bestK; c++ {
		var total float64
		for i := 0; i < n; i++ {
			grouping.Scores[i][c] /= float64(counts[c])
			total += grouping.Scores[i][c]
		}
		grouping.MeanRating[c] = total / float64(n)
	}

	g.logger.InfoContext(ctx, "clustered survey items",
		slog.Int("items", p),
		slog.Int("clusters", bestK),
		slog.Int("n", n),
		slog.Float64("silhouette", bestSil))
	return grouping, nil
}

// AttachScores writes the cluster composite scores onto the dataset as
// numeric columns named prefix1..prefixK, NaN on incomplete rows.
func (g *Grouping) AttachScores(ds *dataset.Dataset, prefix string) error {
	for c := 0; c < g.K; c++ {
		col := make([]float64, ds.Len())
		for i := range col {
			col[i] = math.NaN()
		}
		for i, row := range g.Rows {
			col[row] = g.Scores[i][c]
		}
		name := fmt.Sprintf("%s%d", prefix, c+1)
		if err := ds.AddNumeric(name, col); err != nil {
			return fmt.Errorf("attach cluster scores: %w", err)
		}
	}
	return nil
}

// itemCoordinates projects each item's standardized response pattern
// onto the leading principal components. Item j lands at
// V[j,f] * sigma[f], which preserves the inter-item distances that
// matter while capping the dimension.
func itemCoordinates(data *mat.Dense, n, p int) ([][]float64, error) {
	var svd mat.SVD
	if ok := svd.Factorize(data, mat.SVDThin); !ok {
		return nil, errors.Newf(errors.CodeDegenerate, "svd failed to converge")
	}
	var v mat.Dense
	svd.VTo(&v)
	sigma := svd.Values(nil)

	c := maxComponents
	if p < c {
		c = p
	}
	if n < c {
		c = n
	}
	points := make([][]float64, p)
	for j := 0; j < p; j++ {
		points[j] = make([]float64, c)
		for f := 0; f < c; f++ {
			points[j][f] = v.At(j, f) * sigma[f]
		}
	}
	return points, nil
}

// kmeans runs Lloyd's algorithm with k-means++ seeding over several
// restarts and returns the labeling with the lowest within-cluster sum
// of squares.
func kmeans(points [][]float64, k int, rng *rand.Rand) []int {
	bestLabels := make([]int, len(points))
	bestCost := math.Inf(1)
	for r := 0; r < kmeansRestarts; r++ {
		labels, cost := lloyd(points, k, rng)
		if cost < bestCost {
			bestCost = cost
			copy(bestLabels, labels)
		}
	}
	return bestLabels
}

func lloyd(points [][]float64, k int, rng *rand.Rand) ([]int, float64) {
	centroids := seedPlusPlus(points, k, rng)
	labels := make([]int, len(points))
	dim := len(points[0])

	for iter := 0; iter < kmeansMaxIter; iter++ {
		changed := false
		for i, pt := range points {
			best, bestD := 0, math.Inf(1)
			for c := range centroids {
				if d := sqDist(pt, centroids[c]); d < bestD {
					best, bestD = c, d
				}
			}
			if labels[i] != best {
				labels[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		counts := make([]int, k)
		for c := range centroids {
			for f := 0; f < dim; f++ {
				centroids[c][f] = 0
			}
		}
		for i, pt := range points {
			c := labels[i]
			counts[c]++
			for f, v := range pt {
				centroids[c][f] += v
			}
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				// Revive an empty cluster at the point farthest
				// from its current centroid.
				far, farD := 0, -1.0
				for i, pt := range points {
					if d := sqDist(pt, centroids[labels[i]]); d > farD {
						far, farD = i, d
					}
				}
				copy(centroids[c], points[far])
				continue
			}
			for f := 0; f < dim; f++ {
				centroids[c][f] /= float64(counts[c])
			}
		}
	}

	var cost float64
	for i, pt := range points {
		cost += sqDist(pt, centroids[labels[i]])
	}
	return labels, cost
}

func seedPlusPlus(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	first := points[rng.Intn(len(points))]
	centroids = append(centroids, append([]float64(nil), first...))

	dists := make([]float64, len(points))
	for len(centroids) < k {
		var total float64
		for i, pt := range points {
			d := math.Inf(1)
			for _, c := range centroids {
				if dd := sqDist(pt, c); dd < d {
					d = dd
				}
			}
			dists[i] = d
			total += d
		}
		target := rng.Float64() * total
		chosen := len(points) - 1
		var acc float64
		for i, d := range dists {
			acc += d
			if acc >= target {
				chosen = i
				break
			}
		}
		centroids = append(centroids, append([]float64(nil), points[chosen]...))
	}
	return centroids
}

// silhouette is the mean silhouette width over all points: (b-a)/max(a,b)
// with a the mean intra-cluster distance and b the smallest mean
// distance to another cluster. Singleton clusters contribute zero.
func silhouette(points [][]float64, labels []int, k int) float64 {
	n := len(points)
	sizes := make([]int, k)
	for _, c := range labels {
		sizes[c]++
	}

	var total float64
	sums := make([]float64, k)
	for i := 0; i < n; i++ {
		for c := range sums {
			sums[c] = 0
		}
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			sums[labels[j]] += math.Sqrt(sqDist(points[i], points[j]))
		}
		own := labels[i]
		if sizes[own] < 2 {
			continue
		}
		a := sums[own] / float64(sizes[own]-1)
		b := math.Inf(1)
		for c := 0; c < k; c++ {
			if c == own || sizes[c] == 0 {
				continue
			}
			if m := sums[c] / float64(sizes[c]); m < b {
				b = m
			}
		}
		if max := math.Max(a, b); max > 0 {
			total += (b - a) / max
		}
	}
	return total / float64(n)
}

func smallestCluster(labels []int, k int) int {
	sizes := make([]int, k)
	for _, c := range labels {
		sizes[c]++
	}
	smallest := sizes[0]
	for _, s := range sizes[1:] {
		if s < smallest {
			smallest = s
		}
	}
	return smallest
}

func sqDist(a, b []float64) float64 {
	var s float64
	for f := range a {
		d := a[f] - b[f]
		s += d * d
	}
	return s
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
