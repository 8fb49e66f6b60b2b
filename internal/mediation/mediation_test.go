package mediation

import (
	"log/slog"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surveykit/internal/dataset"
	"surveykit/internal/pathmodel"
)

// chainData simulates X → M → Y with tunable path strengths and a
// direct X → Y path. Noise is standard normal so standardized
// coefficients land near the generating values.
func chainData(t *testing.T, n int, a, b, direct float64, seed int64) *dataset.Dataset {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	x := make([]float64, n)
	m := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = rng.NormFloat64()
		m[i] = a*x[i] + rng.NormFloat64()
		y[i] = b*m[i] + direct*x[i] + rng.NormFloat64()
	}
	ds := dataset.New(n)
	require.NoError(t, ds.AddNumeric("familiarity", x))
	require.NoError(t, ds.AddNumeric("opinion", m))
	require.NoError(t, ds.AddNumeric("likelihood", y))
	return ds
}

func newAnalyzer() *Analyzer {
	fitter := pathmodel.NewFitter(30, slog.Default())
	return NewAnalyzer(fitter, slog.Default())
}

func TestAnalyzeDetectsIndirectEffect(t *testing.T) {
	ds := chainData(t, 500, 0.5, 0.5, 0.2, 1)
	spec := Spec{Predictor: "familiarity", Mediator: "opinion", Outcome: "likelihood"}

	res, err := newAnalyzer().Analyze(t.Context(), ds, spec)
	require.NoError(t, err)

	assert.Equal(t, 500, res.N)
	assert.InDelta(t, 0.45, res.PathA, 0.1)
	assert.Greater(t, res.Indirect, 0.1)
	assert.Less(t, res.SobelP, 0.01, "indirect path should be significant at n=500")
	assert.True(t, res.Significant)
	assert.False(t, res.Suppression)
	assert.True(t, res.PercentDefined)
	assert.InDelta(t, res.Total, res.Direct+res.Indirect, 1e-12)
}

func TestAnalyzeNullIndirectEffect(t *testing.T) {
	// X does not move M, so a ≈ 0 and the Sobel test should not fire.
	ds := chainData(t, 500, 0, 0.5, 0.4, 2)
	spec := Spec{Predictor: "familiarity", Mediator: "opinion", Outcome: "likelihood"}

	res, err := newAnalyzer().Analyze(t.Context(), ds, spec)
	require.NoError(t, err)

	assert.InDelta(t, 0, res.PathA, 0.1)
	assert.Greater(t, res.SobelP, 0.05)
	assert.False(t, res.Significant)
}

func TestAnalyzeFlagsSuppression(t *testing.T) {
	// Positive indirect path against a negative direct path yields
	// percent mediated outside [0,100]; it must be reported unclamped.
	ds := chainData(t, 500, 0.6, 0.6, -0.25, 3)
	spec := Spec{Predictor: "familiarity", Mediator: "opinion", Outcome: "likelihood"}

	res, err := newAnalyzer().Analyze(t.Context(), ds, spec)
	require.NoError(t, err)

	assert.True(t, res.Suppression)
	assert.True(t, res.PercentDefined)
	assert.True(t, res.PercentMediated < 0 || res.PercentMediated > 100,
		"percent mediated %.2f should fall outside [0,100]", res.PercentMediated)
}

func TestAnalyzeWithCovariates(t *testing.T) {
	ds := chainData(t, 400, 0.5, 0.5, 0.2, 4)
	rng := rand.New(rand.NewSource(5))
	cov := make([]float64, 400)
	for i := range cov {
		cov[i] = rng.NormFloat64()
	}
	require.NoError(t, ds.AddNumeric("consideration", cov))

	spec := Spec{
		Predictor:  "familiarity",
		Mediator:   "opinion",
		Outcome:    "likelihood",
		Covariates: []string{"consideration"},
	}
	res, err := newAnalyzer().Analyze(t.Context(), ds, spec)
	require.NoError(t, err)
	assert.Less(t, res.SobelP, 0.01)
}

func TestAnalyzeInsufficientDataIsFlagged(t *testing.T) {
	ds := chainData(t, 10, 0.5, 0.5, 0.2, 6)
	spec := Spec{Predictor: "familiarity", Mediator: "opinion", Outcome: "likelihood"}

	res, err := newAnalyzer().Analyze(t.Context(), ds, spec)
	require.NoError(t, err)
	assert.Equal(t, pathmodel.StatusInsufficientData, res.Status)
	assert.Equal(t, 10, res.N)
	assert.Zero(t, res.Indirect, "flagged chains carry no estimates")
	assert.False(t, res.PercentDefined)
}

func TestAnalyzeDegenerateMediator(t *testing.T) {
	n := 100
	rng := rand.New(rand.NewSource(7))
	x := make([]float64, n)
	m := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = rng.NormFloat64()
		m[i] = 3 // constant mediator
		y[i] = 0.5*x[i] + rng.NormFloat64()
	}
	ds := dataset.New(n)
	require.NoError(t, ds.AddNumeric("x", x))
	require.NoError(t, ds.AddNumeric("m", m))
	require.NoError(t, ds.AddNumeric("y", y))

	res, err := newAnalyzer().Analyze(t.Context(), ds,
		Spec{Predictor: "x", Mediator: "m", Outcome: "y"})
	require.NoError(t, err)
	assert.Equal(t, pathmodel.StatusDegenerate, res.Status)
}

func TestAnalyzeAllConfigurationErrorFails(t *testing.T) {
	ds := chainData(t, 300, 0.5, 0.5, 0.2, 8)
	specs := []Spec{
		{Predictor: "familiarity", Mediator: "opinion", Outcome: "likelihood"},
		{Predictor: "familiarity", Mediator: "missing_var", Outcome: "likelihood"},
	}

	results, err := newAnalyzer().AnalyzeAll(t.Context(), ds, specs)
	// The second chain references an unknown column, which is a
	// configuration error and must surface rather than be skipped.
	require.Error(t, err)
	assert.Nil(t, results)

	results, err = newAnalyzer().AnalyzeAll(t.Context(), ds, specs[:1])
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "familiarity → opinion → likelihood", results[0].Chain)
}

func TestAnalyzeAllKeepsFlaggedSiblings(t *testing.T) {
	// The likelihood outcome has holes everywhere except the first few
	// rows, so its chain falls below the floor while the sibling chain
	// over consideration stays healthy.
	n := 200
	rng := rand.New(rand.NewSource(10))
	x := make([]float64, n)
	m := make([]float64, n)
	y := make([]float64, n)
	cons := make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = rng.NormFloat64()
		m[i] = 0.5*x[i] + rng.NormFloat64()
		cons[i] = 0.5*m[i] + rng.NormFloat64()
		if i < 10 {
			y[i] = 0.5*m[i] + rng.NormFloat64()
		} else {
			y[i] = math.NaN()
		}
	}
	ds := dataset.New(n)
	require.NoError(t, ds.AddNumeric("familiarity", x))
	require.NoError(t, ds.AddNumeric("opinion", m))
	require.NoError(t, ds.AddNumeric("consideration", cons))
	require.NoError(t, ds.AddNumeric("likelihood", y))

	specs := []Spec{
		{Predictor: "familiarity", Mediator: "opinion", Outcome: "likelihood"},
		{Predictor: "familiarity", Mediator: "opinion", Outcome: "consideration"},
	}
	results, err := newAnalyzer().AnalyzeAll(t.Context(), ds, specs)
	require.NoError(t, err)
	require.Len(t, results, 2, "undersized chain must appear, not vanish")

	assert.Equal(t, pathmodel.StatusInsufficientData, results[0].Status)
	assert.Equal(t, pathmodel.StatusOK, results[1].Status)
	assert.Less(t, results[1].SobelP, 0.05)
}

func TestTotalEffectMatchesSeparateRegression(t *testing.T) {
	ds := chainData(t, 500, 0.5, 0.5, 0.2, 9)
	spec := Spec{Predictor: "familiarity", Mediator: "opinion", Outcome: "likelihood"}

	res, err := newAnalyzer().Analyze(t.Context(), ds, spec)
	require.NoError(t, err)

	// With standardized variables on the same complete-case sample the
	// total from decomposition tracks the simple X → Y coefficient.
	fitter := pathmodel.NewFitter(30, slog.Default())
	fit, err := fitter.Fit(t.Context(), ds, pathmodel.ModelSpec{
		Name: "total",
		Edges: []pathmodel.EdgeSpec{
			{Outcome: "likelihood", Predictors: []string{"familiarity"}},
		},
	})
	require.NoError(t, err)
	edge, ok := fit.Edge("likelihood")
	require.True(t, ok)
	c, ok := edge.Coefficient("familiarity")
	require.True(t, ok)

	assert.InDelta(t, c.Beta, res.Total, 0.05)
	assert.False(t, math.IsNaN(res.SobelZ))
}
