package pathmodel

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"surveykit/internal/dataset"
	"surveykit/internal/errors"
)

// column is one standardized predictor column on an edge's
// complete-case sample.
type column struct {
	name   string
	values []float64
}

// Fitter fits path models: ordered sets of independent regressions over
// shared variables. Each edge uses listwise deletion over its own
// variable subset, so different edges may draw on different rows.
type Fitter struct {
	minSample int
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewFitter creates a fitter with the given complete-case floor.
func NewFitter(minSample int, logger *slog.Logger) *Fitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fitter{
		minSample: minSample,
		logger:    logger,
		tracer:    otel.Tracer("surveykit/pathmodel"),
	}
}

// MinSample returns the configured complete-case floor.
func (f *Fitter) MinSample() int { return f.minSample }

// Fit validates the spec and fits every edge. Configuration errors are
// returned before any fitting starts; data-quality conditions are
// reported per edge via FitStatus and never abort sibling edges.
func (f *Fitter) Fit(ctx context.Context, ds *dataset.Dataset, spec ModelSpec) (*FitResult, error) {
	if err := Validate(ds, spec); err != nil {
		return nil, fmt.Errorf("validate model %q: %w", spec.Name, err)
	}

	ctx, span := f.tracer.Start(ctx, "pathmodel.Fit",
		trace.WithAttributes(
			attribute.String("model", spec.Name),
			attribute.Int("edges", len(spec.Edges)),
		))
	defer span.End()

	result := &FitResult{ModelName: spec.Name, Edges: make([]EdgeResult, 0, len(spec.Edges))}
	for _, edge := range spec.Edges {
		result.Edges = append(result.Edges, f.fitEdge(ctx, ds, edge))
	}

	f.logger.InfoContext(ctx, "fitted path model",
		slog.String("model", spec.Name),
		slog.Int("edges", len(result.Edges)))
	return result, nil
}

func (f *Fitter) fitEdge(ctx context.Context, ds *dataset.Dataset, edge EdgeSpec) EdgeResult {
	ctx, span := f.tracer.Start(ctx, "pathmodel.fitEdge",
		trace.WithAttributes(attribute.String("outcome", edge.Outcome)))
	defer span.End()

	link := edge.Link
	if link == "" {
		link = LinkIdentity
	}

	result := EdgeResult{Outcome: edge.Outcome, Link: link}

	vars := append([]string{edge.Outcome}, edge.Predictors...)
	rows, err := ds.CompleteCases(vars)
	if err != nil {
		// Unreachable after Validate; kept as a guard.
		result.Status = StatusDegenerate
		return result
	}
	result.N = len(rows)

	if len(rows) < f.minSample {
		result.Status = StatusInsufficientData
		f.logger.WarnContext(ctx, "edge has insufficient data",
			slog.String("outcome", edge.Outcome),
			slog.Int("n", len(rows)),
			slog.Int("floor", f.minSample))
		return result
	}

	y := ds.Gather(edge.Outcome, rows)
	meanY, stdY := stat.MeanStdDev(y, nil)
	if stdY == 0 {
		result.Status = StatusDegenerate
		f.logger.WarnContext(ctx, "edge outcome has zero variance",
			slog.String("outcome", edge.Outcome))
		return result
	}

	// Standardize per edge on its complete-case sample. Zero-variance
	// predictors are excluded and reported as explicitly degenerate
	// coefficients rather than letting NaN propagate.
	var active []column
	degenerate := make(map[string]bool)
	for _, p := range edge.Predictors {
		vals := ds.Gather(p, rows)
		m, s := stat.MeanStdDev(vals, nil)
		if s == 0 {
			degenerate[p] = true
			continue
		}
		z := make([]float64, len(vals))
		for i, v := range vals {
			z[i] = (v - m) / s
		}
		active = append(active, column{name: p, values: z})
	}

	if len(active) == 0 {
		result.Status = StatusDegenerate
		for _, p := range edge.Predictors {
			result.Coefficients = append(result.Coefficients, Coefficient{Predictor: p, Degenerate: true})
		}
		return result
	}

	x := mat.NewDense(len(rows), len(active), nil)
	for j, col := range active {
		for i, v := range col.values {
			x.Set(i, j, v)
		}
	}

	// Identity outcomes are z-scored so betas land in SD units; logit
	// outcomes stay {0,1} and betas are per predictor-SD log-odds.
	yFit := y
	if link == LinkIdentity {
		yFit = make([]float64, len(y))
		for i, v := range y {
			yFit[i] = (v - meanY) / stdY
		}
	}

	penalized := edge.Penalty.Kind != "" && edge.Penalty.Kind != PenaltyNone
	var fitErr error
	switch {
	case penalized:
		fitErr = f.applyPenalized(x, yFit, link, edge.Penalty, active, &result)
	case link == LinkLogit:
		fitErr = applyLogit(x, yFit, active, &result)
	default:
		fitErr = applyOLS(x, yFit, active, &result)
	}
	if fitErr != nil {
		result.Status = statusFromError(fitErr)
		f.logger.WarnContext(ctx, "edge fit failed",
			slog.String("outcome", edge.Outcome),
			slog.String("error", fitErr.Error()))
		return result
	}

	for _, p := range edge.Predictors {
		if degenerate[p] {
			result.Coefficients = append(result.Coefficients, Coefficient{Predictor: p, Degenerate: true})
		}
	}

	result.Status = StatusOK
	return result
}

func applyOLS(x *mat.Dense, y []float64, active []column, result *EdgeResult) error {
	fit, err := fitOLS(x, y)
	if err != nil {
		return err
	}
	n, p := x.Dims()
	dof := n - p - 1
	for j, col := range active {
		t := fit.coefs[j] / fit.se[j]
		result.Coefficients = append(result.Coefficients, Coefficient{
			Predictor: col.name,
			Beta:      fit.coefs[j],
			SE:        fit.se[j],
			Stat:      t,
			PValue:    tPValue(t, dof),
		})
	}
	result.RSquared = fit.r2
	result.AdjRSquared = fit.adjR2
	return nil
}

func applyLogit(x *mat.Dense, y []float64, active []column, result *EdgeResult) error {
	fit, err := fitLogit(x, y)
	if err != nil {
		return err
	}
	for j, col := range active {
		z := fit.coefs[j] / fit.se[j]
		result.Coefficients = append(result.Coefficients, Coefficient{
			Predictor: col.name,
			Beta:      fit.coefs[j],
			SE:        fit.se[j],
			Stat:      z,
			PValue:    normalPValue(z),
		})
	}
	result.RSquared = fit.pseudoR2
	result.AdjRSquared = fit.pseudoR2
	return nil
}

func (f *Fitter) applyPenalized(x *mat.Dense, y []float64, link Link, pen Penalty, active []column, result *EdgeResult) error {
	coefs, err := fitPenalized(x, y, link, pen)
	if err != nil {
		return err
	}
	for j, col := range active {
		result.Coefficients = append(result.Coefficients, Coefficient{
			Predictor: col.name,
			Beta:      coefs[j],
		})
	}
	result.Penalized = true
	if link == LinkIdentity {
		result.RSquared = penalizedR2(x, y, coefs)
	}
	return nil
}

// penalizedR2 computes in-sample R² of the shrunk fit on standardized data.
func penalizedR2(x *mat.Dense, y []float64, coefs []float64) float64 {
	n, _ := x.Dims()
	var rss, tss float64
	for i := 0; i < n; i++ {
		r := y[i] - xBeta(x, i, coefs)
		rss += r * r
		tss += y[i] * y[i] // y is z-scored, mean 0
	}
	if tss == 0 {
		return math.NaN()
	}
	return 1 - rss/tss
}

func statusFromError(err error) FitStatus {
	if errors.CodeOf(err) == errors.CodeInsufficientData {
		return StatusInsufficientData
	}
	return StatusDegenerate
}
