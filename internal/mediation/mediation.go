// Package mediation decomposes a predictor's effect on an outcome into
// the part carried through a mediator and the part that is direct,
// with Sobel significance testing for the indirect path.
package mediation

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"surveykit/internal/dataset"
	"surveykit/internal/pathmodel"
)

// Spec names a three-node chain X → M → Y. Covariates are included in
// both the mediator and outcome models, matching the convention that
// every upstream funnel variable stays in the full model.
type Spec struct {
	Predictor  string   `yaml:"predictor" json:"predictor" validate:"required"`
	Mediator   string   `yaml:"mediator" json:"mediator" validate:"required"`
	Outcome    string   `yaml:"outcome" json:"outcome" validate:"required"`
	Covariates []string `yaml:"covariates" json:"covariates,omitempty"`
}

// String renders the chain for table output.
func (s Spec) String() string {
	return fmt.Sprintf("%s → %s → %s", s.Predictor, s.Mediator, s.Outcome)
}

// Result holds the decomposition for one chain. Percent mediated is
// reported as-is: values outside [0,100] signal inconsistent mediation
// (suppression) and are flagged, never clamped. Chains whose underlying
// regressions fall below the sample floor or degenerate carry the
// corresponding Status and no estimates, so the result table still
// shows the row.
type Result struct {
	Chain           string              `json:"chain"`
	Status          pathmodel.FitStatus `json:"status"`
	N               int                 `json:"n"`
	PathA           float64             `json:"path_a"`
	SEA             float64             `json:"se_a"`
	PathB           float64             `json:"path_b"`
	SEB             float64             `json:"se_b"`
	Direct          float64             `json:"direct"`
	Indirect        float64             `json:"indirect"`
	Total           float64             `json:"total"`
	PercentMediated float64             `json:"percent_mediated"`
	PercentDefined  bool                `json:"percent_defined"`
	Suppression     bool                `json:"suppression"`
	SobelZ          float64             `json:"sobel_z"`
	SobelP          float64             `json:"sobel_p"`
	Significant     bool                `json:"significant"`
}

// Analyzer runs mediation decompositions on top of the path fitter.
type Analyzer struct {
	fitter *pathmodel.Fitter
	logger *slog.Logger
}

// NewAnalyzer creates an analyzer sharing the pipeline's fitter.
func NewAnalyzer(fitter *pathmodel.Fitter, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{fitter: fitter, logger: logger}
}

// Analyze fits the three regressions of the chain and assembles the
// decomposition:
//
//	a  from M ~ X (+ covariates)
//	b and c′ from Y ~ X + M (+ covariates)
//	total = c′ + a·b, equal to c from Y ~ X up to rounding
func (a *Analyzer) Analyze(ctx context.Context, ds *dataset.Dataset, spec Spec) (Result, error) {
	mediatorPreds := append([]string{spec.Predictor}, spec.Covariates...)
	outcomePreds := append([]string{spec.Predictor, spec.Mediator}, spec.Covariates...)

	model := pathmodel.ModelSpec{
		Name: "mediation " + spec.String(),
		Edges: []pathmodel.EdgeSpec{
			{Outcome: spec.Mediator, Predictors: mediatorPreds},
			{Outcome: spec.Outcome, Predictors: outcomePreds},
		},
	}

	fit, err := a.fitter.Fit(ctx, ds, model)
	if err != nil {
		return Result{}, fmt.Errorf("fit mediation chain %s: %w", spec, err)
	}

	mediatorEdge, _ := fit.Edge(spec.Mediator)
	outcomeEdge, _ := fit.Edge(spec.Outcome)
	for _, edge := range []pathmodel.EdgeResult{mediatorEdge, outcomeEdge} {
		if edge.Status != pathmodel.StatusOK {
			a.logger.WarnContext(ctx, "mediation chain has no estimates",
				slog.String("chain", spec.String()),
				slog.String("edge", edge.Outcome),
				slog.String("status", string(edge.Status)),
				slog.Int("n", edge.N))
			return Result{Chain: spec.String(), Status: edge.Status, N: edge.N}, nil
		}
	}

	pathA, okA := coefficient(mediatorEdge, spec.Predictor)
	pathB, okB := coefficient(outcomeEdge, spec.Mediator)
	direct, okC := coefficient(outcomeEdge, spec.Predictor)
	if !okA || !okB || !okC {
		a.logger.WarnContext(ctx, "mediation chain has a degenerate path",
			slog.String("chain", spec.String()))
		return Result{Chain: spec.String(), Status: pathmodel.StatusDegenerate, N: outcomeEdge.N}, nil
	}

	result := Result{
		Chain:    spec.String(),
		Status:   pathmodel.StatusOK,
		N:        outcomeEdge.N,
		PathA:    pathA.Beta,
		SEA:      pathA.SE,
		PathB:    pathB.Beta,
		SEB:      pathB.SE,
		Direct:   direct.Beta,
		Indirect: pathA.Beta * pathB.Beta,
	}
	result.Total = result.Direct + result.Indirect

	if result.Total != 0 {
		result.PercentMediated = result.Indirect / result.Total * 100
		result.PercentDefined = true
	}
	// Opposite-signed direct and indirect effects are a legitimate
	// suppression outcome; percent mediated then falls outside [0,100].
	result.Suppression = result.Direct*result.Indirect < 0

	sobelSE := math.Sqrt(pathB.Beta*pathB.Beta*pathA.SE*pathA.SE +
		pathA.Beta*pathA.Beta*pathB.SE*pathB.SE)
	if sobelSE > 0 {
		result.SobelZ = result.Indirect / sobelSE
		result.SobelP = 2 * distuv.UnitNormal.CDF(-math.Abs(result.SobelZ))
		result.Significant = result.SobelP < 0.05
	} else {
		result.SobelP = math.NaN()
	}

	a.logger.InfoContext(ctx, "analyzed mediation chain",
		slog.String("chain", result.Chain),
		slog.Float64("indirect", result.Indirect),
		slog.Float64("sobel_p", result.SobelP),
		slog.Bool("suppression", result.Suppression))
	return result, nil
}

// AnalyzeAll runs every chain. Data-quality conditions come back as
// flagged rows, so one undersized or degenerate chain never aborts (or
// hides) its siblings; only configuration errors fail the batch.
func (a *Analyzer) AnalyzeAll(ctx context.Context, ds *dataset.Dataset, specs []Spec) ([]Result, error) {
	results := make([]Result, 0, len(specs))
	for _, spec := range specs {
		res, err := a.Analyze(ctx, ds, spec)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

func coefficient(edge pathmodel.EdgeResult, predictor string) (pathmodel.Coefficient, bool) {
	c, ok := edge.Coefficient(predictor)
	if !ok || c.Degenerate {
		return pathmodel.Coefficient{}, false
	}
	return c, true
}
