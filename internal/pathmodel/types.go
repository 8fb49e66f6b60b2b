package pathmodel

import "fmt"

// Link selects the outcome link function for an edge's regression.
type Link string

const (
	// LinkIdentity fits ordinary least squares.
	LinkIdentity Link = "identity"
	// LinkLogit fits logistic regression, for binarized top-box outcomes.
	LinkLogit Link = "logit"
)

// PenaltyKind selects the regularization strategy for an edge.
type PenaltyKind string

const (
	PenaltyNone       PenaltyKind = "none"
	PenaltyL1         PenaltyKind = "l1"
	PenaltyL2         PenaltyKind = "l2"
	PenaltyElasticNet PenaltyKind = "elasticnet"
)

// Penalty configures regularization. Lambda is the overall strength;
// L1Ratio splits elastic-net between the L1 and L2 terms (1 = pure
// lasso, 0 = pure ridge).
type Penalty struct {
	Kind    PenaltyKind `yaml:"kind" json:"kind"`
	Lambda  float64     `yaml:"lambda" json:"lambda"`
	L1Ratio float64     `yaml:"l1_ratio" json:"l1_ratio"`
}

// EdgeSpec declares one regression in the path model: an outcome and
// the predictors fit jointly against it. Multiple predictors are a
// single multiple regression, so each effect is net of the others.
type EdgeSpec struct {
	Outcome    string   `yaml:"outcome" json:"outcome" validate:"required"`
	Predictors []string `yaml:"predictors" json:"predictors" validate:"min=1"`
	Link       Link     `yaml:"link" json:"link"`
	Penalty    Penalty  `yaml:"penalty" json:"penalty"`
}

// ModelSpec is an ordered set of edges sharing variables.
type ModelSpec struct {
	Name  string     `yaml:"name" json:"name"`
	Edges []EdgeSpec `yaml:"edges" json:"edges"`
}

// FitStatus reports how an edge fit concluded.
type FitStatus string

const (
	// StatusOK means the edge produced valid estimates.
	StatusOK FitStatus = "ok"
	// StatusInsufficientData means the complete-case sample fell below
	// the configured floor; no estimates are reported.
	StatusInsufficientData FitStatus = "insufficient_data"
	// StatusDegenerate means the outcome had zero variance (or, for a
	// logit edge, a single class); no estimates are reported.
	StatusDegenerate FitStatus = "degenerate"
)

// Coefficient is one predictor's fitted standardized effect. Beta is in
// standard-deviation units of predictor and outcome, so coefficients
// are comparable across edges with different raw scales. A Degenerate
// coefficient marks a zero-variance predictor that was excluded rather
// than allowed to propagate NaN.
type Coefficient struct {
	Predictor  string  `json:"predictor"`
	Beta       float64 `json:"beta"`
	SE         float64 `json:"se"`
	Stat       float64 `json:"stat"`
	PValue     float64 `json:"p_value"`
	Degenerate bool    `json:"degenerate,omitempty"`
}

// EdgeResult holds one edge's fitted estimates.
type EdgeResult struct {
	Outcome      string        `json:"outcome"`
	Link         Link          `json:"link"`
	Status       FitStatus     `json:"status"`
	N            int           `json:"n"`
	RSquared     float64       `json:"r_squared"`
	AdjRSquared  float64       `json:"adj_r_squared"`
	Coefficients []Coefficient `json:"coefficients"`

	// Penalized marks shrunk estimates; classical standard errors and
	// p-values are not valid under a penalty and are left zero.
	Penalized bool `json:"penalized,omitempty"`
}

// Coefficient looks up a predictor's coefficient on this edge.
func (e EdgeResult) Coefficient(predictor string) (Coefficient, bool) {
	for _, c := range e.Coefficients {
		if c.Predictor == predictor {
			return c, true
		}
	}
	return Coefficient{}, false
}

// FitResult is the fitted path model: a set of independent regressions,
// not a joint simultaneous-equation estimation.
type FitResult struct {
	ModelName string       `json:"model_name"`
	Edges     []EdgeResult `json:"edges"`
}

// Edge returns the first fitted edge with the given outcome.
func (f FitResult) Edge(outcome string) (EdgeResult, bool) {
	for _, e := range f.Edges {
		if e.Outcome == outcome {
			return e, true
		}
	}
	return EdgeResult{}, false
}

// String implements fmt.Stringer for log output.
func (f FitResult) String() string {
	return fmt.Sprintf("fit(%s, %d edges)", f.ModelName, len(f.Edges))
}
