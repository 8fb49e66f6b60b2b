package pathmodel

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"surveykit/internal/errors"
)

// olsFit holds raw least-squares output on already-standardized data.
type olsFit struct {
	coefs []float64 // one per predictor column, intercept excluded
	se    []float64
	r2    float64
	adjR2 float64
}

// fitOLS runs ordinary least squares of y on the columns of x, both
// standardized by the caller. An intercept is included in the design
// but not reported: on z-scored data it is zero up to rounding.
func fitOLS(x *mat.Dense, y []float64) (*olsFit, error) {
	n, p := x.Dims()
	dof := n - p - 1
	if dof < 1 {
		return nil, errors.Newf(errors.CodeInsufficientData,
			"ols: %d rows cannot support %d predictors", n, p)
	}

	design := mat.NewDense(n, p+1, nil)
	for i := 0; i < n; i++ {
		design.Set(i, 0, 1)
		for j := 0; j < p; j++ {
			design.Set(i, j+1, x.At(i, j))
		}
	}
	yVec := mat.NewVecDense(n, y)

	var qr mat.QR
	qr.Factorize(design)
	var beta mat.VecDense
	if err := qr.SolveVecTo(&beta, false, yVec); err != nil {
		return nil, errors.Wrap(err, errors.CodeDegenerate, "ols: singular design matrix")
	}

	// Residual variance.
	var fitted mat.VecDense
	fitted.MulVec(design, &beta)
	var rss, tss float64
	meanY := mean(y)
	for i := 0; i < n; i++ {
		r := y[i] - fitted.AtVec(i)
		rss += r * r
		d := y[i] - meanY
		tss += d * d
	}
	if tss == 0 {
		return nil, errors.New(errors.CodeDegenerate, "ols: outcome has zero variance")
	}
	sigma2 := rss / float64(dof)

	// Covariance of the estimates: sigma^2 (X'X)^-1.
	var xtx mat.Dense
	xtx.Mul(design.T(), design)
	var xtxInv mat.Dense
	if err := xtxInv.Inverse(&xtx); err != nil {
		return nil, errors.Wrap(err, errors.CodeDegenerate, "ols: X'X not invertible")
	}

	fit := &olsFit{
		coefs: make([]float64, p),
		se:    make([]float64, p),
		r2:    1 - rss/tss,
	}
	fit.adjR2 = 1 - (1-fit.r2)*float64(n-1)/float64(dof)
	for j := 0; j < p; j++ {
		fit.coefs[j] = beta.AtVec(j + 1)
		fit.se[j] = math.Sqrt(sigma2 * xtxInv.At(j+1, j+1))
	}
	return fit, nil
}

// tPValue returns the two-tailed p-value of a t statistic with dof
// degrees of freedom.
func tPValue(t float64, dof int) float64 {
	if math.IsNaN(t) || dof < 1 {
		return math.NaN()
	}
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(dof)}
	return 2 * dist.CDF(-math.Abs(t))
}

// normalPValue returns the two-tailed p-value of a z statistic.
func normalPValue(z float64) float64 {
	if math.IsNaN(z) {
		return math.NaN()
	}
	return 2 * distuv.UnitNormal.CDF(-math.Abs(z))
}

func mean(xs []float64) float64 {
	var sum float64
	for _, v := range xs {
		sum += v
	}
	return sum / float64(len(xs))
}
