package pathmodel

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"surveykit/internal/errors"
)

const (
	irlsMaxIter = 50
	irlsTol     = 1e-8
	// weightFloor keeps the IRLS weights away from zero when fitted
	// probabilities saturate.
	weightFloor = 1e-10
)

// logitFit holds logistic regression output. Coefficients are on the
// standardized-predictor scale; the binary outcome is left as {0,1}.
type logitFit struct {
	coefs    []float64
	se       []float64
	pseudoR2 float64 // McFadden
}

// fitLogit runs iteratively reweighted least squares for a binary y on
// standardized predictor columns.
func fitLogit(x *mat.Dense, y []float64) (*logitFit, error) {
	n, p := x.Dims()
	if n <= p+1 {
		return nil, errors.Newf(errors.CodeInsufficientData,
			"logit: %d rows cannot support %d predictors", n, p)
	}

	var ones, zeros int
	for _, v := range y {
		if v == 1 {
			ones++
		} else {
			zeros++
		}
	}
	if ones == 0 || zeros == 0 {
		return nil, errors.New(errors.CodeDegenerate, "logit: outcome has a single class")
	}

	design := mat.NewDense(n, p+1, nil)
	for i := 0; i < n; i++ {
		design.Set(i, 0, 1)
		for j := 0; j < p; j++ {
			design.Set(i, j+1, x.At(i, j))
		}
	}

	beta := make([]float64, p+1)
	eta := make([]float64, n)
	mu := make([]float64, n)
	w := make([]float64, n)
	z := make([]float64, n)

	for iter := 0; iter < irlsMaxIter; iter++ {
		for i := 0; i < n; i++ {
			eta[i] = 0
			for j := 0; j <= p; j++ {
				eta[i] += design.At(i, j) * beta[j]
			}
			mu[i] = sigmoid(eta[i])
			w[i] = mu[i] * (1 - mu[i])
			if w[i] < weightFloor {
				w[i] = weightFloor
			}
			z[i] = eta[i] + (y[i]-mu[i])/w[i]
		}

		// Solve (X'WX) b = X'Wz.
		xtwx := mat.NewDense(p+1, p+1, nil)
		xtwz := mat.NewVecDense(p+1, nil)
		for j := 0; j <= p; j++ {
			for k := j; k <= p; k++ {
				var s float64
				for i := 0; i < n; i++ {
					s += design.At(i, j) * w[i] * design.At(i, k)
				}
				xtwx.Set(j, k, s)
				xtwx.Set(k, j, s)
			}
			var s float64
			for i := 0; i < n; i++ {
				s += design.At(i, j) * w[i] * z[i]
			}
			xtwz.SetVec(j, s)
		}

		var next mat.VecDense
		if err := next.SolveVec(xtwx, xtwz); err != nil {
			return nil, errors.Wrap(err, errors.CodeDegenerate, "logit: weighted design not invertible")
		}

		var delta float64
		for j := 0; j <= p; j++ {
			delta += math.Abs(next.AtVec(j) - beta[j])
			beta[j] = next.AtVec(j)
		}
		if delta < irlsTol {
			break
		}
	}

	// Wald standard errors from the final information matrix.
	xtwx := mat.NewDense(p+1, p+1, nil)
	for i := 0; i < n; i++ {
		mui := sigmoid(dot(design, i, beta))
		wi := mui * (1 - mui)
		if wi < weightFloor {
			wi = weightFloor
		}
		for j := 0; j <= p; j++ {
			for k := j; k <= p; k++ {
				v := xtwx.At(j, k) + design.At(i, j)*wi*design.At(i, k)
				xtwx.Set(j, k, v)
				xtwx.Set(k, j, v)
			}
		}
	}
	var info mat.Dense
	if err := info.Inverse(xtwx); err != nil {
		return nil, errors.Wrap(err, errors.CodeDegenerate, "logit: information matrix not invertible")
	}

	fit := &logitFit{
		coefs: make([]float64, p),
		se:    make([]float64, p),
	}
	for j := 0; j < p; j++ {
		fit.coefs[j] = beta[j+1]
		fit.se[j] = math.Sqrt(info.At(j+1, j+1))
	}

	// McFadden pseudo-R²: 1 - logL / logL_null.
	var logL float64
	for i := 0; i < n; i++ {
		mui := sigmoid(dot(design, i, beta))
		logL += y[i]*math.Log(clampProb(mui)) + (1-y[i])*math.Log(clampProb(1-mui))
	}
	base := float64(ones) / float64(n)
	logLNull := float64(ones)*math.Log(base) + float64(zeros)*math.Log(1-base)
	fit.pseudoR2 = 1 - logL/logLNull

	return fit, nil
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func dot(design *mat.Dense, row int, beta []float64) float64 {
	var s float64
	for j := range beta {
		s += design.At(row, j) * beta[j]
	}
	return s
}

func clampProb(p float64) float64 {
	const eps = 1e-15
	if p < eps {
		return eps
	}
	if p > 1-eps {
		return 1 - eps
	}
	return p
}
