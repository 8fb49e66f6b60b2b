package pathmodel

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"surveykit/internal/errors"
)

const (
	cdMaxIter = 1000
	cdTol     = 1e-7
)

// fitPenalized runs coordinate descent for the elastic-net objective on
// standardized data:
//
//	(1/2n)·RSS + λ·(r·Σ|β| + (1-r)/2·Σβ²)
//
// with r = 1 for the lasso and r = 0 for ridge. Shrunk estimates carry
// no classical standard errors, so only coefficients are returned.
// For the logit link the quadratic approximation is refreshed between
// sweeps (penalized IRLS).
func fitPenalized(x *mat.Dense, y []float64, link Link, pen Penalty) ([]float64, error) {
	n, p := x.Dims()
	if n < 2 {
		return nil, errors.New(errors.CodeInsufficientData, "penalized fit needs at least 2 rows")
	}

	r := pen.L1Ratio
	switch pen.Kind {
	case PenaltyL1:
		r = 1
	case PenaltyL2:
		r = 0
	}
	l1 := pen.Lambda * r
	l2 := pen.Lambda * (1 - r)

	beta := make([]float64, p)

	if link == LinkLogit {
		return penalizedLogit(x, y, l1, l2)
	}

	// Residuals start at y (standardized, mean zero, so no intercept).
	resid := make([]float64, n)
	copy(resid, y)

	// Column norms for the update denominators.
	colNorm := make([]float64, p)
	for j := 0; j < p; j++ {
		for i := 0; i < n; i++ {
			v := x.At(i, j)
			colNorm[j] += v * v
		}
		colNorm[j] /= float64(n)
	}

	for iter := 0; iter < cdMaxIter; iter++ {
		var maxDelta float64
		for j := 0; j < p; j++ {
			if colNorm[j] == 0 {
				continue
			}
			// Partial residual correlation with column j.
			var rho float64
			for i := 0; i < n; i++ {
				rho += x.At(i, j) * (resid[i] + x.At(i, j)*beta[j])
			}
			rho /= float64(n)

			next := softThreshold(rho, l1) / (colNorm[j] + l2)
			if next != beta[j] {
				delta := next - beta[j]
				for i := 0; i < n; i++ {
					resid[i] -= x.At(i, j) * delta
				}
				if d := math.Abs(delta); d > maxDelta {
					maxDelta = d
				}
				beta[j] = next
			}
		}
		if maxDelta < cdTol {
			break
		}
	}
	return beta, nil
}

// penalizedLogit alternates an IRLS quadratic approximation with
// coordinate-descent sweeps over the weighted least-squares problem.
func penalizedLogit(x *mat.Dense, y []float64, l1, l2 float64) ([]float64, error) {
	n, p := x.Dims()

	var ones, zeros int
	for _, v := range y {
		if v == 1 {
			ones++
		} else {
			zeros++
		}
	}
	if ones == 0 || zeros == 0 {
		return nil, errors.New(errors.CodeDegenerate, "penalized logit: outcome has a single class")
	}

	beta := make([]float64, p)
	intercept := math.Log(float64(ones) / float64(zeros))

	w := make([]float64, n)
	z := make([]float64, n)

	for outer := 0; outer < irlsMaxIter; outer++ {
		for i := 0; i < n; i++ {
			eta := intercept
			for j := 0; j < p; j++ {
				eta += x.At(i, j) * beta[j]
			}
			mu := sigmoid(eta)
			w[i] = mu * (1 - mu)
			if w[i] < weightFloor {
				w[i] = weightFloor
			}
			z[i] = eta + (y[i]-mu)/w[i]
		}

		var sumW, sumWZ float64
		for i := 0; i < n; i++ {
			sumW += w[i]
			sumWZ += w[i] * (z[i] - xBeta(x, i, beta))
		}
		intercept = sumWZ / sumW

		var maxDelta float64
		for j := 0; j < p; j++ {
			var rho, norm float64
			for i := 0; i < n; i++ {
				partial := z[i] - intercept - xBeta(x, i, beta) + x.At(i, j)*beta[j]
				rho += w[i] * x.At(i, j) * partial
				norm += w[i] * x.At(i, j) * x.At(i, j)
			}
			rho /= float64(n)
			norm /= float64(n)
			if norm == 0 {
				continue
			}
			next := softThreshold(rho, l1) / (norm + l2)
			if d := math.Abs(next - beta[j]); d > maxDelta {
				maxDelta = d
			}
			beta[j] = next
		}
		if maxDelta < cdTol {
			break
		}
	}
	return beta, nil
}

func xBeta(x *mat.Dense, row int, beta []float64) float64 {
	var s float64
	for j := range beta {
		s += x.At(row, j) * beta[j]
	}
	return s
}

func softThreshold(v, gamma float64) float64 {
	switch {
	case v > gamma:
		return v - gamma
	case v < -gamma:
		return v + gamma
	default:
		return 0
	}
}
