package survey

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"surveykit/internal/errors"
)

// minReliabilityN is the smallest complete-case sample over which alpha
// is computed; below it the statistic is not meaningful.
const minReliabilityN = 10

// ReliabilityResult reports the internal consistency of a composite's
// item set. Advisory output: it is reported alongside results and does
// not gate downstream computation.
type ReliabilityResult struct {
	Index      string  `json:"index"`
	Alpha      float64 `json:"alpha"`
	N          int     `json:"n"`
	Items      int     `json:"items"`
	Acceptable bool    `json:"acceptable"`
}

// CronbachAlpha computes Cronbach's alpha for a composite's items over
// all respondents with complete data on those items (listwise; pairwise
// covariance would not guarantee a consistent matrix). The acceptable
// flag uses the supplied threshold, conventionally 0.7.
func CronbachAlpha(resps []RecodedResponse, idx CompositeIndex, threshold float64) (ReliabilityResult, error) {
	k := len(idx.Items)
	if k < 2 {
		return ReliabilityResult{}, errors.Newf(errors.CodeConfiguration,
			"composite %q needs at least 2 items for reliability, has %d", idx.Name, k)
	}

	// Collect complete cases, column-major per item.
	cols := make([][]float64, k)
	for _, resp := range resps {
		row := make([]float64, k)
		complete := true
		for j, item := range idx.Items {
			v, ok := resp.Numeric(item)
			if !ok {
				complete = false
				break
			}
			row[j] = v
		}
		if !complete {
			continue
		}
		for j := range row {
			cols[j] = append(cols[j], row[j])
		}
	}

	n := len(cols[0])
	result := ReliabilityResult{Index: idx.Name, N: n, Items: k}
	if n < minReliabilityN {
		return result, errors.Newf(errors.CodeInsufficientData,
			"composite %q: only %d complete cases for reliability (need %d)", idx.Name, n, minReliabilityN)
	}

	// alpha = k/(k-1) * (1 - sum(item variances) / var(total score)),
	// with var(total) equal to the sum of all covariance entries.
	var sumVar, totalVar float64
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			c := stat.Covariance(cols[i], cols[j], nil)
			totalVar += c
			if i == j {
				sumVar += c
			}
		}
	}
	if totalVar == 0 || math.IsNaN(totalVar) {
		return result, errors.Newf(errors.CodeDegenerate,
			"composite %q: zero total variance across items", idx.Name)
	}

	result.Alpha = float64(k) / float64(k-1) * (1 - sumVar/totalVar)
	result.Acceptable = result.Alpha >= threshold
	return result, nil
}
