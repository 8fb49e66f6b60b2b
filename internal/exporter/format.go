package exporter

import (
	"fmt"
	"math"
	"strconv"
)

// formatFloat renders a statistic with 4 decimal places, the precision
// analysts expect for standardized coefficients. NaN renders empty.
func formatFloat(f float64) string {
	if math.IsNaN(f) {
		return ""
	}
	return fmt.Sprintf("%.4f", f)
}

func formatInt(i int) string {
	return strconv.Itoa(i)
}

func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// significanceStars maps a p-value to the conventional star notation.
func significanceStars(p float64) string {
	switch {
	case math.IsNaN(p):
		return ""
	case p < 0.001:
		return "***"
	case p < 0.01:
		return "**"
	case p < 0.05:
		return "*"
	default:
		return ""
	}
}
