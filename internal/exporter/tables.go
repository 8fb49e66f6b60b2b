package exporter

import (
	"fmt"

	"surveykit/internal/clusters"
	"surveykit/internal/factors"
	"surveykit/internal/mediation"
	"surveykit/internal/pathmodel"
	"surveykit/internal/pipeline"
	"surveykit/internal/segments"
	"surveykit/internal/survey"
)

// Table is one result table ready for CSV or workbook output.
type Table struct {
	Name    string
	Headers []string
	Records [][]string
}

// PathTable lays out every edge coefficient of a fit, one row per
// predictor, with significance stars. Edges that did not produce
// estimates still appear with their status so gaps are visible.
func PathTable(fit *pathmodel.FitResult) Table {
	t := Table{
		Name: "path_coefficients",
		Headers: []string{
			"model", "outcome", "predictor", "beta", "se", "stat",
			"p_value", "sig", "n", "r_squared", "status", "flags",
		},
	}
	for _, edge := range fit.Edges {
		if edge.Status != pathmodel.StatusOK {
			t.Records = append(t.Records, []string{
				fit.ModelName, edge.Outcome, "", "", "", "", "", "",
				formatInt(edge.N), "", string(edge.Status), "",
			})
			continue
		}
		for _, c := range edge.Coefficients {
			flags := ""
			if c.Degenerate {
				flags = "degenerate"
			} else if edge.Penalized {
				flags = "penalized"
			}
			beta, se, stat, p, sig := formatFloat(c.Beta), "", "", "", ""
			if !edge.Penalized && !c.Degenerate {
				se = formatFloat(c.SE)
				stat = formatFloat(c.Stat)
				p = formatFloat(c.PValue)
				sig = significanceStars(c.PValue)
			}
			if c.Degenerate {
				beta = ""
			}
			t.Records = append(t.Records, []string{
				fit.ModelName, edge.Outcome, c.Predictor, beta, se, stat,
				p, sig, formatInt(edge.N), formatFloat(edge.RSquared),
				string(edge.Status), flags,
			})
		}
	}
	return t
}

// MediationTable lays out effect decompositions, one row per chain.
// Chains without estimates still get a row carrying their status.
func MediationTable(results []mediation.Result) Table {
	t := Table{
		Name: "mediation",
		Headers: []string{
			"chain", "n", "path_a", "se_a", "path_b", "se_b", "direct",
			"indirect", "total", "percent_mediated", "sobel_z",
			"sobel_p", "sig", "suppression", "status",
		},
	}
	for _, r := range results {
		if r.Status != pathmodel.StatusOK {
			t.Records = append(t.Records, []string{
				r.Chain, formatInt(r.N), "", "", "", "", "", "", "",
				"", "", "", "", "", string(r.Status),
			})
			continue
		}
		pct := ""
		if r.PercentDefined {
			pct = formatFloat(r.PercentMediated)
		}
		t.Records = append(t.Records, []string{
			r.Chain, formatInt(r.N),
			formatFloat(r.PathA), formatFloat(r.SEA),
			formatFloat(r.PathB), formatFloat(r.SEB),
			formatFloat(r.Direct), formatFloat(r.Indirect),
			formatFloat(r.Total), pct,
			formatFloat(r.SobelZ), formatFloat(r.SobelP),
			significanceStars(r.SobelP), formatBool(r.Suppression),
			string(r.Status),
		})
	}
	return t
}

// SegmentTable flattens stratified refits into a comparison table,
// one row per segment × outcome × predictor.
func SegmentTable(results []segments.SegmentResult) Table {
	t := Table{
		Name: "segment_comparison",
		Headers: []string{
			"segment", "segment_n", "outcome", "predictor", "beta",
			"se", "p_value", "sig", "status",
		},
	}
	for _, sr := range results {
		for _, edge := range sr.Fit.Edges {
			if edge.Status != pathmodel.StatusOK {
				t.Records = append(t.Records, []string{
					sr.Segment, formatInt(sr.N), edge.Outcome, "", "",
					"", "", "", string(edge.Status),
				})
				continue
			}
			for _, c := range edge.Coefficients {
				t.Records = append(t.Records, []string{
					sr.Segment, formatInt(sr.N), edge.Outcome,
					c.Predictor, formatFloat(c.Beta), formatFloat(c.SE),
					formatFloat(c.PValue), significanceStars(c.PValue),
					string(edge.Status),
				})
			}
		}
	}
	return t
}

// FitIndicesTable lays out explained variance per model variant and
// outcome.
func FitIndicesTable(indices []pipeline.FitIndex) Table {
	t := Table{
		Name:    "fit_indices",
		Headers: []string{"model", "outcome", "n", "r_squared", "adj_r_squared", "status"},
	}
	for _, fi := range indices {
		r2, adj := "", ""
		if fi.Status == pathmodel.StatusOK {
			r2 = formatFloat(fi.RSquared)
			adj = formatFloat(fi.AdjRSquared)
		}
		t.Records = append(t.Records, []string{
			fi.Model, fi.Outcome, formatInt(fi.N), r2, adj, string(fi.Status),
		})
	}
	return t
}

// ResultTables assembles every table a run produced, in report order.
func ResultTables(res *pipeline.Results) []Table {
	tables := []Table{
		PathTable(res.Model),
		FitIndicesTable(res.FitIndices),
		ReliabilityTable(res.Reliability),
	}
	if len(res.Mediation) > 0 {
		tables = append(tables, MediationTable(res.Mediation))
	}
	if len(res.Segments) > 0 {
		tables = append(tables, SegmentTable(res.Segments))
	}
	if res.Factors != nil {
		tables = append(tables, LoadingsTable(res.Factors))
	}
	if res.Clusters != nil {
		tables = append(tables, ClusterTable(res.Clusters))
	}
	return tables
}

// ReliabilityTable lays out Cronbach's alpha per composite.
func ReliabilityTable(results []survey.ReliabilityResult) Table {
	t := Table{
		Name:    "reliability",
		Headers: []string{"index", "alpha", "n", "items", "acceptable"},
	}
	for _, r := range results {
		t.Records = append(t.Records, []string{
			r.Index, formatFloat(r.Alpha), formatInt(r.N),
			formatInt(r.Items), formatBool(r.Acceptable),
		})
	}
	return t
}

// ClusterTable lays out the benefit cluster assignments, one row per
// item, plus a summary row per cluster with its mean rating.
func ClusterTable(g *clusters.Grouping) Table {
	t := Table{
		Name:    "benefit_clusters",
		Headers: []string{"item", "cluster", "cluster_mean", "silhouette", "n"},
	}
	for j, item := range g.Items {
		t.Records = append(t.Records, []string{
			item, formatInt(g.Assignments[j]), "", "", "",
		})
	}
	for c := 0; c < g.K; c++ {
		t.Records = append(t.Records, []string{
			"", formatInt(c + 1), formatFloat(g.MeanRating[c]),
			formatFloat(g.Silhouette), formatInt(g.N),
		})
	}
	return t
}

// LoadingsTable lays out a factor solution, one row per item plus a
// variance-explained footer row per factor column.
func LoadingsTable(sol *factors.Solution) Table {
	headers := []string{"item"}
	for f := 1; f <= sol.Factors; f++ {
		headers = append(headers, fmt.Sprintf("factor%d", f))
	}
	t := Table{Name: "factor_loadings", Headers: headers}
	for j, item := range sol.Items {
		row := []string{item}
		for f := 0; f < sol.Factors; f++ {
			row = append(row, formatFloat(sol.Loadings[j][f]))
		}
		t.Records = append(t.Records, row)
	}
	footer := []string{"variance_explained"}
	for f := 0; f < sol.Factors; f++ {
		footer = append(footer, formatFloat(sol.VarianceExplained[f]))
	}
	t.Records = append(t.Records, footer)
	return t
}
