package exporter

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"surveykit/internal/clusters"
	"surveykit/internal/config"
	"surveykit/internal/factors"
	"surveykit/internal/mediation"
	"surveykit/internal/pathmodel"
	"surveykit/internal/segments"
	"surveykit/internal/survey"
)

func sampleFit() *pathmodel.FitResult {
	return &pathmodel.FitResult{
		ModelName: "funnel",
		Edges: []pathmodel.EdgeResult{
			{
				Outcome: "opinion", Status: pathmodel.StatusOK, N: 412,
				RSquared: 0.45,
				Coefficients: []pathmodel.Coefficient{
					{Predictor: "familiarity", Beta: 0.61, SE: 0.04, Stat: 15.2, PValue: 0.0000001},
				},
			},
			{
				Outcome: "likelihood", Status: pathmodel.StatusInsufficientData, N: 12,
			},
		},
	}
}

func TestPathTable(t *testing.T) {
	tbl := PathTable(sampleFit())

	require.Len(t, tbl.Records, 2)
	row := tbl.Records[0]
	assert.Equal(t, "funnel", row[0])
	assert.Equal(t, "opinion", row[1])
	assert.Equal(t, "familiarity", row[2])
	assert.Equal(t, "0.6100", row[3])
	assert.Equal(t, "***", row[7])
	assert.Equal(t, "ok", row[10])

	failed := tbl.Records[1]
	assert.Equal(t, "likelihood", failed[1])
	assert.Equal(t, "insufficient_data", failed[10])
	assert.Empty(t, failed[3], "no beta for a failed edge")
}

func TestPathTablePenalizedOmitsInference(t *testing.T) {
	fit := &pathmodel.FitResult{
		ModelName: "lasso",
		Edges: []pathmodel.EdgeResult{{
			Outcome: "likelihood", Status: pathmodel.StatusOK, N: 300,
			Penalized: true,
			Coefficients: []pathmodel.Coefficient{
				{Predictor: "opinion", Beta: 0.31, PValue: math.NaN()},
			},
		}},
	}
	tbl := PathTable(fit)
	row := tbl.Records[0]
	assert.Equal(t, "0.3100", row[3])
	assert.Empty(t, row[4], "penalized estimates carry no SE")
	assert.Empty(t, row[6], "penalized estimates carry no p-value")
	assert.Equal(t, "penalized", row[11])
}

func TestMediationTable(t *testing.T) {
	results := []mediation.Result{
		{
			Chain: "familiarity → opinion → likelihood", N: 412,
			Status: pathmodel.StatusOK,
			PathA:  0.5, SEA: 0.04, PathB: 0.4, SEB: 0.05,
			Direct: 0.2, Indirect: 0.2, Total: 0.4,
			PercentMediated: 50, PercentDefined: true,
			SobelZ: 5.7, SobelP: 0.000001,
		},
		{
			Chain: "x → m → y", N: 100,
			Status: pathmodel.StatusOK,
			Direct: 0.3, Indirect: -0.1, Total: 0.2,
			PercentMediated: -50, PercentDefined: true,
			Suppression: true, SobelZ: -1.1, SobelP: 0.27,
		},
	}
	tbl := MediationTable(results)
	require.Len(t, tbl.Records, 2)
	assert.Equal(t, "50.0000", tbl.Records[0][9])
	assert.Equal(t, "***", tbl.Records[0][12])
	assert.Equal(t, "-50.0000", tbl.Records[1][9], "suppression percent stays unclamped")
	assert.Equal(t, "true", tbl.Records[1][13])
}

func TestMediationTableKeepsFlaggedChains(t *testing.T) {
	results := []mediation.Result{
		{Chain: "x → m → y", N: 12, Status: pathmodel.StatusInsufficientData},
		{
			Chain: "a → b → c", N: 300, Status: pathmodel.StatusOK,
			PathA: 0.4, SEA: 0.05, PathB: 0.3, SEB: 0.05,
			Direct: 0.1, Indirect: 0.12, Total: 0.22,
			PercentMediated: 54.5, PercentDefined: true,
			SobelZ: 4.2, SobelP: 0.00003,
		},
	}
	tbl := MediationTable(results)
	require.Len(t, tbl.Records, 2, "flagged chain gets a row")

	flagged := tbl.Records[0]
	assert.Equal(t, "x → m → y", flagged[0])
	assert.Equal(t, "12", flagged[1])
	assert.Empty(t, flagged[7], "no indirect estimate on a flagged chain")
	assert.Equal(t, "insufficient_data", flagged[14])
	assert.Equal(t, "ok", tbl.Records[1][14])
}

func TestSegmentAndReliabilityTables(t *testing.T) {
	segs := []segments.SegmentResult{
		{Segment: "Local", N: 200, Fit: sampleFit()},
	}
	segTbl := SegmentTable(segs)
	require.Len(t, segTbl.Records, 2)
	assert.Equal(t, "Local", segTbl.Records[0][0])
	assert.Equal(t, "200", segTbl.Records[0][1])

	relTbl := ReliabilityTable([]survey.ReliabilityResult{
		{Index: "brand_image", Alpha: 0.84, N: 390, Items: 4, Acceptable: true},
	})
	require.Len(t, relTbl.Records, 1)
	assert.Equal(t, []string{"brand_image", "0.8400", "390", "4", "true"}, relTbl.Records[0])
}

func TestLoadingsTable(t *testing.T) {
	sol := &factors.Solution{
		Items:             []string{"img_a", "img_b"},
		Factors:           2,
		Loadings:          [][]float64{{0.9, 0.1}, {0.85, 0.2}},
		VarianceExplained: []float64{0.6, 0.2},
	}
	tbl := LoadingsTable(sol)
	require.Len(t, tbl.Records, 3)
	assert.Equal(t, []string{"item", "factor1", "factor2"}, tbl.Headers)
	assert.Equal(t, "variance_explained", tbl.Records[2][0])
	assert.Equal(t, "0.6000", tbl.Records[2][1])
}

func TestClusterTable(t *testing.T) {
	g := &clusters.Grouping{
		Items:       []string{"img_a", "img_b", "img_c"},
		Assignments: []int{1, 1, 2},
		K:           2,
		Silhouette:  0.42,
		N:           350,
		MeanRating:  []float64{3.8, 3.1},
	}
	tbl := ClusterTable(g)
	require.Len(t, tbl.Records, 5)
	assert.Equal(t, []string{"item", "cluster", "cluster_mean", "silhouette", "n"}, tbl.Headers)
	assert.Equal(t, []string{"img_c", "2", "", "", ""}, tbl.Records[2])
	assert.Equal(t, []string{"", "1", "3.8000", "0.4200", "350"}, tbl.Records[3])
}

func TestWriteCSVFile(t *testing.T) {
	dir := t.TempDir()
	w := NewCSVWriter(config.PathsConfig{OutputDir: dir}, nil)

	tbl := ReliabilityTable([]survey.ReliabilityResult{
		{Index: "brand_image", Alpha: 0.84, N: 390, Items: 4, Acceptable: true},
	})
	require.NoError(t, w.WriteTable("reliability.csv", tbl))

	data, err := os.ReadFile(filepath.Join(dir, "reliability.csv"))
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.HasPrefix(text, "\xEF\xBB\xBF"), "BOM prefix expected")
	assert.Contains(t, text, "index,alpha,n,items,acceptable")
	assert.Contains(t, text, "brand_image,0.8400,390,4,true")
}

func TestWriteCSVAppend(t *testing.T) {
	dir := t.TempDir()
	w := NewCSVWriter(config.PathsConfig{OutputDir: dir}, nil)

	require.NoError(t, w.WriteCSV("log.csv", WriteOptions{
		Headers: []string{"run", "status"},
		Records: [][]string{{"1", "ok"}},
	}))
	require.NoError(t, w.WriteCSV("log.csv", WriteOptions{
		Records: [][]string{{"2", "ok"}},
		Append:  true,
	}))

	data, err := os.ReadFile(filepath.Join(dir, "log.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 3)
}

func TestWriteWorkbook(t *testing.T) {
	dir := t.TempDir()
	w := NewWorkbookWriter(config.PathsConfig{OutputDir: dir}, nil)

	tables := []Table{
		PathTable(sampleFit()),
		ReliabilityTable([]survey.ReliabilityResult{
			{Index: "brand_image", Alpha: 0.84, N: 390, Items: 4, Acceptable: true},
		}),
	}
	require.NoError(t, w.Write("results.xlsx", tables))

	f, err := excelize.OpenFile(filepath.Join(dir, "results.xlsx"))
	require.NoError(t, err)
	defer f.Close()

	assert.ElementsMatch(t, []string{"path_coefficients", "reliability"}, f.GetSheetList())
	rows, err := f.GetRows("reliability")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "brand_image", rows[1][0])
}

func TestWriteWorkbookEmpty(t *testing.T) {
	w := NewWorkbookWriter(config.PathsConfig{OutputDir: t.TempDir()}, nil)
	require.Error(t, w.Write("results.xlsx", nil))
}
