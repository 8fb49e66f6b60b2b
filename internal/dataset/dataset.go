// Package dataset holds the in-memory analysis table: one row per
// respondent, numeric columns with NaN as the missing marker, and label
// columns for grouping. Stages downstream of the recoder read it but
// never mutate shared state, so concurrent fits need no locking.
package dataset

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"surveykit/internal/errors"
	"surveykit/internal/survey"
)

// Dataset is a column-oriented analysis table.
type Dataset struct {
	n       int
	numeric map[string][]float64
	labels  map[string][]string
	order   []string
}

// New creates an empty dataset with a fixed row count.
func New(n int) *Dataset {
	return &Dataset{
		n:       n,
		numeric: make(map[string][]float64),
		labels:  make(map[string][]string),
	}
}

// FromRecoded assembles a dataset from recoded responses. Numeric
// fields become float columns (missing → NaN), label fields become
// string columns (missing → "").
func FromRecoded(resps []survey.RecodedResponse, numericFields, labelFields []string) *Dataset {
	d := New(len(resps))
	for _, field := range numericFields {
		col := make([]float64, len(resps))
		for i, resp := range resps {
			if v, ok := resp.Numeric(field); ok {
				col[i] = v
			} else {
				col[i] = math.NaN()
			}
		}
		d.addNumeric(field, col)
	}
	for _, field := range labelFields {
		col := make([]string, len(resps))
		for i, resp := range resps {
			if label, ok := resp.Label(field); ok {
				col[i] = label
			}
		}
		d.addLabels(field, col)
	}
	return d
}

func (d *Dataset) addNumeric(name string, col []float64) {
	if _, exists := d.numeric[name]; !exists {
		if _, exists := d.labels[name]; !exists {
			d.order = append(d.order, name)
		}
	}
	d.numeric[name] = col
}

func (d *Dataset) addLabels(name string, col []string) {
	if _, exists := d.labels[name]; !exists {
		if _, exists := d.numeric[name]; !exists {
			d.order = append(d.order, name)
		}
	}
	d.labels[name] = col
}

// AddNumeric adds a numeric column. The column length must match the
// dataset's row count.
func (d *Dataset) AddNumeric(name string, col []float64) error {
	if len(col) != d.n {
		return errors.Newf(errors.CodeConfiguration,
			"column %q has %d rows, dataset has %d", name, len(col), d.n)
	}
	d.addNumeric(name, col)
	return nil
}

// AddLabels adds a string-labeled column, used for stratification
// fields and categorical recodes.
func (d *Dataset) AddLabels(name string, col []string) error {
	if len(col) != d.n {
		return errors.Newf(errors.CodeConfiguration,
			"column %q has %d rows, dataset has %d", name, len(col), d.n)
	}
	d.addLabels(name, col)
	return nil
}

// AddComposite adds composite scores produced by the composite builder.
func (d *Dataset) AddComposite(name string, values []survey.FieldValue) error {
	col := make([]float64, len(values))
	for i, v := range values {
		if v.Present {
			col[i] = v.Num
		} else {
			col[i] = math.NaN()
		}
	}
	return d.AddNumeric(name, col)
}

// Len returns the row count.
func (d *Dataset) Len() int { return d.n }

// HasNumeric reports whether a numeric column exists.
func (d *Dataset) HasNumeric(name string) bool {
	_, ok := d.numeric[name]
	return ok
}

// Numeric returns a numeric column. Callers must not mutate it.
func (d *Dataset) Numeric(name string) ([]float64, bool) {
	col, ok := d.numeric[name]
	return col, ok
}

// Labels returns a label column. Callers must not mutate it.
func (d *Dataset) Labels(name string) ([]string, bool) {
	col, ok := d.labels[name]
	return col, ok
}

// Columns returns column names in insertion order.
func (d *Dataset) Columns() []string {
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// CompleteCases returns the row indices where every named numeric
// column is non-missing. Listwise deletion happens per variable subset,
// not globally.
func (d *Dataset) CompleteCases(vars []string) ([]int, error) {
	for _, v := range vars {
		if !d.HasNumeric(v) {
			return nil, errors.Newf(errors.CodeConfiguration, "unknown variable %q", v)
		}
	}
	var rows []int
	for i := 0; i < d.n; i++ {
		complete := true
		for _, v := range vars {
			if math.IsNaN(d.numeric[v][i]) {
				complete = false
				break
			}
		}
		if complete {
			rows = append(rows, i)
		}
	}
	return rows, nil
}

// Gather extracts the values of one column at the given rows.
func (d *Dataset) Gather(name string, rows []int) []float64 {
	col := d.numeric[name]
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = col[r]
	}
	return out
}

// TopBox adds a binarized column: 1 where src equals top, 0 where it is
// any other non-missing value, NaN where src is missing.
func (d *Dataset) TopBox(src, dst string, top float64) error {
	col, ok := d.numeric[src]
	if !ok {
		return errors.Newf(errors.CodeConfiguration, "top-box source %q not found", src)
	}
	out := make([]float64, d.n)
	for i, v := range col {
		switch {
		case math.IsNaN(v):
			out[i] = math.NaN()
		case v == top:
			out[i] = 1
		default:
			out[i] = 0
		}
	}
	d.addNumeric(dst, out)
	return nil
}

// Partition splits the dataset by the distinct values of a label
// column. Rows with an empty label are excluded. Keys are returned in
// sorted order by Segments.
func (d *Dataset) Partition(labelField string) (map[string]*Dataset, error) {
	col, ok := d.labels[labelField]
	if !ok {
		return nil, errors.Newf(errors.CodeConfiguration, "segment field %q not found", labelField)
	}

	groups := make(map[string][]int)
	for i, label := range col {
		if label == "" {
			continue
		}
		groups[label] = append(groups[label], i)
	}

	out := make(map[string]*Dataset, len(groups))
	for label, rows := range groups {
		sub := New(len(rows))
		for _, name := range d.order {
			if src, ok := d.numeric[name]; ok {
				col := make([]float64, len(rows))
				for j, r := range rows {
					col[j] = src[r]
				}
				sub.addNumeric(name, col)
			}
			if src, ok := d.labels[name]; ok {
				col := make([]string, len(rows))
				for j, r := range rows {
					col[j] = src[r]
				}
				sub.addLabels(name, col)
			}
		}
		out[label] = sub
	}
	return out, nil
}

// Segments returns the sorted distinct non-empty values of a label column.
func (d *Dataset) Segments(labelField string) []string {
	col, ok := d.labels[labelField]
	if !ok {
		return nil
	}
	seen := make(map[string]bool)
	for _, label := range col {
		if label != "" {
			seen[label] = true
		}
	}
	out := make([]string, 0, len(seen))
	for label := range seen {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}

// MeanStd returns the sample mean and standard deviation of the
// non-missing values in a column.
func (d *Dataset) MeanStd(name string) (mean, std float64, n int) {
	col, ok := d.numeric[name]
	if !ok {
		return math.NaN(), math.NaN(), 0
	}
	var present []float64
	for _, v := range col {
		if !math.IsNaN(v) {
			present = append(present, v)
		}
	}
	if len(present) == 0 {
		return math.NaN(), math.NaN(), 0
	}
	mean, std = stat.MeanStdDev(present, nil)
	return mean, std, len(present)
}
