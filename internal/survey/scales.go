package survey

import (
	"fmt"
	"sort"

	"surveykit/internal/errors"
)

// ScaleKind identifies the documented scale type of a survey field.
type ScaleKind string

const (
	// ScaleLikert5 is a 5-point scale, 5=high/positive, 1=low/negative.
	ScaleLikert5 ScaleKind = "likert5"
	// ScaleBipolar7 is a 7-point head-to-head comparison scale with a
	// neutral midpoint at 4.
	ScaleBipolar7 ScaleKind = "bipolar7"
	// ScaleNPS is the 0-10 recommendation scale.
	ScaleNPS ScaleKind = "nps"
	// ScaleRecency is the visit-recency code, 1=within last month
	// through 9=never.
	ScaleRecency ScaleKind = "recency"
	// ScaleVisitCount is the visit-frequency code, 1=once through
	// 10=31+ times.
	ScaleVisitCount ScaleKind = "visitcount"
	// ScaleBinary is a yes/no field recoded to {1,0}.
	ScaleBinary ScaleKind = "binary"
	// ScaleCategorical maps raw codes to labels (gender, prefecture).
	ScaleCategorical ScaleKind = "categorical"
	// ScaleNumeric is an unbucketed numeric field such as age in years.
	ScaleNumeric ScaleKind = "numeric"
)

// scaleRanges holds the valid [min,max] for each numeric scale kind.
var scaleRanges = map[ScaleKind][2]float64{
	ScaleLikert5:    {1, 5},
	ScaleBipolar7:   {1, 7},
	ScaleNPS:        {0, 10},
	ScaleRecency:    {1, 9},
	ScaleVisitCount: {1, 10},
	ScaleBinary:     {0, 1},
}

// ScaleDefinition describes one field's scale: its kind, valid range,
// the sentinel raw values that mean missing, and any categorical code
// map. Definitions are static configuration, never derived from data.
type ScaleDefinition struct {
	Field      string            `yaml:"field" json:"field" validate:"required"`
	Kind       ScaleKind         `yaml:"kind" json:"kind" validate:"required"`
	Sentinels  []string          `yaml:"sentinels" json:"sentinels,omitempty"`
	Categories map[string]string `yaml:"categories" json:"categories,omitempty"`

	// RescaleTo7 linearly maps a recoded 1-5 value onto 1-7, the
	// harmonization used when mixing waves with different anchors.
	// Only meaningful for ScaleLikert5.
	RescaleTo7 bool `yaml:"rescale_to_7" json:"rescale_to_7,omitempty"`

	// Min/Max override the kind's default range; used for ScaleNumeric.
	Min float64 `yaml:"min" json:"min,omitempty"`
	Max float64 `yaml:"max" json:"max,omitempty"`
}

// Range returns the valid [min,max] for recoded values of this field.
// For rescaled Likert fields the range reflects the post-rescale scale.
func (d ScaleDefinition) Range() (float64, float64) {
	if d.Kind == ScaleLikert5 && d.RescaleTo7 {
		return 1, 7
	}
	if r, ok := scaleRanges[d.Kind]; ok {
		return r[0], r[1]
	}
	return d.Min, d.Max
}

// rawRange returns the range raw values are validated against before
// any rescale is applied.
func (d ScaleDefinition) rawRange() (float64, float64) {
	if r, ok := scaleRanges[d.Kind]; ok {
		return r[0], r[1]
	}
	return d.Min, d.Max
}

// IsNumeric reports whether recoded values of this field are numeric.
func (d ScaleDefinition) IsNumeric() bool {
	return d.Kind != ScaleCategorical
}

// isSentinel reports whether the trimmed raw string is one of the
// field's declared missing sentinels.
func (d ScaleDefinition) isSentinel(raw string) bool {
	if raw == "" {
		return true
	}
	for _, s := range d.Sentinels {
		if raw == s {
			return true
		}
	}
	return false
}

// Registry is an immutable set of scale definitions keyed by field name.
type Registry struct {
	defs map[string]ScaleDefinition
}

// NewRegistry validates the definitions and builds a registry.
func NewRegistry(defs []ScaleDefinition) (*Registry, error) {
	m := make(map[string]ScaleDefinition, len(defs))
	for _, d := range defs {
		if d.Field == "" {
			return nil, errors.New(errors.CodeConfiguration, "scale definition with empty field name")
		}
		if _, dup := m[d.Field]; dup {
			return nil, errors.Newf(errors.CodeConfiguration, "duplicate scale definition for field %q", d.Field)
		}
		switch d.Kind {
		case ScaleLikert5, ScaleBipolar7, ScaleNPS, ScaleRecency, ScaleVisitCount, ScaleBinary:
		case ScaleCategorical:
			if len(d.Categories) == 0 {
				return nil, errors.Newf(errors.CodeConfiguration, "categorical field %q has no code map", d.Field)
			}
		case ScaleNumeric:
			if d.Max <= d.Min {
				return nil, errors.Newf(errors.CodeConfiguration, "numeric field %q has invalid range [%v,%v]", d.Field, d.Min, d.Max)
			}
		default:
			return nil, errors.Newf(errors.CodeConfiguration, "field %q has unknown scale kind %q", d.Field, d.Kind)
		}
		m[d.Field] = d
	}
	return &Registry{defs: m}, nil
}

// Lookup returns the definition for a field.
func (r *Registry) Lookup(field string) (ScaleDefinition, bool) {
	d, ok := r.defs[field]
	return d, ok
}

// Fields returns the number of defined fields.
func (r *Registry) Fields() int { return len(r.defs) }

// NumericFields returns the sorted names of fields whose recoded
// values are numeric.
func (r *Registry) NumericFields() []string {
	var out []string
	for name, d := range r.defs {
		if d.IsNumeric() {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// LabelFields returns the sorted names of categorical fields.
func (r *Registry) LabelFields() []string {
	var out []string
	for name, d := range r.defs {
		if !d.IsNumeric() {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// String implements fmt.Stringer for log output.
func (r *Registry) String() string {
	return fmt.Sprintf("registry(%d fields)", len(r.defs))
}
