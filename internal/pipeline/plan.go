// Package pipeline orchestrates a full analysis run: ingest, recode,
// composites, reliability, factor extraction, benefit clustering,
// path model, mediation, and segment refits.
package pipeline

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"

	"surveykit/internal/errors"
	"surveykit/internal/mediation"
	"surveykit/internal/pathmodel"
	"surveykit/internal/survey"
)

// TopBoxSpec binarizes a recoded numeric field: value equal to the
// scale maximum becomes 1, other present values 0, missing stays
// missing. Top overrides the scale maximum when non-zero.
type TopBoxSpec struct {
	Source string  `yaml:"source" validate:"required"`
	Target string  `yaml:"target" validate:"required"`
	Top    float64 `yaml:"top"`
}

// FactorPlan names the item block for principal-factor extraction.
// Scores are attached as <Prefix>1..<Prefix>N columns.
type FactorPlan struct {
	Items  []string `yaml:"items"`
	Count  int      `yaml:"count"`
	Prefix string   `yaml:"prefix"`
}

// ClusterPlan names the item block for data-driven theme discovery.
// Composite scores are attached as <Prefix>1..<Prefix>K columns.
type ClusterPlan struct {
	Items  []string `yaml:"items"`
	MinK   int      `yaml:"min_k"`
	MaxK   int      `yaml:"max_k"`
	Prefix string   `yaml:"prefix"`
}

// Plan is the study design: what to derive, build, and fit. It is
// declared in a YAML file alongside the data and stays immutable for
// the run.
type Plan struct {
	Study       string                  `yaml:"study"`
	Derivations []survey.Derivation     `yaml:"derivations"`
	Composites  []survey.CompositeIndex `yaml:"composites"`
	TopBox      []TopBoxSpec            `yaml:"top_box"`
	Factors     FactorPlan              `yaml:"factors"`
	Clusters    ClusterPlan             `yaml:"clusters"`
	Model       pathmodel.ModelSpec     `yaml:"model" validate:"required"`
	Variants    []pathmodel.ModelSpec   `yaml:"variants"`
	Mediations  []mediation.Spec        `yaml:"mediations"`

	// SegmentField overrides the configured stratification column.
	SegmentField string `yaml:"segment_field"`
}

// LoadPlan reads and validates a study plan file.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan file: %w", err)
	}
	return ParsePlan(data)
}

// ParsePlan parses and validates plan YAML.
func ParsePlan(data []byte) (*Plan, error) {
	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, errors.Wrap(err, errors.CodeConfiguration, "parse plan yaml")
	}
	if err := validator.New().Struct(&plan); err != nil {
		return nil, errors.Wrap(err, errors.CodeConfiguration, "invalid plan")
	}
	if len(plan.Model.Edges) == 0 {
		return nil, errors.New(errors.CodeConfiguration, "plan model has no edges")
	}
	if plan.Factors.Prefix == "" {
		plan.Factors.Prefix = "factor"
	}
	if plan.Clusters.Prefix == "" {
		plan.Clusters.Prefix = "benefit_cluster"
	}
	return &plan, nil
}
