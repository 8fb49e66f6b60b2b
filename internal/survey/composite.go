package survey

import (
	"log/slog"

	"surveykit/internal/errors"
)

// CompositeIndex is a named aggregate over a fixed, explicitly declared
// set of item fields. The value for a respondent is the mean of the
// non-missing items when at least MinPresent of them are present;
// otherwise the composite is undefined for that respondent.
type CompositeIndex struct {
	Name       string   `yaml:"name" json:"name" validate:"required"`
	Items      []string `yaml:"items" json:"items" validate:"min=1"`
	MinPresent int      `yaml:"min_present" json:"min_present"`
}

// CompositeBuilder scores composite indices over recoded responses.
type CompositeBuilder struct {
	indices []CompositeIndex
	logger  *slog.Logger
}

// NewCompositeBuilder validates the index definitions against the
// registry and returns a builder. Item lists are explicit so a renamed
// field fails loudly here instead of silently dropping out of a score.
func NewCompositeBuilder(registry *Registry, indices []CompositeIndex, logger *slog.Logger) (*CompositeBuilder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	seen := make(map[string]bool, len(indices))
	for _, idx := range indices {
		if idx.Name == "" {
			return nil, errors.New(errors.CodeConfiguration, "composite index with empty name")
		}
		if seen[idx.Name] {
			return nil, errors.Newf(errors.CodeConfiguration, "duplicate composite index %q", idx.Name)
		}
		seen[idx.Name] = true
		if len(idx.Items) == 0 {
			return nil, errors.Newf(errors.CodeConfiguration, "composite index %q has no items", idx.Name)
		}
		if idx.MinPresent < 0 || idx.MinPresent > len(idx.Items) {
			return nil, errors.Newf(errors.CodeConfiguration,
				"composite index %q: min_present %d outside [0,%d]", idx.Name, idx.MinPresent, len(idx.Items))
		}
		for _, item := range idx.Items {
			def, ok := registry.Lookup(item)
			if !ok {
				return nil, errors.Newf(errors.CodeConfiguration, "composite index %q references unknown field %q", idx.Name, item)
			}
			if !def.IsNumeric() {
				return nil, errors.Newf(errors.CodeConfiguration, "composite index %q references non-numeric field %q", idx.Name, item)
			}
		}
	}
	return &CompositeBuilder{indices: indices, logger: logger}, nil
}

// Indices returns the builder's index definitions.
func (b *CompositeBuilder) Indices() []CompositeIndex { return b.indices }

// Score computes one composite for one respondent. The mean divides by
// the count of present items only; dividing by the full item count
// would double-penalize missing data, and averaging in zeros would
// silently bias the score downward.
func (b *CompositeBuilder) Score(resp RecodedResponse, idx CompositeIndex) (float64, bool) {
	var sum float64
	var present int
	for _, item := range idx.Items {
		if v, ok := resp.Numeric(item); ok {
			sum += v
			present++
		}
	}
	if present == 0 || present < idx.MinPresent {
		return 0, false
	}
	return sum / float64(present), true
}

// ScoreAll computes every configured composite for every respondent.
// The result maps index name to a per-respondent slice aligned with
// resps; the ok slice marks where the composite is defined.
func (b *CompositeBuilder) ScoreAll(resps []RecodedResponse) map[string][]FieldValue {
	out := make(map[string][]FieldValue, len(b.indices))
	for _, idx := range b.indices {
		values := make([]FieldValue, len(resps))
		defined := 0
		for i, resp := range resps {
			if v, ok := b.Score(resp, idx); ok {
				values[i] = FieldValue{Num: v, Present: true}
				defined++
			}
		}
		out[idx.Name] = values
		b.logger.Debug("scored composite",
			slog.String("index", idx.Name),
			slog.Int("defined", defined),
			slog.Int("total", len(resps)))
	}
	return out
}
