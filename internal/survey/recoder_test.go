package survey

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := NewRegistry([]ScaleDefinition{
		{Field: "opinion_tdl", Kind: ScaleLikert5, Sentinels: []string{"0", "99"}},
		{Field: "familiarity_tdl", Kind: ScaleLikert5, Sentinels: []string{"0", "99"}},
		{Field: "likelihood_rescaled", Kind: ScaleLikert5, Sentinels: []string{"0", "99"}, RescaleTo7: true},
		{Field: "bipolar_fun", Kind: ScaleBipolar7, Sentinels: []string{"99"}},
		{Field: "nps_tdl", Kind: ScaleNPS, Sentinels: []string{"99"}},
		{Field: "recent_visit_tdl", Kind: ScaleRecency, Sentinels: []string{"0", "99"}},
		{Field: "gender", Kind: ScaleCategorical, Categories: map[string]string{"1": "Male", "2": "Female"}},
		{Field: "decision_maker", Kind: ScaleBinary, Sentinels: []string{"99"}},
		{Field: "age", Kind: ScaleNumeric, Min: 0, Max: 120},
		{Field: "prefecture_code", Kind: ScaleNumeric, Min: 1, Max: 47},
	})
	require.NoError(t, err)
	return reg
}

func TestRecodeField(t *testing.T) {
	reg := testRegistry(t)
	rec := NewRecoder(reg, nil, nil)

	tests := []struct {
		name      string
		field     string
		raw       string
		wantNum   float64
		wantLabel string
		missing   bool
		reason    string
	}{
		{name: "valid likert", field: "opinion_tdl", raw: "4", wantNum: 4},
		{name: "whitespace trimmed", field: "opinion_tdl", raw: " 3 ", wantNum: 3},
		{name: "sentinel 99 is missing", field: "opinion_tdl", raw: "99", missing: true},
		{name: "sentinel 0 is missing", field: "opinion_tdl", raw: "0", missing: true},
		{name: "empty string is missing", field: "opinion_tdl", raw: "", missing: true},
		{name: "above range clamps to max", field: "opinion_tdl", raw: "7", wantNum: 5, reason: ReasonOutOfRangeClamped},
		{name: "below range clamps to min", field: "bipolar_fun", raw: "-2", wantNum: 1, reason: ReasonOutOfRangeClamped},
		{name: "nps zero is a valid code", field: "nps_tdl", raw: "0", wantNum: 0},
		{name: "nps eleven clamps to ten", field: "nps_tdl", raw: "11", wantNum: 10, reason: ReasonOutOfRangeClamped},
		{name: "rescale maps 5 to 7", field: "likelihood_rescaled", raw: "5", wantNum: 7},
		{name: "rescale maps 1 to 1", field: "likelihood_rescaled", raw: "1", wantNum: 1},
		{name: "rescale maps 3 to 4", field: "likelihood_rescaled", raw: "3", wantNum: 4},
		{name: "gender code maps to label", field: "gender", raw: "2", wantLabel: "Female"},
		{name: "unmapped gender code is missing", field: "gender", raw: "3", missing: true, reason: ReasonUnmappedCategory},
		{name: "binary yes", field: "decision_maker", raw: "Yes", wantNum: 1},
		{name: "binary no", field: "decision_maker", raw: "no", wantNum: 0},
		{name: "binary garbage is missing", field: "decision_maker", raw: "maybe", missing: true, reason: ReasonUnparseable},
		{name: "unparseable numeric is missing", field: "opinion_tdl", raw: "abc", missing: true, reason: ReasonUnparseable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, issues := rec.Recode(RawResponse{ID: "r1", Fields: map[string]string{tt.field: tt.raw}})
			v := out.Fields[tt.field]

			if tt.missing {
				assert.False(t, v.Present, "expected missing")
			} else {
				require.True(t, v.Present, "expected present")
				if tt.wantLabel != "" {
					assert.Equal(t, tt.wantLabel, v.Label)
				} else {
					assert.InDelta(t, tt.wantNum, v.Num, 1e-12)
				}
			}

			if tt.reason != "" {
				require.Len(t, issues, 1)
				assert.Equal(t, tt.reason, issues[0].Reason)
				assert.Equal(t, tt.field, issues[0].Field)
			} else {
				assert.Empty(t, issues)
			}
		})
	}
}

func TestRecodeIssueDoesNotAbortRow(t *testing.T) {
	reg := testRegistry(t)
	rec := NewRecoder(reg, nil, nil)

	out, issues := rec.Recode(RawResponse{ID: "r2", Fields: map[string]string{
		"opinion_tdl":     "9", // clamped
		"familiarity_tdl": "4", // fine
		"gender":          "5", // unmapped
	}})

	require.Len(t, issues, 2)
	v, ok := out.Numeric("familiarity_tdl")
	require.True(t, ok)
	assert.Equal(t, 4.0, v)
	op, ok := out.Numeric("opinion_tdl")
	require.True(t, ok)
	assert.Equal(t, 5.0, op)
}

func TestDerivations(t *testing.T) {
	reg := testRegistry(t)
	rec := NewRecoder(reg, []Derivation{
		{Target: "age_group", Source: "age", Kind: DeriveAgeGroup},
		{Target: "visit_recency", Source: "recent_visit_tdl", Kind: DeriveRecencyLabel},
		{Target: "region", Source: "prefecture_code", Kind: DeriveRegion},
	}, nil)

	t.Run("derived from recoded values", func(t *testing.T) {
		out, _ := rec.Recode(RawResponse{ID: "r3", Fields: map[string]string{
			"age":              "31",
			"recent_visit_tdl": "9",
			"prefecture_code":  "13",
		}})

		group, ok := out.Label("age_group")
		require.True(t, ok)
		assert.Equal(t, "25-34", group)

		recency, ok := out.Label("visit_recency")
		require.True(t, ok)
		assert.Equal(t, "never", recency)

		region, ok := out.Label("region")
		require.True(t, ok)
		assert.Equal(t, "Local", region)
	})

	t.Run("missing source yields missing bucket", func(t *testing.T) {
		out, _ := rec.Recode(RawResponse{ID: "r4", Fields: map[string]string{
			"age": "", "recent_visit_tdl": "99", "prefecture_code": "26",
		}})

		_, ok := out.Label("age_group")
		assert.False(t, ok)
		_, ok = out.Label("visit_recency")
		assert.False(t, ok)

		region, ok := out.Label("region")
		require.True(t, ok)
		assert.Equal(t, "Domestic", region)
	})

	t.Run("clamping happens before derivation", func(t *testing.T) {
		// Recency 12 clamps to 9, so the label is "never", not missing.
		out, issues := rec.Recode(RawResponse{ID: "r5", Fields: map[string]string{
			"recent_visit_tdl": "12",
		}})
		require.Len(t, issues, 1)
		label, ok := out.Label("visit_recency")
		require.True(t, ok)
		assert.Equal(t, "never", label)
	})
}

// TestRecodeIdempotence feeds recoded numeric values back through the
// recoder with identity definitions and expects a no-op.
func TestRecodeIdempotence(t *testing.T) {
	reg := testRegistry(t)
	rec := NewRecoder(reg, nil, nil)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		raw := RawResponse{ID: fmt.Sprintf("r%d", i), Fields: map[string]string{
			"opinion_tdl": fmt.Sprintf("%d", rng.Intn(12)-3),
			"bipolar_fun": fmt.Sprintf("%d", rng.Intn(12)-2),
			"nps_tdl":     fmt.Sprintf("%d", rng.Intn(15)-2),
		}}
		first, _ := rec.Recode(raw)

		roundTrip := RawResponse{ID: raw.ID, Fields: map[string]string{}}
		for field, v := range first.Fields {
			if v.Present && v.Label == "" {
				roundTrip.Fields[field] = FormatNumeric(v.Num)
			}
		}
		second, issues := rec.Recode(roundTrip)
		assert.Empty(t, issues, "recoding recoded values must not flag")
		for field := range roundTrip.Fields {
			a, okA := first.Numeric(field)
			b, okB := second.Numeric(field)
			require.True(t, okA && okB)
			assert.Equal(t, a, b, field)
		}
	}
}

// TestRangeInvariant property-tests that every recoded numeric value is
// in range or explicitly missing, across randomized raw inputs
// including sentinels and far out-of-range integers.
func TestRangeInvariant(t *testing.T) {
	reg := testRegistry(t)
	rec := NewRecoder(reg, nil, nil)
	rng := rand.New(rand.NewSource(42))

	candidates := []string{"", "0", "99", "abc", "-5", "100", "3", "5", "7", "10", "1"}
	fields := []struct {
		name     string
		min, max float64
	}{
		{"opinion_tdl", 1, 5},
		{"bipolar_fun", 1, 7},
		{"nps_tdl", 0, 10},
		{"recent_visit_tdl", 1, 9},
	}

	for i := 0; i < 500; i++ {
		raw := RawResponse{ID: "p", Fields: map[string]string{}}
		for _, f := range fields {
			if rng.Intn(3) == 0 {
				raw.Fields[f.name] = candidates[rng.Intn(len(candidates))]
			} else {
				raw.Fields[f.name] = fmt.Sprintf("%d", rng.Intn(30)-10)
			}
		}
		out, _ := rec.Recode(raw)
		for _, f := range fields {
			if v, ok := out.Numeric(f.name); ok {
				assert.GreaterOrEqual(t, v, f.min, f.name)
				assert.LessOrEqual(t, v, f.max, f.name)
			}
		}
	}
}

func TestNewRegistryRejectsBadDefinitions(t *testing.T) {
	tests := []struct {
		name string
		defs []ScaleDefinition
	}{
		{"empty field name", []ScaleDefinition{{Kind: ScaleLikert5}}},
		{"duplicate field", []ScaleDefinition{
			{Field: "a", Kind: ScaleLikert5},
			{Field: "a", Kind: ScaleNPS},
		}},
		{"categorical without codes", []ScaleDefinition{{Field: "g", Kind: ScaleCategorical}}},
		{"numeric with inverted range", []ScaleDefinition{{Field: "n", Kind: ScaleNumeric, Min: 5, Max: 2}}},
		{"unknown kind", []ScaleDefinition{{Field: "x", Kind: "likert99"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.defs)
			assert.Error(t, err)
		})
	}
}
